package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/FilipeAphrody/lifeline-auth/internal/domain"
	"github.com/FilipeAphrody/lifeline-auth/internal/usecase"
)

// AuthHandler represents the HTTP delivery layer for registration and login.
type AuthHandler struct {
	svc AuthService
	log *zap.Logger
}

// NewAuthHandler registers the public authentication routes to the provided echo group.
func NewAuthHandler(g *echo.Group, svc AuthService, log *zap.Logger) {
	handler := &AuthHandler{svc: svc, log: log}

	g.POST("/register", handler.Register)
	g.POST("/login", handler.Login)
}

// registerRequest defines the expected JSON payload for the register endpoint.
type registerRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,min=6,max=128"`
	Name        string `json:"name" validate:"max=120"`
	Role        string `json:"role"`
	PhoneNumber string `json:"phoneNumber" validate:"max=32"`
	Address     string `json:"address" validate:"max=255"`
	BloodType   string `json:"bloodType"`
}

// loginRequest defines the expected JSON payload for the login endpoint.
// Code is only needed for accounts with MFA enabled.
type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Code     string `json:"code" validate:"omitempty,len=6,numeric"`
}

// Register creates a donor or recipient account and returns a session token.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.log, err)
	}

	resp, err := h.svc.Register(c.Request().Context(), usecase.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		Name:        req.Name,
		Role:        req.Role,
		PhoneNumber: req.PhoneNumber,
		Address:     req.Address,
		BloodType:   req.BloodType,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(http.StatusCreated, resp)
}

// Login handles the authentication request.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.log, err)
	}

	resp, err := h.svc.Login(c.Request().Context(), usecase.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Code:     req.Code,
	})
	if err != nil {
		// Password was right; the client must come back with a TOTP code.
		if errors.Is(err, domain.ErrMFARequired) {
			return c.JSON(http.StatusAccepted, echo.Map{"message": domain.ErrMFARequired.Error()})
		}
		return respondError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, resp)
}
