package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/FilipeAphrody/lifeline-auth/internal/domain"
	"github.com/FilipeAphrody/lifeline-auth/internal/usecase"
)

// UserHandler serves the signed-in user's profile and the admin user directory.
type UserHandler struct {
	svc AuthService
	log *zap.Logger
}

// NewUserHandler registers profile and admin routes. All of them require a session.
func NewUserHandler(g *echo.Group, svc AuthService, log *zap.Logger) {
	handler := &UserHandler{svc: svc, log: log}
	session := SessionMiddleware(svc)

	g.GET("/profile", handler.GetProfile, session)
	g.PUT("/profile", handler.UpdateProfile, session)

	admin := g.Group("/admin")
	admin.GET("/users", handler.ListUsers, session, RequireRoles(domain.RoleAdmin, domain.RoleStaff))
	admin.POST("/users", handler.CreateUser, session, RequireRoles(domain.RoleAdmin))
	admin.PUT("/users/:id", handler.UpdateUser, session, RequireRoles(domain.RoleAdmin))
}

// updateProfileRequest carries only the fields a user may change about themselves.
type updateProfileRequest struct {
	Name         *string    `json:"name" validate:"omitempty,min=1,max=120"`
	PhoneNumber  *string    `json:"phoneNumber" validate:"omitempty,max=32"`
	Address      *string    `json:"address" validate:"omitempty,max=255"`
	BloodType    *string    `json:"bloodType"`
	LastDonation *time.Time `json:"lastDonation"`
}

// listUsersRequest is bound from the query string.
type listUsersRequest struct {
	Role   string `query:"role" json:"role"`
	Search string `query:"search" json:"search" validate:"max=120"`
	Page   int    `query:"page" json:"page" validate:"min=0"`
}

// updateUserRequest is the admin edit payload. Unlike updateProfileRequest it can carry a role.
type updateUserRequest struct {
	updateProfileRequest
	Role *string `json:"role"`
}

// createUserRequest is the admin provisioning payload. Any role is allowed here.
type createUserRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,min=6,max=128"`
	Name        string `json:"name" validate:"max=120"`
	Role        string `json:"role" validate:"required"`
	PhoneNumber string `json:"phoneNumber" validate:"max=32"`
	Address     string `json:"address" validate:"max=255"`
	BloodType   string `json:"bloodType"`
}

func (h *UserHandler) GetProfile(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return unauthenticated(c)
	}

	user, err := h.svc.Profile(c.Request().Context(), id.UserID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": user.Public()})
}

func (h *UserHandler) UpdateProfile(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return unauthenticated(c)
	}

	var req updateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.log, err)
	}

	user, err := h.svc.UpdateProfile(c.Request().Context(), id.UserID, domain.ProfileUpdate{
		Name:         req.Name,
		PhoneNumber:  req.PhoneNumber,
		Address:      req.Address,
		BloodType:    req.BloodType,
		LastDonation: req.LastDonation,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": user.Public()})
}

func (h *UserHandler) ListUsers(c echo.Context) error {
	var req listUsersRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.log, err)
	}

	filter := domain.UserFilter{Search: req.Search, Page: req.Page}
	if req.Role != "" {
		role, err := domain.ParseRole(req.Role)
		if err != nil {
			return respondError(c, h.log, err)
		}
		filter.Role = role
	}

	page, err := h.svc.ListUsers(c.Request().Context(), filter)
	if err != nil {
		return respondError(c, h.log, err)
	}

	out := make([]domain.PublicUser, 0, len(page.Users))
	for _, u := range page.Users {
		out = append(out, u.Public())
	}
	return c.JSON(http.StatusOK, echo.Map{
		"users":      out,
		"total":      page.Total,
		"page":       page.Page,
		"pageSize":   page.PageSize,
		"totalPages": page.TotalPages(),
	})
}

func (h *UserHandler) UpdateUser(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return unauthenticated(c)
	}

	var req updateUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.log, err)
	}

	user, err := h.svc.UpdateUser(c.Request().Context(), id.UserID, c.Param("id"), domain.AdminUserUpdate{
		ProfileUpdate: domain.ProfileUpdate{
			Name:         req.Name,
			PhoneNumber:  req.PhoneNumber,
			Address:      req.Address,
			BloodType:    req.BloodType,
			LastDonation: req.LastDonation,
		},
		Role: req.Role,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": user.Public()})
}

func (h *UserHandler) CreateUser(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return unauthenticated(c)
	}

	var req createUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.log, err)
	}

	user, err := h.svc.Provision(c.Request().Context(), id.UserID, usecase.RegisterInput{
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
	return c.JSON(http.StatusCreated, echo.Map{"user": user.Public()})
}
