package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// MFAHandler handles MFA enrollment for the signed-in user.
type MFAHandler struct {
	svc AuthService
	log *zap.Logger
}

// NewMFAHandler registers the MFA management routes behind the session middleware.
func NewMFAHandler(g *echo.Group, svc AuthService, log *zap.Logger) {
	handler := &MFAHandler{svc: svc, log: log}
	session := SessionMiddleware(svc)

	g.POST("/mfa/setup", handler.Setup, session)
	g.POST("/mfa/enable", handler.Enable, session)
}

// mfaSetupResponse returns the QR code URI to the frontend.
type mfaSetupResponse struct {
	Secret string `json:"secret"`
	QRCode string `json:"qr_code_uri"`
}

// mfaEnableRequest is used to verify the first code before enabling MFA.
type mfaEnableRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// Setup generates a new TOTP secret and stores it as pending.
func (h *MFAHandler) Setup(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return unauthenticated(c)
	}

	enrollment, err := h.svc.SetupMFA(c.Request().Context(), id.UserID)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, mfaSetupResponse{Secret: enrollment.Secret, QRCode: enrollment.URI})
}

// Enable verifies the provided code and turns on MFA for the account.
func (h *MFAHandler) Enable(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return unauthenticated(c)
	}

	var req mfaEnableRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.log, err)
	}

	if err := h.svc.EnableMFA(c.Request().Context(), id.UserID, req.Code); err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "mfa_enabled_successfully"})
}
