package http

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/FilipeAphrody/lifeline-auth/internal/domain"
	"github.com/FilipeAphrody/lifeline-auth/internal/usecase"
	"github.com/FilipeAphrody/lifeline-auth/pkg/security"
)

// AuthService is everything the HTTP layer needs from the auth usecase.
type AuthService interface {
	SessionResolver
	Register(ctx context.Context, in usecase.RegisterInput) (*domain.AuthResult, error)
	Login(ctx context.Context, in usecase.LoginInput) (*domain.AuthResult, error)
	Provision(ctx context.Context, actorID string, in usecase.RegisterInput) (*domain.User, error)
	Profile(ctx context.Context, userID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, upd domain.ProfileUpdate) (*domain.User, error)
	ListUsers(ctx context.Context, filter domain.UserFilter) (*domain.UserPage, error)
	UpdateUser(ctx context.Context, actorID, userID string, upd domain.AdminUserUpdate) (*domain.User, error)
	SetupMFA(ctx context.Context, userID string) (*security.MFAEnrollment, error)
	EnableMFA(ctx context.Context, userID, code string) error
}

var _ AuthService = (*usecase.AuthUsecase)(nil)

// Register installs the request validator and mounts the v1 API on e.
func Register(e *echo.Echo, svc AuthService, log *zap.Logger) {
	e.Validator = newRequestValidator()

	v1 := e.Group("/v1")
	NewAuthHandler(v1, svc, log)
	NewUserHandler(v1, svc, log)
	NewMFAHandler(v1, svc, log)
}
