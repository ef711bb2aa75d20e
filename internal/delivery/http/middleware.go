package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/FilipeAphrody/lifeline-auth/internal/domain"
)

// SessionResolver turns a bearer token into the user it was issued to.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*domain.User, error)
}

// SessionMiddleware intercepts the request to resolve the bearer token in the Authorization header.
// Every rejection is the same 401 so clients cannot tell why a token failed.
func SessionMiddleware(resolver SessionResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return unauthenticated(c)
			}

			ctx := c.Request().Context()
			user, err := resolver.ResolveSession(ctx, token)
			if err != nil {
				return unauthenticated(c)
			}

			// The identity travels on the request context so downstream code
			// can read it without depending on echo.
			c.SetRequest(c.Request().WithContext(domain.WithIdentity(ctx, domain.IdentityOf(user))))
			return next(c)
		}
	}
}

// RequireRoles ensures only identities holding one of roles reach the handler.
// It must run after SessionMiddleware.
func RequireRoles(roles ...domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, _ := domain.IdentityFromContext(c.Request().Context())
			if err := domain.Authorize(id, roles...); err != nil {
				status, msg := errorStatus(err)
				return c.JSON(status, echo.Map{"error": msg})
			}
			return next(c)
		}
	}
}

// RequestLogger logs one line per request through zap.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
			}
			if v.RequestID != "" {
				fields = append(fields, zap.String("request_id", v.RequestID))
			}
			if v.Error != nil {
				log.Error("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			log.Info("request", fields...)
			return nil
		},
	})
}

// bearerToken extracts the token from "Bearer <token>". The scheme is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthenticated(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": domain.ErrUnauthenticated.Error()})
}

func identity(c echo.Context) (*domain.Identity, bool) {
	return domain.IdentityFromContext(c.Request().Context())
}
