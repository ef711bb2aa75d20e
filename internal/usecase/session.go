package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/FilipeAphrody/lifeline-auth/internal/domain"
)

// ResolveSession turns a bearer token into the user it was issued to.
// Every failure collapses into domain.ErrUnauthenticated so callers cannot
// tell a forged token from a deleted account.
func (u *AuthUsecase) ResolveSession(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		u.metrics.SessionRejected()
		return nil, domain.ErrUnauthenticated
	}

	userID, err := u.tokens.Verify(token)
	if err != nil {
		u.metrics.SessionRejected()
		u.log.Debug("token rejected", zap.Error(err))
		return nil, domain.ErrUnauthenticated
	}

	user, err := u.userRepo.GetByID(ctx, userID)
	if err != nil {
		u.metrics.SessionRejected()
		if errors.Is(err, domain.ErrNotFound) {
			u.log.Debug("token subject no longer exists", zap.String("user_id", userID))
		} else {
			u.log.Warn("session lookup failed", zap.String("user_id", userID), zap.Error(err))
		}
		return nil, domain.ErrUnauthenticated
	}

	return user, nil
}
