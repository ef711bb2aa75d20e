package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/FilipeAphrody/lifeline-auth/internal/domain"
	"github.com/FilipeAphrody/lifeline-auth/internal/metrics"
	"github.com/FilipeAphrody/lifeline-auth/pkg/security"
)

// Profile returns the stored user.
func (u *AuthUsecase) Profile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := u.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return user, nil
}

// UpdateProfile applies a self-service update. Email and role cannot change here.
func (u *AuthUsecase) UpdateProfile(ctx context.Context, userID string, upd domain.ProfileUpdate) (*domain.User, error) {
	if upd.BloodType != nil && !domain.ValidBloodType(*upd.BloodType) {
		return nil, fmt.Errorf("%w: unknown blood type %q", domain.ErrValidation, *upd.BloodType)
	}

	user, err := u.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	upd.Apply(user)
	if err := u.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	u.audit(ctx, domain.AuditEntry{
		Category: domain.AuditUser,
		Message:  fmt.Sprintf("Profile updated: %s", user.Email),
		ActorID:  user.ID,
	})
	return user, nil
}

// ListUsers returns one page of accounts matching filter. Callers gate it by role.
func (u *AuthUsecase) ListUsers(ctx context.Context, filter domain.UserFilter) (*domain.UserPage, error) {
	filter = filter.Normalize()
	users, total, err := u.userRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return &domain.UserPage{
		Users:    users,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

// UpdateUser applies an admin edit to another account, including its role.
// An admin cannot change their own role, so the last admin cannot lock
// everyone out by demoting themselves.
func (u *AuthUsecase) UpdateUser(ctx context.Context, actorID, userID string, upd domain.AdminUserUpdate) (*domain.User, error) {
	if upd.BloodType != nil && !domain.ValidBloodType(*upd.BloodType) {
		return nil, fmt.Errorf("%w: unknown blood type %q", domain.ErrValidation, *upd.BloodType)
	}

	var role domain.Role
	if upd.Role != nil {
		r, err := domain.ParseRole(*upd.Role)
		if err != nil {
			return nil, err
		}
		role = r
	}

	user, err := u.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if role != "" && role != user.Role && actorID == user.ID {
		return nil, fmt.Errorf("%w: cannot change your own role", domain.ErrValidation)
	}

	upd.Apply(user)
	if err := u.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	previous := user.Role
	if role != "" && role != previous {
		if err := u.userRepo.UpdateRole(ctx, user.ID, role); err != nil {
			return nil, fmt.Errorf("update role: %w", err)
		}
		user.Role = role
	}

	meta := map[string]any{"user_id": user.ID, "role": string(user.Role)}
	if user.Role != previous {
		meta["previous_role"] = string(previous)
	}
	u.audit(ctx, domain.AuditEntry{
		Category: domain.AuditUser,
		Message:  fmt.Sprintf("User updated: %s", user.Email),
		ActorID:  actorID,
		Metadata: meta,
	})
	return user, nil
}

// SetupMFA generates a TOTP secret and stores it as pending until EnableMFA
// confirms the user can produce codes.
func (u *AuthUsecase) SetupMFA(ctx context.Context, userID string) (*security.MFAEnrollment, error) {
	user, err := u.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.MFAEnabled {
		return nil, fmt.Errorf("%w: mfa is already enabled", domain.ErrValidation)
	}

	enrollment, err := security.GenerateMFASecret(user.Email)
	if err != nil {
		return nil, err
	}

	user.MFASecret = enrollment.Secret
	if err := u.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("store mfa secret: %w", err)
	}
	return enrollment, nil
}

// EnableMFA verifies the first code against the pending secret and turns MFA on.
func (u *AuthUsecase) EnableMFA(ctx context.Context, userID, code string) error {
	user, err := u.Profile(ctx, userID)
	if err != nil {
		return err
	}
	if user.MFASecret == "" {
		return fmt.Errorf("%w: mfa setup has not been started", domain.ErrValidation)
	}
	if !security.VerifyMFACode(code, user.MFASecret) {
		return domain.ErrInvalidMFACode
	}

	user.MFAEnabled = true
	if err := u.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("enable mfa: %w", err)
	}

	u.audit(ctx, domain.AuditEntry{
		Category: domain.AuditAuth,
		Message:  fmt.Sprintf("MFA enabled: %s", user.Email),
		ActorID:  user.ID,
	})
	u.metrics.AuthEvent("mfa_enable", metrics.OutcomeSuccess)
	return nil
}
