package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FilipeAphrody/lifeline-auth/internal/domain"
	"github.com/FilipeAphrody/lifeline-auth/internal/metrics"
	"github.com/FilipeAphrody/lifeline-auth/pkg/security"
)

// PasswordHasher is the one-way hash primitive used for credentials.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) bool
	NeedsRehash(encodedHash string) bool
	Burn(password string)
}

// TokenService mints and checks bearer tokens.
type TokenService interface {
	Issue(subject string) (string, time.Time, error)
	Verify(token string) (string, error)
}

// RegisterInput is the payload of both public registration and provisioning.
type RegisterInput struct {
	Email       string
	Password    string
	Name        string
	Role        string
	PhoneNumber string
	Address     string
	BloodType   string
}

// LoginInput carries credentials and, for MFA accounts, a TOTP code.
type LoginInput struct {
	Email    string
	Password string
	Code     string
}

type AuthUsecase struct {
	userRepo domain.UserRepository
	auditLog domain.AuditLog
	limiter  domain.AttemptLimiter
	hasher   PasswordHasher
	tokens   TokenService

	log     *zap.Logger
	metrics *metrics.Metrics
	newID   func() string
}

// Option customises an AuthUsecase.
type Option func(*AuthUsecase)

// WithLogger sets the operational logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(u *AuthUsecase) { u.log = l }
}

// WithMetrics enables Prometheus counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(u *AuthUsecase) { u.metrics = m }
}

// WithAttemptLimiter enables login throttling.
func WithAttemptLimiter(l domain.AttemptLimiter) Option {
	return func(u *AuthUsecase) { u.limiter = l }
}

// WithIDGenerator overrides how user IDs are generated.
func WithIDGenerator(f func() string) Option {
	return func(u *AuthUsecase) { u.newID = f }
}

func NewAuthUsecase(users domain.UserRepository, audit domain.AuditLog, hasher PasswordHasher, tokens TokenService, opts ...Option) *AuthUsecase {
	u := &AuthUsecase{
		userRepo: users,
		auditLog: audit,
		hasher:   hasher,
		tokens:   tokens,
		log:      zap.NewNop(),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Register creates a self-service account (donor or recipient) and signs it in.
func (u *AuthUsecase) Register(ctx context.Context, in RegisterInput) (*domain.AuthResult, error) {
	role := domain.RoleDonor
	if in.Role != "" {
		parsed, err := domain.ParseRole(in.Role)
		if err != nil {
			return nil, err
		}
		role = parsed
	}
	if !role.SelfService() {
		u.metrics.AuthEvent("register", metrics.OutcomeFailure)
		return nil, domain.ErrForbiddenRole
	}

	user, err := u.createUser(ctx, in, role)
	if err != nil {
		u.metrics.AuthEvent("register", metrics.OutcomeFailure)
		return nil, err
	}

	u.audit(ctx, domain.AuditEntry{
		Category: domain.AuditAuth,
		Message:  fmt.Sprintf("New user registered: %s", user.Email),
		ActorID:  user.ID,
		Metadata: map[string]any{"role": string(user.Role)},
	})

	result, err := u.issue(user)
	if err != nil {
		return nil, err
	}
	u.metrics.AuthEvent("register", metrics.OutcomeSuccess)
	return result, nil
}

// Provision creates an account with any role. It is reserved for the seed
// command and admin endpoints and never issues a token.
func (u *AuthUsecase) Provision(ctx context.Context, actorID string, in RegisterInput) (*domain.User, error) {
	role, err := domain.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}

	user, err := u.createUser(ctx, in, role)
	if err != nil {
		return nil, err
	}

	category := domain.AuditUser
	if actorID == "" {
		category = domain.AuditSystem
		actorID = user.ID
	}
	u.audit(ctx, domain.AuditEntry{
		Category: category,
		Message:  fmt.Sprintf("User provisioned: %s", user.Email),
		ActorID:  actorID,
		Metadata: map[string]any{"role": string(user.Role), "user_id": user.ID},
	})
	return user, nil
}

func (u *AuthUsecase) createUser(ctx context.Context, in RegisterInput, role domain.Role) (*domain.User, error) {
	email := domain.NormalizeEmail(in.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", domain.ErrValidation)
	}
	if !domain.ValidBloodType(in.BloodType) {
		return nil, fmt.Errorf("%w: unknown blood type %q", domain.ErrValidation, in.BloodType)
	}

	// 1. Check uniqueness up front; the store constraint still guards races.
	_, err := u.userRepo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, domain.ErrEmailTaken
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	// 2. Hash with a fresh salt
	hash, err := u.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	// 3. Persist
	user := &domain.User{
		ID:           u.newID(),
		Email:        email,
		PasswordHash: hash,
		Name:         in.Name,
		Role:         role,
		PhoneNumber:  in.PhoneNumber,
		Address:      in.Address,
		BloodType:    in.BloodType,
	}
	if err := u.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, domain.ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login validates credentials. A missing account and a wrong password are
// indistinguishable to the caller: same error, same hashing cost.
func (u *AuthUsecase) Login(ctx context.Context, in LoginInput) (*domain.AuthResult, error) {
	email := domain.NormalizeEmail(in.Email)

	if u.limiter != nil {
		ok, err := u.limiter.Allow(ctx, email)
		if err != nil {
			// Throttling is best effort; an unavailable Redis must not lock everyone out.
			u.log.Warn("login throttle unavailable", zap.Error(err))
		} else if !ok {
			u.metrics.AuthEvent("login", "throttled")
			return nil, domain.ErrTooManyAttempts
		}
	}

	user, err := u.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("lookup user: %w", err)
		}
		u.hasher.Burn(in.Password)
		u.loginFailed(ctx, email, "")
		return nil, domain.ErrInvalidCredentials
	}

	// 1. Verify Password
	if !u.hasher.Verify(in.Password, user.PasswordHash) {
		u.loginFailed(ctx, email, user.ID)
		return nil, domain.ErrInvalidCredentials
	}

	// 2. Check if Multi-Factor Authentication is required
	if user.MFAEnabled {
		if in.Code == "" {
			return nil, domain.ErrMFARequired
		}
		if !security.VerifyMFACode(in.Code, user.MFASecret) {
			u.loginFailed(ctx, email, user.ID)
			return nil, domain.ErrInvalidMFACode
		}
	}

	if u.limiter != nil {
		if err := u.limiter.Reset(ctx, email); err != nil {
			u.log.Warn("failed to reset login attempts", zap.Error(err))
		}
	}

	u.upgradeHash(ctx, user, in.Password)

	// 3. Log successful login
	u.audit(ctx, domain.AuditEntry{
		Category: domain.AuditAuth,
		Message:  fmt.Sprintf("User logged in: %s", user.Email),
		ActorID:  user.ID,
	})

	result, err := u.issue(user)
	if err != nil {
		return nil, err
	}
	u.metrics.AuthEvent("login", metrics.OutcomeSuccess)
	return result, nil
}

func (u *AuthUsecase) loginFailed(ctx context.Context, email, userID string) {
	u.metrics.AuthEvent("login", metrics.OutcomeFailure)
	if u.limiter != nil {
		if err := u.limiter.Fail(ctx, email); err != nil {
			u.log.Warn("failed to record login attempt", zap.Error(err))
		}
	}
	u.audit(ctx, domain.AuditEntry{
		Category: domain.AuditAuth,
		Message:  fmt.Sprintf("Failed login attempt: %s", email),
		ActorID:  userID,
	})
}

// upgradeHash re-hashes legacy or outdated digests while the plaintext is at hand.
func (u *AuthUsecase) upgradeHash(ctx context.Context, user *domain.User, password string) {
	if !u.hasher.NeedsRehash(user.PasswordHash) {
		return
	}
	hash, err := u.hasher.Hash(password)
	if err != nil {
		u.log.Warn("password rehash failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	user.PasswordHash = hash
	if err := u.userRepo.Update(ctx, user); err != nil {
		u.log.Warn("failed to persist upgraded password hash", zap.String("user_id", user.ID), zap.Error(err))
	}
}

func (u *AuthUsecase) issue(user *domain.User) (*domain.AuthResult, error) {
	token, expiresAt, err := u.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &domain.AuthResult{User: user.Public(), Token: token, ExpiresAt: expiresAt}, nil
}

// audit appends an entry. Failures are reported, never propagated.
func (u *AuthUsecase) audit(ctx context.Context, entry domain.AuditEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if err := u.auditLog.Append(ctx, entry); err != nil {
		u.metrics.AuditFailure()
		u.log.Warn("audit append failed",
			zap.String("category", string(entry.Category)),
			zap.String("message", entry.Message),
			zap.Error(err),
		)
	}
}
