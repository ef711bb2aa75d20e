package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FilipeAphrody/lifeline-auth/internal/domain"
	"github.com/FilipeAphrody/lifeline-auth/internal/metrics"
	"github.com/FilipeAphrody/lifeline-auth/internal/repository"
	"github.com/FilipeAphrody/lifeline-auth/pkg/security"
)

func TestResolveSession_ValidToken(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "a@x.com", "secret1")

	user, err := f.uc.ResolveSession(context.Background(), reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, user.ID)
	assert.Equal(t, "a@x.com", user.Email)
}

func TestResolveSession_Rejections(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "a@x.com", "secret1")

	foreign, err := security.NewTokenIssuer("another_secret_that_is_long_enough_!!", 0, "lifeline-auth")
	require.NoError(t, err)
	forged, _, err := foreign.Issue(reg.User.ID)
	require.NoError(t, err)

	orphan, _, err := f.tokens.Issue("deleted-user")
	require.NoError(t, err)

	// Same secret and issuer, but minted two days ago with a one hour TTL.
	past := time.Now().Add(-48 * time.Hour)
	backdated, err := security.NewTokenIssuer(testSecret, time.Hour, "lifeline-auth", security.WithClock(func() time.Time { return past }))
	require.NoError(t, err)
	expired, _, err := backdated.Issue(reg.User.ID)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not-a-jwt"},
		{name: "tampered", token: reg.Token + "x"},
		{name: "other secret", token: forged},
		{name: "unknown subject", token: orphan},
		{name: "expired", token: expired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := f.uc.ResolveSession(context.Background(), tt.token)
			assert.Nil(t, user)
			assert.Equal(t, domain.ErrUnauthenticated, err)
		})
	}
	assert.Equal(t, float64(len(tests)), testutil.ToFloat64(f.metrics.SessionRejects))
}

func TestResolveSession_StoreErrorIsUnauthenticated(t *testing.T) {
	tokens, err := security.NewTokenIssuer(testSecret, 0, "")
	require.NoError(t, err)
	token, _, err := tokens.Issue("u-1")
	require.NoError(t, err)

	repo := new(UserRepoMock)
	repo.On("GetByID", mock.Anything, "u-1").Return(nil, errors.New("connection reset"))

	m := metrics.New()
	uc := NewAuthUsecase(repo, repository.NewMemoryAuditRepo(), security.NewHasher(cheapParams), tokens, WithMetrics(m))

	_, err = uc.ResolveSession(context.Background(), token)
	assert.Equal(t, domain.ErrUnauthenticated, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionRejects))
	repo.AssertExpectations(t)
}
