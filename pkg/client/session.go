package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// State is the local view of whether the user is signed in.
type State int

const (
	// StateLoading means the stored token has not been checked yet.
	StateLoading State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// StateChange is delivered to subscribers on every transition.
type StateChange struct {
	From State
	To   State
	User *User
}

// Session tracks the signed-in user across restarts. It starts in
// StateLoading and settles once Restore has checked the stored token.
type Session struct {
	client *Client
	store  TokenStore
	now    func() time.Time

	mu      sync.Mutex
	state   State
	user    *User
	subs    map[int]chan StateChange
	nextSub int

	ready     chan struct{}
	readyOnce sync.Once
}

// SessionOption customises a Session.
type SessionOption func(*Session)

// WithSessionClock overrides the clock used for the local expiry check.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// NewSession builds a session over c, sharing its token store.
func NewSession(c *Client, opts ...SessionOption) *Session {
	s := &Session{
		client: c,
		store:  c.store,
		now:    time.Now,
		state:  StateLoading,
		subs:   make(map[int]chan StateChange),
		ready:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// User returns the signed-in user, or nil.
func (s *Session) User() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Restore checks the stored token. A token whose exp has passed is dropped
// without asking the server; otherwise the profile is fetched with it.
// A transport error leaves the token in place and the session unauthenticated.
// If the session settled while the check was in flight, for example because
// Login completed first, Restore leaves it alone and returns ErrInvalidTransition.
func (s *Session) Restore(ctx context.Context) error {
	if s.State() != StateLoading {
		return ErrInvalidTransition
	}

	token, err := s.store.Load()
	if err != nil {
		if settleErr := s.settle(StateUnauthenticated, nil, ""); settleErr != nil {
			return settleErr
		}
		return err
	}
	if token == "" {
		return s.settle(StateUnauthenticated, nil, "")
	}
	if s.expired(token) {
		return s.settle(StateUnauthenticated, nil, token)
	}

	user, err := s.client.profileWith(ctx, token)
	switch {
	case err == nil:
		return s.settle(StateAuthenticated, user, "")
	case errors.Is(err, ErrUnauthorized):
		return s.settle(StateUnauthenticated, nil, token)
	default:
		if settleErr := s.settle(StateUnauthenticated, nil, ""); settleErr != nil {
			return settleErr
		}
		return err
	}
}

// settle leaves StateLoading. A non-empty drop is cleared from the store
// only if it is still the stored token.
func (s *Session) settle(to State, user *User, drop string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateLoading {
		return ErrInvalidTransition
	}
	var clearErr error
	if drop != "" {
		clearErr = s.clearIfStored(drop)
	}
	return errors.Join(s.transitionLocked(to, user), clearErr)
}

// Wait blocks until the initial state is known.
func (s *Session) Wait(ctx context.Context) (State, error) {
	select {
	case <-s.ready:
		return s.State(), nil
	case <-ctx.Done():
		return StateLoading, ctx.Err()
	}
}

// Login signs in and stores the token. It fails with ErrInvalidTransition
// when a user is already signed in.
func (s *Session) Login(ctx context.Context, req LoginRequest) (*User, error) {
	if s.State() == StateAuthenticated {
		return nil, ErrInvalidTransition
	}
	resp, err := s.client.Login(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.signIn(resp)
}

// Register creates an account and signs it in.
func (s *Session) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if s.State() == StateAuthenticated {
		return nil, ErrInvalidTransition
	}
	resp, err := s.client.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.signIn(resp)
}

// signIn stores the token and transitions in one critical section, so a
// concurrent sign-in cannot overwrite a token the session already reports.
func (s *Session) signIn(resp *AuthResponse) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !allowed(s.state, StateAuthenticated) {
		return nil, ErrInvalidTransition
	}
	if err := s.store.Save(resp.Token); err != nil {
		return nil, err
	}
	user := resp.User
	if err := s.transitionLocked(StateAuthenticated, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout forgets the token. Tokens are stateless, so the server is not contacted.
func (s *Session) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !allowed(s.state, StateUnauthenticated) {
		return ErrInvalidTransition
	}
	clearErr := s.store.Clear()
	if err := s.transitionLocked(StateUnauthenticated, nil); err != nil {
		return err
	}
	return clearErr
}

// Profile fetches the signed-in user's profile. A 401 ends the session,
// unless the token has been replaced since the request was sent.
func (s *Session) Profile(ctx context.Context) (*User, error) {
	token, err := s.client.token()
	if err != nil {
		return nil, err
	}
	user, err := s.client.profileWith(ctx, token)
	if err != nil {
		s.handleAuthError(token, err)
		return nil, err
	}
	s.setUser(token, user)
	return user, nil
}

// UpdateProfile changes the signed-in user's profile. A 401 ends the session,
// unless the token has been replaced since the request was sent.
func (s *Session) UpdateProfile(ctx context.Context, upd ProfileUpdate) (*User, error) {
	token, err := s.client.token()
	if err != nil {
		return nil, err
	}
	user, err := s.client.updateProfileWith(ctx, token, upd)
	if err != nil {
		s.handleAuthError(token, err)
		return nil, err
	}
	s.setUser(token, user)
	return user, nil
}

// Subscribe returns a channel of state changes and a function that cancels
// the subscription. Slow subscribers miss changes rather than block the session.
func (s *Session) Subscribe() (<-chan StateChange, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan StateChange, 8)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

// handleAuthError ends the session after a 401 for token, if token is
// still the one the session holds.
func (s *Session) handleAuthError(token string, err error) {
	if !errors.Is(err, ErrUnauthorized) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAuthenticated {
		return
	}
	if stored, loadErr := s.store.Load(); loadErr != nil || stored != token {
		return
	}
	_ = s.store.Clear()
	_ = s.transitionLocked(StateUnauthenticated, nil)
}

// setUser records u if it was fetched with the token still in use.
func (s *Session) setUser(token string, u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAuthenticated {
		return
	}
	if stored, err := s.store.Load(); err != nil || stored != token {
		return
	}
	cp := *u
	s.user = &cp
}

// clearIfStored removes token from the store unless it has been replaced.
// The caller holds s.mu.
func (s *Session) clearIfStored(token string) error {
	stored, err := s.store.Load()
	if err != nil {
		return err
	}
	if stored != token {
		return nil
	}
	return s.store.Clear()
}

// transitionLocked moves to the next state and notifies subscribers.
// The caller holds s.mu.
func (s *Session) transitionLocked(to State, user *User) error {
	from := s.state
	if !allowed(from, to) {
		return ErrInvalidTransition
	}
	s.state = to
	s.user = user

	change := StateChange{From: from, To: to, User: user}
	for _, ch := range s.subs {
		select {
		case ch <- change:
		default:
		}
	}
	if from == StateLoading {
		s.readyOnce.Do(func() { close(s.ready) })
	}
	return nil
}

func allowed(from, to State) bool {
	switch from {
	case StateLoading:
		return to == StateAuthenticated || to == StateUnauthenticated
	case StateAuthenticated:
		return to == StateUnauthenticated
	case StateUnauthenticated:
		return to == StateAuthenticated
	default:
		return false
	}
}

// expired reads exp without verifying the signature; the server still verifies.
func (s *Session) expired(token string) bool {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !s.now().Before(claims.ExpiresAt.Time)
}
