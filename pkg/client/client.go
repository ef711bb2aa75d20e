// Package client is a Go client for the lifeline auth API together with a
// session manager that tracks whether the local user is signed in.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// User is the public profile returned by the server.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Role         string     `json:"role"`
	PhoneNumber  string     `json:"phoneNumber,omitempty"`
	Address      string     `json:"address,omitempty"`
	BloodType    string     `json:"bloodType,omitempty"`
	LastDonation *time.Time `json:"lastDonation,omitempty"`
	MFAEnabled   bool       `json:"mfaEnabled"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	User      User      `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Name        string `json:"name,omitempty"`
	Role        string `json:"role,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Address     string `json:"address,omitempty"`
	BloodType   string `json:"bloodType,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code,omitempty"`
}

// ProfileUpdate changes only the non-nil fields.
type ProfileUpdate struct {
	Name         *string    `json:"name,omitempty"`
	PhoneNumber  *string    `json:"phoneNumber,omitempty"`
	Address      *string    `json:"address,omitempty"`
	BloodType    *string    `json:"bloodType,omitempty"`
	LastDonation *time.Time `json:"lastDonation,omitempty"`
}

// ListUsersOptions filters the admin directory. Zero values are ignored.
type ListUsersOptions struct {
	Role   string
	Search string
	Page   int
}

func (o ListUsersOptions) query() string {
	q := url.Values{}
	if o.Role != "" {
		q.Set("role", o.Role)
	}
	if o.Search != "" {
		q.Set("search", o.Search)
	}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// UserPage is one page of the admin directory.
type UserPage struct {
	Users      []User `json:"users"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
	TotalPages int    `json:"totalPages"`
}

// UserUpdate is an admin edit of another account. Only non-nil fields change.
type UserUpdate struct {
	ProfileUpdate
	Role *string `json:"role,omitempty"`
}

// Client talks to the REST API. Authenticated calls carry the bearer token
// found in its TokenStore.
type Client struct {
	baseURL string
	http    *http.Client
	store   TokenStore
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func NewClient(baseURL string, store TokenStore, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		store:   store,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register creates an account. It does not touch the token store.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var out AuthResponse
	if _, err := c.do(ctx, http.MethodPost, "/v1/register", req, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a token. ErrMFARequired means the password
// was accepted and the call must be repeated with a TOTP code.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var out AuthResponse
	status, err := c.do(ctx, http.MethodPost, "/v1/login", req, &out, false)
	if err != nil {
		return nil, err
	}
	if status == http.StatusAccepted {
		return nil, ErrMFARequired
	}
	return &out, nil
}

func (c *Client) Profile(ctx context.Context) (*User, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}
	return c.profileWith(ctx, token)
}

func (c *Client) UpdateProfile(ctx context.Context, upd ProfileUpdate) (*User, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}
	return c.updateProfileWith(ctx, token, upd)
}

func (c *Client) profileWith(ctx context.Context, token string) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if _, err := c.send(ctx, http.MethodGet, "/v1/profile", nil, &out, token); err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (c *Client) updateProfileWith(ctx context.Context, token string, upd ProfileUpdate) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if _, err := c.send(ctx, http.MethodPut, "/v1/profile", upd, &out, token); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// ListUsers requires an admin or staff token.
func (c *Client) ListUsers(ctx context.Context, opts ListUsersOptions) (*UserPage, error) {
	var out UserPage
	if _, err := c.do(ctx, http.MethodGet, "/v1/admin/users"+opts.query(), nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateUser requires an admin token.
func (c *Client) UpdateUser(ctx context.Context, id string, upd UserUpdate) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if _, err := c.do(ctx, http.MethodPut, "/v1/admin/users/"+url.PathEscape(id), upd, &out, true); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// do sends the request, with the stored token when auth is set.
func (c *Client) do(ctx context.Context, method, path string, in, out any, auth bool) (int, error) {
	var token string
	if auth {
		var err error
		if token, err = c.token(); err != nil {
			return 0, err
		}
	}
	return c.send(ctx, method, path, in, out, token)
}

// token loads the stored token. An empty store is ErrUnauthorized.
func (c *Client) token() (string, error) {
	token, err := c.store.Load()
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrUnauthorized
	}
	return token, nil
}

// send performs the request, adding a bearer header when token is non-empty.
func (c *Client) send(ctx context.Context, method, path string, in, out any, token string) (int, error) {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
			apiErr.Message = payload.Error
		}
		return resp.StatusCode, apiErr
	}

	if out != nil && resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
