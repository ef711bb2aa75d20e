package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Role is the RBAC role of an account. The set is closed.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleStaff     Role = "staff"
	RoleDonor     Role = "donor"
	RoleRecipient Role = "recipient"
)

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RoleStaff, RoleDonor, RoleRecipient}

// ParseRole accepts any casing ("DONOR", "donor") and rejects unknown roles.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrValidation, s)
	}
	return r, nil
}

// Valid reports whether r belongs to the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleDonor, RoleRecipient:
		return true
	default:
		return false
	}
}

// SelfService reports whether r can be chosen at public registration.
func (r Role) SelfService() bool {
	return r == RoleDonor || r == RoleRecipient
}

// BloodTypes is the accepted ABO/Rh classification.
var BloodTypes = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

// ValidBloodType reports whether bt is empty or one of BloodTypes.
func ValidBloodType(bt string) bool {
	if bt == "" {
		return true
	}
	for _, v := range BloodTypes {
		if v == bt {
			return true
		}
	}
	return false
}

// NormalizeEmail is applied before every lookup and insert.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// User represents the central identity entity of the system.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // Never expose the password hash in JSON
	Name         string     `json:"name"`
	Role         Role       `json:"role"`
	PhoneNumber  string     `json:"phoneNumber,omitempty"`
	Address      string     `json:"address,omitempty"`
	BloodType    string     `json:"bloodType,omitempty"`
	LastDonation *time.Time `json:"lastDonation,omitempty"`
	MFAEnabled   bool       `json:"mfaEnabled"`
	MFASecret    string     `json:"-"` // TOTP secret key
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// PublicUser is the only shape of a user that leaves the server.
type PublicUser struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Role         Role       `json:"role"`
	PhoneNumber  string     `json:"phoneNumber,omitempty"`
	Address      string     `json:"address,omitempty"`
	BloodType    string     `json:"bloodType,omitempty"`
	LastDonation *time.Time `json:"lastDonation,omitempty"`
	MFAEnabled   bool       `json:"mfaEnabled"`
}

// Public returns the allow-listed view of u.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Role:         u.Role,
		PhoneNumber:  u.PhoneNumber,
		Address:      u.Address,
		BloodType:    u.BloodType,
		LastDonation: u.LastDonation,
		MFAEnabled:   u.MFAEnabled,
	}
}

// ProfileUpdate carries the self-service mutable fields. Nil means unchanged.
// Email and role are deliberately absent.
type ProfileUpdate struct {
	Name         *string
	PhoneNumber  *string
	Address      *string
	BloodType    *string
	LastDonation *time.Time
}

// Apply copies the set fields onto u.
func (p ProfileUpdate) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.PhoneNumber != nil {
		u.PhoneNumber = *p.PhoneNumber
	}
	if p.Address != nil {
		u.Address = *p.Address
	}
	if p.BloodType != nil {
		u.BloodType = *p.BloodType
	}
	if p.LastDonation != nil {
		t := *p.LastDonation
		u.LastDonation = &t
	}
}

// Paging bounds for admin listings.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// UserFilter narrows an admin listing. Zero values match everything.
type UserFilter struct {
	Role     Role
	Search   string // case-insensitive substring of email or name
	Page     int    // 1-based
	PageSize int
}

// Normalize clamps paging into bounds and tidies the search term.
func (f UserFilter) Normalize() UserFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}

// Offset is the number of rows skipped before the current page.
func (f UserFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// UserPage is one page of an admin listing. Total counts every match.
type UserPage struct {
	Users    []*User
	Total    int
	Page     int
	PageSize int
}

// TotalPages is the number of pages needed for Total matches.
func (p *UserPage) TotalPages() int {
	if p.PageSize < 1 {
		return 0
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

// AdminUserUpdate is what an admin may change on another account.
// Unlike ProfileUpdate it can reassign the role.
type AdminUserUpdate struct {
	ProfileUpdate
	Role *string
}

// AuthResult defines the payload returned after a successful login or registration.
type AuthResult struct {
	User      PublicUser `json:"user"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// UserRepository defines the contract for user data persistence.
// Implementations return ErrNotFound for missing users and ErrEmailTaken
// when the store's uniqueness constraint rejects an insert.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, user *User) error
	// Update writes the mutable profile and credential columns. It never changes email or role.
	Update(ctx context.Context, user *User) error
	UpdateRole(ctx context.Context, id string, role Role) error
	// List returns one page of matches and the total match count.
	List(ctx context.Context, filter UserFilter) ([]*User, int, error)
}

// AttemptLimiter throttles login attempts per key (the normalized email).
type AttemptLimiter interface {
	// Allow reports whether another attempt for key may proceed.
	Allow(ctx context.Context, key string) (bool, error)
	// Fail records a failed attempt.
	Fail(ctx context.Context, key string) error
	// Reset clears the counter after a successful login.
	Reset(ctx context.Context, key string) error
}
