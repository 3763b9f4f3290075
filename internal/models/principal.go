package models

import (
	"strings"
	"time"
)

// PrincipalKind tags the two account tables that can authenticate.
type PrincipalKind string

const (
	PrincipalUser  PrincipalKind = "user"
	PrincipalAdmin PrincipalKind = "admin"
)

// ParsePrincipalKind validates a kind string.
func ParsePrincipalKind(value string) (PrincipalKind, bool) {
	switch kind := PrincipalKind(strings.ToLower(strings.TrimSpace(value))); kind {
	case PrincipalUser, PrincipalAdmin:
		return kind, true
	default:
		return "", false
	}
}

// Principal is an account that can hold a verification or reset PIN.
// *User and *Admin implement it.
type Principal interface {
	GetID() string
	Kind() PrincipalKind
	GetEmail() string
	GetName() string
	GetPinCode() string
	GetPinIssuedAt() *time.Time
	SetPinCode(code string, issuedAt time.Time)
	ClearPin()
	MarkVerified(at time.Time)
	Verified() bool
}

// Account holds the columns shared by users and admins.
type Account struct {
	Name       string     `gorm:"size:255;not null" json:"name"`
	Email      string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password   string     `gorm:"size:255" json:"-"`
	IsVerified bool       `gorm:"default:false" json:"is_verified"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`

	PinCode      *string    `gorm:"size:16" json:"-"`
	PinCreatedAt *time.Time `json:"-"`
	PinAttempts  int        `gorm:"default:0" json:"-"`

	FailedAttempts int        `gorm:"default:0" json:"-"`
	LockedUntil    *time.Time `json:"-"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
}

func (a *Account) GetEmail() string { return a.Email }

func (a *Account) GetName() string { return a.Name }

// GetPinCode returns the outstanding verification code or "".
func (a *Account) GetPinCode() string {
	if a.PinCode == nil {
		return ""
	}
	return *a.PinCode
}

func (a *Account) GetPinIssuedAt() *time.Time { return a.PinCreatedAt }

// SetPinCode stores a code together with its issue time.
func (a *Account) SetPinCode(code string, issuedAt time.Time) {
	a.PinCode = &code
	a.PinCreatedAt = &issuedAt
}

// ClearPin drops the code and its issue time together.
func (a *Account) ClearPin() {
	a.PinCode = nil
	a.PinCreatedAt = nil
	a.PinAttempts = 0
}

// MarkVerified flags the email address as confirmed.
func (a *Account) MarkVerified(at time.Time) {
	a.IsVerified = true
	a.VerifiedAt = &at
}

func (a *Account) Verified() bool { return a.IsVerified }

// Locked reports whether login is temporarily blocked.
func (a *Account) Locked(now time.Time) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(now)
}
