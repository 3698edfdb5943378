package domain

import (
	"strings"
	"time"
)

// Role tiers, lowest to highest. A SUPERADMIN can never be demoted through
// the role-change flow.
const (
	RoleUser       = "USER"
	RoleAdmin      = "ADMIN"
	RoleSuperAdmin = "SUPERADMIN"
)

// Login types recorded on the security profile. Federated logins overwrite
// the tag on every callback.
const (
	LoginEmailPassword = "EMAIL_PASSWORD"
	LoginGoogle        = "GOOGLE"
	LoginGitHub        = "GITHUB"
)

// User is an account record. PasswordHash is empty for accounts provisioned
// through a federated provider; such accounts cannot password-login until a
// password is set through the reset flow. Accounts are never hard-deleted.
type User struct {
	UserID       string    `json:"id" dynamodbav:"user_id"`
	Email        string    `json:"email" dynamodbav:"email"`
	Username     string    `json:"username" dynamodbav:"username"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash"`
	Role         string    `json:"role" dynamodbav:"role"`
	IsVerified   bool      `json:"is_verified" dynamodbav:"is_verified"`
	IsActive     bool      `json:"is_active" dynamodbav:"is_active"`
	IsStaff      bool      `json:"is_staff" dynamodbav:"is_staff"`
	AvatarURL    string    `json:"avatar_url,omitempty" dynamodbav:"avatar_url"`
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time `json:"updated" dynamodbav:"updated_at"`
}

// HasUsablePassword reports whether the account can authenticate with a
// password at all.
func (u *User) HasUsablePassword() bool {
	return u.PasswordHash != ""
}

// NormalizeEmail applies the single normalization policy used at every write
// and lookup path: trim surrounding whitespace and lower-case the whole
// address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidRole reports whether role is one of the known tiers.
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=32"`
	Password string `json:"password" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
