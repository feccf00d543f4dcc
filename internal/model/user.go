package model

import (
	"errors"
	"fmt"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents a row of the users table
type User struct {
	ID           int64  `db:"id_user" json:"id_user"`
	Username     string `db:"username" json:"username"`
	Email        string `db:"email" json:"email"`
	Password     string `db:"password" json:"-"` // bcrypt hash, never plaintext
	Role         Role   `db:"role" json:"role"`
	ProfileImage string `db:"profile_image" json:"profile_image"`
}

// UserSearchResult is a user row enriched with follower and public list counts
type UserSearchResult struct {
	ID               int64  `db:"id_user" json:"id_user"`
	Username         string `db:"username" json:"username"`
	ProfileImage     string `db:"profile_image" json:"profile_image"`
	FollowersNum     int64  `db:"followers_num" json:"followersNum"`
	PublicListsCount int64  `db:"public_lists_count" json:"publicListsCount"`
}

// UpdateUserFields holds the columns of a partial update. A nil field keeps the stored value.
// Password must already be hashed.
type UpdateUserFields struct {
	Username *string
	Email    *string
	Password *string
	Role     *Role
}

// RegisterRequest is the public sign-up body. Self-registered users always get RoleUser.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// CreateUserRequest represents the data needed to create a user
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Role     Role   `json:"role" validate:"omitempty,oneof=user admin"`
}

// UpdateUserRequest represents an admin edit. Omitted fields are left unchanged.
type UpdateUserRequest struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=50"`
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	Password *string `json:"new_password" validate:"omitempty,max=72"`
	Role     *Role   `json:"role" validate:"omitempty,oneof=user admin"`
}

// LoginRequest accepts either a username or an email as identifier
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

var (
	// ErrStorage is the single failure kind returned by repositories
	ErrStorage = errors.New("storage operation failed")

	// ErrUserNotFound is returned when a user cannot be found
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicate groups the uniqueness rejections
	ErrDuplicate = errors.New("already exists")

	ErrUsernameExists = fmt.Errorf("username %w", ErrDuplicate)
	ErrEmailExists    = fmt.Errorf("email %w", ErrDuplicate)

	ErrInvalidRole = errors.New("invalid role")

	// ErrMissingField is returned when a required field is blank after trimming
	ErrMissingField = errors.New("required field is empty")

	// ErrInvalidCredentials is returned when login credentials are incorrect
	ErrInvalidCredentials = errors.New("invalid credentials")
)
