package domain

import (
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"
)

// MaxUsernameLength is the longest username accepted.
const MaxUsernameLength = 24

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// User represents an account.
type User struct {
	Username        string    `json:"user_name" bson:"_id"`
	FullName        string    `json:"full_name" bson:"full_name"`
	Email           string    `json:"email" bson:"email"`
	Enabled         bool      `json:"enabled" bson:"enabled"`
	CurrentCustomer string    `json:"current_customer" bson:"current_customer"`
	DefaultCustomer string    `json:"default_customer" bson:"default_customer"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" bson:"updated_at"`
}

// UserPassword stores password credentials separately from the user profile.
type UserPassword struct {
	Username          string
	PasswordHash      string
	PasswordUpdatedAt time.Time
}

// UserUpdate is a partial edit of the personal settings of a user.
type UserUpdate struct {
	FullName        *string
	Email           *string
	CurrentCustomer *string
}

// IsEmpty returns true if no field is set.
func (u UserUpdate) IsEmpty() bool {
	return u.FullName == nil && u.Email == nil && u.CurrentCustomer == nil
}

// Apply copies the set fields onto user and reports whether anything changed.
func (u UserUpdate) Apply(user *User) bool {
	changed := false
	if u.FullName != nil && *u.FullName != user.FullName {
		user.FullName = *u.FullName
		changed = true
	}
	if u.Email != nil && *u.Email != user.Email {
		user.Email = *u.Email
		changed = true
	}
	if u.CurrentCustomer != nil && *u.CurrentCustomer != user.CurrentCustomer {
		user.CurrentCustomer = *u.CurrentCustomer
		changed = true
	}
	return changed
}

// UserKey names a single user property.
type UserKey string

const (
	UserKeyUsername        UserKey = "user_name"
	UserKeyFullName        UserKey = "full_name"
	UserKeyEmail           UserKey = "email"
	UserKeyEnabled         UserKey = "enabled"
	UserKeyCurrentCustomer UserKey = "current_customer"
	UserKeyDefaultCustomer UserKey = "default_customer"
)

// Property returns the value stored under key, or false for an unknown key.
func (u *User) Property(key UserKey) (any, bool) {
	switch key {
	case UserKeyUsername:
		return u.Username, true
	case UserKeyFullName:
		return u.FullName, true
	case UserKeyEmail:
		return u.Email, true
	case UserKeyEnabled:
		return u.Enabled, true
	case UserKeyCurrentCustomer:
		return u.CurrentCustomer, true
	case UserKeyDefaultCustomer:
		return u.DefaultCustomer, true
	}
	return nil, false
}

// ValidateUsername checks the length and character constraints on a username.
func ValidateUsername(username string) error {
	if username == "" || utf8.RuneCountInString(username) > MaxUsernameLength {
		return fmt.Errorf("%w: must be 1-%d characters", ErrInvalidUsername, MaxUsernameLength)
	}
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("%w: only letters, digits, '.', '_' and '-' are allowed", ErrInvalidUsername)
	}
	return nil
}
