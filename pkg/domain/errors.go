package domain

import "errors"

// Lookup errors
var (
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrGroupNotFound      = errors.New("group not found")
	ErrMembershipNotFound = errors.New("membership not found")
)

// Uniqueness errors
var (
	ErrCustomerAlreadyExists = errors.New("customer already exists")
	ErrUserAlreadyExists     = errors.New("user already exists")
	ErrGroupAlreadyExists    = errors.New("group already exists")
)

// Integrity errors
var (
	ErrCustomerHasUsers = errors.New("customer still has users")
)

// Authentication errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserDisabled       = errors.New("user is disabled")
	ErrInvalidToken       = errors.New("invalid token")
)

// Validation errors
var (
	ErrInvalidCustomerName = errors.New("invalid customer name")
	ErrInvalidUsername     = errors.New("invalid username format")
	ErrInvalidEmail        = errors.New("invalid email address")
	ErrWeakPassword        = errors.New("password does not meet requirements")
	ErrInvalidCPUThrottle  = errors.New("invalid cpu throttle")
	ErrInvalidNetThrottle  = errors.New("net throttle must not be negative")
	ErrInvalidQueueTTL     = errors.New("queue ttl must be positive")
	ErrInvalidPermission   = errors.New("invalid permission")
)
