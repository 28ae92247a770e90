package identity

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Field names of the account input, matching the HTTP wire names.
const (
	FieldName     = "name"
	FieldEmail    = "email"
	FieldPassword = "password"
)

// MinPasswordLength is the minimum number of characters of a password.
const MinPasswordLength = 6

var (
	// ErrInvalidCredentials is returned by Login when email and password do not match an account.
	ErrInvalidCredentials = errors.New("email and password do not match")

	// ErrUnauthenticated is returned by Resolve for unknown, revoked or expired tokens.
	ErrUnauthenticated = errors.New("unauthenticated")

	ErrOpeningStoreFailed    = errors.New("opening identity store failed")
	ErrMigratingStoreFailed  = errors.New("migrating identity store failed")
	ErrQueryingFailed        = errors.New("querying identity store failed")
	ErrExecutingFailed       = errors.New("writing identity store failed")
	ErrHashingPasswordFailed = errors.New("hashing password failed")
	ErrGeneratingTokenFailed = errors.New("generating token failed")
)

// User is a registered account.
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity is the caller resolved from a bearer token.
type Identity struct {
	UserID uuid.UUID
	Name   string
	Email  string
}

// SignUpInput is the raw account input.
type SignUpInput struct {
	Name     string
	Email    string
	Password string
}

// Credentials is the raw login input.
type Credentials struct {
	Email    string
	Password string
}

// Token is an issued bearer token. Plain is only known at issue time.
type Token struct {
	Plain     string
	UserID    uuid.UUID
	ExpiresAt *time.Time
}
