// Package common defines sentinel errors and small helpers shared by the
// service, storage and transport layers. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("record changed concurrently")

	// Service-level errors.
	ErrorUnauthorized = errors.New("unauthorized")

	// Credential errors.
	ErrorNameTaken        = errors.New("name already taken")
	ErrorPasswordMismatch = errors.New("password confirmation mismatch")

	// Session token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenRevoked = errors.New("token revoked")
)
