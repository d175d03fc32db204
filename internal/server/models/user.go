// Package models defines the records shared by the repositories and services.
package models

import "time"

// User is a registered account. Password holds a self-describing digest,
// never the plaintext. Deleted rows are kept for history and are excluded
// from name uniqueness and authentication.
type User struct {
	ID            int64
	AlternativeID string
	Name          string
	Password      string
	Deleted       bool
	CreatedAt     time.Time
}

// Clone returns a copy that can be handed out without sharing state with
// the store.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
