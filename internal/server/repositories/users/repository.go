// Package users stores user records keyed by numeric id, with secondary
// lookups by active name and by alternative id.
package users

import (
	"context"

	"github.com/dmitrijs2005/securingai/internal/server/models"
)

// Repository is the user store. Implementations hand out copies, never
// pointers into their own state.
//
// Mutations that depend on a previously read password digest take that
// digest as expectedHash and fail with common.ErrorConflict if the stored
// record changed in between, so a check made against a stale read can never
// be applied.
type Repository interface {
	// Create assigns id = max(existing ids)+1 and inserts u as a single
	// atomic step. It fails with common.ErrorNameTaken when a non-deleted
	// user already holds u.Name.
	Create(ctx context.Context, u *models.User) (*models.User, error)
	Get(ctx context.Context, id int64) (*models.User, error)
	FindActiveByName(ctx context.Context, name string) (*models.User, error)
	FindByAlternativeID(ctx context.Context, alternativeID string) (*models.User, error)
	// UpdatePassword replaces the digest and, when newAlternativeID is not
	// empty, the alternative id.
	UpdatePassword(ctx context.Context, id int64, expectedHash, newHash, newAlternativeID string) error
	RotateAlternativeID(ctx context.Context, id int64, newAlternativeID string) error
	MarkDeleted(ctx context.Context, id int64, expectedHash string) error
}
