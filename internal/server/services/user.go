// Package services contains server-side business logic. This file implements
// UserService, which owns registration, credential checks, password changes
// and soft deletion on top of the user repository and the password hasher.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/securingai/internal/common"
	"github.com/dmitrijs2005/securingai/internal/logging"
	"github.com/dmitrijs2005/securingai/internal/server/models"
	"github.com/dmitrijs2005/securingai/internal/server/repositories/users"
	"github.com/google/uuid"
)

const (
	msgRegistered         = "User %s registration successful"
	msgPasswordMismatch   = "The password and confirmation password did not match."
	msgNameUnavailable    = "The username %s is not available."
	msgPasswordChanged    = "Password Change Successful"
	msgPasswordNotChanged = "Password Change Failed"
	msgUserDeleted        = "Current user deleted successfully."
	msgUserNotDeleted     = "Unable to delete current user, password check failed."
)

// PasswordHasher hashes and verifies self-describing password digests.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) bool
	NeedsUpdate(digest string) bool
}

// UserService implements the self-service account operations. The caller
// always passes the acting user explicitly.
type UserService struct {
	users  users.Repository
	hasher PasswordHasher
	log    logging.Logger

	newAlternativeID func() (string, error)

	dummyOnce   sync.Once
	dummyDigest string
}

func NewUserService(repo users.Repository, hasher PasswordHasher, log logging.Logger) *UserService {
	return &UserService{
		users:            repo,
		hasher:           hasher,
		log:              log.With("component", "user_service"),
		newAlternativeID: newAlternativeID,
	}
}

// newAlternativeID returns 32 hex characters of a random UUID.
func newAlternativeID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(id.String(), "-", ""), nil
}

// Register creates a user. Mismatched confirmation and a name held by a
// non-deleted user are reported as 403 results.
func (s *UserService) Register(ctx context.Context, name, password, confirmPassword string) (*Result, error) {
	if password != confirmPassword {
		return forbidden(msgPasswordMismatch), nil
	}

	if _, err := s.users.FindActiveByName(ctx, name); err == nil {
		return forbidden(fmt.Sprintf(msgNameUnavailable, name)), nil
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error checking name: %w", err)
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	alt, err := s.newAlternativeID()
	if err != nil {
		return nil, fmt.Errorf("error generating alternative id: %w", err)
	}

	u, err := s.users.Create(ctx, &models.User{Name: name, AlternativeID: alt, Password: digest})
	if err != nil {
		if errors.Is(err, common.ErrorNameTaken) {
			return forbidden(fmt.Sprintf(msgNameUnavailable, name)), nil
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.log.Info(ctx, "user registered", "user_id", u.ID, "name", u.Name)
	return success(fmt.Sprintf(msgRegistered, name)), nil
}

// Authenticate returns the non-deleted user called name if password
// verifies. Unknown names and wrong passwords both yield
// common.ErrorNotFound.
//
// A digest produced by a scheme other than the current default is
// transparently re-hashed; failing to do so does not fail the login.
func (s *UserService) Authenticate(ctx context.Context, name, password string) (*models.User, error) {
	u, err := s.users.FindActiveByName(ctx, name)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.burnVerify(password)
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error finding user: %w", err)
	}

	if !s.hasher.Verify(password, u.Password) {
		return nil, common.ErrorNotFound
	}

	if s.hasher.NeedsUpdate(u.Password) {
		s.upgradeHash(ctx, u, password)
	}

	return u, nil
}

// ChangePassword replaces the password of current and rotates its
// alternative id, which invalidates every session issued before.
func (s *UserService) ChangePassword(ctx context.Context, current *models.User, currentPassword, newPassword string) (*Result, error) {
	u, ok, err := s.reverify(ctx, current, currentPassword)
	if err != nil {
		return nil, err
	}
	if !ok {
		return forbidden(msgPasswordNotChanged), nil
	}

	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	alt, err := s.newAlternativeID()
	if err != nil {
		return nil, fmt.Errorf("error generating alternative id: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, u.ID, u.Password, digest, alt); err != nil {
		if errors.Is(err, common.ErrorConflict) || errors.Is(err, common.ErrorNotFound) {
			return forbidden(msgPasswordNotChanged), nil
		}
		return nil, fmt.Errorf("error updating password: %w", err)
	}

	s.log.Info(ctx, "password changed", "user_id", u.ID)
	return success(msgPasswordChanged), nil
}

// DeleteCurrentUser soft-deletes current after re-checking its password.
func (s *UserService) DeleteCurrentUser(ctx context.Context, current *models.User, password string) (*Result, error) {
	u, ok, err := s.reverify(ctx, current, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return forbidden(msgUserNotDeleted), nil
	}

	if err := s.users.MarkDeleted(ctx, u.ID, u.Password); err != nil {
		if errors.Is(err, common.ErrorConflict) || errors.Is(err, common.ErrorNotFound) {
			return forbidden(msgUserNotDeleted), nil
		}
		return nil, fmt.Errorf("error deleting user: %w", err)
	}

	s.log.Info(ctx, "user deleted", "user_id", u.ID, "name", u.Name)
	return success(msgUserDeleted), nil
}

// LoadBySessionID returns the user currently holding alternativeID. The
// record is returned even when it is soft-deleted; callers decide whether
// that is acceptable.
func (s *UserService) LoadBySessionID(ctx context.Context, alternativeID string) (*models.User, error) {
	if alternativeID == "" {
		return nil, common.ErrorNotFound
	}
	u, err := s.users.FindByAlternativeID(ctx, alternativeID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error loading session user: %w", err)
	}
	return u, nil
}

// InvalidateSessions gives current a fresh alternative id.
func (s *UserService) InvalidateSessions(ctx context.Context, current *models.User) error {
	if current == nil {
		return common.ErrorUnauthorized
	}

	alt, err := s.newAlternativeID()
	if err != nil {
		return fmt.Errorf("error generating alternative id: %w", err)
	}

	if err := s.users.RotateAlternativeID(ctx, current.ID, alt); err != nil {
		return fmt.Errorf("error rotating alternative id: %w", err)
	}

	s.log.Info(ctx, "sessions invalidated", "user_id", current.ID)
	return nil
}

// reverify reloads current from the store and checks password against the
// stored digest. ok is false for unknown, deleted or wrong-password cases.
func (s *UserService) reverify(ctx context.Context, current *models.User, password string) (u *models.User, ok bool, err error) {
	if current == nil {
		return nil, false, nil
	}

	u, err = s.users.Get(ctx, current.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("error loading user: %w", err)
	}

	if u.Deleted || !s.hasher.Verify(password, u.Password) {
		return u, false, nil
	}

	return u, true, nil
}

func (s *UserService) upgradeHash(ctx context.Context, u *models.User, password string) {
	digest, err := s.hasher.Hash(password)
	if err != nil {
		s.log.Warn(ctx, "password rehash failed", "user_id", u.ID, "error", err)
		return
	}

	if err := s.users.UpdatePassword(ctx, u.ID, u.Password, digest, ""); err != nil {
		s.log.Warn(ctx, "password rehash not stored", "user_id", u.ID, "error", err)
		return
	}

	u.Password = digest
	s.log.Debug(ctx, "password rehashed", "user_id", u.ID)
}

// burnVerify spends roughly the cost of a real verification so that unknown
// names cannot be told apart from wrong passwords by timing.
func (s *UserService) burnVerify(password string) {
	s.dummyOnce.Do(func() {
		digest, err := s.hasher.Hash("dummy-password")
		if err == nil {
			s.dummyDigest = digest
		}
	})
	if s.dummyDigest != "" {
		s.hasher.Verify(password, s.dummyDigest)
	}
}
