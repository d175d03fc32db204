package users

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/securingai/internal/common"
	"github.com/dmitrijs2005/securingai/internal/server/models"
)

// InMemoryRepository keeps users in maps guarded by a single RWMutex. Every
// read-modify-write sequence runs under the write lock.
type InMemoryRepository struct {
	mu           sync.RWMutex
	byID         map[int64]*models.User
	byAltID      map[string]int64
	activeByName map[string]int64
	maxID        int64
	now          func() time.Time
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		byID:         make(map[int64]*models.User),
		byAltID:      make(map[string]int64),
		activeByName: make(map[string]int64),
		now:          time.Now,
	}
}

func (r *InMemoryRepository) Create(ctx context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.activeByName[u.Name]; taken {
		return nil, common.ErrorNameTaken
	}

	rec := u.Clone()
	rec.ID = r.maxID + 1
	rec.Deleted = false
	rec.CreatedAt = r.now()

	r.maxID = rec.ID
	r.byID[rec.ID] = rec
	r.activeByName[rec.Name] = rec.ID
	r.indexAltID(rec)

	return rec.Clone(), nil
}

func (r *InMemoryRepository) Get(ctx context.Context, id int64) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u.Clone(), nil
}

func (r *InMemoryRepository) FindActiveByName(ctx context.Context, name string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.activeByName[name]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return r.byID[id].Clone(), nil
}

func (r *InMemoryRepository) FindByAlternativeID(ctx context.Context, alternativeID string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byAltID[alternativeID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return r.byID[id].Clone(), nil
}

func (r *InMemoryRepository) UpdatePassword(ctx context.Context, id int64, expectedHash, newHash, newAlternativeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, err := r.activeLocked(id, expectedHash)
	if err != nil {
		return err
	}

	u.Password = newHash
	if newAlternativeID != "" {
		r.setAltIDLocked(u, newAlternativeID)
	}
	return nil
}

func (r *InMemoryRepository) RotateAlternativeID(ctx context.Context, id int64, newAlternativeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	r.setAltIDLocked(u, newAlternativeID)
	return nil
}

func (r *InMemoryRepository) MarkDeleted(ctx context.Context, id int64, expectedHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, err := r.activeLocked(id, expectedHash)
	if err != nil {
		return err
	}

	u.Deleted = true
	if r.activeByName[u.Name] == u.ID {
		delete(r.activeByName, u.Name)
	}
	return nil
}

func (r *InMemoryRepository) activeLocked(id int64, expectedHash string) (*models.User, error) {
	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if u.Deleted || u.Password != expectedHash {
		return nil, common.ErrorConflict
	}
	return u, nil
}

// indexAltID keeps the first owner of an alternative id on collision.
func (r *InMemoryRepository) indexAltID(u *models.User) {
	if _, exists := r.byAltID[u.AlternativeID]; !exists {
		r.byAltID[u.AlternativeID] = u.ID
	}
}

func (r *InMemoryRepository) setAltIDLocked(u *models.User, alternativeID string) {
	if r.byAltID[u.AlternativeID] == u.ID {
		delete(r.byAltID, u.AlternativeID)
	}
	u.AlternativeID = alternativeID
	r.indexAltID(u)
}
