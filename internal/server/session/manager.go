// Package session issues and revokes the signed tokens that identify a
// logged-in user between requests.
package session

import (
	"sync"
	"time"

	"github.com/dmitrijs2005/securingai/internal/common"
	"github.com/dmitrijs2005/securingai/internal/server/models"
)

const tokenIDSize = 16

// Manager issues HS256 session tokens whose subject is the user's
// alternative id. Ended tokens are remembered until they would have expired
// anyway.
type Manager struct {
	secret   []byte
	validity time.Duration
	now      func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewManager(secret string, validity time.Duration) *Manager {
	return &Manager{
		secret:   []byte(secret),
		validity: validity,
		now:      time.Now,
		revoked:  make(map[string]time.Time),
	}
}

// Start issues a token for u.
func (m *Manager) Start(u *models.User) (string, error) {
	if u == nil || u.AlternativeID == "" {
		return "", common.ErrorUnauthorized
	}

	tokenID, err := common.MakeRandHexString(tokenIDSize)
	if err != nil {
		return "", err
	}

	return generateToken(u.AlternativeID, tokenID, m.secret, m.now(), m.validity)
}

// Resolve validates token and returns the alternative id it was issued for.
func (m *Manager) Resolve(token string) (string, error) {
	claims, err := parseToken(token, m.secret, m.now)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	_, revoked := m.revoked[claims.ID]
	m.mu.Unlock()
	if revoked {
		return "", common.ErrTokenRevoked
	}

	return claims.Subject, nil
}

// End revokes token. Tokens that are already invalid or expired are ignored.
func (m *Manager) End(token string) {
	claims, err := parseToken(token, m.secret, m.now)
	if err != nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.pruneLocked()
	m.revoked[claims.ID] = claims.ExpiresAt.Time
}

func (m *Manager) pruneLocked() {
	now := m.now()
	for id, exp := range m.revoked {
		if !exp.After(now) {
			delete(m.revoked, id)
		}
	}
}
