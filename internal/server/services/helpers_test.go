package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/securingai/internal/logging"
	"github.com/dmitrijs2005/securingai/internal/server/models"
	"github.com/dmitrijs2005/securingai/internal/server/password"
	"github.com/dmitrijs2005/securingai/internal/server/repositories/users"
	"github.com/dmitrijs2005/securingai/internal/server/session"
	"github.com/stretchr/testify/require"
)

func newHasher(t *testing.T) *password.Context {
	t.Helper()
	c, err := password.NewContext(password.SchemePBKDF2SHA256, password.NewPBKDF2SHA256(1000))
	require.NoError(t, err)
	return c
}

type fixture struct {
	repo     *users.InMemoryRepository
	hasher   *password.Context
	sessions *session.Manager
	users    *UserService
	auth     *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:     users.NewInMemoryRepository(),
		hasher:   newHasher(t),
		sessions: session.NewManager("test-secret", time.Hour),
	}
	f.users = NewUserService(f.repo, f.hasher, logging.Nop())
	f.auth = NewAuthService(f.users, f.sessions, logging.Nop())
	return f
}

func (f *fixture) register(t *testing.T, name, pw string) *models.User {
	t.Helper()
	res, err := f.users.Register(context.Background(), name, pw, pw)
	require.NoError(t, err)
	require.True(t, res.OK(), res.Message)

	u, err := f.repo.FindActiveByName(context.Background(), name)
	require.NoError(t, err)
	return u
}
