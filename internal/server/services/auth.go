package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/securingai/internal/common"
	"github.com/dmitrijs2005/securingai/internal/logging"
	"github.com/dmitrijs2005/securingai/internal/server/models"
)

const (
	msgLoginSuccess  = "login success"
	msgLoginFailed   = "Username or Password Error"
	msgLogoutSuccess = "logout success"
)

// SessionManager starts and ends client sessions bound to a user's
// alternative id.
type SessionManager interface {
	Start(u *models.User) (string, error)
	End(token string)
}

// AuthService manages the login/logout lifecycle.
type AuthService struct {
	users    *UserService
	sessions SessionManager
	log      logging.Logger
}

func NewAuthService(users *UserService, sessions SessionManager, log logging.Logger) *AuthService {
	return &AuthService{users: users, sessions: sessions, log: log.With("component", "auth_service")}
}

// Login checks the credentials and starts a session. Every credential
// failure produces the same 401 result.
func (s *AuthService) Login(ctx context.Context, username, password string) (*Result, string, error) {
	u, err := s.users.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.log.Info(ctx, "login failed", "name", username)
			return unauthorized(msgLoginFailed), "", nil
		}
		return nil, "", err
	}

	token, err := s.sessions.Start(u)
	if err != nil {
		return nil, "", fmt.Errorf("error starting session: %w", err)
	}

	s.log.Info(ctx, "login", "user_id", u.ID)
	return success(msgLoginSuccess), token, nil
}

// Logout ends the session identified by token. With everywhere set, the
// alternative id of current is rotated first so every other session of the
// user stops resolving too. The session is ended even if the rotation fails.
func (s *AuthService) Logout(ctx context.Context, current *models.User, token string, everywhere bool) (*Result, error) {
	var rotateErr error
	if everywhere {
		rotateErr = s.users.InvalidateSessions(ctx, current)
	}

	s.sessions.End(token)

	if rotateErr != nil {
		return nil, rotateErr
	}

	if current != nil {
		s.log.Info(ctx, "logout", "user_id", current.ID, "everywhere", everywhere)
	}
	return success(msgLogoutSuccess), nil
}
