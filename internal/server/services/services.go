package services

import (
	"github.com/dmitrijs2005/securingai/internal/server/password"
	"github.com/dmitrijs2005/securingai/internal/server/storage"
)

// Services is built once at startup and handed to the transport layer.
type Services struct {
	Password *password.Context
	User     *UserService
	Auth     *AuthService
	Storage  *storage.S3Service
}
