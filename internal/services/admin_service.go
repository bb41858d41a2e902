package services

import (
	"errors"
	"time"

	"github.com/baharkarakas/webpool/internal/auth"
)

const RoleAdmin = "admin"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLoginDisabled      = errors.New("admin login is not configured")
)

type AdminService struct {
	tm           *auth.TokenManager
	passwordHash string
}

func NewAdminService(tm *auth.TokenManager, passwordHash string) *AdminService {
	return &AdminService{tm: tm, passwordHash: passwordHash}
}

// Login checks password against the configured bcrypt hash and issues an
// admin access token.
func (s *AdminService) Login(password string) (string, time.Time, error) {
	if s.passwordHash == "" {
		return "", time.Time{}, ErrLoginDisabled
	}
	if err := auth.VerifyPassword(password, s.passwordHash); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return s.tm.Generate(RoleAdmin, RoleAdmin)
}
