package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/example/foxyhub/internal/utils"
)

// SessionService issues and refreshes JWT credential pairs.
type SessionService struct {
	secret     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewSessionService(secret string, accessTTL, refreshTTL time.Duration) *SessionService {
	return &SessionService{secret: secret, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// Issue returns a fresh access and refresh token for the user.
func (s *SessionService) Issue(userID uuid.UUID) (utils.TokenPair, error) {
	access, err := utils.GenerateToken(s.secret, userID, utils.TokenTypeAccess, s.accessTTL)
	if err != nil {
		return utils.TokenPair{}, err
	}
	refresh, err := utils.GenerateToken(s.secret, userID, utils.TokenTypeRefresh, s.refreshTTL)
	if err != nil {
		return utils.TokenPair{}, err
	}
	return utils.TokenPair{Access: access, Refresh: refresh}, nil
}

// Refresh exchanges a valid refresh token for a new access token.
func (s *SessionService) Refresh(refreshToken string) (string, error) {
	userID, err := utils.ParseToken(s.secret, refreshToken, utils.TokenTypeRefresh)
	if err != nil {
		return "", ErrInvalidToken.Wrap(err)
	}
	return utils.GenerateToken(s.secret, userID, utils.TokenTypeAccess, s.accessTTL)
}

// Authenticate resolves the user of an access token.
func (s *SessionService) Authenticate(accessToken string) (uuid.UUID, error) {
	userID, err := utils.ParseToken(s.secret, accessToken, utils.TokenTypeAccess)
	if err != nil {
		return uuid.Nil, ErrInvalidToken.Wrap(err)
	}
	return userID, nil
}
