package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/example/foxyhub/internal/models"
	"github.com/example/foxyhub/internal/repository"
)

const telegramVerifyMessage = "🦊 <b>FoxyHub</b> verification message.\n\nYour Telegram ID has been verified successfully."

// ProfileService reads and edits the caller's own identity.
type ProfileService struct {
	users     repository.UserRepository
	messenger Messenger
	log       *logrus.Entry
}

func NewProfileService(users repository.UserRepository, messenger Messenger, log *logrus.Logger) *ProfileService {
	return &ProfileService{
		users:     users,
		messenger: messenger,
		log:       log.WithField("component", "profile"),
	}
}

func (s *ProfileService) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// Update applies the non-nil fields of upd. An email, when given, must parse
// as an address; an empty string clears it.
func (s *ProfileService) Update(ctx context.Context, userID uuid.UUID, upd repository.ProfileUpdate) (*models.User, error) {
	if upd.Email != nil {
		email := strings.TrimSpace(*upd.Email)
		if email != "" {
			if _, err := mail.ParseAddress(email); err != nil {
				return nil, ErrValidation.With("invalid email address").Field("email", "invalid")
			}
		}
		upd.Email = &email
	}
	if upd.Empty() {
		return s.Get(ctx, userID)
	}

	if err := s.users.UpdateProfile(ctx, userID, upd); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.Get(ctx, userID)
}

// SetTelegramID links a Telegram chat after the bot manages to message it.
func (s *ProfileService) SetTelegramID(ctx context.Context, userID uuid.UUID, telegramID string) (*models.User, error) {
	telegramID = strings.TrimSpace(telegramID)
	if telegramID == "" {
		return nil, ErrValidation.With("telegram_id is required").Field("telegram_id", "required")
	}
	if len(telegramID) > maxTelegramIDLength {
		return nil, ErrInvalidTelegramID.Field("telegram_id", "too long")
	}

	ok, err := s.messenger.SendMessage(ctx, telegramID, telegramVerifyMessage)
	if err != nil {
		return nil, ErrUpstream.With("could not reach Telegram").Wrap(err)
	}
	if !ok {
		return nil, ErrInvalidTelegramID.With("invalid Telegram ID or bot cannot message this user")
	}

	if err := s.users.SetTelegramID(ctx, userID, telegramID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	s.log.WithField("user_id", userID).Info("telegram id linked")
	return s.Get(ctx, userID)
}
