package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/foxyhub/internal/metrics"
	"github.com/example/foxyhub/internal/models"
	"github.com/example/foxyhub/internal/repository"
	"github.com/example/foxyhub/internal/utils"
)

const (
	maxPhoneLength = 15
	otpCodeLength  = 6
)

// OTPService issues and validates phone verification challenges.
type OTPService struct {
	users    repository.UserRepository
	otps     repository.OTPRepository
	sessions *SessionService
	ttl      time.Duration
	now      func() time.Time
	log      *logrus.Entry
}

func NewOTPService(users repository.UserRepository, otps repository.OTPRepository, sessions *SessionService, ttl time.Duration, log *logrus.Logger) *OTPService {
	return &OTPService{
		users:    users,
		otps:     otps,
		sessions: sessions,
		ttl:      ttl,
		now:      time.Now,
		log:      log.WithField("component", "otp"),
	}
}

// Challenge is the result of RequestChallenge. Code is the plaintext code;
// only its hash is persisted.
type Challenge struct {
	Code      string
	IsNewUser bool
	ExpiresAt time.Time
	User      *models.User
}

// Session is the result of a successful ValidateChallenge.
type Session struct {
	User   *models.User
	Tokens utils.TokenPair
}

// RequestChallenge gets or creates the user and stores a new challenge.
// Earlier challenges are left untouched; validation only ever looks at the
// newest one.
func (s *OTPService) RequestChallenge(ctx context.Context, phone string) (*Challenge, error) {
	phone, err := normalizePhone(phone)
	if err != nil {
		return nil, err
	}

	user, created, err := s.users.GetOrCreateByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("get or create user: %w", err)
	}

	code, err := generateVerificationCode()
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}
	hash, err := utils.HashSecret(code)
	if err != nil {
		return nil, fmt.Errorf("hash otp: %w", err)
	}

	challenge := &models.OTPChallenge{
		UserID:    user.ID,
		CodeHash:  hash,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.otps.Create(ctx, challenge); err != nil {
		return nil, fmt.Errorf("store otp: %w", err)
	}

	metrics.RecordOTP("issued")
	s.log.WithFields(logrus.Fields{"user_id": user.ID, "new_user": created}).Info("otp issued")

	return &Challenge{
		Code:      code,
		IsNewUser: created,
		ExpiresAt: challenge.ExpiresAt,
		User:      user,
	}, nil
}

// ValidateChallenge checks code against the newest challenge of the user.
// On success the challenge is consumed and the user marked verified before
// credentials are issued.
func (s *OTPService) ValidateChallenge(ctx context.Context, phone, code string) (*Session, error) {
	phone, err := normalizePhone(phone)
	if err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" || len(code) > otpCodeLength {
		return nil, ErrValidation.With("otp_code must be at most %d characters", otpCodeLength).
			Field("otp_code", "invalid")
	}

	user, err := s.users.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	challenge, err := s.otps.Latest(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, err
	}

	now := s.now()
	if !challenge.IsValid(now) {
		if challenge.IsUsed {
			metrics.RecordOTP("already_used")
			return nil, ErrChallengeUsed
		}
		metrics.RecordOTP("expired")
		return nil, ErrChallengeExpired
	}

	if !utils.CheckSecret(challenge.CodeHash, code) {
		metrics.RecordOTP("mismatch")
		return nil, ErrCodeMismatch
	}

	if err := s.otps.MarkUsed(ctx, challenge.ID); err != nil {
		return nil, fmt.Errorf("consume otp: %w", err)
	}
	if !user.IsVerified {
		if err := s.users.MarkVerified(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("mark verified: %w", err)
		}
		user.IsVerified = true
	}

	tokens, err := s.sessions.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}

	metrics.RecordOTP("verified")
	s.log.WithField("user_id", user.ID).Info("otp verified")

	return &Session{User: user, Tokens: tokens}, nil
}

func normalizePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", ErrValidation.With("phone_number is required").Field("phone_number", "required")
	}
	if len(phone) > maxPhoneLength {
		return "", ErrValidation.With("phone_number must be at most %d characters", maxPhoneLength).
			Field("phone_number", "too long")
	}
	return phone, nil
}

func generateVerificationCode() (string, error) {
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
