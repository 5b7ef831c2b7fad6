package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/picktime/picktime-api/internal/domain"
	"github.com/picktime/picktime-api/internal/events"
	"github.com/picktime/picktime-api/internal/repository"
)

const (
	verificationCodeSpace = 10000
	// maxVerificationAttempts caps checks against one pending code.
	maxVerificationAttempts = 5
)

// VerificationService issues and checks email verification codes.
type VerificationService struct {
	users      repository.UserRepository
	codes      repository.VerificationRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	ttl        time.Duration
	now        func() time.Time
}

// NewVerificationService constructs the service.
func NewVerificationService(users repository.UserRepository, codes repository.VerificationRepository, dispatcher events.Dispatcher, logger *zap.Logger, ttl time.Duration) *VerificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerificationService{
		users:      users,
		codes:      codes,
		dispatcher: dispatcher,
		logger:     logger,
		ttl:        ttl,
		now:        time.Now,
	}
}

// RequestCode stores a fresh code for username, replacing any pending one,
// and publishes it for delivery.
func (s *VerificationService) RequestCode(ctx context.Context, username string) (*domain.Verification, error) {
	exists, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	code, err := newVerificationCode()
	if err != nil {
		return nil, err
	}
	if err := s.codes.Save(ctx, username, code, s.ttl); err != nil {
		return nil, fmt.Errorf("save verification code: %w", err)
	}

	v := &domain.Verification{Username: username, Code: code, ExpiresAt: s.now().Add(s.ttl)}
	if s.dispatcher != nil {
		event := events.New(events.EventVerificationRequested, 0, events.VerificationRequestedPayload{
			Username:  v.Username,
			Code:      v.Code,
			ExpiresAt: v.ExpiresAt,
		})
		if err := s.dispatcher.Publish(ctx, event); err != nil {
			s.logger.Warn("verification delivery failed", zap.String("username", username), zap.Error(err))
		}
	}
	return v, nil
}

// Check consumes the pending code for username when it matches. After
// maxVerificationAttempts checks the code is discarded and a new one must be
// requested.
func (s *VerificationService) Check(ctx context.Context, username, code string) error {
	stored, err := s.codes.Get(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrVerificationFailed
	}
	if err != nil {
		return err
	}

	attempts, err := s.codes.IncrementAttempts(ctx, username, s.ttl)
	if err != nil {
		return fmt.Errorf("count verification attempt: %w", err)
	}
	if attempts > maxVerificationAttempts {
		if err := s.codes.Delete(ctx, username); err != nil {
			return fmt.Errorf("delete verification code: %w", err)
		}
		s.logger.Warn("verification attempts exhausted", zap.String("username", username))
		return ErrVerificationFailed
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return ErrVerificationFailed
	}
	if err := s.codes.Delete(ctx, username); err != nil {
		return fmt.Errorf("delete verification code: %w", err)
	}
	return nil
}

func newVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(verificationCodeSpace))
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}
