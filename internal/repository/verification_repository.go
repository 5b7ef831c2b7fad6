package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	verificationKeyPrefix = "verification:"
	attemptsKeyPrefix     = "verification_attempts:"
)

// VerificationRepository stores short-lived email verification codes.
type VerificationRepository interface {
	Save(ctx context.Context, username, code string, ttl time.Duration) error
	Get(ctx context.Context, username string) (string, error)
	Delete(ctx context.Context, username string) error
	// IncrementAttempts counts a check against the pending code and returns
	// the running total. The counter expires after ttl.
	IncrementAttempts(ctx context.Context, username string, ttl time.Duration) (int64, error)
}

type verificationRepository struct {
	client redis.Cmdable
}

// NewVerificationRepository returns a Redis-backed implementation. Expiry is
// delegated to the key TTL.
func NewVerificationRepository(client redis.Cmdable) VerificationRepository {
	return &verificationRepository{client: client}
}

func (r *verificationRepository) Save(ctx context.Context, username, code string, ttl time.Duration) error {
	if err := r.client.Set(ctx, verificationKey(username), code, ttl).Err(); err != nil {
		return err
	}
	return r.client.Del(ctx, attemptsKey(username)).Err()
}

func (r *verificationRepository) Get(ctx context.Context, username string) (string, error) {
	code, err := r.client.Get(ctx, verificationKey(username)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return code, nil
}

func (r *verificationRepository) Delete(ctx context.Context, username string) error {
	return r.client.Del(ctx, verificationKey(username), attemptsKey(username)).Err()
}

func (r *verificationRepository) IncrementAttempts(ctx context.Context, username string, ttl time.Duration) (int64, error) {
	key := attemptsKey(username)
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, err
		}
	}
	return n, nil
}

func verificationKey(username string) string {
	return verificationKeyPrefix + username
}

func attemptsKey(username string) string {
	return attemptsKeyPrefix + username
}
