package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// PasscodeStore implements ports.PasscodeStore. Each e-mail has one live
// passcode hash and an attempt counter sharing its TTL.
type PasscodeStore struct {
	client *goredis.Client
	prefix string
}

// NewPasscodeStore creates a new Redis-backed passcode store.
func NewPasscodeStore(client *goredis.Client) *PasscodeStore {
	return &PasscodeStore{
		client: client,
		prefix: "passcode:",
	}
}

func (s *PasscodeStore) hashKey(email string) string     { return s.prefix + email }
func (s *PasscodeStore) attemptsKey(email string) string { return s.prefix + email + ":attempts" }

// Save replaces any earlier passcode for email and resets its attempts.
func (s *PasscodeStore) Save(ctx context.Context, email, hash string, ttl time.Duration) error {
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.hashKey(email), hash, ttl)
		pipe.Set(ctx, s.attemptsKey(email), 0, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis passcode save: %w", err)
	}
	return nil
}

// Get returns the stored hash, or "" when none is live.
func (s *PasscodeStore) Get(ctx context.Context, email string) (string, error) {
	hash, err := s.client.Get(ctx, s.hashKey(email)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("redis passcode get: %w", err)
	}
	return hash, nil
}

// IncrAttempts counts one verification attempt and returns the total.
// INCR keeps the TTL set by Save.
func (s *PasscodeStore) IncrAttempts(ctx context.Context, email string) (int64, error) {
	n, err := s.client.Incr(ctx, s.attemptsKey(email)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis passcode attempts: %w", err)
	}
	return n, nil
}

// Delete drops the passcode and its counter.
func (s *PasscodeStore) Delete(ctx context.Context, email string) error {
	if err := s.client.Del(ctx, s.hashKey(email), s.attemptsKey(email)).Err(); err != nil {
		return fmt.Errorf("redis passcode delete: %w", err)
	}
	return nil
}
