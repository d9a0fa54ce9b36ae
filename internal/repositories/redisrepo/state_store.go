package redisrepo

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cvitapilot/cvitapilot/internal/utils"
)

type StateStore interface {
	Put(ctx context.Context, state string, ttl time.Duration) error
	// Consume reports whether the state existed and removes it.
	Consume(ctx context.Context, state string) (bool, error)
}

type stateStore struct {
	client *redis.Client
}

// NewStateStore keeps OAuth state values as one-time keys.
func NewStateStore(client *redis.Client) StateStore {
	return &stateStore{client: client}
}

func stateKey(state string) string { return "oauth_state:" + state }

func (s *stateStore) Put(ctx context.Context, state string, ttl time.Duration) error {
	return s.client.Set(ctx, stateKey(state), "1", ttl).Err()
}

func (s *stateStore) Consume(ctx context.Context, state string) (bool, error) {
	_, err := s.client.GetDel(ctx, stateKey(state)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AuthCodeStore hands an OAuth sign-in result to the front end through a
// short-lived code, so tokens never appear in a redirect URL.
type AuthCodeStore interface {
	Put(ctx context.Context, code string, payload []byte, ttl time.Duration) error
	Take(ctx context.Context, code string) ([]byte, error)
}

type authCodeStore struct {
	client *redis.Client
}

func NewAuthCodeStore(client *redis.Client) AuthCodeStore {
	return &authCodeStore{client: client}
}

func authCodeKey(code string) string { return "temp_auth:" + code }

func (s *authCodeStore) Put(ctx context.Context, code string, payload []byte, ttl time.Duration) error {
	return s.client.Set(ctx, authCodeKey(code), payload, ttl).Err()
}

// Take returns utils.ErrNotFound for unknown, used or expired codes.
func (s *authCodeStore) Take(ctx context.Context, code string) ([]byte, error) {
	b, err := s.client.GetDel(ctx, authCodeKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, utils.ErrNotFound
	}
	return b, err
}
