package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cvitapilot/cvitapilot/internal/models"
	"github.com/cvitapilot/cvitapilot/internal/utils"
)

type SessionRepository interface {
	Create(ctx context.Context, s *models.AuthSession) error
	Get(ctx context.Context, sessionID string) (*models.AuthSession, error)
	GetByRefreshHash(ctx context.Context, hash string) (*models.AuthSession, error)
	ListByUser(ctx context.Context, userID string) ([]*models.AuthSession, error)
	Touch(ctx context.Context, sessionID string, at time.Time) error
	Delete(ctx context.Context, sessionID string) error
	DeleteByUser(ctx context.Context, userID string) error
}

type sessionRepo struct {
	client *redis.Client
}

func NewSessionRepo(client *redis.Client) SessionRepository {
	return &sessionRepo{client: client}
}

func sessionKey(id string) string       { return fmt.Sprintf("session:%s", id) }
func refreshKey(hash string) string     { return fmt.Sprintf("refresh:%s", hash) }
func userSessionsKey(uid string) string { return fmt.Sprintf("user_sessions:%s", uid) }

func (r *sessionRepo) Create(ctx context.Context, s *models.AuthSession) error {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session already expired")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, sessionKey(s.ID), data, ttl)
	pipe.Set(ctx, refreshKey(s.RefreshHash), s.ID, ttl)
	pipe.SAdd(ctx, userSessionsKey(s.UserID), s.ID)
	// the index outlives its newest member
	pipe.Expire(ctx, userSessionsKey(s.UserID), ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *sessionRepo) Get(ctx context.Context, sessionID string) (*models.AuthSession, error) {
	data, err := r.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var s models.AuthSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepo) GetByRefreshHash(ctx context.Context, hash string) (*models.AuthSession, error) {
	id, err := r.client.Get(ctx, refreshKey(hash)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// ListByUser returns live sessions and prunes ids whose session key expired.
func (r *sessionRepo) ListByUser(ctx context.Context, userID string) ([]*models.AuthSession, error) {
	ids, err := r.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*models.AuthSession, 0, len(ids))
	var stale []any
	for _, id := range ids {
		s, err := r.Get(ctx, id)
		if errors.Is(err, utils.ErrNotFound) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if len(stale) > 0 {
		_ = r.client.SRem(ctx, userSessionsKey(userID), stale...).Err()
	}
	return out, nil
}

func (r *sessionRepo) Touch(ctx context.Context, sessionID string, at time.Time) error {
	s, err := r.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	s.LastUsedAt = at
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, sessionKey(s.ID), data, redis.KeepTTL).Err()
}

func (r *sessionRepo) Delete(ctx context.Context, sessionID string) error {
	s, err := r.Get(ctx, sessionID)
	if errors.Is(err, utils.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, sessionKey(sessionID))
	pipe.Del(ctx, refreshKey(s.RefreshHash))
	pipe.SRem(ctx, userSessionsKey(s.UserID), sessionID)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *sessionRepo) DeleteByUser(ctx context.Context, userID string) error {
	sessions, err := r.ListByUser(ctx, userID)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	for _, s := range sessions {
		pipe.Del(ctx, sessionKey(s.ID))
		pipe.Del(ctx, refreshKey(s.RefreshHash))
	}
	pipe.Del(ctx, userSessionsKey(userID))
	_, err = pipe.Exec(ctx)
	return err
}
