package cache

import (
	"context"
	"time"
)

type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// CVKey is the cache key of a full CV aggregate.
func CVKey(cvID string) string { return "cv:" + cvID }

// Nop never hits; used when no Redis is configured (CLI, tests).
type Nop struct{}

func (Nop) GetJSON(context.Context, string, any) (bool, error)        { return false, nil }
func (Nop) SetJSON(context.Context, string, any, time.Duration) error { return nil }
func (Nop) Del(context.Context, ...string) error                      { return nil }
