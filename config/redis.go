package config

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var RedisClient *redis.Client

// RedisOptions accepts either a redis:// (rediss://) URL or a bare host:port.
// Export workers block on XREADGROUP, so the read timeout must stay above the
// block interval; go-redis extends it for blocking commands.
func RedisOptions(val string) (*redis.Options, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil, errors.New("REDIS_URL (or REDIS_URI/REDIS_ADDR) environment variable is not set")
	}

	var opt *redis.Options
	if strings.HasPrefix(val, "redis://") || strings.HasPrefix(val, "rediss://") {
		parsed, err := redis.ParseURL(val)
		if err != nil {
			return nil, err
		}
		opt = parsed
	} else {
		opt = &redis.Options{Addr: val}
	}

	opt.ClientName = "cvitapilot"
	if opt.DialTimeout == 0 {
		opt.DialTimeout = 5 * time.Second
	}
	if opt.ReadTimeout == 0 {
		opt.ReadTimeout = 3 * time.Second
	}
	if opt.PoolSize == 0 {
		opt.PoolSize = 20
	}
	return opt, nil
}

// InitRedis connects the shared client used for sessions, cache, export
// stream and status pub/sub.
func InitRedis(val string) error {
	opt, err := RedisOptions(val)
	if err != nil {
		return err
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return err
	}
	RedisClient = client
	return nil
}
