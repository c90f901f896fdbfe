package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var Client *redis.Client

// InitRedis connects the shared client. On a failed ping Client stays nil and
// the error is returned so callers can run without a cache.
func InitRedis(ctx context.Context, addr string) error {
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	Client = client
	log.Info().Str("addr", addr).Msg("connected to redis")
	return nil
}
