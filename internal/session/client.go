package session

import (
	"context"
	"strings"
	"time"

	"github.com/code19m/errx"
	"github.com/redis/go-redis/v9"
)

const connectTimeout = 5 * time.Second

// NewRedisClient connects to the Redis deployment described by cfg and
// verifies the connection with a ping.
func NewRedisClient(cfg Config) (redis.UniversalClient, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    strings.Split(cfg.Addrs, ","),
		Password: cfg.Password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errx.Wrap(err)
	}
	return client, nil
}
