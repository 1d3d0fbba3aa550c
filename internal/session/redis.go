package session

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/code19m/errx"
	"github.com/redis/go-redis/v9"
	"github.com/rise-and-shine/filevault/pkg/token"
)

// keyPrefix namespaces session keys in the shared Redis keyspace.
const keyPrefix = "auth_"

// RedisStore is a session Store backed by Redis string keys with TTL.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore creates a session store on top of the given Redis client.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

// Config defines the configuration options for the Redis session store.
type Config struct {
	// Addrs is the list of Redis server addresses in the format "host:port,host2:port2".
	Addrs string `yaml:"addrs" validate:"required"`

	// Password is the password for the Redis server/cluster.
	Password string `yaml:"password"`

	// TokenTTL is how long a minted session token stays valid. Default is 24 hours.
	TokenTTL time.Duration `yaml:"token_ttl" default:"24h"`
}

func (s *RedisStore) Create(ctx context.Context, userID int64, ttl time.Duration) (string, error) {
	t := token.NewOpaqueToken()

	err := s.client.Set(ctx, keyPrefix+t, strconv.FormatInt(userID, 10), ttl).Err()
	if err != nil {
		return "", errx.Wrap(err)
	}

	return t, nil
}

func (s *RedisStore) Resolve(ctx context.Context, tok string) (int64, error) {
	raw, err := s.client.Get(ctx, keyPrefix+tok).Result()
	if errors.Is(err, redis.Nil) {
		return 0, invalidTokenError()
	}
	if err != nil {
		return 0, errx.Wrap(err)
	}

	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errx.Wrap(err)
	}

	return userID, nil
}

func (s *RedisStore) Destroy(ctx context.Context, tok string) error {
	deleted, err := s.client.Del(ctx, keyPrefix+tok).Result()
	if err != nil {
		return errx.Wrap(err)
	}
	if deleted == 0 {
		return invalidTokenError()
	}
	return nil
}

func invalidTokenError() error {
	return errx.New(
		"Unauthorized",
		errx.WithCode(CodeInvalidToken),
		errx.WithType(errx.T_Authentication),
	)
}
