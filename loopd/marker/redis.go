package marker

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Redis is a marker store backed by a Redis server, which lets workers on
// different machines share restart broadcasts.
type Redis struct {
	client redis.Cmdable
}

// NewRedis creates a new Redis store using the given client.
func NewRedis(client redis.Cmdable) *Redis {
	return &Redis{client}
}

// LastRestart gets the restart time of the key. A zero time is returned if the
// key is not set.
func (r *Redis) LastRestart(ctx context.Context, key string) (time.Time, error) {
	v, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, nil
		}
		return time.Time{}, errors.Wrap(err, "failed to get marker")
	}

	return parseTime(v)
}

// SetRestart sets the restart time of the key forever.
func (r *Redis) SetRestart(ctx context.Context, key string, t time.Time) error {
	if err := r.client.Set(ctx, key, formatTime(t), 0).Err(); err != nil {
		return errors.Wrap(err, "failed to set marker")
	}
	return nil
}

// RedisConfig describes how to connect to Redis.
type RedisConfig struct {
	Host           string
	Port           int
	Username       string
	Password       string
	Database       int
	TLSEnabled     bool
	ClusterEnabled bool
}

// Addr returns the host:port address.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RedisClient is a Redis client that must be closed once done.
type RedisClient interface {
	redis.Cmdable
	Close() error
}

// NewRedisClient connects to Redis and pings it.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (RedisClient, error) {
	var tlsConfig *tls.Config
	if cfg.TLSEnabled {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	var client RedisClient

	if cfg.ClusterEnabled {
		// Start with a single node; the cluster client discovers the rest.
		// The database is ignored in cluster mode.
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:     []string{cfg.Addr()},
			Username:  cfg.Username,
			Password:  cfg.Password,
			TLSConfig: tlsConfig,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:      cfg.Addr(),
			Username:  cfg.Username,
			Password:  cfg.Password,
			DB:        cfg.Database,
			TLSConfig: tlsConfig,
		})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "failed to ping redis at %s", cfg.Addr())
	}

	return client, nil
}
