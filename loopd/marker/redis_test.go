package marker

import (
	"context"
	"strconv"
	"testing"
	"time"

	"git.unix.lgbt/diamondburned/loopd/loopd"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedis(client), mr
}

func TestRedis(t *testing.T) {
	ctx := context.Background()

	t.Run("absent", func(t *testing.T) {
		r, _ := newTestRedis(t)

		got, err := r.LastRestart(ctx, loopd.RestartKey(""))
		require.NoError(t, err)
		assert.True(t, got.IsZero())
	})

	t.Run("forever", func(t *testing.T) {
		r, mr := newTestRedis(t)

		want := time.Unix(1591533296, 0)
		require.NoError(t, r.SetRestart(ctx, "loopd:restart", want))

		stored, err := mr.Get("loopd:restart")
		require.NoError(t, err)
		assert.Equal(t, "1591533296000000000", stored)
		assert.Equal(t, time.Duration(0), mr.TTL("loopd:restart"))

		got, err := r.LastRestart(ctx, "loopd:restart")
		require.NoError(t, err)
		assert.True(t, want.Equal(got))
	})

	t.Run("broadcast", func(t *testing.T) {
		r, _ := newTestRedis(t)

		at, err := loopd.Broadcast(ctx, r, loopd.RestartKey("mailer"))
		require.NoError(t, err)

		got, err := r.LastRestart(ctx, loopd.RestartKey("mailer"))
		require.NoError(t, err)
		assert.Equal(t, at.UnixNano(), got.UnixNano())
	})

	t.Run("malformed", func(t *testing.T) {
		r, mr := newTestRedis(t)

		require.NoError(t, mr.Set("loopd:restart", "yesterday"))

		_, err := r.LastRestart(ctx, "loopd:restart")
		assert.Error(t, err)
	})

	t.Run("unavailable", func(t *testing.T) {
		r, mr := newTestRedis(t)
		mr.Close()

		_, err := r.LastRestart(ctx, "loopd:restart")
		assert.Error(t, err)
	})
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	client, err := NewRedisClient(context.Background(), RedisConfig{
		Host: mr.Host(),
		Port: port,
	})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, NewRedis(client).SetRestart(context.Background(), "k", time.Unix(1, 0)))
	assert.True(t, mr.Exists("k"))

	mr.RequireAuth("hunter2")

	_, err = NewRedisClient(context.Background(), RedisConfig{
		Host: mr.Host(),
		Port: port,
	})
	assert.Error(t, err)
}
