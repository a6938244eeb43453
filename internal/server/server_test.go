package server

import (
	stdcontext "context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/eternalApril/actorhost/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// startServer runs a server on a random local port and returns a go-redis client for it
func startServer(t *testing.T, cfg *config.Config) *redis.Client {
	t.Helper()

	engine := newTestEngine(t, cfg)
	srv := NewServer(engine, zaptest.NewLogger(t))

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- srv.Serve(l) }()

	client := redis.NewClient(&redis.Options{
		Addr:            l.Addr().String(),
		Protocol:        2,
		DisableIdentity: true,
	})

	t.Cleanup(func() {
		client.Close() //nolint:errcheck

		ctx, cancel := stdcontext.WithTimeout(stdcontext.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, srv.Shutdown(ctx))
		assert.ErrorIs(t, <-served, ErrServerClosed)
	})

	return client
}

func TestServer_Commands(t *testing.T) {
	client := startServer(t, testConfig())
	ctx := stdcontext.Background()

	pong, err := client.Ping(ctx).Result()
	require.NoError(t, err)
	assert.Equal(t, "PONG", pong)

	id, err := client.Do(ctx, "ACTIVATE", "greeter").Text()
	require.NoError(t, err)
	assert.Equal(t, "greeter", id)

	n, err := client.Do(ctx, "EXISTS", "greeter").Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = client.Do(ctx, "IDLE", "nobody").Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(-2), n)

	settings, err := client.Do(ctx, "GCSETTINGS").Int64Slice()
	require.NoError(t, err)
	assert.Equal(t, []int64{60, 3600}, settings)

	err = client.Do(ctx, "FLUSHALL").Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")

	err = client.Do(ctx, "TOUCH").Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong number of arguments for 'touch' command")
}

func TestServer_Pipelining(t *testing.T) {
	client := startServer(t, testConfig())
	ctx := stdcontext.Background()

	count := 5_000
	pipe := client.Pipeline()
	for i := 0; i < count; i++ {
		pipe.Do(ctx, "ACTIVATE", fmt.Sprintf("actor_%d", i))
	}
	touched := make([]*redis.Cmd, count)
	for i := 0; i < count; i++ {
		touched[i] = pipe.Do(ctx, "TOUCH", fmt.Sprintf("actor_%d", i))
	}

	_, err := pipe.Exec(ctx)
	require.NoError(t, err)

	for i, c := range touched {
		n, err := c.Int64()
		require.NoError(t, err)
		assert.Equal(t, int64(1), n, "actor %d", i)
	}

	total, err := client.Do(ctx, "ACTORS").Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(count), total)
}

func TestServer_ShutdownBeforeServe(t *testing.T) {
	srv := NewServer(newTestEngine(t, testConfig()), zaptest.NewLogger(t))
	require.NoError(t, srv.Shutdown(stdcontext.Background()))

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close() //nolint:errcheck

	assert.ErrorIs(t, srv.Serve(l), ErrServerClosed)
}
