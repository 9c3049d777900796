//go:build !integration

package redis

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memClient is an in-process RedisClient; expirations are recorded, not enforced.
type memClient struct {
	mu      sync.Mutex
	data    map[string]string
	expires map[string]time.Duration
	failNX  error
}

var _ RedisClient = (*memClient)(nil)

func newMemClient() *memClient {
	return &memClient{data: map[string]string{}, expires: map[string]time.Duration{}}
}

func (m *memClient) Ping(context.Context) error { return nil }

func (m *memClient) Set(_ context.Context, key string, value interface{}, exp time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = toString(value)
	m.expires[key] = exp
	return nil
}

func (m *memClient) SetNX(_ context.Context, key string, value interface{}, exp time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNX != nil {
		return false, m.failNX
	}
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = toString(value)
	m.expires[key] = exp
	return true, nil
}

func (m *memClient) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", Nil
	}
	return v, nil
}

func (m *memClient) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := strconv.ParseInt(m.data[key], 10, 64)
	n++
	m.data[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (m *memClient) Expire(_ context.Context, key string, exp time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expires[key] = exp
	return nil
}

func (m *memClient) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memClient) CompareAndDelete(_ context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[key] != value {
		return false, nil
	}
	delete(m.data, key)
	return true, nil
}

func (m *memClient) Close() error { return nil }

func toString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	}
	return ""
}

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("should grant the lock to one holder at a time", func(t *testing.T) {
		cli := newMemClient()
		l := NewLocker(cli)
		l.backoff = time.Millisecond

		token, err := l.TryLock(ctx, "lock:usage_reset", time.Minute)
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.Equal(t, time.Minute, cli.expires["lock:usage_reset"])

		_, err = l.TryLock(ctx, "lock:usage_reset", time.Minute)
		assert.ErrorIs(t, err, ErrLockHeld)

		require.NoError(t, l.Unlock(ctx, "lock:usage_reset", token))
		_, err = l.TryLock(ctx, "lock:usage_reset", time.Minute)
		assert.NoError(t, err)
	})

	t.Run("should not release a lock taken over by someone else", func(t *testing.T) {
		cli := newMemClient()
		l := NewLocker(cli)
		require.NoError(t, cli.Set(ctx, "k", "other-token", time.Minute))

		require.NoError(t, l.Unlock(ctx, "k", "stale-token"))
		v, err := cli.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "other-token", v)
	})

	t.Run("should surface transport errors", func(t *testing.T) {
		cli := newMemClient()
		cli.failNX = errors.New("connection refused")
		l := NewLocker(cli)
		l.backoff = time.Millisecond

		_, err := l.TryLock(ctx, "k", time.Minute)
		assert.EqualError(t, err, "connection refused")
	})
}

func TestRateLimiter(t *testing.T) {
	ctx := context.Background()
	cli := newMemClient()
	rl := NewRateLimiter(cli)
	key := UserCommandKey(42, "upgrade")

	assert.Equal(t, "sheger:ratelimit:42:upgrade", key)
	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "call %d should pass", i+1)
	}
	ok, err := rl.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, cli.expires[key])
}
