package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// LOCAL
// =============================================================================

func TestLocal_SerializesSameKey(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
		mu      sync.Mutex
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WithLock(ctx, "employee:alice", func(context.Context) error {
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, l.Len(), "entries are dropped once released")
}

func TestLocal_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	err := l.WithLock(ctx, "a", func(ctx context.Context) error {
		return l.WithLock(ctx, "b", func(context.Context) error { return nil })
	})
	require.NoError(t, err)
}

func TestLocal_ContextCancelledWhileWaiting(t *testing.T) {
	l := NewLocal()
	held := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = l.WithLock(context.Background(), "k", func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	called := false
	err := l.WithLock(ctx, "k", func(context.Context) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)
	close(release)
}

func TestLocal_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	err := NewLocal().WithLock(context.Background(), "k", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

// =============================================================================
// REDIS
// =============================================================================

func newTestRedis(t *testing.T, opts Options) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, opts, nil), mr
}

func TestRedis_WithLockRunsAndReleases(t *testing.T) {
	l, mr := newTestRedis(t, DefaultOptions())
	ctx := context.Background()

	ran := false
	err := l.WithLock(ctx, "leave:employee:alice", func(context.Context) error {
		ran = true
		assert.True(t, mr.Exists("leave:employee:alice"), "key is set while held")
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists("leave:employee:alice"), "key is removed after release")
}

func TestRedis_HeldKeyIsNotAcquired(t *testing.T) {
	l, _ := newTestRedis(t, Options{Tries: 1, RetryDelay: time.Millisecond})
	ctx := context.Background()

	err := l.WithLock(ctx, "k", func(ctx context.Context) error {
		inner := l.WithLock(ctx, "k", func(context.Context) error { return nil })
		assert.ErrorIs(t, inner, ErrNotAcquired)
		return nil
	})
	require.NoError(t, err)
}

func TestRedis_SerializesAcrossClients(t *testing.T) {
	mr := miniredis.RunT(t)
	newLock := func() *Redis {
		c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = c.Close() })
		return NewRedis(c, Options{Tries: 200, RetryDelay: 2 * time.Millisecond}, nil)
	}
	a, b := newLock(), newLock()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	body := func(context.Context) error {
		mu.Lock()
		inside++
		if inside > maxSeen {
			maxSeen = inside
		}
		mu.Unlock()
		time.Sleep(2 * time.Millisecond)
		mu.Lock()
		inside--
		mu.Unlock()
		return nil
	}
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); assert.NoError(t, a.WithLock(ctx, "unit", body)) }()
		go func() { defer wg.Done(); assert.NoError(t, b.WithLock(ctx, "unit", body)) }()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
}

func TestNewRedis_FillsDefaults(t *testing.T) {
	l, _ := newTestRedis(t, Options{})
	assert.Equal(t, DefaultOptions(), l.opts)
}
