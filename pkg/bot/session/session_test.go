package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and a client pointing at it
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_, err := s.Get(ctx, "t1", "c1")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, s.Set(ctx, "t1", "c1", "order-1"))
	got, err := s.Get(ctx, "t1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "order-1", got)

	// other tenant, same contact id
	_, err = s.Get(ctx, "t2", "c1")
	assert.ErrorIs(t, err, ErrMiss)

	now = now.Add(2 * time.Hour)
	_, err = s.Get(ctx, "t1", "c1")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, s.Set(ctx, "t1", "c1", "order-2"))
	require.NoError(t, s.Clear(ctx, "t1", "c1"))
	_, err = s.Get(ctx, "t1", "c1")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisStore(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()
	s := NewRedisStore(client, 10*time.Minute)

	_, err := s.Get(ctx, "t1", "c1")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, s.Set(ctx, "t1", "c1", "order-1"))
	assert.True(t, mr.Exists("session:t1:c1"))
	assert.Equal(t, 10*time.Minute, mr.TTL("session:t1:c1"))

	got, err := s.Get(ctx, "t1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "order-1", got)

	mr.FastForward(11 * time.Minute)
	_, err = s.Get(ctx, "t1", "c1")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, s.Set(ctx, "t1", "c1", "order-2"))
	require.NoError(t, s.Clear(ctx, "t1", "c1"))
	assert.False(t, mr.Exists("session:t1:c1"))
}

func TestRedisStore_ConnectionError(t *testing.T) {
	client, mr := setupTestRedis(t)
	mr.Close()

	_, err := NewRedisStore(client, time.Minute).Get(context.Background(), "t1", "c1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}

func testLockerSerializes(t *testing.T, l Locker) {
	t.Helper()

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "t1:c1")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
}

func TestKeyedMutex_Serializes(t *testing.T) {
	k := NewKeyedMutex()
	testLockerSerializes(t, k)
	assert.Empty(t, k.locks)
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	k := NewKeyedMutex()
	unlockA, err := k.Lock(context.Background(), "t1:a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := k.Lock(ctx, "t1:b")
	require.NoError(t, err)
	unlockB()
}

func TestKeyedMutex_ContextCancel(t *testing.T) {
	k := NewKeyedMutex()
	unlock, err := k.Lock(context.Background(), "t1:c1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = k.Lock(ctx, "t1:c1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock() // idempotent
	assert.Empty(t, k.locks)
}

func TestRedisLocker(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := NewRedisLocker(client, 5*time.Second)
	l.retry = time.Millisecond

	testLockerSerializes(t, l)
	assert.False(t, mr.Exists("lock:t1:c1"))
}

func TestRedisLocker_Timeout(t *testing.T) {
	client, _ := setupTestRedis(t)
	l := NewRedisLocker(client, 5*time.Second)

	unlock, err := l.Lock(context.Background(), "t1:c1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "t1:c1")
	assert.ErrorIs(t, err, ErrLockTimeout)
}
