package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestWithLock_RunsAndReleases(t *testing.T) {
	mr, client := setupTestRedis(t)
	locker := NewRedisLocker(client, 5*time.Second, 50*time.Millisecond)
	key := SlotKey(uuid.New(), time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))

	ran := false
	err := locker.WithLock(context.Background(), key, func(ctx context.Context) error {
		ran = true
		assert.True(t, mr.Exists("lock:"+key))
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists("lock:"+key))
}

func TestWithLock_Contended(t *testing.T) {
	_, client := setupTestRedis(t)
	locker := NewRedisLocker(client, 5*time.Second, 50*time.Millisecond)
	key := SlotKey(uuid.New(), time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))

	err := locker.WithLock(context.Background(), key, func(ctx context.Context) error {
		return locker.WithLock(ctx, key, func(context.Context) error {
			t.Fatal("nested critical section must not run")
			return nil
		})
	})

	assert.ErrorIs(t, err, ErrLockNotAcquired)
}

func TestWithLock_WaitsForRelease(t *testing.T) {
	mr, client := setupTestRedis(t)
	locker := NewRedisLocker(client, 5*time.Second, time.Second)
	require.NoError(t, mr.Set("lock:k", "other-holder"))

	go func() {
		time.Sleep(30 * time.Millisecond)
		mr.Del("lock:k")
	}()

	ran := false
	err := locker.WithLock(context.Background(), "k", func(context.Context) error {
		ran = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
}

func TestWithLock_GivesUpAfterWait(t *testing.T) {
	mr, client := setupTestRedis(t)
	locker := NewRedisLocker(client, 5*time.Second, 40*time.Millisecond)
	require.NoError(t, mr.Set("lock:k", "other-holder"))

	start := time.Now()
	err := locker.WithLock(context.Background(), "k", func(context.Context) error {
		t.Fatal("critical section must not run while the lock is held")
		return nil
	})

	assert.ErrorIs(t, err, ErrLockNotAcquired)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestSlotKey_SharesBucket(t *testing.T) {
	pro := uuid.New()
	bucket := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, SlotKey(pro, bucket), SlotKey(pro, bucket.In(time.FixedZone("x", 3600))))
	assert.NotEqual(t, SlotKey(pro, bucket), SlotKey(pro, bucket.Add(30*time.Minute)))
	assert.NotEqual(t, SlotKey(pro, bucket), SlotKey(uuid.New(), bucket))
}

func TestWithLock_PropagatesError(t *testing.T) {
	mr, client := setupTestRedis(t)
	locker := NewRedisLocker(client, 5*time.Second, 50*time.Millisecond)
	boom := errors.New("boom")

	err := locker.WithLock(context.Background(), "k", func(context.Context) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("lock:k"))
}

func TestWithLock_DoesNotReleaseForeignToken(t *testing.T) {
	mr, client := setupTestRedis(t)
	locker := NewRedisLocker(client, 5*time.Second, 50*time.Millisecond)

	err := locker.WithLock(context.Background(), "k", func(context.Context) error {
		// another holder took over after our TTL ran out
		require.NoError(t, mr.Set("lock:k", "someone-else"))
		return nil
	})

	require.NoError(t, err)
	got, err := mr.Get("lock:k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestNewRedisClient_Ping(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), Options{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	addr := mr.Addr()
	mr.Close()
	_, err = NewRedisClient(context.Background(), Options{Addr: addr, Timeout: 100 * time.Millisecond})
	assert.Error(t, err)
}
