package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerAlwaysAcquires(t *testing.T) {
	var locker Locker = LocalLocker{}
	for i := 0; i < 2; i++ {
		ok, err := locker.Acquire(context.Background(), "k", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.NoError(t, locker.Release(context.Background(), "k"))
	assert.NoError(t, locker.Close())
}

func TestRedisLockerReportsConnectionErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	locker := NewRedisLockerFromClient(client)
	defer locker.Close()

	ok, err := locker.Acquire(context.Background(), "parkering:reminders:2025-01-08", time.Minute)
	assert.False(t, ok)
	assert.ErrorContains(t, err, "acquire lock parkering:reminders:2025-01-08")
}

func TestRedisLockerReleaseReportsConnectionErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	locker := NewRedisLockerFromClient(client)
	defer locker.Close()

	err := locker.Release(context.Background(), "parkering:reminders:2025-01-08")
	assert.ErrorContains(t, err, "release lock parkering:reminders:2025-01-08")
}
