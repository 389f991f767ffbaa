package cache

import (
	"context"
	"time"
)

// Locker hands out best-effort, expiring locks shared between instances.
type Locker interface {
	// Acquire takes key for ttl. It reports false when another holder has it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release gives key up before its ttl runs out.
	Release(ctx context.Context, key string) error
	Close() error
}

// LocalLocker is used when no Redis is configured: every Acquire succeeds, so with
// several instances each of them runs the guarded work.
type LocalLocker struct{}

func (LocalLocker) Acquire(context.Context, string, time.Duration) (bool, error) { return true, nil }

func (LocalLocker) Release(context.Context, string) error { return nil }

func (LocalLocker) Close() error { return nil }
