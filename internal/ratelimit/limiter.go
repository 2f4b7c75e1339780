package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrQuotaExhausted means the mailbox used up its daily send quota. Waiting
// will not help until the next UTC day.
var ErrQuotaExhausted = errors.New("daily send quota exhausted")

// RateLimiter bounds send throughput per mailbox.
type RateLimiter interface {
	// Allow reports whether one send may start now. It returns
	// ErrQuotaExhausted once the daily quota is spent.
	Allow(ctx context.Context, mailbox string) (bool, error)
	// Wait blocks until a send may start, ctx is done or the daily quota is
	// spent.
	Wait(ctx context.Context, mailbox string) error
}

// Locker grants short-lived exclusive leases on a key across processes.
type Locker interface {
	// TryLock returns a release func when the lease was acquired and nil
	// when another holder owns it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}
