package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/drip-engine/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultSendsPerSecond = 5
	backoffStep           = 25 * time.Millisecond
	backoffMax            = 250 * time.Millisecond
	// dayKeyTTL outlives the UTC day so late senders in other time zones
	// still see the counter.
	dayKeyTTL = 48 * time.Hour
)

const (
	quotaDenied    = 0
	quotaAllowed   = 1
	quotaExhausted = -1
)

// sendQuotaScript charges one send against the per-second window and, when a
// daily cap is set, the per-day counter. A send refused by the daily cap is
// not counted against it.
//
// KEYS: second window, day counter. ARGV: per second, per day (0 = no cap),
// day key ttl in seconds.
var sendQuotaScript = goredis.NewScript(`
local sec = redis.call("INCR", KEYS[1])
if sec == 1 then
  redis.call("EXPIRE", KEYS[1], 1)
end
if sec > tonumber(ARGV[1]) then
  return 0
end

local cap = tonumber(ARGV[2])
if cap > 0 then
  local day = redis.call("INCR", KEYS[2])
  if day == 1 then
    redis.call("EXPIRE", KEYS[2], ARGV[3])
  end
  if day > cap then
    redis.call("DECR", KEYS[2])
    return -1
  end
end
return 1
`)

// SendQuota is the send budget of one mailbox.
type SendQuota struct {
	PerSecond int
	// PerDay caps sends per UTC day. Zero disables the cap.
	PerDay int
}

var _ ratelimit.RateLimiter = (*RedisRateLimiter)(nil)

// RedisRateLimiter enforces a SendQuota shared by every runner and API
// instance sending through the same mailbox.
type RedisRateLimiter struct {
	client *goredis.Client
	quota  SendQuota
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewRedisRateLimiter(client *goredis.Client, quota SendQuota) (*RedisRateLimiter, error) {
	return newRedisRateLimiter(client, quota, time.Now, sleepWithContext)
}

func newRedisRateLimiter(
	client *goredis.Client,
	quota SendQuota,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if quota.PerSecond <= 0 {
		quota.PerSecond = defaultSendsPerSecond
	}
	if quota.PerDay < 0 {
		return nil, fmt.Errorf("daily send quota must not be negative")
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &RedisRateLimiter{client: client, quota: quota, now: nowFn, sleep: sleepFn}, nil
}

func (r *RedisRateLimiter) Allow(ctx context.Context, mailbox string) (bool, error) {
	if r == nil || r.client == nil {
		return false, fmt.Errorf("rate limiter is not initialized")
	}

	mailbox = strings.ToLower(strings.TrimSpace(mailbox))
	if mailbox == "" {
		return false, fmt.Errorf("mailbox is required")
	}

	now := r.now().UTC()
	keys := []string{
		fmt.Sprintf("drip:sendrate:%s:%d", mailbox, now.Unix()),
		fmt.Sprintf("drip:sendquota:%s:%s", mailbox, now.Format("20060102")),
	}

	result, err := sendQuotaScript.Run(ctx, r.client, keys,
		r.quota.PerSecond, r.quota.PerDay, int(dayKeyTTL.Seconds()),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate send quota: %w", err)
	}

	switch result {
	case quotaAllowed:
		return true, nil
	case quotaDenied:
		return false, nil
	case quotaExhausted:
		return false, ratelimit.ErrQuotaExhausted
	default:
		return false, fmt.Errorf("unexpected send quota result %d", result)
	}
}

// Wait polls Allow with a growing backoff until the per-second window opens.
func (r *RedisRateLimiter) Wait(ctx context.Context, mailbox string) error {
	backoff := backoffStep
	for {
		allowed, err := r.Allow(ctx, mailbox)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		if err := r.sleep(ctx, backoff); err != nil {
			return err
		}
		backoff = min(backoff+backoffStep, backoffMax)
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
