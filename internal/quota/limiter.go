package quota

import (
	"context"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"exmora-backend/internal/model"
)

// Limiter enforces the per-user daily ask quota on Redis. The counter
// increment is atomic, so two concurrent requests can never both slip
// through the last slot.
type Limiter struct {
	client *redisv9.Client
	limit  int
}

// Status describes the caller's quota after the current request was counted.
type Status struct {
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetAt   time.Time `json:"reset_at"`
}

func NewLimiter(client *redisv9.Client, limit int) *Limiter {
	if limit <= 0 {
		limit = 50
	}
	return &Limiter{client: client, limit: limit}
}

// Take counts one ask against the user's daily budget and reports whether
// the request may proceed. The key expires at local midnight.
func (l *Limiter) Take(ctx context.Context, userID string, now time.Time) (Status, bool, error) {
	key := l.key(userID, now)
	resetAt := endOfDay(now)

	used, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return Status{}, false, fmt.Errorf("increment quota counter failed: %w", err)
	}
	needExpiry := used == 1
	if !needExpiry {
		// Heal a counter whose expiry write was lost earlier, or the dated
		// key lingers in Redis forever.
		ttl, err := l.client.TTL(ctx, key).Result()
		needExpiry = err == nil && ttl < 0
	}
	if needExpiry {
		if err := l.client.ExpireAt(ctx, key, resetAt).Err(); err != nil {
			return Status{}, false, fmt.Errorf("set quota expiry failed: %w", err)
		}
	}

	remaining := l.limit - int(used)
	if remaining < 0 {
		remaining = 0
	}
	status := Status{
		Used:      int(used),
		Remaining: remaining,
		Limit:     l.limit,
		ResetAt:   resetAt,
	}
	return status, int(used) <= l.limit, nil
}

// Peek reports the user's quota without counting anything.
func (l *Limiter) Peek(ctx context.Context, userID string, now time.Time) (Status, error) {
	used, err := l.client.Get(ctx, l.key(userID, now)).Int()
	if err != nil && err != redisv9.Nil {
		return Status{}, fmt.Errorf("read quota counter failed: %w", err)
	}

	remaining := l.limit - used
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		Used:      used,
		Remaining: remaining,
		Limit:     l.limit,
		ResetAt:   endOfDay(now),
	}, nil
}

func (l *Limiter) key(userID string, now time.Time) string {
	return fmt.Sprintf("quota:ask:%s:%s", userID, model.UsageDate(now))
}

func endOfDay(now time.Time) time.Time {
	year, month, day := now.Date()
	return time.Date(year, month, day+1, 0, 0, 0, 0, now.Location())
}
