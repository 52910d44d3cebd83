package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/amouradev/amoura/backend/internal/domain/enums"
)

const (
	minuteWindow = time.Minute
	burstWindow  = 10 * time.Second
)

type WindowStore interface {
	IncrementAction(ctx context.Context, userID int64, action string, window time.Duration) (int64, time.Duration, error)
	ActionState(ctx context.Context, userID int64, action string, window time.Duration) (int64, time.Duration, error)
}

// Limiter bounds the raw request rate of credit-consuming actions. It
// sits in front of the ledger: a blocked request never reaches Consume,
// so credits are untouched while a client floods.
type Limiter struct {
	store     WindowStore
	perMinute int
	perBurst  int
}

func NewLimiter(store WindowStore, perMinute, perBurst int) *Limiter {
	if perMinute < 0 {
		perMinute = 0
	}
	if perBurst < 0 {
		perBurst = 0
	}

	return &Limiter{
		store:     store,
		perMinute: perMinute,
		perBurst:  perBurst,
	}
}

// AllowAction counts the attempt against both windows and reports how
// long the caller should wait when either is exhausted.
func (l *Limiter) AllowAction(ctx context.Context, userID int64, action enums.Action) (int64, bool, error) {
	if userID <= 0 || !action.Known() {
		return 0, false, fmt.Errorf("invalid rate limit payload")
	}
	if l.store == nil {
		return 0, false, fmt.Errorf("rate limiter store is nil")
	}

	retryAfterSec := int64(0)

	if l.perMinute > 0 {
		count, ttl, err := l.store.IncrementAction(ctx, userID, string(action), minuteWindow)
		if err != nil {
			return 0, false, err
		}
		if count > int64(l.perMinute) {
			retryAfterSec = maxInt64(retryAfterSec, ceilSeconds(ttl))
		}
	}

	if l.perBurst > 0 {
		count, ttl, err := l.store.IncrementAction(ctx, userID, string(action), burstWindow)
		if err != nil {
			return 0, false, err
		}
		if count > int64(l.perBurst) {
			retryAfterSec = maxInt64(retryAfterSec, ceilSeconds(ttl))
		}
	}

	if retryAfterSec > 0 {
		return retryAfterSec, false, nil
	}

	return 0, true, nil
}

// RetryAfter reports the current wait without counting an attempt.
func (l *Limiter) RetryAfter(ctx context.Context, userID int64, action enums.Action) (int64, error) {
	if userID <= 0 || !action.Known() {
		return 0, fmt.Errorf("invalid rate limit payload")
	}
	if l.store == nil {
		return 0, fmt.Errorf("rate limiter store is nil")
	}

	retryAfterSec := int64(0)

	if l.perMinute > 0 {
		count, ttl, err := l.store.ActionState(ctx, userID, string(action), minuteWindow)
		if err != nil {
			return 0, err
		}
		if count >= int64(l.perMinute) {
			retryAfterSec = maxInt64(retryAfterSec, ceilSeconds(ttl))
		}
	}

	if l.perBurst > 0 {
		count, ttl, err := l.store.ActionState(ctx, userID, string(action), burstWindow)
		if err != nil {
			return 0, err
		}
		if count >= int64(l.perBurst) {
			retryAfterSec = maxInt64(retryAfterSec, ceilSeconds(ttl))
		}
	}

	return retryAfterSec, nil
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	sec := int64(d / time.Second)
	if d%time.Second != 0 {
		sec++
	}
	if sec <= 0 {
		sec = 1
	}
	return sec
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
