package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const actionRatePrefix = "rate:actions:"

// RateRepo counts action attempts in fixed windows. The first increment
// of a window arms the TTL; the key expires with the window. Keys carry
// the window span so different windows for one action stay separate.
type RateRepo struct {
	client *goredis.Client
}

func NewRateRepo(client *goredis.Client) *RateRepo {
	return &RateRepo{client: client}
}

func (r *RateRepo) IncrementAction(ctx context.Context, userID int64, action string, window time.Duration) (int64, time.Duration, error) {
	if r.client == nil {
		return 0, 0, fmt.Errorf("redis client is nil")
	}
	if userID <= 0 || action == "" || window <= 0 {
		return 0, 0, fmt.Errorf("invalid rate window payload")
	}

	key := actionRateKey(userID, action, window)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("increment rate key: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("set rate key ttl: %w", err)
		}
	}

	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("read rate key ttl: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}

	return count, ttl, nil
}

func (r *RateRepo) ActionState(ctx context.Context, userID int64, action string, window time.Duration) (int64, time.Duration, error) {
	if r.client == nil {
		return 0, 0, fmt.Errorf("redis client is nil")
	}
	if userID <= 0 || action == "" || window <= 0 {
		return 0, 0, fmt.Errorf("invalid rate state payload")
	}

	key := actionRateKey(userID, action, window)
	count, err := r.client.Get(ctx, key).Int64()
	if err != nil && err != goredis.Nil {
		return 0, 0, fmt.Errorf("get rate key state: %w", err)
	}
	if err == goredis.Nil {
		return 0, 0, nil
	}

	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("read rate key ttl: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}

	return count, ttl, nil
}

func actionRateKey(userID int64, action string, window time.Duration) string {
	return actionRatePrefix + action + ":" + strconv.FormatInt(int64(window/time.Second), 10) + "s:" + strconv.FormatInt(userID, 10)
}
