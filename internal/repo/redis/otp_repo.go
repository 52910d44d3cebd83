package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	authsvc "github.com/amouradev/amoura/backend/internal/services/auth"
)

const (
	otpCodePrefix     = "auth:otp:code:"
	otpAttemptsPrefix = "auth:otp:attempts:"
)

// OTPRepo stores phone login codes with a TTL and a verification attempt
// counter. Consuming a code deletes it so it is good for one login only.
type OTPRepo struct {
	client *goredis.Client
}

func NewOTPRepo(client *goredis.Client) *OTPRepo {
	return &OTPRepo{client: client}
}

func (r *OTPRepo) SaveCode(ctx context.Context, phone, code string, ttl time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	phone = strings.TrimSpace(phone)
	code = strings.TrimSpace(code)
	if phone == "" || code == "" || ttl <= 0 {
		return authsvc.ErrInvalidInput
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, otpCodeKey(phone), code, ttl)
	pipe.Del(ctx, otpAttemptsKey(phone))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save login code: %w", err)
	}

	return nil
}

// ConsumeCode verifies the code for the phone. On a match the key is
// deleted; on a miss the attempt counter grows and the stored code is
// dropped once maxAttempts is reached.
func (r *OTPRepo) ConsumeCode(ctx context.Context, phone, code string, maxAttempts int64) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	phone = strings.TrimSpace(phone)
	code = strings.TrimSpace(code)
	if phone == "" || code == "" {
		return false, authsvc.ErrInvalidInput
	}

	stored, err := r.client.Get(ctx, otpCodeKey(phone)).Result()
	if err == goredis.Nil {
		return false, authsvc.ErrCodeNotFound
	}
	if err != nil {
		return false, fmt.Errorf("get login code: %w", err)
	}

	if stored != code {
		attempts, err := r.client.Incr(ctx, otpAttemptsKey(phone)).Result()
		if err != nil {
			return false, fmt.Errorf("count failed login attempt: %w", err)
		}
		if maxAttempts > 0 && attempts >= maxAttempts {
			pipe := r.client.TxPipeline()
			pipe.Del(ctx, otpCodeKey(phone))
			pipe.Del(ctx, otpAttemptsKey(phone))
			if _, err := pipe.Exec(ctx); err != nil {
				return false, fmt.Errorf("drop exhausted login code: %w", err)
			}
		}
		return false, nil
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, otpCodeKey(phone))
	pipe.Del(ctx, otpAttemptsKey(phone))
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("consume login code: %w", err)
	}

	return true, nil
}

func otpCodeKey(phone string) string {
	return otpCodePrefix + phone
}

func otpAttemptsKey(phone string) string {
	return otpAttemptsPrefix + phone
}
