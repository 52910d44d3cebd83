package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amouradev/amoura/backend/internal/domain/enums"
	ledgersvc "github.com/amouradev/amoura/backend/internal/services/ledger"
)

// LedgerRepo persists credit ledger records, one row per user.
type LedgerRepo struct {
	pool *pgxpool.Pool
}

func NewLedgerRepo(pool *pgxpool.Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

func (r *LedgerRepo) Get(ctx context.Context, userID int64) (ledgersvc.Record, error) {
	if r.pool == nil {
		return ledgersvc.Record{}, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return ledgersvc.Record{}, fmt.Errorf("invalid user id")
	}

	var (
		record ledgersvc.Record
		tier   string
	)
	err := r.pool.QueryRow(ctx, `
SELECT
	user_id,
	tier,
	messages,
	compliments,
	right_swipes,
	profile_views,
	boosts,
	super_likes,
	unlocks,
	day_key,
	month_key,
	timezone,
	reconciled_at,
	updated_at
FROM credit_ledgers
WHERE user_id = $1
LIMIT 1
`, userID).Scan(
		&record.UserID,
		&tier,
		&record.Messages,
		&record.Compliments,
		&record.RightSwipes,
		&record.ProfileViews,
		&record.Boosts,
		&record.SuperLikes,
		&record.Unlocks,
		&record.DayKey,
		&record.MonthKey,
		&record.Timezone,
		&record.ReconciledAt,
		&record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledgersvc.Record{}, ledgersvc.ErrUnknownUser
		}
		return ledgersvc.Record{}, fmt.Errorf("get credit ledger: %w", err)
	}

	record.Tier = enums.Tier(tier)
	return record, nil
}

func (r *LedgerRepo) Put(ctx context.Context, record ledgersvc.Record) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if record.UserID <= 0 {
		return fmt.Errorf("invalid user id")
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO credit_ledgers (
	user_id,
	tier,
	messages,
	compliments,
	right_swipes,
	profile_views,
	boosts,
	super_likes,
	unlocks,
	day_key,
	month_key,
	timezone,
	reconciled_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (user_id) DO UPDATE SET
	tier = EXCLUDED.tier,
	messages = EXCLUDED.messages,
	compliments = EXCLUDED.compliments,
	right_swipes = EXCLUDED.right_swipes,
	profile_views = EXCLUDED.profile_views,
	boosts = EXCLUDED.boosts,
	super_likes = EXCLUDED.super_likes,
	unlocks = EXCLUDED.unlocks,
	day_key = EXCLUDED.day_key,
	month_key = EXCLUDED.month_key,
	timezone = EXCLUDED.timezone,
	reconciled_at = EXCLUDED.reconciled_at,
	updated_at = EXCLUDED.updated_at
`,
		record.UserID,
		string(record.Tier),
		record.Messages,
		record.Compliments,
		record.RightSwipes,
		record.ProfileViews,
		record.Boosts,
		record.SuperLikes,
		record.Unlocks,
		record.DayKey,
		record.MonthKey,
		record.Timezone,
		record.ReconciledAt,
		record.UpdatedAt,
	); err != nil {
		return fmt.Errorf("upsert credit ledger: %w", err)
	}

	return nil
}

// ListReconciledBefore returns ids of users whose ledger has not seen a
// store snapshot since the cutoff, oldest first.
func (r *LedgerRepo) ListReconciledBefore(ctx context.Context, cutoff time.Time, limit int) ([]int64, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
SELECT user_id
FROM credit_ledgers
WHERE reconciled_at < $1
ORDER BY reconciled_at ASC
LIMIT $2
`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale ledgers: %w", err)
	}
	defer rows.Close()

	var userIDs []int64
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan stale ledger row: %w", err)
		}
		userIDs = append(userIDs, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale ledger rows: %w", err)
	}

	return userIDs, nil
}

func (r *LedgerRepo) Delete(ctx context.Context, userID int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return fmt.Errorf("invalid user id")
	}

	if _, err := r.pool.Exec(ctx, `
DELETE FROM credit_ledgers
WHERE user_id = $1
`, userID); err != nil {
		return fmt.Errorf("delete credit ledger: %w", err)
	}

	return nil
}
