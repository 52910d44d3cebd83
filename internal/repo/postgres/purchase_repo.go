package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrPurchaseNotFound      = errors.New("purchase not found")
	ErrProviderEventConflict = errors.New("provider event already attached to another purchase")
)

type PurchaseRepo struct {
	pool *pgxpool.Pool
}

type PurchaseRecord struct {
	ID              string
	UserID          int64
	SKU             string
	Provider        string
	ProviderEventID *string
	IdempotencyKey  string
	Amount          int
	Currency        string
	Status          string
	Payload         map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func NewPurchaseRepo(pool *pgxpool.Pool) *PurchaseRepo {
	return &PurchaseRepo{pool: pool}
}

// CreatePending inserts a pending purchase. A repeated idempotency key
// returns the already-created row with created=false instead of a new one.
func (r *PurchaseRepo) CreatePending(
	ctx context.Context,
	userID int64,
	sku, provider string,
	amount int,
	currency, idempotencyKey string,
	payload map[string]any,
) (PurchaseRecord, bool, error) {
	if r.pool == nil {
		return PurchaseRecord{}, false, fmt.Errorf("postgres pool is nil")
	}
	sku = strings.ToLower(strings.TrimSpace(sku))
	provider = strings.ToLower(strings.TrimSpace(provider))
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if userID <= 0 || sku == "" || provider == "" || idempotencyKey == "" || amount <= 0 {
		return PurchaseRecord{}, false, fmt.Errorf("invalid purchase create payload")
	}
	if currency == "" {
		currency = "USD"
	}

	payloadJSON, err := marshalPurchasePayload(payload)
	if err != nil {
		return PurchaseRecord{}, false, err
	}

	purchaseID := uuid.NewString()
	record, err := scanPurchase(r.pool.QueryRow(ctx, `
INSERT INTO purchases (
	id,
	user_id,
	sku,
	provider,
	idempotency_key,
	amount,
	currency,
	status,
	payload,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $8::jsonb, NOW(), NOW())
ON CONFLICT (idempotency_key) DO UPDATE
SET updated_at = purchases.updated_at
RETURNING id, user_id, sku, provider, provider_event_id, idempotency_key, amount, currency, status, payload, created_at, updated_at
`, purchaseID, userID, sku, provider, idempotencyKey, amount, currency, payloadJSON))
	if err != nil {
		return PurchaseRecord{}, false, fmt.Errorf("create pending purchase: %w", err)
	}

	created := strings.EqualFold(record.ID, purchaseID)
	return record, created, nil
}

func (r *PurchaseRepo) FindByID(ctx context.Context, purchaseID string) (PurchaseRecord, error) {
	if r.pool == nil {
		return PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	purchaseID = strings.TrimSpace(purchaseID)
	if purchaseID == "" {
		return PurchaseRecord{}, fmt.Errorf("invalid purchase id")
	}

	record, err := scanPurchase(r.pool.QueryRow(ctx, `
SELECT id, user_id, sku, provider, provider_event_id, idempotency_key, amount, currency, status, payload, created_at, updated_at
FROM purchases
WHERE id = $1
LIMIT 1
`, purchaseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseRecord{}, ErrPurchaseNotFound
		}
		return PurchaseRecord{}, fmt.Errorf("find purchase by id: %w", err)
	}

	return record, nil
}

// Confirm binds the provider event to the purchase and moves it to
// confirmed, all inside one transaction. A purchase already confirmed for
// the same event comes back with confirmed=false so webhook retries stay
// idempotent.
func (r *PurchaseRepo) Confirm(
	ctx context.Context,
	purchaseID, provider, providerEventID string,
	payload map[string]any,
) (PurchaseRecord, bool, error) {
	if r.pool == nil {
		return PurchaseRecord{}, false, fmt.Errorf("postgres pool is nil")
	}
	purchaseID = strings.TrimSpace(purchaseID)
	provider = strings.ToLower(strings.TrimSpace(provider))
	providerEventID = strings.TrimSpace(providerEventID)
	if purchaseID == "" || provider == "" || providerEventID == "" {
		return PurchaseRecord{}, false, fmt.Errorf("invalid confirm payload")
	}

	var (
		out       PurchaseRecord
		confirmed bool
	)
	err := WithTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		existing, err := scanPurchase(tx.QueryRow(txCtx, `
SELECT id, user_id, sku, provider, provider_event_id, idempotency_key, amount, currency, status, payload, created_at, updated_at
FROM purchases
WHERE provider = $1
  AND provider_event_id = $2
FOR UPDATE
`, provider, providerEventID))
		if err == nil {
			out = existing
			confirmed = false
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("lock purchase by provider event: %w", err)
		}

		locked, err := scanPurchase(tx.QueryRow(txCtx, `
SELECT id, user_id, sku, provider, provider_event_id, idempotency_key, amount, currency, status, payload, created_at, updated_at
FROM purchases
WHERE id = $1
  AND provider = $2
FOR UPDATE
`, purchaseID, provider))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrPurchaseNotFound
			}
			return fmt.Errorf("lock purchase by id: %w", err)
		}

		payloadJSON, err := marshalPurchasePayload(payload)
		if err != nil {
			return err
		}

		updated, err := scanPurchase(tx.QueryRow(txCtx, `
UPDATE purchases
SET
	provider_event_id = $2,
	status = 'confirmed',
	payload = $3::jsonb,
	updated_at = NOW()
WHERE id = $1
RETURNING id, user_id, sku, provider, provider_event_id, idempotency_key, amount, currency, status, payload, created_at, updated_at
`, locked.ID, providerEventID, payloadJSON))
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrProviderEventConflict
			}
			return fmt.Errorf("mark purchase confirmed: %w", err)
		}

		out = updated
		confirmed = !strings.EqualFold(locked.Status, "confirmed")
		return nil
	})
	if err != nil {
		return PurchaseRecord{}, false, err
	}

	return out, confirmed, nil
}

func scanPurchase(row pgx.Row) (PurchaseRecord, error) {
	var (
		record     PurchaseRecord
		rawPayload []byte
	)
	if err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.SKU,
		&record.Provider,
		&record.ProviderEventID,
		&record.IdempotencyKey,
		&record.Amount,
		&record.Currency,
		&record.Status,
		&rawPayload,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return PurchaseRecord{}, err
	}
	record.Payload = decodePurchasePayload(rawPayload)
	return record, nil
}

func marshalPurchasePayload(payload map[string]any) (string, error) {
	if len(payload) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal purchase payload: %w", err)
	}
	return string(raw), nil
}

func decodePurchasePayload(raw []byte) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return map[string]any{}
	}
	if payload == nil {
		return map[string]any{}
	}
	return payload
}
