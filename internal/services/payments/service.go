package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amouradev/amoura/backend/internal/domain/enums"
	"github.com/amouradev/amoura/backend/internal/domain/model"
	"github.com/amouradev/amoura/backend/internal/pkg/validate"
	pgrepo "github.com/amouradev/amoura/backend/internal/repo/postgres"
	reconcilesvc "github.com/amouradev/amoura/backend/internal/services/reconcile"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrUnsupportedSKU      = errors.New("unsupported sku")
	ErrUnsupportedProvider = errors.New("unsupported provider")
	ErrPurchaseNotFound    = errors.New("purchase not found")
)

type PurchaseStore interface {
	CreatePending(
		ctx context.Context,
		userID int64,
		sku, provider string,
		amount int,
		currency, idempotencyKey string,
		payload map[string]any,
	) (pgrepo.PurchaseRecord, bool, error)
	FindByID(ctx context.Context, purchaseID string) (pgrepo.PurchaseRecord, error)
	Confirm(ctx context.Context, purchaseID, provider, providerEventID string, payload map[string]any) (pgrepo.PurchaseRecord, bool, error)
}

// CreditGranter adds pack credits to a user's ledger.
type CreditGranter interface {
	Grant(ctx context.Context, userID int64, counter enums.Counter, amount int) error
}

// SnapshotApplier feeds subscription activations through the reconciler
// so tier changes follow the same merge rules as store-pulled snapshots.
type SnapshotApplier interface {
	Apply(ctx context.Context, userID int64, snapshot model.Snapshot) (reconcilesvc.Result, error)
}

type Service struct {
	purchases PurchaseStore
	credits   CreditGranter
	snapshots SnapshotApplier
	now       func() time.Time
}

type Dependencies struct {
	Purchases PurchaseStore
	Credits   CreditGranter
	Snapshots SnapshotApplier
}

type CreateInput struct {
	SKU            string
	Provider       string
	Amount         int
	Currency       string
	IdempotencyKey string
}

type CreateResult struct {
	PurchaseID string
	SKU        string
	Provider   string
	Amount     int
	Currency   string
	Status     string
	Idempotent bool
}

type WebhookInput struct {
	PurchaseID      string
	Provider        string
	ProviderEventID string
	Status          string
	Payload         map[string]any
}

type WebhookResult struct {
	PurchaseID       string
	UserID           int64
	SKU              string
	Status           string
	AlreadyProcessed bool
}

func NewService(deps Dependencies) *Service {
	return &Service{
		purchases: deps.Purchases,
		credits:   deps.Credits,
		snapshots: deps.Snapshots,
		now:       time.Now,
	}
}

func (s *Service) Create(ctx context.Context, userID int64, in CreateInput) (CreateResult, error) {
	if userID <= 0 {
		return CreateResult{}, ErrValidation
	}
	if s.purchases == nil {
		return CreateResult{}, fmt.Errorf("purchase store is nil")
	}

	sku, err := normalizeSKU(in.SKU)
	if err != nil {
		return CreateResult{}, err
	}
	provider, err := normalizeProvider(in.Provider)
	if err != nil {
		return CreateResult{}, err
	}
	if !validate.Required(in.IdempotencyKey) {
		return CreateResult{}, ErrValidation
	}
	idempotencyKey := strings.TrimSpace(in.IdempotencyKey)
	amount := in.Amount
	if amount <= 0 {
		amount = defaultAmountForSKU(sku)
	}

	record, created, err := s.purchases.CreatePending(ctx, userID, sku, provider, amount, in.Currency, idempotencyKey, map[string]any{
		"source": "api",
	})
	if err != nil {
		return CreateResult{}, err
	}

	return CreateResult{
		PurchaseID: record.ID,
		SKU:        record.SKU,
		Provider:   record.Provider,
		Amount:     record.Amount,
		Currency:   record.Currency,
		Status:     record.Status,
		Idempotent: !created,
	}, nil
}

// Get returns the purchase for status polling. Purchases belong to the
// user who created them; anyone else gets not-found.
func (s *Service) Get(ctx context.Context, userID int64, purchaseID string) (CreateResult, error) {
	if userID <= 0 || !validate.Required(purchaseID) {
		return CreateResult{}, ErrValidation
	}
	if s.purchases == nil {
		return CreateResult{}, fmt.Errorf("purchase store is nil")
	}

	record, err := s.purchases.FindByID(ctx, strings.TrimSpace(purchaseID))
	if err != nil {
		if errors.Is(err, pgrepo.ErrPurchaseNotFound) {
			return CreateResult{}, ErrPurchaseNotFound
		}
		return CreateResult{}, err
	}
	if record.UserID != userID {
		return CreateResult{}, ErrPurchaseNotFound
	}

	return CreateResult{
		PurchaseID: record.ID,
		SKU:        record.SKU,
		Provider:   record.Provider,
		Amount:     record.Amount,
		Currency:   record.Currency,
		Status:     record.Status,
	}, nil
}

// ConfirmWebhook settles a provider confirmation. The purchase is marked
// confirmed and fulfilled exactly once; retries of the same provider
// event come back with AlreadyProcessed set and change nothing.
func (s *Service) ConfirmWebhook(ctx context.Context, in WebhookInput) (WebhookResult, error) {
	if s.purchases == nil || s.credits == nil || s.snapshots == nil {
		return WebhookResult{}, fmt.Errorf("payments dependencies are not configured")
	}

	provider, err := normalizeProvider(in.Provider)
	if err != nil {
		return WebhookResult{}, err
	}
	if !validate.Required(in.ProviderEventID) || !validate.Required(in.PurchaseID) {
		return WebhookResult{}, ErrValidation
	}
	providerEventID := strings.TrimSpace(in.ProviderEventID)
	purchaseID := strings.TrimSpace(in.PurchaseID)
	if !isConfirmationStatus(in.Status) {
		return WebhookResult{}, ErrValidation
	}

	record, confirmed, err := s.purchases.Confirm(ctx, purchaseID, provider, providerEventID, in.Payload)
	if err != nil {
		if errors.Is(err, pgrepo.ErrPurchaseNotFound) {
			return WebhookResult{}, ErrPurchaseNotFound
		}
		return WebhookResult{}, err
	}

	if !confirmed {
		return WebhookResult{
			PurchaseID:       record.ID,
			UserID:           record.UserID,
			SKU:              record.SKU,
			Status:           record.Status,
			AlreadyProcessed: true,
		}, nil
	}

	if err := s.fulfill(ctx, record.UserID, record.SKU); err != nil {
		return WebhookResult{}, fmt.Errorf("fulfill purchase %s: %w", record.ID, err)
	}

	return WebhookResult{
		PurchaseID:       record.ID,
		UserID:           record.UserID,
		SKU:              record.SKU,
		Status:           record.Status,
		AlreadyProcessed: false,
	}, nil
}

func (s *Service) fulfill(ctx context.Context, userID int64, sku string) error {
	if tier, ok := subscriptionTier(sku); ok {
		asOf := s.now().UTC()
		if _, err := s.snapshots.Apply(ctx, userID, model.Snapshot{
			Tier: string(tier),
			AsOf: asOf,
		}); err != nil {
			return fmt.Errorf("apply subscription snapshot: %w", err)
		}
		return nil
	}

	counter, amount, ok := packGrant(sku)
	if !ok {
		return ErrUnsupportedSKU
	}
	if err := s.credits.Grant(ctx, userID, counter, amount); err != nil {
		return fmt.Errorf("grant pack credits: %w", err)
	}
	return nil
}

func normalizeSKU(raw string) (string, error) {
	sku, err := enums.ParsePurchaseSKU(raw)
	if err != nil {
		return "", ErrUnsupportedSKU
	}
	return string(sku), nil
}

func normalizeProvider(raw string) (string, error) {
	provider := strings.ToLower(strings.TrimSpace(raw))
	switch provider {
	case "app_store", "play_store", "stripe":
		return provider, nil
	default:
		return "", ErrUnsupportedProvider
	}
}

func isConfirmationStatus(raw string) bool {
	status := strings.ToLower(strings.TrimSpace(raw))
	if status == "" {
		return true
	}
	switch status {
	case "confirmed", "success", "paid":
		return true
	default:
		return false
	}
}

func subscriptionTier(sku string) (enums.Tier, bool) {
	switch enums.PurchaseSKU(strings.ToLower(strings.TrimSpace(sku))) {
	case enums.PurchaseSKUSilver1m:
		return enums.TierSilver, true
	case enums.PurchaseSKUGold1m:
		return enums.TierGold, true
	case enums.PurchaseSKUVIP1m:
		return enums.TierVIP, true
	default:
		return "", false
	}
}

func packGrant(sku string) (enums.Counter, int, bool) {
	switch enums.PurchaseSKU(strings.ToLower(strings.TrimSpace(sku))) {
	case enums.PurchaseSKUBoostPack3:
		return enums.CounterBoosts, 3, true
	case enums.PurchaseSKUSuperLikePack10:
		return enums.CounterSuperLikes, 10, true
	case enums.PurchaseSKUUnlockPack5:
		return enums.CounterUnlocks, 5, true
	default:
		return "", 0, false
	}
}

func defaultAmountForSKU(sku string) int {
	switch enums.PurchaseSKU(strings.ToLower(strings.TrimSpace(sku))) {
	case enums.PurchaseSKUSilver1m:
		return 999
	case enums.PurchaseSKUGold1m:
		return 1999
	case enums.PurchaseSKUVIP1m:
		return 2999
	case enums.PurchaseSKUBoostPack3:
		return 499
	case enums.PurchaseSKUSuperLikePack10:
		return 699
	case enums.PurchaseSKUUnlockPack5:
		return 599
	default:
		return 1
	}
}
