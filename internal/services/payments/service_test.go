package payments_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amouradev/amoura/backend/internal/domain/enums"
	"github.com/amouradev/amoura/backend/internal/domain/model"
	pgrepo "github.com/amouradev/amoura/backend/internal/repo/postgres"
	paysvc "github.com/amouradev/amoura/backend/internal/services/payments"
	reconcilesvc "github.com/amouradev/amoura/backend/internal/services/reconcile"
)

type memoryPurchases struct {
	nextID  int
	byID    map[string]pgrepo.PurchaseRecord
	byKey   map[string]string
	byEvent map[string]string
}

func newMemoryPurchases() *memoryPurchases {
	return &memoryPurchases{
		byID:    map[string]pgrepo.PurchaseRecord{},
		byKey:   map[string]string{},
		byEvent: map[string]string{},
	}
}

func (m *memoryPurchases) CreatePending(
	_ context.Context,
	userID int64,
	sku, provider string,
	amount int,
	currency, idempotencyKey string,
	payload map[string]any,
) (pgrepo.PurchaseRecord, bool, error) {
	if id, ok := m.byKey[idempotencyKey]; ok {
		return m.byID[id], false, nil
	}

	m.nextID++
	id := "purchase-" + time.Now().UTC().Format("150405") + "-" + string(rune('a'+m.nextID))
	record := pgrepo.PurchaseRecord{
		ID:             id,
		UserID:         userID,
		SKU:            sku,
		Provider:       provider,
		IdempotencyKey: idempotencyKey,
		Amount:         amount,
		Currency:       currency,
		Status:         "pending",
		Payload:        payload,
	}
	m.byID[id] = record
	m.byKey[idempotencyKey] = id
	return record, true, nil
}

func (m *memoryPurchases) FindByID(_ context.Context, purchaseID string) (pgrepo.PurchaseRecord, error) {
	record, ok := m.byID[purchaseID]
	if !ok {
		return pgrepo.PurchaseRecord{}, pgrepo.ErrPurchaseNotFound
	}
	return record, nil
}

func (m *memoryPurchases) Confirm(_ context.Context, purchaseID, provider, providerEventID string, _ map[string]any) (pgrepo.PurchaseRecord, bool, error) {
	if id, ok := m.byEvent[provider+":"+providerEventID]; ok {
		return m.byID[id], false, nil
	}

	record, ok := m.byID[purchaseID]
	if !ok || record.Provider != provider {
		return pgrepo.PurchaseRecord{}, false, pgrepo.ErrPurchaseNotFound
	}

	confirmed := record.Status != "confirmed"
	record.Status = "confirmed"
	eventID := providerEventID
	record.ProviderEventID = &eventID
	m.byID[purchaseID] = record
	m.byEvent[provider+":"+providerEventID] = purchaseID
	return record, confirmed, nil
}

type recordingGranter struct {
	grants []enums.Counter
}

func (g *recordingGranter) Grant(_ context.Context, _ int64, counter enums.Counter, _ int) error {
	g.grants = append(g.grants, counter)
	return nil
}

type recordingApplier struct {
	snapshots []model.Snapshot
}

func (a *recordingApplier) Apply(_ context.Context, _ int64, snapshot model.Snapshot) (reconcilesvc.Result, error) {
	a.snapshots = append(a.snapshots, snapshot)
	return reconcilesvc.Result{Applied: true, ResultingTier: enums.Tier(snapshot.Tier)}, nil
}

func newPaymentsForTest() (*paysvc.Service, *memoryPurchases, *recordingGranter, *recordingApplier) {
	purchases := newMemoryPurchases()
	granter := &recordingGranter{}
	applier := &recordingApplier{}
	svc := paysvc.NewService(paysvc.Dependencies{
		Purchases: purchases,
		Credits:   granter,
		Snapshots: applier,
	})
	return svc, purchases, granter, applier
}

func TestCreateRejectsUnknownSKUAndProvider(t *testing.T) {
	svc, _, _, _ := newPaymentsForTest()
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, paysvc.CreateInput{SKU: "diamond_1m", Provider: "stripe", IdempotencyKey: "k1"})
	if !errors.Is(err, paysvc.ErrUnsupportedSKU) {
		t.Fatalf("expected unsupported sku, got %v", err)
	}

	_, err = svc.Create(ctx, 1, paysvc.CreateInput{SKU: "gold_1m", Provider: "cash", IdempotencyKey: "k2"})
	if !errors.Is(err, paysvc.ErrUnsupportedProvider) {
		t.Fatalf("expected unsupported provider, got %v", err)
	}
}

func TestCreateIsIdempotentPerKey(t *testing.T) {
	svc, _, _, _ := newPaymentsForTest()
	ctx := context.Background()

	first, err := svc.Create(ctx, 7, paysvc.CreateInput{SKU: "boost_pack_3", Provider: "app_store", IdempotencyKey: "order-1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.Idempotent {
		t.Fatalf("first create should not be idempotent")
	}

	second, err := svc.Create(ctx, 7, paysvc.CreateInput{SKU: "boost_pack_3", Provider: "app_store", IdempotencyKey: "order-1"})
	if err != nil {
		t.Fatalf("repeat create: %v", err)
	}
	if !second.Idempotent || second.PurchaseID != first.PurchaseID {
		t.Fatalf("repeat create should return the original purchase: %+v", second)
	}
}

func TestGetEnforcesOwnership(t *testing.T) {
	svc, _, _, _ := newPaymentsForTest()
	ctx := context.Background()

	created, err := svc.Create(ctx, 7, paysvc.CreateInput{SKU: "unlock_pack_5", Provider: "app_store", IdempotencyKey: "order-4"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := svc.Get(ctx, 7, created.PurchaseID)
	if err != nil {
		t.Fatalf("get own purchase: %v", err)
	}
	if got.Status != "pending" || got.SKU != "unlock_pack_5" {
		t.Fatalf("unexpected purchase: %+v", got)
	}

	if _, err := svc.Get(ctx, 8, created.PurchaseID); !errors.Is(err, paysvc.ErrPurchaseNotFound) {
		t.Fatalf("foreign purchase should be not-found, got %v", err)
	}
	if _, err := svc.Get(ctx, 7, "missing"); !errors.Is(err, paysvc.ErrPurchaseNotFound) {
		t.Fatalf("missing purchase should be not-found, got %v", err)
	}
}

func TestWebhookGrantsPackCreditsOnce(t *testing.T) {
	svc, _, granter, applier := newPaymentsForTest()
	ctx := context.Background()

	created, err := svc.Create(ctx, 7, paysvc.CreateInput{SKU: "superlike_pack_10", Provider: "play_store", IdempotencyKey: "order-2"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	res, err := svc.ConfirmWebhook(ctx, paysvc.WebhookInput{
		PurchaseID:      created.PurchaseID,
		Provider:        "play_store",
		ProviderEventID: "evt-1",
		Status:          "paid",
	})
	if err != nil {
		t.Fatalf("confirm webhook: %v", err)
	}
	if res.AlreadyProcessed {
		t.Fatalf("first confirmation should not be marked processed")
	}
	if len(granter.grants) != 1 || granter.grants[0] != enums.CounterSuperLikes {
		t.Fatalf("expected one super-likes grant, got %v", granter.grants)
	}
	if len(applier.snapshots) != 0 {
		t.Fatalf("pack purchase must not touch the reconciler")
	}

	retry, err := svc.ConfirmWebhook(ctx, paysvc.WebhookInput{
		PurchaseID:      created.PurchaseID,
		Provider:        "play_store",
		ProviderEventID: "evt-1",
		Status:          "paid",
	})
	if err != nil {
		t.Fatalf("retry webhook: %v", err)
	}
	if !retry.AlreadyProcessed {
		t.Fatalf("retry should be idempotent")
	}
	if len(granter.grants) != 1 {
		t.Fatalf("retry must not grant again, got %v", granter.grants)
	}
}

func TestWebhookActivatesSubscriptionViaSnapshot(t *testing.T) {
	svc, _, granter, applier := newPaymentsForTest()
	ctx := context.Background()

	created, err := svc.Create(ctx, 9, paysvc.CreateInput{SKU: "gold_1m", Provider: "stripe", IdempotencyKey: "order-3"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.ConfirmWebhook(ctx, paysvc.WebhookInput{
		PurchaseID:      created.PurchaseID,
		Provider:        "stripe",
		ProviderEventID: "evt-2",
	}); err != nil {
		t.Fatalf("confirm webhook: %v", err)
	}

	if len(applier.snapshots) != 1 {
		t.Fatalf("expected one snapshot application, got %d", len(applier.snapshots))
	}
	snapshot := applier.snapshots[0]
	if snapshot.Tier != string(enums.TierGold) || snapshot.AsOf.IsZero() {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
	if len(granter.grants) != 0 {
		t.Fatalf("subscription purchase must not grant pack credits")
	}
}
