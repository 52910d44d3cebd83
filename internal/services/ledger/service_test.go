package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amouradev/amoura/backend/internal/domain/enums"
	"github.com/amouradev/amoura/backend/internal/domain/rules"
)

type memoryStore struct {
	records map[int64]Record
	puts    int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[int64]Record)}
}

func (s *memoryStore) Get(_ context.Context, userID int64) (Record, error) {
	record, ok := s.records[userID]
	if !ok {
		return Record{}, ErrUnknownUser
	}
	return record, nil
}

func (s *memoryStore) Put(_ context.Context, record Record) error {
	s.records[record.UserID] = record
	s.puts++
	return nil
}

func (s *memoryStore) Delete(_ context.Context, userID int64) error {
	delete(s.records, userID)
	return nil
}

func newTestService(store Store, at time.Time) *Service {
	service := NewService(store, Config{DefaultTimezone: "UTC"})
	service.now = func() time.Time { return at }
	return service
}

func TestEnsureSeedsFromTierCaps(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	service := newTestService(store, now)

	ctx := context.Background()
	userID := int64(101)

	if err := service.Ensure(ctx, userID, enums.TierFree, ""); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	record, err := service.Snapshot(ctx, userID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if record.Messages != 5 {
		t.Fatalf("unexpected seeded messages: got %d want 5", record.Messages)
	}
	if record.Boosts != 0 {
		t.Fatalf("unexpected seeded boosts: got %d want 0", record.Boosts)
	}
	if record.DayKey != "2026-03-10" {
		t.Fatalf("unexpected day key: %s", record.DayKey)
	}
	if record.MonthKey != "2026-03" {
		t.Fatalf("unexpected month key: %s", record.MonthKey)
	}
}

func TestEnsureIsIdempotentWithinSameDay(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	service := newTestService(store, now)

	ctx := context.Background()
	userID := int64(102)

	if err := service.Ensure(ctx, userID, enums.TierFree, ""); err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	if _, err := service.Consume(ctx, userID, enums.CounterMessages, 2); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := service.Ensure(ctx, userID, enums.TierFree, ""); err != nil {
		t.Fatalf("second ensure: %v", err)
	}

	record, err := service.Snapshot(ctx, userID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if record.Messages != 3 {
		t.Fatalf("ensure must not reseed within the same day: got %d want 3", record.Messages)
	}
}

func TestConsumeRequiresEnsure(t *testing.T) {
	store := newMemoryStore()
	service := newTestService(store, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))

	if _, err := service.Consume(context.Background(), 103, enums.CounterMessages, 1); !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
}

func TestConsumeNeverOverdraws(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	service := newTestService(store, now)

	ctx := context.Background()
	userID := int64(104)

	if err := service.Ensure(ctx, userID, enums.TierFree, ""); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	remaining, err := service.Consume(ctx, userID, enums.CounterMessages, 3)
	if err != nil {
		t.Fatalf("consume 3: %v", err)
	}
	if remaining != 2 {
		t.Fatalf("unexpected remaining: got %d want 2", remaining)
	}

	if _, err := service.Consume(ctx, userID, enums.CounterMessages, 3); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}

	record, err := service.Snapshot(ctx, userID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if record.Messages != 2 {
		t.Fatalf("failed consume must not decrement: got %d want 2", record.Messages)
	}
}

func TestConsumeUnlimitedCounterNeverDecrements(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	service := newTestService(store, now)

	ctx := context.Background()
	userID := int64(105)

	if err := service.Ensure(ctx, userID, enums.TierVIP, ""); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	for i := 0; i < 10; i++ {
		remaining, err := service.Consume(ctx, userID, enums.CounterMessages, 1)
		if err != nil {
			t.Fatalf("consume #%d: %v", i+1, err)
		}
		if remaining != rules.Unlimited {
			t.Fatalf("expected unlimited remaining, got %d", remaining)
		}
	}
}

func TestResetDailyIsIdempotentWithinSameDay(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	service := newTestService(store, now)

	ctx := context.Background()
	userID := int64(106)

	if err := service.Ensure(ctx, userID, enums.TierFree, ""); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, err := service.Consume(ctx, userID, enums.CounterMessages, 4); err != nil {
		t.Fatalf("consume: %v", err)
	}

	nextDay := time.Date(2026, 3, 11, 0, 5, 0, 0, time.UTC)
	if err := service.ResetDaily(ctx, userID, enums.TierFree, nextDay); err != nil {
		t.Fatalf("first reset: %v", err)
	}

	record, _ := store.Get(ctx, userID)
	if record.Messages != 5 {
		t.Fatalf("expected reseeded messages after day rollover: got %d want 5", record.Messages)
	}

	if _, err := service.Consume(ctx, userID, enums.CounterMessages, 1); err != nil {
		t.Fatalf("consume after reset: %v", err)
	}
	if err := service.ResetDaily(ctx, userID, enums.TierFree, nextDay); err != nil {
		t.Fatalf("second reset: %v", err)
	}

	record, _ = store.Get(ctx, userID)
	if record.Messages != 4 {
		t.Fatalf("second reset on the same day must be a no-op: got %d want 4", record.Messages)
	}
}

func TestResetMonthlyReseedsAllowance(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC)
	service := newTestService(store, now)

	ctx := context.Background()
	userID := int64(107)

	if err := service.Ensure(ctx, userID, enums.TierGold, ""); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, err := service.Consume(ctx, userID, enums.CounterBoosts, 2); err != nil {
		t.Fatalf("consume boosts: %v", err)
	}

	if err := service.ResetMonthly(ctx, userID, enums.TierGold, now); err != nil {
		t.Fatalf("same-month reset: %v", err)
	}
	record, _ := store.Get(ctx, userID)
	if record.Boosts != 1 {
		t.Fatalf("same-month reset must be a no-op: got %d want 1", record.Boosts)
	}

	nextMonth := time.Date(2026, 4, 1, 0, 5, 0, 0, time.UTC)
	if err := service.ResetMonthly(ctx, userID, enums.TierGold, nextMonth); err != nil {
		t.Fatalf("next-month reset: %v", err)
	}
	record, _ = store.Get(ctx, userID)
	if record.Boosts != 3 {
		t.Fatalf("expected reseeded boosts: got %d want 3", record.Boosts)
	}
}

func TestDailyRolloverAppliesOnConsume(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 3, 10, 23, 50, 0, 0, time.UTC)
	service := newTestService(store, now)

	ctx := context.Background()
	userID := int64(108)

	if err := service.Ensure(ctx, userID, enums.TierFree, ""); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := service.Consume(ctx, userID, enums.CounterMessages, 1); err != nil {
			t.Fatalf("consume #%d: %v", i+1, err)
		}
	}
	if _, err := service.Consume(ctx, userID, enums.CounterMessages, 1); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}

	service.now = func() time.Time { return time.Date(2026, 3, 11, 0, 1, 0, 0, time.UTC) }

	remaining, err := service.Consume(ctx, userID, enums.CounterMessages, 1)
	if err != nil {
		t.Fatalf("consume after rollover: %v", err)
	}
	if remaining != 4 {
		t.Fatalf("unexpected remaining after rollover: got %d want 4", remaining)
	}
}

func TestGrantIncreasesBalance(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	service := newTestService(store, now)

	ctx := context.Background()
	userID := int64(109)

	if err := service.Ensure(ctx, userID, enums.TierFree, ""); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := service.Grant(ctx, userID, enums.CounterBoosts, 3); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := service.Grant(ctx, userID, enums.CounterBoosts, 0); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for non-positive grant, got %v", err)
	}

	record, _ := store.Get(ctx, userID)
	if record.Boosts != 3 {
		t.Fatalf("unexpected boosts after grant: got %d want 3", record.Boosts)
	}
}

func TestSetTierDowngradeClampsBalances(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	service := newTestService(store, now)

	ctx := context.Background()
	userID := int64(110)

	if err := service.Ensure(ctx, userID, enums.TierVIP, ""); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := service.SetTier(ctx, userID, enums.TierFree); err != nil {
		t.Fatalf("set tier: %v", err)
	}

	record, _ := store.Get(ctx, userID)
	if record.Tier != enums.TierFree {
		t.Fatalf("unexpected tier: %s", record.Tier)
	}
	if record.Messages != 5 {
		t.Fatalf("expected messages clamped to free cap: got %d want 5", record.Messages)
	}
	if record.Boosts != 0 {
		t.Fatalf("expected boosts clamped to free allowance: got %d want 0", record.Boosts)
	}
}

func TestSetTierUpgradeLiftsUncountedCounters(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	service := newTestService(store, now)

	ctx := context.Background()
	userID := int64(112)

	if err := service.Ensure(ctx, userID, enums.TierFree, ""); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, err := service.Consume(ctx, userID, enums.CounterMessages, 5); err != nil {
		t.Fatalf("exhaust messages: %v", err)
	}

	if err := service.SetTier(ctx, userID, enums.TierGold); err != nil {
		t.Fatalf("set tier gold: %v", err)
	}
	record, _ := store.Get(ctx, userID)
	if record.RightSwipes != rules.Unlimited || record.ProfileViews != rules.Unlimited {
		t.Fatalf("gold swipes and profile views must turn unlimited: got %d/%d", record.RightSwipes, record.ProfileViews)
	}
	if record.Messages != 0 {
		t.Fatalf("gold still meters messages, spent balance must stand: got %d", record.Messages)
	}

	if err := service.SetTier(ctx, userID, enums.TierVIP); err != nil {
		t.Fatalf("set tier vip: %v", err)
	}
	record, _ = store.Get(ctx, userID)
	if record.Messages != rules.Unlimited {
		t.Fatalf("vip does not meter messages: got %d", record.Messages)
	}
}

func TestResetDailySameDayKeepsRecordIntact(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	service := newTestService(store, now)

	ctx := context.Background()
	userID := int64(113)

	if err := service.Ensure(ctx, userID, enums.TierVIP, ""); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	before, _ := store.Get(ctx, userID)

	// A caller holding a stale tier must not smuggle in a downgrade.
	if err := service.ResetDaily(ctx, userID, enums.TierFree, now); err != nil {
		t.Fatalf("same-day reset: %v", err)
	}
	if err := service.ResetMonthly(ctx, userID, enums.TierFree, now); err != nil {
		t.Fatalf("same-month reset: %v", err)
	}

	after, _ := store.Get(ctx, userID)
	if after.Tier != enums.TierVIP {
		t.Fatalf("no-op reset changed tier: got %q want %q", after.Tier, enums.TierVIP)
	}
	if after != before {
		t.Fatalf("no-op reset mutated the record: %+v != %+v", after, before)
	}
}

func TestReadsDoNotWriteBack(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	service := newTestService(store, now)

	ctx := context.Background()
	userID := int64(114)

	if err := service.Ensure(ctx, userID, enums.TierFree, ""); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	writes := store.puts

	if _, err := service.Snapshot(ctx, userID); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if _, err := service.Remaining(ctx, userID, enums.CounterMessages); err != nil {
		t.Fatalf("remaining: %v", err)
	}

	if store.puts != writes {
		t.Fatalf("read-only calls must not persist: got %d writes want %d", store.puts, writes)
	}
}

func TestConsumeRejectsNonPositiveAmount(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	service := newTestService(store, now)

	ctx := context.Background()
	userID := int64(115)

	if err := service.Ensure(ctx, userID, enums.TierFree, ""); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	for _, amount := range []int{0, -2} {
		if _, err := service.Consume(ctx, userID, enums.CounterMessages, amount); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation for amount %d, got %v", amount, err)
		}
	}

	record, _ := store.Get(ctx, userID)
	if record.Messages != 5 {
		t.Fatalf("rejected consume must not mutate: got %d want 5", record.Messages)
	}
}

func TestClearRemovesEntry(t *testing.T) {
	store := newMemoryStore()
	service := newTestService(store, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))

	ctx := context.Background()
	userID := int64(111)

	if err := service.Ensure(ctx, userID, enums.TierFree, ""); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := service.Clear(ctx, userID); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := service.Snapshot(ctx, userID); !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser after clear, got %v", err)
	}
}
