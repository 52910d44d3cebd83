package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/amouradev/amoura/backend/internal/domain/enums"
	"github.com/amouradev/amoura/backend/internal/domain/rules"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrUnknownUser         = errors.New("no ledger entry for user")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrDependenciesNil     = errors.New("ledger dependencies are not configured")
)

// Record is a user's credit balance as the ledger persists it. Counter
// fields hold the remaining amount; rules.Unlimited means the counter is
// not tracked for the user's tier. DayKey and MonthKey remember the local
// period the daily and monthly counters were last seeded for.
type Record struct {
	UserID       int64
	Tier         enums.Tier
	Messages     int
	Compliments  int
	RightSwipes  int
	ProfileViews int
	Boosts       int
	SuperLikes   int
	Unlocks      int
	DayKey       string
	MonthKey     string
	Timezone     string
	ReconciledAt time.Time
	UpdatedAt    time.Time
}

// Store is the persistence boundary. Get returns ErrUnknownUser when no
// entry exists; it must never create one.
type Store interface {
	Get(ctx context.Context, userID int64) (Record, error)
	Put(ctx context.Context, record Record) error
	Delete(ctx context.Context, userID int64) error
}

type Config struct {
	DefaultTimezone string
}

type Service struct {
	store Store
	cfg   Config
	now   func() time.Time

	mu    sync.Mutex
	users map[int64]*sync.Mutex
}

func NewService(store Store, cfg Config) *Service {
	if strings.TrimSpace(cfg.DefaultTimezone) == "" {
		cfg.DefaultTimezone = "UTC"
	}

	return &Service{
		store: store,
		cfg:   cfg,
		now:   time.Now,
		users: make(map[int64]*sync.Mutex),
	}
}

// Update loads the user's record, applies fn and persists the result,
// holding the user's lock for the whole read-modify-write. Every mutating
// operation goes through here, so operations on one user never
// interleave; different users proceed independently. When fn fails
// nothing is persisted.
func (s *Service) Update(ctx context.Context, userID int64, fn func(*Record) error) error {
	if userID <= 0 {
		return ErrValidation
	}
	if s.store == nil {
		return ErrDependenciesNil
	}
	if fn == nil {
		return ErrValidation
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	record, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}

	before := record
	if err := fn(&record); err != nil {
		return err
	}
	if record == before {
		// Read-only call, nothing to write back.
		return nil
	}

	record.UpdatedAt = s.now().UTC()
	if err := s.store.Put(ctx, record); err != nil {
		return fmt.Errorf("persist ledger record: %w", err)
	}

	return nil
}

// Ensure creates the user's ledger entry seeded from the tier's daily caps
// and monthly allowance. Calling it again is a no-op apart from pending
// period resets, so callers may invoke it on every session start.
func (s *Service) Ensure(ctx context.Context, userID int64, tier enums.Tier, timezone string) error {
	if userID <= 0 {
		return ErrValidation
	}
	if s.store == nil {
		return ErrDependenciesNil
	}

	features, err := rules.FeaturesFor(tier)
	if err != nil {
		return err
	}
	allowance, err := rules.AllowanceFor(tier)
	if err != nil {
		return err
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	now := s.now().UTC()
	loc, tzName := s.resolveTimezone(timezone)

	record, err := s.store.Get(ctx, userID)
	if errors.Is(err, ErrUnknownUser) {
		record = Record{
			UserID:   userID,
			Tier:     tier,
			Timezone: tzName,
		}
		seedDaily(&record, features)
		seedMonthly(&record, allowance)
		record.DayKey = rules.DayKey(now, loc)
		record.MonthKey = rules.MonthKey(now, loc)
		record.UpdatedAt = now
		if err := s.store.Put(ctx, record); err != nil {
			return fmt.Errorf("persist ledger record: %w", err)
		}
		return nil
	}
	if err != nil {
		return err
	}

	changed, err := applyResets(&record, now)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	record.UpdatedAt = now
	if err := s.store.Put(ctx, record); err != nil {
		return fmt.Errorf("persist ledger record: %w", err)
	}
	return nil
}

// Snapshot returns the user's current balances with any pending period
// resets applied first. It never creates an entry.
func (s *Service) Snapshot(ctx context.Context, userID int64) (Record, error) {
	var out Record
	err := s.Update(ctx, userID, func(record *Record) error {
		if _, err := applyResets(record, s.now().UTC()); err != nil {
			return err
		}
		out = *record
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	return out, nil
}

// Consume decrements a counter by amount after applying pending resets.
// It fails with ErrInsufficientCredits without mutating anything when
// fewer than amount credits remain. The remaining balance after the
// decrement is returned; rules.Unlimited means the counter is not
// tracked for the user's tier.
func (s *Service) Consume(ctx context.Context, userID int64, counter enums.Counter, amount int) (int, error) {
	if !counter.Known() || amount <= 0 {
		return 0, ErrValidation
	}

	remaining := 0
	err := s.Update(ctx, userID, func(record *Record) error {
		if _, err := applyResets(record, s.now().UTC()); err != nil {
			return err
		}

		value := counterValue(record, counter)
		if *value == rules.Unlimited {
			remaining = rules.Unlimited
			return nil
		}
		if *value < amount {
			return ErrInsufficientCredits
		}

		*value -= amount
		remaining = *value
		return nil
	})
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

// Remaining reports the balance of a counter after applying pending
// resets, without consuming anything.
func (s *Service) Remaining(ctx context.Context, userID int64, counter enums.Counter) (int, error) {
	if !counter.Known() {
		return 0, ErrValidation
	}

	remaining := 0
	err := s.Update(ctx, userID, func(record *Record) error {
		if _, err := applyResets(record, s.now().UTC()); err != nil {
			return err
		}
		remaining = *counterValue(record, counter)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

// Grant credits a counter, typically while reconciling a purchase. The
// amount must be positive; a grant never reduces a balance.
func (s *Service) Grant(ctx context.Context, userID int64, counter enums.Counter, amount int) error {
	if !counter.Known() || amount <= 0 {
		return ErrValidation
	}

	return s.Update(ctx, userID, func(record *Record) error {
		value := counterValue(record, counter)
		if *value == rules.Unlimited {
			return nil
		}
		*value += amount
		return nil
	})
}

// ResetDaily reseeds the daily counters from the tier's caps when now
// falls on a later local calendar day than the recorded one. Safe to call
// on every entitlement check.
func (s *Service) ResetDaily(ctx context.Context, userID int64, tier enums.Tier, now time.Time) error {
	features, err := rules.FeaturesFor(tier)
	if err != nil {
		return err
	}

	return s.Update(ctx, userID, func(record *Record) error {
		loc, _ := s.resolveTimezone(record.Timezone)
		dayKey := rules.DayKey(now.UTC(), loc)
		if dayKey <= record.DayKey {
			return nil
		}
		record.Tier = tier
		seedDaily(record, features)
		record.DayKey = dayKey
		return nil
	})
}

// ResetMonthly is the monthly counterpart of ResetDaily, bounded by the
// tier's monthly allowance. The boundary is the local calendar month.
func (s *Service) ResetMonthly(ctx context.Context, userID int64, tier enums.Tier, now time.Time) error {
	allowance, err := rules.AllowanceFor(tier)
	if err != nil {
		return err
	}

	return s.Update(ctx, userID, func(record *Record) error {
		loc, _ := s.resolveTimezone(record.Timezone)
		monthKey := rules.MonthKey(now.UTC(), loc)
		if monthKey <= record.MonthKey {
			return nil
		}
		record.Tier = tier
		seedMonthly(record, allowance)
		record.MonthKey = monthKey
		return nil
	})
}

// SetTier records an explicit, server-driven tier change. Downgrades only
// happen here, never through reconciliation; finite balances above the
// new tier's caps are clamped so lapsed members do not keep premium
// credits. On an upgrade, counters the new tier stops metering switch to
// unlimited.
func (s *Service) SetTier(ctx context.Context, userID int64, tier enums.Tier) error {
	features, err := rules.FeaturesFor(tier)
	if err != nil {
		return err
	}
	allowance, err := rules.AllowanceFor(tier)
	if err != nil {
		return err
	}

	return s.Update(ctx, userID, func(record *Record) error {
		downgrade := tier.Rank() < record.Tier.Rank()
		record.Tier = tier
		if !downgrade {
			liftUncounted(record, features, allowance)
			return nil
		}

		clampCounter(&record.Messages, features.DailyMessages)
		clampCounter(&record.Compliments, features.DailyCompliments)
		clampCounter(&record.RightSwipes, features.DailyRightSwipes)
		clampCounter(&record.ProfileViews, features.DailyProfileViews)
		clampCounter(&record.Boosts, allowance.Boosts)
		clampCounter(&record.SuperLikes, allowance.SuperLikes)
		return nil
	})
}

// Clear removes the user's entry on logout or account deletion.
func (s *Service) Clear(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return ErrValidation
	}
	if s.store == nil {
		return ErrDependenciesNil
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("clear ledger record: %w", err)
	}
	return nil
}

func (s *Service) userLock(userID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.users[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.users[userID] = lock
	}
	return lock
}

func (s *Service) resolveTimezone(explicit string) (*time.Location, string) {
	candidate := strings.TrimSpace(explicit)
	if candidate == "" {
		candidate = strings.TrimSpace(s.cfg.DefaultTimezone)
	}
	if candidate == "" {
		candidate = "UTC"
	}

	loc, err := time.LoadLocation(candidate)
	if err != nil {
		return time.UTC, "UTC"
	}
	return loc, candidate
}

// applyResets reseeds counters whose local period has rolled over since
// the record was last touched, using the caps of the record's own tier.
func applyResets(record *Record, now time.Time) (bool, error) {
	features, err := rules.FeaturesFor(record.Tier)
	if err != nil {
		return false, err
	}
	allowance, err := rules.AllowanceFor(record.Tier)
	if err != nil {
		return false, err
	}

	loc := time.UTC
	if record.Timezone != "" {
		if parsed, tzErr := time.LoadLocation(record.Timezone); tzErr == nil {
			loc = parsed
		}
	}

	changed := false
	if dayKey := rules.DayKey(now, loc); dayKey > record.DayKey {
		seedDaily(record, features)
		record.DayKey = dayKey
		changed = true
	}
	if monthKey := rules.MonthKey(now, loc); monthKey > record.MonthKey {
		seedMonthly(record, allowance)
		record.MonthKey = monthKey
		changed = true
	}
	return changed, nil
}

func seedDaily(record *Record, features rules.MembershipFeatures) {
	record.Messages = features.DailyMessages
	record.Compliments = features.DailyCompliments
	record.RightSwipes = features.DailyRightSwipes
	record.ProfileViews = features.DailyProfileViews
}

func seedMonthly(record *Record, allowance rules.MonthlyAllowance) {
	record.Boosts = allowance.Boosts
	record.SuperLikes = allowance.SuperLikes
}

func counterValue(record *Record, counter enums.Counter) *int {
	switch counter {
	case enums.CounterMessages:
		return &record.Messages
	case enums.CounterCompliments:
		return &record.Compliments
	case enums.CounterRightSwipes:
		return &record.RightSwipes
	case enums.CounterProfileViews:
		return &record.ProfileViews
	case enums.CounterBoosts:
		return &record.Boosts
	case enums.CounterSuperLikes:
		return &record.SuperLikes
	default:
		return &record.Unlocks
	}
}

func clampCounter(value *int, limit int) {
	if limit == rules.Unlimited {
		return
	}
	if *value == rules.Unlimited || *value > limit {
		*value = limit
	}
}

// RaiseTierCaps flips every counter the record's tier does not count to
// rules.Unlimited. It must run whenever the tier moves up, so a finite
// balance left over from the lower tier cannot keep gating an action the
// new tier no longer meters. Counted caps stay as they are; those only
// grow through explicit grants.
func RaiseTierCaps(record *Record) error {
	features, err := rules.FeaturesFor(record.Tier)
	if err != nil {
		return err
	}
	allowance, err := rules.AllowanceFor(record.Tier)
	if err != nil {
		return err
	}

	liftUncounted(record, features, allowance)
	return nil
}

func liftUncounted(record *Record, features rules.MembershipFeatures, allowance rules.MonthlyAllowance) {
	lift := func(value *int, limit int) {
		if limit == rules.Unlimited {
			*value = rules.Unlimited
		}
	}

	lift(&record.Messages, features.DailyMessages)
	lift(&record.Compliments, features.DailyCompliments)
	lift(&record.RightSwipes, features.DailyRightSwipes)
	lift(&record.ProfileViews, features.DailyProfileViews)
	lift(&record.Boosts, allowance.Boosts)
	lift(&record.SuperLikes, allowance.SuperLikes)
}
