package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/amouradev/amoura/backend/internal/domain/enums"
	"github.com/amouradev/amoura/backend/internal/domain/model"
	"github.com/amouradev/amoura/backend/internal/domain/rules"
	ledgersvc "github.com/amouradev/amoura/backend/internal/services/ledger"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrInvalidSnapshot = errors.New("invalid reconciliation snapshot")
	ErrDependenciesNil = errors.New("reconcile dependencies are not configured")
)

// errStale aborts the ledger update without persisting anything; a stale
// snapshot is a normal outcome, not an error, so it never leaves Apply.
var errStale = errors.New("stale snapshot")

// Ledger is the slice of the credit ledger the engine merges into. Update
// runs the closure under the user's lock, so a whole merge is atomic with
// respect to concurrent consumes.
type Ledger interface {
	Update(ctx context.Context, userID int64, fn func(*ledgersvc.Record) error) error
}

type Service struct {
	ledger Ledger
	logger *zap.Logger
}

type Result struct {
	Applied       bool
	ResultingTier enums.Tier
}

func NewService(ledger Ledger, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		ledger: ledger,
		logger: logger,
	}
}

// Apply merges an authoritative snapshot into the user's ledger entry.
// Stale snapshots (AsOf at or before the last reconciled timestamp) are
// discarded without mutation, which makes retried and out-of-order
// deliveries safe. The tier only ever moves up here; downgrades are an
// explicit server-driven operation on the ledger itself. When the tier
// rises, counters the new tier no longer meters switch to unlimited;
// beyond that only counters the snapshot asserts change.
func (s *Service) Apply(ctx context.Context, userID int64, snapshot model.Snapshot) (Result, error) {
	if s.ledger == nil {
		return Result{}, ErrDependenciesNil
	}
	if userID <= 0 {
		return Result{}, ErrValidation
	}

	tier, err := enums.ParseTier(snapshot.Tier)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if snapshot.AsOf.IsZero() {
		return Result{}, fmt.Errorf("%w: missing as_of timestamp", ErrInvalidSnapshot)
	}

	result := Result{}
	err = s.ledger.Update(ctx, userID, func(record *ledgersvc.Record) error {
		if !snapshot.AsOf.After(record.ReconciledAt) {
			result = Result{Applied: false, ResultingTier: record.Tier}
			return errStale
		}

		previous := record.Tier
		record.Tier = enums.MaxTier(record.Tier, tier)
		if record.Tier != previous {
			if err := ledgersvc.RaiseTierCaps(record); err != nil {
				return fmt.Errorf("raise tier caps: %w", err)
			}
		}
		applyCredits(record, snapshot.Credits)
		record.ReconciledAt = snapshot.AsOf.UTC()

		result = Result{Applied: true, ResultingTier: record.Tier}
		return nil
	})
	if errors.Is(err, errStale) {
		s.logger.Debug("discarded stale reconciliation snapshot",
			zap.Int64("user_id", userID),
			zap.Time("as_of", snapshot.AsOf),
		)
		return result, nil
	}
	if err != nil {
		return Result{}, err
	}

	s.logger.Info("applied reconciliation snapshot",
		zap.Int64("user_id", userID),
		zap.String("tier", string(result.ResultingTier)),
		zap.Time("as_of", snapshot.AsOf),
	)
	return result, nil
}

// applyCredits raises each counter the snapshot asserts to at least the
// asserted value. Balances are never reduced: a consume that raced the
// snapshot on the server side must not be double-counted against the
// user, and absent counters stay as they are.
func applyCredits(record *ledgersvc.Record, credits model.SnapshotCredits) {
	raise := func(target *int, asserted *int) {
		if asserted == nil || *target == rules.Unlimited {
			return
		}
		if *asserted > *target {
			*target = *asserted
		}
	}

	raise(&record.Messages, credits.Messages)
	raise(&record.Compliments, credits.Compliments)
	raise(&record.RightSwipes, credits.RightSwipes)
	raise(&record.ProfileViews, credits.ProfileViews)
	raise(&record.Boosts, credits.Boosts)
	raise(&record.SuperLikes, credits.SuperLikes)
	raise(&record.Unlocks, credits.Unlocks)
}

// ValidateSnapshot mirrors the checks Apply performs, for callers that
// want to reject malformed payloads before queueing them.
func ValidateSnapshot(snapshot model.Snapshot) error {
	if _, err := enums.ParseTier(snapshot.Tier); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if snapshot.AsOf.IsZero() {
		return fmt.Errorf("%w: missing as_of timestamp", ErrInvalidSnapshot)
	}
	return nil
}

// StalenessWindow reports how far behind the authoritative clock a cached
// snapshot is allowed to drift before a periodic pull refetches it.
const StalenessWindow = 15 * time.Minute
