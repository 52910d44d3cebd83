package entitlements

import (
	"context"
	"errors"
	"fmt"

	"github.com/amouradev/amoura/backend/internal/domain/enums"
	"github.com/amouradev/amoura/backend/internal/domain/rules"
	ledgersvc "github.com/amouradev/amoura/backend/internal/services/ledger"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrUnknownAction   = errors.New("unknown action")
	ErrDependenciesNil = errors.New("entitlement dependencies are not configured")
)

// Ledger is the slice of the credit ledger the evaluator needs. Snapshot
// and Consume both apply pending period resets before reading, so the
// evaluator never reasons about stale counters.
type Ledger interface {
	Snapshot(ctx context.Context, userID int64) (ledgersvc.Record, error)
	Consume(ctx context.Context, userID int64, counter enums.Counter, amount int) (int, error)
}

type Service struct {
	ledger Ledger
}

// Decision reports the outcome of an entitlement check. Remaining is
// rules.Unlimited for uncounted actions and flag-backed features.
type Decision struct {
	Action    enums.Action
	Allowed   bool
	Remaining int
	Tier      enums.Tier
}

func NewService(ledger Ledger) *Service {
	return &Service{ledger: ledger}
}

// CanPerform answers whether the user could perform the action right now
// without consuming anything. Counter-backed actions require a positive
// remaining balance or an unlimited cap; flag-backed actions require the
// tier's feature flag.
func (s *Service) CanPerform(ctx context.Context, userID int64, action enums.Action) (Decision, error) {
	record, features, err := s.load(ctx, userID, action)
	if err != nil {
		return Decision{}, err
	}

	if counter, ok := counterForAction(action); ok {
		remaining := *recordCounter(&record, counter)
		return Decision{
			Action:    action,
			Allowed:   remaining == rules.Unlimited || remaining > 0,
			Remaining: remaining,
			Tier:      record.Tier,
		}, nil
	}

	return Decision{
		Action:    action,
		Allowed:   flagForAction(features, action),
		Remaining: rules.Unlimited,
		Tier:      record.Tier,
	}, nil
}

// ConsumeForAction is the only gating path for counter-backed actions:
// reset, check and decrement happen under the ledger's per-user lock, so
// a check can never be split from its consume. Nothing is mutated when
// the action is denied; denial is reported as
// ledger.ErrInsufficientCredits alongside the decision.
func (s *Service) ConsumeForAction(ctx context.Context, userID int64, action enums.Action) (Decision, error) {
	counter, ok := counterForAction(action)
	if !ok {
		// Flag-backed actions consume nothing.
		return s.CanPerform(ctx, userID, action)
	}
	if s.ledger == nil {
		return Decision{}, ErrDependenciesNil
	}
	if userID <= 0 {
		return Decision{}, ErrValidation
	}

	remaining, err := s.ledger.Consume(ctx, userID, counter, 1)
	if err != nil {
		if errors.Is(err, ledgersvc.ErrInsufficientCredits) {
			decision, inspectErr := s.CanPerform(ctx, userID, action)
			if inspectErr != nil {
				return Decision{}, inspectErr
			}
			decision.Allowed = false
			return decision, ledgersvc.ErrInsufficientCredits
		}
		return Decision{}, fmt.Errorf("consume %s: %w", counter, err)
	}

	record, err := s.ledger.Snapshot(ctx, userID)
	if err != nil {
		return Decision{}, fmt.Errorf("read ledger after consume: %w", err)
	}

	return Decision{
		Action:    action,
		Allowed:   true,
		Remaining: remaining,
		Tier:      record.Tier,
	}, nil
}

func (s *Service) load(ctx context.Context, userID int64, action enums.Action) (ledgersvc.Record, rules.MembershipFeatures, error) {
	if s.ledger == nil {
		return ledgersvc.Record{}, rules.MembershipFeatures{}, ErrDependenciesNil
	}
	if userID <= 0 {
		return ledgersvc.Record{}, rules.MembershipFeatures{}, ErrValidation
	}
	if !action.Known() {
		return ledgersvc.Record{}, rules.MembershipFeatures{}, ErrUnknownAction
	}

	record, err := s.ledger.Snapshot(ctx, userID)
	if err != nil {
		return ledgersvc.Record{}, rules.MembershipFeatures{}, err
	}

	features, err := rules.FeaturesFor(record.Tier)
	if err != nil {
		return ledgersvc.Record{}, rules.MembershipFeatures{}, err
	}

	return record, features, nil
}

func counterForAction(action enums.Action) (enums.Counter, bool) {
	switch action {
	case enums.ActionSendMessage:
		return enums.CounterMessages, true
	case enums.ActionSendCompliment:
		return enums.CounterCompliments, true
	case enums.ActionRightSwipe:
		return enums.CounterRightSwipes, true
	case enums.ActionSuperLike:
		return enums.CounterSuperLikes, true
	case enums.ActionBoost:
		return enums.CounterBoosts, true
	case enums.ActionViewProfile:
		return enums.CounterProfileViews, true
	default:
		return "", false
	}
}

func flagForAction(features rules.MembershipFeatures, action enums.Action) bool {
	switch action {
	case enums.ActionUseIncognito:
		return features.Incognito
	case enums.ActionHideLocation:
		return features.HideLocation
	case enums.ActionAdvancedFilter:
		return features.AdvancedFilters
	default:
		return false
	}
}

func recordCounter(record *ledgersvc.Record, counter enums.Counter) *int {
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
