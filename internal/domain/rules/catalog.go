package rules

import (
	"errors"
	"fmt"

	"github.com/amouradev/amoura/backend/internal/domain/enums"
)

// Unlimited marks a cap that is not counted at all for the tier.
const Unlimited = -1

var ErrUnknownTier = errors.New("unknown membership tier")

// MembershipFeatures is the static per-tier catalog entry. Caps are per
// local calendar day; Unlimited disables counting entirely.
type MembershipFeatures struct {
	DailyMessages     int
	DailyCompliments  int
	DailyRightSwipes  int
	DailyProfileViews int

	AdvancedFilters  bool
	PriorityMatching bool
	SeeWhoLikedYou   bool
	Incognito        bool
	Boost            bool
	Rewind           bool
	TravelMode       bool
	HideLocation     bool
}

// MonthlyAllowance is the per-tier consumable grant for a local calendar
// month.
type MonthlyAllowance struct {
	Boosts     int
	SuperLikes int
}

var membershipCatalog = map[enums.Tier]MembershipFeatures{
	enums.TierFree: {
		DailyMessages:     5,
		DailyCompliments:  1,
		DailyRightSwipes:  50,
		DailyProfileViews: 10,
	},
	enums.TierSilver: {
		DailyMessages:     25,
		DailyCompliments:  3,
		DailyRightSwipes:  150,
		DailyProfileViews: 50,
		AdvancedFilters:   true,
		Rewind:            true,
	},
	enums.TierGold: {
		DailyMessages:     100,
		DailyCompliments:  10,
		DailyRightSwipes:  Unlimited,
		DailyProfileViews: Unlimited,
		AdvancedFilters:   true,
		PriorityMatching:  true,
		SeeWhoLikedYou:    true,
		Boost:             true,
		Rewind:            true,
	},
	enums.TierVIP: {
		DailyMessages:     Unlimited,
		DailyCompliments:  25,
		DailyRightSwipes:  Unlimited,
		DailyProfileViews: Unlimited,
		AdvancedFilters:   true,
		PriorityMatching:  true,
		SeeWhoLikedYou:    true,
		Incognito:         true,
		Boost:             true,
		Rewind:            true,
		TravelMode:        true,
		HideLocation:      true,
	},
}

var allowanceCatalog = map[enums.Tier]MonthlyAllowance{
	enums.TierFree:   {Boosts: 0, SuperLikes: 0},
	enums.TierSilver: {Boosts: 0, SuperLikes: 5},
	enums.TierGold:   {Boosts: 3, SuperLikes: 15},
	enums.TierVIP:    {Boosts: 10, SuperLikes: 50},
}

// FeaturesFor looks up the catalog entry for a tier. The tier value may
// arrive from a stale external payload, so a miss is guarded even though
// it is unreachable for values produced by enums.ParseTier.
func FeaturesFor(tier enums.Tier) (MembershipFeatures, error) {
	features, ok := membershipCatalog[tier]
	if !ok {
		return MembershipFeatures{}, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}
	return features, nil
}

func AllowanceFor(tier enums.Tier) (MonthlyAllowance, error) {
	allowance, ok := allowanceCatalog[tier]
	if !ok {
		return MonthlyAllowance{}, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}
	return allowance, nil
}

// DailyCapFor returns the daily cap for a counter, or Unlimited. Monthly
// and purchase-only counters have no daily cap.
func DailyCapFor(features MembershipFeatures, counter enums.Counter) (int, bool) {
	switch counter {
	case enums.CounterMessages:
		return features.DailyMessages, true
	case enums.CounterCompliments:
		return features.DailyCompliments, true
	case enums.CounterRightSwipes:
		return features.DailyRightSwipes, true
	case enums.CounterProfileViews:
		return features.DailyProfileViews, true
	default:
		return 0, false
	}
}

func MonthlyCapFor(allowance MonthlyAllowance, counter enums.Counter) (int, bool) {
	switch counter {
	case enums.CounterBoosts:
		return allowance.Boosts, true
	case enums.CounterSuperLikes:
		return allowance.SuperLikes, true
	default:
		return 0, false
	}
}
