package enums

import (
	"fmt"
	"strings"
)

type Counter string

const (
	CounterMessages     Counter = "messages"
	CounterCompliments  Counter = "compliments"
	CounterRightSwipes  Counter = "right_swipes"
	CounterProfileViews Counter = "profile_views"
	CounterBoosts       Counter = "boosts"
	CounterSuperLikes   Counter = "super_likes"
	CounterUnlocks      Counter = "unlocks"
)

// DailyCounters reset at local midnight, MonthlyCounters on the first day
// of the local calendar month. Unlocks are purchase-only and never reset.
var (
	DailyCounters   = []Counter{CounterMessages, CounterCompliments, CounterRightSwipes, CounterProfileViews}
	MonthlyCounters = []Counter{CounterBoosts, CounterSuperLikes}
)

func (c Counter) Known() bool {
	switch c {
	case CounterMessages, CounterCompliments, CounterRightSwipes, CounterProfileViews,
		CounterBoosts, CounterSuperLikes, CounterUnlocks:
		return true
	default:
		return false
	}
}

func ParseCounter(raw string) (Counter, error) {
	counter := Counter(strings.ToLower(strings.TrimSpace(raw)))
	if !counter.Known() {
		return "", fmt.Errorf("unknown counter %q", raw)
	}
	return counter, nil
}
