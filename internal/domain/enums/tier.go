package enums

import (
	"fmt"
	"strings"
)

type Tier string

const (
	TierFree   Tier = "free"
	TierSilver Tier = "silver"
	TierGold   Tier = "gold"
	TierVIP    Tier = "vip"
)

var tierRanks = map[Tier]int{
	TierFree:   0,
	TierSilver: 1,
	TierGold:   2,
	TierVIP:    3,
}

// Rank returns the position of the tier in the free < silver < gold < vip
// ordering, or -1 for a tier the catalog does not define.
func (t Tier) Rank() int {
	rank, ok := tierRanks[t]
	if !ok {
		return -1
	}
	return rank
}

func (t Tier) Known() bool {
	_, ok := tierRanks[t]
	return ok
}

// ParseTier normalizes a tier value arriving from an external payload.
// Unknown values are an error, not a fallback: stale clients and billing
// backends may send tiers this build has never heard of.
func ParseTier(raw string) (Tier, error) {
	tier := Tier(strings.ToLower(strings.TrimSpace(raw)))
	if !tier.Known() {
		return "", fmt.Errorf("unknown tier %q", raw)
	}
	return tier, nil
}

func MaxTier(a, b Tier) Tier {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

func AllTiers() []Tier {
	return []Tier{TierFree, TierSilver, TierGold, TierVIP}
}
