package dto

import "time"

// CreditBalancesResponse reports remaining credits; -1 means the counter
// is unlimited for the current tier.
type CreditBalancesResponse struct {
	Messages     int `json:"messages"`
	Compliments  int `json:"compliments"`
	RightSwipes  int `json:"right_swipes"`
	ProfileViews int `json:"profile_views"`
	Boosts       int `json:"boosts"`
	SuperLikes   int `json:"super_likes"`
	Unlocks      int `json:"unlocks"`
}

type FeatureFlagsResponse struct {
	SeeWhoLikedYou   bool `json:"see_who_liked_you"`
	AdvancedFilters  bool `json:"advanced_filters"`
	Incognito        bool `json:"incognito"`
	HideLocation     bool `json:"hide_location"`
	PriorityMatching bool `json:"priority_matching"`
	Rewind           bool `json:"rewind"`
	Boost            bool `json:"boost"`
}

type CreditsResponse struct {
	Tier               string                 `json:"tier"`
	Timezone           string                 `json:"timezone"`
	Credits            CreditBalancesResponse `json:"credits"`
	Features           FeatureFlagsResponse   `json:"features"`
	NextDailyResetAt   time.Time              `json:"next_daily_reset_at"`
	NextMonthlyResetAt time.Time              `json:"next_monthly_reset_at"`
	ReconciledAt       *time.Time             `json:"reconciled_at,omitempty"`
}

type DeleteAccountResponse struct {
	OK bool `json:"ok"`
}
