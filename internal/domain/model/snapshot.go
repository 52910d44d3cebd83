package model

import "time"

// Snapshot is an authoritative, timestamped statement of a user's tier and
// credits as the billing backend sees them. Tier stays a raw string until
// the reconcile engine validates it: snapshots arrive from external
// payloads and may carry values this build does not know.
type Snapshot struct {
	Tier    string          `json:"tier"`
	Credits SnapshotCredits `json:"credits"`
	AsOf    time.Time       `json:"as_of"`
}

// SnapshotCredits lists counter values the snapshot asserts. A nil field
// means the snapshot says nothing about that counter and it must not be
// altered during reconciliation.
type SnapshotCredits struct {
	Messages     *int `json:"messages,omitempty"`
	Compliments  *int `json:"compliments,omitempty"`
	RightSwipes  *int `json:"right_swipes,omitempty"`
	ProfileViews *int `json:"profile_views,omitempty"`
	Boosts       *int `json:"boosts,omitempty"`
	SuperLikes   *int `json:"super_likes,omitempty"`
	Unlocks      *int `json:"unlocks,omitempty"`
}
