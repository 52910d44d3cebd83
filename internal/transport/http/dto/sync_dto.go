package dto

import "time"

type SyncCreditsRequest struct {
	Messages     *int `json:"messages,omitempty"`
	Compliments  *int `json:"compliments,omitempty"`
	RightSwipes  *int `json:"right_swipes,omitempty"`
	ProfileViews *int `json:"profile_views,omitempty"`
	Boosts       *int `json:"boosts,omitempty"`
	SuperLikes   *int `json:"super_likes,omitempty"`
	Unlocks      *int `json:"unlocks,omitempty"`
}

type SyncRequest struct {
	Tier    string             `json:"tier"`
	Credits SyncCreditsRequest `json:"credits"`
	AsOf    time.Time          `json:"as_of"`
}

type SyncResponse struct {
	Applied bool   `json:"applied"`
	Tier    string `json:"tier"`
}
