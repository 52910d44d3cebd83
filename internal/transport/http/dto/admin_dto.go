package dto

type AdminSetTierRequest struct {
	Tier string `json:"tier"`
}

type AdminSetTierResponse struct {
	OK     bool   `json:"ok"`
	UserID int64  `json:"user_id"`
	Tier   string `json:"tier"`
}
