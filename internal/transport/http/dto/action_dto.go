package dto

type ActionRequest struct {
	Action string `json:"action"`
}

type ActionResponse struct {
	Action    string `json:"action"`
	Allowed   bool   `json:"allowed"`
	Remaining int    `json:"remaining"`
	Tier      string `json:"tier"`
}
