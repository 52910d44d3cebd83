package dto

type PurchaseCreateRequest struct {
	SKU            string `json:"sku"`
	Provider       string `json:"provider"`
	Amount         int    `json:"amount,omitempty"`
	Currency       string `json:"currency,omitempty"`
	IdempotencyKey string `json:"idempotency_key"`
}

type PurchaseCreateResponse struct {
	PurchaseID string `json:"purchase_id"`
	SKU        string `json:"sku"`
	Provider   string `json:"provider"`
	Amount     int    `json:"amount"`
	Currency   string `json:"currency"`
	Status     string `json:"status"`
	Idempotent bool   `json:"idempotent"`
}

type PurchaseWebhookRequest struct {
	PurchaseID      string                 `json:"purchase_id"`
	Provider        string                 `json:"provider"`
	ProviderEventID string                 `json:"provider_event_id"`
	Status          string                 `json:"status,omitempty"`
	Payload         map[string]interface{} `json:"payload,omitempty"`
}

type PurchaseWebhookResponse struct {
	OK         bool   `json:"ok"`
	PurchaseID string `json:"purchase_id"`
	UserID     int64  `json:"user_id"`
	SKU        string `json:"sku"`
	Status     string `json:"status"`
	Idempotent bool   `json:"idempotent"`
}
