package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	authsvc "github.com/amouradev/amoura/backend/internal/services/auth"
	paysvc "github.com/amouradev/amoura/backend/internal/services/payments"
	"github.com/amouradev/amoura/backend/internal/transport/http/dto"
	httperrors "github.com/amouradev/amoura/backend/internal/transport/http/errors"
)

type PurchaseHandler struct {
	service *paysvc.Service
}

func NewPurchaseHandler(service *paysvc.Service) *PurchaseHandler {
	return &PurchaseHandler{service: service}
}

func (h *PurchaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "PAYMENTS_UNAVAILABLE", "payment service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	var req dto.PurchaseCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	res, err := h.service.Create(r.Context(), identity.UserID, paysvc.CreateInput{
		SKU:            req.SKU,
		Provider:       req.Provider,
		Amount:         req.Amount,
		Currency:       req.Currency,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.handlePaymentError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.PurchaseCreateResponse{
		PurchaseID: res.PurchaseID,
		SKU:        res.SKU,
		Provider:   res.Provider,
		Amount:     res.Amount,
		Currency:   res.Currency,
		Status:     res.Status,
		Idempotent: res.Idempotent,
	})
}

// Get serves purchase status polling after the app kicks off a payment.
func (h *PurchaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "PAYMENTS_UNAVAILABLE", "payment service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	res, err := h.service.Get(r.Context(), identity.UserID, chi.URLParam(r, "id"))
	if err != nil {
		h.handlePaymentError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.PurchaseCreateResponse{
		PurchaseID: res.PurchaseID,
		SKU:        res.SKU,
		Provider:   res.Provider,
		Amount:     res.Amount,
		Currency:   res.Currency,
		Status:     res.Status,
	})
}

// Webhook is called by the payment provider, not by the app, so it
// carries no bearer token. Idempotent per provider event.
func (h *PurchaseHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "PAYMENTS_UNAVAILABLE", "payment service is unavailable")
		return
	}

	var req dto.PurchaseWebhookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	res, err := h.service.ConfirmWebhook(r.Context(), paysvc.WebhookInput{
		PurchaseID:      req.PurchaseID,
		Provider:        req.Provider,
		ProviderEventID: req.ProviderEventID,
		Status:          req.Status,
		Payload:         req.Payload,
	})
	if err != nil {
		h.handlePaymentError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.PurchaseWebhookResponse{
		OK:         true,
		PurchaseID: res.PurchaseID,
		UserID:     res.UserID,
		SKU:        res.SKU,
		Status:     res.Status,
		Idempotent: res.AlreadyProcessed,
	})
}

func (h *PurchaseHandler) handlePaymentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, paysvc.ErrValidation), errors.Is(err, paysvc.ErrUnsupportedSKU), errors.Is(err, paysvc.ErrUnsupportedProvider):
		writeBadRequest(w, "INVALID_REQUEST", "request validation failed")
	case errors.Is(err, paysvc.ErrPurchaseNotFound):
		writeNotFound(w, "PURCHASE_NOT_FOUND", "purchase not found")
	default:
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}
