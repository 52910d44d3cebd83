package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/amouradev/amoura/backend/internal/domain/enums"
	authsvc "github.com/amouradev/amoura/backend/internal/services/auth"
	entsvc "github.com/amouradev/amoura/backend/internal/services/entitlements"
	ledgersvc "github.com/amouradev/amoura/backend/internal/services/ledger"
	ratesvc "github.com/amouradev/amoura/backend/internal/services/rate"
	"github.com/amouradev/amoura/backend/internal/transport/http/dto"
	httperrors "github.com/amouradev/amoura/backend/internal/transport/http/errors"
)

type ActionsHandler struct {
	entitlements *entsvc.Service
	limiter      *ratesvc.Limiter
	now          func() time.Time
}

func NewActionsHandler(entitlements *entsvc.Service, limiter *ratesvc.Limiter) *ActionsHandler {
	return &ActionsHandler{
		entitlements: entitlements,
		limiter:      limiter,
		now:          time.Now,
	}
}

// Perform consumes one credit for the requested action. Rate limiting
// runs first so a throttled client never burns credits.
func (h *ActionsHandler) Perform(w http.ResponseWriter, r *http.Request) {
	if h.entitlements == nil {
		writeInternal(w, "ENTITLEMENTS_UNAVAILABLE", "entitlement service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	var req dto.ActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	action, err := enums.ParseAction(req.Action)
	if err != nil {
		writeBadRequest(w, "UNKNOWN_ACTION", "unknown action")
		return
	}

	if h.limiter != nil {
		_, allowed, err := h.limiter.AllowAction(r.Context(), identity.UserID, action)
		if err != nil {
			writeInternal(w, "INTERNAL_ERROR", "internal server error")
			return
		}
		if !allowed {
			h.writeRateLimited(w, r, identity.UserID, action)
			return
		}
	}

	decision, err := h.entitlements.ConsumeForAction(r.Context(), identity.UserID, action)
	if err != nil && !errors.Is(err, ledgersvc.ErrInsufficientCredits) {
		h.handleActionError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, decisionResponse(decision))
}

// Check reports whether the action would be allowed without consuming
// anything.
func (h *ActionsHandler) Check(w http.ResponseWriter, r *http.Request) {
	if h.entitlements == nil {
		writeInternal(w, "ENTITLEMENTS_UNAVAILABLE", "entitlement service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	action, err := enums.ParseAction(r.URL.Query().Get("action"))
	if err != nil {
		writeBadRequest(w, "UNKNOWN_ACTION", "unknown action")
		return
	}

	decision, err := h.entitlements.CanPerform(r.Context(), identity.UserID, action)
	if err != nil {
		h.handleActionError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, decisionResponse(decision))
}

func (h *ActionsHandler) writeRateLimited(w http.ResponseWriter, r *http.Request, userID int64, action enums.Action) {
	retryAfter, err := h.limiter.RetryAfter(r.Context(), userID, action)
	if err != nil {
		retryAfter = 1
	}
	cooldown := h.now().Add(time.Duration(retryAfter) * time.Second).UTC()
	httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
		Code:          "RATE_LIMITED",
		Message:       "too many actions, slow down",
		RetryAfterSec: retryAfter,
		CooldownUntil: &cooldown,
	})
}

func (h *ActionsHandler) handleActionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entsvc.ErrValidation), errors.Is(err, entsvc.ErrUnknownAction):
		writeBadRequest(w, "INVALID_REQUEST", "request validation failed")
	case errors.Is(err, ledgersvc.ErrUnknownUser):
		writeNotFound(w, "LEDGER_NOT_FOUND", "no credit ledger for user")
	default:
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}

func decisionResponse(decision entsvc.Decision) dto.ActionResponse {
	return dto.ActionResponse{
		Action:    string(decision.Action),
		Allowed:   decision.Allowed,
		Remaining: decision.Remaining,
		Tier:      string(decision.Tier),
	}
}
