package handlers

import (
	"errors"
	"net/http"

	"github.com/amouradev/amoura/backend/internal/domain/model"
	authsvc "github.com/amouradev/amoura/backend/internal/services/auth"
	ledgersvc "github.com/amouradev/amoura/backend/internal/services/ledger"
	reconcilesvc "github.com/amouradev/amoura/backend/internal/services/reconcile"
	"github.com/amouradev/amoura/backend/internal/transport/http/dto"
	httperrors "github.com/amouradev/amoura/backend/internal/transport/http/errors"
)

type SyncHandler struct {
	reconciler *reconcilesvc.Service
}

func NewSyncHandler(reconciler *reconcilesvc.Service) *SyncHandler {
	return &SyncHandler{reconciler: reconciler}
}

// Reconcile merges a store-of-record snapshot into the caller's ledger.
// Stale snapshots are acknowledged with applied=false.
func (h *SyncHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	if h.reconciler == nil {
		writeInternal(w, "RECONCILE_UNAVAILABLE", "reconciliation service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	var req dto.SyncRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	snapshot := model.Snapshot{
		Tier: req.Tier,
		AsOf: req.AsOf,
		Credits: model.SnapshotCredits{
			Messages:     req.Credits.Messages,
			Compliments:  req.Credits.Compliments,
			RightSwipes:  req.Credits.RightSwipes,
			ProfileViews: req.Credits.ProfileViews,
			Boosts:       req.Credits.Boosts,
			SuperLikes:   req.Credits.SuperLikes,
			Unlocks:      req.Credits.Unlocks,
		},
	}

	result, err := h.reconciler.Apply(r.Context(), identity.UserID, snapshot)
	if err != nil {
		switch {
		case errors.Is(err, reconcilesvc.ErrValidation), errors.Is(err, reconcilesvc.ErrInvalidSnapshot):
			writeBadRequest(w, "INVALID_SNAPSHOT", "snapshot validation failed")
		case errors.Is(err, ledgersvc.ErrUnknownUser):
			writeNotFound(w, "LEDGER_NOT_FOUND", "no credit ledger for user")
		default:
			writeInternal(w, "INTERNAL_ERROR", "internal server error")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.SyncResponse{
		Applied: result.Applied,
		Tier:    string(result.ResultingTier),
	})
}
