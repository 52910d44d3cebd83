package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/amouradev/amoura/backend/internal/domain/enums"
	ledgersvc "github.com/amouradev/amoura/backend/internal/services/ledger"
	"github.com/amouradev/amoura/backend/internal/transport/http/dto"
	httperrors "github.com/amouradev/amoura/backend/internal/transport/http/errors"
)

type AdminHandler struct {
	ledger *ledgersvc.Service
}

func NewAdminHandler(ledger *ledgersvc.Service) *AdminHandler {
	return &AdminHandler{ledger: ledger}
}

// SetTier forces a user onto a tier. Unlike reconciliation this path may
// downgrade, so it is the only way a tier ever moves down.
func (h *AdminHandler) SetTier(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		writeInternal(w, "LEDGER_UNAVAILABLE", "credit ledger is unavailable")
		return
	}

	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || userID <= 0 {
		writeBadRequest(w, "INVALID_REQUEST", "invalid user id")
		return
	}

	var req dto.AdminSetTierRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	tier, err := enums.ParseTier(req.Tier)
	if err != nil {
		writeBadRequest(w, "UNKNOWN_TIER", "unknown tier")
		return
	}

	if err := h.ledger.SetTier(r.Context(), userID, tier); err != nil {
		if errors.Is(err, ledgersvc.ErrUnknownUser) {
			writeNotFound(w, "LEDGER_NOT_FOUND", "no credit ledger for user")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.AdminSetTierResponse{
		OK:     true,
		UserID: userID,
		Tier:   string(tier),
	})
}
