package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/amouradev/amoura/backend/internal/domain/rules"
	authsvc "github.com/amouradev/amoura/backend/internal/services/auth"
	ledgersvc "github.com/amouradev/amoura/backend/internal/services/ledger"
	"github.com/amouradev/amoura/backend/internal/transport/http/dto"
	httperrors "github.com/amouradev/amoura/backend/internal/transport/http/errors"
)

type MeHandler struct {
	ledger *ledgersvc.Service
	auth   *authsvc.Service
	now    func() time.Time
}

func NewMeHandler(ledger *ledgersvc.Service, auth *authsvc.Service) *MeHandler {
	return &MeHandler{
		ledger: ledger,
		auth:   auth,
		now:    time.Now,
	}
}

// Credits returns the caller's tier, remaining balances, feature flags
// and the next reset boundaries in the ledger's stored timezone.
func (h *MeHandler) Credits(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		writeInternal(w, "LEDGER_UNAVAILABLE", "credit ledger is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	record, err := h.ledger.Snapshot(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, ledgersvc.ErrUnknownUser) {
			writeNotFound(w, "LEDGER_NOT_FOUND", "no credit ledger for user")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	features, err := rules.FeaturesFor(record.Tier)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	loc, err := time.LoadLocation(record.Timezone)
	if err != nil {
		loc = time.UTC
	}
	now := h.now()

	resp := dto.CreditsResponse{
		Tier:     string(record.Tier),
		Timezone: record.Timezone,
		Credits: dto.CreditBalancesResponse{
			Messages:     record.Messages,
			Compliments:  record.Compliments,
			RightSwipes:  record.RightSwipes,
			ProfileViews: record.ProfileViews,
			Boosts:       record.Boosts,
			SuperLikes:   record.SuperLikes,
			Unlocks:      record.Unlocks,
		},
		Features: dto.FeatureFlagsResponse{
			SeeWhoLikedYou:   features.SeeWhoLikedYou,
			AdvancedFilters:  features.AdvancedFilters,
			Incognito:        features.Incognito,
			HideLocation:     features.HideLocation,
			PriorityMatching: features.PriorityMatching,
			Rewind:           features.Rewind,
			Boost:            features.Boost,
		},
		NextDailyResetAt:   rules.NextDailyResetAt(now, loc),
		NextMonthlyResetAt: rules.NextMonthlyResetAt(now, loc),
	}
	if !record.ReconciledAt.IsZero() {
		reconciled := record.ReconciledAt
		resp.ReconciledAt = &reconciled
	}

	httperrors.Write(w, http.StatusOK, resp)
}

// DeleteAccount revokes every session; the ledger entry goes with them.
func (h *MeHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		writeInternal(w, "SERVICE_UNAVAILABLE", "account service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	if err := h.auth.LogoutAll(r.Context(), identity.UserID); err != nil {
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.DeleteAccountResponse{OK: true})
}
