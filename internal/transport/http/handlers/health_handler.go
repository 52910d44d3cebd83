package handlers

import (
	"net/http"

	"github.com/amouradev/amoura/backend/internal/transport/http/dto"
	httperrors "github.com/amouradev/amoura/backend/internal/transport/http/errors"
)

type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	httperrors.Write(w, http.StatusOK, dto.HealthResponse{Status: "ok"})
}
