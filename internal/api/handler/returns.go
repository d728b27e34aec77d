package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/greyfinance/ach-engine/internal/service"
)

// ReturnsHandler triggers return-file reconciliation on demand, outside the
// worker's schedule.
type ReturnsHandler struct {
	svc *service.ReconciliationService
}

func NewReturnsHandler(svc *service.ReconciliationService) *ReturnsHandler {
	return &ReturnsHandler{svc: svc}
}

// Poll runs one reconciliation pass and reports what it applied.
func (h *ReturnsHandler) Poll(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Run(r.Context())
	if err != nil {
		zap.L().Error("return poll failed", zap.Error(err))
		RespondError(w, r, http.StatusBadGateway, "returns/poll-failed", "return polling failed")
		return
	}
	RespondJSON(w, http.StatusOK, result)
}
