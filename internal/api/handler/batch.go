package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/greyfinance/ach-engine/internal/domain"
	"github.com/greyfinance/ach-engine/internal/lock"
	"github.com/greyfinance/ach-engine/internal/models"
	"github.com/greyfinance/ach-engine/internal/repository"
	"github.com/greyfinance/ach-engine/internal/service"
)

// batchView decorates a batch with display dollar amounts.
type batchView struct {
	*models.Batch
	TotalDebit  string `json:"total_debit"`
	TotalCredit string `json:"total_credit"`
}

func newBatchView(b *models.Batch) batchView {
	return batchView{
		Batch:       b,
		TotalDebit:  domain.Cents(b.TotalDebitCents).String(),
		TotalCredit: domain.Cents(b.TotalCreditCents).String(),
	}
}

type itemView struct {
	models.BatchItem
	Amount string `json:"amount"`
}

// BatchHandler exposes the batch export pipeline to operators.
type BatchHandler struct {
	engine   *service.Engine
	delivery *service.DeliveryService
}

func NewBatchHandler(engine *service.Engine, delivery *service.DeliveryService) *BatchHandler {
	return &BatchHandler{engine: engine, delivery: delivery}
}

// Run triggers one batch export. Concurrent triggers are serialized by the
// batch lock; the loser gets 409.
func (h *BatchHandler) Run(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.RunBatch(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, lock.ErrAlreadyLocked):
			RespondError(w, r, http.StatusConflict, "batch/already-running", "a batch export is already in progress")
		case errors.Is(err, service.ErrNoEligibleOrders):
			RespondJSON(w, http.StatusOK, report)
		case errors.Is(err, service.ErrUploadFailed):
			// The batch exists and its file is spooled; report it with
			// the failure rather than hiding the partial outcome.
			RespondJSON(w, http.StatusBadGateway, report)
		default:
			zap.L().Error("batch run failed", zap.Error(err))
			RespondError(w, r, http.StatusInternalServerError, "batch/run-failed", "batch export failed")
		}
		return
	}
	RespondJSON(w, http.StatusCreated, report)
}

// Get returns one batch with its control totals.
func (h *BatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	batch, err := h.engine.GetBatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			RespondError(w, r, http.StatusNotFound, "batch/not-found", "batch not found")
			return
		}
		RespondError(w, r, http.StatusBadRequest, "batch/invalid-id", "invalid batch id")
		return
	}
	RespondJSON(w, http.StatusOK, newBatchView(batch))
}

// Items returns the display-safe item rows of a batch.
func (h *BatchHandler) Items(w http.ResponseWriter, r *http.Request) {
	items, err := h.engine.ListBatchItems(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			RespondError(w, r, http.StatusNotFound, "batch/not-found", "batch not found")
			return
		}
		RespondError(w, r, http.StatusBadRequest, "batch/invalid-id", "invalid batch id")
		return
	}
	views := make([]itemView, 0, len(items))
	for _, item := range items {
		views = append(views, itemView{BatchItem: item, Amount: domain.Cents(item.AmountCents).String()})
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"items": views})
}

// Deliver re-runs delivery for a generated or failed batch from its
// spooled file.
func (h *BatchHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	result, err := h.delivery.Redeliver(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			RespondError(w, r, http.StatusNotFound, "batch/not-found", "batch not found")
		case errors.Is(err, service.ErrUploadFailed):
			RespondJSON(w, http.StatusBadGateway, result)
		default:
			RespondError(w, r, http.StatusConflict, "batch/not-deliverable", err.Error())
		}
		return
	}
	RespondJSON(w, http.StatusOK, result)
}
