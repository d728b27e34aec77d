package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/greyfinance/ach-engine/internal/domain"
	"github.com/greyfinance/ach-engine/internal/lock"
	"github.com/greyfinance/ach-engine/internal/models"
	"github.com/greyfinance/ach-engine/internal/nacha"
	"github.com/greyfinance/ach-engine/internal/observability"
	"github.com/greyfinance/ach-engine/internal/orders"
	"github.com/greyfinance/ach-engine/internal/repository"
)

// batchLockScope serializes batch exports system-wide: a bank account's
// data is in at most one in-flight batch at a time.
const batchLockScope = "batch-export"

// Engine drives the full export pipeline: lock, assemble, encode, persist,
// report outcomes, deliver.
type Engine struct {
	store     repository.Store
	locker    lock.Locker
	assembler *AssemblyService
	delivery  *DeliveryService
	gateway   orders.Gateway
	audit     *AuditService

	fileParams nacha.FileParams
	lockTTL    time.Duration
}

func NewEngine(
	store repository.Store,
	locker lock.Locker,
	assembler *AssemblyService,
	delivery *DeliveryService,
	gateway orders.Gateway,
	fileParams nacha.FileParams,
	lockTTL time.Duration,
) *Engine {
	return &Engine{
		store:      store,
		locker:     locker,
		assembler:  assembler,
		delivery:   delivery,
		gateway:    gateway,
		audit:      NewAuditService(store),
		fileParams: fileParams,
		lockTTL:    lockTTL,
	}
}

// RunReport summarises one batch run for the caller.
type RunReport struct {
	Batch    *models.Batch   `json:"batch,omitempty"`
	Accepted int             `json:"accepted"`
	Skipped  []SkippedOrder  `json:"skipped,omitempty"`
	Delivery *DeliveryResult `json:"delivery,omitempty"`
}

// RunBatch executes one batch export end to end. Lock contention surfaces
// as lock.ErrAlreadyLocked, a recoverable condition for the caller.
func (e *Engine) RunBatch(ctx context.Context) (*RunReport, error) {
	batch, file, report, err := e.exportLocked(ctx)
	if err != nil {
		return report, err
	}

	// Delivery runs after the lock is released: the generated file is
	// immutable by now, and a slow upload must not block the next
	// assembly indefinitely.
	deliveryResult, deliveryErr := e.delivery.Deliver(ctx, batch, file)
	report.Delivery = deliveryResult
	if deliveryErr != nil {
		return report, deliveryErr
	}

	refreshed, err := e.store.GetBatch(ctx, batch.ID)
	if err == nil {
		report.Batch = refreshed
	}
	return report, nil
}

// exportLocked runs assembly and encode under the batch lock, releasing it
// on every path. Cancellation mid-assembly releases the lock and leaves
// the batch FAILED, never half-GENERATED.
func (e *Engine) exportLocked(ctx context.Context) (*models.Batch, []byte, *RunReport, error) {
	token, err := e.locker.Acquire(ctx, batchLockScope, e.lockTTL)
	if err != nil {
		return nil, nil, &RunReport{}, err
	}
	defer func() {
		// Release on a fresh context so cancellation cannot wedge
		// the lock until TTL expiry.
		if err := token.Release(context.Background()); err != nil {
			zap.L().Error("batch lock release failed", zap.Error(err))
		}
	}()

	report := &RunReport{}

	eligible, err := e.gateway.EligibleOrders(ctx)
	if err != nil {
		return nil, nil, report, fmt.Errorf("list eligible orders: %w", err)
	}

	batch := &models.Batch{
		ID:        uuid.New(),
		Status:    domain.BatchStatusPending,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := e.store.CreateBatch(ctx, batch); err != nil {
		return nil, nil, report, fmt.Errorf("create batch: %w", err)
	}
	report.Batch = batch
	if err := e.audit.Write(ctx, "batch_created", batch.ID, map[string]any{"eligible_orders": len(eligible)}); err != nil {
		zap.L().Warn("audit write failed", zap.Error(err))
	}

	if err := e.store.TransitionBatch(ctx, batch.ID, domain.BatchStatusPending, domain.BatchStatusAssembling); err != nil {
		return nil, nil, report, fmt.Errorf("mark batch assembling: %w", err)
	}
	batch.Status = domain.BatchStatusAssembling

	assembly, err := e.assembler.Assemble(ctx, batch.ID, eligible)
	if assembly != nil {
		report.Skipped = assembly.Skipped
	}
	if err != nil {
		e.failBatch(ctx, batch, err)
		if errors.Is(err, ErrNoEligibleOrders) {
			e.applySkipped(ctx, assembly.Skipped)
		}
		return nil, nil, report, err
	}

	traceSeq, err := e.store.ReserveTraceSequence(ctx, len(assembly.Entries))
	if err != nil {
		e.failBatch(ctx, batch, err)
		return nil, nil, report, fmt.Errorf("reserve trace sequence: %w", err)
	}

	encoded, err := nacha.Encode(e.fileParams, batch.CreatedAt, 1, traceSeq, assembly.Entries)
	// Drop plaintext entries as soon as encode returns; the decrypt
	// scope ends here.
	assembly.Entries = nil
	if err != nil {
		e.failBatch(ctx, batch, err)
		return nil, nil, report, fmt.Errorf("encode batch: %w", err)
	}

	sum := sha256.Sum256(encoded.Bytes)
	batch.FileHash = hex.EncodeToString(sum[:])
	batch.EntryCount = encoded.EntryCount
	batch.TotalDebitCents = encoded.TotalDebitCents
	batch.TotalCreditCents = encoded.TotalCreditCents

	for i := range assembly.Items {
		assembly.Items[i].TraceNumber = encoded.TraceNumbers[i]
	}
	// Trace numbers are persisted before any upload: they are the only
	// way to re-associate a processor return with an order.
	if err := e.store.FinalizeEncodedBatch(ctx, batch, assembly.Items); err != nil {
		e.failBatch(ctx, batch, err)
		return nil, nil, report, fmt.Errorf("finalize batch: %w", err)
	}
	batch.Status = domain.BatchStatusGenerated
	report.Accepted = len(assembly.Items)

	observability.IncrementBatchAssembled()
	observability.AddEntriesEncoded(encoded.EntryCount)
	if err := e.audit.Write(ctx, "file_generated", batch.ID, map[string]any{
		"file_hash":         batch.FileHash,
		"entry_count":       encoded.EntryCount,
		"total_debit_cents": encoded.TotalDebitCents,
		"skipped":           len(assembly.Skipped),
	}); err != nil {
		zap.L().Warn("audit write failed", zap.Error(err))
	}

	e.applyAccepted(ctx, assembly.Items)
	e.applySkipped(ctx, assembly.Skipped)

	return batch, encoded.Bytes, report, nil
}

func (e *Engine) failBatch(ctx context.Context, batch *models.Batch, cause error) {
	if err := e.store.TransitionBatch(ctx, batch.ID, batch.Status, domain.BatchStatusFailed); err != nil {
		zap.L().Error("failed to mark batch failed", zap.Error(err), zap.String("batch_id", batch.ID.String()))
		return
	}
	batch.Status = domain.BatchStatusFailed
	zap.L().Warn("batch failed", zap.String("batch_id", batch.ID.String()), zap.Error(cause))
}

func (e *Engine) applyAccepted(ctx context.Context, items []models.BatchItem) {
	for _, item := range items {
		update := models.OrderUpdate{OrderID: item.OrderID, Outcome: models.OrderOutcomeAccepted}
		if err := e.gateway.ApplyUpdate(ctx, update); err != nil {
			zap.L().Warn("order update failed", zap.String("order_id", item.OrderID.String()), zap.Error(err))
		}
	}
}

func (e *Engine) applySkipped(ctx context.Context, skipped []SkippedOrder) {
	for _, skip := range skipped {
		update := models.OrderUpdate{OrderID: skip.OrderID, Outcome: models.OrderOutcomeRejected, Reason: skip.Reason}
		if err := e.gateway.ApplyUpdate(ctx, update); err != nil {
			zap.L().Warn("order update failed", zap.String("order_id", skip.OrderID.String()), zap.Error(err))
		}
	}
}

// GetBatch exposes batch state to the API layer.
func (e *Engine) GetBatch(ctx context.Context, batchID string) (*models.Batch, error) {
	id, err := parseUUID(batchID)
	if err != nil {
		return nil, err
	}
	return e.store.GetBatch(ctx, id)
}

// ListBatchItems exposes the display-safe item rows of a batch.
func (e *Engine) ListBatchItems(ctx context.Context, batchID string) ([]models.BatchItem, error) {
	id, err := parseUUID(batchID)
	if err != nil {
		return nil, err
	}
	if _, err := e.store.GetBatch(ctx, id); err != nil {
		return nil, err
	}
	return e.store.ListBatchItems(ctx, id)
}
