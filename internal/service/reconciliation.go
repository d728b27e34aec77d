package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/greyfinance/ach-engine/internal/domain"
	"github.com/greyfinance/ach-engine/internal/models"
	"github.com/greyfinance/ach-engine/internal/nacha"
	"github.com/greyfinance/ach-engine/internal/observability"
	"github.com/greyfinance/ach-engine/internal/orders"
	"github.com/greyfinance/ach-engine/internal/repository"
	"github.com/greyfinance/ach-engine/internal/transport"
)

// processedSuffix marks remote return files the engine has fully applied.
const processedSuffix = ".done"

// ReconciliationConfig bounds return polling and settlement.
type ReconciliationConfig struct {
	ReturnDir        string
	SettlementWindow time.Duration
}

// ReconciliationResult reports one polling run.
type ReconciliationResult struct {
	FilesSeen      int `json:"files_seen"`
	FilesProcessed int `json:"files_processed"`
	FilesSkipped   int `json:"files_skipped"`
	Returns        int `json:"returns"`
	Unmatched      int `json:"unmatched"`
	Settled        int `json:"settled"`
}

// ReconciliationService ingests processor return files and applies
// settlement. Each file is recorded in a processed-file ledger before its
// effects are applied, so a crash mid-file can skip returns but never
// double-apply them.
type ReconciliationService struct {
	store   repository.Store
	client  transport.Client
	gateway orders.Gateway
	audit   *AuditService
	cfg     ReconciliationConfig
}

func NewReconciliationService(store repository.Store, client transport.Client, gateway orders.Gateway, cfg ReconciliationConfig) *ReconciliationService {
	if cfg.SettlementWindow <= 0 {
		cfg.SettlementWindow = 72 * time.Hour
	}
	return &ReconciliationService{
		store:   store,
		client:  client,
		gateway: gateway,
		audit:   NewAuditService(store),
		cfg:     cfg,
	}
}

// Run polls the remote return directory once, applies every new file, then
// settles submitted items older than the settlement window. One bad file is
// logged and skipped; it never aborts the rest of the run.
func (s *ReconciliationService) Run(ctx context.Context) (*ReconciliationResult, error) {
	result := &ReconciliationResult{}

	// List returns full remote paths relative to the transport root.
	paths, err := s.client.List(ctx, s.cfg.ReturnDir)
	if err != nil {
		return result, fmt.Errorf("list return dir: %w", err)
	}

	for _, remotePath := range paths {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if strings.HasSuffix(remotePath, processedSuffix) {
			continue
		}
		result.FilesSeen++

		processed, returns, unmatched, err := s.ingestFile(ctx, remotePath)
		if err != nil {
			zap.L().Error("return file ingestion failed",
				zap.String("file", remotePath),
				zap.Error(err),
			)
			result.FilesSkipped++
			continue
		}
		if !processed {
			result.FilesSkipped++
			continue
		}
		result.FilesProcessed++
		result.Returns += returns
		result.Unmatched += unmatched
	}

	settled, err := s.SettleDue(ctx, time.Now().UTC())
	if err != nil {
		return result, err
	}
	result.Settled = settled
	return result, nil
}

// ingestFile downloads one return file, claims it in the processed-file
// ledger, applies it and renames the remote copy out of the poll set.
func (s *ReconciliationService) ingestFile(ctx context.Context, remotePath string) (processed bool, returns, unmatched int, err error) {
	name := path.Base(remotePath)
	data, err := s.client.Download(ctx, remotePath)
	if err != nil {
		return false, 0, 0, fmt.Errorf("download %s: %w", name, err)
	}

	sum := sha256.Sum256(data)
	fresh, err := s.store.TryMarkReturnFileProcessed(ctx, name, hex.EncodeToString(sum[:]))
	if err != nil {
		return false, 0, 0, fmt.Errorf("record return file: %w", err)
	}
	if !fresh {
		// Already applied by a previous run or another process; still
		// rename so it drops out of the poll set.
		s.renameProcessed(ctx, remotePath)
		return false, 0, 0, nil
	}

	returns, unmatched, err = s.ProcessReturnFile(ctx, name, data)
	if err != nil {
		return false, 0, 0, err
	}

	s.renameProcessed(ctx, remotePath)
	return true, returns, unmatched, nil
}

func (s *ReconciliationService) renameProcessed(ctx context.Context, remotePath string) {
	if err := s.client.Rename(ctx, remotePath, remotePath+processedSuffix); err != nil {
		// The ledger already guards against re-applying; the stale name
		// only costs a redundant download next poll.
		zap.L().Warn("return file rename failed", zap.String("path", remotePath), zap.Error(err))
	}
}

// ProcessReturnFile parses and applies every return entry in one file.
// Entries are applied independently; an unmatched or already-returned entry
// is logged and the rest still apply.
func (s *ReconciliationService) ProcessReturnFile(ctx context.Context, name string, data []byte) (returns, unmatched int, err error) {
	entries, warnings, err := nacha.ParseReturnFile(data)
	if err != nil {
		return 0, 0, fmt.Errorf("parse %s: %w", name, err)
	}
	for _, w := range warnings {
		zap.L().Warn("malformed return record",
			zap.String("file", name),
			zap.Int("line", w.Line),
			zap.String("reason", w.Reason),
		)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return returns, unmatched, err
		}
		matched, err := s.applyReturn(ctx, entry)
		if err != nil {
			zap.L().Error("return application failed",
				zap.String("file", name),
				zap.String("trace_number", entry.OriginalTrace),
				zap.Error(err),
			)
			continue
		}
		if matched {
			returns++
		} else {
			unmatched++
		}
	}
	return returns, unmatched, nil
}

// applyReturn matches one return entry to its batch item by trace number
// and records the outcome. An unmatched trace is a warning, not an error:
// the processor may return entries the engine never originated.
func (s *ReconciliationService) applyReturn(ctx context.Context, entry nacha.ReturnEntry) (bool, error) {
	item, err := s.store.GetBatchItemByTrace(ctx, entry.OriginalTrace)
	if errors.Is(err, repository.ErrNotFound) {
		observability.IncrementUnmatchedReturn()
		zap.L().Warn("return for unknown trace number",
			zap.String("trace_number", entry.OriginalTrace),
			zap.String("return_code", string(entry.ReturnCode)),
		)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup trace %s: %w", entry.OriginalTrace, err)
	}

	reason, _ := entry.ReturnCode.Reason()
	if err := s.store.MarkItemReturned(ctx, item.ID, string(entry.ReturnCode), reason); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			// Duplicate return for an item already RETURNED or SETTLED.
			zap.L().Warn("return for item not in submitted status",
				zap.String("trace_number", entry.OriginalTrace),
				zap.String("item_status", item.Status),
			)
			return false, nil
		}
		return false, fmt.Errorf("mark item returned: %w", err)
	}

	if err := s.store.CreateReturnRecord(ctx, &models.ReturnRecord{
		ID:          uuid.New(),
		BatchID:     item.BatchID,
		OrderID:     item.OrderID,
		TraceNumber: entry.OriginalTrace,
		ReturnCode:  string(entry.ReturnCode),
		AmountCents: entry.AmountCents,
		ReceivedAt:  time.Now().UTC(),
	}); err != nil {
		return false, fmt.Errorf("create return record: %w", err)
	}

	observability.IncrementReturnProcessed(string(entry.ReturnCode))
	if err := s.audit.Write(ctx, "return_processed", item.BatchID, map[string]any{
		"order_id":     item.OrderID.String(),
		"trace_number": entry.OriginalTrace,
		"return_code":  string(entry.ReturnCode),
		"reason":       reason,
	}); err != nil {
		zap.L().Warn("audit write failed", zap.Error(err))
	}

	update := models.OrderUpdate{OrderID: item.OrderID, Outcome: models.OrderOutcomeReturned, Reason: reason}
	if err := s.gateway.ApplyUpdate(ctx, update); err != nil {
		zap.L().Warn("order update failed", zap.String("order_id", item.OrderID.String()), zap.Error(err))
	}

	s.maybeSettleBatch(ctx, item.BatchID)
	return true, nil
}

// SettleDue marks SUBMITTED items older than the settlement window as
// SETTLED and reports the outcome to order management.
func (s *ReconciliationService) SettleDue(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.cfg.SettlementWindow)
	items, err := s.store.SettleSubmittedItemsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("settle submitted items: %w", err)
	}

	batches := make(map[string]bool)
	for _, item := range items {
		update := models.OrderUpdate{OrderID: item.OrderID, Outcome: models.OrderOutcomeSettled}
		if err := s.gateway.ApplyUpdate(ctx, update); err != nil {
			zap.L().Warn("order update failed", zap.String("order_id", item.OrderID.String()), zap.Error(err))
		}
		if !batches[item.BatchID.String()] {
			batches[item.BatchID.String()] = true
			s.maybeSettleBatch(ctx, item.BatchID)
		}
	}
	return len(items), nil
}

// maybeSettleBatch promotes an UPLOADED batch to SETTLED once every item
// has reached a terminal status.
func (s *ReconciliationService) maybeSettleBatch(ctx context.Context, batchID uuid.UUID) {
	open, err := s.store.CountOpenItems(ctx, batchID)
	if err != nil {
		zap.L().Warn("open item count failed", zap.String("batch_id", batchID.String()), zap.Error(err))
		return
	}
	if open > 0 {
		return
	}
	err = s.store.TransitionBatch(ctx, batchID, domain.BatchStatusUploaded, domain.BatchStatusSettled)
	switch {
	case err == nil:
		zap.L().Info("batch settled", zap.String("batch_id", batchID.String()))
	case errors.Is(err, repository.ErrStaleStatus):
		// Batch already settled or still mid-delivery.
	default:
		zap.L().Warn("batch settle transition failed", zap.String("batch_id", batchID.String()), zap.Error(err))
	}
}
