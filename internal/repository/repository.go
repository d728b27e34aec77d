// Package repository persists batches, batch items, return records and the
// audit log. Backing stores are injectable: Postgres for durable
// multi-process deployments, in-memory for single-process ones and tests.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/greyfinance/ach-engine/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")

	// ErrStaleStatus means a conditional status update matched no row,
	// i.e. the record was not in the expected prior status.
	ErrStaleStatus = errors.New("record not in expected status")
)

// Store is the engine's data access contract.
type Store interface {
	// CreateBatch inserts a new batch in its initial status.
	CreateBatch(ctx context.Context, batch *models.Batch) error
	GetBatch(ctx context.Context, id uuid.UUID) (*models.Batch, error)

	// TransitionBatch moves a batch from one status to another
	// atomically; ErrStaleStatus if it is not currently in `from`.
	TransitionBatch(ctx context.Context, id uuid.UUID, from, to string) error

	// FinalizeEncodedBatch atomically records the encode outcome: the
	// file hash, counts and totals on the batch (moving it to
	// GENERATED) together with all of its items and their trace
	// numbers. Trace numbers are durable before any upload happens.
	FinalizeEncodedBatch(ctx context.Context, batch *models.Batch, items []models.BatchItem) error

	ListBatchItems(ctx context.Context, batchID uuid.UUID) ([]models.BatchItem, error)

	// TransitionBatchItems bulk-moves every item of a batch currently
	// in `from` into `to`, returning the number moved.
	TransitionBatchItems(ctx context.Context, batchID uuid.UUID, from, to string) (int, error)

	GetBatchItemByTrace(ctx context.Context, traceNumber string) (*models.BatchItem, error)

	// MarkItemReturned transitions a SUBMITTED item to RETURNED with
	// its return code and human-readable reason.
	MarkItemReturned(ctx context.Context, itemID uuid.UUID, code, reason string) error

	// SettleSubmittedItemsBefore transitions SUBMITTED items created
	// before the cutoff to SETTLED and returns them.
	SettleSubmittedItemsBefore(ctx context.Context, cutoff time.Time) ([]models.BatchItem, error)

	// CountOpenItems counts items of a batch not yet SETTLED or
	// RETURNED.
	CountOpenItems(ctx context.Context, batchID uuid.UUID) (int, error)

	// CreateReturnRecord appends an immutable return ledger entry.
	CreateReturnRecord(ctx context.Context, record *models.ReturnRecord) error

	// AppendAuditLog appends an immutable audit entry; nothing deletes
	// audit rows.
	AppendAuditLog(ctx context.Context, entry *models.AuditLogEntry) error

	// TryMarkReturnFileProcessed records a return file by name and
	// content hash. It reports false when the file was already
	// recorded, guaranteeing at-most-once processing.
	TryMarkReturnFileProcessed(ctx context.Context, name, contentHash string) (bool, error)

	// ReserveTraceSequence atomically claims a contiguous block of
	// count trace sequence numbers and returns the first. Sequence
	// numbers are never reissued, so traces stay unique across files.
	ReserveTraceSequence(ctx context.Context, count int) (int64, error)
}
