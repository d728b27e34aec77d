package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/greyfinance/ach-engine/internal/domain"
	"github.com/greyfinance/ach-engine/internal/models"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateBatch(ctx context.Context, batch *models.Batch) error {
	query := `INSERT INTO batches (id, status, file_hash, entry_count, total_debit_cents, total_credit_cents, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`
	_, err := s.db.Exec(ctx, query, batch.ID, batch.Status, batch.FileHash, batch.EntryCount, batch.TotalDebitCents, batch.TotalCreditCents, batch.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBatch(ctx context.Context, id uuid.UUID) (*models.Batch, error) {
	batch := &models.Batch{}
	query := `SELECT id, status, file_hash, entry_count, total_debit_cents, total_credit_cents, created_at, updated_at
		FROM batches WHERE id = $1`
	err := s.db.QueryRow(ctx, query, id).Scan(&batch.ID, &batch.Status, &batch.FileHash, &batch.EntryCount,
		&batch.TotalDebitCents, &batch.TotalCreditCents, &batch.CreatedAt, &batch.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return batch, nil
}

func (s *PostgresStore) TransitionBatch(ctx context.Context, id uuid.UUID, from, to string) error {
	if !domain.CanTransitionBatch(from, to) {
		return fmt.Errorf("illegal batch transition %s -> %s", from, to)
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE batches SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		to, id, from)
	if err != nil {
		return fmt.Errorf("transition batch: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return ErrStaleStatus
	}
	return nil
}

func (s *PostgresStore) FinalizeEncodedBatch(ctx context.Context, batch *models.Batch, items []models.BatchItem) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE batches SET status = $1, file_hash = $2, entry_count = $3, total_debit_cents = $4, total_credit_cents = $5, updated_at = NOW()
		 WHERE id = $6 AND status = $7`,
		domain.BatchStatusGenerated, batch.FileHash, batch.EntryCount, batch.TotalDebitCents, batch.TotalCreditCents,
		batch.ID, domain.BatchStatusAssembling)
	if err != nil {
		return fmt.Errorf("finalize batch: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return ErrStaleStatus
	}

	for _, item := range items {
		_, err := tx.Exec(ctx,
			`INSERT INTO batch_items (id, batch_id, order_id, amount_cents, trace_number, account_last4, status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`,
			item.ID, item.BatchID, item.OrderID, item.AmountCents, item.TraceNumber, item.AccountLast4, item.Status)
		if err != nil {
			return fmt.Errorf("insert batch item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const batchItemColumns = `id, batch_id, order_id, amount_cents, trace_number, account_last4, status,
	COALESCE(return_code, ''), COALESCE(return_reason, ''), created_at, updated_at`

func scanBatchItem(row pgx.Row) (*models.BatchItem, error) {
	item := &models.BatchItem{}
	err := row.Scan(&item.ID, &item.BatchID, &item.OrderID, &item.AmountCents, &item.TraceNumber,
		&item.AccountLast4, &item.Status, &item.ReturnCode, &item.ReturnReason, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *PostgresStore) ListBatchItems(ctx context.Context, batchID uuid.UUID) ([]models.BatchItem, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+batchItemColumns+` FROM batch_items WHERE batch_id = $1 ORDER BY trace_number`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list batch items: %w", err)
	}
	defer rows.Close()

	var items []models.BatchItem
	for rows.Next() {
		item, err := scanBatchItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) TransitionBatchItems(ctx context.Context, batchID uuid.UUID, from, to string) (int, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE batch_items SET status = $1, updated_at = NOW() WHERE batch_id = $2 AND status = $3`,
		to, batchID, from)
	if err != nil {
		return 0, fmt.Errorf("transition batch items: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) GetBatchItemByTrace(ctx context.Context, traceNumber string) (*models.BatchItem, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+batchItemColumns+` FROM batch_items WHERE trace_number = $1`, traceNumber)
	item, err := scanBatchItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get batch item by trace: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) MarkItemReturned(ctx context.Context, itemID uuid.UUID, code, reason string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE batch_items SET status = $1, return_code = $2, return_reason = $3, updated_at = NOW()
		 WHERE id = $4 AND status = $5`,
		domain.ItemStatusReturned, code, reason, itemID, domain.ItemStatusSubmitted)
	if err != nil {
		return fmt.Errorf("mark item returned: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return ErrStaleStatus
	}
	return nil
}

func (s *PostgresStore) SettleSubmittedItemsBefore(ctx context.Context, cutoff time.Time) ([]models.BatchItem, error) {
	rows, err := s.db.Query(ctx,
		`UPDATE batch_items SET status = $1, updated_at = NOW()
		 WHERE status = $2 AND updated_at < $3
		 RETURNING `+batchItemColumns,
		domain.ItemStatusSettled, domain.ItemStatusSubmitted, cutoff)
	if err != nil {
		return nil, fmt.Errorf("settle submitted items: %w", err)
	}
	defer rows.Close()

	var items []models.BatchItem
	for rows.Next() {
		item, err := scanBatchItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan settled item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) CountOpenItems(ctx context.Context, batchID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM batch_items WHERE batch_id = $1 AND status NOT IN ($2, $3)`,
		batchID, domain.ItemStatusSettled, domain.ItemStatusReturned).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count open items: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CreateReturnRecord(ctx context.Context, record *models.ReturnRecord) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO return_records (id, batch_id, order_id, trace_number, return_code, amount_cents, received_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.ID, record.BatchID, record.OrderID, record.TraceNumber, record.ReturnCode, record.AmountCents, record.ReceivedAt)
	if err != nil {
		return fmt.Errorf("insert return record: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendAuditLog(ctx context.Context, entry *models.AuditLogEntry) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO audit_log (action, subject_id, metadata, created_at)
		 VALUES ($1, $2, $3, NOW()) RETURNING id, created_at`,
		entry.Action, entry.SubjectID, entry.Metadata).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	return nil
}

func (s *PostgresStore) TryMarkReturnFileProcessed(ctx context.Context, name, contentHash string) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`INSERT INTO processed_return_files (file_name, content_hash, processed_at)
		 VALUES ($1, $2, NOW()) ON CONFLICT (file_name) DO NOTHING`,
		name, contentHash)
	if err != nil {
		return false, fmt.Errorf("mark return file processed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) ReserveTraceSequence(ctx context.Context, count int) (int64, error) {
	var last int64
	err := s.db.QueryRow(ctx,
		`UPDATE trace_counter SET value = value + $1 RETURNING value`, count).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("reserve trace sequence: %w", err)
	}
	return last - int64(count) + 1, nil
}
