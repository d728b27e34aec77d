package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/greyfinance/ach-engine/internal/domain"
	"github.com/greyfinance/ach-engine/internal/models"
)

// MemoryStore implements Store with in-process maps. It backs
// single-process deployments and keeps the test suite hermetic.
type MemoryStore struct {
	mu             sync.Mutex
	batches        map[uuid.UUID]*models.Batch
	items          map[uuid.UUID]*models.BatchItem
	itemsByTrace   map[string]uuid.UUID
	returnRecords  []models.ReturnRecord
	auditLog       []models.AuditLogEntry
	processedFiles map[string]string
	nextAuditID    int64
	traceSeq       int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		batches:        make(map[uuid.UUID]*models.Batch),
		items:          make(map[uuid.UUID]*models.BatchItem),
		itemsByTrace:   make(map[string]uuid.UUID),
		processedFiles: make(map[string]string),
	}
}

func (s *MemoryStore) CreateBatch(ctx context.Context, batch *models.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.batches[batch.ID]; exists {
		return fmt.Errorf("batch %s already exists", batch.ID)
	}
	clone := *batch
	clone.UpdatedAt = clone.CreatedAt
	s.batches[batch.ID] = &clone
	return nil
}

func (s *MemoryStore) GetBatch(ctx context.Context, id uuid.UUID) (*models.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *batch
	return &clone, nil
}

func (s *MemoryStore) TransitionBatch(ctx context.Context, id uuid.UUID, from, to string) error {
	if !domain.CanTransitionBatch(from, to) {
		return fmt.Errorf("illegal batch transition %s -> %s", from, to)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[id]
	if !ok || batch.Status != from {
		return ErrStaleStatus
	}
	batch.Status = to
	batch.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) FinalizeEncodedBatch(ctx context.Context, batch *models.Batch, items []models.BatchItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.batches[batch.ID]
	if !ok || stored.Status != domain.BatchStatusAssembling {
		return ErrStaleStatus
	}
	for _, item := range items {
		if _, dup := s.itemsByTrace[item.TraceNumber]; dup {
			return fmt.Errorf("duplicate trace number %s", item.TraceNumber)
		}
	}
	stored.Status = domain.BatchStatusGenerated
	stored.FileHash = batch.FileHash
	stored.EntryCount = batch.EntryCount
	stored.TotalDebitCents = batch.TotalDebitCents
	stored.TotalCreditCents = batch.TotalCreditCents
	stored.UpdatedAt = time.Now()
	for _, item := range items {
		clone := item
		now := time.Now()
		clone.CreatedAt = now
		clone.UpdatedAt = now
		s.items[item.ID] = &clone
		s.itemsByTrace[item.TraceNumber] = item.ID
	}
	return nil
}

func (s *MemoryStore) ListBatchItems(ctx context.Context, batchID uuid.UUID) ([]models.BatchItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []models.BatchItem
	for _, item := range s.items {
		if item.BatchID == batchID {
			items = append(items, *item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].TraceNumber < items[j].TraceNumber })
	return items, nil
}

func (s *MemoryStore) TransitionBatchItems(ctx context.Context, batchID uuid.UUID, from, to string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	moved := 0
	for _, item := range s.items {
		if item.BatchID == batchID && item.Status == from {
			item.Status = to
			item.UpdatedAt = time.Now()
			moved++
		}
	}
	return moved, nil
}

func (s *MemoryStore) GetBatchItemByTrace(ctx context.Context, traceNumber string) (*models.BatchItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.itemsByTrace[traceNumber]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *s.items[id]
	return &clone, nil
}

func (s *MemoryStore) MarkItemReturned(ctx context.Context, itemID uuid.UUID, code, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok || item.Status != domain.ItemStatusSubmitted {
		return ErrStaleStatus
	}
	item.Status = domain.ItemStatusReturned
	item.ReturnCode = code
	item.ReturnReason = reason
	item.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) SettleSubmittedItemsBefore(ctx context.Context, cutoff time.Time) ([]models.BatchItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var settled []models.BatchItem
	for _, item := range s.items {
		if item.Status == domain.ItemStatusSubmitted && item.UpdatedAt.Before(cutoff) {
			item.Status = domain.ItemStatusSettled
			item.UpdatedAt = time.Now()
			settled = append(settled, *item)
		}
	}
	sort.Slice(settled, func(i, j int) bool { return settled[i].TraceNumber < settled[j].TraceNumber })
	return settled, nil
}

func (s *MemoryStore) CountOpenItems(ctx context.Context, batchID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, item := range s.items {
		if item.BatchID == batchID && item.Status != domain.ItemStatusSettled && item.Status != domain.ItemStatusReturned {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) CreateReturnRecord(ctx context.Context, record *models.ReturnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.returnRecords = append(s.returnRecords, *record)
	return nil
}

// ReturnRecords returns a snapshot of the return ledger.
func (s *MemoryStore) ReturnRecords() []models.ReturnRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ReturnRecord, len(s.returnRecords))
	copy(out, s.returnRecords)
	return out
}

func (s *MemoryStore) AppendAuditLog(ctx context.Context, entry *models.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextAuditID++
	entry.ID = s.nextAuditID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.auditLog = append(s.auditLog, *entry)
	return nil
}

// AuditLog returns a snapshot of the audit trail.
func (s *MemoryStore) AuditLog() []models.AuditLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AuditLogEntry, len(s.auditLog))
	copy(out, s.auditLog)
	return out
}

func (s *MemoryStore) TryMarkReturnFileProcessed(ctx context.Context, name, contentHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, done := s.processedFiles[name]; done {
		return false, nil
	}
	s.processedFiles[name] = contentHash
	return true, nil
}

func (s *MemoryStore) ReserveTraceSequence(ctx context.Context, count int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := s.traceSeq + 1
	s.traceSeq += int64(count)
	return start, nil
}
