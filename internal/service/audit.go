package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/greyfinance/ach-engine/internal/models"
	"github.com/greyfinance/ach-engine/internal/repository"
)

// AuditService writes the append-only trail of sensitive engine operations.
// Metadata must never include plaintext account data; callers pass only
// display-safe values.
type AuditService struct {
	store repository.Store
}

func NewAuditService(store repository.Store) *AuditService {
	return &AuditService{store: store}
}

// Write stores a single immutable audit record.
func (s *AuditService) Write(ctx context.Context, action string, subjectID uuid.UUID, metadata map[string]any) error {
	var payload []byte
	if len(metadata) > 0 {
		var err error
		payload, err = json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
	}
	if err := s.store.AppendAuditLog(ctx, &models.AuditLogEntry{
		Action:    action,
		SubjectID: subjectID,
		Metadata:  payload,
	}); err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	return nil
}
