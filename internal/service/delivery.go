package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/greyfinance/ach-engine/internal/domain"
	"github.com/greyfinance/ach-engine/internal/models"
	"github.com/greyfinance/ach-engine/internal/observability"
	"github.com/greyfinance/ach-engine/internal/repository"
	"github.com/greyfinance/ach-engine/internal/transport"
)

// ErrUploadFailed is the terminal state after exhausting the retry policy.
// The batch is FAILED but its local file is retained for manual retry.
var ErrUploadFailed = errors.New("upload failed after retries")

// DeliveryConfig bounds the retry policy and the per-attempt timeout.
type DeliveryConfig struct {
	SpoolDir       string
	RemoteDir      string
	MaxAttempts    int
	BackoffBase    time.Duration
	BackoffCap     time.Duration
	AttemptTimeout time.Duration
}

// DeliveryResult reports one delivery run.
type DeliveryResult struct {
	BatchID    string `json:"batch_id"`
	LocalPath  string `json:"local_path"`
	RemotePath string `json:"remote_path,omitempty"`
	Attempts   int    `json:"attempts"`
	Uploaded   bool   `json:"uploaded"`
}

// DeliveryService uploads generated files to the processor. The file is
// written to durable local storage and confirmed before any network
// transmission, so an interrupted upload never loses it, and it is never
// deleted until upload is confirmed.
type DeliveryService struct {
	store  repository.Store
	client transport.Client
	audit  *AuditService
	cfg    DeliveryConfig
}

func NewDeliveryService(store repository.Store, client transport.Client, audit *AuditService, cfg DeliveryConfig) *DeliveryService {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 4 * time.Second
	}
	return &DeliveryService{store: store, client: client, audit: audit, cfg: cfg}
}

// SpoolPath is the durable local name for a generated file, keyed by batch
// id and content hash.
func (s *DeliveryService) SpoolPath(batch *models.Batch) string {
	return filepath.Join(s.cfg.SpoolDir, fmt.Sprintf("ach-%s-%s.ach", batch.ID, shortHash(batch.FileHash)))
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

// Deliver spools the file locally, then uploads with exponential backoff.
// A timed-out attempt counts as a failed attempt under the same policy.
func (s *DeliveryService) Deliver(ctx context.Context, batch *models.Batch, file []byte) (*DeliveryResult, error) {
	result := &DeliveryResult{BatchID: batch.ID.String()}

	localPath, err := s.spool(batch, file)
	if err != nil {
		return result, fmt.Errorf("spool batch file: %w", err)
	}
	result.LocalPath = localPath

	if err := s.store.TransitionBatch(ctx, batch.ID, batch.Status, domain.BatchStatusUploading); err != nil {
		return result, fmt.Errorf("mark batch uploading: %w", err)
	}

	remotePath := path.Join(s.cfg.RemoteDir, filepath.Base(localPath))
	uploadErr := s.uploadWithRetry(ctx, batch, remotePath, file, result)
	if uploadErr != nil {
		if err := s.store.TransitionBatch(ctx, batch.ID, domain.BatchStatusUploading, domain.BatchStatusFailed); err != nil {
			zap.L().Error("failed to mark batch failed", zap.Error(err), zap.String("batch_id", batch.ID.String()))
		}
		zap.L().Error("batch upload exhausted retries; local file retained",
			zap.String("batch_id", batch.ID.String()),
			zap.String("local_path", localPath),
			zap.Int("attempts", result.Attempts),
		)
		return result, uploadErr
	}

	result.RemotePath = remotePath
	result.Uploaded = true
	if err := s.store.TransitionBatch(ctx, batch.ID, domain.BatchStatusUploading, domain.BatchStatusUploaded); err != nil {
		return result, fmt.Errorf("mark batch uploaded: %w", err)
	}
	if _, err := s.store.TransitionBatchItems(ctx, batch.ID, domain.ItemStatusQueued, domain.ItemStatusSubmitted); err != nil {
		return result, fmt.Errorf("mark items submitted: %w", err)
	}
	if err := s.audit.Write(ctx, "batch_uploaded", batch.ID, map[string]any{
		"remote_path": remotePath,
		"attempts":    result.Attempts,
	}); err != nil {
		zap.L().Warn("audit write failed", zap.Error(err))
	}
	return result, nil
}

// spool writes and syncs the file before any transmission is attempted.
func (s *DeliveryService) spool(batch *models.Batch, file []byte) (string, error) {
	if err := os.MkdirAll(s.cfg.SpoolDir, 0o750); err != nil {
		return "", fmt.Errorf("create spool dir: %w", err)
	}
	localPath := s.SpoolPath(batch)
	f, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", localPath, err)
	}
	if _, err := f.Write(file); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", localPath, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return "", fmt.Errorf("sync %s: %w", localPath, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", localPath, err)
	}
	return localPath, nil
}

func (s *DeliveryService) uploadWithRetry(ctx context.Context, batch *models.Batch, remotePath string, file []byte, result *DeliveryResult) error {
	backoff := s.cfg.BackoffBase
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		result.Attempts = attempt

		err := s.uploadOnce(ctx, remotePath, file)
		s.auditAttempt(ctx, batch, attempt, err)
		if err == nil {
			observability.IncrementUploadAttempt("success")
			return nil
		}
		observability.IncrementUploadAttempt("failure")
		zap.L().Warn("upload attempt failed",
			zap.String("batch_id", batch.ID.String()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if attempt == s.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrUploadFailed, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > s.cfg.BackoffCap {
			backoff = s.cfg.BackoffCap
		}
	}
	return ErrUploadFailed
}

func (s *DeliveryService) uploadOnce(ctx context.Context, remotePath string, file []byte) error {
	attemptCtx := ctx
	if s.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, s.cfg.AttemptTimeout)
		defer cancel()
	}
	return s.client.Upload(attemptCtx, remotePath, file)
}

func (s *DeliveryService) auditAttempt(ctx context.Context, batch *models.Batch, attempt int, uploadErr error) {
	metadata := map[string]any{"attempt": attempt, "outcome": "success"}
	if uploadErr != nil {
		metadata["outcome"] = "failure"
		metadata["error"] = uploadErr.Error()
	}
	if err := s.audit.Write(ctx, "upload_attempted", batch.ID, metadata); err != nil {
		zap.L().Warn("audit write failed", zap.Error(err))
	}
}

// Redeliver re-reads the spooled file of a GENERATED or FAILED batch and
// runs the delivery policy again. Manual resubmission never re-collects or
// re-encrypts order data.
func (s *DeliveryService) Redeliver(ctx context.Context, batchID string) (*DeliveryResult, error) {
	id, err := parseUUID(batchID)
	if err != nil {
		return nil, err
	}
	batch, err := s.store.GetBatch(ctx, id)
	if err != nil {
		return nil, err
	}
	if batch.Status != domain.BatchStatusGenerated && batch.Status != domain.BatchStatusFailed {
		return nil, fmt.Errorf("batch %s is %s; only generated or failed batches can be delivered", batchID, batch.Status)
	}
	file, err := os.ReadFile(s.SpoolPath(batch))
	if err != nil {
		return nil, fmt.Errorf("read spooled file: %w", err)
	}
	return s.Deliver(ctx, batch, file)
}
