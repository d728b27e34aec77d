package domain

import "strings"

const (
	// Batch statuses. Forward-only; see BatchTransitions.
	BatchStatusPending    = "PENDING"
	BatchStatusAssembling = "ASSEMBLING"
	BatchStatusGenerated  = "GENERATED"
	BatchStatusUploading  = "UPLOADING"
	BatchStatusUploaded   = "UPLOADED"
	BatchStatusSettled    = "SETTLED"
	BatchStatusFailed     = "FAILED"

	// Batch item statuses.
	ItemStatusQueued    = "QUEUED"
	ItemStatusSubmitted = "SUBMITTED"
	ItemStatusReturned  = "RETURNED"
	ItemStatusSettled   = "SETTLED"

	AccountTypeChecking = "checking"
	AccountTypeSavings  = "savings"
)

// BatchTransitions enumerates the legal forward-only batch status moves.
// GENERATED batches are write-once: nothing may move a batch back into an
// assembly state once its file content has been hashed.
var BatchTransitions = map[string]map[string]struct{}{
	BatchStatusPending: {
		BatchStatusAssembling: {},
		BatchStatusFailed:     {},
	},
	BatchStatusAssembling: {
		BatchStatusGenerated: {},
		BatchStatusFailed:    {},
	},
	BatchStatusGenerated: {
		BatchStatusUploading: {},
		BatchStatusFailed:    {},
	},
	BatchStatusUploading: {
		BatchStatusUploaded: {},
		BatchStatusFailed:   {},
	},
	BatchStatusUploaded: {
		BatchStatusSettled: {},
	},
	BatchStatusSettled: {},
	// A failed batch keeps its generated file; manual resubmission may
	// push it back through the upload path, never through assembly.
	BatchStatusFailed: {
		BatchStatusUploading: {},
	},
}

func normalizeStatus(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// CanTransitionBatch reports whether a batch may move from current to next.
func CanTransitionBatch(current, next string) bool {
	nextStates, ok := BatchTransitions[normalizeStatus(current)]
	if !ok {
		return false
	}
	_, ok = nextStates[normalizeStatus(next)]
	return ok
}
