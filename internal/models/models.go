package models

import (
	"time"

	"github.com/google/uuid"
)

// BankAccount carries a customer's encrypted bank details. Plaintext account
// and routing numbers exist only inside a decrypt scope during assembly or
// return matching, never on this struct.
type BankAccount struct {
	AccountNumberCiphertext []byte `json:"-"`
	RoutingNumberCiphertext []byte `json:"-"`
	AccountNonce            []byte `json:"-"`
	AccountAuthTag          []byte `json:"-"`
	RoutingNonce            []byte `json:"-"`
	RoutingAuthTag          []byte `json:"-"`
	AccountType             string `json:"account_type"` // "checking" or "savings"
}

// Order is the engine's view of an eligible order supplied by the order
// management collaborator.
type Order struct {
	ID           uuid.UUID   `json:"id"`
	AmountCents  int64       `json:"amount_cents"`
	CustomerName string      `json:"customer_name"`
	BankAccount  BankAccount `json:"bank_account"`
}

// Batch is one ACH export run. Immutable once GENERATED: the file content,
// once hashed, is never regenerated under the same id.
type Batch struct {
	ID               uuid.UUID `json:"id"`
	Status           string    `json:"status"`
	FileHash         string    `json:"file_hash,omitempty"`
	EntryCount       int       `json:"entry_count"`
	TotalDebitCents  int64     `json:"total_debit_cents"`
	TotalCreditCents int64     `json:"total_credit_cents"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// BatchItem is one order's entry inside a batch. TraceNumber is the sole
// correlation key between the outbound file and any later return record.
type BatchItem struct {
	ID           uuid.UUID `json:"id"`
	BatchID      uuid.UUID `json:"batch_id"`
	OrderID      uuid.UUID `json:"order_id"`
	AmountCents  int64     `json:"amount_cents"`
	TraceNumber  string    `json:"trace_number"`
	AccountLast4 string    `json:"account_last4"`
	Status       string    `json:"status"`
	ReturnCode   string    `json:"return_code,omitempty"`
	ReturnReason string    `json:"return_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ReturnRecord is an immutable ledger entry for one processor return.
type ReturnRecord struct {
	ID          uuid.UUID `json:"id"`
	BatchID     uuid.UUID `json:"batch_id"`
	OrderID     uuid.UUID `json:"order_id"`
	TraceNumber string    `json:"trace_number"`
	ReturnCode  string    `json:"return_code"`
	AmountCents int64     `json:"amount_cents"`
	ReceivedAt  time.Time `json:"received_at"`
}

// AuditLogEntry is an append-only record of a sensitive engine operation.
// Metadata never includes plaintext account data.
type AuditLogEntry struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	SubjectID uuid.UUID `json:"subject_id"`
	Metadata  []byte    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// OrderUpdate is the explicit result the engine hands back to order
// management instead of firing callbacks directly.
type OrderUpdate struct {
	OrderID uuid.UUID `json:"order_id"`
	Outcome string    `json:"outcome"` // "accepted", "rejected", "returned", "settled"
	Reason  string    `json:"reason,omitempty"`
}

const (
	OrderOutcomeAccepted = "accepted"
	OrderOutcomeRejected = "rejected"
	OrderOutcomeReturned = "returned"
	OrderOutcomeSettled  = "settled"
)
