package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/greyfinance/ach-engine/internal/crypto"
	"github.com/greyfinance/ach-engine/internal/domain"
	"github.com/greyfinance/ach-engine/internal/models"
	"github.com/greyfinance/ach-engine/internal/nacha"
)

// ErrNoEligibleOrders means assembly found nothing to include; the skipped
// list still explains every order that was considered.
var ErrNoEligibleOrders = errors.New("no eligible orders to assemble")

// Skip reasons recorded per rejected order.
const (
	SkipMissingBankData   = "missing bank account data"
	SkipDecryptFailed     = "bank data failed authentication"
	SkipInvalidRouting    = "invalid routing number checksum"
	SkipInvalidAccount    = "invalid account number"
	SkipNonPositiveAmount = "non-positive amount"
)

// SkippedOrder records one rejection and its reason.
type SkippedOrder struct {
	OrderID uuid.UUID `json:"order_id"`
	Reason  string    `json:"reason"`
}

// AssemblyResult carries the accepted items, their transient encode
// entries, and every skipped order. Entries hold plaintext bank data and
// must be dropped as soon as the file is encoded.
type AssemblyResult struct {
	Items   []models.BatchItem
	Entries []nacha.Entry
	Skipped []SkippedOrder
}

// AssemblyService turns eligible orders into an in-memory batch model.
// It decrypts bank fields transiently; plaintext never reaches a log line
// or a durable store.
type AssemblyService struct {
	cipher *crypto.FieldCipher
}

func NewAssemblyService(cipher *crypto.FieldCipher) *AssemblyService {
	return &AssemblyService{cipher: cipher}
}

// Assemble validates and includes each order independently: a rejected
// order never aborts assembly of the rest. Partial success is the normal
// case.
func (s *AssemblyService) Assemble(ctx context.Context, batchID uuid.UUID, eligible []models.Order) (*AssemblyResult, error) {
	result := &AssemblyResult{}

	for _, order := range eligible {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, last4, reason := s.buildEntry(order)
		if reason != "" {
			result.Skipped = append(result.Skipped, SkippedOrder{OrderID: order.ID, Reason: reason})
			continue
		}
		result.Entries = append(result.Entries, *entry)
		result.Items = append(result.Items, models.BatchItem{
			ID:           uuid.New(),
			BatchID:      batchID,
			OrderID:      order.ID,
			AmountCents:  order.AmountCents,
			AccountLast4: last4,
			Status:       domain.ItemStatusQueued,
		})
	}

	if len(result.Items) == 0 {
		return result, ErrNoEligibleOrders
	}
	return result, nil
}

// buildEntry decrypts and validates one order's bank data. The returned
// reason is empty on acceptance. Plaintext lives only in the returned
// entry, which the caller discards after encode.
func (s *AssemblyService) buildEntry(order models.Order) (*nacha.Entry, string, string) {
	if order.AmountCents <= 0 {
		return nil, "", SkipNonPositiveAmount
	}
	acct := order.BankAccount
	if len(acct.AccountNumberCiphertext) == 0 || len(acct.RoutingNumberCiphertext) == 0 {
		return nil, "", SkipMissingBankData
	}

	routing, err := s.cipher.Decrypt(acct.RoutingNumberCiphertext, acct.RoutingNonce, acct.RoutingAuthTag)
	if err != nil {
		// Authentication failures are fatal for this order only;
		// never logged with plaintext, assembly continues.
		zap.L().Warn("bank data decrypt failed", zap.String("order_id", order.ID.String()), zap.Error(err))
		return nil, "", SkipDecryptFailed
	}
	account, err := s.cipher.Decrypt(acct.AccountNumberCiphertext, acct.AccountNonce, acct.AccountAuthTag)
	if err != nil {
		zap.L().Warn("bank data decrypt failed", zap.String("order_id", order.ID.String()), zap.Error(err))
		return nil, "", SkipDecryptFailed
	}

	routingStr, accountStr := string(routing), string(account)
	if err := domain.ValidateRoutingNumber(routingStr); err != nil {
		return nil, "", SkipInvalidRouting
	}
	if err := domain.ValidateAccountNumber(accountStr); err != nil {
		return nil, "", SkipInvalidAccount
	}

	return &nacha.Entry{
		RoutingNumber:  routingStr,
		AccountNumber:  accountStr,
		AccountType:    acct.AccountType,
		AmountCents:    order.AmountCents,
		IndividualName: order.CustomerName,
		IndividualID:   shortOrderRef(order.ID),
	}, accountStr[len(accountStr)-4:], ""
}

// shortOrderRef fits an order reference into the 15-character individual
// identification field.
func shortOrderRef(id uuid.UUID) string {
	s := id.String()
	return "ORD" + s[:8]
}
