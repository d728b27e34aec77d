package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greyfinance/ach-engine/internal/domain"
	"github.com/greyfinance/ach-engine/internal/models"
)

func TestAssemble_PartialSuccess(t *testing.T) {
	cipher := testCipher(t)
	svc := NewAssemblyService(cipher)
	batchID := uuid.New()

	orders := []models.Order{
		seedOrder(t, cipher, "011000015", "123456789", "checking", 1000, "Ada Lovelace"),
		seedOrder(t, cipher, "021000021", "987654321", "savings", 2550, "Grace Hopper"),
		// Nine digits, bad checksum: rejected, not aborting the rest.
		seedOrder(t, cipher, "123456789", "555666777", "checking", 10000, "Charles Babbage"),
	}

	result, err := svc.Assemble(context.Background(), batchID, orders)
	require.NoError(t, err)

	require.Len(t, result.Items, 2)
	require.Len(t, result.Entries, 2)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, orders[2].ID, result.Skipped[0].OrderID)
	assert.Equal(t, SkipInvalidRouting, result.Skipped[0].Reason)

	assert.Equal(t, int64(1000)+int64(2550), result.Items[0].AmountCents+result.Items[1].AmountCents)
	for i, item := range result.Items {
		assert.Equal(t, batchID, item.BatchID)
		assert.Equal(t, domain.ItemStatusQueued, item.Status)
		assert.Empty(t, item.TraceNumber) // assigned at encode, not here
		assert.Len(t, item.AccountLast4, 4)
		assert.Equal(t, result.Entries[i].AccountNumber[len(result.Entries[i].AccountNumber)-4:], item.AccountLast4)
	}
}

func TestAssemble_SkipReasons(t *testing.T) {
	cipher := testCipher(t)
	svc := NewAssemblyService(cipher)

	missing := models.Order{ID: uuid.New(), AmountCents: 500, CustomerName: "No Bank Data"}

	tampered := seedOrder(t, cipher, "011000015", "123456789", "checking", 500, "Tampered")
	tampered.BankAccount.AccountAuthTag[0] ^= 0xff

	badAccount := seedOrder(t, cipher, "011000015", "12", "checking", 500, "Short Account")
	zeroAmount := seedOrder(t, cipher, "011000015", "123456789", "checking", 0, "Zero Amount")

	result, err := svc.Assemble(context.Background(), uuid.New(), []models.Order{missing, tampered, badAccount, zeroAmount})
	require.ErrorIs(t, err, ErrNoEligibleOrders)
	require.Len(t, result.Skipped, 4)

	reasons := map[uuid.UUID]string{}
	for _, skip := range result.Skipped {
		reasons[skip.OrderID] = skip.Reason
	}
	assert.Equal(t, SkipMissingBankData, reasons[missing.ID])
	assert.Equal(t, SkipDecryptFailed, reasons[tampered.ID])
	assert.Equal(t, SkipInvalidAccount, reasons[badAccount.ID])
	assert.Equal(t, SkipNonPositiveAmount, reasons[zeroAmount.ID])
}

func TestAssemble_EmptyInput(t *testing.T) {
	svc := NewAssemblyService(testCipher(t))
	result, err := svc.Assemble(context.Background(), uuid.New(), nil)
	require.ErrorIs(t, err, ErrNoEligibleOrders)
	assert.Empty(t, result.Skipped)
}

func TestAssemble_Canceled(t *testing.T) {
	cipher := testCipher(t)
	svc := NewAssemblyService(cipher)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	order := seedOrder(t, cipher, "011000015", "123456789", "checking", 1000, "Ada Lovelace")
	_, err := svc.Assemble(ctx, uuid.New(), []models.Order{order})
	assert.ErrorIs(t, err, context.Canceled)
}
