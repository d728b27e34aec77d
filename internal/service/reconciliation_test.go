package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greyfinance/ach-engine/internal/domain"
	"github.com/greyfinance/ach-engine/internal/models"
	"github.com/greyfinance/ach-engine/internal/nacha"
	"github.com/greyfinance/ach-engine/internal/transport"
)

type reconFixture struct {
	*engineFixture
	recon *ReconciliationService
}

// newReconFixture runs a full batch export so the store holds SUBMITTED
// items with durable trace numbers, then builds the reconciliation service
// over the same transport.
func newReconFixture(t *testing.T) (*reconFixture, []models.BatchItem) {
	t.Helper()
	f := newEngineFixture(t, nil)
	f.seedStandardOrders(t)

	report, err := f.engine.RunBatch(context.Background())
	require.NoError(t, err)

	items, err := f.store.ListBatchItems(context.Background(), report.Batch.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)

	recon := NewReconciliationService(f.store, f.client, f.gateway, ReconciliationConfig{
		ReturnDir:        "returns",
		SettlementWindow: 72 * time.Hour,
	})
	return &reconFixture{engineFixture: f, recon: recon}, items
}

func (f *reconFixture) dropReturnFile(t *testing.T, name string, entries []nacha.ReturnEntry) {
	t.Helper()
	file := nacha.BuildReturnFile(testFileParams(), entries)
	require.NoError(t, f.client.Upload(context.Background(), "returns/"+name, file))
}

func TestReconciliation_AppliesReturn(t *testing.T) {
	f, items := newReconFixture(t)
	returned := items[0]

	f.dropReturnFile(t, "ret-20260315.ach", []nacha.ReturnEntry{{
		TransactionCode: "27",
		RDFIRouting:     "011000015",
		AmountCents:     returned.AmountCents,
		ReturnCode:      domain.R02,
		OriginalTrace:   returned.TraceNumber,
	}})

	result, err := f.recon.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesProcessed)
	assert.Equal(t, 1, result.Returns)
	assert.Zero(t, result.Unmatched)

	item, err := f.store.GetBatchItemByTrace(context.Background(), returned.TraceNumber)
	require.NoError(t, err)
	assert.Equal(t, domain.ItemStatusReturned, item.Status)
	assert.Equal(t, "R02", item.ReturnCode)
	assert.Equal(t, "Account Closed", item.ReturnReason)

	records := f.store.ReturnRecords()
	require.Len(t, records, 1)
	assert.Equal(t, returned.TraceNumber, records[0].TraceNumber)
	assert.Equal(t, "R02", records[0].ReturnCode)

	// Order management heard the return with its reason.
	var returnedUpdates []models.OrderUpdate
	for _, update := range f.gateway.Updates() {
		if update.Outcome == models.OrderOutcomeReturned {
			returnedUpdates = append(returnedUpdates, update)
		}
	}
	require.Len(t, returnedUpdates, 1)
	assert.Equal(t, returned.OrderID, returnedUpdates[0].OrderID)
	assert.Equal(t, "Account Closed", returnedUpdates[0].Reason)
}

func TestReconciliation_AtMostOnce(t *testing.T) {
	f, items := newReconFixture(t)
	returned := items[0]

	f.dropReturnFile(t, "ret-1.ach", []nacha.ReturnEntry{{
		RDFIRouting:   "011000015",
		AmountCents:   returned.AmountCents,
		ReturnCode:    domain.R02,
		OriginalTrace: returned.TraceNumber,
	}})

	first, err := f.recon.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Returns)

	// The processed file was renamed out of the poll set; a second run
	// sees nothing and applies nothing.
	second, err := f.recon.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.FilesSeen)
	assert.Zero(t, second.Returns)

	assert.Len(t, f.store.ReturnRecords(), 1)

	// Re-dropping the file under its original name brings it back into
	// the poll set; the processed-file ledger still refuses to re-apply.
	f.dropReturnFile(t, "ret-1.ach", []nacha.ReturnEntry{{
		RDFIRouting:   "011000015",
		AmountCents:   returned.AmountCents,
		ReturnCode:    domain.R02,
		OriginalTrace: returned.TraceNumber,
	}})
	third, err := f.recon.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, third.Returns)
	assert.Len(t, f.store.ReturnRecords(), 1)
}

func TestReconciliation_UnmatchedTrace(t *testing.T) {
	f, _ := newReconFixture(t)

	f.dropReturnFile(t, "ret-unknown.ach", []nacha.ReturnEntry{{
		RDFIRouting:   "011000015",
		AmountCents:   999,
		ReturnCode:    domain.R03,
		OriginalTrace: "999999990000042",
	}})

	result, err := f.recon.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesProcessed)
	assert.Zero(t, result.Returns)
	assert.Equal(t, 1, result.Unmatched)
	assert.Empty(t, f.store.ReturnRecords())
}

func TestReconciliation_SettlesAfterWindow(t *testing.T) {
	f, items := newReconFixture(t)

	// Items were just submitted; the standard window does not settle them.
	settled, err := f.recon.SettleDue(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, settled)

	// Past the window, every submitted item settles and the batch follows.
	settled, err = f.recon.SettleDue(context.Background(), time.Now().Add(80*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, settled)

	batch, err := f.store.GetBatch(context.Background(), items[0].BatchID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusSettled, batch.Status)

	outcomes := map[string]int{}
	for _, update := range f.gateway.Updates() {
		outcomes[update.Outcome]++
	}
	assert.Equal(t, 2, outcomes[models.OrderOutcomeSettled])
}

func TestReconciliation_ReturnThenSettleClosesBatch(t *testing.T) {
	f, items := newReconFixture(t)

	f.dropReturnFile(t, "ret-mixed.ach", []nacha.ReturnEntry{{
		RDFIRouting:   "011000015",
		AmountCents:   items[0].AmountCents,
		ReturnCode:    domain.R07,
		OriginalTrace: items[0].TraceNumber,
	}})
	_, err := f.recon.Run(context.Background())
	require.NoError(t, err)

	// One item returned, one still submitted: the batch stays UPLOADED.
	batch, err := f.store.GetBatch(context.Background(), items[0].BatchID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusUploaded, batch.Status)

	_, err = f.recon.SettleDue(context.Background(), time.Now().Add(80*time.Hour))
	require.NoError(t, err)

	batch, err = f.store.GetBatch(context.Background(), items[0].BatchID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusSettled, batch.Status)
}

func TestReconciliation_BadFileDoesNotAbortRun(t *testing.T) {
	f, items := newReconFixture(t)

	// An empty file fails to parse; the valid one still applies.
	require.NoError(t, f.client.Upload(context.Background(), "returns/empty.ach", nil))
	f.dropReturnFile(t, "ret-good.ach", []nacha.ReturnEntry{{
		RDFIRouting:   "011000015",
		AmountCents:   items[1].AmountCents,
		ReturnCode:    domain.R02,
		OriginalTrace: items[1].TraceNumber,
	}})

	result, err := f.recon.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.FilesSeen)
	assert.Equal(t, 1, result.FilesProcessed)
	assert.Equal(t, 1, result.FilesSkipped)
	assert.Equal(t, 1, result.Returns)
}

var _ transport.Client = failingClient{}
