package nacha

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() FileParams {
	return FileParams{
		ImmediateDestination: "021000021",
		ImmediateOrigin:      "1234567890",
		DestinationName:      "First Processor Bank",
		OriginName:           "Grey Finance",
		CompanyName:          "Grey Finance",
		CompanyID:            "1234567890",
		ODFIRouting:          "011000015",
		SECCode:              "PPD",
		EntryDescription:     "PAYMENT",
		FileIDModifier:       "A",
	}
}

func testEntries() []Entry {
	return []Entry{
		{
			RoutingNumber:  "011000015",
			AccountNumber:  "123456789",
			AccountType:    "checking",
			AmountCents:    1000, // $10.00
			IndividualName: "Ada Lovelace",
			IndividualID:   "ORD00000001",
		},
		{
			RoutingNumber:  "021000021",
			AccountNumber:  "987654321",
			AccountType:    "savings",
			AmountCents:    2550, // $25.50
			IndividualName: "Grace Hopper",
			IndividualID:   "ORD00000002",
		},
	}
}

func encodeTime() time.Time {
	return time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)
}

func TestEncode_RecordShape(t *testing.T) {
	result, err := Encode(testParams(), encodeTime(), 1, 1, testEntries())
	require.NoError(t, err)

	lines := splitRecords(result.Bytes)
	require.Len(t, lines, 10) // 6 data records padded to one block
	for i, line := range lines {
		assert.Len(t, line, RecordLength, "record %d", i+1)
	}

	assert.Equal(t, byte('1'), lines[0][0])
	assert.Equal(t, byte('5'), lines[1][0])
	assert.Equal(t, byte('6'), lines[2][0])
	assert.Equal(t, byte('6'), lines[3][0])
	assert.Equal(t, byte('8'), lines[4][0])
	assert.Equal(t, byte('9'), lines[5][0])
	for i := 6; i < 10; i++ {
		assert.Equal(t, strings.Repeat("9", RecordLength), lines[i])
	}
}

func TestEncode_ControlTotals(t *testing.T) {
	result, err := Encode(testParams(), encodeTime(), 1, 1, testEntries())
	require.NoError(t, err)

	assert.Equal(t, 2, result.EntryCount)
	assert.Equal(t, int64(3550), result.TotalDebitCents) // $10.00 + $25.50
	assert.Zero(t, result.TotalCreditCents)
	// Sum of the first eight routing digits: 01100001 + 02100002.
	assert.Equal(t, int64(3200003), result.EntryHash)

	require.NoError(t, Verify(result.Bytes))
}

func TestEncode_TraceNumbers(t *testing.T) {
	result, err := Encode(testParams(), encodeTime(), 1, 1, testEntries())
	require.NoError(t, err)

	// ODFI prefix plus a sequential seven-digit suffix, in entry order.
	require.Equal(t, []string{"011000010000001", "011000010000002"}, result.TraceNumbers)

	lines := splitRecords(result.Bytes)
	assert.Equal(t, "011000010000001", lines[2][79:94])
	assert.Equal(t, "011000010000002", lines[3][79:94])
}

func TestEncode_TraceSequenceSeed(t *testing.T) {
	// A later file continues from the reserved sequence block instead of
	// restarting at one.
	result, err := Encode(testParams(), encodeTime(), 1, 43, testEntries())
	require.NoError(t, err)
	require.Equal(t, []string{"011000010000043", "011000010000044"}, result.TraceNumbers)
	require.NoError(t, Verify(result.Bytes))
}

func TestEncode_SixEntriesFillOneBlock(t *testing.T) {
	// 1 file header + 1 batch header + 6 entries + 2 controls is exactly
	// one block of ten; the block count must be one and no filler needed.
	entries := make([]Entry, 6)
	for i := range entries {
		entries[i] = Entry{
			RoutingNumber:  "011000015",
			AccountNumber:  "123456789",
			AccountType:    "checking",
			AmountCents:    int64(100 * (i + 1)),
			IndividualName: "Sample Payer",
			IndividualID:   fmt.Sprintf("ORD%08d", i+1),
		}
	}

	result, err := Encode(testParams(), encodeTime(), 1, 1, entries)
	require.NoError(t, err)

	lines := splitRecords(result.Bytes)
	require.Len(t, lines, 10)
	assert.NotEqual(t, strings.Repeat("9", RecordLength), lines[9])
	require.NoError(t, Verify(result.Bytes))
}

func TestEncode_EntryDetailFields(t *testing.T) {
	result, err := Encode(testParams(), encodeTime(), 1, 1, testEntries())
	require.NoError(t, err)

	lines := splitRecords(result.Bytes)
	checking := lines[2]
	assert.Equal(t, "27", checking[1:3])
	assert.Equal(t, "011000015", checking[3:12])
	assert.Equal(t, "0000001000", checking[29:39])
	assert.Equal(t, "ADA LOVELACE", strings.TrimSpace(checking[54:76]))

	savings := lines[3]
	assert.Equal(t, "37", savings[1:3])
	assert.Equal(t, "0000002550", savings[29:39])
}

func TestEncode_Deterministic(t *testing.T) {
	first, err := Encode(testParams(), encodeTime(), 1, 1, testEntries())
	require.NoError(t, err)
	second, err := Encode(testParams(), encodeTime(), 1, 1, testEntries())
	require.NoError(t, err)

	assert.Equal(t, first.Bytes, second.Bytes)
}

func TestEncode_EmptyBatch(t *testing.T) {
	result, err := Encode(testParams(), encodeTime(), 1, 1, nil)
	require.NoError(t, err)

	assert.Zero(t, result.EntryCount)
	assert.Empty(t, result.TraceNumbers)
	lines := splitRecords(result.Bytes)
	assert.Len(t, lines, 10)
	require.NoError(t, Verify(result.Bytes))
}

func TestEncode_RejectsInvalidRouting(t *testing.T) {
	entries := testEntries()
	entries[0].RoutingNumber = "123456789"
	_, err := Encode(testParams(), encodeTime(), 1, 1, entries)
	assert.Error(t, err)
}

func TestEncode_RejectsInvalidParams(t *testing.T) {
	p := testParams()
	p.CompanyID = ""
	_, err := Encode(p, encodeTime(), 1, 1, testEntries())
	assert.Error(t, err)
}

func TestVerify_DetectsTamperedAmount(t *testing.T) {
	result, err := Encode(testParams(), encodeTime(), 1, 1, testEntries())
	require.NoError(t, err)

	lines := splitRecords(result.Bytes)
	// Bump one amount digit without touching the control records.
	tampered := lines[2][:38] + "9" + lines[2][39:]
	lines[2] = tampered
	file := []byte(strings.Join(lines, "\n") + "\n")

	assert.Error(t, Verify(file))
}

func TestVerify_DetectsShortRecord(t *testing.T) {
	result, err := Encode(testParams(), encodeTime(), 1, 1, testEntries())
	require.NoError(t, err)

	lines := splitRecords(result.Bytes)
	lines[2] = lines[2][:93]
	file := []byte(strings.Join(lines, "\n") + "\n")

	assert.Error(t, Verify(file))
}
