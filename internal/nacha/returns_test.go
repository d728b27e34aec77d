package nacha

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greyfinance/ach-engine/internal/domain"
)

func TestParseReturnFile_RoundTrip(t *testing.T) {
	file := BuildReturnFile(testParams(), []ReturnEntry{
		{
			TransactionCode: "27",
			RDFIRouting:     "011000015",
			AmountCents:     2550,
			ReturnCode:      domain.R02,
			OriginalTrace:   "011000010000002",
		},
	})

	entries, warnings, err := ParseReturnFile(file)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, "27", entry.TransactionCode)
	assert.Equal(t, "011000015", entry.RDFIRouting)
	assert.Equal(t, int64(2550), entry.AmountCents)
	assert.Equal(t, domain.R02, entry.ReturnCode)
	assert.Equal(t, "011000010000002", entry.OriginalTrace)
}

func TestParseReturnFile_MultipleEntries(t *testing.T) {
	file := BuildReturnFile(testParams(), []ReturnEntry{
		{RDFIRouting: "011000015", AmountCents: 1000, ReturnCode: domain.R01, OriginalTrace: "011000010000001"},
		{RDFIRouting: "021000021", AmountCents: 2550, ReturnCode: domain.R07, OriginalTrace: "011000010000002"},
	})

	entries, warnings, err := ParseReturnFile(file)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.R01, entries[0].ReturnCode)
	assert.Equal(t, domain.R07, entries[1].ReturnCode)
}

func TestParseReturnFile_MalformedRecordIsIsolated(t *testing.T) {
	good := BuildReturnFile(testParams(), []ReturnEntry{
		{RDFIRouting: "011000015", AmountCents: 1000, ReturnCode: domain.R02, OriginalTrace: "011000010000001"},
	})
	// A short garbage line between valid records.
	file := []byte("6garbage\n" + string(good))

	entries, warnings, err := ParseReturnFile(file)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Len(t, warnings, 1)
	assert.Equal(t, 1, warnings[0].Line)
	assert.Contains(t, warnings[0].Reason, "94")
}

func TestParseReturnFile_UnknownReturnCode(t *testing.T) {
	file := BuildReturnFile(testParams(), []ReturnEntry{
		{RDFIRouting: "011000015", AmountCents: 1000, ReturnCode: domain.ReturnCode("R99"), OriginalTrace: "011000010000001"},
	})

	entries, warnings, err := ParseReturnFile(file)
	require.NoError(t, err)
	assert.Empty(t, entries)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Reason, "R99")
}

func TestParseReturnFile_EntryWithoutAddenda(t *testing.T) {
	full := BuildReturnFile(testParams(), []ReturnEntry{
		{RDFIRouting: "011000015", AmountCents: 1000, ReturnCode: domain.R02, OriginalTrace: "011000010000001"},
	})
	// Keep the entry detail, drop its addenda.
	lines := strings.SplitN(string(full), "\n", 2)
	entries, warnings, err := ParseReturnFile([]byte(lines[0] + "\n"))
	require.NoError(t, err)
	assert.Empty(t, entries)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Reason, "without return addenda")
}

func TestParseReturnFile_Empty(t *testing.T) {
	_, _, err := ParseReturnFile(nil)
	assert.Error(t, err)
}
