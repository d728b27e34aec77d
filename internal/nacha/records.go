package nacha

import (
	"fmt"
	"strings"
)

// RecordLength is the fixed width of every NACHA record.
const RecordLength = 94

// Record type codes.
const (
	recFileHeader   = '1'
	recBatchHeader  = '5'
	recEntryDetail  = '6'
	recAddenda      = '7'
	recBatchControl = '8'
	recFileControl  = '9'
)

const blockingFactor = 10

// alpha renders an alphameric field: uppercased, left-justified,
// space-padded, truncated to width.
func alpha(s string, width int) string {
	s = strings.ToUpper(s)
	if len(s) > width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

// numeric renders a numeric field: right-justified, zero-padded.
func numeric(v int64, width int) string {
	s := fmt.Sprintf("%0*d", width, v)
	if len(s) > width {
		// Overflow truncates to the least significant digits, matching
		// the entry-hash truncation rule.
		return s[len(s)-width:]
	}
	return s
}

// digits renders an already-numeric string right-justified and zero-padded.
func digits(s string, width int) string {
	if len(s) > width {
		return s[len(s)-width:]
	}
	return strings.Repeat("0", width-len(s)) + s
}

func blanks(width int) string {
	return strings.Repeat(" ", width)
}

// fillerRecord pads the file block; every field is a nine.
func fillerRecord() string {
	return strings.Repeat("9", RecordLength)
}
