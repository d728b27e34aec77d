package nacha

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/greyfinance/ach-engine/internal/domain"
)

// ReturnEntry is one returned entry parsed from a processor return file:
// an Entry Detail record paired with its return addenda.
type ReturnEntry struct {
	TransactionCode string
	RDFIRouting     string
	AmountCents     int64
	ReturnCode      domain.ReturnCode
	// OriginalTrace is the trace number the engine assigned on the
	// outbound file; it is the correlation key back to a BatchItem.
	OriginalTrace string
	// EntryTrace is the trace the returning bank stamped on this record.
	EntryTrace string
}

// ParseWarning flags a record that could not be parsed. Warnings are
// surfaced for logging, never silently discarded.
type ParseWarning struct {
	Line   int
	Reason string
}

const returnAddendaType = "99"

// ParseReturnFile walks the fixed-width Entry Detail and Addenda records of
// a return file and extracts trace numbers, amounts and return codes. A
// malformed record yields a warning and parsing continues; one bad record
// must not abort the rest of the file.
func ParseReturnFile(data []byte) ([]ReturnEntry, []ParseWarning, error) {
	lines := splitRecords(data)
	if len(lines) == 0 {
		return nil, nil, errors.New("empty return file")
	}

	var entries []ReturnEntry
	var warnings []ParseWarning
	var pending *ReturnEntry
	var pendingLine int

	flushPending := func() {
		if pending != nil {
			warnings = append(warnings, ParseWarning{
				Line:   pendingLine,
				Reason: "entry detail without return addenda",
			})
			pending = nil
		}
	}

	for i, line := range lines {
		lineNo := i + 1
		if len(line) != RecordLength {
			warnings = append(warnings, ParseWarning{Line: lineNo, Reason: fmt.Sprintf("record is %d characters, want %d", len(line), RecordLength)})
			continue
		}
		switch line[0] {
		case byte(recEntryDetail):
			flushPending()
			amount, err := strconv.ParseInt(line[29:39], 10, 64)
			if err != nil {
				warnings = append(warnings, ParseWarning{Line: lineNo, Reason: "unparseable amount field"})
				continue
			}
			pending = &ReturnEntry{
				TransactionCode: line[1:3],
				RDFIRouting:     line[3:12],
				AmountCents:     amount,
			}
			pendingLine = lineNo
		case byte(recAddenda):
			if line[1:3] != returnAddendaType {
				continue
			}
			if pending == nil {
				warnings = append(warnings, ParseWarning{Line: lineNo, Reason: "return addenda without entry detail"})
				continue
			}
			code := domain.ReturnCode(line[3:6])
			if !code.Valid() {
				warnings = append(warnings, ParseWarning{Line: lineNo, Reason: "unrecognized return code " + string(code)})
				pending = nil
				continue
			}
			pending.ReturnCode = code
			pending.OriginalTrace = strings.TrimSpace(line[6:21])
			pending.EntryTrace = strings.TrimSpace(line[79:94])
			entries = append(entries, *pending)
			pending = nil
		}
	}
	flushPending()

	return entries, warnings, nil
}

// BuildReturnFile assembles a minimal return file for the given entries.
// Used by the local-directory transport in development and by tests; a real
// processor produces these files.
func BuildReturnFile(p FileParams, entries []ReturnEntry) []byte {
	var b strings.Builder
	for i, e := range entries {
		txCode := e.TransactionCode
		if txCode == "" {
			txCode = "27"
		}
		routing := e.RDFIRouting
		if len(routing) != 9 {
			routing = "011000015"
		}
		rdfiTrace := digits(routing[:8], 8) + numeric(int64(i+1), 7)
		b.WriteString(string(recEntryDetail) +
			txCode +
			digits(routing, 9) +
			alpha("", 17) +
			numeric(e.AmountCents, 10) +
			alpha("", 15) +
			alpha("RETURNED ENTRY", 22) +
			blanks(2) +
			"1" +
			rdfiTrace)
		b.WriteByte('\n')
		b.WriteString(string(recAddenda) +
			returnAddendaType +
			string(e.ReturnCode) +
			alpha(e.OriginalTrace, 15) +
			blanks(6) +
			digits(routing[:8], 8) +
			blanks(44) +
			rdfiTrace)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}
