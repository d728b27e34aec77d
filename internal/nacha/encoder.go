// Package nacha serializes batches into the fixed-width ACH file format and
// parses processor return files. Records are 94-character ASCII lines; the
// wire format is a published external standard and must be byte-exact.
package nacha

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/greyfinance/ach-engine/internal/domain"
)

// FileParams identifies the origin and destination of a generated file.
// Values come from configuration, not from the data store.
type FileParams struct {
	ImmediateDestination string // 9-digit routing of the receiving point
	ImmediateOrigin      string // 10-char originator identification
	DestinationName      string
	OriginName           string
	CompanyName          string
	CompanyID            string // 10-char company identification
	ODFIRouting          string // 9-digit originating DFI routing number
	SECCode              string // standard entry class, e.g. PPD
	EntryDescription     string
	FileIDModifier       string // single character, default "A"
}

// Validate checks the identification fields before any encode.
func (p FileParams) Validate() error {
	if err := domain.ValidateRoutingNumber(p.ODFIRouting); err != nil {
		return fmt.Errorf("odfi routing: %w", err)
	}
	if len(p.ImmediateDestination) != 9 {
		return errors.New("immediate destination must be 9 digits")
	}
	if p.CompanyName == "" || p.CompanyID == "" {
		return errors.New("company name and id are required")
	}
	if len(p.SECCode) != 3 {
		return errors.New("sec code must be 3 characters")
	}
	return nil
}

// Entry is one transient entry-detail input. It carries plaintext bank data
// and must not outlive the encode call's decrypt scope.
type Entry struct {
	RoutingNumber  string
	AccountNumber  string
	AccountType    string
	AmountCents    int64
	IndividualName string
	IndividualID   string
}

// EncodeResult carries the file bytes plus the control totals and the trace
// numbers assigned to each entry, in input order.
type EncodeResult struct {
	Bytes            []byte
	TraceNumbers     []string
	EntryCount       int
	EntryHash        int64
	TotalDebitCents  int64
	TotalCreditCents int64
}

// serviceClassDebits marks a batch containing debit entries only; the
// engine collects payments, it does not originate credits.
const serviceClassDebits = "225"

// Encode serializes a debit batch into a complete ACH file. Encoding is
// deterministic: the same inputs always yield byte-identical output, since
// all time-derived fields come from createdAt. Trace numbers start at
// traceSeq; the caller reserves the sequence block so traces stay unique
// across files. The emitted control totals are re-verified with Verify
// before the result is returned; a mismatch is a defect, not a warning.
func Encode(p FileParams, createdAt time.Time, batchNumber, traceSeq int64, entries []Entry) (*EncodeResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if traceSeq < 1 {
		traceSeq = 1
	}

	modifier := p.FileIDModifier
	if modifier == "" {
		modifier = "A"
	}

	var lines []string
	lines = append(lines, fileHeader(p, createdAt, modifier))
	lines = append(lines, batchHeader(p, createdAt, batchNumber))

	tracePrefix := p.ODFIRouting[:8]
	traces := make([]string, 0, len(entries))
	var entryHash, totalDebit int64
	for i, entry := range entries {
		if err := domain.ValidateRoutingNumber(entry.RoutingNumber); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		trace := tracePrefix + numeric(traceSeq+int64(i), 7)
		line, err := entryDetail(entry, trace)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		lines = append(lines, line)
		traces = append(traces, trace)

		hashPart, _ := strconv.ParseInt(entry.RoutingNumber[:8], 10, 64)
		entryHash += hashPart
		totalDebit += entry.AmountCents
	}
	entryHash %= 10_000_000_000 // truncated to 10 digits

	lines = append(lines, batchControl(p, batchNumber, len(entries), entryHash, totalDebit, 0))
	lines = append(lines, fileControl(1, len(entries), entryHash, totalDebit, 0, len(lines)))

	for len(lines)%blockingFactor != 0 {
		lines = append(lines, fillerRecord())
	}

	var buf bytes.Buffer
	for _, line := range lines {
		if len(line) != RecordLength {
			return nil, fmt.Errorf("record is %d characters, want %d: %q", len(line), RecordLength, line)
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}

	result := &EncodeResult{
		Bytes:            buf.Bytes(),
		TraceNumbers:     traces,
		EntryCount:       len(entries),
		EntryHash:        entryHash,
		TotalDebitCents:  totalDebit,
		TotalCreditCents: 0,
	}
	if err := Verify(result.Bytes); err != nil {
		return nil, fmt.Errorf("control total self-check: %w", err)
	}
	return result, nil
}

func fileHeader(p FileParams, createdAt time.Time, modifier string) string {
	return string(recFileHeader) +
		"01" + // priority code
		" " + digits(p.ImmediateDestination, 9) +
		alpha(p.ImmediateOrigin, 10) +
		createdAt.UTC().Format("060102") +
		createdAt.UTC().Format("1504") +
		alpha(modifier, 1) +
		"094" +
		"10" +
		"1" +
		alpha(p.DestinationName, 23) +
		alpha(p.OriginName, 23) +
		blanks(8)
}

func batchHeader(p FileParams, createdAt time.Time, batchNumber int64) string {
	effective := createdAt.UTC().Add(24 * time.Hour)
	return string(recBatchHeader) +
		serviceClassDebits +
		alpha(p.CompanyName, 16) +
		blanks(20) + // company discretionary data
		alpha(p.CompanyID, 10) +
		alpha(p.SECCode, 3) +
		alpha(p.EntryDescription, 10) +
		createdAt.UTC().Format("060102") +
		effective.Format("060102") +
		blanks(3) + // settlement date, filled by the ACH operator
		"1" + // originator status code
		digits(p.ODFIRouting[:8], 8) +
		numeric(batchNumber, 7)
}

func entryDetail(e Entry, trace string) (string, error) {
	txCode, err := domain.DebitTransactionCode(e.AccountType)
	if err != nil {
		return "", err
	}
	return string(recEntryDetail) +
		txCode +
		digits(e.RoutingNumber[:8], 8) +
		digits(e.RoutingNumber[8:], 1) + // check digit
		alpha(e.AccountNumber, 17) +
		numeric(e.AmountCents, 10) +
		alpha(e.IndividualID, 15) +
		alpha(e.IndividualName, 22) +
		blanks(2) + // discretionary data
		"0" + // addenda record indicator
		trace, nil
}

func batchControl(p FileParams, batchNumber int64, entryCount int, entryHash, totalDebit, totalCredit int64) string {
	return string(recBatchControl) +
		serviceClassDebits +
		numeric(int64(entryCount), 6) +
		numeric(entryHash, 10) +
		numeric(totalDebit, 12) +
		numeric(totalCredit, 12) +
		alpha(p.CompanyID, 10) +
		blanks(19) + // message authentication code
		blanks(6) +
		digits(p.ODFIRouting[:8], 8) +
		numeric(batchNumber, 7)
}

func fileControl(batchCount, entryCount int, entryHash, totalDebit, totalCredit int64, recordsSoFar int) string {
	totalRecords := recordsSoFar + 1
	blockCount := (totalRecords + blockingFactor - 1) / blockingFactor
	return string(recFileControl) +
		numeric(int64(batchCount), 6) +
		numeric(int64(blockCount), 6) +
		numeric(int64(entryCount), 8) +
		numeric(entryHash, 10) +
		numeric(totalDebit, 12) +
		numeric(totalCredit, 12) +
		blanks(39)
}
