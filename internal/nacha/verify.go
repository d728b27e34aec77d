package nacha

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Verify recomputes entry counts, the entry hash and the amount totals from
// the Entry Detail records of an encoded file and checks them against the
// Batch Control and File Control records. Any mismatch is an error.
func Verify(file []byte) error {
	lines := splitRecords(file)
	if len(lines) == 0 {
		return errors.New("empty file")
	}
	if len(lines)%blockingFactor != 0 {
		return fmt.Errorf("record count %d is not a multiple of %d", len(lines), blockingFactor)
	}

	var entryCount int
	var entryHash, totalDebit, totalCredit int64
	var batchControlLine, fileControlLine string

	for i, line := range lines {
		if len(line) != RecordLength {
			return fmt.Errorf("record %d is %d characters, want %d", i+1, len(line), RecordLength)
		}
		switch line[0] {
		case byte(recEntryDetail):
			entryCount++
			hashPart, err := strconv.ParseInt(line[3:11], 10, 64)
			if err != nil {
				return fmt.Errorf("record %d: routing digits: %w", i+1, err)
			}
			entryHash += hashPart
			amount, err := strconv.ParseInt(line[29:39], 10, 64)
			if err != nil {
				return fmt.Errorf("record %d: amount: %w", i+1, err)
			}
			switch line[1:3] {
			case "27", "37":
				totalDebit += amount
			case "22", "32":
				totalCredit += amount
			default:
				return fmt.Errorf("record %d: unknown transaction code %q", i+1, line[1:3])
			}
		case byte(recBatchControl):
			batchControlLine = line
		case byte(recFileControl):
			if fileControlLine == "" {
				fileControlLine = line
			} else if line != fillerRecord() {
				return fmt.Errorf("record %d: unexpected extra file control", i+1)
			}
		}
	}
	entryHash %= 10_000_000_000

	if batchControlLine == "" || fileControlLine == "" {
		return errors.New("missing control records")
	}

	if err := compareControl("batch control", batchControlLine[4:10], int64(entryCount), 6); err != nil {
		return err
	}
	if err := compareControl("batch control hash", batchControlLine[10:20], entryHash, 10); err != nil {
		return err
	}
	if err := compareControl("batch control debit total", batchControlLine[20:32], totalDebit, 12); err != nil {
		return err
	}
	if err := compareControl("batch control credit total", batchControlLine[32:44], totalCredit, 12); err != nil {
		return err
	}

	if err := compareControl("file control entry count", fileControlLine[13:21], int64(entryCount), 8); err != nil {
		return err
	}
	if err := compareControl("file control hash", fileControlLine[21:31], entryHash, 10); err != nil {
		return err
	}
	if err := compareControl("file control debit total", fileControlLine[31:43], totalDebit, 12); err != nil {
		return err
	}
	if err := compareControl("file control credit total", fileControlLine[43:55], totalCredit, 12); err != nil {
		return err
	}
	blockCount, err := strconv.ParseInt(fileControlLine[7:13], 10, 64)
	if err != nil {
		return fmt.Errorf("file control block count: %w", err)
	}
	if int(blockCount)*blockingFactor != len(lines) {
		return fmt.Errorf("block count %d does not cover %d records", blockCount, len(lines))
	}
	return nil
}

func compareControl(field, got string, want int64, width int) error {
	parsed, err := strconv.ParseInt(got, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if parsed != want%pow10(width) {
		return fmt.Errorf("%s mismatch: file says %d, recomputed %d", field, parsed, want)
	}
	return nil
}

func pow10(n int) int64 {
	v := int64(1)
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}

func splitRecords(file []byte) []string {
	raw := strings.Split(strings.TrimRight(string(file), "\n"), "\n")
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
