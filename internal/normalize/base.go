// Package normalize turns channel-specific interchange files into the
// canonical RawRecord stream the mapper consumes.
//
// Three normalizers share one contract, one per partner feed:
//   - XMLNormalizer: batch XML order/remit documents
//   - TextNormalizer: fixed-layout multi-record-type text files
//   - SheetNormalizer: client-specific spreadsheet exports
//
// Error policy: a malformed row or element is recorded and skipped, it never
// aborts the batch. A structurally empty or unparsable file is reported as a
// single batch-level failure.
package normalize

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"cash-interchange-service/internal/models"
	"cash-interchange-service/pkg/errors"
	"cash-interchange-service/pkg/logger"
)

// Normalizer is the shared contract of the three channel parsers. Parse
// reads the whole file in one pass and returns every usable record plus
// per-row statistics.
type Normalizer interface {
	Channel() models.Channel
	Parse(ctx context.Context, path string) ([]models.RawRecord, *ParseStats, error)
}

// RowError records one skipped row or element
type RowError struct {
	Line    int
	Field   string
	Value   string
	Message string
	Err     error
}

func (e *RowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("row error at line %d (%s='%s'): %s: %v",
			e.Line, e.Field, e.Value, e.Message, e.Err)
	}
	return fmt.Sprintf("row error at line %d (%s='%s'): %s",
		e.Line, e.Field, e.Value, e.Message)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// ParseStats holds statistics about one file's normalization
type ParseStats struct {
	TotalLines    int
	RecordsParsed int
	RecordsValid  int
	ErrorCount    int
	Errors        []*RowError
}

// NewParseStats creates a new ParseStats instance
func NewParseStats() *ParseStats {
	return &ParseStats{
		Errors: make([]*RowError, 0),
	}
}

// AddError records a skipped row
func (ps *ParseStats) AddError(line int, field, value, message string, err error) {
	ps.Errors = append(ps.Errors, &RowError{
		Line:    line,
		Field:   field,
		Value:   value,
		Message: message,
		Err:     err,
	})
	ps.ErrorCount++
}

// HasErrors returns true if any rows were skipped
func (ps *ParseStats) HasErrors() bool {
	return ps.ErrorCount > 0
}

// String returns a human-readable summary
func (ps *ParseStats) String() string {
	return fmt.Sprintf("Parsed %d lines, %d records (%d valid), %d errors",
		ps.TotalLines, ps.RecordsParsed, ps.RecordsValid, ps.ErrorCount)
}

// SampleErrors returns up to maxSamples formatted row errors for logging
func (ps *ParseStats) SampleErrors(maxSamples int) []string {
	if len(ps.Errors) == 0 {
		return nil
	}

	limit := len(ps.Errors)
	if maxSamples > 0 && maxSamples < limit {
		limit = maxSamples
	}

	samples := make([]string, 0, limit)
	for i := 0; i < limit; i++ {
		samples = append(samples, ps.Errors[i].Error())
	}
	return samples
}

// openValidated opens an input file and checks the leading lines are valid
// UTF-8 before handing the file back, rewound
func openValidated(path string, log logger.Logger) (*os.File, error) {
	log.WithField("file_path", path).Debug("Opening interchange file")

	file, err := os.Open(path)
	if err != nil {
		log.WithError(err).WithField("file_path", path).Error("Failed to open interchange file")

		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, errors.FileError(errors.CodeFilePermission, path, err)
		}
		return nil, errors.FileError(errors.CodeDirectoryError, path, err)
	}

	if err := validateEncoding(file, path); err != nil {
		file.Close()
		return nil, err
	}

	if _, err := file.Seek(0, 0); err != nil {
		file.Close()
		return nil, errors.FileError(errors.CodeFileCorrupted, path, err)
	}

	return file, nil
}

// validateEncoding checks the first lines of the file for valid UTF-8
func validateEncoding(file *os.File, path string) error {
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() && lineNum < 100 {
		lineNum++
		if !utf8.Valid(scanner.Bytes()) {
			return errors.ParseError(
				errors.CodeEncodingError,
				path,
				lineNum,
				"encoding",
				"",
				fmt.Errorf("invalid UTF-8 encoding detected"),
			)
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.FileError(errors.CodeFileCorrupted, path, err)
	}

	return nil
}

// emptyBatchError builds the batch-level failure for a file with zero
// usable records
func emptyBatchError(path string) error {
	return errors.ParseError(errors.CodeEmptyBatch, path, 0, "", "", nil)
}

// isBlank reports whether every cell of a row is empty or whitespace
func isBlank(cells []string) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func cancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
