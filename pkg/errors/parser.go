package errors

import (
	"fmt"
	"path/filepath"
	"strings"
)

// RecordContext provides location information for per-record failures
type RecordContext struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   string `json:"column"`
	Value    string `json:"value"`
	Expected string `json:"expected,omitempty"`
	OrderID  string `json:"order_id,omitempty"`
}

// RecordError is a parse or mapping failure scoped to one record of an
// interchange file. Record errors never abort the file; they are collected
// and reported per batch.
type RecordError struct {
	*PipelineError
	Context     *RecordContext `json:"context"`
	Recoverable bool           `json:"recoverable"`
	LineContent string         `json:"line_content,omitempty"`
	Examples    []string       `json:"examples,omitempty"`
}

// Error implements the error interface with location formatting
func (e *RecordError) Error() string {
	var parts []string

	parts = append(parts, e.PipelineError.Error())

	if e.Context != nil {
		location := fmt.Sprintf("at %s", filepath.Base(e.Context.File))
		if e.Context.Line > 0 {
			location += fmt.Sprintf(":%d", e.Context.Line)
		}
		if e.Context.Column != "" {
			location += fmt.Sprintf(" column '%s'", e.Context.Column)
		}
		parts = append(parts, location)
	}

	return strings.Join(parts, " ")
}

// GetDetailedError returns a detailed multi-line error description used in
// novelty reports
func (e *RecordError) GetDetailedError() string {
	var lines []string

	lines = append(lines, fmt.Sprintf("ERROR: %s", e.Message))

	if e.Context != nil {
		lines = append(lines, fmt.Sprintf("  → File: %s", e.Context.File))
		if e.Context.Line > 0 {
			lines = append(lines, fmt.Sprintf("  → Line: %d", e.Context.Line))
		}
		if e.Context.Column != "" {
			lines = append(lines, fmt.Sprintf("  → Column: %s", e.Context.Column))
		}
		if e.Context.OrderID != "" {
			lines = append(lines, fmt.Sprintf("  → Order: %s", e.Context.OrderID))
		}
		if e.Context.Value != "" {
			lines = append(lines, fmt.Sprintf("  → Value: '%s'", e.Context.Value))
		}
		if e.Context.Expected != "" {
			lines = append(lines, fmt.Sprintf("  → Expected: %s", e.Context.Expected))
		}
	}

	if e.LineContent != "" {
		lines = append(lines, fmt.Sprintf("  → Content: %s", e.LineContent))
	}

	if e.Suggestion != "" {
		lines = append(lines, fmt.Sprintf("  → Suggestion: %s", e.Suggestion))
	}

	if len(e.Examples) > 0 {
		lines = append(lines, "  → Examples:")
		for _, example := range e.Examples {
			lines = append(lines, fmt.Sprintf("    • %s", example))
		}
	}

	return strings.Join(lines, "\n")
}

// NewRecordError creates a new record-scoped error
func NewRecordError(code ErrorCode, context *RecordContext, message string, cause error) *RecordError {
	baseError := Wrap(cause, CategoryParse, code, message)
	if baseError == nil {
		baseError = New(CategoryParse, code, message)
	}

	if context != nil {
		baseError.WithContext("file", context.File).
			WithContext("line", context.Line).
			WithContext("column", context.Column).
			WithContext("value", context.Value)
	}

	return &RecordError{
		PipelineError: baseError,
		Context:       context,
		Recoverable:   true,
	}
}

// WithLineContent adds the actual line content to the error
func (e *RecordError) WithLineContent(content string) *RecordError {
	e.LineContent = content
	return e
}

// WithExamples adds example values to help fix the error
func (e *RecordError) WithExamples(examples ...string) *RecordError {
	e.Examples = examples
	return e
}

// WithSuggestion adds a suggestion and returns the RecordError
func (e *RecordError) WithSuggestion(suggestion string) *RecordError {
	e.PipelineError.WithSuggestion(suggestion)
	return e
}

// WithRecoverable sets whether this error is recoverable
func (e *RecordError) WithRecoverable(recoverable bool) *RecordError {
	e.Recoverable = recoverable
	return e
}

// Common record error constructors

// InvalidAmountError creates an error for invalid monetary values
func InvalidAmountError(file string, line int, column string, value string) *RecordError {
	context := &RecordContext{
		File:     file,
		Line:     line,
		Column:   column,
		Value:    value,
		Expected: "non-negative decimal number",
	}

	message := "invalid amount format"
	err := NewRecordError(CodeInvalidAmount, context, message, nil).
		WithExamples("1250000", "1.250.000", "1250000,50").
		WithSuggestion("Remove currency symbols and use a plain decimal value")

	return err
}

// InvalidDateError creates an error for invalid date values
func InvalidDateError(file string, line int, column string, value string) *RecordError {
	context := &RecordContext{
		File:     file,
		Line:     line,
		Column:   column,
		Value:    value,
		Expected: "date in dd/mm/yyyy, ddmmyyyy, or yyyy-mm-dd format",
	}

	message := "invalid date format"
	err := NewRecordError(CodeInvalidDate, context, message, nil).
		WithExamples("15/01/2026", "15012026", "2026-01-15").
		WithSuggestion("Use one of the supported interchange date formats")

	return err
}

// MissingColumnError creates an error for a header missing required columns
func MissingColumnError(file string, expectedColumns []string, actualColumns []string) *RecordError {
	missing := findMissingColumns(expectedColumns, actualColumns)

	context := &RecordContext{
		File:     file,
		Line:     1,
		Expected: fmt.Sprintf("columns: %s", strings.Join(expectedColumns, ", ")),
	}

	message := fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", "))
	err := NewRecordError(CodeMissingColumn, context, message, nil).
		WithSuggestion("Verify the file layout matches the agreed interchange contract")

	err.Recoverable = false
	return err
}

// UnknownDenominationError creates an error for a denomination code outside
// the fixed vocabulary
func UnknownDenominationError(file string, line int, code string) *RecordError {
	context := &RecordContext{
		File:     file,
		Line:     line,
		Column:   "denomination",
		Value:    code,
		Expected: "a known denomination code (e.g. 50000AD, 2000NF, 500)",
	}

	message := fmt.Sprintf("unknown denomination code '%s'", code)
	err := NewRecordError(CodeInvalidData, context, message, nil).
		WithSuggestion("Check the denomination vocabulary agreed with the partner")

	return err
}

// FieldCountError creates an error for a delimited line with the wrong arity
func FieldCountError(file string, line int, got, want int) *RecordError {
	context := &RecordContext{
		File:     file,
		Line:     line,
		Value:    fmt.Sprintf("%d fields", got),
		Expected: fmt.Sprintf("%d fields", want),
	}

	message := fmt.Sprintf("line has %d fields, expected %d", got, want)
	err := NewRecordError(CodeInvalidFormat, context, message, nil).
		WithSuggestion("Check for stray commas or truncated lines")

	return err
}

// EmptyValueError creates an error for empty required values
func EmptyValueError(file string, line int, column string) *RecordError {
	context := &RecordContext{
		File:     file,
		Line:     line,
		Column:   column,
		Value:    "",
		Expected: "non-empty value",
	}

	message := "required field is empty"
	err := NewRecordError(CodeMissingField, context, message, nil).
		WithSuggestion("Provide a value for this required field")

	return err
}

// EncodingError creates an error for file encoding issues
func EncodingError(file string, line int, cause error) *RecordError {
	context := &RecordContext{
		File: file,
		Line: line,
	}

	message := "file encoding error"
	err := NewRecordError(CodeEncodingError, context, message, cause).
		WithSuggestion("Save the file in UTF-8 encoding")

	err.Recoverable = false
	return err
}

// RecordErrorCollector collects per-record errors during batch processing
type RecordErrorCollector struct {
	errors          []*RecordError
	maxErrors       int
	continueOnError bool
}

// NewRecordErrorCollector creates a new error collector
func NewRecordErrorCollector(maxErrors int, continueOnError bool) *RecordErrorCollector {
	return &RecordErrorCollector{
		errors:          make([]*RecordError, 0),
		maxErrors:       maxErrors,
		continueOnError: continueOnError,
	}
}

// Add adds an error to the collector and reports whether processing should
// continue
func (c *RecordErrorCollector) Add(err *RecordError) bool {
	if err == nil {
		return true
	}

	c.errors = append(c.errors, err)

	if len(c.errors) >= c.maxErrors {
		return false
	}

	return c.continueOnError || err.Recoverable
}

// HasErrors returns true if any errors have been collected
func (c *RecordErrorCollector) HasErrors() bool {
	return len(c.errors) > 0
}

// GetErrors returns all collected errors
func (c *RecordErrorCollector) GetErrors() []*RecordError {
	return c.errors
}

// GetPipelineErrors converts all errors to the base PipelineError type
func (c *RecordErrorCollector) GetPipelineErrors() []*PipelineError {
	result := make([]*PipelineError, len(c.errors))
	for i, err := range c.errors {
		result[i] = err.PipelineError
	}
	return result
}

// GetSummary returns an error summary for all collected errors
func (c *RecordErrorCollector) GetSummary() *ErrorSummary {
	return NewErrorSummary(c.GetPipelineErrors())
}

// Clear clears all collected errors
func (c *RecordErrorCollector) Clear() {
	c.errors = c.errors[:0]
}

// Helper functions

func findMissingColumns(expected, actual []string) []string {
	actualSet := make(map[string]bool)
	for _, col := range actual {
		actualSet[strings.ToLower(strings.TrimSpace(col))] = true
	}

	var missing []string
	for _, col := range expected {
		if !actualSet[strings.ToLower(strings.TrimSpace(col))] {
			missing = append(missing, col)
		}
	}

	return missing
}

// FormatRecordErrorsForUser formats multiple record errors for the novelty
// report written next to a partially failed file
func FormatRecordErrorsForUser(errors []*RecordError) string {
	if len(errors) == 0 {
		return "No record errors"
	}

	if len(errors) == 1 {
		return errors[0].GetDetailedError()
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("Found %d record errors:", len(errors)))
	lines = append(lines, "")

	errorsByFile := make(map[string][]*RecordError)
	for _, err := range errors {
		file := "unknown"
		if err.Context != nil {
			file = filepath.Base(err.Context.File)
		}
		errorsByFile[file] = append(errorsByFile[file], err)
	}

	for file, fileErrors := range errorsByFile {
		lines = append(lines, fmt.Sprintf("File: %s (%d errors)", file, len(fileErrors)))

		maxDetailedErrors := 3
		for i, err := range fileErrors {
			if i < maxDetailedErrors {
				lines = append(lines, "")
				lines = append(lines, err.GetDetailedError())
			} else if i == maxDetailedErrors {
				remaining := len(fileErrors) - maxDetailedErrors
				lines = append(lines, "")
				lines = append(lines, fmt.Sprintf("... and %d more errors in this file", remaining))
				break
			}
		}
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}
