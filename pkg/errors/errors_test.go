package errors

import (
	"errors"
	"testing"
)

func TestPipelineError(t *testing.T) {
	tests := []struct {
		name       string
		category   ErrorCategory
		code       ErrorCode
		message    string
		cause      error
		expectCode int
	}{
		{
			name:       "file error",
			category:   CategoryFile,
			code:       CodeFileNotFound,
			message:    "file not found",
			cause:      errors.New("no such file"),
			expectCode: 2,
		},
		{
			name:       "parse error",
			category:   CategoryParse,
			code:       CodeInvalidFormat,
			message:    "invalid format",
			cause:      nil,
			expectCode: 3,
		},
		{
			name:       "resolution error",
			category:   CategoryResolution,
			code:       CodePointNotFound,
			message:    "point not found",
			cause:      nil,
			expectCode: 3,
		},
		{
			name:       "configuration error",
			category:   CategoryConfiguration,
			code:       CodeInvalidConfig,
			message:    "invalid config",
			cause:      errors.New("missing field"),
			expectCode: 4,
		},
		{
			name:       "ledger error",
			category:   CategoryLedger,
			code:       CodeWriteFailed,
			message:    "insert failed",
			cause:      errors.New("connection reset"),
			expectCode: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err *PipelineError
			if tt.cause != nil {
				err = Wrap(tt.cause, tt.category, tt.code, tt.message)
			} else {
				err = New(tt.category, tt.code, tt.message)
			}

			if err.Category != tt.category {
				t.Errorf("expected category %s, got %s", tt.category, err.Category)
			}
			if err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, err.Code)
			}
			if err.Message != tt.message {
				t.Errorf("expected message %s, got %s", tt.message, err.Message)
			}

			if err.GetExitCode() != tt.expectCode {
				t.Errorf("expected exit code %d, got %d", tt.expectCode, err.GetExitCode())
			}

			if err.Error() != tt.message {
				t.Errorf("expected error string %s, got %s", tt.message, err.Error())
			}

			if tt.cause != nil && err.Unwrap() != tt.cause {
				t.Errorf("expected to unwrap to %v, got %v", tt.cause, err.Unwrap())
			}
		})
	}
}

func TestPipelineErrorWithContext(t *testing.T) {
	err := New(CategoryFile, CodeFileNotFound, "test error").
		WithContext("file", "/path/to/file").
		WithContext("line", 42).
		WithSuggestion("check file path")

	if err.Context["file"] != "/path/to/file" {
		t.Errorf("expected file context '/path/to/file', got %v", err.Context["file"])
	}
	if err.Context["line"] != 42 {
		t.Errorf("expected line context 42, got %v", err.Context["line"])
	}

	if err.Suggestion != "check file path" {
		t.Errorf("expected suggestion 'check file path', got %s", err.Suggestion)
	}

	expected := "test error (suggestion: check file path)"
	if err.Error() != expected {
		t.Errorf("expected error string '%s', got '%s'", expected, err.Error())
	}
}

func TestSpecificErrorConstructors(t *testing.T) {
	t.Run("FileError", func(t *testing.T) {
		cause := errors.New("permission denied")
		err := FileError(CodeFilePermission, "/in/xml/order.xml", cause)

		if err.Category != CategoryFile {
			t.Errorf("expected file category, got %s", err.Category)
		}
		if err.Code != CodeFilePermission {
			t.Errorf("expected permission code, got %s", err.Code)
		}
		if err.Context["file_path"] != "/in/xml/order.xml" {
			t.Errorf("expected file_path context, got %v", err.Context["file_path"])
		}
		if err.Suggestion == "" {
			t.Error("expected suggestion to be set")
		}
		if err.Cause != cause {
			t.Errorf("expected cause to be %v, got %v", cause, err.Cause)
		}
	})

	t.Run("ParseError", func(t *testing.T) {
		err := ParseError(CodeInvalidFormat, "detail.txt", 10, "valor", "12.3.4", nil)

		if err.Category != CategoryParse {
			t.Errorf("expected parse category, got %s", err.Category)
		}
		if err.Context["file"] != "detail.txt" {
			t.Errorf("expected file context, got %v", err.Context["file"])
		}
		if err.Context["line"] != 10 {
			t.Errorf("expected line context, got %v", err.Context["line"])
		}
	})

	t.Run("ValidationError", func(t *testing.T) {
		err := ValidationError(CodeBranchMismatch, "branch", "10 != 20", nil)

		if err.Category != CategoryValidation {
			t.Errorf("expected validation category, got %s", err.Category)
		}
		if err.Context["field"] != "branch" {
			t.Errorf("expected field context, got %v", err.Context["field"])
		}
		if !IsValidation(err) {
			t.Error("expected IsValidation to be true")
		}
	})

	t.Run("ResolutionError", func(t *testing.T) {
		err := ResolutionError(CodePointNotFound, "52-SUC-0075", 45, nil)

		if err.Category != CategoryResolution {
			t.Errorf("expected resolution category, got %s", err.Category)
		}
		if err.Context["raw_code"] != "52-SUC-0075" {
			t.Errorf("expected raw_code context, got %v", err.Context["raw_code"])
		}
		if !IsPointNotFound(err) {
			t.Error("expected IsPointNotFound to be true")
		}
	})

	t.Run("LedgerError", func(t *testing.T) {
		err := LedgerError(CodeWriteFailed, "451508202612345", errors.New("timeout"))

		if err.Category != CategoryLedger {
			t.Errorf("expected ledger category, got %s", err.Category)
		}
		if err.Context["order_id"] != "451508202612345" {
			t.Errorf("expected order_id context, got %v", err.Context["order_id"])
		}
	})
}

func TestEmptyBatchPredicate(t *testing.T) {
	err := ParseError(CodeEmptyBatch, "empty.xml", 0, "", "", nil)
	if !IsEmptyBatch(err) {
		t.Error("expected IsEmptyBatch to be true")
	}
	if IsEmptyBatch(errors.New("plain")) {
		t.Error("expected IsEmptyBatch to be false for plain error")
	}
}

func TestErrorSummary(t *testing.T) {
	errs := []*PipelineError{
		New(CategoryFile, CodeFileNotFound, "error 1"),
		New(CategoryFile, CodeFilePermission, "error 2"),
		New(CategoryParse, CodeInvalidFormat, "error 3"),
		New(CategoryResolution, CodePointNotFound, "error 4"),
		New(CategoryValidation, CodeInvalidAmount, "error 5"),
	}

	summary := NewErrorSummary(errs)

	if summary.Total != 5 {
		t.Errorf("expected total 5, got %d", summary.Total)
	}

	if summary.ByCategory[CategoryFile] != 2 {
		t.Errorf("expected 2 file errors, got %d", summary.ByCategory[CategoryFile])
	}
	if summary.ByCategory[CategoryResolution] != 1 {
		t.Errorf("expected 1 resolution error, got %d", summary.ByCategory[CategoryResolution])
	}

	if summary.ByCode[CodePointNotFound] != 1 {
		t.Errorf("expected 1 point not found error, got %d", summary.ByCode[CodePointNotFound])
	}

	errStr := summary.Error()
	if errStr == "" {
		t.Error("expected non-empty error string")
	}

	if !summary.HasCategory(CategoryFile) {
		t.Error("expected to have file category")
	}
	if summary.HasCategory(CategoryNetwork) {
		t.Error("expected not to have network category")
	}
	if !summary.HasCode(CodePointNotFound) {
		t.Error("expected to have point not found code")
	}

	actualCode := summary.GetExitCode()
	if actualCode == 0 {
		t.Error("expected non-zero exit code")
	}
}

func TestEmptyErrorSummary(t *testing.T) {
	summary := NewErrorSummary([]*PipelineError{})

	if summary.Total != 0 {
		t.Errorf("expected total 0, got %d", summary.Total)
	}
	if summary.Error() != "no errors" {
		t.Errorf("expected 'no errors', got '%s'", summary.Error())
	}
	if summary.GetExitCode() != 0 {
		t.Errorf("expected exit code 0, got %d", summary.GetExitCode())
	}
}

func TestSingleErrorSummary(t *testing.T) {
	err := New(CategoryFile, CodeFileNotFound, "single error")
	summary := NewErrorSummary([]*PipelineError{err})

	if summary.Total != 1 {
		t.Errorf("expected total 1, got %d", summary.Total)
	}
	if summary.Error() != "single error" {
		t.Errorf("expected 'single error', got '%s'", summary.Error())
	}
}

func TestIsPipelineError(t *testing.T) {
	pipelineErr := New(CategoryFile, CodeFileNotFound, "test")
	genericErr := errors.New("generic error")

	if !IsPipelineError(pipelineErr) {
		t.Error("expected IsPipelineError to return true for PipelineError")
	}
	if IsPipelineError(genericErr) {
		t.Error("expected IsPipelineError to return false for generic error")
	}
	if IsPipelineError(nil) {
		t.Error("expected IsPipelineError to return false for nil")
	}
}

func TestAsPipelineError(t *testing.T) {
	pipelineErr := New(CategoryFile, CodeFileNotFound, "test")
	genericErr := errors.New("generic error")

	if extracted, ok := AsPipelineError(pipelineErr); !ok || extracted != pipelineErr {
		t.Error("expected AsPipelineError to extract PipelineError")
	}

	if _, ok := AsPipelineError(genericErr); ok {
		t.Error("expected AsPipelineError to return false for generic error")
	}

	if _, ok := AsPipelineError(nil); ok {
		t.Error("expected AsPipelineError to return false for nil")
	}
}

func TestWrapIfNeeded(t *testing.T) {
	pipelineErr := New(CategoryFile, CodeFileNotFound, "test")
	genericErr := errors.New("generic error")

	result1 := WrapIfNeeded(pipelineErr, CategoryParse, CodeInvalidFormat, "wrapped")
	if result1 != pipelineErr {
		t.Error("expected WrapIfNeeded to return original PipelineError")
	}

	result2 := WrapIfNeeded(genericErr, CategoryParse, CodeInvalidFormat, "wrapped")
	if result2.Cause != genericErr {
		t.Error("expected WrapIfNeeded to wrap generic error")
	}
	if result2.Category != CategoryParse {
		t.Error("expected wrapped error to have correct category")
	}

	result3 := WrapIfNeeded(nil, CategoryParse, CodeInvalidFormat, "wrapped")
	if result3 != nil {
		t.Error("expected WrapIfNeeded to return nil for nil input")
	}
}

func TestErrorCodes(t *testing.T) {
	codes := []ErrorCode{
		CodeFileNotFound,
		CodeFilePermission,
		CodeInvalidFormat,
		CodeMissingColumn,
		CodeEmptyBatch,
		CodeInvalidAmount,
		CodeInvalidDate,
		CodeBranchMismatch,
		CodePointNotFound,
		CodeWriteFailed,
		CodeInvalidConfig,
		CodeConnectionFailed,
		CodeAuthExpired,
		CodeUnexpectedError,
	}

	for _, code := range codes {
		if string(code) == "" {
			t.Errorf("error code %v is empty", code)
		}
	}
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		category     ErrorCategory
		expectedCode int
	}{
		{CategoryFile, 2},
		{CategoryParse, 3},
		{CategoryValidation, 3},
		{CategoryResolution, 3},
		{CategoryConfiguration, 4},
		{CategoryLedger, 5},
		{CategoryInternal, 5},
		{CategoryNetwork, 6},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			err := New(tt.category, "test_code", "test message")
			if err.GetExitCode() != tt.expectedCode {
				t.Errorf("expected exit code %d for category %s, got %d",
					tt.expectedCode, tt.category, err.GetExitCode())
			}
		})
	}
}
