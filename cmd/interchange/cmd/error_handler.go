package cmd

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"cash-interchange-service/pkg/errors"
	"cash-interchange-service/pkg/logger"

	"github.com/spf13/viper"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError handles errors and provides user-friendly messages
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	// Log the error
	h.logger.WithError(err).Error("Command failed")

	// Handle PipelineError with detailed information
	if pipelineErr, ok := errors.AsPipelineError(err); ok {
		return h.handlePipelineError(pipelineErr)
	}

	// Handle other error types
	return h.handleGenericError(err)
}

// handlePipelineError handles PipelineError with detailed context
func (h *CLIErrorHandler) handlePipelineError(err *errors.PipelineError) int {
	// Print the main error message
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Message)

	// Add context information if available
	if len(err.Context) > 0 {
		fmt.Fprintf(os.Stderr, "\nContext:\n")
		for key, value := range err.Context {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", key, value)
		}
	}

	// Add suggestion if available
	if err.Suggestion != "" {
		fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", err.Suggestion)
	}

	// Add category-specific help
	fmt.Fprintf(os.Stderr, "\n%s\n", h.getCategoryHelp(err.Category))

	// Show underlying error in verbose mode
	if h.verbose && err.Cause != nil {
		fmt.Fprintf(os.Stderr, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

// handleGenericError handles non-PipelineError types
func (h *CLIErrorHandler) handleGenericError(err error) int {
	// Check for common system errors and provide better messages
	if h.isFileNotFoundError(err) {
		fmt.Fprintf(os.Stderr, "Error: File not found\n")
		fmt.Fprintf(os.Stderr, "Suggestion: Check the configured folder paths and make sure they exist\n")
		return 2
	}

	if h.isPermissionError(err) {
		fmt.Fprintf(os.Stderr, "Error: Permission denied\n")
		fmt.Fprintf(os.Stderr, "Suggestion: The service needs read access to the input folders and write access to the terminal folders\n")
		return 2
	}

	if h.isDiskFullError(err) {
		fmt.Fprintf(os.Stderr, "Error: Insufficient disk space\n")
		fmt.Fprintf(os.Stderr, "Suggestion: Free up disk space and try again\n")
		return 2
	}

	// Generic error handling
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	if h.verbose {
		fmt.Fprintf(os.Stderr, "\nFor more details, check the logs or run with --verbose flag\n")
	}

	return 1
}

// getCategoryHelp returns category-specific help text
func (h *CLIErrorHandler) getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Check if the folder exists and is readable
• Verify the configured paths (use absolute paths if needed)
• Ensure the service user has proper permissions
• Files being written by the partner should use a temporary name until complete`

	case errors.CategoryParse:
		return `Parse error help:
• Verify the file format matches the agreed interchange contract
• Check for proper headers and record structure
• Ensure the file uses UTF-8 encoding
• Quarantined files keep a paired .log naming the failing rows`

	case errors.CategoryValidation:
		return `Validation error help:
• Check that all required fields have values
• Verify dates use one of the agreed interchange formats
• Ensure amounts are decimal numbers without currency symbols
• Collection orders must not carry monetary values at creation`

	case errors.CategoryResolution:
		return `Resolution error help:
• The point or client code in the file is not in the reference database
• Check the code against the reference data, including composite forms
• Verify the client folder name starts with the right client code
• New points must be registered before their orders can be ingested`

	case errors.CategoryLedger:
		return `Ledger error help:
• Verify the ledger database or API is reachable
• Re-running a file is safe: orders already written are acknowledged as processed
• Check the ledger credentials in the environment`

	case errors.CategoryNetwork:
		return `Network error help:
• Check connectivity to the remote ledger
• Expired sessions are retried once; a second failure means the credentials are wrong
• Verify INTERCHANGE_LEDGER_API_URL and the account credentials`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check the INTERCHANGE_* environment variables
• Verify the .env file syntax if using --env-file
• Use 'interchange ingest --help' to see all available options
• The sheet layout table uses comma-separated clientCode=layout pairs`

	default:
		return `For more help:
• Use 'interchange --help' for general help
• Use 'interchange ingest --help' or 'interchange watch --help' for command-specific help
• Check the documentation for detailed examples
• Report bugs or ask for help on the project repository`
	}
}

// Error detection helpers

func (h *CLIErrorHandler) isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory")
}

func (h *CLIErrorHandler) isPermissionError(err error) bool {
	return os.IsPermission(err) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}

func (h *CLIErrorHandler) isDiskFullError(err error) bool {
	if err == syscall.ENOSPC {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "device full")
}
