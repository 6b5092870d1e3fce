// Package errors provides the categorized error type used across the
// statement reconciler. Every error carries a category that maps to a process
// exit code, a stable code, a message, and a suggestion for the user.
package errors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryFile           ErrorCategory = "file"
	CategoryParse          ErrorCategory = "parse"
	CategoryValidation     ErrorCategory = "validation"
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryReconciliation ErrorCategory = "reconciliation"
	CategoryStorage        ErrorCategory = "storage"
	CategoryExport         ErrorCategory = "export"
	CategoryInternal       ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// File errors
	CodeFileNotFound    ErrorCode = "file_not_found"
	CodeFilePermission  ErrorCode = "file_permission"
	CodeDirectoryError  ErrorCode = "directory_error"
	CodeUnsupportedFile ErrorCode = "unsupported_file"

	// Parse errors
	CodeInvalidJSON      ErrorCode = "invalid_json"
	CodeInvalidHTML      ErrorCode = "invalid_html"
	CodeInvalidDocument  ErrorCode = "invalid_document"
	CodeUnknownStatement ErrorCode = "unknown_statement"

	// Validation errors
	CodeMissingField ErrorCode = "missing_field"
	CodeInvalidValue ErrorCode = "invalid_value"
	CodeNoFilings    ErrorCode = "no_filings"

	// Configuration errors
	CodeInvalidConfig  ErrorCode = "invalid_config"
	CodeMissingConfig  ErrorCode = "missing_config"
	CodeConfigConflict ErrorCode = "config_conflict"

	// Reconciliation errors
	CodeMergeFailed    ErrorCode = "merge_failed"
	CodePresenceFailed ErrorCode = "presence_failed"
	CodeOrderingFailed ErrorCode = "ordering_failed"

	// Storage errors
	CodeStorageUnavailable ErrorCode = "storage_unavailable"
	CodeMigrationFailed    ErrorCode = "migration_failed"
	CodeRunNotFound        ErrorCode = "run_not_found"
	CodeQueryFailed        ErrorCode = "query_failed"

	// Export errors
	CodeUnsupportedFormat ErrorCode = "unsupported_format"
	CodeWriteFailed       ErrorCode = "write_failed"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
	CodePanicRecovered  ErrorCode = "panic_recovered"
)

// ReconcilerError is the base error type for all application errors
type ReconcilerError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *ReconcilerError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", msg, e.Suggestion)
	}
	return msg
}

// Unwrap returns the underlying cause error
func (e *ReconcilerError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *ReconcilerError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryReconciliation, CategoryInternal:
		return 5
	case CategoryStorage, CategoryExport:
		return 6
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *ReconcilerError) WithContext(key string, value interface{}) *ReconcilerError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *ReconcilerError) WithSuggestion(suggestion string) *ReconcilerError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ReconcilerError
func New(category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with ReconcilerError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err == nil {
		return nil
	}

	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func build(category ErrorCategory, code ErrorCode, message, suggestion string, err error) *ReconcilerError {
	var result *ReconcilerError
	if err != nil {
		result = Wrap(err, category, code, message)
	} else {
		result = New(category, code, message)
	}
	return result.WithSuggestion(suggestion)
}

// Specific error constructors

// FileError creates a file-related error
func FileError(code ErrorCode, path string, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check if the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	case CodeDirectoryError:
		message = fmt.Sprintf("directory error: %s", path)
		suggestion = "ensure the directory exists and is accessible"
	case CodeUnsupportedFile:
		message = fmt.Sprintf("unsupported input file: %s", path)
		suggestion = "provide .json period bundles or .html/.htm inline XBRL fragments"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	return build(CategoryFile, code, message, suggestion, err).
		WithContext("file_path", path)
}

// ParseError creates an error for a filing document that could not be decoded
func ParseError(code ErrorCode, file, period, statement string, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeInvalidJSON:
		message = fmt.Sprintf("invalid JSON in %s", file)
		suggestion = "check the extract for truncation or enable JSON repair"
	case CodeInvalidHTML:
		message = fmt.Sprintf("no inline XBRL facts found in %s", file)
		suggestion = "ensure the fragment contains ix:nonFraction elements with contextref attributes"
	case CodeInvalidDocument:
		message = fmt.Sprintf("invalid %s document for period %s in %s", statement, period, file)
		suggestion = "each statement needs a list of sections with labelled items"
	case CodeUnknownStatement:
		message = fmt.Sprintf("unknown statement type %q in %s", statement, file)
		suggestion = "use income_statement, balance_sheet or cash_flow_statement"
	default:
		message = fmt.Sprintf("parse error in %s", file)
		suggestion = "check the file format and data integrity"
	}

	return build(CategoryParse, code, message, suggestion, err).
		WithContext("file", file).
		WithContext("period", period).
		WithContext("statement", statement)
}

// ValidationError creates a validation-related error
func ValidationError(code ErrorCode, field string, value interface{}, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	case CodeInvalidValue:
		message = fmt.Sprintf("invalid value in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	case CodeNoFilings:
		message = "no usable filing periods were found"
		suggestion = "point --input at a directory of period files or an aggregate bundle"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	return build(CategoryValidation, code, message, suggestion, err).
		WithContext("field", field).
		WithContext("value", value)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this configuration setting or use a config file"
	case CodeConfigConflict:
		message = fmt.Sprintf("configuration conflict with setting '%s': %v", setting, value)
		suggestion = "resolve the conflicting settings or use default values"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	return build(CategoryConfiguration, code, message, suggestion, err).
		WithContext("setting", setting).
		WithContext("value", value)
}

// ReconciliationError creates an error raised while building one statement's catalog
func ReconciliationError(code ErrorCode, statement, operation string, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeMergeFailed:
		message = fmt.Sprintf("merging %s failed during %s", statement, operation)
		suggestion = "inspect the filing documents for this statement type"
	case CodePresenceFailed:
		message = fmt.Sprintf("presence check for %s failed during %s", statement, operation)
		suggestion = "rerun with --no-presence-check to isolate the problem"
	case CodeOrderingFailed:
		message = fmt.Sprintf("ordering %s failed during %s", statement, operation)
		suggestion = "review the newest filing's section structure"
	default:
		message = fmt.Sprintf("reconciliation error for %s during %s", statement, operation)
		suggestion = "review the data and configuration"
	}

	return build(CategoryReconciliation, code, message, suggestion, err).
		WithContext("statement", statement).
		WithContext("operation", operation)
}

// StorageError creates an error for the run history store
func StorageError(code ErrorCode, target string, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeStorageUnavailable:
		message = fmt.Sprintf("cannot open run store %s", target)
		suggestion = "check the --store path and its directory permissions"
	case CodeMigrationFailed:
		message = fmt.Sprintf("cannot prepare run store schema in %s", target)
		suggestion = "remove or move the database file if it was created by another tool"
	case CodeRunNotFound:
		message = fmt.Sprintf("run not found: %s", target)
		suggestion = "use 'reconciler runs list' to see stored run IDs"
	case CodeQueryFailed:
		message = fmt.Sprintf("run store query failed: %s", target)
		suggestion = "try again or check the database file for corruption"
	default:
		message = fmt.Sprintf("storage error: %s", target)
		suggestion = "check the run store and try again"
	}

	return build(CategoryStorage, code, message, suggestion, err).
		WithContext("target", target)
}

// ExportError creates an error for report generation
func ExportError(code ErrorCode, format string, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeUnsupportedFormat:
		message = fmt.Sprintf("unsupported output format: %s", format)
		suggestion = "use console, json, csv, yaml or xlsx"
	case CodeWriteFailed:
		message = fmt.Sprintf("failed to write %s report", format)
		suggestion = "check the output path and available disk space"
	default:
		message = fmt.Sprintf("export error: %s", format)
		suggestion = "try another output format"
	}

	return build(CategoryExport, code, message, suggestion, err).
		WithContext("format", format)
}

// InternalError creates an internal error
func InternalError(code ErrorCode, operation string, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeUnexpectedError:
		message = fmt.Sprintf("unexpected error during %s", operation)
		suggestion = "this is likely a bug - please report it with the error details"
	case CodePanicRecovered:
		message = fmt.Sprintf("recovered from panic during %s", operation)
		suggestion = "this is a bug - please report it with the input files"
	default:
		message = fmt.Sprintf("internal error during %s", operation)
		suggestion = "try again or contact support if the problem persists"
	}

	return build(CategoryInternal, code, message, suggestion, err).
		WithContext("operation", operation)
}

// ErrorSummary provides a summary of multiple errors
type ErrorSummary struct {
	Total        int                   `json:"total"`
	ByCategory   map[ErrorCategory]int `json:"by_category"`
	ByCode       map[ErrorCode]int     `json:"by_code"`
	Errors       []*ReconcilerError    `json:"errors"`
	SampleErrors []*ReconcilerError    `json:"sample_errors,omitempty"`
}

// NewErrorSummary creates a new error summary
func NewErrorSummary(errs []*ReconcilerError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errs,
	}
	if summary.Errors == nil {
		summary.Errors = []*ReconcilerError{}
	}

	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	maxSamples := 5
	if len(errs) > maxSamples {
		summary.SampleErrors = errs[:maxSamples]
	} else {
		summary.SampleErrors = errs
	}

	return summary
}

// Error returns a formatted error message for the summary
func (es *ErrorSummary) Error() string {
	if es.Total == 0 {
		return "no errors"
	}

	if es.Total == 1 {
		return es.Errors[0].Error()
	}

	var categories []string
	for category, count := range es.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}
	sort.Strings(categories)

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// HasCategory checks if the summary contains errors of the given category
func (es *ErrorSummary) HasCategory(category ErrorCategory) bool {
	return es.ByCategory[category] > 0
}

// HasCode checks if the summary contains errors with the given code
func (es *ErrorSummary) HasCode(code ErrorCode) bool {
	return es.ByCode[code] > 0
}

// GetExitCode returns the highest priority exit code from all errors
func (es *ErrorSummary) GetExitCode() int {
	if es.Total == 0 {
		return 0
	}

	maxCode := 1
	for _, err := range es.Errors {
		if code := err.GetExitCode(); code > maxCode {
			maxCode = code
		}
	}

	return maxCode
}

// Utility functions

// IsReconcilerError checks if an error is a ReconcilerError
func IsReconcilerError(err error) bool {
	_, ok := AsReconcilerError(err)
	return ok
}

// AsReconcilerError extracts a ReconcilerError from an error chain
func AsReconcilerError(err error) (*ReconcilerError, bool) {
	var reconcilerErr *ReconcilerError
	if errors.As(err, &reconcilerErr) {
		return reconcilerErr, true
	}
	return nil, false
}

// WrapIfNeeded wraps an error if it's not already a ReconcilerError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err == nil {
		return nil
	}

	if reconcilerErr, ok := AsReconcilerError(err); ok {
		return reconcilerErr
	}

	return Wrap(err, category, code, message)
}
