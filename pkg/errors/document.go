package errors

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// DocumentContext locates a problem inside one filing input file
type DocumentContext struct {
	File      string `json:"file"`
	Period    string `json:"period,omitempty"`
	Statement string `json:"statement,omitempty"`
	Offset    int64  `json:"offset,omitempty"`
	Snippet   string `json:"snippet,omitempty"`
}

// DocumentError is a parse error with the location of the offending input
type DocumentError struct {
	*ReconcilerError
	Location    *DocumentContext `json:"location"`
	Recoverable bool             `json:"recoverable"`
}

// Error implements the error interface with the file location appended
func (e *DocumentError) Error() string {
	parts := []string{e.ReconcilerError.Error()}

	if e.Location != nil {
		location := fmt.Sprintf("at %s", filepath.Base(e.Location.File))
		if e.Location.Offset > 0 {
			location += fmt.Sprintf(" offset %d", e.Location.Offset)
		}
		parts = append(parts, location)
	}

	return strings.Join(parts, " ")
}

// GetDetailedError returns a detailed multi-line error description
func (e *DocumentError) GetDetailedError() string {
	lines := []string{fmt.Sprintf("ERROR: %s", e.Message)}

	if e.Location != nil {
		lines = append(lines, fmt.Sprintf("  → File: %s", e.Location.File))
		if e.Location.Period != "" {
			lines = append(lines, fmt.Sprintf("  → Period: %s", e.Location.Period))
		}
		if e.Location.Statement != "" {
			lines = append(lines, fmt.Sprintf("  → Statement: %s", e.Location.Statement))
		}
		if e.Location.Offset > 0 {
			lines = append(lines, fmt.Sprintf("  → Offset: %d", e.Location.Offset))
		}
		if e.Location.Snippet != "" {
			lines = append(lines, fmt.Sprintf("  → Near: %s", e.Location.Snippet))
		}
	}

	if e.Cause != nil {
		lines = append(lines, fmt.Sprintf("  → Cause: %v", e.Cause))
	}
	if e.Suggestion != "" {
		lines = append(lines, fmt.Sprintf("  → Suggestion: %s", e.Suggestion))
	}

	return strings.Join(lines, "\n")
}

// NewDocumentError creates a document error from a parse error code
func NewDocumentError(code ErrorCode, location *DocumentContext, cause error) *DocumentError {
	if location == nil {
		location = &DocumentContext{}
	}
	base := ParseError(code, location.File, location.Period, location.Statement, cause)
	if location.Offset > 0 {
		base.WithContext("offset", location.Offset)
	}

	return &DocumentError{
		ReconcilerError: base,
		Location:        location,
		Recoverable:     true,
	}
}

// WithRecoverable sets whether loading may continue past this error
func (e *DocumentError) WithRecoverable(recoverable bool) *DocumentError {
	e.Recoverable = recoverable
	return e
}

// JSONSyntaxError builds a document error for undecodable JSON, quoting the
// bytes around the failure offset when the decoder reports one
func JSONSyntaxError(file string, data []byte, cause error) *DocumentError {
	location := &DocumentContext{File: file}

	var syntaxErr *json.SyntaxError
	if errors.As(cause, &syntaxErr) {
		location.Offset = syntaxErr.Offset
		location.Snippet = snippetAround(data, syntaxErr.Offset, 20)
	}

	return NewDocumentError(CodeInvalidJSON, location, cause)
}

func snippetAround(data []byte, offset int64, radius int64) string {
	if len(data) == 0 {
		return ""
	}
	start := offset - radius
	if start < 0 {
		start = 0
	}
	end := offset + radius
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	if start >= end {
		return ""
	}
	return strings.Join(strings.Fields(string(data[start:end])), " ")
}

// DocumentErrorCollector collects per-file failures while loading filings
type DocumentErrorCollector struct {
	errors    []*DocumentError
	maxErrors int
}

// NewDocumentErrorCollector creates a collector that stops accepting errors
// after maxErrors; zero means unlimited
func NewDocumentErrorCollector(maxErrors int) *DocumentErrorCollector {
	return &DocumentErrorCollector{maxErrors: maxErrors}
}

// Add records err and reports whether loading should continue
func (c *DocumentErrorCollector) Add(err *DocumentError) bool {
	if err == nil {
		return true
	}

	c.errors = append(c.errors, err)

	if c.maxErrors > 0 && len(c.errors) >= c.maxErrors {
		return false
	}
	return err.Recoverable
}

// HasErrors returns true if any errors have been collected
func (c *DocumentErrorCollector) HasErrors() bool {
	return len(c.errors) > 0
}

// GetErrors returns all collected errors
func (c *DocumentErrorCollector) GetErrors() []*DocumentError {
	return c.errors
}

// GetSummary returns an error summary for all collected errors
func (c *DocumentErrorCollector) GetSummary() *ErrorSummary {
	base := make([]*ReconcilerError, len(c.errors))
	for i, err := range c.errors {
		base[i] = err.ReconcilerError
	}
	return NewErrorSummary(base)
}

// FormatDocumentErrorsForUser formats load failures grouped by file
func FormatDocumentErrorsForUser(errs []*DocumentError) string {
	if len(errs) == 0 {
		return "No document errors"
	}
	if len(errs) == 1 {
		return errs[0].GetDetailedError()
	}

	byFile := make(map[string][]*DocumentError)
	for _, err := range errs {
		file := "unknown"
		if err.Location != nil && err.Location.File != "" {
			file = filepath.Base(err.Location.File)
		}
		byFile[file] = append(byFile[file], err)
	}
	files := make([]string, 0, len(byFile))
	for f := range byFile {
		files = append(files, f)
	}
	sort.Strings(files)

	lines := []string{fmt.Sprintf("Found %d document errors:", len(errs))}
	for _, file := range files {
		lines = append(lines, "", fmt.Sprintf("File: %s (%d errors)", file, len(byFile[file])))
		for _, err := range byFile[file] {
			lines = append(lines, err.GetDetailedError())
		}
	}
	return strings.Join(lines, "\n")
}
