package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"testing"

	"golang-statement-reconciler/pkg/errors"
	"golang-statement-reconciler/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T, verbose bool) (*CLIErrorHandler, *bytes.Buffer) {
	t.Helper()
	log, err := logger.NewLoggerWithWriter(logger.QuietConfig(), io.Discard)
	require.NoError(t, err)
	buf := &bytes.Buffer{}
	return &CLIErrorHandler{logger: log, out: buf, verbose: verbose}, buf
}

func TestHandleErrorExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantText string
	}{
		{"nil", nil, 0, ""},
		{"file", errors.FileError(errors.CodeFileNotFound, "/x/2024.json", os.ErrNotExist), 2, "File error help"},
		{"parse", errors.ParseError(errors.CodeInvalidJSON, "2024.json", "2024", "balance_sheet", nil), 3, "Parse error help"},
		{"configuration", errors.ConfigurationError(errors.CodeInvalidConfig, "matching", "fuzzy", nil), 4, "Configuration error help"},
		{"storage", errors.StorageError(errors.CodeRunNotFound, "abc", nil), 6, "reconciler runs list"},
		{"export", errors.ExportError(errors.CodeUnsupportedFormat, "pdf", nil), 6, "Export error help"},
		{"generic", fmt.Errorf("boom"), 1, "Error: boom"},
		{"not found", os.ErrNotExist, 2, "File not found"},
		{"permission", os.ErrPermission, 2, "Permission denied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, buf := newTestHandler(t, false)
			assert.Equal(t, tt.wantCode, handler.HandleError(tt.err))
			assert.Contains(t, buf.String(), tt.wantText)
		})
	}
}

func TestHandleErrorContextIsSorted(t *testing.T) {
	handler, buf := newTestHandler(t, false)
	err := errors.New(errors.CategoryValidation, errors.CodeInvalidValue, "bad value").
		WithContext("zeta", 1).
		WithContext("alpha", 2)

	handler.HandleError(err)
	out := buf.String()
	assert.Less(t, bytes.Index([]byte(out), []byte("alpha")), bytes.Index([]byte(out), []byte("zeta")))
}

func TestHandleDocumentErrorVerbose(t *testing.T) {
	docErr := errors.JSONSyntaxError("/filings/2023.json", []byte(`{"balance_sheet": [1, 2,, 3]}`),
		fmt.Errorf("invalid character ','"))

	quiet, quietOut := newTestHandler(t, false)
	assert.Equal(t, 3, quiet.HandleError(docErr))
	assert.NotContains(t, quietOut.String(), "→ File")

	verbose, verboseOut := newTestHandler(t, true)
	assert.Equal(t, 3, verbose.HandleError(fmt.Errorf("loading: %w", docErr)))
	assert.Contains(t, verboseOut.String(), "→ File: /filings/2023.json")
}
