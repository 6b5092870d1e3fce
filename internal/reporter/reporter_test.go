package reporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang-statement-reconciler/internal/models"
	"golang-statement-reconciler/internal/reconciler"
	"golang-statement-reconciler/pkg/errors"
	"golang-statement-reconciler/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"
)

func addEntry(t *testing.T, catalog *models.Catalog, section, label, gaap string, values map[string]interface{}) *models.CatalogEntry {
	t.Helper()
	row := &models.Row{SectionLabel: section, ItemLabel: label, ItemGaap: gaap}
	identity := models.LabelIdentity(label)
	if gaap != "" {
		identity = models.TagIdentity(gaap)
	}
	entry := models.NewCatalogEntry(models.CatalogKey{Section: row.SectionKey(), Item: identity}, row)
	for k, v := range values {
		entry.Values[k] = models.NewValueCell(v)
	}
	require.NoError(t, catalog.Add(entry))
	return entry
}

func createSampleResult(t *testing.T) *reconciler.AggregateResult {
	t.Helper()
	result := reconciler.NewAggregateResult(models.AllStatementTypes())
	result.RunID = "run-42"
	result.Ticker = "ACME"
	result.CreatedAt = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	bs := result.Statements[models.BalanceSheet]
	bs.Periods = []string{"2024", "2023"}
	bs.SourceURLs = []string{"https://example.com/10k-2024.htm"}
	addEntry(t, bs.Catalog, "Current assets", "Cash and cash equivalents", "us-gaap:Cash", map[string]interface{}{"2024": "1,234,567", "2023": 1000.5})
	allowance := addEntry(t, bs.Catalog, "Current assets", "Allowance", "", map[string]interface{}{"2024": "(15)", "2023": "-"})
	allowance.NeedsReview = true
	allowance.ReviewReason = "similar to Allowances"
	addEntry(t, bs.Catalog, "Equity", "Common stock", "", map[string]interface{}{"2024": 10, "2023": 10})
	bs.Corrections = []*reconciler.Correction{{
		Key:          "label:allowance|current assets",
		SectionLabel: "Current assets",
		ItemLabel:    "Allowance",
		Period:       "2022",
		Authority:    "2022",
		Previous:     models.NewValueCell("7"),
		Reason:       "item absent from authoritative filing",
	}}
	bs.Stats = &reconciler.StatementStats{Filings: 2, Entries: 3, Sections: 2, Flagged: 1, Corrections: 1}

	income := result.Statements[models.IncomeStatement]
	income.Periods = []string{"2023"}
	addEntry(t, income.Catalog, "Revenue", "Net sales", "", map[string]interface{}{"2023": 500})

	return result
}

func generate(t *testing.T, config *ReportConfig, result *reconciler.AggregateResult) []byte {
	t.Helper()
	generator, err := NewReportGenerator(config)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, generator.GenerateReport(result, &buf))
	return buf.Bytes()
}

func configFor(format OutputFormat) *ReportConfig {
	cfg := DefaultReportConfig()
	cfg.Format = format
	return cfg
}

func TestNewReportGenerator(t *testing.T) {
	tests := []struct {
		name        string
		config      *ReportConfig
		expectError bool
	}{
		{"default config", nil, false},
		{"valid config", DefaultReportConfig(), false},
		{"invalid format", &ReportConfig{Format: "pdf", CSVDelimiter: ','}, true},
		{"negative precision", &ReportConfig{Format: FormatCSV, NumberPrecision: -1, CSVDelimiter: ','}, true},
		{"quote delimiter", &ReportConfig{Format: FormatCSV, CSVDelimiter: '"'}, true},
		{"missing delimiter", &ReportConfig{Format: FormatCSV}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generator, err := NewReportGenerator(tt.config)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, generator)
		})
	}
}

func TestOutputFormatValidation(t *testing.T) {
	for _, f := range SupportedFormats() {
		assert.True(t, f.IsValid(), f)
	}
	assert.False(t, OutputFormat("invalid").IsValid())
	assert.True(t, FormatXLSX.IsBinary())
	assert.False(t, FormatCSV.IsBinary())
	assert.Equal(t, ".txt", FormatConsole.Extension())
	assert.Equal(t, ".xlsx", FormatXLSX.Extension())
}

func TestGenerateReportNilResult(t *testing.T) {
	generator, err := NewReportGenerator(nil)
	require.NoError(t, err)
	assert.Error(t, generator.GenerateReport(nil, io.Discard))
}

func TestUpdateConfiguration(t *testing.T) {
	generator, err := NewReportGenerator(nil)
	require.NoError(t, err)

	require.NoError(t, generator.UpdateConfiguration(configFor(FormatJSON)))
	assert.Equal(t, FormatJSON, generator.GetConfiguration().Format)

	assert.Error(t, generator.UpdateConfiguration(&ReportConfig{Format: "bogus"}))
	assert.Equal(t, FormatJSON, generator.GetConfiguration().Format)
}

func TestConsoleReport(t *testing.T) {
	cfg := configFor(FormatConsole)
	cfg.IncludeStats = true
	out := string(generate(t, cfg, createSampleResult(t)))

	assert.Contains(t, out, "Ticker: ACME")
	assert.Contains(t, out, "=== BALANCE SHEET ===")
	assert.Contains(t, out, "1,234,567.00")
	assert.Contains(t, out, "1,000.50")
	assert.Contains(t, out, "-15.00")
	assert.Contains(t, out, "Allowance *")
	assert.Contains(t, out, "* 1 item(s) flagged for review")
	assert.Contains(t, out, "Presence corrections (1)")
	assert.Contains(t, out, "https://example.com/10k-2024.htm")
	assert.Contains(t, out, "Filings: 2 (skipped 0)")

	cashFlow := out[strings.Index(out, "=== CASH FLOW STATEMENT ==="):]
	assert.Contains(t, cashFlow, "No data")

	assert.Less(t, strings.Index(out, "Current assets"), strings.Index(out, "Equity"))
}

func TestConsoleReportDetailToggles(t *testing.T) {
	cfg := configFor(FormatConsole)
	cfg.IncludeCorrections = false
	cfg.IncludeSourceURLs = false
	cfg.IncludeReviewFlags = false
	out := string(generate(t, cfg, createSampleResult(t)))

	assert.NotContains(t, out, "Presence corrections")
	assert.NotContains(t, out, "example.com")
	assert.NotContains(t, out, "Allowance *")
}

func TestJSONReportKeepsCatalogOrder(t *testing.T) {
	out := generate(t, configFor(FormatJSON), createSampleResult(t))

	var report StructuredReport
	require.NoError(t, json.Unmarshal(out, &report))

	assert.Equal(t, "run-42", report.RunID)
	require.Len(t, report.Statements, 3)
	assert.Equal(t, models.IncomeStatement, report.Statements[0].Type)
	bs := report.Statements[1]
	assert.Equal(t, models.BalanceSheet, bs.Type)
	assert.Equal(t, "Balance Sheet", bs.Title)

	var labels []string
	for _, e := range bs.Entries {
		labels = append(labels, e.Label)
	}
	assert.Equal(t, []string{"Cash and cash equivalents", "Allowance", "Common stock"}, labels)
	assert.Equal(t, "tag:us-gaap:Cash|current assets", bs.Entries[0].Key)
	assert.Equal(t, "1,234,567", bs.Entries[0].Values["2024"].Text())
	assert.True(t, bs.Entries[1].NeedsReview)
	assert.Len(t, bs.Corrections, 1)
	assert.Nil(t, bs.Stats)

	assert.Equal(t, models.CashFlowStatement, report.Statements[2].Type)
	assert.Empty(t, report.Statements[2].Entries)
}

func TestYAMLReport(t *testing.T) {
	out := generate(t, configFor(FormatYAML), createSampleResult(t))

	var doc map[string]interface{}
	require.NoError(t, yaml.Unmarshal(out, &doc))
	assert.Equal(t, "ACME", doc["ticker"])

	statements := doc["statements"].([]interface{})
	require.Len(t, statements, 3)
	entries := statements[0].(map[string]interface{})["entries"].([]interface{})
	first := entries[0].(map[string]interface{})
	assert.Equal(t, "Cash and cash equivalents", first["label"])
	assert.Equal(t, 1000.5, first["values"].(map[string]interface{})["2023"])
}

func TestCSVReport(t *testing.T) {
	out := generate(t, configFor(FormatCSV), createSampleResult(t))

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)

	assert.Equal(t, []string{"Statement", "Section", "Line Item", "Tag", "2024", "2023", "Review"}, records[0])
	assert.Equal(t, []string{"Balance Sheet", "Current assets", "Cash and cash equivalents", "us-gaap:Cash", "1234567.00", "1000.50", ""}, records[1])
	assert.Equal(t, []string{"Balance Sheet", "Current assets", "Allowance", "", "-15.00", "-", "similar to Allowances"}, records[2])
	assert.Equal(t, []string{"Income Statement", "Revenue", "Net sales", "", "", "500.00", ""}, records[4])
}

func TestCSVReportPrecisionAndDelimiter(t *testing.T) {
	cfg := configFor(FormatCSV)
	cfg.NumberPrecision = 0
	cfg.CSVDelimiter = ';'
	cfg.IncludeReviewFlags = false
	out := generate(t, cfg, createSampleResult(t))

	reader := csv.NewReader(bytes.NewReader(out))
	reader.Comma = ';'
	records, err := reader.ReadAll()
	require.NoError(t, err)

	assert.Len(t, records[0], 6)
	assert.Equal(t, "1234567", records[1][4])
	assert.Equal(t, "1001", records[1][5])
}

func TestXLSXReport(t *testing.T) {
	out := generate(t, configFor(FormatXLSX), createSampleResult(t))

	file, err := xlsx.OpenBinary(out)
	require.NoError(t, err)
	require.Len(t, file.Sheets, 3)

	sheet, ok := file.Sheet["Balance Sheet"]
	require.True(t, ok)
	require.GreaterOrEqual(t, len(sheet.Rows), 6)

	header := sheet.Rows[0].Cells
	assert.Equal(t, "Line Item", header[0].String())
	assert.Equal(t, "2024", header[1].String())
	assert.Equal(t, "2023", header[2].String())

	assert.Equal(t, "Current assets", sheet.Rows[1].Cells[0].String())
	assert.True(t, sheet.Rows[1].Cells[0].GetStyle().Font.Bold)

	cash := sheet.Rows[2].Cells
	assert.Equal(t, "Cash and cash equivalents", cash[0].String())
	value, err := cash[1].Float()
	require.NoError(t, err)
	assert.Equal(t, 1234567.0, value)
	assert.Equal(t, xlsxNumberFormat, cash[1].GetNumberFormat())

	allowance := sheet.Rows[3].Cells
	assert.Equal(t, "Allowance *", allowance[0].String())
	assert.Equal(t, "-", allowance[2].String())

	assert.Equal(t, "Equity", sheet.Rows[4].Cells[0].String())

	cashFlow, ok := file.Sheet["Cash Flow Statement"]
	require.True(t, ok)
	assert.Equal(t, "No data", cashFlow.Rows[1].Cells[0].String())
}

type failOnceWriter struct {
	buf    bytes.Buffer
	failed bool
}

func (w *failOnceWriter) Write(p []byte) (int, error) {
	if !w.failed {
		w.failed = true
		return 0, fmt.Errorf("broken pipe")
	}
	return w.buf.Write(p)
}

func newSafeGenerator(t *testing.T, format OutputFormat) *SafeReportGenerator {
	t.Helper()
	log, err := logger.NewLoggerWithWriter(logger.QuietConfig(), io.Discard)
	require.NoError(t, err)
	generator, err := NewSafeReportGenerator(configFor(format), log)
	require.NoError(t, err)
	return generator
}

func TestSafeReportGeneratorValidation(t *testing.T) {
	log, err := logger.NewLoggerWithWriter(logger.QuietConfig(), io.Discard)
	require.NoError(t, err)

	_, err = NewSafeReportGenerator(&ReportConfig{Format: "pdf"}, log)
	rerr, ok := errors.AsReconcilerError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeUnsupportedFormat, rerr.Code)

	generator := newSafeGenerator(t, FormatJSON)
	err = generator.GenerateReportSafely(nil, io.Discard)
	rerr, ok = errors.AsReconcilerError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeMissingField, rerr.Code)

	err = generator.GenerateReportSafely(createSampleResult(t), nil)
	assert.Error(t, err)
}

func TestSafeReportGeneratorFormatFallback(t *testing.T) {
	generator := newSafeGenerator(t, FormatJSON)
	writer := &failOnceWriter{}

	require.NoError(t, generator.GenerateReportSafely(createSampleResult(t), writer))
	out := writer.buf.String()
	assert.Contains(t, out, "fallback format")
	assert.Contains(t, out, "=== BALANCE SHEET ===")
}

func TestWriteToFile(t *testing.T) {
	generator := newSafeGenerator(t, FormatXLSX)
	path := filepath.Join(t.TempDir(), "reports", "acme.xlsx")

	written, err := generator.WriteToFile(createSampleResult(t), path)
	require.NoError(t, err)
	assert.Equal(t, path, written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	_, err = xlsx.OpenBinary(data)
	assert.NoError(t, err)
}

func TestGenerateBackupPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "report_backup.csv"), generateBackupPath(filepath.Join("out", "report.csv")))
	assert.Equal(t, filepath.Join("out", "report_backup"), generateBackupPath(filepath.Join("out", "report")))
}
