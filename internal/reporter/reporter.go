// Package reporter renders reconciled statement catalogs for people and tools.
//
// Supported output formats:
//   - Console: aligned tables with thousands separators for terminal display
//   - JSON: ordered entries with provenance, corrections and statistics
//   - YAML: the same document as JSON, for config-style consumers
//   - CSV: one row per line item, one column per period
//   - XLSX: one sheet per statement type, numeric cells formatted #,##0.00
//
// Every format walks the catalog in its final order, so a section header is
// emitted whenever the section changes between consecutive entries.
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatXLSX})
//	err = generator.GenerateReport(result, file)
package reporter

import (
	"fmt"
	"io"

	"golang-statement-reconciler/internal/models"
	"golang-statement-reconciler/internal/normalize"
	"golang-statement-reconciler/internal/reconciler"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatYAML    OutputFormat = "yaml"
	FormatCSV     OutputFormat = "csv"
	FormatXLSX    OutputFormat = "xlsx"
)

// SupportedFormats lists every output format
func SupportedFormats() []OutputFormat {
	return []OutputFormat{FormatConsole, FormatJSON, FormatYAML, FormatCSV, FormatXLSX}
}

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatYAML, FormatCSV, FormatXLSX:
		return true
	default:
		return false
	}
}

// IsBinary reports whether the format should not be written to a terminal
func (f OutputFormat) IsBinary() bool {
	return f == FormatXLSX
}

// Extension returns the conventional file extension for the format
func (f OutputFormat) Extension() string {
	if f == FormatConsole {
		return ".txt"
	}
	return "." + string(f)
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format" yaml:"format"`

	// Detail level options
	IncludeCorrections bool `json:"include_corrections" yaml:"include_corrections"`
	IncludeSourceURLs  bool `json:"include_source_urls" yaml:"include_source_urls"`
	IncludeReviewFlags bool `json:"include_review_flags" yaml:"include_review_flags"`
	IncludeStats       bool `json:"include_stats" yaml:"include_stats"`

	// Digits after the decimal point for numeric cells in console and CSV output
	NumberPrecision int `json:"number_precision" yaml:"number_precision"`

	CSVDelimiter rune `json:"csv_delimiter" yaml:"csv_delimiter"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:             FormatConsole,
		IncludeCorrections: true,
		IncludeSourceURLs:  true,
		IncludeReviewFlags: true,
		IncludeStats:       false,
		NumberPrecision:    2,
		CSVDelimiter:       ',',
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}

	if c.NumberPrecision < 0 || c.NumberPrecision > 6 {
		return fmt.Errorf("number precision must be between 0 and 6, got %d", c.NumberPrecision)
	}

	if c.CSVDelimiter == 0 || c.CSVDelimiter == '"' || c.CSVDelimiter == '\n' || c.CSVDelimiter == '\r' {
		return fmt.Errorf("invalid CSV delimiter: %q", c.CSVDelimiter)
	}

	return nil
}

// Clone creates a copy of the report configuration
func (c *ReportConfig) Clone() *ReportConfig {
	clone := *c
	return &clone
}

// ReportGenerator generates reconciliation reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{
		config: config,
	}, nil
}

// GenerateReport renders result in the configured format and writes it to writer
func (rg *ReportGenerator) GenerateReport(result *reconciler.AggregateResult, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("reconciliation result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatYAML:
		return rg.generateYAMLReport(result, writer)
	case FormatCSV:
		return rg.generateCSVReport(result, writer)
	case FormatXLSX:
		return rg.generateXLSXReport(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// UpdateConfiguration updates the report generator configuration
func (rg *ReportGenerator) UpdateConfiguration(config *ReportConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid report configuration: %w", err)
	}

	rg.config = config
	return nil
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}

type rowKind int

const (
	sectionRow rowKind = iota
	itemRow
)

// tableRow is one display row: a section header or a line item
type tableRow struct {
	kind    rowKind
	section string
	entry   *models.CatalogEntry
}

// statementTable is a statement catalog laid out for tabular formats
type statementTable struct {
	result  *reconciler.StatementResult
	periods []string
	rows    []tableRow
}

func buildTable(result *reconciler.StatementResult) *statementTable {
	t := &statementTable{
		result:  result,
		periods: normalize.SortPeriodsNewestFirst(result.Periods),
	}
	if len(t.periods) == 0 && result.Catalog != nil {
		t.periods = result.Catalog.PeriodKeys()
	}
	if result.Catalog == nil {
		return t
	}

	current := ""
	first := true
	for _, e := range result.Catalog.Entries() {
		key := e.SectionKey()
		if first || key != current {
			t.rows = append(t.rows, tableRow{kind: sectionRow, section: e.SectionLabel})
			current = key
			first = false
		}
		t.rows = append(t.rows, tableRow{kind: itemRow, section: e.SectionLabel, entry: e})
	}
	return t
}

// formatNumber renders a cell as a fixed-precision number, or its raw text
// when it is not numeric
func (rg *ReportGenerator) formatNumber(cell models.ValueCell) string {
	if d, ok := cell.Decimal(); ok {
		return d.StringFixed(int32(rg.config.NumberPrecision))
	}
	return cell.Text()
}

// unionPeriods returns the period keys of every statement, newest first
func unionPeriods(results []*reconciler.StatementResult) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, r := range results {
		for _, p := range r.Periods {
			if !seen[p] {
				seen[p] = true
				keys = append(keys, p)
			}
		}
	}
	return normalize.SortPeriodsNewestFirst(keys)
}
