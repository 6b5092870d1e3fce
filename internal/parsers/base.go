// Package parsers loads per-period financial statement documents from disk.
//
// Filing periods arrive in a few shapes, all produced by an upstream scraper:
//   - per-period bundles: {"period": "2024", "source_url": ..., "balance_sheet": {...}, ...}
//   - aggregate bundles: {"ticker": ..., "years": {"2024": {"balance_sheet": {...}}}}
//   - flat extracts inside either bundle: {"statement_type", "years", "rows": [{line_item, values}]}
//   - inline XBRL table fragments named <period>.<statement_type>.html
//
// Each statement is decoded into a models.Document. Flat extracts are
// restructured into sections, inline XBRL tables are read with goquery, and
// malformed JSON is retried through a repairer before it is reported.
//
// Example usage:
//
//	loader, err := parsers.NewLoader(parsers.DefaultLoaderConfig())
//	filings, err := loader.Load(ctx, "filings/ACME")
//	result := engine.BuildAll(filings.Documents())
package parsers

import (
	"bytes"
	"encoding/json"
	"os"

	"golang-statement-reconciler/internal/models"
	"golang-statement-reconciler/pkg/errors"
	"golang-statement-reconciler/pkg/logger"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
)

// FlatRow is one scraped table row before section restructuring
type FlatRow struct {
	LineItem string                      `json:"line_item"`
	Values   map[string]models.ValueCell `json:"values"`
}

// FlatExtract is a statement as a flat list of rows, where rows without
// values are section headers
type FlatExtract struct {
	StatementType string     `json:"statement_type"`
	Years         []string   `json:"years"`
	Rows          []*FlatRow `json:"rows"`
}

// rawStatement accepts every statement shape the scraper emits
type rawStatement struct {
	StatementType string            `json:"statement_type"`
	Periods       []string          `json:"periods"`
	Years         []string          `json:"years"`
	Sections      []*models.Section `json:"sections"`
	Rows          []*FlatRow        `json:"rows"`
	SourceURL     string            `json:"source_url"`
	FilingURL     string            `json:"filing_url"`
	Status        string            `json:"status"`
	Error         string            `json:"error"`
	JSON          json.RawMessage   `json:"json"`
}

// Decoder turns raw file contents into statement documents
type Decoder struct {
	config *LoaderConfig
	logger logger.Logger
}

// NewDecoder creates a decoder. A nil config uses DefaultLoaderConfig.
func NewDecoder(config *LoaderConfig) *Decoder {
	if config == nil {
		config = DefaultLoaderConfig()
	}
	return &Decoder{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("document_decoder"),
	}
}

// ReadFile reads a filing file, classifying failures as file errors
func (d *Decoder) ReadFile(path string) ([]byte, error) {
	d.logger.WithField("file_path", path).Debug("Reading filing file")

	data, err := os.ReadFile(path)
	if err != nil {
		d.logger.WithError(err).WithField("file_path", path).Error("Failed to read filing file")
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, errors.FileError(errors.CodeFilePermission, path, err)
		}
		return nil, errors.FileError(errors.CodeDirectoryError, path, err)
	}
	return data, nil
}

// unmarshal decodes JSON, retrying once on repaired input when enabled
func (d *Decoder) unmarshal(file string, data []byte, v interface{}) *errors.DocumentError {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}

	if d.config.RepairMalformedJSON {
		repaired, rerr := jsonrepair.RepairJSON(string(data))
		if rerr == nil {
			if uerr := json.Unmarshal([]byte(repaired), v); uerr == nil {
				d.logger.WithError(err).WithField("file", file).Warn("Decoded filing after repairing malformed JSON")
				return nil
			}
		}
	}

	return errors.JSONSyntaxError(file, data, err)
}

// DecodeDocument decodes one statement in any supported shape. A statement
// that failed upstream yields a document carrying that error.
func (d *Decoder) DecodeDocument(file, period string, st models.StatementType, raw json.RawMessage) (*models.Document, *errors.DocumentError) {
	location := &errors.DocumentContext{File: file, Period: period, Statement: st.String()}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return &models.Document{StatementType: st, Error: "statement missing from filing"}, nil
	}

	var rs rawStatement
	if err := json.Unmarshal(trimmed, &rs); err != nil {
		return nil, errors.NewDocumentError(errors.CodeInvalidDocument, location, err)
	}

	if len(rs.JSON) > 0 {
		doc, derr := d.DecodeDocument(file, period, st, rs.JSON)
		if derr == nil && doc.SourceURL == "" {
			doc.SourceURL = rs.SourceURL
		}
		return doc, derr
	}

	if rs.Error != "" {
		return &models.Document{StatementType: st, Error: rs.Error}, nil
	}

	var doc *models.Document
	switch {
	case rs.Sections != nil:
		periods := rs.Periods
		if len(periods) == 0 {
			periods = rs.Years
		}
		doc = &models.Document{
			StatementType: st,
			Periods:       periods,
			Sections:      rs.Sections,
		}
	case rs.Rows != nil:
		doc = Restructure(&FlatExtract{StatementType: rs.StatementType, Years: rs.Years, Rows: rs.Rows})
		doc.StatementType = st
	default:
		doc = &models.Document{StatementType: st}
	}
	doc.SourceURL = rs.SourceURL
	doc.FilingURL = rs.FilingURL

	if err := doc.Validate(); err != nil {
		return nil, errors.NewDocumentError(errors.CodeInvalidDocument, location, err)
	}

	d.logger.WithFields(logger.Fields{
		"file":      file,
		"period":    period,
		"statement": st.String(),
		"sections":  len(doc.Sections),
		"items":     doc.ItemCount(),
	}).Debug("Decoded statement document")

	return doc, nil
}
