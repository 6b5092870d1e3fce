package parsers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"golang-statement-reconciler/internal/models"
	"golang-statement-reconciler/internal/normalize"
	"golang-statement-reconciler/pkg/errors"
	"golang-statement-reconciler/pkg/logger"
)

// FilingSet is every statement document loaded for one company, keyed by the
// period key of the filing it came from
type FilingSet struct {
	Ticker  string
	Periods map[string]map[models.StatementType]*models.Document
	Files   []string
	Errors  []*errors.DocumentError
}

// NewFilingSet creates an empty filing set
func NewFilingSet() *FilingSet {
	return &FilingSet{Periods: make(map[string]map[models.StatementType]*models.Document)}
}

// Add stores a document. When the period already holds the statement type,
// the document with more items is kept and the incumbent wins ties.
func (fs *FilingSet) Add(period string, st models.StatementType, doc *models.Document) bool {
	byType, ok := fs.Periods[period]
	if !ok {
		byType = make(map[models.StatementType]*models.Document)
		fs.Periods[period] = byType
	}
	if existing, ok := byType[st]; ok && existing != nil {
		if !doc.HasData() || doc.ItemCount() <= existing.ItemCount() {
			return false
		}
	}
	byType[st] = doc
	return true
}

// Merge folds other into fs
func (fs *FilingSet) Merge(other *FilingSet) {
	if other == nil {
		return
	}
	if fs.Ticker == "" {
		fs.Ticker = other.Ticker
	}
	for _, period := range other.PeriodKeys() {
		byType := other.Periods[period]
		for _, st := range models.AllStatementTypes() {
			if doc, ok := byType[st]; ok {
				fs.Add(period, st, doc)
			}
		}
	}
	fs.Files = append(fs.Files, other.Files...)
	fs.Errors = append(fs.Errors, other.Errors...)
}

// PeriodKeys returns the loaded period keys, newest first
func (fs *FilingSet) PeriodKeys() []string {
	keys := make([]string, 0, len(fs.Periods))
	for k := range fs.Periods {
		keys = append(keys, k)
	}
	return normalize.SortPeriodsNewestFirst(keys)
}

// Len returns the number of statement documents with usable data
func (fs *FilingSet) Len() int {
	n := 0
	for _, byType := range fs.Periods {
		for _, doc := range byType {
			if doc.HasData() {
				n++
			}
		}
	}
	return n
}

// Documents returns the period to statement mapping consumed by the engine
func (fs *FilingSet) Documents() map[string]map[models.StatementType]*models.Document {
	return fs.Periods
}

// DecodeFile decodes a JSON bundle. Aggregate bundles carry a "years" object;
// per-period bundles carry statements as top-level keys, with the period taken
// from "period" or "year" and otherwise from the file name. A file that is a
// single statement document is accepted as a one-statement bundle.
//
// Statements that fail to decode are recorded in the returned set's Errors
// and do not prevent the rest of the file from loading.
func (d *Decoder) DecodeFile(file string, data []byte) (*FilingSet, *errors.DocumentError) {
	var top map[string]json.RawMessage
	if derr := d.unmarshal(file, data, &top); derr != nil {
		return nil, derr
	}

	set := NewFilingSet()
	set.Files = []string{file}
	set.Ticker = rawString(top["ticker"])

	if years, ok := top["years"]; ok && isObject(years) {
		var byPeriod map[string]map[string]json.RawMessage
		if err := json.Unmarshal(years, &byPeriod); err != nil {
			return nil, errors.NewDocumentError(errors.CodeInvalidDocument, &errors.DocumentContext{File: file}, err)
		}
		for period, statements := range byPeriod {
			d.decodeStatements(set, file, period, "", statements)
		}
		return set, nil
	}

	period := rawString(top["period"])
	if period == "" {
		period = rawString(top["year"])
	}
	if period == "" {
		period = fileStem(file)
	}

	_, sectioned := top["sections"]
	_, flat := top["rows"]
	if sectioned || flat {
		d.decodeSingle(set, file, period, top)
		return set, nil
	}

	d.decodeStatements(set, file, period, rawString(top["source_url"]), top)
	return set, nil
}

func (d *Decoder) decodeSingle(set *FilingSet, file, period string, top map[string]json.RawMessage) {
	name := rawString(top["statement_type"])
	st, ok := statementKey(name)
	if !ok {
		set.Errors = append(set.Errors, errors.NewDocumentError(errors.CodeUnknownStatement,
			&errors.DocumentContext{File: file, Period: period, Statement: name}, nil))
		return
	}
	if !d.config.Wants(st) {
		return
	}
	// re-encode so a repaired file decodes from its repaired form
	raw, err := json.Marshal(top)
	if err != nil {
		set.Errors = append(set.Errors, errors.NewDocumentError(errors.CodeInvalidDocument,
			&errors.DocumentContext{File: file, Period: period, Statement: name}, err))
		return
	}
	d.addStatement(set, file, period, "", st, raw)
}

func (d *Decoder) decodeStatements(set *FilingSet, file, period, sourceURL string, statements map[string]json.RawMessage) {
	keys := make([]string, 0, len(statements))
	for k := range statements {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if bundleMetaKeys[key] {
			continue
		}
		st, ok := statementKey(key)
		if !ok {
			d.logger.WithFields(logger.Fields{"file": file, "key": key}).Debug("Ignoring unknown bundle key")
			continue
		}
		if !d.config.Wants(st) {
			continue
		}
		d.addStatement(set, file, period, sourceURL, st, statements[key])
	}
}

func (d *Decoder) addStatement(set *FilingSet, file, period, sourceURL string, st models.StatementType, raw json.RawMessage) {
	doc, derr := d.DecodeDocument(file, period, st, raw)
	if derr != nil {
		set.Errors = append(set.Errors, derr)
		doc = &models.Document{StatementType: st, Error: derr.Message}
	}
	if doc.SourceURL == "" && doc.FilingURL == "" {
		doc.SourceURL = sourceURL
	}
	set.Add(period, st, doc)
}

// DecodeHTML decodes an inline XBRL fragment named <period>.<statement_type>.html
func (d *Decoder) DecodeHTML(file string, data []byte) (*FilingSet, *errors.DocumentError) {
	period, name, ok := splitFragmentName(file)
	if !ok {
		return nil, &errors.DocumentError{
			ReconcilerError: errors.FileError(errors.CodeUnsupportedFile, file, fmt.Errorf("expected <period>.<statement_type>.html")),
			Location:        &errors.DocumentContext{File: file},
			Recoverable:     true,
		}
	}
	location := &errors.DocumentContext{File: file, Period: period, Statement: name}

	st, ok := statementKey(name)
	if !ok {
		return nil, errors.NewDocumentError(errors.CodeUnknownStatement, location, nil)
	}

	set := NewFilingSet()
	set.Files = []string{file}
	if !d.config.Wants(st) {
		return set, nil
	}

	flat, err := ExtractTable(bytes.NewReader(data), st)
	if err != nil {
		return nil, errors.NewDocumentError(errors.CodeInvalidHTML, location, err)
	}

	doc := Restructure(flat)
	doc.StatementType = st
	set.Add(period, st, doc)

	d.logger.WithFields(logger.Fields{
		"file":     file,
		"period":   period,
		"sections": len(doc.Sections),
		"items":    doc.ItemCount(),
	}).Debug("Extracted inline XBRL statement")

	return set, nil
}

func splitFragmentName(file string) (period, statement string, ok bool) {
	stem := fileStem(file)
	i := strings.LastIndex(stem, ".")
	if i <= 0 || i == len(stem)-1 {
		return "", "", false
	}
	return stem[:i], stem[i+1:], true
}

func fileStem(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// rawString reads a JSON string or number as text
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
