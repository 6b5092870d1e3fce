package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang-statement-reconciler/internal/normalize"

	"github.com/shopspring/decimal"
)

// StatementType identifies one of the financial statements reconciled per filing
type StatementType string

const (
	// IncomeStatement is the statement of operations
	IncomeStatement StatementType = "income_statement"
	// BalanceSheet is the statement of financial position
	BalanceSheet StatementType = "balance_sheet"
	// CashFlowStatement is the statement of cash flows
	CashFlowStatement StatementType = "cash_flow_statement"
)

var statementAliases = map[string]StatementType{
	"income_statement":    IncomeStatement,
	"income":              IncomeStatement,
	"balance_sheet":       BalanceSheet,
	"balance":             BalanceSheet,
	"cash_flow_statement": CashFlowStatement,
	"cash_flow":           CashFlowStatement,
	"cashflow":            CashFlowStatement,
}

// AllStatementTypes returns the statement types in reporting order
func AllStatementTypes() []StatementType {
	return []StatementType{IncomeStatement, BalanceSheet, CashFlowStatement}
}

// ParseStatementType resolves a statement type name, accepting the short
// aliases scrapers emit (e.g. "cash_flow")
func ParseStatementType(name string) (StatementType, bool) {
	st, ok := statementAliases[strings.ToLower(strings.TrimSpace(name))]
	return st, ok
}

// String returns the string representation of StatementType
func (s StatementType) String() string {
	return string(s)
}

// IsValid checks if the statement type is one of the known types
func (s StatementType) IsValid() bool {
	return s == IncomeStatement || s == BalanceSheet || s == CashFlowStatement
}

// Title returns a human-readable name, used for report headings and sheet names
func (s StatementType) Title() string {
	switch s {
	case IncomeStatement:
		return "Income Statement"
	case BalanceSheet:
		return "Balance Sheet"
	case CashFlowStatement:
		return "Cash Flow Statement"
	default:
		return string(s)
	}
}

// ValueMeta is the inline XBRL metadata attached to a scraped value
type ValueMeta struct {
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	ID       string `json:"id,omitempty" yaml:"id,omitempty"`
	UnitRef  string `json:"unitref,omitempty" yaml:"unitref,omitempty"`
	Decimals string `json:"decimals,omitempty" yaml:"decimals,omitempty"`
	Format   string `json:"format,omitempty" yaml:"format,omitempty"`
	Scale    string `json:"scale,omitempty" yaml:"scale,omitempty"`
}

// ValueCell is a single per-period value. It is either a raw scalar (string,
// number or null) or a {value, meta} object; both shapes round-trip through
// JSON unchanged.
type ValueCell struct {
	Value      interface{}
	Meta       *ValueMeta
	structured bool
}

// NewValueCell creates a scalar cell
func NewValueCell(value interface{}) ValueCell {
	return ValueCell{Value: value}
}

// NewValueCellWithMeta creates a {value, meta} cell
func NewValueCellWithMeta(value interface{}, meta *ValueMeta) ValueCell {
	return ValueCell{Value: value, Meta: meta, structured: true}
}

// ZeroCell is the explicit 0.0 written for missing or disproven values
func ZeroCell() ValueCell {
	return ValueCell{Value: float64(0)}
}

// IsNull reports whether the cell carries no value at all
func (c ValueCell) IsNull() bool {
	if c.Value == nil {
		return true
	}
	s, ok := c.Value.(string)
	return ok && strings.TrimSpace(s) == ""
}

// IsZero reports whether the cell is empty, zero or a placeholder
func (c ValueCell) IsZero() bool {
	_, ok := c.Comparable()
	return !ok
}

// Text returns the cell's value as display text
func (c ValueCell) Text() string {
	switch v := c.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case decimal.Decimal:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Comparable returns the normalized comparison form of the cell, or false when
// the cell must never take part in value identity
func (c ValueCell) Comparable() (string, bool) {
	return normalize.ValueForComparison(c.Text())
}

// Decimal parses the cell as a financial number
func (c ValueCell) Decimal() (decimal.Decimal, bool) {
	if d, ok := c.Value.(decimal.Decimal); ok {
		return d, true
	}
	return normalize.ParseFinancialValue(c.Text())
}

// Float parses the cell as a float64, for spreadsheet and console output
func (c ValueCell) Float() (float64, bool) {
	d, ok := c.Decimal()
	if !ok {
		return 0, false
	}
	return d.InexactFloat64(), true
}

// OrZero replaces a null cell with ZeroCell
func (c ValueCell) OrZero() ValueCell {
	if c.IsNull() && c.Meta == nil {
		return ZeroCell()
	}
	return c
}

// MarshalJSON writes the cell in the shape it was read in
func (c ValueCell) MarshalJSON() ([]byte, error) {
	if c.Meta == nil && !c.structured {
		return json.Marshal(c.Value)
	}
	return json.Marshal(&struct {
		Value interface{} `json:"value"`
		Meta  *ValueMeta  `json:"meta,omitempty"`
	}{
		Value: c.Value,
		Meta:  c.Meta,
	})
}

// UnmarshalJSON accepts either a scalar or a {value, meta} object. Numbers are
// kept as json.Number so that their textual form survives for comparison.
func (c *ValueCell) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		aux := &struct {
			Value json.RawMessage `json:"value"`
			Meta  *ValueMeta      `json:"meta"`
		}{}
		if err := json.Unmarshal(trimmed, aux); err != nil {
			return fmt.Errorf("invalid value cell: %w", err)
		}
		value, err := decodeScalar(aux.Value)
		if err != nil {
			return err
		}
		*c = ValueCell{Value: value, Meta: aux.Meta, structured: true}
		return nil
	}

	value, err := decodeScalar(trimmed)
	if err != nil {
		return err
	}
	*c = ValueCell{Value: value}
	return nil
}

// MarshalYAML writes the cell as a scalar, or as a mapping when it has metadata
func (c ValueCell) MarshalYAML() (interface{}, error) {
	value := c.Value
	if n, ok := value.(json.Number); ok {
		if f, err := n.Float64(); err == nil {
			value = f
		} else {
			value = n.String()
		}
	}
	if c.Meta == nil && !c.structured {
		return value, nil
	}
	return map[string]interface{}{"value": value, "meta": c.Meta}, nil
}

func decodeScalar(raw []byte) (interface{}, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("invalid value: %w", err)
	}
	switch value.(type) {
	case nil, string, json.Number, bool:
		return value, nil
	default:
		return nil, fmt.Errorf("value must be a scalar, got %T", value)
	}
}

// Item is one labeled line of a scraped statement
type Item struct {
	Label  string               `json:"label"`
	Gaap   string               `json:"gaap,omitempty"`
	Values map[string]ValueCell `json:"values"`
}

// Section is a named group of items within one statement
type Section struct {
	Label string  `json:"section"`
	Gaap  string  `json:"gaap,omitempty"`
	Items []*Item `json:"items"`
}

// Key returns the section identity: its tag, or its normalized label
func (s *Section) Key() string {
	return normalize.SectionKey(s.Gaap, s.Label)
}

// Document is one period's structured statement as produced by the scraper.
// A non-empty Error means extraction failed upstream for this statement.
type Document struct {
	StatementType StatementType `json:"statement_type,omitempty"`
	Periods       []string      `json:"periods,omitempty"`
	Sections      []*Section    `json:"sections"`
	SourceURL     string        `json:"source_url,omitempty"`
	FilingURL     string        `json:"filing_url,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// Provenance returns the URL the document was extracted from, if known
func (d *Document) Provenance() string {
	if d == nil {
		return ""
	}
	if d.SourceURL != "" {
		return d.SourceURL
	}
	return d.FilingURL
}

// HasData reports whether the document can contribute rows to a merge
func (d *Document) HasData() bool {
	if d == nil || d.Error != "" {
		return false
	}
	for _, sec := range d.Sections {
		if sec != nil && len(sec.Items) > 0 {
			return true
		}
	}
	return false
}

// ItemCount returns the number of items across all sections
func (d *Document) ItemCount() int {
	if d == nil {
		return 0
	}
	count := 0
	for _, sec := range d.Sections {
		if sec != nil {
			count += len(sec.Items)
		}
	}
	return count
}

// Validate performs basic structural validation on the Document
func (d *Document) Validate() error {
	if d.StatementType != "" && !d.StatementType.IsValid() {
		return fmt.Errorf("invalid statement type: %s", d.StatementType)
	}
	for i, sec := range d.Sections {
		if sec == nil {
			return fmt.Errorf("section %d is null", i)
		}
		if strings.TrimSpace(sec.Label) == "" && strings.TrimSpace(sec.Gaap) == "" {
			return fmt.Errorf("section %d has neither label nor tag", i)
		}
	}
	return nil
}
