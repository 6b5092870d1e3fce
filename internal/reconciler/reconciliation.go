package reconciler

import (
	"fmt"
	"time"

	"golang-statement-reconciler/internal/matcher"
	"golang-statement-reconciler/internal/models"
)

// AuthorityMode selects which filing confirms an item's presence for a period key
type AuthorityMode string

const (
	// AuthorityOwnPeriod trusts the filing whose own period is the key, falling
	// back to the newest filing that reports the key when that filing is absent
	AuthorityOwnPeriod AuthorityMode = "own-period"

	// AuthorityNewestCovering trusts the newest filing that reports the key at all
	AuthorityNewestCovering AuthorityMode = "newest-covering"
)

// IsValid checks if the authority mode is supported
func (m AuthorityMode) IsValid() bool {
	return m == AuthorityOwnPeriod || m == AuthorityNewestCovering
}

// Config holds configuration options for the reconciliation engine
type Config struct {
	// Item and section matching behaviour
	Matching *matcher.MatchingConfig `json:"matching" yaml:"matching"`

	// Zero values whose item cannot be found in the authoritative filing
	EnablePresenceCheck bool          `json:"enable_presence_check" yaml:"enable_presence_check"`
	Authority           AuthorityMode `json:"authority" yaml:"authority"`

	// Statement types produced by the aggregate entry point
	StatementTypes []models.StatementType `json:"statement_types" yaml:"statement_types"`
}

// DefaultConfig returns a default configuration for the reconciliation engine
func DefaultConfig() *Config {
	return &Config{
		Matching:            matcher.DefaultMatchingConfig(),
		EnablePresenceCheck: true,
		Authority:           AuthorityOwnPeriod,
		StatementTypes:      models.AllStatementTypes(),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Matching == nil {
		return fmt.Errorf("matching configuration is required")
	}
	if err := c.Matching.Validate(); err != nil {
		return fmt.Errorf("invalid matching configuration: %w", err)
	}

	if c.EnablePresenceCheck && !c.Authority.IsValid() {
		return fmt.Errorf("invalid authority mode: %s", c.Authority)
	}

	if len(c.StatementTypes) == 0 {
		return fmt.Errorf("at least one statement type is required")
	}
	for _, st := range c.StatementTypes {
		if !st.IsValid() {
			return fmt.Errorf("invalid statement type: %s", st)
		}
	}

	return nil
}

// MergeStats summarises the merge of one filing period into the catalog
type MergeStats struct {
	Period               string `json:"period"`
	Rows                 int    `json:"rows"`
	Created              int    `json:"created"`
	Merged               int    `json:"merged"`
	ValuesAdded          int    `json:"values_added"`
	ValuesOverwritten    int    `json:"values_overwritten"`
	SectionsByIdentity   int    `json:"sections_by_identity"`
	SectionsBySimilarity int    `json:"sections_by_similarity"`
	SectionsCreated      int    `json:"sections_created"`
	Flagged              int    `json:"flagged"`
}

// Correction records a value the presence check forced to zero
type Correction struct {
	Key          string           `json:"key" yaml:"key"`
	SectionLabel string           `json:"section_label" yaml:"section_label"`
	ItemLabel    string           `json:"item_label" yaml:"item_label"`
	Period       string           `json:"period" yaml:"period"`
	Authority    string           `json:"authoritative_period" yaml:"authoritative_period"`
	Previous     models.ValueCell `json:"previous" yaml:"previous"`
	Reason       string           `json:"reason" yaml:"reason"`
}

// StatementStats provides aggregate statistics about one statement's merge
type StatementStats struct {
	Filings        int           `json:"filings"`
	SkippedFilings int           `json:"skipped_filings"`
	Rows           int           `json:"rows"`
	Entries        int           `json:"entries"`
	Sections       int           `json:"sections"`
	Flagged        int           `json:"flagged"`
	Corrections    int           `json:"corrections"`
	PeriodMerges   []*MergeStats `json:"period_merges,omitempty"`
	ProcessingTime time.Duration `json:"processing_time"`
}

// StatementResult is the reconciled catalog of one statement type plus the
// provenance and diagnostics collected while building it
type StatementResult struct {
	StatementType models.StatementType `json:"statement_type"`
	Catalog       *models.Catalog      `json:"catalog"`
	Periods       []string             `json:"periods"`
	SourceURLs    []string             `json:"source_urls"`
	Corrections   []*Correction        `json:"corrections,omitempty"`
	Stats         *StatementStats      `json:"stats"`
	Error         string               `json:"error,omitempty"`
}

// EmptyStatementResult is the result for a statement type without usable data
func EmptyStatementResult(statement models.StatementType) *StatementResult {
	return &StatementResult{
		StatementType: statement,
		Catalog:       models.NewCatalog(),
		Periods:       []string{},
		SourceURLs:    []string{},
		Stats:         &StatementStats{},
	}
}

// IsEmpty reports whether the statement produced no entries
func (r *StatementResult) IsEmpty() bool {
	return r == nil || r.Catalog.Len() == 0
}

// AggregateResult holds one result per requested statement type
type AggregateResult struct {
	RunID      string                                    `json:"run_id,omitempty"`
	Ticker     string                                    `json:"ticker,omitempty"`
	Statements map[models.StatementType]*StatementResult `json:"statements"`
	Order      []models.StatementType                    `json:"order"`
	Error      string                                    `json:"error,omitempty"`
	LoadErrors []string                                  `json:"load_errors,omitempty"`
	CreatedAt  time.Time                                 `json:"created_at"`
}

// NewAggregateResult creates a result with an empty catalog for every type
func NewAggregateResult(types []models.StatementType) *AggregateResult {
	ar := &AggregateResult{
		Statements: make(map[models.StatementType]*StatementResult, len(types)),
		Order:      append([]models.StatementType(nil), types...),
		CreatedAt:  time.Now().UTC(),
	}
	for _, st := range types {
		ar.Statements[st] = EmptyStatementResult(st)
	}
	return ar
}

// Get returns the result for a statement type, or an empty result if absent
func (ar *AggregateResult) Get(statement models.StatementType) *StatementResult {
	if r, ok := ar.Statements[statement]; ok && r != nil {
		return r
	}
	return EmptyStatementResult(statement)
}

// Results returns the per-statement results in order
func (ar *AggregateResult) Results() []*StatementResult {
	out := make([]*StatementResult, 0, len(ar.Order))
	for _, st := range ar.Order {
		out = append(out, ar.Get(st))
	}
	return out
}

// TotalEntries returns the number of catalog entries across all statements
func (ar *AggregateResult) TotalEntries() int {
	total := 0
	for _, r := range ar.Results() {
		total += r.Catalog.Len()
	}
	return total
}
