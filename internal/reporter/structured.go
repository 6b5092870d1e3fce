package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"golang-statement-reconciler/internal/models"
	"golang-statement-reconciler/internal/reconciler"

	"gopkg.in/yaml.v3"
)

// StructuredReport is the document written by the JSON and YAML formats
type StructuredReport struct {
	RunID      string             `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Ticker     string             `json:"ticker,omitempty" yaml:"ticker,omitempty"`
	CreatedAt  time.Time          `json:"created_at" yaml:"created_at"`
	Error      string             `json:"error,omitempty" yaml:"error,omitempty"`
	LoadErrors []string           `json:"load_errors,omitempty" yaml:"load_errors,omitempty"`
	Statements []*StatementReport `json:"statements" yaml:"statements"`
}

// StatementReport is one statement's catalog as an ordered list of entries
type StatementReport struct {
	Type        models.StatementType       `json:"type" yaml:"type"`
	Title       string                     `json:"title" yaml:"title"`
	Periods     []string                   `json:"periods" yaml:"periods"`
	Entries     []*EntryReport             `json:"entries" yaml:"entries"`
	SourceURLs  []string                   `json:"source_urls,omitempty" yaml:"source_urls,omitempty"`
	Corrections []*reconciler.Correction   `json:"corrections,omitempty" yaml:"corrections,omitempty"`
	Stats       *reconciler.StatementStats `json:"stats,omitempty" yaml:"stats,omitempty"`
	Error       string                     `json:"error,omitempty" yaml:"error,omitempty"`
}

// EntryReport is one catalog entry in final order
type EntryReport struct {
	Key          string                      `json:"key" yaml:"key"`
	Section      string                      `json:"section" yaml:"section"`
	SectionGaap  string                      `json:"section_gaap,omitempty" yaml:"section_gaap,omitempty"`
	Label        string                      `json:"label" yaml:"label"`
	Gaap         string                      `json:"gaap,omitempty" yaml:"gaap,omitempty"`
	Values       map[string]models.ValueCell `json:"values" yaml:"values"`
	NeedsReview  bool                        `json:"needs_review,omitempty" yaml:"needs_review,omitempty"`
	ReviewReason string                      `json:"review_reason,omitempty" yaml:"review_reason,omitempty"`
}

// BuildStructuredReport converts a result into the JSON/YAML document
func (rg *ReportGenerator) BuildStructuredReport(result *reconciler.AggregateResult) *StructuredReport {
	report := &StructuredReport{
		RunID:      result.RunID,
		Ticker:     result.Ticker,
		CreatedAt:  result.CreatedAt,
		Error:      result.Error,
		LoadErrors: result.LoadErrors,
		Statements: make([]*StatementReport, 0, len(result.Order)),
	}

	for _, st := range result.Results() {
		sr := &StatementReport{
			Type:    st.StatementType,
			Title:   st.StatementType.Title(),
			Periods: st.Periods,
			Entries: make([]*EntryReport, 0, st.Catalog.Len()),
			Error:   st.Error,
		}
		for _, e := range st.Catalog.Entries() {
			er := &EntryReport{
				Key:         e.Key.String(),
				Section:     e.SectionLabel,
				SectionGaap: e.SectionGaap,
				Label:       e.ItemLabel,
				Gaap:        e.ItemGaap,
				Values:      e.Values,
			}
			if rg.config.IncludeReviewFlags {
				er.NeedsReview = e.NeedsReview
				er.ReviewReason = e.ReviewReason
			}
			sr.Entries = append(sr.Entries, er)
		}
		if rg.config.IncludeSourceURLs {
			sr.SourceURLs = st.SourceURLs
		}
		if rg.config.IncludeCorrections {
			sr.Corrections = st.Corrections
		}
		if rg.config.IncludeStats {
			sr.Stats = st.Stats
		}
		report.Statements = append(report.Statements, sr)
	}

	return report
}

// generateJSONReport generates a JSON format report
func (rg *ReportGenerator) generateJSONReport(result *reconciler.AggregateResult, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(rg.BuildStructuredReport(result)); err != nil {
		return fmt.Errorf("failed to encode JSON report: %w", err)
	}
	return nil
}

// generateYAMLReport generates a YAML format report
func (rg *ReportGenerator) generateYAMLReport(result *reconciler.AggregateResult, writer io.Writer) error {
	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(2)

	if err := encoder.Encode(rg.BuildStructuredReport(result)); err != nil {
		return fmt.Errorf("failed to encode YAML report: %w", err)
	}
	return encoder.Close()
}
