package reporter

import (
	"encoding/csv"
	"fmt"
	"io"

	"golang-statement-reconciler/internal/reconciler"
)

// generateCSVReport writes one row per line item across every statement.
// Period columns are the union of all statements' periods, newest first.
func (rg *ReportGenerator) generateCSVReport(result *reconciler.AggregateResult, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	results := result.Results()
	periods := unionPeriods(results)

	header := []string{"Statement", "Section", "Line Item", "Tag"}
	header = append(header, periods...)
	if rg.config.IncludeReviewFlags {
		header = append(header, "Review")
	}
	if err := csvWriter.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, st := range results {
		for _, e := range st.Catalog.Entries() {
			record := []string{st.StatementType.Title(), e.SectionLabel, e.ItemLabel, e.ItemGaap}
			for _, p := range periods {
				cell, ok := e.Values[p]
				if !ok {
					record = append(record, "")
					continue
				}
				record = append(record, rg.formatNumber(cell))
			}
			if rg.config.IncludeReviewFlags {
				record = append(record, e.ReviewReason)
			}
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write CSV row: %w", err)
			}
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}
