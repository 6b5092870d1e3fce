package reporter

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"golang-statement-reconciler/internal/models"
	"golang-statement-reconciler/internal/reconciler"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// generateConsoleReport generates a human-readable console report
func (rg *ReportGenerator) generateConsoleReport(result *reconciler.AggregateResult, writer io.Writer) error {
	printer := message.NewPrinter(language.English)

	fmt.Fprintf(writer, "FINANCIAL STATEMENT RECONCILIATION\n")
	if result.Ticker != "" {
		fmt.Fprintf(writer, "Ticker: %s\n", result.Ticker)
	}
	if result.RunID != "" {
		fmt.Fprintf(writer, "Run: %s\n", result.RunID)
	}
	fmt.Fprintf(writer, "Generated: %s\n", result.CreatedAt.Format(time.RFC3339))
	if result.Error != "" {
		fmt.Fprintf(writer, "Error: %s\n", result.Error)
	}
	fmt.Fprintf(writer, "\n")

	for _, st := range result.Results() {
		fmt.Fprintf(writer, "=== %s ===\n", strings.ToUpper(st.StatementType.Title()))
		if err := rg.printStatement(st, writer, printer); err != nil {
			return err
		}
		fmt.Fprintf(writer, "\n")
	}

	if len(result.LoadErrors) > 0 {
		fmt.Fprintf(writer, "=== LOAD ERRORS ===\n")
		for _, e := range result.LoadErrors {
			fmt.Fprintf(writer, "  - %s\n", e)
		}
	}

	return nil
}

func (rg *ReportGenerator) printStatement(st *reconciler.StatementResult, writer io.Writer, printer *message.Printer) error {
	if st.IsEmpty() {
		fmt.Fprintf(writer, "No data")
		if st.Error != "" {
			fmt.Fprintf(writer, " (%s)", st.Error)
		}
		fmt.Fprintf(writer, "\n")
		return nil
	}

	table := buildTable(st)
	tw := tabwriter.NewWriter(writer, 0, 0, 2, ' ', tabwriter.AlignRight)

	header := append([]string{"Line Item"}, table.periods...)
	fmt.Fprintf(tw, "%s\t\n", strings.Join(header, "\t"))

	flagged := 0
	for _, row := range table.rows {
		if row.kind == sectionRow {
			fmt.Fprintf(tw, "%s%s\t\n", row.section, strings.Repeat("\t", len(table.periods)))
			continue
		}

		label := "  " + row.entry.ItemLabel
		if rg.config.IncludeReviewFlags && row.entry.NeedsReview {
			label += " *"
			flagged++
		}
		cells := []string{label}
		for _, p := range table.periods {
			cells = append(cells, rg.consoleNumber(row.entry.Values[p], printer))
		}
		fmt.Fprintf(tw, "%s\t\n", strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if flagged > 0 {
		fmt.Fprintf(writer, "* %d item(s) flagged for review\n", flagged)
	}

	if rg.config.IncludeCorrections && len(st.Corrections) > 0 {
		fmt.Fprintf(writer, "\nPresence corrections (%d):\n", len(st.Corrections))
		for _, c := range st.Corrections {
			fmt.Fprintf(writer, "  - %s / %s [%s]: %s -> 0 (%s)\n",
				c.SectionLabel, c.ItemLabel, c.Period, c.Previous.Text(), c.Reason)
		}
	}

	if rg.config.IncludeSourceURLs && len(st.SourceURLs) > 0 {
		fmt.Fprintf(writer, "\nSources:\n")
		for _, u := range st.SourceURLs {
			fmt.Fprintf(writer, "  %s\n", u)
		}
	}

	if rg.config.IncludeStats && st.Stats != nil {
		s := st.Stats
		fmt.Fprintf(writer, "\nFilings: %d (skipped %d)  Entries: %d  Sections: %d  Flagged: %d  Corrections: %d  Time: %v\n",
			s.Filings, s.SkippedFilings, s.Entries, s.Sections, s.Flagged, s.Corrections, s.ProcessingTime)
	}

	return nil
}

// consoleNumber groups thousands for numeric cells
func (rg *ReportGenerator) consoleNumber(cell models.ValueCell, printer *message.Printer) string {
	f, ok := cell.Float()
	if !ok {
		if text := cell.Text(); text != "" {
			return text
		}
		return "-"
	}
	return printer.Sprintf(fmt.Sprintf("%%.%df", rg.config.NumberPrecision), f)
}
