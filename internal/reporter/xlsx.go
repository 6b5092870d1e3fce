package reporter

import (
	"fmt"
	"io"

	"golang-statement-reconciler/internal/reconciler"

	"github.com/tealeg/xlsx/v2"
)

const xlsxNumberFormat = "#,##0.00"

// generateXLSXReport writes a workbook with one sheet per statement type.
// Section headers are bold rows; numeric cells keep their value so the
// spreadsheet can sum them.
func (rg *ReportGenerator) generateXLSXReport(result *reconciler.AggregateResult, writer io.Writer) error {
	file := xlsx.NewFile()

	bold := xlsx.NewStyle()
	bold.Font.Bold = true
	bold.ApplyFont = true

	for _, st := range result.Results() {
		sheet, err := file.AddSheet(st.StatementType.Title())
		if err != nil {
			return fmt.Errorf("failed to add sheet for %s: %w", st.StatementType, err)
		}

		table := buildTable(st)

		header := sheet.AddRow()
		for _, title := range append([]string{"Line Item"}, table.periods...) {
			cell := header.AddCell()
			cell.SetString(title)
			cell.SetStyle(bold)
		}

		if len(table.rows) == 0 {
			sheet.AddRow().AddCell().SetString("No data")
			continue
		}

		for _, row := range table.rows {
			xrow := sheet.AddRow()
			if row.kind == sectionRow {
				cell := xrow.AddCell()
				cell.SetString(row.section)
				cell.SetStyle(bold)
				continue
			}

			label := row.entry.ItemLabel
			if rg.config.IncludeReviewFlags && row.entry.NeedsReview {
				label += " *"
			}
			xrow.AddCell().SetString(label)

			for _, p := range table.periods {
				cell := xrow.AddCell()
				value := row.entry.Values[p]
				if f, ok := value.Float(); ok {
					cell.SetFloatWithFormat(f, xlsxNumberFormat)
				} else {
					cell.SetString(value.Text())
				}
			}
		}
	}

	if err := file.Write(writer); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
