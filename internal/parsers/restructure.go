package parsers

import (
	"strings"

	"golang-statement-reconciler/internal/models"
	"golang-statement-reconciler/internal/normalize"
)

// DefaultSectionLabel holds items that appear before any section header
const DefaultSectionLabel = "Main"

// Restructure converts a flat extract into a sectioned document.
//
// Rows without values are section header candidates. When a row with values
// follows one or more candidates, the last candidate (minus a trailing colon)
// opens a new section. An item's tag is taken from the metadata of its newest
// value that carries one.
func Restructure(flat *FlatExtract) *models.Document {
	doc := &models.Document{Sections: []*models.Section{}}
	if flat == nil {
		return doc
	}
	if st, ok := models.ParseStatementType(flat.StatementType); ok {
		doc.StatementType = st
	}
	doc.Periods = append([]string(nil), flat.Years...)

	var current *models.Section
	var pending []string

	for _, row := range flat.Rows {
		if row == nil {
			continue
		}
		label := strings.TrimSpace(row.LineItem)

		if len(row.Values) == 0 {
			if label != "" {
				pending = append(pending, label)
			}
			continue
		}

		if len(pending) > 0 {
			current = &models.Section{
				Label: strings.TrimSpace(strings.TrimSuffix(pending[len(pending)-1], ":")),
				Items: []*models.Item{},
			}
			doc.Sections = append(doc.Sections, current)
			pending = nil
		}

		if current == nil {
			current = &models.Section{Label: DefaultSectionLabel, Items: []*models.Item{}}
			doc.Sections = append(doc.Sections, current)
		}

		values := make(map[string]models.ValueCell, len(row.Values))
		for k, v := range row.Values {
			values[k] = v
		}

		current.Items = append(current.Items, &models.Item{
			Label:  label,
			Gaap:   tagFromMeta(values),
			Values: values,
		})
	}

	return doc
}

func tagFromMeta(values map[string]models.ValueCell) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	for _, k := range normalize.SortPeriodsNewestFirst(keys) {
		if meta := values[k].Meta; meta != nil && strings.TrimSpace(meta.Name) != "" {
			return strings.TrimSpace(meta.Name)
		}
	}
	return ""
}
