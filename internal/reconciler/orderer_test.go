package reconciler

import (
	"testing"

	"golang-statement-reconciler/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labels(catalog *models.Catalog) []string {
	out := make([]string, 0, catalog.Len())
	for _, e := range catalog.Entries() {
		out = append(out, e.ItemLabel)
	}
	return out
}

func TestOrderOlderOnlyItemBeyondSpine(t *testing.T) {
	spine := []string{"Revenue", "Cost of revenue", "Gross profit", "Operating expenses", "Operating income"}

	newest := section("Income", "")
	middle := section("Income", "")
	oldest := section("Income", "")
	for i, label := range spine {
		newest.Items = append(newest.Items, item(label, "", cells{"2024": i + 1, "2023": i + 11}))
		middle.Items = append(middle.Items, item(label, "", cells{"2023": i + 11, "2022": i + 21}))
		oldest.Items = append(oldest.Items, item(label, "", cells{"2022": i + 21, "2021": i + 31}))
	}
	oldest.Items = append(oldest.Items,
		item("Restructuring charges", "", cells{"2022": 101, "2021": 111}),
		item("Discontinued operations", "", cells{"2022": 102, "2021": 112}),
		item("Legacy segment revenue", "", cells{"2022": 103, "2021": 113}),
	)

	catalog, periods := foldNewestFirst(
		withPeriods(doc(newest), "2024"),
		withPeriods(doc(middle), "2023"),
		withPeriods(doc(oldest), "2022"),
	)
	legacy := findEntry(t, catalog, "Legacy segment revenue")
	require.Equal(t, 7, legacy.Positions["2022"])

	ordered := NewOrderer().Order(catalog, periods, []string{"2024", "2023", "2022", "2021"})

	assert.Equal(t, append(spine,
		"Discontinued operations",
		"Legacy segment revenue",
		"Restructuring charges",
	), labels(ordered))
}

func TestOrderInterleavesOlderOnlyItems(t *testing.T) {
	catalog, periods := foldNewestFirst(
		withPeriods(doc(section("Current assets", "",
			item("Cash", "", cells{"2024": 10}),
			item("Receivables", "", cells{"2024": 20}),
			item("Total current assets", "", cells{"2024": 30}),
		)), "2024"),
		withPeriods(doc(section("Current assets", "",
			item("Cash", "", cells{"2023": 11}),
			item("Inventories", "", cells{"2023": 12}),
			item("Prepaid expenses", "", cells{"2023": 13}),
			item("Total current assets", "", cells{"2023": 36}),
		)), "2023"),
	)

	ordered := NewOrderer().Order(catalog, periods, []string{"2024", "2023"})

	assert.Equal(t, []string{
		"Cash",
		"Inventories",
		"Receivables",
		"Prepaid expenses",
		"Total current assets",
	}, labels(ordered))
}

func TestOrderSections(t *testing.T) {
	catalog, periods := foldNewestFirst(
		withPeriods(doc(
			section("Liabilities", "", item("Payables", "", cells{"2024": 1})),
			section("Assets", "", item("Cash", "", cells{"2024": 2})),
		), "2024"),
		withPeriods(doc(
			section("Assets", "", item("Cash", "", cells{"2023": 3})),
			section("Equity", "", item("Retained earnings", "", cells{"2023": 4})),
			section("Liabilities", "", item("Payables", "", cells{"2023": 5})),
			section("Commitments", "", item("Leases", "", cells{"2023": 6})),
		), "2023"),
	)

	ordered := NewOrderer().Order(catalog, periods, []string{"2024", "2023"})

	var sections []string
	for _, ref := range ordered.Sections() {
		sections = append(sections, ref.Label)
	}
	assert.Equal(t, []string{"Liabilities", "Assets", "Equity", "Commitments"}, sections)
}

func TestOrderReturnsCopy(t *testing.T) {
	catalog, periods := foldNewestFirst(
		withPeriods(doc(section("Assets", "",
			item("B", "", cells{"2024": 1}),
			item("A", "", cells{"2024": 2}),
		)), "2024"),
	)
	before := labels(catalog)

	ordered := NewOrderer().Order(catalog, periods, []string{"2024", "2023"})

	assert.Equal(t, before, labels(catalog))
	assert.NotContains(t, catalog.Entries()[0].Values, "2023")
	assert.Contains(t, ordered.Entries()[0].Values, "2023")
	assert.Equal(t, 0, NewOrderer().Order(models.NewCatalog(), nil, nil).Len())
}

func TestPadPeriods(t *testing.T) {
	catalog, _ := foldNewestFirst(
		withPeriods(doc(section("Assets", "", item("Cash", "", cells{"2024": 1}))), "2024"),
	)
	e := catalog.Entries()[0]
	e.Values["2023"] = models.NewValueCell(nil)

	PadPeriods(catalog, []string{"2024", "2023", "2022"})

	assert.Equal(t, "1", e.Values["2024"].Text())
	assert.Equal(t, "0", e.Values["2023"].Text())
	assert.Equal(t, "0", e.Values["2022"].Text())
	assert.Len(t, e.Values, 3)
}
