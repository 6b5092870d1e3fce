package parsers

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang-statement-reconciler/internal/models"
	"golang-statement-reconciler/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureDir = "../../testdata/periods"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoaderConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultLoaderConfig().Validate())

	cfg := DefaultLoaderConfig()
	cfg.MaxConcurrentFiles = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultLoaderConfig()
	cfg.StatementTypes = []models.StatementType{"equity"}
	assert.Error(t, cfg.Validate())

	cfg = DefaultLoaderConfig()
	cfg.StatementTypes = []models.StatementType{models.BalanceSheet}
	clone := cfg.Clone()
	clone.StatementTypes[0] = models.IncomeStatement
	assert.Equal(t, models.BalanceSheet, cfg.StatementTypes[0])
	assert.True(t, cfg.Wants(models.BalanceSheet))
	assert.False(t, cfg.Wants(models.CashFlowStatement))
}

func TestRestructure(t *testing.T) {
	flat := &FlatExtract{
		StatementType: "income",
		Years:         []string{"2024", "2023"},
		Rows: []*FlatRow{
			{LineItem: "Net sales", Values: map[string]models.ValueCell{"2024": models.NewValueCell("10")}},
			{LineItem: "Operating expenses", Values: nil},
			{LineItem: "Costs:", Values: nil},
			{LineItem: "Research and development", Values: map[string]models.ValueCell{
				"2023": models.NewValueCellWithMeta("4", &models.ValueMeta{Name: "us-gaap:OldTag"}),
				"2024": models.NewValueCellWithMeta("5", &models.ValueMeta{Name: "us-gaap:ResearchAndDevelopmentExpense"}),
			}},
			{LineItem: "", Values: nil},
			{LineItem: "Selling", Values: map[string]models.ValueCell{"2024": models.NewValueCell("2")}},
		},
	}

	doc := Restructure(flat)

	assert.Equal(t, models.IncomeStatement, doc.StatementType)
	assert.Equal(t, []string{"2024", "2023"}, doc.Periods)
	require.Len(t, doc.Sections, 2)

	assert.Equal(t, DefaultSectionLabel, doc.Sections[0].Label)
	require.Len(t, doc.Sections[0].Items, 1)
	assert.Equal(t, "Net sales", doc.Sections[0].Items[0].Label)

	assert.Equal(t, "Costs", doc.Sections[1].Label, "last pending header wins, colon stripped")
	require.Len(t, doc.Sections[1].Items, 2)
	assert.Equal(t, "us-gaap:ResearchAndDevelopmentExpense", doc.Sections[1].Items[0].Gaap, "tag comes from the newest value")
	assert.Equal(t, "", doc.Sections[1].Items[1].Gaap)

	assert.NoError(t, doc.Validate())
	assert.Empty(t, Restructure(nil).Sections)
}

const fragment = `<html><body>
<div style="display:none"><ix:header><ix:resources>
<xbrli:context id="ctx-a"><xbrli:period><xbrli:startDate>2023-01-01</xbrli:startDate><xbrli:endDate>2023-12-31</xbrli:endDate></xbrli:period></xbrli:context>
<xbrli:context id="ctx-b"><xbrli:period><xbrli:startDate>2022-01-01</xbrli:startDate><xbrli:endDate>2022-12-31</xbrli:endDate></xbrli:period></xbrli:context>
</ix:resources></ix:header></div>
<table><tr><td>Ignored</td></tr></table>
<table>
<tr><td>Years Ended December 31,</td><td></td></tr>
<tr><td>(In millions, except per share data)</td></tr>
<tr><td>Operating activities:</td></tr>
<tr><td>Net   income</td>
  <td><ix:nonFraction name="us-gaap:NetIncomeLoss" contextRef="ctx-a" unitRef="usd" decimals="-6" id="f-1">1,250</ix:nonFraction></td>
  <td><ix:nonFraction name="us-gaap:NetIncomeLoss" contextRef="ctx-b" id="f-2">1,100</ix:nonFraction></td></tr>
<tr><td>Share repurchases</td>
  <td>(<ix:nonFraction name="us-gaap:PaymentsForRepurchaseOfCommonStock" contextRef="ctx-a" id="f-3">400</ix:nonFraction>)</td>
  <td><ix:nonFraction name="us-gaap:PaymentsForRepurchaseOfCommonStock" contextRef="ctx-b" sign="-" id="f-4">350</ix:nonFraction></td></tr>
<tr><td>Other</td>
  <td><ix:nonFraction name="us-gaap:OtherOperatingActivitiesCashFlowStatement" contextRef="FROM_Jan01_2023_TO_Dec31_2023" id="f-5">7</ix:nonFraction></td></tr>
</table>
</body></html>`

func TestExtractTable(t *testing.T) {
	flat, err := ExtractTable(strings.NewReader(fragment), models.CashFlowStatement)
	require.NoError(t, err)

	assert.Equal(t, "cash_flow_statement", flat.StatementType)
	assert.Equal(t, []string{"2023", "2022"}, flat.Years)

	labels := make([]string, len(flat.Rows))
	for i, r := range flat.Rows {
		labels[i] = r.LineItem
	}
	assert.Equal(t, []string{"Operating activities:", "Net income", "Share repurchases", "Other"}, labels)

	net := flat.Rows[1].Values
	assert.Equal(t, "1,250", net["2023"].Text())
	require.NotNil(t, net["2023"].Meta)
	assert.Equal(t, "us-gaap:NetIncomeLoss", net["2023"].Meta.Name)
	assert.Equal(t, "usd", net["2023"].Meta.UnitRef)
	assert.Equal(t, "-6", net["2023"].Meta.Decimals)
	assert.Equal(t, "f-1", net["2023"].Meta.ID)

	repurchases := flat.Rows[2].Values
	assert.Equal(t, "-400", repurchases["2023"].Text(), "parenthesised fact is negative")
	assert.Equal(t, "-350", repurchases["2022"].Text(), "sign attribute is negative")

	assert.Equal(t, "7", flat.Rows[3].Values["2023"].Text(), "year recovered from the context reference")

	doc := Restructure(flat)
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, "Operating activities", doc.Sections[0].Label)
	assert.Equal(t, "us-gaap:NetIncomeLoss", doc.Sections[0].Items[0].Gaap)
}

func TestExtractTableWithoutFacts(t *testing.T) {
	_, err := ExtractTable(strings.NewReader("<table><tr><td>x</td></tr></table>"), models.BalanceSheet)
	assert.Error(t, err)
}

func TestContextYearFallbacks(t *testing.T) {
	c := contextDates{"known": "2021-06-30"}

	tests := []struct {
		ref  string
		want string
	}{
		{"known", "2021"},
		{"D20220101-20221231", "2022"},
		{"c_20191231_us-gaap_Member_20201231", "2020"},
		{"FY2018Q4", "2018"},
		{"FROM_Jan01_2023_TO_Dec31_2023", "2023"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			assert.Equal(t, tt.want, c.yearFor(tt.ref))
		})
	}
}

func TestDecodePeriodBundle(t *testing.T) {
	data := []byte(`{
		"source_url": "https://example.com/2022.htm",
		"ticker": "ACME",
		"balance": {"statement_type": "balance_sheet", "sections": [
			{"section": "Assets", "items": [{"label": "Cash", "values": {"2022": "5"}}]}
		]},
		"cash_flow": {"status": "failed", "error": "Could not locate statement"},
		"notes": {"anything": true}
	}`)

	d := NewDecoder(nil)
	set, derr := d.DecodeFile("filings/2022.json", data)
	require.Nil(t, derr)

	assert.Equal(t, "ACME", set.Ticker)
	assert.Equal(t, []string{"2022"}, set.PeriodKeys(), "period falls back to the file name")

	bs := set.Periods["2022"][models.BalanceSheet]
	require.NotNil(t, bs)
	assert.True(t, bs.HasData())
	assert.Equal(t, "https://example.com/2022.htm", bs.SourceURL)

	cf := set.Periods["2022"][models.CashFlowStatement]
	require.NotNil(t, cf)
	assert.Equal(t, "Could not locate statement", cf.Error)
	assert.False(t, cf.HasData())

	assert.Equal(t, 1, set.Len())
	assert.Empty(t, set.Errors)
}

func TestDecodeAggregateBundle(t *testing.T) {
	data := []byte(`{
		"ticker": "ACME",
		"years": {
			"2023": {"income_statement": {"sections": [{"section": "Revenue", "items": [{"label": "Sales", "values": {"2023": 10}}]}]}},
			"2022": {"income_statement": {"sections": [{"section": "Revenue", "items": [{"label": "Sales", "values": {"2022": 8}}]}]},
			         "balance_sheet": {"sections": [{"items": []}]}}
		}
	}`)

	set, derr := NewDecoder(nil).DecodeFile("acme.json", data)
	require.Nil(t, derr)

	assert.Equal(t, []string{"2023", "2022"}, set.PeriodKeys())
	assert.Equal(t, 2, set.Len())
	require.Len(t, set.Errors, 1, "section without label or tag is reported")
	assert.Equal(t, errors.CodeInvalidDocument, set.Errors[0].Code)
	assert.Equal(t, "2022", set.Errors[0].Location.Period)
	assert.NotEmpty(t, set.Periods["2022"][models.BalanceSheet].Error)
}

func TestDecodeScraperResultWrapper(t *testing.T) {
	data := []byte(`{
		"period": 2021,
		"income_statement": {"status": "success", "source_url": "https://example.com/10k.htm", "json": {
			"statement_type": "income_statement", "years": ["2021"],
			"rows": [{"line_item": "Revenue", "values": {"2021": "3"}}]
		}}
	}`)

	set, derr := NewDecoder(nil).DecodeFile("bundle.json", data)
	require.Nil(t, derr)

	doc := set.Periods["2021"][models.IncomeStatement]
	require.NotNil(t, doc)
	assert.Equal(t, "https://example.com/10k.htm", doc.SourceURL)
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, DefaultSectionLabel, doc.Sections[0].Label)
}

func TestDecodeSingleStatementFile(t *testing.T) {
	data := []byte(`{"statement_type": "cash_flow", "periods": ["2020"], "sections": [
		{"section": "Operating", "items": [{"label": "Net income", "values": {"2020": "1"}}]}
	]}`)

	set, derr := NewDecoder(nil).DecodeFile("2020.json", data)
	require.Nil(t, derr)
	assert.True(t, set.Periods["2020"][models.CashFlowStatement].HasData())
}

func TestDecodeMalformedJSON(t *testing.T) {
	data := []byte(`{"period": "2019", "balance_sheet": {"sections": [{"section": "Assets", "items": [{"label": "Cash", "values": {"2019": "1"}},]}]},}`)

	set, derr := NewDecoder(nil).DecodeFile("2019.json", data)
	require.Nil(t, derr, "repairable input decodes")
	assert.True(t, set.Periods["2019"][models.BalanceSheet].HasData())

	cfg := DefaultLoaderConfig()
	cfg.RepairMalformedJSON = false
	_, derr = NewDecoder(cfg).DecodeFile("2019.json", data)
	require.NotNil(t, derr)
	assert.Equal(t, errors.CodeInvalidJSON, derr.Code)
	assert.Greater(t, derr.Location.Offset, int64(0))
}

func TestDecodeHTMLName(t *testing.T) {
	d := NewDecoder(nil)

	_, derr := d.DecodeHTML("statement.html", []byte(fragment))
	require.NotNil(t, derr)
	assert.Equal(t, errors.CodeUnsupportedFile, derr.Code)

	_, derr = d.DecodeHTML("2023.equity.html", []byte(fragment))
	require.NotNil(t, derr)
	assert.Equal(t, errors.CodeUnknownStatement, derr.Code)

	set, derr := d.DecodeHTML("2023.cash_flow.html", []byte(fragment))
	require.Nil(t, derr)
	assert.True(t, set.Periods["2023"][models.CashFlowStatement].HasData())
}

func TestFilingSetAddKeepsRicherDocument(t *testing.T) {
	small := &models.Document{Sections: []*models.Section{{Label: "A", Items: []*models.Item{{Label: "x"}}}}}
	large := &models.Document{Sections: []*models.Section{{Label: "A", Items: []*models.Item{{Label: "x"}, {Label: "y"}}}}}
	failed := &models.Document{Error: "boom"}

	set := NewFilingSet()
	assert.True(t, set.Add("2024", models.BalanceSheet, failed))
	assert.True(t, set.Add("2024", models.BalanceSheet, small), "data replaces a failed document")
	assert.False(t, set.Add("2024", models.BalanceSheet, failed))
	assert.True(t, set.Add("2024", models.BalanceSheet, large))
	assert.False(t, set.Add("2024", models.BalanceSheet, small))
	assert.Same(t, large, set.Periods["2024"][models.BalanceSheet])
}

func TestLoadFixtureDirectory(t *testing.T) {
	loader, err := NewLoader(nil)
	require.NoError(t, err)

	set, err := loader.Load(context.Background(), fixtureDir)
	require.NoError(t, err)

	assert.Equal(t, []string{"2024", "2023", "2022"}, set.PeriodKeys())
	assert.Len(t, set.Files, 3)
	assert.Empty(t, set.Errors)

	assert.True(t, set.Periods["2024"][models.BalanceSheet].HasData())
	assert.True(t, set.Periods["2024"][models.IncomeStatement].HasData())
	assert.False(t, set.Periods["2024"][models.CashFlowStatement].HasData())
	assert.True(t, set.Periods["2022"][models.BalanceSheet].HasData())

	income := set.Periods["2024"][models.IncomeStatement]
	require.Len(t, income.Sections, 2)
	assert.Equal(t, "Revenues", income.Sections[0].Label)
	assert.Equal(t, "us-gaap:Revenues", income.Sections[0].Items[0].Gaap)

	html := set.Periods["2022"][models.BalanceSheet]
	require.Len(t, html.Sections, 1)
	assert.Equal(t, "Current assets", html.Sections[0].Label)
	require.Len(t, html.Sections[0].Items, 4)
	assert.Equal(t, "-15", html.Sections[0].Items[2].Values["2022"].Text())
	assert.Equal(t, "-12", html.Sections[0].Items[2].Values["2021"].Text())
}

func TestLoadDirectoryCollectsFailures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "2024.json", `{"balance_sheet": {"sections": [{"section": "Assets", "items": [{"label": "Cash", "values": {"2024": "1"}}]}]}}`)
	writeFile(t, dir, "2023.balance_sheet.html", `<table><tr><td>no facts</td></tr></table>`)
	writeFile(t, dir, "notes.txt", `ignored`)

	cfg := DefaultLoaderConfig()
	cfg.RepairMalformedJSON = false
	loader, err := NewLoader(cfg)
	require.NoError(t, err)

	set, err := loader.LoadDirectory(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"2024"}, set.PeriodKeys())
	require.Len(t, set.Errors, 1)
	assert.Equal(t, errors.CodeInvalidHTML, set.Errors[0].Code)
}

func TestLoadDirectoryStopsAfterMaxErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.2024.income.html", `<p>none</p>`)
	writeFile(t, dir, "b.2023.income.html", `<p>none</p>`)

	cfg := DefaultLoaderConfig()
	cfg.MaxErrors = 1
	cfg.MaxConcurrentFiles = 1
	loader, err := NewLoader(cfg)
	require.NoError(t, err)

	_, err = loader.LoadDirectory(context.Background(), dir)
	require.Error(t, err)
	rerr, ok := errors.AsReconcilerError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CategoryParse, rerr.Category)
}

func TestLoadEmptyInputs(t *testing.T) {
	loader, err := NewLoader(nil)
	require.NoError(t, err)

	_, err = loader.Load(context.Background(), filepath.Join(t.TempDir(), "missing"))
	rerr, ok := errors.AsReconcilerError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeFileNotFound, rerr.Code)

	_, err = loader.LoadDirectory(context.Background(), t.TempDir())
	rerr, ok = errors.AsReconcilerError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeNoFilings, rerr.Code)

	dir := t.TempDir()
	path := writeFile(t, dir, "2024.json", `{"balance_sheet": {"status": "failed", "error": "nope"}}`)
	_, err = loader.LoadFile(context.Background(), path)
	rerr, ok = errors.AsReconcilerError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeNoFilings, rerr.Code)
}

func TestLoadCancelled(t *testing.T) {
	loader, err := NewLoader(nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = loader.LoadDirectory(ctx, fixtureDir)
	assert.ErrorIs(t, err, context.Canceled)
}
