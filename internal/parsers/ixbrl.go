package parsers

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang-statement-reconciler/internal/models"
	"golang-statement-reconciler/internal/normalize"

	"github.com/PuerkitoBio/goquery"
)

var (
	yearPattern        = regexp.MustCompile(`\d{4}`)
	durationContextRef = regexp.MustCompile(`D(\d{4})\d{4}-(\d{4})\d{4}`)
	dateContextRef     = regexp.MustCompile(`(\d{8})`)
	centuryContextRef  = regexp.MustCompile(`20\d{2}`)

	// header rows that are table furniture rather than section names
	noisePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(year|years|month|months|quarter|period)s?\s+(ended|ending)`),
		regexp.MustCompile(`^(january|february|march|april|may|june|july|august|september|october|november|december)\s*\d{0,2}`),
		regexp.MustCompile(`\(in (millions?|thousands?|billions?|dollars?)\b`),
		regexp.MustCompile(`except (per share|share data)`),
		regexp.MustCompile(`^\d{4}$|^\d{1,2}/\d{1,2}/\d{2,4}$`),
		regexp.MustCompile(`^(as of|for the|fiscal year)`),
		regexp.MustCompile(`^\s*$`),
	}
)

// contextDates maps xbrli:context ids to the date that identifies their period
type contextDates map[string]string

// ExtractTable reads the first table holding inline XBRL facts from an HTML
// fragment and returns it as a flat extract. Each fact's period comes from
// the fragment's xbrli:context elements, falling back to date tokens in the
// context reference itself.
func ExtractTable(r io.Reader, statement models.StatementType) (*FlatExtract, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	contexts := buildContextDates(doc.Selection)

	var table *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, t *goquery.Selection) bool {
		if t.Find("[contextref]").Length() > 0 {
			table = t
			return false
		}
		return true
	})
	if table == nil {
		return nil, fmt.Errorf("no table with inline XBRL facts")
	}

	years := make(map[string]bool)
	var rows []*FlatRow

	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td, th")
		label := collapseSpace(cells.First().Text())
		rowText := collapseSpace(tr.Text())
		values := make(map[string]models.ValueCell)

		tr.Find("[contextref]").Each(func(_ int, fact *goquery.Selection) {
			ref, _ := fact.Attr("contextref")
			year := contexts.yearFor(ref)
			if year == "" {
				return
			}
			if _, seen := values[year]; seen {
				return
			}

			text := strings.TrimSpace(fact.Text())
			if text != "" && !strings.HasPrefix(text, "-") && isNegativeFact(fact, text, rowText) {
				text = "-" + text
			}

			values[year] = models.NewValueCellWithMeta(text, factMeta(fact))
			years[year] = true
		})

		if label != "" || len(values) > 0 {
			rows = append(rows, &FlatRow{LineItem: label, Values: values})
		}
	})

	filtered := rows[:0]
	for _, row := range rows {
		if len(row.Values) == 0 && isNoise(row.LineItem) {
			continue
		}
		filtered = append(filtered, row)
	}

	keys := make([]string, 0, len(years))
	for y := range years {
		keys = append(keys, y)
	}

	return &FlatExtract{
		StatementType: statement.String(),
		Years:         normalize.SortPeriodsNewestFirst(keys),
		Rows:          filtered,
	}, nil
}

func buildContextDates(root *goquery.Selection) contextDates {
	out := make(contextDates)
	root.Find("*").Each(func(_ int, ctx *goquery.Selection) {
		if !nodeNameIn(ctx, "xbrli:context", "context") {
			return
		}
		id, ok := ctx.Attr("id")
		if !ok || id == "" {
			return
		}

		var instant, end, start string
		ctx.Find("*").Each(func(_ int, el *goquery.Selection) {
			text := strings.TrimSpace(el.Text())
			switch {
			case nodeNameIn(el, "xbrli:instant", "instant"):
				instant = text
			case nodeNameIn(el, "xbrli:enddate", "enddate"):
				end = text
			case nodeNameIn(el, "xbrli:startdate", "startdate"):
				start = text
			}
		})

		switch {
		case instant != "":
			out[id] = instant
		case end != "":
			out[id] = end
		case start != "":
			out[id] = start
		}
	})
	return out
}

// yearFor resolves a context reference to a four digit year, or ""
func (c contextDates) yearFor(ref string) string {
	if ref == "" {
		return ""
	}
	if date, ok := c[ref]; ok {
		if y := yearPattern.FindString(date); y != "" {
			return y
		}
	}
	if m := durationContextRef.FindStringSubmatch(ref); m != nil {
		return m[2]
	}
	if all := dateContextRef.FindAllString(ref, -1); len(all) > 0 {
		return all[len(all)-1][:4]
	}
	return centuryContextRef.FindString(ref)
}

func isNegativeFact(fact *goquery.Selection, text, rowText string) bool {
	if sign, ok := fact.Attr("sign"); ok && strings.TrimSpace(sign) == "-" {
		return true
	}
	for _, candidate := range []string{text, strings.ReplaceAll(text, ",", "")} {
		pattern := `\(\s*` + regexp.QuoteMeta(candidate) + `\s*\)`
		if matched, _ := regexp.MatchString(pattern, rowText); matched {
			return true
		}
	}
	return false
}

func factMeta(fact *goquery.Selection) *models.ValueMeta {
	attr := func(name string) string {
		v, _ := fact.Attr(name)
		return v
	}
	meta := &models.ValueMeta{
		Name:     attr("name"),
		ID:       attr("id"),
		UnitRef:  attr("unitref"),
		Decimals: attr("decimals"),
		Format:   attr("format"),
		Scale:    attr("scale"),
	}
	if meta.ID == "" {
		meta.ID = attr("ix")
	}
	return meta
}

func isNoise(label string) bool {
	lower := strings.ToLower(label)
	for _, p := range noisePatterns {
		if p.MatchString(lower) {
			return true
		}
	}
	return false
}

func nodeNameIn(s *goquery.Selection, names ...string) bool {
	name := goquery.NodeName(s)
	for _, n := range names {
		if name == n {
			return true
		}
	}
	return false
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
