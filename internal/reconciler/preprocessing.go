package reconciler

import (
	"strings"

	"golang-statement-reconciler/internal/models"
	"golang-statement-reconciler/internal/normalize"
)

// Period is one filing period's document prepared for merging
type Period struct {
	// Key is the caller's period key, e.g. "2024-06-30"
	Key string
	// ID is the normalized period key the filing is tracked by
	ID string

	Document *models.Document
	Rows     []*models.Row

	// Aligned holds the rows after section alignment, set by the fold
	Aligned []*models.Row
}

// PresenceRows returns the rows the presence check should look at
func (p *Period) PresenceRows() []*models.Row {
	if p.Aligned != nil {
		return p.Aligned
	}
	return p.Rows
}

// PeriodKeys returns the set of value period keys the period reports
func (p *Period) PeriodKeys() map[string]bool {
	keys := make(map[string]bool)
	for _, r := range p.Rows {
		for k := range r.Values {
			keys[k] = true
		}
	}
	return keys
}

// NewPeriod flattens doc and returns it keyed by its normalized period key
func NewPeriod(key string, doc *models.Document) *Period {
	return &Period{
		Key:      key,
		ID:       normalize.NormalizePeriodKey(key),
		Document: doc,
		Rows:     Flatten(doc),
	}
}

// Flatten converts one period's section tree into rows numbered by their
// position within their section. Missing sections or values are treated as
// empty. Section tags reused under a different label are removed.
func Flatten(doc *models.Document) []*models.Row {
	if doc == nil {
		return nil
	}

	var rows []*models.Row
	for _, sec := range doc.Sections {
		if sec == nil {
			continue
		}
		for pos, item := range sec.Items {
			if item == nil {
				continue
			}
			rows = append(rows, &models.Row{
				SectionGaap:  strings.TrimSpace(sec.Gaap),
				SectionLabel: sec.Label,
				ItemGaap:     strings.TrimSpace(item.Gaap),
				ItemLabel:    item.Label,
				Values:       normalize.NormalizeValues(item.Values),
				Position:     pos,
			})
		}
	}

	correctDuplicateSectionTags(rows)
	return rows
}

// correctDuplicateSectionTags strips the section tag from rows whose tag was
// first seen on a section with a different normalized label, so unrelated
// sections sharing a recycled tag stay apart.
func correctDuplicateSectionTags(rows []*models.Row) {
	firstLabel := make(map[string]string)
	for _, r := range rows {
		if r.SectionGaap == "" {
			continue
		}
		label := normalize.NormalizeLabel(r.SectionLabel)
		seen, ok := firstLabel[r.SectionGaap]
		if !ok {
			firstLabel[r.SectionGaap] = label
			continue
		}
		if seen != label {
			r.SectionGaap = ""
		}
	}
}

// cloneRows copies rows so alignment can rewrite section fields without
// touching the period's flattened input
func cloneRows(rows []*models.Row) []*models.Row {
	out := make([]*models.Row, len(rows))
	for i, r := range rows {
		c := *r
		out[i] = &c
	}
	return out
}

// Recency ranks filing periods; a lower rank is more recent
type Recency struct {
	rank map[string]int
}

// NewRecency ranks period IDs given newest first
func NewRecency(newestFirst []string) *Recency {
	r := &Recency{rank: make(map[string]int, len(newestFirst))}
	for i, id := range newestFirst {
		if _, exists := r.rank[id]; !exists {
			r.rank[id] = i
		}
	}
	return r
}

// Newer reports whether period a is strictly more recent than period b.
// Unknown periods are older than every known one.
func (r *Recency) Newer(a, b string) bool {
	ra, aok := r.rank[a]
	rb, bok := r.rank[b]
	switch {
	case !aok:
		return false
	case !bok:
		return true
	default:
		return ra < rb
	}
}
