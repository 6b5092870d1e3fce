package reconciler

import (
	"sort"

	"golang-statement-reconciler/internal/models"
	"golang-statement-reconciler/internal/normalize"
	"golang-statement-reconciler/pkg/logger"
)

// Orderer imposes the final display order on a catalog and pads every entry
// to the full set of period keys
type Orderer struct {
	logger logger.Logger
}

// NewOrderer creates an orderer
func NewOrderer() *Orderer {
	return &Orderer{logger: logger.GetGlobalLogger().WithComponent("catalog_orderer")}
}

// Order returns an ordered copy of catalog. periods must be ordered newest
// first; periodKeys is the union of period keys across all input.
//
// Sections follow their first appearance in the newest filing, with sections
// absent from it appended in catalog order. Within a section, items of the
// newest filing form the spine, ordered by position then label. Older-only
// items are inserted before the first spine item whose position is at least
// their most recent known position.
func (o *Orderer) Order(catalog *models.Catalog, periods []*Period, periodKeys []string) *models.Catalog {
	out := catalog.Clone()
	if out.Len() == 0 {
		return out
	}

	var latest *Period
	if len(periods) > 0 {
		latest = periods[0]
	}

	sectionIndex := o.relabelSections(out, latest)

	refs := out.Sections()
	sort.SliceStable(refs, func(i, j int) bool {
		ii, iok := sectionIndex[refs[i].Key]
		ij, jok := sectionIndex[refs[j].Key]
		switch {
		case iok && jok:
			return ii < ij
		case iok != jok:
			return iok
		default:
			return false
		}
	})

	keys := make([]models.CatalogKey, 0, out.Len())
	for _, ref := range refs {
		for _, e := range orderSection(out.EntriesInSection(ref.Key), periods) {
			keys = append(keys, e.Key)
		}
	}
	if err := out.Reorder(keys); err != nil {
		o.logger.WithError(err).Error("Failed to reorder catalog, keeping merge order")
	}

	PadPeriods(out, periodKeys)
	return out
}

// relabelSections rewrites each entry's section tag and label to the newest
// filing's labeling and returns the first-appearance index of every section
// in that filing
func (o *Orderer) relabelSections(catalog *models.Catalog, latest *Period) map[string]int {
	index := make(map[string]int)
	if latest == nil {
		return index
	}

	type labeling struct{ gaap, label string }
	canonical := make(map[string]labeling)
	for _, r := range latest.PresenceRows() {
		key := r.SectionKey()
		if _, ok := index[key]; ok {
			continue
		}
		index[key] = len(index)
		canonical[key] = labeling{gaap: r.SectionGaap, label: r.SectionLabel}
	}

	for _, e := range catalog.Entries() {
		if l, ok := canonical[e.SectionKey()]; ok {
			e.SectionGaap = l.gaap
			e.SectionLabel = l.label
		}
	}
	return index
}

type orderedItem struct {
	entry  *models.CatalogEntry
	label  string
	pos    int
	anchor int
}

func orderSection(entries []*models.CatalogEntry, periods []*Period) []*models.CatalogEntry {
	if len(periods) == 0 {
		return entries
	}
	latestID := periods[0].ID

	var spine, older []*orderedItem
	for _, e := range entries {
		item := &orderedItem{entry: e, label: normalize.NormalizeLabel(e.ItemLabel)}
		if pos, ok := e.Positions[latestID]; ok {
			item.pos = pos
			spine = append(spine, item)
		} else {
			older = append(older, item)
		}
	}

	sort.SliceStable(spine, func(i, j int) bool {
		if spine[i].pos != spine[j].pos {
			return spine[i].pos < spine[j].pos
		}
		return spine[i].label < spine[j].label
	})

	for _, item := range older {
		pos, ok := mostRecentPosition(item.entry, periods[1:])
		if !ok {
			item.anchor = len(spine) + 1
			continue
		}
		item.anchor = len(spine)
		for i, s := range spine {
			if s.pos >= pos {
				item.anchor = i
				break
			}
		}
	}

	sort.SliceStable(older, func(i, j int) bool {
		if older[i].anchor != older[j].anchor {
			return older[i].anchor < older[j].anchor
		}
		return older[i].label < older[j].label
	})

	out := make([]*models.CatalogEntry, 0, len(entries))
	next := 0
	for i, s := range spine {
		for next < len(older) && older[next].anchor == i {
			out = append(out, older[next].entry)
			next++
		}
		out = append(out, s.entry)
	}
	for ; next < len(older); next++ {
		out = append(out, older[next].entry)
	}
	return out
}

// mostRecentPosition falls back through progressively older filings
func mostRecentPosition(e *models.CatalogEntry, olderPeriods []*Period) (int, bool) {
	for _, p := range olderPeriods {
		if pos, ok := e.Positions[p.ID]; ok {
			return pos, true
		}
	}
	return 0, false
}

// PadPeriods gives every entry an explicit zero for each period key it lacks,
// and replaces null values with zero
func PadPeriods(catalog *models.Catalog, periodKeys []string) {
	for _, e := range catalog.Entries() {
		for _, k := range periodKeys {
			cell, ok := e.Values[k]
			if !ok {
				e.Values[k] = models.ZeroCell()
				continue
			}
			e.Values[k] = cell.OrZero()
		}
	}
}
