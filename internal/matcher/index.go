package matcher

import (
	"strings"

	"golang-statement-reconciler/internal/models"
)

// ItemMap is the greedy one-to-one assignment of one candidate section's rows
// to the entries of its bound catalog section. A catalog entry receives at most
// one row per period.
type ItemMap struct {
	assigned map[int]*models.CatalogEntry
	tiers    map[int]MatchTier
	claimed  map[models.CatalogKey]bool
}

// BuildItemMap walks rows in order and binds each to the first unclaimed
// target it matches. targets is scanned in catalog order; a nil or empty
// targets slice yields an empty map.
func (me *MatchingEngine) BuildItemMap(rows []*models.Row, targets []*models.CatalogEntry, collisions map[string]bool) *ItemMap {
	im := &ItemMap{
		assigned: make(map[int]*models.CatalogEntry),
		tiers:    make(map[int]MatchTier),
		claimed:  make(map[models.CatalogKey]bool),
	}

	for i, row := range rows {
		ignoreGaap := IsColliding(row, collisions)
		for _, entry := range targets {
			if im.claimed[entry.Key] {
				continue
			}
			if tier := me.MatchRows(entry.AsRow(), row, ignoreGaap); tier.Matched() {
				im.assigned[i] = entry
				im.tiers[i] = tier
				im.claimed[entry.Key] = true
				break
			}
		}
	}

	return im
}

// Match returns the catalog entry assigned to the row at index i
func (im *ItemMap) Match(i int) (*models.CatalogEntry, MatchTier, bool) {
	entry, ok := im.assigned[i]
	if !ok {
		return nil, TierNone, false
	}
	return entry, im.tiers[i], true
}

// Claimed reports whether a catalog entry already received a row
func (im *ItemMap) Claimed(key models.CatalogKey) bool {
	return im.claimed[key]
}

// Size returns the number of assigned rows
func (im *ItemMap) Size() int {
	return len(im.assigned)
}

// IsColliding reports whether row's tag is ambiguous within its section
func IsColliding(row *models.Row, collisions map[string]bool) bool {
	return collisions[strings.TrimSpace(row.ItemGaap)]
}
