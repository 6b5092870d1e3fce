package matcher

import (
	"sort"
	"strings"

	"golang-statement-reconciler/internal/models"
)

// MatchingEngine applies the item waterfall under a MatchingConfig
type MatchingEngine struct {
	Config *MatchingConfig
}

// NewMatchingEngine creates a new matching engine with the specified configuration
func NewMatchingEngine(config *MatchingConfig) *MatchingEngine {
	if config == nil {
		config = DefaultMatchingConfig()
	}

	return &MatchingEngine{
		Config: config,
	}
}

// Match runs the waterfall for a and b over the given periods. The value tier
// is skipped when disabled in the configuration.
func (me *MatchingEngine) Match(a, b *models.Row, overlap []string, ignoreGaap bool) MatchTier {
	if tier := identityTier(a, b, ignoreGaap); tier.Matched() {
		return tier
	}
	if me.Config.EnableValueMatching && valuesMatch(a, b, overlap) {
		return TierValue
	}
	return TierNone
}

// MatchRows runs the waterfall over the periods both rows report
func (me *MatchingEngine) MatchRows(a, b *models.Row, ignoreGaap bool) MatchTier {
	return me.Match(a, b, OverlapPeriods(a.Values, b.Values), ignoreGaap)
}

// MatchItems reports whether a and b denote the same item under the full
// three-tier waterfall.
func MatchItems(a, b *models.Row, overlap []string, ignoreGaap bool) bool {
	return Classify(a, b, overlap, ignoreGaap).Matched()
}

// Classify returns the first waterfall tier under which a and b match
func Classify(a, b *models.Row, overlap []string, ignoreGaap bool) MatchTier {
	if tier := identityTier(a, b, ignoreGaap); tier.Matched() {
		return tier
	}
	if valuesMatch(a, b, overlap) {
		return TierValue
	}
	return TierNone
}

func identityTier(a, b *models.Row, ignoreGaap bool) MatchTier {
	if !ignoreGaap {
		ga, gb := strings.TrimSpace(a.ItemGaap), strings.TrimSpace(b.ItemGaap)
		if ga != "" && ga == gb {
			return TierTag
		}
	}

	la := a.NormalizedLabel()
	if la != "" && la == b.NormalizedLabel() {
		return TierLabel
	}
	return TierNone
}

// valuesMatch compares the comparable values of both rows over overlap.
// Periods where a row is empty or zero are dropped; two rows with nothing
// left never match.
func valuesMatch(a, b *models.Row, overlap []string) bool {
	va := comparableValues(a.Values, overlap)
	vb := comparableValues(b.Values, overlap)
	if len(va) == 0 || len(vb) == 0 || len(va) != len(vb) {
		return false
	}
	for period, v := range va {
		if vb[period] != v {
			return false
		}
	}
	return true
}

func comparableValues(values map[string]models.ValueCell, periods []string) map[string]string {
	out := make(map[string]string)
	for _, p := range periods {
		cell, ok := values[p]
		if !ok {
			continue
		}
		if v, ok := cell.Comparable(); ok {
			out[p] = v
		}
	}
	return out
}

// OverlapPeriods returns the period keys present in both maps, sorted
func OverlapPeriods(a, b map[string]models.ValueCell) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// DetectCollisions returns the tags carried by more than one row. Callers pass
// the rows of one section of one period.
func DetectCollisions(rows []*models.Row) map[string]bool {
	counts := make(map[string]int)
	for _, r := range rows {
		if g := strings.TrimSpace(r.ItemGaap); g != "" {
			counts[g]++
		}
	}

	collisions := make(map[string]bool)
	for tag, n := range counts {
		if n > 1 {
			collisions[tag] = true
		}
	}
	return collisions
}

// IdentityFor returns the identity a new catalog entry for row is keyed by:
// the normalized label when the row's tag collides or is absent, else the tag
func IdentityFor(row *models.Row, collisions map[string]bool) models.ItemIdentity {
	tag := strings.TrimSpace(row.ItemGaap)
	if tag == "" || collisions[tag] {
		return models.LabelIdentity(row.ItemLabel)
	}
	return models.TagIdentity(tag)
}
