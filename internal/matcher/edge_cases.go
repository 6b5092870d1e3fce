package matcher

import (
	"fmt"

	"golang-statement-reconciler/internal/models"
	"golang-statement-reconciler/internal/normalize"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// ReviewFinding explains why a new catalog entry was flagged for review
type ReviewFinding struct {
	Similar    *models.CatalogEntry
	Similarity float64
	Reason     string
}

// LabelSimilarity returns the levenshtein ratio (0.0 to 1.0) between two
// labels in normalized form. Empty labels are never similar.
func LabelSimilarity(a, b string) float64 {
	na, nb := normalize.NormalizeLabel(a), normalize.NormalizeLabel(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	return levenshtein.RatioForStrings([]rune(na), []rune(nb), levenshtein.DefaultOptions)
}

// FindNearDuplicate looks for an existing entry whose label closely resembles
// row's label without being equal to it. Such rows are merged as new items
// and flagged, since a relabeled item and a genuinely new item look the same
// to the waterfall.
func (me *MatchingEngine) FindNearDuplicate(row *models.Row, candidates []*models.CatalogEntry) (*ReviewFinding, bool) {
	if !me.Config.EnableReviewFlags {
		return nil, false
	}

	var best *ReviewFinding
	for _, entry := range candidates {
		score := LabelSimilarity(row.ItemLabel, entry.ItemLabel)
		if score >= 1 {
			continue
		}
		if score >= me.Config.ReviewSimilarityThreshold && (best == nil || score > best.Similarity) {
			best = &ReviewFinding{
				Similar:    entry,
				Similarity: score,
				Reason:     fmt.Sprintf("label resembles %q (similarity %.2f)", entry.ItemLabel, score),
			}
		}
	}

	return best, best != nil
}

// DuplicateIdentityFinding flags an entry created under an identity already
// used in its section, which happens when one filing repeats a label
func DuplicateIdentityFinding(key models.CatalogKey) *ReviewFinding {
	return &ReviewFinding{
		Reason: fmt.Sprintf("duplicate %s identity %q in section %q", key.Item.Kind, key.Item.Value, key.Section),
	}
}
