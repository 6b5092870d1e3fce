// Package matcher decides whether line items and sections from independently
// scraped filing periods denote the same real-world thing.
//
// Item identity is a three-tier waterfall, each tier short-circuiting on
// success:
//  1. Tag: both items carry the same non-empty taxonomy tag (skipped when the
//     candidate's tag collides with another item in its section)
//  2. Label: normalized labels are equal and non-empty
//  3. Value: the non-empty, non-zero normalized values over the overlapping
//     periods are identical
//
// Section alignment binds each candidate section of a period to at most one
// catalog section, first by tag/label identity and then by the fraction of
// its items that match items of an unclaimed catalog section.
//
// All matching is greedy first-fit: candidates are visited in source order and
// take the first eligible target. There is no global optimisation, so results
// are deterministic for a given input order.
//
// Example usage:
//
//	config := matcher.DefaultMatchingConfig()
//	config.SectionRatioThreshold = 0.6
//
//	engine := matcher.NewMatchingEngine(config)
//	alignment := matcher.NewSectionAligner(engine).Align(catalog, rows)
package matcher

import (
	"fmt"
)

// MatchTier records which waterfall tier identified two items as the same
type MatchTier int

const (
	// TierNone means no tier matched
	TierNone MatchTier = iota

	// TierTag means both items carry the same taxonomy tag
	TierTag

	// TierLabel means the normalized labels are equal
	TierLabel

	// TierValue means the items report identical values for every overlapping
	// period in which either has a value
	TierValue
)

// String returns the string representation of MatchTier
func (mt MatchTier) String() string {
	switch mt {
	case TierNone:
		return "None"
	case TierTag:
		return "Tag"
	case TierLabel:
		return "Label"
	case TierValue:
		return "Value"
	default:
		return "Unknown"
	}
}

// Matched reports whether any tier succeeded
func (mt MatchTier) Matched() bool {
	return mt != TierNone
}

// DefaultSectionRatioThreshold is the minimum fraction of a candidate
// section's items that must match items of a catalog section for the
// similarity fallback to bind them.
const DefaultSectionRatioThreshold = 0.5

// MatchingConfig holds configuration parameters for item and section matching.
type MatchingConfig struct {
	// SectionRatioThreshold is the minimum matched-item fraction (0.0 to 1.0)
	// for the similarity fallback to bind a section
	SectionRatioThreshold float64 `json:"section_ratio_threshold" yaml:"section_ratio_threshold"`

	// EnableSectionFallback enables the similarity pass for sections left
	// unbound by the identity pass
	EnableSectionFallback bool `json:"enable_section_fallback" yaml:"enable_section_fallback"`

	// EnableValueMatching enables the value tier of the item waterfall
	EnableValueMatching bool `json:"enable_value_matching" yaml:"enable_value_matching"`

	// EnableReviewFlags flags new items that closely resemble an existing item
	EnableReviewFlags bool `json:"enable_review_flags" yaml:"enable_review_flags"`

	// ReviewSimilarityThreshold is the label similarity ratio (0.0 to 1.0) at
	// which an unmatched item is flagged for review
	ReviewSimilarityThreshold float64 `json:"review_similarity_threshold" yaml:"review_similarity_threshold"`
}

// DefaultMatchingConfig returns a configuration with sensible defaults
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		SectionRatioThreshold:     DefaultSectionRatioThreshold,
		EnableSectionFallback:     true,
		EnableValueMatching:       true,
		EnableReviewFlags:         true,
		ReviewSimilarityThreshold: 0.85,
	}
}

// StrictMatchingConfig returns a configuration that only merges on strong evidence
func StrictMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		SectionRatioThreshold:     0.8,
		EnableSectionFallback:     true,
		EnableValueMatching:       false,
		EnableReviewFlags:         true,
		ReviewSimilarityThreshold: 0.75,
	}
}

// RelaxedMatchingConfig returns a configuration that merges aggressively
func RelaxedMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		SectionRatioThreshold:     0.34,
		EnableSectionFallback:     true,
		EnableValueMatching:       true,
		EnableReviewFlags:         false,
		ReviewSimilarityThreshold: 0.9,
	}
}

// Validate checks if the matching configuration is valid
func (mc *MatchingConfig) Validate() error {
	if mc.SectionRatioThreshold < 0.0 || mc.SectionRatioThreshold > 1.0 {
		return fmt.Errorf("section ratio threshold must be between 0.0 and 1.0: %f", mc.SectionRatioThreshold)
	}

	if mc.ReviewSimilarityThreshold < 0.0 || mc.ReviewSimilarityThreshold > 1.0 {
		return fmt.Errorf("review similarity threshold must be between 0.0 and 1.0: %f", mc.ReviewSimilarityThreshold)
	}

	return nil
}

// Clone creates a copy of the matching configuration
func (mc *MatchingConfig) Clone() *MatchingConfig {
	if mc == nil {
		return nil
	}
	c := *mc
	return &c
}

// String returns a human-readable description of the configuration
func (mc *MatchingConfig) String() string {
	return fmt.Sprintf("MatchingConfig{SectionRatio: %.2f, Fallback: %t, ValueTier: %t, ReviewSimilarity: %.2f}",
		mc.SectionRatioThreshold, mc.EnableSectionFallback, mc.EnableValueMatching, mc.ReviewSimilarityThreshold)
}
