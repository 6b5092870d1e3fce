package matcher

import (
	"strings"

	"golang-statement-reconciler/internal/models"
	"golang-statement-reconciler/internal/normalize"
)

// AlignPhase records how a candidate section was bound
type AlignPhase int

const (
	// PhaseNew means the candidate creates a new catalog section
	PhaseNew AlignPhase = iota
	// PhaseIdentity means the candidate was bound by tag or label identity
	PhaseIdentity
	// PhaseSimilarity means the candidate was bound by matched-item ratio
	PhaseSimilarity
)

// String returns the string representation of AlignPhase
func (p AlignPhase) String() string {
	switch p {
	case PhaseNew:
		return "New"
	case PhaseIdentity:
		return "Identity"
	case PhaseSimilarity:
		return "Similarity"
	default:
		return "Unknown"
	}
}

// CandidateSection is one section of the period being merged, with the rows
// that belong to it and the catalog section it was bound to, if any
type CandidateSection struct {
	Key   string
	Gaap  string
	Label string
	Rows  []*models.Row

	Phase       AlignPhase
	Target      string
	TargetGaap  string
	TargetLabel string
	Ratio       float64
}

// Bound reports whether the candidate was bound to an existing catalog section
func (cs *CandidateSection) Bound() bool {
	return cs.Phase != PhaseNew
}

// Alignment is the per-period section mapping, in candidate first-appearance order
type Alignment struct {
	Sections []*CandidateSection
}

// Counts returns how many candidates were bound by each phase
func (a *Alignment) Counts() (identity, similarity, created int) {
	for _, cs := range a.Sections {
		switch cs.Phase {
		case PhaseIdentity:
			identity++
		case PhaseSimilarity:
			similarity++
		default:
			created++
		}
	}
	return identity, similarity, created
}

// TargetOf returns the catalog section key a candidate key was bound to
func (a *Alignment) TargetOf(candidateKey string) (string, bool) {
	for _, cs := range a.Sections {
		if cs.Key == candidateKey && cs.Bound() {
			return cs.Target, true
		}
	}
	return "", false
}

// SectionAligner maps a period's sections onto catalog sections one-to-one
type SectionAligner struct {
	engine *MatchingEngine
}

// NewSectionAligner creates an aligner that uses engine for item matching
func NewSectionAligner(engine *MatchingEngine) *SectionAligner {
	if engine == nil {
		engine = NewMatchingEngine(nil)
	}
	return &SectionAligner{engine: engine}
}

// Align groups rows into candidate sections and binds them to catalog
// sections. Rows of a bound candidate have their section tag and label
// rewritten to the target section's current values.
func (sa *SectionAligner) Align(catalog *models.Catalog, rows []*models.Row) *Alignment {
	alignment := &Alignment{Sections: groupCandidates(rows)}
	if catalog == nil || catalog.Len() == 0 {
		return alignment
	}

	refs := catalog.Sections()
	claimed := make(map[string]bool)

	// Greedy identity pass
	for _, cs := range alignment.Sections {
		for _, ref := range refs {
			if claimed[ref.Key] {
				continue
			}
			if sectionsIdentical(cs, ref) {
				bind(cs, ref, PhaseIdentity, 1.0)
				claimed[ref.Key] = true
				break
			}
		}
	}

	// Similarity fallback for what is left
	if sa.engine.Config.EnableSectionFallback {
		for _, cs := range alignment.Sections {
			if cs.Bound() {
				continue
			}

			bestRatio := 0.0
			var best *models.SectionRef
			for i := range refs {
				ref := &refs[i]
				if claimed[ref.Key] {
					continue
				}
				ratio := sa.MatchRatio(cs.Rows, catalog.EntriesInSection(ref.Key))
				if ratio > bestRatio {
					bestRatio = ratio
					best = ref
				}
			}

			if best != nil && bestRatio >= sa.engine.Config.SectionRatioThreshold {
				bind(cs, *best, PhaseSimilarity, bestRatio)
				claimed[best.Key] = true
			}
		}
	}

	for _, cs := range alignment.Sections {
		if !cs.Bound() {
			continue
		}
		for _, r := range cs.Rows {
			r.SectionGaap = cs.TargetGaap
			r.SectionLabel = cs.TargetLabel
		}
	}

	return alignment
}

// MatchRatio returns the fraction of rows that match some entry of a catalog
// section. Tags colliding within rows are not trusted.
func (sa *SectionAligner) MatchRatio(rows []*models.Row, entries []*models.CatalogEntry) float64 {
	if len(rows) == 0 || len(entries) == 0 {
		return 0
	}

	collisions := DetectCollisions(rows)
	matched := 0
	for _, row := range rows {
		ignoreGaap := IsColliding(row, collisions)
		for _, entry := range entries {
			if sa.engine.MatchRows(entry.AsRow(), row, ignoreGaap).Matched() {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(rows))
}

func groupCandidates(rows []*models.Row) []*CandidateSection {
	var sections []*CandidateSection
	byKey := make(map[string]*CandidateSection)
	for _, r := range rows {
		key := r.SectionKey()
		cs, ok := byKey[key]
		if !ok {
			cs = &CandidateSection{Key: key, Gaap: r.SectionGaap, Label: r.SectionLabel}
			byKey[key] = cs
			sections = append(sections, cs)
		}
		cs.Rows = append(cs.Rows, r)
	}
	return sections
}

func sectionsIdentical(cs *CandidateSection, ref models.SectionRef) bool {
	g1, g2 := strings.TrimSpace(cs.Gaap), strings.TrimSpace(ref.Gaap)
	if g1 != "" && g1 == g2 {
		return true
	}
	l1 := normalize.NormalizeLabel(cs.Label)
	return l1 != "" && l1 == normalize.NormalizeLabel(ref.Label)
}

func bind(cs *CandidateSection, ref models.SectionRef, phase AlignPhase, ratio float64) {
	cs.Phase = phase
	cs.Target = ref.Key
	cs.TargetGaap = ref.Gaap
	cs.TargetLabel = ref.Label
	cs.Ratio = ratio
}
