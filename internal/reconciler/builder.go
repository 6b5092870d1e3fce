package reconciler

import (
	"golang-statement-reconciler/internal/matcher"
	"golang-statement-reconciler/internal/models"
	"golang-statement-reconciler/pkg/logger"
)

// CatalogBuilder merges filing periods into a catalog one period at a time
type CatalogBuilder struct {
	engine  *matcher.MatchingEngine
	aligner *matcher.SectionAligner
	recency *Recency
	logger  logger.Logger
}

// NewCatalogBuilder creates a builder. recency decides which filing's value
// wins when two filings report the same period key for one entry.
func NewCatalogBuilder(engine *matcher.MatchingEngine, recency *Recency) *CatalogBuilder {
	if engine == nil {
		engine = matcher.NewMatchingEngine(nil)
	}
	if recency == nil {
		recency = NewRecency(nil)
	}
	return &CatalogBuilder{
		engine:  engine,
		aligner: matcher.NewSectionAligner(engine),
		recency: recency,
		logger:  logger.GetGlobalLogger().WithComponent("catalog_builder"),
	}
}

// Fold merges periods in the given order, newest first, starting from an
// empty catalog. Each period's aligned rows are recorded on it.
func (b *CatalogBuilder) Fold(periods []*Period) (*models.Catalog, []*MergeStats) {
	catalog := models.NewCatalog()
	stats := make([]*MergeStats, 0, len(periods))
	for _, p := range periods {
		var s *MergeStats
		catalog, s = b.MergePeriod(catalog, p)
		stats = append(stats, s)
	}
	return catalog, stats
}

// MergePeriod merges one period into a copy of catalog and returns the copy.
// The input catalog is left untouched.
func (b *CatalogBuilder) MergePeriod(catalog *models.Catalog, period *Period) (*models.Catalog, *MergeStats) {
	next := catalog.Clone()
	rows := cloneRows(period.Rows)
	stats := &MergeStats{Period: period.ID, Rows: len(rows)}

	alignment := b.aligner.Align(next, rows)
	stats.SectionsByIdentity, stats.SectionsBySimilarity, stats.SectionsCreated = alignment.Counts()

	for _, cs := range alignment.Sections {
		b.mergeSection(next, cs, period.ID, stats)
	}

	period.Aligned = rows

	b.logger.WithFields(logger.Fields{
		"period":                 period.ID,
		"rows":                   stats.Rows,
		"created":                stats.Created,
		"merged":                 stats.Merged,
		"sections_by_identity":   stats.SectionsByIdentity,
		"sections_by_similarity": stats.SectionsBySimilarity,
		"sections_created":       stats.SectionsCreated,
		"flagged":                stats.Flagged,
	}).Debug("Merged filing period")

	return next, stats
}

func (b *CatalogBuilder) mergeSection(catalog *models.Catalog, cs *matcher.CandidateSection, filing string, stats *MergeStats) {
	collisions := matcher.DetectCollisions(cs.Rows)

	var targets []*models.CatalogEntry
	if cs.Bound() {
		targets = catalog.EntriesInSection(cs.Target)
	}
	itemMap := b.engine.BuildItemMap(cs.Rows, targets, collisions)

	for i, row := range cs.Rows {
		if entry, _, ok := itemMap.Match(i); ok && b.confirm(entry, row, collisions) {
			b.mergeValues(entry, row, filing, stats)
			stats.Merged++
			continue
		}
		b.createEntry(catalog, cs, row, targets, collisions, filing, stats)
	}
}

// confirm re-checks a greedy match: same section, and the waterfall still holds
func (b *CatalogBuilder) confirm(entry *models.CatalogEntry, row *models.Row, collisions map[string]bool) bool {
	if entry.SectionKey() != row.SectionKey() {
		return false
	}
	return b.engine.MatchRows(entry.AsRow(), row, matcher.IsColliding(row, collisions)).Matched()
}

// mergeValues is the single update path for matched rows. A period key
// already present is overwritten only by a more recent filing.
func (b *CatalogBuilder) mergeValues(entry *models.CatalogEntry, row *models.Row, filing string, stats *MergeStats) {
	for period, cell := range row.Values {
		cell = cell.OrZero()
		if _, exists := entry.Values[period]; !exists {
			entry.Values[period] = cell
			entry.Sources[period] = filing
			stats.ValuesAdded++
			continue
		}
		if b.recency.Newer(filing, entry.Sources[period]) {
			entry.Values[period] = cell
			entry.Sources[period] = filing
			stats.ValuesOverwritten++
		}
	}
	if _, ok := entry.Positions[filing]; !ok {
		entry.Positions[filing] = row.Position
	}
}

func (b *CatalogBuilder) createEntry(
	catalog *models.Catalog,
	cs *matcher.CandidateSection,
	row *models.Row,
	targets []*models.CatalogEntry,
	collisions map[string]bool,
	filing string,
	stats *MergeStats,
) {
	identity := matcher.IdentityFor(row, collisions)
	section := row.SectionKey()
	key := models.CatalogKey{
		Section: section,
		Item:    identity,
		Ordinal: catalog.NextOrdinal(section, identity),
	}

	entry := models.NewCatalogEntry(key, row)
	for period, cell := range row.Values {
		entry.Values[period] = cell.OrZero()
		entry.Sources[period] = filing
	}
	entry.Positions[filing] = row.Position

	var finding *matcher.ReviewFinding
	if key.Ordinal > 0 {
		finding = matcher.DuplicateIdentityFinding(key)
	} else if cs.Bound() {
		finding, _ = b.engine.FindNearDuplicate(row, targets)
	}
	if finding != nil {
		entry.NeedsReview = true
		entry.ReviewReason = finding.Reason
		stats.Flagged++
		b.logger.WithFields(logger.Fields{
			"period":  filing,
			"section": entry.SectionLabel,
			"item":    entry.ItemLabel,
			"reason":  finding.Reason,
		}).Info("New item flagged for review")
	} else if cs.Bound() {
		b.logger.WithFields(logger.Fields{
			"period":  filing,
			"section": entry.SectionLabel,
			"item":    entry.ItemLabel,
		}).Debug("No match in bound section, item treated as new")
	}

	if err := catalog.Add(entry); err != nil {
		b.logger.WithError(err).Error("Failed to add catalog entry")
		return
	}
	stats.Created++
}
