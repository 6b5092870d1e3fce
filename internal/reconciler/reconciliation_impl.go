package reconciler

import (
	"fmt"
	"runtime/debug"
	"time"

	"golang-statement-reconciler/internal/matcher"
	"golang-statement-reconciler/internal/models"
	"golang-statement-reconciler/internal/normalize"
	"golang-statement-reconciler/pkg/errors"
	"golang-statement-reconciler/pkg/logger"
)

// Engine turns per-period statement documents into reconciled catalogs
type Engine struct {
	config  *Config
	matcher *matcher.MatchingEngine
	logger  logger.Logger
}

// NewEngine creates an engine. A nil config uses DefaultConfig.
func NewEngine(config *Config) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "reconciler", config, err)
	}

	return &Engine{
		config:  config,
		matcher: matcher.NewMatchingEngine(config.Matching),
		logger:  logger.GetGlobalLogger().WithComponent("reconciliation_engine"),
	}, nil
}

// Config returns the engine configuration
func (e *Engine) Config() *Config {
	return e.config
}

// BuildCatalog reconciles one statement type across filing periods. docs maps
// the caller's period key to that period's document; documents that carry an
// extraction error or no items are skipped.
func (e *Engine) BuildCatalog(statement models.StatementType, docs map[string]*models.Document) *StatementResult {
	start := time.Now()
	result := EmptyStatementResult(statement)
	log := e.logger.WithField("statement", statement.String())

	periods, skipped := e.preparePeriods(statement, docs)
	result.Stats.SkippedFilings = skipped
	if len(periods) == 0 {
		log.WithField("skipped", skipped).Info("No usable filings, returning empty catalog")
		result.Stats.ProcessingTime = time.Since(start)
		return result
	}

	ids := make([]string, len(periods))
	for i, p := range periods {
		ids[i] = p.ID
	}

	builder := NewCatalogBuilder(e.matcher, NewRecency(ids))
	catalog, merges := builder.Fold(periods)

	var corrections []*Correction
	if e.config.EnablePresenceCheck {
		corrections = NewPresenceReconciler(e.matcher, e.config.Authority).Reconcile(catalog, periods)
	}

	periodKeys := unionPeriodKeys(periods)
	ordered := NewOrderer().Order(catalog, periods, periodKeys)

	result.Catalog = ordered
	result.Periods = periodKeys
	result.SourceURLs = sourceURLs(periods)
	result.Corrections = corrections

	stats := result.Stats
	stats.Filings = len(periods)
	stats.PeriodMerges = merges
	stats.Entries = ordered.Len()
	stats.Sections = len(ordered.Sections())
	stats.Corrections = len(corrections)
	for _, p := range periods {
		stats.Rows += len(p.Rows)
	}
	for _, entry := range ordered.Entries() {
		if entry.NeedsReview {
			stats.Flagged++
		}
	}
	stats.ProcessingTime = time.Since(start)

	log.WithFields(logger.Fields{
		"filings":     stats.Filings,
		"skipped":     stats.SkippedFilings,
		"entries":     stats.Entries,
		"sections":    stats.Sections,
		"flagged":     stats.Flagged,
		"corrections": stats.Corrections,
		"duration":    stats.ProcessingTime.String(),
	}).Info("Statement reconciled")

	return result
}

// preparePeriods flattens usable documents ordered newest first. When two
// keys normalize to the same filing ID only the first in that order is kept.
func (e *Engine) preparePeriods(statement models.StatementType, docs map[string]*models.Document) ([]*Period, int) {
	keys := make([]string, 0, len(docs))
	for k := range docs {
		keys = append(keys, k)
	}

	var periods []*Period
	seen := make(map[string]string)
	skipped := 0
	for _, key := range normalize.SortPeriodsNewestFirst(keys) {
		doc := docs[key]
		if !doc.HasData() {
			skipped++
			fields := logger.Fields{"statement": statement.String(), "period": key}
			if doc != nil && doc.Error != "" {
				fields["error"] = doc.Error
			}
			e.logger.WithFields(fields).Warn("Skipping filing without usable data")
			continue
		}

		period := NewPeriod(key, doc)
		if kept, dup := seen[period.ID]; dup {
			skipped++
			e.logger.WithFields(logger.Fields{
				"statement": statement.String(),
				"period":    key,
				"kept":      kept,
				"filing_id": period.ID,
			}).Warn("Duplicate filing period, keeping the first")
			continue
		}
		seen[period.ID] = key
		periods = append(periods, period)
	}
	return periods, skipped
}

// BuildAll reconciles every configured statement type. input maps period key
// to that period's documents by statement type. A failure in one statement
// type yields an empty catalog for it only; BuildAll itself never panics.
func (e *Engine) BuildAll(input map[string]map[models.StatementType]*models.Document) (result *AggregateResult) {
	types := e.config.StatementTypes
	result = NewAggregateResult(types)

	defer func() {
		if r := recover(); r != nil {
			// The engine logger may be what failed.
			logger.GetGlobalLogger().WithComponent("reconciliation_engine").WithFields(logger.Fields{
				"panic": fmt.Sprintf("%v", r),
				"stack": string(debug.Stack()),
			}).Error("Aggregate reconciliation failed, returning empty catalogs")

			empty := NewAggregateResult(types)
			empty.Error = errors.InternalError(errors.CodePanicRecovered, "aggregate reconciliation", fmt.Errorf("%v", r)).Error()
			result = empty
		}
	}()

	for _, st := range types {
		docs := make(map[string]*models.Document)
		for period, byType := range input {
			if doc, ok := byType[st]; ok {
				docs[period] = doc
			}
		}
		result.Statements[st] = e.buildIsolated(st, docs)
	}

	return result
}

func (e *Engine) buildIsolated(statement models.StatementType, docs map[string]*models.Document) (result *StatementResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithFields(logger.Fields{
				"statement": statement.String(),
				"panic":     fmt.Sprintf("%v", r),
				"stack":     string(debug.Stack()),
			}).Error("Statement reconciliation failed, returning empty catalog")

			result = EmptyStatementResult(statement)
			result.Error = errors.ReconciliationError(errors.CodeMergeFailed, statement.String(), "build catalog", fmt.Errorf("%v", r)).Error()
		}
	}()

	return e.BuildCatalog(statement, docs)
}

func unionPeriodKeys(periods []*Period) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, p := range periods {
		for k := range p.PeriodKeys() {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return normalize.SortPeriodsNewestFirst(keys)
}

func sourceURLs(periods []*Period) []string {
	urls := []string{}
	seen := make(map[string]bool)
	for _, p := range periods {
		u := p.Document.Provenance()
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	return urls
}
