package reconciler

import (
	"fmt"
	"sort"

	"golang-statement-reconciler/internal/matcher"
	"golang-statement-reconciler/internal/models"
	"golang-statement-reconciler/pkg/logger"
)

// PresenceReconciler zeroes catalog values whose item cannot be found in the
// authoritative filing for that period key
type PresenceReconciler struct {
	engine *matcher.MatchingEngine
	mode   AuthorityMode
	logger logger.Logger
}

// NewPresenceReconciler creates a presence reconciler
func NewPresenceReconciler(engine *matcher.MatchingEngine, mode AuthorityMode) *PresenceReconciler {
	if engine == nil {
		engine = matcher.NewMatchingEngine(nil)
	}
	if !mode.IsValid() {
		mode = AuthorityOwnPeriod
	}
	return &PresenceReconciler{
		engine: engine,
		mode:   mode,
		logger: logger.GetGlobalLogger().WithComponent("presence_reconciler"),
	}
}

type authoritySource struct {
	period    *Period
	bySection map[string][]*models.Row
}

// Authorities maps each period key to the ID of the filing trusted for it.
// periods must be ordered newest first.
func (pr *PresenceReconciler) Authorities(periods []*Period) map[string]string {
	out := make(map[string]string)
	for _, p := range periods {
		for k := range p.PeriodKeys() {
			if _, ok := out[k]; !ok {
				out[k] = p.ID
			}
		}
	}

	if pr.mode == AuthorityOwnPeriod {
		for _, p := range periods {
			if p.PeriodKeys()[p.ID] {
				out[p.ID] = p.ID
			}
		}
	}
	return out
}

// Reconcile checks every (entry, period key) pair and returns the corrections
// it made, in catalog order. periods must be ordered newest first and already
// folded, so their aligned rows share the catalog's section identities.
func (pr *PresenceReconciler) Reconcile(catalog *models.Catalog, periods []*Period) []*Correction {
	authorities := pr.Authorities(periods)

	sources := make(map[string]*authoritySource, len(periods))
	for _, p := range periods {
		if _, exists := sources[p.ID]; exists {
			continue
		}
		src := &authoritySource{period: p, bySection: make(map[string][]*models.Row)}
		for _, r := range p.PresenceRows() {
			src.bySection[r.SectionKey()] = append(src.bySection[r.SectionKey()], r)
		}
		sources[p.ID] = src
	}

	var corrections []*Correction
	zeroedItems := 0
	for _, entry := range catalog.Entries() {
		keys := make([]string, 0, len(entry.Values))
		for k := range entry.Values {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		zeroed := false
		for _, period := range keys {
			authority, ok := authorities[period]
			if !ok {
				continue
			}
			src := sources[authority]

			reason := ""
			rows := src.bySection[entry.SectionKey()]
			if len(rows) == 0 {
				reason = fmt.Sprintf("section %q not present in filing %s", entry.SectionLabel, authority)
			} else if !pr.presentIn(entry, rows, period) {
				reason = fmt.Sprintf("item not found in filing %s", authority)
			}
			if reason == "" {
				continue
			}

			previous := entry.Values[period]
			if previous.IsZero() {
				continue
			}
			entry.Values[period] = models.ZeroCell()
			zeroed = true
			corrections = append(corrections, &Correction{
				Key:          entry.Key.String(),
				SectionLabel: entry.SectionLabel,
				ItemLabel:    entry.ItemLabel,
				Period:       period,
				Authority:    authority,
				Previous:     previous,
				Reason:       reason,
			})
		}
		if zeroed {
			zeroedItems++
		}
	}

	if len(corrections) > 0 {
		pr.logger.WithFields(logger.Fields{
			"items_zeroed":  zeroedItems,
			"values_zeroed": len(corrections),
			"authority":     string(pr.mode),
		}).Info("Presence check zeroed values not confirmed by their authoritative filing")
	}

	return corrections
}

func (pr *PresenceReconciler) presentIn(entry *models.CatalogEntry, rows []*models.Row, period string) bool {
	candidate := entry.AsRow()
	overlap := []string{period}
	for _, r := range rows {
		if pr.engine.Match(candidate, r, overlap, false).Matched() {
			return true
		}
	}
	return false
}
