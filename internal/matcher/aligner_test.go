package matcher

import (
	"testing"

	"golang-statement-reconciler/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestCatalog(t *testing.T, entries ...*models.CatalogEntry) *models.Catalog {
	t.Helper()
	catalog := models.NewCatalog()
	for _, e := range entries {
		require.NoError(t, catalog.Add(e))
	}
	return catalog
}

func currentAssetsCatalog(t *testing.T, sectionLabel string) *models.Catalog {
	return createTestCatalog(t,
		createTestEntry(sectionLabel, "", "Cash and cash equivalents", map[string]string{"2024": "100"}),
		createTestEntry(sectionLabel, "", "Accounts receivable", map[string]string{"2024": "50"}),
		createTestEntry(sectionLabel, "", "Inventories", map[string]string{"2024": "30"}),
		createTestEntry(sectionLabel, "", "Prepaid expenses", map[string]string{"2024": "10"}),
		createTestEntry(sectionLabel, "", "Other current assets", map[string]string{"2024": "5"}),
	)
}

func currentAssetsRows(sectionLabel string) []*models.Row {
	return []*models.Row{
		createTestRow(sectionLabel, "", "Cash and cash equivalents", map[string]string{"2023": "90"}),
		createTestRow(sectionLabel, "", "Accounts receivable", map[string]string{"2023": "45"}),
		createTestRow(sectionLabel, "", "Inventories", map[string]string{"2023": "28"}),
		createTestRow(sectionLabel, "", "Prepaid expenses", map[string]string{"2023": "9"}),
		createTestRow(sectionLabel, "", "Deferred tax assets", map[string]string{"2023": "3"}),
	}
}

func TestSectionAligner_EmptyCatalog(t *testing.T) {
	rows := currentAssetsRows("Current Assets")
	alignment := NewSectionAligner(nil).Align(models.NewCatalog(), rows)

	require.Len(t, alignment.Sections, 1)
	assert.False(t, alignment.Sections[0].Bound())
	assert.Len(t, alignment.Sections[0].Rows, 5)
}

func TestSectionAligner_LabelDriftBindsByIdentity(t *testing.T) {
	catalog := currentAssetsCatalog(t, "Current Assets")
	rows := currentAssetsRows("Current assets:")

	alignment := NewSectionAligner(nil).Align(catalog, rows)
	require.Len(t, alignment.Sections, 1)

	cs := alignment.Sections[0]
	assert.Equal(t, PhaseIdentity, cs.Phase)
	assert.Equal(t, "current assets", cs.Target)
	for _, r := range rows {
		assert.Equal(t, "Current Assets", r.SectionLabel, "rows take the target section's labeling")
	}
}

func TestSectionAligner_SimilarityFallback(t *testing.T) {
	catalog := currentAssetsCatalog(t, "Current Assets")
	rows := currentAssetsRows("Short-term holdings")

	sa := NewSectionAligner(nil)
	assert.InDelta(t, 0.8, sa.MatchRatio(rows, catalog.EntriesInSection("current assets")), 1e-9)

	alignment := sa.Align(catalog, rows)
	cs := alignment.Sections[0]
	assert.Equal(t, PhaseSimilarity, cs.Phase)
	assert.InDelta(t, 0.8, cs.Ratio, 1e-9)
	assert.Equal(t, "Current Assets", rows[4].SectionLabel)

	identity, similarity, created := alignment.Counts()
	assert.Equal(t, 0, identity)
	assert.Equal(t, 1, similarity)
	assert.Equal(t, 0, created)

	target, ok := alignment.TargetOf("short term holdings")
	assert.True(t, ok)
	assert.Equal(t, "current assets", target)
}

func TestSectionAligner_BelowThresholdCreatesSection(t *testing.T) {
	config := DefaultMatchingConfig()
	config.SectionRatioThreshold = 0.9
	catalog := currentAssetsCatalog(t, "Current Assets")
	rows := currentAssetsRows("Short-term holdings")

	alignment := NewSectionAligner(NewMatchingEngine(config)).Align(catalog, rows)
	assert.False(t, alignment.Sections[0].Bound())
	assert.Equal(t, "Short-term holdings", rows[0].SectionLabel, "unbound rows keep their labeling")
}

func TestSectionAligner_FallbackDisabled(t *testing.T) {
	config := DefaultMatchingConfig()
	config.EnableSectionFallback = false
	catalog := currentAssetsCatalog(t, "Current Assets")

	alignment := NewSectionAligner(NewMatchingEngine(config)).Align(catalog, currentAssetsRows("Short-term holdings"))
	assert.Equal(t, PhaseNew, alignment.Sections[0].Phase)
}

func TestSectionAligner_OneToOne(t *testing.T) {
	assets := createTestEntry("Assets", "", "Cash", nil)
	assets.SectionGaap = "AssetsAbstract"
	catalog := createTestCatalog(t, assets)

	rows := []*models.Row{
		{SectionGaap: "AssetsAbstract", SectionLabel: "Total assets", ItemLabel: "Cash"},
		{SectionLabel: "Assets", ItemLabel: "Cash"},
	}

	alignment := NewSectionAligner(nil).Align(catalog, rows)
	require.Len(t, alignment.Sections, 2)
	assert.Equal(t, PhaseIdentity, alignment.Sections[0].Phase, "first candidate claims the section by tag")
	assert.Equal(t, PhaseNew, alignment.Sections[1].Phase, "second candidate cannot bind the claimed section")
}

func TestSectionAligner_FallbackTieGoesToFirstSection(t *testing.T) {
	catalog := createTestCatalog(t,
		createTestEntry("First", "", "Shared item", nil),
		createTestEntry("Second", "", "Shared item", nil),
	)
	rows := []*models.Row{createTestRow("Third", "", "Shared item", nil)}

	alignment := NewSectionAligner(nil).Align(catalog, rows)
	cs := alignment.Sections[0]
	assert.Equal(t, PhaseSimilarity, cs.Phase)
	assert.Equal(t, "first", cs.Target)
}

func TestSectionAligner_GroupsRowsByFirstAppearance(t *testing.T) {
	rows := []*models.Row{
		createTestRow("B", "", "x", nil),
		createTestRow("A", "", "y", nil),
		createTestRow("b", "", "z", nil),
	}
	alignment := NewSectionAligner(nil).Align(nil, rows)
	require.Len(t, alignment.Sections, 2)
	assert.Equal(t, "b", alignment.Sections[0].Key)
	assert.Len(t, alignment.Sections[0].Rows, 2)
	assert.Equal(t, "a", alignment.Sections[1].Key)
}
