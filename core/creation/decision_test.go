package creation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/titlekeep/core/config"
	"github.com/adalundhe/titlekeep/core/events"
	"github.com/adalundhe/titlekeep/core/vault"
)

// =============================================================================
// Test Helpers
// =============================================================================

func newTree(t *testing.T, mutate func(*config.Config)) *Tree {
	t.Helper()

	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	tree, err := NewTree(cfg)
	require.NoError(t, err)
	return tree
}

func newProbe(t *testing.T, cfg config.TemplatesConfig) *StaticProbe {
	t.Helper()
	p, err := NewStaticProbe(cfg)
	require.NoError(t, err)
	return p
}

// stubWaiter is a TemplateWaiter with a canned answer.
type stubWaiter struct {
	event events.TemplateAppliedEvent
	fired bool
}

func (w *stubWaiter) WaitFor(ctx context.Context, path string, timeout time.Duration) (events.TemplateAppliedEvent, bool) {
	if !w.fired {
		return events.TemplateAppliedEvent{}, false
	}
	return w.event, true
}

func newDoc(path string) vault.Document {
	return vault.Document{Path: path, CreatedAt: time.Now()}
}

// =============================================================================
// Terminal and Hub Paths
// =============================================================================

func TestDetermineActions_BothFeaturesOff(t *testing.T) {
	t.Parallel()

	tree := newTree(t, nil)
	actions := tree.DetermineActions(context.Background(), newDoc("a.md"), Context{})

	assert.False(t, actions.ShouldInsertTitle)
	assert.False(t, actions.ShouldMoveCursor)
	assert.Equal(t, "1N", actions.DecisionPath)
}

func TestDetermineActions_InsertOnlyEmptyDocument(t *testing.T) {
	t.Parallel()

	tree := newTree(t, func(cfg *config.Config) {
		cfg.Features.InsertTitle = true
		cfg.Exclusions.Tags = []string{"no-rename"}
	})

	actions := tree.DetermineActions(context.Background(), newDoc("a.md"), Context{
		InitialContent: "",
	})

	assert.True(t, actions.ShouldInsertTitle)
	assert.False(t, actions.ShouldMoveCursor)
	assert.Equal(t, "1Y → 3Y → 4N → 14A → 15N", actions.DecisionPath)
}

func TestDetermineActions_InsertOnlyWithContent(t *testing.T) {
	t.Parallel()

	tree := newTree(t, func(cfg *config.Config) {
		cfg.Features.InsertTitle = true
		cfg.Exclusions.Tags = []string{"no-rename"}
	})

	actions := tree.DetermineActions(context.Background(), newDoc("a.md"), Context{
		InitialContent: "Existing text.",
	})

	assert.False(t, actions.ShouldInsertTitle)
	assert.Equal(t, "1Y → 3Y → 4N → 14A → 15Y", actions.DecisionPath)
}

func TestDetermineActions_MoveOnly(t *testing.T) {
	t.Parallel()

	tree := newTree(t, func(cfg *config.Config) {
		cfg.Features.MoveCursor = true
		cfg.Features.PlaceCursorAtEnd = true
	})

	actions := tree.DetermineActions(context.Background(), newDoc("a.md"), Context{
		InitialContent: "anything",
	})

	assert.True(t, actions.ShouldMoveCursor)
	assert.True(t, actions.PlaceCursorAtEnd)
	assert.Equal(t, "1Y → 3N → 14B → 16Y", actions.DecisionPath)
}

func TestDetermineActions_BothFeaturesEndPlacementWithContent(t *testing.T) {
	t.Parallel()

	tree := newTree(t, func(cfg *config.Config) {
		cfg.Features.InsertTitle = true
		cfg.Features.MoveCursor = true
		cfg.Features.PlaceCursorAtEnd = true
		cfg.Exclusions.Tags = []string{"no-rename"}
	})

	actions := tree.DetermineActions(context.Background(), newDoc("a.md"), Context{
		InitialContent: "Existing text.",
	})

	assert.False(t, actions.ShouldInsertTitle)
	assert.True(t, actions.ShouldMoveCursor)
	assert.True(t, actions.PlaceCursorAtEnd)
	assert.Equal(t, "1Y → 3Y → 4N → 14C → 17Y → 18Y", actions.DecisionPath)
}

func TestDetermineActions_BothFeaturesEmptyDocumentOverridesEndPlacement(t *testing.T) {
	t.Parallel()

	tree := newTree(t, func(cfg *config.Config) {
		cfg.Features.InsertTitle = true
		cfg.Features.MoveCursor = true
		cfg.Features.PlaceCursorAtEnd = true
	})

	actions := tree.DetermineActions(context.Background(), newDoc("a.md"), Context{
		InitialContent: "",
	})

	assert.True(t, actions.ShouldInsertTitle)
	assert.True(t, actions.ShouldMoveCursor)
	assert.False(t, actions.PlaceCursorAtEnd, "start placement wins when inserting into an empty document")
	assert.Equal(t, "1Y → 3N → 14C → 17Y → 18N", actions.DecisionPath)
}

// =============================================================================
// Folder Exclusion Node
// =============================================================================

func TestDetermineActions_FolderNodeOnlyRecordedWhenConfigured(t *testing.T) {
	t.Parallel()

	// No folder rules: node 2 never appears in the path.
	plain := newTree(t, func(cfg *config.Config) {
		cfg.Features.InsertTitle = true
	})
	actions := plain.DetermineActions(context.Background(), newDoc("notes/a.md"), Context{})
	assert.Equal(t, "1Y → 3N → 14A → 15N", actions.DecisionPath)

	// Folder rules present and the document passes: 2N is recorded.
	scoped := newTree(t, func(cfg *config.Config) {
		cfg.Features.InsertTitle = true
		cfg.Exclusions.Folders = []string{"templates"}
	})
	actions = scoped.DetermineActions(context.Background(), newDoc("notes/a.md"), Context{})
	assert.Equal(t, "1Y → 2N → 3N → 14A → 15N", actions.DecisionPath)
}

func TestDetermineActions_ExcludedFolderIsTerminal(t *testing.T) {
	t.Parallel()

	tree := newTree(t, func(cfg *config.Config) {
		cfg.Features.InsertTitle = true
		cfg.Features.MoveCursor = true
		cfg.Exclusions.Folders = []string{"templates"}
	})

	actions := tree.DetermineActions(context.Background(), newDoc("templates/daily.md"), Context{})

	assert.False(t, actions.ShouldInsertTitle)
	assert.False(t, actions.ShouldMoveCursor)
	assert.Equal(t, "1Y → 2Y", actions.DecisionPath)
}

// =============================================================================
// Template Phase
// =============================================================================

func TestDetermineActions_TemplateNotTriggeringOnCreate(t *testing.T) {
	t.Parallel()

	tree := newTree(t, func(cfg *config.Config) {
		cfg.Features.InsertTitle = true
		cfg.Exclusions.Tags = []string{"no-rename"}
	})
	probe := newProbe(t, config.TemplatesConfig{Enabled: true})

	actions := tree.DetermineActions(context.Background(), newDoc("a.md"), Context{Probe: probe})
	assert.Equal(t, "1Y → 3Y → 4Y → 5N → 14A → 15N", actions.DecisionPath)
}

func TestDetermineActions_DocumentInsideTemplateFolder(t *testing.T) {
	t.Parallel()

	tree := newTree(t, func(cfg *config.Config) {
		cfg.Features.InsertTitle = true
		cfg.Exclusions.Tags = []string{"no-rename"}
	})
	probe := newProbe(t, config.TemplatesConfig{
		Enabled:         true,
		TriggerOnCreate: true,
		TemplateFolder:  "templates",
	})

	actions := tree.DetermineActions(context.Background(), newDoc("templates/daily.md"), Context{Probe: probe})

	assert.False(t, actions.ShouldInsertTitle)
	assert.Equal(t, "1Y → 3Y → 4Y → 5Y → 6Y → 7Y", actions.DecisionPath)
}

func TestDetermineActions_NoRuleTargetsDocument(t *testing.T) {
	t.Parallel()

	tree := newTree(t, func(cfg *config.Config) {
		cfg.Features.InsertTitle = true
		cfg.Exclusions.Tags = []string{"no-rename"}
	})
	probe := newProbe(t, config.TemplatesConfig{
		Enabled:         true,
		TriggerOnCreate: true,
		FolderRules:     []string{"journal"},
	})

	actions := tree.DetermineActions(context.Background(), newDoc("notes/a.md"), Context{Probe: probe})

	assert.True(t, actions.ShouldInsertTitle)
	assert.Equal(t, "1Y → 3Y → 4Y → 5Y → 6N → 8Y → 9N → 10N → 14A → 15N", actions.DecisionPath)
}

func TestDetermineActions_TemplateWaitTimesOut(t *testing.T) {
	t.Parallel()

	tree := newTree(t, func(cfg *config.Config) {
		cfg.Features.InsertTitle = true
		cfg.Exclusions.Tags = []string{"no-rename"}
	})
	probe := newProbe(t, config.TemplatesConfig{
		Enabled:         true,
		TriggerOnCreate: true,
		FolderRules:     []string{"journal"},
	})

	actions := tree.DetermineActions(context.Background(), newDoc("journal/today.md"), Context{
		Probe:  probe,
		Waiter: &stubWaiter{fired: false},
	})

	assert.True(t, actions.ShouldInsertTitle)
	assert.Equal(t, "1Y → 3Y → 4Y → 5Y → 6N → 8Y → 9Y → 12N → 14A → 15N", actions.DecisionPath)
}

func TestDetermineActions_TemplateEventCarriesExclusionTag(t *testing.T) {
	t.Parallel()

	tree := newTree(t, func(cfg *config.Config) {
		cfg.Features.InsertTitle = true
		cfg.Exclusions.Tags = []string{"no-rename"}
	})
	probe := newProbe(t, config.TemplatesConfig{
		Enabled:         true,
		TriggerOnCreate: true,
		RegexRules:      []string{`^journal/`},
	})

	actions := tree.DetermineActions(context.Background(), newDoc("journal/today.md"), Context{
		Probe: probe,
		Waiter: &stubWaiter{
			fired: true,
			event: events.TemplateAppliedEvent{
				Path:    "journal/today.md",
				Content: "---\ntags: [no-rename]\n---\n# Daily",
			},
		},
	})

	assert.False(t, actions.ShouldInsertTitle)
	assert.Equal(t, "1Y → 3Y → 4Y → 5Y → 6N → 8N → 10Y → 11Y → 12Y → 13Y", actions.DecisionPath)
}

func TestDetermineActions_TemplateEventCleanContentReachesHub(t *testing.T) {
	t.Parallel()

	tree := newTree(t, func(cfg *config.Config) {
		cfg.Features.InsertTitle = true
		cfg.Exclusions.Tags = []string{"no-rename"}
	})
	probe := newProbe(t, config.TemplatesConfig{
		Enabled:         true,
		TriggerOnCreate: true,
		RegexRules:      []string{`^journal/`},
	})

	actions := tree.DetermineActions(context.Background(), newDoc("journal/today.md"), Context{
		Probe: probe,
		Waiter: &stubWaiter{
			fired: true,
			event: events.TemplateAppliedEvent{
				Path:    "journal/today.md",
				Content: "# Daily\nTemplated body.",
			},
		},
	})

	// The populated content counts as existing content in the hub.
	assert.False(t, actions.ShouldInsertTitle)
	assert.Equal(t, "1Y → 3Y → 4Y → 5Y → 6N → 8N → 10Y → 11Y → 12Y → 13N → 14A → 15Y", actions.DecisionPath)
}

func TestDetermineActions_WaitBudgetExhaustedBeforeWaiting(t *testing.T) {
	t.Parallel()

	tree := newTree(t, func(cfg *config.Config) {
		cfg.Features.InsertTitle = true
		cfg.Exclusions.Tags = []string{"no-rename"}
	})
	probe := newProbe(t, config.TemplatesConfig{
		Enabled:         true,
		TriggerOnCreate: true,
		FolderRules:     []string{"journal"},
	})

	created := time.Now().Add(-time.Minute)
	doc := vault.Document{Path: "journal/today.md", CreatedAt: created}

	// The waiter would fire, but the wall-clock budget from creation is
	// already spent, so the tree never consults it.
	actions := tree.DetermineActions(context.Background(), doc, Context{
		Probe: probe,
		Waiter: &stubWaiter{
			fired: true,
			event: events.TemplateAppliedEvent{Content: "---\ntags: [no-rename]\n---\n"},
		},
	})

	assert.True(t, actions.ShouldInsertTitle)
	assert.Equal(t, "1Y → 3Y → 4Y → 5Y → 6N → 8Y → 9Y → 12N → 14A → 15N", actions.DecisionPath)
}

func TestDetermineActions_Deterministic(t *testing.T) {
	t.Parallel()

	tree := newTree(t, func(cfg *config.Config) {
		cfg.Features.InsertTitle = true
		cfg.Features.MoveCursor = true
		cfg.Exclusions.Folders = []string{"templates"}
		cfg.Exclusions.Tags = []string{"no-rename"}
	})

	doc := newDoc("notes/a.md")
	c := Context{InitialContent: "Some body."}

	first := tree.DetermineActions(context.Background(), doc, c)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, tree.DetermineActions(context.Background(), doc, c))
	}
}
