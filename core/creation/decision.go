// Package creation implements the deterministic decision tree that governs
// title insertion and cursor movement when a document is created. Given fixed
// configuration, content, and the outcome of the single asynchronous
// template-applied event, DetermineActions is a pure function: identical
// inputs always produce the identical action set and decision path.
package creation

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/adalundhe/titlekeep/core/config"
	"github.com/adalundhe/titlekeep/core/events"
	"github.com/adalundhe/titlekeep/core/exclude"
	"github.com/adalundhe/titlekeep/core/vault"
)

// =============================================================================
// Actions
// =============================================================================

// Actions is the decision tree's verdict for one created document.
type Actions struct {
	// ShouldInsertTitle asks the creation handler to insert a derived
	// heading into the new document.
	ShouldInsertTitle bool

	// ShouldMoveCursor asks the creation handler to move the cursor.
	ShouldMoveCursor bool

	// PlaceCursorAtEnd selects end-of-content placement over start.
	PlaceCursorAtEnd bool

	// DecisionPath records every node visited, e.g. "1Y → 3Y → 4N → 14A → 15N".
	// It is part of the observable contract and is asserted by tests.
	DecisionPath string
}

// =============================================================================
// Context
// =============================================================================

// TemplateWaiter blocks for the integration's template-applied event on one
// specific path. *events.TemplateBus satisfies it.
type TemplateWaiter interface {
	WaitFor(ctx context.Context, path string, timeout time.Duration) (events.TemplateAppliedEvent, bool)
}

// Context carries the per-creation inputs that are not configuration.
type Context struct {
	// InitialContent is the document content observed at creation.
	InitialContent string

	// PluginLoadTime anchors the template-wait budget for documents whose
	// creation predates titlekeep's own startup.
	PluginLoadTime time.Time

	// Probe reads the templating integration's settings.
	Probe TemplateProbe

	// Waiter delivers the template-applied event. Nil disables waiting.
	Waiter TemplateWaiter

	// Clock is injectable for tests; nil means time.Now.
	Clock func() time.Time
}

// =============================================================================
// Tree Evaluation
// =============================================================================

// Tree evaluates creation decisions against one configuration snapshot.
type Tree struct {
	features   config.FeaturesConfig
	exclusions config.ExclusionsConfig
	wait       time.Duration
	folders    *exclude.FolderMatcher
}

// NewTree compiles a decision tree from configuration.
func NewTree(cfg *config.Config) (*Tree, error) {
	folders, err := exclude.NewFolderMatcher(cfg.Exclusions)
	if err != nil {
		return nil, err
	}
	return &Tree{
		features:   cfg.Features,
		exclusions: cfg.Exclusions,
		wait:       cfg.Timing.TemplateWait,
		folders:    folders,
	}, nil
}

// trace accumulates the visited decision nodes.
type trace struct {
	steps []string
}

func (t *trace) visit(step string) {
	t.steps = append(t.steps, step)
}

func (t *trace) path() string {
	return strings.Join(t.steps, " → ")
}

// DetermineActions walks the decision tree for one created document.
func (tr *Tree) DetermineActions(ctx context.Context, doc vault.Document, c Context) Actions {
	t := &trace{}

	// Node 1: neither feature enabled is a terminal no-op.
	if !tr.features.InsertTitle && !tr.features.MoveCursor {
		t.visit("1N")
		return Actions{DecisionPath: t.path()}
	}
	t.visit("1Y")

	// Node 2: folder exclusion, recorded only when folder rules exist.
	if tr.folders.Configured() {
		if tr.folders.Excluded(doc.Folder()) {
			t.visit("2Y")
			return Actions{DecisionPath: t.path()}
		}
		t.visit("2N")
	}

	// Node 3: without tag/property exclusions the template probes are
	// irrelevant; go straight to the settings hub.
	if !tr.exclusions.HasTagOrPropertyExclusions() {
		t.visit("3N")
		return tr.settingsHub(t, c.InitialContent)
	}
	t.visit("3Y")

	content, stop := tr.templatePhase(ctx, t, doc, c)
	if stop {
		return Actions{DecisionPath: t.path()}
	}
	return tr.settingsHub(t, content)
}

// templatePhase covers nodes 4-13: probing the templating integration and,
// when a rule targets this document, waiting for its template-applied event.
// It returns the content the settings hub should inspect and whether the
// tree terminated.
func (tr *Tree) templatePhase(ctx context.Context, t *trace, doc vault.Document, c Context) (string, bool) {
	content := c.InitialContent

	// Node 4: integration detected?
	if c.Probe == nil || !c.Probe.Detected() {
		t.visit("4N")
		return content, false
	}
	t.visit("4Y")

	// Node 5: configured to trigger on creation?
	if !c.Probe.TriggersOnCreate() {
		t.visit("5N")
		return content, false
	}
	t.visit("5Y")

	// Nodes 6-7: documents inside the template-source folder are templates
	// themselves and are never processed.
	if folder := c.Probe.TemplateFolder(); folder != "" {
		t.visit("6Y")
		if underFolder(doc.Path, folder) {
			t.visit("7Y")
			return content, true
		}
		t.visit("7N")
	} else {
		t.visit("6N")
	}

	// Nodes 8-11: does any folder or regex rule target this document?
	matched := false
	if c.Probe.HasFolderRules() {
		t.visit("8Y")
		if c.Probe.MatchesFolderRule(doc.Folder()) {
			t.visit("9Y")
			matched = true
		} else {
			t.visit("9N")
		}
	} else {
		t.visit("8N")
	}
	if !matched {
		if c.Probe.HasRegexRules() {
			t.visit("10Y")
			if c.Probe.MatchesRegexRule(doc.Path) {
				t.visit("11Y")
				matched = true
			} else {
				t.visit("11N")
			}
		} else {
			t.visit("10N")
		}
	}
	if !matched {
		return content, false
	}

	// Node 12: wait for the template-applied event. The budget is wall
	// clock measured from document creation, so time already spent before
	// reaching this node is subtracted.
	event, fired := tr.waitForTemplate(ctx, doc, c)
	if !fired {
		t.visit("12N")
		return content, false
	}
	t.visit("12Y")
	content = event.Content

	// Node 13: the populated template content may carry exclusion tags or
	// properties.
	if exclude.ContentHasTag(content, tr.exclusions.Tags) ||
		exclude.ContentHasProperty(content, tr.exclusions.Properties) {
		t.visit("13Y")
		return content, true
	}
	t.visit("13N")
	return content, false
}

func (tr *Tree) waitForTemplate(ctx context.Context, doc vault.Document, c Context) (events.TemplateAppliedEvent, bool) {
	if c.Waiter == nil {
		return events.TemplateAppliedEvent{}, false
	}

	clock := c.Clock
	if clock == nil {
		clock = time.Now
	}

	start := doc.CreatedAt
	if c.PluginLoadTime.After(start) {
		start = c.PluginLoadTime
	}

	budget := tr.wait - clock().Sub(start)
	if budget <= 0 {
		return events.TemplateAppliedEvent{}, false
	}
	return c.Waiter.WaitFor(ctx, doc.Path, budget)
}

// settingsHub covers nodes 14-18: which features are enabled, whether the
// document already has content, and where the cursor should land.
func (tr *Tree) settingsHub(t *trace, content string) Actions {
	hasContent := vault.HasContentBesidesHeading(content)

	switch {
	case tr.features.InsertTitle && !tr.features.MoveCursor:
		t.visit("14A")
		if hasContent {
			t.visit("15Y")
			return Actions{DecisionPath: t.path()}
		}
		t.visit("15N")
		return Actions{ShouldInsertTitle: true, DecisionPath: t.path()}

	case !tr.features.InsertTitle && tr.features.MoveCursor:
		t.visit("14B")
		if tr.features.PlaceCursorAtEnd {
			t.visit("16Y")
			return Actions{ShouldMoveCursor: true, PlaceCursorAtEnd: true, DecisionPath: t.path()}
		}
		t.visit("16N")
		return Actions{ShouldMoveCursor: true, DecisionPath: t.path()}

	default:
		t.visit("14C")
		if tr.features.PlaceCursorAtEnd {
			t.visit("17Y")
			if hasContent {
				t.visit("18Y")
				return Actions{ShouldMoveCursor: true, PlaceCursorAtEnd: true, DecisionPath: t.path()}
			}
			// Inserting into an empty document: end placement would
			// land inside the inserted heading, so start placement
			// wins.
			t.visit("18N")
			return Actions{ShouldInsertTitle: true, ShouldMoveCursor: true, DecisionPath: t.path()}
		}
		t.visit("17N")
		if hasContent {
			t.visit("18Y")
			return Actions{ShouldMoveCursor: true, DecisionPath: t.path()}
		}
		t.visit("18N")
		return Actions{ShouldInsertTitle: true, ShouldMoveCursor: true, DecisionPath: t.path()}
	}
}

// underFolder reports whether docPath sits at or below folder.
func underFolder(docPath, folder string) bool {
	docPath = strings.Trim(path.Clean(docPath), "/")
	return strings.EqualFold(path.Dir(docPath), folder) ||
		strings.HasPrefix(strings.ToLower(docPath), strings.ToLower(folder)+"/")
}
