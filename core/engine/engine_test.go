package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/titlekeep/core/cache"
	"github.com/adalundhe/titlekeep/core/config"
	"github.com/adalundhe/titlekeep/core/creation"
	"github.com/adalundhe/titlekeep/core/events"
	"github.com/adalundhe/titlekeep/core/rename"
	"github.com/adalundhe/titlekeep/core/state"
	"github.com/adalundhe/titlekeep/core/vault"
)

// =============================================================================
// Fixture
// =============================================================================

type fixture struct {
	engine *Engine
	vault  *vault.DirVault
	state  *state.Store
	cache  *cache.Manager
	cfg    *config.Manager
	bus    *events.TemplateBus
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()

	v, err := vault.NewDirVault(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(v.Close)

	cfg := config.DefaultConfig()
	cfg.Timing.CreationDelay = 30 * time.Millisecond
	cfg.Timing.Throttle = 30 * time.Millisecond
	if mutate != nil {
		mutate(cfg)
	}
	cfgManager := config.NewManager("")
	cfgManager.Set(cfg)

	st := state.NewStore()
	ca, err := cache.NewManager(v, cache.DefaultConfig())
	require.NoError(t, err)

	orch, err := rename.New(st, ca, v, nil, cfgManager, nil, nil)
	require.NoError(t, err)

	probe, err := creation.NewStaticProbe(cfg.Templates)
	require.NoError(t, err)
	bus := events.NewTemplateBus()

	e, err := New(Deps{
		Config:       cfgManager,
		State:        st,
		Cache:        ca,
		Orchestrator: orch,
		Probe:        probe,
		Bus:          bus,
		Vault:        v,
	})
	require.NoError(t, err)

	return &fixture{engine: e, vault: v, state: st, cache: ca, cfg: cfgManager, bus: bus}
}

func (f *fixture) writeDoc(t *testing.T, path, content string) {
	t.Helper()
	abs := filepath.Join(f.vault.Root(), filepath.FromSlash(path))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func (f *fixture) waitForRename(t *testing.T, path string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.vault.Exists(path)
	}, 2*time.Second, 10*time.Millisecond, "expected %s to appear", path)
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestEngine_StartTwiceFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.engine.Start(ctx))
	require.ErrorIs(t, f.engine.Start(ctx), ErrAlreadyRunning)
	require.NoError(t, f.engine.Stop())

	// A stopped engine restarts cleanly.
	require.NoError(t, f.engine.Start(ctx))
	require.NoError(t, f.engine.Stop())
}

func TestEngine_StopWithoutStart(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	require.NoError(t, f.engine.Stop())
}

// =============================================================================
// Event Handling Tests
// =============================================================================

func TestEngine_HandleCreated_RenamesAfterDelay(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.writeDoc(t, "Untitled.md", "# Meeting Notes")

	f.engine.HandleCreated(context.Background(), vault.Document{
		Path:      "Untitled.md",
		CreatedAt: time.Now(),
	})

	f.waitForRename(t, "Meeting Notes.md")
	assert.False(t, f.vault.Exists("Untitled.md"))
}

func TestEngine_HandleCreated_IgnoresStartupDiscovery(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.writeDoc(t, "Old.md", "# Different Title")

	// Created before the engine came up: only the cache learns the path.
	f.engine.HandleCreated(context.Background(), vault.Document{
		Path:      "Old.md",
		CreatedAt: time.Now().Add(-time.Hour),
	})

	time.Sleep(150 * time.Millisecond)
	assert.True(t, f.vault.Exists("Old.md"))
	assert.False(t, f.vault.Exists("Different Title.md"))
}

func TestEngine_HandleCreated_RespectsRenameOnCreateToggle(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(cfg *config.Config) {
		cfg.Features.RenameOnCreate = false
	})
	f.writeDoc(t, "Untitled.md", "# Meeting Notes")

	f.engine.HandleCreated(context.Background(), vault.Document{
		Path:      "Untitled.md",
		CreatedAt: time.Now(),
	})

	time.Sleep(150 * time.Millisecond)
	assert.True(t, f.vault.Exists("Untitled.md"))
}

func TestEngine_HandleCreated_DelayCollapsesBurst(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.writeDoc(t, "Untitled.md", "# Final Name")

	doc := vault.Document{Path: "Untitled.md", CreatedAt: time.Now()}
	f.engine.HandleCreated(context.Background(), doc)
	f.engine.HandleCreated(context.Background(), doc)
	f.engine.HandleCreated(context.Background(), doc)

	f.waitForRename(t, "Final Name.md")
}

func TestEngine_HandleDeleted_DropsState(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.state.SetEditorContent("gone.md", "content")
	f.cache.SetContent("gone.md", "content")

	f.engine.HandleDeleted("gone.md")

	_, ok := f.state.EditorContent("gone.md")
	assert.False(t, ok)
	_, ok = f.cache.Content("gone.md")
	assert.False(t, ok)
}

func TestEngine_HandleRenamed_MigratesState(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.state.SetEditorContent("old.md", "# Body")
	f.cache.SetContent("old.md", "# Body")

	f.engine.HandleRenamed("old.md", "new.md")

	snap, ok := f.state.EditorContent("new.md")
	require.True(t, ok)
	assert.Equal(t, "# Body", snap.Content)
	_, ok = f.cache.Content("old.md")
	assert.False(t, ok)
}

func TestEngine_Stop_CancelsPendingWork(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(cfg *config.Config) {
		cfg.Timing.CreationDelay = 200 * time.Millisecond
	})
	f.writeDoc(t, "Untitled.md", "# New Name")

	require.NoError(t, f.engine.Start(context.Background()))
	f.engine.HandleCreated(context.Background(), vault.Document{
		Path:      "Untitled.md",
		CreatedAt: time.Now(),
	})
	require.NoError(t, f.engine.Stop())

	time.Sleep(400 * time.Millisecond)
	assert.True(t, f.vault.Exists("Untitled.md"), "pending timer must not fire after Stop")
}

func TestEngine_HandleCreated_TemplateWaitDoesNotBlockCaller(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(cfg *config.Config) {
		cfg.Features.InsertTitle = true
		cfg.Exclusions.Tags = []string{"draft"}
		cfg.Templates.Enabled = true
		cfg.Templates.TriggerOnCreate = true
		cfg.Templates.FolderRules = []string{"journal"}
		cfg.Timing.TemplateWait = time.Second
	})
	f.writeDoc(t, "journal/Entry.md", "")
	f.writeDoc(t, "Untitled.md", "# Meeting Notes")

	// The first document matches a template folder rule, so its creation
	// decision waits for the template-applied event. The call itself must
	// return at once.
	start := time.Now()
	f.engine.HandleCreated(context.Background(), vault.Document{
		Path:      "journal/Entry.md",
		CreatedAt: time.Now(),
	})
	require.Less(t, time.Since(start), 300*time.Millisecond,
		"HandleCreated must not wait out the template budget")

	// A second document is handled end to end while that wait is pending.
	f.engine.HandleCreated(context.Background(), vault.Document{
		Path:      "Untitled.md",
		CreatedAt: time.Now(),
	})
	f.waitForRename(t, "Meeting Notes.md")
	require.Less(t, time.Since(start), time.Second,
		"second document finished only after the template wait expired")

	// Release the pending waiter.
	f.bus.Publish(events.TemplateAppliedEvent{Path: "journal/Entry.md"})
}

func TestEngine_ConfigReloadDuringCreationHandling(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(cfg *config.Config) {
		cfg.Features.InsertTitle = true
		cfg.Features.RenameOnCreate = false
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			cfg := config.DefaultConfig()
			cfg.Features.InsertTitle = true
			cfg.Features.RenameOnCreate = false
			cfg.Exclusions.Folders = []string{"archive"}
			f.cfg.Set(cfg)
		}
	}()

	for i := 0; i < 200; i++ {
		f.engine.HandleCreated(context.Background(), vault.Document{
			Path:      "Untitled.md",
			CreatedAt: time.Now(),
		})
	}
	<-done
}
