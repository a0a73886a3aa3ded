// Package config holds titlekeep settings: feature toggles, exclusion rules,
// title derivation knobs, timing windows, cache sizes, and the templating
// integration's rule set. Settings load from YAML with environment overrides
// and swap atomically so readers never see a half-applied config.
package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Config
// =============================================================================

// Config is the full titlekeep configuration.
type Config struct {
	Features   FeaturesConfig   `yaml:"features"`
	Exclusions ExclusionsConfig `yaml:"exclusions"`
	Title      TitleConfig      `yaml:"title"`
	Timing     TimingConfig     `yaml:"timing"`
	Cache      CacheConfig      `yaml:"cache"`
	Templates  TemplatesConfig  `yaml:"templates"`
}

// FeaturesConfig toggles the user-facing behaviors.
type FeaturesConfig struct {
	RenameOnEdit     bool `yaml:"rename_on_edit"`
	RenameOnCreate   bool `yaml:"rename_on_create"`
	InsertTitle      bool `yaml:"insert_title"`
	MoveCursor       bool `yaml:"move_cursor"`
	PlaceCursorAtEnd bool `yaml:"place_cursor_at_end"`
}

// FolderStrategy selects how the folder list in ExclusionsConfig is read.
type FolderStrategy string

const (
	// StrategyBlacklist treats listed folders as excluded.
	StrategyBlacklist FolderStrategy = "blacklist"

	// StrategyWhitelist treats only listed folders as included.
	StrategyWhitelist FolderStrategy = "whitelist"
)

// ExclusionsConfig scopes which documents titlekeep touches.
type ExclusionsConfig struct {
	FolderStrategy    FolderStrategy `yaml:"folder_strategy"`
	Folders           []string       `yaml:"folders"`
	IncludeSubfolders bool           `yaml:"include_subfolders"`
	Tags              []string       `yaml:"tags"`
	Properties        []string       `yaml:"properties"`
	DisableProperty   string         `yaml:"disable_property"`
}

// HasTagOrPropertyExclusions reports whether any content-based exclusion is
// configured.
func (e ExclusionsConfig) HasTagOrPropertyExclusions() bool {
	return len(e.Tags) > 0 || len(e.Properties) > 0
}

// TitleConfig controls title derivation.
type TitleConfig struct {
	MaxLength          int    `yaml:"max_length"`
	Fallback           string `yaml:"fallback"`
	MermaidPlaceholder string `yaml:"mermaid_placeholder"`
	TablePlaceholder   string `yaml:"table_placeholder"`
	ForbiddenReplace   string `yaml:"forbidden_replace"`
}

// TimingConfig holds the debounce and staleness windows.
type TimingConfig struct {
	CreationDelay       time.Duration `yaml:"creation_delay"`
	Throttle            time.Duration `yaml:"throttle"`
	TemplateWait        time.Duration `yaml:"template_wait"`
	MaintenanceInterval time.Duration `yaml:"maintenance_interval"`
	ContentMaxAge       time.Duration `yaml:"content_max_age"`
	NoticeMinInterval   time.Duration `yaml:"notice_min_interval"`
}

// CacheConfig sizes the cache layer.
type CacheConfig struct {
	ContentCapacity int           `yaml:"content_capacity"`
	ExistenceTTL    time.Duration `yaml:"existence_ttl"`
	DirectReads     bool          `yaml:"direct_reads"`
}

// TemplatesConfig mirrors the templating integration's own settings as a
// read-only probe source for the creation decision tree.
type TemplatesConfig struct {
	Enabled         bool     `yaml:"enabled"`
	TriggerOnCreate bool     `yaml:"trigger_on_create"`
	TemplateFolder  string   `yaml:"template_folder"`
	FolderRules     []string `yaml:"folder_rules"`
	RegexRules      []string `yaml:"regex_rules"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Features: FeaturesConfig{
			RenameOnEdit:   true,
			RenameOnCreate: true,
		},
		Exclusions: ExclusionsConfig{
			FolderStrategy:    StrategyBlacklist,
			IncludeSubfolders: true,
			DisableProperty:   "titlekeep_ignore",
		},
		Title: TitleConfig{
			MaxLength:          100,
			Fallback:           "Untitled",
			MermaidPlaceholder: "Mermaid Diagram",
			TablePlaceholder:   "Table",
		},
		Timing: TimingConfig{
			CreationDelay:       700 * time.Millisecond,
			Throttle:            500 * time.Millisecond,
			TemplateWait:        2 * time.Second,
			MaintenanceInterval: time.Minute,
			ContentMaxAge:       5 * time.Minute,
			NoticeMinInterval:   5 * time.Second,
		},
		Cache: CacheConfig{
			ContentCapacity: 128,
			ExistenceTTL:    5 * time.Second,
		},
	}
}

// =============================================================================
// Manager
// =============================================================================

// Manager provides atomic access to the live configuration.
type Manager struct {
	current   atomic.Pointer[Config]
	path      string
	watcherMu sync.RWMutex
	watchers  []func(*Config)
}

// NewManager creates a manager seeded with defaults. path is the YAML file
// consulted by Load; a missing file is not an error.
func NewManager(path string) *Manager {
	m := &Manager{path: path}
	m.current.Store(DefaultConfig())
	return m
}

// Get returns the live configuration. The returned value must be treated as
// read-only.
func (m *Manager) Get() *Config {
	return m.current.Load()
}

// Load reads the YAML file over defaults, applies environment overrides, and
// swaps the live configuration.
func (m *Manager) Load() error {
	cfg := DefaultConfig()

	if m.path != "" {
		data, err := os.ReadFile(m.path)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		if err == nil {
			if uerr := yaml.Unmarshal(data, cfg); uerr != nil {
				return uerr
			}
		}
	}

	applyEnvironment(cfg)

	m.current.Store(cfg)
	m.notifyWatchers(cfg)
	return nil
}

// Set swaps the live configuration directly. Used by tests and by callers
// that assemble a configuration programmatically.
func (m *Manager) Set(cfg *Config) {
	m.current.Store(cfg)
	m.notifyWatchers(cfg)
}

// OnChange registers a callback invoked after every configuration swap.
func (m *Manager) OnChange(fn func(*Config)) {
	m.watcherMu.Lock()
	m.watchers = append(m.watchers, fn)
	m.watcherMu.Unlock()
}

func (m *Manager) notifyWatchers(cfg *Config) {
	m.watcherMu.RLock()
	watchers := m.watchers
	m.watcherMu.RUnlock()

	for _, fn := range watchers {
		fn(cfg)
	}
}

// =============================================================================
// Environment Overrides
// =============================================================================

func applyEnvironment(cfg *Config) {
	if v := os.Getenv("TITLEKEEP_RENAME_ON_EDIT"); v != "" {
		cfg.Features.RenameOnEdit = isTrue(v)
	}
	if v := os.Getenv("TITLEKEEP_RENAME_ON_CREATE"); v != "" {
		cfg.Features.RenameOnCreate = isTrue(v)
	}
	if v := os.Getenv("TITLEKEEP_INSERT_TITLE"); v != "" {
		cfg.Features.InsertTitle = isTrue(v)
	}
	if v := os.Getenv("TITLEKEEP_MOVE_CURSOR"); v != "" {
		cfg.Features.MoveCursor = isTrue(v)
	}
	if v := os.Getenv("TITLEKEEP_CREATION_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timing.CreationDelay = d
		}
	}
	if v := os.Getenv("TITLEKEEP_THROTTLE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timing.Throttle = d
		}
	}
	if v := os.Getenv("TITLEKEEP_TEMPLATE_WAIT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timing.TemplateWait = d
		}
	}
	if v := os.Getenv("TITLEKEEP_CONTENT_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Cache.ContentCapacity = n
		}
	}
	if v := os.Getenv("TITLEKEEP_DIRECT_READS"); v != "" {
		cfg.Cache.DirectReads = isTrue(v)
	}
}

func isTrue(v string) bool {
	return strings.ToLower(v) == "true" || v == "1"
}
