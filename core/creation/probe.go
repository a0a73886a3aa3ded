package creation

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/adalundhe/titlekeep/core/config"
)

// =============================================================================
// TemplateProbe
// =============================================================================

// TemplateProbe is a narrow read-only view of a third-party templating
// integration's configuration. The decision tree only ever reads it; the
// integration's concrete shape stays outside this core.
type TemplateProbe interface {
	// Detected reports whether the integration is installed and enabled.
	Detected() bool

	// TriggersOnCreate reports whether the integration is configured to
	// apply templates on document creation.
	TriggersOnCreate() bool

	// TemplateFolder returns the integration's template-source folder,
	// or "" when none is configured.
	TemplateFolder() string

	// MatchesFolderRule reports whether a folder template rule targets
	// the given document folder.
	MatchesFolderRule(folder string) bool

	// MatchesRegexRule reports whether a regex template rule matches the
	// given document path.
	MatchesRegexRule(docPath string) bool

	// HasFolderRules and HasRegexRules report whether rules of each kind
	// are configured at all.
	HasFolderRules() bool
	HasRegexRules() bool
}

// =============================================================================
// StaticProbe
// =============================================================================

// StaticProbe is a TemplateProbe backed by titlekeep's own configuration
// mirror of the integration settings. It also serves as the test double.
type StaticProbe struct {
	enabled         bool
	triggerOnCreate bool
	templateFolder  string
	folderRules     []string
	regexRules      []*regexp.Regexp
}

// NewStaticProbe compiles a probe from the templates configuration section.
func NewStaticProbe(cfg config.TemplatesConfig) (*StaticProbe, error) {
	p := &StaticProbe{
		enabled:         cfg.Enabled,
		triggerOnCreate: cfg.TriggerOnCreate,
		templateFolder:  strings.Trim(path.Clean(cfg.TemplateFolder), "/"),
	}
	if p.templateFolder == "." {
		p.templateFolder = ""
	}

	for _, folder := range cfg.FolderRules {
		folder = strings.Trim(path.Clean(folder), "/")
		if folder == "." {
			folder = ""
		}
		p.folderRules = append(p.folderRules, folder)
	}

	for _, pattern := range cfg.RegexRules {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile template regex rule %q: %w", pattern, err)
		}
		p.regexRules = append(p.regexRules, re)
	}

	return p, nil
}

// Detected implements TemplateProbe.
func (p *StaticProbe) Detected() bool { return p.enabled }

// TriggersOnCreate implements TemplateProbe.
func (p *StaticProbe) TriggersOnCreate() bool { return p.triggerOnCreate }

// TemplateFolder implements TemplateProbe.
func (p *StaticProbe) TemplateFolder() string { return p.templateFolder }

// HasFolderRules implements TemplateProbe.
func (p *StaticProbe) HasFolderRules() bool { return len(p.folderRules) > 0 }

// HasRegexRules implements TemplateProbe.
func (p *StaticProbe) HasRegexRules() bool { return len(p.regexRules) > 0 }

// MatchesFolderRule implements TemplateProbe.
func (p *StaticProbe) MatchesFolderRule(folder string) bool {
	folder = strings.Trim(path.Clean(folder), "/")
	if folder == "." {
		folder = ""
	}
	for _, rule := range p.folderRules {
		if strings.EqualFold(folder, rule) {
			return true
		}
	}
	return false
}

// MatchesRegexRule implements TemplateProbe.
func (p *StaticProbe) MatchesRegexRule(docPath string) bool {
	for _, re := range p.regexRules {
		if re.MatchString(docPath) {
			return true
		}
	}
	return false
}
