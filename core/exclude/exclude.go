// Package exclude evaluates titlekeep's exclusion rules: folder lists under
// a whitelist or blacklist strategy, tag exclusions (inline and frontmatter),
// and frontmatter property exclusions. Both the creation decision tree and
// the rename orchestrator gate on these checks.
package exclude

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/gobwas/glob"

	"github.com/adalundhe/titlekeep/core/config"
	"github.com/adalundhe/titlekeep/core/vault"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrInvalidPattern indicates a folder pattern could not be compiled.
	ErrInvalidPattern = errors.New("invalid folder pattern")
)

// =============================================================================
// FolderMatcher
// =============================================================================

type folderRule struct {
	prefix  string
	pattern glob.Glob
}

// FolderMatcher decides whether a document folder is excluded under the
// configured strategy. Entries containing glob metacharacters are compiled
// with '/' as separator; plain entries match exactly, or by prefix when
// subfolder propagation is on.
type FolderMatcher struct {
	strategy   config.FolderStrategy
	subfolders bool
	rules      []folderRule
}

// NewFolderMatcher compiles the folder exclusion configuration.
func NewFolderMatcher(cfg config.ExclusionsConfig) (*FolderMatcher, error) {
	m := &FolderMatcher{
		strategy:   cfg.FolderStrategy,
		subfolders: cfg.IncludeSubfolders,
	}

	for _, entry := range cfg.Folders {
		entry = strings.Trim(path.Clean(entry), "/")
		if entry == "" {
			continue
		}
		rule := folderRule{prefix: entry}
		if strings.ContainsAny(entry, "*?[{") {
			g, err := glob.Compile(entry, '/')
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, entry)
			}
			rule.pattern = g
		}
		m.rules = append(m.rules, rule)
	}

	return m, nil
}

// Configured reports whether any folder rule exists.
func (m *FolderMatcher) Configured() bool {
	return len(m.rules) > 0
}

// Excluded reports whether a document in folder is excluded. Under the
// blacklist strategy a listed folder is excluded; under the whitelist
// strategy every unlisted folder is.
func (m *FolderMatcher) Excluded(folder string) bool {
	if len(m.rules) == 0 {
		return false
	}

	listed := m.matches(folder)
	if m.strategy == config.StrategyWhitelist {
		return !listed
	}
	return listed
}

func (m *FolderMatcher) matches(folder string) bool {
	folder = strings.Trim(path.Clean(folder), "/")
	if folder == "." {
		folder = ""
	}

	for _, rule := range m.rules {
		if rule.pattern != nil {
			if rule.pattern.Match(folder) {
				return true
			}
			continue
		}
		if strings.EqualFold(folder, rule.prefix) {
			return true
		}
		if m.subfolders && len(folder) > len(rule.prefix) &&
			strings.EqualFold(folder[:len(rule.prefix)], rule.prefix) &&
			folder[len(rule.prefix)] == '/' {
			return true
		}
	}
	return false
}

// =============================================================================
// Tag Exclusions
// =============================================================================

var inlineTagPattern = regexp.MustCompile(`(?:^|\s)#([\p{L}\p{N}/_-]+)`)

// ContentHasTag reports whether content carries any of the excluded tags,
// either inline (#tag) or in a frontmatter tags list. Tag comparison is
// case-insensitive and ignores a leading '#' in the configuration.
func ContentHasTag(content string, tags []string) bool {
	if len(tags) == 0 {
		return false
	}

	found := collectTags(content)
	for _, want := range tags {
		want = strings.TrimPrefix(strings.TrimSpace(want), "#")
		if want == "" {
			continue
		}
		if _, ok := found[strings.ToLower(want)]; ok {
			return true
		}
	}
	return false
}

func collectTags(content string) map[string]struct{} {
	found := make(map[string]struct{})

	metadata, body, err := vault.ParseFrontmatter(content)
	if err != nil {
		body = content
	}

	for _, match := range inlineTagPattern.FindAllStringSubmatch(body, -1) {
		found[strings.ToLower(match[1])] = struct{}{}
	}

	for _, key := range []string{"tags", "tag"} {
		switch v := metadata[key].(type) {
		case string:
			for _, t := range strings.Split(v, ",") {
				found[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "#"))] = struct{}{}
			}
		case []any:
			for _, item := range v {
				if t, ok := item.(string); ok {
					found[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "#"))] = struct{}{}
				}
			}
		}
	}

	return found
}

// =============================================================================
// Property Exclusions
// =============================================================================

// ContentHasProperty reports whether the document frontmatter matches any
// excluded property. An entry "key" matches on key presence; "key: value"
// requires the value to match as well.
func ContentHasProperty(content string, properties []string) bool {
	if len(properties) == 0 {
		return false
	}

	metadata, _, err := vault.ParseFrontmatter(content)
	if err != nil || metadata == nil {
		return false
	}
	return FrontmatterHasProperty(metadata, properties)
}

// FrontmatterHasProperty is ContentHasProperty over already-parsed
// frontmatter.
func FrontmatterHasProperty(metadata map[string]any, properties []string) bool {
	for _, prop := range properties {
		key, want, hasValue := strings.Cut(prop, ":")
		key = strings.TrimSpace(key)

		value, ok := lookupFold(metadata, key)
		if !ok {
			continue
		}
		if !hasValue {
			return true
		}
		if strings.EqualFold(fmt.Sprint(value), strings.TrimSpace(want)) {
			return true
		}
	}
	return false
}

// Disabled reports whether the disable property is present and truthy in
// frontmatter.
func Disabled(metadata map[string]any, property string) bool {
	if property == "" || metadata == nil {
		return false
	}

	value, ok := lookupFold(metadata, property)
	if !ok {
		return false
	}

	switch v := value.(type) {
	case bool:
		return v
	case string:
		return !strings.EqualFold(v, "false") && v != ""
	case nil:
		return true
	default:
		return true
	}
}

func lookupFold(metadata map[string]any, key string) (any, bool) {
	for k, v := range metadata {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}
