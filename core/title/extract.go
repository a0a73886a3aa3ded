package title

import (
	"regexp"
	"strings"

	"github.com/adalundhe/titlekeep/core/config"
)

// =============================================================================
// Extract Transform
// =============================================================================

// ExtractFunc turns a title-source line into a filename-safe title. The
// orchestrator treats it as an opaque pure function.
type ExtractFunc func(line string) string

var (
	wikiLinkPattern   = regexp.MustCompile(`\[\[([^\]|]*)(?:\|([^\]]*))?\]\]`)
	mdLinkPattern     = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	htmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// forbiddenChars are characters that cannot appear in filenames across the
// filesystems the host supports.
const forbiddenChars = `\/:*?"<>|#^[]`

// NewExtractor builds the default extract transform for the given title
// settings: strip heading markers, emphasis, links, inline code, and HTML,
// replace forbidden characters, collapse whitespace, cap length, and fall
// back to a fixed name when nothing survives.
func NewExtractor(cfg config.TitleConfig) ExtractFunc {
	maxLength := cfg.MaxLength
	if maxLength <= 0 {
		maxLength = 100
	}
	fallback := cfg.Fallback
	if fallback == "" {
		fallback = "Untitled"
	}

	return func(line string) string {
		s := strings.TrimSpace(line)

		// Heading and blockquote markers.
		s = strings.TrimLeft(s, "#> ")

		// Links keep their display text.
		s = wikiLinkPattern.ReplaceAllStringFunc(s, func(m string) string {
			groups := wikiLinkPattern.FindStringSubmatch(m)
			if groups[2] != "" {
				return groups[2]
			}
			return groups[1]
		})
		s = mdLinkPattern.ReplaceAllString(s, "$1")
		s = htmlTagPattern.ReplaceAllString(s, "")

		// Emphasis and inline code markers.
		s = strings.NewReplacer("**", "", "__", "", "*", "", "_", " ", "`", "", "==", "", "~~", "").Replace(s)

		s = replaceForbidden(s, cfg.ForbiddenReplace)
		s = whitespacePattern.ReplaceAllString(s, " ")
		s = strings.TrimSpace(s)
		s = strings.Trim(s, ".")

		if runes := []rune(s); len(runes) > maxLength {
			s = strings.TrimSpace(string(runes[:maxLength]))
		}
		if s == "" {
			return fallback
		}
		return s
	}
}

func replaceForbidden(s, replacement string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(forbiddenChars, r) {
			b.WriteString(replacement)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
