// Package title locates a document's title-source line and derives a
// filesystem-safe name from it. Scanning skips blank lines, horizontal
// rules, math-block delimiters, and code fences, with special handling for
// mermaid fences, card-link fences, and tables. Extraction is a pure
// transform; callers may substitute their own.
package title

import (
	"strings"

	"github.com/adalundhe/titlekeep/core/config"
	"github.com/adalundhe/titlekeep/core/vault"
)

// =============================================================================
// Scan Result
// =============================================================================

// Source is the outcome of a title-source scan.
type Source struct {
	// Line is the raw title-source line, or a fixed placeholder for
	// mermaid/table content.
	Line string

	// FirstNonEmpty is the first non-blank body line, placeholder rules
	// aside. Kept for memoization.
	FirstNonEmpty string

	// Placeholder is true when Line is a fixed placeholder rather than
	// document text.
	Placeholder bool
}

// =============================================================================
// Scanning
// =============================================================================

// Scan locates the title-source line of content. The boolean is false when
// the document has no usable line at all.
func Scan(content string, cfg config.TitleConfig) (Source, bool) {
	body := vault.Body(content)
	lines := strings.Split(body, "\n")

	firstNonEmpty := ""
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			continue
		}
		if firstNonEmpty == "" {
			firstNonEmpty = line
		}

		switch {
		case isHorizontalRule(trimmed):
			continue
		case isMathDelimiter(trimmed):
			continue
		case isFenceOpen(trimmed):
			source, consumed, ok := scanFence(lines, i, trimmed, cfg)
			if ok {
				source.FirstNonEmpty = firstNonEmpty
				return source, true
			}
			i += consumed
			continue
		case isTableRow(trimmed):
			return Source{
				Line:          placeholder(cfg.TablePlaceholder, "Table"),
				FirstNonEmpty: firstNonEmpty,
				Placeholder:   true,
			}, true
		default:
			return Source{Line: line, FirstNonEmpty: firstNonEmpty}, true
		}
	}

	return Source{}, false
}

// scanFence handles a code fence starting at lines[start]. It returns either
// a title source (mermaid placeholder or card-link title) or the number of
// lines to skip past the fence.
func scanFence(lines []string, start int, opening string, cfg config.TitleConfig) (Source, int, bool) {
	marker := opening[:3]
	lang := strings.ToLower(strings.TrimSpace(strings.TrimLeft(opening, "`~")))

	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), marker) {
			end = i
			break
		}
	}

	switch lang {
	case "mermaid":
		return Source{
			Line:        placeholder(cfg.MermaidPlaceholder, "Mermaid Diagram"),
			Placeholder: true,
		}, 0, true
	case "cardlink":
		if t, ok := cardLinkTitle(lines[start+1 : end]); ok {
			return Source{Line: t, Placeholder: true}, 0, true
		}
	}

	return Source{}, end - start, false
}

// cardLinkTitle extracts the embedded title field from a card-link fence
// body.
func cardLinkTitle(body []string) (string, bool) {
	for _, line := range body {
		key, value, found := strings.Cut(strings.TrimSpace(line), ":")
		if !found || !strings.EqualFold(strings.TrimSpace(key), "title") {
			continue
		}
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		if value != "" {
			return value, true
		}
	}
	return "", false
}

func placeholder(configured, fallback string) string {
	if configured != "" {
		return configured
	}
	return fallback
}

// =============================================================================
// Line Classification
// =============================================================================

func isHorizontalRule(trimmed string) bool {
	if len(trimmed) < 3 {
		return false
	}
	compact := strings.ReplaceAll(trimmed, " ", "")
	for _, marker := range []string{"-", "*", "_"} {
		if compact == strings.Repeat(marker, len(compact)) && len(compact) >= 3 {
			return true
		}
	}
	return false
}

func isMathDelimiter(trimmed string) bool {
	return trimmed == "$$"
}

func isFenceOpen(trimmed string) bool {
	return strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")
}

func isTableRow(trimmed string) bool {
	return strings.HasPrefix(trimmed, "|")
}
