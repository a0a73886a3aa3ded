package vault

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Frontmatter
// =============================================================================

const frontmatterDelimiter = "---"

// ParseFrontmatter splits a document into its frontmatter mapping and body.
// Documents without a leading frontmatter block return a nil map and the
// full content as body. A malformed block returns an error.
func ParseFrontmatter(content string) (map[string]any, string, error) {
	if !strings.HasPrefix(content, frontmatterDelimiter+"\n") && content != frontmatterDelimiter {
		return nil, content, nil
	}

	rest := strings.TrimPrefix(content, frontmatterDelimiter)
	idx, end := closingDelimiter(rest)
	if idx < 0 {
		// Unterminated block: treat the whole document as body.
		return nil, content, nil
	}

	block := rest[:idx]
	body := strings.TrimPrefix(rest[end:], "\n")

	var metadata map[string]any
	if err := yaml.Unmarshal([]byte(block), &metadata); err != nil {
		return nil, "", fmt.Errorf("parse frontmatter: %w", err)
	}

	return metadata, body, nil
}

// closingDelimiter finds the first line inside rest that is exactly "---".
// Lines that merely start with the delimiter, like "----" or "---value",
// belong to the block. It returns the newline index opening that line and
// the index just past the delimiter, or -1 when the block never closes.
func closingDelimiter(rest string) (int, int) {
	for from := 0; ; {
		idx := strings.Index(rest[from:], "\n"+frontmatterDelimiter)
		if idx < 0 {
			return -1, -1
		}
		idx += from
		end := idx + 1 + len(frontmatterDelimiter)
		if end == len(rest) || rest[end] == '\n' {
			return idx, end
		}
		from = idx + 1
	}
}

// Body returns document content with any leading frontmatter block removed.
func Body(content string) string {
	_, body, err := ParseFrontmatter(content)
	if err != nil {
		return content
	}
	return body
}

// HasContentBesidesHeading reports whether the body below any frontmatter
// contains content other than a single bare heading marker. A heading marker
// with no text ("#", "## ") alone counts as no content.
func HasContentBesidesHeading(content string) bool {
	body := Body(content)

	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.Trim(trimmed, "#") == "" && strings.HasPrefix(trimmed, "#") {
			continue
		}
		return true
	}
	return false
}
