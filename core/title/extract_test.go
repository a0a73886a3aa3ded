package title

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewExtractor_Transforms(t *testing.T) {
	t.Parallel()

	extract := NewExtractor(testTitleConfig())

	tests := []struct {
		name string
		line string
		want string
	}{
		{"heading marker", "# Project Plan", "Project Plan"},
		{"deep heading", "### Deep Section", "Deep Section"},
		{"blockquote", "> Quoted title", "Quoted title"},
		{"bold", "**Important** note", "Important note"},
		{"italic star", "*Emphasis* here", "Emphasis here"},
		{"inline code", "Use `go build` now", "Use go build now"},
		{"strikethrough", "~~Old~~ New", "Old New"},
		{"highlight", "==Marked== text", "Marked text"},
		{"wikilink", "See [[Other Note]]", "See Other Note"},
		{"wikilink with alias", "See [[Other Note|Alias]]", "See Alias"},
		{"markdown link", "Read [the docs](https://example.com)", "Read the docs"},
		{"html tags", "Hello <b>world</b>", "Hello world"},
		{"forbidden characters", `A/B\C:D?E`, "ABCDE"},
		{"whitespace collapse", "Too    many   spaces", "Too many spaces"},
		{"trailing dots", "Name...", "Name"},
		{"plain text", "Just a plain line", "Just a plain line"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, extract(tt.line))
		})
	}
}

func TestNewExtractor_Fallback(t *testing.T) {
	t.Parallel()

	extract := NewExtractor(testTitleConfig())

	assert.Equal(t, "Untitled", extract(""))
	assert.Equal(t, "Untitled", extract("   "))
	assert.Equal(t, "Untitled", extract("# "))
	assert.Equal(t, "Untitled", extract("***"))

	cfg := testTitleConfig()
	cfg.Fallback = "Blank Note"
	custom := NewExtractor(cfg)
	assert.Equal(t, "Blank Note", custom(""))
}

func TestNewExtractor_ForbiddenReplacement(t *testing.T) {
	t.Parallel()

	cfg := testTitleConfig()
	cfg.ForbiddenReplace = "-"
	extract := NewExtractor(cfg)

	assert.Equal(t, "A-B", extract("A/B"))
	assert.Equal(t, "What now-", extract("What now?"))
}

func TestNewExtractor_MaxLength(t *testing.T) {
	t.Parallel()

	cfg := testTitleConfig()
	cfg.MaxLength = 10
	extract := NewExtractor(cfg)

	got := extract("This line is far longer than ten characters")
	assert.LessOrEqual(t, len([]rune(got)), 10)
	assert.Equal(t, "This line", got)

	// Multi-byte runes are never split.
	long := strings.Repeat("ä", 20)
	got = extract(long)
	assert.Equal(t, strings.Repeat("ä", 10), got)
}
