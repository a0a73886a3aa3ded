// Package vault defines the host capability surface for titlekeep: document
// reads at two consistency levels, existence and listing queries, atomic
// renames, frontmatter access, and live-editor introspection. It also ships
// DirVault, an OS-directory-backed implementation used by the CLI and tests.
package vault

import (
	"path/filepath"
	"strings"
	"time"
)

// =============================================================================
// Document
// =============================================================================

// Document identifies a single markdown note tracked by path.
type Document struct {
	// Path is the vault-relative path, including the .md extension.
	Path string

	// CreatedAt is when the document was created, as reported by the host.
	CreatedAt time.Time

	// ModifiedAt is the last modification time reported by the host.
	ModifiedAt time.Time
}

// Basename returns the filename without directory or extension.
func (d Document) Basename() string {
	base := filepath.Base(d.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Folder returns the directory portion of the document path.
// The vault root is reported as ".".
func (d Document) Folder() string {
	return filepath.Dir(d.Path)
}

// =============================================================================
// Position
// =============================================================================

// Position is a cursor location inside an editor buffer.
type Position struct {
	Line int
	Ch   int
}
