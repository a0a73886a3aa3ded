package vault

import "context"

// =============================================================================
// Vault Interface
// =============================================================================

// Vault is the read/rename surface the host exposes for documents.
//
// ReadCached and ReadFresh are two distinct consistency levels: ReadCached may
// answer from an in-process cache and is cheap to call on every event;
// ReadFresh always reflects the durable state of the document and is used
// when a fresh-read flag is set or the caller cannot tolerate staleness.
type Vault interface {
	// ReadCached returns document content, possibly from cache.
	ReadCached(ctx context.Context, path string) (string, error)

	// ReadFresh returns document content, bypassing any cache.
	ReadFresh(ctx context.Context, path string) (string, error)

	// Exists reports whether a document exists at path.
	Exists(path string) bool

	// ListAll returns the paths of all markdown documents in the vault.
	ListAll() ([]string, error)

	// Rename atomically moves a document from oldPath to newPath.
	Rename(ctx context.Context, oldPath, newPath string) error

	// Frontmatter returns the parsed frontmatter block of a document,
	// or nil when the document has none.
	Frontmatter(ctx context.Context, path string) (map[string]any, error)
}

// =============================================================================
// Editor Introspection
// =============================================================================

// Editor is a live edit surface for one open document.
type Editor interface {
	// Path returns the path of the document backing this editor.
	Path() string

	// Content returns the current buffer content.
	Content() string

	// SetContent replaces the buffer content.
	SetContent(content string)

	// Cursor returns the current cursor position.
	Cursor() Position

	// SetCursor moves the cursor.
	SetCursor(pos Position)
}

// View is one open view in the workspace. Hover popovers are flagged because
// their buffers are fresher than background panes during active interaction.
type View struct {
	Editor  Editor
	IsHover bool
}

// Workspace enumerates open views and reports the active editor, if any.
type Workspace interface {
	// ActiveEditor returns the editor the user is currently typing in.
	ActiveEditor() (Editor, bool)

	// OpenViews returns every open view, hover popovers included.
	OpenViews() []View
}
