package creation

import (
	"log/slog"
	"strings"

	"github.com/adalundhe/titlekeep/core/state"
	"github.com/adalundhe/titlekeep/core/vault"
)

// =============================================================================
// Handler
// =============================================================================

// Handler applies a decision tree verdict to a newly created document
// through the live-editor interface: inserting the derived heading and
// moving the cursor. While it pushes content into an open view it marks the
// path as syncing so the edit does not re-trigger the pipeline.
type Handler struct {
	ws    vault.Workspace
	state *state.Store
	log   *slog.Logger
}

// NewHandler creates a creation handler. workspace may be nil, in which case
// Apply is a no-op (no live editors to act on).
func NewHandler(ws vault.Workspace, st *state.Store, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{ws: ws, state: st, log: log}
}

// Apply performs the actions DetermineActions decided for doc.
func (h *Handler) Apply(doc vault.Document, actions Actions) {
	if h.ws == nil || (!actions.ShouldInsertTitle && !actions.ShouldMoveCursor) {
		return
	}

	editor, ok := h.findEditor(doc.Path)
	if !ok {
		return
	}

	h.state.SetSyncingEditors(doc.Path, true)
	defer h.state.SetSyncingEditors(doc.Path, false)

	if actions.ShouldInsertTitle {
		h.insertTitle(editor, doc)
	}
	if actions.ShouldMoveCursor {
		h.moveCursor(editor, actions)
	}

	h.log.Debug("applied creation actions",
		"path", doc.Path,
		"decision", actions.DecisionPath,
	)
}

func (h *Handler) findEditor(docPath string) (vault.Editor, bool) {
	if editor, ok := h.ws.ActiveEditor(); ok && strings.EqualFold(editor.Path(), docPath) {
		return editor, true
	}
	for _, view := range h.ws.OpenViews() {
		if strings.EqualFold(view.Editor.Path(), docPath) {
			return view.Editor, true
		}
	}
	return nil, false
}

// insertTitle prepends a heading derived from the document's own name,
// below any frontmatter block.
func (h *Handler) insertTitle(editor vault.Editor, doc vault.Document) {
	content := editor.Content()
	heading := "# " + doc.Basename()

	metadata, body, err := vault.ParseFrontmatter(content)
	if err != nil || metadata == nil {
		editor.SetContent(heading + "\n" + content)
		h.state.SetEditorContent(doc.Path, editor.Content())
		return
	}

	front := strings.TrimSuffix(content, body)
	editor.SetContent(front + heading + "\n" + body)
	h.state.SetEditorContent(doc.Path, editor.Content())
}

func (h *Handler) moveCursor(editor vault.Editor, actions Actions) {
	if !actions.PlaceCursorAtEnd {
		editor.SetCursor(vault.Position{})
		return
	}

	lines := strings.Split(editor.Content(), "\n")
	last := len(lines) - 1
	editor.SetCursor(vault.Position{Line: last, Ch: len(lines[last])})
}
