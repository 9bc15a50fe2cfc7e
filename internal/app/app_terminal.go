package app

import (
	"errors"
)

var errEditorUnavailable = errors.New("external editor is not available")

// ============================================================
// Embedded Terminal (external editor)
// ============================================================

// OpenElementInEditor opens a text element in $EDITOR inside the embedded
// terminal. Saved changes flow back into the element while it runs.
func (a *App) OpenElementInEditor(projectID, elementID string) (string, error) {
	if a.editor == nil {
		return "", errEditorUnavailable
	}
	return a.editor.Open(a.ctx, projectID, elementID)
}

// CloseEditor stops the editor and applies the file one last time.
func (a *App) CloseEditor() {
	if a.editor != nil {
		a.editor.Finish()
	}
}

// TerminalWrite sends input from xterm.js to the PTY.
func (a *App) TerminalWrite(data string) error {
	if a.editor == nil {
		return errEditorUnavailable
	}
	return a.editor.Write(data)
}

// TerminalResize resizes the PTY.
func (a *App) TerminalResize(cols, rows int) error {
	if a.editor == nil {
		return errEditorUnavailable
	}
	return a.editor.Resize(uint16(cols), uint16(rows))
}
