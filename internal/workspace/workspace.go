// Package workspace materializes and destroys the per-submission scoped
// directory the sandbox mounts.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jjudge-oj/judge-worker/internal/lang"
	"github.com/jjudge-oj/judge-worker/types"
)

// Workspace is the materialized on-disk location for one submission.
type Workspace struct {
	Path     string // <temp_root>/<user>/<submission_id>
	SourceFile string
}

// Manager materializes and destroys workspaces under root.
type Manager struct {
	root string
}

// NewManager builds a Manager rooted at tempRoot.
func NewManager(tempRoot string) *Manager {
	return &Manager{root: tempRoot}
}

// Materialize writes source to <temp_root>/<user>/<submission_id>/Main.<ext>
// with UTF-8 encoding and LF line endings.
func (m *Manager) Materialize(sub types.Submission, adapter lang.Adapter) (Workspace, error) {
	dir := filepath.Join(m.root, sub.Username, fmt.Sprintf("%d", sub.SubmissionID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Workspace{}, fmt.Errorf("workspace: create %s: %w", dir, err)
	}

	normalized := normalizeLineEndings(sub.SourceCode)
	sourceFile := filepath.Join(dir, "Main."+adapter.Extension())
	if err := os.WriteFile(sourceFile, []byte(normalized), 0o644); err != nil {
		return Workspace{}, fmt.Errorf("workspace: write source: %w", err)
	}

	return Workspace{Path: dir, SourceFile: sourceFile}, nil
}

// Destroy removes the submission directory recursively and best-effort
// removes the now-possibly-empty parent user directory. Idempotent for
// non-existent paths.
func (m *Manager) Destroy(sub types.Submission) error {
	dir := filepath.Join(m.root, sub.Username, fmt.Sprintf("%d", sub.SubmissionID))
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("workspace: destroy %s: %w", dir, err)
	}
	userDir := filepath.Join(m.root, sub.Username)
	os.Remove(userDir) // ignored: fails (harmlessly) when non-empty
	return nil
}

func normalizeLineEndings(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return s
}
