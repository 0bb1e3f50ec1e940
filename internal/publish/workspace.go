package publish

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/leonkenneth/RNB-coeur/internal/area"
)

// WorkspacePrefix starts the name of every scratch directory.
const WorkspacePrefix = "datagouvfr_publication_"

// Workspace is the scratch directory owned by one area run.
type Workspace struct {
	Dir string
}

// WorkspaceName returns datagouvfr_publication_{area}_{YYYY-MM-DD_HH-MM-SS}_{suffix}.
// The suffix keeps two runs of one area started in the same second apart.
func WorkspaceName(a area.Area, now time.Time, suffix string) string {
	return fmt.Sprintf("%s%s_%s_%s", WorkspacePrefix, a, now.Format("2006-01-02_15-04-05"), suffix)
}

// NewWorkspace creates a fresh workspace for a under root. It fails if the
// directory already exists.
func NewWorkspace(root string, a area.Area, now time.Time) (*Workspace, error) {
	dir := filepath.Join(root, WorkspaceName(a, now, uuid.NewString()[:8]))
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{Dir: dir}, nil
}

// Remove deletes the workspace and everything in it.
func (w *Workspace) Remove() error {
	if err := os.RemoveAll(w.Dir); err != nil {
		return fmt.Errorf("remove workspace %s: %w", w.Dir, err)
	}
	return nil
}
