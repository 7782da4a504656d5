package backend

import (
	"os"
	"path/filepath"
)

// workspaceMarkers identify a project root when walking up from the
// current directory.
var workspaceMarkers = []string{".git", "go.mod", "pyproject.toml"}

// ResolveWorkspaceRoot returns the directory the backend should run in.
//
// A configured root wins when it exists. Otherwise the nearest ancestor of
// the current directory containing a project marker is used, and when
// nothing resolves the current directory is the fallback. The function
// never fails; a spawn in the wrong directory beats no spawn at all.
func ResolveWorkspaceRoot(configured string) string {
	if configured != "" {
		if info, err := os.Stat(configured); err == nil && info.IsDir() {
			return configured
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}

	dir := cwd
	for {
		for _, marker := range workspaceMarkers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return cwd
		}
		dir = parent
	}
}
