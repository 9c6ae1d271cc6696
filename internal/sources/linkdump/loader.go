// Package linkdump locates and loads markdown link dumps from disk.
package linkdump

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MrSnakeDoc/linkdump/internal/domain"
)

const markdownExt = ".md"

// Loader resolves a set of user-supplied paths into link dump files.
type Loader struct {
	paths []string
}

// NewLoader creates a loader for files and directories
func NewLoader(paths ...string) *Loader {
	return &Loader{paths: paths}
}

// Files returns every file to import. Paths named explicitly are always
// included whatever their extension; directories are walked recursively
// and contribute only *.md files. Paths that do not exist are skipped and
// reported in missing.
func (l *Loader) Files() (files []string, missing []string, err error) {
	seen := make(map[string]struct{})
	add := func(path string) {
		if _, dup := seen[path]; dup {
			return
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}

	for _, path := range l.paths {
		info, statErr := os.Stat(path)
		if errors.Is(statErr, fs.ErrNotExist) {
			missing = append(missing, path)
			continue
		}
		if statErr != nil {
			return nil, nil, fmt.Errorf("failed to stat %s: %w", path, statErr)
		}

		if !info.IsDir() {
			add(path)
			continue
		}

		var found []string
		walkErr := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(p), markdownExt) {
				found = append(found, p)
			}
			return nil
		})
		if walkErr != nil {
			return nil, nil, fmt.Errorf("failed to walk %s: %w", path, walkErr)
		}

		sort.Strings(found)
		for _, p := range found {
			add(p)
		}
	}

	return files, missing, nil
}

// Load reads one link dump.
func (l *Loader) Load(path string) (domain.LinkSource, error) {
	src, err := domain.FromPath(path)
	if err != nil {
		return domain.LinkSource{}, fmt.Errorf("failed to load link dump: %w", err)
	}
	return src, nil
}
