package indexing

import (
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/slicegraph/slicegraph/internal/config"
)

// candidateFile is one file the scanner decided is eligible for parsing,
// prior to any content-hash comparison.
type candidateFile struct {
	absPath string
	relPath string
	ext     string
	bytes   int64
}

// enumerate walks repoCfg.RootPath, honoring its ignore globs, optional
// workspace globs, and maxFileBytes limit (spec §4.D pass-1 step 1).
// Grounded on the teacher's FileWatcher.shouldIgnoreDirectory/addWatches
// walk (internal/indexing/watcher.go) and its doublestar-based glob
// matching, adapted from a watch-registration walk to a one-shot scan.
func enumerate(repoCfg config.RepoConfig) ([]candidateFile, error) {
	root := repoCfg.RootPath
	var out []candidateFile

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil // isolate unreadable entries, keep scanning
		}
		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if relPath != "." && matchesAny(repoCfg.Ignore, relPath+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if matchesAny(repoCfg.Ignore, relPath) {
			return nil
		}
		if len(repoCfg.WorkspaceGlob) > 0 && !matchesAny(repoCfg.WorkspaceGlob, relPath) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		maxBytes := repoCfg.MaxFileBytes
		if maxBytes <= 0 {
			maxBytes = 10 << 20
		}
		if info.Size() > maxBytes {
			return nil
		}

		ext := filepath.Ext(relPath)
		if ext == "" {
			return nil
		}
		out = append(out, candidateFile{absPath: path, relPath: relPath, ext: ext, bytes: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func matchesAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}
