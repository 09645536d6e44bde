package pyc

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/psolyca/virtualenv-tools/pkg/errors"
	"github.com/psolyca/virtualenv-tools/pkg/filesystem"
	"github.com/psolyca/virtualenv-tools/pkg/report"
)

// cacheExtensions are the recognized bytecode cache file suffixes.
var cacheExtensions = []string{".pyc", ".pyo"}

// Walk rewrites every cache file under libDir. The embedded path of each
// file becomes newPath plus the file's location relative to libDir.
//
// The walk is depth-first in lexical order, so the set of files left
// untouched after a decode failure is deterministic. Symlinked files are
// shared with a base environment and skipped; symlinked directories are
// not followed.
func Walk(fsys filesystem.FS, libDir, newPath string, rep *report.Reporter) error {
	return walkDir(fsys, libDir, libDir, newPath, rep)
}

func walkDir(fsys filesystem.FS, root, dir, newPath string, rep *report.Reporter) error {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "listing %s", dir)
	}
	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			if err := walkDir(fsys, root, full, newPath, rep); err != nil {
				return err
			}
			continue
		}
		if !hasCacheExtension(entry.Name()) || entry.Type()&fs.ModeSymlink != 0 {
			continue
		}
		rel, err := filepath.Rel(root, full)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		if _, err := RewriteFile(fsys, full, filepath.Join(newPath, rel), rep); err != nil {
			return err
		}
	}
	return nil
}

func hasCacheExtension(name string) bool {
	for _, ext := range cacheExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
