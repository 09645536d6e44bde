// Package manifest rewrites absolute paths recorded in site-packages
// path manifest files (.pth and .egg-link) into environment-relative
// form, so they survive the move.
package manifest

import (
	"path/filepath"
	"strings"

	"github.com/psolyca/virtualenv-tools/pkg/errors"
	"github.com/psolyca/virtualenv-tools/pkg/filesystem"
	"github.com/psolyca/virtualenv-tools/pkg/report"
)

var manifestExtensions = []string{".pth", ".egg-link"}

const importDirective = "import "

// RewriteAll processes every manifest file directly in siteDir. Each
// absolute, non-directive line is replaced by ascent (the fixed relative
// climb from site-packages to the environment root, from the layout
// table) joined with the line's position relative to origPath.
func RewriteAll(fsys filesystem.FS, siteDir, origPath, ascent string, rep *report.Reporter) error {
	entries, err := fsys.ReadDir(siteDir)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "listing %s", siteDir)
	}
	for _, entry := range entries {
		if !hasManifestExtension(entry.Name()) {
			continue
		}
		path := filepath.Join(siteDir, entry.Name())
		info, err := fsys.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if _, err := Rewrite(fsys, path, origPath, ascent, rep); err != nil {
			return err
		}
	}
	return nil
}

// Rewrite relativizes the absolute path lines of a single manifest file.
// The file is written back only when some line actually changed.
func Rewrite(fsys filesystem.FS, path, origPath, ascent string, rep *report.Reporter) (bool, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return false, errors.Wrapf(err, errors.ErrFileAccess, "reading manifest %s", path)
	}

	lines := strings.SplitAfter(string(data), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	changed := false
	for i, line := range lines {
		val := strings.TrimSpace(line)
		if strings.HasPrefix(val, importDirective) || !filepath.IsAbs(val) {
			continue
		}
		rel, err := filepath.Rel(origPath, val)
		if err != nil {
			continue
		}
		rewritten := filepath.Join(ascent, rel) + "\n"
		if rewritten != line {
			lines[i] = rewritten
			changed = true
		}
	}
	if !changed {
		return false, nil
	}

	info, err := fsys.Stat(path)
	if err != nil {
		return false, errors.Wrapf(err, errors.ErrFileAccess, "stat manifest %s", path)
	}
	if err := fsys.WriteFile(path, []byte(strings.Join(lines, "")), info.Mode().Perm()); err != nil {
		return false, errors.Wrapf(err, errors.ErrFileWrite, "writing manifest %s", path)
	}
	rep.Changed(report.TagManifest, path)
	return true, nil
}

func hasManifestExtension(name string) bool {
	for _, ext := range manifestExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
