package venv

import (
	"path/filepath"
	"runtime"
	"strings"

	"github.com/psolyca/virtualenv-tools/pkg/activation"
	"github.com/psolyca/virtualenv-tools/pkg/errors"
	"github.com/psolyca/virtualenv-tools/pkg/filesystem"
	"github.com/psolyca/virtualenv-tools/pkg/logging"
)

// Detect classifies root as a virtualenv and builds its descriptor.
//
// Classification failures are ErrNotVirtualenv errors naming the missing
// entry and whether a directory or a file was expected. A structurally
// valid environment whose activation script lacks the path assignment is
// an ErrActivateParse error instead: the layout is fine, the file is not.
func Detect(fsys filesystem.FS, root string) (*Environment, error) {
	return detect(fsys, root, runtime.GOOS == "windows")
}

func detect(fsys filesystem.FS, root string, windows bool) (*Environment, error) {
	logger := logging.GetLogger("venv")

	flavor := CPython
	if info, err := fsys.Stat(filepath.Join(root, pypyMarkerDir)); err == nil && info.IsDir() {
		flavor = PyPy
	}
	layout := LayoutFor(flavor, windows)

	binDir := filepath.Join(root, layout.BinDirName)
	baseLibDir := filepath.Join(root, layout.LibDirName)
	for _, dir := range []string{binDir, baseLibDir} {
		if !isDir(fsys, dir) {
			return nil, notVirtualenv(root, "directory", dir)
		}
	}

	activateFile := filepath.Join(binDir, activateScript)
	if !isFile(fsys, activateFile) {
		return nil, notVirtualenv(root, "file", activateFile)
	}

	var libDir string
	if windows {
		libDir = baseLibDir
	} else {
		entries, err := fsys.ReadDir(baseLibDir)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrFileAccess, "listing %s", baseLibDir)
		}
		var matches []string
		for _, entry := range entries {
			if layout.VersionPattern.MatchString(entry.Name()) {
				matches = append(matches, filepath.Join(baseLibDir, entry.Name()))
			}
		}
		if len(matches) != 1 {
			return nil, notVirtualenv(root, "directory", filepath.Join(baseLibDir, layout.WildcardName))
		}
		libDir = matches[0]
	}

	siteBase := libDir
	if flavor == PyPy {
		siteBase = root
	}
	site := filepath.Join(siteBase, sitePackages)
	if !isDir(fsys, site) {
		return nil, notVirtualenv(root, "directory", site)
	}

	origPath, err := origPathFromActivate(fsys, activateFile)
	if err != nil {
		return nil, err
	}

	libDirs := []string{libDir}
	if flavor == PyPy {
		libDirs = append(libDirs, filepath.Join(root, pypyMarkerDir))
	}

	env := &Environment{
		Path:         root,
		BinDir:       binDir,
		LibDirs:      libDirs,
		SitePackages: site,
		OrigPath:     RealPath(origPath),
		PyvenvCfg:    filepath.Join(root, PyvenvCfgName),
		Layout:       layout,
	}
	logger.Debug().
		Str("root", root).
		Str("flavor", flavor.String()).
		Str("origPath", env.OrigPath).
		Msg("virtualenv detected")
	return env, nil
}

// origPathFromActivate recovers the creation-time environment path from
// the first matching assignment line of the POSIX activation script.
func origPathFromActivate(fsys filesystem.FS, activatePath string) (string, error) {
	data, err := fsys.ReadFile(activatePath)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFileAccess, "reading activation script %s", activatePath)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSuffix(line, "\r")
		for _, p := range activation.Parsers() {
			if span, ok := p.Match(line); ok {
				return line[span.Start:span.End], nil
			}
		}
	}
	return "", errors.Newf(errors.ErrActivateParse,
		"could not find VIRTUAL_ENV= in activation script: %s", activatePath)
}

func notVirtualenv(root, kind, path string) error {
	return errors.Newf(errors.ErrNotVirtualenv, "%s is not a virtualenv: not a %s: %s", root, kind, path).
		WithDetail("kind", kind).
		WithDetail("path", path)
}

func isDir(fsys filesystem.FS, path string) bool {
	info, err := fsys.Stat(path)
	return err == nil && info.IsDir()
}

func isFile(fsys filesystem.FS, path string) bool {
	info, err := fsys.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
