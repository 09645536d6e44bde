// Package venv classifies a directory as a virtualenv and recovers the
// absolute path the environment was created with.
package venv

import (
	"os"
	"path/filepath"
)

// Well-known entries of a virtualenv tree.
const (
	activateScript = "activate"
	sitePackages   = "site-packages"
	pypyMarkerDir  = "lib_pypy"

	// PyvenvCfgName is the environment configuration file at the root.
	PyvenvCfgName = "pyvenv.cfg"

	// LegacyLocalDir is the obsolete symlink directory some virtualenv
	// versions created at the root. Safe to delete.
	LegacyLocalDir = "local"
)

// Environment describes a classified virtualenv. It is built once by
// Detect and read-only afterwards.
type Environment struct {
	// Path is the environment root directory.
	Path string
	// BinDir is the executables directory (bin or Scripts).
	BinDir string
	// LibDirs are the library directories holding python modules: the
	// versioned lib dir, plus lib_pypy for the PyPy flavor.
	LibDirs []string
	// SitePackages is the site-packages directory.
	SitePackages string
	// OrigPath is the absolute path recorded at creation time, recovered
	// from the activation script and canonicalized.
	OrigPath string
	// PyvenvCfg is the environment configuration file path. The file may
	// not exist.
	PyvenvCfg string
	// Layout is the flavor/platform table entry resolved at detection.
	Layout Layout
}

// CacheDirs returns every directory to scan for bytecode cache files.
func (e *Environment) CacheDirs() []string {
	dirs := make([]string, 0, len(e.LibDirs)+1)
	dirs = append(dirs, e.BinDir)
	dirs = append(dirs, e.LibDirs...)
	return dirs
}

// RealPath canonicalizes a path to its symlink-resolved absolute form if
// it exists on disk, and returns it unchanged otherwise.
func RealPath(path string) string {
	if _, err := os.Stat(path); err != nil {
		return path
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return path
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return resolved
	}
	return abs
}
