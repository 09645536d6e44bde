// Package testutil builds synthetic virtualenv trees in isolated temp
// directories for package tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// Options tunes the shape of a synthetic virtualenv.
type Options struct {
	// Version is the python version of the lib directory (default 3.10).
	Version string
	// PyPy builds the alternate-implementation layout.
	PyPy bool
	// OrigPath overrides the path recorded in bin/activate (defaults to
	// the environment root, as a freshly created environment would).
	OrigPath string
}

// Venv is a synthetic virtualenv rooted in a temp directory.
type Venv struct {
	Root         string
	BinDir       string
	LibDir       string
	SitePackages string
	OrigPath     string
}

// NewVenv creates a minimal but structurally valid virtualenv tree.
func NewVenv(t *testing.T, opts Options) *Venv {
	t.Helper()

	if opts.Version == "" {
		opts.Version = "3.10"
	}
	root := filepath.Join(t.TempDir(), "venv")
	v := &Venv{
		Root:     root,
		BinDir:   filepath.Join(root, "bin"),
		OrigPath: opts.OrigPath,
	}
	if v.OrigPath == "" {
		v.OrigPath = root
	}

	if opts.PyPy {
		v.LibDir = filepath.Join(root, "lib-python", opts.Version)
		v.SitePackages = filepath.Join(root, "site-packages")
		mkdir(t, filepath.Join(root, "lib_pypy"))
	} else {
		v.LibDir = filepath.Join(root, "lib", "python"+opts.Version)
		v.SitePackages = filepath.Join(v.LibDir, "site-packages")
	}
	mkdir(t, v.BinDir)
	mkdir(t, v.LibDir)
	mkdir(t, v.SitePackages)

	v.WriteFile(t, "bin/activate", activateContent(v.OrigPath), 0644)
	return v
}

// WriteFile writes a file under the environment root and returns its path.
func (v *Venv) WriteFile(t *testing.T, rel, content string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(v.Root, filepath.FromSlash(rel))
	mkdir(t, filepath.Dir(path))
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatalf("writing fixture file %s: %v", path, err)
	}
	return path
}

// WriteScript writes an executable script with the given interpreter
// shebang into the bin directory.
func (v *Venv) WriteScript(t *testing.T, name, interpreter string) string {
	t.Helper()
	content := fmt.Sprintf("#!%s\nimport sys\nsys.exit(0)\n", interpreter)
	return v.WriteFile(t, "bin/"+name, content, 0755)
}

func activateContent(origPath string) string {
	return fmt.Sprintf(`# This file must be used with "source bin/activate" *from bash*
deactivate () {
    unset VIRTUAL_ENV
}
VIRTUAL_ENV=%q
export VIRTUAL_ENV
PATH="$VIRTUAL_ENV/bin:$PATH"
export PATH
`, origPath)
}

func mkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatalf("creating fixture dir %s: %v", path, err)
	}
}
