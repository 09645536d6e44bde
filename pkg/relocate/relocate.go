// Package relocate drives a full relocation run over a detected
// virtualenv, in the fixed pass order the formats require.
package relocate

import (
	"path/filepath"

	"github.com/psolyca/virtualenv-tools/pkg/filesystem"
	"github.com/psolyca/virtualenv-tools/pkg/logging"
	"github.com/psolyca/virtualenv-tools/pkg/manifest"
	"github.com/psolyca/virtualenv-tools/pkg/pyc"
	"github.com/psolyca/virtualenv-tools/pkg/pyvenv"
	"github.com/psolyca/virtualenv-tools/pkg/report"
	"github.com/psolyca/virtualenv-tools/pkg/scripts"
	"github.com/psolyca/virtualenv-tools/pkg/venv"
)

// State is the terminal state of a run.
type State int

const (
	// StateUpToDate means the recorded path already matches and nothing
	// was touched.
	StateUpToDate State = iota
	// StateUpdated means the rewrite passes completed.
	StateUpdated
)

// Options configures a relocation run.
type Options struct {
	// NewPath is the absolute path the environment now lives at.
	NewPath string
	// BasePythonDir, when non-empty, rewrites the pyvenv.cfg home field.
	BasePythonDir string
	// Force runs the rewrite passes even when the recorded path already
	// equals NewPath.
	Force bool
}

// Result reports what a run did.
type Result struct {
	State    State
	OrigPath string
	NewPath  string
}

// Run executes the relocation. Pass order is fixed and significant: the
// activation scripts are rewritten last, after every pass that depends
// on the detection-time original path, so they end up recording the
// final authoritative path. There is no rollback; every pass is
// idempotent per file, so re-running after a failure is the recovery
// path.
func Run(fsys filesystem.FS, env *venv.Environment, opts Options, rep *report.Reporter) (*Result, error) {
	logger := logging.GetLogger("relocate")

	if env.OrigPath == opts.NewPath && !opts.Force {
		logger.Debug().Str("path", env.Path).Msg("already up to date")
		return &Result{State: StateUpToDate, OrigPath: env.OrigPath, NewPath: opts.NewPath}, nil
	}

	logger.Info().
		Str("path", env.Path).
		Str("from", env.OrigPath).
		Str("to", opts.NewPath).
		Msg("relocating virtualenv")

	if err := scripts.RewriteDir(fsys, env.BinDir, env.OrigPath, opts.NewPath, env.Layout, false, rep); err != nil {
		return nil, err
	}
	for _, dir := range env.CacheDirs() {
		if err := pyc.Walk(fsys, dir, opts.NewPath, rep); err != nil {
			return nil, err
		}
	}
	if err := manifest.RewriteAll(fsys, env.SitePackages, env.OrigPath, env.Layout.SiteAscent, rep); err != nil {
		return nil, err
	}
	if opts.BasePythonDir != "" {
		if _, err := pyvenv.Rewrite(fsys, env.PyvenvCfg, opts.BasePythonDir); err != nil {
			return nil, err
		}
	}
	if err := removeLegacyLocal(fsys, env.Path, rep); err != nil {
		return nil, err
	}
	if err := scripts.RewriteDir(fsys, env.BinDir, env.OrigPath, opts.NewPath, env.Layout, true, rep); err != nil {
		return nil, err
	}

	return &Result{State: StateUpdated, OrigPath: env.OrigPath, NewPath: opts.NewPath}, nil
}

// removeLegacyLocal deletes the obsolete local/ symlink directory some
// virtualenv versions created. Always safe to remove.
func removeLegacyLocal(fsys filesystem.FS, root string, rep *report.Reporter) error {
	localDir := filepath.Join(root, venv.LegacyLocalDir)
	if _, err := fsys.Stat(localDir); err != nil {
		return nil
	}
	if err := fsys.RemoveAll(localDir); err != nil {
		return err
	}
	rep.Changed(report.TagRemoved, localDir)
	return nil
}
