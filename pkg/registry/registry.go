// Package registry resolves named virtualenvs under a registry root.
//
// When WORKON_HOME (or the configured fallback) points at a directory of
// virtualenvs, the update-path argument may name one of them by its short
// name instead of a literal path.
package registry

import (
	"os"
	"path/filepath"

	"github.com/psolyca/virtualenv-tools/pkg/logging"
)

// EnvWorkonHome is the environment variable naming the registry root.
const EnvWorkonHome = "WORKON_HOME"

// Root returns the registry root: the WORKON_HOME environment variable if
// set, else the supplied fallback, else "".
func Root(fallback string) string {
	if root := os.Getenv(EnvWorkonHome); root != "" {
		return root
	}
	return fallback
}

// Resolve maps an update-path argument to a concrete path under root.
// An absolute argument wins over the registry root. The second return
// value reports whether registry resolution applied at all.
func Resolve(arg, root string) (string, bool) {
	if root == "" {
		return arg, false
	}
	resolved := arg
	if !filepath.IsAbs(arg) {
		resolved = filepath.Join(root, arg)
	}
	logger := logging.GetLogger("registry")
	logger.Debug().
		Str("arg", arg).Str("root", root).Str("resolved", resolved).
		Msg("resolved registry environment")
	return resolved, true
}
