// Package pyvenv rewrites the base-interpreter location recorded in an
// environment's pyvenv.cfg file.
package pyvenv

import (
	"os"
	"strings"

	"github.com/psolyca/virtualenv-tools/pkg/errors"
	"github.com/psolyca/virtualenv-tools/pkg/filesystem"
	"github.com/psolyca/virtualenv-tools/pkg/logging"
)

const homeKey = "home"

// Rewrite replaces the value of the first "home" line of the config file
// at path with newBaseDir. The file and the key are optional metadata: a
// missing file, lines without a separator, or an absent key are all
// tolerated silently.
func Rewrite(fsys filesystem.FS, path, newBaseDir string) (bool, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger := logging.GetLogger("pyvenv")
			logger.Debug().Str("path", path).Msg("no pyvenv.cfg, nothing to rewrite")
			return false, nil
		}
		return false, errors.Wrapf(err, errors.ErrFileAccess, "reading %s", path)
	}

	lines := strings.SplitAfter(string(data), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	changed := false
	for i, line := range lines {
		key, _, found := strings.Cut(line, "=")
		if !found || strings.TrimSpace(key) != homeKey {
			continue
		}
		rewritten := homeKey + " = " + newBaseDir + "\n"
		if rewritten != line {
			lines[i] = rewritten
			changed = true
		}
		break
	}
	if !changed {
		return false, nil
	}

	info, err := fsys.Stat(path)
	if err != nil {
		return false, errors.Wrapf(err, errors.ErrFileAccess, "stat %s", path)
	}
	if err := fsys.WriteFile(path, []byte(strings.Join(lines, "")), info.Mode().Perm()); err != nil {
		return false, errors.Wrapf(err, errors.ErrFileWrite, "writing %s", path)
	}
	return true, nil
}
