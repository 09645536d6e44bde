// Package report emits the per-file change diagnostics of a relocation run.
//
// It replaces the reference tool's process-wide verbosity flag with an
// explicit value threaded through every rewriter.
package report

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/psolyca/virtualenv-tools/pkg/logging"
)

// Tag is the one-letter prefix identifying what kind of file changed.
type Tag byte

const (
	TagActivation Tag = 'A' // activation script rewritten
	TagScript     Tag = 'S' // script shebang rewritten
	TagBytecode   Tag = 'B' // bytecode cache rewritten
	TagManifest   Tag = 'P' // path manifest rewritten
	TagRemoved    Tag = 'D' // directory removed
)

// Reporter prints per-file diagnostics to out when verbose, and always
// records them on the component logger.
type Reporter struct {
	out     io.Writer
	verbose bool
	logger  zerolog.Logger
}

// New creates a Reporter writing verbose diagnostics to out.
func New(out io.Writer, verbose bool) *Reporter {
	return &Reporter{
		out:     out,
		verbose: verbose,
		logger:  logging.GetLogger("report"),
	}
}

// Changed records that the file at path was rewritten (or removed, for
// TagRemoved). In verbose mode it prints the "<tag> <path>" contract line.
func (r *Reporter) Changed(tag Tag, path string) {
	r.logger.Debug().Str("path", path).Str("tag", string(tag)).Msg("file changed")
	if r.verbose {
		fmt.Fprintf(r.out, "%c %s\n", tag, path)
	}
}

// Corrupt records an undecodable bytecode cache file. The message is part
// of the stdout contract and prints regardless of verbosity.
func (r *Reporter) Corrupt(path string) {
	r.logger.Error().Str("path", path).Msg("cache file could not be decoded")
	fmt.Fprintf(r.out, "Error in %s\n", path)
}
