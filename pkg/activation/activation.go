// Package activation rewrites the environment-path assignment carried by
// shell activation scripts.
//
// Each supported shell dialect gets its own tagged parser instead of one
// compound pattern, so adding a dialect is a pure extension.
package activation

import (
	"regexp"
	"strings"

	"github.com/psolyca/virtualenv-tools/pkg/errors"
	"github.com/psolyca/virtualenv-tools/pkg/filesystem"
	"github.com/psolyca/virtualenv-tools/pkg/report"
)

// ScriptNames are the recognized activation script filenames, one or more
// per shell dialect.
var ScriptNames = []string{
	"activate",
	"activate.csh",
	"activate.fish",
	"activate.xsh",
	"activate.bat",
	"Activate.ps1",
	"activate.ps1",
	"activate_this.py",
}

// IsActivationScript reports whether name is a recognized activation
// script filename.
func IsActivationScript(name string) bool {
	for _, n := range ScriptNames {
		if name == n {
			return true
		}
	}
	return false
}

// Span marks the half-open byte range of the path value within a line.
type Span struct {
	Start int
	End   int
}

// Parser detects the VIRTUAL_ENV assignment of one shell dialect.
type Parser struct {
	dialect string
	re      *regexp.Regexp
}

// Dialect returns the shell dialect this parser handles.
func (p Parser) Dialect() string { return p.dialect }

// Match returns the span of the assigned path value, if the line is this
// dialect's VIRTUAL_ENV assignment.
func (p Parser) Match(line string) (Span, bool) {
	idx := p.re.FindStringSubmatchIndex(line)
	if idx == nil {
		return Span{}, false
	}
	return Span{Start: idx[2], End: idx[3]}, true
}

// The optional quote run before the value is greedy and the value itself is
// lazy, so quotes stay outside the captured span.
const valuePattern = `['"]*(.*?)['"]*\s*$`

var parsers = []Parser{
	{dialect: "posix", re: regexp.MustCompile(`^VIRTUAL_ENV[ =]` + valuePattern)},
	{dialect: "csh", re: regexp.MustCompile(`^setenv VIRTUAL_ENV[ =]` + valuePattern)},
	{dialect: "fish", re: regexp.MustCompile(`^set -gx VIRTUAL_ENV[ =]` + valuePattern)},
	{dialect: "batch", re: regexp.MustCompile(`^set "VIRTUAL_ENV[ =]` + valuePattern)},
	{dialect: "powershell", re: regexp.MustCompile(`^\$env:VIRTUAL_ENV\s*=\s*` + valuePattern)},
}

// Parsers returns the dialect parsers in detection order.
func Parsers() []Parser {
	return parsers
}

// RewriteLine splices newPath over the path value of a matching assignment
// line, preserving every surrounding byte. Returns the line unchanged when
// no dialect matches.
func RewriteLine(line, newPath string) (string, bool) {
	for _, p := range parsers {
		span, ok := p.Match(line)
		if !ok {
			continue
		}
		rewritten := line[:span.Start] + newPath + line[span.End:]
		return rewritten, rewritten != line
	}
	return line, false
}

// Rewrite updates the environment path recorded in the activation script
// at path. The file is written back only when a line actually changed.
func Rewrite(fsys filesystem.FS, path, newPath string, rep *report.Reporter) (bool, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return false, errors.Wrapf(err, errors.ErrFileAccess, "reading activation script %s", path)
	}

	lines := splitAfterNewlines(string(data))
	changed := false
	for i, line := range lines {
		body, eol := splitLineEnding(line)
		rewritten, ok := RewriteLine(body, newPath)
		if ok {
			lines[i] = rewritten + eol
			changed = true
		}
	}
	if !changed {
		return false, nil
	}

	info, err := fsys.Stat(path)
	if err != nil {
		return false, errors.Wrapf(err, errors.ErrFileAccess, "stat activation script %s", path)
	}
	if err := fsys.WriteFile(path, []byte(strings.Join(lines, "")), info.Mode().Perm()); err != nil {
		return false, errors.Wrapf(err, errors.ErrFileWrite, "writing activation script %s", path)
	}
	rep.Changed(report.TagActivation, path)
	return true, nil
}

// splitAfterNewlines splits s into lines that keep their trailing newline,
// like reading a file line by line.
func splitAfterNewlines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// splitLineEnding separates a line body from its newline suffix.
func splitLineEnding(line string) (body, eol string) {
	if strings.HasSuffix(line, "\r\n") {
		return line[:len(line)-2], "\r\n"
	}
	if strings.HasSuffix(line, "\n") {
		return line[:len(line)-1], "\n"
	}
	return line, ""
}
