package venv

import "regexp"

// Flavor identifies the interpreter implementation a virtualenv was built
// for. The flavors differ in on-disk layout, not just naming.
type Flavor int

const (
	// CPython is the standard implementation layout (lib/pythonX.Y).
	CPython Flavor = iota
	// PyPy is the alternate implementation layout (lib-python/X.Y plus a
	// lib_pypy directory, site-packages at the root).
	PyPy
)

func (f Flavor) String() string {
	if f == PyPy {
		return "pypy"
	}
	return "cpython"
}

// Layout captures every flavor- and platform-dependent name and depth in
// one table, resolved once at detection time.
type Layout struct {
	Flavor  Flavor
	Windows bool

	// BinDirName is the executables directory under the environment root.
	BinDirName string
	// LibDirName is the library base directory under the environment root.
	LibDirName string
	// VersionPattern matches the single versioned directory expected under
	// the library base on POSIX layouts.
	VersionPattern *regexp.Regexp
	// WildcardName is the digit-wildcarded version directory name used in
	// classification error messages.
	WildcardName string
	// SiteAscent is the fixed relative-ascent prefix from site-packages
	// back to the environment root, used for path manifests.
	SiteAscent string
	// ScriptMarker is the two-byte prefix identifying rewritable scripts
	// in the bin directory.
	ScriptMarker []byte
}

var (
	cpythonVersionPattern = regexp.MustCompile(`^python\d+\.\d+$`)
	pypyVersionPattern    = regexp.MustCompile(`^\d+\.\d+$`)
)

// LayoutFor returns the layout table entry for a flavor/platform pair.
func LayoutFor(flavor Flavor, windows bool) Layout {
	l := Layout{
		Flavor:         flavor,
		Windows:        windows,
		BinDirName:     "bin",
		LibDirName:     "lib",
		VersionPattern: cpythonVersionPattern,
		WildcardName:   "python#.#",
		SiteAscent:     "../../..",
		ScriptMarker:   []byte("#!"),
	}
	if flavor == PyPy {
		l.LibDirName = "lib-python"
		l.VersionPattern = pypyVersionPattern
		l.WildcardName = "#.#"
		l.SiteAscent = ".."
	}
	if windows {
		l.BinDirName = "Scripts"
		l.ScriptMarker = []byte("MZ")
		if flavor != PyPy {
			l.SiteAscent = "../.."
		}
	}
	return l
}
