package virtualenvtools

// Short messages (one-liners)
const (
	MsgRootShort = "Update the paths of a moved virtualenv"
	MsgRootLong  = `virtualenv-tools updates a virtualenv in place after it has been moved or
copied to a new location: script shebangs, activation scripts, bytecode
caches, path manifests and pyvenv.cfg are all rewritten to the new path.`

	// Result messages, part of the stdout contract.
	MsgAlreadyUpToDate = "Already up-to-date: %s (%s)\n"
	MsgUpdated         = "Updated: %s (%s -> %s)\n"

	// Argument validation, also part of the stdout contract.
	MsgUpdatePathNotAbsolute    = "--update-path must be absolute: %s\n"
	MsgBasePythonDirNotAbsolute = "--base-python-dir must be absolute: %s\n"

	// Flag descriptions
	MsgFlagUpdatePath = `New path for all executables and helper files. Set to "auto" to use the
absolute form of the path argument. When WORKON_HOME (or the configured
environment root) is set, a bare name refers to that environment.`
	MsgFlagBasePythonDir = `Directory of the Python installation the virtualenv loads its standard
library from; used to update pyvenv.cfg. Omit or set to "auto" to leave
pyvenv.cfg alone.`
	MsgFlagForce   = "Run the rewrite passes even if the recorded path already matches"
	MsgFlagVerbose = "Increase verbosity (-v also lists every changed file)"
)

// autoSentinel asks for the update path to be derived from the
// environment path argument.
const autoSentinel = "auto"
