package relocate_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/psolyca/virtualenv-tools/pkg/errors"
	"github.com/psolyca/virtualenv-tools/pkg/filesystem"
	"github.com/psolyca/virtualenv-tools/pkg/pyc"
	"github.com/psolyca/virtualenv-tools/pkg/relocate"
	"github.com/psolyca/virtualenv-tools/pkg/report"
	"github.com/psolyca/virtualenv-tools/pkg/testutil"
	"github.com/psolyca/virtualenv-tools/pkg/venv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func detect(t *testing.T, root string) *venv.Environment {
	t.Helper()
	env, err := venv.Detect(filesystem.NewOS(), root)
	require.NoError(t, err)
	return env
}

func TestRun_FullRelocation(t *testing.T) {
	v := testutil.NewVenv(t, testutil.Options{Version: "3.10", OrigPath: "/a/venv"})
	script := v.WriteScript(t, "pip", "/a/venv/bin/python")
	cache := filepath.Join(v.LibDir, "mod.pyc")
	testutil.WritePyc(t, cache, testutil.MagicPy310, "/a/venv/lib/python3.10/mod.py")
	pth := v.WriteFile(t, "lib/python3.10/site-packages/pkg.pth", "/a/venv/src/pkg\n", 0644)
	cfg := v.WriteFile(t, "pyvenv.cfg", "home = /usr/bin\nversion = 3.10.4\n", 0644)
	local := filepath.Join(v.Root, "local")
	require.NoError(t, os.MkdirAll(local, 0755))

	fsys := filesystem.NewOS()
	env := detect(t, v.Root)
	require.Equal(t, "/a/venv", env.OrigPath)

	var buf bytes.Buffer
	res, err := relocate.Run(fsys, env, relocate.Options{
		NewPath:       "/b/venv",
		BasePythonDir: "/opt/python/bin",
	}, report.New(&buf, true))
	require.NoError(t, err)
	assert.Equal(t, relocate.StateUpdated, res.State)
	assert.Equal(t, "/a/venv", res.OrigPath)
	assert.Equal(t, "/b/venv", res.NewPath)

	// Verbose diagnostics come out in pass order; the activation script
	// is always last.
	assert.Equal(t, fmt.Sprintf("S %s\nB %s\nP %s\nD %s\nA %s\n",
		script, cache, pth, local, filepath.Join(v.BinDir, "activate")), buf.String())

	data, err := os.ReadFile(script)
	require.NoError(t, err)
	assert.Equal(t, "#!/b/venv/bin/python\nimport sys\nsys.exit(0)\n", string(data))

	data, err = os.ReadFile(cache)
	require.NoError(t, err)
	f, err := pyc.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "/b/venv/mod.pyc", f.Top.Code.Filename.Text())

	data, err = os.ReadFile(pth)
	require.NoError(t, err)
	assert.Equal(t, "../../../src/pkg\n", string(data))

	data, err = os.ReadFile(cfg)
	require.NoError(t, err)
	assert.Equal(t, "home = /opt/python/bin\nversion = 3.10.4\n", string(data))

	assert.NoDirExists(t, local)

	data, err = os.ReadFile(filepath.Join(v.BinDir, "activate"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `VIRTUAL_ENV="/b/venv"`)
}

func TestRun_AlreadyUpToDate(t *testing.T) {
	v := testutil.NewVenv(t, testutil.Options{Version: "3.10"})
	script := v.WriteScript(t, "pip", filepath.Join(v.Root, "bin", "python"))
	before, err := os.ReadFile(script)
	require.NoError(t, err)

	env := detect(t, v.Root)

	var buf bytes.Buffer
	res, err := relocate.Run(filesystem.NewOS(), env, relocate.Options{NewPath: env.OrigPath}, report.New(&buf, true))
	require.NoError(t, err)
	assert.Equal(t, relocate.StateUpToDate, res.State)
	assert.Empty(t, buf.String())

	after, err := os.ReadFile(script)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRun_ForceRunsThePasses(t *testing.T) {
	v := testutil.NewVenv(t, testutil.Options{Version: "3.10"})
	env := detect(t, v.Root)

	var buf bytes.Buffer
	res, err := relocate.Run(filesystem.NewOS(), env, relocate.Options{
		NewPath: env.OrigPath,
		Force:   true,
	}, report.New(&buf, true))
	require.NoError(t, err)
	assert.Equal(t, relocate.StateUpdated, res.State)
	// Every file already carries the target path, so nothing is written.
	assert.Empty(t, buf.String())
}

func TestRun_NoBasePythonDirLeavesConfigAlone(t *testing.T) {
	v := testutil.NewVenv(t, testutil.Options{Version: "3.10", OrigPath: "/a/venv"})
	cfg := v.WriteFile(t, "pyvenv.cfg", "home = /usr/bin\n", 0644)

	env := detect(t, v.Root)
	_, err := relocate.Run(filesystem.NewOS(), env, relocate.Options{NewPath: "/b/venv"}, report.New(&bytes.Buffer{}, false))
	require.NoError(t, err)

	data, err := os.ReadFile(cfg)
	require.NoError(t, err)
	assert.Equal(t, "home = /usr/bin\n", string(data))
}

// An undecodable cache file aborts the run after the script pass and
// before the activation pass, so re-running after deleting the bad file
// picks up where it left off.
func TestRun_CorruptCacheFileAborts(t *testing.T) {
	v := testutil.NewVenv(t, testutil.Options{Version: "3.10", OrigPath: "/a/venv"})
	script := v.WriteScript(t, "pip", "/a/venv/bin/python")
	bad := v.WriteFile(t, "lib/python3.10/bad.pyc", "garbage", 0644)
	pth := v.WriteFile(t, "lib/python3.10/site-packages/pkg.pth", "/a/venv/src/pkg\n", 0644)

	env := detect(t, v.Root)

	var buf bytes.Buffer
	_, err := relocate.Run(filesystem.NewOS(), env, relocate.Options{NewPath: "/b/venv"}, report.New(&buf, false))
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrPycDecode))
	assert.Equal(t, "Error in "+bad+"\n", buf.String())

	// The script pass ran before the failure.
	data, err := os.ReadFile(script)
	require.NoError(t, err)
	assert.Contains(t, string(data), "#!/b/venv/bin/python")

	// Later passes never ran.
	data, err = os.ReadFile(pth)
	require.NoError(t, err)
	assert.Equal(t, "/a/venv/src/pkg\n", string(data))
	data, err = os.ReadFile(filepath.Join(v.BinDir, "activate"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `VIRTUAL_ENV="/a/venv"`)
}

func TestRun_PyPySiteAscent(t *testing.T) {
	v := testutil.NewVenv(t, testutil.Options{Version: "3.9", PyPy: true, OrigPath: "/a/venv"})
	pth := v.WriteFile(t, "site-packages/pkg.pth", "/a/venv/src/pkg\n", 0644)

	env := detect(t, v.Root)
	_, err := relocate.Run(filesystem.NewOS(), env, relocate.Options{NewPath: "/b/venv"}, report.New(&bytes.Buffer{}, false))
	require.NoError(t, err)

	data, err := os.ReadFile(pth)
	require.NoError(t, err)
	assert.Equal(t, "../src/pkg\n", string(data))
}
