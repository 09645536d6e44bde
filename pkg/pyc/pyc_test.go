package pyc_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/psolyca/virtualenv-tools/pkg/errors"
	"github.com/psolyca/virtualenv-tools/pkg/filesystem"
	"github.com/psolyca/virtualenv-tools/pkg/pyc"
	"github.com/psolyca/virtualenv-tools/pkg/report"
	"github.com/psolyca/virtualenv-tools/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeModule(t *testing.T, magic uint16, sourcePath string) []byte {
	t.Helper()
	f, err := pyc.NewFile(magic, testutil.NewModuleObject(sourcePath))
	require.NoError(t, err)
	data, err := f.Encode()
	require.NoError(t, err)
	return data
}

func TestParseEncode_RoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		magic     uint16
		headerLen int
	}{
		{name: "3.10", magic: testutil.MagicPy310, headerLen: 16},
		{name: "3.7", magic: testutil.MagicPy37, headerLen: 16},
		{name: "3.4", magic: 3310, headerLen: 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := encodeModule(t, tt.magic, "/a/venv/lib/python3.10/mod.py")

			f, err := pyc.Parse(data)
			require.NoError(t, err)
			assert.Len(t, f.Header, tt.headerLen)

			out, err := f.Encode()
			require.NoError(t, err)
			assert.Equal(t, data, out)
		})
	}
}

func TestParse_SharedFilename(t *testing.T) {
	data := encodeModule(t, testutil.MagicPy310, "/a/venv/mod.py")

	f, err := pyc.Parse(data)
	require.NoError(t, err)

	module := f.Top.Code
	inner := module.Consts.Items[0]
	require.Equal(t, byte(pyc.TypeCode), inner.Type)
	assert.Equal(t, "/a/venv/mod.py", module.Filename.Text())
	assert.Equal(t, "/a/venv/mod.py", inner.Code.Filename.Text())
}

func TestParse_BadInput(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		code errors.ErrorCode
	}{
		{name: "empty", data: nil, code: errors.ErrPycDecode},
		{name: "bad crlf", data: []byte{0x6f, 0x0d, 'x', 'y'}, code: errors.ErrPycDecode},
		{
			name: "truncated stream",
			data: encodeModule(t, testutil.MagicPy310, "/a/venv/mod.py")[:40],
			code: errors.ErrPycDecode,
		},
		{
			name: "3.11 magic",
			data: []byte{0xa7, 0x0d, '\r', '\n', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
			code: errors.ErrPycUnsupported,
		},
		{
			name: "pre-3.3 magic",
			data: []byte{0x01, 0x00, '\r', '\n', 0, 0, 0, 0},
			code: errors.ErrPycUnsupported,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pyc.Parse(tt.data)
			require.Error(t, err)
			assert.True(t, errors.IsErrorCode(err, tt.code))
		})
	}
}

func TestNewFile_UnsupportedMagic(t *testing.T) {
	_, err := pyc.NewFile(3495, testutil.NewModuleObject("/a/mod.py"))
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrPycUnsupported))
}

func TestRewriteObject(t *testing.T) {
	data := encodeModule(t, testutil.MagicPy310, "/a/venv/mod.py")
	f, err := pyc.Parse(data)
	require.NoError(t, err)

	top, changed := pyc.RewriteObject(f.Top, "/b/venv/mod.py")
	require.True(t, changed)

	module := top.Code
	inner := module.Consts.Items[0]
	assert.Equal(t, "/b/venv/mod.py", module.Filename.Text())
	assert.Equal(t, "/b/venv/mod.py", inner.Code.Filename.Text())
	// Everything but the filename is carried over untouched.
	assert.Equal(t, f.Top.Code.Flags, module.Flags)
	assert.Same(t, f.Top.Code.Instructions, module.Instructions)
	assert.Same(t, f.Top.Code.Names, module.Names)

	// Rewriting to the current path is a no-op.
	same, changed := pyc.RewriteObject(top, "/b/venv/mod.py")
	assert.False(t, changed)
	assert.Same(t, top, same)
}

func TestRewriteObject_PreservesSharing(t *testing.T) {
	data := encodeModule(t, testutil.MagicPy310, "/a/venv/mod.py")
	f, err := pyc.Parse(data)
	require.NoError(t, err)

	top, changed := pyc.RewriteObject(f.Top, "/b/venv/mod.py")
	require.True(t, changed)

	rewritten, err := pyc.NewFile(testutil.MagicPy310, top)
	require.NoError(t, err)
	out, err := rewritten.Encode()
	require.NoError(t, err)

	// The replacement filename appears once in full; the second
	// occurrence is a back-reference, so the stream grows only by the
	// length difference of the two paths.
	assert.Equal(t, len(data), len(out))
	assert.Equal(t, 1, bytes.Count(out, []byte("/b/venv/mod.py")))
}

func TestRewriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mod.pyc")
	testutil.WritePyc(t, path, testutil.MagicPy310, "/a/venv/mod.py")

	var buf bytes.Buffer
	rep := report.New(&buf, true)
	fsys := filesystem.NewOS()

	changed, err := pyc.RewriteFile(fsys, path, "/b/venv/mod.py", rep)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "B "+path+"\n", buf.String())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	f, err := pyc.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "/b/venv/mod.py", f.Top.Code.Filename.Text())

	// A second run over the same path leaves the file alone.
	buf.Reset()
	changed, err = pyc.RewriteFile(fsys, path, "/b/venv/mod.py", rep)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, buf.String())
}

func TestRewriteFile_ThereAndBackAgain(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mod.pyc")
	testutil.WritePyc(t, path, testutil.MagicPy310, "/a/venv/mod.py")
	orig, err := os.ReadFile(path)
	require.NoError(t, err)

	rep := report.New(&bytes.Buffer{}, false)
	fsys := filesystem.NewOS()

	_, err = pyc.RewriteFile(fsys, path, "/b/venv/mod.py", rep)
	require.NoError(t, err)
	_, err = pyc.RewriteFile(fsys, path, "/a/venv/mod.py", rep)
	require.NoError(t, err)

	back, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, orig, back)
}

func TestRewriteFile_Corrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mod.pyc")
	require.NoError(t, os.WriteFile(path, []byte("not a cache file"), 0644))

	var buf bytes.Buffer
	_, err := pyc.RewriteFile(filesystem.NewOS(), path, "/b/venv/mod.py", report.New(&buf, false))
	require.Error(t, err)
	assert.Equal(t, "Error in "+path+"\n", buf.String())
}

func TestWalk(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "site-packages", "__pycache__"), 0755))
	testutil.WritePyc(t, filepath.Join(dir, "mod.pyc"), testutil.MagicPy310, "/a/venv/lib/mod.py")
	testutil.WritePyc(t, filepath.Join(dir, "site-packages", "__pycache__", "pkg.cpython-310.pyc"),
		testutil.MagicPy310, "/a/venv/lib/site-packages/pkg.py")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plain.py"), []byte("x = 1\n"), 0644))

	var buf bytes.Buffer
	err := pyc.Walk(filesystem.NewOS(), dir, "/b/venv/lib", report.New(&buf, false))
	require.NoError(t, err)

	for rel, want := range map[string]string{
		"mod.pyc": "/b/venv/lib/mod.pyc",
		"site-packages/__pycache__/pkg.cpython-310.pyc": "/b/venv/lib/site-packages/__pycache__/pkg.cpython-310.pyc",
	} {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
		require.NoError(t, err)
		f, err := pyc.Parse(data)
		require.NoError(t, err)
		assert.Equal(t, want, f.Top.Code.Filename.Text(), rel)
	}
}

func TestWalk_SkipsSymlinkedFiles(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(dir, "outside.pyc")
	testutil.WritePyc(t, outside, testutil.MagicPy310, "/base/mod.py")
	before, err := os.ReadFile(outside)
	require.NoError(t, err)

	libDir := filepath.Join(dir, "lib")
	require.NoError(t, os.MkdirAll(libDir, 0755))
	require.NoError(t, os.Symlink(outside, filepath.Join(libDir, "mod.pyc")))

	require.NoError(t, pyc.Walk(filesystem.NewOS(), libDir, "/b/venv/lib", report.New(&bytes.Buffer{}, false)))

	after, err := os.ReadFile(outside)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

// A decode failure stops the walk; files sorting after the bad one are
// left untouched.
func TestWalk_StopsAtCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pyc"), []byte("garbage"), 0644))
	testutil.WritePyc(t, filepath.Join(dir, "z.pyc"), testutil.MagicPy310, "/a/venv/lib/z.py")
	before, err := os.ReadFile(filepath.Join(dir, "z.pyc"))
	require.NoError(t, err)

	var buf bytes.Buffer
	err = pyc.Walk(filesystem.NewOS(), dir, "/b/venv/lib", report.New(&buf, false))
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrPycDecode))
	assert.Equal(t, "Error in "+filepath.Join(dir, "a.pyc")+"\n", buf.String())

	after, err := os.ReadFile(filepath.Join(dir, "z.pyc"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
