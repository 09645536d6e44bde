package testutil

import (
	"os"
	"testing"

	"github.com/psolyca/virtualenv-tools/pkg/pyc"
)

// MagicPy310 is a CPython 3.10 cache file magic word.
const MagicPy310 uint16 = 3439

// MagicPy37 is a CPython 3.7 cache file magic word (no posonly count).
const MagicPy37 uint16 = 3394

// NewModuleObject builds a module-level code object carrying one nested
// function code object. The nested code references the module's filename
// through the marshal back-reference table, the way the interpreter
// serializes real modules.
func NewModuleObject(filename string) *pyc.Object {
	filenameNode := &pyc.Object{Type: pyc.TypeShortAsciiInterned, Ref: true, Data: []byte(filename)}

	inner := &pyc.Object{Type: pyc.TypeCode, Ref: true, Code: &pyc.Code{
		ArgCount:     1,
		NLocals:      1,
		StackSize:    1,
		Flags:        0x43,
		Instructions: rawBytes("d\x00S\x00"),
		Consts:       smallTuple(none()),
		Names:        smallTuple(),
		VarNames:     smallTuple(str("x")),
		FreeVars:     smallTuple(),
		CellVars:     smallTuple(),
		Filename:     &pyc.Object{Type: pyc.TypeRef, Target: filenameNode},
		Name:         str("f"),
		FirstLineNo:  2,
		LineTable:    rawBytes("\x04\x01"),
	}}

	return &pyc.Object{Type: pyc.TypeCode, Ref: true, Code: &pyc.Code{
		StackSize:    2,
		Flags:        0x40,
		Instructions: rawBytes("d\x00d\x01\x84\x00Z\x00d\x02S\x00"),
		Consts:       smallTuple(inner, str("f"), none()),
		Names:        smallTuple(str("f")),
		VarNames:     smallTuple(),
		FreeVars:     smallTuple(),
		CellVars:     smallTuple(),
		Filename:     filenameNode,
		Name:         str("<module>"),
		FirstLineNo:  1,
		LineTable:    rawBytes("\x08\x01"),
	}}
}

// WritePyc encodes a synthetic cache file for the given source path and
// writes it to path.
func WritePyc(t *testing.T, path string, magic uint16, sourcePath string) {
	t.Helper()
	f, err := pyc.NewFile(magic, NewModuleObject(sourcePath))
	if err != nil {
		t.Fatalf("building cache file: %v", err)
	}
	data, err := f.Encode()
	if err != nil {
		t.Fatalf("encoding cache file: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("writing cache file %s: %v", path, err)
	}
}

func str(s string) *pyc.Object {
	return &pyc.Object{Type: pyc.TypeShortAscii, Data: []byte(s)}
}

func rawBytes(s string) *pyc.Object {
	return &pyc.Object{Type: pyc.TypeString, Data: []byte(s)}
}

func none() *pyc.Object {
	return &pyc.Object{Type: pyc.TypeNone}
}

func smallTuple(items ...*pyc.Object) *pyc.Object {
	return &pyc.Object{Type: pyc.TypeSmallTuple, Items: items}
}
