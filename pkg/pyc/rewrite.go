package pyc

import (
	"github.com/psolyca/virtualenv-tools/pkg/errors"
	"github.com/psolyca/virtualenv-tools/pkg/filesystem"
	"github.com/psolyca/virtualenv-tools/pkg/report"
)

// RewriteObject returns a version of top in which every reachable code
// object's filename equals newPath, plus whether anything changed.
//
// Only nodes on the path to a changed descendant are rebuilt; unchanged
// subtrees are shared with the input. All rewritten code objects share a
// single replacement filename node, so reference sharing in the output
// stream matches what the interpreter produces.
func RewriteObject(top *Object, newPath string) (*Object, bool) {
	rw := &rewriter{newPath: newPath, memo: make(map[*Object]*Object)}
	out := rw.rewrite(top)
	return out, out != top
}

type rewriter struct {
	newPath  string
	memo     map[*Object]*Object
	filename *Object
}

func (rw *rewriter) rewrite(o *Object) *Object {
	if out, ok := rw.memo[o]; ok {
		return out
	}
	out := o
	switch o.Type {
	case TypeTuple, TypeSmallTuple, TypeList, TypeSet, TypeFrozenSet, TypeDict:
		items := make([]*Object, len(o.Items))
		changed := false
		for i, item := range o.Items {
			items[i] = rw.rewrite(item)
			if items[i] != item {
				changed = true
			}
		}
		if changed {
			out = &Object{Type: o.Type, Ref: o.Ref, Items: items}
		}

	case TypeRef:
		if target := rw.rewrite(o.Target); target != o.Target {
			out = &Object{Type: TypeRef, Target: target}
		}

	case TypeCode:
		c := o.Code
		consts := rw.rewrite(c.Consts)
		if consts != c.Consts || c.Filename.Text() != rw.newPath {
			replacement := *c
			replacement.Consts = consts
			replacement.Filename = rw.filenameNode(c.Filename)
			out = &Object{Type: TypeCode, Ref: o.Ref, Code: &replacement}
		}
	}
	rw.memo[o] = out
	return out
}

// filenameNode lazily builds the shared replacement filename, keyed off
// the first original filename encountered so interning and reference
// flags carry over.
func (rw *rewriter) filenameNode(template *Object) *Object {
	if rw.filename != nil {
		return rw.filename
	}
	for template.Type == TypeRef {
		template = template.Target
	}
	rw.filename = newStringObject(rw.newPath, template)
	return rw.filename
}

// newStringObject picks the narrowest marshal string type that can carry
// value, keeping the template's interning and reference flag.
func newStringObject(value string, template *Object) *Object {
	interned := template.Type == TypeInterned ||
		template.Type == TypeAsciiInterned ||
		template.Type == TypeShortAsciiInterned

	t := byte(TypeUnicode)
	if isASCII(value) {
		switch {
		case len(value) < 256 && interned:
			t = TypeShortAsciiInterned
		case len(value) < 256:
			t = TypeShortAscii
		case interned:
			t = TypeAsciiInterned
		default:
			t = TypeAscii
		}
	}
	return &Object{Type: t, Ref: template.Ref, Data: []byte(value)}
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// RewriteFile rewrites the embedded source path of a single cache file.
// A file whose content would not change is left untouched. An
// undecodable file is reported on stdout ("Error in <path>") and the
// decode error is returned for the caller's policy to apply.
func RewriteFile(fsys filesystem.FS, path, newSourcePath string, rep *report.Reporter) (bool, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return false, errors.Wrapf(err, errors.ErrFileAccess, "reading cache file %s", path)
	}

	f, err := Parse(data)
	if err != nil {
		rep.Corrupt(path)
		return false, err
	}

	top, changed := RewriteObject(f.Top, newSourcePath)
	if !changed {
		return false, nil
	}

	out, err := (&File{Header: f.Header, Top: top, format: f.format}).Encode()
	if err != nil {
		return false, errors.Wrapf(err, errors.ErrInternal, "re-encoding cache file %s", path)
	}

	info, err := fsys.Stat(path)
	if err != nil {
		return false, errors.Wrapf(err, errors.ErrFileAccess, "stat cache file %s", path)
	}
	if err := fsys.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return false, errors.Wrapf(err, errors.ErrFileWrite, "writing cache file %s", path)
	}
	rep.Changed(report.TagBytecode, path)
	return true, nil
}
