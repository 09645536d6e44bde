// Package pyc reads, rewrites and writes CPython bytecode cache files.
//
// A cache file is a fixed-size header followed by one marshal-serialized
// code object. The package decodes the marshal stream into a shared-node
// tree, rewrites every reachable code object's source filename, and
// re-serializes, preserving reference sharing and leaving every other
// field untouched.
package pyc

// Marshal type codes. The high bit of the on-wire type byte is the
// reference flag and is stored separately.
const (
	TypeNull          = '0'
	TypeNone          = 'N'
	TypeFalse         = 'F'
	TypeTrue          = 'T'
	TypeStopIteration = 'S'
	TypeEllipsis      = '.'

	TypeInt           = 'i'
	TypeInt64         = 'I'
	TypeFloat         = 'f'
	TypeBinaryFloat   = 'g'
	TypeComplex       = 'x'
	TypeBinaryComplex = 'y'
	TypeLong          = 'l'

	TypeString             = 's'
	TypeInterned           = 't'
	TypeUnicode            = 'u'
	TypeAscii              = 'a'
	TypeAsciiInterned      = 'A'
	TypeShortAscii         = 'z'
	TypeShortAsciiInterned = 'Z'

	TypeTuple      = '('
	TypeSmallTuple = ')'
	TypeList       = '['
	TypeDict       = '{'
	TypeSet        = '<'
	TypeFrozenSet  = '>'

	TypeCode = 'c'
	TypeRef  = 'r'

	flagRef = 0x80
)

// Object is one node of a decoded marshal stream. Nodes are treated as
// immutable after decoding; rewriting builds replacement nodes.
type Object struct {
	// Type is the marshal type code with the reference flag stripped.
	Type byte
	// Ref records whether the node carried the reference flag, i.e. it
	// occupies a slot in the stream's back-reference table.
	Ref bool
	// Data holds the payload: decoded text for string-like types, the
	// verbatim wire bytes for numeric types.
	Data []byte
	// Items holds container elements; dict entries are flattened
	// key/value pairs.
	Items []*Object
	// Target is the referenced node for TypeRef.
	Target *Object
	// Code is the payload for TypeCode.
	Code *Code
}

// Code mirrors the marshal layout of a code object for CPython 3.3-3.10.
// Only Filename (and Consts, transitively) is ever rewritten.
type Code struct {
	ArgCount        uint32
	PosOnlyArgCount uint32 // present on the wire for 3.8+ only
	KwOnlyArgCount  uint32
	NLocals         uint32
	StackSize       uint32
	Flags           uint32

	Instructions *Object
	Consts       *Object
	Names        *Object
	VarNames     *Object
	FreeVars     *Object
	CellVars     *Object
	Filename     *Object
	Name         *Object

	FirstLineNo uint32
	LineTable   *Object
}

// Text returns the string value of a string-like node, following
// back-references.
func (o *Object) Text() string {
	for o.Type == TypeRef {
		o = o.Target
	}
	return string(o.Data)
}

// isStringType reports whether t carries text payload with a length prefix.
func isStringType(t byte) bool {
	switch t {
	case TypeString, TypeInterned, TypeUnicode, TypeAscii, TypeAsciiInterned,
		TypeShortAscii, TypeShortAsciiInterned:
		return true
	}
	return false
}
