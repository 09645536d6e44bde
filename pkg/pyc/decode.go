package pyc

import (
	"encoding/binary"

	"github.com/psolyca/virtualenv-tools/pkg/errors"
)

// maxDepth bounds nesting while decoding, mirroring CPython's marshal
// stack limit, so corrupt input cannot exhaust the goroutine stack.
const maxDepth = 2000

// File is a decoded bytecode cache file.
type File struct {
	// Header holds the magic/validation words verbatim; it is copied
	// through unchanged on encode.
	Header []byte
	// Top is the module-level code object.
	Top *Object

	format format
}

// NewFile builds an in-memory cache file with a zeroed timestamp/size
// header for the given magic word. The top-level object is supplied by
// the caller.
func NewFile(magic uint16, top *Object) (*File, error) {
	f, err := formatFor(magic)
	if err != nil {
		return nil, err
	}
	header := make([]byte, f.headerLen)
	binary.LittleEndian.PutUint16(header[:2], magic)
	header[2] = '\r'
	header[3] = '\n'
	return &File{Header: header, Top: top, format: f}, nil
}

// Parse decodes a complete cache file.
func Parse(data []byte) (*File, error) {
	f, err := parseHeader(data)
	if err != nil {
		return nil, err
	}
	d := &decoder{data: data, pos: f.headerLen, hasPosOnly: f.hasPosOnly}
	top, err := d.object()
	if err != nil {
		return nil, err
	}
	header := make([]byte, f.headerLen)
	copy(header, data[:f.headerLen])
	return &File{Header: header, Top: top, format: f}, nil
}

type decoder struct {
	data       []byte
	pos        int
	refs       []*Object
	hasPosOnly bool
	depth      int
}

func (d *decoder) object() (*Object, error) {
	d.depth++
	if d.depth > maxDepth {
		return nil, errors.New(errors.ErrPycDecode, "marshal nesting too deep")
	}
	defer func() { d.depth-- }()

	b, err := d.byte()
	if err != nil {
		return nil, err
	}
	obj := &Object{Type: b &^ flagRef, Ref: b&flagRef != 0}
	// Reference slots are claimed in pre-order, before any children are
	// decoded, matching the writer's numbering.
	if obj.Ref && obj.Type != TypeRef {
		d.refs = append(d.refs, obj)
	}

	switch obj.Type {
	case TypeNull, TypeNone, TypeFalse, TypeTrue, TypeStopIteration, TypeEllipsis:
		// no payload

	case TypeInt:
		obj.Data, err = d.take(4)
	case TypeInt64:
		obj.Data, err = d.take(8)
	case TypeBinaryFloat:
		obj.Data, err = d.take(8)
	case TypeBinaryComplex:
		obj.Data, err = d.take(16)
	case TypeFloat, TypeComplex:
		obj.Data, err = d.shortBytes()
	case TypeLong:
		obj.Data, err = d.longBytes()

	case TypeString, TypeInterned, TypeUnicode, TypeAscii, TypeAsciiInterned:
		var n uint32
		if n, err = d.uint32(); err == nil {
			obj.Data, err = d.take(int(n))
		}
	case TypeShortAscii, TypeShortAsciiInterned:
		obj.Data, err = d.shortBytes()

	case TypeTuple, TypeList, TypeSet, TypeFrozenSet:
		var n uint32
		if n, err = d.uint32(); err == nil {
			err = d.items(obj, int(n))
		}
	case TypeSmallTuple:
		var n byte
		if n, err = d.byte(); err == nil {
			err = d.items(obj, int(n))
		}
	case TypeDict:
		err = d.dictItems(obj)

	case TypeRef:
		var n uint32
		if n, err = d.uint32(); err == nil {
			if int(n) >= len(d.refs) {
				return nil, errors.Newf(errors.ErrPycDecode, "marshal ref %d out of range", n)
			}
			obj.Target = d.refs[n]
		}

	case TypeCode:
		obj.Code, err = d.code()

	default:
		return nil, errors.Newf(errors.ErrPycDecode, "unknown marshal type 0x%02x", obj.Type)
	}
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (d *decoder) code() (*Code, error) {
	c := &Code{}
	scalars := []*uint32{&c.ArgCount}
	if d.hasPosOnly {
		scalars = append(scalars, &c.PosOnlyArgCount)
	}
	scalars = append(scalars, &c.KwOnlyArgCount, &c.NLocals, &c.StackSize, &c.Flags)
	for _, p := range scalars {
		v, err := d.uint32()
		if err != nil {
			return nil, err
		}
		*p = v
	}
	for _, p := range []**Object{
		&c.Instructions, &c.Consts, &c.Names, &c.VarNames,
		&c.FreeVars, &c.CellVars, &c.Filename, &c.Name,
	} {
		o, err := d.object()
		if err != nil {
			return nil, err
		}
		*p = o
	}
	v, err := d.uint32()
	if err != nil {
		return nil, err
	}
	c.FirstLineNo = v
	if c.LineTable, err = d.object(); err != nil {
		return nil, err
	}
	return c, nil
}

func (d *decoder) items(obj *Object, n int) error {
	if n < 0 || n > len(d.data)-d.pos {
		return errors.Newf(errors.ErrPycDecode, "marshal container size %d exceeds input", n)
	}
	obj.Items = make([]*Object, 0, n)
	for i := 0; i < n; i++ {
		item, err := d.object()
		if err != nil {
			return err
		}
		obj.Items = append(obj.Items, item)
	}
	return nil
}

// dictItems reads key/value pairs until the NULL terminator key.
func (d *decoder) dictItems(obj *Object) error {
	for {
		key, err := d.object()
		if err != nil {
			return err
		}
		if key.Type == TypeNull {
			return nil
		}
		val, err := d.object()
		if err != nil {
			return err
		}
		obj.Items = append(obj.Items, key, val)
	}
}

// longBytes keeps a variable-width integer's payload verbatim, including
// its leading digit count.
func (d *decoder) longBytes() ([]byte, error) {
	start := d.pos
	raw, err := d.take(4)
	if err != nil {
		return nil, err
	}
	n := int32(binary.LittleEndian.Uint32(raw))
	if n < 0 {
		n = -n
	}
	if _, err := d.take(int(n) * 2); err != nil {
		return nil, err
	}
	return d.data[start:d.pos], nil
}

func (d *decoder) shortBytes() ([]byte, error) {
	n, err := d.byte()
	if err != nil {
		return nil, err
	}
	return d.take(int(n))
}

func (d *decoder) byte() (byte, error) {
	if d.pos >= len(d.data) {
		return 0, errors.New(errors.ErrPycDecode, "unexpected end of marshal stream")
	}
	b := d.data[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || d.pos+n > len(d.data) {
		return nil, errors.New(errors.ErrPycDecode, "unexpected end of marshal stream")
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) uint32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}
