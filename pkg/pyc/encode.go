package pyc

import (
	"bytes"
	"encoding/binary"

	"github.com/psolyca/virtualenv-tools/pkg/errors"
)

// Encode serializes the file back to its on-disk form: the retained
// header followed by the marshal stream. Reference numbering is assigned
// in pre-order during the write, mirroring how it was read.
func (f *File) Encode() ([]byte, error) {
	e := &encoder{refs: make(map[*Object]uint32), hasPosOnly: f.format.hasPosOnly}
	if err := e.object(f.Top); err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(f.Header)+e.buf.Len())
	out = append(out, f.Header...)
	return append(out, e.buf.Bytes()...), nil
}

type encoder struct {
	buf        bytes.Buffer
	refs       map[*Object]uint32
	hasPosOnly bool
}

func (e *encoder) object(o *Object) error {
	if o.Type == TypeRef {
		// A back-reference from the decoded stream. If its target was
		// already emitted use its slot; otherwise emit the target in
		// full here and let later occurrences reference it.
		if idx, ok := e.refs[o.Target]; ok {
			e.buf.WriteByte(TypeRef)
			e.uint32(idx)
			return nil
		}
		return e.object(o.Target)
	}

	if o.Ref {
		if idx, ok := e.refs[o]; ok {
			// The same shared node appearing again structurally.
			e.buf.WriteByte(TypeRef)
			e.uint32(idx)
			return nil
		}
		e.refs[o] = uint32(len(e.refs))
	}

	t := o.Type
	if o.Ref {
		t |= flagRef
	}
	e.buf.WriteByte(t)

	switch o.Type {
	case TypeNull, TypeNone, TypeFalse, TypeTrue, TypeStopIteration, TypeEllipsis:
		return nil

	case TypeInt, TypeInt64, TypeBinaryFloat, TypeBinaryComplex, TypeLong:
		// Numeric payloads are carried verbatim.
		e.buf.Write(o.Data)
		return nil

	case TypeFloat, TypeComplex, TypeShortAscii, TypeShortAsciiInterned:
		if len(o.Data) > 255 {
			return errors.Newf(errors.ErrInternal, "short marshal payload exceeds 255 bytes (type %q)", o.Type)
		}
		e.buf.WriteByte(byte(len(o.Data)))
		e.buf.Write(o.Data)
		return nil

	case TypeString, TypeInterned, TypeUnicode, TypeAscii, TypeAsciiInterned:
		e.uint32(uint32(len(o.Data)))
		e.buf.Write(o.Data)
		return nil

	case TypeTuple, TypeList, TypeSet, TypeFrozenSet:
		e.uint32(uint32(len(o.Items)))
		return e.objects(o.Items)
	case TypeSmallTuple:
		if len(o.Items) > 255 {
			return errors.New(errors.ErrInternal, "small tuple exceeds 255 items")
		}
		e.buf.WriteByte(byte(len(o.Items)))
		return e.objects(o.Items)
	case TypeDict:
		if err := e.objects(o.Items); err != nil {
			return err
		}
		e.buf.WriteByte(TypeNull)
		return nil

	case TypeCode:
		return e.code(o.Code)

	default:
		return errors.Newf(errors.ErrInternal, "cannot encode marshal type 0x%02x", o.Type)
	}
}

func (e *encoder) code(c *Code) error {
	e.uint32(c.ArgCount)
	if e.hasPosOnly {
		e.uint32(c.PosOnlyArgCount)
	}
	e.uint32(c.KwOnlyArgCount)
	e.uint32(c.NLocals)
	e.uint32(c.StackSize)
	e.uint32(c.Flags)
	for _, o := range []*Object{
		c.Instructions, c.Consts, c.Names, c.VarNames,
		c.FreeVars, c.CellVars, c.Filename, c.Name,
	} {
		if err := e.object(o); err != nil {
			return err
		}
	}
	e.uint32(c.FirstLineNo)
	return e.object(c.LineTable)
}

func (e *encoder) objects(items []*Object) error {
	for _, item := range items {
		if err := e.object(item); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) uint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}
