package pyc

import (
	"encoding/binary"

	"github.com/psolyca/virtualenv-tools/pkg/errors"
)

// format captures what the header magic implies about the rest of the file.
type format struct {
	// headerLen is the number of bytes to copy through unchanged: magic
	// plus timestamp for very old files, plus a size word since 3.3, plus
	// the PEP 552 flags word since 3.7.
	headerLen int
	// hasPosOnly reports whether code objects carry the positional-only
	// argument count introduced in 3.8.
	hasPosOnly bool
}

// Magic word ranges per CPython version. The word is the low 16 bits of
// the 4-byte magic; bytes 2-3 are always "\r\n".
const (
	magicPy33  = 3190 // 3.3 adds the source-size header word
	magicPy37  = 3390 // 3.7 adds the PEP 552 flags word
	magicPy38  = 3400 // 3.8 adds co_posonlyargcount
	magicPy311 = 3450 // 3.11 restructures the code layout (unsupported)
)

// formatFor maps a magic word to its file format. Versions outside
// 3.3-3.10 are rejected: older files predate the supported layout, newer
// ones changed the code object serialization.
func formatFor(magic uint16) (format, error) {
	switch {
	case magic >= magicPy311:
		return format{}, errors.Newf(errors.ErrPycUnsupported,
			"unsupported bytecode magic %d (3.11+ layout)", magic)
	case magic >= magicPy38:
		return format{headerLen: 16, hasPosOnly: true}, nil
	case magic >= magicPy37:
		return format{headerLen: 16}, nil
	case magic >= magicPy33:
		return format{headerLen: 12}, nil
	default:
		return format{}, errors.Newf(errors.ErrPycUnsupported,
			"unsupported bytecode magic %d", magic)
	}
}

// parseHeader validates the magic bytes and returns the file format.
func parseHeader(data []byte) (format, error) {
	if len(data) < 4 || data[2] != '\r' || data[3] != '\n' {
		return format{}, errors.New(errors.ErrPycDecode, "not a bytecode cache file: bad magic")
	}
	f, err := formatFor(binary.LittleEndian.Uint16(data[:2]))
	if err != nil {
		return format{}, err
	}
	if len(data) < f.headerLen {
		return format{}, errors.New(errors.ErrPycDecode, "truncated bytecode cache header")
	}
	return f, nil
}
