package tml

import "encoding/binary"

// Sentinel values written into reserved slots until they are patched.
// After a successful compile no address slot still holds unresolvedU32;
// a skip offset may legitimately equal unresolvedU16 (an arm body of
// exactly 65535 bytes).
const (
	unresolvedU16 uint16 = 0xFFFF
	unresolvedU32 uint32 = 0xFFFFFFFF
)

// encoder is the low-level writer behind the compiler: a monotonically
// growing byte buffer with little-endian immediates and backpatchable
// slots for skip offsets and forward-referenced addresses.
type encoder struct {
	bytes []byte
}

func newEncoder() *encoder {
	e := &encoder{bytes: make([]byte, 0, 1024)}

	// Header: state count, entry address (patched at the end of
	// compilation), and the halt sentinel.
	e.emitU16(0)
	e.emitU32(unresolvedU32)
	e.emitU8(byte(Halt))
	return e
}

func (e *encoder) position() int {
	return len(e.bytes)
}

func (e *encoder) emitU8(b byte) {
	e.bytes = append(e.bytes, b)
}

func (e *encoder) emitOp(op Opcode) {
	e.bytes = append(e.bytes, byte(op))
}

func (e *encoder) emitU16(v uint16) {
	e.bytes = binary.LittleEndian.AppendUint16(e.bytes, v)
}

func (e *encoder) emitU32(v uint32) {
	e.bytes = binary.LittleEndian.AppendUint32(e.bytes, v)
}

// reserveU16 emits a placeholder offset slot and returns its position
// for a later patchU16.
func (e *encoder) reserveU16() int {
	at := len(e.bytes)
	e.emitU16(unresolvedU16)
	return at
}

func (e *encoder) patchU16(at int, v uint16) {
	binary.LittleEndian.PutUint16(e.bytes[at:], v)
}

// reserveU32 emits a placeholder address slot and returns its position
// for a later patchU32.
func (e *encoder) reserveU32() int {
	at := len(e.bytes)
	e.emitU32(unresolvedU32)
	return at
}

func (e *encoder) patchU32(at int, v uint32) {
	binary.LittleEndian.PutUint32(e.bytes[at:], v)
}
