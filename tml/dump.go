package tml

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Dump writes a human-readable listing of an instruction stream:
// the header fields, then every state with its arms, pattern
// instructions and right-hand sides. A truncated or unrecognized
// stream yields an InvalidBytecode error.
func Dump(w io.Writer, bytes []byte, noColor bool) (err *Error) {
	defer func() {
		if r := recover(); r != nil {
			err = newError(ErrInvalidBytecode, nil, "invalid bytecode")
		}
	}()

	d := &dumper{
		w:     w,
		bytes: bytes,
		blue:  color.New(color.Bold, color.FgBlue),
		green: color.New(color.Bold, color.FgGreen),
		red:   color.New(color.Bold, color.FgRed),
	}
	if noColor {
		d.blue.DisableColor()
		d.green.DisableColor()
		d.red.DisableColor()
	}
	d.dump()
	return nil
}

type dumper struct {
	w     io.Writer
	bytes []byte
	pos   int
	blue  *color.Color
	green *color.Color
	red   *color.Color
}

func (d *dumper) dump() {
	count := d.nextU16()
	fmt.Fprintln(d.w)
	d.blue.Fprint(d.w, "number of states:")
	fmt.Fprintf(d.w, " %d\n", count)

	entry := d.nextU32()
	d.blue.Fprint(d.w, "start address:")
	fmt.Fprintf(d.w, " 0x%08x\n\n", entry)

	if Opcode(d.nextU8()) != Halt {
		panic(malformed{})
	}

	for i := 0; i < int(count); i++ {
		d.green.Fprintf(d.w, "========== state %-5d (0x%08x) ==========", i, d.pos)
		fmt.Fprintln(d.w)
		d.state()
	}

	if d.pos != len(d.bytes) {
		panic(malformed{})
	}
}

func (d *dumper) state() {
	for i := 0; ; i++ {
		if !d.arm(i) {
			break
		}
	}
	fmt.Fprintln(d.w)
}

// arm prints one arm and reports whether another arm follows in the
// same state.
func (d *dumper) arm(i int) bool {
	d.red.Fprintf(d.w, "arm %d:", i)
	fmt.Fprintln(d.w)

	isLast := d.pattern()
	seenState := false

	d.blue.Fprint(d.w, "instructions:")
	fmt.Fprintln(d.w)

	// Print a separator before the first instruction that starts
	// assembling the next state.
	stateInstr := func() {
		if !seenState {
			seenState = true
			d.blue.Fprint(d.w, "--")
			fmt.Fprintln(d.w)
		}
	}

	for {
		switch Opcode(d.nextU8()) {
		case Left:
			d.instr("LEFT", "")
		case Right:
			d.instr("RIGHT", "")
		case LeftN:
			d.instr("LEFT_N", fmt.Sprintf(" (n: %d)", d.nextU8()))
		case RightN:
			d.instr("RIGHT_N", fmt.Sprintf(" (n: %d)", d.nextU8()))
		case WriteArg:
			d.instr("WRITE_ARG", fmt.Sprintf(" (arg: %d)", d.nextU8()))
		case WriteVal:
			d.instr("WRITE_VAL", fmt.Sprintf(" (value: %d)", d.nextU16()))
		case WriteBound:
			d.instr("WRITE_BOUND", "")
		case SymbolArg:
			stateInstr()
			d.instr("SYMBOL_ARG", fmt.Sprintf(" (arg: %d)", d.nextU8()))
		case SymbolVal:
			stateInstr()
			d.instr("SYMBOL_VAL", fmt.Sprintf(" (value: %d)", d.nextU16()))
		case SymbolBound:
			stateInstr()
			d.instr("SYMBOL_BOUND", "")
		case TakeArg:
			stateInstr()
			d.instr("TAKE_ARG", fmt.Sprintf(" (arg: %d)", d.nextU8()))
		case CloneArg:
			stateInstr()
			d.instr("CLONE_ARG", fmt.Sprintf(" (arg: %d)", d.nextU8()))
		case FreeArg:
			stateInstr()
			d.instr("FREE_ARG", fmt.Sprintf(" (arg: %d)", d.nextU8()))
		case MakeState:
			stateInstr()
			arity := d.nextU8()
			addr := d.nextU32()
			d.instr("MAKE_STATE", fmt.Sprintf(" (args: %d) (addr: 0x%08x)", arity, addr))
		case FinalState:
			stateInstr()
			d.instr("FINAL_STATE", fmt.Sprintf(" (addr: 0x%08x)", d.nextU32()))
			return !isLast
		case FinalArg:
			stateInstr()
			d.instr("FINAL_ARG", fmt.Sprintf(" (arg: %d)", d.nextU8()))
			return !isLast
		default:
			panic(malformed{})
		}
	}
}

// pattern prints the arm's phase-A instruction and reports whether
// this is the state's catch-all (and therefore last) arm.
func (d *dumper) pattern() bool {
	switch Opcode(d.nextU8()) {
	case CompareArg:
		d.instr("COMPARE_ARG", fmt.Sprintf(" (arg: %d) (skip: %d)", d.nextU8(), d.nextU16()))
		return false
	case CompareVal:
		d.instr("COMPARE_VAL", fmt.Sprintf(" (value: %d) (skip: %d)", d.nextU16(), d.nextU16()))
		return false
	case Other:
		d.instr("OTHER", "")
		return true
	default:
		panic(malformed{})
	}
}

func (d *dumper) instr(name, detail string) {
	d.green.Fprintf(d.w, "    %s", name)
	fmt.Fprintf(d.w, "%s\n", detail)
}

func (d *dumper) nextU8() byte {
	if d.pos >= len(d.bytes) {
		panic(malformed{})
	}
	b := d.bytes[d.pos]
	d.pos++
	return b
}

func (d *dumper) nextU16() uint16 {
	lo := d.nextU8()
	hi := d.nextU8()
	return uint16(lo) | uint16(hi)<<8
}

func (d *dumper) nextU32() uint32 {
	b0 := d.nextU8()
	b1 := d.nextU8()
	b2 := d.nextU8()
	b3 := d.nextU8()
	return uint32(b0) | uint32(b1)<<8 | uint32(b2)<<16 | uint32(b3)<<24
}
