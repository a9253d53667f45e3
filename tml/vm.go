package tml

/*
	The interpreter executes one move at a time, in two phases:

	Phase A walks the current state's pattern instructions against the
	symbol under the tape head. A failing compare advances past the arm
	via its skip offset; a match (or the catch-all OTHER) falls through
	into the arm's right-hand side.

	Phase B runs the right-hand side: tape moves and writes, then the
	instructions that assemble the next current state out of the state
	and symbol argument stacks. FINAL_STATE and FINAL_ARG end the move;
	HALT in phase A or a head pushed past the left edge of the tape in
	phase B ends the run.

	State records are owning tree nodes: TAKE_ARG and FINAL_ARG move
	them, CLONE_ARG deep-copies, FREE_ARG drops. The compiler's
	linear-use analysis guarantees each record is consumed exactly
	once, so no reference counting happens here.
*/

const tapeGrowth = 256

// stateRecord is an in-flight state value: the address of the state's
// first arm plus the arguments bound into it.
type stateRecord struct {
	address uint32
	states  []*stateRecord
	symbols []uint16
}

// clone deep-copies the record. Records form trees (arguments can
// never contain an ancestor), so plain recursion terminates.
func (s *stateRecord) clone() *stateRecord {
	out := &stateRecord{address: s.address}
	if len(s.states) > 0 {
		out.states = make([]*stateRecord, len(s.states))
		for i, sub := range s.states {
			if sub != nil {
				out.states[i] = sub.clone()
			}
		}
	}
	if len(s.symbols) > 0 {
		out.symbols = append([]uint16(nil), s.symbols...)
	}
	return out
}

// tape is a growable run of symbol ids with a head cursor. Cells past
// the end read as blank; writing a blank never grows the storage.
type tape struct {
	cells []uint16
	head  int
}

func (t *tape) read() uint16 {
	if t.head < len(t.cells) {
		return t.cells[t.head]
	}
	return 0
}

func (t *tape) write(value uint16) {
	if value == 0 {
		return
	}
	if t.head >= len(t.cells) {
		grown := make([]uint16, t.head+tapeGrowth)
		copy(grown, t.cells)
		t.cells = grown
	}
	t.cells[t.head] = value
}

// left moves the head n cells leftward, saturating at 0. It reports
// whether the move crossed the boundary, which halts the machine.
func (t *tape) left(n int) bool {
	if t.head < n {
		t.head = 0
		return true
	}
	t.head -= n
	return false
}

func (t *tape) right(n int) {
	t.head += n
}

type machine struct {
	bytes       []byte
	ip          int
	tape        tape
	current     *stateRecord
	stateStack  []*stateRecord
	symbolStack []uint16
	bound       uint16
	moves       uint64
	maxMoves    uint64
}

// malformed is the panic value raised by the byte readers and the
// dispatch default cases; Run's recover translates it into an
// InvalidBytecode error.
type malformed struct{}

func (m *machine) nextU8() byte {
	if m.ip >= len(m.bytes) {
		panic(malformed{})
	}
	b := m.bytes[m.ip]
	m.ip++
	return b
}

func (m *machine) nextU16() uint16 {
	lo := m.nextU8()
	hi := m.nextU8()
	return uint16(lo) | uint16(hi)<<8
}

func (m *machine) nextU32() uint32 {
	b0 := m.nextU8()
	b1 := m.nextU8()
	b2 := m.nextU8()
	b3 := m.nextU8()
	return uint32(b0) | uint32(b1)<<8 | uint32(b2)<<16 | uint32(b3)<<24
}

// skip advances past a failing arm: the 2-byte offset counts bytes
// from the position just after itself.
func (m *machine) skip() {
	offset := m.nextU16()
	m.ip += int(offset)
}

func (m *machine) run() {
	for m.moves < m.maxMoves {
		if m.step() {
			return
		}
	}
}

// step performs one move. It returns true when execution terminated
// (HALT or the left boundary) and false when the move completed and
// dispatch should continue from the new current state.
func (m *machine) step() bool {
	for {
		switch Opcode(m.nextU8()) {
		case CompareArg:
			idx := m.nextU8()
			if m.tape.read() == m.current.symbols[idx] {
				m.ip += 2
				return m.rhs()
			}
			m.skip()
		case CompareVal:
			value := m.nextU16()
			if m.tape.read() == value {
				m.ip += 2
				return m.rhs()
			}
			m.skip()
		case Other:
			m.bound = m.tape.read()
			return m.rhs()
		case Halt:
			return true
		default:
			panic(malformed{})
		}
	}
}

func (m *machine) rhs() bool {
	for {
		switch Opcode(m.nextU8()) {
		case Left:
			if m.tape.left(1) {
				m.moves++
				return true
			}
		case Right:
			m.tape.right(1)
		case LeftN:
			if m.tape.left(int(m.nextU8())) {
				m.moves++
				return true
			}
		case RightN:
			m.tape.right(int(m.nextU8()))
		case WriteArg:
			m.tape.write(m.current.symbols[m.nextU8()])
		case WriteVal:
			m.tape.write(m.nextU16())
		case WriteBound:
			m.tape.write(m.bound)
		case SymbolArg:
			m.symbolStack = append(m.symbolStack, m.current.symbols[m.nextU8()])
		case SymbolVal:
			m.symbolStack = append(m.symbolStack, m.nextU16())
		case SymbolBound:
			m.symbolStack = append(m.symbolStack, m.bound)
		case TakeArg:
			idx := m.nextU8()
			m.stateStack = append(m.stateStack, m.current.states[idx])
			m.current.states[idx] = nil
		case CloneArg:
			m.stateStack = append(m.stateStack, m.current.states[m.nextU8()].clone())
		case FreeArg:
			m.current.states[m.nextU8()] = nil
		case MakeState:
			arity := int(m.nextU8())
			address := m.nextU32()
			end := len(m.stateStack) - arity
			states := append([]*stateRecord(nil), m.stateStack[end:]...)
			m.stateStack = m.stateStack[:end]
			record := &stateRecord{
				address: address,
				states:  states,
				symbols: m.symbolStack,
			}
			m.symbolStack = nil
			m.stateStack = append(m.stateStack, record)
		case FinalState:
			address := m.nextU32()
			m.current = &stateRecord{
				address: address,
				states:  m.stateStack,
				symbols: m.symbolStack,
			}
			m.stateStack = nil
			m.symbolStack = nil
			m.ip = int(address)
			m.moves++
			return false
		case FinalArg:
			m.current = m.current.states[m.nextU8()]
			m.ip = int(m.current.address)
			m.moves++
			return false
		default:
			panic(malformed{})
		}
	}
}
