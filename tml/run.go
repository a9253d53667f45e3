package tml

// Result is what comes back from a finished run: the tape with
// trailing blanks trimmed, the head position, the address of the
// state the machine stopped in, and how many moves it made.
type Result struct {
	Tape         []uint16
	Head         int
	FinalAddress uint32
	Moves        uint64
}

// Run executes a compiled instruction stream against an initial tape,
// stopping at HALT, at the left tape boundary, or after maxMoves
// moves. The initial tape is copied, never mutated.
//
// Malformed bytecode is a programmer fault; the dispatch loop panics
// on it and the recover here turns that into an InvalidBytecode error,
// so a bad stream cannot take the process down.
func Run(bytes []byte, initial []uint16, maxMoves uint64) (result *Result, err *Error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = newError(ErrInvalidBytecode, nil, "invalid bytecode")
		}
	}()

	m := &machine{
		bytes:    bytes,
		ip:       headerEntryOffset,
		maxMoves: maxMoves,
	}
	m.tape.cells = append([]uint16(nil), initial...)

	entry := m.nextU32()
	m.ip = int(entry)
	m.current = &stateRecord{address: entry}

	m.run()

	cells := m.tape.cells
	for len(cells) > 0 && cells[len(cells)-1] == 0 {
		cells = cells[:len(cells)-1]
	}

	return &Result{
		Tape:         cells,
		Head:         m.tape.head,
		FinalAddress: m.current.address,
		Moves:        m.moves,
	}, nil
}
