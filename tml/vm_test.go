package tml

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func compileSource(t *testing.T, source string, tape []string) *Compiled {
	t.Helper()
	lx := NewLexer("test.tml", source, false)
	unit, err := Parse(lx)
	require.Nil(t, err, "failed to parse: %v", err)
	compiled, err := Compile(unit, tape)
	require.Nil(t, err, "failed to compile: %v", err)
	return compiled
}

func runSource(t *testing.T, source string, tape []string, maxMoves uint64) (*Compiled, *Result) {
	t.Helper()
	compiled := compileSource(t, source, tape)
	result, err := Run(compiled.Bytes, compiled.Tape, maxMoves)
	require.Nil(t, err, "failed to run: %v", err)
	return compiled, result
}

func tapeTexts(compiled *Compiled, result *Result) []string {
	texts := make([]string, len(result.Tape))
	for i, id := range result.Tape {
		texts[i] = compiled.Symbols.Text(id)
	}
	return texts
}

func TestMinimalHalt(t *testing.T) {
	_, result := runSource(t, "start { _ | | ! }", nil, math.MaxUint64)
	require.Equal(t, uint64(1), result.Moves)
	require.Equal(t, 0, result.Head)
	require.Equal(t, HaltAddress, result.FinalAddress)
	require.Empty(t, result.Tape)
}

func TestSingleWrite(t *testing.T) {
	compiled, result := runSource(t, "start { _ | 'a' | ! }", nil, math.MaxUint64)
	require.Equal(t, uint64(1), result.Moves)
	require.Equal(t, 0, result.Head)
	require.Equal(t, []string{"a"}, tapeTexts(compiled, result))
}

func TestMoveAndLoop(t *testing.T) {
	source := "start { 'a' | > | start, _ | 'b' | ! }"
	compiled, result := runSource(t, source, []string{"a", "a", "a"}, math.MaxUint64)
	require.Equal(t, uint64(4), result.Moves)
	require.Equal(t, 3, result.Head)
	require.Equal(t, []string{"a", "a", "a", "b"}, tapeTexts(compiled, result))
	require.Equal(t, HaltAddress, result.FinalAddress)
}

func TestSymbolParameter(t *testing.T) {
	source := "start { _ | | write('x') } write(; s) { _ | s | ! }"
	compiled, result := runSource(t, source, nil, math.MaxUint64)
	require.Equal(t, uint64(2), result.Moves)
	require.Equal(t, []string{"x"}, tapeTexts(compiled, result))
}

func TestStateParameterLinearUse(t *testing.T) {
	source := "start { _ | | go(k) } go(k) { _ | | k } k { _ | 'k' | ! }"
	compiled, result := runSource(t, source, nil, math.MaxUint64)
	require.Equal(t, uint64(3), result.Moves)
	require.Equal(t, []string{"k"}, tapeTexts(compiled, result))

	// The bare-k tail call in `go` must consume the argument with
	// FINAL_ARG rather than rebuilding it.
	require.Contains(t, opcodes(compiled.Bytes), FinalArg)
}

func TestStateArgumentPassedTwice(t *testing.T) {
	source := "start { _ | | pair(k, k) } pair(a, b) { _ | | a } k { _ | 'k' | ! }"
	compiled, result := runSource(t, source, nil, math.MaxUint64)
	require.Equal(t, uint64(3), result.Moves)
	require.Equal(t, []string{"k"}, tapeTexts(compiled, result))

	// pair ignores b, so the unused argument is released before the
	// terminal instruction.
	require.Contains(t, opcodes(compiled.Bytes), FreeArg)
}

func TestCloneThenTakeOfParameter(t *testing.T) {
	// dup passes its one state parameter twice: the first reference
	// must clone, the last must take.
	source := `
        start { _ | | dup(k) }
        dup(k) { _ | | pair(k, k) }
        pair(a, b) { _ | > | b }
        k { _ | 'k' | ! }
    `
	compiled, result := runSource(t, source, nil, math.MaxUint64)
	ops := opcodes(compiled.Bytes)
	require.Contains(t, ops, CloneArg)
	require.Contains(t, ops, TakeArg)
	require.Equal(t, []string{"", "k"}, tapeTexts(compiled, result))
	require.Equal(t, uint64(4), result.Moves)
}

func TestMaxMovesCeiling(t *testing.T) {
	compiled, result := runSource(t, "start { _ | > | start }", nil, 10)
	require.Equal(t, uint64(10), result.Moves)
	require.Equal(t, 10, result.Head)
	require.NotEqual(t, HaltAddress, result.FinalAddress)
	require.Equal(t, "start", compiled.StateNames[result.FinalAddress])
}

func TestLeftBoundaryHalts(t *testing.T) {
	// Moving past cell 0 ends the run like a successful halt, and the
	// interrupted move still counts.
	_, result := runSource(t, "start { _ | < | start }", nil, math.MaxUint64)
	require.Equal(t, uint64(1), result.Moves)
	require.Equal(t, 0, result.Head)
}

func TestBlankWriteDoesNotGrow(t *testing.T) {
	_, result := runSource(t, "start { _ | > > '' < < | ! }", nil, math.MaxUint64)
	require.Empty(t, result.Tape)
	require.Equal(t, 0, result.Head)
}

func TestBoundSymbolRoundTrip(t *testing.T) {
	// The catch-all binding can be rewritten and forwarded as a
	// symbol argument.
	source := `
        start { c | > c | copy(; c) }
        copy(; s) { _ | > s | ! }
    `
	compiled, result := runSource(t, source, []string{"q"}, math.MaxUint64)
	require.Equal(t, []string{"q", "q", "q"}, tapeTexts(compiled, result))
	require.Equal(t, uint64(2), result.Moves)
	require.Equal(t, 2, result.Head)
}

func TestCompareAgainstSymbolArgument(t *testing.T) {
	// match dispatches on a symbol argument with COMPARE_ARG.
	source := `
        start { _ | | match(; 'a') }
        match(; s) {
            s | 'y' | !,
            _ | 'n' | !
        }
    `
	compiled, result := runSource(t, source, []string{"a"}, math.MaxUint64)
	require.Equal(t, []string{"y"}, tapeTexts(compiled, result))

	compiled, result = runSource(t, source, []string{"b"}, math.MaxUint64)
	require.Equal(t, []string{"n"}, tapeTexts(compiled, result))
}

func TestNestedHalt(t *testing.T) {
	// halt in argument position is a state with no arguments whose
	// address is the halt sentinel.
	source := "start { _ | | go(!) } go(k) { _ | 'z' | k }"
	compiled, result := runSource(t, source, nil, math.MaxUint64)
	require.Equal(t, []string{"z"}, tapeTexts(compiled, result))
	require.Equal(t, HaltAddress, result.FinalAddress)
	require.Equal(t, uint64(2), result.Moves)
}

func TestDeepArgumentTree(t *testing.T) {
	// States nest inside arguments; each hand-off peels one layer.
	source := `
        start { _ | | app(app(fin)) }
        app(k) { _ | > | k }
        fin { _ | 'f' | ! }
    `
	compiled, result := runSource(t, source, nil, math.MaxUint64)
	require.Equal(t, []string{"", "", "f"}, tapeTexts(compiled, result))
	require.Equal(t, uint64(4), result.Moves)
}

func TestSymbolArgumentsThreadThroughCalls(t *testing.T) {
	source := `
        start { _ | | write2(; 'a', 'b') }
        write2(; x, y) { _ | x > y | ! }
    `
	compiled, result := runSource(t, source, nil, math.MaxUint64)
	require.Equal(t, []string{"a", "b"}, tapeTexts(compiled, result))
}

func TestSymbolParameterForwarded(t *testing.T) {
	// A bare symbol-parameter name in argument position is a symbol
	// argument, not a state.
	source := `
        start { _ | | outer(; 'm') }
        outer(; s) { _ | | write(; s) }
        write(; s) { _ | s | ! }
    `
	compiled, result := runSource(t, source, nil, math.MaxUint64)
	require.Equal(t, []string{"m"}, tapeTexts(compiled, result))
	require.Equal(t, uint64(3), result.Moves)
}

func TestMovesAreMonotonic(t *testing.T) {
	source := "start { 'a' | > | start, _ | 'b' | ! }"
	for max := uint64(0); max <= 5; max++ {
		_, result := runSource(t, source, []string{"a", "a", "a"}, max)
		if max < 4 {
			require.Equal(t, max, result.Moves)
		} else {
			require.Equal(t, uint64(4), result.Moves)
		}
	}
}

func TestLongRightWalkGrowsTape(t *testing.T) {
	// Walk far right and write a non-blank: growth is amortized but
	// trailing blanks are trimmed from the result.
	source := `
        start { _ | > > > > > > > > > > 'e' | ! }
    `
	compiled, result := runSource(t, source, nil, math.MaxUint64)
	texts := tapeTexts(compiled, result)
	require.Len(t, texts, 11)
	require.Equal(t, "e", texts[10])
	for _, s := range texts[:10] {
		require.Equal(t, "", s)
	}
}

func TestInvalidBytecode(t *testing.T) {
	// Unknown opcode after the header.
	_, err := Run([]byte{1, 0, 7, 0, 0, 0, 3, 99}, nil, math.MaxUint64)
	require.NotNil(t, err)
	require.Equal(t, ErrInvalidBytecode, err.Kind)

	// Truncated stream.
	_, err = Run([]byte{1, 0, 7, 0}, nil, math.MaxUint64)
	require.NotNil(t, err)
	require.Equal(t, ErrInvalidBytecode, err.Kind)
}

// opcodes decodes the full stream into its opcode sequence, following
// the instruction layout (not the control flow).
func opcodes(bytes []byte) []Opcode {
	var ops []Opcode
	pos := headerSize
	for pos < len(bytes) {
		op := Opcode(bytes[pos])
		ops = append(ops, op)
		pos++
		switch op {
		case CompareArg:
			pos += 3
		case CompareVal:
			pos += 4
		case LeftN, RightN, WriteArg, SymbolArg, TakeArg, CloneArg, FreeArg, FinalArg:
			pos++
		case WriteVal, SymbolVal:
			pos += 2
		case MakeState:
			pos += 5
		case FinalState:
			pos += 4
		}
	}
	return ops
}
