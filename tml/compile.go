package tml

import (
	"fmt"
	"sort"
	"strings"
)

// Compiled is everything the compiler hands to its callers: the
// instruction stream, the symbol table for rendering tape ids back to
// text, the interned initial tape, and an address -> state name map
// for diagnostics.
type Compiled struct {
	Bytes      []byte
	Symbols    *SymbolTable
	StateNames map[uint32]string
	Tape       []uint16
}

const maxParams = 256

// Compile lowers a parsed unit into bytecode and interns the initial
// tape through the same symbol table.
func Compile(unit []StateDecl, tapeSymbols []string) (*Compiled, *Error) {
	c := &compiler{
		enc:         newEncoder(),
		forwardRefs: make(map[signature][]forwardRef),
		addresses:   make(map[signature]uint32),
		symbols:     NewSymbolTable(),
		stateNames:  make(map[uint32]string),
	}

	for i := range unit {
		if err := c.compileState(&unit[i]); err != nil {
			return nil, err
		}
	}
	if err := c.finish(); err != nil {
		return nil, err
	}

	tape := make([]uint16, 0, len(tapeSymbols))
	for _, text := range tapeSymbols {
		id, err := c.symbols.Intern(text, nil)
		if err != nil {
			return nil, err
		}
		tape = append(tape, id)
	}

	return &Compiled{
		Bytes:      c.enc.bytes,
		Symbols:    c.symbols,
		StateNames: c.stateNames,
		Tape:       tape,
	}, nil
}

// signature identifies a state declaration: its name plus how many
// state and symbol parameters it takes. Calls resolve against the
// same triple.
type signature struct {
	name    string
	states  int
	symbols int
}

func (s signature) String() string {
	if s.states == 0 && s.symbols == 0 {
		return s.name
	}
	var sb strings.Builder
	sb.WriteString(s.name)
	sb.WriteByte('(')
	for i := 0; i < s.states; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('_')
	}
	if s.symbols > 0 {
		sb.WriteString("; ")
		for i := 0; i < s.symbols; i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteByte('_')
		}
	}
	sb.WriteByte(')')
	return sb.String()
}

// forwardRef is a reserved 4-byte address slot waiting for its
// signature to be declared.
type forwardRef struct {
	location int
	span     Span
}

type compiler struct {
	enc         *encoder
	forwardRefs map[signature][]forwardRef
	addresses   map[signature]uint32
	symbols     *SymbolTable
	stateNames  map[uint32]string
	stateCount  int
}

// finish resolves what is left after the last declaration: every
// forward reference must have been bound, and `start` must exist so
// the header's entry address can be patched in.
func (c *compiler) finish() *Error {
	if len(c.forwardRefs) > 0 {
		// Report the earliest unresolved reference.
		var firstSig signature
		first := forwardRef{location: -1}
		for sig, refs := range c.forwardRefs {
			for _, ref := range refs {
				if first.location < 0 || ref.location < first.location {
					first = ref
					firstSig = sig
				}
			}
		}
		return newError(ErrNoSuchFunction, &first.span,
			"no function with signature `%s`", firstSig)
	}

	startSig := signature{name: "start"}
	address, ok := c.addresses[startSig]
	if !ok {
		return newError(ErrNoStart, nil, "no `start` function")
	}
	c.enc.patchU32(headerEntryOffset, address)
	return nil
}

func (c *compiler) compileState(state *StateDecl) *Error {
	if err := c.incrementCount(state.Name.Span); err != nil {
		return err
	}

	stateMap, err := makeParamMap(state.StateParams, "state")
	if err != nil {
		return err
	}
	symbolMap, err := makeParamMap(state.SymbolParams, "symbol")
	if err != nil {
		return err
	}

	address := uint32(c.enc.position())
	c.stateNames[address] = state.Name.Name
	sig := signature{
		name:    state.Name.Name,
		states:  len(stateMap),
		symbols: len(symbolMap),
	}

	if refs, ok := c.forwardRefs[sig]; ok {
		for _, ref := range refs {
			c.enc.patchU32(ref.location, address)
		}
		delete(c.forwardRefs, sig)
	}
	if _, ok := c.addresses[sig]; ok {
		return newError(ErrDuplicateState, &state.Name.Span,
			"a function with signature `%s` already exists", sig)
	}
	c.addresses[sig] = address

	for i := range state.Arms {
		last := i == len(state.Arms)-1
		if err := c.compileArm(&state.Arms[i], state, stateMap, symbolMap, last); err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) incrementCount(span Span) *Error {
	if c.stateCount == 65535 {
		return newError(ErrTooManyStates, &span,
			"too many states in program (max is 65535)")
	}
	c.stateCount++
	c.enc.patchU16(headerCountOffset, uint16(c.stateCount))
	return nil
}

func makeParamMap(params []Name, kind string) (map[string]uint8, *Error) {
	m := make(map[string]uint8, len(params))
	for _, name := range params {
		if _, ok := m[name.Name]; ok {
			return nil, newError(ErrDuplicateParameter, &name.Span,
				"duplicate %s parameter `%s`", kind, name.Name)
		}
		if len(m) == maxParams {
			return nil, newError(ErrTooManyParameters, &name.Span,
				"too many %s parameters (max is %d)", kind, maxParams)
		}
		m[name.Name] = uint8(len(m))
	}
	return m, nil
}

func (c *compiler) compileArm(arm *Arm, state *StateDecl, stateMap, symbolMap map[string]uint8, isLast bool) *Error {
	bound, err := c.compilePattern(&arm.Pattern, symbolMap, isLast)
	if err != nil {
		return err
	}

	skipAt := -1
	if !isLast {
		skipAt = c.enc.reserveU16()
	}

	if err := c.compileOps(arm.Ops, symbolMap, bound); err != nil {
		return err
	}

	// Count how many leaves of the tail-call tree consume each state
	// parameter, so each reference below can pick CLONE_ARG vs
	// TAKE_ARG and unused parameters can be released.
	counts := make(map[string]int, len(state.StateParams))
	for _, p := range state.StateParams {
		counts[p.Name] = 0
	}
	if err := countStateArgs(&arm.Call, counts); err != nil {
		return err
	}

	ctx := &armContext{
		stateParams: state.StateParams,
		stateMap:    stateMap,
		symbolMap:   symbolMap,
		counts:      counts,
		bound:       bound,
	}
	if err := c.compileCall(&arm.Call, ctx, true); err != nil {
		return err
	}

	if !isLast {
		size := c.enc.position() - skipAt - 2
		if size > int(unresolvedU16) {
			return newError(ErrArmTooLarge, &arm.Pattern.Span,
				"this arm is too complicated")
		}
		c.enc.patchU16(skipAt, uint16(size))
	}
	return nil
}

// compilePattern emits the arm's phase-A instruction and returns the
// catch-all binding name, or "" when the pattern binds nothing.
func (c *compiler) compilePattern(pattern *Pattern, symbolMap map[string]uint8, isLast bool) (string, *Error) {
	if pattern.IsSymbol {
		if isLast {
			return "", newError(ErrLastArmNotCatchall, &pattern.Span,
				"last arm must be a catchall")
		}
		id, err := c.symbols.Intern(pattern.Symbol, &pattern.Span)
		if err != nil {
			return "", err
		}
		c.enc.emitOp(CompareVal)
		c.enc.emitU16(id)
		return "", nil
	}

	if idx, ok := symbolMap[pattern.Name]; ok {
		if isLast {
			return "", newError(ErrLastArmNotCatchall, &pattern.Span,
				"last arm must be a catchall")
		}
		c.enc.emitOp(CompareArg)
		c.enc.emitU8(idx)
		return "", nil
	}

	if !isLast {
		return "", newError(ErrCatchallNotLast, &pattern.Span,
			"only the last arm can be a catchall")
	}
	c.enc.emitOp(Other)
	return pattern.Name, nil
}

// compileOps lowers the operation list. Runs of moves collapse into a
// net displacement before anything is emitted.
func (c *compiler) compileOps(ops []Op, symbolMap map[string]uint8, bound string) *Error {
	displacement := 0
	for i := range ops {
		op := &ops[i]
		switch op.Kind {
		case OpLeft:
			displacement--
		case OpRight:
			displacement++
		case OpWriteName:
			c.flushMoves(&displacement)
			if idx, ok := symbolMap[op.Name]; ok {
				c.enc.emitOp(WriteArg)
				c.enc.emitU8(idx)
			} else if op.Name == bound {
				c.enc.emitOp(WriteBound)
			} else {
				return newError(ErrUnresolvedName, &op.Span,
					"no value with name `%s`", op.Name)
			}
		case OpWriteSymbol:
			c.flushMoves(&displacement)
			id, err := c.symbols.Intern(op.Symbol, &op.Span)
			if err != nil {
				return err
			}
			c.enc.emitOp(WriteVal)
			c.enc.emitU16(id)
		}
	}
	c.flushMoves(&displacement)
	return nil
}

// flushMoves emits the pending net displacement: chunks of 255 for
// long walks, the one-byte LEFT/RIGHT when the remainder is a single
// cell, nothing at all for zero.
func (c *compiler) flushMoves(displacement *int) {
	n := *displacement
	*displacement = 0

	op, opN := Right, RightN
	if n < 0 {
		n = -n
		op, opN = Left, LeftN
	}
	for n >= 255 {
		c.enc.emitOp(opN)
		c.enc.emitU8(255)
		n -= 255
	}
	if n == 1 {
		c.enc.emitOp(op)
	} else if n > 0 {
		c.enc.emitOp(opN)
		c.enc.emitU8(uint8(n))
	}
}

// countStateArgs walks the tail-call tree and counts the bare-name
// leaves that consume each state parameter. A state parameter applied
// to arguments is an error: parameters are opaque values, not states
// that can be called with fresh arguments.
func countStateArgs(call *Call, counts map[string]int) *Error {
	if call.Halt {
		return nil
	}
	if count, ok := counts[call.Name.Name]; ok {
		if len(call.Args) != 0 {
			return newError(ErrStateParamNotCallable, &call.Name.Span,
				"`%s` is a state parameter, so it can't take arguments", call.Name.Name)
		}
		counts[call.Name.Name] = count + 1
		return nil
	}
	for i := range call.Args {
		if call.Args[i].Call != nil && !call.Args[i].SymbolPos {
			if err := countStateArgs(call.Args[i].Call, counts); err != nil {
				return err
			}
		}
	}
	return nil
}

// armContext is the scope one right-hand side compiles under.
type armContext struct {
	stateParams []Name
	stateMap    map[string]uint8
	symbolMap   map[string]uint8
	counts      map[string]int
	bound       string
}

// compileCall emits one tail-call target. Outer calls terminate the
// arm with FINAL_STATE/FINAL_ARG; nested calls build a record on the
// state stack with MAKE_STATE/TAKE_ARG/CLONE_ARG.
func (c *compiler) compileCall(call *Call, ctx *armContext, isOuter bool) *Error {
	if call.Halt {
		if isOuter {
			c.emitFreeArgs(ctx)
			c.enc.emitOp(FinalState)
			c.enc.emitU32(HaltAddress)
		} else {
			c.enc.emitOp(MakeState)
			c.enc.emitU8(0)
			c.enc.emitU32(HaltAddress)
		}
		return nil
	}

	if remaining, ok := ctx.counts[call.Name.Name]; ok {
		return c.compileParamRef(call, ctx, remaining, isOuter)
	}

	stateArgs, symbolArgs := classifyArgs(call, ctx)
	sig := signature{
		name:    call.Name.Name,
		states:  len(stateArgs),
		symbols: len(symbolArgs),
	}

	for _, sub := range stateArgs {
		if err := c.compileCall(sub, ctx, false); err != nil {
			return err
		}
	}
	for _, arg := range symbolArgs {
		if err := c.compileSymbolArg(arg, ctx); err != nil {
			return err
		}
	}

	if isOuter {
		c.emitFreeArgs(ctx)
		c.enc.emitOp(FinalState)
	} else {
		c.enc.emitOp(MakeState)
		c.enc.emitU8(uint8(sig.states))
	}

	if address, ok := c.addresses[sig]; ok {
		c.enc.emitU32(address)
	} else {
		location := c.enc.reserveU32()
		c.forwardRefs[sig] = append(c.forwardRefs[sig],
			forwardRef{location: location, span: call.Name.Span})
	}
	return nil
}

// compileParamRef consumes one reference to a state parameter. The
// remaining reference count picks the instruction; every reference
// but the last clones so the final one can move.
func (c *compiler) compileParamRef(call *Call, ctx *armContext, remaining int, isOuter bool) *Error {
	idx := ctx.stateMap[call.Name.Name]
	switch {
	case remaining == 1 && isOuter:
		c.emitFreeArgs(ctx)
		c.enc.emitOp(FinalArg)
		c.enc.emitU8(idx)
	case remaining == 1:
		c.enc.emitOp(TakeArg)
		c.enc.emitU8(idx)
	case remaining > 1:
		c.enc.emitOp(CloneArg)
		c.enc.emitU8(idx)
		ctx.counts[call.Name.Name] = remaining - 1
	default:
		// The counting pass makes a consumed-again parameter
		// impossible; refuse to emit a second take.
		return newError(ErrStateParamNotCallable, &call.Name.Span,
			"state parameter `%s` is consumed more than once", call.Name.Name)
	}
	return nil
}

// classifyArgs splits a call's argument list into state arguments and
// symbol arguments. Symbol literals and everything after a `;` are
// symbol arguments; a bare name resolves state parameter, then symbol
// parameter, then the catch-all binding, then state reference;
// anything applied to arguments is a state argument.
func classifyArgs(call *Call, ctx *armContext) ([]*Call, []*Arg) {
	var stateArgs []*Call
	var symbolArgs []*Arg
	for i := range call.Args {
		arg := &call.Args[i]
		if arg.IsSymbol || arg.SymbolPos {
			symbolArgs = append(symbolArgs, arg)
			continue
		}
		sub := arg.Call
		if !sub.Halt && len(sub.Args) == 0 {
			if _, ok := ctx.counts[sub.Name.Name]; !ok {
				_, isSymbolParam := ctx.symbolMap[sub.Name.Name]
				if isSymbolParam || sub.Name.Name == ctx.bound {
					symbolArgs = append(symbolArgs, arg)
					continue
				}
			}
		}
		stateArgs = append(stateArgs, sub)
	}
	return stateArgs, symbolArgs
}

// compileSymbolArg pushes one symbol argument for the surrounding
// MAKE_STATE or FINAL_STATE.
func (c *compiler) compileSymbolArg(arg *Arg, ctx *armContext) *Error {
	if arg.IsSymbol {
		id, err := c.symbols.Intern(arg.Symbol, &arg.Span)
		if err != nil {
			return err
		}
		c.enc.emitOp(SymbolVal)
		c.enc.emitU16(id)
		return nil
	}

	name := arg.Call.Name.Name
	if idx, ok := ctx.symbolMap[name]; ok {
		c.enc.emitOp(SymbolArg)
		c.enc.emitU8(idx)
		return nil
	}
	if name == ctx.bound {
		c.enc.emitOp(SymbolBound)
		return nil
	}
	return newError(ErrUnresolvedName, &arg.Call.Name.Span,
		"no value with name `%s`", name)
}

// emitFreeArgs releases every state parameter the arm never consumes,
// in declaration order, just before the terminal instruction.
func (c *compiler) emitFreeArgs(ctx *armContext) {
	for _, p := range ctx.stateParams {
		if ctx.counts[p.Name] == 0 {
			c.enc.emitOp(FreeArg)
			c.enc.emitU8(ctx.stateMap[p.Name])
		}
	}
}

// StateName renders the state owning an address, for diagnostics.
func (comp *Compiled) StateName(address uint32) string {
	if name, ok := comp.StateNames[address]; ok {
		return name
	}
	if address == HaltAddress {
		return "halt"
	}
	return fmt.Sprintf("%#x", address)
}

// Addresses returns every state entry address in ascending order.
func (comp *Compiled) Addresses() []uint32 {
	addrs := make([]uint32, 0, len(comp.StateNames))
	for a := range comp.StateNames {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}
