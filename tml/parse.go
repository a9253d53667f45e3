package tml

// AST produced by the parser. Names keep their spans so the compiler
// can point diagnostics at the offending token.

type Name struct {
	Name string
	Span Span
}

type StateDecl struct {
	Name         Name
	StateParams  []Name
	SymbolParams []Name
	Arms         []Arm
}

// Pattern is either a symbol literal or a name. Name patterns resolve
// to a symbol parameter or, in the last arm, to a catch-all binding.
type Pattern struct {
	IsSymbol bool
	Symbol   string
	Name     string
	Span     Span
}

type OpKind int

const (
	OpLeft OpKind = iota
	OpRight
	OpWriteSymbol
	OpWriteName
)

type Op struct {
	Kind   OpKind
	Symbol string
	Name   string
	Span   Span
}

// Call is a tail-call target: halt, or a named state with arguments.
// Arguments stay in source order; the compiler classifies them into
// state and symbol arguments by scope.
type Call struct {
	Halt bool
	Name Name
	Args []Arg
}

// Arg is one call argument: a symbol literal or a nested call (which
// covers bare names, calls with no parentheses being calls with no
// arguments). SymbolPos marks arguments after a `;`, which must be
// symbols.
type Arg struct {
	IsSymbol  bool
	Symbol    string
	Span      Span
	Call      *Call
	SymbolPos bool
}

type Arm struct {
	Pattern Pattern
	Ops     []Op
	Call    Call
}

// Parse consumes the whole token stream and returns the unit's state
// declarations.
func Parse(lx *Lexer) ([]StateDecl, *Error) {
	p := &parser{lx: lx}
	var unit []StateDecl
	for {
		kind, err := p.peek()
		if err != nil {
			return nil, err
		}
		if kind == TokEOF {
			return unit, nil
		}
		state, err := p.state()
		if err != nil {
			return nil, err
		}
		unit = append(unit, *state)
	}
}

// ParseTape reads a tape file: a whitespace or comma separated
// sequence of symbol literals and names, each contributing its text.
func ParseTape(lx *Lexer) ([]string, *Error) {
	p := &parser{lx: lx}
	var symbols []string
	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		switch tok.Kind {
		case TokEOF:
			return symbols, nil
		case TokSymbol, TokName:
			symbols = append(symbols, tok.Text)
		case TokComma:
		default:
			return nil, newError(ErrSyntax, &tok.Span,
				"expected symbol or name, found %s", tok.Kind.desc())
		}
	}
}

type parser struct {
	lx     *Lexer
	peeked []Token
}

func (p *parser) fill(n int) *Error {
	for len(p.peeked) < n {
		tok, err := p.lx.Next()
		if err != nil {
			return err
		}
		p.peeked = append(p.peeked, tok)
	}
	return nil
}

func (p *parser) peek() (TokenKind, *Error) {
	if err := p.fill(1); err != nil {
		return 0, err
	}
	return p.peeked[0].Kind, nil
}

func (p *parser) peekTwo() (TokenKind, TokenKind, *Error) {
	if err := p.fill(2); err != nil {
		return 0, 0, err
	}
	return p.peeked[0].Kind, p.peeked[1].Kind, nil
}

func (p *parser) peekSpan() (Span, *Error) {
	if err := p.fill(1); err != nil {
		return Span{}, err
	}
	return p.peeked[0].Span, nil
}

func (p *parser) next() (Token, *Error) {
	if err := p.fill(1); err != nil {
		return Token{}, err
	}
	tok := p.peeked[0]
	p.peeked = p.peeked[1:]
	return tok, nil
}

func (p *parser) expect(kind TokenKind) (Token, *Error) {
	got, err := p.peek()
	if err != nil {
		return Token{}, err
	}
	if got != kind {
		span, err := p.peekSpan()
		if err != nil {
			return Token{}, err
		}
		return Token{}, newError(ErrSyntax, &span,
			"expected %s, found %s", kind.desc(), got.desc())
	}
	return p.next()
}

func (p *parser) name() (Name, *Error) {
	tok, err := p.expect(TokName)
	if err != nil {
		return Name{}, err
	}
	return Name{Name: tok.Text, Span: tok.Span}, nil
}

// state = name [ "(" params ")" ] "{" arms "}"
func (p *parser) state() (*StateDecl, *Error) {
	name, err := p.name()
	if err != nil {
		return nil, err
	}

	state := &StateDecl{Name: name}

	kind, err := p.peek()
	if err != nil {
		return nil, err
	}
	if kind == TokLParen {
		if err := p.params(state); err != nil {
			return nil, err
		}
	}

	if _, err := p.expect(TokLBrace); err != nil {
		return nil, err
	}
	for {
		k1, k2, err := p.peekTwo()
		if err != nil {
			return nil, err
		}
		if k1 == TokRBrace || (k1 == TokComma && k2 == TokRBrace) {
			break
		}
		if len(state.Arms) > 0 {
			if _, err := p.expect(TokComma); err != nil {
				return nil, err
			}
		}
		arm, err := p.arm()
		if err != nil {
			return nil, err
		}
		state.Arms = append(state.Arms, *arm)
	}
	if err := p.skipComma(); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokRBrace); err != nil {
		return nil, err
	}

	return state, nil
}

// params = [ name { "," name } ] [ ";" [ name { "," name } ] ]
// Names before the `;` are state parameters, after it symbol
// parameters.
func (p *parser) params(state *StateDecl) *Error {
	if _, err := p.expect(TokLParen); err != nil {
		return err
	}

	list, err := p.nameList(TokSemi)
	if err != nil {
		return err
	}
	state.StateParams = list

	kind, err := p.peek()
	if err != nil {
		return err
	}
	if kind == TokSemi {
		if _, err := p.next(); err != nil {
			return err
		}
		list, err := p.nameList(TokRParen)
		if err != nil {
			return err
		}
		state.SymbolParams = list
	}

	_, err = p.expect(TokRParen)
	return err
}

// nameList reads a possibly empty comma list of names, stopping at
// `until` or `)`. Trailing commas are allowed.
func (p *parser) nameList(until TokenKind) ([]Name, *Error) {
	var names []Name
	for {
		kind, err := p.peek()
		if err != nil {
			return nil, err
		}
		if kind == until || kind == TokRParen {
			return names, nil
		}
		if len(names) > 0 {
			if _, err := p.expect(TokComma); err != nil {
				return nil, err
			}
			kind, err := p.peek()
			if err != nil {
				return nil, err
			}
			if kind == until || kind == TokRParen {
				return names, nil
			}
		}
		name, err := p.name()
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
}

// arm = pattern "|" { op } "|" call
func (p *parser) arm() (*Arm, *Error) {
	pattern, err := p.pattern()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(TokBar); err != nil {
		return nil, err
	}
	var ops []Op
	for {
		kind, err := p.peek()
		if err != nil {
			return nil, err
		}
		if kind == TokBar {
			break
		}
		op, err := p.op()
		if err != nil {
			return nil, err
		}
		ops = append(ops, *op)
	}

	if _, err := p.expect(TokBar); err != nil {
		return nil, err
	}
	call, err := p.call()
	if err != nil {
		return nil, err
	}

	return &Arm{Pattern: *pattern, Ops: ops, Call: *call}, nil
}

func (p *parser) pattern() (*Pattern, *Error) {
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	switch tok.Kind {
	case TokSymbol:
		return &Pattern{IsSymbol: true, Symbol: tok.Text, Span: tok.Span}, nil
	case TokName:
		return &Pattern{Name: tok.Text, Span: tok.Span}, nil
	default:
		return nil, newError(ErrSyntax, &tok.Span,
			"expected symbol or name, found %s", tok.Kind.desc())
	}
}

func (p *parser) op() (*Op, *Error) {
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	switch tok.Kind {
	case TokLeft:
		return &Op{Kind: OpLeft, Span: tok.Span}, nil
	case TokRight:
		return &Op{Kind: OpRight, Span: tok.Span}, nil
	case TokSymbol:
		return &Op{Kind: OpWriteSymbol, Symbol: tok.Text, Span: tok.Span}, nil
	case TokName:
		return &Op{Kind: OpWriteName, Name: tok.Text, Span: tok.Span}, nil
	default:
		return nil, newError(ErrSyntax, &tok.Span,
			"expected `<`, `>`, symbol or name, found %s", tok.Kind.desc())
	}
}

// call = "!" | name [ "(" args ")" ]
func (p *parser) call() (*Call, *Error) {
	kind, err := p.peek()
	if err != nil {
		return nil, err
	}
	if kind == TokBang {
		if _, err := p.next(); err != nil {
			return nil, err
		}
		return &Call{Halt: true}, nil
	}

	name, err := p.name()
	if err != nil {
		return nil, err
	}
	call := &Call{Name: name}

	kind, err = p.peek()
	if err != nil {
		return nil, err
	}
	if kind != TokLParen {
		return call, nil
	}
	if _, err := p.next(); err != nil {
		return nil, err
	}

	// Arguments before a `;` are state arguments (or classify by
	// scope); everything after it must be a symbol.
	needSep := false
	afterSemi := false
	for {
		kind, err := p.peek()
		if err != nil {
			return nil, err
		}
		if kind == TokRParen {
			break
		}
		if kind == TokComma || kind == TokSemi {
			if kind == TokSemi {
				afterSemi = true
			}
			if _, err := p.next(); err != nil {
				return nil, err
			}
			needSep = false
			continue
		}
		if needSep {
			span, err := p.peekSpan()
			if err != nil {
				return nil, err
			}
			return nil, newError(ErrSyntax, &span,
				"expected `,` or `)`, found %s", kind.desc())
		}
		arg, err := p.arg()
		if err != nil {
			return nil, err
		}
		if afterSemi {
			if !arg.IsSymbol && (arg.Call.Halt || len(arg.Call.Args) > 0) {
				return nil, newError(ErrSyntax, &arg.Span,
					"expected symbol or name after `;`")
			}
			arg.SymbolPos = true
		}
		call.Args = append(call.Args, *arg)
		needSep = true
	}
	if _, err := p.expect(TokRParen); err != nil {
		return nil, err
	}

	return call, nil
}

func (p *parser) arg() (*Arg, *Error) {
	kind, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch kind {
	case TokSymbol:
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		return &Arg{IsSymbol: true, Symbol: tok.Text, Span: tok.Span}, nil
	case TokName, TokBang:
		span, err := p.peekSpan()
		if err != nil {
			return nil, err
		}
		call, err := p.call()
		if err != nil {
			return nil, err
		}
		return &Arg{Span: span, Call: call}, nil
	default:
		span, err := p.peekSpan()
		if err != nil {
			return nil, err
		}
		return nil, newError(ErrSyntax, &span,
			"expected symbol, name or `!`, found %s", kind.desc())
	}
}

func (p *parser) skipComma() *Error {
	kind, err := p.peek()
	if err != nil {
		return err
	}
	if kind == TokComma {
		_, err := p.next()
		return err
	}
	return nil
}
