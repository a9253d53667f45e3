package tml

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/rivo/uniseg"
)

// ErrorKind classifies everything the compiler and interpreter can
// reject. Tests match on the kind, not the message.
type ErrorKind int

const (
	ErrDuplicateState ErrorKind = iota
	ErrNoStart
	ErrNoSuchFunction
	ErrDuplicateParameter
	ErrTooManyParameters
	ErrTooManyStates
	ErrTooManySymbols
	ErrArmTooLarge
	ErrLastArmNotCatchall
	ErrCatchallNotLast
	ErrUnresolvedName
	ErrStateParamNotCallable
	ErrInvalidBytecode

	// Front-end (lexer/parser) faults.
	ErrSyntax
)

// Error is a diagnostic with an optional source span. A nil span means
// the error has no single offending token (for example a missing
// `start` state).
type Error struct {
	Kind ErrorKind
	Msg  string
	Span *Span
}

func newError(kind ErrorKind, span *Span, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Span: span}
}

func (e *Error) Error() string {
	if e.Span != nil {
		return fmt.Sprintf("%s:%d:%d: %s", e.Span.Path, e.Span.Line+1, e.Span.Column+1, e.Msg)
	}
	return e.Msg
}

// Print renders the diagnostic with a locator line and a caret
// underline, the way compilers report to terminals.
func (e *Error) Print(w io.Writer, noColor bool) {
	red := color.New(color.Bold, color.FgRed)
	blue := color.New(color.Bold, color.FgBlue)
	if noColor {
		red.DisableColor()
		blue.DisableColor()
	}

	red.Fprint(w, "error:")
	fmt.Fprintf(w, " %s\n", e.Msg)

	if e.Span == nil {
		return
	}
	span := e.Span

	lineStr := fmt.Sprintf("%d", span.Line+1)
	pad := strings.Repeat(" ", len(lineStr))

	blue.Fprintf(w, "%s-->", pad)
	fmt.Fprintf(w, " %s:%d:%d\n", span.Path, span.Line+1, span.Column+1)
	blue.Fprintf(w, "%s |", pad)
	fmt.Fprintln(w)
	blue.Fprintf(w, "%s |", lineStr)
	fmt.Fprintf(w, " %s\n", span.LineText)

	carets := uniseg.GraphemeClusterCount(span.Text)
	if carets == 0 {
		carets = 1
	}
	blue.Fprintf(w, "%s |", pad)
	fmt.Fprint(w, " ", strings.Repeat(" ", span.Column))
	red.Fprint(w, strings.Repeat("^", carets))
	fmt.Fprintln(w)
}
