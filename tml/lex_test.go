package tml

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func lexAll(t *testing.T, source string) []Token {
	t.Helper()
	lx := NewLexer("test.tml", source, false)
	var tokens []Token
	for {
		tok, err := lx.Next()
		require.Nil(t, err, "lex error: %v", err)
		tokens = append(tokens, tok)
		if tok.Kind == TokEOF {
			return tokens
		}
	}
}

func kinds(tokens []Token) []TokenKind {
	out := make([]TokenKind, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Kind
	}
	return out
}

func TestLexPunctuation(t *testing.T) {
	tokens := lexAll(t, "( ) { } , ; | ! < >")
	want := []TokenKind{
		TokLParen, TokRParen, TokLBrace, TokRBrace, TokComma,
		TokSemi, TokBar, TokBang, TokLeft, TokRight, TokEOF,
	}
	require.Equal(t, want, kinds(tokens))
}

func TestLexNames(t *testing.T) {
	tokens := lexAll(t, "start _ _foo go2 αβγ")
	require.Equal(t, []TokenKind{TokName, TokName, TokName, TokName, TokName, TokEOF}, kinds(tokens))
	require.Equal(t, "start", tokens[0].Text)
	require.Equal(t, "_", tokens[1].Text)
	require.Equal(t, "_foo", tokens[2].Text)
	require.Equal(t, "go2", tokens[3].Text)
	require.Equal(t, "αβγ", tokens[4].Text)
}

func TestLexSymbols(t *testing.T) {
	tokens := lexAll(t, `'a' '' 'hello world' '\'' '\\'`)
	require.Equal(t, []TokenKind{TokSymbol, TokSymbol, TokSymbol, TokSymbol, TokSymbol, TokEOF}, kinds(tokens))
	require.Equal(t, "a", tokens[0].Text)
	require.Equal(t, "", tokens[1].Text)
	require.Equal(t, "hello world", tokens[2].Text)
	require.Equal(t, "'", tokens[3].Text)
	require.Equal(t, `\`, tokens[4].Text)
}

func TestLexSpans(t *testing.T) {
	tokens := lexAll(t, "start {\n  'a' | > | start\n}")
	require.Equal(t, 0, tokens[0].Span.Line)
	require.Equal(t, 0, tokens[0].Span.Column)
	require.Equal(t, "start", tokens[0].Span.Text)

	// 'a' sits on line 1, column 2.
	require.Equal(t, TokSymbol, tokens[2].Kind)
	require.Equal(t, 1, tokens[2].Span.Line)
	require.Equal(t, 2, tokens[2].Span.Column)
	require.Equal(t, "'a'", tokens[2].Span.Text)
	require.Equal(t, "  'a' | > | start", tokens[2].Span.LineText)
}

func TestLexRejectsTabs(t *testing.T) {
	lx := NewLexer("test.tml", "start\t{", false)
	_, err := lx.Next()
	require.Nil(t, err)
	_, err = lx.Next()
	require.NotNil(t, err)
	require.Equal(t, ErrSyntax, err.Kind)

	lx = NewLexer("test.tml", "start\t{", true)
	tok, err := lx.Next()
	require.Nil(t, err)
	require.Equal(t, "start", tok.Text)
	tok, err = lx.Next()
	require.Nil(t, err)
	require.Equal(t, TokLBrace, tok.Kind)
}

func TestLexUnterminatedSymbol(t *testing.T) {
	lx := NewLexer("test.tml", "'abc", false)
	_, err := lx.Next()
	require.NotNil(t, err)
	require.Equal(t, ErrSyntax, err.Kind)
}

func TestLexInvalidEscape(t *testing.T) {
	lx := NewLexer("test.tml", `'\n'`, false)
	_, err := lx.Next()
	require.NotNil(t, err)
	require.Equal(t, ErrSyntax, err.Kind)
}

func TestLexUnexpectedCharacter(t *testing.T) {
	lx := NewLexer("test.tml", "start @", false)
	_, err := lx.Next()
	require.Nil(t, err)
	_, err = lx.Next()
	require.NotNil(t, err)
	require.Equal(t, ErrSyntax, err.Kind)
}

func TestLexEOFIsSticky(t *testing.T) {
	lx := NewLexer("test.tml", "", false)
	for i := 0; i < 3; i++ {
		tok, err := lx.Next()
		require.Nil(t, err)
		require.Equal(t, TokEOF, tok.Kind)
	}
}
