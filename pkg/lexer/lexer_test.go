package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func tokenTypes(t *testing.T, src string) []TokenType {
	t.Helper()
	l := New(src)
	toks, err := l.Tokenize()
	require.NoError(t, err)
	types := make([]TokenType, len(toks))
	for i, tok := range toks {
		types[i] = tok.Type
	}
	return types
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	types := tokenTypes(t, "let var fn borrow if else while for return break continue true false null x")
	require.Equal(t, []TokenType{
		TokenLet, TokenVar, TokenFn, TokenBorrow, TokenIf, TokenElse, TokenWhile,
		TokenFor, TokenReturn, TokenBreak, TokenContinue, TokenTrue, TokenFalse,
		TokenNull, TokenIdentifier, TokenEOF,
	}, types)
}

func TestOperators(t *testing.T) {
	types := tokenTypes(t, "+ - * / % < > <= >= = == != ! && ||")
	require.Equal(t, []TokenType{
		TokenPlus, TokenMinus, TokenStar, TokenSlash, TokenPercent,
		TokenLess, TokenGreater, TokenLessEq, TokenGreaterEq,
		TokenAssign, TokenEqual, TokenNotEqual, TokenNot, TokenAnd, TokenOr, TokenEOF,
	}, types)
}

func TestNumberLiteral(t *testing.T) {
	l := New("3.5 42")
	tok := l.NextToken()
	require.Equal(t, TokenNumber, tok.Type)
	require.Equal(t, "3.5", tok.Literal)
	tok = l.NextToken()
	require.Equal(t, TokenNumber, tok.Type)
	require.Equal(t, "42", tok.Literal)
}

func TestStringLiteralWithEscapes(t *testing.T) {
	l := New(`"hello\nworld" "a\"b"`)
	tok := l.NextToken()
	require.Equal(t, TokenString, tok.Type)
	require.Equal(t, "hello\nworld", tok.Literal)
	tok = l.NextToken()
	require.Equal(t, TokenString, tok.Type)
	require.Equal(t, `a"b`, tok.Literal)
}

func TestLineCommentSkipped(t *testing.T) {
	types := tokenTypes(t, "let x = 1 // trailing comment\nvar y = 2")
	require.Equal(t, []TokenType{
		TokenLet, TokenIdentifier, TokenAssign, TokenNumber,
		TokenVar, TokenIdentifier, TokenAssign, TokenNumber, TokenEOF,
	}, types)
}

func TestDelimitersAndBraces(t *testing.T) {
	types := tokenTypes(t, "( ) [ ] { } , : ;")
	require.Equal(t, []TokenType{
		TokenLParen, TokenRParen, TokenLBracket, TokenRBracket,
		TokenLBrace, TokenRBrace, TokenComma, TokenColon, TokenSemicolon, TokenEOF,
	}, types)
}

func TestIllegalSingleAmpersand(t *testing.T) {
	l := New("&")
	tok := l.NextToken()
	require.Equal(t, TokenIllegal, tok.Type)
}

func TestLineAndColumnTracking(t *testing.T) {
	l := New("let\nx")
	l.NextToken() // let
	tok := l.NextToken()
	require.Equal(t, TokenIdentifier, tok.Type)
	require.Equal(t, 2, tok.Line)
}
