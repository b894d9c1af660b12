// Package parser implements a recursive-descent parser turning Atlas
// source text (via pkg/lexer) into the pkg/ast tree pkg/interp walks and
// pkg/compiler lowers to bytecode.
package parser

import (
	"fmt"
	"strconv"

	"atlas/pkg/ast"
	"atlas/pkg/lexer"
	"atlas/pkg/value"
)

// Error is a syntax error located at a source position. Distinct from
// value.Failure, which is a runtime error both engines raise — a
// syntax error never reaches either engine.
type Error struct {
	Message string
	Line    int
	Column  int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

// Parser consumes tokens from a lexer and builds an *ast.Program.
type Parser struct {
	l    *lexer.Lexer
	file string

	cur  lexer.Token
	next lexer.Token
}

// New builds a parser over src, tagging every node's Span with file (used
// in diagnostics and stack traces).
func New(src, file string) *Parser {
	p := &Parser{l: lexer.New(src), file: file}
	p.advance()
	p.advance()
	return p
}

// Parse parses the entire input as a top-level statement sequence.
func Parse(src, file string) (*ast.Program, error) {
	return New(src, file).ParseProgram()
}

func (p *Parser) advance() {
	p.cur = p.next
	p.next = p.l.NextToken()
}

func (p *Parser) span(tok lexer.Token) ast.Span {
	return ast.Span{File: p.file, Line: tok.Line, Column: tok.Column}
}

func (p *Parser) errorf(format string, args ...any) error {
	return &Error{Message: fmt.Sprintf(format, args...), Line: p.cur.Line, Column: p.cur.Column}
}

func (p *Parser) expect(tt lexer.TokenType, what string) (lexer.Token, error) {
	if p.cur.Type != tt {
		return lexer.Token{}, p.errorf("expected %s, got %q", what, p.cur.Literal)
	}
	tok := p.cur
	p.advance()
	return tok, nil
}

// skipSemicolon consumes a single optional statement-terminating `;`.
func (p *Parser) skipSemicolon() {
	if p.cur.Type == lexer.TokenSemicolon {
		p.advance()
	}
}

// ParseProgram parses every top-level statement until EOF.
func (p *Parser) ParseProgram() (*ast.Program, error) {
	prog := &ast.Program{}
	for p.cur.Type != lexer.TokenEOF {
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		prog.Statements = append(prog.Statements, stmt)
	}
	return prog, nil
}

func (p *Parser) parseStmt() (ast.Stmt, error) {
	switch p.cur.Type {
	case lexer.TokenLet:
		return p.parseLetStmt()
	case lexer.TokenVar:
		return p.parseVarStmt()
	case lexer.TokenLBrace:
		// `{}`, or a `{` whose first entry reaches a `:` before any `;`
		// outside nested brackets, opens a map literal; otherwise a block.
		ahead, depth, isMap := *p.l, 0, p.next.Type == lexer.TokenRBrace
		for tok := p.next; !isMap && depth >= 0 && tok.Type != lexer.TokenEOF && tok.Type != lexer.TokenSemicolon; tok = ahead.NextToken() {
			switch tok.Type {
			case lexer.TokenLParen, lexer.TokenLBracket, lexer.TokenLBrace:
				depth++
			case lexer.TokenRParen, lexer.TokenRBracket, lexer.TokenRBrace:
				depth--
			case lexer.TokenColon:
				isMap = depth == 0
			}
		}
		if isMap {
			return p.parseExprStmt()
		}
		return p.parseBlock()
	case lexer.TokenIf:
		return p.parseIf()
	case lexer.TokenWhile:
		return p.parseWhile()
	case lexer.TokenFor:
		return p.parseFor()
	case lexer.TokenReturn:
		return p.parseReturn()
	case lexer.TokenBreak:
		tok := p.cur
		p.advance()
		p.skipSemicolon()
		return &ast.BreakStmt{Span: p.span(tok)}, nil
	case lexer.TokenContinue:
		tok := p.cur
		p.advance()
		p.skipSemicolon()
		return &ast.ContinueStmt{Span: p.span(tok)}, nil
	case lexer.TokenFn:
		if p.next.Type == lexer.TokenIdentifier {
			return p.parseFunctionDecl()
		}
		return p.parseExprStmt()
	default:
		return p.parseExprStmt()
	}
}

func (p *Parser) parseLetStmt() (ast.Stmt, error) {
	tok := p.cur
	p.advance()
	name, err := p.expect(lexer.TokenIdentifier, "identifier")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenAssign, "'='"); err != nil {
		return nil, err
	}
	init, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSemicolon()
	return &ast.LetStmt{Span: p.span(tok), Name: name.Literal, Initializer: init}, nil
}

func (p *Parser) parseVarStmt() (ast.Stmt, error) {
	tok := p.cur
	p.advance()
	name, err := p.expect(lexer.TokenIdentifier, "identifier")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenAssign, "'='"); err != nil {
		return nil, err
	}
	init, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSemicolon()
	return &ast.VarStmt{Span: p.span(tok), Name: name.Literal, Initializer: init}, nil
}

func (p *Parser) parseBlock() (*ast.BlockStmt, error) {
	tok, err := p.expect(lexer.TokenLBrace, "'{'")
	if err != nil {
		return nil, err
	}
	block := &ast.BlockStmt{Span: p.span(tok)}
	for p.cur.Type != lexer.TokenRBrace {
		if p.cur.Type == lexer.TokenEOF {
			return nil, p.errorf("unterminated block, expected '}'")
		}
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		block.Statements = append(block.Statements, stmt)
	}
	p.advance()
	return block, nil
}

func (p *Parser) parseIf() (ast.Stmt, error) {
	tok := p.cur
	p.advance()
	if _, err := p.expect(lexer.TokenLParen, "'('"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenRParen, "')'"); err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt := &ast.IfStmt{Span: p.span(tok), Condition: cond, Then: then}
	if p.cur.Type == lexer.TokenElse {
		p.advance()
		if p.cur.Type == lexer.TokenIf {
			elseIf, err := p.parseIf()
			if err != nil {
				return nil, err
			}
			stmt.Else = elseIf
		} else {
			elseBlock, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			stmt.Else = elseBlock
		}
	}
	return stmt, nil
}

func (p *Parser) parseWhile() (ast.Stmt, error) {
	tok := p.cur
	p.advance()
	if _, err := p.expect(lexer.TokenLParen, "'('"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenRParen, "')'"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.WhileStmt{Span: p.span(tok), Condition: cond, Body: body}, nil
}

func (p *Parser) parseFor() (ast.Stmt, error) {
	tok := p.cur
	p.advance()
	if _, err := p.expect(lexer.TokenLParen, "'('"); err != nil {
		return nil, err
	}

	var init ast.Stmt
	var err error
	if p.cur.Type == lexer.TokenSemicolon {
		p.advance()
	} else {
		switch p.cur.Type {
		case lexer.TokenLet:
			init, err = p.parseLetStmt()
		case lexer.TokenVar:
			init, err = p.parseVarStmt()
		default:
			init, err = p.parseExprStmt()
		}
		if err != nil {
			return nil, err
		}
	}

	var cond ast.Expression
	if p.cur.Type != lexer.TokenSemicolon {
		cond, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(lexer.TokenSemicolon, "';'"); err != nil {
		return nil, err
	}

	var post ast.Expression
	if p.cur.Type != lexer.TokenRParen {
		post, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(lexer.TokenRParen, "')'"); err != nil {
		return nil, err
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.ForStmt{Span: p.span(tok), Init: init, Condition: cond, Post: post, Body: body}, nil
}

func (p *Parser) parseReturn() (ast.Stmt, error) {
	tok := p.cur
	p.advance()
	stmt := &ast.ReturnStmt{Span: p.span(tok)}
	if p.cur.Type != lexer.TokenSemicolon && p.cur.Type != lexer.TokenRBrace {
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Value = v
	}
	p.skipSemicolon()
	return stmt, nil
}

func (p *Parser) parseFunctionDecl() (ast.Stmt, error) {
	tok := p.cur
	p.advance() // 'fn'
	name, err := p.expect(lexer.TokenIdentifier, "identifier")
	if err != nil {
		return nil, err
	}
	lit, err := p.parseFunctionTail(tok, name.Literal)
	if err != nil {
		return nil, err
	}
	return &ast.FunctionDeclStmt{Span: p.span(tok), Name: name.Literal, Literal: lit}, nil
}

// parseFunctionTail parses the `(params) { body }` portion shared by a
// named declaration and an anonymous literal.
func (p *Parser) parseFunctionTail(tok lexer.Token, name string) (*ast.FunctionLiteral, error) {
	if _, err := p.expect(lexer.TokenLParen, "'('"); err != nil {
		return nil, err
	}
	var params []ast.Param
	for p.cur.Type != lexer.TokenRParen {
		borrow := false
		if p.cur.Type == lexer.TokenBorrow {
			borrow = true
			p.advance()
		}
		pname, err := p.expect(lexer.TokenIdentifier, "parameter name")
		if err != nil {
			return nil, err
		}
		params = append(params, ast.Param{Name: pname.Literal, Borrow: borrow})
		if p.cur.Type == lexer.TokenComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.TokenRParen, "')'"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.FunctionLiteral{Span: p.span(tok), Name: name, Params: params, Body: body}, nil
}

func (p *Parser) parseExprStmt() (ast.Stmt, error) {
	tok := p.cur
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSemicolon()
	return &ast.ExpressionStmt{Span: p.span(tok), Expression: expr}, nil
}

// --- Expressions, by ascending precedence: assignment, ||, &&, equality,
// comparison, additive, multiplicative, unary, call/index postfix, primary.

func (p *Parser) parseExpr() (ast.Expression, error) {
	return p.parseAssignment()
}

func (p *Parser) parseAssignment() (ast.Expression, error) {
	left, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}
	if p.cur.Type != lexer.TokenAssign {
		return left, nil
	}
	tok := p.cur
	p.advance()
	value, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	switch t := left.(type) {
	case *ast.Variable:
		return &ast.Assign{Span: p.span(tok), Name: t.Name, Value: value}, nil
	case *ast.IndexGet:
		return &ast.IndexSet{Span: p.span(tok), Collection: t.Collection, Index: t.Index, Value: value}, nil
	default:
		return nil, &Error{Message: "invalid assignment target", Line: tok.Line, Column: tok.Column}
	}
}

func (p *Parser) parseLogicalOr() (ast.Expression, error) {
	left, err := p.parseLogicalAnd()
	if err != nil {
		return nil, err
	}
	for p.cur.Type == lexer.TokenOr {
		tok := p.cur
		p.advance()
		right, err := p.parseLogicalAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.Logical{Span: p.span(tok), Left: left, Operator: ast.OpOr, Right: right}
	}
	return left, nil
}

func (p *Parser) parseLogicalAnd() (ast.Expression, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.cur.Type == lexer.TokenAnd {
		tok := p.cur
		p.advance()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &ast.Logical{Span: p.span(tok), Left: left, Operator: ast.OpAnd, Right: right}
	}
	return left, nil
}

func (p *Parser) parseEquality() (ast.Expression, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.cur.Type == lexer.TokenEqual || p.cur.Type == lexer.TokenNotEqual {
		op := ast.OpEqual
		if p.cur.Type == lexer.TokenNotEqual {
			op = ast.OpNotEqual
		}
		tok := p.cur
		p.advance()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Span: p.span(tok), Left: left, Operator: op, Right: right}
	}
	return left, nil
}

func (p *Parser) parseComparison() (ast.Expression, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		var op ast.BinaryOp
		switch p.cur.Type {
		case lexer.TokenLess:
			op = ast.OpLess
		case lexer.TokenLessEq:
			op = ast.OpLessEq
		case lexer.TokenGreater:
			op = ast.OpGreater
		case lexer.TokenGreaterEq:
			op = ast.OpGreaterEq
		default:
			return left, nil
		}
		tok := p.cur
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Span: p.span(tok), Left: left, Operator: op, Right: right}
	}
}

func (p *Parser) parseAdditive() (ast.Expression, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur.Type == lexer.TokenPlus || p.cur.Type == lexer.TokenMinus {
		op := ast.OpAdd
		if p.cur.Type == lexer.TokenMinus {
			op = ast.OpSub
		}
		tok := p.cur
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Span: p.span(tok), Left: left, Operator: op, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur.Type == lexer.TokenStar || p.cur.Type == lexer.TokenSlash || p.cur.Type == lexer.TokenPercent {
		var op ast.BinaryOp
		switch p.cur.Type {
		case lexer.TokenStar:
			op = ast.OpMul
		case lexer.TokenSlash:
			op = ast.OpDiv
		case lexer.TokenPercent:
			op = ast.OpMod
		}
		tok := p.cur
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Span: p.span(tok), Left: left, Operator: op, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expression, error) {
	if p.cur.Type == lexer.TokenMinus || p.cur.Type == lexer.TokenNot {
		tok := p.cur
		op := ast.OpNegate
		if tok.Type == lexer.TokenNot {
			op = ast.OpNot
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Span: p.span(tok), Operator: op, Right: right}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (ast.Expression, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur.Type {
		case lexer.TokenLParen:
			tok := p.cur
			p.advance()
			var args []ast.Expression
			for p.cur.Type != lexer.TokenRParen {
				arg, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if p.cur.Type == lexer.TokenComma {
					p.advance()
					continue
				}
				break
			}
			if _, err := p.expect(lexer.TokenRParen, "')'"); err != nil {
				return nil, err
			}
			expr = &ast.Call{Span: p.span(tok), Callee: expr, Args: args}
		case lexer.TokenLBracket:
			tok := p.cur
			p.advance()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.TokenRBracket, "']'"); err != nil {
				return nil, err
			}
			expr = &ast.IndexGet{Span: p.span(tok), Collection: expr, Index: idx}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parsePrimary() (ast.Expression, error) {
	tok := p.cur
	switch tok.Type {
	case lexer.TokenNumber:
		p.advance()
		n, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return nil, &Error{Message: "invalid number literal " + tok.Literal, Line: tok.Line, Column: tok.Column}
		}
		return &ast.Literal{Span: p.span(tok), Value: value.Number(n)}, nil
	case lexer.TokenString:
		p.advance()
		return &ast.Literal{Span: p.span(tok), Value: value.String(tok.Literal)}, nil
	case lexer.TokenTrue:
		p.advance()
		return &ast.Literal{Span: p.span(tok), Value: value.Bool(true)}, nil
	case lexer.TokenFalse:
		p.advance()
		return &ast.Literal{Span: p.span(tok), Value: value.Bool(false)}, nil
	case lexer.TokenNull:
		p.advance()
		return &ast.Literal{Span: p.span(tok), Value: value.Null}, nil
	case lexer.TokenIdentifier:
		p.advance()
		return &ast.Variable{Span: p.span(tok), Name: tok.Literal}, nil
	case lexer.TokenLParen:
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenRParen, "')'"); err != nil {
			return nil, err
		}
		return &ast.Grouping{Span: p.span(tok), Expression: inner}, nil
	case lexer.TokenLBracket:
		return p.parseArrayLiteral()
	case lexer.TokenLBrace:
		return p.parseMapLiteral()
	case lexer.TokenFn:
		p.advance()
		return p.parseFunctionTail(tok, "")
	default:
		return nil, p.errorf("unexpected token %q", tok.Literal)
	}
}

func (p *Parser) parseArrayLiteral() (ast.Expression, error) {
	tok := p.cur
	p.advance()
	lit := &ast.ArrayLiteral{Span: p.span(tok)}
	for p.cur.Type != lexer.TokenRBracket {
		elem, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		lit.Elements = append(lit.Elements, elem)
		if p.cur.Type == lexer.TokenComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.TokenRBracket, "']'"); err != nil {
		return nil, err
	}
	return lit, nil
}

func (p *Parser) parseMapLiteral() (ast.Expression, error) {
	tok := p.cur
	p.advance()
	lit := &ast.MapLiteral{Span: p.span(tok)}
	for p.cur.Type != lexer.TokenRBrace {
		key, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenColon, "':'"); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		lit.Entries = append(lit.Entries, ast.MapEntry{Key: key, Value: val})
		if p.cur.Type == lexer.TokenComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.TokenRBrace, "'}'"); err != nil {
		return nil, err
	}
	return lit, nil
}
