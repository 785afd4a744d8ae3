package compiler

import (
	"fmt"

	"github.com/chazu/htn/vm"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent with precedence tiers
// ---------------------------------------------------------------------------

// ParseError reports why a statement could not be parsed. When several
// alternatives fail, the error is the one that got furthest into the input.
type ParseError struct {
	Pos Position
	End Position
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// Parser parses a token slice into statements. The cursor can be saved and
// restored, which is how statement alternatives are tried in order.
type Parser struct {
	tokens []Token
	pos    int

	// furthest is the failure reached deepest into the input.
	furthest *ParseError
}

// NewParser creates a parser over tokens. An EOF token is appended if the
// slice does not already end with one.
func NewParser(tokens []Token) *Parser {
	if n := len(tokens); n == 0 || tokens[n-1].Type != TokenEOF {
		var end Position
		if n > 0 {
			end = tokens[n-1].End
		} else {
			end = Position{Line: 1, Column: 1}
		}
		tokens = append(tokens[:n:n], Token{Type: TokenEOF, Pos: end, End: end})
	}
	return &Parser{tokens: tokens}
}

// Parse lexes and parses src. Lex errors are recovered and returned alongside
// the statements; a parse error aborts the whole program.
func Parse(src string) ([]Stmt, []*LexError, error) {
	tokens, lexErrs := Lex(src)
	stmts, err := NewParser(tokens).ParseProgram()
	return stmts, lexErrs, err
}

// ---------------------------------------------------------------------------
// Cursor
// ---------------------------------------------------------------------------

func (p *Parser) cur() Token {
	return p.tokens[p.pos]
}

func (p *Parser) peek() Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) advance() Token {
	tok := p.tokens[p.pos]
	if tok.Type != TokenEOF {
		p.pos++
	}
	return tok
}

func (p *Parser) mark() int {
	return p.pos
}

func (p *Parser) reset(m int) {
	p.pos = m
}

// prev returns the most recently consumed token.
func (p *Parser) prev() Token {
	if p.pos == 0 {
		return p.tokens[0]
	}
	return p.tokens[p.pos-1]
}

// spanFrom returns the span from start to the end of the last consumed token.
func (p *Parser) spanFrom(start Position) Span {
	return Span{Start: start, End: p.prev().End}
}

// errorf records a failure at tok and returns it. The furthest failure wins;
// on a tie the later alternative does.
func (p *Parser) errorf(tok Token, format string, args ...any) error {
	err := &ParseError{Pos: tok.Pos, End: tok.End, Msg: fmt.Sprintf(format, args...)}
	if p.furthest == nil || tok.Pos.Offset >= p.furthest.Pos.Offset {
		p.furthest = err
	}
	return err
}

// expect consumes a token of type t or fails.
func (p *Parser) expect(t TokenType, what string) (Token, error) {
	tok := p.cur()
	if tok.Type != t {
		return tok, p.errorf(tok, "expected %s, found %s", what, tok.describe())
	}
	return p.advance(), nil
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// ParseProgram parses statements until EOF.
func (p *Parser) ParseProgram() ([]Stmt, error) {
	var stmts []Stmt
	for p.cur().Type != TokenEOF {
		p.furthest = nil
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, p.furthest
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

// parseStatement tries, in order: noop, exit, if, assignment, bare expression.
func (p *Parser) parseStatement() (Stmt, error) {
	tok := p.cur()
	switch tok.Type {
	case TokenSemicolon:
		p.advance()
		return &Noop{SpanVal: Span{Start: tok.Pos, End: tok.End}}, nil
	case TokenExit:
		return p.parseExit()
	case TokenIf:
		return p.parseIf()
	}

	m := p.mark()
	if stmt, err := p.parseAssign(); err == nil {
		return stmt, nil
	}
	p.reset(m)
	return p.parseExprStmt()
}

// terminator consumes the ';' ending a simple statement. It may be left out
// before '}' or at end of input.
func (p *Parser) terminator() error {
	switch p.cur().Type {
	case TokenSemicolon:
		p.advance()
		return nil
	case TokenRBrace, TokenEOF:
		return nil
	}
	return p.errorf(p.cur(), "expected ';', found %s", p.cur().describe())
}

func (p *Parser) parseExit() (Stmt, error) {
	start := p.advance().Pos // exit

	tok := p.cur()
	if tok.Type != TokenIdent {
		return nil, p.errorf(tok, "expected end state after exit, found %s", tok.describe())
	}
	state, ok := vm.ParseEndState(tok.Literal)
	if !ok {
		return nil, p.errorf(tok, "unknown end state %q (want Success, Failure or Running)", tok.Literal)
	}
	p.advance()
	if err := p.terminator(); err != nil {
		return nil, err
	}
	return &Exit{SpanVal: p.spanFrom(start), State: state}, nil
}

func (p *Parser) parseIf() (Stmt, error) {
	start := p.advance().Pos // if

	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt := &If{Cond: cond, Then: then}

	if p.cur().Type == TokenElse {
		p.advance()
		if p.cur().Type == TokenIf {
			nested, err := p.parseIf()
			if err != nil {
				return nil, err
			}
			stmt.Else = &Block{SpanVal: nested.Span(), Stmts: []Stmt{nested}, Chained: true}
		} else {
			stmt.Else, err = p.parseBlock()
			if err != nil {
				return nil, err
			}
		}
	}
	stmt.SpanVal = p.spanFrom(start)
	return stmt, nil
}

func (p *Parser) parseBlock() (*Block, error) {
	open, err := p.expect(TokenLBrace, "'{'")
	if err != nil {
		return nil, err
	}
	block := &Block{}
	for p.cur().Type != TokenRBrace {
		if p.cur().Type == TokenEOF {
			return nil, p.errorf(p.cur(), "expected '}' to close block opened at %s", open.Pos)
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		block.Stmts = append(block.Stmts, stmt)
	}
	p.advance() // }
	block.SpanVal = p.spanFrom(open.Pos)
	return block, nil
}

// parseAssign parses name = expr. Only a single '=' assigns; '==' is always
// a comparison.
func (p *Parser) parseAssign() (Stmt, error) {
	name, err := p.expect(TokenIdent, "identifier")
	if err != nil {
		return nil, err
	}
	if eq := p.cur(); eq.Type != TokenEq || eq.Literal != "=" {
		return nil, p.errorf(eq, "expected '=', found %s", eq.describe())
	}
	p.advance()

	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.terminator(); err != nil {
		return nil, err
	}
	return &Assign{SpanVal: p.spanFrom(name.Pos), Name: name.Literal, Value: value}, nil
}

func (p *Parser) parseExprStmt() (Stmt, error) {
	start := p.cur().Pos
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.terminator(); err != nil {
		return nil, err
	}
	return &ExprStmt{SpanVal: p.spanFrom(start), Value: value}, nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// binaryTiers lists the operator tiers from loosest to tightest binding.
var binaryTiers = []map[TokenType]BinaryOp{
	{TokenOr: OpOr},
	{TokenAnd: OpAnd},
	{TokenLt: OpLt, TokenGt: OpGt, TokenLte: OpLte, TokenGte: OpGte, TokenEq: OpEq, TokenNeq: OpNeq},
	{TokenPlus: OpAdd, TokenMinus: OpSub},
	{TokenStar: OpMul, TokenSlash: OpDiv, TokenPercent: OpMod},
}

var unaryOps = map[TokenType]UnaryOp{
	TokenNot:    OpNot,
	TokenMinus:  OpNeg,
	TokenDollar: OpDbg,
}

// parseExpr parses a full expression.
func (p *Parser) parseExpr() (Expr, error) {
	return p.parseTier(0)
}

// parseTier parses operand (op tier)? where operand is the next tier. The
// recursion is on the right, so a - b - c is a - (b - c).
func (p *Parser) parseTier(tier int) (Expr, error) {
	if tier == len(binaryTiers) {
		return p.parseUnary()
	}

	left, err := p.parseTier(tier + 1)
	if err != nil {
		return nil, err
	}
	op, ok := binaryTiers[tier][p.cur().Type]
	if !ok {
		return left, nil
	}
	p.advance()

	right, err := p.parseTier(tier)
	if err != nil {
		return nil, err
	}
	return &Binary{
		SpanVal: Span{Start: left.Span().Start, End: right.Span().End},
		Left:    left,
		Op:      op,
		Right:   right,
	}, nil
}

// parseUnary parses prefix operators applied to a coalescing expression.
func (p *Parser) parseUnary() (Expr, error) {
	tok := p.cur()
	if op, ok := unaryOps[tok.Type]; ok {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{SpanVal: Span{Start: tok.Pos, End: operand.Span().End}, Op: op, Operand: operand}, nil
	}
	return p.parseCoalesce()
}

// parseCoalesce parses postfix (?? operand)*, folding to the left.
func (p *Parser) parseCoalesce() (Expr, error) {
	left, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	for p.cur().Type == TokenNullCoalesce {
		p.advance()
		right, err := p.parseCoalesceOperand()
		if err != nil {
			return nil, err
		}
		left = &NullCoalesce{
			SpanVal: Span{Start: left.Span().Start, End: right.Span().End},
			Left:    left,
			Right:   right,
		}
	}
	return left, nil
}

// parseCoalesceOperand parses the right side of ??: prefix operators over a
// postfix expression, stopping before the next ??.
func (p *Parser) parseCoalesceOperand() (Expr, error) {
	tok := p.cur()
	if op, ok := unaryOps[tok.Type]; ok {
		p.advance()
		operand, err := p.parseCoalesceOperand()
		if err != nil {
			return nil, err
		}
		return &Unary{SpanVal: Span{Start: tok.Pos, End: operand.Span().End}, Op: op, Operand: operand}, nil
	}
	return p.parsePostfix()
}

// parsePostfix parses an atom followed by calls, indexes and member accesses.
func (p *Parser) parsePostfix() (Expr, error) {
	expr, err := p.parseAtom()
	if err != nil {
		return nil, err
	}

	for {
		start := expr.Span().Start
		switch p.cur().Type {
		case TokenLParen:
			p.advance()
			args, err := p.parseList(TokenRParen, "')'", p.parseExpr)
			if err != nil {
				return nil, err
			}
			expr = &Call{SpanVal: p.spanFrom(start), Target: expr, Args: args}

		case TokenLBracket:
			p.advance()
			key, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokenRBracket, "']'"); err != nil {
				return nil, err
			}
			expr = &Index{SpanVal: p.spanFrom(start), Target: expr, Key: key}

		case TokenDot:
			p.advance()
			field, err := p.expect(TokenIdent, "property name after '.'")
			if err != nil {
				return nil, err
			}
			expr = &Access{SpanVal: p.spanFrom(start), Target: expr, Field: field.Literal}

		default:
			return expr, nil
		}
	}
}

// parseList parses comma-separated items up to the closing token, allowing a
// trailing comma. The opening token has already been consumed.
func (p *Parser) parseList(closing TokenType, what string, item func() (Expr, error)) ([]Expr, error) {
	var items []Expr
	for p.cur().Type != closing {
		e, err := item()
		if err != nil {
			return nil, err
		}
		items = append(items, e)
		if p.cur().Type != TokenComma {
			break
		}
		p.advance()
	}
	if _, err := p.expect(closing, what); err != nil {
		return nil, err
	}
	return items, nil
}

// parseAtom parses literals, variables, globals, parenthesized expressions,
// object literals and constant lists.
func (p *Parser) parseAtom() (Expr, error) {
	tok := p.cur()
	if v, ok := literalValue(tok); ok {
		p.advance()
		return &Literal{SpanVal: Span{Start: tok.Pos, End: tok.End}, Value: v}, nil
	}

	switch tok.Type {
	case TokenIdent:
		p.advance()
		return &Variable{SpanVal: Span{Start: tok.Pos, End: tok.End}, Name: tok.Literal}, nil

	case TokenGlobal:
		p.advance()
		return &Global{SpanVal: Span{Start: tok.Pos, End: tok.End}, Name: tok.Str}, nil

	case TokenLParen:
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil

	case TokenLBrace:
		return p.parseObject()

	case TokenLBracket:
		p.advance()
		v, err := p.parseConstList()
		if err != nil {
			return nil, err
		}
		return &Literal{SpanVal: p.spanFrom(tok.Pos), Value: v}, nil
	}

	return nil, p.errorf(tok, "expected expression, found %s", tok.describe())
}

// literalValue converts a literal token to a value.
func literalValue(tok Token) (vm.Value, bool) {
	switch tok.Type {
	case TokenTrue:
		return vm.BoolValue(true), true
	case TokenFalse:
		return vm.BoolValue(false), true
	case TokenNull:
		return vm.NullValue(), true
	case TokenInt:
		return vm.IntValue(tok.Int), true
	case TokenFloat:
		return vm.FloatValue(tok.Float), true
	case TokenString, TokenRawString:
		return vm.StringValue(tok.Str), true
	}
	return vm.Value{}, false
}

// parseObject parses { key: expr, ... }. Keys are strings or identifiers.
func (p *Parser) parseObject() (Expr, error) {
	open := p.advance() // {
	obj := &Object{}
	for p.cur().Type != TokenRBrace {
		keyTok := p.cur()
		var key string
		switch keyTok.Type {
		case TokenString, TokenRawString:
			key = keyTok.Str
		case TokenIdent:
			key = keyTok.Literal
		default:
			return nil, p.errorf(keyTok, "expected object key, found %s", keyTok.describe())
		}
		p.advance()
		if _, err := p.expect(TokenColon, "':' after object key"); err != nil {
			return nil, err
		}
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		obj.Fields = append(obj.Fields, ObjectField{Key: key, Value: value})
		if p.cur().Type != TokenComma {
			break
		}
		p.advance()
	}
	if _, err := p.expect(TokenRBrace, "'}' to close object"); err != nil {
		return nil, err
	}
	obj.SpanVal = p.spanFrom(open.Pos)
	return obj, nil
}

// parseConstList parses the rest of a [ ... ] list of constants. The opening
// bracket has already been consumed.
func (p *Parser) parseConstList() (vm.Value, error) {
	var items []vm.Value
	for p.cur().Type != TokenRBracket {
		v, err := p.parseConst()
		if err != nil {
			return vm.Value{}, err
		}
		items = append(items, v)
		if p.cur().Type != TokenComma {
			break
		}
		p.advance()
	}
	if _, err := p.expect(TokenRBracket, "']' to close list"); err != nil {
		return vm.Value{}, err
	}
	return vm.ListValue(items...), nil
}

func (p *Parser) parseConst() (vm.Value, error) {
	tok := p.cur()
	if v, ok := literalValue(tok); ok {
		p.advance()
		return v, nil
	}
	switch tok.Type {
	case TokenMinus:
		p.advance()
		num := p.cur()
		switch num.Type {
		case TokenInt:
			p.advance()
			return vm.IntValue(-num.Int), nil
		case TokenFloat:
			p.advance()
			return vm.FloatValue(-num.Float), nil
		}
		return vm.Value{}, p.errorf(num, "expected number after '-', found %s", num.describe())
	case TokenLBracket:
		p.advance()
		return p.parseConstList()
	}
	return vm.Value{}, p.errorf(tok, "list elements must be constants, found %s", tok.describe())
}
