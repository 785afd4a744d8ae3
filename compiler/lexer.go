package compiler

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: tokenizer for htn source
// ---------------------------------------------------------------------------

const eof = -1

// LexError reports a malformed token. The lexer recovers from every error by
// dropping the offending input and carrying on.
type LexError struct {
	Pos Position
	End Position
	Msg string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// Comment is a '#' comment, kept so the formatter can re-emit it.
type Comment struct {
	Pos  Position
	Text string // including the leading '#'
}

// Lexer tokenizes htn source code.
type Lexer struct {
	input   string
	pos     int  // offset of ch
	readPos int  // offset after ch
	ch      rune // current character, eof at end of input
	line    int  // line of ch (1-based)
	col     int  // column of ch (1-based)

	comments []Comment
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}

	if l.readPos >= len(l.input) {
		l.ch = eof
		l.pos = len(l.input)
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return eof
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the position of the current character.
func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.col,
	}
}

// Comments returns the comments skipped so far.
func (l *Lexer) Comments() []Comment {
	return l.comments
}

// NextToken returns the next token. Malformed input yields a TokenError whose
// Literal is the message; the offending text has already been consumed, so
// the caller can simply ask for the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	pos := l.position()
	tok := l.scan()
	tok.Pos = pos
	tok.End = l.position()
	if tok.Type != TokenError && tok.Literal == "" {
		tok.Literal = l.input[pos.Offset:l.pos]
	}
	return tok
}

func (l *Lexer) scan() Token {
	// single consumes one character and returns a token of type t.
	single := func(t TokenType) Token {
		l.readChar()
		return Token{Type: t}
	}
	// pair consumes one or two characters depending on the second.
	pair := func(second rune, two, one TokenType) Token {
		l.readChar()
		if l.ch == second {
			l.readChar()
			return Token{Type: two}
		}
		return Token{Type: one}
	}

	switch ch := l.ch; {
	case ch == eof:
		return Token{Type: TokenEOF}

	case ch == '(':
		return single(TokenLParen)
	case ch == ')':
		return single(TokenRParen)
	case ch == '{':
		return single(TokenLBrace)
	case ch == '}':
		return single(TokenRBrace)
	case ch == '[':
		return single(TokenLBracket)
	case ch == ']':
		return single(TokenRBracket)
	case ch == ':':
		return single(TokenColon)
	case ch == ',':
		return single(TokenComma)
	case ch == '.':
		return single(TokenDot)
	case ch == ';':
		return single(TokenSemicolon)

	case ch == '+':
		return single(TokenPlus)
	case ch == '-':
		return single(TokenMinus)
	case ch == '*':
		return single(TokenStar)
	case ch == '/':
		return single(TokenSlash)
	case ch == '%':
		return single(TokenPercent)
	case ch == '$':
		return single(TokenDollar)
	case ch == '&':
		return pair('&', TokenAnd, TokenAnd)
	case ch == '|':
		return pair('|', TokenOr, TokenOr)
	case ch == '=':
		return pair('=', TokenEq, TokenEq)
	case ch == '!':
		return pair('=', TokenNeq, TokenNot)
	case ch == '<':
		return pair('=', TokenLte, TokenLt)
	case ch == '>':
		return pair('=', TokenGte, TokenGt)
	case ch == '?' && l.peekChar() == '?':
		l.readChar()
		l.readChar()
		return Token{Type: TokenNullCoalesce}

	case ch == '@':
		return l.readGlobal()

	case ch == '"':
		return l.readEscapedString()

	case ch == '\'':
		return l.readRawString()

	case isDigit(ch):
		return l.readNumber()

	case isIdentStart(ch):
		return l.readIdentifier()

	default:
		l.readChar()
		if ch == utf8.RuneError {
			return Token{Type: TokenError, Literal: "invalid UTF-8 encoding"}
		}
		return Token{Type: TokenError, Literal: fmt.Sprintf("unexpected character %q", ch)}
	}
}

// skipWhitespaceAndComments skips whitespace and '#' line comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch != eof && unicode.IsSpace(l.ch) {
			l.readChar()
		}
		if l.ch != '#' {
			return
		}
		pos := l.position()
		for l.ch != '\n' && l.ch != eof {
			l.readChar()
		}
		l.comments = append(l.comments, Comment{
			Pos:  pos,
			Text: strings.TrimRight(l.input[pos.Offset:l.pos], "\r"),
		})
	}
}

// readGlobal reads @name.
func (l *Lexer) readGlobal() Token {
	l.readChar() // consume @
	if !isIdentStart(l.ch) {
		return Token{Type: TokenError, Literal: "expected a name after '@'"}
	}
	start := l.pos
	for isIdentPart(l.ch) {
		l.readChar()
	}
	return Token{Type: TokenGlobal, Str: l.input[start:l.pos]}
}

// scanMark is a saved scan position.
type scanMark struct {
	pos, readPos, line, col int
	ch                      rune
}

func (l *Lexer) mark() scanMark {
	return scanMark{l.pos, l.readPos, l.line, l.col, l.ch}
}

// resumeAfter rewinds to m and skips its character. A string that cannot be
// finished gives up only its opening quote; the text after it is lexed again.
func (l *Lexer) resumeAfter(m scanMark, msg string) Token {
	l.pos, l.readPos, l.line, l.col, l.ch = m.pos, m.readPos, m.line, m.col, m.ch
	l.readChar()
	return Token{Type: TokenError, Literal: msg}
}

// readEscapedString reads a double-quoted string, resolving \n \r \t \b \f
// \" and \\.
func (l *Lexer) readEscapedString() Token {
	start := l.mark()
	l.readChar() // consume opening "

	var sb strings.Builder
	for l.ch != '"' {
		if l.ch == eof {
			return l.resumeAfter(start, "unterminated string")
		}
		if l.ch != '\\' {
			sb.WriteRune(l.ch)
			l.readChar()
			continue
		}

		l.readChar() // consume backslash
		switch l.ch {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case '"':
			sb.WriteByte('"')
		case '\\':
			sb.WriteByte('\\')
		case eof:
			return l.resumeAfter(start, "unterminated string")
		default:
			return l.resumeAfter(start, fmt.Sprintf("invalid escape sequence \\%c", l.ch))
		}
		l.readChar()
	}
	l.readChar() // consume closing "

	return Token{Type: TokenString, Str: sb.String()}
}

// readRawString reads a single-quoted string. Only '' is special: it stands
// for one quote.
func (l *Lexer) readRawString() Token {
	start := l.mark()
	l.readChar() // consume opening '

	var sb strings.Builder
	for {
		if l.ch == eof {
			return l.resumeAfter(start, "unterminated string")
		}
		if l.ch == '\'' {
			if l.peekChar() == '\'' {
				sb.WriteByte('\'')
				l.readChar()
				l.readChar()
				continue
			}
			break
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}
	l.readChar() // consume closing '

	return Token{Type: TokenRawString, Str: sb.String()}
}

// readNumber reads an integer or float literal. A literal is a float only if
// a digit follows the '.'. Literals that do not fit their type are dropped.
func (l *Lexer) readNumber() Token {
	start := l.pos
	isFloat := false

	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		isFloat = true
		l.readChar() // consume .
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	lit := l.input[start:l.pos]
	if isFloat {
		f, err := strconv.ParseFloat(lit, 32)
		if err != nil {
			return Token{Type: TokenError, Literal: fmt.Sprintf("float literal %s out of range", lit)}
		}
		return Token{Type: TokenFloat, Float: float32(f)}
	}
	i, err := strconv.ParseInt(lit, 10, 32)
	if err != nil {
		return Token{Type: TokenError, Literal: fmt.Sprintf("integer literal %s overflows int32", lit)}
	}
	return Token{Type: TokenInt, Int: int32(i)}
}

// readIdentifier reads an identifier or reserved word.
func (l *Lexer) readIdentifier() Token {
	start := l.pos
	for isIdentPart(l.ch) {
		l.readChar()
	}
	literal := l.input[start:l.pos]
	if t, ok := reservedWords[literal]; ok {
		return Token{Type: t}
	}
	return Token{Type: TokenIdent}
}

// Lex tokenizes src completely. It never fails: malformed tokens are dropped
// and reported in the returned errors. The token slice always ends with EOF.
func Lex(src string) ([]Token, []*LexError) {
	tokens, errs, _ := lexAll(src)
	return tokens, errs
}

func lexAll(src string) ([]Token, []*LexError, []Comment) {
	l := NewLexer(src)
	var tokens []Token
	var errs []*LexError
	for {
		tok := l.NextToken()
		if tok.Type == TokenError {
			errs = append(errs, &LexError{Pos: tok.Pos, End: tok.End, Msg: tok.Literal})
			continue
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens, errs, l.Comments()
		}
	}
}

// Helper functions

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}
