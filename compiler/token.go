package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the htn lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenIdent     // foo, creep_1
	TokenGlobal    // @world
	TokenInt       // 42
	TokenFloat     // 3.14
	TokenString    // "escaped\n"
	TokenRawString // 'raw, '' is a quote'

	// Keywords
	TokenTrue  // True
	TokenFalse // False
	TokenNull  // Null
	TokenIf    // if
	TokenElse  // else
	TokenExit  // exit

	// Operators
	TokenPlus         // +
	TokenMinus        // -
	TokenStar         // *
	TokenSlash        // /
	TokenPercent      // %
	TokenAnd          // && or &
	TokenOr           // || or |
	TokenEq           // == or =
	TokenNeq          // !=
	TokenLt           // <
	TokenGt           // >
	TokenLte          // <=
	TokenGte          // >=
	TokenNot          // !
	TokenNullCoalesce // ??
	TokenDollar       // $

	// Flow symbols
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenColon     // :
	TokenComma     // ,
	TokenDot       // .
	TokenSemicolon // ;
)

var tokenNames = map[TokenType]string{
	TokenEOF:          "EOF",
	TokenError:        "ERROR",
	TokenIdent:        "IDENT",
	TokenGlobal:       "GLOBAL",
	TokenInt:          "INT",
	TokenFloat:        "FLOAT",
	TokenString:       "STRING",
	TokenRawString:    "RAW_STRING",
	TokenTrue:         "True",
	TokenFalse:        "False",
	TokenNull:         "Null",
	TokenIf:           "if",
	TokenElse:         "else",
	TokenExit:         "exit",
	TokenPlus:         "+",
	TokenMinus:        "-",
	TokenStar:         "*",
	TokenSlash:        "/",
	TokenPercent:      "%",
	TokenAnd:          "&&",
	TokenOr:           "||",
	TokenEq:           "==",
	TokenNeq:          "!=",
	TokenLt:           "<",
	TokenGt:           ">",
	TokenLte:          "<=",
	TokenGte:          ">=",
	TokenNot:          "!",
	TokenNullCoalesce: "??",
	TokenDollar:       "$",
	TokenLParen:       "(",
	TokenRParen:       ")",
	TokenLBrace:       "{",
	TokenRBrace:       "}",
	TokenLBracket:     "[",
	TokenRBracket:     "]",
	TokenColon:        ":",
	TokenComma:        ",",
	TokenDot:          ".",
	TokenSemicolon:    ";",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// IsKeyword reports whether t is a reserved word.
func (t TokenType) IsKeyword() bool {
	return t >= TokenTrue && t <= TokenExit
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw source text
	Str     string   // decoded contents of string tokens; name of a global
	Int     int32    // value of an INT token
	Float   float32  // value of a FLOAT token
	Pos     Position // start position
	End     Position // position just past the token
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// describe renders the token for error messages.
func (t Token) describe() string {
	switch t.Type {
	case TokenEOF:
		return "end of input"
	case TokenIdent, TokenGlobal, TokenInt, TokenFloat:
		return fmt.Sprintf("%s %q", t.Type, t.Literal)
	case TokenString, TokenRawString:
		return "string " + t.Literal
	}
	return fmt.Sprintf("%q", t.Literal)
}

// Reserved words mapped to their token types. Keywords are case-sensitive and
// match whole identifiers only.
var reservedWords = map[string]TokenType{
	"True":  TokenTrue,
	"False": TokenFalse,
	"Null":  TokenNull,
	"if":    TokenIf,
	"else":  TokenElse,
	"exit":  TokenExit,
}

// Keywords returns the reserved words of the language.
func Keywords() []string {
	return []string{"True", "False", "Null", "if", "else", "exit"}
}
