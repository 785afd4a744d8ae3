package compiler

import (
	"math"
	"strconv"
	"strings"

	"github.com/chazu/htn/vm"
)

// ---------------------------------------------------------------------------
// Formatter: canonical source printing
// ---------------------------------------------------------------------------

// Format re-prints src canonically: one statement per line, two-space
// indentation, minimal parentheses and double-quoted strings. Comments and
// single blank lines between statements are kept. Source that does not lex
// cleanly is rejected rather than silently losing text.
func Format(src string) (string, error) {
	tokens, lexErrs, comments := lexAll(src)
	if len(lexErrs) > 0 {
		return "", lexErrs[0]
	}
	stmts, err := NewParser(tokens).ParseProgram()
	if err != nil {
		return "", err
	}

	f := &formatter{comments: comments}
	f.stmts(stmts, 0, math.MaxInt)
	f.commentsBefore(math.MaxInt, 0)
	return f.sb.String(), nil
}

// FormatStmts prints statements without any comments.
func FormatStmts(stmts []Stmt) string {
	f := &formatter{}
	f.stmts(stmts, 0, math.MaxInt)
	return f.sb.String()
}

// FormatExpr prints an expression in source form.
func FormatExpr(e Expr) string {
	return formatExpr(e, false)
}

type formatter struct {
	sb       strings.Builder
	comments []Comment
	next     int // index of the next comment to emit
	lastLine int // source line of the last thing written, 0 at a block start
}

// line writes one output line at depth. srcLine is the source line the text
// came from; a gap of more than one line since the last write becomes a
// single blank line.
func (f *formatter) line(depth int, srcLine int, text string) {
	if f.lastLine > 0 && srcLine > f.lastLine+1 {
		f.sb.WriteByte('\n')
	}
	f.sb.WriteString(strings.Repeat("  ", depth))
	f.sb.WriteString(text)
	f.sb.WriteByte('\n')
	if srcLine > f.lastLine {
		f.lastLine = srcLine
	}
}

// commentsBefore emits, as whole lines, every pending comment that starts
// before offset.
func (f *formatter) commentsBefore(offset int, depth int) {
	for f.next < len(f.comments) && f.comments[f.next].Pos.Offset < offset {
		c := f.comments[f.next]
		f.line(depth, c.Pos.Line, c.Text)
		f.next++
	}
}

// trailing returns the pending comment on srcLine that starts before limit,
// if any, formatted for the end of a line.
func (f *formatter) trailing(srcLine, limit int) string {
	if f.next < len(f.comments) && f.comments[f.next].Pos.Line == srcLine &&
		f.comments[f.next].Pos.Offset < limit {
		c := f.comments[f.next]
		f.next++
		return " " + c.Text
	}
	return ""
}

// stmts prints a statement list. limit is the offset where the enclosing
// block ends; a trailing comment never moves past the next statement.
func (f *formatter) stmts(stmts []Stmt, depth int, limit int) {
	for i, s := range stmts {
		next := limit
		if i+1 < len(stmts) {
			next = stmts[i+1].Span().Start.Offset
		}
		f.stmt(s, depth, next)
	}
}

func (f *formatter) stmt(s Stmt, depth int, limit int) {
	span := s.Span()
	f.commentsBefore(span.Start.Offset, depth)

	var text string
	switch s := s.(type) {
	case *Noop:
		return
	case *If:
		f.ifStmt(s, depth, "", limit)
		return
	case *Assign:
		text = s.Name + " = " + formatExpr(s.Value, false) + ";"
	case *ExprStmt:
		text = formatExpr(s.Value, false) + ";"
	case *Exit:
		text = "exit " + s.State.String() + ";"
	}

	// Comments inside a multi-line statement move above it.
	for f.next < len(f.comments) && f.comments[f.next].Pos.Offset < span.End.Offset &&
		f.comments[f.next].Pos.Line < span.End.Line {
		c := f.comments[f.next]
		f.line(depth, c.Pos.Line, c.Text)
		f.next++
	}
	f.line(depth, span.Start.Line, text+f.trailing(span.End.Line, limit))
	f.lastLine = span.End.Line
}

// ifStmt prints an if statement. prefix is "} else " for a chained else-if.
func (f *formatter) ifStmt(s *If, depth int, prefix string, limit int) {
	header := prefix + "if " + formatExpr(s.Cond, false) + " {"
	f.commentsBefore(s.Then.SpanVal.Start.Offset, depth)
	if prefix != "" {
		f.lastLine = 0
	}
	f.line(depth, s.SpanVal.Start.Line, header+f.trailing(s.Then.SpanVal.Start.Line, bodyStart(s.Then)))
	f.block(s.Then, depth)

	closing := s.Then.SpanVal.End
	f.lastLine = 0
	switch {
	case s.Else == nil:
		f.line(depth, closing.Line, "}"+f.trailing(closing.Line, limit))
	case s.Else.Chained:
		f.ifStmt(s.Else.Stmts[0].(*If), depth, "} else ", limit)
		return
	default:
		f.line(depth, closing.Line, "} else {"+f.trailing(s.Else.SpanVal.Start.Line, bodyStart(s.Else)))
		f.block(s.Else, depth)
		closing = s.Else.SpanVal.End
		f.lastLine = 0
		f.line(depth, closing.Line, "}"+f.trailing(closing.Line, limit))
	}
	f.lastLine = closing.Line
}

// block prints the statements of b and the comments before its closing brace.
func (f *formatter) block(b *Block, depth int) {
	f.lastLine = 0
	f.stmts(b.Stmts, depth+1, b.SpanVal.End.Offset-1)
	f.commentsBefore(b.SpanVal.End.Offset-1, depth+1)
}

// bodyStart is the offset of the first statement in b, or of its closing
// brace when b is empty.
func bodyStart(b *Block) int {
	if len(b.Stmts) > 0 {
		return b.Stmts[0].Span().Start.Offset
	}
	return b.SpanVal.End.Offset - 1
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

const (
	precUnary    = 6
	precCoalesce = 7
	precPostfix  = 8
)

func precedence(e Expr) int {
	switch e := e.(type) {
	case *Binary:
		return e.Op.precedence()
	case *Unary:
		return precUnary
	case *NullCoalesce:
		return precCoalesce
	}
	return precPostfix
}

func paren(s string) string {
	return "(" + s + ")"
}

// formatExpr prints e. coalesceRHS is set while printing the right side of
// ??, where a further ?? would otherwise re-associate.
func formatExpr(e Expr, coalesceRHS bool) string {
	switch e := e.(type) {
	case *Literal:
		return formatValue(e.Value)

	case *Variable:
		return e.Name

	case *Global:
		return "@" + e.Name

	case *Access:
		return postfixTarget(e.Target) + "." + e.Field

	case *Index:
		return postfixTarget(e.Target) + "[" + formatExpr(e.Key, false) + "]"

	case *Call:
		args := make([]string, len(e.Args))
		for i, a := range e.Args {
			args[i] = formatExpr(a, false)
		}
		return postfixTarget(e.Target) + "(" + strings.Join(args, ", ") + ")"

	case *Binary:
		p := e.Op.precedence()
		left := formatExpr(e.Left, false)
		if precedence(e.Left) <= p {
			left = paren(left)
		}
		right := formatExpr(e.Right, false)
		if precedence(e.Right) < p {
			right = paren(right)
		}
		return left + " " + e.Op.Symbol() + " " + right

	case *Unary:
		operand := formatExpr(e.Operand, coalesceRHS)
		switch e.Operand.(type) {
		case *Binary:
			operand = paren(operand)
		case *NullCoalesce:
			if coalesceRHS {
				operand = paren(operand)
			}
		}
		return e.Op.Symbol() + operand

	case *NullCoalesce:
		left := formatExpr(e.Left, false)
		if precedence(e.Left) < precCoalesce {
			left = paren(left)
		}
		var right string
		switch e.Right.(type) {
		case *Binary, *NullCoalesce:
			right = paren(formatExpr(e.Right, false))
		default:
			right = formatExpr(e.Right, true)
		}
		return left + " ?? " + right

	case *Object:
		fields := make([]string, len(e.Fields))
		for i, fd := range e.Fields {
			fields[i] = quoteString(fd.Key) + ": " + formatExpr(fd.Value, false)
		}
		return "{" + strings.Join(fields, ", ") + "}"
	}
	return e.String()
}

// postfixTarget prints the target of a call, index or access.
func postfixTarget(e Expr) string {
	s := formatExpr(e, false)
	if precedence(e) < precPostfix {
		return paren(s)
	}
	return s
}

// formatValue prints a literal so that it lexes back to the same value.
func formatValue(v vm.Value) string {
	switch v.Kind {
	case vm.KindNull:
		return "Null"
	case vm.KindBool:
		if v.Bool {
			return "True"
		}
		return "False"
	case vm.KindInt:
		return strconv.FormatInt(int64(v.Int), 10)
	case vm.KindFloat:
		s := strconv.FormatFloat(float64(v.Float), 'f', -1, 32)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	case vm.KindString:
		return quoteString(v.Str)
	case vm.KindList:
		items := make([]string, len(v.List))
		for i, item := range v.List {
			items[i] = formatValue(item)
		}
		return "[" + strings.Join(items, ", ") + "]"
	case vm.KindMap:
		fields := make([]string, len(v.Map))
		for i, fd := range v.Map {
			fields[i] = quoteString(fd.Key) + ": " + formatValue(fd.Value)
		}
		return "{" + strings.Join(fields, ", ") + "}"
	}
	return v.String()
}

// quoteString writes s as a double-quoted string using the language's
// escapes.
func quoteString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\b':
			sb.WriteString(`\b`)
		case '\f':
			sb.WriteString(`\f`)
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
