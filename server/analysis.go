package server

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/htn/compiler"
	"github.com/chazu/htn/vm"
)

// document is an open .htn file with its token stream. Symbol lookups run on
// tokens rather than the AST so they keep working while the file does not
// parse.
type document struct {
	text   string
	tokens []compiler.Token
	diags  []compiler.Diagnostic
}

func analyze(text string) *document {
	tokens, _ := compiler.Lex(text)
	return &document{
		text:   text,
		tokens: tokens,
		diags:  compiler.Check(text),
	}
}

// symbolKind classifies an identifier occurrence.
type symbolKind int

const (
	symbolNone symbolKind = iota
	symbolVariable
	symbolProperty
	symbolObjectKey
	symbolEndState
	symbolGlobal
)

// classify reports what the token at index i denotes.
func (d *document) classify(i int) symbolKind {
	tok := d.tokens[i]
	switch tok.Type {
	case compiler.TokenGlobal:
		return symbolGlobal
	case compiler.TokenIdent:
	default:
		return symbolNone
	}
	if i > 0 {
		switch d.tokens[i-1].Type {
		case compiler.TokenDot:
			return symbolProperty
		case compiler.TokenExit:
			return symbolEndState
		}
	}
	if i+1 < len(d.tokens) && d.tokens[i+1].Type == compiler.TokenColon {
		return symbolObjectKey
	}
	return symbolVariable
}

// isAssignment reports whether the variable at index i is the target of an
// assignment statement.
func (d *document) isAssignment(i int) bool {
	if i+1 >= len(d.tokens) {
		return false
	}
	next := d.tokens[i+1]
	if next.Type != compiler.TokenEq || next.Literal != "=" {
		return false
	}
	if i == 0 {
		return true
	}
	switch d.tokens[i-1].Type {
	case compiler.TokenSemicolon, compiler.TokenLBrace, compiler.TokenRBrace:
		return true
	}
	return false
}

// tokenAt returns the index of the token covering pos, or -1.
func (d *document) tokenAt(pos protocol.Position) int {
	line := int(pos.Line) + 1
	col := int(pos.Character) + 1
	for i, tok := range d.tokens {
		if tok.Type == compiler.TokenEOF {
			break
		}
		if tok.Pos.Line != line {
			if tok.Pos.Line > line {
				break
			}
			continue
		}
		// A cursor just past the token still selects it.
		if col >= tok.Pos.Column && (col <= tok.End.Column || tok.End.Line > line) {
			return i
		}
	}
	return -1
}

// variables returns the distinct blackboard names the document mentions.
func (d *document) variables() []string {
	seen := make(map[string]bool)
	var names []string
	for i, tok := range d.tokens {
		if d.classify(i) == symbolVariable && !seen[tok.Literal] {
			seen[tok.Literal] = true
			names = append(names, tok.Literal)
		}
	}
	sort.Strings(names)
	return names
}

// occurrences returns the indices of every variable token named name. With
// assignsOnly set only assignment targets are returned.
func (d *document) occurrences(name string, assignsOnly bool) []int {
	var out []int
	for i, tok := range d.tokens {
		if tok.Literal != name || d.classify(i) != symbolVariable {
			continue
		}
		if assignsOnly && !d.isAssignment(i) {
			continue
		}
		out = append(out, i)
	}
	return out
}

func (d *document) locations(uri protocol.DocumentUri, indices []int) []protocol.Location {
	var out []protocol.Location
	for _, i := range indices {
		tok := d.tokens[i]
		out = append(out, protocol.Location{
			URI:   uri,
			Range: protocol.Range{Start: toPosition(tok.Pos), End: toPosition(tok.End)},
		})
	}
	return out
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

func toPosition(p compiler.Position) protocol.Position {
	line, col := p.Line-1, p.Column-1
	if line < 0 {
		line = 0
	}
	if col < 0 {
		col = 0
	}
	return protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col)}
}

func toDiagnostics(diags []compiler.Diagnostic) []protocol.Diagnostic {
	out := make([]protocol.Diagnostic, 0, len(diags))
	for _, d := range diags {
		severity := protocol.DiagnosticSeverityError
		if d.Severity == compiler.SeverityWarning {
			severity = protocol.DiagnosticSeverityWarning
		}
		source := lspName
		end := d.End
		if end.Offset <= d.Pos.Offset {
			// Errors at end of input have no width; show one column.
			end = d.Pos
			end.Column++
		}
		out = append(out, protocol.Diagnostic{
			Range:    protocol.Range{Start: toPosition(d.Pos), End: toPosition(end)},
			Severity: &severity,
			Source:   &source,
			Message:  d.Msg,
		})
	}
	return out
}

// ---------------------------------------------------------------------------
// Completion
// ---------------------------------------------------------------------------

var endStateNames = []string{"Success", "Failure", "Running"}

func (s *LspServer) complete(d *document, pos protocol.Position) []protocol.CompletionItem {
	prefix := extractPrefix(d.text, pos)
	var items []protocol.CompletionItem
	add := func(label, detail string, kind protocol.CompletionItemKind) {
		if !strings.HasPrefix(strings.ToLower(label), strings.ToLower(prefix)) {
			return
		}
		labelCopy, detailCopy, kindCopy := label, detail, kind
		items = append(items, protocol.CompletionItem{
			Label:      labelCopy,
			Kind:       &kindCopy,
			Detail:     &detailCopy,
			InsertText: &labelCopy,
		})
	}

	if strings.HasPrefix(prefix, "@") {
		for _, name := range sortedKeys(s.globals) {
			add("@"+name, "global", protocol.CompletionItemKindConstant)
		}
		return items
	}

	prev := d.tokenBefore(pos, prefix)
	switch prev {
	case compiler.TokenDot:
		// Properties belong to host objects and are unknown here.
		return nil
	case compiler.TokenExit:
		for _, name := range endStateNames {
			add(name, "end state", protocol.CompletionItemKindEnumMember)
		}
		return items
	}

	for _, kw := range compiler.Keywords() {
		add(kw, "keyword", protocol.CompletionItemKindKeyword)
	}
	seen := make(map[string]bool)
	for _, name := range d.variables() {
		if name == prefix {
			continue
		}
		seen[name] = true
		add(name, "blackboard", protocol.CompletionItemKindVariable)
	}
	for _, name := range sortedKeys(s.bindings) {
		if !seen[name] {
			add(name, "binding", protocol.CompletionItemKindVariable)
		}
	}

	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}

// tokenBefore returns the type of the last token that ends before the word
// being completed, or TokenEOF at the start of the document.
func (d *document) tokenBefore(pos protocol.Position, prefix string) compiler.TokenType {
	line := int(pos.Line) + 1
	col := int(pos.Character) + 1 - len([]rune(prefix))
	prev := compiler.TokenEOF
	for _, tok := range d.tokens {
		if tok.Type == compiler.TokenEOF {
			break
		}
		if tok.End.Line > line || (tok.End.Line == line && tok.End.Column > col) {
			break
		}
		prev = tok.Type
	}
	return prev
}

func sortedKeys(m map[string]vm.Object) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ---------------------------------------------------------------------------
// Hover
// ---------------------------------------------------------------------------

var keywordDocs = map[string]string{
	"if":    "`if cond { ... } else { ... }`\n\nRuns the first block when `cond` is truthy. `else if` chains are allowed.",
	"else":  "`else { ... }` or `else if cond { ... }`",
	"exit":  "`exit State;`\n\nEnds the tick with `Success`, `Failure` or `Running` (`S`, `F`, `R`; `C` also means `Running`).",
	"True":  "Boolean literal.",
	"False": "Boolean literal.",
	"Null":  "The null value. Absent blackboard entries and missing properties read as null.",
}

var endStateDocs = map[string]string{
	"Success": "The tick finished and the behaviour succeeded.",
	"S":       "Shorthand for `Success`.",
	"Failure": "The tick finished and the behaviour failed.",
	"F":       "Shorthand for `Failure`.",
	"Running": "The behaviour is still in progress; tick it again.",
	"R":       "Shorthand for `Running`.",
	"C":       "Shorthand for `Running` (continue).",
}

var operatorDocs = map[compiler.TokenType]string{
	compiler.TokenNullCoalesce: "`lhs ?? rhs`\n\nYields `lhs` unless it is null; `rhs` is only evaluated when needed.",
	compiler.TokenDollar:       "`$expr`\n\nLogs the value of `expr` and yields it unchanged.",
	compiler.TokenAnd:          "`&&` (or `&`): logical and. Both sides are always evaluated.",
	compiler.TokenOr:           "`||` (or `|`): logical or. Both sides are always evaluated.",
}

func (s *LspServer) hover(d *document, pos protocol.Position) *protocol.Hover {
	i := d.tokenAt(pos)
	if i < 0 {
		return nil
	}
	tok := d.tokens[i]

	var b strings.Builder
	switch {
	case tok.Type.IsKeyword():
		b.WriteString(keywordDocs[tok.Literal])
	case operatorDocs[tok.Type] != "":
		b.WriteString(operatorDocs[tok.Type])
	default:
		switch d.classify(i) {
		case symbolEndState:
			doc, ok := endStateDocs[tok.Literal]
			if !ok {
				return nil
			}
			fmt.Fprintf(&b, "**%s** end state\n\n%s", tok.Literal, doc)
		case symbolGlobal:
			fmt.Fprintf(&b, "**@%s** global", tok.Str)
			if v, ok := s.globals[tok.Str]; ok {
				fmt.Fprintf(&b, "\n\nValue: `%s`", describe(v))
			}
		case symbolVariable:
			s.hoverVariable(&b, d, tok.Literal)
		default:
			return nil
		}
	}
	if b.Len() == 0 {
		return nil
	}

	r := protocol.Range{Start: toPosition(tok.Pos), End: toPosition(tok.End)}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
		Range: &r,
	}
}

func (s *LspServer) hoverVariable(b *strings.Builder, d *document, name string) {
	fmt.Fprintf(b, "**%s** blackboard variable", name)
	if v, ok := s.bindings[name]; ok {
		fmt.Fprintf(b, "\n\nBound for every tick: `%s`", describe(v))
	}
	var lines []string
	for _, i := range d.occurrences(name, true) {
		lines = append(lines, fmt.Sprint(d.tokens[i].Pos.Line))
	}
	if len(lines) == 0 {
		b.WriteString("\n\nNot assigned in this file.")
		return
	}
	fmt.Fprintf(b, "\n\nAssigned on line %s.", strings.Join(lines, ", "))
}

func describe(v vm.Object) string {
	return vm.NewNativeHost().Describe(v)
}

// ---------------------------------------------------------------------------
// Navigation and formatting
// ---------------------------------------------------------------------------

func (s *LspServer) definition(d *document, uri protocol.DocumentUri, pos protocol.Position) []protocol.Location {
	i := d.tokenAt(pos)
	if i < 0 || d.classify(i) != symbolVariable {
		return nil
	}
	return d.locations(uri, d.occurrences(d.tokens[i].Literal, true))
}

func (s *LspServer) references(d *document, uri protocol.DocumentUri, pos protocol.Position) []protocol.Location {
	i := d.tokenAt(pos)
	if i < 0 || d.classify(i) != symbolVariable {
		return nil
	}
	return d.locations(uri, d.occurrences(d.tokens[i].Literal, false))
}

// formatEdits returns a single edit replacing the whole document with its
// canonical form, or nothing when the text is already canonical or does not
// parse.
func formatEdits(text string) []protocol.TextEdit {
	formatted, err := compiler.Format(text)
	if err != nil || formatted == text {
		return nil
	}
	lines := strings.Split(text, "\n")
	last := lines[len(lines)-1]
	return []protocol.TextEdit{{
		Range: protocol.Range{
			Start: protocol.Position{Line: 0, Character: 0},
			End: protocol.Position{
				Line:      protocol.UInteger(len(lines) - 1),
				Character: protocol.UInteger(len([]rune(last))),
			},
		},
		NewText: formatted,
	}}
}

// ---------------------------------------------------------------------------
// Text extraction helpers
// ---------------------------------------------------------------------------

// extractPrefix returns the word fragment before the cursor for completion.
// A leading '@' is kept so globals can be completed.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := []rune(lines[pos.Line])
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isWordRune(line[start-1]) {
		start--
	}
	if start > 0 && line[start-1] == '@' {
		start--
	}

	if start == col {
		return ""
	}
	return string(line[start:col])
}

func isWordRune(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}
