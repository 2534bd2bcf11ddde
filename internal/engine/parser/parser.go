package parser

import (
	"regexp"
	"strings"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"

	"apexintel/internal/shared/observability"
)

// Apex shares its declaration syntax with Java, so the Java grammar serves as
// the parse capability. Apex-only modifier words (virtual, global, sharing
// clauses) are blanked out before the parse so declarations using them still
// produce regular declaration nodes; the symbol layer recovers the modifier
// flags from the original text. Remaining Apex-only surface (single-quoted
// strings, SOQL blocks) comes back as ERROR nodes; those regions are reported
// as syntax diagnostics and skipped, the rest of the tree is still extracted.

// Diagnostic is a syntax problem reported by the parser for one file.
type Diagnostic struct {
	Message string
	Line    int
	Column  int
}

// Tree wraps a parsed syntax tree together with the source it was parsed
// from. Callers must Close it when done.
type Tree struct {
	inner  *sitter.Tree
	Source []byte
}

func (t *Tree) Root() *sitter.Node {
	if t == nil || t.inner == nil {
		return nil
	}
	return t.inner.RootNode()
}

func (t *Tree) Close() {
	if t != nil && t.inner != nil {
		t.inner.Close()
		t.inner = nil
	}
}

// Engine is the parse capability: Parse(text) -> tree + syntax errors.
type Engine struct {
	pool *ParserPool
}

func NewEngine() *Engine {
	lang := sitter.NewLanguage(tree_sitter_java.Language())
	return &Engine{pool: NewParserPool(lang)}
}

// ActiveParsers reports how many pooled parsers are leased out right now.
func (e *Engine) ActiveParsers() int {
	return e.pool.Stats()
}

// Parse parses src and collects syntax diagnostics. A malformed input yields
// a partial tree plus diagnostics, never a nil tree with a nil diagnostic
// list at the same time.
func (e *Engine) Parse(src []byte) (*Tree, []Diagnostic) {
	start := time.Now()
	defer func() {
		observability.ParsingDuration.Observe(time.Since(start).Seconds())
	}()

	sp := e.pool.Get()
	defer e.pool.Put(sp)

	parsed := sp.Parse(normalizeApexModifiers(src), nil)
	if parsed == nil {
		return nil, []Diagnostic{{Message: "parse produced no tree", Line: 1, Column: 1}}
	}

	tree := &Tree{inner: parsed, Source: src}
	var diags []Diagnostic
	if root := tree.Root(); root != nil && root.HasError() {
		diags = collectSyntaxErrors(root, src, nil)
	}
	return tree, diags
}

// apexOnlyModifiers matches the modifier words Apex adds on top of Java's
// set. All of them are reserved in Apex, so a whole-word match is never an
// identifier.
var apexOnlyModifiers = regexp.MustCompile(`(?i)\b(?:virtual|override|global|testmethod|webservice)\b|\b(?:with|without|inherited)[ \t\r\n]+sharing\b`)

// normalizeApexModifiers blanks Apex-only modifier words so the Java grammar
// sees plain declarations. Every replaced byte keeps its position (newlines
// survive), so node offsets index the original source unchanged.
func normalizeApexModifiers(src []byte) []byte {
	matches := apexOnlyModifiers.FindAllIndex(src, -1)
	if len(matches) == 0 {
		return src
	}
	out := append([]byte(nil), src...)
	for _, m := range matches {
		for i := m[0]; i < m[1]; i++ {
			if out[i] != '\n' && out[i] != '\r' {
				out[i] = ' '
			}
		}
	}
	return out
}

func collectSyntaxErrors(node *sitter.Node, src []byte, acc []Diagnostic) []Diagnostic {
	if node == nil {
		return acc
	}
	if node.IsError() {
		snippet := string(src[node.StartByte():node.EndByte()])
		if len(snippet) > 24 {
			snippet = snippet[:24]
		}
		acc = append(acc, Diagnostic{
			Message: "unexpected input: " + strings.TrimSpace(snippet),
			Line:    int(node.StartPosition().Row) + 1,
			Column:  int(node.StartPosition().Column) + 1,
		})
		return acc
	}
	if node.IsMissing() {
		acc = append(acc, Diagnostic{
			Message: "missing " + node.Kind(),
			Line:    int(node.StartPosition().Row) + 1,
			Column:  int(node.StartPosition().Column) + 1,
		})
		return acc
	}
	if !node.HasError() {
		return acc
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		acc = collectSyntaxErrors(node.Child(i), src, acc)
	}
	return acc
}

// IsApexPath reports whether the path looks like an Apex compilation unit.
func IsApexPath(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".cls") || strings.HasSuffix(lower, ".trigger") || strings.HasSuffix(lower, ".apex")
}
