package symbols

import (
	"strings"
	"time"

	"apexintel/internal/engine/parser"
)

type SymbolKind int

const (
	KindClass SymbolKind = iota
	KindInterface
	KindEnum
	KindTrigger
	KindMethod
	KindConstructor
	KindField
	KindProperty
	KindParameter
	KindLocalVariable
	KindEnumValue
)

func (k SymbolKind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindInterface:
		return "interface"
	case KindEnum:
		return "enum"
	case KindTrigger:
		return "trigger"
	case KindMethod:
		return "method"
	case KindConstructor:
		return "constructor"
	case KindField:
		return "field"
	case KindProperty:
		return "property"
	case KindParameter:
		return "parameter"
	case KindLocalVariable:
		return "local"
	case KindEnumValue:
		return "enumvalue"
	}
	return "unknown"
}

// IsType reports whether the symbol kind declares a type.
func (k SymbolKind) IsType() bool {
	switch k {
	case KindClass, KindInterface, KindEnum, KindTrigger:
		return true
	default:
		return false
	}
}

type Visibility int

const (
	VisibilityPrivate Visibility = iota
	VisibilityProtected
	VisibilityPublic
	VisibilityGlobal
)

func (v Visibility) String() string {
	switch v {
	case VisibilityPrivate:
		return "private"
	case VisibilityProtected:
		return "protected"
	case VisibilityPublic:
		return "public"
	case VisibilityGlobal:
		return "global"
	}
	return "private"
}

type Modifiers struct {
	Visibility Visibility `json:"visibility"`
	Static     bool       `json:"static,omitempty"`
	Abstract   bool       `json:"abstract,omitempty"`
	Virtual    bool       `json:"virtual,omitempty"`
	Override   bool       `json:"override,omitempty"`
	Final      bool       `json:"final,omitempty"`
}

// Location is a source span. Lines and columns are 1-based.
type Location struct {
	File        string `json:"file"`
	StartLine   int    `json:"start_line"`
	StartColumn int    `json:"start_column"`
	EndLine     int    `json:"end_line"`
	EndColumn   int    `json:"end_column"`
}

// Symbol is one named language construct. Parent is a back-reference, not
// ownership; it is dropped on serialization and restored by rehydrate.
type Symbol struct {
	Kind      SymbolKind `json:"kind"`
	Name      string     `json:"name"`
	Modifiers Modifiers  `json:"modifiers"`
	Loc       Location   `json:"loc"`
	// Type is the declared type name: return type for methods, value type
	// for fields, parameters and locals. Empty for type declarations.
	Type string `json:"type,omitempty"`
	// SuperType and Interfaces are set on type declarations only.
	// Interfaces preserves declaration order.
	SuperType  string    `json:"super_type,omitempty"`
	Interfaces []string  `json:"interfaces,omitempty"`
	Parent     *Symbol   `json:"-"`
	Children   []*Symbol `json:"children,omitempty"`
}

// QualifiedName joins the names from the outermost declaration down.
func (s *Symbol) QualifiedName() string {
	if s == nil {
		return ""
	}
	parts := []string{s.Name}
	for p := s.Parent; p != nil; p = p.Parent {
		parts = append([]string{p.Name}, parts...)
	}
	return strings.Join(parts, ".")
}

// ParameterTypes returns the declared parameter type names in order. Only
// meaningful for methods and constructors.
func (s *Symbol) ParameterTypes() []string {
	var out []string
	for _, c := range s.Children {
		if c.Kind == KindParameter {
			out = append(out, c.Type)
		}
	}
	return out
}

// Signature is the overload identity: lowercase name plus lowercase
// parameter types. Apex name resolution is case-insensitive.
func (s *Symbol) Signature() string {
	var sb strings.Builder
	sb.WriteString(strings.ToLower(s.Name))
	sb.WriteByte('(')
	for i, pt := range s.ParameterTypes() {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strings.ToLower(pt))
	}
	sb.WriteByte(')')
	return sb.String()
}

type ReferenceContext int

const (
	RefMethodCall ReferenceContext = iota
	RefTypeDeclaration
	RefFieldAccess
	RefConstructorCall
	RefVariableUsage
	RefParameterType
)

func (c ReferenceContext) String() string {
	switch c {
	case RefMethodCall:
		return "method_call"
	case RefTypeDeclaration:
		return "type_declaration"
	case RefFieldAccess:
		return "field_access"
	case RefConstructorCall:
		return "constructor_call"
	case RefVariableUsage:
		return "variable_usage"
	case RefParameterType:
		return "parameter_type"
	}
	return "unknown"
}

// TypeReference is one use of a name at a location. It is created unresolved
// at parse time and flipped to resolved by the resolution engine; it is never
// re-resolved to a different target without the whole table being replaced.
type TypeReference struct {
	Name            string           `json:"name"`
	Qualifier       string           `json:"qualifier,omitempty"`
	Context         ReferenceContext `json:"context"`
	EnclosingMember string           `json:"enclosing_member,omitempty"`
	Loc             Location         `json:"loc"`
	Resolved        bool             `json:"resolved"`
	Target          string           `json:"target,omitempty"`
}

// Resolve marks the reference resolved to the symbol with the given
// qualified name. Resolving twice to a different target is a programming
// error; the second target wins only after invalidation (a fresh table).
func (r *TypeReference) Resolve(target string) {
	r.Resolved = true
	r.Target = target
}

// SymbolTable is the parse product for exactly one source-text version of
// one compilation unit. Partial updates are forbidden: a new version
// produces a new table.
type SymbolTable struct {
	FileID      string              `json:"file_id"`
	Version     int                 `json:"version"`
	Roots       []*Symbol           `json:"roots,omitempty"`
	References  []*TypeReference    `json:"references,omitempty"`
	Diagnostics []parser.Diagnostic `json:"diagnostics,omitempty"`
	// LocalNames are names declared in local scope (parameters, locals),
	// lowercased, used by locals-allowed lookup modes.
	LocalNames []string  `json:"local_names,omitempty"`
	BuiltAt    time.Time `json:"built_at"`
}

// Rehydrate restores Parent back-references after deserialization.
func (t *SymbolTable) Rehydrate() {
	for _, root := range t.Roots {
		rehydrate(root, nil)
	}
}

func rehydrate(s *Symbol, parent *Symbol) {
	s.Parent = parent
	for _, c := range s.Children {
		rehydrate(c, s)
	}
}

// Walk visits every symbol in the table depth-first.
func (t *SymbolTable) Walk(fn func(*Symbol)) {
	for _, root := range t.Roots {
		walkSymbol(root, fn)
	}
}

func walkSymbol(s *Symbol, fn func(*Symbol)) {
	fn(s)
	for _, c := range s.Children {
		walkSymbol(c, fn)
	}
}

// UnresolvedCount reports how many references are still unresolved.
func (t *SymbolTable) UnresolvedCount() int {
	n := 0
	for _, r := range t.References {
		if !r.Resolved {
			n++
		}
	}
	return n
}

// StructurallyEqual compares two tables ignoring build timestamps. Used by
// the re-parse idempotence property.
func StructurallyEqual(a, b *SymbolTable) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.FileID != b.FileID || a.Version != b.Version {
		return false
	}
	if len(a.Roots) != len(b.Roots) || len(a.References) != len(b.References) {
		return false
	}
	if len(a.Diagnostics) != len(b.Diagnostics) || len(a.LocalNames) != len(b.LocalNames) {
		return false
	}
	for i := range a.Roots {
		if !symbolEqual(a.Roots[i], b.Roots[i]) {
			return false
		}
	}
	for i := range a.References {
		if *a.References[i] != *b.References[i] {
			return false
		}
	}
	for i := range a.Diagnostics {
		if a.Diagnostics[i] != b.Diagnostics[i] {
			return false
		}
	}
	for i := range a.LocalNames {
		if a.LocalNames[i] != b.LocalNames[i] {
			return false
		}
	}
	return true
}

func symbolEqual(a, b *Symbol) bool {
	if a.Kind != b.Kind || a.Name != b.Name || a.Modifiers != b.Modifiers {
		return false
	}
	if a.Loc != b.Loc || a.Type != b.Type || a.SuperType != b.SuperType {
		return false
	}
	if len(a.Interfaces) != len(b.Interfaces) {
		return false
	}
	for i := range a.Interfaces {
		if a.Interfaces[i] != b.Interfaces[i] {
			return false
		}
	}
	if len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !symbolEqual(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}
