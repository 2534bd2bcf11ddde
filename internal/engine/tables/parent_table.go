package tables

import (
	"strings"

	"apexintel/internal/engine/symbols"
)

// TypeResolver is the lookup capability ParentTable needs to chase
// supertype and interface chains. The symbol graph satisfies it.
type TypeResolver interface {
	LookupType(name string) *symbols.Symbol
}

// ParentTable exposes a type's immediate supertype and its immediate and
// transitive interfaces. Supertype and interface resolution are gated
// independently: a type can be supertype-resolved while still
// interface-unresolved. IsResolved() requires both.
type ParentTable struct {
	typeName string

	superName string
	superSym  *symbols.Symbol

	interfaceNames []string // declaration order
	interfaceSyms  map[string]*symbols.Symbol
	transitive     map[string]bool // lowercased, set semantics

	superResolved  bool
	ifacesResolved bool
}

func NewParentTable(typeSym *symbols.Symbol) *ParentTable {
	t := &ParentTable{
		typeName:      typeSym.Name,
		superName:     typeSym.SuperType,
		interfaceSyms: make(map[string]*symbols.Symbol),
		transitive:    make(map[string]bool),
	}
	t.interfaceNames = append(t.interfaceNames, typeSym.Interfaces...)
	return t
}

func (t *ParentTable) TypeName() string { return t.typeName }

// ImmediateSuper returns the declared supertype name, empty when the type
// declares none.
func (t *ParentTable) ImmediateSuper() string { return t.superName }

// ImmediateInterfaces returns the declared interfaces in declaration order.
func (t *ParentTable) ImmediateInterfaces() []string {
	out := make([]string, len(t.interfaceNames))
	copy(out, t.interfaceNames)
	return out
}

// ResolveSuperTypes resolves the supertype chain against the resolver.
// Idempotent. The resolved flag stays false while any supertype in the
// chain cannot be found; that is data for consumers, not an error.
func (t *ParentTable) ResolveSuperTypes(r TypeResolver) {
	if t.superResolved {
		return
	}
	if t.superName == "" {
		t.superResolved = true
		return
	}
	seen := map[string]bool{strings.ToLower(t.typeName): true}
	name := t.superName
	first := true
	for name != "" {
		key := strings.ToLower(name)
		if seen[key] {
			break // inheritance cycle, refuse to loop
		}
		seen[key] = true
		sym := r.LookupType(name)
		if sym == nil {
			return
		}
		if first {
			t.superSym = sym
			first = false
		}
		name = sym.SuperType
	}
	t.superResolved = true
}

// ResolveInterfaces resolves declared interfaces, including those inherited
// through interface extension, into the transitive containment set.
// Idempotent. Stays unresolved while any named interface cannot be found.
func (t *ParentTable) ResolveInterfaces(r TypeResolver) {
	if t.ifacesResolved {
		return
	}
	complete := true
	seen := make(map[string]bool)
	var visit func(name string) bool
	visit = func(name string) bool {
		key := strings.ToLower(name)
		if seen[key] {
			return true
		}
		seen[key] = true
		t.transitive[key] = true
		sym := r.LookupType(name)
		if sym == nil {
			return false
		}
		t.interfaceSyms[key] = sym
		ok := true
		for _, parent := range sym.Interfaces {
			if !visit(parent) {
				ok = false
			}
		}
		return ok
	}
	for _, name := range t.interfaceNames {
		if !visit(name) {
			complete = false
		}
	}
	if complete {
		t.ifacesResolved = true
	}
}

// SuperTypeSymbol returns the resolved immediate supertype, nil while
// unresolved or undeclared.
func (t *ParentTable) SuperTypeSymbol() *symbols.Symbol { return t.superSym }

// Implements reports transitive interface containment with type
// equivalence by case-insensitive name.
func (t *ParentTable) Implements(name string) bool {
	return t.transitive[strings.ToLower(name)]
}

func (t *ParentTable) AreSuperTypesResolved() bool { return t.superResolved }
func (t *ParentTable) AreInterfacesResolved() bool { return t.ifacesResolved }

func (t *ParentTable) IsResolved() bool {
	return t.superResolved && t.ifacesResolved
}
