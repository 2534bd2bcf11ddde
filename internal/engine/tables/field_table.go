package tables

import (
	"fmt"
	"strings"

	"apexintel/internal/core/errors"
	"apexintel/internal/engine/symbols"
)

// FieldTable is the per-type view of declared and inherited fields and
// properties. Unlike methods, fields do not overload: a second field with
// the same name is a duplicate.
type FieldTable struct {
	typeName string
	fields   map[string]*symbols.Symbol
	locals   map[string]*symbols.Symbol
	resolved bool
}

func NewFieldTable(typeName string) *FieldTable {
	return &FieldTable{
		typeName: typeName,
		fields:   make(map[string]*symbols.Symbol),
		locals:   make(map[string]*symbols.Symbol),
	}
}

func (t *FieldTable) TypeName() string { return t.typeName }

// AddNoDuplicatesAllowed registers a field. Name comparison is
// case-insensitive, matching the language.
func (t *FieldTable) AddNoDuplicatesAllowed(f *symbols.Symbol) error {
	key := strings.ToLower(f.Name)
	if existing, ok := t.fields[key]; ok {
		return errors.New(errors.CodeDuplicateSymbol,
			fmt.Sprintf("field %s already declared on %s at line %d", existing.Name, t.typeName, existing.Loc.StartLine))
	}
	t.fields[key] = f
	return nil
}

// AddLocal registers a local-scope synonym that shadows declared fields
// under locals-allowed modes.
func (t *FieldTable) AddLocal(sym *symbols.Symbol) {
	t.locals[strings.ToLower(sym.Name)] = sym
}

// Get finds the field visible under the given lookup mode.
func (t *FieldTable) Get(name string, mode LookupMode) (*symbols.Symbol, error) {
	if mode.AllowsLocals() {
		if local, ok := t.locals[strings.ToLower(name)]; ok {
			return local, nil
		}
	}
	f, ok := t.fields[strings.ToLower(name)]
	if !ok || !applicable(f.Modifiers.Static, mode) {
		return nil, errors.New(errors.CodeNotFound,
			fmt.Sprintf("no field %s on %s in mode %s", name, t.typeName, mode))
	}
	return f, nil
}

// ResolveWith merges inherited fields. Declared fields shadow inherited
// ones of the same name. Idempotent.
func (t *FieldTable) ResolveWith(parents ...*FieldTable) {
	if t.resolved {
		return
	}
	for _, parent := range parents {
		if parent == nil {
			continue
		}
		for key, inherited := range parent.fields {
			if _, shadowed := t.fields[key]; shadowed {
				continue
			}
			t.fields[key] = inherited
		}
	}
	t.resolved = true
}

func (t *FieldTable) IsResolved() bool { return t.resolved }

// All returns every visible field. Only trustworthy once IsResolved().
func (t *FieldTable) All() []*symbols.Symbol {
	out := make([]*symbols.Symbol, 0, len(t.fields))
	for _, f := range t.fields {
		out = append(out, f)
	}
	return out
}
