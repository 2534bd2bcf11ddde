package tables

import (
	"fmt"
	"strings"

	"apexintel/internal/core/errors"
	"apexintel/internal/engine/symbols"
)

// MethodTable is the per-type view of declared and inherited methods,
// supporting approximate overload resolution.
//
// Callers must check IsResolved() before trusting All() or overload
// resolution; until then lookups see declared members only. That is partial
// data by contract, not an error.
type MethodTable struct {
	typeName string
	methods  map[string][]*symbols.Symbol // lower name -> overloads
	locals   map[string]*symbols.Symbol   // lower name -> local synonym
	resolved bool
}

func NewMethodTable(typeName string) *MethodTable {
	return &MethodTable{
		typeName: typeName,
		methods:  make(map[string][]*symbols.Symbol),
		locals:   make(map[string]*symbols.Symbol),
	}
}

func (t *MethodTable) TypeName() string { return t.typeName }

// AddDuplicatesAllowed registers a method overload. Name collisions are the
// point of overloading; only an identical full signature is rejected.
func (t *MethodTable) AddDuplicatesAllowed(m *symbols.Symbol) error {
	key := strings.ToLower(m.Name)
	sig := m.Signature()
	for _, existing := range t.methods[key] {
		if existing.Signature() == sig {
			return errors.New(errors.CodeDuplicateSymbol,
				fmt.Sprintf("method %s already declared on %s", sig, t.typeName))
		}
	}
	t.methods[key] = append(t.methods[key], m)
	return nil
}

// AddLocal registers a local-scope synonym (parameter or local variable)
// that shadows declared members under locals-allowed modes.
func (t *MethodTable) AddLocal(sym *symbols.Symbol) {
	t.locals[strings.ToLower(sym.Name)] = sym
}

// GetApproximate selects the best-matching overload for the call site.
// Failures are typed: NOT_FOUND when no candidate survives filtering,
// AMBIGUOUS_OVERLOAD when specificity cannot break a tie.
func (t *MethodTable) GetApproximate(name string, argTypes []string, mode LookupMode) (*symbols.Symbol, error) {
	if mode.AllowsLocals() {
		if local, ok := t.locals[strings.ToLower(name)]; ok {
			return local, nil
		}
	}

	candidates := t.methods[strings.ToLower(name)]
	bestScore := -1
	var best []*symbols.Symbol
	for _, m := range candidates {
		if !applicable(m.Modifiers.Static, mode) {
			continue
		}
		score := signatureScore(argTypes, m.ParameterTypes())
		if score < 0 {
			continue
		}
		if bestScore < 0 || score < bestScore {
			bestScore = score
			best = []*symbols.Symbol{m}
		} else if score == bestScore {
			best = append(best, m)
		}
	}

	switch len(best) {
	case 0:
		return nil, errors.New(errors.CodeNotFound,
			fmt.Sprintf("no method %s(%s) on %s in mode %s", name, strings.Join(argTypes, ","), t.typeName, mode))
	case 1:
		return best[0], nil
	default:
		return nil, errors.New(errors.CodeAmbiguousOverload,
			fmt.Sprintf("%d overloads of %s on %s match equally", len(best), name, t.typeName))
	}
}

// ResolveWith merges inherited methods from parent tables. A subtype method
// with an identical signature overrides the inherited one. Idempotent.
func (t *MethodTable) ResolveWith(parents ...*MethodTable) {
	if t.resolved {
		return
	}
	for _, parent := range parents {
		if parent == nil {
			continue
		}
		for key, overloads := range parent.methods {
			for _, inherited := range overloads {
				if t.hasSignature(key, inherited.Signature()) {
					continue
				}
				t.methods[key] = append(t.methods[key], inherited)
			}
		}
	}
	t.resolved = true
}

func (t *MethodTable) hasSignature(key, sig string) bool {
	for _, m := range t.methods[key] {
		if m.Signature() == sig {
			return true
		}
	}
	return false
}

func (t *MethodTable) IsResolved() bool { return t.resolved }

// All returns every method in the table, declared and inherited. Only
// trustworthy once IsResolved() is true.
func (t *MethodTable) All() []*symbols.Symbol {
	out := make([]*symbols.Symbol, 0, len(t.methods))
	for _, overloads := range t.methods {
		out = append(out, overloads...)
	}
	return out
}
