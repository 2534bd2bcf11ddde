package tables

import (
	"testing"

	"apexintel/internal/core/errors"
	"apexintel/internal/engine/symbols"
)

func method(name string, static bool, paramTypes ...string) *symbols.Symbol {
	m := &symbols.Symbol{
		Kind:      symbols.KindMethod,
		Name:      name,
		Modifiers: symbols.Modifiers{Visibility: symbols.VisibilityPublic, Static: static},
	}
	for i, pt := range paramTypes {
		m.Children = append(m.Children, &symbols.Symbol{
			Kind: symbols.KindParameter,
			Name: "p" + string(rune('0'+i)),
			Type: pt,
		})
	}
	return m
}

func field(name string, static bool, fieldType string) *symbols.Symbol {
	return &symbols.Symbol{
		Kind:      symbols.KindField,
		Name:      name,
		Type:      fieldType,
		Modifiers: symbols.Modifiers{Visibility: symbols.VisibilityPrivate, Static: static},
	}
}

func TestMethodTable_OverloadsAllowed(t *testing.T) {
	mt := NewMethodTable("Formatter")

	if err := mt.AddDuplicatesAllowed(method("foo", false, "String")); err != nil {
		t.Fatalf("first overload: %v", err)
	}
	if err := mt.AddDuplicatesAllowed(method("foo", false, "Integer")); err != nil {
		t.Fatalf("differing signature must succeed: %v", err)
	}
	err := mt.AddDuplicatesAllowed(method("FOO", false, "string"))
	if !errors.IsCode(err, errors.CodeDuplicateSymbol) {
		t.Fatalf("identical signature (case-insensitive) must fail with DuplicateSymbol, got %v", err)
	}
}

func TestMethodTable_OverloadResolution(t *testing.T) {
	mt := NewMethodTable("Formatter")
	strOverload := method("foo", false, "String")
	intOverload := method("foo", false, "Integer")
	mt.AddDuplicatesAllowed(strOverload)
	mt.AddDuplicatesAllowed(intOverload)
	mt.ResolveWith()

	got, err := mt.GetApproximate("foo", []string{"String"}, ModeInstanceReference)
	if err != nil {
		t.Fatalf("expected unambiguous match: %v", err)
	}
	if got != strOverload {
		t.Errorf("expected foo(String), got foo(%v)", got.ParameterTypes())
	}

	got, err = mt.GetApproximate("foo", []string{"Integer"}, ModeInstanceReference)
	if err != nil || got != intOverload {
		t.Errorf("expected foo(Integer), got %v err %v", got, err)
	}
}

func TestMethodTable_WideningPrefersExact(t *testing.T) {
	mt := NewMethodTable("Calc")
	longOverload := method("sum", false, "Long")
	intOverload := method("sum", false, "Integer")
	mt.AddDuplicatesAllowed(longOverload)
	mt.AddDuplicatesAllowed(intOverload)

	got, err := mt.GetApproximate("sum", []string{"Integer"}, ModeInstanceReference)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != intOverload {
		t.Error("exact parameter type must beat a widening conversion")
	}
}

func TestMethodTable_TypedFailures(t *testing.T) {
	mt := NewMethodTable("Calc")
	mt.AddDuplicatesAllowed(method("sum", false, "Decimal"))
	mt.AddDuplicatesAllowed(method("sum", false, "Double"))

	_, err := mt.GetApproximate("missing", []string{"String"}, ModeInstanceReference)
	if !errors.IsCode(err, errors.CodeNotFound) {
		t.Errorf("zero candidates must be NotFound, got %v", err)
	}

	// Integer widens to both Decimal and Double at equal cost.
	_, err = mt.GetApproximate("sum", []string{"Integer"}, ModeInstanceReference)
	if !errors.IsCode(err, errors.CodeAmbiguousOverload) {
		t.Errorf("unresolvable tie must be Ambiguous, got %v", err)
	}
}

func TestMethodTable_StaticApplicability(t *testing.T) {
	mt := NewMethodTable("Util")
	mt.AddDuplicatesAllowed(method("now", true))
	mt.AddDuplicatesAllowed(method("age", false))

	if _, err := mt.GetApproximate("age", nil, ModeStaticReference); !errors.IsCode(err, errors.CodeNotFound) {
		t.Error("instance method must not be visible to a static reference")
	}
	if _, err := mt.GetApproximate("now", nil, ModeStaticReference); err != nil {
		t.Errorf("static method must be visible to a static reference: %v", err)
	}
	// Static members stay reachable through instance expressions.
	if _, err := mt.GetApproximate("now", nil, ModeInstanceReference); err != nil {
		t.Errorf("static method must remain visible to an instance reference: %v", err)
	}
}

func TestMethodTable_LocalsPriority(t *testing.T) {
	mt := NewMethodTable("Handler")
	mt.AddDuplicatesAllowed(method("run", false))
	local := &symbols.Symbol{Kind: symbols.KindLocalVariable, Name: "run", Type: "String"}
	mt.AddLocal(local)

	got, err := mt.GetApproximate("run", nil, ModeInstanceReferenceLocalsAllowed)
	if err != nil || got != local {
		t.Errorf("locals-allowed mode must prefer the local synonym, got %v err %v", got, err)
	}

	got, err = mt.GetApproximate("run", nil, ModeInstanceReference)
	if err != nil || got == local {
		t.Errorf("locals-forbidden mode must see the declared member, got %v err %v", got, err)
	}
}

func TestMethodTable_ResolveIdempotent(t *testing.T) {
	parent := NewMethodTable("Base")
	parent.AddDuplicatesAllowed(method("describe", false))
	child := NewMethodTable("Derived")
	child.AddDuplicatesAllowed(method("describe", false, "String"))

	child.ResolveWith(parent)
	child.ResolveWith(parent) // second call must not duplicate
	if !child.IsResolved() {
		t.Fatal("expected resolved table")
	}
	if n := len(child.All()); n != 2 {
		t.Errorf("expected 2 methods after inheritance merge, got %d", n)
	}
}
