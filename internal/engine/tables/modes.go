package tables

// LookupMode controls static-vs-instance applicability and whether local
// variables may shadow declared members during name resolution. Every switch
// over it is exhaustive so an unmatched mode cannot silently default.
type LookupMode int

const (
	ModeStaticReference LookupMode = iota
	ModeStaticReferenceLocalsAllowed
	ModeInstanceReference
	ModeInstanceReferenceLocalsAllowed
	ModeStaticVariable
	ModeStaticVariableLocalsAllowed
	ModeInstanceVariable
	ModeInstanceVariableLocalsAllowed
)

func (m LookupMode) String() string {
	switch m {
	case ModeStaticReference:
		return "static_reference"
	case ModeStaticReferenceLocalsAllowed:
		return "static_reference_locals_allowed"
	case ModeInstanceReference:
		return "instance_reference"
	case ModeInstanceReferenceLocalsAllowed:
		return "instance_reference_locals_allowed"
	case ModeStaticVariable:
		return "static_variable"
	case ModeStaticVariableLocalsAllowed:
		return "static_variable_locals_allowed"
	case ModeInstanceVariable:
		return "instance_variable"
	case ModeInstanceVariableLocalsAllowed:
		return "instance_variable_locals_allowed"
	}
	return "unknown"
}

// AllowsLocals reports whether local-scope synonyms take priority over
// declared members in this mode.
func (m LookupMode) AllowsLocals() bool {
	switch m {
	case ModeStaticReferenceLocalsAllowed,
		ModeInstanceReferenceLocalsAllowed,
		ModeStaticVariableLocalsAllowed,
		ModeInstanceVariableLocalsAllowed:
		return true
	case ModeStaticReference, ModeInstanceReference, ModeStaticVariable, ModeInstanceVariable:
		return false
	}
	return false
}

// WantsStatic reports whether the receiver is the type itself rather than an
// instance. Static lookups see only static members; instance lookups see
// both (Apex allows static access through an instance expression).
func (m LookupMode) WantsStatic() bool {
	switch m {
	case ModeStaticReference, ModeStaticReferenceLocalsAllowed,
		ModeStaticVariable, ModeStaticVariableLocalsAllowed:
		return true
	case ModeInstanceReference, ModeInstanceReferenceLocalsAllowed,
		ModeInstanceVariable, ModeInstanceVariableLocalsAllowed:
		return false
	}
	return false
}

// IsVariable reports whether the lookup targets a field/variable rather
// than a method.
func (m LookupMode) IsVariable() bool {
	switch m {
	case ModeStaticVariable, ModeStaticVariableLocalsAllowed,
		ModeInstanceVariable, ModeInstanceVariableLocalsAllowed:
		return true
	case ModeStaticReference, ModeStaticReferenceLocalsAllowed,
		ModeInstanceReference, ModeInstanceReferenceLocalsAllowed:
		return false
	}
	return false
}

func applicable(static bool, mode LookupMode) bool {
	if mode.WantsStatic() {
		return static
	}
	return true
}
