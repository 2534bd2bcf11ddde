package tables

import "strings"

// Argument-to-parameter compatibility scores. Lower is more specific; a
// negative score means incompatible.
const (
	matchExact    = 0
	matchWidening = 1
	matchObject   = 2
)

// widenings lists the declared widening conversions Apex applies during
// approximate overload matching.
var widenings = map[string][]string{
	"integer": {"long", "decimal", "double"},
	"long":    {"decimal", "double"},
	"decimal": {"double"},
	"double":  {"decimal"},
	"id":      {"string"},
	"string":  {"id"},
}

// paramMatchScore scores one argument type against one declared parameter
// type. An empty or null argument type matches anything exactly (the call
// site could not infer it, approximate matching stays permissive).
func paramMatchScore(argType, paramType string) int {
	arg := strings.ToLower(strings.TrimSpace(argType))
	param := strings.ToLower(strings.TrimSpace(paramType))

	if arg == "" || arg == "null" {
		return matchExact
	}
	if arg == param {
		return matchExact
	}
	for _, wide := range widenings[arg] {
		if wide == param {
			return matchWidening
		}
	}
	if param == "object" {
		return matchObject
	}
	return -1
}

// signatureScore scores a full argument list against declared parameter
// types, or -1 when arity or any position is incompatible.
func signatureScore(argTypes, paramTypes []string) int {
	if len(argTypes) != len(paramTypes) {
		return -1
	}
	total := 0
	for i := range argTypes {
		s := paramMatchScore(argTypes[i], paramTypes[i])
		if s < 0 {
			return -1
		}
		total += s
	}
	return total
}
