package graph

import (
	"time"

	"apexintel/internal/engine/symbols"
)

// builtinTable synthesizes the fixed standard-library stub set. It is
// merged once at construction under BuiltinFileID and never removed. The
// stubs carry just enough surface (names, static-ness, parameter types)
// for reference resolution; they make no claim about runtime behavior.
func builtinTable() *symbols.SymbolTable {
	table := &symbols.SymbolTable{
		FileID:  BuiltinFileID,
		Version: 1,
		BuiltAt: time.Unix(0, 0).UTC(),
	}

	table.Roots = []*symbols.Symbol{
		stubClass("System",
			stubStaticMethod("debug", "void", "Object"),
			stubStaticMethod("assert", "void", "Boolean"),
			stubStaticMethod("assertEquals", "void", "Object", "Object"),
			stubStaticMethod("now", "Datetime"),
			stubStaticMethod("today", "Date"),
			stubStaticMethod("isBatch", "Boolean"),
		),
		stubClass("String",
			stubStaticMethod("valueOf", "String", "Object"),
			stubStaticMethod("isBlank", "Boolean", "String"),
			stubStaticMethod("isNotBlank", "Boolean", "String"),
			stubStaticMethod("join", "String", "List", "String"),
			stubMethod("length", "Integer"),
			stubMethod("toLowerCase", "String"),
			stubMethod("toUpperCase", "String"),
			stubMethod("contains", "Boolean", "String"),
			stubMethod("split", "List", "String"),
			stubMethod("substring", "String", "Integer", "Integer"),
		),
		stubClass("Integer",
			stubStaticMethod("valueOf", "Integer", "String"),
			stubMethod("format", "String"),
		),
		stubClass("Long", stubStaticMethod("valueOf", "Long", "String")),
		stubClass("Double", stubStaticMethod("valueOf", "Double", "String")),
		stubClass("Decimal",
			stubStaticMethod("valueOf", "Decimal", "String"),
			stubMethod("setScale", "Decimal", "Integer"),
			stubMethod("round", "Long"),
		),
		stubClass("Boolean", stubStaticMethod("valueOf", "Boolean", "String")),
		stubClass("Id", stubStaticMethod("valueOf", "Id", "String")),
		stubClass("Object"),
		stubClass("Blob", stubStaticMethod("valueOf", "Blob", "String")),
		stubClass("Date",
			stubStaticMethod("today", "Date"),
			stubStaticMethod("newInstance", "Date", "Integer", "Integer", "Integer"),
			stubMethod("addDays", "Date", "Integer"),
		),
		stubClass("Datetime",
			stubStaticMethod("now", "Datetime"),
			stubMethod("format", "String"),
		),
		stubClass("List",
			stubMethod("add", "void", "Object"),
			stubMethod("get", "Object", "Integer"),
			stubMethod("size", "Integer"),
			stubMethod("isEmpty", "Boolean"),
			stubMethod("clear", "void"),
		),
		stubClass("Set",
			stubMethod("add", "Boolean", "Object"),
			stubMethod("contains", "Boolean", "Object"),
			stubMethod("size", "Integer"),
		),
		stubClass("Map",
			stubMethod("put", "Object", "Object", "Object"),
			stubMethod("get", "Object", "Object"),
			stubMethod("containsKey", "Boolean", "Object"),
			stubMethod("keySet", "Set"),
			stubMethod("values", "List"),
		),
		stubClass("Math",
			stubStaticMethod("abs", "Decimal", "Decimal"),
			stubStaticMethod("max", "Decimal", "Decimal", "Decimal"),
			stubStaticMethod("min", "Decimal", "Decimal", "Decimal"),
			stubStaticMethod("round", "Long", "Double"),
		),
		stubClass("Database",
			stubStaticMethod("insert", "List", "List"),
			stubStaticMethod("update", "List", "List"),
			stubStaticMethod("query", "List", "String"),
		),
		stubClass("Test",
			stubStaticMethod("startTest", "void"),
			stubStaticMethod("stopTest", "void"),
			stubStaticMethod("isRunningTest", "Boolean"),
		),
		stubClass("Exception",
			stubMethod("getMessage", "String"),
			stubMethod("getStackTraceString", "String"),
		),
		stubClass("SObject",
			stubMethod("get", "Object", "String"),
			stubMethod("put", "Object", "String", "Object"),
			stubMethod("getId", "Id"),
		),
		stubInterface("Comparable", stubMethod("compareTo", "Integer", "Object")),
		stubInterface("Schedulable"),
		stubInterface("Queueable"),
	}
	table.Rehydrate()
	return table
}

func stubClass(name string, members ...*symbols.Symbol) *symbols.Symbol {
	return &symbols.Symbol{
		Kind:      symbols.KindClass,
		Name:      name,
		Modifiers: symbols.Modifiers{Visibility: symbols.VisibilityGlobal},
		Children:  members,
	}
}

func stubInterface(name string, members ...*symbols.Symbol) *symbols.Symbol {
	return &symbols.Symbol{
		Kind:      symbols.KindInterface,
		Name:      name,
		Modifiers: symbols.Modifiers{Visibility: symbols.VisibilityGlobal},
		Children:  members,
	}
}

func stubMethod(name, returnType string, paramTypes ...string) *symbols.Symbol {
	m := &symbols.Symbol{
		Kind:      symbols.KindMethod,
		Name:      name,
		Type:      returnType,
		Modifiers: symbols.Modifiers{Visibility: symbols.VisibilityGlobal},
	}
	for _, pt := range paramTypes {
		m.Children = append(m.Children, &symbols.Symbol{
			Kind: symbols.KindParameter,
			Name: "arg",
			Type: pt,
		})
	}
	return m
}

func stubStaticMethod(name, returnType string, paramTypes ...string) *symbols.Symbol {
	m := stubMethod(name, returnType, paramTypes...)
	m.Modifiers.Static = true
	return m
}
