package symbols

import (
	"strings"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"apexintel/internal/engine/parser"
)

// Apex keywords never become references, even where the grammar happens to
// produce an identifier node for them.
var apexKeywords = map[string]bool{
	"this": true, "super": true, "new": true, "return": true,
	"if": true, "else": true, "for": true, "while": true, "do": true,
	"try": true, "catch": true, "finally": true, "throw": true,
	"void": true, "null": true, "true": true, "false": true,
	"insert": true, "update": true, "upsert": true, "delete": true,
	"undelete": true, "merge": true,
	"select": true, "from": true, "where": true, "limit": true,
	"break": true, "continue": true, "instanceof": true,
}

// BuildSymbolTable builds the symbol table for one compilation unit.
// Deterministic given the same tree: the walk order is the tree order.
func BuildSymbolTable(tree *parser.Tree, diags []parser.Diagnostic, fileID string, version int) *SymbolTable {
	table := &SymbolTable{
		FileID:      fileID,
		Version:     version,
		Diagnostics: diags,
		BuiltAt:     time.Now().UTC(),
	}
	root := tree.Root()
	if root == nil {
		return table
	}

	b := &builder{src: tree.Source, table: table, fileID: fileID, seenLocals: make(map[string]bool)}
	b.walk(root, nil)
	return table
}

type builder struct {
	src        []byte
	table      *SymbolTable
	fileID     string
	enclosing  string
	seenLocals map[string]bool
}

func (b *builder) walk(node *sitter.Node, owner *Symbol) {
	if node == nil || node.IsError() {
		// Malformed regions already surfaced as diagnostics; the rest of
		// the tree is still extracted.
		return
	}

	switch node.Kind() {
	case "class_declaration":
		b.typeDecl(node, owner, KindClass)
	case "interface_declaration":
		b.typeDecl(node, owner, KindInterface)
	case "enum_declaration":
		b.enumDecl(node, owner)
	case "method_declaration":
		b.methodDecl(node, owner, KindMethod)
	case "constructor_declaration":
		b.methodDecl(node, owner, KindConstructor)
	case "field_declaration":
		b.fieldDecl(node, owner)
	case "local_variable_declaration":
		b.localDecl(node, owner)
	case "object_creation_expression":
		b.constructorCall(node, owner)
	case "method_invocation":
		b.methodCall(node, owner)
	case "field_access":
		b.fieldAccess(node, owner)
	case "identifier":
		b.identifierUse(node)
	case "type_identifier", "scoped_type_identifier", "generic_type":
		b.typeUse(node, RefTypeDeclaration)
	default:
		b.walkChildren(node, owner)
	}
}

func (b *builder) walkChildren(node *sitter.Node, owner *Symbol) {
	for i := uint(0); i < node.ChildCount(); i++ {
		b.walk(node.Child(i), owner)
	}
}

func (b *builder) typeDecl(node *sitter.Node, owner *Symbol, kind SymbolKind) {
	name := b.text(node.ChildByFieldName("name"))
	if name == "" {
		return
	}

	sym := b.addSymbol(owner, &Symbol{
		Kind:      kind,
		Name:      name,
		Modifiers: b.modifiers(node),
		Loc:       b.span(node),
	})

	// extends / implements clauses
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "superclass":
			if names := b.clauseTypeNames(child); len(names) > 0 {
				sym.SuperType = names[0]
			}
			b.collectTypeRefs(child, RefTypeDeclaration)
		case "super_interfaces":
			sym.Interfaces = append(sym.Interfaces, b.clauseTypeNames(child)...)
			b.collectTypeRefs(child, RefTypeDeclaration)
		case "extends_interfaces":
			// interface extends list: treated as supertype interfaces
			sym.Interfaces = append(sym.Interfaces, b.clauseTypeNames(child)...)
			b.collectTypeRefs(child, RefTypeDeclaration)
		}
	}

	if body := node.ChildByFieldName("body"); body != nil {
		b.walkChildren(body, sym)
	}
}

func (b *builder) enumDecl(node *sitter.Node, owner *Symbol) {
	name := b.text(node.ChildByFieldName("name"))
	if name == "" {
		return
	}

	sym := b.addSymbol(owner, &Symbol{
		Kind:      KindEnum,
		Name:      name,
		Modifiers: b.modifiers(node),
		Loc:       b.span(node),
	})

	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}
	for i := uint(0); i < body.ChildCount(); i++ {
		child := body.Child(i)
		if child.Kind() != "enum_constant" {
			continue
		}
		valueName := b.text(child.ChildByFieldName("name"))
		if valueName == "" {
			continue
		}
		b.addSymbol(sym, &Symbol{
			Kind:      KindEnumValue,
			Name:      valueName,
			Modifiers: Modifiers{Visibility: VisibilityPublic, Static: true, Final: true},
			Loc:       b.span(child),
			Type:      name,
		})
	}
}

func (b *builder) methodDecl(node *sitter.Node, owner *Symbol, kind SymbolKind) {
	name := b.text(node.ChildByFieldName("name"))
	if name == "" {
		return
	}

	sym := &Symbol{
		Kind:      kind,
		Name:      name,
		Modifiers: b.modifiers(node),
		Loc:       b.span(node),
	}
	if kind == KindMethod {
		if rt := node.ChildByFieldName("type"); rt != nil {
			sym.Type = b.typeName(rt)
			b.collectTypeRefs(rt, RefTypeDeclaration)
		}
	}
	b.addSymbol(owner, sym)

	prev := b.enclosing
	b.enclosing = name
	defer func() { b.enclosing = prev }()

	if params := node.ChildByFieldName("parameters"); params != nil {
		for i := uint(0); i < params.ChildCount(); i++ {
			b.paramDecl(params.Child(i), sym)
		}
	}
	if body := node.ChildByFieldName("body"); body != nil {
		b.walkChildren(body, sym)
	}
}

func (b *builder) paramDecl(node *sitter.Node, method *Symbol) {
	if node.Kind() != "formal_parameter" {
		return
	}
	typeNode := node.ChildByFieldName("type")
	name := b.text(node.ChildByFieldName("name"))
	if name == "" {
		return
	}
	b.addSymbol(method, &Symbol{
		Kind: KindParameter,
		Name: name,
		Loc:  b.span(node),
		Type: b.typeName(typeNode),
	})
	b.noteLocal(name)
	if typeNode != nil {
		b.collectTypeRefs(typeNode, RefParameterType)
	}
}

func (b *builder) fieldDecl(node *sitter.Node, owner *Symbol) {
	typeNode := node.ChildByFieldName("type")
	typeName := b.typeName(typeNode)
	if typeNode != nil {
		b.collectTypeRefs(typeNode, RefTypeDeclaration)
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		decl := node.Child(i)
		if decl.Kind() != "variable_declarator" {
			continue
		}
		name := b.text(decl.ChildByFieldName("name"))
		if name == "" {
			continue
		}
		b.addSymbol(owner, &Symbol{
			Kind:      KindField,
			Name:      name,
			Modifiers: b.modifiers(node),
			Loc:       b.span(decl),
			Type:      typeName,
		})
		if value := decl.ChildByFieldName("value"); value != nil {
			prev := b.enclosing
			b.enclosing = name
			b.walk(value, owner)
			b.enclosing = prev
		}
	}
}

func (b *builder) localDecl(node *sitter.Node, owner *Symbol) {
	typeNode := node.ChildByFieldName("type")
	typeName := b.typeName(typeNode)
	if typeNode != nil {
		b.collectTypeRefs(typeNode, RefTypeDeclaration)
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		decl := node.Child(i)
		if decl.Kind() != "variable_declarator" {
			continue
		}
		name := b.text(decl.ChildByFieldName("name"))
		if name == "" {
			continue
		}
		b.addSymbol(owner, &Symbol{
			Kind: KindLocalVariable,
			Name: name,
			Loc:  b.span(decl),
			Type: typeName,
		})
		b.noteLocal(name)
		if value := decl.ChildByFieldName("value"); value != nil {
			b.walk(value, owner)
		}
	}
}

// constructorCall tags the type of a new expression as a constructor-call
// reference, never a type-declaration one.
func (b *builder) constructorCall(node *sitter.Node, owner *Symbol) {
	if typeNode := node.ChildByFieldName("type"); typeNode != nil {
		base := typeNode
		if typeNode.Kind() == "generic_type" {
			for i := uint(0); i < typeNode.ChildCount(); i++ {
				child := typeNode.Child(i)
				switch child.Kind() {
				case "type_identifier", "scoped_type_identifier":
					base = child
				case "type_arguments":
					// generic arguments of the constructed type are
					// ordinary type uses
					b.collectTypeRefs(child, RefTypeDeclaration)
				}
			}
		}
		name := b.typeName(base)
		if name != "" && !apexKeywords[strings.ToLower(name)] {
			b.addRef(&TypeReference{
				Name:    name,
				Context: RefConstructorCall,
				Loc:     b.span(base),
			})
		}
	}
	if args := node.ChildByFieldName("arguments"); args != nil {
		b.walkChildren(args, owner)
	}
}

func (b *builder) methodCall(node *sitter.Node, owner *Symbol) {
	name := b.text(node.ChildByFieldName("name"))
	object := node.ChildByFieldName("object")
	if name != "" && !apexKeywords[strings.ToLower(name)] {
		b.addRef(&TypeReference{
			Name:      name,
			Qualifier: b.text(object),
			Context:   RefMethodCall,
			Loc:       b.span(node),
		})
	}
	if object != nil {
		b.walk(object, owner)
	}
	if args := node.ChildByFieldName("arguments"); args != nil {
		b.walkChildren(args, owner)
	}
}

// fieldAccess emits a field-access reference for b in a.b, qualified by the
// receiver expression text.
func (b *builder) fieldAccess(node *sitter.Node, owner *Symbol) {
	field := node.ChildByFieldName("field")
	object := node.ChildByFieldName("object")
	name := b.text(field)
	if name != "" && !apexKeywords[strings.ToLower(name)] {
		b.addRef(&TypeReference{
			Name:      name,
			Qualifier: b.text(object),
			Context:   RefFieldAccess,
			Loc:       b.span(field),
		})
	}
	if object != nil {
		b.walk(object, owner)
	}
}

func (b *builder) identifierUse(node *sitter.Node) {
	name := b.text(node)
	if name == "" || apexKeywords[strings.ToLower(name)] {
		return
	}
	b.addRef(&TypeReference{
		Name:    name,
		Context: RefVariableUsage,
		Loc:     b.span(node),
	})
}

func (b *builder) typeUse(node *sitter.Node, ctx ReferenceContext) {
	b.collectTypeRefs(node, ctx)
}

// collectTypeRefs emits one reference per type name found under node,
// descending into generic arguments and array element types.
func (b *builder) collectTypeRefs(node *sitter.Node, ctx ReferenceContext) {
	if node == nil {
		return
	}
	switch node.Kind() {
	case "type_identifier", "scoped_type_identifier":
		name := b.text(node)
		if name == "" || apexKeywords[strings.ToLower(name)] {
			return
		}
		b.addRef(&TypeReference{
			Name:    name,
			Context: ctx,
			Loc:     b.span(node),
		})
	case "generic_type":
		for i := uint(0); i < node.ChildCount(); i++ {
			b.collectTypeRefs(node.Child(i), ctx)
		}
	case "array_type":
		b.collectTypeRefs(node.ChildByFieldName("element"), ctx)
	case "void_type", "integral_type", "floating_point_type", "boolean_type":
		// primitives are keywords, not references
	default:
		for i := uint(0); i < node.ChildCount(); i++ {
			b.collectTypeRefs(node.Child(i), ctx)
		}
	}
}

// clauseTypeNames lists the type names declared in an extends/implements
// clause, in declaration order.
func (b *builder) clauseTypeNames(node *sitter.Node) []string {
	var out []string
	var visit func(*sitter.Node)
	visit = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch n.Kind() {
		case "type_identifier", "scoped_type_identifier", "generic_type":
			out = append(out, b.typeName(n))
		default:
			for i := uint(0); i < n.ChildCount(); i++ {
				visit(n.Child(i))
			}
		}
	}
	visit(node)
	return out
}

// typeName returns the printed name of a type node: List<Account> for
// generic types, the full dotted text for scoped ones.
func (b *builder) typeName(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return normalizeTypeName(b.text(node))
}

func normalizeTypeName(value string) string {
	value = strings.TrimSpace(value)
	value = strings.ReplaceAll(value, "\n", "")
	value = strings.ReplaceAll(value, "\r", "")
	value = strings.ReplaceAll(value, "\t", "")
	value = strings.ReplaceAll(value, " ", "")
	return value
}

func (b *builder) addSymbol(owner *Symbol, sym *Symbol) *Symbol {
	sym.Parent = owner
	if owner == nil {
		b.table.Roots = append(b.table.Roots, sym)
	} else {
		owner.Children = append(owner.Children, sym)
	}
	return sym
}

func (b *builder) addRef(ref *TypeReference) {
	ref.EnclosingMember = b.enclosing
	b.table.References = append(b.table.References, ref)
}

func (b *builder) noteLocal(name string) {
	key := strings.ToLower(name)
	if b.seenLocals[key] {
		return
	}
	b.seenLocals[key] = true
	b.table.LocalNames = append(b.table.LocalNames, key)
}

// modifiers scans the declaration header text, from the node start to the
// declared name (or type, for fields). The scan runs over the raw source
// rather than the modifiers child: Apex-only modifier words are blanked for
// the parse and only exist in the original text. Unannotated members
// default to private.
func (b *builder) modifiers(node *sitter.Node) Modifiers {
	mods := Modifiers{Visibility: VisibilityPrivate}
	start := node.StartByte()
	end := start
	if name := node.ChildByFieldName("name"); name != nil {
		end = name.StartByte()
	} else if typ := node.ChildByFieldName("type"); typ != nil {
		end = typ.StartByte()
	}
	if end <= start || end > uint(len(b.src)) {
		return mods
	}
	for _, tok := range strings.Fields(string(b.src[start:end])) {
		switch strings.ToLower(tok) {
		case "public":
			mods.Visibility = VisibilityPublic
		case "protected":
			mods.Visibility = VisibilityProtected
		case "global":
			mods.Visibility = VisibilityGlobal
		case "private":
			mods.Visibility = VisibilityPrivate
		case "static":
			mods.Static = true
		case "abstract":
			mods.Abstract = true
		case "virtual":
			mods.Virtual = true
		case "override":
			mods.Override = true
		case "final":
			mods.Final = true
		}
	}
	return mods
}

func (b *builder) text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(b.src[node.StartByte():node.EndByte()])
}

func (b *builder) span(node *sitter.Node) Location {
	return Location{
		File:        b.fileID,
		StartLine:   int(node.StartPosition().Row) + 1,
		StartColumn: int(node.StartPosition().Column) + 1,
		EndLine:     int(node.EndPosition().Row) + 1,
		EndColumn:   int(node.EndPosition().Column) + 1,
	}
}
