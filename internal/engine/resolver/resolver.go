package resolver

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"apexintel/internal/core/errors"
	"apexintel/internal/engine/graph"
	"apexintel/internal/engine/symbols"
	"apexintel/internal/engine/tables"
	"apexintel/internal/shared/observability"
)

// TypeTables bundles the per-type resolution views.
type TypeTables struct {
	Methods *tables.MethodTable
	Fields  *tables.FieldTable
	Parents *tables.ParentTable
	detail  DetailLevel
}

// Resolver drives same-file resolution, then cross-file resolution, and
// tracks per-file completion state. It is the only component that mutates
// the symbol graph on behalf of a finished parse cycle.
type Resolver struct {
	graph *graph.Graph

	mu    sync.Mutex
	files map[string]*fileStatus
	// deps caches member tables for referenced types, keyed by lowercased
	// qualified name. A higher detail request rebuilds the entry.
	deps map[string]*TypeTables
}

type fileStatus struct {
	state FileState
	table *symbols.SymbolTable
}

func New(g *graph.Graph) *Resolver {
	return &Resolver{
		graph: g,
		files: make(map[string]*fileStatus),
		deps:  make(map[string]*TypeTables),
	}
}

// SetParsed installs a freshly built symbol table and merges it into the
// graph. A stale file returns to Parsed here, starting its next cycle.
func (r *Resolver) SetParsed(table *symbols.SymbolTable) ResolutionState {
	r.graph.Merge(table.FileID, table)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[table.FileID] = &fileStatus{state: StateParsed, table: table}
	r.invalidateDepsLocked(table)
	return r.stateLocked(table.FileID)
}

// MarkStale flags a file as superseded by a newer edit. Resolution results
// for the old version remain readable until the next parse replaces them.
func (r *Resolver) MarkStale(fileID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.files[fileID]; ok {
		st.state = StateStale
	}
}

// Forget drops a deleted file's resolution state. Graph removal is the
// caller's step; the two together implement document deletion.
func (r *Resolver) Forget(fileID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.files[fileID]; ok {
		r.invalidateDepsLocked(st.table)
	}
	delete(r.files, fileID)
}

// State reports the current resolution summary for a file.
func (r *Resolver) State(fileID string) ResolutionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked(fileID)
}

func (r *Resolver) stateLocked(fileID string) ResolutionState {
	st, ok := r.files[fileID]
	if !ok {
		return ResolutionState{FileID: fileID, State: StateUnparsed}
	}
	return ResolutionState{
		FileID:               fileID,
		Version:              st.table.Version,
		State:                st.state,
		UnresolvedReferences: st.table.UnresolvedCount(),
		Diagnostics:          st.table.Diagnostics,
	}
}

// ResolveLocal resolves references that point inside their own file:
// declared types, members reached through this, and local variables.
func (r *Resolver) ResolveLocal(fileID string) (ResolutionState, error) {
	start := time.Now()
	defer func() {
		observability.ResolutionDuration.WithLabelValues("local").Observe(time.Since(start).Seconds())
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.files[fileID]
	if !ok {
		return ResolutionState{}, errors.AddContext(
			errors.New(errors.CodeNotFound, "file has not been parsed"), errors.CtxFile, fileID)
	}

	index := buildLocalIndex(st.table)
	for _, ref := range st.table.References {
		if ref.Resolved {
			continue
		}
		if target, ok := index.resolve(ref); ok {
			ref.Resolve(target)
		}
	}

	st.state = StateLocallyResolved
	r.graph.Merge(fileID, st.table)
	return r.stateLocked(fileID), nil
}

// ResolveCross resolves the remaining type and constructor references
// against the workspace graph and resolves the file's own parent tables.
// References that survive the full pass stay unresolved permanently for
// this version: that is a valid terminal outcome, not an error.
func (r *Resolver) ResolveCross(fileID string, detail DetailLevel) (ResolutionState, error) {
	start := time.Now()
	defer func() {
		observability.ResolutionDuration.WithLabelValues("cross").Observe(time.Since(start).Seconds())
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.files[fileID]
	if !ok {
		return ResolutionState{}, errors.AddContext(
			errors.New(errors.CodeNotFound, "file has not been parsed"), errors.CtxFile, fileID)
	}

	// Own types get full-detail tables; their parent chains come from the
	// graph, so supertype gates reflect what the workspace really declares.
	st.table.Walk(func(s *symbols.Symbol) {
		if s.Kind.IsType() {
			r.tablesForLocked(s, DetailFull, make(map[string]bool))
		}
	})

	for _, ref := range st.table.References {
		if ref.Resolved {
			continue
		}
		switch ref.Context {
		case symbols.RefTypeDeclaration, symbols.RefConstructorCall, symbols.RefParameterType:
			// LookupType never returns a method-only symbol, which keeps
			// constructor calls honest.
			if sym := r.graph.LookupType(baseTypeName(ref.Name)); sym != nil {
				ref.Resolve(sym.QualifiedName())
				r.tablesForLocked(sym, detail, make(map[string]bool))
			}
		case symbols.RefMethodCall:
			r.resolveQualifiedCallLocked(ref, detail)
		case symbols.RefFieldAccess:
			r.resolveQualifiedFieldLocked(ref, detail)
		case symbols.RefVariableUsage:
			// Bare names that survived the local pass may be type
			// references in disguise (static receiver usage).
			if sym := r.graph.LookupType(ref.Name); sym != nil {
				ref.Resolve(sym.QualifiedName())
			}
		}
	}

	st.state = StateCrossFileResolved
	observability.UnresolvedReferences.Set(float64(st.table.UnresolvedCount()))
	r.graph.Merge(fileID, st.table)
	return r.stateLocked(fileID), nil
}

// resolveQualifiedCallLocked handles Type.method() call sites where the
// qualifier names a type in the graph.
func (r *Resolver) resolveQualifiedCallLocked(ref *symbols.TypeReference, detail DetailLevel) {
	if ref.Qualifier == "" {
		return
	}
	recv := r.graph.LookupType(ref.Qualifier)
	if recv == nil {
		return
	}
	tt := r.tablesForLocked(recv, detail, make(map[string]bool))
	// Call-site argument types are unknown here, so membership by name is
	// the approximation: any overload pins the reference to the type.
	for _, m := range tt.Methods.All() {
		if strings.EqualFold(m.Name, ref.Name) {
			ref.Resolve(m.QualifiedName())
			return
		}
	}
}

func (r *Resolver) resolveQualifiedFieldLocked(ref *symbols.TypeReference, detail DetailLevel) {
	if ref.Qualifier == "" {
		return
	}
	recv := r.graph.LookupType(ref.Qualifier)
	if recv == nil {
		return
	}
	tt := r.tablesForLocked(recv, detail, make(map[string]bool))
	if f, err := tt.Fields.Get(ref.Name, tables.ModeStaticVariable); err == nil {
		ref.Resolve(f.QualifiedName())
	}
}

// TypeTablesFor exposes the member tables of a type at the requested
// detail level, building them on demand.
func (r *Resolver) TypeTablesFor(typeName string, detail DetailLevel) *TypeTables {
	sym := r.graph.LookupType(typeName)
	if sym == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tablesForLocked(sym, detail, make(map[string]bool))
}

// tablesForLocked builds (or reuses) the member tables for a type symbol.
// The visited set breaks inheritance cycles.
func (r *Resolver) tablesForLocked(sym *symbols.Symbol, detail DetailLevel, visited map[string]bool) *TypeTables {
	key := strings.ToLower(sym.QualifiedName())
	if cached, ok := r.deps[key]; ok && cached.detail >= detail {
		return cached
	}
	if visited[key] {
		if cached, ok := r.deps[key]; ok {
			return cached
		}
		// Cycle with no cache yet: hand back empty resolved tables.
		empty := &TypeTables{
			Methods: tables.NewMethodTable(sym.Name),
			Fields:  tables.NewFieldTable(sym.Name),
			Parents: tables.NewParentTable(sym),
			detail:  detail,
		}
		empty.Methods.ResolveWith()
		empty.Fields.ResolveWith()
		return empty
	}
	visited[key] = true

	tt := &TypeTables{
		Methods: tables.NewMethodTable(sym.Name),
		Fields:  tables.NewFieldTable(sym.Name),
		Parents: tables.NewParentTable(sym),
		detail:  detail,
	}

	for _, child := range sym.Children {
		if !visibleAt(detail, child.Modifiers.Visibility) {
			continue
		}
		switch child.Kind {
		case symbols.KindMethod, symbols.KindConstructor:
			if err := tt.Methods.AddDuplicatesAllowed(child); err != nil {
				slog.Debug("duplicate method signature", "type", sym.Name, "method", child.Name, "error", err)
			}
		case symbols.KindField, symbols.KindProperty, symbols.KindEnumValue:
			if err := tt.Fields.AddNoDuplicatesAllowed(child); err != nil {
				slog.Debug("duplicate field", "type", sym.Name, "field", child.Name, "error", err)
			}
		}
	}

	tt.Parents.ResolveSuperTypes(r.graph)
	tt.Parents.ResolveInterfaces(r.graph)

	if super := tt.Parents.SuperTypeSymbol(); super != nil {
		// Inherited members are gated at least as strictly as the request;
		// private members never cross the inheritance boundary.
		parentDetail := detail
		if parentDetail > DetailProtected {
			parentDetail = DetailProtected
		}
		ptt := r.tablesForLocked(super, parentDetail, visited)
		tt.Methods.ResolveWith(ptt.Methods)
		tt.Fields.ResolveWith(ptt.Fields)
	} else {
		tt.Methods.ResolveWith()
		tt.Fields.ResolveWith()
	}

	r.deps[key] = tt
	return tt
}

// invalidateDepsLocked drops cached member tables for types the file
// declares; the next request rebuilds them from fresh symbols.
func (r *Resolver) invalidateDepsLocked(table *symbols.SymbolTable) {
	if table == nil {
		return
	}
	table.Walk(func(s *symbols.Symbol) {
		if s.Kind.IsType() {
			delete(r.deps, strings.ToLower(s.QualifiedName()))
			delete(r.deps, strings.ToLower(s.Name))
		}
	})
	// A newly merged file may declare the missing link in someone else's
	// parent chain. Drop every cache entry still waiting on a parent so
	// the next resolve pass retries the chain.
	for key, tt := range r.deps {
		if !tt.Parents.IsResolved() {
			delete(r.deps, key)
		}
	}
}

func visibleAt(detail DetailLevel, vis symbols.Visibility) bool {
	switch detail {
	case DetailPublicAPI:
		return vis == symbols.VisibilityPublic || vis == symbols.VisibilityGlobal
	case DetailProtected:
		return vis != symbols.VisibilityPrivate
	case DetailPrivate, DetailFull:
		return true
	}
	return false
}

// baseTypeName strips generic arguments: List<Account> resolves by List.
func baseTypeName(name string) string {
	if i := strings.IndexByte(name, '<'); i >= 0 {
		return name[:i]
	}
	return name
}

// localIndex resolves references against the declaring file only.
type localIndex struct {
	types   map[string]string // lower name -> qualified name
	methods map[string]string
	fields  map[string]string
	locals  map[string]string
}

func buildLocalIndex(table *symbols.SymbolTable) *localIndex {
	idx := &localIndex{
		types:   make(map[string]string),
		methods: make(map[string]string),
		fields:  make(map[string]string),
		locals:  make(map[string]string),
	}
	table.Walk(func(s *symbols.Symbol) {
		key := strings.ToLower(s.Name)
		switch {
		case s.Kind.IsType():
			idx.types[key] = s.QualifiedName()
		case s.Kind == symbols.KindMethod || s.Kind == symbols.KindConstructor:
			if _, ok := idx.methods[key]; !ok {
				idx.methods[key] = s.QualifiedName()
			}
		case s.Kind == symbols.KindField || s.Kind == symbols.KindProperty || s.Kind == symbols.KindEnumValue:
			if _, ok := idx.fields[key]; !ok {
				idx.fields[key] = s.QualifiedName()
			}
		case s.Kind == symbols.KindParameter || s.Kind == symbols.KindLocalVariable:
			if _, ok := idx.locals[key]; !ok {
				idx.locals[key] = s.QualifiedName()
			}
		}
	})
	return idx
}

func (idx *localIndex) resolve(ref *symbols.TypeReference) (string, bool) {
	key := strings.ToLower(baseTypeName(ref.Name))
	switch ref.Context {
	case symbols.RefTypeDeclaration, symbols.RefConstructorCall, symbols.RefParameterType:
		if target, ok := idx.types[key]; ok {
			return target, true
		}
	case symbols.RefMethodCall:
		if ref.Qualifier == "" || strings.EqualFold(ref.Qualifier, "this") {
			if target, ok := idx.methods[key]; ok {
				return target, true
			}
		}
	case symbols.RefFieldAccess:
		if strings.EqualFold(ref.Qualifier, "this") {
			if target, ok := idx.fields[key]; ok {
				return target, true
			}
		}
	case symbols.RefVariableUsage:
		if target, ok := idx.locals[key]; ok {
			return target, true
		}
		if target, ok := idx.fields[key]; ok {
			return target, true
		}
	}
	return "", false
}
