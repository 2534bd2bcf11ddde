package graph

import (
	"sort"
	"strings"
	"sync"

	"apexintel/internal/core/errors"
	"apexintel/internal/engine/symbols"
	"apexintel/internal/shared/observability"
)

// BuiltinFileID is the reserved contribution key for the preloaded standard
// library stubs. It is immune to Remove.
const BuiltinFileID = "apex://builtins"

// contribution is one file's complete, immutable share of the graph. It is
// built fully outside the lock and swapped in under a narrow exclusive
// section, so readers see either the prior or the next contribution, never
// a half-merged one.
type contribution struct {
	fileID  string
	version int
	// byName maps lowercased simple type names and lowercased qualified
	// names to their symbols.
	byName map[string]*symbols.Symbol
	types  []*symbols.Symbol
	refs   []*symbols.TypeReference
}

func buildContribution(fileID string, table *symbols.SymbolTable) *contribution {
	c := &contribution{
		fileID:  fileID,
		version: table.Version,
		byName:  make(map[string]*symbols.Symbol),
	}
	table.Walk(func(s *symbols.Symbol) {
		c.byName[strings.ToLower(s.QualifiedName())] = s
		if s.Kind.IsType() {
			c.byName[strings.ToLower(s.Name)] = s
			c.types = append(c.types, s)
		}
	})
	// References are copied so later resolve passes on the table never
	// touch the published contribution; a pass becomes visible only when
	// the resolver re-merges the file.
	c.refs = make([]*symbols.TypeReference, 0, len(table.References))
	for _, ref := range table.References {
		cp := *ref
		c.refs = append(c.refs, &cp)
	}
	return c
}

// Graph is the workspace-wide symbol index. Shared across concurrent tasks;
// merges and removes for one file exclude each other, reads never block
// reads.
type Graph struct {
	mu       sync.RWMutex
	contribs map[string]*contribution
}

func New() *Graph {
	g := &Graph{contribs: make(map[string]*contribution)}
	g.Merge(BuiltinFileID, builtinTable())
	return g
}

// Merge replaces all prior contributions from fileID atomically from the
// reader's perspective.
func (g *Graph) Merge(fileID string, table *symbols.SymbolTable) {
	c := buildContribution(fileID, table)

	g.mu.Lock()
	g.contribs[fileID] = c
	g.updateMetricsLocked()
	g.mu.Unlock()
}

// Remove drops exactly the nodes and edges fileID contributed. Removing a
// contribution that does not exist, or the builtin stubs, is a consistency
// violation: the operation aborts and the graph stays untouched.
func (g *Graph) Remove(fileID string) error {
	if fileID == BuiltinFileID {
		return errors.AddContext(
			errors.New(errors.CodeGraphConsistency, "builtin symbols are never removed"),
			errors.CtxFile, fileID)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.contribs[fileID]; !ok {
		return errors.AddContext(
			errors.New(errors.CodeGraphConsistency, "no contribution to remove"),
			errors.CtxFile, fileID)
	}
	delete(g.contribs, fileID)
	g.updateMetricsLocked()
	return nil
}

// Has reports whether fileID currently contributes to the graph.
func (g *Graph) Has(fileID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.contribs[fileID]
	return ok
}

// Version returns the merged table version for fileID, or -1.
func (g *Graph) Version(fileID string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if c, ok := g.contribs[fileID]; ok {
		return c.version
	}
	return -1
}

// Lookup finds a symbol by simple type name or dotted qualified name.
// User-declared symbols shadow builtins; among user files the
// lexicographically smallest file wins so repeated lookups are stable.
func (g *Graph) Lookup(qualifiedName string) *symbols.Symbol {
	key := strings.ToLower(strings.TrimSpace(qualifiedName))
	if key == "" {
		return nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	var found *symbols.Symbol
	var foundFile string
	for fileID, c := range g.contribs {
		sym, ok := c.byName[key]
		if !ok {
			continue
		}
		if fileID == BuiltinFileID {
			if found == nil {
				found, foundFile = sym, fileID
			}
			continue
		}
		if found == nil || foundFile == BuiltinFileID || fileID < foundFile {
			found, foundFile = sym, fileID
		}
	}
	return found
}

// LookupType resolves a type declaration by name, satisfying the resolver
// contract of the parent tables.
func (g *Graph) LookupType(name string) *symbols.Symbol {
	sym := g.Lookup(name)
	if sym == nil || !sym.Kind.IsType() {
		return nil
	}
	return sym
}

// DeclaringFile returns the file contributing the given qualified name.
func (g *Graph) DeclaringFile(qualifiedName string) string {
	key := strings.ToLower(strings.TrimSpace(qualifiedName))

	g.mu.RLock()
	defer g.mu.RUnlock()
	for fileID, c := range g.contribs {
		if _, ok := c.byName[key]; ok && fileID != BuiltinFileID {
			return fileID
		}
	}
	return ""
}

// SubtypesOf returns the type symbols that extend or implement the named
// type, sorted by qualified name for stable output.
func (g *Graph) SubtypesOf(typeName string) []*symbols.Symbol {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []*symbols.Symbol
	for _, c := range g.contribs {
		for _, t := range c.types {
			if strings.EqualFold(t.SuperType, typeName) {
				out = append(out, t)
				continue
			}
			for _, iface := range t.Interfaces {
				if strings.EqualFold(iface, typeName) {
					out = append(out, t)
					break
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].QualifiedName() < out[j].QualifiedName()
	})
	return out
}

// UsagesOf returns the references resolved to the given qualified name,
// plus unresolved references sharing its simple name.
func (g *Graph) UsagesOf(qualifiedName string) []*symbols.TypeReference {
	simple := qualifiedName
	if i := strings.LastIndex(qualifiedName, "."); i >= 0 {
		simple = qualifiedName[i+1:]
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []*symbols.TypeReference
	for fileID, c := range g.contribs {
		if fileID == BuiltinFileID {
			continue
		}
		for _, ref := range c.refs {
			if ref.Resolved && strings.EqualFold(ref.Target, qualifiedName) {
				out = append(out, ref)
			} else if !ref.Resolved && strings.EqualFold(ref.Name, simple) {
				out = append(out, ref)
			}
		}
	}
	return out
}

// FileCount reports user contributions, excluding builtins.
func (g *Graph) FileCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := len(g.contribs)
	if _, ok := g.contribs[BuiltinFileID]; ok {
		n--
	}
	return n
}

func (g *Graph) updateMetricsLocked() {
	files := len(g.contribs)
	if _, ok := g.contribs[BuiltinFileID]; ok {
		files--
	}
	total := 0
	for fileID, c := range g.contribs {
		if fileID == BuiltinFileID {
			continue
		}
		total += len(c.types)
	}
	observability.GraphFiles.Set(float64(files))
	observability.GraphSymbols.Set(float64(total))
}
