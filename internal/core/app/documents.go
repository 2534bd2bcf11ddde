package app

import (
	"context"
	"strings"
	"time"

	"go.lsp.dev/uri"

	"apexintel/internal/core/errors"
	"apexintel/internal/data/store"
	"apexintel/internal/engine/resolver"
	"apexintel/internal/engine/scheduler"
	"apexintel/internal/engine/symbols"
	"apexintel/internal/shared/observability"
)

// NormalizeURI canonicalizes editor-supplied document identifiers. Plain
// paths become file URIs; file URIs are normalized so the same file never
// appears under two spellings.
func NormalizeURI(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if strings.Contains(trimmed, "://") {
		return string(uri.New(trimmed))
	}
	return string(uri.File(trimmed))
}

// OnDocumentOpen registers a document and schedules its first parse at
// request priority.
func (a *App) OnDocumentOpen(ctx context.Context, rawURI, content string, version int) error {
	fileID := NormalizeURI(rawURI)
	if fileID == "" {
		return errors.New(errors.CodeValidationError, "document URI must not be empty")
	}
	if err := a.Store.SetDocument(&store.Document{
		URI:       fileID,
		Version:   version,
		Content:   content,
		UpdatedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}
	_, err := a.enqueueParse(fileID, scheduler.PriorityRequest)
	return err
}

// OnDocumentChange stores the new content, marks prior results stale and
// schedules a reparse. Rapid successive edits supersede each other in the
// scheduler; only the newest content is parsed.
func (a *App) OnDocumentChange(ctx context.Context, rawURI, content string, version int) error {
	fileID := NormalizeURI(rawURI)
	if fileID == "" {
		return errors.New(errors.CodeValidationError, "document URI must not be empty")
	}
	if err := a.Store.SetDocument(&store.Document{
		URI:       fileID,
		Version:   version,
		Content:   content,
		UpdatedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}
	a.Resolver.MarkStale(fileID)
	_, err := a.enqueueParse(fileID, scheduler.PriorityRequest)
	return err
}

// OnDocumentClose is housekeeping only: the document leaves the store, but
// its symbols stay in the graph because the file still exists in the
// workspace.
func (a *App) OnDocumentClose(ctx context.Context, rawURI string) error {
	return a.Store.DeleteDocument(NormalizeURI(rawURI))
}

// OnDocumentDelete removes the file's graph contribution, its resolution
// state and its stored document.
func (a *App) OnDocumentDelete(ctx context.Context, rawURI string) error {
	fileID := NormalizeURI(rawURI)
	if err := a.Graph.Remove(fileID); err != nil {
		return err
	}
	a.Resolver.Forget(fileID)
	return a.Store.DeleteDocument(fileID)
}

// Resolve brings a file to CrossFileResolved at the given detail level and
// returns its resolution summary. It runs as a request-priority task so it
// outranks background re-indexing.
func (a *App) Resolve(ctx context.Context, rawURI string, detail resolver.DetailLevel) (resolver.ResolutionState, error) {
	fileID := NormalizeURI(rawURI)
	if fileID == "" {
		return resolver.ResolutionState{}, errors.New(errors.CodeValidationError, "document URI must not be empty")
	}

	// A superseded result means newer work for this file replaced ours;
	// re-request until we observe a committed pass or the caller gives up.
	for {
		ch, err := a.Scheduler.Enqueue(&scheduler.Task{
			Key:        scheduler.Key{FileID: fileID, Kind: scheduler.KindCrossResolve},
			Priority:   scheduler.PriorityRequest,
			Timeout:    a.Config.Scheduler.TaskTimeout,
			MaxRetries: a.Config.Scheduler.MaxRetries,
			Fn: func(taskCtx context.Context) error {
				return a.resolveTask(taskCtx, fileID, detail)
			},
		})
		if err != nil {
			return resolver.ResolutionState{}, err
		}

		select {
		case res := <-ch:
			if errors.IsCode(res.Err, errors.CodeTaskSuperseded) {
				continue
			}
			if res.Err != nil {
				return resolver.ResolutionState{}, res.Err
			}
			return a.Resolver.State(fileID), nil
		case <-ctx.Done():
			return resolver.ResolutionState{}, ctx.Err()
		}
	}
}

// ResolveDefault is Resolve at the configured default detail level.
func (a *App) ResolveDefault(ctx context.Context, rawURI string) (resolver.ResolutionState, error) {
	return a.Resolve(ctx, rawURI, a.defaultDetail)
}

func (a *App) resolveTask(ctx context.Context, fileID string, detail resolver.DetailLevel) error {
	state := a.Resolver.State(fileID)
	if state.State == resolver.StateUnparsed || state.State == resolver.StateStale {
		doc, err := a.Store.GetDocument(fileID)
		if err != nil {
			return err
		}
		if err := a.parseDocument(ctx, doc); err != nil {
			return err
		}
	}
	_, err := a.Resolver.ResolveCross(fileID, detail)
	return err
}

// Query returns the symbols the workspace declares under the given
// simple or qualified name, case-insensitively.
func (a *App) Query(name string) []*symbols.Symbol {
	if sym := a.Graph.Lookup(name); sym != nil {
		return []*symbols.Symbol{sym}
	}
	return nil
}

// Usages returns references across the workspace that point at the named
// symbol, including unresolved references matching its simple name.
func (a *App) Usages(name string) []*symbols.TypeReference {
	return a.Graph.UsagesOf(name)
}

// Subtypes returns the types declaring the named type as supertype or
// interface.
func (a *App) Subtypes(name string) []*symbols.Symbol {
	return a.Graph.SubtypesOf(name)
}

// enqueueParse schedules the parse-and-locally-resolve chain for a stored
// document. On success it queues a background cross-file pass.
func (a *App) enqueueParse(fileID string, priority scheduler.Priority) (<-chan scheduler.Result, error) {
	return a.Scheduler.Enqueue(&scheduler.Task{
		Key:        scheduler.Key{FileID: fileID, Kind: scheduler.KindParse},
		Priority:   priority,
		Timeout:    a.Config.Scheduler.TaskTimeout,
		MaxRetries: a.Config.Scheduler.MaxRetries,
		Fn: func(taskCtx context.Context) error {
			doc, err := a.Store.GetDocument(fileID)
			if err != nil {
				return err
			}
			if err := a.parseDocument(taskCtx, doc); err != nil {
				return err
			}
			a.enqueueCrossResolve(fileID)
			return nil
		},
	})
}

func (a *App) enqueueCrossResolve(fileID string) {
	_, err := a.Scheduler.Enqueue(&scheduler.Task{
		Key:        scheduler.Key{FileID: fileID, Kind: scheduler.KindCrossResolve},
		Priority:   scheduler.PriorityBackground,
		Timeout:    a.Config.Scheduler.TaskTimeout,
		MaxRetries: a.Config.Scheduler.MaxRetries,
		Fn: func(taskCtx context.Context) error {
			return a.resolveTask(taskCtx, fileID, a.defaultDetail)
		},
	})
	if err != nil {
		// The scheduler is shutting down; the next Resolve call redoes
		// this work.
		return
	}
}

// parseDocument runs one parse cycle: syntax tree, symbol table, graph
// merge, same-file resolution. Malformed sources still produce a partial
// table with syntax diagnostics.
func (a *App) parseDocument(ctx context.Context, doc *store.Document) error {
	ctx, span := observability.Tracer.Start(ctx, "app.parseDocument")
	defer span.End()

	// Parse timing is observed inside the engine.
	tree, diags := a.Parser.Parse([]byte(doc.Content))
	defer tree.Close()

	table := symbols.BuildSymbolTable(tree, diags, doc.URI, doc.Version)
	a.Resolver.SetParsed(table)
	_, err := a.Resolver.ResolveLocal(doc.URI)
	return err
}
