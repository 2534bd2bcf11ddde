package app

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"apexintel/internal/core/errors"
	"apexintel/internal/data/store"
	"apexintel/internal/engine/parser"
	"apexintel/internal/engine/scheduler"
	"apexintel/internal/shared/observability"
	"apexintel/internal/shared/util"
)

// InitialScan walks the configured workspace roots, stores every Apex
// source it finds and schedules background parse tasks for them. Open
// documents are untouched; a file already stored keeps its newer content.
func (a *App) InitialScan(ctx context.Context) (int, error) {
	ctx, span := observability.Tracer.Start(ctx, "app.InitialScan")
	defer span.End()

	found := 0
	for _, root := range a.Config.Workspace.Roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			rel := normalizeRel(root, path)
			if d.IsDir() {
				if a.excluded(rel + "/") {
					return filepath.SkipDir
				}
				return nil
			}
			if !parser.IsApexPath(path) || a.excluded(rel) {
				return nil
			}
			if err := a.scanFile(path); err != nil {
				slog.Warn("failed to index file", "path", path, "error", err)
				return nil
			}
			found++
			return nil
		})
		if err != nil {
			return found, err
		}
	}
	slog.Info("initial scan queued", "files", found, "roots", len(a.Config.Workspace.Roots))
	return found, nil
}

func (a *App) scanFile(path string) error {
	fileID := NormalizeURI(path)

	// An open editor buffer outranks the on-disk copy.
	if _, err := a.Store.GetDocument(fileID); err == nil {
		return nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := a.Store.SetDocument(&store.Document{
		URI:       fileID,
		Version:   0,
		Content:   string(content),
		UpdatedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}
	_, err = a.enqueueParse(fileID, scheduler.PriorityBackground)
	return err
}

// HandleFileChanges reconciles a watcher batch with the model: files that
// vanished leave the graph, everything else is re-indexed from disk.
func (a *App) HandleFileChanges(ctx context.Context, paths []string) {
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := a.OnDocumentDelete(ctx, path); err != nil && !errors.IsCode(err, errors.CodeGraphConsistency) {
				slog.Warn("failed to drop deleted file", "path", path, "error", err)
			}
			continue
		}

		content, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("failed to read changed file", "path", path, "error", err)
			continue
		}

		version := 1
		if doc, err := a.Store.GetDocument(NormalizeURI(path)); err == nil {
			version = doc.Version + 1
		}
		if err := a.OnDocumentChange(ctx, path, string(content), version); err != nil {
			slog.Warn("failed to re-index changed file", "path", path, "error", err)
		}
	}
}

func (a *App) excluded(rel string) bool {
	return util.MatchRel(a.exclude, rel)
}

func normalizeRel(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	return filepath.ToSlash(rel)
}
