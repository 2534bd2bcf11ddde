package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"apexintel/internal/core/config"
	"apexintel/internal/core/errors"
	"apexintel/internal/data/store"
	"apexintel/internal/engine/graph"
	"apexintel/internal/engine/parser"
	"apexintel/internal/engine/resolver"
	"apexintel/internal/engine/scheduler"
	"apexintel/internal/shared/util"
)

// App is the explicitly constructed context object shared by every
// component: parser engine, document store, symbol graph, resolver and
// scheduler. There is one per process by construction, not by enforcement.
type App struct {
	Config    *config.Config
	Parser    *parser.Engine
	Store     store.DocumentStore
	Graph     *graph.Graph
	Resolver  *resolver.Resolver
	Scheduler *scheduler.Scheduler

	defaultDetail resolver.DetailLevel
	exclude       []glob.Glob
}

func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	docStore, err := buildStore(cfg.Storage)
	if err != nil {
		return nil, err
	}

	exclude, err := util.CompileGlobs(cfg.Workspace.Exclude)
	if err != nil {
		_ = docStore.Close()
		return nil, fmt.Errorf("compile exclude patterns: %w", err)
	}

	detail, err := DetailFromString(cfg.Resolution.DefaultDetail)
	if err != nil {
		_ = docStore.Close()
		return nil, err
	}

	g := graph.New()
	return &App{
		Config:        cfg,
		Parser:        parser.NewEngine(),
		Store:         docStore,
		Graph:         g,
		Resolver:      resolver.New(g),
		Scheduler:     scheduler.New(cfg.Scheduler.Workers, cfg.Scheduler.BackgroundRate),
		defaultDetail: detail,
		exclude:       exclude,
	}, nil
}

func buildStore(cfg config.Storage) (store.DocumentStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		return store.OpenSQLiteStore(cfg.Path)
	default:
		return nil, errors.New(errors.CodeValidationError,
			fmt.Sprintf("unknown storage driver %q", cfg.Driver))
	}
}

// DetailFromString maps the config spelling to a DetailLevel.
func DetailFromString(s string) (resolver.DetailLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "public_api":
		return resolver.DetailPublicAPI, nil
	case "protected":
		return resolver.DetailProtected, nil
	case "private":
		return resolver.DetailPrivate, nil
	case "full":
		return resolver.DetailFull, nil
	default:
		return resolver.DetailPublicAPI, errors.New(errors.CodeValidationError,
			fmt.Sprintf("unknown detail level %q", s))
	}
}

// Start launches the scheduler workers.
func (a *App) Start(ctx context.Context) error {
	return a.Scheduler.Start(ctx)
}

// Close stops the workers and releases the store. Queued tasks receive
// cancelled results.
func (a *App) Close(ctx context.Context) error {
	a.Scheduler.Stop()
	return a.Store.Close()
}
