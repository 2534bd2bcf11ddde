// # cmd/apexintel/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"apexintel/internal/core/app"
	"apexintel/internal/core/config"
	"apexintel/internal/core/watcher"
	"apexintel/internal/shared/observability"
	"apexintel/internal/ui/cli"
)

var (
	configPath = flag.String("config", "./apexintel.toml", "Path to config file")
	once       = flag.Bool("once", false, "Run single workspace scan and exit")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "1.0.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("apexintel v%s\n", VERSION)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		if *configPath == "./apexintel.toml" && errors.Is(err, os.ErrNotExist) {
			slog.Info("no config file found, using defaults")
			cfg = config.Default()
		} else {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	}

	if flag.NArg() > 0 {
		cfg.Workspace.Roots = flag.Args()
	}

	if err := run(cfg); err != nil {
		slog.Error("apexintel exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Observability.OTLPEndpoint != "" {
		shutdown, err := observability.SetupTracing(ctx, cfg.Observability.OTLPEndpoint)
		if err != nil {
			return fmt.Errorf("setup tracing: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				slog.Warn("trace provider shutdown", "error", err)
			}
		}()
	}

	a, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			slog.Warn("app shutdown", "error", err)
		}
	}()

	files, err := a.InitialScan(ctx)
	if err != nil {
		return fmt.Errorf("initial scan: %w", err)
	}
	slog.Info("workspace indexed", "files", files)

	if *once {
		return nil
	}

	if cfg.Watch.Enabled {
		w, err := watcher.New(cfg.Watch.Debounce, cfg.Workspace.Exclude, func(paths []string) {
			a.HandleFileChanges(ctx, paths)
		})
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		if err := w.Watch(cfg.Workspace.Roots); err != nil {
			return fmt.Errorf("watch workspace: %w", err)
		}
		defer w.Close()
	}

	if cfg.Observability.Address != "" {
		obs := cli.NewObservabilityServer(cfg.Observability.Address, a, app.NewHealthService(a))
		if err := obs.Start(ctx); err != nil {
			return fmt.Errorf("start observability server: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := obs.Stop(stopCtx); err != nil {
				slog.Warn("observability server shutdown", "error", err)
			}
		}()
	}

	<-ctx.Done()
	slog.Info("shutting down")
	return nil
}
