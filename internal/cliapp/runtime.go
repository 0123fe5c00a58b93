package cliapp

import (
	coreapp "awkref/internal/core/app"
	"awkref/internal/core/config"
	"awkref/internal/core/ports"
	"awkref/internal/shared/observability"
	"awkref/internal/shared/util"
	"awkref/internal/transport"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

type streams struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// Run executes the CLI and returns the process exit code.
func Run(args []string) int {
	return run(context.Background(), args, streams{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr})
}

func run(ctx context.Context, args []string, std streams) int {
	opts, err := parseOptions(args, std.stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(std.stderr, errorStyle.Render(err.Error()))
		}
		return 2
	}
	if opts.version {
		fmt.Fprintf(std.stdout, "awkref v%s\n", versionString)
		return 0
	}

	// stdout carries protocol or JSON output in these modes.
	logOut := std.stdout
	if opts.command == "serve" || opts.json {
		logOut = std.stderr
	}
	configureLogging(logOut, opts.verbose)

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		slog.Error("failed to load config", "path", opts.configPath, "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:        cfg.Observability.TracingEnabled,
		Endpoint:       cfg.Observability.OTLPEndpoint,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: versionString,
		Insecure:       true,
	})
	if err != nil {
		slog.Error("failed to initialize tracing", "error", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			slog.Warn("tracing shutdown failed", "error", err)
		}
	}()

	cwd, err := os.Getwd()
	if err != nil {
		slog.Error("failed to resolve working directory", "error", err)
		return 1
	}
	if opts.command == "index" {
		opts.args = resolveArgRoots(cwd, opts.args)
	}
	app, err := coreapp.New(cfg, cwd)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return 1
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Warn("failed to close app", "error", err)
		}
	}()

	r := renderer{out: std.stdout, json: opts.json, relative: app.Relative}
	if err := runCommand(ctx, app, opts, r, std); err != nil {
		fmt.Fprintln(std.stderr, errorStyle.Render(err.Error()))
		return 1
	}
	return 0
}

func runCommand(ctx context.Context, app *coreapp.App, opts cliOptions, r renderer, std streams) error {
	query := app.QueryService()

	if needsScan(app, opts.command) {
		if _, err := app.InitialScan(ctx); err != nil {
			return fmt.Errorf("initial scan: %w", err)
		}
	}

	switch opts.command {
	case "index":
		// Explicit roots refresh a subset and must not prune the rest.
		var res ports.ScanResult
		var err error
		if len(opts.args) > 0 {
			res, err = app.IndexService().RunScan(ctx, ports.ScanRequest{Paths: opts.args})
		} else {
			res, err = app.InitialScan(ctx)
		}
		if err != nil {
			return err
		}
		st, err := query.Stats(ctx)
		if err != nil {
			return err
		}
		return r.scan(res, st)

	case "resolve":
		path, line, col, err := parsePosition(opts.args[0])
		if err != nil {
			return err
		}
		res, err := query.Resolve(ctx, path, line, col)
		if err != nil {
			return err
		}
		return r.resolve(res)

	case "outline":
		entries, err := query.Outline(ctx, opts.args[0])
		if err != nil {
			return err
		}
		return r.outline(opts.args[0], entries)

	case "rename":
		path, line, col, err := parsePosition(opts.args[0])
		if err != nil {
			return err
		}
		plan, err := query.PlanRename(ctx, path, line, col, opts.args[1])
		if err != nil {
			return err
		}
		if !opts.write {
			return r.rename(plan, nil)
		}
		res, err := query.ApplyRename(ctx, plan)
		if err != nil {
			return err
		}
		written := res.FilesWritten
		if written == nil {
			written = []string{}
		}
		return r.rename(res.Plan, written)

	case "symbols":
		stubs, err := query.Symbols(ctx, opts.args[0], opts.declOnly)
		if err != nil {
			return err
		}
		return r.symbols(opts.args[0], stubs)

	case "watch":
		return runWatch(ctx, app)

	case "serve":
		return runServe(ctx, app, std)
	}
	return fmt.Errorf("unknown command %q", opts.command)
}

// needsScan reports whether a command must index the roots first. outline
// reads a single file, index reports its own scan, and symbols answers
// from the stub store when an earlier run persisted one.
func needsScan(app *coreapp.App, command string) bool {
	switch command {
	case "outline", "index":
		return false
	case "symbols":
		stored, err := app.StoredPaths()
		if err != nil {
			slog.Warn("failed to list stored files", "error", err)
			return true
		}
		return len(stored) == 0
	}
	return true
}

// resolveArgRoots makes command-line roots absolute against cwd. Roots
// from the config file stay relative to the project root.
func resolveArgRoots(cwd string, args []string) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		out = append(out, config.ResolveRelative(cwd, arg))
	}
	return out
}

func runWatch(ctx context.Context, app *coreapp.App) error {
	stopMetrics, err := startObservability(ctx, app)
	if err != nil {
		return err
	}
	defer stopMetrics()

	if err := app.StartWatcher(); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	slog.Info("watching for changes", "roots", app.Paths.Roots)
	<-ctx.Done()
	slog.Info("shutting down")
	return nil
}

func runServe(ctx context.Context, app *coreapp.App, std streams) error {
	stopMetrics, err := startObservability(ctx, app)
	if err != nil {
		return err
	}
	defer stopMetrics()

	if app.Config.Watch.Enabled {
		if err := app.StartWatcher(); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
	}

	limiter := util.NewLimiterPerMinute(app.Config.Server.RequestsPerMinute, app.Config.Server.Burst)
	server := transport.NewStdio(std.stdin, std.stdout, limiter)
	tools := transport.NewTools(app.QueryService())
	err = server.Serve(ctx, tools.Handle)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// startObservability serves /metrics and /health when an address is
// configured. The returned function stops the server.
func startObservability(ctx context.Context, app *coreapp.App) (func(), error) {
	addr := strings.TrimSpace(app.Config.Observability.MetricsAddr)
	if addr == "" {
		return func() {}, nil
	}
	srv := transport.NewObservabilityServer(addr, coreapp.NewHealthService(app))
	if err := srv.Start(ctx); err != nil {
		return nil, fmt.Errorf("start observability server: %w", err)
	}
	return func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Stop(sctx); err != nil {
			slog.Warn("observability server shutdown failed", "error", err)
		}
	}, nil
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if path != defaultConfigPath || !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	slog.Debug("no config file, using defaults", "path", path)
	return config.Parse("")
}

func configureLogging(out io.Writer, verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}
