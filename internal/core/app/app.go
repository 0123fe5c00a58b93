package app

import (
	"awkref/internal/core/config"
	"awkref/internal/core/ports"
	"awkref/internal/core/watcher"
	"awkref/internal/data/stubs"
	"awkref/internal/engine/decl"
	"awkref/internal/engine/index"
	"awkref/internal/engine/resolver"
	"awkref/internal/shared/observability"
	"awkref/internal/shared/util"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

type App struct {
	Config   *config.Config
	Paths    config.ResolvedPaths
	RunID    string
	Project  *index.Project
	Resolver *resolver.Resolver

	filter        *index.Filter
	store         *stubs.Store
	activeWatcher *watcher.Watcher

	// writeMu serialises rename application against watcher re-indexing.
	writeMu sync.Mutex
}

// New builds the index, the optional stub store and the resolver from cfg.
// Relative paths in cfg are resolved against cwd.
func New(cfg *config.Config, cwd string) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	paths, err := config.ResolvePaths(cfg, cwd)
	if err != nil {
		return nil, fmt.Errorf("resolve paths: %w", err)
	}
	filter, err := index.NewFilter(cfg.Files.Extensions, cfg.Files.ExcludeDirs, cfg.Files.ExcludeFiles)
	if err != nil {
		return nil, fmt.Errorf("compile file filters: %w", err)
	}

	a := &App{
		Config: cfg,
		Paths:  paths,
		RunID:  uuid.NewString(),
		filter: filter,
	}
	if err := a.initStubStore(); err != nil {
		return nil, err
	}

	var store index.StubStore
	if a.store != nil {
		store = a.store
	}
	a.Project = index.New(store)
	a.Resolver = resolver.New(a.Project, decl.NewStub(a.Project))

	slog.Debug("app initialized", "run_id", a.RunID, "project_root", paths.ProjectRoot, "roots", paths.Roots, "store", a.store != nil)
	return a, nil
}

func (a *App) initStubStore() error {
	if !a.Config.DB.Enabled {
		return nil
	}
	store, err := stubs.Open(a.Paths.DBPath, a.Config.DB.ProjectKey, a.Config.DB.BusyTimeout)
	if err != nil {
		return fmt.Errorf("open sqlite stub store: %w", err)
	}
	a.store = store
	return nil
}

// StoreEnabled reports whether stubs are persisted.
func (a *App) StoreEnabled() bool {
	return a != nil && a.store != nil
}

// StoredPaths lists the files persisted by earlier runs. It is empty when
// the store is disabled.
func (a *App) StoredPaths() ([]string, error) {
	if !a.StoreEnabled() {
		return nil, nil
	}
	return a.store.Paths()
}

func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var firstErr error
	if a.activeWatcher != nil {
		if err := a.activeWatcher.Close(); err != nil {
			firstErr = err
		}
		a.activeWatcher = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.store = nil
	}
	return firstErr
}

// InitialScan indexes every configured root and drops files that vanished
// since the last run from the index and the store.
func (a *App) InitialScan(ctx context.Context) (ports.ScanResult, error) {
	return a.scan(ctx, a.Paths.Roots, true)
}

func (a *App) scan(ctx context.Context, roots []string, prune bool) (ports.ScanResult, error) {
	start := time.Now()
	out := ports.ScanResult{Roots: roots}
	var seen []string
	for _, root := range roots {
		res, err := a.Project.ScanDirectory(ctx, root, a.filter)
		if err != nil {
			return out, fmt.Errorf("scan %s: %w", root, err)
		}
		seen = append(seen, res.Paths...)
		out.Files += len(res.Paths)
		out.Parsed += res.Parsed
		out.FromStore += res.FromStore
		out.Unchanged += res.Unchanged
		out.Failed += res.Failed
	}

	if prune {
		before := len(a.Project.Paths())
		if err := a.Project.Prune(seen); err != nil {
			return out, fmt.Errorf("prune index: %w", err)
		}
		out.Removed = before - len(a.Project.Paths())
	}
	out.Duration = time.Since(start)

	observability.IndexSourcesTotal.WithLabelValues("parsed").Add(float64(out.Parsed))
	observability.IndexSourcesTotal.WithLabelValues("store").Add(float64(out.FromStore))
	observability.IndexSourcesTotal.WithLabelValues("unchanged").Add(float64(out.Unchanged))
	observability.IndexSourcesTotal.WithLabelValues("failed").Add(float64(out.Failed))
	a.updateGauges()

	slog.Info("scan complete",
		"files", out.Files,
		"parsed", out.Parsed,
		"from_store", out.FromStore,
		"unchanged", out.Unchanged,
		"failed", out.Failed,
		"removed", out.Removed,
		"duration", out.Duration,
	)
	return out, nil
}

// IndexPath adds or refreshes one file. A file that no longer exists is
// removed from the index.
func (a *App) IndexPath(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if a.Project.Has(path) {
				return a.Project.RemoveFile(path)
			}
			return nil
		}
		return err
	}
	start := time.Now()
	info, err := a.Project.AddSource(path, string(content))
	if err != nil {
		observability.IndexSourcesTotal.WithLabelValues("failed").Inc()
		return err
	}
	switch {
	case info.Unchanged:
		observability.IndexSourcesTotal.WithLabelValues("unchanged").Inc()
	case info.FromStore:
		observability.IndexSourcesTotal.WithLabelValues("store").Inc()
	default:
		observability.IndexSourcesTotal.WithLabelValues("parsed").Inc()
		observability.ParsingDuration.Observe(time.Since(start).Seconds())
	}
	if info.SyntaxErrors > 0 {
		slog.Debug("indexed file with syntax errors", "path", path, "errors", info.SyntaxErrors)
	}
	return nil
}

// HandleChanges re-indexes a batch of changed paths reported by the watcher.
func (a *App) HandleChanges(paths []string) {
	slog.Info("detected changes", "count", len(paths))
	start := time.Now()

	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	failed := 0
	for _, path := range paths {
		if !a.inRoots(path) {
			continue
		}
		if err := a.IndexPath(path); err != nil {
			failed++
			slog.Warn("failed to re-index file", "path", path, "error", err)
		}
	}
	a.updateGauges()
	slog.Debug("re-index complete", "files", len(paths), "failed", failed, "duration", time.Since(start))
}

func (a *App) inRoots(path string) bool {
	for _, root := range a.Paths.Roots {
		if util.HasPathPrefix(filepath.ToSlash(path), filepath.ToSlash(root)) {
			return true
		}
	}
	return false
}

// StartWatcher watches the configured roots and re-indexes changed files,
// throttled by the configured re-index rate.
func (a *App) StartWatcher() error {
	if a.activeWatcher != nil {
		return nil
	}
	var limiter *util.Limiter
	if a.Config.Watch.ReindexPerSecond > 0 {
		limiter = util.NewLimiter(a.Config.Watch.ReindexPerSecond, a.Config.Watch.Burst)
	}
	w, err := watcher.NewWatcher(a.Config.Watch.Debounce, a.filter, limiter, a.HandleChanges)
	if err != nil {
		return err
	}
	if err := w.Watch(a.Paths.Roots); err != nil {
		_ = w.Close()
		return err
	}
	a.activeWatcher = w
	return nil
}

func (a *App) updateGauges() {
	st := a.Project.Stats()
	observability.IndexedFiles.Set(float64(st.Files))
	observability.IndexedIdentifiers.Set(float64(st.Identifiers))
}

// absPath resolves a user-supplied path against the project root.
func (a *App) absPath(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	if cwd, err := os.Getwd(); err == nil {
		candidate := filepath.Join(cwd, path)
		if _, err := os.Stat(candidate); err == nil {
			return filepath.Clean(candidate)
		}
	}
	return filepath.Clean(filepath.Join(a.Paths.ProjectRoot, path))
}

// Relative renders path relative to the project root when it lies inside it.
func (a *App) Relative(path string) string {
	rel, err := filepath.Rel(a.Paths.ProjectRoot, path)
	if err != nil || rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator) {
		return path
	}
	return rel
}
