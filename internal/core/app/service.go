package app

import (
	"awkref/internal/core/errors"
	"awkref/internal/core/ports"
	"awkref/internal/engine/index"
	"awkref/internal/engine/outline"
	"awkref/internal/engine/resolver"
	"awkref/internal/engine/syntax"
	"awkref/internal/shared/observability"
	"awkref/internal/shared/util"
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type queryService struct {
	app *App
}

var (
	_ ports.QueryService = (*queryService)(nil)
	_ ports.IndexService = (*queryService)(nil)
)

func NewQueryService(app *App) *queryService {
	return &queryService{app: app}
}

func (a *App) QueryService() ports.QueryService {
	return NewQueryService(a)
}

func (a *App) IndexService() ports.IndexService {
	return NewQueryService(a)
}

// observe starts a span for op and returns a finisher that records the
// outcome in the span and in the query metrics.
func observe(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := observability.Tracer.Start(ctx, "queryService."+op, trace.WithAttributes(attrs...))
	start := time.Now()
	return ctx, func(err error) {
		code := "OK"
		if err != nil {
			code = string(errors.CodeOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.QueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		observability.QueriesTotal.WithLabelValues(op, code).Inc()
		span.End()
	}
}

func (s *queryService) RunScan(ctx context.Context, req ports.ScanRequest) (res ports.ScanResult, err error) {
	ctx, finish := observe(ctx, "RunScan", attribute.Int("paths", len(req.Paths)))
	defer func() { finish(err) }()

	if err := ctx.Err(); err != nil {
		return ports.ScanResult{}, err
	}
	if len(req.Paths) == 0 {
		res, err = s.app.InitialScan(ctx)
	} else {
		roots := make([]string, 0, len(req.Paths))
		for _, p := range req.Paths {
			roots = append(roots, s.app.absPath(p))
		}
		res, err = s.app.scan(ctx, roots, false)
	}
	if err != nil {
		return res, errors.AddContext(err, errors.CtxOperation, "scan")
	}
	return res, nil
}

func (s *queryService) Reindex(ctx context.Context, paths []string) (err error) {
	ctx, finish := observe(ctx, "Reindex", attribute.Int("paths", len(paths)))
	defer func() { finish(err) }()

	s.app.writeMu.Lock()
	defer s.app.writeMu.Unlock()
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		abs := s.app.absPath(p)
		if err := s.app.IndexPath(abs); err != nil {
			return errors.AddContext(err, errors.CtxPath, abs)
		}
	}
	s.app.updateGauges()
	return nil
}

// file returns the indexed tree of path, indexing it on demand when it is
// readable but outside the scanned roots.
func (s *queryService) file(path string) (*syntax.File, error) {
	abs := s.app.absPath(path)
	if !s.app.Project.Has(abs) {
		if _, statErr := os.Stat(abs); statErr != nil {
			return nil, (&errors.DomainError{Code: errors.CodeNotFound, Message: "file not found"}).WithContext(errors.CtxPath, path)
		}
		if err := s.app.IndexPath(abs); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, fmt.Sprintf("index %s", path))
		}
	}
	f, ok := s.app.Project.File(abs)
	if !ok {
		return nil, (&errors.DomainError{Code: errors.CodeNotFound, Message: "file not indexed"}).WithContext(errors.CtxPath, path)
	}
	return f, nil
}

func (s *queryService) occurrence(path string, line, column int) (*syntax.Node, error) {
	f, err := s.file(path)
	if err != nil {
		return nil, err
	}
	n := f.NodeAt(line, column)
	if n == nil {
		return nil, (&errors.DomainError{Code: errors.CodeNotFound, Message: "no identifier at position"}).
			WithContext(errors.CtxPath, path).
			WithContext(errors.CtxPosition, fmt.Sprintf("%d:%d", line, column))
	}
	return n, nil
}

func locationOf(n *syntax.Node) ports.Location {
	loc := ports.Location{Name: n.Name, Line: n.Pos.Line, Column: n.Pos.Column, Offset: n.Span.Start}
	if f := n.File(); f != nil {
		loc.Path = f.Path
	}
	return loc
}

func (s *queryService) Resolve(ctx context.Context, path string, line, column int) (res ports.ResolveResult, err error) {
	_, finish := observe(ctx, "Resolve", attribute.String("path", path), attribute.Int("line", line), attribute.Int("column", column))
	defer func() { finish(err) }()

	if err := ctx.Err(); err != nil {
		return ports.ResolveResult{}, err
	}
	occ, err := s.occurrence(path, line, column)
	if err != nil {
		return ports.ResolveResult{}, err
	}

	tr := s.app.Resolver.Explain(occ)
	res = ports.ResolveResult{
		Query:    locationOf(occ),
		Strategy: string(tr.Strategy),
		Outcome:  tr.Outcome.Kind.String(),
	}
	if tr.Outcome.Kind == resolver.Target {
		target := locationOf(tr.Outcome.Node)
		res.Found = true
		res.Target = &target
	}
	strategy := res.Strategy
	if strategy == "" {
		strategy = "none"
	}
	observability.ResolutionsTotal.WithLabelValues(strategy, res.Outcome).Inc()
	return res, nil
}

func (s *queryService) Outline(ctx context.Context, path string) (entries []outline.Entry, err error) {
	_, finish := observe(ctx, "Outline", attribute.String("path", path))
	defer func() { finish(err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := s.file(path)
	if err != nil {
		return nil, err
	}
	return outline.Sorted(f), nil
}

func (s *queryService) PlanRename(ctx context.Context, path string, line, column int, newName string) (plan resolver.Plan, err error) {
	_, finish := observe(ctx, "PlanRename", attribute.String("path", path), attribute.String("new_name", newName))
	defer func() { finish(err) }()

	if err := ctx.Err(); err != nil {
		return resolver.Plan{}, err
	}
	occ, err := s.occurrence(path, line, column)
	if err != nil {
		return resolver.Plan{}, err
	}
	plan, err = s.app.Resolver.PlanRename(occ, newName)
	if err != nil {
		return resolver.Plan{}, errors.AddContext(err, errors.CtxSymbol, occ.Name)
	}
	return plan, nil
}

// ApplyRename writes the plan to disk and re-indexes the touched files. A
// file whose content changed since the plan was computed is a conflict and
// nothing is written.
func (s *queryService) ApplyRename(ctx context.Context, plan resolver.Plan) (res ports.RenameResult, err error) {
	_, finish := observe(ctx, "ApplyRename", attribute.Int("edits", len(plan.Edits)))
	defer func() { finish(err) }()

	if err := ctx.Err(); err != nil {
		return ports.RenameResult{}, err
	}
	if len(plan.Edits) == 0 {
		return ports.RenameResult{}, errors.New(errors.CodeValidationError, "rename plan has no edits")
	}

	s.app.writeMu.Lock()
	defer s.app.writeMu.Unlock()

	byPath := make(map[string][]syntax.TextEdit)
	for _, e := range plan.Edits {
		byPath[e.Path] = append(byPath[e.Path], e)
	}
	paths := util.SortedStringKeys(byPath)

	updated := make(map[string]string, len(paths))
	for _, path := range paths {
		indexed, ok := s.app.Project.Source(path)
		if !ok {
			return ports.RenameResult{}, (&errors.DomainError{Code: errors.CodeNotFound, Message: "file not indexed"}).WithContext(errors.CtxPath, path)
		}
		onDisk, err := os.ReadFile(path)
		if err != nil {
			return ports.RenameResult{}, fileError(err, path)
		}
		if util.HashContent(string(onDisk)) != util.HashContent(indexed) {
			return ports.RenameResult{}, (&errors.DomainError{Code: errors.CodeConflict, Message: "file changed since it was indexed"}).WithContext(errors.CtxPath, path)
		}
		for _, e := range byPath[path] {
			if e.End > len(indexed) || e.Start < 0 || indexed[e.Start:e.End] != e.OldText {
				return ports.RenameResult{}, (&errors.DomainError{Code: errors.CodeConflict, Message: "edit does not match the indexed text"}).
					WithContext(errors.CtxPath, path).
					WithContext(errors.CtxPosition, fmt.Sprintf("%d:%d", e.Line, e.Column))
			}
		}
		next, err := syntax.ApplyEdits(indexed, byPath[path])
		if err != nil {
			return ports.RenameResult{}, errors.AddContext(err, errors.CtxPath, path)
		}
		updated[path] = next
	}

	res.Plan = plan
	for _, path := range paths {
		if err := util.WriteFileAtomic(path, []byte(updated[path])); err != nil {
			return res, fileError(err, path)
		}
		res.FilesWritten = append(res.FilesWritten, path)
		if err := s.app.IndexPath(path); err != nil {
			return res, errors.AddContext(err, errors.CtxPath, path)
		}
	}
	s.app.updateGauges()
	return res, nil
}

func fileError(err error, path string) error {
	code := errors.CodeInternal
	switch {
	case os.IsPermission(err):
		code = errors.CodePermissionDenied
	case os.IsNotExist(err):
		code = errors.CodeNotFound
	}
	return (&errors.DomainError{Code: code, Message: "file access failed", Err: err}).WithContext(errors.CtxPath, path)
}

func (s *queryService) Symbols(ctx context.Context, name string, declarationsOnly bool) (out []index.Stub, err error) {
	_, finish := observe(ctx, "Symbols", attribute.String("name", name), attribute.Bool("declarations_only", declarationsOnly))
	defer func() { finish(err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !syntax.IsValidName(name) {
		return nil, (&errors.DomainError{Code: errors.CodeValidationError, Message: "invalid variable name"}).WithContext(errors.CtxSymbol, name)
	}
	// Before any scan the persisted stubs are the only view of the project.
	if s.app.StoreEnabled() && len(s.app.Project.Paths()) == 0 {
		return s.app.store.Lookup(name, declarationsOnly), nil
	}
	return s.app.Project.Symbols(name, declarationsOnly), nil
}

func (s *queryService) Stats(ctx context.Context) (st ports.IndexStats, err error) {
	_, finish := observe(ctx, "Stats")
	defer func() { finish(err) }()

	if err := ctx.Err(); err != nil {
		return ports.IndexStats{}, err
	}
	is := s.app.Project.Stats()
	st = ports.IndexStats{
		RunID:        s.app.RunID,
		Files:        is.Files,
		Parsed:       is.Parsed,
		Identifiers:  is.Identifiers,
		Declarations: is.Declarations,
		Names:        is.Names,
		StoreEnabled: s.app.StoreEnabled(),
		HeapAllocMB:  util.HeapAllocMB(),
	}
	if s.app.StoreEnabled() {
		st.StoreProjectKey = s.app.store.ProjectKey()
		stored, err := s.app.store.Paths()
		if err != nil {
			return ports.IndexStats{}, errors.Wrap(err, errors.CodeInternal, "list stored files")
		}
		st.StoredFiles = len(stored)
	}
	return st, nil
}
