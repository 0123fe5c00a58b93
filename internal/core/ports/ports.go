package ports

import (
	"awkref/internal/engine/index"
	"awkref/internal/engine/outline"
	"awkref/internal/engine/resolver"
	"context"
	"time"
)

// Location identifies an identifier occurrence in a file. Line and Column
// are 1-based; Offset is a byte offset.
type Location struct {
	Path   string `json:"path"`
	Name   string `json:"name"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Offset int    `json:"offset"`
}

// ResolveResult is the answer to a resolve query. Found is false when the
// occurrence has no reference or is its own declaration; Outcome and
// Strategy still report which step of the chain decided.
type ResolveResult struct {
	Query    Location  `json:"query"`
	Found    bool      `json:"found"`
	Strategy string    `json:"strategy,omitempty"`
	Outcome  string    `json:"outcome"`
	Target   *Location `json:"target,omitempty"`
}

// RenameResult reports an applied rename plan.
type RenameResult struct {
	Plan         resolver.Plan `json:"plan"`
	FilesWritten []string      `json:"files_written"`
}

// IndexStats summarises the index for driving adapters.
type IndexStats struct {
	RunID        string  `json:"run_id"`
	Files        int     `json:"files"`
	Parsed       int     `json:"parsed"`
	Identifiers  int     `json:"identifiers"`
	Declarations int     `json:"declarations"`
	Names        int     `json:"names"`
	StoreEnabled bool    `json:"store_enabled"`
	HeapAllocMB  float64 `json:"heap_alloc_mb"`

	StoreProjectKey string `json:"store_project_key,omitempty"`
	StoredFiles     int    `json:"stored_files"`
}

// ScanRequest defines a scan operation request for driving adapters. An
// empty path list scans the configured roots.
type ScanRequest struct {
	Paths []string
}

// ScanResult summarizes a completed scan operation.
type ScanResult struct {
	Roots     []string      `json:"roots"`
	Files     int           `json:"files"`
	Parsed    int           `json:"parsed"`
	FromStore int           `json:"from_store"`
	Unchanged int           `json:"unchanged"`
	Failed    int           `json:"failed"`
	Removed   int           `json:"removed"`
	Duration  time.Duration `json:"duration"`
}

// QueryService exposes the read and rename operations over the index.
type QueryService interface {
	Resolve(ctx context.Context, path string, line, column int) (ResolveResult, error)
	Outline(ctx context.Context, path string) ([]outline.Entry, error)
	PlanRename(ctx context.Context, path string, line, column int, newName string) (resolver.Plan, error)
	ApplyRename(ctx context.Context, plan resolver.Plan) (RenameResult, error)
	Symbols(ctx context.Context, name string, declarationsOnly bool) ([]index.Stub, error)
	Stats(ctx context.Context) (IndexStats, error)
}

// IndexService keeps the index in step with the file system.
type IndexService interface {
	RunScan(ctx context.Context, req ScanRequest) (ScanResult, error)
	Reindex(ctx context.Context, paths []string) error
}
