package index

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// scanWorkers bounds concurrent file reads and parses during a scan.
const scanWorkers = 8

// ScanResult summarises one directory scan.
type ScanResult struct {
	Root      string
	Paths     []string
	Parsed    int
	FromStore int
	Unchanged int
	Failed    int
}

// CollectFiles walks root and returns the files accepted by filter in
// sorted order.
func CollectFiles(root string, filter *Filter) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && filter.SkipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if filter.IncludeFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// ScanDirectory indexes every accepted file under root. Files are read and
// parsed by a bounded pool; a failing file is logged and skipped.
func (p *Project) ScanDirectory(ctx context.Context, root string, filter *Filter) (ScanResult, error) {
	res := ScanResult{Root: root}
	files, err := CollectFiles(root, filter)
	if err != nil {
		return res, err
	}
	res.Paths = files

	type outcome struct {
		info FileInfo
		err  error
	}
	results := make(chan outcome, len(files))
	var wg sync.WaitGroup
	sem := make(chan struct{}, scanWorkers)

	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}
			content, err := os.ReadFile(path)
			if err != nil {
				results <- outcome{info: FileInfo{Path: path}, err: err}
				return
			}
			info, err := p.AddSource(path, string(content))
			results <- outcome{info: info, err: err}
		}(f)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		switch {
		case r.err != nil:
			res.Failed++
			slog.Warn("failed to index file", "path", r.info.Path, "error", r.err)
		case r.info.Unchanged:
			res.Unchanged++
		case r.info.FromStore:
			res.FromStore++
		default:
			res.Parsed++
		}
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}
