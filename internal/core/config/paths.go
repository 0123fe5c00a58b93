package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type ResolvedPaths struct {
	ProjectRoot string
	Roots       []string
	DatabaseDir string
	DBPath      string
}

// ResolvePaths turns the relative locations of cfg into absolute ones.
// Roots and the database directory are relative to the project root, which
// is itself relative to cwd or detected from the roots.
func ResolvePaths(cfg *Config, cwd string) (ResolvedPaths, error) {
	if strings.TrimSpace(cwd) == "" {
		return ResolvedPaths{}, fmt.Errorf("cwd must not be empty")
	}

	projectRoot := strings.TrimSpace(cfg.Paths.ProjectRoot)
	if projectRoot != "" {
		projectRoot = ResolveRelative(cwd, projectRoot)
	} else {
		candidates := make([]string, 0, len(cfg.Roots)+1)
		for _, r := range cfg.Roots {
			candidates = append(candidates, ResolveRelative(cwd, r))
		}
		root, err := DetectProjectRoot(append(candidates, cwd))
		if err != nil {
			return ResolvedPaths{}, err
		}
		projectRoot = root
	}

	roots := make([]string, 0, len(cfg.Roots))
	seen := make(map[string]bool, len(cfg.Roots))
	for _, r := range cfg.Roots {
		abs := ResolveRelative(projectRoot, r)
		if !seen[abs] {
			seen[abs] = true
			roots = append(roots, abs)
		}
	}

	databaseDir := ResolveRelative(projectRoot, cfg.Paths.DatabaseDir)
	dbPath := strings.TrimSpace(cfg.DB.Path)
	if filepath.IsAbs(dbPath) {
		dbPath = filepath.Clean(dbPath)
	} else {
		dbPath = filepath.Join(databaseDir, dbPath)
	}

	return ResolvedPaths{
		ProjectRoot: filepath.Clean(projectRoot),
		Roots:       roots,
		DatabaseDir: filepath.Clean(databaseDir),
		DBPath:      filepath.Clean(dbPath),
	}, nil
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}

// DetectProjectRoot walks up from each candidate looking for a project
// marker and falls back to the working directory.
func DetectProjectRoot(candidates []string) (string, error) {
	markers := []string{
		DefaultFileName,
		".git",
	}

	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}

		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		root := abs
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			root = filepath.Dir(abs)
		}

		for {
			for _, marker := range markers {
				if _, err := os.Stat(filepath.Join(root, marker)); err == nil {
					return filepath.Clean(root), nil
				}
			}
			parent := filepath.Dir(root)
			if parent == root {
				break
			}
			root = parent
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Clean(cwd), nil
}
