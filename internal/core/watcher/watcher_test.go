package watcher

import (
	"awkref/internal/engine/index"
	"awkref/internal/shared/util"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewWatcher_RejectsNilCallback(t *testing.T) {
	w, err := NewWatcher(100*time.Millisecond, nil, nil, nil)
	if err == nil {
		t.Fatal("expected error for nil callback")
	}
	if !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("expected os.ErrInvalid, got %v", err)
	}
	if w != nil {
		t.Fatal("expected nil watcher when callback is invalid")
	}
}

func waitFor(t *testing.T, changed <-chan []string, want string, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case paths := <-changed:
			for _, p := range paths {
				if p == want {
					return
				}
			}
		case <-deadline:
			t.Fatalf("timed out waiting for change of %s", want)
		}
	}
}

func TestWatcher(t *testing.T) {
	tmpDir := t.TempDir()

	filter, err := index.NewFilter([]string{".awk"}, []string{"exclude_dir"}, []string{"*.gen.awk"})
	if err != nil {
		t.Fatal(err)
	}
	changedFiles := make(chan []string, 8)
	w, err := NewWatcher(100*time.Millisecond, filter, nil, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := os.MkdirAll(filepath.Join(tmpDir, "exclude_dir"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	testFile := filepath.Join(tmpDir, "main.awk")
	if err := os.WriteFile(testFile, []byte("BEGIN { x = 1 }\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changedFiles, testFile, 2*time.Second)

	for _, name := range []string{"notes.txt", "lib.gen.awk", filepath.Join("exclude_dir", "skip.awk")} {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte("x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	select {
	case paths := <-changedFiles:
		t.Errorf("excluded files triggered a change: %v", paths)
	case <-time.After(500 * time.Millisecond):
	}

	subdir := filepath.Join(tmpDir, "newdir")
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		t.Fatal(err)
	}
	subFile := filepath.Join(subdir, "nested.awk")
	if err := os.WriteFile(subFile, []byte("{ print }\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changedFiles, subFile, 2*time.Second)
}

func TestWatcher_RenameTriggersChange(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 8)
	w, err := NewWatcher(100*time.Millisecond, nil, nil, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	oldPath := filepath.Join(tmpDir, "old.awk")
	newPath := filepath.Join(tmpDir, "new.awk")
	if err := os.WriteFile(oldPath, []byte("{ print }\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changedFiles, newPath, 2*time.Second)
}

func TestWatcher_BatchesAreSortedAndLimited(t *testing.T) {
	calls := make(chan []string, 4)
	w, err := NewWatcher(10*time.Millisecond, nil, util.NewLimiter(1000, 1), func(paths []string) {
		calls <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	w.scheduleChange("/p/b.awk")
	w.scheduleChange("/p/a.awk")
	w.scheduleChange("/p/b.awk")

	select {
	case paths := <-calls:
		if len(paths) != 2 || paths[0] != "/p/a.awk" || paths[1] != "/p/b.awk" {
			t.Fatalf("unexpected batch %v", paths)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for batch")
	}
}

func TestWatcher_ClosedDropsPendingBatch(t *testing.T) {
	calls := make(chan []string, 1)
	w, err := NewWatcher(time.Hour, nil, nil, func(paths []string) {
		calls <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	w.scheduleChange("/p/a.awk")
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	w.flushChanges()
	select {
	case paths := <-calls:
		t.Fatalf("closed watcher delivered %v", paths)
	default:
	}
}
