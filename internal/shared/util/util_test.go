package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizePatternPath(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Empty", input: "", expected: ""},
		{name: "Dot", input: ".", expected: ""},
		{name: "Trim", input: "  ./foo/bar  ", expected: "foo/bar"},
		{name: "Relative", input: "foo/../bar", expected: "bar"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizePatternPath(tc.input); got != tc.expected {
				t.Fatalf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestHasPathPrefix(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		path     string
		prefix   string
		expected bool
	}{
		{name: "Exact", path: "foo/bar", prefix: "foo/bar", expected: true},
		{name: "Nested", path: "foo/bar/baz", prefix: "foo/bar", expected: true},
		{name: "Neighbor", path: "foo/barista", prefix: "foo/bar", expected: false},
		{name: "Shorter", path: "foo", prefix: "foo/bar", expected: false},
		{name: "MixedSeparators", path: `foo\bar\baz`, prefix: "foo/bar", expected: true},
		{name: "RelativePrefix", path: "./foo/bar/baz", prefix: "foo/bar", expected: true},
		{name: "AbsoluteRoot", path: "/srv/awk/a.awk", prefix: "/", expected: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := HasPathPrefix(tc.path, tc.prefix); got != tc.expected {
				t.Fatalf("expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestSortedStringKeys(t *testing.T) {
	t.Parallel()

	m := map[string]int{"b": 2, "a": 1, "c": 3}
	keys := SortedStringKeys(m)
	expected := []string{"a", "b", "c"}
	if len(keys) != len(expected) {
		t.Fatalf("expected %d keys, got %d", len(expected), len(keys))
	}
	for i, key := range expected {
		if keys[i] != key {
			t.Fatalf("expected %q at %d, got %q", key, i, keys[i])
		}
	}
}

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "file.awk")

	if err := WriteFileAtomic(path, []byte("BEGIN { x = 1 }\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(path, []byte("BEGIN { y = 1 }\n")); err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(got) != "BEGIN { y = 1 }\n" {
		t.Fatalf("unexpected content %q", string(got))
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("expected mode to be kept, got %v", info.Mode().Perm())
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected temporary files to be gone, got %d entries", len(entries))
	}
}
