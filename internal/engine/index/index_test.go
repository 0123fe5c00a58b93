package index

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

type memStore struct {
	mu      sync.Mutex
	hashes  map[string]string
	stubs   map[string][]Stub
	upserts int
	deletes int
}

func newMemStore() *memStore {
	return &memStore{hashes: map[string]string{}, stubs: map[string][]Stub{}}
}

func (m *memStore) LoadFile(path string) (string, []Stub, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hashes[path], append([]Stub(nil), m.stubs[path]...), nil
}

func (m *memStore) UpsertFile(path, hash string, stubs []Stub) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hashes[path] = hash
	m.stubs[path] = append([]Stub(nil), stubs...)
	m.upserts++
	return nil
}

func (m *memStore) DeleteFile(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.hashes, path)
	delete(m.stubs, path)
	m.deletes++
	return nil
}

func (m *memStore) PruneToPaths(paths []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	keep := map[string]bool{}
	for _, p := range paths {
		keep[p] = true
	}
	for p := range m.hashes {
		if !keep[p] {
			delete(m.hashes, p)
			delete(m.stubs, p)
		}
	}
	return nil
}

func mustAdd(t *testing.T, p *Project, path, src string) FileInfo {
	t.Helper()
	info, err := p.AddSource(path, src)
	if err != nil {
		t.Fatalf("AddSource(%s): %v", path, err)
	}
	return info
}

func TestFindUserVars_OrderedByPathThenOffset(t *testing.T) {
	p := New(nil)
	mustAdd(t, p, "b.awk", `BEGIN { total = 1; print total }`)
	mustAdd(t, p, "a.awk", `{ total += $1 } END { print total }`)

	all := p.FindUserVars("total", false)
	if len(all) != 4 {
		t.Fatalf("expected 4 occurrences, got %d", len(all))
	}
	wantFiles := []string{"a.awk", "a.awk", "b.awk", "b.awk"}
	for i, n := range all {
		if n.File().Path != wantFiles[i] {
			t.Errorf("occurrence %d in %s, want %s", i, n.File().Path, wantFiles[i])
		}
		if i > 0 && all[i-1].File() == n.File() && all[i-1].Span.Start >= n.Span.Start {
			t.Errorf("occurrence %d out of offset order", i)
		}
	}

	decls := p.FindUserVars("total", true)
	if len(decls) != 1 {
		t.Fatalf("expected 1 declaration, got %d", len(decls))
	}
	if decls[0].File().Path != "b.awk" || decls[0].Parent.Op != "=" {
		t.Errorf("unexpected declaration %v in %s", decls[0].Parent, decls[0].File().Path)
	}

	if got := p.FindUserVars("missing", false); len(got) != 0 {
		t.Errorf("expected no matches, got %d", len(got))
	}
}

func TestAddSource_ReplacesPreviousVersion(t *testing.T) {
	p := New(nil)
	mustAdd(t, p, "a.awk", `BEGIN { old = 1 }`)
	info := mustAdd(t, p, "a.awk", `BEGIN { fresh = 1 }`)
	if info.Unchanged || info.Identifiers != 1 || info.Declarations != 1 {
		t.Errorf("unexpected info %+v", info)
	}
	if got := p.Symbols("old", false); len(got) != 0 {
		t.Errorf("expected old stubs to be dropped, got %v", got)
	}
	if got := p.Symbols("fresh", true); len(got) != 1 {
		t.Errorf("expected fresh declaration, got %v", got)
	}

	again := mustAdd(t, p, "a.awk", `BEGIN { fresh = 1 }`)
	if !again.Unchanged {
		t.Error("expected identical content to be reported unchanged")
	}
}

func TestAddSource_ReusesStoredStubsAndParsesLazily(t *testing.T) {
	store := newMemStore()
	src := `BEGIN { split("", seen); seen["k"] = 1 } { if (!seen[$0]) print }`

	first := New(store)
	info := mustAdd(t, first, "x.awk", src)
	if info.FromStore {
		t.Fatal("first index must parse")
	}
	if store.upserts != 1 {
		t.Fatalf("expected one upsert, got %d", store.upserts)
	}

	second := New(store)
	info = mustAdd(t, second, "x.awk", src)
	if !info.FromStore {
		t.Fatal("expected stored stubs to be reused")
	}
	if st := second.Stats(); st.Parsed != 0 || st.Identifiers != 3 || st.Declarations != 2 {
		t.Fatalf("unexpected stats before lookup %+v", st)
	}

	live := first.FindUserVars("seen", false)
	lazy := second.FindUserVars("seen", false)
	if len(lazy) != len(live) {
		t.Fatalf("lazy lookup returned %d nodes, live %d", len(lazy), len(live))
	}
	for i := range live {
		if lazy[i].Name != live[i].Name || lazy[i].Span != live[i].Span || lazy[i].Parent.Kind != live[i].Parent.Kind {
			t.Errorf("node %d differs: lazy %v@%d live %v@%d", i, lazy[i].Parent, lazy[i].Span.Start, live[i].Parent, live[i].Span.Start)
		}
	}
	if st := second.Stats(); st.Parsed != 1 {
		t.Errorf("expected file to be parsed after lookup, got %+v", st)
	}
	if store.upserts != 1 {
		t.Errorf("reuse must not rewrite the store, got %d upserts", store.upserts)
	}

	third := New(store)
	info = mustAdd(t, third, "x.awk", src+"\nEND { print n }\n")
	if info.FromStore {
		t.Error("changed content must be reparsed")
	}
	if store.upserts != 2 {
		t.Errorf("expected changed content to be persisted, got %d upserts", store.upserts)
	}
}

func TestRemoveFileAndPrune(t *testing.T) {
	store := newMemStore()
	p := New(store)
	mustAdd(t, p, "a.awk", `BEGIN { x = 1 }`)
	mustAdd(t, p, "b.awk", `BEGIN { x = 2 }`)
	mustAdd(t, p, "c.awk", `BEGIN { x = 3 }`)

	if err := p.RemoveFile("a.awk"); err != nil {
		t.Fatal(err)
	}
	if p.Has("a.awk") {
		t.Error("a.awk still indexed")
	}
	if store.deletes != 1 {
		t.Errorf("expected store delete, got %d", store.deletes)
	}

	if err := p.Prune([]string{"c.awk"}); err != nil {
		t.Fatal(err)
	}
	if paths := p.Paths(); len(paths) != 1 || paths[0] != "c.awk" {
		t.Errorf("unexpected paths after prune %v", paths)
	}
	if got := p.Symbols("x", false); len(got) != 1 || got[0].File != "c.awk" {
		t.Errorf("unexpected symbols after prune %v", got)
	}
	if _, ok := store.hashes["b.awk"]; ok {
		t.Error("prune must reach the store")
	}
}

func TestDeclarationStub(t *testing.T) {
	p := New(nil)
	mustAdd(t, p, "a.awk", `BEGIN { x = 1; print x }`)
	stubs := p.FileStubs("a.awk")
	if len(stubs) != 2 {
		t.Fatalf("expected 2 stubs, got %d", len(stubs))
	}
	if v, ok := p.DeclarationStub("a.awk", stubs[0].Offset); !ok || !v {
		t.Error("expected first x to be a recorded declaration")
	}
	if v, ok := p.DeclarationStub("a.awk", stubs[1].Offset); !ok || v {
		t.Error("expected second x to be a recorded use")
	}
	if _, ok := p.DeclarationStub("a.awk", 1); ok {
		t.Error("expected no stub at a non-identifier offset")
	}
	if _, ok := p.DeclarationStub("none.awk", 0); ok {
		t.Error("expected no stub for unknown file")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScanDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.awk"), "BEGIN { x = 1 }\n")
	writeFile(t, filepath.Join(root, "sub", "b.AWK"), "{ print x }\n")
	writeFile(t, filepath.Join(root, "vendor", "c.awk"), "BEGIN { y = 1 }\n")
	writeFile(t, filepath.Join(root, "gen_d.awk"), "BEGIN { z = 1 }\n")
	writeFile(t, filepath.Join(root, "notes.txt"), "x = 1\n")

	filter, err := NewFilter([]string{"awk"}, []string{"vendor"}, []string{"gen_*"})
	if err != nil {
		t.Fatal(err)
	}

	p := New(nil)
	res, err := p.ScanDirectory(context.Background(), root, filter)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Paths) != 2 || res.Parsed != 2 || res.Failed != 0 {
		t.Fatalf("unexpected scan result %+v", res)
	}
	if got := p.FindUserVars("x", false); len(got) != 2 {
		t.Errorf("expected x in both files, got %d", len(got))
	}
	if got := p.Symbols("y", false); len(got) != 0 {
		t.Error("excluded directory was indexed")
	}

	again, err := p.ScanDirectory(context.Background(), root, filter)
	if err != nil {
		t.Fatal(err)
	}
	if again.Unchanged != 2 {
		t.Errorf("expected rescan to find unchanged files, got %+v", again)
	}
}

func TestScanDirectory_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.awk"), "BEGIN { x = 1 }\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(nil).ScanDirectory(ctx, root, DefaultFilter()); err == nil {
		t.Error("expected cancellation error")
	}
}

func TestFilter(t *testing.T) {
	f, err := NewFilter([]string{".awk"}, []string{".git", "node_*"}, []string{"*_test.awk"})
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		path string
		want bool
	}{
		{"x/main.awk", true},
		{"x/MAIN.AWK", true},
		{"x/main_test.awk", false},
		{"x/main.sh", false},
	}
	for _, tc := range cases {
		if got := f.IncludeFile(tc.path); got != tc.want {
			t.Errorf("IncludeFile(%s) = %v, want %v", tc.path, got, tc.want)
		}
	}
	if !f.SkipDir("/repo/.git") || !f.SkipDir("node_modules") || f.SkipDir("src") {
		t.Error("unexpected SkipDir result")
	}
	if !f.InExcludedDir("/repo", "/repo/node_modules/lib/a.awk") {
		t.Error("expected nested excluded directory to be detected")
	}
	if f.InExcludedDir("/repo", "/repo/src/a.awk") {
		t.Error("unexpected exclusion for src")
	}

	if _, err := NewFilter(nil, []string{"[unclosed"}, nil); err == nil {
		t.Error("expected invalid glob to fail")
	}
}

func TestProject_ConcurrentReaders(t *testing.T) {
	p := New(nil)
	mustAdd(t, p, "a.awk", `BEGIN { n = 0 } { n++ } END { print n }`)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if got := p.FindUserVars("n", false); len(got) == 0 {
					t.Error("expected matches")
					return
				}
			}
		}()
	}
	for i := 0; i < 20; i++ {
		if _, err := p.AddSource("b.awk", `{ n = NR }`+string(rune('a'+i))); err != nil {
			t.Error(err)
		}
	}
	wg.Wait()
}
