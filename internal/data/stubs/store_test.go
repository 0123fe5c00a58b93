package stubs

import (
	"awkref/internal/engine/index"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T, path, key string) *Store {
	t.Helper()
	store, err := Open(path, key, 0)
	if err != nil {
		t.Fatalf("open stub store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleStubs(path string) []index.Stub {
	return []index.Stub{
		{File: path, Name: "total", Offset: 8, Line: 1, Column: 9, Declaration: true},
		{File: path, Name: "total", Offset: 30, Line: 2, Column: 9},
		{File: path, Name: "n", Offset: 41, Line: 3, Column: 3},
	}
}

func TestStore_UpsertLoadAndLookup(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "stubs.db"), "proj-a")

	hash, stubs, err := store.LoadFile("a.awk")
	if err != nil || hash != "" || len(stubs) != 0 {
		t.Fatalf("expected empty load for unknown file, got %q %v %v", hash, stubs, err)
	}

	if err := store.UpsertFile("b.awk", "h-b", sampleStubs("b.awk")); err != nil {
		t.Fatalf("upsert b.awk: %v", err)
	}
	if err := store.UpsertFile("a.awk", "h-a", sampleStubs("a.awk")[:2]); err != nil {
		t.Fatalf("upsert a.awk: %v", err)
	}

	hash, stubs, err = store.LoadFile("b.awk")
	if err != nil {
		t.Fatal(err)
	}
	if hash != "h-b" || len(stubs) != 3 {
		t.Fatalf("unexpected load result %q %v", hash, stubs)
	}
	if stubs[0] != sampleStubs("b.awk")[0] {
		t.Errorf("stub round trip mismatch: %+v", stubs[0])
	}

	all := store.Lookup("total", false)
	if len(all) != 4 {
		t.Fatalf("expected 4 occurrences, got %d", len(all))
	}
	if all[0].File != "a.awk" || all[2].File != "b.awk" || all[0].Offset > all[1].Offset {
		t.Errorf("lookup not ordered by path then offset: %+v", all)
	}
	decls := store.Lookup("total", true)
	if len(decls) != 2 {
		t.Errorf("expected 2 declarations, got %d", len(decls))
	}

	if err := store.UpsertFile("b.awk", "h-b2", nil); err != nil {
		t.Fatal(err)
	}
	if got := store.Lookup("total", false); len(got) != 2 {
		t.Errorf("expected replaced file to drop its stubs, got %d", len(got))
	}
	hash, _, _ = store.LoadFile("b.awk")
	if hash != "h-b2" {
		t.Errorf("expected new hash, got %q", hash)
	}
}

func TestStore_DeleteAndPrune(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "stubs.db"), "")
	if store.ProjectKey() != "default" {
		t.Errorf("expected default project key, got %q", store.ProjectKey())
	}
	for _, p := range []string{"a.awk", "b.awk", "c.awk"} {
		if err := store.UpsertFile(p, "h-"+p, sampleStubs(p)); err != nil {
			t.Fatal(err)
		}
	}

	if err := store.DeleteFile("a.awk"); err != nil {
		t.Fatal(err)
	}
	if hash, _, _ := store.LoadFile("a.awk"); hash != "" {
		t.Error("deleted file still stored")
	}

	if err := store.PruneToPaths([]string{"c.awk"}); err != nil {
		t.Fatal(err)
	}
	paths, err := store.Paths()
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 || paths[0] != "c.awk" {
		t.Fatalf("unexpected paths after prune %v", paths)
	}
	if got := store.Lookup("n", false); len(got) != 1 || got[0].File != "c.awk" {
		t.Errorf("unexpected lookup after prune %+v", got)
	}

	if err := store.PruneToPaths(nil); err != nil {
		t.Fatal(err)
	}
	if got := store.Lookup("n", false); len(got) != 0 {
		t.Errorf("expected empty store, got %+v", got)
	}
}

func TestStore_ProjectIsolationAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "stubs.db")
	a := openTestStore(t, path, "proj-a")
	b := openTestStore(t, path, "proj-b")

	if err := a.UpsertFile("x.awk", "ha", sampleStubs("x.awk")); err != nil {
		t.Fatal(err)
	}
	if got := b.Lookup("total", false); len(got) != 0 {
		t.Fatalf("project b sees project a stubs: %+v", got)
	}
	if err := b.PruneToPaths(nil); err != nil {
		t.Fatal(err)
	}
	if got := a.Lookup("total", false); len(got) != 2 {
		t.Fatalf("prune of project b touched project a: %+v", got)
	}

	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	again := openTestStore(t, path, "proj-a")
	if hash, stubs, err := again.LoadFile("x.awk"); err != nil || hash != "ha" || len(stubs) != 3 {
		t.Errorf("reopen lost data: %q %v %v", hash, stubs, err)
	}
}

func TestOpen_RejectsBadPaths(t *testing.T) {
	if _, err := Open("  ", "", 0); err == nil {
		t.Error("expected empty path to fail")
	}
	if _, err := Open(t.TempDir(), "", 0); err == nil {
		t.Error("expected directory path to fail")
	}
}

func TestStore_BacksProjectIndex(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "stubs.db"), "")
	src := `BEGIN { total = 0 } { total += $1 } END { print total }`

	first := index.New(store)
	if _, err := first.AddSource("sum.awk", src); err != nil {
		t.Fatal(err)
	}

	second := index.New(store)
	info, err := second.AddSource("sum.awk", src)
	if err != nil {
		t.Fatal(err)
	}
	if !info.FromStore {
		t.Fatal("expected the second index to reuse stored stubs")
	}
	if got := second.FindUserVars("total", true); len(got) != 1 || got[0].Span.Start != 8 {
		t.Errorf("unexpected declaration lookup %v", got)
	}
	if got := store.Lookup("total", false); len(got) != 3 {
		t.Errorf("expected 3 stored occurrences, got %d", len(got))
	}
}
