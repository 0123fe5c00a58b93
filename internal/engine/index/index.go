// Package index keeps the project-wide view of AWK sources: one entry per
// file with its content hash, identifier stubs and a lazily parsed tree.
package index

import (
	"awkref/internal/engine/decl"
	"awkref/internal/engine/syntax"
	"awkref/internal/shared/util"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Stub is the precomputed summary of one identifier occurrence.
type Stub struct {
	File        string `json:"file"`
	Name        string `json:"name"`
	Offset      int    `json:"offset"`
	Line        int    `json:"line"`
	Column      int    `json:"column"`
	Declaration bool   `json:"declaration"`
}

// StubStore persists stubs between runs. LoadFile returns an empty hash
// when nothing is stored for path.
type StubStore interface {
	LoadFile(path string) (hash string, stubs []Stub, err error)
	UpsertFile(path, hash string, stubs []Stub) error
	DeleteFile(path string) error
	PruneToPaths(paths []string) error
}

// FileInfo describes the outcome of indexing one file.
type FileInfo struct {
	Path         string
	Hash         string
	Identifiers  int
	Declarations int
	SyntaxErrors int
	FromStore    bool
	Unchanged    bool
}

// Stats summarises the index.
type Stats struct {
	Files        int `json:"files"`
	Parsed       int `json:"parsed"`
	Identifiers  int `json:"identifiers"`
	Declarations int `json:"declarations"`
	Names        int `json:"names"`
}

type entry struct {
	path   string
	hash   string
	source string
	stubs  []Stub

	mu   sync.Mutex
	file *syntax.File
}

// tree parses the entry on first use.
func (e *entry) tree() *syntax.File {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.file == nil {
		e.file = syntax.Parse(e.path, e.source)
	}
	return e.file
}

func (e *entry) parsed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.file != nil
}

// Project is a thread-safe index over the files of one project.
type Project struct {
	mu     sync.RWMutex
	files  map[string]*entry
	byName map[string][]Stub

	store      StubStore
	classifier decl.Classifier
}

// New creates an empty project. store may be nil.
func New(store StubStore) *Project {
	return &Project{
		files:      make(map[string]*entry),
		byName:     make(map[string][]Stub),
		store:      store,
		classifier: decl.Tree{},
	}
}

// ComputeStubs classifies every identifier of f.
func ComputeStubs(f *syntax.File, c decl.Classifier) []Stub {
	ids := f.Identifiers()
	out := make([]Stub, 0, len(ids))
	for _, id := range ids {
		out = append(out, Stub{
			File:        f.Path,
			Name:        id.Name,
			Offset:      id.Span.Start,
			Line:        id.Pos.Line,
			Column:      id.Pos.Column,
			Declaration: c.IsDeclaration(id),
		})
	}
	return out
}

// AddSource indexes content under path, replacing any previous version.
// When a store is attached and holds stubs for the same content hash, the
// stubs are reused and parsing is deferred until a node is requested.
func (p *Project) AddSource(path, content string) (FileInfo, error) {
	hash := util.HashContent(content)
	info := FileInfo{Path: path, Hash: hash}

	p.mu.RLock()
	if cur, ok := p.files[path]; ok && cur.hash == hash {
		info.Identifiers, info.Declarations = countStubs(cur.stubs)
		p.mu.RUnlock()
		info.Unchanged = true
		return info, nil
	}
	p.mu.RUnlock()

	e := &entry{path: path, hash: hash, source: content}

	if p.store != nil {
		storedHash, stubs, err := p.store.LoadFile(path)
		if err != nil {
			slog.Warn("stub store load failed, reparsing", "path", path, "error", err)
		} else if storedHash == hash {
			e.stubs = stubs
			info.FromStore = true
		}
	}

	if !info.FromStore {
		e.file = syntax.Parse(path, content)
		e.stubs = ComputeStubs(e.file, p.classifier)
		info.SyntaxErrors = len(e.file.Errors)
		if p.store != nil {
			if err := p.store.UpsertFile(path, hash, e.stubs); err != nil {
				return info, fmt.Errorf("persist stubs for %s: %w", path, err)
			}
		}
	}
	info.Identifiers, info.Declarations = countStubs(e.stubs)

	p.mu.Lock()
	if old, ok := p.files[path]; ok {
		p.dropNamesLocked(old)
	}
	p.files[path] = e
	for _, s := range e.stubs {
		p.byName[s.Name] = append(p.byName[s.Name], s)
	}
	p.mu.Unlock()

	slog.Debug("indexed file", "path", path, "identifiers", info.Identifiers, "from_store", info.FromStore)
	return info, nil
}

func countStubs(stubs []Stub) (ids, decls int) {
	for _, s := range stubs {
		if s.Declaration {
			decls++
		}
	}
	return len(stubs), decls
}

func (p *Project) dropNamesLocked(e *entry) {
	seen := make(map[string]bool)
	for _, s := range e.stubs {
		if seen[s.Name] {
			continue
		}
		seen[s.Name] = true
		kept := p.byName[s.Name][:0:0]
		for _, other := range p.byName[s.Name] {
			if other.File != e.path {
				kept = append(kept, other)
			}
		}
		if len(kept) == 0 {
			delete(p.byName, s.Name)
		} else {
			p.byName[s.Name] = kept
		}
	}
}

// RemoveFile drops path from the index and from the attached store.
func (p *Project) RemoveFile(path string) error {
	p.mu.Lock()
	if e, ok := p.files[path]; ok {
		p.dropNamesLocked(e)
		delete(p.files, path)
	}
	p.mu.Unlock()

	if p.store != nil {
		if err := p.store.DeleteFile(path); err != nil {
			return fmt.Errorf("delete stubs for %s: %w", path, err)
		}
	}
	return nil
}

// Prune removes every file not in keep, in memory and in the store.
func (p *Project) Prune(keep []string) error {
	want := make(map[string]bool, len(keep))
	for _, k := range keep {
		want[k] = true
	}
	p.mu.Lock()
	for path, e := range p.files {
		if !want[path] {
			p.dropNamesLocked(e)
			delete(p.files, path)
		}
	}
	p.mu.Unlock()

	if p.store != nil {
		if err := p.store.PruneToPaths(keep); err != nil {
			return fmt.Errorf("prune stub store: %w", err)
		}
	}
	return nil
}

// Has reports whether path is indexed.
func (p *Project) Has(path string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.files[path]
	return ok
}

// File returns the parsed tree for path, parsing it on first access.
func (p *Project) File(path string) (*syntax.File, bool) {
	p.mu.RLock()
	e, ok := p.files[path]
	p.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return e.tree(), true
}

// Source returns the indexed content of path.
func (p *Project) Source(path string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.files[path]
	if !ok {
		return "", false
	}
	return e.source, true
}

// Paths returns the indexed file paths in sorted order.
func (p *Project) Paths() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return util.SortedStringKeys(p.files)
}

// FileStubs returns a copy of the stubs recorded for path.
func (p *Project) FileStubs(path string) []Stub {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.files[path]
	if !ok {
		return nil
	}
	return append([]Stub(nil), e.stubs...)
}

// DeclarationStub reports the recorded declaration flag of the identifier
// starting at offset in path.
func (p *Project) DeclarationStub(path string, offset int) (bool, bool) {
	p.mu.RLock()
	e, ok := p.files[path]
	p.mu.RUnlock()
	if !ok {
		return false, false
	}
	stubs := e.stubs
	i := sort.Search(len(stubs), func(i int) bool { return stubs[i].Offset >= offset })
	if i < len(stubs) && stubs[i].Offset == offset {
		return stubs[i].Declaration, true
	}
	return false, false
}

// Symbols returns the stubs named name ordered by file path then offset.
// No file is parsed.
func (p *Project) Symbols(name string, declarationsOnly bool) []Stub {
	p.mu.RLock()
	matches := p.byName[name]
	out := make([]Stub, 0, len(matches))
	for _, s := range matches {
		if declarationsOnly && !s.Declaration {
			continue
		}
		out = append(out, s)
	}
	p.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Offset < out[j].Offset
	})
	return out
}

// FindUserVars returns the identifier nodes named name across the project,
// ordered by file path then byte offset. Files are parsed on demand.
func (p *Project) FindUserVars(name string, declarationsOnly bool) []*syntax.Node {
	stubs := p.Symbols(name, declarationsOnly)
	out := make([]*syntax.Node, 0, len(stubs))
	for _, s := range stubs {
		f, ok := p.File(s.File)
		if !ok {
			continue
		}
		id := f.IdentifierAt(s.Offset)
		if id == nil || id.Name != s.Name {
			slog.Warn("stale stub skipped", "path", s.File, "name", s.Name, "offset", s.Offset)
			continue
		}
		out = append(out, id)
	}
	return out
}

// Stats returns counters over the current index state.
func (p *Project) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	st := Stats{Files: len(p.files), Names: len(p.byName)}
	for _, e := range p.files {
		ids, decls := countStubs(e.stubs)
		st.Identifiers += ids
		st.Declarations += decls
		if e.parsed() {
			st.Parsed++
		}
	}
	return st
}
