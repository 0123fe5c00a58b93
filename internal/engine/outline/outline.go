// Package outline lists the top-level structure of an AWK file: BEGIN and
// END blocks and function definitions.
package outline

import (
	"awkref/internal/engine/syntax"
	"sort"
	"strings"
)

type Kind string

const (
	KindBegin    Kind = "BEGIN"
	KindEnd      Kind = "END"
	KindFunction Kind = "function"
)

// Entry is one navigable outline item.
type Entry struct {
	Kind    Kind   `json:"kind"`
	Name    string `json:"name"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Offset  int    `json:"offset"`
	SortKey string `json:"-"`
}

// Build returns the entries of f in source order. Items without a function
// name or BEGIN/END pattern are not part of the outline.
func Build(f *syntax.File) []Entry {
	if f == nil || f.Root == nil {
		return nil
	}
	var out []Entry
	for _, item := range f.Root.Children {
		if item.Kind != syntax.KindItem {
			continue
		}
		if e, ok := entryFor(item); ok {
			out = append(out, e)
		}
	}
	return out
}

func entryFor(item *syntax.Node) (Entry, bool) {
	if fn := item.FunctionName(); fn != nil {
		return Entry{
			Kind:    KindFunction,
			Name:    fn.Name,
			Line:    fn.Pos.Line,
			Column:  fn.Pos.Column,
			Offset:  fn.Span.Start,
			SortKey: "002" + fn.Name,
		}, true
	}
	pat := item.ChildOfKind(syntax.KindPattern)
	if pat == nil {
		return Entry{}, false
	}
	be := pat.ChildOfKind(syntax.KindBeginEnd)
	if be == nil {
		return Entry{}, false
	}
	kind := KindBegin
	if strings.HasPrefix(be.Name, "END") {
		kind = KindEnd
	}
	return Entry{
		Kind:    kind,
		Name:    be.Name,
		Line:    be.Pos.Line,
		Column:  be.Pos.Column,
		Offset:  be.Span.Start,
		SortKey: "001" + be.Name,
	}, true
}

// Sorted returns the entries of f ordered by sort key: BEGIN/END blocks
// first, then functions, each alphabetically. Ties keep source order.
func Sorted(f *syntax.File) []Entry {
	entries := Build(f)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].SortKey < entries[j].SortKey
	})
	return entries
}
