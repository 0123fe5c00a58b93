// Package decl decides whether an identifier occurrence looks like the
// place where an AWK variable is first bound. AWK has no declarations, so
// the decision is made from the local tree shape alone.
package decl

import (
	"awkref/internal/engine/syntax"
	"strings"
	"unicode"
)

// Shape names the recognised declaration pattern.
type Shape uint8

const (
	ShapeNone Shape = iota
	ShapeAssign
	ShapeIndexedAssign
	ShapeBareIndex
	ShapeSplitIdiom
)

func (s Shape) String() string {
	switch s {
	case ShapeAssign:
		return "assign"
	case ShapeIndexedAssign:
		return "indexed-assign"
	case ShapeBareIndex:
		return "bare-index"
	case ShapeSplitIdiom:
		return "split-idiom"
	}
	return "none"
}

// Classifier reports whether an identifier is a declaration site.
// Implementations must be pure and must never resolve other references.
type Classifier interface {
	IsDeclaration(id *syntax.Node) bool
}

// Tree classifies identifiers by inspecting the live tree.
type Tree struct{}

func (Tree) IsDeclaration(id *syntax.Node) bool {
	return Classify(id) != ShapeNone
}

// Classify returns the first matching declaration shape, checked in
// priority order. Only the parent chain up to the enclosing simple
// statement is inspected.
func Classify(id *syntax.Node) Shape {
	if id == nil || id.Kind != syntax.KindIdentifier || id.Parent == nil {
		return ShapeNone
	}
	parent := id.Parent
	switch parent.Kind {
	case syntax.KindAssignment:
		if isStatementAssignment(parent) && parent.FirstChild() == id {
			return ShapeAssign
		}
	case syntax.KindIndex:
		if parent.FirstChild() != id {
			return ShapeNone
		}
		outer := parent.Parent
		if outer == nil {
			return ShapeNone
		}
		if outer.Kind == syntax.KindAssignment && isStatementAssignment(outer) && outer.FirstChild() == parent {
			return ShapeIndexedAssign
		}
		if outer.Kind == syntax.KindSimpleStatement && len(outer.Children) == 1 {
			return ShapeBareIndex
		}
	case syntax.KindArgList:
		if isSplitIdiom(id, parent) {
			return ShapeSplitIdiom
		}
	}
	return ShapeNone
}

func isStatementAssignment(n *syntax.Node) bool {
	return n.Op == "=" && n.Parent != nil && n.Parent.Kind == syntax.KindSimpleStatement
}

func isSplitIdiom(id, args *syntax.Node) bool {
	call := args.Parent
	if call == nil || call.Kind != syntax.KindCall {
		return false
	}
	name := call.ChildOfKind(syntax.KindBuiltinName)
	if name == nil || name.Name != "split" {
		return false
	}
	return stripSpace(call.Text()) == `split("",`+id.Name+`)`
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// StubSource supplies precomputed declaration flags keyed by file path and
// identifier byte offset.
type StubSource interface {
	DeclarationStub(path string, offset int) (isDeclaration bool, ok bool)
}

// Stub answers from precomputed stubs and falls back to the live tree when
// no stub is recorded for the occurrence.
type Stub struct {
	Source   StubSource
	Fallback Classifier
}

func NewStub(source StubSource) *Stub {
	return &Stub{Source: source, Fallback: Tree{}}
}

func (s *Stub) IsDeclaration(id *syntax.Node) bool {
	if id == nil || id.Kind != syntax.KindIdentifier {
		return false
	}
	if s.Source != nil {
		if f := id.File(); f != nil {
			if v, ok := s.Source.DeclarationStub(f.Path, id.Span.Start); ok {
				return v
			}
		}
	}
	if s.Fallback == nil {
		return false
	}
	return s.Fallback.IsDeclaration(id)
}
