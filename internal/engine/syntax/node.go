package syntax

import (
	"strconv"
	"strings"
)

// Kind tags every node in the concrete tree. The set is closed; consumers
// switch over it instead of doing type assertions.
type Kind uint8

const (
	KindError Kind = iota
	KindFile
	KindItem
	KindPattern
	KindBeginEnd
	KindFunctionName
	KindParamList
	KindBlock
	KindSimpleStatement
	KindStatement
	KindAssignment
	KindIndex
	KindCall
	KindBuiltinName
	KindFuncCall
	KindArgList
	KindGroup
	KindBinary
	KindUnary
	KindIncDec
	KindTernary
	KindField
	KindGetline
	KindLiteral
	KindIdentifier
)

var kindNames = [...]string{
	KindError:           "error",
	KindFile:            "file",
	KindItem:            "item",
	KindPattern:         "pattern",
	KindBeginEnd:        "begin_end",
	KindFunctionName:    "function_name",
	KindParamList:       "param_list",
	KindBlock:           "block",
	KindSimpleStatement: "simple_statement",
	KindStatement:       "statement",
	KindAssignment:      "assignment",
	KindIndex:           "index",
	KindCall:            "call",
	KindBuiltinName:     "builtin_name",
	KindFuncCall:        "func_call",
	KindArgList:         "arg_list",
	KindGroup:           "group",
	KindBinary:          "binary",
	KindUnary:           "unary",
	KindIncDec:          "incdec",
	KindTernary:         "ternary",
	KindField:           "field",
	KindGetline:         "getline",
	KindLiteral:         "literal",
	KindIdentifier:      "identifier",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Position is a 1-based line/column pair. Columns count bytes.
type Position struct {
	Line   int
	Column int
}

// Span is a half-open byte range into the file source.
type Span struct {
	Start int
	End   int
}

func (s Span) Len() int { return s.End - s.Start }

func (s Span) Contains(offset int) bool {
	return offset >= s.Start && offset < s.End
}

// Node is one element of the immutable concrete tree.
//
// Name is set for identifiers, function names, built-in names, BEGIN/END
// markers and statement keywords. Op holds the operator of assignments,
// binary, unary and inc/dec expressions, and the literal class
// ("number", "string", "regex") for literals.
type Node struct {
	Kind     Kind
	Name     string
	Op       string
	Span     Span
	Pos      Position
	Parent   *Node
	Children []*Node

	file *File
}

// NewNode creates a detached node. Trees built by hand (tests, synthetic
// fixtures) are linked with Append and attached to a File with NewFile.
func NewNode(kind Kind, name string) *Node {
	return &Node{Kind: kind, Name: name}
}

// Append links children under n in order and returns n.
func (n *Node) Append(children ...*Node) *Node {
	for _, c := range children {
		if c == nil {
			continue
		}
		c.Parent = n
		n.Children = append(n.Children, c)
	}
	return n
}

// File returns the file owning the tree the node belongs to, or nil when
// the node is detached.
func (n *Node) File() *File {
	root := n
	for root != nil && root.Parent != nil {
		root = root.Parent
	}
	if root == nil || root.Kind != KindFile {
		return nil
	}
	return root.file
}

// Text returns the source text covered by the node.
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	f := n.File()
	if f == nil || n.Span.Start < 0 || n.Span.End > len(f.Source) || n.Span.Start > n.Span.End {
		return ""
	}
	return f.Source[n.Span.Start:n.Span.End]
}

// FirstChild returns the first child or nil.
func (n *Node) FirstChild() *Node {
	if n == nil || len(n.Children) == 0 {
		return nil
	}
	return n.Children[0]
}

// ChildOfKind returns the first direct child with the given kind.
func (n *Node) ChildOfKind(kind Kind) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Kind == kind {
			return c
		}
	}
	return nil
}

// FunctionName returns the name node when n is a function definition item.
func (n *Node) FunctionName() *Node {
	if n == nil || n.Kind != KindItem {
		return nil
	}
	return n.ChildOfKind(KindFunctionName)
}

// ParamList returns the parameter list of a function definition item.
func (n *Node) ParamList() *Node {
	if n == nil || n.Kind != KindItem {
		return nil
	}
	return n.ChildOfKind(KindParamList)
}

// Params returns the declared parameters, in order.
func (n *Node) Params() []*Node {
	pl := n.ParamList()
	if pl == nil {
		return nil
	}
	return pl.Children
}

// IsFunctionDefinition reports whether n is an item introduced by
// "function NAME(...)".
func (n *Node) IsFunctionDefinition() bool {
	return n.FunctionName() != nil
}

func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(n.Kind.String())
	if n.Name != "" {
		b.WriteString(" ")
		b.WriteString(n.Name)
	}
	if n.Op != "" {
		b.WriteString(" ")
		b.WriteString(n.Op)
	}
	return b.String()
}

// Ancestors iterates the parent chain of n, nearest first. The iteration
// stops when yield returns false or when a node has no parent.
func (n *Node) Ancestors(yield func(*Node) bool) {
	if n == nil {
		return
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if !yield(p) {
			return
		}
	}
}

// Walk visits n and its descendants in depth-first pre-order. Returning
// false from visit stops the whole walk; Walk reports whether it ran to
// completion.
func Walk(n *Node, visit func(*Node) bool) bool {
	if n == nil {
		return true
	}
	if !visit(n) {
		return false
	}
	for _, c := range n.Children {
		if !Walk(c, visit) {
			return false
		}
	}
	return true
}

// Find returns the first node in pre-order for which match returns true.
func Find(n *Node, match func(*Node) bool) *Node {
	var found *Node
	Walk(n, func(c *Node) bool {
		if match(c) {
			found = c
			return false
		}
		return true
	})
	return found
}

// Error is a syntax error with its location.
type Error struct {
	Pos     Position
	Message string
}

func (e Error) Error() string {
	return strconv.Itoa(e.Pos.Line) + ":" + strconv.Itoa(e.Pos.Column) + ": " + e.Message
}

// File is a parsed AWK source.
type File struct {
	Path   string
	Source string
	Root   *Node
	Errors []Error

	identifiers []*Node
}

// Identifiers returns every identifier occurrence in pre-order, which is
// also ascending offset order.
func (f *File) Identifiers() []*Node {
	if f == nil {
		return nil
	}
	return f.identifiers
}

// IdentifierAt returns the identifier whose span starts at offset.
func (f *File) IdentifierAt(offset int) *Node {
	if f == nil {
		return nil
	}
	ids := f.identifiers
	lo, hi := 0, len(ids)
	for lo < hi {
		mid := (lo + hi) / 2
		if ids[mid].Span.Start < offset {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(ids) && ids[lo].Span.Start == offset {
		return ids[lo]
	}
	return nil
}

// IdentifierCovering returns the identifier whose span contains offset.
// An offset just past the end of a name also matches so that a caret
// placed after the last letter still finds the identifier.
func (f *File) IdentifierCovering(offset int) *Node {
	if f == nil {
		return nil
	}
	for _, id := range f.identifiers {
		if id.Span.Contains(offset) || id.Span.End == offset {
			return id
		}
		if id.Span.Start > offset {
			break
		}
	}
	return nil
}

// Offset converts a 1-based line/column position into a byte offset.
// It returns -1 when the position lies outside the source.
func (f *File) Offset(pos Position) int {
	if f == nil || pos.Line < 1 || pos.Column < 1 {
		return -1
	}
	line := 1
	start := 0
	for line < pos.Line {
		idx := strings.IndexByte(f.Source[start:], '\n')
		if idx < 0 {
			return -1
		}
		start += idx + 1
		line++
	}
	end := strings.IndexByte(f.Source[start:], '\n')
	if end < 0 {
		end = len(f.Source) - start
	}
	if pos.Column-1 > end {
		return -1
	}
	return start + pos.Column - 1
}

// NodeAt returns the identifier at a 1-based line/column position.
func (f *File) NodeAt(line, column int) *Node {
	off := f.Offset(Position{Line: line, Column: column})
	if off < 0 {
		return nil
	}
	return f.IdentifierCovering(off)
}
