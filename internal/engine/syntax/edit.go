package syntax

import (
	"awkref/internal/core/errors"
	"fmt"
	"sort"
	"strings"
)

// TextEdit replaces Source[Start:End] of the file at Path with NewText.
type TextEdit struct {
	Path    string `json:"path"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	OldText string `json:"old_text"`
	NewText string `json:"new_text"`
}

// RenameIdentifier returns the edit that replaces the name of an
// identifier node. The tree itself is never mutated; callers apply the
// edit and reparse.
func RenameIdentifier(n *Node, newName string) (TextEdit, error) {
	if n == nil || n.Kind != KindIdentifier {
		return TextEdit{}, errors.New(errors.CodeValidationError, "rename target is not an identifier")
	}
	if !IsValidName(newName) {
		de := &errors.DomainError{Code: errors.CodeValidationError, Message: fmt.Sprintf("invalid variable name %q", newName)}
		return TextEdit{}, de.WithContext(errors.CtxSymbol, n.Name)
	}
	edit := TextEdit{
		Start:   n.Span.Start,
		End:     n.Span.End,
		Line:    n.Pos.Line,
		Column:  n.Pos.Column,
		OldText: n.Name,
		NewText: newName,
	}
	if f := n.File(); f != nil {
		edit.Path = f.Path
	}
	return edit, nil
}

// ApplyEdits applies edits to source. Edits may be given in any order but
// must not overlap.
func ApplyEdits(source string, edits []TextEdit) (string, error) {
	if len(edits) == 0 {
		return source, nil
	}
	sorted := make([]TextEdit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var b strings.Builder
	b.Grow(len(source))
	pos := 0
	for _, e := range sorted {
		if e.Start < 0 || e.End < e.Start || e.End > len(source) {
			return "", errors.New(errors.CodeValidationError, fmt.Sprintf("edit [%d,%d) out of range", e.Start, e.End))
		}
		if e.Start < pos {
			return "", errors.New(errors.CodeConflict, fmt.Sprintf("edit at offset %d overlaps a previous edit", e.Start))
		}
		b.WriteString(source[pos:e.Start])
		b.WriteString(e.NewText)
		pos = e.End
	}
	b.WriteString(source[pos:])
	return b.String(), nil
}
