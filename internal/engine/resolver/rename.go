package resolver

import (
	"awkref/internal/core/errors"
	"awkref/internal/engine/syntax"
	"sort"
)

// HandleRename replaces the name of the occurrence itself. Name validation
// failures are returned to the caller unchanged.
func (r *Resolver) HandleRename(occ *syntax.Node, newName string) (syntax.TextEdit, error) {
	return syntax.RenameIdentifier(occ, newName)
}

// Plan is the set of edits that renames one binding across the project.
type Plan struct {
	OldName string            `json:"old_name"`
	NewName string            `json:"new_name"`
	Anchor  syntax.TextEdit   `json:"anchor"`
	Edits   []syntax.TextEdit `json:"edits"`
}

// Paths returns the distinct files touched by the plan in sorted order.
func (p Plan) Paths() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range p.Edits {
		if !seen[e.Path] {
			seen[e.Path] = true
			out = append(out, e.Path)
		}
	}
	sort.Strings(out)
	return out
}

// PlanRename computes the edits renaming the binding occ belongs to. The
// anchor is the declaration occ resolves to, or occ itself when it
// resolves to nothing or to itself. Every same-named occurrence that
// resolves to the anchor is renamed with it.
func (r *Resolver) PlanRename(occ *syntax.Node, newName string) (Plan, error) {
	if _, err := syntax.RenameIdentifier(occ, newName); err != nil {
		return Plan{}, err
	}
	if newName == occ.Name {
		return Plan{}, errors.New(errors.CodeValidationError, "new name equals the current name")
	}

	anchor := occ
	if res, ok := r.ResolveOne(occ); ok {
		anchor = res.Target
	}
	anchorEdit, err := syntax.RenameIdentifier(anchor, newName)
	if err != nil {
		return Plan{}, err
	}

	var candidates []*syntax.Node
	if r.index != nil {
		candidates = r.index.FindUserVars(occ.Name, false)
	}
	candidates = append(candidates, fileOccurrences(occ)...)
	candidates = append(candidates, fileOccurrences(anchor)...)

	plan := Plan{OldName: occ.Name, NewName: newName, Anchor: anchorEdit}
	type key struct {
		path  string
		start int
	}
	seen := make(map[key]bool)
	for _, c := range candidates {
		if !r.bindsTo(c, anchor) {
			continue
		}
		edit, err := syntax.RenameIdentifier(c, newName)
		if err != nil {
			return Plan{}, err
		}
		k := key{edit.Path, edit.Start}
		if seen[k] {
			continue
		}
		seen[k] = true
		plan.Edits = append(plan.Edits, edit)
	}

	sort.SliceStable(plan.Edits, func(i, j int) bool {
		if plan.Edits[i].Path != plan.Edits[j].Path {
			return plan.Edits[i].Path < plan.Edits[j].Path
		}
		return plan.Edits[i].Start < plan.Edits[j].Start
	})
	return plan, nil
}

func (r *Resolver) bindsTo(c, anchor *syntax.Node) bool {
	if sameOccurrence(c, anchor) {
		return true
	}
	res, ok := r.ResolveOne(c)
	return ok && sameOccurrence(res.Target, anchor)
}

// fileOccurrences lists same-named identifiers of the file holding n. It
// covers trees that are not part of the index.
func fileOccurrences(n *syntax.Node) []*syntax.Node {
	f := n.File()
	if f == nil {
		return []*syntax.Node{n}
	}
	var out []*syntax.Node
	for _, id := range f.Identifiers() {
		if id.Name == n.Name {
			out = append(out, id)
		}
	}
	return out
}
