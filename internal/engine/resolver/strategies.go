package resolver

import (
	"awkref/internal/engine/syntax"
)

// functionArgument binds the occurrence to a parameter of its nearest
// enclosing function. Outer functions are never consulted.
func (r *Resolver) functionArgument(occ *syntax.Node) Outcome {
	var fn *syntax.Node
	occ.Ancestors(func(n *syntax.Node) bool {
		if n.Kind == syntax.KindFile {
			return false
		}
		if n.IsFunctionDefinition() {
			fn = n
			return false
		}
		return true
	})
	if fn == nil {
		return Outcome{}
	}
	for _, p := range fn.Params() {
		if p.Kind == syntax.KindIdentifier && p.Name == occ.Name {
			return outcomeFor(occ, p)
		}
	}
	return Outcome{}
}

// fileDeclaration takes the first declaration-shaped occurrence of the name
// in a pre-order walk of the containing file.
func (r *Resolver) fileDeclaration(occ *syntax.Node) Outcome {
	f := occ.File()
	if f == nil || f.Root == nil {
		return Outcome{}
	}
	found := syntax.Find(f.Root, func(n *syntax.Node) bool {
		return n.Kind == syntax.KindIdentifier && n.Name == occ.Name && r.classifier.IsDeclaration(n)
	})
	return outcomeFor(occ, found)
}

func (r *Resolver) projectDeclaration(occ *syntax.Node) Outcome {
	return r.projectFirst(occ, true)
}

func (r *Resolver) projectUse(occ *syntax.Node) Outcome {
	return r.projectFirst(occ, false)
}

func (r *Resolver) projectFirst(occ *syntax.Node, declarationsOnly bool) Outcome {
	if r.index == nil {
		return Outcome{}
	}
	matches := r.index.FindUserVars(occ.Name, declarationsOnly)
	if len(matches) == 0 {
		return Outcome{}
	}
	return outcomeFor(occ, matches[0])
}
