// Package resolver binds AWK variable occurrences to the declaration they
// refer to. Resolution runs a fixed chain of strategies; the first one
// that answers, even with "the occurrence is its own declaration", ends
// the chain.
package resolver

import (
	"awkref/internal/engine/decl"
	"awkref/internal/engine/syntax"
)

// Strategy labels the step of the chain that produced an answer.
type Strategy string

const (
	StrategyFunctionArgument   Strategy = "function-argument"
	StrategyFileDeclaration    Strategy = "file-declaration"
	StrategyProjectDeclaration Strategy = "project-declaration"
	StrategyProjectUse         Strategy = "project-use"
)

// SymbolIndex answers project-wide name queries. The returned order must
// be stable for a given index state.
type SymbolIndex interface {
	FindUserVars(name string, declarationsOnly bool) []*syntax.Node
}

// OutcomeKind is the three-valued answer of one strategy.
type OutcomeKind uint8

const (
	NoOpinion OutcomeKind = iota
	Self
	Target
)

func (k OutcomeKind) String() string {
	switch k {
	case Self:
		return "self"
	case Target:
		return "target"
	}
	return "no-opinion"
}

// Outcome is what a single strategy decided. Node is set only for Target.
type Outcome struct {
	Kind OutcomeKind
	Node *syntax.Node
}

// Result is a surfaced reference: the target and the strategy that found it.
type Result struct {
	Strategy Strategy
	Target   *syntax.Node
}

// Trace records the strategy that ended the chain and its outcome. A
// NoOpinion outcome means no strategy answered; Strategy is then empty.
type Trace struct {
	Strategy Strategy
	Outcome  Outcome
}

type strategy struct {
	label Strategy
	run   func(r *Resolver, occ *syntax.Node) Outcome
}

var chain = []strategy{
	{StrategyFunctionArgument, (*Resolver).functionArgument},
	{StrategyFileDeclaration, (*Resolver).fileDeclaration},
	{StrategyProjectDeclaration, (*Resolver).projectDeclaration},
	{StrategyProjectUse, (*Resolver).projectUse},
}

// Resolver holds read-only collaborators only; it keeps no per-query state
// and is safe for concurrent use when the index is.
type Resolver struct {
	index      SymbolIndex
	classifier decl.Classifier
}

// New creates a resolver. A nil classifier uses the live-tree classifier;
// a nil index disables the project-wide strategies.
func New(index SymbolIndex, classifier decl.Classifier) *Resolver {
	if classifier == nil {
		classifier = decl.Tree{}
	}
	return &Resolver{index: index, classifier: classifier}
}

// Explain runs the chain and reports which strategy answered, including
// answers that resolve to the occurrence itself.
func (r *Resolver) Explain(occ *syntax.Node) Trace {
	if occ == nil || occ.Kind != syntax.KindIdentifier {
		return Trace{}
	}
	for _, s := range chain {
		out := s.run(r, occ)
		if out.Kind != NoOpinion {
			return Trace{Strategy: s.label, Outcome: out}
		}
	}
	return Trace{}
}

// Resolve returns zero or one result. Self-resolution yields no result.
func (r *Resolver) Resolve(occ *syntax.Node) []Result {
	tr := r.Explain(occ)
	if tr.Outcome.Kind != Target {
		return nil
	}
	return []Result{{Strategy: tr.Strategy, Target: tr.Outcome.Node}}
}

// ResolveOne returns the single result when exactly one exists.
func (r *Resolver) ResolveOne(occ *syntax.Node) (Result, bool) {
	res := r.Resolve(occ)
	if len(res) != 1 {
		return Result{}, false
	}
	return res[0], true
}

func outcomeFor(occ, found *syntax.Node) Outcome {
	if found == nil {
		return Outcome{}
	}
	if sameOccurrence(occ, found) {
		return Outcome{Kind: Self}
	}
	return Outcome{Kind: Target, Node: found}
}

// sameOccurrence treats two nodes as the same occurrence when they are the
// same node or sit at the same span of the same file path. The second case
// covers index trees parsed separately from the caller's tree.
func sameOccurrence(a, b *syntax.Node) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Span != b.Span || a.Name != b.Name {
		return false
	}
	fa, fb := a.File(), b.File()
	return fa != nil && fb != nil && fa.Path == fb.Path
}
