package semantic

import "github.com/harrier-dev/harrier/ast"

// Truthiness is the three-valued outcome of evaluating a predicate or
// visibility constraint. Unknown predicates evaluate to Ambiguous and
// never silently fall through to a boolean.
type Truthiness int

const (
	Ambiguous Truthiness = iota
	AlwaysTrue
	AlwaysFalse
)

func (t Truthiness) String() string {
	switch t {
	case AlwaysTrue:
		return "always-true"
	case AlwaysFalse:
		return "always-false"
	}
	return "ambiguous"
}

// Negate flips true and false, keeping Ambiguous.
func (t Truthiness) Negate() Truthiness {
	switch t {
	case AlwaysTrue:
		return AlwaysFalse
	case AlwaysFalse:
		return AlwaysTrue
	}
	return Ambiguous
}

// PredicateID references an interned predicate within one scope.
type PredicateID int32

// NoPredicate is the absent-predicate sentinel.
const NoPredicate PredicateID = -1

// A Predicate is a first-class reference to a condition expression (or
// pattern-match subject) with a polarity, interned per scope.
type Predicate struct {
	// Test is the condition expression. Nil for star-import
	// placeholder predicates.
	Test     ast.Expr
	Positive bool

	// StarImport, when non-nil, marks the placeholder predicate for a
	// `from M import *`: whether a given name is bound depends on M's
	// public names, resolved at inference time rather than during
	// indexing.
	StarImport *ast.ImportFrom

	// Subject is the match-statement subject for case-pattern
	// predicates; Pattern is the pattern tested against it.
	Subject ast.Expr
	Pattern ast.Pattern
}

// VisibilityID references a visibility constraint within one scope.
// ID 0 is always the always-visible constraint.
type VisibilityID int32

// VisAlways is the always-visible constraint.
const VisAlways VisibilityID = 0

type visKind uint8

const (
	visNone visKind = iota
	visSingle
	visNegated
	visSequence
	visMerged
)

// A visibility constraint is an expression in a small algebra over
// predicate ids, determining whether the control-flow point that
// created a definition is reachable.
type visNode struct {
	kind visKind
	pred PredicateID
	l, r VisibilityID
}

// EvalVisibility evaluates the constraint vc within scope, using eval
// to decide individual predicates.
func (s *ScopeData) EvalVisibility(vc VisibilityID, eval func(Predicate) Truthiness) Truthiness {
	n := s.vis[vc]
	switch n.kind {
	case visNone:
		return AlwaysTrue
	case visSingle:
		return eval(s.Predicates[n.pred])
	case visNegated:
		return s.EvalVisibility(n.l, eval).Negate()
	case visSequence:
		l := s.EvalVisibility(n.l, eval)
		if l == AlwaysFalse {
			return AlwaysFalse
		}
		r := s.EvalVisibility(n.r, eval)
		if r == AlwaysFalse {
			return AlwaysFalse
		}
		if l == AlwaysTrue && r == AlwaysTrue {
			return AlwaysTrue
		}
		return Ambiguous
	case visMerged:
		l := s.EvalVisibility(n.l, eval)
		r := s.EvalVisibility(n.r, eval)
		if l == AlwaysTrue || r == AlwaysTrue {
			return AlwaysTrue
		}
		if l == AlwaysFalse && r == AlwaysFalse {
			return AlwaysFalse
		}
		return Ambiguous
	}
	return Ambiguous
}
