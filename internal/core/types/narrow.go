package types

import (
	"github.com/harrier-dev/harrier/ast"
	"github.com/harrier-dev/harrier/internal/core/semantic"
)

// A Narrower translates semantic predicates into type refinements for
// one place. The two callbacks tie it back to the checker: resolving
// a class-valued expression (for isinstance and type() comparisons)
// and typing a literal comparand.
type Narrower struct {
	// PlaceKey is the canonical spelling of the place being narrowed.
	PlaceKey string

	// ResolveClass types an expression expected to name a class.
	ResolveClass func(ast.Expr) (*Class, bool)
}

// Apply refines t under predicate p. Predicates that don't concern
// the place, or whose form the checker doesn't understand, are
// Ambiguous and leave the type unchanged.
func (nw *Narrower) Apply(p semantic.Predicate, t Type) Type {
	if p.StarImport != nil || p.Test == nil {
		return t
	}
	refined, ok := nw.refine(p.Test, p.Positive, t)
	if !ok {
		return t
	}
	return refined
}

func (nw *Narrower) refine(test ast.Expr, positive bool, t Type) (Type, bool) {
	switch x := test.(type) {
	case *ast.ParenExpr:
		return nw.refine(x.X, positive, t)

	case *ast.UnaryExpr:
		if x.Op == ast.Not {
			return nw.refine(x.Operand, !positive, t)
		}

	case *ast.Ident, *ast.Attribute, *ast.Subscript:
		// Bare truthiness test of the place itself: the true arm
		// cannot hold None.
		if nw.matchesPlace(test) && positive {
			return Remove(t, TNone), true
		}

	case *ast.NamedExpr:
		if x.Target != nil && x.Target.Name == nw.PlaceKey && positive {
			return Remove(t, TNone), true
		}

	case *ast.Compare:
		return nw.refineCompare(x, positive, t)

	case *ast.CallExpr:
		return nw.refineCall(x, positive, t)
	}
	return t, false
}

// matchesPlace reports whether e spells the narrowed place.
func (nw *Narrower) matchesPlace(e ast.Expr) bool {
	key, ok := semantic.PlaceKey(e)
	return ok && key == nw.PlaceKey
}

func (nw *Narrower) refineCompare(cmp *ast.Compare, positive bool, t Type) (Type, bool) {
	// Only the simple two-operand chain narrows.
	if len(cmp.Ops) != 1 || len(cmp.Comparators) != 1 {
		return t, false
	}
	op := cmp.Ops[0]
	lhs, rhs := cmp.Left, cmp.Comparators[0]

	// Normalize `None is x` / `1 == x` to place-on-the-left.
	if !nw.matchesPlace(lhs) && nw.matchesPlace(rhs) {
		lhs, rhs = rhs, lhs
	}
	if !nw.matchesPlace(lhs) {
		// `type(x) is T` has the place inside a call on the left.
		if call, ok := callOf(lhs, "type"); ok && len(call.Args) == 1 && nw.matchesPlace(call.Args[0]) &&
			(op == ast.Is || op == ast.Eq) {
			if class, ok := nw.ResolveClass(rhs); ok {
				if positive {
					// type(x) is T pins the exact class.
					return NewInstance(class), true
				}
				return t, false
			}
		}
		return t, false
	}

	switch op {
	case ast.Is:
		if isNoneLit(rhs) {
			if positive {
				return TNone, true
			}
			return Remove(t, TNone), true
		}
	case ast.IsNot:
		if isNoneLit(rhs) {
			if positive {
				return Remove(t, TNone), true
			}
			return TNone, true
		}
	case ast.Eq:
		if lit, ok := literalTypeOf(rhs); ok && positive {
			return Narrow(t, lit), true
		}
	case ast.NotEq:
		if lit, ok := literalTypeOf(rhs); ok && !positive {
			return Narrow(t, lit), true
		}
	}
	return t, false
}

func (nw *Narrower) refineCall(call *ast.CallExpr, positive bool, t Type) (Type, bool) {
	fn, ok := call.Fun.(*ast.Ident)
	if !ok || fn.Name != "isinstance" || len(call.Args) != 2 || !nw.matchesPlace(call.Args[0]) {
		return t, false
	}
	target, ok := nw.isinstanceTarget(call.Args[1])
	if !ok {
		return t, false
	}
	if positive {
		return Narrow(t, target), true
	}
	return Remove(t, target), true
}

// isinstanceTarget types isinstance's second argument: a class or a
// tuple of classes.
func (nw *Narrower) isinstanceTarget(e ast.Expr) (Type, bool) {
	if tup, ok := e.(*ast.TupleExpr); ok {
		var members []Type
		for _, el := range tup.Elts {
			class, ok := nw.ResolveClass(el)
			if !ok {
				return nil, false
			}
			members = append(members, NewInstance(class))
		}
		return MakeUnion(members...), true
	}
	class, ok := nw.ResolveClass(e)
	if !ok {
		return nil, false
	}
	return NewInstance(class), true
}

func callOf(e ast.Expr, name string) (*ast.CallExpr, bool) {
	call, ok := e.(*ast.CallExpr)
	if !ok {
		return nil, false
	}
	fn, ok := call.Fun.(*ast.Ident)
	if !ok || fn.Name != name {
		return nil, false
	}
	return call, true
}

func isNoneLit(e ast.Expr) bool {
	lit, ok := e.(*ast.BasicLit)
	return ok && lit.Kind == ast.NoneLit
}

// literalTypeOf types a literal comparand for equality narrowing.
func literalTypeOf(e ast.Expr) (Type, bool) {
	lit, ok := e.(*ast.BasicLit)
	if !ok {
		return nil, false
	}
	return literalType(lit)
}

// StaticTruthiness evaluates a predicate's condition where it is a
// constant, for visibility-constraint evaluation. Anything
// non-constant is Ambiguous.
func StaticTruthiness(p semantic.Predicate) semantic.Truthiness {
	if p.StarImport != nil || p.Test == nil {
		return semantic.Ambiguous
	}
	lit, ok := p.Test.(*ast.BasicLit)
	if !ok {
		return semantic.Ambiguous
	}
	t, ok := literalType(lit)
	if !ok {
		return semantic.Ambiguous
	}
	value, known := Truthy(t)
	if !known {
		return semantic.Ambiguous
	}
	if value == p.Positive {
		return semantic.AlwaysTrue
	}
	return semantic.AlwaysFalse
}
