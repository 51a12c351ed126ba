package semantic

import "github.com/harrier-dev/harrier/ast"

// expr indexes one expression in load context: records the flow node
// it evaluates at, records uses of narrowable places, branches the
// flow state for short-circuit operators and conditional expressions,
// and handles the scope-introducing expression forms (lambda,
// comprehensions) and walrus bindings.
func (b *builder) expr(e ast.Expr) {
	if e == nil {
		return
	}
	sc := b.cur()
	b.index.exprFlow[e] = sc.cur

	switch n := e.(type) {
	case *ast.Ident:
		b.use(n, n.Name, n.Name)

	case *ast.Attribute:
		b.expr(n.Value)
		if key, ok := PlaceKey(n); ok {
			b.use(n, key, "")
		}

	case *ast.Subscript:
		b.expr(n.Value)
		b.expr(n.Index)
		if key, ok := PlaceKey(n); ok {
			b.use(n, key, "")
		}

	case *ast.Slice:
		b.expr(n.Lower)
		b.expr(n.Upper)
		b.expr(n.Step)

	case *ast.BasicLit, *ast.BadExpr:
		// leaves

	case *ast.JoinedStr:
		for _, v := range n.Values {
			b.expr(v)
		}

	case *ast.FormattedValue:
		b.expr(n.Value)
		b.expr(n.FormatSpec)

	case *ast.Starred:
		b.expr(n.Value)

	case *ast.DoubleStarred:
		b.expr(n.Value)

	case *ast.TupleExpr:
		for _, el := range n.Elts {
			b.expr(el)
		}

	case *ast.ListExpr:
		for _, el := range n.Elts {
			b.expr(el)
		}

	case *ast.SetExpr:
		for _, el := range n.Elts {
			b.expr(el)
		}

	case *ast.DictExpr:
		for _, entry := range n.Entries {
			b.expr(entry.Key)
			b.expr(entry.Value)
		}

	case *ast.CallExpr:
		b.expr(n.Fun)
		for _, a := range n.Args {
			b.expr(a)
		}
		for _, kw := range n.Keywords {
			b.expr(kw.Value)
		}

	case *ast.UnaryExpr:
		b.expr(n.Operand)

	case *ast.BinaryExpr:
		b.expr(n.X)
		b.expr(n.Y)

	case *ast.BoolOp:
		b.buildBoolOp(n)

	case *ast.Compare:
		b.expr(n.Left)
		for _, c := range n.Comparators {
			b.expr(c)
		}

	case *ast.IfExp:
		b.buildIfExp(n)

	case *ast.NamedExpr:
		b.expr(n.Value)
		b.define(DefWalrus, n.Target.Name, n.Target.Name, n, n.Target, n.Value, nil)

	case *ast.Lambda:
		b.walkParamOuterExprs(n.Params)
		b.pushScope(KindLambda, n)
		b.bindParams(n.Params, n)
		b.expr(n.Body)
		b.popScope()

	case *ast.ListComp:
		b.buildComprehension(n, n.Gens, n.Elt, nil)

	case *ast.SetComp:
		b.buildComprehension(n, n.Gens, n.Elt, nil)

	case *ast.DictComp:
		b.buildComprehension(n, n.Gens, n.Key, n.Value)

	case *ast.GeneratorExp:
		b.buildComprehension(n, n.Gens, n.Elt, nil)

	case *ast.Await:
		b.expr(n.Value)

	case *ast.Yield:
		b.expr(n.Value)

	case *ast.YieldFrom:
		b.expr(n.Value)

	case *ast.ParenExpr:
		b.expr(n.X)
	}
}

// buildBoolOp threads short-circuit evaluation through the flow graph:
// each operand after the first evaluates only under the preceding
// operands' predicates (positive for `and`, negative for `or`), and a
// walrus binding inside a later operand is conditional.
func (b *builder) buildBoolOp(n *ast.BoolOp) {
	sc := b.cur()
	positive := n.Op == ast.And

	b.expr(n.Values[0])
	for _, v := range n.Values[1:] {
		prev := sc.cur
		prevLive := cloneLive(sc.live)
		prevVis := sc.curVis
		pred := sc.predicate(Predicate{Test: previousOperand(n, v), Positive: positive})

		sc.cur = sc.data.addFlow(flowNode{kind: flowBranch, pred: prev, predicate: pred})
		base := len(sc.activePreds)
		sc.activePreds = append(sc.activePreds, pred)
		b.expr(v)
		sc.activePreds = sc.activePreds[:base]

		// The operand may have been skipped entirely.
		skipped := armResult{live: prevLive, flow: prev, vis: prevVis}
		sc.live = sc.mergeLive(sc.live, skipped.live)
		sc.cur = sc.data.addFlow(flowNode{kind: flowPhi, pred: sc.cur, pred2: skipped.flow})
		sc.curVis = sc.visMerged(sc.curVis, skipped.vis)
	}
}

// previousOperand returns the operand evaluated immediately before v
// in the chain, the condition v's evaluation is guarded by.
func previousOperand(n *ast.BoolOp, v ast.Expr) ast.Expr {
	prev := n.Values[0]
	for _, x := range n.Values[1:] {
		if x == v {
			return prev
		}
		prev = x
	}
	return prev
}

func (b *builder) buildIfExp(n *ast.IfExp) {
	sc := b.cur()
	b.expr(n.Test)

	snapLive := cloneLive(sc.live)
	snapFlow := sc.cur
	snapVis := sc.curVis
	posP := sc.predicate(Predicate{Test: n.Test, Positive: true})
	negP := sc.predicate(Predicate{Test: n.Test, Positive: false})

	// body arm
	sc.cur = sc.data.addFlow(flowNode{kind: flowBranch, pred: snapFlow, predicate: posP})
	sc.curVis = sc.visSequence(snapVis, sc.visSingle(posP))
	base := len(sc.activePreds)
	sc.activePreds = append(sc.activePreds, posP)
	b.expr(n.Body)
	sc.activePreds = sc.activePreds[:base]
	then := armResult{live: sc.live, flow: sc.cur, vis: sc.curVis}

	// orelse arm
	sc.live = cloneLive(snapLive)
	sc.cur = sc.data.addFlow(flowNode{kind: flowBranch, pred: snapFlow, predicate: negP})
	sc.curVis = sc.visSequence(snapVis, sc.visSingle(negP))
	sc.activePreds = append(sc.activePreds, negP)
	b.expr(n.Orelse)
	sc.activePreds = sc.activePreds[:base]
	els := armResult{live: sc.live, flow: sc.cur, vis: sc.curVis}

	sc.live = sc.mergeLive(then.live, els.live)
	sc.cur = sc.data.addFlow(flowNode{kind: flowPhi, pred: then.flow, pred2: els.flow})
	sc.curVis = sc.visMerged(then.vis, els.vis)
}

// buildComprehension indexes a comprehension: the first generator's
// iterable evaluates in the enclosing scope, everything else inside a
// fresh comprehension scope where each filter guards the element the
// way an if-arm guards its body.
func (b *builder) buildComprehension(node ast.Expr, gens []*ast.Comprehension, elt1, elt2 ast.Expr) {
	b.expr(gens[0].Iter)

	b.pushScope(KindComprehension, node)
	sc := b.cur()
	for i, g := range gens {
		if i > 0 {
			b.expr(g.Iter)
		}
		b.bindTarget(g.Target, DefForTarget, node, g.Iter, nil)
		for _, cond := range g.Ifs {
			b.expr(cond)
			pred := sc.predicate(Predicate{Test: cond, Positive: true})
			sc.cur = sc.data.addFlow(flowNode{kind: flowBranch, pred: sc.cur, predicate: pred})
			sc.curVis = sc.visSequence(sc.curVis, sc.visSingle(pred))
			sc.activePreds = append(sc.activePreds, pred)
		}
	}
	b.expr(elt1)
	b.expr(elt2)
	b.popScope()
}
