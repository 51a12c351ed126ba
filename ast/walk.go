package ast

// Walk traverses an AST in depth-first order. before(node) is called
// first; if it returns true, Walk recurses into node's children, then
// calls after(node). Either callback may be nil.
func Walk(node Node, before func(Node) bool, after func(Node)) {
	if node == nil {
		return
	}
	if before != nil && !before(node) {
		return
	}
	walkChildren(node, before, after)
	if after != nil {
		after(node)
	}
}

// A Visitor's Before method is invoked for each node encountered by
// WalkVisitor; if it returns a non-nil Visitor w, children are visited
// with w and w.After is called afterward. Returning nil prunes the
// subtree.
type Visitor interface {
	Before(node Node) (w Visitor)
	After(node Node)
}

// WalkVisitor traverses an AST using a stateful [Visitor], letting each
// level of the tree carry its own traversal state (e.g. the checker's
// scope stack).
func WalkVisitor(node Node, v Visitor) {
	if node == nil {
		return
	}
	w := v.Before(node)
	if w == nil {
		return
	}
	walkChildren(node, func(n Node) bool {
		WalkVisitor(n, w)
		return false // walkChildren already recursed via WalkVisitor
	}, nil)
	w.After(node)
}

func walkStmts(list []Stmt, before func(Node) bool, after func(Node)) {
	for _, s := range list {
		Walk(s, before, after)
	}
}

func walkExprs(list []Expr, before func(Node) bool, after func(Node)) {
	for _, e := range list {
		Walk(e, before, after)
	}
}

// walkChildren dispatches to the type-specific child list. It is shared
// by both Walk and WalkVisitor (the latter via a before-func adapter
// that immediately recurses with the new visitor).
func walkChildren(node Node, before func(Node) bool, after func(Node)) {
	switch n := node.(type) {
	case *Module:
		walkStmts(n.Body, before, after)

	case *FunctionDef:
		walkExprs(n.Decorators, before, after)
		Walk(n.Name, before, after)
		walkParams(n.Params, before, after)
		if n.Returns != nil {
			Walk(n.Returns, before, after)
		}
		walkStmts(n.Body, before, after)

	case *ClassDef:
		walkExprs(n.Decorators, before, after)
		Walk(n.Name, before, after)
		walkExprs(n.Bases, before, after)
		for _, kw := range n.Keywords {
			walkKeyword(kw, before, after)
		}
		walkStmts(n.Body, before, after)

	case *Return:
		if n.Value != nil {
			Walk(n.Value, before, after)
		}

	case *Delete:
		walkExprs(n.Targets, before, after)

	case *Assign:
		walkExprs(n.Targets, before, after)
		Walk(n.Value, before, after)

	case *AugAssign:
		Walk(n.Target, before, after)
		Walk(n.Value, before, after)

	case *AnnAssign:
		Walk(n.Target, before, after)
		Walk(n.Annotation, before, after)
		if n.Value != nil {
			Walk(n.Value, before, after)
		}

	case *ForStmt:
		Walk(n.Target, before, after)
		Walk(n.Iter, before, after)
		walkStmts(n.Body, before, after)
		walkStmts(n.Orelse, before, after)

	case *WhileStmt:
		Walk(n.Test, before, after)
		walkStmts(n.Body, before, after)
		walkStmts(n.Orelse, before, after)

	case *IfStmt:
		Walk(n.Test, before, after)
		walkStmts(n.Body, before, after)
		walkStmts(n.Orelse, before, after)

	case *WithStmt:
		for _, it := range n.Items {
			Walk(it.Context, before, after)
			if it.Target != nil {
				Walk(it.Target, before, after)
			}
		}
		walkStmts(n.Body, before, after)

	case *Raise:
		if n.Exc != nil {
			Walk(n.Exc, before, after)
		}
		if n.Cause != nil {
			Walk(n.Cause, before, after)
		}

	case *TryStmt:
		walkStmts(n.Body, before, after)
		for _, h := range n.Handlers {
			if h.Type != nil {
				Walk(h.Type, before, after)
			}
			if h.Name != nil {
				Walk(h.Name, before, after)
			}
			walkStmts(h.Body, before, after)
		}
		walkStmts(n.Orelse, before, after)
		walkStmts(n.Final, before, after)

	case *Assert:
		Walk(n.Test, before, after)
		if n.Msg != nil {
			Walk(n.Msg, before, after)
		}

	case *Global:
		walkIdents(n.Names, before, after)

	case *Nonlocal:
		walkIdents(n.Names, before, after)

	case *ExprStmt:
		Walk(n.Value, before, after)

	case *MatchStmt:
		Walk(n.Subject, before, after)
		for _, c := range n.Cases {
			WalkPattern(c.Pattern, before, after)
			if c.Guard != nil {
				Walk(c.Guard, before, after)
			}
			walkStmts(c.Body, before, after)
		}

	case *Import, *ImportFrom, *Pass, *Break, *Continue, *BadStmt:
		// leaves

	case *Ident, *BasicLit, *BadExpr:
		// leaves

	case *JoinedStr:
		walkExprs(n.Values, before, after)

	case *FormattedValue:
		Walk(n.Value, before, after)
		if n.FormatSpec != nil {
			Walk(n.FormatSpec, before, after)
		}

	case *Attribute:
		Walk(n.Value, before, after)
		Walk(n.Attr, before, after)

	case *Subscript:
		Walk(n.Value, before, after)
		Walk(n.Index, before, after)

	case *Slice:
		if n.Lower != nil {
			Walk(n.Lower, before, after)
		}
		if n.Upper != nil {
			Walk(n.Upper, before, after)
		}
		if n.Step != nil {
			Walk(n.Step, before, after)
		}

	case *Starred:
		Walk(n.Value, before, after)

	case *DoubleStarred:
		Walk(n.Value, before, after)

	case *TupleExpr:
		walkExprs(n.Elts, before, after)

	case *ListExpr:
		walkExprs(n.Elts, before, after)

	case *SetExpr:
		walkExprs(n.Elts, before, after)

	case *DictExpr:
		for _, e := range n.Entries {
			if e.Key != nil {
				Walk(e.Key, before, after)
			}
			Walk(e.Value, before, after)
		}

	case *ListComp:
		Walk(n.Elt, before, after)
		walkComprehensions(n.Gens, before, after)

	case *SetComp:
		Walk(n.Elt, before, after)
		walkComprehensions(n.Gens, before, after)

	case *DictComp:
		Walk(n.Key, before, after)
		Walk(n.Value, before, after)
		walkComprehensions(n.Gens, before, after)

	case *GeneratorExp:
		Walk(n.Elt, before, after)
		walkComprehensions(n.Gens, before, after)

	case *CallExpr:
		Walk(n.Fun, before, after)
		walkExprs(n.Args, before, after)
		for _, kw := range n.Keywords {
			walkKeyword(kw, before, after)
		}

	case *UnaryExpr:
		Walk(n.Operand, before, after)

	case *BinaryExpr:
		Walk(n.X, before, after)
		Walk(n.Y, before, after)

	case *BoolOp:
		walkExprs(n.Values, before, after)

	case *Compare:
		Walk(n.Left, before, after)
		walkExprs(n.Comparators, before, after)

	case *IfExp:
		Walk(n.Test, before, after)
		Walk(n.Body, before, after)
		Walk(n.Orelse, before, after)

	case *Lambda:
		walkParams(n.Params, before, after)
		Walk(n.Body, before, after)

	case *NamedExpr:
		Walk(n.Target, before, after)
		Walk(n.Value, before, after)

	case *Await:
		Walk(n.Value, before, after)

	case *Yield:
		if n.Value != nil {
			Walk(n.Value, before, after)
		}

	case *YieldFrom:
		Walk(n.Value, before, after)

	case *ParenExpr:
		Walk(n.X, before, after)
	}
}

func walkIdents(list []*Ident, before func(Node) bool, after func(Node)) {
	for _, id := range list {
		Walk(id, before, after)
	}
}

func walkKeyword(kw *Keyword, before func(Node) bool, after func(Node)) {
	if kw.Name != nil {
		Walk(kw.Name, before, after)
	}
	Walk(kw.Value, before, after)
}

func walkParams(p *Parameters, before func(Node) bool, after func(Node)) {
	if p == nil {
		return
	}
	walkParamList := func(list []*Param) {
		for _, prm := range list {
			Walk(prm.Name, before, after)
			if prm.Annotation != nil {
				Walk(prm.Annotation, before, after)
			}
			if prm.Default != nil {
				Walk(prm.Default, before, after)
			}
		}
	}
	walkParamList(p.PosOnly)
	walkParamList(p.Args)
	if p.VarArg != nil {
		walkParamList([]*Param{p.VarArg})
	}
	walkParamList(p.KwOnly)
	if p.KwArg != nil {
		walkParamList([]*Param{p.KwArg})
	}
}

func walkComprehensions(gens []*Comprehension, before func(Node) bool, after func(Node)) {
	for _, g := range gens {
		Walk(g.Target, before, after)
		Walk(g.Iter, before, after)
		walkExprs(g.Ifs, before, after)
	}
}

// WalkPattern traverses a match-case [Pattern] tree.
func WalkPattern(p Pattern, before func(Node) bool, after func(Node)) {
	if p == nil {
		return
	}
	if before != nil && !before(p) {
		return
	}
	switch x := p.(type) {
	case *CapturePattern:
		if x.Name != nil {
			Walk(x.Name, before, after)
		}
	case *ValuePattern:
		Walk(x.Value, before, after)
	case *SequencePattern:
		for _, e := range x.Elts {
			WalkPattern(e, before, after)
		}
	case *MappingPattern:
		for _, e := range x.Entries {
			Walk(e.Key, before, after)
			WalkPattern(e.Pattern, before, after)
		}
		if x.Rest != nil {
			Walk(x.Rest, before, after)
		}
	case *ClassPattern:
		Walk(x.Callee, before, after)
		for _, e := range x.Positional {
			WalkPattern(e, before, after)
		}
		for _, kw := range x.Keyword {
			Walk(kw.Name, before, after)
			WalkPattern(kw.Pattern, before, after)
		}
	case *OrPattern:
		for _, a := range x.Alternatives {
			WalkPattern(a, before, after)
		}
	case *AsPattern:
		WalkPattern(x.Pattern, before, after)
		if x.Name != nil {
			Walk(x.Name, before, after)
		}
	}
	if after != nil {
		after(p)
	}
}
