package types

import (
	"strconv"
	"strings"

	"github.com/harrier-dev/harrier/ast"
	"github.com/harrier-dev/harrier/internal/core/semantic"
	"github.com/harrier-dev/harrier/parser"
)

// inferExpr assigns a type to e, memoizing into the scope's result.
func (c *checker) inferExpr(e ast.Expr) Type {
	if e == nil {
		return TUnknown
	}
	if t, ok := c.result.ExprTypes[e]; ok {
		return t
	}
	t := c.inferExprUncached(e)
	c.result.ExprTypes[e] = t
	return t
}

func (c *checker) inferExprUncached(e ast.Expr) Type {
	switch n := e.(type) {
	case *ast.BasicLit:
		if t, ok := literalType(n); ok {
			return t
		}
		return TUnknown

	case *ast.Ident:
		if scope, use, ok := c.ix.UseOf(n); ok {
			return c.lookupUse(scope, use)
		}
		return TUnknown

	case *ast.Attribute:
		if scope, use, ok := c.ix.UseOf(n); ok {
			// A narrowable attribute chain with local bindings types
			// through the use–def map; otherwise fall through to
			// member lookup on the base.
			if len(scope.DefsFor(use)) > 0 {
				return c.lookupUse(scope, use)
			}
		}
		return c.memberType(c.inferExpr(n.Value), n.Attr.Name)

	case *ast.Subscript:
		if scope, use, ok := c.ix.UseOf(n); ok {
			if len(scope.DefsFor(use)) > 0 {
				return c.lookupUse(scope, use)
			}
		}
		base := c.inferExpr(n.Value)
		c.inferExpr(n.Index)
		if tup, ok := base.(*Tuple); ok {
			if lit, ok := n.Index.(*ast.BasicLit); ok && lit.Kind == ast.IntLit {
				if i, err := strconv.ParseInt(lit.Value, 0, 64); err == nil && i >= 0 && int(i) < len(tup.Elems) {
					return tup.Elems[i]
				}
			}
		}
		return TUnknown

	case *ast.Slice:
		c.inferExpr(n.Lower)
		c.inferExpr(n.Upper)
		c.inferExpr(n.Step)
		return TUnknown

	case *ast.JoinedStr:
		for _, v := range n.Values {
			c.inferExpr(v)
		}
		return TStr

	case *ast.FormattedValue:
		c.inferExpr(n.Value)
		return TStr

	case *ast.Starred:
		return c.inferExpr(n.Value)

	case *ast.DoubleStarred:
		return c.inferExpr(n.Value)

	case *ast.TupleExpr:
		elems := make([]Type, len(n.Elts))
		for i, el := range n.Elts {
			elems[i] = c.inferExpr(el)
		}
		return NewTuple(elems...)

	case *ast.ListExpr:
		for _, el := range n.Elts {
			c.inferExpr(el)
		}
		return TList

	case *ast.SetExpr:
		for _, el := range n.Elts {
			c.inferExpr(el)
		}
		return TSet

	case *ast.DictExpr:
		for _, entry := range n.Entries {
			c.inferExpr(entry.Key)
			c.inferExpr(entry.Value)
		}
		return TDict

	case *ast.ListComp:
		return TList

	case *ast.SetComp:
		return TSet

	case *ast.DictComp:
		return TDict

	case *ast.GeneratorExp:
		return TUnknown

	case *ast.CallExpr:
		return c.inferCall(n)

	case *ast.UnaryExpr:
		return c.inferUnary(n)

	case *ast.BinaryExpr:
		return c.inferBinary(n)

	case *ast.BoolOp:
		members := make([]Type, len(n.Values))
		for i, v := range n.Values {
			members[i] = c.inferExpr(v)
		}
		return MakeUnion(members...)

	case *ast.Compare:
		c.inferExpr(n.Left)
		for _, cmp := range n.Comparators {
			c.inferExpr(cmp)
		}
		return TBool

	case *ast.IfExp:
		c.inferExpr(n.Test)
		return MakeUnion(c.inferExpr(n.Body), c.inferExpr(n.Orelse))

	case *ast.Lambda:
		params := make([]Type, 0)
		if n.Params != nil {
			for range n.Params.Args {
				params = append(params, TUnknown)
			}
		}
		return NewCallable(params, TUnknown)

	case *ast.NamedExpr:
		return c.inferExpr(n.Value)

	case *ast.Await:
		c.inferExpr(n.Value)
		return TUnknown

	case *ast.Yield:
		c.inferExpr(n.Value)
		return TUnknown

	case *ast.YieldFrom:
		c.inferExpr(n.Value)
		return TUnknown

	case *ast.ParenExpr:
		return c.inferExpr(n.X)
	}
	return TUnknown
}

func literalType(lit *ast.BasicLit) (Type, bool) {
	switch lit.Kind {
	case ast.IntLit:
		v, err := strconv.ParseInt(strings.ReplaceAll(lit.Value, "_", ""), 0, 64)
		if err != nil {
			return TInt, true
		}
		return NewIntLiteral(v), true
	case ast.FloatLit:
		return TFloat, true
	case ast.StringLit:
		return NewStrLiteral(stringLitValue(lit.Value)), true
	case ast.BytesLit:
		return NewBytesLiteral(stringLitValue(lit.Value)), true
	case ast.BoolLit:
		return NewBoolLiteral(lit.Value == "True"), true
	case ast.NoneLit:
		return TNone, true
	case ast.EllipsisLit:
		return TEllipsis, true
	}
	return nil, false
}

// stringLitValue strips prefix letters and quotes from a string
// literal's source spelling. Escape sequences are kept verbatim; the
// checker only compares literal identity, never decoded bytes.
func stringLitValue(s string) string {
	for len(s) > 0 {
		switch s[0] {
		case 'r', 'R', 'b', 'B', 'f', 'F', 'u', 'U':
			s = s[1:]
			continue
		}
		break
	}
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}

func (c *checker) inferCall(call *ast.CallExpr) Type {
	callee := c.inferExpr(call.Fun)
	for _, a := range call.Args {
		c.inferExpr(a)
	}
	for _, kw := range call.Keywords {
		c.inferExpr(kw.Value)
	}
	switch t := callee.(type) {
	case *Callable:
		return t.Result
	case *ClassLiteral:
		return NewInstance(t.Class)
	}
	return TUnknown
}

func (c *checker) inferUnary(n *ast.UnaryExpr) Type {
	operand := c.inferExpr(n.Operand)
	switch n.Op {
	case ast.Not:
		return TBool
	case ast.USub, ast.UAdd, ast.Invert:
		if lit, ok := operand.(*IntLiteral); ok && n.Op == ast.USub {
			return NewIntLiteral(-lit.Value)
		}
		if IsAssignable(operand, TInt) {
			return widenLiteral(operand)
		}
	}
	return TUnknown
}

// widenLiteral replaces a literal type with its class instance.
func widenLiteral(t Type) Type {
	if class, ok := classOf(t); ok {
		return NewInstance(class)
	}
	return t
}

// inferBinary types arithmetic over the builtin numeric and sequence
// classes. Union operands distribute: every alternative must support
// the operator, and a known-incompatible pair yields an
// unsupported-operand diagnostic.
func (c *checker) inferBinary(n *ast.BinaryExpr) Type {
	x := c.inferExpr(n.X)
	y := c.inferExpr(n.Y)

	// Gradual operands silence the check.
	if isGradual(x) || isGradual(y) {
		return TUnknown
	}

	xs, xok := operandAlternatives(x)
	ys, yok := operandAlternatives(y)
	if !xok || !yok {
		return TUnknown
	}

	var results []Type
	failed := false
	for _, xa := range xs {
		for _, ya := range ys {
			if r, ok := binOpResult(n.Op, xa, ya); ok {
				results = append(results, r)
			} else {
				failed = true
			}
		}
	}
	if failed {
		c.errorf(n, CodeUnsupportedOperand,
			"operator %s is not supported between %s and %s", n.Op, String(x), String(y))
		return TUnknown
	}
	return MakeUnion(results...)
}

// operandAlternatives expands a type into the concrete alternatives a
// binary operator must each support. ok=false means the type is not
// understood well enough to check.
func operandAlternatives(t Type) ([]Type, bool) {
	switch x := t.(type) {
	case *NoneInstance:
		return []Type{TNone}, true
	case *Union:
		var out []Type
		for _, m := range x.Members {
			alts, ok := operandAlternatives(m)
			if !ok {
				return nil, false
			}
			out = append(out, alts...)
		}
		return out, true
	}
	if _, ok := classOf(t); ok {
		return []Type{t}, true
	}
	return nil, false
}

func binOpResult(op ast.Operator, x, y Type) (Type, bool) {
	xc, xok := classOf(x)
	yc, yok := classOf(y)
	if !xok || !yok {
		return nil, false
	}

	numeric := func(cl *Class) bool { return cl.HasBase(ClassInt) || cl == ClassFloat }
	numResult := func() Type {
		if xc == ClassFloat || yc == ClassFloat {
			return TFloat
		}
		return TInt
	}

	switch op {
	case ast.Add:
		switch {
		case numeric(xc) && numeric(yc):
			return numResult(), true
		case xc == ClassStr && yc == ClassStr:
			return TStr, true
		case xc == ClassBytes && yc == ClassBytes:
			return TBytes, true
		case xc == ClassList && yc == ClassList:
			return TList, true
		}
	case ast.Sub, ast.FloorDiv, ast.Mod, ast.Pow:
		if numeric(xc) && numeric(yc) {
			return numResult(), true
		}
		if op == ast.Mod && xc == ClassStr {
			// printf-style formatting accepts anything.
			return TStr, true
		}
	case ast.Div:
		if numeric(xc) && numeric(yc) {
			return TFloat, true
		}
	case ast.Mult:
		switch {
		case numeric(xc) && numeric(yc):
			return numResult(), true
		case xc == ClassStr && yc.HasBase(ClassInt):
			return TStr, true
		case xc.HasBase(ClassInt) && yc == ClassStr:
			return TStr, true
		case xc == ClassList && yc.HasBase(ClassInt):
			return TList, true
		}
	case ast.BitOr, ast.BitAnd, ast.BitXor, ast.LShift, ast.RShift:
		if xc.HasBase(ClassInt) && yc.HasBase(ClassInt) {
			return TInt, true
		}
	case ast.MatMult:
		return TUnknown, true
	}
	return nil, false
}

func isGradual(t Type) bool {
	switch t.(type) {
	case *UnknownType, *AnyType:
		return true
	case *Union:
		// A union containing a gradual member stays quiet too.
		for _, m := range t.(*Union).Members {
			if isGradual(m) {
				return true
			}
		}
	}
	return false
}

// memberType resolves attribute access on a typed base.
func (c *checker) memberType(base Type, name string) Type {
	switch t := base.(type) {
	case *ModuleLiteral:
		info := PublicSymbol(c.ctx, t.File, name)
		return info.Type
	case *NominalInstance:
		if m, ok := t.Class.LookupMethod(name); ok {
			return m
		}
	case *ClassLiteral:
		if m, ok := t.Class.LookupMethod(name); ok {
			return m
		}
	case *IntLiteral, *StrLiteral, *BytesLiteral, *BoolLiteral:
		if class, ok := classOf(base); ok {
			if m, ok := class.LookupMethod(name); ok {
				return m
			}
		}
	case *Union:
		members := make([]Type, len(t.Members))
		for i, m := range t.Members {
			members[i] = c.memberType(m, name)
		}
		return MakeUnion(members...)
	}
	return TUnknown
}

// ---------------------------------------------------------------------
// Definition typing

// defType computes the type a definition binds, branching on the
// definition kind.
func (c *checker) defType(scope *semantic.ScopeData, def semantic.Definition) Type {
	switch def.Kind {
	case semantic.DefAssignment, semantic.DefWalrus:
		return c.targetValueType(def)

	case semantic.DefAugAssignment:
		return widenLiteral(c.inferExpr(def.Value))

	case semantic.DefAnnAssignment:
		if def.Annotation != nil {
			return c.annotationType(def.Annotation)
		}
		return c.inferExpr(def.Value)

	case semantic.DefFunction:
		fn, ok := def.Node.(*ast.FunctionDef)
		if !ok {
			return TUnknown
		}
		return c.functionType(fn)

	case semantic.DefClass:
		class, ok := def.Node.(*ast.ClassDef)
		if !ok {
			return TUnknown
		}
		return NewClassLiteral(c.classFor(class))

	case semantic.DefParameter:
		if def.Annotation != nil {
			return c.annotationType(def.Annotation)
		}
		return TUnknown

	case semantic.DefImport:
		alias, ok := def.Node.(*ast.Alias)
		if !ok {
			return TUnknown
		}
		if mod, ok := c.resolveModule(alias.Name, 0); ok {
			return NewModuleLiteral(mod)
		}
		return TUnknown

	case semantic.DefImportFrom:
		alias, ok := def.Node.(*ast.Alias)
		if !ok {
			return TUnknown
		}
		imp := importFromOf(scope, def)
		if imp == nil {
			return TUnknown
		}
		if mod, ok := c.resolveModule(imp.Module, imp.Level); ok {
			return PublicSymbol(c.ctx, mod, alias.Name).Type
		}
		return TUnknown

	case semantic.DefForTarget, semantic.DefWithTarget:
		return TUnknown

	case semantic.DefExceptHandler:
		if def.Value != nil {
			if t, ok := c.resolveClassExpr(def.Value); ok {
				return NewInstance(t)
			}
		}
		return TUnknown

	case semantic.DefTypeParam:
		tp, ok := def.Node.(*ast.TypeParam)
		if !ok {
			return TUnknown
		}
		return NewTypeVar(tp.Name.Name, int32(def.Place))

	case semantic.DefPatternCapture:
		return TUnknown

	case semantic.DefDelete, semantic.DefStarImport:
		return TUnknown
	}
	return TUnknown
}

// targetValueType types an assignment's bound value. Destructured
// targets project the matching element when the value is a tuple of
// known shape; literal types are kept so narrowing and literal
// comparisons can see them.
func (c *checker) targetValueType(def semantic.Definition) Type {
	value := c.inferExpr(def.Value)
	if tup, ok := def.Value.(*ast.TupleExpr); ok {
		if parent, ok2 := targetParentTuple(def); ok2 {
			for i, el := range parent.Elts {
				if el == def.Target && i < len(tup.Elts) {
					return c.inferExpr(tup.Elts[i])
				}
			}
		}
	}
	if _, isTupleTarget := targetParentTuple(def); isTupleTarget {
		// Destructuring from a non-tuple value: element type unknown.
		if _, ok := value.(*Tuple); !ok {
			return TUnknown
		}
	}
	return value
}

// targetParentTuple reports whether the definition's target sits
// inside a destructuring tuple on the assignment's left-hand side.
func targetParentTuple(def semantic.Definition) (*ast.TupleExpr, bool) {
	assign, ok := def.Node.(*ast.Assign)
	if !ok {
		return nil, false
	}
	for _, t := range assign.Targets {
		if tup, ok := t.(*ast.TupleExpr); ok {
			for _, el := range tup.Elts {
				if el == def.Target {
					return tup, true
				}
			}
		}
	}
	return nil, false
}

// importFromOf finds the ImportFrom statement owning an alias
// definition by walking the AST of the definition's scope.
func importFromOf(scope *semantic.ScopeData, def semantic.Definition) *ast.ImportFrom {
	alias, ok := def.Node.(*ast.Alias)
	if !ok {
		return nil
	}
	var found *ast.ImportFrom
	ast.Walk(scope.Node, func(n ast.Node) bool {
		if found != nil {
			return false
		}
		if imp, ok := n.(*ast.ImportFrom); ok {
			for _, a := range imp.Names {
				if a == alias {
					found = imp
					return false
				}
			}
		}
		return true
	}, nil)
	return found
}

// ---------------------------------------------------------------------
// Classes

// classFor builds (and caches) the checker's view of a class
// definition, resolving bases and detecting cyclic base-class chains.
func (c *checker) classFor(node *ast.ClassDef) *Class {
	for i, active := range c.classStack {
		if active == node {
			// Cyclic base-class chain: every participant from the
			// re-entered class onward reports once, at its own
			// header, and resolves to a base-less class.
			for _, member := range c.classStack[i:] {
				if c.cyclic[member] {
					continue
				}
				if c.cyclic == nil {
					c.cyclic = make(map[*ast.ClassDef]bool)
				}
				c.cyclic[member] = true
				c.errorf(member.Name, CodeCircularBaseClass,
					"class %s has itself in its base-class chain", member.Name.Name)
			}
			return &Class{Name: node.Name.Name, File: c.file, Node: node}
		}
	}
	if class, ok := c.classes[node]; ok {
		return class
	}

	class := &Class{Name: node.Name.Name, File: c.file, Node: node}
	c.classes[node] = class
	c.classStack = append(c.classStack, node)
	for _, base := range node.Bases {
		if resolved, ok := c.resolveClassExpr(base); ok {
			if resolved.HasBase(class) {
				c.errorf(node.Name, CodeCircularBaseClass,
					"class %s has itself in its base-class chain", node.Name.Name)
				continue
			}
			class.Bases = append(class.Bases, resolved)
		}
	}
	c.classStack = c.classStack[:len(c.classStack)-1]
	if len(class.Bases) == 0 && class != ClassObject {
		class.Bases = []*Class{ClassObject}
	}
	return class
}

// resolveClassExpr resolves an expression naming a class: a builtin
// name, a class defined in this file, or a module attribute.
func (c *checker) resolveClassExpr(e ast.Expr) (*Class, bool) {
	switch n := e.(type) {
	case *ast.Ident:
		if node := c.classDefNamed(n.Name); node != nil {
			return c.classFor(node), true
		}
		if class, ok := BuiltinClass(n.Name); ok {
			return class, true
		}
		// An imported name may resolve to a class literal.
		if t := c.inferExpr(n); t != nil {
			if cl, ok := t.(*ClassLiteral); ok {
				return cl.Class, true
			}
		}
	case *ast.Attribute:
		if t := c.inferExpr(n); t != nil {
			if cl, ok := t.(*ClassLiteral); ok {
				return cl.Class, true
			}
		}
	case *ast.ParenExpr:
		return c.resolveClassExpr(n.X)
	}
	return nil, false
}

// classDefNamed finds a class definition binding name in this scope or
// an enclosing one.
func (c *checker) classDefNamed(name string) *ast.ClassDef {
	for scope := c.scope; ; {
		if pid, ok := scope.PlaceByKey(name); ok {
			if defs, _, ok := scope.PublicBinding(pid); ok {
				for _, did := range defs {
					if did == semantic.UnboundDef {
						continue
					}
					def := scope.Definitions[did]
					if def.Kind == semantic.DefClass {
						if node, ok := def.Node.(*ast.ClassDef); ok {
							return node
						}
					}
				}
			}
		}
		if scope.ID == scope.Parent {
			return nil
		}
		scope = c.ix.Scope(scope.Parent)
	}
}

// ---------------------------------------------------------------------
// Annotations

// annotationType resolves a type annotation expression. String
// annotations (forward references) are parsed in a sub-step that
// feeds back into resolution.
func (c *checker) annotationType(e ast.Expr) Type {
	switch n := e.(type) {
	case *ast.Ident:
		if class, ok := c.resolveClassExpr(n); ok {
			return NewInstance(class)
		}
		switch n.Name {
		case "Any":
			return TAny
		case "None":
			return TNone
		}
		return TUnknown

	case *ast.BasicLit:
		switch n.Kind {
		case ast.NoneLit:
			return TNone
		case ast.StringLit:
			// Forward reference: parse the text and resolve the
			// resulting expression.
			text := stringLitValue(n.Value)
			inner, err := parser.ParseExprString(text)
			if err != nil || inner == nil {
				return NewStringAnnotation(text)
			}
			return c.annotationType(inner)
		}
		return TUnknown

	case *ast.BinaryExpr:
		if n.Op == ast.BitOr {
			return MakeUnion(c.annotationType(n.X), c.annotationType(n.Y))
		}
		return TUnknown

	case *ast.Subscript:
		return c.genericAnnotation(n)

	case *ast.Attribute:
		// typing.Optional etc. spelled through the module.
		if n.Attr != nil {
			return c.annotationByName(n.Attr.Name, nil)
		}
		return TUnknown

	case *ast.ParenExpr:
		return c.annotationType(n.X)
	}
	return TUnknown
}

func (c *checker) genericAnnotation(n *ast.Subscript) Type {
	head := ""
	switch fn := n.Value.(type) {
	case *ast.Ident:
		head = fn.Name
	case *ast.Attribute:
		head = fn.Attr.Name
	default:
		return TUnknown
	}
	var args []ast.Expr
	if tup, ok := n.Index.(*ast.TupleExpr); ok {
		args = tup.Elts
	} else {
		args = []ast.Expr{n.Index}
	}
	return c.annotationByName(head, args)
}

func (c *checker) annotationByName(head string, args []ast.Expr) Type {
	switch head {
	case "Optional":
		if len(args) == 1 {
			return MakeUnion(c.annotationType(args[0]), TNone)
		}
		return TUnknown
	case "Union":
		members := make([]Type, len(args))
		for i, a := range args {
			members[i] = c.annotationType(a)
		}
		return MakeUnion(members...)
	case "Callable":
		return NewCallable(nil, TUnknown)
	case "Any":
		return TAny
	}
	if class, ok := BuiltinClass(head); ok {
		params := make([]Type, len(args))
		for i, a := range args {
			params[i] = c.annotationType(a)
		}
		return NewInstance(class, params...)
	}
	if node := c.classDefNamed(head); node != nil {
		return NewInstance(c.classFor(node))
	}
	return TUnknown
}
