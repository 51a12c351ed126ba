package types

import (
	"fmt"
	"path"
	"strings"

	"github.com/harrier-dev/harrier/ast"
	"github.com/harrier-dev/harrier/internal/core/db"
	"github.com/harrier-dev/harrier/internal/core/diagnostic"
	"github.com/harrier-dev/harrier/internal/core/semantic"
	"github.com/harrier-dev/harrier/internal/core/source"
)

// Rule codes for type-check diagnostics.
const (
	CodeCircularBaseClass      = "TC001"
	CodeIncompatibleAssignment = "TC002"
	CodeUnsupportedOperand     = "TC003"
	CodeInvalidReturn          = "TC004"
)

// InferenceResult bundles everything inference derives for one file.
type InferenceResult struct {
	// ExprTypes assigns a type to every inferred expression.
	ExprTypes map[ast.Expr]Type
	// PossiblyUnbound marks use expressions that may be unbound on
	// some path; the possibly-unbound lint rule reports them.
	PossiblyUnbound map[ast.Expr]bool
	Diagnostics     []diagnostic.Diagnostic
}

// TypeOf returns the inferred type for e, defaulting to Unknown.
func (r *InferenceResult) TypeOf(e ast.Expr) Type {
	if r == nil {
		return TUnknown
	}
	if t, ok := r.ExprTypes[e]; ok {
		return t
	}
	return TUnknown
}

// SymbolInfo is the public view of one module-level symbol.
type SymbolInfo struct {
	Type            Type
	PossiblyUnbound bool
	Found           bool
}

type scopeKey struct {
	File  *source.File
	Scope semantic.ScopeID
}

type symbolKey struct {
	File *source.File
	Name string
}

// Query is the top-level inference query, keyed by *source.File. It
// merges the per-scope sub-queries so an edit local to one function
// re-infers only that function's scope.
var Query = &db.Query{
	Name: "types.infer",
	Compute: func(ctx *db.Context, key any) any {
		file := key.(*source.File)
		ix := semantic.Of(ctx, file)
		result := &InferenceResult{
			ExprTypes:       make(map[ast.Expr]Type),
			PossiblyUnbound: make(map[ast.Expr]bool),
		}
		if ix == nil {
			return result
		}
		for _, sc := range ix.Scopes {
			sub := db.GetTyped[*InferenceResult](ctx, scopeQuery, scopeKey{file, sc.ID})
			if sub == nil {
				continue
			}
			for e, t := range sub.ExprTypes {
				result.ExprTypes[e] = t
			}
			for e, u := range sub.PossiblyUnbound {
				result.PossiblyUnbound[e] = u
			}
			result.Diagnostics = append(result.Diagnostics, sub.Diagnostics...)
		}
		return result
	},
	Cycle: db.CycleConfig{Recovery: (*InferenceResult)(nil)},
}

// Of returns the inference result for file.
func Of(ctx *db.Context, file *source.File) *InferenceResult {
	return db.GetTyped[*InferenceResult](ctx, Query, file)
}

// scopeQuery infers one scope's expressions, keyed by (file, scope).
var scopeQuery = &db.Query{
	Name: "types.inferScope",
	Compute: func(ctx *db.Context, key any) any {
		k := key.(scopeKey)
		ix := semantic.Of(ctx, k.File)
		if ix == nil || int(k.Scope) >= len(ix.Scopes) {
			return (*InferenceResult)(nil)
		}
		c := &checker{
			ctx:     ctx,
			file:    k.File,
			ix:      ix,
			scope:   ix.Scope(k.Scope),
			classes: make(map[*ast.ClassDef]*Class),
			result: &InferenceResult{
				ExprTypes:       make(map[ast.Expr]Type),
				PossiblyUnbound: make(map[ast.Expr]bool),
			},
		}
		c.inferScope()
		return c.result
	},
	Cycle: db.CycleConfig{Recovery: (*InferenceResult)(nil)},
}

// PublicSymbolQuery resolves a module-level symbol of a file to its
// public type: the reaching definitions at end of module scope, with
// visibility applied. Keyed by (file, name); the recovery value keeps
// import cycles from looping.
var PublicSymbolQuery *db.Query

func init() {
	PublicSymbolQuery = &db.Query{
		Name: "types.publicSymbol",
		Compute: func(ctx *db.Context, key any) any {
			k := key.(symbolKey)
			ix := semantic.Of(ctx, k.File)
			if ix == nil {
				return SymbolInfo{Type: TUnknown}
			}
			mod := ix.Scope(semantic.ModuleScope)
			c := &checker{
				ctx:     ctx,
				file:    k.File,
				ix:      ix,
				scope:   mod,
				classes: make(map[*ast.ClassDef]*Class),
				result: &InferenceResult{
					ExprTypes:       make(map[ast.Expr]Type),
					PossiblyUnbound: make(map[ast.Expr]bool),
				},
			}
			return c.publicSymbol(mod, k.Name)
		},
		Cycle: db.CycleConfig{Recovery: SymbolInfo{Type: TUnknown}},
	}
}

// PublicSymbol resolves a module-level symbol through the engine.
func PublicSymbol(ctx *db.Context, file *source.File, name string) SymbolInfo {
	v := ctx.Get(PublicSymbolQuery, symbolKey{file, name})
	if v == nil {
		return SymbolInfo{Type: TUnknown}
	}
	return v.(SymbolInfo)
}

type checker struct {
	ctx   *db.Context
	file  *source.File
	ix    *semantic.Index
	scope *semantic.ScopeData

	// classes caches the Class built for each class definition;
	// classStack detects cyclic base-class chains and cyclic records
	// which classes already reported one.
	classes    map[*ast.ClassDef]*Class
	classStack []*ast.ClassDef
	cyclic     map[*ast.ClassDef]bool

	result *InferenceResult
}

func (c *checker) errorf(n ast.Node, code, format string, args ...any) {
	c.result.Diagnostics = append(c.result.Diagnostics, diagnostic.Diagnostic{
		Code:     code,
		Severity: diagnostic.SeverityError,
		Range:    ast.Range(n),
		Message:  fmt.Sprintf(format, args...),
	})
}

// inferScope types the statements owned by this scope: descent stops
// at nested scope-introducing constructs, whose bodies belong to
// their own scope queries.
func (c *checker) inferScope() {
	switch n := c.scope.Node.(type) {
	case *ast.Module:
		c.stmts(n.Body)
	case *ast.FunctionDef:
		c.stmts(n.Body)
	case *ast.ClassDef:
		c.stmts(n.Body)
	case *ast.Lambda:
		c.inferExpr(n.Body)
	case ast.Expr: // comprehension scope
		c.inferComprehensionScope(n)
	}
}

func (c *checker) inferComprehensionScope(e ast.Expr) {
	switch x := e.(type) {
	case *ast.ListComp:
		c.comprehensionParts(x.Gens, x.Elt, nil)
	case *ast.SetComp:
		c.comprehensionParts(x.Gens, x.Elt, nil)
	case *ast.DictComp:
		c.comprehensionParts(x.Gens, x.Key, x.Value)
	case *ast.GeneratorExp:
		c.comprehensionParts(x.Gens, x.Elt, nil)
	}
}

func (c *checker) comprehensionParts(gens []*ast.Comprehension, elt1, elt2 ast.Expr) {
	for i, g := range gens {
		if i > 0 {
			c.inferExpr(g.Iter)
		}
		for _, cond := range g.Ifs {
			c.inferExpr(cond)
		}
	}
	c.inferExpr(elt1)
	if elt2 != nil {
		c.inferExpr(elt2)
	}
}

func (c *checker) stmts(list []ast.Stmt) {
	for _, s := range list {
		c.stmt(s)
	}
}

func (c *checker) stmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.Assign:
		c.inferExpr(n.Value)
		for _, t := range n.Targets {
			c.inferTargetReads(t)
		}

	case *ast.AugAssign:
		c.inferExpr(n.Value)
		c.inferExpr(n.Target)

	case *ast.AnnAssign:
		declared := c.annotationType(n.Annotation)
		if n.Value != nil {
			got := c.inferExpr(n.Value)
			if !IsAssignable(got, declared) {
				c.errorf(n.Value, CodeIncompatibleAssignment,
					"cannot assign value of type %s to target declared as %s", String(got), String(declared))
			}
		}

	case *ast.FunctionDef:
		// Header only; the body belongs to the function scope.
		for _, d := range n.Decorators {
			c.inferExpr(d)
		}
		c.headerParamExprs(n.Params)
		if n.Returns != nil {
			c.annotationType(n.Returns)
		}

	case *ast.ClassDef:
		for _, d := range n.Decorators {
			c.inferExpr(d)
		}
		c.classFor(n)

	case *ast.Return:
		var got Type = TNone
		if n.Value != nil {
			got = c.inferExpr(n.Value)
		}
		if fn, ok := c.scope.Node.(*ast.FunctionDef); ok && fn.Returns != nil {
			declared := c.annotationType(fn.Returns)
			if !IsAssignable(got, declared) {
				c.errorf(s, CodeInvalidReturn,
					"return value of type %s does not match declared return type %s", String(got), String(declared))
			}
		}

	case *ast.Delete:
		for _, t := range n.Targets {
			c.inferExpr(t)
		}

	case *ast.IfStmt:
		c.inferExpr(n.Test)
		c.stmts(n.Body)
		c.stmts(n.Orelse)

	case *ast.WhileStmt:
		c.inferExpr(n.Test)
		c.stmts(n.Body)
		c.stmts(n.Orelse)

	case *ast.ForStmt:
		c.inferExpr(n.Iter)
		c.stmts(n.Body)
		c.stmts(n.Orelse)

	case *ast.WithStmt:
		for _, item := range n.Items {
			c.inferExpr(item.Context)
		}
		c.stmts(n.Body)

	case *ast.TryStmt:
		c.stmts(n.Body)
		for _, h := range n.Handlers {
			if h.Type != nil {
				c.inferExpr(h.Type)
			}
			c.stmts(h.Body)
		}
		c.stmts(n.Orelse)
		c.stmts(n.Final)

	case *ast.MatchStmt:
		c.inferExpr(n.Subject)
		for _, cs := range n.Cases {
			if cs.Guard != nil {
				c.inferExpr(cs.Guard)
			}
			c.stmts(cs.Body)
		}

	case *ast.Raise:
		if n.Exc != nil {
			c.inferExpr(n.Exc)
		}
		if n.Cause != nil {
			c.inferExpr(n.Cause)
		}

	case *ast.Assert:
		c.inferExpr(n.Test)
		if n.Msg != nil {
			c.inferExpr(n.Msg)
		}

	case *ast.ExprStmt:
		c.inferExpr(n.Value)
	}
}

// inferTargetReads types the loaded parts of an assignment target
// (attribute bases, subscript indices) without treating the bound
// names as loads.
func (c *checker) inferTargetReads(t ast.Expr) {
	switch x := t.(type) {
	case *ast.TupleExpr:
		for _, e := range x.Elts {
			c.inferTargetReads(e)
		}
	case *ast.ListExpr:
		for _, e := range x.Elts {
			c.inferTargetReads(e)
		}
	case *ast.Starred:
		c.inferTargetReads(x.Value)
	case *ast.Attribute:
		c.inferExpr(x.Value)
	case *ast.Subscript:
		c.inferExpr(x.Value)
		c.inferExpr(x.Index)
	}
}

func (c *checker) headerParamExprs(params *ast.Parameters) {
	if params == nil {
		return
	}
	each := func(list []*ast.Param) {
		for _, p := range list {
			if p.Annotation != nil {
				c.annotationType(p.Annotation)
			}
			if p.Default != nil {
				c.inferExpr(p.Default)
			}
		}
	}
	each(params.PosOnly)
	each(params.Args)
	if params.VarArg != nil {
		each([]*ast.Param{params.VarArg})
	}
	each(params.KwOnly)
	if params.KwArg != nil {
		each([]*ast.Param{params.KwArg})
	}
}

// ---------------------------------------------------------------------
// Symbol resolution

// publicSymbol resolves name in a scope's end-of-scope bindings.
func (c *checker) publicSymbol(scope *semantic.ScopeData, name string) SymbolInfo {
	pid, ok := scope.PlaceByKey(name)
	if !ok {
		return c.starImportSymbol(scope, name)
	}
	defs, unbound, ok := scope.PublicBinding(pid)
	if !ok || len(defs) == 0 {
		return c.starImportSymbol(scope, name)
	}
	t, possiblyUnbound := c.unionDefs(scope, defs, unbound)
	return SymbolInfo{Type: t, PossiblyUnbound: possiblyUnbound, Found: true}
}

// starImportSymbol resolves name through the scope's star-import
// placeholders: each placeholder is decided against the imported
// module's public names at inference time, never during indexing.
func (c *checker) starImportSymbol(scope *semantic.ScopeData, name string) SymbolInfo {
	for _, did := range scope.StarImports {
		def := scope.Definitions[did]
		imp, ok := def.Node.(*ast.ImportFrom)
		if !ok {
			continue
		}
		mod, ok := c.resolveModule(imp.Module, imp.Level)
		if !ok {
			continue
		}
		info := PublicSymbol(c.ctx, mod, name)
		if info.Found {
			return info
		}
	}
	return SymbolInfo{Type: TUnknown}
}

// unionDefs unions the types of a definition set, applying each
// definition's visibility constraint first: always-false definitions
// drop out, ambiguous ones keep the value but add possibly-unbound.
func (c *checker) unionDefs(scope *semantic.ScopeData, defs []semantic.DefinitionID, unbound bool) (Type, bool) {
	var members []Type
	possiblyUnbound := unbound
	for _, did := range defs {
		if did == semantic.UnboundDef {
			possiblyUnbound = true
			continue
		}
		def := scope.Definitions[did]
		switch scope.EvalVisibility(def.Visibility, StaticTruthiness) {
		case semantic.AlwaysFalse:
			continue
		}
		members = append(members, c.defType(scope, def))
	}
	if len(members) == 0 {
		return TUnknown, possiblyUnbound
	}
	return MakeUnion(members...), possiblyUnbound
}

// lookupUse types a recorded use: local reaching definitions first,
// then enclosing scopes, builtins, and star imports; finally the
// use-site narrowing predicates refine the result.
func (c *checker) lookupUse(scope *semantic.ScopeData, use *semantic.Use) Type {
	place := scope.Places[use.Place]
	defs := scope.DefsFor(use)

	var t Type
	possiblyUnbound := false
	if len(defs) > 0 {
		t, possiblyUnbound = c.unionDefs(scope, defs, false)
		if use.MayBeUnbound {
			possiblyUnbound = true
		}
	} else {
		info := c.resolveOuter(scope, place)
		t = info.Type
		possiblyUnbound = info.PossiblyUnbound
		if !info.Found {
			t = TUnknown
		}
	}

	nw := &Narrower{PlaceKey: place.Key.String(), ResolveClass: c.resolveClassExpr}
	for _, pid := range use.Narrowing {
		t = nw.Apply(scope.Predicates[pid], t)
	}

	if possiblyUnbound && use.Node != nil {
		c.result.PossiblyUnbound[use.Node] = true
	}
	return t
}

// resolveOuter resolves a place with no local binding: enclosing
// scopes' public bindings (class scopes are skipped for lookups from
// nested function scopes, matching Python's scoping), then builtins,
// then module-scope star imports.
func (c *checker) resolveOuter(scope *semantic.ScopeData, place semantic.Place) SymbolInfo {
	if !place.IsSymbol() {
		return SymbolInfo{Type: TUnknown}
	}
	name := place.Name
	cur := scope
	for cur.ID != cur.Parent {
		parent := c.ix.Scope(cur.Parent)
		cur = parent
		if parent.Kind == semantic.KindClass && scope.Kind != semantic.KindClass {
			continue
		}
		if info := c.publicSymbolShallow(parent, name); info.Found {
			return info
		}
	}
	if t, ok := LookupBuiltin(name); ok {
		return SymbolInfo{Type: t, Found: true}
	}
	mod := c.ix.Scope(semantic.ModuleScope)
	if info := c.starImportSymbol(mod, name); info.Found {
		return info
	}
	return SymbolInfo{Type: TUnknown}
}

// publicSymbolShallow is publicSymbol without the star-import
// fallback, for walking enclosing scopes.
func (c *checker) publicSymbolShallow(scope *semantic.ScopeData, name string) SymbolInfo {
	pid, ok := scope.PlaceByKey(name)
	if !ok {
		return SymbolInfo{}
	}
	defs, unbound, ok := scope.PublicBinding(pid)
	if !ok || len(defs) == 0 {
		return SymbolInfo{}
	}
	t, possiblyUnbound := c.unionDefs(scope, defs, unbound)
	return SymbolInfo{Type: t, PossiblyUnbound: possiblyUnbound, Found: true}
}

var vendoredStubs = source.NewVendoredLoader()

// resolveModule maps an import's module spelling to a source file:
// relative imports resolve against the importing file's directory,
// absolute ones against the same directory, then the vendored stub
// bundle.
func (c *checker) resolveModule(module string, level int) (*source.File, bool) {
	reg := c.ctx.Database().Sources
	dir := path.Dir(c.file.Path().String())
	for i := 1; i < level; i++ {
		dir = path.Dir(dir)
	}
	rel := strings.ReplaceAll(module, ".", "/")
	candidate := path.Join(dir, rel+".py")
	f := reg.File(candidate, c.file.Kind())
	if text := c.ctx.ReadFile(f); text.Exists {
		return f, true
	}
	if stub, ok := vendoredStubs.StubPath(module); ok {
		return reg.File(stub, source.KindVendored), true
	}
	return nil, false
}
