// Package semantic builds the per-file semantic index: a scope tree,
// place tables, definitions, a use–def map, a flow graph, and the
// narrowing/visibility constraint tables. The index is produced by a
// single recursive-descent pass over the parse tree and frozen into an
// immutable value addressable by scope id, place id, and use id.
package semantic

import (
	"github.com/harrier-dev/harrier/ast"
	"github.com/harrier-dev/harrier/internal/core/source"
)

// ScopeID indexes the per-file scope arena. The module scope is
// always 0.
type ScopeID int32

// ModuleScope is the id of the file's outermost scope.
const ModuleScope ScopeID = 0

// ScopeKind classifies a scope.
type ScopeKind int

const (
	KindModule ScopeKind = iota
	KindFunction
	KindClass
	KindComprehension
	KindLambda
	KindTypeParams
)

func (k ScopeKind) String() string {
	switch k {
	case KindModule:
		return "module"
	case KindFunction:
		return "function"
	case KindClass:
		return "class"
	case KindComprehension:
		return "comprehension"
	case KindLambda:
		return "lambda"
	case KindTypeParams:
		return "type-params"
	}
	return "unknown"
}

// PlaceID numbers a place within one scope, in order of first
// occurrence.
type PlaceID int32

// A Place is a name-bindable expression: a bare name (a symbol), an
// attribute chain, or a subscript chain with a constant index.
type Place struct {
	// Key is the canonical spelling ("x", "a.b", "a[0]") places are
	// interned under within their scope.
	Key *source.InternedString

	// Name is the bare name for symbol places, "" otherwise.
	Name string
}

// IsSymbol reports whether the place is a bare name.
func (p Place) IsSymbol() bool { return p.Name != "" }

// DefinitionID numbers a definition within one scope.
type DefinitionID int32

// DefinitionKind classifies the binding construct that produced a
// definition; downstream components branch on this to compute the
// bound type.
type DefinitionKind int

const (
	DefAssignment DefinitionKind = iota
	DefAugAssignment
	DefAnnAssignment
	DefFunction
	DefClass
	DefImport
	DefImportFrom
	DefStarImport
	DefParameter
	DefWalrus
	DefPatternCapture
	DefForTarget
	DefWithTarget
	DefExceptHandler
	DefTypeParam
	DefDelete
)

// A Definition records one act of binding: which place, which AST
// node produced it, and under which narrowing and visibility
// constraints it is the active binding.
type Definition struct {
	Kind  DefinitionKind
	Place PlaceID
	// Node is the binding construct (the Assign, FunctionDef, Alias,
	// Param, ...); Target is the bound expression within it, when one
	// exists (the specific assignment target, nil for a def/class).
	Node   ast.Node
	Target ast.Expr
	// Value is the bound value expression when the construct has one
	// (the RHS of an assignment, the iterable of a for), else nil.
	Value ast.Expr
	// Annotation is the declared type expression, when present.
	Annotation ast.Expr

	// Narrowing is the conjunction of predicates that held when this
	// definition was created.
	Narrowing []PredicateID
	// Visibility gates whether the definition's program point is
	// reachable; evaluated lazily by the type checker.
	Visibility VisibilityID
}

// UseID numbers a use (load) of a place within one scope.
type UseID int32

// defRange is a half-open range into a scope's flat reaching-
// definitions buffer.
type defRange struct {
	start, end uint32
}

// A Use records one load of a place: the definitions that may reach
// it (a range into the scope's flat definition buffer), whether it
// may also be unbound, the narrowing predicates dominating it, and
// the flow node at which it was evaluated.
type Use struct {
	Place PlaceID
	Node  ast.Expr

	defs         defRange
	MayBeUnbound bool
	Narrowing    []PredicateID
	Flow         FlowNodeID
}

// Binding is the frozen end-of-scope state for one place: the
// definitions visible at scope exit, for computing a symbol's public
// type.
type Binding struct {
	defs         defRange
	MayBeUnbound bool
}

// ScopeData is everything the index knows about one scope. All slices
// are frozen (shrunk to fit) when the builder exits the scope.
type ScopeData struct {
	ID     ScopeID
	Parent ScopeID // == ID for the module scope
	Kind   ScopeKind
	Node   ast.Node // the defining construct; the Module for scope 0

	Places      []Place
	Definitions []Definition
	Uses        []Use
	Predicates  []Predicate

	// Globals and Nonlocals hold names declared `global`/`nonlocal`
	// in this scope; bindings of those names resolve outward.
	Globals   map[string]bool
	Nonlocals map[string]bool

	// StarImports lists the star-import definitions in this scope, the
	// placeholders the type checker resolves per looked-up name.
	StarImports []DefinitionID

	// public maps each place to its end-of-scope binding state.
	public map[PlaceID]Binding

	placeIdx map[string]PlaceID
	defsBuf  []DefinitionID
	flow     []flowNode
	vis      []visNode
}

// PlaceByKey resolves a canonical place spelling to its id.
func (s *ScopeData) PlaceByKey(key string) (PlaceID, bool) {
	id, ok := s.placeIdx[key]
	return id, ok
}

// DefsFor resolves a use's definition range to the definition ids.
func (s *ScopeData) DefsFor(u *Use) []DefinitionID {
	return s.defsBuf[u.defs.start:u.defs.end]
}

// PublicBinding returns the end-of-scope binding state for a place.
func (s *ScopeData) PublicBinding(place PlaceID) (defs []DefinitionID, mayBeUnbound bool, ok bool) {
	b, ok := s.public[place]
	if !ok {
		return nil, true, false
	}
	return s.defsBuf[b.defs.start:b.defs.end], b.MayBeUnbound, true
}

// Index is the immutable semantic index for one file at one revision.
type Index struct {
	File   *source.File
	Scopes []*ScopeData

	// useSite locates the scope and use record for a load expression.
	useSite map[ast.Expr]useSite
	// scopeOf locates the scope introduced by a defining node
	// (FunctionDef, ClassDef, Lambda, comprehension).
	scopeOf map[ast.Node]ScopeID
	// exprFlow records the flow node each expression was evaluated at.
	exprFlow map[ast.Expr]FlowNodeID
}

type useSite struct {
	scope ScopeID
	use   UseID
}

// Scope returns the scope with the given id.
func (ix *Index) Scope(id ScopeID) *ScopeData { return ix.Scopes[id] }

// UseOf locates the use record for a load expression, if e was indexed
// as a use.
func (ix *Index) UseOf(e ast.Expr) (*ScopeData, *Use, bool) {
	site, ok := ix.useSite[e]
	if !ok {
		return nil, nil, false
	}
	s := ix.Scopes[site.scope]
	return s, &s.Uses[site.use], true
}

// ScopeFor returns the scope introduced by a defining node (a
// FunctionDef, ClassDef, Lambda, or comprehension), if any.
func (ix *Index) ScopeFor(n ast.Node) (ScopeID, bool) {
	id, ok := ix.scopeOf[n]
	return id, ok
}

// FlowAt returns the flow node an expression was evaluated at.
func (ix *Index) FlowAt(e ast.Expr) (FlowNodeID, bool) {
	id, ok := ix.exprFlow[e]
	return id, ok
}

// PlaceKey computes the canonical spelling for a narrowable place
// expression, or ok=false if e is not a place.
func PlaceKey(e ast.Expr) (string, bool) {
	if !ast.IsPlace(e) {
		return "", false
	}
	return placeKey(e), true
}

func placeKey(e ast.Expr) string {
	switch x := e.(type) {
	case *ast.Ident:
		return x.Name
	case *ast.Attribute:
		return placeKey(x.Value) + "." + x.Attr.Name
	case *ast.Subscript:
		return placeKey(x.Value) + "[" + literalText(x.Index) + "]"
	}
	return ""
}

func literalText(e ast.Expr) string {
	switch x := e.(type) {
	case *ast.BasicLit:
		return x.Value
	case *ast.UnaryExpr:
		return "-" + literalText(x.Operand)
	}
	return ""
}
