// Package lint implements the rule engine: a registry of rules
// indexed by the AST node kinds they target, a checker context passed
// to each rule invocation, the single depth-first traversal that
// dispatches them, suppression-comment matching, and fix composition.
package lint

import (
	"fmt"
	"sort"
	"strings"

	"github.com/harrier-dev/harrier/ast"
	"github.com/harrier-dev/harrier/internal/core/diagnostic"
)

// NodeKind identifies an AST node type for dispatch indexing.
type NodeKind int

const (
	KindInvalid NodeKind = iota

	// statements
	KindFunctionDef
	KindClassDef
	KindReturn
	KindDelete
	KindAssign
	KindAugAssign
	KindAnnAssign
	KindFor
	KindWhile
	KindIf
	KindWith
	KindRaise
	KindTry
	KindAssert
	KindImport
	KindImportFrom
	KindGlobal
	KindNonlocal
	KindExprStmt
	KindPass
	KindBreak
	KindContinue
	KindMatch

	// expressions
	KindIdent
	KindBasicLit
	KindJoinedStr
	KindAttribute
	KindSubscript
	KindStarred
	KindTuple
	KindList
	KindSet
	KindDict
	KindListComp
	KindSetComp
	KindDictComp
	KindGenerator
	KindCall
	KindUnary
	KindBinary
	KindBoolOp
	KindCompare
	KindIfExp
	KindLambda
	KindNamedExpr
	KindAwait
	KindYield
	KindParen

	numNodeKinds
)

// KindOf classifies a node for rule dispatch.
func KindOf(n ast.Node) NodeKind {
	switch n.(type) {
	case *ast.FunctionDef:
		return KindFunctionDef
	case *ast.ClassDef:
		return KindClassDef
	case *ast.Return:
		return KindReturn
	case *ast.Delete:
		return KindDelete
	case *ast.Assign:
		return KindAssign
	case *ast.AugAssign:
		return KindAugAssign
	case *ast.AnnAssign:
		return KindAnnAssign
	case *ast.ForStmt:
		return KindFor
	case *ast.WhileStmt:
		return KindWhile
	case *ast.IfStmt:
		return KindIf
	case *ast.WithStmt:
		return KindWith
	case *ast.Raise:
		return KindRaise
	case *ast.TryStmt:
		return KindTry
	case *ast.Assert:
		return KindAssert
	case *ast.Import:
		return KindImport
	case *ast.ImportFrom:
		return KindImportFrom
	case *ast.Global:
		return KindGlobal
	case *ast.Nonlocal:
		return KindNonlocal
	case *ast.ExprStmt:
		return KindExprStmt
	case *ast.Pass:
		return KindPass
	case *ast.Break:
		return KindBreak
	case *ast.Continue:
		return KindContinue
	case *ast.MatchStmt:
		return KindMatch
	case *ast.Ident:
		return KindIdent
	case *ast.BasicLit:
		return KindBasicLit
	case *ast.JoinedStr:
		return KindJoinedStr
	case *ast.Attribute:
		return KindAttribute
	case *ast.Subscript:
		return KindSubscript
	case *ast.Starred:
		return KindStarred
	case *ast.TupleExpr:
		return KindTuple
	case *ast.ListExpr:
		return KindList
	case *ast.SetExpr:
		return KindSet
	case *ast.DictExpr:
		return KindDict
	case *ast.ListComp:
		return KindListComp
	case *ast.SetComp:
		return KindSetComp
	case *ast.DictComp:
		return KindDictComp
	case *ast.GeneratorExp:
		return KindGenerator
	case *ast.CallExpr:
		return KindCall
	case *ast.UnaryExpr:
		return KindUnary
	case *ast.BinaryExpr:
		return KindBinary
	case *ast.BoolOp:
		return KindBoolOp
	case *ast.Compare:
		return KindCompare
	case *ast.IfExp:
		return KindIfExp
	case *ast.Lambda:
		return KindLambda
	case *ast.NamedExpr:
		return KindNamedExpr
	case *ast.Await:
		return KindAwait
	case *ast.Yield, *ast.YieldFrom:
		return KindYield
	case *ast.ParenExpr:
		return KindParen
	}
	return KindInvalid
}

// FixAvailability declares whether a rule can produce a fix.
type FixAvailability int

const (
	FixNone FixAvailability = iota
	FixSometimes
	FixAlways
)

// A Rule is one lint check: a stable code, dispatch targets, and an
// implementation invoked with the checker context and each matched
// node.
type Rule struct {
	// Code is the stable identifier users select and suppress by.
	Code string
	// Name is the human-readable rule slug.
	Name string

	DefaultSeverity diagnostic.Severity

	// Kinds are the AST node kinds the rule wants to visit. Empty
	// with WholeFile set means the rule runs once per file instead.
	Kinds     []NodeKind
	WholeFile bool

	// Callees restricts a call-targeting rule to calls whose callee
	// matches one of the dotted-name patterns ("json.loads",
	// "*.encode"). Only meaningful when Kinds includes KindCall.
	Callees []string

	Fix       FixAvailability
	FixSafety diagnostic.Applicability

	// Check inspects node and reports diagnostics through the
	// context. It must not mutate shared state beyond the sink.
	Check func(c *Context, node ast.Node)
}

// matchCallee reports whether a call's callee matches the rule's
// patterns. A leading "*" segment matches any receiver.
func (r *Rule) matchCallee(call *ast.CallExpr) bool {
	if len(r.Callees) == 0 {
		return true
	}
	name, ok := dottedName(call.Fun)
	if !ok {
		return false
	}
	for _, pat := range r.Callees {
		if matchDotted(pat, name) {
			return true
		}
	}
	return false
}

func dottedName(e ast.Expr) (string, bool) {
	switch x := e.(type) {
	case *ast.Ident:
		return x.Name, true
	case *ast.Attribute:
		base, ok := dottedName(x.Value)
		if !ok {
			// Any non-name receiver still matches "*." patterns.
			return "*." + x.Attr.Name, true
		}
		return base + "." + x.Attr.Name, true
	case *ast.ParenExpr:
		return dottedName(x.X)
	case *ast.BasicLit:
		return "*", true
	case *ast.CallExpr:
		return "*", true
	}
	return "", false
}

func matchDotted(pattern, name string) bool {
	ps := strings.Split(pattern, ".")
	ns := strings.Split(name, ".")
	if len(ps) > 1 && ps[0] == "*" && len(ns) > len(ps) {
		// A leading "*" stands for a receiver of any length.
		ns = ns[len(ns)-len(ps):]
	}
	if len(ps) != len(ns) {
		return false
	}
	for i := range ps {
		if ps[i] != "*" && ps[i] != ns[i] {
			return false
		}
	}
	return true
}

// A Linter is a named group of rules registered together.
type Linter struct {
	Name  string
	Rules []*Rule
}

// Registry holds every registered rule with dispatch indices from
// node kind to the rules targeting it, so traversal dispatch is a
// slice lookup rather than a scan.
type Registry struct {
	byCode    map[string]*Rule
	byKind    [numNodeKinds][]*Rule
	wholeFile []*Rule
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byCode: make(map[string]*Rule)}
}

// Register adds a linter's rules. Duplicate codes are rejected: the
// registry is built once at program start and a collision is a
// programming error.
func (reg *Registry) Register(l Linter) error {
	for _, r := range l.Rules {
		if _, dup := reg.byCode[r.Code]; dup {
			return fmt.Errorf("rule code %s registered twice", r.Code)
		}
		reg.byCode[r.Code] = r
		if r.WholeFile {
			reg.wholeFile = append(reg.wholeFile, r)
			continue
		}
		for _, k := range r.Kinds {
			reg.byKind[k] = append(reg.byKind[k], r)
		}
	}
	return nil
}

// MustRegister is Register, panicking on a duplicate code.
func (reg *Registry) MustRegister(l Linter) {
	if err := reg.Register(l); err != nil {
		panic(err)
	}
}

// Lookup finds a rule by code.
func (reg *Registry) Lookup(code string) (*Rule, bool) {
	r, ok := reg.byCode[code]
	return r, ok
}

// Codes returns every registered code, sorted.
func (reg *Registry) Codes() []string {
	codes := make([]string, 0, len(reg.byCode))
	for code := range reg.byCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
