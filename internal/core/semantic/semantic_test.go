package semantic

import (
	"testing"

	"github.com/harrier-dev/harrier/ast"
	"github.com/harrier-dev/harrier/internal/core/source"
	"github.com/harrier-dev/harrier/parser"
)

func buildIndex(t *testing.T, src string) *Index {
	t.Helper()
	mod, err := parser.ParseFile("t.py", []byte(src), 0)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	loader := source.NewMemoryLoader(map[string]string{"t.py": src})
	reg := source.NewRegistry(map[source.Kind]source.Loader{source.KindSystem: loader})
	return Build(reg.File("t.py", source.KindSystem), mod)
}

// findUse locates the use record for the given name's load; loads are
// returned in source order, n selects which (0-based).
func findUse(t *testing.T, ix *Index, name string, n int) (*ScopeData, *Use) {
	t.Helper()
	var scope *ScopeData
	var use *Use
	count := 0
	for _, sc := range ix.Scopes {
		for i := range sc.Uses {
			u := &sc.Uses[i]
			if id, ok := u.Node.(*ast.Ident); ok && id.Name == name {
				if count == n {
					scope, use = sc, u
				}
				count++
			}
		}
	}
	if use == nil {
		t.Fatalf("no use #%d of %q found", n, name)
	}
	return scope, use
}

func TestModuleScopeIsZero(t *testing.T) {
	ix := buildIndex(t, "x = 1\n")
	if len(ix.Scopes) != 1 {
		t.Fatalf("scope count = %d, want 1", len(ix.Scopes))
	}
	mod := ix.Scope(ModuleScope)
	if mod.Kind != KindModule || mod.ID != 0 {
		t.Fatalf("module scope = id %d kind %v", mod.ID, mod.Kind)
	}
}

func TestEmptyFile(t *testing.T) {
	ix := buildIndex(t, "")
	if len(ix.Scopes) != 1 {
		t.Fatalf("scope count = %d, want 1", len(ix.Scopes))
	}
	mod := ix.Scope(ModuleScope)
	if len(mod.Definitions) != 0 || len(mod.Uses) != 0 {
		t.Fatalf("empty file produced %d definitions, %d uses",
			len(mod.Definitions), len(mod.Uses))
	}
}

func TestScopeTree(t *testing.T) {
	src := `def f():
    def g():
        pass

class C:
    def m(self):
        pass
`
	ix := buildIndex(t, src)
	var kinds []ScopeKind
	for _, sc := range ix.Scopes {
		kinds = append(kinds, sc.Kind)
	}
	want := []ScopeKind{KindModule, KindFunction, KindFunction, KindClass, KindFunction}
	if len(kinds) != len(want) {
		t.Fatalf("scopes = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("scope[%d] = %v, want %v", i, kinds[i], want[i])
		}
	}
	// g's parent is f's scope, not the module.
	g := ix.Scopes[2]
	if g.Parent != 1 {
		t.Fatalf("g.Parent = %d, want 1", g.Parent)
	}
}

func TestStraightLineUseDef(t *testing.T) {
	ix := buildIndex(t, "x = 1\nx = 2\ny = x\n")
	scope, use := findUse(t, ix, "x", 0)
	defs := scope.DefsFor(use)
	if len(defs) != 1 {
		t.Fatalf("reaching defs = %d, want 1 (second assignment shadows)", len(defs))
	}
	if use.MayBeUnbound {
		t.Fatal("straight-line use flagged as possibly unbound")
	}
	def := scope.Definitions[defs[0]]
	if def.Kind != DefAssignment {
		t.Fatalf("definition kind = %v, want assignment", def.Kind)
	}
	// The reaching definition is the second assignment.
	if lit, ok := def.Value.(*ast.BasicLit); !ok || lit.Value != "2" {
		t.Fatalf("reaching definition value = %v, want the literal 2", def.Value)
	}
}

func TestBranchMergeUnionsDefinitions(t *testing.T) {
	src := `if c:
    x = 1
else:
    x = 2
y = x
`
	ix := buildIndex(t, src)
	scope, use := findUse(t, ix, "x", 0)
	defs := scope.DefsFor(use)
	if len(defs) != 2 {
		t.Fatalf("reaching defs = %d, want 2 (one per arm)", len(defs))
	}
	if use.MayBeUnbound {
		t.Fatal("both arms bind x; use must not be possibly-unbound")
	}
}

func TestSingleArmBindingMayBeUnbound(t *testing.T) {
	src := `if c:
    x = 1
y = x
`
	ix := buildIndex(t, src)
	scope, use := findUse(t, ix, "x", 0)
	if len(scope.DefsFor(use)) != 1 {
		t.Fatalf("reaching defs = %d, want 1", len(scope.DefsFor(use)))
	}
	if !use.MayBeUnbound {
		t.Fatal("x bound in only one arm must be possibly-unbound")
	}
}

func TestTerminatedArmLeavesResidualNarrowing(t *testing.T) {
	src := `def f(x):
    if x is None:
        return 0
    return x
`
	ix := buildIndex(t, src)
	scope, use := findUse(t, ix, "x", 1) // the `return x` load
	if len(use.Narrowing) == 0 {
		t.Fatal("use after a terminated arm carries no narrowing predicate")
	}
	pred := scope.Predicates[use.Narrowing[len(use.Narrowing)-1]]
	if pred.Positive {
		t.Fatal("the surviving path's predicate must be the negated test")
	}
}

func TestForTargetMayBeUnboundAfterLoop(t *testing.T) {
	src := `for i in xs:
    pass
print(i)
`
	ix := buildIndex(t, src)
	_, use := findUse(t, ix, "i", 0)
	if !use.MayBeUnbound {
		t.Fatal("for-target after a possibly-empty loop must be possibly-unbound")
	}
}

func TestWalrusBindsInCurrentScope(t *testing.T) {
	ix := buildIndex(t, "if (n := 10) > 5:\n    print(n)\n")
	mod := ix.Scope(ModuleScope)
	pid, ok := mod.PlaceByKey("n")
	if !ok {
		t.Fatal("walrus target not in module place table")
	}
	defs, _, ok := mod.PublicBinding(pid)
	if !ok || len(defs) != 1 {
		t.Fatalf("walrus public binding: defs=%v ok=%v", defs, ok)
	}
	if mod.Definitions[defs[0]].Kind != DefWalrus {
		t.Fatalf("definition kind = %v, want walrus", mod.Definitions[defs[0]].Kind)
	}
}

func TestStarImportPlaceholder(t *testing.T) {
	ix := buildIndex(t, "from m import *\n")
	mod := ix.Scope(ModuleScope)
	if len(mod.StarImports) != 1 {
		t.Fatalf("star imports = %d, want 1", len(mod.StarImports))
	}
	def := mod.Definitions[mod.StarImports[0]]
	if def.Kind != DefStarImport {
		t.Fatalf("kind = %v, want star import", def.Kind)
	}
	// The placeholder predicate is interned alongside.
	found := false
	for _, p := range mod.Predicates {
		if p.StarImport != nil {
			found = true
		}
	}
	if !found {
		t.Fatal("no star-import placeholder predicate recorded")
	}
}

func TestAttributeChainPlaces(t *testing.T) {
	ix := buildIndex(t, "a.b = 1\ny = a.b\n")
	mod := ix.Scope(ModuleScope)
	pid, ok := mod.PlaceByKey("a.b")
	if !ok {
		t.Fatal("attribute chain not indexed as a place")
	}
	defs, _, ok := mod.PublicBinding(pid)
	if !ok || len(defs) != 1 {
		t.Fatalf("a.b binding: defs=%v", defs)
	}
}

func TestConstantSubscriptPlaces(t *testing.T) {
	ix := buildIndex(t, "a[0] = 1\ny = a[0]\nz = a[i]\n")
	mod := ix.Scope(ModuleScope)
	if _, ok := mod.PlaceByKey("a[0]"); !ok {
		t.Fatal("constant-subscript chain not indexed as a place")
	}
	if _, ok := mod.PlaceByKey("a[i]"); ok {
		t.Fatal("variable subscript must not become a place")
	}
}

func TestGlobalDeclarationRecorded(t *testing.T) {
	src := `def f():
    global counter
    counter = 1
`
	ix := buildIndex(t, src)
	fn := ix.Scopes[1]
	if !fn.Globals["counter"] {
		t.Fatal("global declaration not recorded")
	}
}

func TestReachingDefinitionsWalk(t *testing.T) {
	src := `x = 1
if c:
    x = 2
y = x
`
	ix := buildIndex(t, src)
	scope, use := findUse(t, ix, "x", 0)
	got := scope.ReachingDefinitions(use.Place, use.Flow)
	// Both assignments reach the flow node, nothing reaches Start
	// unseen: the first assignment dominates the unbound path.
	defCount := 0
	for _, d := range got {
		if d != UnboundDef {
			defCount++
		}
	}
	if defCount != 2 {
		t.Fatalf("flow-graph reaching defs = %d, want 2 (got %v)", defCount, got)
	}
}

// Two builds over the same parse tree must agree on every use's
// reaching definitions and unbound flag.
func TestRebuildDeterminism(t *testing.T) {
	src := `x = 1
if c:
    x = 2
    y = x
else:
    y = 0
z = x + y
def f(a):
    return a
`
	mod, err := parser.ParseFile("t.py", []byte(src), 0)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	loader := source.NewMemoryLoader(map[string]string{"t.py": src})
	reg := source.NewRegistry(map[source.Kind]source.Loader{source.KindSystem: loader})
	file := reg.File("t.py", source.KindSystem)

	a := Build(file, mod)
	b := Build(file, mod)
	if len(a.Scopes) != len(b.Scopes) {
		t.Fatalf("scope counts differ: %d vs %d", len(a.Scopes), len(b.Scopes))
	}
	for i := range a.Scopes {
		sa, sb := a.Scopes[i], b.Scopes[i]
		if len(sa.Uses) != len(sb.Uses) {
			t.Fatalf("scope %d: use counts differ", i)
		}
		for j := range sa.Uses {
			ua, ub := &sa.Uses[j], &sb.Uses[j]
			da, db := sa.DefsFor(ua), sb.DefsFor(ub)
			if len(da) != len(db) || ua.MayBeUnbound != ub.MayBeUnbound {
				t.Fatalf("scope %d use %d: %v/%v vs %v/%v",
					i, j, da, ua.MayBeUnbound, db, ub.MayBeUnbound)
			}
			for k := range da {
				if da[k] != db[k] {
					t.Fatalf("scope %d use %d def %d differs", i, j, k)
				}
			}
		}
	}
}

func TestVisibilityAlgebra(t *testing.T) {
	ix := buildIndex(t, "if c:\n    x = 1\n")
	mod := ix.Scope(ModuleScope)

	alwaysTrue := func(Predicate) Truthiness { return AlwaysTrue }
	alwaysFalse := func(Predicate) Truthiness { return AlwaysFalse }
	ambiguous := func(Predicate) Truthiness { return Ambiguous }

	pid, _ := mod.PlaceByKey("x")
	defs, _, _ := mod.PublicBinding(pid)
	def := mod.Definitions[defs[0]]

	if got := mod.EvalVisibility(def.Visibility, alwaysTrue); got != AlwaysTrue {
		t.Fatalf("visibility under true predicate = %v", got)
	}
	if got := mod.EvalVisibility(def.Visibility, alwaysFalse); got != AlwaysFalse {
		t.Fatalf("visibility under false predicate = %v", got)
	}
	if got := mod.EvalVisibility(def.Visibility, ambiguous); got != Ambiguous {
		t.Fatalf("visibility under ambiguous predicate = %v", got)
	}
	if got := mod.EvalVisibility(VisAlways, alwaysFalse); got != AlwaysTrue {
		t.Fatalf("VisAlways = %v, want always-true", got)
	}
}
