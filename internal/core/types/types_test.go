package types

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/harrier-dev/harrier/ast"
	"github.com/harrier-dev/harrier/internal/core/db"
	"github.com/harrier-dev/harrier/internal/core/parse"
	"github.com/harrier-dev/harrier/internal/core/source"
)

func inferFiles(t *testing.T, files map[string]string, target string) (*db.Database, *InferenceResult) {
	t.Helper()
	loader := source.NewMemoryLoader(files)
	database := db.New(source.NewRegistry(map[source.Kind]source.Loader{
		source.KindSystem: loader,
	}))
	f := database.Sources.File(target, source.KindSystem)
	result, err := db.ExecuteTyped[*InferenceResult](database, Query, f)
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	if result == nil {
		t.Fatal("inference returned nil")
	}
	return database, result
}

func infer(t *testing.T, src string) *InferenceResult {
	t.Helper()
	_, r := inferFiles(t, map[string]string{"t.py": src}, "t.py")
	return r
}

// findIdentUse locates the nth load of name in the parse tree the
// inference ran over, by re-deriving the tree from the database.
func typeOfUse(t *testing.T, files map[string]string, target, name string, n int) Type {
	t.Helper()
	loader := source.NewMemoryLoader(files)
	database := db.New(source.NewRegistry(map[source.Kind]source.Loader{
		source.KindSystem: loader,
	}))
	f := database.Sources.File(target, source.KindSystem)
	result, err := db.ExecuteTyped[*InferenceResult](database, Query, f)
	if err != nil || result == nil {
		t.Fatalf("infer: %v", err)
	}
	tree, err := db.ExecuteTyped[*parse.Tree](database, parse.Query, f)
	if err != nil || tree == nil {
		t.Fatalf("parse: %v", err)
	}
	var found ast.Expr
	count := 0
	ast.Walk(tree.Root, func(nd ast.Node) bool {
		if id, ok := nd.(*ast.Ident); ok && id.Name == name {
			if _, isType := result.ExprTypes[ast.Expr(id)]; isType {
				if count == n {
					found = id
				}
				count++
			}
		}
		return true
	}, nil)
	if found == nil {
		t.Fatalf("no typed use #%d of %q", n, name)
	}
	return result.TypeOf(found)
}

func diagnosticCodes(r *InferenceResult) []string {
	var codes []string
	for _, d := range r.Diagnostics {
		codes = append(codes, d.Code)
	}
	return codes
}

func TestBranchingNarrowing(t *testing.T) {
	// The seed scenario: inside `return x + 1`, x is int, not
	// int | None, and the file is clean.
	src := `def f(x: int | None) -> int:
    if x is None:
        return 0
    return x + 1
`
	r := infer(t, src)
	if len(r.Diagnostics) != 0 {
		t.Fatalf("diagnostics = %v, want none", diagnosticCodes(r))
	}
}

func TestNarrowedUseType(t *testing.T) {
	src := `def f(x: int | None) -> int:
    if x is None:
        return 0
    return x + 1
`
	got := typeOfUse(t, map[string]string{"t.py": src}, "t.py", "x", 1)
	if got != TInt {
		t.Fatalf("narrowed type of x = %s, want int", String(got))
	}
}

func TestIsinstanceNarrowing(t *testing.T) {
	src := `def f(x):
    if isinstance(x, int):
        y = x + 1
`
	r := infer(t, src)
	if len(r.Diagnostics) != 0 {
		t.Fatalf("diagnostics = %v, want none", diagnosticCodes(r))
	}
}

func TestUnnarrowedOptionalArithmetic(t *testing.T) {
	src := `def f(x: int | None) -> int:
    return x + 1
`
	r := infer(t, src)
	found := false
	for _, d := range r.Diagnostics {
		if d.Code == CodeUnsupportedOperand {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s for int|None + int, got %v",
			CodeUnsupportedOperand, diagnosticCodes(r))
	}
}

func TestCircularBaseClasses(t *testing.T) {
	// Seed scenario: both headers diagnosed, no infinite loop.
	src := `class A(B): ...
class B(A): ...
`
	r := infer(t, src)
	count := 0
	for _, d := range r.Diagnostics {
		if d.Code == CodeCircularBaseClass {
			count++
		}
	}
	if count != 2 {
		t.Fatalf("circular-base-class diagnostics = %d, want 2 (%v)",
			count, diagnosticCodes(r))
	}
}

func TestIncompatibleAnnotatedAssignment(t *testing.T) {
	r := infer(t, "x: int = \"nope\"\n")
	if diff := cmp.Diff([]string{CodeIncompatibleAssignment}, diagnosticCodes(r)); diff != "" {
		t.Fatalf("diagnostics mismatch (-want +got):\n%s", diff)
	}
}

func TestReturnTypeMismatch(t *testing.T) {
	src := `def f() -> int:
    return "nope"
`
	r := infer(t, src)
	codes := diagnosticCodes(r)
	if len(codes) != 1 || codes[0] != CodeInvalidReturn {
		t.Fatalf("diagnostics = %v, want exactly one %s", codes, CodeInvalidReturn)
	}
}

func TestStringAnnotationForwardReference(t *testing.T) {
	src := `def f(x: "int") -> "int":
    return x
`
	r := infer(t, src)
	if len(r.Diagnostics) != 0 {
		t.Fatalf("forward reference produced %v", diagnosticCodes(r))
	}
}

func TestStarImportPossiblyUnbound(t *testing.T) {
	// Seed scenario: A is conditionally bound in m, so its use via a
	// star import is possibly unbound.
	files := map[string]string{
		"m.py": "if cond:\n    A = 1\n",
		"u.py": "from m import *\nprint(A)\n",
	}
	database, r := inferFiles(t, files, "u.py")
	f := database.Sources.File("u.py", source.KindSystem)
	tree, err := db.ExecuteTyped[*parse.Tree](database, parse.Query, f)
	if err != nil || tree == nil {
		t.Fatalf("parse: %v", err)
	}
	flagged := false
	ast.Walk(tree.Root, func(nd ast.Node) bool {
		if id, ok := nd.(*ast.Ident); ok && id.Name == "A" && r.PossiblyUnbound[ast.Expr(id)] {
			flagged = true
		}
		return true
	}, nil)
	if !flagged {
		t.Fatal("star-imported conditionally-bound name not flagged possibly-unbound")
	}
}

func TestImportedSymbolType(t *testing.T) {
	files := map[string]string{
		"m.py": "VALUE = 1\n",
		"u.py": "from m import VALUE\nx = VALUE\n",
	}
	got := typeOfUse(t, files, "u.py", "VALUE", 0)
	if got != NewIntLiteral(1) {
		t.Fatalf("imported symbol type = %s, want Literal[1]", String(got))
	}
}

func TestImportCycleRecovers(t *testing.T) {
	files := map[string]string{
		"a.py": "from b import X\nY = X\n",
		"b.py": "from a import Y\nX = Y\n",
	}
	_, r := inferFiles(t, files, "a.py")
	// The cycle must terminate; the recovered types bottom out at
	// Unknown rather than looping.
	if r == nil {
		t.Fatal("import cycle returned nil result")
	}
}

func TestUnionOps(t *testing.T) {
	u := MakeUnion(TInt, TNone, TInt)
	un, ok := u.(*Union)
	if !ok || len(un.Members) != 2 {
		t.Fatalf("int | None | int = %s, want two members", String(u))
	}
	if MakeUnion(TInt) != TInt {
		t.Fatal("single-member union must collapse")
	}
	if MakeUnion(TInt, TNever) != TInt {
		t.Fatal("A | Never must equal A")
	}
	if MakeUnion() != Type(TNever) {
		t.Fatal("empty union must be Never")
	}
}

func TestRemoveNone(t *testing.T) {
	u := MakeUnion(TInt, TNone)
	if got := Remove(u, TNone); got != TInt {
		t.Fatalf("(int | None) - None = %s, want int", String(got))
	}
	if got := Remove(TNone, TNone); got != Type(TNever) {
		t.Fatalf("None - None = %s, want Never", String(got))
	}
}

func TestSubtypeLattice(t *testing.T) {
	cases := []struct {
		a, b Type
		want bool
	}{
		{NewIntLiteral(1), TInt, true},
		{TBool, TInt, true},
		{TInt, TBool, false},
		{TInt, MakeUnion(TInt, TNone), true},
		{MakeUnion(TInt, TNone), TInt, false},
		{TNever, TStr, true},
		{TStr, NewInstance(ClassObject), true},
		{NewTuple(TInt, TStr), NewTuple(TInt, TStr), true},
		{NewTuple(TInt), NewTuple(TInt, TStr), false},
	}
	for _, c := range cases {
		if got := IsSubtype(c.a, c.b); got != c.want {
			t.Errorf("IsSubtype(%s, %s) = %v, want %v", String(c.a), String(c.b), got, c.want)
		}
	}
}

func TestGradualAssignability(t *testing.T) {
	if !IsAssignable(TUnknown, TInt) || !IsAssignable(TInt, TUnknown) {
		t.Fatal("Unknown must be assignable in both directions")
	}
	if !IsAssignable(TAny, TStr) || !IsAssignable(TStr, TAny) {
		t.Fatal("Any must be assignable in both directions")
	}
	if IsAssignable(TStr, TInt) {
		t.Fatal("str is not assignable to int")
	}
}

func TestInterning(t *testing.T) {
	if MakeUnion(TInt, TNone) != MakeUnion(TInt, TNone) {
		t.Fatal("structurally equal unions not interned to one value")
	}
	if NewIntLiteral(7) != NewIntLiteral(7) {
		t.Fatal("equal literals not interned")
	}
}

func TestTypeRendering(t *testing.T) {
	u := MakeUnion(TInt, TNone)
	s := String(u)
	if !strings.Contains(s, "int") || !strings.Contains(s, "None") {
		t.Fatalf("rendered union = %q", s)
	}
}
