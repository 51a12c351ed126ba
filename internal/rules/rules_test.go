package rules

import (
	"strings"
	"testing"

	"github.com/harrier-dev/harrier/internal/core/db"
	"github.com/harrier-dev/harrier/internal/core/diagnostic"
	"github.com/harrier-dev/harrier/internal/core/lint"
	"github.com/harrier-dev/harrier/internal/core/source"
)

func check(t *testing.T, files map[string]string, target string, sel *lint.Selection) ([]diagnostic.Diagnostic, *db.Database) {
	t.Helper()
	loader := source.NewMemoryLoader(files)
	database := db.New(source.NewRegistry(map[source.Kind]source.Loader{
		source.KindSystem: loader,
	}))
	reg := NewRegistry()
	f := database.Sources.File(target, source.KindSystem)
	query := &db.Query{
		Name: "rules.test",
		Compute: func(ctx *db.Context, key any) any {
			return lint.Run(ctx, key.(*source.File), reg, sel)
		},
	}
	v, err := database.Execute(query, f)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	diags, _ := v.([]diagnostic.Diagnostic)
	return diags, database
}

func codesOf(diags []diagnostic.Diagnostic) []string {
	var codes []string
	for _, d := range diags {
		if !d.Suppressed {
			codes = append(codes, d.Code)
		}
	}
	return codes
}

func hasCode(diags []diagnostic.Diagnostic, code string) bool {
	for _, d := range diags {
		if d.Code == code && !d.Suppressed {
			return true
		}
	}
	return false
}

func TestPossiblyUnboundRule(t *testing.T) {
	src := `if cond:
    x = 1
print(x)
`
	diags, _ := check(t, map[string]string{"t.py": src}, "t.py", nil)
	if !hasCode(diags, "HA001") {
		t.Fatalf("HA001 missing: %v", codesOf(diags))
	}
}

func TestPossiblyUnboundStarImport(t *testing.T) {
	// The star-import placeholder: A is conditionally bound in m, so
	// its use is flagged.
	files := map[string]string{
		"m.py": "if cond:\n    A = 1\n",
		"u.py": "from m import *\nprint(A)\n",
	}
	diags, _ := check(t, files, "u.py", nil)
	count := 0
	for _, d := range diags {
		if d.Code == "HA001" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("HA001 diagnostics = %d, want exactly 1 (%v)", count, codesOf(diags))
	}
}

func TestNoFalsePossiblyUnbound(t *testing.T) {
	src := `x = 1
if cond:
    x = 2
print(x)
`
	diags, _ := check(t, map[string]string{"t.py": src}, "t.py", nil)
	if hasCode(diags, "HA001") {
		t.Fatalf("dominating definition flagged: %v", codesOf(diags))
	}
}

func TestEncodeToBytesFix(t *testing.T) {
	diags, database := check(t, map[string]string{"t.py": "x = \"foo\".encode()\n"}, "t.py", nil)
	if !hasCode(diags, "HA101") {
		t.Fatalf("HA101 missing: %v", codesOf(diags))
	}
	f := database.Sources.File("t.py", source.KindSystem)
	src := database.Sources.Read(f).Content
	result := lint.ApplyFixes(src, diags, false)
	if got := string(result.Source); got != "x = b\"foo\"\n" {
		t.Fatalf("fixed source = %q", got)
	}
}

func TestEncodeWithNonUTF8HasNoFix(t *testing.T) {
	diags, _ := check(t, map[string]string{"t.py": "x = \"foo\".encode(\"latin-1\")\n"}, "t.py", nil)
	for _, d := range diags {
		if d.Code == "HA101" && d.Fix != nil {
			t.Fatal("non-utf8 encode must not carry a fix")
		}
	}
}

// The fix-conflict seed scenario: redundant parens around an encode
// call. Both diagnostics are emitted; exactly one fix is applied (the
// earlier in sort order); the skipped diagnostic keeps its fix in the
// report.
func TestFixCompositionConflict(t *testing.T) {
	files := map[string]string{"t.py": "x = (\"foo\".encode())\n"}
	diags, database := check(t, files, "t.py", nil)

	if !hasCode(diags, "HA002") || !hasCode(diags, "HA101") {
		t.Fatalf("expected both HA002 and HA101: %v", codesOf(diags))
	}

	f := database.Sources.File("t.py", source.KindSystem)
	src := database.Sources.Read(f).Content
	result := lint.ApplyFixes(src, diags, false)
	if len(result.Applied) != 1 {
		t.Fatalf("applied = %v, want exactly one", result.Applied)
	}
	if result.Skipped != 1 {
		t.Fatalf("skipped = %d, want 1", result.Skipped)
	}
	// The conflicting diagnostic still carries its fix for rendering.
	for _, d := range diags {
		if d.Code == "HA101" && d.Fix == nil {
			t.Fatal("skipped diagnostic lost its fix")
		}
	}
}

// Applying fixes to a fixed point must terminate with no further
// edits (always-fixable rules are idempotent).
func TestFixIdempotence(t *testing.T) {
	src := "x = (\"foo\".encode())\n"
	for i := 0; i < 5; i++ {
		diags, database := check(t, map[string]string{"t.py": src}, "t.py", nil)
		f := database.Sources.File("t.py", source.KindSystem)
		result := lint.ApplyFixes(database.Sources.Read(f).Content, diags, false)
		if len(result.Applied) == 0 {
			// Fixed point: a second run produces zero edits.
			if i == 0 {
				t.Fatal("no fix applied on the first pass")
			}
			return
		}
		src = string(result.Source)
	}
	t.Fatalf("fixes did not reach a fixed point; final source %q", src)
}

func TestTypeCompareDisplayOnly(t *testing.T) {
	src := "if type(x) == int:\n    pass\n"
	diags, database := check(t, map[string]string{"t.py": src}, "t.py", nil)
	if !hasCode(diags, "HA401") {
		t.Fatalf("HA401 missing: %v", codesOf(diags))
	}
	for _, d := range diags {
		if d.Code == "HA401" {
			if d.Fix == nil || d.Fix.Applicability != diagnostic.ApplicabilityDisplayOnly {
				t.Fatal("HA401 fix must be display-only")
			}
			if !strings.Contains(d.Fix.Message, "isinstance") {
				t.Fatalf("suggestion = %q", d.Fix.Message)
			}
		}
	}
	// Display-only fixes never apply, even with unsafe opt-in.
	f := database.Sources.File("t.py", source.KindSystem)
	result := lint.ApplyFixes(database.Sources.Read(f).Content, diags, true)
	if len(result.Applied) != 0 {
		t.Fatalf("display-only fix applied: %v", result.Applied)
	}
}

func TestLineTooLong(t *testing.T) {
	long := "x = \"" + strings.Repeat("a", 100) + "\"\n"
	sel := &lint.Selection{LineLength: 88}
	diags, _ := check(t, map[string]string{"t.py": long}, "t.py", sel)
	if !hasCode(diags, "HA301") {
		t.Fatalf("HA301 missing: %v", codesOf(diags))
	}
}

func TestLineTooLongIgnoresTrailingPragma(t *testing.T) {
	// The line is only overlong because of its suppression comment;
	// the pragma is stripped before measuring.
	line := "x = 1" + strings.Repeat(" ", 80) + "# noqa: HA301\n"
	sel := &lint.Selection{LineLength: 88}
	diags, _ := check(t, map[string]string{"t.py": line}, "t.py", sel)
	for _, d := range diags {
		if d.Code == "HA301" {
			t.Fatal("pragma-padded line reported as overlong")
		}
	}
}

func TestFStringAnnotation(t *testing.T) {
	src := "def f(x: f\"int\") -> int:\n    return 0\n"
	diags, _ := check(t, map[string]string{"t.py": src}, "t.py", nil)
	if !hasCode(diags, "HA201") {
		t.Fatalf("HA201 missing: %v", codesOf(diags))
	}
}

func TestNoqaSuppressesRule(t *testing.T) {
	src := "x = (\"foo\".encode())  # noqa: HA002, HA101\n"
	diags, _ := check(t, map[string]string{"t.py": src}, "t.py", nil)
	for _, d := range diags {
		if (d.Code == "HA002" || d.Code == "HA101") && !d.Suppressed {
			t.Fatalf("%s not suppressed", d.Code)
		}
	}
}

func TestRegistryHasNoDuplicates(t *testing.T) {
	// Building the full registry twice exercises duplicate-code
	// rejection without tripping it.
	NewRegistry()
	NewRegistry()
}
