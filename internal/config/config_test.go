package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/harrier-dev/harrier/internal/core/diagnostic"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverWalksUpward(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pyproject.toml"), "[tool.harrier]\nline-length = 100\n")
	sub := filepath.Join(root, "pkg", "sub")
	writeFile(t, filepath.Join(root, "pkg", "harrier.toml"), "line-length = 120\n")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	found := Discover(sub)
	if len(found) < 2 {
		t.Fatalf("discovered %v, want both files", found)
	}
	// Outermost first, so later merges win for nearer files.
	if filepath.Base(filepath.Dir(found[len(found)-1])) != "pkg" {
		t.Fatalf("nearest file must be last: %v", found)
	}
}

func TestLoadMergesScalarOverride(t *testing.T) {
	root := t.TempDir()
	outer := filepath.Join(root, "pyproject.toml")
	inner := filepath.Join(root, "harrier_inner.toml")
	writeFile(t, outer, "[tool.harrier]\nline-length = 100\ntarget-version = \"py311\"\n")
	writeFile(t, inner, "line-length = 120\n")

	s, err := Load(outer, inner)
	if err != nil {
		t.Fatal(err)
	}
	if s.LineLength != 120 {
		t.Fatalf("line-length = %d, want the later file's 120", s.LineLength)
	}
	if s.TargetVersion != "py311" {
		t.Fatalf("target-version = %q, want the outer file's py311", s.TargetVersion)
	}
}

func TestLoadAppendsLists(t *testing.T) {
	root := t.TempDir()
	outer := filepath.Join(root, "a.toml")
	inner := filepath.Join(root, "b.toml")
	writeFile(t, outer, "select = [\"HA0\"]\n")
	writeFile(t, inner, "select = [\"HA1\"]\n")

	s, err := Load(outer, inner)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"HA0", "HA1"}, s.Select); diff != "" {
		t.Fatalf("select mismatch (-want +got):\n%s", diff)
	}
}

func TestInvalidTOMLIsAnError(t *testing.T) {
	root := t.TempDir()
	bad := filepath.Join(root, "harrier.toml")
	writeFile(t, bad, "line-length = [not toml\n")
	if _, err := Load(bad); err == nil {
		t.Fatal("malformed TOML accepted")
	}
}

func TestUnknownKeyRejected(t *testing.T) {
	root := t.TempDir()
	bad := filepath.Join(root, "harrier.toml")
	writeFile(t, bad, "no-such-option = true\n")
	if _, err := Load(bad); err == nil {
		t.Fatal("unknown configuration key accepted")
	}
}

func TestLoadInline(t *testing.T) {
	s, err := LoadInline("line-length = 72\nselect = [\"HA3\"]\n")
	if err != nil {
		t.Fatal(err)
	}
	if s.LineLength != 72 || len(s.Select) != 1 {
		t.Fatalf("inline settings = %+v", s.Options)
	}
}

func TestSelectionSemantics(t *testing.T) {
	s := &Settings{Options: Options{Select: []string{"HA1"}, Ignore: []string{"HA101"}}}
	sel := s.ForFile("x.py")

	if !sel.Enabled("HA102") {
		t.Fatal("prefix-selected code disabled")
	}
	if sel.Enabled("HA101") {
		t.Fatal("ignored code enabled")
	}
	if sel.Enabled("HA001") {
		t.Fatal("unselected code enabled under explicit select")
	}
}

func TestEmptySelectEnablesAll(t *testing.T) {
	s := &Settings{}
	sel := s.ForFile("x.py")
	if !sel.Enabled("ZZ999") {
		t.Fatal("empty select must enable everything")
	}
}

func TestOverridesCombineInOrder(t *testing.T) {
	s := &Settings{Options: Options{
		LineLength: 88,
		Overrides: []Override{
			{Files: []string{"tests/*"}, Options: Options{LineLength: 100}},
			{Files: []string{"tests/big_*"}, Options: Options{LineLength: 120}},
		},
	}}
	s.Revision = 1

	if got := s.ForFile("tests/big_data.py").LineLimit(); got != 120 {
		t.Fatalf("later matching override must win: %d", got)
	}
	if got := s.ForFile("tests/small.py").LineLimit(); got != 100 {
		t.Fatalf("single override: %d", got)
	}
	if got := s.ForFile("src/app.py").LineLimit(); got != 88 {
		t.Fatalf("no override: %d", got)
	}
}

func TestSeverityOverrides(t *testing.T) {
	s := &Settings{Options: Options{Severity: map[string]string{"HA001": "error"}}}
	s.Revision = 2
	sel := s.ForFile("x.py")
	if sel.Severity.Resolve("HA001", diagnostic.SeverityWarning) != diagnostic.SeverityError {
		t.Fatal("severity override not applied")
	}
	if sel.Severity.Resolve("HA002", diagnostic.SeverityInfo) != diagnostic.SeverityInfo {
		t.Fatal("default severity clobbered")
	}
}

func TestSelectionMemoizedByRevision(t *testing.T) {
	s := &Settings{Options: Options{LineLength: 90}}
	s.Revision = 10
	a := s.ForFile("same.py")
	b := s.ForFile("same.py")
	if a != b {
		t.Fatal("same (path, revision) must return the memoized selection")
	}
	s.Revision = 11
	if s.ForFile("same.py") == a {
		t.Fatal("revision bump must produce a fresh selection")
	}
}
