package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runHarrier(t *testing.T, args ...string) (stdout string, exit int) {
	t.Helper()
	root := New()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	switch e := err.(type) {
	case nil:
		return out.String(), 0
	case exitCodeError:
		return out.String(), int(e)
	default:
		return out.String(), 2
	}
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCheckCleanFileExitsZero(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "clean.py", "x = 1\n")
	out, exit := runHarrier(t, "check", "--isolated", path)
	if exit != 0 {
		t.Fatalf("exit = %d, output:\n%s", exit, out)
	}
}

func TestCheckReportsSyntaxErrorAndExitsOne(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "bad.py", "def f(:\n")
	out, exit := runHarrier(t, "check", "--isolated", path)
	if exit != 1 {
		t.Fatalf("exit = %d, want 1; output:\n%s", exit, out)
	}
	if !strings.Contains(out, "E999") {
		t.Fatalf("missing syntax-error code:\n%s", out)
	}
}

func TestCheckJSONOutput(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "warn.py", "if c:\n    x = 1\nprint(x)\n")
	out, exit := runHarrier(t, "check", "--isolated", "--output-format=json", path)
	if exit != 0 {
		t.Fatalf("exit = %d (warnings alone must not fail); output:\n%s", exit, out)
	}
	if !strings.Contains(out, `"code": "HA001"`) {
		t.Fatalf("JSON output missing HA001:\n%s", out)
	}
}

func TestCheckErrorOnWarning(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "warn.py", "if c:\n    x = 1\nprint(x)\n")
	_, exit := runHarrier(t, "check", "--isolated", "--error-on-warning", path)
	if exit != 1 {
		t.Fatalf("exit = %d, want 1 under --error-on-warning", exit)
	}
}

func TestCheckSelectFiltersRules(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "warn.py", "if c:\n    x = 1\nprint(x)\n")
	out, exit := runHarrier(t, "check", "--isolated", "--select=HA3", path)
	if exit != 0 {
		t.Fatalf("exit = %d; output:\n%s", exit, out)
	}
	if strings.Contains(out, "HA001") {
		t.Fatalf("unselected rule reported:\n%s", out)
	}
}

func TestCheckFixRewritesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "fixme.py", "x = \"foo\".encode()\n")
	_, exit := runHarrier(t, "check", "--isolated", "--fix", path)
	if exit != 0 {
		t.Fatalf("exit = %d", exit)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(content); got != "x = b\"foo\"\n" {
		t.Fatalf("fixed file = %q", got)
	}
}

func TestCheckMissingPathExitsTwo(t *testing.T) {
	_, exit := runHarrier(t, "check", "--isolated", "/no/such/path.py")
	if exit != 2 {
		t.Fatalf("exit = %d, want 2 for an input error", exit)
	}
}

func TestCheckMalformedConfigExitsTwo(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "harrier.toml", "line-length = [oops\n")
	path := writeSource(t, dir, "a.py", "x = 1\n")
	_, exit := runHarrier(t, "check", path)
	if exit != 2 {
		t.Fatalf("exit = %d, want 2 for malformed configuration", exit)
	}
}

func TestRuleListing(t *testing.T) {
	out, exit := runHarrier(t, "rule")
	if exit != 0 {
		t.Fatalf("exit = %d", exit)
	}
	for _, code := range []string{"HA001", "HA101", "HA301"} {
		if !strings.Contains(out, code) {
			t.Fatalf("rule listing missing %s:\n%s", code, out)
		}
	}
	out, exit = runHarrier(t, "rule", "HA101")
	if exit != 0 || !strings.Contains(out, "encode-to-bytes-literal") {
		t.Fatalf("rule detail: exit=%d out=%s", exit, out)
	}
}

func TestVersionCommand(t *testing.T) {
	out, exit := runHarrier(t, "version")
	if exit != 0 || !strings.Contains(out, "harrier version") {
		t.Fatalf("version: exit=%d out=%q", exit, out)
	}
}
