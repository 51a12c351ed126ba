package diagnostic

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/harrier-dev/harrier/token"
)

func mkDiag(tf *token.File, code string, sev Severity, start, end int, msg string) Diagnostic {
	return Diagnostic{
		Code:     code,
		Severity: sev,
		Range:    token.Range{Start: tf.Pos(start), End: tf.Pos(end)},
		Message:  msg,
	}
}

func TestSortOrder(t *testing.T) {
	a := token.NewFile("a.py", []byte("aaaa\nbbbb\n"))
	b := token.NewFile("b.py", []byte("cccc\n"))

	diags := []Diagnostic{
		mkDiag(b, "C1", SeverityError, 0, 1, "third"),
		mkDiag(a, "C2", SeverityError, 5, 6, "second"),
		mkDiag(a, "C1", SeverityError, 0, 1, "first"),
	}
	Sort(diags)
	if diags[0].Message != "first" || diags[1].Message != "second" || diags[2].Message != "third" {
		t.Fatalf("order = %v, %v, %v", diags[0].Message, diags[1].Message, diags[2].Message)
	}
}

func TestSortTiesBreakOnCode(t *testing.T) {
	a := token.NewFile("a.py", []byte("aaaa\n"))
	diags := []Diagnostic{
		mkDiag(a, "Z9", SeverityError, 0, 1, "z"),
		mkDiag(a, "A1", SeverityError, 0, 1, "a"),
	}
	Sort(diags)
	if diags[0].Code != "A1" {
		t.Fatalf("same-span order = %s, %s", diags[0].Code, diags[1].Code)
	}
}

func TestDedupe(t *testing.T) {
	a := token.NewFile("a.py", []byte("aaaa\n"))
	diags := []Diagnostic{
		mkDiag(a, "C1", SeverityError, 0, 1, "dup"),
		mkDiag(a, "C1", SeverityError, 0, 1, "dup"),
		mkDiag(a, "C1", SeverityError, 0, 1, "other message"),
	}
	Sort(diags)
	out := Dedupe(diags)
	if len(out) != 2 {
		t.Fatalf("deduped = %d, want 2", len(out))
	}
}

func TestPipelineDropsSuppressedAndResolvesSeverity(t *testing.T) {
	a := token.NewFile("a.py", []byte("aaaa\n"))
	p := Pipeline{Overrides: SeverityOverrides{"C1": SeverityError}}
	p.Add(mkDiag(a, "C1", SeverityWarning, 0, 1, "upgraded"))
	sup := mkDiag(a, "C2", SeverityError, 1, 2, "hidden")
	sup.Suppressed = true
	p.Add(sup)

	out := p.Finish()
	if len(out) != 1 {
		t.Fatalf("finished = %d, want 1", len(out))
	}
	if out[0].Severity != SeverityError {
		t.Fatalf("severity = %v, want error (override applied)", out[0].Severity)
	}
}

func TestExitCode(t *testing.T) {
	a := token.NewFile("a.py", []byte("aaaa\n"))
	warn := []Diagnostic{mkDiag(a, "C1", SeverityWarning, 0, 1, "w")}
	errd := []Diagnostic{mkDiag(a, "C1", SeverityError, 0, 1, "e")}

	if ExitCode(nil, false) != 0 {
		t.Fatal("clean run must exit 0")
	}
	if ExitCode(warn, false) != 0 {
		t.Fatal("warnings alone must exit 0")
	}
	if ExitCode(warn, true) != 1 {
		t.Fatal("warnings with --error-on-warning must exit 1")
	}
	if ExitCode(errd, false) != 1 {
		t.Fatal("errors must exit 1")
	}
}

func TestDeterministicRendering(t *testing.T) {
	a := token.NewFile("a.py", []byte("x = 1\ny = 2\n"))
	diags := []Diagnostic{
		mkDiag(a, "C1", SeverityError, 0, 1, "first"),
		mkDiag(a, "C2", SeverityWarning, 6, 7, "second"),
	}
	for _, format := range []Format{FormatConcise, FormatGrouped, FormatJSON, FormatSARIF, FormatJUnit, FormatGitLab} {
		var one, two bytes.Buffer
		if err := Render(&one, format, diags, token.UTF8); err != nil {
			t.Fatalf("render %d: %v", format, err)
		}
		if err := Render(&two, format, diags, token.UTF8); err != nil {
			t.Fatalf("render %d: %v", format, err)
		}
		if !bytes.Equal(one.Bytes(), two.Bytes()) {
			t.Fatalf("format %d output is not byte-identical across runs", format)
		}
	}
}

func TestConciseOutput(t *testing.T) {
	a := token.NewFile("a.py", []byte("x = undefined_name\n"))
	diags := []Diagnostic{mkDiag(a, "HA001", SeverityWarning, 4, 18, "name may be unbound")}
	var buf bytes.Buffer
	if err := Render(&buf, FormatConcise, diags, token.UTF8); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "a.py:1:5: warning [HA001] name may be unbound") {
		t.Fatalf("concise output = %q", out)
	}
	// The caret excerpt points at the offending column.
	if !strings.Contains(out, "x = undefined_name") || !strings.Contains(out, "^") {
		t.Fatalf("missing excerpt: %q", out)
	}
}

func TestJSONSchema(t *testing.T) {
	a := token.NewFile("a.py", []byte("x = 1\n"))
	d := mkDiag(a, "HA101", SeverityInfo, 0, 5, "rewrite")
	d.Fix = &Fix{
		Applicability: ApplicabilitySafe,
		Edits: []Edit{{
			Range:   token.Range{Start: a.Pos(0), End: a.Pos(5)},
			NewText: "y = 2",
		}},
	}
	d.Secondary = []Annotation{{Range: token.Range{Start: a.Pos(4), End: a.Pos(5)}, Label: "bound here"}}

	var buf bytes.Buffer
	if err := Render(&buf, FormatJSON, []Diagnostic{d}, token.UTF8); err != nil {
		t.Fatal(err)
	}
	var records []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &records); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if len(records) != 1 {
		t.Fatalf("records = %d", len(records))
	}
	rec := records[0]
	for _, field := range []string{"code", "message", "severity", "file", "range", "fix", "secondary"} {
		if _, ok := rec[field]; !ok {
			t.Fatalf("missing field %q in %v", field, rec)
		}
	}
	fix := rec["fix"].(map[string]any)
	if fix["applicability"] != "safe" {
		t.Fatalf("applicability = %v", fix["applicability"])
	}
}

func TestUTF16Columns(t *testing.T) {
	// U+1F40D (snake) is two UTF-16 code units, four UTF-8 bytes.
	src := []byte("x = \"\U0001F40D\"; y\n")
	a := token.NewFile("a.py", src)
	offset := bytes.IndexByte(src, 'y')
	d := mkDiag(a, "C1", SeverityError, offset, offset+1, "m")

	var utf8Buf, utf16Buf bytes.Buffer
	if err := Render(&utf8Buf, FormatJSON, []Diagnostic{d}, token.UTF8); err != nil {
		t.Fatal(err)
	}
	if err := Render(&utf16Buf, FormatJSON, []Diagnostic{d}, token.UTF16); err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(utf8Buf.Bytes(), utf16Buf.Bytes()) {
		t.Fatal("UTF-8 and UTF-16 column counts must differ after a non-BMP rune")
	}
}

func TestSARIFStructure(t *testing.T) {
	a := token.NewFile("a.py", []byte("x = 1\n"))
	var buf bytes.Buffer
	err := Render(&buf, FormatSARIF, []Diagnostic{mkDiag(a, "C1", SeverityError, 0, 1, "m")}, token.UTF8)
	if err != nil {
		t.Fatal(err)
	}
	var log map[string]any
	if err := json.Unmarshal(buf.Bytes(), &log); err != nil {
		t.Fatalf("invalid SARIF JSON: %v", err)
	}
	if log["version"] != "2.1.0" {
		t.Fatalf("version = %v", log["version"])
	}
}

func TestFixConflictDetection(t *testing.T) {
	a := token.NewFile("a.py", []byte("aaaa bbbb\n"))
	f1 := &Fix{Edits: []Edit{{Range: token.Range{Start: a.Pos(0), End: a.Pos(6)}}}}
	f2 := &Fix{Edits: []Edit{{Range: token.Range{Start: a.Pos(5), End: a.Pos(9)}}}}
	f3 := &Fix{Edits: []Edit{{Range: token.Range{Start: a.Pos(6), End: a.Pos(9)}}}}
	if !f1.Conflicts(f2) {
		t.Fatal("overlapping fixes must conflict")
	}
	if f1.Conflicts(f3) {
		t.Fatal("abutting fixes must not conflict")
	}
}
