package errors

import (
	"strings"
	"testing"

	"github.com/harrier-dev/harrier/token"
)

func testPos(t *testing.T, name string, content string) token.Pos {
	t.Helper()
	f := token.NewFile(name, []byte(content))
	return f.Pos(0)
}

func TestListSortOrdersByPositionThenMessage(t *testing.T) {
	p1 := testPos(t, "a.py", "x = 1\n").Add(0)
	p2 := testPos(t, "a.py", "x = 1\n").Add(3)

	var l List
	l.AddNewf(p2, "second")
	l.AddNewf(p1, "first")
	l.Sort()

	if len(l) != 2 {
		t.Fatalf("len = %d, want 2", len(l))
	}
	if l[0].Error() != "first" || l[1].Error() != "second" {
		t.Fatalf("unexpected order: %v, %v", l[0].Error(), l[1].Error())
	}
}

func TestSanitizeCollapsesSingleElementList(t *testing.T) {
	var l List
	l.AddNewf(token.NoPos, "only")
	got := Sanitize(l)
	if _, ok := got.(List); ok {
		t.Fatalf("Sanitize did not collapse single-element list: %#v", got)
	}
	if got.Error() != "only" {
		t.Fatalf("Error() = %q, want %q", got.Error(), "only")
	}
}

func TestSanitizeRemovesDuplicates(t *testing.T) {
	pos := testPos(t, "a.py", "x = 1\n")
	var l List
	l.AddNewf(pos, "dup")
	l.AddNewf(pos, "dup")
	l.AddNewf(pos, "unique")

	got := Sanitize(l).(List)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %v", len(got), got)
	}
}

func TestWrapAttachesChildMessage(t *testing.T) {
	parent := Newf(token.NoPos, "parent failed")
	child := New("root cause")
	err := Wrap(parent, child)

	if got := err.Error(); got != "parent failed: root cause" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestPrintRendersPositionsIndented(t *testing.T) {
	pos := testPos(t, "pkg/a.py", "x = 1\n")
	err := Newf(pos, "unexpected indent")

	var b strings.Builder
	Print(&b, err, nil)
	out := b.String()
	if !strings.Contains(out, "unexpected indent") {
		t.Fatalf("missing message: %q", out)
	}
	if !strings.Contains(out, "pkg/a.py") {
		t.Fatalf("missing filename: %q", out)
	}
}

func TestPromoteWrapsPlainError(t *testing.T) {
	plain := New("boom")
	got := Promote(plain, "context")
	if _, ok := got.(Error); !ok {
		t.Fatalf("Promote did not produce an Error")
	}
	if got.Error() != "context: boom" {
		t.Fatalf("Error() = %q", got.Error())
	}
}
