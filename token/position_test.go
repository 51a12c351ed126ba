package token

import "testing"

func TestPositionLineColumn(t *testing.T) {
	f := NewFile("t.py", []byte("ab\ncd\nef"))
	cases := []struct {
		offset, line, col int
	}{
		{0, 1, 1},
		{1, 1, 2},
		{3, 2, 1},
		{4, 2, 2},
		{6, 3, 1},
	}
	for _, c := range cases {
		pos := f.Pos(c.offset).Position()
		if pos.Line != c.line || pos.Column != c.col {
			t.Errorf("offset %d = %d:%d, want %d:%d", c.offset, pos.Line, pos.Column, c.line, c.col)
		}
	}
}

func TestLineEndings(t *testing.T) {
	// CRLF and lone CR: byte offsets stay exact; the line index keys
	// on '\n', so CRLF lines resolve like LF lines.
	f := NewFile("t.py", []byte("a\r\nb\nc"))
	if pos := f.Pos(3).Position(); pos.Line != 2 || pos.Column != 1 {
		t.Fatalf("after CRLF: %d:%d", pos.Line, pos.Column)
	}
	if pos := f.Pos(5).Position(); pos.Line != 3 {
		t.Fatalf("after LF: line %d", pos.Line)
	}
}

func TestEncodingColumns(t *testing.T) {
	// "é" is 2 UTF-8 bytes, 1 UTF-16 unit, 1 UTF-32 unit.
	// U+1F40D is 4 UTF-8 bytes, 2 UTF-16 units, 1 UTF-32 unit.
	src := []byte("é\U0001F40Dz")
	f := NewFile("t.py", src)
	zOffset := len(src) - 1
	p := f.Pos(zOffset)

	if col := f.PositionIn(p, UTF8).Column; col != 1+6 {
		t.Fatalf("UTF-8 column = %d, want 7", col)
	}
	if col := f.PositionIn(p, UTF16).Column; col != 1+3 {
		t.Fatalf("UTF-16 column = %d, want 4", col)
	}
	if col := f.PositionIn(p, UTF32).Column; col != 1+2 {
		t.Fatalf("UTF-32 column = %d, want 3", col)
	}
}

func TestPosCompare(t *testing.T) {
	a := NewFile("a.py", []byte("xx"))
	b := NewFile("b.py", []byte("xx"))
	if a.Pos(0).Compare(a.Pos(1)) >= 0 {
		t.Fatal("offset order broken")
	}
	if a.Pos(1).Compare(b.Pos(0)) >= 0 {
		t.Fatal("filename order broken")
	}
	if NoPos.Compare(a.Pos(0)) <= 0 {
		t.Fatal("NoPos must sort after valid positions")
	}
}

func TestRangeOverlap(t *testing.T) {
	f := NewFile("t.py", []byte("0123456789"))
	r := func(s, e int) Range { return Range{Start: f.Pos(s), End: f.Pos(e)} }
	if !r(0, 5).Overlaps(r(4, 8)) {
		t.Fatal("overlapping ranges not detected")
	}
	if r(0, 5).Overlaps(r(5, 8)) {
		t.Fatal("abutting ranges must not overlap")
	}
	if r(2, 2).Overlaps(r(0, 9)) {
		t.Fatal("empty range overlaps nothing")
	}
}

func TestOffsetClamping(t *testing.T) {
	f := NewFile("t.py", []byte("ab"))
	if f.Pos(99).Offset() != 2 {
		t.Fatalf("past-end offset = %d, want clamped 2", f.Pos(99).Offset())
	}
	if f.Pos(-1).Offset() != 0 {
		t.Fatalf("negative offset = %d, want 0", f.Pos(-1).Offset())
	}
}
