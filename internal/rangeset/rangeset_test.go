package rangeset

import "testing"

func TestAddMergesOverlapping(t *testing.T) {
	s := New()
	s.Add(10, 20)
	s.Add(15, 25)
	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1 (%s)", s.Len(), s)
	}
	if got := s.Ranges()[0]; got.Start != 10 || got.End != 25 {
		t.Fatalf("merged = %v", got)
	}
}

func TestAddMergesAdjacent(t *testing.T) {
	s := New()
	s.Add(10, 20)
	s.Add(20, 30)
	if s.Len() != 1 {
		t.Fatalf("adjacent ranges not merged: %s", s)
	}
}

func TestAddKeepsDisjoint(t *testing.T) {
	s := New()
	s.Add(10, 20)
	s.Add(30, 40)
	s.Add(0, 5)
	if s.Len() != 3 {
		t.Fatalf("len = %d, want 3 (%s)", s.Len(), s)
	}
	if got := s.Ranges()[0]; got.Start != 0 {
		t.Fatalf("not sorted: %s", s)
	}
}

func TestAddBridgesSeveral(t *testing.T) {
	s := New()
	s.Add(0, 5)
	s.Add(10, 15)
	s.Add(20, 25)
	s.Add(3, 22)
	if s.Len() != 1 {
		t.Fatalf("bridge merge failed: %s", s)
	}
	if got := s.Ranges()[0]; got.Start != 0 || got.End != 25 {
		t.Fatalf("bridged = %v", got)
	}
}

func TestEmptyRangeIgnored(t *testing.T) {
	s := New()
	s.Add(5, 5)
	s.Add(7, 3)
	if s.Len() != 0 {
		t.Fatalf("empty/invalid ranges stored: %s", s)
	}
}

func TestOverlaps(t *testing.T) {
	s := New()
	s.Add(10, 20)
	cases := []struct {
		start, end int
		want       bool
	}{
		{0, 5, false},
		{0, 10, false}, // abuts, does not overlap
		{0, 11, true},
		{15, 16, true},
		{19, 30, true},
		{20, 30, false}, // abuts on the right
		{25, 30, false},
		{5, 5, false}, // empty never overlaps
	}
	for _, c := range cases {
		if got := s.Overlaps(c.start, c.end); got != c.want {
			t.Errorf("Overlaps(%d, %d) = %v, want %v", c.start, c.end, got, c.want)
		}
	}
}

func TestContains(t *testing.T) {
	s := New()
	s.Add(10, 20)
	if !s.Contains(10) || !s.Contains(19) {
		t.Fatal("range endpoints misclassified")
	}
	if s.Contains(9) || s.Contains(20) {
		t.Fatal("half-open bounds violated")
	}
}
