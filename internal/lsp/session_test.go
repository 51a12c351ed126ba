package lsp

import (
	"testing"

	"github.com/harrier-dev/harrier/internal/config"
	"github.com/harrier-dev/harrier/internal/core/db"
	"github.com/harrier-dev/harrier/internal/core/source"
	"github.com/harrier-dev/harrier/internal/rules"
)

func newSession(t *testing.T) *Session {
	t.Helper()
	loader := source.NewMemoryLoader(nil)
	database := db.New(source.NewRegistry(map[source.Kind]source.Loader{
		source.KindSystem:  loader,
		source.KindVirtual: loader,
	}))
	return NewSession(database, rules.NewRegistry(), &config.Settings{})
}

func TestOpenEditDiagnose(t *testing.T) {
	s := newSession(t)
	s.DidOpen("a.py", []byte("if c:\n    x = 1\nprint(x)\n"))

	diags, err := s.Diagnostics("a.py")
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, d := range diags {
		if d.Code == "HA001" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected HA001 on open document, got %v", diags)
	}

	// An edit that binds x unconditionally clears the diagnostic;
	// the change flows through Touch, never a direct read.
	s.DidChange("a.py", []byte("x = 1\nprint(x)\n"))
	diags, err = s.Diagnostics("a.py")
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range diags {
		if d.Code == "HA001" {
			t.Fatalf("stale diagnostic after edit: %v", diags)
		}
	}
}

func TestCancellationFlowsToEngine(t *testing.T) {
	s := newSession(t)
	s.DidOpen("a.py", []byte("x = 1\n"))

	s.Cancel()
	if _, err := s.Diagnostics("a.py"); err != db.ErrCancelled {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	s.Resume()
	if _, err := s.Diagnostics("a.py"); err != nil {
		t.Fatalf("after resume: %v", err)
	}
}

func TestSessionsHaveDistinctIDs(t *testing.T) {
	a, b := newSession(t), newSession(t)
	if a.ID == b.ID {
		t.Fatal("sessions share an id")
	}
}
