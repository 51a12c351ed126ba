package source

import (
	"os"
	"path/filepath"
	"testing"
)

func newMemRegistry(files map[string]string) *Registry {
	loader := NewMemoryLoader(files)
	return NewRegistry(map[Kind]Loader{
		KindSystem:  loader,
		KindVirtual: loader,
	})
}

func TestInternIdentity(t *testing.T) {
	a := InternString("hello")
	b := InternString("hello")
	if a != b {
		t.Fatal("equal strings interned to distinct handles")
	}
	if InternString("other") == a {
		t.Fatal("distinct strings interned to the same handle")
	}
	if InternPath("/a/b") != InternPath("/a/b") {
		t.Fatal("equal paths interned to distinct handles")
	}
}

func TestFileIdentity(t *testing.T) {
	reg := newMemRegistry(nil)
	a := reg.File("a.py", KindSystem)
	if reg.File("a.py", KindSystem) != a {
		t.Fatal("same path and kind returned distinct files")
	}
	if reg.File("a.py", KindVirtual) == a {
		t.Fatal("same path in a different root must be a distinct identity")
	}
}

func TestMissingFileNeverFails(t *testing.T) {
	reg := newMemRegistry(nil)
	f := reg.File("missing.py", KindSystem)
	if f.Revision() != 0 {
		t.Fatalf("missing file revision = %d, want 0", f.Revision())
	}
	text := reg.Read(f)
	if text.Exists {
		t.Fatal("missing file reported as existing")
	}
}

func TestTouchBumpsRevisions(t *testing.T) {
	reg := newMemRegistry(map[string]string{"a.py": "x = 1\n"})
	f := reg.File("a.py", KindSystem)
	if got := string(reg.Read(f).Content); got != "x = 1\n" {
		t.Fatalf("Read = %q", got)
	}
	before := reg.GlobalRevision()
	reg.Touch(f, []byte("x = 2\n"))
	if f.Revision() != 1 {
		t.Fatalf("file revision = %d, want 1", f.Revision())
	}
	if reg.GlobalRevision() != before+1 {
		t.Fatalf("global revision = %d, want %d", reg.GlobalRevision(), before+1)
	}
	if got := string(reg.Read(f).Content); got != "x = 2\n" {
		t.Fatalf("Read after touch = %q", got)
	}
	if f.GlobalChangedAt() != reg.GlobalRevision() {
		t.Fatalf("GlobalChangedAt = %d, want %d", f.GlobalChangedAt(), reg.GlobalRevision())
	}
}

func TestLineIndexReusedForIdenticalContent(t *testing.T) {
	reg := newMemRegistry(map[string]string{"a.py": "x = 1\n"})
	f := reg.File("a.py", KindSystem)
	first := reg.LineIndex(f)
	reg.Touch(f, []byte("x = 1\n"))
	if reg.LineIndex(f) != first {
		t.Fatal("identical content after touch must reuse the line index")
	}
	reg.Touch(f, []byte("x = 2\n"))
	if reg.LineIndex(f) == first {
		t.Fatal("changed content must rebuild the line index")
	}
}

func TestSnapshotBlocksTouch(t *testing.T) {
	reg := newMemRegistry(map[string]string{"a.py": "x = 1\n"})
	f := reg.File("a.py", KindSystem)
	snap := reg.Snapshot()
	done := make(chan struct{})
	go func() {
		reg.Touch(f, []byte("x = 2\n"))
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("Touch completed while a snapshot was live")
	default:
	}
	snap.Close()
	<-done
	if f.Revision() != 1 {
		t.Fatalf("revision after snapshot release = %d, want 1", f.Revision())
	}
}

func TestOSLoaderChangeDetection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.py")
	if err := os.WriteFile(path, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	loader := NewOSLoader()
	content, ok := loader.Load(path)
	if !ok || string(content) != "x = 1\n" {
		t.Fatalf("Load = %q, %v", content, ok)
	}
	if loader.Changed(path, content) {
		t.Fatal("unchanged file reported as changed")
	}
	// Rewrite identical bytes: mtime may change, content does not.
	if err := os.WriteFile(path, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if loader.Changed(path, content) {
		t.Fatal("identical rewrite reported as changed")
	}
	if err := os.WriteFile(path, []byte("x = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !loader.Changed(path, content) {
		t.Fatal("content change not detected")
	}
}

func TestVendoredStubs(t *testing.T) {
	loader := NewVendoredLoader()
	path, ok := loader.StubPath("builtins")
	if !ok {
		t.Fatal("no stub path for builtins")
	}
	content, ok := loader.Load(path)
	if !ok || len(content) == 0 {
		t.Fatalf("vendored stub %s unreadable", path)
	}
	if loader.Changed(path, nil) {
		t.Fatal("vendored content can never change")
	}
	if _, ok := loader.StubPath("nonexistent_module"); ok {
		t.Fatal("unexpected stub for unknown module")
	}
}
