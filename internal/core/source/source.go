// Package source implements the source database: interned file
// identities, per-file revision counters, content caching, and the
// loaders that back them (OS, in-memory, vendored stubs). Everything
// downstream — parser, semantic index, type inference, lints — reaches
// source text exclusively through a [Registry], so tests, the language
// server, and the CLI all share one interface.
package source

import (
	"bytes"
	"crypto/sha256"
	"sync"
	"sync/atomic"

	"github.com/harrier-dev/harrier/token"
)

// Kind classifies where a file's content comes from.
type Kind int

const (
	// KindSystem is a file on the real file system.
	KindSystem Kind = iota
	// KindVendored is a read-only type-stub bundled into the binary.
	KindVendored
	// KindVirtual is an in-memory file (tests, unsaved editor buffers).
	KindVirtual
)

func (k Kind) String() string {
	switch k {
	case KindSystem:
		return "system"
	case KindVendored:
		return "vendored"
	case KindVirtual:
		return "virtual"
	}
	return "unknown"
}

// Revision is a monotonically increasing change counter. Each file
// carries its own; the registry carries a global one bumped whenever
// any input changes.
type Revision uint64

// A File is an interned identity for one source artifact. Files are
// created on first reference, never destroyed, and compared by
// pointer identity: two files with equal paths but different kinds
// (roots) are distinct identities.
//
// The identity fields (Path, Kind) are immutable. The content fields
// are guarded by the file's own mutex and are accessed through the
// owning registry.
type File struct {
	path *InternedPath
	kind Kind

	rev atomic.Uint64
	// changedAt is the global revision at which this file last
	// changed, the stamp the incremental engine compares dependency
	// freshness against.
	changedAt atomic.Uint64
	mu        sync.Mutex
	state   fileState
	text    []byte
	tokFile *token.File // line index, memoized per revision
	tokRev  Revision
}

type fileState int

const (
	stateUnread fileState = iota
	stateExists
	stateMissing
)

// Path returns the file's interned path.
func (f *File) Path() *InternedPath { return f.path }

// Kind returns where the file's content comes from.
func (f *File) Kind() Kind { return f.kind }

// Revision returns the file's current revision. Revision 0 means the
// file has never had content set; a file that does not exist on disk
// stays at revision 0 until it is touched.
func (f *File) Revision() Revision { return Revision(f.rev.Load()) }

// GlobalChangedAt returns the global revision at which f last changed,
// or 0 if it has never been touched.
func (f *File) GlobalChangedAt() Revision { return Revision(f.changedAt.Load()) }

// SourceText is the result of reading a file at some revision.
type SourceText struct {
	Content []byte
	Exists  bool
}

// A Loader supplies file content for one [Kind] of file. Implementations
// must be safe for concurrent use.
type Loader interface {
	// Load returns the current content of path, or ok=false if the
	// path does not exist.
	Load(path string) (content []byte, ok bool)

	// Changed reports whether path's content differs from prev, using
	// whatever change-detection the backing store supports (mtime and
	// content hash for the OS loader). Loaders with no external state
	// (memory, vendored) return false: their content only changes via
	// Touch, which bypasses this check.
	Changed(path string, prev []byte) bool
}

// Registry is the process-wide source database. It interns files by
// (kind, path) and tracks the global revision.
type Registry struct {
	mu      sync.Mutex
	files   map[fileKey]*File
	global  atomic.Uint64
	loaders map[Kind]Loader

	// snapMu serializes input mutation against live snapshots: Touch
	// takes the write side, snapshots hold the read side.
	snapMu sync.RWMutex
}

type fileKey struct {
	path *InternedPath
	kind Kind
}

// NewRegistry creates a registry with the given per-kind loaders.
// Kinds with no loader behave as empty stores: every file is missing
// until touched.
func NewRegistry(loaders map[Kind]Loader) *Registry {
	return &Registry{
		files:   make(map[fileKey]*File),
		loaders: loaders,
	}
}

// GlobalRevision returns the revision counter bumped on every input
// change.
func (r *Registry) GlobalRevision() Revision { return Revision(r.global.Load()) }

// File returns the interned handle for path within kind, creating one
// on first reference. It never fails; a path that does not exist is
// returned in a does-not-exist state at revision 0.
func (r *Registry) File(path string, kind Kind) *File {
	ip := InternPath(path)
	key := fileKey{ip, kind}
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.files[key]; ok {
		return f
	}
	f := &File{path: ip, kind: kind}
	r.files[key] = f
	return f
}

// Read returns f's current text, loading it from the backing store on
// first access within a revision. Subsequent reads at the same
// revision return the cached content.
func (r *Registry) Read(f *File) SourceText {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == stateUnread {
		loader := r.loaders[f.kind]
		if loader == nil {
			f.state = stateMissing
		} else if content, ok := loader.Load(f.path.String()); ok {
			f.state = stateExists
			f.text = content
		} else {
			f.state = stateMissing
		}
	}
	return SourceText{Content: f.text, Exists: f.state == stateExists}
}

// Touch replaces f's content with newText, bumping the file's revision
// and the global revision. It blocks while any snapshot is live.
func (r *Registry) Touch(f *File, newText []byte) {
	r.snapMu.Lock()
	defer r.snapMu.Unlock()
	global := r.global.Add(1)
	f.mu.Lock()
	f.state = stateExists
	f.text = newText
	f.rev.Add(1)
	f.changedAt.Store(global)
	f.mu.Unlock()
}

// Sync re-checks f against its backing store and, if the store's
// content changed since the last read, applies it as a Touch. It
// returns whether a change was applied. The watch-mode driver calls
// this when the file watcher reports an event, so spurious events
// (mtime-only, editor save dances) don't invalidate anything.
func (r *Registry) Sync(f *File) bool {
	loader := r.loaders[f.kind]
	if loader == nil {
		return false
	}
	f.mu.Lock()
	prev := f.text
	unread := f.state == stateUnread
	f.mu.Unlock()
	if unread {
		return false
	}
	if !loader.Changed(f.path.String(), prev) {
		return false
	}
	content, ok := loader.Load(f.path.String())
	if !ok {
		content = nil
	}
	r.Touch(f, content)
	return true
}

// LineIndex returns the memoized line index for f's current content.
func (r *Registry) LineIndex(f *File) *token.File {
	text := r.Read(f)
	f.mu.Lock()
	defer f.mu.Unlock()
	rev := Revision(f.rev.Load())
	if f.tokFile == nil || f.tokRev != rev {
		// A touch that rewrote identical bytes keeps the old index, so
		// positions derived from it stay pointer-identical and parse
		// results can early-cutoff on structural equality.
		if f.tokFile == nil || !bytes.Equal(f.tokFile.Content(), text.Content) {
			f.tokFile = token.NewFile(f.path.String(), text.Content)
		}
		f.tokRev = rev
	}
	return f.tokFile
}

// Snapshot pins the current global revision. Inputs cannot mutate
// while any snapshot is live; Close releases the pin.
type Snapshot struct {
	reg *Registry
	rev Revision

	closeOnce sync.Once
}

// Snapshot acquires a read-only pin on the registry's current state.
func (r *Registry) Snapshot() *Snapshot {
	r.snapMu.RLock()
	return &Snapshot{reg: r, rev: r.GlobalRevision()}
}

// Revision returns the global revision the snapshot pinned.
func (s *Snapshot) Revision() Revision { return s.rev }

// Close releases the snapshot. Closing twice is a no-op.
func (s *Snapshot) Close() {
	s.closeOnce.Do(func() { s.reg.snapMu.RUnlock() })
}

// contentHash is the digest the OS loader uses for change detection
// alongside mtime: an mtime bump with identical bytes is not a change.
func contentHash(b []byte) [sha256.Size]byte {
	return sha256.Sum256(b)
}

// equalContent reports whether two contents are byte-identical,
// comparing hashes only when both sides are large.
func equalContent(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) < 4096 {
		return bytes.Equal(a, b)
	}
	return contentHash(a) == contentHash(b)
}
