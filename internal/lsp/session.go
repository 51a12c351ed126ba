// Package lsp is the seam between a language-server front end and the
// analysis core. It deliberately contains no protocol dispatch: the
// transport layer calls these methods with decoded parameters. Every
// document event becomes a Touch on the source database — the session
// never reads a file behind the incremental engine's back — and
// request cancellation flows into the engine's shared token.
package lsp

import (
	"sync"

	"github.com/google/uuid"

	"github.com/harrier-dev/harrier/internal/config"
	"github.com/harrier-dev/harrier/internal/core/db"
	"github.com/harrier-dev/harrier/internal/core/diagnostic"
	"github.com/harrier-dev/harrier/internal/core/lint"
	"github.com/harrier-dev/harrier/internal/core/source"
)

// Session owns one editor connection's view of the database. Open
// documents are virtual files layered over the OS-backed ones; a
// close event re-syncs to disk content.
type Session struct {
	ID uuid.UUID

	database *db.Database
	registry *lint.Registry
	settings *config.Settings

	mu   sync.Mutex
	open map[string]*source.File

	// Encoding is the position encoding negotiated at initialize.
	Encoding PositionEncoding
}

// PositionEncoding mirrors the LSP position-encoding negotiation.
type PositionEncoding int

const (
	EncodingUTF16 PositionEncoding = iota // the protocol default
	EncodingUTF8
	EncodingUTF32
)

// NewSession creates a session over the shared database.
func NewSession(database *db.Database, registry *lint.Registry, settings *config.Settings) *Session {
	return &Session{
		ID:       uuid.New(),
		database: database,
		registry: registry,
		settings: settings,
		open:     make(map[string]*source.File),
	}
}

// DidOpen registers a document's editor content.
func (s *Session) DidOpen(path string, text []byte) {
	s.mu.Lock()
	f := s.database.Sources.File(path, source.KindVirtual)
	s.open[path] = f
	s.mu.Unlock()
	s.database.Sources.Touch(f, text)
}

// DidChange applies a full-content update. Incremental edits are
// assembled into full text by the transport layer; the core only
// sees complete revisions.
func (s *Session) DidChange(path string, text []byte) {
	s.mu.Lock()
	f, ok := s.open[path]
	s.mu.Unlock()
	if !ok {
		s.DidOpen(path, text)
		return
	}
	s.database.Sources.Touch(f, text)
}

// DidClose drops the editor overlay; subsequent analysis of the path
// reads disk content again.
func (s *Session) DidClose(path string) {
	s.mu.Lock()
	delete(s.open, path)
	s.mu.Unlock()
	f := s.database.Sources.File(path, source.KindSystem)
	s.database.Sources.Sync(f)
}

// Cancel requests that in-flight queries unwind; Resume clears the
// token so new requests can run. The transport maps LSP
// $/cancelRequest onto this pair.
func (s *Session) Cancel() { s.database.CancellationToken().Cancel() }

// Resume clears a previous cancellation.
func (s *Session) Resume() { s.database.CancellationToken().Clear() }

// Diagnostics computes the current diagnostics for an open document.
// A cancelled computation returns (nil, db.ErrCancelled) with no
// cache pollution.
func (s *Session) Diagnostics(path string) ([]diagnostic.Diagnostic, error) {
	s.mu.Lock()
	f, ok := s.open[path]
	s.mu.Unlock()
	if !ok {
		f = s.database.Sources.File(path, source.KindSystem)
	}

	query := &db.Query{
		Name: "lsp.diagnostics",
		Compute: func(ctx *db.Context, key any) any {
			file := key.(*source.File)
			sel := s.settings.ForFile(file.Path().String())
			return lint.Run(ctx, file, s.registry, sel)
		},
	}
	v, err := s.database.Execute(query, f)
	if err != nil {
		return nil, err
	}
	diags, _ := v.([]diagnostic.Diagnostic)
	pipeline := diagnostic.Pipeline{Overrides: s.settings.ForFile(path).Severity}
	pipeline.AddAll(diags)
	return pipeline.Finish(), nil
}
