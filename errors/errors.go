// Package errors defines the shared position-carrying error type used
// across Harrier: parser, semantic indexer, type checker, and lint engine
// all report problems as values implementing [Error], never as panics or
// sentinel errors, per the "queries return values" contract of the
// incremental engine (internal/core/db).
package errors

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/harrier-dev/harrier/token"
)

// New is a convenience wrapper for the standard library's [errors.New].
// It does not return a Harrier [Error].
func New(msg string) error { return errors.New(msg) }

func Unwrap(err error) error { return errors.Unwrap(err) }

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target interface{}) bool { return errors.As(err, target) }

// Handler is called by the scanner and parser for each error encountered
// during a single pass over source text, before positions are known to
// belong to any particular [Error] value.
type Handler func(pos token.Position, msg string)

// Message carries a printf-style format and its arguments without formatting
// them eagerly, so a diagnostic can be localized or machine-rendered later
// without re-deriving the message text.
type Message struct {
	format string
	args   []interface{}
}

// NewMessagef creates a message for human consumption.
func NewMessagef(format string, args ...interface{}) Message {
	return Message{format: format, args: args}
}

func (m *Message) Msg() (format string, args []interface{}) { return m.format, m.args }

func (m *Message) Error() string { return fmt.Sprintf(m.format, m.args...) }

// Error is the interface every Harrier-produced problem implements: a
// parser syntax error, a semantic-index invariant violation, a type-check
// diagnostic, or a lint finding.
type Error interface {
	// Position returns the primary source location of the error.
	Position() token.Pos

	// InputPositions returns secondary positions that contributed to the
	// error (e.g. the other branch of a narrowing conflict).
	InputPositions() []token.Pos

	// Error reports the message without position information.
	Error() string

	// Msg returns the unformatted message and its arguments.
	Msg() (format string, args []interface{})
}

// Positions returns every position carried by err, primary first, sorted
// and de-duplicated.
func Positions(err error) []token.Pos {
	e := Error(nil)
	if !errors.As(err, &e) {
		return nil
	}

	a := make([]token.Pos, 0, 3)
	pos := e.Position()
	if pos.IsValid() {
		a = append(a, pos)
	}
	sortFrom := len(a)
	for _, p := range e.InputPositions() {
		if p.IsValid() && p != pos {
			a = append(a, p)
		}
	}
	slices.SortFunc(a[sortFrom:], comparePosNoPosFirst)
	return slices.Compact(a)
}

// comparePosNoPosFirst orders [token.NoPos] before any valid position so
// position-less errors sort to the front of a diagnostic listing rather
// than being placed arbitrarily by a zero-offset comparison.
func comparePosNoPosFirst(a, b token.Pos) int {
	switch {
	case a == b:
		return 0
	case a == token.NoPos:
		return -1
	case b == token.NoPos:
		return +1
	default:
		return a.Compare(b)
	}
}

// Newf creates an Error at position p.
func Newf(p token.Pos, format string, args ...interface{}) Error {
	return &posError{pos: p, Message: NewMessagef(format, args...)}
}

// Wrapf creates an Error at position p that also carries child as context.
func Wrapf(err error, p token.Pos, format string, args ...interface{}) Error {
	return Wrap(&posError{pos: p, Message: NewMessagef(format, args...)}, err)
}

// Wrap nests child underneath parent. If child is a [List], the result is
// itself a List with child nested under each of parent's copies.
func Wrap(parent Error, child error) Error {
	if child == nil {
		return parent
	}
	l, ok := child.(List)
	if !ok {
		return &wrapped{parent, child}
	}
	out := make(List, len(l))
	for i, e := range l {
		out[i] = &wrapped{parent, e}
	}
	return out
}

type wrapped struct {
	main Error
	wrap error
}

func (e *wrapped) Error() string {
	msg := e.main.Error()
	switch {
	case e.wrap == nil:
		return msg
	case msg == "":
		return e.wrap.Error()
	default:
		return fmt.Sprintf("%s: %s", msg, e.wrap)
	}
}

func (e *wrapped) Is(target error) bool   { return Is(e.main, target) }
func (e *wrapped) As(target interface{}) bool { return As(e.main, target) }
func (e *wrapped) Msg() (string, []interface{}) { return e.main.Msg() }
func (e *wrapped) Unwrap() error          { return e.wrap }
func (e *wrapped) Cause() error           { return e.wrap }

func (e *wrapped) InputPositions() []token.Pos {
	return append(e.main.InputPositions(), Positions(e.wrap)...)
}

func (e *wrapped) Position() token.Pos {
	if p := e.main.Position(); p != token.NoPos {
		return p
	}
	if w, ok := e.wrap.(Error); ok {
		return w.Position()
	}
	return token.NoPos
}

// Promote converts a plain Go error into an [Error], attaching msg as
// context if it wasn't already one. Used at the boundary where a library
// call (e.g. a TOML decode) surfaces a generic error that must join a
// diagnostic list.
func Promote(err error, msg string) Error {
	if e, ok := err.(Error); ok {
		return e
	}
	return Wrapf(err, token.NoPos, "%s", msg)
}

type posError struct {
	pos token.Pos
	Message
}

func (e *posError) InputPositions() []token.Pos { return nil }
func (e *posError) Position() token.Pos         { return e.pos }

var _ Error = (*posError)(nil)

// List is a list of Errors, itself satisfying the [Error] interface so a
// batch of diagnostics can be returned, wrapped, or passed anywhere a
// single error is expected.
type List []Error

func (p List) Is(target error) bool {
	for _, e := range p {
		if errors.Is(e, target) {
			return true
		}
	}
	return false
}

func (p List) As(target interface{}) bool {
	for _, e := range p {
		if errors.As(e, target) {
			return true
		}
	}
	return false
}

// AddNewf appends a new position-carrying error to the list.
func (p *List) AddNewf(pos token.Pos, format string, args ...interface{}) {
	*p = append(*p, &posError{pos: pos, Message: NewMessagef(format, args...)})
}

// Add appends err, flattening it if it is itself a [List].
func (p *List) Add(err Error) {
	switch x := err.(type) {
	case nil:
	case List:
		*p = append(*p, x...)
	default:
		*p = append(*p, x)
	}
}

// Reset empties the list while keeping its backing array.
func (p *List) Reset() { *p = (*p)[:0] }

// Sort orders the list by (position, message), matching the diagnostic
// pipeline's deterministic-output contract.
func (p List) Sort() {
	slices.SortFunc(p, func(a, b Error) int {
		if c := comparePosNoPosFirst(a.Position(), b.Position()); c != 0 {
			return c
		}
		return cmp.Compare(a.Error(), b.Error())
	})
}

// Sanitize sorts and de-duplicates err on a best-effort basis, collapsing a
// single-element List to its lone element.
func Sanitize(err Error) Error {
	if err == nil {
		return nil
	}
	l, ok := err.(List)
	if !ok {
		return err
	}
	a := slices.Clone(l)
	a.Sort()
	a = slices.CompactFunc(a, approximatelyEqual)
	if len(a) == 1 {
		return a[0]
	}
	return a
}

func approximatelyEqual(a, b Error) bool {
	ap, bp := a.Position(), b.Position()
	if ap == token.NoPos || bp == token.NoPos {
		return a.Error() == b.Error()
	}
	return comparePosNoPosFirst(ap, bp) == 0 && a.Error() == b.Error()
}

func (p List) Error() string {
	format, args := p.Msg()
	return fmt.Sprintf(format, args...)
}

func (p List) Msg() (format string, args []interface{}) {
	switch len(p) {
	case 0:
		return "no errors", nil
	case 1:
		return p[0].Msg()
	default:
		return "%s (and %d more errors)", []interface{}{p[0], len(p) - 1}
	}
}

func (p List) Position() token.Pos {
	if len(p) == 0 {
		return token.NoPos
	}
	return p[0].Position()
}

func (p List) InputPositions() []token.Pos {
	if len(p) == 0 {
		return nil
	}
	return p[0].InputPositions()
}

// Err returns an error equivalent to p, or nil if p is empty.
func (p List) Err() error {
	if len(p) == 0 {
		return nil
	}
	return p
}

// Errors returns the individual Errors that make up err: err itself if it
// is a lone Error, its elements if it is a List, or a single promoted
// Error otherwise.
func Errors(err error) []Error {
	if err == nil {
		return nil
	}
	var l List
	var e Error
	switch {
	case As(err, &l):
		return l
	case As(err, &e):
		return []Error{e}
	default:
		return []Error{Promote(err, "")}
	}
}

// Config controls how [Print] renders errors.
type Config struct {
	// Format writes formatted text to w; defaults to fmt.Fprintf.
	Format func(w io.Writer, format string, args ...interface{})
	// Cwd, if set, makes printed filenames relative to it.
	Cwd string
	// ToSlash forces forward slashes in printed paths (used by tests).
	ToSlash bool
}

var zeroConfig = &Config{}

// Print writes err to w, one error per line with indented position
// listings, the concise-text form used by the diagnostic pipeline.
func Print(w io.Writer, err error, cfg *Config) {
	if cfg == nil {
		cfg = zeroConfig
	}
	for _, e := range sanitizeList(Errors(err)) {
		printOne(w, e, cfg)
	}
}

func sanitizeList(errs []Error) []Error {
	l := List(errs)
	l.Sort()
	return slices.CompactFunc(l, approximatelyEqual)
}

// Details renders err the way [Print] would, returning the result as a
// string.
func Details(err error, cfg *Config) string {
	var b strings.Builder
	Print(&b, err, cfg)
	return b.String()
}

// String renders a single Error without position listings, for embedding
// in a one-line summary.
func String(err Error) string {
	var b strings.Builder
	writeMessage(&b, err)
	return b.String()
}

func writeMessage(w io.Writer, err Error) {
	msg, args := err.Msg()
	fmt.Fprintf(w, msg, args...)
}

func printOne(w io.Writer, err Error, cfg *Config) {
	fprintf := cfg.Format
	if fprintf == nil {
		fprintf = defaultFprintf
	}
	writeMessage(w, err)

	positions := Positions(err)
	if len(positions) == 0 {
		fprintf(w, "\n")
		return
	}
	fprintf(w, ":\n")
	for _, p := range positions {
		pos := p.Position()
		path := relPath(pos.Filename, cfg)
		fprintf(w, "    %s", path)
		if pos.IsValid() {
			if path != "" {
				fprintf(w, ":")
			}
			fprintf(w, "%d:%d", pos.Line, pos.Column)
		}
		fprintf(w, "\n")
	}
}

func defaultFprintf(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, format, args...)
}

func relPath(path string, cfg *Config) string {
	if cfg.Cwd != "" {
		if p, err := filepath.Rel(cfg.Cwd, path); err == nil {
			path = p
			if !strings.HasPrefix(path, ".") {
				path = fmt.Sprintf(".%c%s", filepath.Separator, path)
			}
		}
	}
	if cfg.ToSlash {
		path = filepath.ToSlash(path)
	}
	return path
}
