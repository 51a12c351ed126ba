// Package diagnostic defines the value type every engine in Harrier
// reports through — parser syntax errors, semantic-index findings,
// type-check violations, lint findings — together with the pipeline
// that resolves severities, sorts, de-duplicates, and renders them in
// each supported output format.
package diagnostic

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/harrier-dev/harrier/token"
)

// Severity ranks how serious a diagnostic is.
type Severity int

const (
	SeverityHint Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityHint:
		return "hint"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// ParseSeverity converts a configuration string to a Severity.
func ParseSeverity(s string) (Severity, bool) {
	switch s {
	case "hint":
		return SeverityHint, true
	case "info":
		return SeverityInfo, true
	case "warning", "warn":
		return SeverityWarning, true
	case "error":
		return SeverityError, true
	}
	return 0, false
}

// Applicability says how safely a fix may be applied.
type Applicability int

const (
	// ApplicabilitySafe fixes preserve program behavior and are
	// applied whenever fixing is requested.
	ApplicabilitySafe Applicability = iota
	// ApplicabilityUnsafe fixes may change behavior; applied only when
	// the caller opts in. Opting in does not reclassify them as safe —
	// the two remain distinct tiers in all reporting.
	ApplicabilityUnsafe
	// ApplicabilityDisplayOnly fixes are never applied; they exist to
	// render a suggestion.
	ApplicabilityDisplayOnly
)

func (a Applicability) String() string {
	switch a {
	case ApplicabilitySafe:
		return "safe"
	case ApplicabilityUnsafe:
		return "unsafe"
	case ApplicabilityDisplayOnly:
		return "display-only"
	}
	return "unknown"
}

// An Edit replaces one byte range of one file with new text.
type Edit struct {
	Range   token.Range
	NewText string
}

// A Fix is a set of edits attached to a diagnostic.
type Fix struct {
	Message       string
	Applicability Applicability
	Edits         []Edit
}

// Conflicts reports whether any edit of f overlaps any edit of other.
func (f *Fix) Conflicts(other *Fix) bool {
	for _, a := range f.Edits {
		for _, b := range other.Edits {
			if a.Range.Overlaps(b.Range) {
				return true
			}
		}
	}
	return false
}

// An Annotation is a labeled secondary span contributing context to a
// diagnostic (the other arm of a conflict, the previous binding, ...).
type Annotation struct {
	Range token.Range
	Label string
}

// A Diagnostic is one finding: a rule code, a severity, a primary
// span, and optionally secondary annotations and a fix.
type Diagnostic struct {
	Code      string
	Severity  Severity
	Range     token.Range
	Message   string
	Secondary []Annotation
	Fix       *Fix

	// Suppressed records that a suppression comment matched; the
	// pipeline drops suppressed diagnostics before rendering but
	// keeps the flag so --show-suppressed style surfaces can report
	// them.
	Suppressed bool
}

// Pos returns the diagnostic's primary position.
func (d *Diagnostic) Pos() token.Pos { return d.Range.Start }

// compareDiagnostics orders diagnostics by (file path, start, end, code) for
// deterministic output regardless of execution order.
func compareDiagnostics(a, b Diagnostic) int {
	if c := cmp.Compare(a.Range.Start.Filename(), b.Range.Start.Filename()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Range.Start.Offset(), b.Range.Start.Offset()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Range.End.Offset(), b.Range.End.Offset()); c != 0 {
		return c
	}
	return cmp.Compare(a.Code, b.Code)
}

// Sort orders diags deterministically.
func Sort(diags []Diagnostic) {
	slices.SortStableFunc(diags, compareDiagnostics)
}

// Dedupe removes diagnostics equal in every sort-key field plus
// message; diags must already be sorted.
func Dedupe(diags []Diagnostic) []Diagnostic {
	return slices.CompactFunc(diags, func(a, b Diagnostic) bool {
		return compareDiagnostics(a, b) == 0 && a.Message == b.Message
	})
}

// SeverityOverrides maps rule codes to severities configured by the
// settings layer; it overrides each rule's default.
type SeverityOverrides map[string]Severity

// Resolve applies overrides to d's default severity.
func (o SeverityOverrides) Resolve(code string, def Severity) Severity {
	if s, ok := o[code]; ok {
		return s
	}
	return def
}

// Pipeline collects diagnostics from every engine, then finalizes
// them: drop suppressed, resolve severity, sort, de-duplicate.
type Pipeline struct {
	Overrides SeverityOverrides

	diags []Diagnostic
}

// Add appends a diagnostic to the pipeline.
func (p *Pipeline) Add(d Diagnostic) { p.diags = append(p.diags, d) }

// AddAll appends a batch.
func (p *Pipeline) AddAll(ds []Diagnostic) { p.diags = append(p.diags, ds...) }

// Finish returns the final, rendered-ready diagnostic list.
func (p *Pipeline) Finish() []Diagnostic {
	out := make([]Diagnostic, 0, len(p.diags))
	for _, d := range p.diags {
		if d.Suppressed {
			continue
		}
		d.Severity = p.Overrides.Resolve(d.Code, d.Severity)
		out = append(out, d)
	}
	Sort(out)
	return Dedupe(out)
}

// ExitCode computes the process exit status for a finished run: 1 if
// any diagnostic is at or above error severity (or any warning exists
// and errorOnWarning is set), else 0. Input and configuration
// failures exit 2 at the driver layer, before diagnostics exist.
func ExitCode(diags []Diagnostic, errorOnWarning bool) int {
	for _, d := range diags {
		if d.Severity >= SeverityError {
			return 1
		}
		if errorOnWarning && d.Severity == SeverityWarning {
			return 1
		}
	}
	return 0
}

// excerptLine returns the source line containing pos and a caret
// column for rendering, or "" if the position has no backing file.
func excerptLine(pos token.Pos) (line string, caretCol int) {
	f := pos.File()
	if f == nil {
		return "", 0
	}
	content := f.Content()
	off := pos.Offset()
	if off > len(content) {
		off = len(content)
	}
	start := off
	for start > 0 && content[start-1] != '\n' {
		start--
	}
	end := off
	for end < len(content) && content[end] != '\n' {
		end++
	}
	return strings.TrimRight(string(content[start:end]), "\r"), off - start
}
