package lint

import (
	"slices"
	"sort"

	"github.com/harrier-dev/harrier/internal/core/diagnostic"
	"github.com/harrier-dev/harrier/internal/rangeset"
)

// FixResult is the outcome of composing and applying fixes for one
// file.
type FixResult struct {
	// Source is the rewritten file content.
	Source []byte
	// Applied lists the rule codes whose fixes were applied, in
	// application order.
	Applied []string
	// Skipped counts fixes discarded because they overlapped an
	// already-accepted fix.
	Skipped int
}

// ApplyFixes composes the fixes carried by diags against src.
// Candidates are sorted by (start, end); a fix whose edits overlap an
// already-accepted fix is discarded (deterministic, first wins);
// accepted edits are applied bottom-up so earlier offsets stay valid.
// Unsafe fixes apply only when the caller opts in; display-only fixes
// never apply.
func ApplyFixes(src []byte, diags []diagnostic.Diagnostic, applyUnsafe bool) FixResult {
	type candidate struct {
		code string
		fix  *diagnostic.Fix
	}
	var candidates []candidate
	for _, d := range diags {
		if d.Fix == nil || d.Suppressed || len(d.Fix.Edits) == 0 {
			continue
		}
		switch d.Fix.Applicability {
		case diagnostic.ApplicabilityDisplayOnly:
			continue
		case diagnostic.ApplicabilityUnsafe:
			if !applyUnsafe {
				continue
			}
		}
		candidates = append(candidates, candidate{code: d.Code, fix: d.Fix})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].fix.Edits[0].Range, candidates[j].fix.Edits[0].Range
		if a.Start.Offset() != b.Start.Offset() {
			return a.Start.Offset() < b.Start.Offset()
		}
		return a.End.Offset() < b.End.Offset()
	})

	accepted := rangeset.New()
	var edits []diagnostic.Edit
	result := FixResult{}
	for _, cand := range candidates {
		conflict := false
		for _, e := range cand.fix.Edits {
			if accepted.Overlaps(e.Range.Start.Offset(), e.Range.End.Offset()) {
				conflict = true
				break
			}
		}
		if conflict {
			result.Skipped++
			continue
		}
		for _, e := range cand.fix.Edits {
			accepted.Add(e.Range.Start.Offset(), e.Range.End.Offset())
			edits = append(edits, e)
		}
		result.Applied = append(result.Applied, cand.code)
	}

	// Bottom-up application keeps earlier ranges valid.
	sort.SliceStable(edits, func(i, j int) bool {
		return edits[i].Range.Start.Offset() > edits[j].Range.Start.Offset()
	})
	out := slices.Clone(src)
	for _, e := range edits {
		start, end := e.Range.Start.Offset(), e.Range.End.Offset()
		out = append(out[:start], append([]byte(e.NewText), out[end:]...)...)
	}
	result.Source = out
	return result
}
