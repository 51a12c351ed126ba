package semantic

import (
	"fmt"

	"github.com/harrier-dev/harrier/internal/core/db"
	"github.com/harrier-dev/harrier/internal/core/parse"
	"github.com/harrier-dev/harrier/internal/core/source"
)

// Query is the semantic-index query, keyed by *source.File.
var Query = &db.Query{
	Name: "semantic.index",
	Compute: func(ctx *db.Context, key any) any {
		file := key.(*source.File)
		tree := parse.Of(ctx, file)
		if tree == nil || tree.Root == nil {
			return (*Index)(nil)
		}
		var ix *Index
		guard(file, func() {
			ix = Build(file, tree.Root)
		})
		return ix
	},
	Cycle: db.CycleConfig{Recovery: (*Index)(nil)},
}

// Of returns the semantic index for file through the incremental
// engine.
func Of(ctx *db.Context, file *source.File) *Index {
	return db.GetTyped[*Index](ctx, Query, file)
}

// guard runs fn, annotating any panic with the file path and revision
// before re-raising it: indexer invariant violations are internal
// bugs, and the context makes the report actionable. Cancellation
// unwinds pass through untouched.
func guard(file *source.File, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if db.IsCancellation(r) {
				panic(r)
			}
			panic(fmt.Sprintf("internal error indexing %s (revision %d): %v",
				file.Path(), file.Revision(), r))
		}
	}()
	fn()
}
