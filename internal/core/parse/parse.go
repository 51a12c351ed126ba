// Package parse is the bridge between the source database and the
// parser: a memoized query keyed by file identity, returning the parse
// tree, the comment-range index, and any syntax errors as
// diagnostics. Syntax errors never prevent downstream semantic work.
package parse

import (
	"github.com/harrier-dev/harrier/errors"
	"github.com/harrier-dev/harrier/internal/core/db"
	"github.com/harrier-dev/harrier/internal/core/diagnostic"
	"github.com/harrier-dev/harrier/internal/core/source"
	"github.com/harrier-dev/harrier/parser"
	"github.com/harrier-dev/harrier/ast"
	"github.com/harrier-dev/harrier/token"
)

// SyntaxErrorCode is the rule code attached to parser diagnostics.
const SyntaxErrorCode = "E999"

// A Tree is the immutable result of parsing one file at one revision.
// References into Root are tied to the tree's lifetime; node identity
// is not preserved across revisions.
type Tree struct {
	File         *source.File
	TokFile      *token.File
	Root         *ast.Module
	Comments     *CommentRanges
	SyntaxErrors []diagnostic.Diagnostic
}

// Query is the parse query, keyed by *source.File.
var Query = &db.Query{
	Name: "parse.file",
	Compute: func(ctx *db.Context, key any) any {
		file := key.(*source.File)
		text := ctx.ReadFile(file)
		tokFile := ctx.LineIndex(file)

		mod, err := parser.ParseFileWithTokenFile(tokFile, text.Content, parser.ParseComments|parser.AllErrors)
		tree := &Tree{
			File:     file,
			TokFile:  tokFile,
			Root:     mod,
			Comments: NewCommentRanges(tokFile, mod.Comments),
		}
		for _, e := range errors.Errors(err) {
			pos := e.Position()
			tree.SyntaxErrors = append(tree.SyntaxErrors, diagnostic.Diagnostic{
				Code:     SyntaxErrorCode,
				Severity: diagnostic.SeverityError,
				Range:    token.Range{Start: pos, End: pos.Add(1)},
				Message:  e.Error(),
			})
		}
		return tree
	},
	Cycle: db.CycleConfig{Recovery: (*Tree)(nil)},
}

// Of returns the parse tree for file, computing or reusing it through
// the incremental engine.
func Of(ctx *db.Context, file *source.File) *Tree {
	return db.GetTyped[*Tree](ctx, Query, file)
}
