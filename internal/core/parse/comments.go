package parse

import (
	"sort"
	"strings"

	"github.com/harrier-dev/harrier/ast"
	"github.com/harrier-dev/harrier/token"
)

// CommentRanges indexes a file's comments by byte range so
// lexical-level consumers (suppression matching, pragma stripping,
// string-prefix rules) can find them without reparsing. Comments are
// kept in source order.
type CommentRanges struct {
	tokFile  *token.File
	comments []*ast.Comment
	// lineOf[i] is the 1-based line comment i starts on, parallel to
	// comments, precomputed because suppression lookups are by line.
	lineOf []int
}

// NewCommentRanges builds the index; comments must be in source order,
// as the parser emits them.
func NewCommentRanges(tokFile *token.File, comments []*ast.Comment) *CommentRanges {
	cr := &CommentRanges{tokFile: tokFile, comments: comments}
	cr.lineOf = make([]int, len(comments))
	for i, c := range comments {
		cr.lineOf[i] = c.Pos().Position().Line
	}
	return cr
}

// All returns the comments in source order.
func (cr *CommentRanges) All() []*ast.Comment { return cr.comments }

// OnLine returns the comments whose range starts on the given 1-based
// line.
func (cr *CommentRanges) OnLine(line int) []*ast.Comment {
	i := sort.SearchInts(cr.lineOf, line)
	j := i
	for j < len(cr.lineOf) && cr.lineOf[j] == line {
		j++
	}
	return cr.comments[i:j]
}

// Within returns the comments entirely contained in r.
func (cr *CommentRanges) Within(r token.Range) []*ast.Comment {
	var out []*ast.Comment
	for _, c := range cr.comments {
		if c.Pos().Offset() >= r.Start.Offset() && c.End().Offset() <= r.End.Offset() {
			out = append(out, c)
		}
	}
	return out
}

// Suppression is a parsed `# noqa` comment.
type Suppression struct {
	Line  int
	Codes []string // empty means all codes
	File  bool     // `# harrier: noqa`, disables the whole file
}

// Suppressions scans the comment index for suppression comments. A
// trailing `# noqa` suppresses all codes on its line; `# noqa: C1, C2`
// suppresses the listed codes; a `# harrier: noqa` comment anywhere
// disables every diagnostic in the file.
func (cr *CommentRanges) Suppressions() []Suppression {
	var out []Suppression
	for i, c := range cr.comments {
		text := strings.TrimSpace(c.Text)
		if text == "harrier: noqa" || text == "ruff: noqa" {
			out = append(out, Suppression{Line: cr.lineOf[i], File: true})
			continue
		}
		rest, ok := strings.CutPrefix(text, "noqa")
		if !ok {
			continue
		}
		s := Suppression{Line: cr.lineOf[i]}
		if rest, ok = strings.CutPrefix(rest, ":"); ok {
			for _, code := range strings.Split(rest, ",") {
				if code = strings.TrimSpace(code); code != "" {
					s.Codes = append(s.Codes, code)
				}
			}
			// `# noqa:` with no codes suppresses nothing.
			if len(s.Codes) == 0 {
				continue
			}
		} else if rest != "" && !strings.HasPrefix(rest, " ") {
			// Not a suppression, just a comment starting with "noqa".
			continue
		}
		out = append(out, s)
	}
	return out
}
