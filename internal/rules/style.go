package rules

import (
	"fmt"
	"strings"

	"github.com/harrier-dev/harrier/ast"
	"github.com/harrier-dev/harrier/internal/core/diagnostic"
	"github.com/harrier-dev/harrier/internal/core/lint"
	"github.com/harrier-dev/harrier/token"
)

// lineTooLong reports lines exceeding the configured limit. A
// trailing `# noqa`-style pragma is stripped before measuring, so a
// suppression comment never pushes its own line over the limit.
var lineTooLong = &lint.Rule{
	Code:            "HA301",
	Name:            "line-too-long",
	DefaultSeverity: diagnostic.SeverityWarning,
	WholeFile:       true,
	Check: func(c *lint.Context, node ast.Node) {
		limit := c.Selection.LineLimit()
		offset := 0
		for _, line := range strings.SplitAfter(string(c.Source), "\n") {
			content := strings.TrimRight(line, "\r\n")
			measured := stripTrailingPragma(content)
			if n := len(measured); n > limit {
				start := c.Tree.TokFile.Pos(offset + limit)
				end := c.Tree.TokFile.Pos(offset + len(content))
				c.Diag(spanNode{start, end},
					fmt.Sprintf("line too long (%d > %d characters)", n, limit), nil)
			}
			offset += len(line)
		}
	},
}

// stripTrailingPragma drops a trailing suppression comment from the
// measured text.
func stripTrailingPragma(line string) string {
	if i := strings.LastIndex(line, "#"); i >= 0 {
		comment := strings.TrimSpace(line[i+1:])
		if strings.HasPrefix(comment, "noqa") || strings.HasPrefix(comment, "harrier:") {
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}

// spanNode adapts a raw byte range to the ast.Node interface so
// lexical rules can report spans with no backing syntax node.
type spanNode struct{ start, end token.Pos }

func (s spanNode) Pos() token.Pos { return s.start }
func (s spanNode) End() token.Pos { return s.end }

// fstringAnnotation reports annotations written as f-strings, bytes,
// or raw strings: none of them are valid forward references, and the
// checker cannot resolve them.
var fstringAnnotation = &lint.Rule{
	Code:            "HA201",
	Name:            "invalid-string-annotation",
	DefaultSeverity: diagnostic.SeverityError,
	Kinds:           []lint.NodeKind{lint.KindAnnAssign, lint.KindFunctionDef},
	Check: func(c *lint.Context, node ast.Node) {
		switch n := node.(type) {
		case *ast.AnnAssign:
			checkAnnotation(c, n.Annotation)
		case *ast.FunctionDef:
			if n.Returns != nil {
				checkAnnotation(c, n.Returns)
			}
			if n.Params != nil {
				for _, p := range allParams(n.Params) {
					if p.Annotation != nil {
						checkAnnotation(c, p.Annotation)
					}
				}
			}
		}
	},
}

func allParams(params *ast.Parameters) []*ast.Param {
	var out []*ast.Param
	out = append(out, params.PosOnly...)
	out = append(out, params.Args...)
	if params.VarArg != nil {
		out = append(out, params.VarArg)
	}
	out = append(out, params.KwOnly...)
	if params.KwArg != nil {
		out = append(out, params.KwArg)
	}
	return out
}

func checkAnnotation(c *lint.Context, ann ast.Expr) {
	switch x := ann.(type) {
	case *ast.JoinedStr:
		c.Diag(ann, "f-string used as a type annotation", nil)
	case *ast.BasicLit:
		switch {
		case x.Kind == ast.BytesLit:
			c.Diag(ann, "bytes literal used as a type annotation", nil)
		case x.Kind == ast.StringLit && hasRawPrefix(x.Value):
			c.Diag(ann, "raw string used as a type annotation", nil)
		}
	}
}

func hasRawPrefix(s string) bool {
	for i := 0; i < len(s) && i < 2; i++ {
		if s[i] == 'r' || s[i] == 'R' {
			return true
		}
		if s[i] == '"' || s[i] == '\'' {
			return false
		}
	}
	return false
}
