package rules

import (
	"fmt"

	"github.com/harrier-dev/harrier/ast"
	"github.com/harrier-dev/harrier/internal/core/diagnostic"
	"github.com/harrier-dev/harrier/internal/core/lint"
	"github.com/harrier-dev/harrier/token"
)

// redundantParens reports parentheses around an expression that needs
// none: a bare name, a literal, a call, or an already-parenthesized
// expression. Always fixable; removing parentheses cannot change
// behavior for these forms.
var redundantParens = &lint.Rule{
	Code:            "HA002",
	Name:            "redundant-parens",
	DefaultSeverity: diagnostic.SeverityInfo,
	Kinds:           []lint.NodeKind{lint.KindParen},
	Fix:             lint.FixAlways,
	FixSafety:       diagnostic.ApplicabilitySafe,
	Check: func(c *lint.Context, node ast.Node) {
		paren := node.(*ast.ParenExpr)
		switch paren.X.(type) {
		case *ast.Ident, *ast.BasicLit, *ast.CallExpr, *ast.ParenExpr:
		default:
			return
		}
		inner := string(c.Source[paren.X.Pos().Offset():paren.X.End().Offset()])
		c.Diag(paren, "redundant parentheses", &diagnostic.Fix{
			Message:       "remove parentheses",
			Applicability: diagnostic.ApplicabilitySafe,
			Edits: []diagnostic.Edit{{
				Range:   ast.Range(paren),
				NewText: inner,
			}},
		})
	},
}

// encodeToBytes rewrites `"foo".encode()` over a plain string literal
// to the equivalent bytes literal. Fixable only when the receiver is
// a literal without f/r prefixes and the encoding argument is absent
// or "utf-8"; anything else gets no fix.
var encodeToBytes = &lint.Rule{
	Code:            "HA101",
	Name:            "encode-to-bytes-literal",
	DefaultSeverity: diagnostic.SeverityInfo,
	Kinds:           []lint.NodeKind{lint.KindCall},
	Callees:         []string{"*.encode"},
	Fix:             lint.FixSometimes,
	FixSafety:       diagnostic.ApplicabilitySafe,
	Check: func(c *lint.Context, node ast.Node) {
		call := node.(*ast.CallExpr)
		attr, ok := call.Fun.(*ast.Attribute)
		if !ok {
			return
		}
		lit, ok := attr.Value.(*ast.BasicLit)
		if !ok || lit.Kind != ast.StringLit || !plainStringLit(lit.Value) {
			return
		}
		if len(call.Keywords) > 0 || !utf8EncodingArgs(call.Args) {
			c.Diag(call, "encode() on a string literal", nil)
			return
		}
		c.Diag(call, "encode() on a string literal; use a bytes literal", &diagnostic.Fix{
			Message:       "replace with bytes literal",
			Applicability: diagnostic.ApplicabilitySafe,
			Edits: []diagnostic.Edit{{
				Range:   ast.Range(call),
				NewText: "b" + lit.Value,
			}},
		})
	},
}

// plainStringLit reports whether a string literal's source spelling
// has no prefix letters, so prepending `b` yields a valid bytes
// literal.
func plainStringLit(s string) bool {
	return len(s) > 0 && (s[0] == '"' || s[0] == '\'')
}

func utf8EncodingArgs(args []ast.Expr) bool {
	switch len(args) {
	case 0:
		return true
	case 1:
		lit, ok := args[0].(*ast.BasicLit)
		if !ok || lit.Kind != ast.StringLit {
			return false
		}
		switch lit.Value {
		case `"utf-8"`, `'utf-8'`, `"utf8"`, `'utf8'`:
			return true
		}
	}
	return false
}

// typeCompare reports `type(x) == T` comparisons, which ignore
// subclasses; isinstance is almost always meant. The suggested
// rewrite is display-only: it changes behavior for exact-type checks,
// so it is never applied automatically.
var typeCompare = &lint.Rule{
	Code:            "HA401",
	Name:            "type-comparison",
	DefaultSeverity: diagnostic.SeverityWarning,
	Kinds:           []lint.NodeKind{lint.KindCompare},
	Fix:             lint.FixSometimes,
	FixSafety:       diagnostic.ApplicabilityDisplayOnly,
	Check: func(c *lint.Context, node ast.Node) {
		cmp := node.(*ast.Compare)
		if len(cmp.Ops) != 1 || (cmp.Ops[0] != ast.Eq && cmp.Ops[0] != ast.NotEq) {
			return
		}
		call, ok := typeCallOf(cmp.Left)
		if !ok {
			return
		}
		arg := string(c.Source[call.Args[0].Pos().Offset():call.Args[0].End().Offset()])
		rhs := string(c.Source[cmp.Comparators[0].Pos().Offset():cmp.Comparators[0].End().Offset()])
		suggestion := fmt.Sprintf("isinstance(%s, %s)", arg, rhs)
		c.Diag(cmp,
			"type comparison ignores subclasses; consider isinstance()", &diagnostic.Fix{
				Message:       "rewrite as " + suggestion,
				Applicability: diagnostic.ApplicabilityDisplayOnly,
				Edits: []diagnostic.Edit{{
					Range:   token.Range{Start: cmp.Pos(), End: cmp.End()},
					NewText: suggestion,
				}},
			})
	},
}

func typeCallOf(e ast.Expr) (*ast.CallExpr, bool) {
	call, ok := e.(*ast.CallExpr)
	if !ok || len(call.Args) != 1 {
		return nil, false
	}
	fn, ok := call.Fun.(*ast.Ident)
	if !ok || fn.Name != "type" {
		return nil, false
	}
	return call, true
}
