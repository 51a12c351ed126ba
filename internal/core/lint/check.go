package lint

import (
	"github.com/harrier-dev/harrier/ast"
	"github.com/harrier-dev/harrier/internal/core/db"
	"github.com/harrier-dev/harrier/internal/core/diagnostic"
	"github.com/harrier-dev/harrier/internal/core/parse"
	"github.com/harrier-dev/harrier/internal/core/semantic"
	"github.com/harrier-dev/harrier/internal/core/source"
	"github.com/harrier-dev/harrier/internal/core/types"
)

// Selection is the per-file resolved rule configuration: which codes
// run, severity overrides, and the lexical limits rules consult. The
// settings layer produces one per (file, settings revision).
type Selection struct {
	// Enabled decides whether a code runs; nil enables everything.
	Enabled func(code string) bool

	Severity diagnostic.SeverityOverrides

	// LineLength is the overlong-line limit; 0 means the default.
	LineLength int
}

// DefaultLineLength is used when no configuration sets one.
const DefaultLineLength = 88

func (s *Selection) enabled(code string) bool {
	if s == nil || s.Enabled == nil {
		return true
	}
	return s.Enabled(code)
}

// LineLimit returns the configured line length.
func (s *Selection) LineLimit() int {
	if s == nil || s.LineLength == 0 {
		return DefaultLineLength
	}
	return s.LineLength
}

// Context is passed to every rule invocation. Rules read from it
// freely but may only write through the diagnostic sink.
type Context struct {
	File      *source.File
	Tree      *parse.Tree
	Index     *semantic.Index
	Source    []byte
	Selection *Selection

	// scopes is the checker's scope stack; the last entry is the
	// scope enclosing the visited node.
	scopes []semantic.ScopeID

	ctx       *db.Context
	inference *types.InferenceResult
	rule      *Rule
	diags     []diagnostic.Diagnostic
}

// Scope returns the current scope id.
func (c *Context) Scope() semantic.ScopeID {
	if len(c.scopes) == 0 {
		return semantic.ModuleScope
	}
	return c.scopes[len(c.scopes)-1]
}

// ScopeChain returns the active scope stack, outermost first.
func (c *Context) ScopeChain() []semantic.ScopeID { return c.scopes }

// Types returns the file's inference result, computing it on first
// use so purely lexical rule sets never pay for inference.
func (c *Context) Types() *types.InferenceResult {
	if c.inference == nil {
		c.inference = types.Of(c.ctx, c.File)
	}
	return c.inference
}

// Report sends a diagnostic to the sink.
func (c *Context) Report(d diagnostic.Diagnostic) {
	c.diags = append(c.diags, d)
}

// Rule returns the rule currently being dispatched.
func (c *Context) Rule() *Rule { return c.rule }

// Diag is the common-case report: a node, a message, and an optional
// fix, attributed to the rule being dispatched. Severity resolution
// happens in the pipeline; the rule's default is recorded here.
func (c *Context) Diag(node ast.Node, message string, fix *diagnostic.Fix) {
	c.Report(diagnostic.Diagnostic{
		Code:     c.rule.Code,
		Severity: c.rule.DefaultSeverity,
		Range:    ast.Range(node),
		Message:  message,
		Fix:      fix,
	})
}

// Run lints one file: a single depth-first walk dispatching to the
// rules indexed by each visited node's kind, followed by suppression
// matching. Parse, semantic, and type results flow through the
// incremental engine; the walk itself is cheap enough to re-run.
func Run(ctx *db.Context, file *source.File, reg *Registry, sel *Selection) []diagnostic.Diagnostic {
	tree := parse.Of(ctx, file)
	if tree == nil || tree.Root == nil {
		return nil
	}
	c := &Context{
		File:      file,
		Tree:      tree,
		Index:     semantic.Of(ctx, file),
		Source:    tree.TokFile.Content(),
		Selection: sel,
		ctx:       ctx,
	}

	var diags []diagnostic.Diagnostic
	diags = append(diags, tree.SyntaxErrors...)

	for _, r := range reg.wholeFile {
		if sel.enabled(r.Code) {
			c.rule = r
			r.Check(c, tree.Root)
		}
	}
	c.rule = nil

	c.walk(tree.Root, reg)
	diags = append(diags, c.diags...)

	applySuppressions(tree, diags)
	return diags
}

func (c *Context) walk(root ast.Node, reg *Registry) {
	var visit func(n ast.Node) bool
	visit = func(n ast.Node) bool {
		if id, ok := c.Index.ScopeFor(n); ok && n != root {
			c.scopes = append(c.scopes, id)
			defer func() { c.scopes = c.scopes[:len(c.scopes)-1] }()
			c.dispatch(n, reg)
			ast.Walk(n, func(child ast.Node) bool {
				if child == n {
					return true
				}
				return visit(child)
			}, nil)
			return false
		}
		c.dispatch(n, reg)
		return true
	}
	ast.Walk(root, visit, nil)
}

func (c *Context) dispatch(n ast.Node, reg *Registry) {
	kind := KindOf(n)
	if kind == KindInvalid {
		return
	}
	for _, r := range reg.byKind[kind] {
		if !c.Selection.enabled(r.Code) {
			continue
		}
		if kind == KindCall {
			if call, ok := n.(*ast.CallExpr); ok && !r.matchCallee(call) {
				continue
			}
		}
		c.rule = r
		r.Check(c, n)
		c.rule = nil
	}
}

// applySuppressions marks diagnostics matched by `# noqa` comments.
// A bare noqa suppresses everything on its line; a code list
// suppresses those codes; a file-level marker suppresses the whole
// file. Syntax-error diagnostics are never suppressed.
func applySuppressions(tree *parse.Tree, diags []diagnostic.Diagnostic) {
	sups := tree.Comments.Suppressions()
	if len(sups) == 0 {
		return
	}
	fileLevel := false
	byLine := make(map[int][]parse.Suppression)
	for _, s := range sups {
		if s.File {
			fileLevel = true
			continue
		}
		byLine[s.Line] = append(byLine[s.Line], s)
	}
	for i := range diags {
		d := &diags[i]
		if d.Code == parse.SyntaxErrorCode {
			continue
		}
		if fileLevel {
			d.Suppressed = true
			continue
		}
		line := d.Range.Start.Position().Line
		for _, s := range byLine[line] {
			if len(s.Codes) == 0 {
				d.Suppressed = true
				break
			}
			for _, code := range s.Codes {
				if code == d.Code {
					d.Suppressed = true
					break
				}
			}
		}
	}
}
