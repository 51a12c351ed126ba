package rules

import (
	"fmt"

	"github.com/harrier-dev/harrier/ast"
	"github.com/harrier-dev/harrier/internal/core/diagnostic"
	"github.com/harrier-dev/harrier/internal/core/lint"
)

// possiblyUnbound reports loads that some control-flow path reaches
// without a binding: a name assigned in only one arm of a
// conditional, a for-target after a possibly-empty loop, or a
// star-imported name the source module binds conditionally. It is
// driven by the use–def map through the inference result.
var possiblyUnbound = &lint.Rule{
	Code:            "HA001",
	Name:            "possibly-unbound-name",
	DefaultSeverity: diagnostic.SeverityWarning,
	Kinds:           []lint.NodeKind{lint.KindIdent},
	Check: func(c *lint.Context, node ast.Node) {
		id := node.(*ast.Ident)
		if _, use, ok := c.Index.UseOf(id); !ok || use == nil {
			return
		}
		inference := c.Types()
		if inference == nil || !inference.PossiblyUnbound[ast.Expr(id)] {
			return
		}
		c.Diag(id,
			fmt.Sprintf("name %q may be unbound on some paths", id.Name), nil)
	},
}
