// Package rules supplies Harrier's built-in lint rules. Each linter
// groups related rules; Register installs them all into a registry at
// program start. The set is representative rather than exhaustive:
// every rule-model feature — kind targeting, callee matching, each
// fix-availability and fix-safety tier, type-inference consumption —
// has at least one rule exercising it.
package rules

import "github.com/harrier-dev/harrier/internal/core/lint"

// Register installs the built-in linters.
func Register(reg *lint.Registry) {
	reg.MustRegister(lint.Linter{Name: "flow", Rules: []*lint.Rule{
		possiblyUnbound,
	}})
	reg.MustRegister(lint.Linter{Name: "refactor", Rules: []*lint.Rule{
		redundantParens,
		encodeToBytes,
		typeCompare,
	}})
	reg.MustRegister(lint.Linter{Name: "style", Rules: []*lint.Rule{
		lineTooLong,
		fstringAnnotation,
	}})
}

// NewRegistry builds a registry with every built-in linter installed.
func NewRegistry() *lint.Registry {
	reg := lint.NewRegistry()
	Register(reg)
	return reg
}
