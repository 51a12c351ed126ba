// Package types implements type inference over the semantic index: a
// gradual type lattice, flow-sensitive narrowing, and the queries that
// assign a type to every expression and surface type-error
// diagnostics. The checker is best-effort on unannotated code; Unknown
// and Any are assignable in both directions.
package types

import (
	"fmt"
	"strings"
	"sync"

	"github.com/harrier-dev/harrier/internal/core/source"
)

// Type is the closed variant set of the lattice. Types are interned:
// structurally equal types are pointer-equal, so maps and comparisons
// are cheap.
type Type interface {
	// key returns the canonical spelling used for interning and
	// printing.
	key() string
}

type (
	// UnknownType is the gradual top for unannotated/unresolvable
	// code, and the cycle recovery value of every type query.
	UnknownType struct{}

	// NeverType is the empty type: unreachable values.
	NeverType struct{}

	// AnyType is the explicit `Any` annotation.
	AnyType struct{}

	// NoneInstance is the type of `None`.
	NoneInstance struct{}

	// EllipsisInstance is the type of `...`.
	EllipsisInstance struct{}

	// IntLiteral is a specific int value.
	IntLiteral struct{ Value int64 }

	// StrLiteral is a specific str value.
	StrLiteral struct{ Value string }

	// BytesLiteral is a specific bytes value.
	BytesLiteral struct{ Value string }

	// BoolLiteral is True or False.
	BoolLiteral struct{ Value bool }

	// NominalInstance is an instance of a class, possibly
	// parameterized.
	NominalInstance struct {
		Class *Class
		Args  []Type
	}

	// ClassLiteral is the class object itself.
	ClassLiteral struct{ Class *Class }

	// Callable is a callable signature.
	Callable struct {
		Params []Type
		Result Type
	}

	// Tuple is a fixed-length heterogeneous tuple.
	Tuple struct{ Elems []Type }

	// Union is a flattened, deduplicated sum.
	Union struct{ Members []Type }

	// Intersection holds positive conjuncts and negative exclusions,
	// the result of narrowing like `x is not None`.
	Intersection struct {
		Pos []Type
		Neg []Type
	}

	// TypeVar is a type variable introduced by a type-parameter
	// clause.
	TypeVar struct {
		Name string
		ID   int32
	}

	// StringAnnotation is a forward reference not yet resolved.
	StringAnnotation struct{ Text string }

	// ModuleLiteral is an imported module object.
	ModuleLiteral struct{ File *source.File }
)

func (*UnknownType) key() string     { return "Unknown" }
func (*NeverType) key() string       { return "Never" }
func (*AnyType) key() string         { return "Any" }
func (*NoneInstance) key() string    { return "None" }
func (*EllipsisInstance) key() string { return "EllipsisType" }

func (t *IntLiteral) key() string   { return fmt.Sprintf("Literal[%d]", t.Value) }
func (t *StrLiteral) key() string   { return fmt.Sprintf("Literal[%q]", t.Value) }
func (t *BytesLiteral) key() string { return fmt.Sprintf("Literal[b%q]", t.Value) }
func (t *BoolLiteral) key() string {
	if t.Value {
		return "Literal[True]"
	}
	return "Literal[False]"
}

func (t *NominalInstance) key() string {
	if len(t.Args) == 0 {
		return t.Class.qualName()
	}
	args := make([]string, len(t.Args))
	for i, a := range t.Args {
		args[i] = a.key()
	}
	return t.Class.qualName() + "[" + strings.Join(args, ", ") + "]"
}

func (t *ClassLiteral) key() string { return "type[" + t.Class.qualName() + "]" }

func (t *Callable) key() string {
	params := make([]string, len(t.Params))
	for i, p := range t.Params {
		params[i] = p.key()
	}
	return "(" + strings.Join(params, ", ") + ") -> " + t.Result.key()
}

func (t *Tuple) key() string {
	elems := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		elems[i] = e.key()
	}
	return "tuple[" + strings.Join(elems, ", ") + "]"
}

func (t *Union) key() string {
	members := make([]string, len(t.Members))
	for i, m := range t.Members {
		members[i] = m.key()
	}
	return strings.Join(members, " | ")
}

func (t *Intersection) key() string {
	var parts []string
	for _, p := range t.Pos {
		parts = append(parts, p.key())
	}
	for _, n := range t.Neg {
		parts = append(parts, "~"+n.key())
	}
	return strings.Join(parts, " & ")
}

func (t *TypeVar) key() string          { return fmt.Sprintf("%s@%d", t.Name, t.ID) }
func (t *StringAnnotation) key() string { return fmt.Sprintf("annotation(%q)", t.Text) }
func (t *ModuleLiteral) key() string    { return "module[" + t.File.Path().String() + "]" }

// String renders the type for diagnostics.
func String(t Type) string { return t.key() }

// The interner: structurally equal types share one pointer. Entries
// are immutable and never removed; ids are stable once created.
var interner = struct {
	mu sync.Mutex
	m  map[string]Type
}{m: make(map[string]Type)}

func intern(t Type) Type {
	k := t.key()
	interner.mu.Lock()
	defer interner.mu.Unlock()
	if v, ok := interner.m[k]; ok {
		return v
	}
	interner.m[k] = t
	return t
}

// Pre-interned singletons for the nullary variants.
var (
	TUnknown  = intern(&UnknownType{}).(*UnknownType)
	TNever    = intern(&NeverType{}).(*NeverType)
	TAny      = intern(&AnyType{}).(*AnyType)
	TNone     = intern(&NoneInstance{}).(*NoneInstance)
	TEllipsis = intern(&EllipsisInstance{}).(*EllipsisInstance)
)

// NewIntLiteral returns the interned literal type for v.
func NewIntLiteral(v int64) Type { return intern(&IntLiteral{Value: v}) }

// NewStrLiteral returns the interned literal type for v.
func NewStrLiteral(v string) Type { return intern(&StrLiteral{Value: v}) }

// NewBytesLiteral returns the interned literal type for v.
func NewBytesLiteral(v string) Type { return intern(&BytesLiteral{Value: v}) }

// NewBoolLiteral returns the interned literal type for v.
func NewBoolLiteral(v bool) Type { return intern(&BoolLiteral{Value: v}) }

// NewInstance returns the interned instance type of class with args.
func NewInstance(class *Class, args ...Type) Type {
	return intern(&NominalInstance{Class: class, Args: args})
}

// NewClassLiteral returns the interned class-object type.
func NewClassLiteral(class *Class) Type { return intern(&ClassLiteral{Class: class}) }

// NewCallable returns the interned callable type.
func NewCallable(params []Type, result Type) Type {
	return intern(&Callable{Params: params, Result: result})
}

// NewTuple returns the interned tuple type.
func NewTuple(elems ...Type) Type { return intern(&Tuple{Elems: elems}) }

// NewTypeVar returns the interned type variable.
func NewTypeVar(name string, id int32) Type { return intern(&TypeVar{Name: name, ID: id}) }

// NewStringAnnotation returns the interned unresolved forward
// reference.
func NewStringAnnotation(text string) Type { return intern(&StringAnnotation{Text: text}) }

// NewModuleLiteral returns the interned module-object type.
func NewModuleLiteral(file *source.File) Type { return intern(&ModuleLiteral{File: file}) }
