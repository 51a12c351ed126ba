package types

import (
	"github.com/harrier-dev/harrier/ast"
	"github.com/harrier-dev/harrier/internal/core/source"
)

// A Class is the checker's view of one class definition: its name,
// resolved base classes, and (for builtins) a method table. User
// classes resolve members through their semantic index; builtin
// classes resolve them through Methods.
type Class struct {
	Name string
	// File is nil for builtin classes.
	File *source.File
	Node *ast.ClassDef

	Bases []*Class

	// Methods maps method names to callable types, populated for the
	// builtin stub surface.
	Methods map[string]Type
}

func (c *Class) qualName() string {
	if c.File == nil {
		return c.Name
	}
	return c.File.Path().String() + "." + c.Name
}

// HasBase reports whether other appears in c's transitive base
// classes (or is c itself). Cycles in the base graph are guarded by
// the visited set; cyclic classes additionally get a diagnostic at
// inference time.
func (c *Class) HasBase(other *Class) bool {
	return c.hasBase(other, make(map[*Class]bool))
}

func (c *Class) hasBase(other *Class, visited map[*Class]bool) bool {
	if c == other {
		return true
	}
	if visited[c] {
		return false
	}
	visited[c] = true
	for _, b := range c.Bases {
		if b.hasBase(other, visited) {
			return true
		}
	}
	return false
}

// LookupMethod resolves name through c and its bases.
func (c *Class) LookupMethod(name string) (Type, bool) {
	if t, ok := c.Methods[name]; ok {
		return t, true
	}
	for _, b := range c.Bases {
		if t, ok := b.LookupMethod(name); ok {
			return t, true
		}
	}
	return nil, false
}

// The builtin stub surface: the minimal class set every Python file
// can reach without an import. Instances of these back
// NominalInstance resolution for literals and common annotations;
// without them, every attribute access on a builtin would bottom out
// at Unknown.
var (
	ClassObject = &Class{Name: "object"}
	ClassInt    = &Class{Name: "int", Bases: []*Class{ClassObject}}
	ClassFloat  = &Class{Name: "float", Bases: []*Class{ClassObject}}
	ClassBool   = &Class{Name: "bool", Bases: []*Class{ClassInt}}
	ClassStr    = &Class{Name: "str", Bases: []*Class{ClassObject}}
	ClassBytes  = &Class{Name: "bytes", Bases: []*Class{ClassObject}}
	ClassList   = &Class{Name: "list", Bases: []*Class{ClassObject}}
	ClassDict   = &Class{Name: "dict", Bases: []*Class{ClassObject}}
	ClassTuple  = &Class{Name: "tuple", Bases: []*Class{ClassObject}}
	ClassSet    = &Class{Name: "set", Bases: []*Class{ClassObject}}

	ClassBaseException = &Class{Name: "BaseException", Bases: []*Class{ClassObject}}
	ClassException     = &Class{Name: "Exception", Bases: []*Class{ClassBaseException}}
)

// Instances of the builtin classes, interned once.
var (
	TInt   = NewInstance(ClassInt)
	TFloat = NewInstance(ClassFloat)
	TBool  = NewInstance(ClassBool)
	TStr   = NewInstance(ClassStr)
	TBytes = NewInstance(ClassBytes)
	TList  = NewInstance(ClassList)
	TDict  = NewInstance(ClassDict)
	TSet   = NewInstance(ClassSet)
)

// builtinClasses resolves a bare name to a builtin class.
var builtinClasses = map[string]*Class{
	"object":        ClassObject,
	"int":           ClassInt,
	"float":         ClassFloat,
	"bool":          ClassBool,
	"str":           ClassStr,
	"bytes":         ClassBytes,
	"list":          ClassList,
	"dict":          ClassDict,
	"tuple":         ClassTuple,
	"set":           ClassSet,
	"BaseException": ClassBaseException,
	"Exception":     ClassException,
}

// builtinFunctions types the handful of builtins the checker and the
// call-based lint rules care about.
var builtinFunctions = map[string]Type{}

func init() {
	ClassStr.Methods = map[string]Type{
		"encode":     NewCallable([]Type{TStr}, TBytes),
		"upper":      NewCallable(nil, TStr),
		"lower":      NewCallable(nil, TStr),
		"strip":      NewCallable(nil, TStr),
		"startswith": NewCallable([]Type{TStr}, TBool),
		"join":       NewCallable([]Type{TUnknown}, TStr),
	}
	ClassBytes.Methods = map[string]Type{
		"decode": NewCallable([]Type{TStr}, TStr),
	}
	ClassInt.Methods = map[string]Type{
		"bit_length": NewCallable(nil, TInt),
	}
	ClassList.Methods = map[string]Type{
		"append": NewCallable([]Type{TUnknown}, TNone),
		"pop":    NewCallable(nil, TUnknown),
	}
	ClassDict.Methods = map[string]Type{
		"get":    NewCallable([]Type{TUnknown, TUnknown}, TUnknown),
		"keys":   NewCallable(nil, TUnknown),
		"values": NewCallable(nil, TUnknown),
	}
	ClassSet.Methods = map[string]Type{
		"add": NewCallable([]Type{TUnknown}, TNone),
	}

	builtinFunctions["len"] = NewCallable([]Type{TUnknown}, TInt)
	builtinFunctions["repr"] = NewCallable([]Type{TUnknown}, TStr)
	builtinFunctions["print"] = NewCallable([]Type{TUnknown}, TNone)
	builtinFunctions["isinstance"] = NewCallable([]Type{TUnknown, TUnknown}, TBool)
}

// LookupBuiltin resolves a bare name against the builtin surface:
// classes first, then functions, then the singleton constants.
func LookupBuiltin(name string) (Type, bool) {
	if c, ok := builtinClasses[name]; ok {
		return NewClassLiteral(c), true
	}
	if t, ok := builtinFunctions[name]; ok {
		return t, true
	}
	switch name {
	case "None":
		return TNone, true
	case "Ellipsis":
		return TEllipsis, true
	}
	return nil, false
}

// BuiltinClass resolves a bare name to a builtin class object.
func BuiltinClass(name string) (*Class, bool) {
	c, ok := builtinClasses[name]
	return c, ok
}
