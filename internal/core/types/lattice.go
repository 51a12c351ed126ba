package types

// Lattice operations: union construction, intersection-based removal,
// subtyping, and the gradual assignability relation.

// MakeUnion builds the union of ts: flattened, deduplicated (interning
// makes structural equality pointer equality), Never dropped. An
// empty result is Never; a single member collapses to itself.
func MakeUnion(ts ...Type) Type {
	var members []Type
	seen := make(map[Type]bool)
	var add func(t Type)
	add = func(t Type) {
		if t == nil || t == Type(TNever) {
			return
		}
		if u, ok := t.(*Union); ok {
			for _, m := range u.Members {
				add(m)
			}
			return
		}
		if !seen[t] {
			seen[t] = true
			members = append(members, t)
		}
	}
	for _, t := range ts {
		add(t)
	}
	switch len(members) {
	case 0:
		return TNever
	case 1:
		return members[0]
	}
	return intern(&Union{Members: members})
}

// Remove narrows t by excluding values of excluded: `x is not None`
// removes None. Union members that are subtypes of excluded drop out;
// other types keep an explicit negative intersection.
func Remove(t, excluded Type) Type {
	switch x := t.(type) {
	case *Union:
		var kept []Type
		for _, m := range x.Members {
			if IsSubtype(m, excluded) {
				continue
			}
			kept = append(kept, m)
		}
		return MakeUnion(kept...)
	case *UnknownType, *AnyType:
		return t
	default:
		if IsSubtype(t, excluded) {
			return TNever
		}
		if t == Type(TNever) {
			return t
		}
		if alreadyExcludes(t, excluded) {
			return t
		}
		if i, ok := t.(*Intersection); ok {
			return intern(&Intersection{Pos: i.Pos, Neg: append(append([]Type{}, i.Neg...), excluded)})
		}
		return intern(&Intersection{Pos: []Type{t}, Neg: []Type{excluded}})
	}
}

func alreadyExcludes(t, excluded Type) bool {
	i, ok := t.(*Intersection)
	if !ok {
		return false
	}
	for _, n := range i.Neg {
		if n == excluded {
			return true
		}
	}
	return false
}

// Narrow intersects t with target: `isinstance(x, T)` keeps only the
// parts of t compatible with T.
func Narrow(t, target Type) Type {
	switch x := t.(type) {
	case *Union:
		var kept []Type
		for _, m := range x.Members {
			if IsAssignable(m, target) || IsAssignable(target, m) {
				kept = append(kept, Narrow(m, target))
			}
		}
		if len(kept) == 0 {
			return target
		}
		return MakeUnion(kept...)
	case *UnknownType, *AnyType:
		return target
	default:
		if IsSubtype(t, target) {
			return t
		}
		if IsSubtype(target, t) {
			return target
		}
		return intern(&Intersection{Pos: []Type{t, target}})
	}
}

// classOf returns the nominal class backing t, if any; literals map to
// their builtin class.
func classOf(t Type) (*Class, bool) {
	switch x := t.(type) {
	case *NominalInstance:
		return x.Class, true
	case *IntLiteral:
		return ClassInt, true
	case *StrLiteral:
		return ClassStr, true
	case *BytesLiteral:
		return ClassBytes, true
	case *BoolLiteral:
		return ClassBool, true
	}
	return nil, false
}

// IsSubtype reports the subtype relation: structural over tuples and
// callables, nominal (base-class walk) otherwise. Unknown/Any are not
// subtypes of anything except themselves; gradual permissiveness
// belongs to IsAssignable.
func IsSubtype(a, b Type) bool {
	if a == b {
		return true
	}
	if a == Type(TNever) {
		return true
	}
	if inst, ok := b.(*NominalInstance); ok && inst.Class == ClassObject {
		// Everything but the gradual types is an object.
		switch a.(type) {
		case *UnknownType, *AnyType:
			return false
		}
		return true
	}

	switch x := a.(type) {
	case *Union:
		for _, m := range x.Members {
			if !IsSubtype(m, b) {
				return false
			}
		}
		return true
	case *Intersection:
		for _, p := range x.Pos {
			if IsSubtype(p, b) {
				return true
			}
		}
		return false
	}

	if u, ok := b.(*Union); ok {
		for _, m := range u.Members {
			if IsSubtype(a, m) {
				return true
			}
		}
		return false
	}

	switch y := b.(type) {
	case *NominalInstance:
		ac, ok := classOf(a)
		if !ok {
			return false
		}
		return ac.HasBase(y.Class)
	case *Tuple:
		x, ok := a.(*Tuple)
		if !ok || len(x.Elems) != len(y.Elems) {
			return false
		}
		for i := range x.Elems {
			if !IsSubtype(x.Elems[i], y.Elems[i]) {
				return false
			}
		}
		return true
	case *Callable:
		x, ok := a.(*Callable)
		if !ok || len(x.Params) != len(y.Params) {
			return false
		}
		// Parameters are contravariant, the result covariant.
		for i := range x.Params {
			if !IsSubtype(y.Params[i], x.Params[i]) {
				return false
			}
		}
		return IsSubtype(x.Result, y.Result)
	case *IntLiteral, *StrLiteral, *BytesLiteral, *BoolLiteral, *NoneInstance:
		return false
	}
	return false
}

// IsAssignable is the gradual-typing relation: Unknown and Any are
// assignable to anything and accept anything; otherwise subtyping
// decides.
func IsAssignable(a, b Type) bool {
	switch a.(type) {
	case *UnknownType, *AnyType:
		return true
	}
	switch b.(type) {
	case *UnknownType, *AnyType:
		return true
	}
	if u, ok := a.(*Union); ok {
		for _, m := range u.Members {
			if !IsAssignable(m, b) {
				return false
			}
		}
		return true
	}
	if i, ok := a.(*Intersection); ok {
		for _, p := range i.Pos {
			if IsAssignable(p, b) {
				return true
			}
		}
		return false
	}
	return IsSubtype(a, b)
}

// Truthy classifies a type's boolean value where statically known:
// literals and None decide; everything else is unknown (nil, false).
func Truthy(t Type) (value bool, known bool) {
	switch x := t.(type) {
	case *NoneInstance:
		return false, true
	case *BoolLiteral:
		return x.Value, true
	case *IntLiteral:
		return x.Value != 0, true
	case *StrLiteral:
		return x.Value != "", true
	case *BytesLiteral:
		return x.Value != "", true
	}
	return false, false
}
