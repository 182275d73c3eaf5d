package types

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Registry interns types and records the resolutions of type variables.
// A Registry is not safe for concurrent use.
type Registry struct {
	types    []Type
	interned map[[blake2b.Size256]byte]Type
	bindings map[ID]Type
}

func NewRegistry() *Registry {
	r := &Registry{
		interned: make(map[[blake2b.Size256]byte]Type),
		bindings: make(map[ID]Type),
	}
	for _, b := range basics {
		r.types = append(r.types, b)
	}
	return r
}

// Len returns the number of registered types, basics included.
func (r *Registry) Len() int { return len(r.types) }

// Lookup returns the type registered under id.
func (r *Registry) Lookup(id ID) (Type, bool) {
	if int(id) >= len(r.types) {
		return nil, false
	}
	return r.types[id], true
}

// Contains reports whether t is the type this registry holds under t.ID().
func (r *Registry) Contains(t Type) bool {
	got, ok := r.Lookup(t.ID())
	return ok && got == t
}

// Register interns t. Structurally identical compound types collapse onto
// the first registered instance, which is returned.
func (r *Registry) Register(t Type) Type {
	switch t := t.(type) {
	case *Basic:
		return basics[t.Kind]
	case *Var:
		if r.Contains(t) {
			return t
		}
		t.id = ID(len(r.types))
		r.types = append(r.types, t)
		return t
	case *Array:
		return r.intern(&Array{Elem: r.Register(t.Elem), Len: t.Len})
	case *Tuple:
		if len(t.Elems) == 0 {
			return Unit
		}
		return r.intern(&Tuple{Elems: r.registerAll(t.Elems)})
	case *Func:
		return r.intern(&Func{Params: r.registerAll(t.Params), Result: r.Register(t.Result)})
	case *Reference:
		return r.intern(&Reference{Inner: r.Register(t.Inner), Mutable: t.Mutable, Lifetime: t.Lifetime})
	case *Named:
		return r.intern(&Named{Name: t.Name, Args: r.registerAll(t.Args)})
	default:
		panic(fmt.Sprintf("types: unknown type %T", t))
	}
}

func (r *Registry) registerAll(ts []Type) []Type {
	out := make([]Type, len(ts))
	for i, t := range ts {
		out[i] = r.Register(t)
	}
	return out
}

func (r *Registry) intern(t Type) Type {
	k := key(t)
	if existing, ok := r.interned[k]; ok {
		return existing
	}
	id := ID(len(r.types))
	switch t := t.(type) {
	case *Array:
		t.id = id
	case *Tuple:
		t.id = id
	case *Func:
		t.id = id
	case *Reference:
		t.id = id
	case *Named:
		t.id = id
	}
	r.types = append(r.types, t)
	r.interned[k] = t
	return t
}

// key digests the structural encoding of t. Children are already interned,
// so their IDs stand in for their structure.
func key(t Type) [blake2b.Size256]byte {
	var buf []byte
	putID := func(id ID) { buf = binary.BigEndian.AppendUint32(buf, uint32(id)) }
	putStr := func(s string) {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
		buf = append(buf, s...)
	}
	putList := func(ts []Type) {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(ts)))
		for _, e := range ts {
			putID(e.ID())
		}
	}

	switch t := t.(type) {
	case *Array:
		buf = append(buf, 'A')
		putID(t.Elem.ID())
		buf = binary.BigEndian.AppendUint64(buf, uint64(int64(t.Len)))
	case *Tuple:
		buf = append(buf, 'T')
		putList(t.Elems)
	case *Func:
		buf = append(buf, 'F')
		putList(t.Params)
		putID(t.Result.ID())
	case *Reference:
		buf = append(buf, 'R')
		putID(t.Inner.ID())
		if t.Mutable {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		putStr(t.Lifetime)
	case *Named:
		buf = append(buf, 'N')
		putStr(t.Name)
		putList(t.Args)
	}
	return blake2b.Sum256(buf)
}

// ----- Constructors -----

func (r *Registry) NewArray(elem Type, n int) *Array {
	return r.Register(&Array{Elem: elem, Len: n}).(*Array)
}

// NewTuple returns Unit for an empty element list.
func (r *Registry) NewTuple(elems []Type) Type {
	return r.Register(&Tuple{Elems: elems})
}

func (r *Registry) NewFunc(params []Type, result Type) *Func {
	if result == nil {
		result = Unit
	}
	return r.Register(&Func{Params: params, Result: result}).(*Func)
}

func (r *Registry) NewReference(inner Type, mutable bool, lifetime string) *Reference {
	return r.Register(&Reference{Inner: inner, Mutable: mutable, Lifetime: lifetime}).(*Reference)
}

func (r *Registry) NewNamed(name string, args []Type) *Named {
	return r.Register(&Named{Name: name, Args: args}).(*Named)
}

// NewVar allocates a fresh unresolved type variable.
func (r *Registry) NewVar(hint string) *Var {
	return r.Register(&Var{Hint: hint}).(*Var)
}

// NewRigidVar allocates a generic parameter.
func (r *Registry) NewRigidVar(name string) *Var {
	return r.Register(&Var{Hint: name, Rigid: true}).(*Var)
}

// Range returns the parametrized type produced by range expressions.
func (r *Registry) Range(elem Type) *Named {
	return r.NewNamed("Range", []Type{elem})
}
