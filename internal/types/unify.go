package types

import (
	"tern/internal/diag"
	"tern/internal/token"
)

// ----- Variable resolution -----

// shallow follows variable bindings until it reaches an unbound variable or
// a non-variable type.
func (r *Registry) shallow(t Type) Type {
	for {
		v, ok := t.(*Var)
		if !ok {
			return t
		}
		bound, ok := r.bindings[v.id]
		if !ok {
			return t
		}
		t = bound
	}
}

// Binding returns the type v was resolved to, if any.
func (r *Registry) Binding(v *Var) (Type, bool) {
	t, ok := r.bindings[v.id]
	return t, ok
}

// Resolve substitutes every bound variable in t.
func (r *Registry) Resolve(t Type) Type {
	t = r.shallow(t)
	switch t := t.(type) {
	case *Array:
		return r.NewArray(r.Resolve(t.Elem), t.Len)
	case *Tuple:
		return r.NewTuple(r.resolveAll(t.Elems))
	case *Func:
		return r.NewFunc(r.resolveAll(t.Params), r.Resolve(t.Result))
	case *Reference:
		return r.NewReference(r.Resolve(t.Inner), t.Mutable, t.Lifetime)
	case *Named:
		if len(t.Args) == 0 {
			return t
		}
		return r.NewNamed(t.Name, r.resolveAll(t.Args))
	default:
		return t
	}
}

func (r *Registry) resolveAll(ts []Type) []Type {
	out := make([]Type, len(ts))
	for i, t := range ts {
		out[i] = r.Resolve(t)
	}
	return out
}

// HasFreeVars reports whether t still mentions an unbound flexible variable.
func (r *Registry) HasFreeVars(t Type) bool {
	t = r.shallow(t)
	switch t := t.(type) {
	case *Var:
		return !t.Rigid
	case *Array:
		return r.HasFreeVars(t.Elem)
	case *Tuple:
		return r.anyFree(t.Elems)
	case *Func:
		return r.anyFree(t.Params) || r.HasFreeVars(t.Result)
	case *Reference:
		return r.HasFreeVars(t.Inner)
	case *Named:
		return r.anyFree(t.Args)
	default:
		return false
	}
}

func (r *Registry) anyFree(ts []Type) bool {
	for _, t := range ts {
		if r.HasFreeVars(t) {
			return true
		}
	}
	return false
}

// occurs reports whether v appears anywhere inside t.
func (r *Registry) occurs(v *Var, t Type) bool {
	t = r.shallow(t)
	switch t := t.(type) {
	case *Var:
		return t == v
	case *Array:
		return r.occurs(v, t.Elem)
	case *Tuple:
		return r.occursAny(v, t.Elems)
	case *Func:
		return r.occursAny(v, t.Params) || r.occurs(v, t.Result)
	case *Reference:
		return r.occurs(v, t.Inner)
	case *Named:
		return r.occursAny(v, t.Args)
	default:
		return false
	}
}

func (r *Registry) occursAny(v *Var, ts []Type) bool {
	for _, t := range ts {
		if r.occurs(v, t) {
			return true
		}
	}
	return false
}

// Instantiate copies t replacing each of params with a fresh flexible variable.
// It is used once per call site of a generic function.
func (r *Registry) Instantiate(t Type, params []*Var) Type {
	if len(params) == 0 {
		return t
	}
	subst := make(map[*Var]Type, len(params))
	for _, p := range params {
		subst[p] = r.NewVar(p.Hint)
	}
	return r.substitute(t, subst)
}

// InstantiateAll is Instantiate over several types sharing one set of fresh
// variables, as needed for a generic structure and its field types.
func (r *Registry) InstantiateAll(ts []Type, params []*Var) []Type {
	if len(params) == 0 {
		return ts
	}
	subst := make(map[*Var]Type, len(params))
	for _, p := range params {
		subst[p] = r.NewVar(p.Hint)
	}
	return r.substituteAll(ts, subst)
}

func (r *Registry) substitute(t Type, subst map[*Var]Type) Type {
	t = r.shallow(t)
	switch t := t.(type) {
	case *Var:
		if s, ok := subst[t]; ok {
			return s
		}
		return t
	case *Array:
		return r.NewArray(r.substitute(t.Elem, subst), t.Len)
	case *Tuple:
		return r.NewTuple(r.substituteAll(t.Elems, subst))
	case *Func:
		return r.NewFunc(r.substituteAll(t.Params, subst), r.substitute(t.Result, subst))
	case *Reference:
		return r.NewReference(r.substitute(t.Inner, subst), t.Mutable, t.Lifetime)
	case *Named:
		if len(t.Args) == 0 {
			return t
		}
		return r.NewNamed(t.Name, r.substituteAll(t.Args, subst))
	default:
		return t
	}
}

func (r *Registry) substituteAll(ts []Type, subst map[*Var]Type) []Type {
	out := make([]Type, len(ts))
	for i, t := range ts {
		out[i] = r.substitute(t, subst)
	}
	return out
}

// ----- Unification -----

// Unify finds the type a and b have in common, binding variables as needed.
// Errors carry no position; callers attach the position of the node being
// checked. The poison type unifies with anything.
func (r *Registry) Unify(a, b Type) (Type, error) {
	a, b = r.shallow(a), r.shallow(b)
	if a == b {
		return a, nil
	}
	if IsInvalid(a) || IsInvalid(b) {
		return Invalid, nil
	}

	av, aIsVar := a.(*Var)
	bv, bIsVar := b.(*Var)
	switch {
	case aIsVar && !av.Rigid:
		return r.bind(av, b)
	case bIsVar && !bv.Rigid:
		return r.bind(bv, a)
	case aIsVar || bIsVar:
		return nil, r.mismatch(a, b)
	}

	switch x := a.(type) {
	case *Array:
		y, ok := b.(*Array)
		if !ok || x.Len != y.Len {
			return nil, r.mismatch(a, b)
		}
		elem, err := r.Unify(x.Elem, y.Elem)
		if err != nil {
			return nil, err
		}
		return r.NewArray(elem, x.Len), nil

	case *Tuple:
		y, ok := b.(*Tuple)
		if !ok || len(x.Elems) != len(y.Elems) {
			return nil, r.mismatch(a, b)
		}
		elems, err := r.unifyAll(x.Elems, y.Elems)
		if err != nil {
			return nil, err
		}
		return r.NewTuple(elems), nil

	case *Func:
		y, ok := b.(*Func)
		if !ok || len(x.Params) != len(y.Params) {
			return nil, r.mismatch(a, b)
		}
		params, err := r.unifyAll(x.Params, y.Params)
		if err != nil {
			return nil, err
		}
		result, err := r.Unify(x.Result, y.Result)
		if err != nil {
			return nil, err
		}
		return r.NewFunc(params, result), nil

	case *Reference:
		y, ok := b.(*Reference)
		if !ok || x.Mutable != y.Mutable {
			return nil, r.mismatch(a, b)
		}
		inner, err := r.Unify(x.Inner, y.Inner)
		if err != nil {
			return nil, err
		}
		lifetime := x.Lifetime
		if lifetime == "" {
			lifetime = y.Lifetime
		}
		return r.NewReference(inner, x.Mutable, lifetime), nil

	case *Named:
		y, ok := b.(*Named)
		if !ok || x.Name != y.Name || len(x.Args) != len(y.Args) {
			return nil, r.mismatch(a, b)
		}
		args, err := r.unifyAll(x.Args, y.Args)
		if err != nil {
			return nil, err
		}
		return r.NewNamed(x.Name, args), nil

	default:
		return nil, r.mismatch(a, b)
	}
}

func (r *Registry) unifyAll(as, bs []Type) ([]Type, error) {
	out := make([]Type, len(as))
	for i := range as {
		t, err := r.Unify(as[i], bs[i])
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

func (r *Registry) bind(v *Var, t Type) (Type, error) {
	if r.occurs(v, t) {
		return nil, diag.Errorf(diag.RecursiveType, token.Position{},
			"recursive type: %s occurs in %s", v, r.Resolve(t))
	}
	r.bindings[v.id] = t
	return t, nil
}

func (r *Registry) mismatch(a, b Type) error {
	return diag.Errorf(diag.TypeMismatch, token.Position{},
		"cannot unify %s with %s", r.Resolve(a), r.Resolve(b))
}

// ----- Compatibility -----

// Assignable reports whether a value of type src can be used where dst is
// expected. Unlike Unify it never binds variables.
func (r *Registry) Assignable(dst, src Type) bool {
	dst, src = r.Resolve(dst), r.Resolve(src)
	if dst == src || IsInvalid(dst) || IsInvalid(src) || src == Never {
		return true
	}
	switch d := dst.(type) {
	case *Basic:
		return d == Float && src == Int
	case *Reference:
		s, ok := src.(*Reference)
		if !ok || (d.Mutable && !s.Mutable) {
			return false
		}
		return r.Identical(d.Inner, s.Inner)
	case *Array:
		s, ok := src.(*Array)
		if !ok || (d.Len != Unsized && d.Len != s.Len) {
			return false
		}
		return r.Identical(d.Elem, s.Elem)
	case *Tuple:
		s, ok := src.(*Tuple)
		if !ok || len(d.Elems) != len(s.Elems) {
			return false
		}
		for i := range d.Elems {
			if !r.Assignable(d.Elems[i], s.Elems[i]) {
				return false
			}
		}
		return true
	default:
		return r.Identical(dst, src)
	}
}

// UnifyAssignable is Assignable for types that may still mention free
// variables: the widening rules apply at the outer level and the parts are
// unified, binding variables as needed.
func (r *Registry) UnifyAssignable(dst, src Type) error {
	dst, src = r.Resolve(dst), r.Resolve(src)
	if r.Assignable(dst, src) {
		return nil
	}
	switch d := dst.(type) {
	case *Reference:
		if s, ok := src.(*Reference); ok && (!d.Mutable || s.Mutable) {
			if _, err := r.Unify(d.Inner, s.Inner); err != nil {
				return err
			}
			return nil
		}
	case *Array:
		if s, ok := src.(*Array); ok && (d.Len == Unsized || d.Len == s.Len) {
			if _, err := r.Unify(d.Elem, s.Elem); err != nil {
				return err
			}
			return nil
		}
	case *Tuple:
		if s, ok := src.(*Tuple); ok && len(d.Elems) == len(s.Elems) {
			for i := range d.Elems {
				if err := r.UnifyAssignable(d.Elems[i], s.Elems[i]); err != nil {
					return err
				}
			}
			return nil
		}
	}
	_, err := r.Unify(dst, src)
	return err
}

// Identical reports structural equality after resolution, treating the
// poison type as equal to anything.
func (r *Registry) Identical(a, b Type) bool {
	a, b = r.shallow(a), r.shallow(b)
	if a == b || IsInvalid(a) || IsInvalid(b) {
		return true
	}
	switch x := a.(type) {
	case *Array:
		y, ok := b.(*Array)
		return ok && x.Len == y.Len && r.Identical(x.Elem, y.Elem)
	case *Tuple:
		y, ok := b.(*Tuple)
		return ok && r.identicalAll(x.Elems, y.Elems)
	case *Func:
		y, ok := b.(*Func)
		return ok && r.identicalAll(x.Params, y.Params) && r.Identical(x.Result, y.Result)
	case *Reference:
		y, ok := b.(*Reference)
		return ok && x.Mutable == y.Mutable && r.Identical(x.Inner, y.Inner)
	case *Named:
		y, ok := b.(*Named)
		return ok && x.Name == y.Name && r.identicalAll(x.Args, y.Args)
	default:
		return false
	}
}

func (r *Registry) identicalAll(as, bs []Type) bool {
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if !r.Identical(as[i], bs[i]) {
			return false
		}
	}
	return true
}

// IsCopy reports whether values of t are duplicated rather than moved.
// Unresolved variables count as copy so that inference gaps do not turn into
// spurious move errors.
func (r *Registry) IsCopy(t Type) bool {
	t = r.shallow(t)
	switch t := t.(type) {
	case *Basic, *Func:
		return true
	case *Reference:
		return !t.Mutable
	case *Array:
		return r.IsCopy(t.Elem)
	case *Tuple:
		for _, e := range t.Elems {
			if !r.IsCopy(e) {
				return false
			}
		}
		return true
	case *Var:
		return !t.Rigid
	default:
		return false
	}
}
