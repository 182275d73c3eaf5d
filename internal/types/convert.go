package types

import (
	"strings"

	"tern/internal/ast"
	"tern/internal/diag"
	"tern/internal/token"
)

// Resolver maps non-builtin type names onto types. The checker implements it
// on top of the symbol table so that generics and declared types resolve.
type Resolver interface {
	ResolveType(path []string, args []Type, pos token.Position) (Type, error)
}

// Convert maps a type annotation onto this registry. A nil annotation is
// unit. With a nil resolver, unknown names become Named types.
func (r *Registry) Convert(tn ast.TypeNode, res Resolver) (Type, error) {
	switch t := tn.(type) {
	case nil:
		return Unit, nil

	case *ast.NamedType:
		if len(t.Path) == 0 {
			return Invalid, diag.Errorf(diag.InvalidType, t.NamePos, "empty type name")
		}
		args := make([]Type, len(t.Args))
		for i, a := range t.Args {
			at, err := r.Convert(a, res)
			if err != nil {
				return Invalid, err
			}
			args[i] = at
		}
		if len(t.Path) == 1 {
			if b, ok := LookupBuiltin(t.Path[0]); ok {
				if len(args) > 0 {
					return Invalid, diag.Errorf(diag.InvalidTypeParameter, t.NamePos,
						"builtin type %s takes no type arguments", b.Name)
				}
				return b, nil
			}
		}
		if res == nil {
			return r.NewNamed(strings.Join(t.Path, "."), args), nil
		}
		return res.ResolveType(t.Path, args, t.NamePos)

	case *ast.ArrayType:
		elem, err := r.Convert(t.Elem, res)
		if err != nil {
			return Invalid, err
		}
		if !t.Sized {
			return r.NewArray(elem, Unsized), nil
		}
		if t.Len < 0 {
			return Invalid, diag.Errorf(diag.InvalidType, t.LBracket, "negative array length %d", t.Len)
		}
		return r.NewArray(elem, t.Len), nil

	case *ast.TupleType:
		elems := make([]Type, len(t.Elems))
		for i, e := range t.Elems {
			et, err := r.Convert(e, res)
			if err != nil {
				return Invalid, err
			}
			elems[i] = et
		}
		return r.NewTuple(elems), nil

	case *ast.FuncType:
		params := make([]Type, len(t.Params))
		for i, p := range t.Params {
			pt, err := r.Convert(p, res)
			if err != nil {
				return Invalid, err
			}
			params[i] = pt
		}
		result, err := r.Convert(t.Result, res)
		if err != nil {
			return Invalid, err
		}
		return r.NewFunc(params, result), nil

	case *ast.RefType:
		inner, err := r.Convert(t.Inner, res)
		if err != nil {
			return Invalid, err
		}
		return r.NewReference(inner, t.Mutable, t.Lifetime), nil

	default:
		return Invalid, diag.Errorf(diag.Internal, tn.Pos(), "unknown type annotation %T", tn)
	}
}
