package checker

import (
	"go.uber.org/multierr"

	"tern/internal/ast"
	"tern/internal/diag"
	"tern/internal/symbols"
	"tern/internal/token"
	"tern/internal/types"
)

// checkPattern matches p against a value of type t, declaring the names it
// binds in the current scope.
func (c *Checker) checkPattern(p ast.Pattern, t types.Type) error {
	switch p := p.(type) {
	case *ast.WildcardPattern:
		return nil

	case *ast.LiteralPattern:
		lt, err := c.CheckExpr(p.Value)
		if err != nil {
			return err
		}
		return c.expect(t, lt, p.Pos(), "pattern")

	case *ast.BindingPattern:
		_, err := c.declareLocal(p.Name, symbols.Variable, p.NamePos, c.reg.Resolve(t), p.Mutable, true, p)
		return err

	case *ast.TuplePattern:
		elems, err := c.tupleShape(t, len(p.Elems))
		if err != nil {
			return diag.WithPos(err, p.LParen)
		}
		var errs error
		for i, el := range p.Elems {
			errs = multierr.Append(errs, c.checkPattern(el, elems[i]))
		}
		return errs

	case *ast.VariantPattern:
		return c.checkVariantPattern(p, t)

	default:
		return diag.Errorf(diag.Internal, p.Pos(), "unhandled pattern %T", p)
	}
}

// tupleShape returns the element types of t viewed as an n-tuple.
func (c *Checker) tupleShape(t types.Type, n int) ([]types.Type, error) {
	t = c.reg.Resolve(t)
	elems := make([]types.Type, n)
	switch tt := t.(type) {
	case *types.Tuple:
		if len(tt.Elems) == n {
			return tt.Elems, nil
		}
	case *types.Var:
		if tt.Rigid {
			break
		}
		for i := range elems {
			elems[i] = c.reg.NewVar("")
		}
		if _, err := c.reg.Unify(tt, c.reg.NewTuple(elems)); err != nil {
			return nil, err
		}
		return elems, nil
	case *types.Basic:
		if types.IsInvalid(tt) {
			for i := range elems {
				elems[i] = types.Invalid
			}
			return elems, nil
		}
	}
	return nil, diag.Errorf(diag.TypeMismatch, token.Position{}, "mismatched types in pattern: expected %s, found a %d-tuple", t, n)
}

func (c *Checker) checkVariantPattern(p *ast.VariantPattern, t types.Type) error {
	errs := func(sub []ast.Pattern, err error) error {
		for _, el := range sub {
			err = multierr.Append(err, c.checkPattern(el, types.Invalid))
		}
		return err
	}

	id, err := c.table.ResolveQualifiedName(p.Path, p.PathPos)
	if err != nil {
		return errs(p.Elems, err)
	}
	sym := c.table.Symbol(id)
	sym.Used = true
	if sym.AliasOf != symbols.NoSymbol {
		sym = c.table.Symbol(sym.AliasOf)
	}
	if sym.Kind != symbols.Variant {
		return errs(p.Elems, diag.Errorf(diag.InvalidType, p.PathPos, "%s %q is not a variant", sym.Kind, sym.Name))
	}

	enum, payload := sym.Type, types.Type(nil)
	if fn, ok := sym.Type.(*types.Func); ok {
		enum = fn.Result
		if len(fn.Params) == 1 {
			payload = fn.Params[0]
		}
	}
	if enum == nil {
		return errs(p.Elems, diag.Errorf(diag.UndefinedType, p.PathPos, "type of variant %q is not known", sym.Name))
	}
	if err := c.expect(t, enum, p.PathPos, "pattern"); err != nil {
		return errs(p.Elems, err)
	}

	switch {
	case payload == nil && len(p.Elems) == 0:
		return nil
	case payload == nil:
		return errs(p.Elems, diag.Errorf(diag.InvalidType, p.PathPos, "variant %q has no payload", sym.Name))
	case len(p.Elems) == 0:
		return diag.Errorf(diag.InvalidType, p.PathPos, "variant %q carries a %s payload", sym.Name, payload)
	case len(p.Elems) == 1:
		return c.checkPattern(p.Elems[0], payload)
	}

	// Several sub-patterns destructure a tuple payload.
	elems, err := c.tupleShape(payload, len(p.Elems))
	if err != nil {
		return errs(p.Elems, diag.Errorf(diag.InvalidType, p.PathPos,
			"variant %q carries a %s payload, not %d fields", sym.Name, payload, len(p.Elems)))
	}
	var all error
	for i, el := range p.Elems {
		all = multierr.Append(all, c.checkPattern(el, elems[i]))
	}
	return all
}
