package checker

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"tern/internal/ast"
	"tern/internal/borrow"
	"tern/internal/diag"
	"tern/internal/symbols"
	"tern/internal/token"
	"tern/internal/types"
)

// consume checks e in a position that takes ownership of its value: a bare
// variable of a non-copy type is moved rather than read.
func (c *Checker) consume(e ast.Expr) (types.Type, error) {
	if id, ok := e.(*ast.Ident); ok {
		return c.checkIdent(id, true)
	}
	return c.CheckExpr(e)
}

// CheckExpr infers the type of e. On error the returned type is Invalid,
// which is compatible with everything so that one mistake is reported once.
func (c *Checker) CheckExpr(e ast.Expr) (types.Type, error) {
	bindRef := c.bindRef
	c.bindRef = false

	switch e := e.(type) {
	case *ast.IntLit:
		return types.Int, nil
	case *ast.FloatLit:
		return types.Float, nil
	case *ast.BoolLit:
		return types.Bool, nil
	case *ast.CharLit:
		return types.Char, nil
	case *ast.StringLit:
		return types.String, nil
	case *ast.UnitLit:
		return types.Unit, nil

	case *ast.Ident:
		return c.checkIdent(e, false)

	case *ast.PathExpr:
		id, err := c.table.ResolveQualifiedName(e.Segments, e.PathPos)
		if err != nil {
			return types.Invalid, err
		}
		return c.valueOf(c.table.Symbol(id), e.PathPos, false)

	case *ast.BinaryExpr:
		return c.checkBinary(e)

	case *ast.UnaryExpr:
		return c.checkUnary(e, bindRef)

	case *ast.CallExpr:
		return c.checkCall(e)

	case *ast.MethodCallExpr:
		return c.checkMethodCall(e)

	case *ast.MemberExpr:
		return c.checkMember(e)

	case *ast.IndexExpr:
		return c.checkIndex(e)

	case *ast.ArrayLit:
		return c.checkArrayLit(e)

	case *ast.TupleLit:
		var errs error
		elems := make([]types.Type, len(e.Elems))
		for i, el := range e.Elems {
			t, err := c.consume(el)
			errs = multierr.Append(errs, err)
			elems[i] = t
		}
		if errs != nil {
			return types.Invalid, errs
		}
		return c.reg.NewTuple(elems), nil

	case *ast.StructLit:
		return c.checkStructLit(e)

	case *ast.CastExpr:
		return c.checkCast(e)

	default:
		return types.Invalid, diag.Errorf(diag.Internal, e.Pos(), "unhandled expression %T", e)
	}
}

// ----- Names -----

func (c *Checker) checkIdent(e *ast.Ident, consume bool) (types.Type, error) {
	id, err := c.table.LookupAt(e.Name, e.NamePos)
	if err != nil {
		return types.Invalid, err
	}
	return c.valueOf(c.table.Symbol(id), e.NamePos, consume)
}

// valueOf is the type of a symbol used as a value, recording the access.
func (c *Checker) valueOf(sym *symbols.Symbol, pos token.Position, consume bool) (types.Type, error) {
	sym.Used = true
	if sym.AliasOf != symbols.NoSymbol {
		if target := c.table.Symbol(sym.AliasOf); target != nil {
			sym = target
		}
	}
	if !sym.Kind.IsValue() {
		return types.Invalid, diag.Errorf(diag.InvalidType, pos, "%s %q cannot be used as a value", sym.Kind, sym.Name)
	}
	if sym.Type == nil {
		return types.Invalid, diag.Errorf(diag.UndefinedType, pos, "type of %q is not known at this point", sym.Name)
	}

	kind := borrow.Read
	if consume && !c.reg.IsCopy(sym.Type) {
		kind = borrow.Move
	}
	if err := c.event(sym, kind, c.temp, pos); err != nil {
		return types.Invalid, err
	}
	return c.reg.Instantiate(sym.Type, sym.Generics), nil
}

// place resolves the root symbol of an assignable or borrowable expression
// and the type of the place, without recording any access on the root.
func (c *Checker) place(e ast.Expr, write bool) (*symbols.Symbol, types.Type, error) {
	switch e := e.(type) {
	case *ast.Ident:
		id, err := c.table.LookupAt(e.Name, e.NamePos)
		if err != nil {
			return nil, types.Invalid, err
		}
		sym := c.table.Symbol(id)
		sym.Used = true
		if sym.AliasOf != symbols.NoSymbol {
			sym = c.table.Symbol(sym.AliasOf)
		}
		switch {
		case write && sym.Kind != symbols.Variable && sym.Kind != symbols.Parameter:
			return nil, types.Invalid, diag.Errorf(diag.InvalidType, e.NamePos,
				"cannot assign to %s %q", sym.Kind, sym.Name)
		case !sym.Kind.IsValue():
			return nil, types.Invalid, diag.Errorf(diag.InvalidType, e.NamePos,
				"%s %q cannot be used as a value", sym.Kind, sym.Name)
		}
		if sym.Type == nil {
			return nil, types.Invalid, diag.Errorf(diag.UndefinedType, e.NamePos,
				"type of %q is not known at this point", sym.Name)
		}
		return sym, sym.Type, nil

	case *ast.IndexExpr:
		root, t, err := c.place(e.X, write)
		if err != nil {
			return nil, types.Invalid, err
		}
		elem, err := c.indexed(t, e.Index, e.LBracket)
		return root, elem, err

	case *ast.MemberExpr:
		root, t, err := c.place(e.X, write)
		if err != nil {
			return nil, types.Invalid, err
		}
		ft, err := c.member(t, e.Name, e.NamePos)
		return root, ft, err

	default:
		return nil, types.Invalid, diag.Errorf(diag.InvalidType, e.Pos(), "expression is not assignable")
	}
}

// ----- Operators -----

func (c *Checker) checkBinary(e *ast.BinaryExpr) (types.Type, error) {
	if e.Op == token.Assign {
		return c.checkAssign(e)
	}

	lt, lerr := c.CheckExpr(e.Left)
	rt, rerr := c.CheckExpr(e.Right)
	if err := multierr.Append(lerr, rerr); err != nil {
		return types.Invalid, err
	}
	lt, rt = c.reg.Resolve(lt), c.reg.Resolve(rt)
	if types.IsInvalid(lt) || types.IsInvalid(rt) {
		return types.Invalid, nil
	}

	switch {
	case e.Op.IsArithmetic():
		if types.IsNumeric(lt) && types.IsNumeric(rt) {
			if lt == types.Float || rt == types.Float {
				return types.Float, nil
			}
			return types.Int, nil
		}
		if e.Op == token.Plus && lt == types.String && rt == types.String {
			return types.String, nil
		}
		if c.reg.HasFreeVars(lt) || c.reg.HasFreeVars(rt) {
			if t, err := c.reg.Unify(lt, rt); err == nil {
				return t, nil
			}
		}
		return types.Invalid, c.operatorMismatch(e, lt, rt)

	case e.Op.IsEquality():
		if !c.compatible(lt, rt) {
			return types.Invalid, c.operatorMismatch(e, lt, rt)
		}
		return types.Bool, nil

	case e.Op.IsOrdering():
		if (types.IsNumeric(lt) && types.IsNumeric(rt)) || (lt == types.Char && rt == types.Char) {
			return types.Bool, nil
		}
		if c.reg.HasFreeVars(lt) || c.reg.HasFreeVars(rt) {
			if _, err := c.reg.Unify(lt, rt); err == nil {
				return types.Bool, nil
			}
		}
		return types.Invalid, c.operatorMismatch(e, lt, rt)

	case e.Op.IsLogical():
		if err := multierr.Append(
			c.expect(types.Bool, lt, e.Left.Pos(), "operand of "+e.Op.String()),
			c.expect(types.Bool, rt, e.Right.Pos(), "operand of "+e.Op.String()),
		); err != nil {
			return types.Invalid, err
		}
		return types.Bool, nil

	case e.Op.IsRange():
		switch {
		case types.IsNumeric(lt) && types.IsNumeric(rt):
			if lt == types.Float || rt == types.Float {
				return c.reg.Range(types.Float), nil
			}
			return c.reg.Range(types.Int), nil
		case c.compatible(lt, rt):
			return c.reg.Range(c.reg.Resolve(lt)), nil
		default:
			return types.Invalid, c.operatorMismatch(e, lt, rt)
		}

	default:
		return types.Invalid, diag.Errorf(diag.Internal, e.OpPos, "unknown binary operator %s", e.Op)
	}
}

func (c *Checker) operatorMismatch(e *ast.BinaryExpr, lt, rt types.Type) error {
	return diag.Errorf(diag.TypeMismatch, e.OpPos, "operator %s cannot be applied to %s and %s", e.Op, lt, rt)
}

// checkAssign handles target = value. Reads made while evaluating the value
// end before the target is written.
func (c *Checker) checkAssign(e *ast.BinaryExpr) (types.Type, error) {
	vt, verr := c.consume(e.Right)
	c.borrows.ReleaseScope(c.temp)

	if u, ok := e.Left.(*ast.UnaryExpr); ok && u.Op == token.Deref {
		rt, err := c.CheckExpr(u.X)
		if err != nil {
			return types.Invalid, multierr.Append(verr, err)
		}
		ref, ok := c.reg.Resolve(rt).(*types.Reference)
		switch {
		case types.IsInvalid(rt):
			return types.Invalid, verr
		case !ok:
			return types.Invalid, multierr.Append(verr, diag.Errorf(diag.TypeMismatch, u.OpPos,
				"cannot dereference non-reference type %s", c.reg.Resolve(rt)))
		case !ref.Mutable:
			return types.Invalid, multierr.Append(verr, diag.Errorf(diag.ImmutableWrite, u.OpPos,
				"cannot assign through shared reference %s", ref))
		}
		if verr != nil {
			return ref.Inner, verr
		}
		return ref.Inner, c.expect(ref.Inner, vt, e.Right.Pos(), "assignment")
	}

	root, tt, err := c.place(e.Left, true)
	if err != nil {
		return types.Invalid, multierr.Append(verr, err)
	}
	kind := borrow.Write
	if _, direct := e.Left.(*ast.Ident); !direct {
		kind = borrow.Mutable
	}
	if err := c.event(root, kind, c.temp, e.Left.Pos()); err != nil {
		return types.Invalid, multierr.Append(verr, err)
	}
	if verr != nil {
		return tt, verr
	}
	return tt, c.expect(tt, vt, e.Right.Pos(), "assignment")
}

func (c *Checker) checkUnary(e *ast.UnaryExpr, bindRef bool) (types.Type, error) {
	switch e.Op {
	case token.Amp, token.AmpMut:
		mutable := e.Op == token.AmpMut
		root, t, err := c.place(e.X, false)
		if err != nil {
			if !isPlace(e.X) {
				// Borrow of a temporary value.
				t, err = c.CheckExpr(e.X)
				if err != nil {
					return types.Invalid, err
				}
				return c.reg.NewReference(t, mutable, ""), nil
			}
			return types.Invalid, err
		}
		scope := c.temp
		if bindRef {
			scope = c.table.Current()
		}
		kind := borrow.Immutable
		if mutable {
			kind = borrow.Mutable
		}
		if err := c.event(root, kind, scope, e.OpPos); err != nil {
			return types.Invalid, err
		}
		return c.reg.NewReference(t, mutable, ""), nil
	}

	t, err := c.CheckExpr(e.X)
	if err != nil {
		return types.Invalid, err
	}
	t = c.reg.Resolve(t)
	if types.IsInvalid(t) {
		return types.Invalid, nil
	}

	switch e.Op {
	case token.Minus:
		if types.IsNumeric(t) {
			return t, nil
		}
		if c.reg.HasFreeVars(t) {
			return t, nil
		}
		return types.Invalid, diag.Errorf(diag.TypeMismatch, e.OpPos, "cannot negate a value of type %s", t)

	case token.Bang:
		if err := c.expect(types.Bool, t, e.X.Pos(), "operand of !"); err != nil {
			return types.Invalid, err
		}
		return types.Bool, nil

	case token.Deref:
		switch t := t.(type) {
		case *types.Reference:
			return t.Inner, nil
		case *types.Var:
			if !t.Rigid {
				inner := c.reg.NewVar("")
				if _, err := c.reg.Unify(t, c.reg.NewReference(inner, false, "")); err != nil {
					return types.Invalid, diag.WithPos(err, e.OpPos)
				}
				return inner, nil
			}
		}
		return types.Invalid, diag.Errorf(diag.TypeMismatch, e.OpPos, "cannot dereference non-reference type %s", t)

	default:
		return types.Invalid, diag.Errorf(diag.Internal, e.OpPos, "unknown unary operator %s", e.Op)
	}
}

func isPlace(e ast.Expr) bool {
	switch e := e.(type) {
	case *ast.Ident:
		return true
	case *ast.IndexExpr:
		return isPlace(e.X)
	case *ast.MemberExpr:
		return isPlace(e.X)
	}
	return false
}

// ----- Calls -----

func (c *Checker) checkCall(e *ast.CallExpr) (types.Type, error) {
	ct, err := c.CheckExpr(e.Callee)
	if err != nil {
		// Still check the arguments for independent errors.
		for _, a := range e.Args {
			_, aerr := c.consume(a)
			err = multierr.Append(err, aerr)
		}
		return types.Invalid, err
	}
	name := calleeName(e.Callee)

	switch ft := c.reg.Resolve(ct).(type) {
	case *types.Func:
		var errs error
		if len(e.Args) != len(ft.Params) {
			errs = diag.Errorf(diag.TypeMismatch, e.LParen, "%s expects %d arguments, got %d",
				name, len(ft.Params), len(e.Args))
		}
		for i, a := range e.Args {
			at, err := c.consume(a)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			if i < len(ft.Params) {
				errs = multierr.Append(errs, c.expect(ft.Params[i], at, a.Pos(),
					fmt.Sprintf("argument %d of %s", i+1, name)))
			}
		}
		if errs != nil {
			return types.Invalid, errs
		}
		return c.reg.Resolve(ft.Result), nil

	case *types.Var:
		if ft.Rigid {
			break
		}
		params := make([]types.Type, len(e.Args))
		var errs error
		for i, a := range e.Args {
			at, err := c.consume(a)
			errs = multierr.Append(errs, err)
			params[i] = at
		}
		result := c.reg.NewVar("")
		if _, err := c.reg.Unify(ft, c.reg.NewFunc(params, result)); err != nil {
			errs = multierr.Append(errs, diag.WithPos(err, e.LParen))
		}
		return result, errs

	case *types.Basic:
		if types.IsInvalid(ft) {
			return types.Invalid, nil
		}
	}
	return types.Invalid, diag.Errorf(diag.TypeMismatch, e.LParen, "cannot call %s of type %s", name, c.reg.Resolve(ct))
}

func joinPath(path []string) string { return strings.Join(path, ".") }

func calleeName(e ast.Expr) string {
	switch e := e.(type) {
	case *ast.Ident:
		return strconv.Quote(e.Name)
	case *ast.PathExpr:
		return strconv.Quote(joinPath(e.Segments))
	case *ast.MemberExpr:
		if path, ok := memberPath(e); ok {
			return strconv.Quote(joinPath(path))
		}
	}
	return "expression"
}

// checkMethodCall is permissive: methods are not resolved against impls, so
// the result is a fresh variable once the receiver is known to have methods.
func (c *Checker) checkMethodCall(e *ast.MethodCallExpr) (types.Type, error) {
	rt, err := c.CheckExpr(e.Receiver)
	for _, a := range e.Args {
		_, aerr := c.consume(a)
		err = multierr.Append(err, aerr)
	}
	if err != nil {
		return types.Invalid, err
	}
	if !c.hasMembers(rt) {
		return types.Invalid, diag.Errorf(diag.InvalidType, e.NamePos,
			"no method %q on type %s", e.Name, c.reg.Resolve(rt))
	}
	return c.reg.NewVar(""), nil
}

// ----- Members and indexing -----

// memberPath flattens a.b.c when every step is a plain name.
func memberPath(e *ast.MemberExpr) ([]string, bool) {
	switch x := e.X.(type) {
	case *ast.Ident:
		return []string{x.Name, e.Name}, true
	case *ast.MemberExpr:
		p, ok := memberPath(x)
		if !ok {
			return nil, false
		}
		return append(p, e.Name), true
	}
	return nil, false
}

func (c *Checker) checkMember(e *ast.MemberExpr) (types.Type, error) {
	// Paths through modules and enumerations resolve statically.
	if path, ok := memberPath(e); ok {
		if id, err := c.table.Lookup(path[0]); err == nil && c.table.Symbol(id).Kind.IsContainer() {
			c.table.Symbol(id).Used = true
			sid, err := c.table.ResolveQualifiedName(path, e.NamePos)
			if err != nil {
				return types.Invalid, err
			}
			return c.valueOf(c.table.Symbol(sid), e.NamePos, false)
		}
	}

	xt, err := c.CheckExpr(e.X)
	if err != nil {
		return types.Invalid, err
	}
	return c.member(xt, e.Name, e.NamePos)
}

// member is the type of field name on a value of type t. Tuples are indexed
// by position; named types are permissive.
func (c *Checker) member(t types.Type, name string, pos token.Position) (types.Type, error) {
	t = c.deref(t)
	switch t := t.(type) {
	case *types.Tuple:
		i, err := strconv.Atoi(name)
		if err != nil || i < 0 || i >= len(t.Elems) {
			return types.Invalid, diag.Errorf(diag.InvalidType, pos, "tuple %s has no field %s", t, name)
		}
		return t.Elems[i], nil
	case *types.Named:
		return c.reg.NewVar(""), nil
	case *types.Var:
		if !t.Rigid {
			return c.reg.NewVar(""), nil
		}
	case *types.Basic:
		if types.IsInvalid(t) {
			return types.Invalid, nil
		}
	}
	return types.Invalid, diag.Errorf(diag.InvalidType, pos, "type %s has no field %q", t, name)
}

func (c *Checker) hasMembers(t types.Type) bool {
	switch t := c.deref(t).(type) {
	case *types.Named:
		return true
	case *types.Var:
		return true
	case *types.Basic:
		return types.IsInvalid(t)
	}
	return false
}

// deref strips references for auto-deref on member and index access.
func (c *Checker) deref(t types.Type) types.Type {
	t = c.reg.Resolve(t)
	for {
		r, ok := t.(*types.Reference)
		if !ok {
			return t
		}
		t = r.Inner
	}
}

func (c *Checker) checkIndex(e *ast.IndexExpr) (types.Type, error) {
	xt, err := c.CheckExpr(e.X)
	if err != nil {
		_, ierr := c.CheckExpr(e.Index)
		return types.Invalid, multierr.Append(err, ierr)
	}
	return c.indexed(xt, e.Index, e.LBracket)
}

// indexed checks index against a value of type t and returns the element type.
func (c *Checker) indexed(t types.Type, index ast.Expr, pos token.Position) (types.Type, error) {
	it, err := c.CheckExpr(index)
	if err != nil {
		return types.Invalid, err
	}
	if err := c.expect(types.Int, it, index.Pos(), "array index"); err != nil {
		return types.Invalid, err
	}
	switch t := c.deref(t).(type) {
	case *types.Array:
		return t.Elem, nil
	case *types.Var:
		if !t.Rigid {
			elem := c.reg.NewVar("")
			if _, err := c.reg.Unify(t, c.reg.NewArray(elem, types.Unsized)); err != nil {
				return types.Invalid, diag.WithPos(err, pos)
			}
			return elem, nil
		}
	case *types.Basic:
		if types.IsInvalid(t) {
			return types.Invalid, nil
		}
	}
	return types.Invalid, diag.Errorf(diag.TypeMismatch, pos, "cannot index into a value of type %s", c.reg.Resolve(t))
}

// ----- Literals -----

func (c *Checker) checkArrayLit(e *ast.ArrayLit) (types.Type, error) {
	if len(e.Elems) == 0 {
		return c.reg.NewArray(c.reg.NewVar(""), 0), nil
	}
	first, err := c.consume(e.Elems[0])
	if err != nil {
		first = types.Invalid
	}
	errs := err
	for i, el := range e.Elems[1:] {
		t, err := c.consume(el)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if !c.compatibleWith(first, t) {
			errs = multierr.Append(errs, diag.Errorf(diag.TypeMismatch, el.Pos(),
				"array element %d: expected %s, found %s", i+1, c.reg.Resolve(first), c.reg.Resolve(t)))
		}
	}
	if errs != nil {
		return types.Invalid, errs
	}
	return c.reg.NewArray(c.reg.Resolve(first), len(e.Elems)), nil
}

// compatibleWith is expect without the diagnostic.
func (c *Checker) compatibleWith(dst, src types.Type) bool {
	return c.expect(dst, src, token.Position{}, "") == nil
}

func (c *Checker) checkStructLit(e *ast.StructLit) (types.Type, error) {
	id, err := c.table.LookupAt(e.TypeName, e.TypeNamePos)
	if err != nil {
		if d, ok := diag.As(err); ok {
			d.Code = diag.TypeNotFound
		}
		for _, f := range e.Fields {
			_, ferr := c.consume(f.Value)
			err = multierr.Append(err, ferr)
		}
		return types.Invalid, err
	}
	sym := c.table.Symbol(id)
	sym.Used = true
	if sym.AliasOf != symbols.NoSymbol {
		sym = c.table.Symbol(sym.AliasOf)
	}
	if sym.Kind != symbols.Structure && sym.Kind != symbols.Class {
		return types.Invalid, diag.Errorf(diag.InvalidType, e.TypeNamePos,
			"%s %q is not a structure", sym.Kind, sym.Name)
	}
	if sym.Type == nil {
		return types.Invalid, diag.Errorf(diag.UndefinedType, e.TypeNamePos, "type %q is not defined yet", sym.Name)
	}

	fieldNames := c.table.Names(sym.Members)
	fieldSyms := make([]*symbols.Symbol, 0, len(fieldNames))
	shape := []types.Type{sym.Type}
	for _, n := range fieldNames {
		fid, _ := c.table.LookupInScope(n, sym.Members)
		f := c.table.Symbol(fid)
		if f.Kind != symbols.Field {
			continue
		}
		fieldSyms = append(fieldSyms, f)
		ft := f.Type
		if ft == nil {
			ft = types.Invalid
		}
		shape = append(shape, ft)
	}
	shape = c.reg.InstantiateAll(shape, sym.Generics)
	fieldTypes := make(map[string]types.Type, len(fieldSyms))
	for i, f := range fieldSyms {
		fieldTypes[f.Name] = shape[i+1]
	}

	var errs error
	seen := make(map[string]bool, len(e.Fields))
	for _, init := range e.Fields {
		vt, err := c.consume(init.Value)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		ft, ok := fieldTypes[init.Name]
		if !ok {
			errs = multierr.Append(errs, diag.Errorf(diag.NotFound, init.NamePos,
				"%s %q has no field %q", sym.Kind, sym.Name, init.Name))
			continue
		}
		if seen[init.Name] {
			errs = multierr.Append(errs, diag.Errorf(diag.AlreadyDeclared, init.NamePos,
				"field %q initialized twice", init.Name))
			continue
		}
		seen[init.Name] = true
		errs = multierr.Append(errs, c.expect(ft, vt, init.Value.Pos(), "field "+strconv.Quote(init.Name)))
	}
	if errs == nil {
		for _, f := range fieldSyms {
			if !seen[f.Name] {
				errs = multierr.Append(errs, diag.Errorf(diag.InvalidType, e.TypeNamePos,
					"missing field %q in %s literal", f.Name, sym.Name))
			}
		}
	}
	if errs != nil {
		return types.Invalid, errs
	}
	return c.reg.Resolve(shape[0]), nil
}

func (c *Checker) checkCast(e *ast.CastExpr) (types.Type, error) {
	src, err := c.CheckExpr(e.X)
	dst, cerr := c.Convert(e.Type)
	if err := multierr.Append(err, cerr); err != nil {
		return types.Invalid, err
	}
	src = c.reg.Resolve(src)
	castable := func(t types.Type) bool { return types.IsNumeric(t) || t == types.Char }
	if types.IsInvalid(src) || c.reg.Identical(dst, src) || (castable(src) && castable(dst)) {
		return dst, nil
	}
	return types.Invalid, diag.Errorf(diag.TypeMismatch, e.AsPos, "cannot cast %s to %s", src, dst)
}
