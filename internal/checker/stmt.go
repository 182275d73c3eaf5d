package checker

import (
	"go.uber.org/multierr"

	"tern/internal/ast"
	"tern/internal/borrow"
	"tern/internal/diag"
	"tern/internal/symbols"
	"tern/internal/token"
	"tern/internal/types"
)

// CheckBody checks a sequence of statements in the current scope. Every
// statement is checked even after an error so that independent mistakes are
// all reported.
func (c *Checker) CheckBody(body []ast.Node) error {
	var errs error
	for _, n := range body {
		errs = multierr.Append(errs, c.CheckStmt(n))
	}
	return errs
}

// CheckStmt checks one statement or local declaration.
func (c *Checker) CheckStmt(n ast.Node) error {
	switch n := n.(type) {
	case *ast.BadNode:
		return nil

	case *ast.ExprStmt:
		_, err := c.evaluate(n.X, false)
		return err

	case *ast.ReturnStmt:
		return c.checkReturn(n)

	case *ast.IfStmt:
		return c.checkIf(n)

	case *ast.WhileStmt:
		cerr := c.condition(n.Cond, "while condition")
		before := c.borrows.Snapshot()
		err := c.block(symbols.LoopScope, n.Body)
		// The body may run zero times.
		c.borrows.Join(before)
		return multierr.Append(cerr, err)

	case *ast.ForStmt:
		return c.checkFor(n)

	case *ast.LoopStmt:
		return c.block(symbols.LoopScope, n.Body)

	case *ast.BreakStmt:
		if _, ok := c.table.Nearest(symbols.LoopScope, symbols.FunctionScope); !ok {
			return diag.Errorf(diag.InvalidScope, n.BreakPos, "break outside of a loop")
		}
		return nil

	case *ast.ContinueStmt:
		if _, ok := c.table.Nearest(symbols.LoopScope, symbols.FunctionScope); !ok {
			return diag.Errorf(diag.InvalidScope, n.ContinuePos, "continue outside of a loop")
		}
		return nil

	case *ast.MatchStmt:
		return c.checkMatch(n)

	case *ast.BlockStmt:
		return c.block(symbols.BlockScope, n.Body)

	case *ast.VarDecl:
		t, err := c.CheckVariableDeclaration(n)
		if t == nil {
			t = types.Invalid
		}
		_, derr := c.declareLocal(n.Name, symbols.Variable, n.NamePos, t, n.Mutable, n.Value != nil, n)
		return multierr.Append(err, derr)

	case *ast.ConstDecl:
		t, err := c.CheckConstDeclaration(n)
		if t == nil {
			t = types.Invalid
		}
		_, derr := c.declareLocal(n.Name, symbols.Constant, n.NamePos, t, false, true, n)
		return multierr.Append(err, derr)

	case ast.Decl:
		if c.decls == nil {
			return diag.Errorf(diag.InvalidScope, n.Pos(), "declaration not allowed here")
		}
		return c.decls.VisitDecl(n)

	case ast.Expr:
		_, err := c.evaluate(n, false)
		return err

	default:
		return diag.Errorf(diag.Internal, n.Pos(), "unhandled statement %T", n)
	}
}

// block checks body inside a fresh scope of the given kind.
func (c *Checker) block(kind symbols.ScopeKind, body []ast.Node) error {
	c.table.EnterScope(kind)
	err := c.CheckBody(body)
	if _, xerr := c.table.ExitScope(); xerr != nil {
		err = multierr.Append(err, diag.WithPos(xerr, firstPos(body)))
	}
	return err
}

func firstPos(body []ast.Node) (pos token.Position) {
	if len(body) > 0 {
		pos = body[0].Pos()
	}
	return pos
}

func (c *Checker) condition(cond ast.Expr, what string) error {
	t, err := c.evaluate(cond, false)
	if err != nil {
		return err
	}
	return c.expect(types.Bool, t, cond.Pos(), what)
}

func (c *Checker) checkReturn(n *ast.ReturnStmt) error {
	if len(c.results) == 0 {
		var err error = diag.Errorf(diag.InvalidScope, n.ReturnPos, "return outside of a function")
		if n.Value != nil {
			_, verr := c.evaluate(n.Value, true)
			err = multierr.Append(err, verr)
		}
		return err
	}
	want := c.results[len(c.results)-1]
	if n.Value == nil {
		return c.expect(want, types.Unit, n.ReturnPos, "return value")
	}
	got, err := c.evaluate(n.Value, true)
	if err != nil {
		return err
	}
	return c.expect(want, got, n.Value.Pos(), "return value")
}

// checkIf checks both branches from the same starting state. Afterwards a
// variable counts as initialized only if both branches initialized it.
func (c *Checker) checkIf(n *ast.IfStmt) error {
	errs := c.condition(n.Cond, "if condition")

	before := c.borrows.Snapshot()
	errs = multierr.Append(errs, c.block(symbols.BlockScope, n.Then))
	after := c.borrows.Snapshot()

	c.borrows.Restore(before)
	if n.Else != nil {
		errs = multierr.Append(errs, c.block(symbols.BlockScope, n.Else))
	}
	c.borrows.Join(after)
	return errs
}

func (c *Checker) checkFor(n *ast.ForStmt) error {
	it, errs := c.evaluate(n.Iter, false)
	elem := types.Type(types.Invalid)
	if errs == nil {
		var err error
		elem, err = c.element(it, n.Iter)
		errs = err
	}

	before := c.borrows.Snapshot()
	c.table.EnterScope(symbols.LoopScope)
	if _, err := c.declareLocal(n.Var, symbols.Variable, n.VarPos, c.reg.Resolve(elem), false, true, n); err != nil {
		errs = multierr.Append(errs, err)
	}
	errs = multierr.Append(errs, c.CheckBody(n.Body))
	if _, err := c.table.ExitScope(); err != nil {
		errs = multierr.Append(errs, diag.WithPos(err, n.ForPos))
	}
	c.borrows.Join(before)
	return errs
}

// element is the type produced by iterating over a value of type t.
func (c *Checker) element(t types.Type, iter ast.Expr) (types.Type, error) {
	switch t := c.deref(t).(type) {
	case *types.Named:
		if t.Name == "Range" && len(t.Args) == 1 {
			return t.Args[0], nil
		}
	case *types.Array:
		return t.Elem, nil
	case *types.Var:
		if !t.Rigid {
			return c.reg.NewVar(""), nil
		}
	case *types.Basic:
		if types.IsInvalid(t) {
			return types.Invalid, nil
		}
	}
	return types.Invalid, diag.Errorf(diag.TypeMismatch, iter.Pos(), "cannot iterate over a value of type %s", c.reg.Resolve(t))
}

// checkMatch checks every arm from the state before the match and joins the
// states the arms end in.
func (c *Checker) checkMatch(n *ast.MatchStmt) error {
	st, errs := c.evaluate(n.Scrutinee, false)
	if errs != nil {
		st = types.Invalid
	}

	before := c.borrows.Snapshot()
	var ends []borrow.Snapshot
	for _, arm := range n.Arms {
		c.borrows.Restore(before)
		c.table.EnterScope(symbols.BlockScope)
		errs = multierr.Append(errs, c.checkPattern(arm.Pattern, st))
		if arm.Guard != nil {
			errs = multierr.Append(errs, c.condition(arm.Guard, "match guard"))
		}
		errs = multierr.Append(errs, c.CheckBody(arm.Body))
		if _, err := c.table.ExitScope(); err != nil {
			errs = multierr.Append(errs, diag.WithPos(err, arm.Pattern.Pos()))
		}
		ends = append(ends, c.borrows.Snapshot())
	}
	if len(ends) == 0 {
		return errs
	}
	c.borrows.Restore(ends[0])
	for _, s := range ends[1:] {
		c.borrows.Join(s)
	}
	return errs
}
