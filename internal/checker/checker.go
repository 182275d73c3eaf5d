package checker

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"tern/internal/ast"
	"tern/internal/borrow"
	"tern/internal/diag"
	"tern/internal/symbols"
	"tern/internal/token"
	"tern/internal/types"
)

// DeclVisitor handles declarations met inside bodies that the checker does
// not own, such as nested functions or structures.
type DeclVisitor interface {
	VisitDecl(d ast.Decl) error
}

// Checker infers and validates the types of expressions and statements. It
// works on handles to the registry, table and borrow checker owned by the
// caller; nothing is copied.
type Checker struct {
	reg     *types.Registry
	table   *symbols.Table
	borrows *borrow.Checker
	log     *zap.Logger
	decls   DeclVisitor

	results []types.Type    // expected result of each enclosing function
	temp    symbols.ScopeID // statement temporary for plain reads and writes
	bindRef bool            // the next & expression initializes a binding
}

func New(reg *types.Registry, table *symbols.Table, borrows *borrow.Checker, log *zap.Logger) *Checker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Checker{
		reg:     reg,
		table:   table,
		borrows: borrows,
		log:     log,
		temp:    symbols.NoScope,
	}
}

// SetDeclVisitor installs the handler for nested declarations.
func (c *Checker) SetDeclVisitor(v DeclVisitor) { c.decls = v }

// ----- Type resolution -----

// ResolveType implements types.Resolver on top of the symbol table.
func (c *Checker) ResolveType(path []string, args []types.Type, pos token.Position) (types.Type, error) {
	id, err := c.table.ResolveQualifiedName(path, pos)
	if err != nil {
		if d, ok := diag.As(err); ok && d.Code == diag.NotFound {
			d.Code = diag.TypeNotFound
		}
		return types.Invalid, err
	}
	sym := c.table.Symbol(id)
	sym.Used = true
	if sym.AliasOf != symbols.NoSymbol {
		sym = c.table.Symbol(sym.AliasOf)
	}

	switch sym.Kind {
	case symbols.Generic:
		if len(args) > 0 {
			return types.Invalid, diag.Errorf(diag.InvalidTypeParameter, pos,
				"type parameter %q takes no type arguments", sym.Name)
		}
		return sym.Type, nil

	case symbols.Structure, symbols.Class, symbols.Enumeration:
		if sym.Type == nil {
			return types.Invalid, diag.Errorf(diag.UndefinedType, pos, "type %q is not defined yet", sym.Name)
		}
		if len(args) == 0 && len(sym.Generics) == 0 {
			return sym.Type, nil
		}
		if len(args) != len(sym.Generics) {
			return types.Invalid, diag.Errorf(diag.InvalidTypeParameter, pos,
				"%s %q expects %d type arguments, got %d", sym.Kind, sym.Name, len(sym.Generics), len(args))
		}
		named, ok := sym.Type.(*types.Named)
		if !ok {
			return types.Invalid, diag.Errorf(diag.Internal, pos, "%s %q has non-nominal type %s", sym.Kind, sym.Name, sym.Type)
		}
		return c.reg.NewNamed(named.Name, args), nil

	default:
		return types.Invalid, diag.Errorf(diag.InvalidType, pos, "%s %q is not a type", sym.Kind, sym.Name)
	}
}

// Convert maps an annotation onto the registry, resolving names in the
// current scope.
func (c *Checker) Convert(tn ast.TypeNode) (types.Type, error) {
	return c.reg.Convert(tn, c)
}

// ----- Helpers -----

// expect checks that a value of type src may be used where dst is required.
// Types that still mention free variables are unified instead.
func (c *Checker) expect(dst, src types.Type, pos token.Position, what string) error {
	if c.reg.HasFreeVars(dst) || c.reg.HasFreeVars(src) {
		err := c.reg.UnifyAssignable(dst, src)
		if err == nil {
			return nil
		}
		if diag.Is(err, diag.RecursiveType) {
			return diag.WithPos(err, pos)
		}
	}
	if c.reg.Assignable(dst, src) {
		return nil
	}
	return diag.Errorf(diag.TypeMismatch, pos, "mismatched types in %s: expected %s, found %s",
		what, c.reg.Resolve(dst), c.reg.Resolve(src))
}

// compatible reports whether either type can stand in for the other.
func (c *Checker) compatible(a, b types.Type) bool {
	if c.reg.HasFreeVars(a) || c.reg.HasFreeVars(b) {
		if c.reg.UnifyAssignable(a, b) == nil || c.reg.UnifyAssignable(b, a) == nil {
			return true
		}
	}
	return c.reg.Assignable(a, b) || c.reg.Assignable(b, a)
}

func (c *Checker) event(sym *symbols.Symbol, kind borrow.Kind, scope symbols.ScopeID, pos token.Position) error {
	if !c.borrows.Tracked(sym.ID) {
		return nil
	}
	return c.borrows.Event(borrow.Info{Symbol: sym.ID, Kind: kind, Scope: scope, Pos: pos})
}

// declareLocal adds a variable-like symbol to the current scope and starts
// tracking it. On a declaration error the symbol is still tracked so that
// later uses do not cascade.
func (c *Checker) declareLocal(name string, kind symbols.Kind, pos token.Position, typ types.Type, mutable, initialized bool, decl ast.Node) (*symbols.Symbol, error) {
	id, err := c.table.DeclareWithType(name, kind, pos, typ, mutable)
	if err != nil {
		return nil, err
	}
	sym := c.table.Symbol(id)
	sym.Initialized = initialized
	sym.Decl = decl
	c.borrows.Declare(id, borrow.Binding{Name: name, Mutable: mutable, Initialized: initialized})
	return sym, nil
}

// evaluate checks a statement-level expression. Plain reads and writes it
// performs are released when it returns.
func (c *Checker) evaluate(e ast.Expr, consume bool) (types.Type, error) {
	prev := c.temp
	c.temp = c.borrows.Temporary()
	defer func() {
		c.borrows.ReleaseScope(c.temp)
		c.temp = prev
	}()
	if consume {
		return c.consume(e)
	}
	return c.CheckExpr(e)
}

// ----- Declarations -----

// CheckVariableDeclaration infers the type of a let binding. The initializer
// is checked before the name is declared, so it sees any outer binding of the
// same name.
func (c *Checker) CheckVariableDeclaration(decl *ast.VarDecl) (types.Type, error) {
	if decl.Type == nil && decl.Value == nil {
		return types.Invalid, diag.Errorf(diag.UndefinedType, decl.NamePos,
			"cannot infer the type of %q without an annotation or initializer", decl.Name)
	}

	var declared types.Type
	if decl.Type != nil {
		t, err := c.Convert(decl.Type)
		if err != nil {
			return types.Invalid, err
		}
		declared = t
	}
	if decl.Value == nil {
		return declared, nil
	}

	if u, ok := decl.Value.(*ast.UnaryExpr); ok && (u.Op == token.Amp || u.Op == token.AmpMut) {
		c.bindRef = true
	}
	init, err := c.evaluate(decl.Value, true)
	c.bindRef = false
	if err != nil {
		if declared != nil {
			return declared, err
		}
		return types.Invalid, err
	}
	if declared == nil {
		return c.reg.Resolve(init), nil
	}
	if err := c.expect(declared, init, decl.Value.Pos(), fmt.Sprintf("declaration of %q", decl.Name)); err != nil {
		return declared, err
	}
	return c.reg.Resolve(declared), nil
}

// CheckConstDeclaration is CheckVariableDeclaration for constants, which
// always carry a value.
func (c *Checker) CheckConstDeclaration(decl *ast.ConstDecl) (types.Type, error) {
	if decl.Value == nil {
		return types.Invalid, diag.Errorf(diag.UndefinedType, decl.NamePos, "constant %q has no value", decl.Name)
	}
	return c.CheckVariableDeclaration(&ast.VarDecl{
		LetPos:  decl.ConstPos,
		Name:    decl.Name,
		NamePos: decl.NamePos,
		Type:    decl.Type,
		Value:   decl.Value,
	})
}

// CheckFunctionDeclaration builds the signature of decl. Type parameters must
// already be declared in the current scope; the body is not checked.
func (c *Checker) CheckFunctionDeclaration(decl *ast.FuncDecl) (types.Type, error) {
	var errs error
	params := make([]types.Type, len(decl.Params))
	for i, p := range decl.Params {
		if p.Type == nil {
			errs = multierr.Append(errs, diag.Errorf(diag.InvalidType, p.NamePos,
				"parameter %q of %q needs a type annotation", p.Name, decl.Name))
			params[i] = types.Invalid
			continue
		}
		t, err := c.Convert(p.Type)
		if err != nil {
			errs = multierr.Append(errs, err)
			t = types.Invalid
		}
		params[i] = t
	}
	result, err := c.Convert(decl.Result)
	if err != nil {
		errs = multierr.Append(errs, err)
		result = types.Invalid
	}
	return c.reg.NewFunc(params, result), errs
}

// CheckFunctionBody declares the parameters of decl in the current scope,
// which the caller has opened for the function, and checks the body.
func (c *Checker) CheckFunctionBody(decl *ast.FuncDecl, sig *types.Func) error {
	c.log.Debug("check function", zap.String("name", decl.Name), zap.Stringer("type", sig))

	var errs error
	for i, p := range decl.Params {
		if _, err := c.declareLocal(p.Name, symbols.Parameter, p.NamePos, sig.Params[i], p.Mutable, true, p); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	c.results = append(c.results, sig.Result)
	defer func() { c.results = c.results[:len(c.results)-1] }()

	return multierr.Append(errs, c.CheckBody(decl.Body))
}

// CheckMethodBody is CheckFunctionBody with an implicit immutable self
// parameter declared ahead of the others.
func (c *Checker) CheckMethodBody(decl *ast.FuncDecl, sig *types.Func, self types.Type) error {
	_, err := c.declareLocal("self", symbols.Parameter, decl.NamePos, self, false, true, decl)
	return multierr.Append(err, c.CheckFunctionBody(decl, sig))
}
