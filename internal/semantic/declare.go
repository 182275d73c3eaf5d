package semantic

import (
	"fmt"
	"strings"

	"tern/internal/ast"
	"tern/internal/borrow"
	"tern/internal/diag"
	"tern/internal/symbols"
	"tern/internal/token"
	"tern/internal/types"
)

// ----- Collect -----

// collect declares every item name of a unit before any signature or type
// annotation is converted, so that items may refer to each other in any
// order. Modules are walked recursively; use declarations are queued.
func (a *Analyzer) collect(nodes []ast.Node) {
	for _, n := range nodes {
		if a.fatal != nil {
			return
		}
		switch d := n.(type) {
		case *ast.StructDecl:
			a.collectType(d, d.Name, d.NamePos, symbols.Structure, d.Visibility, d.TypeParams)
		case *ast.ClassDecl:
			a.collectType(d, d.Name, d.NamePos, symbols.Class, d.Visibility, nil)
		case *ast.EnumDecl:
			a.collectType(d, d.Name, d.NamePos, symbols.Enumeration, d.Visibility, nil)
		case *ast.TraitDecl:
			if sym, ok := a.collectContainer(d, d.Name, d.NamePos, symbols.Trait, symbols.TraitScope, d.Visibility); ok {
				if id, err := a.table.DeclareIn(sym.Members, "Self", symbols.Generic, d.NamePos); err != nil {
					a.report(err)
				} else {
					a.table.Symbol(id).Type = a.reg.NewRigidVar("Self")
				}
			}
		case *ast.ModuleDecl:
			if sym, ok := a.collectContainer(d, d.Name, d.NamePos, symbols.Module, symbols.ModuleScope, d.Visibility); ok {
				a.prefix = append(a.prefix, d.Name)
				a.within(sym.Members, d.ModPos, func() { a.collect(d.Body) })
				a.prefix = a.prefix[:len(a.prefix)-1]
			}
		case *ast.FuncDecl:
			a.newFunction(d, a.table.Current())
		case *ast.UseDecl:
			a.table.AddImport(symbols.Import{Path: d.Path, Alias: d.Alias, Pos: d.UsePos})
		}
	}
}

// collectContainer declares a symbol that owns a member scope.
func (a *Analyzer) collectContainer(node ast.Node, name string, pos token.Position, kind symbols.Kind, scope symbols.ScopeKind, vis ast.Visibility) (*symbols.Symbol, bool) {
	id, err := a.table.Declare(name, kind, pos)
	if err != nil {
		a.report(err)
		return nil, false
	}
	sym := a.table.Symbol(id)
	sym.Visibility = vis
	sym.Decl = node
	sym.Members = a.table.EnterScope(scope)
	a.table.CurrentScope().Owner = id
	a.exit(pos)
	a.declared[node] = id
	return sym, true
}

// collectType declares a nominal type. Its type parameters live in its
// member scope.
func (a *Analyzer) collectType(node ast.Node, name string, pos token.Position, kind symbols.Kind, vis ast.Visibility, params []*ast.TypeParam) {
	sym, ok := a.collectContainer(node, name, pos, kind, symbols.StructureScope, vis)
	if !ok {
		return
	}
	args := make([]types.Type, 0, len(params))
	for _, tp := range params {
		gid, err := a.table.DeclareIn(sym.Members, tp.Name, symbols.Generic, tp.NamePos)
		if err != nil {
			a.report(err)
			continue
		}
		v := a.reg.NewRigidVar(tp.Name)
		a.table.Symbol(gid).Type = v
		sym.Generics = append(sym.Generics, v)
		args = append(args, v)
	}
	qualified := strings.Join(append(append([]string(nil), a.prefix...), name), ".")
	sym.Type = a.reg.NewNamed(qualified, args)
	a.nominal[qualified] = sym.ID
}

// newFunction declares d in scope in and opens the function's own scope
// below the current one, holding its type parameters.
func (a *Analyzer) newFunction(d *ast.FuncDecl, in symbols.ScopeID) (*symbols.Symbol, bool) {
	id, err := a.table.DeclareIn(in, d.Name, symbols.Function, d.NamePos)
	if err != nil {
		a.report(err)
		return nil, false
	}
	sym := a.table.Symbol(id)
	sym.Visibility = d.Visibility
	sym.Decl = d
	sym.Members = a.table.EnterScope(symbols.FunctionScope)
	a.table.CurrentScope().Owner = id
	for _, tp := range d.TypeParams {
		v := a.reg.NewRigidVar(tp.Name)
		if _, err := a.table.DeclareWithType(tp.Name, symbols.Generic, tp.NamePos, v, false); err != nil {
			a.report(err)
			continue
		}
		sym.Generics = append(sym.Generics, v)
	}
	a.exit(d.FnPos)
	a.declared[d] = id
	return sym, true
}

// ----- Imports -----

// resolveImports binds every queued use declaration. Before the declare
// pass has run, imports that do not resolve yet are kept for a second try.
func (a *Analyzer) resolveImports(final bool) {
	pending := append(a.deferred, a.table.PendingImports()...)
	a.deferred = nil
	for _, p := range pending {
		imp := p.Import
		target, err := a.table.ResolveQualifiedNameFrom(p.Scope, imp.Path, imp.Pos)
		if err != nil {
			if !final {
				a.deferred = append(a.deferred, p)
				continue
			}
			e := diag.Errorf(diag.ImportError, imp.Pos, "unresolved import %q", strings.Join(imp.Path, "."))
			if d, ok := diag.As(err); ok {
				e.WithNote("%s", d.Msg)
			}
			a.report(e)
			continue
		}
		_, err = a.table.DeclareAlias(p.Scope, imp.Name(), target, imp.Pos)
		a.report(err)
	}
}

// ----- Declare -----

// declare gives every collected item its type: function signatures, field
// and variant types, trait method signatures and implementation targets.
// Top-level variables are declared here, uninitialized.
func (a *Analyzer) declare(nodes []ast.Node) {
	for _, n := range nodes {
		if a.fatal != nil {
			return
		}
		switch d := n.(type) {
		case *ast.VarDecl:
			a.declareVariable(d, d.Name, d.NamePos, d.Type, d.Mutable, symbols.Variable, ast.Private)
		case *ast.ConstDecl:
			a.declareVariable(d, d.Name, d.NamePos, d.Type, false, symbols.Constant, d.Visibility)
		case *ast.FuncDecl:
			a.signature(d)
		case *ast.StructDecl:
			a.declareFields(d, d.Fields)
		case *ast.ClassDecl:
			a.declareFields(d, d.Fields)
			if sym, ok := a.symbolOf(d); ok {
				a.within(sym.Members, d.ClassPos, func() { a.declareMethods(d.Methods, sym.Members) })
			}
		case *ast.EnumDecl:
			a.declareVariants(d)
		case *ast.TraitDecl:
			if sym, ok := a.symbolOf(d); ok {
				a.within(sym.Members, d.TraitPos, func() { a.declareMethods(d.Methods, sym.Members) })
			}
		case *ast.ImplDecl:
			a.declareImpl(d)
		case *ast.ModuleDecl:
			if sym, ok := a.symbolOf(d); ok {
				a.prefix = append(a.prefix, d.Name)
				a.within(sym.Members, d.ModPos, func() { a.declare(d.Body) })
				a.prefix = a.prefix[:len(a.prefix)-1]
			}
		}
	}
}

func (a *Analyzer) declareVariable(node ast.Node, name string, pos token.Position, tn ast.TypeNode, mutable bool, kind symbols.Kind, vis ast.Visibility) {
	var t types.Type
	if tn != nil {
		var err error
		if t, err = a.checker.Convert(tn); err != nil {
			a.report(err)
			t = types.Invalid
		}
	}
	id, err := a.table.DeclareWithType(name, kind, pos, t, mutable)
	if err != nil {
		a.report(err)
		return
	}
	sym := a.table.Symbol(id)
	sym.Visibility = vis
	sym.Decl = node
	a.declared[node] = id
	a.borrows.Declare(id, borrow.Binding{Name: name, Mutable: mutable})
}

// signature converts the parameter and result annotations of a function
// inside its own scope, where its type parameters are visible.
func (a *Analyzer) signature(d *ast.FuncDecl) {
	sym, ok := a.symbolOf(d)
	if !ok {
		return
	}
	a.within(sym.Members, d.FnPos, func() {
		t, err := a.checker.CheckFunctionDeclaration(d)
		a.report(err)
		sig := t.(*types.Func)
		sym.Type = sig
		a.sigs[d] = sig
	})
}

// declareMethods declares methods in home and opens their function scopes
// below the current scope.
func (a *Analyzer) declareMethods(methods []*ast.FuncDecl, home symbols.ScopeID) {
	for _, m := range methods {
		if _, ok := a.newFunction(m, home); ok {
			a.signature(m)
		}
	}
}

func (a *Analyzer) declareFields(node ast.Node, fields []*ast.FieldDecl) {
	sym, ok := a.symbolOf(node)
	if !ok {
		return
	}
	a.within(sym.Members, node.Pos(), func() {
		for _, f := range fields {
			t, err := a.checker.Convert(f.Type)
			if err != nil {
				a.report(err)
				t = types.Invalid
			}
			id, err := a.table.DeclareWithType(f.Name, symbols.Field, f.NamePos, t, false)
			if err != nil {
				a.report(err)
				continue
			}
			fs := a.table.Symbol(id)
			fs.Visibility = f.Visibility
			fs.Decl = f
		}
	})
}

// declareVariants gives bare variants the enumeration's type and variants
// with a payload a constructor type.
func (a *Analyzer) declareVariants(d *ast.EnumDecl) {
	sym, ok := a.symbolOf(d)
	if !ok {
		return
	}
	enum := sym.Type
	a.within(sym.Members, d.EnumPos, func() {
		for _, v := range d.Variants {
			t := enum
			if v.Type != nil {
				payload, err := a.checker.Convert(v.Type)
				if err != nil {
					a.report(err)
					payload = types.Invalid
				}
				t = a.reg.NewFunc([]types.Type{payload}, enum)
			}
			id, err := a.table.DeclareWithType(v.Name, symbols.Variant, v.NamePos, t, false)
			if err != nil {
				a.report(err)
				continue
			}
			vs := a.table.Symbol(id)
			vs.Visibility = v.Visibility
			vs.Decl = v
		}
	})
}

// declareImpl opens the implementation scope and declares its methods.
// Methods of an inherent implementation also become members of the target
// type so that Type::method resolves.
func (a *Analyzer) declareImpl(d *ast.ImplDecl) {
	id, err := a.table.Declare(fmt.Sprintf("impl@%s", d.ImplPos), symbols.Implementation, d.ImplPos)
	if err != nil {
		a.report(err)
		return
	}
	sym := a.table.Symbol(id)
	sym.Decl = d
	a.declared[d] = id

	scope := a.table.EnterScope(symbols.ImplementationScope)
	a.table.CurrentScope().Owner = id
	sym.Members = scope
	a.impls[d] = scope

	target, err := a.checker.Convert(d.Target)
	if err != nil {
		a.report(err)
		target = types.Invalid
	}
	sym.Type = target
	a.targets[d] = target
	if _, err := a.table.DeclareWithType("Self", symbols.Generic, d.ImplPos, target, false); err != nil {
		a.report(err)
	}

	home := scope
	if d.Trait == nil {
		if owner, ok := a.owner(target); ok && owner.Members != symbols.NoScope {
			home = owner.Members
		}
	}
	a.declareMethods(d.Methods, home)
	a.exit(d.ImplPos)
}

// owner returns the symbol that declared a nominal type.
func (a *Analyzer) owner(t types.Type) (*symbols.Symbol, bool) {
	n, ok := a.reg.Resolve(t).(*types.Named)
	if !ok {
		return nil, false
	}
	id, ok := a.nominal[n.Name]
	if !ok {
		return nil, false
	}
	return a.table.Symbol(id), true
}
