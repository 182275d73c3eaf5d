package semantic

import (
	"golang.org/x/exp/slices"

	"tern/internal/ast"
	"tern/internal/borrow"
	"tern/internal/diag"
	"tern/internal/symbols"
	"tern/internal/types"
)

// check runs the type and borrow checks over a unit in source order.
func (a *Analyzer) check(nodes []ast.Node) {
	for _, n := range nodes {
		if a.fatal != nil {
			return
		}
		switch d := n.(type) {
		case *ast.BadNode:
			// Already reported by the parser.
		case *ast.VarDecl:
			t, err := a.checker.CheckVariableDeclaration(d)
			a.report(err)
			a.initialize(d, t, d.Value != nil)
		case *ast.ConstDecl:
			t, err := a.checker.CheckConstDeclaration(d)
			a.report(err)
			a.initialize(d, t, true)
		case *ast.FuncDecl:
			a.checkFunction(d, nil)
		case *ast.StructDecl, *ast.EnumDecl, *ast.UseDecl:
			// Fully handled by the earlier passes.
		case *ast.ClassDecl:
			if sym, ok := a.symbolOf(d); ok {
				a.within(sym.Members, d.ClassPos, func() {
					for _, m := range d.Methods {
						a.checkFunction(m, sym.Type)
					}
				})
			}
		case *ast.TraitDecl:
			if sym, ok := a.symbolOf(d); ok {
				self := types.Type(types.Invalid)
				if id, ok := a.table.LookupInScope("Self", sym.Members); ok {
					self = a.table.Symbol(id).Type
				}
				a.within(sym.Members, d.TraitPos, func() {
					for _, m := range d.Methods {
						// Signatures without a body are requirements.
						if m.Body != nil {
							a.checkFunction(m, self)
						}
					}
				})
			}
		case *ast.ImplDecl:
			a.checkImpl(d)
		case *ast.ModuleDecl:
			if sym, ok := a.symbolOf(d); ok {
				a.within(sym.Members, d.ModPos, func() { a.check(d.Body) })
			}
		default:
			a.report(a.checker.CheckStmt(n))
		}
	}
}

// initialize back-fills the type of a top-level variable and marks it
// initialized once its initializer has been checked.
func (a *Analyzer) initialize(node ast.Node, t types.Type, initialized bool) {
	sym, ok := a.symbolOf(node)
	if !ok {
		return
	}
	if t != nil {
		a.report(a.table.SetType(sym.ID, t, sym.Pos))
	}
	if initialized {
		sym.Initialized = true
		a.borrows.Declare(sym.ID, borrow.Binding{Name: sym.Name, Mutable: sym.Mutable, Initialized: true})
	}
}

// checkFunction checks the body of d inside the scope created for it by the
// collect pass. Methods get self bound to the receiver type.
func (a *Analyzer) checkFunction(d *ast.FuncDecl, self types.Type) {
	sym, ok := a.symbolOf(d)
	if !ok {
		return
	}
	sig, ok := a.sigs[d]
	if !ok {
		return
	}
	a.within(sym.Members, d.FnPos, func() {
		if self != nil {
			a.report(a.checker.CheckMethodBody(d, sig, self))
			return
		}
		a.report(a.checker.CheckFunctionBody(d, sig))
	})
}

func (a *Analyzer) checkImpl(d *ast.ImplDecl) {
	scope, ok := a.impls[d]
	if !ok {
		return
	}
	target := a.targets[d]
	a.within(scope, d.ImplPos, func() {
		if d.Trait != nil {
			a.checkTraitImpl(d)
		}
		for _, m := range d.Methods {
			a.checkFunction(m, target)
		}
	})
}

// checkTraitImpl verifies that an implementation provides every method its
// trait requires and nothing else.
func (a *Analyzer) checkTraitImpl(d *ast.ImplDecl) {
	id, err := a.table.ResolveQualifiedName(d.Trait, d.ImplPos)
	if err != nil {
		a.report(err)
		return
	}
	trait := a.table.Symbol(id)
	trait.Used = true
	if trait.AliasOf != symbols.NoSymbol {
		trait = a.table.Symbol(trait.AliasOf)
	}
	if trait.Kind != symbols.Trait {
		a.report(diag.Errorf(diag.InvalidType, d.ImplPos, "%s %q is not a trait", trait.Kind, trait.Name))
		return
	}

	provided := make(map[string]*ast.FuncDecl, len(d.Methods))
	for _, m := range d.Methods {
		provided[m.Name] = m
	}

	for _, name := range a.table.Names(trait.Members) {
		mid, _ := a.table.LookupInScope(name, trait.Members)
		req := a.table.Symbol(mid)
		if req.Kind != symbols.Function {
			continue
		}
		req.Used = true
		decl, _ := req.Decl.(*ast.FuncDecl)
		impl, ok := provided[name]
		switch {
		case !ok && decl != nil && decl.Body == nil:
			a.report(diag.Errorf(diag.InvalidType, d.ImplPos,
				"missing method %q required by trait %q", name, trait.Name).
				WithNote("%q declared at %s", name, req.Pos))
		case ok && decl != nil && len(impl.Params) != len(decl.Params):
			a.report(diag.Errorf(diag.TypeMismatch, impl.NamePos,
				"method %q of trait %q takes %d parameters, got %d", name, trait.Name, len(decl.Params), len(impl.Params)))
		}
	}

	names := a.table.Names(trait.Members)
	for _, m := range d.Methods {
		if _, found := slices.BinarySearch(names, m.Name); !found {
			a.report(diag.Errorf(diag.InvalidType, m.NamePos,
				"method %q is not a member of trait %q", m.Name, trait.Name))
		}
	}
}
