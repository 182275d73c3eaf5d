package symbols

import (
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"tern/internal/ast"
	"tern/internal/diag"
	"tern/internal/token"
	"tern/internal/types"
)

// Table is the hierarchical scope and symbol store shared by every phase
// of the analysis. Scopes are entered and exited in stack order; exited
// scopes stay reachable by id.
type Table struct {
	reg     *types.Registry
	symbols []*Symbol
	scopes  []*Scope
	current ScopeID
	onExit  []func(ScopeID)
}

// NewTable returns a table whose current scope is a fresh global scope.
func NewTable(reg *types.Registry) *Table {
	t := &Table{reg: reg}
	t.scopes = append(t.scopes, &Scope{
		ID:     0,
		Kind:   GlobalScope,
		Parent: NoScope,
		Owner:  NoSymbol,
		names:  make(map[string]SymbolID),
	})
	return t
}

func (t *Table) Registry() *types.Registry { return t.reg }

// ----- Scope stack -----

func (t *Table) Current() ScopeID { return t.current }

func (t *Table) CurrentScope() *Scope { return t.scopes[t.current] }

func (t *Table) Scope(id ScopeID) *Scope {
	if id < 0 || int(id) >= len(t.scopes) {
		return nil
	}
	return t.scopes[id]
}

func (t *Table) Scopes() []*Scope { return t.scopes }

// EnterScope pushes a new child of the current scope and makes it current.
func (t *Table) EnterScope(kind ScopeKind) ScopeID {
	parent := t.scopes[t.current]
	s := &Scope{
		ID:     ScopeID(len(t.scopes)),
		Kind:   kind,
		Parent: parent.ID,
		Depth:  parent.Depth + 1,
		Owner:  NoSymbol,
		names:  make(map[string]SymbolID),
	}
	t.scopes = append(t.scopes, s)
	parent.Children = append(parent.Children, s.ID)
	t.current = s.ID
	return s.ID
}

// Reenter makes an existing child of the current scope current again.
// Later passes use it to walk back into module, structure and trait scopes
// created by the declaration pass.
func (t *Table) Reenter(id ScopeID) error {
	s := t.Scope(id)
	if s == nil {
		return diag.Errorf(diag.InvalidScope, token.Position{}, "scope %d does not exist", id)
	}
	if s.Parent != t.current {
		return diag.Errorf(diag.InvalidScope, token.Position{},
			"scope %d is not a child of the current scope %d", id, t.current)
	}
	t.current = id
	return nil
}

// ExitScope pops the current scope and runs the exit hooks for it.
func (t *Table) ExitScope() (ScopeID, error) {
	s := t.scopes[t.current]
	if s.Parent == NoScope {
		return NoScope, diag.Errorf(diag.InvalidScope, token.Position{}, "cannot exit the global scope")
	}
	t.current = s.Parent
	for _, fn := range t.onExit {
		fn(s.ID)
	}
	return s.ID, nil
}

// OnExit registers fn to run every time a scope is exited.
func (t *Table) OnExit(fn func(ScopeID)) {
	t.onExit = append(t.onExit, fn)
}

// Within reports whether inner is outer or nested somewhere below it.
func (t *Table) Within(inner, outer ScopeID) bool {
	for id := inner; id != NoScope; id = t.scopes[id].Parent {
		if id == outer {
			return true
		}
	}
	return false
}

// Nearest walks from the current scope toward the root and returns the first
// scope of kind want. The walk gives up at any scope whose kind is in stop.
func (t *Table) Nearest(want ScopeKind, stop ...ScopeKind) (*Scope, bool) {
	for id := t.current; id != NoScope; id = t.scopes[id].Parent {
		s := t.scopes[id]
		if s.Kind == want {
			return s, true
		}
		if slices.Contains(stop, s.Kind) {
			return nil, false
		}
	}
	return nil, false
}

// ----- Declarations -----

func (t *Table) Symbol(id SymbolID) *Symbol {
	if id < 0 || int(id) >= len(t.symbols) {
		return nil
	}
	return t.symbols[id]
}

func (t *Table) Symbols() []*Symbol { return t.symbols }

// Declare adds name to the current scope. Only the current scope is checked
// for duplicates; shadowing an outer name is allowed.
func (t *Table) Declare(name string, kind Kind, pos token.Position) (SymbolID, error) {
	return t.DeclareIn(t.current, name, kind, pos)
}

// DeclareWithType is Declare plus an attached type and mutability flag.
func (t *Table) DeclareWithType(name string, kind Kind, pos token.Position, typ types.Type, mutable bool) (SymbolID, error) {
	id, err := t.Declare(name, kind, pos)
	if err != nil {
		return id, err
	}
	sym := t.symbols[id]
	sym.Type = typ
	sym.Mutable = mutable
	return id, nil
}

// DeclareIn adds name to an arbitrary scope.
func (t *Table) DeclareIn(scope ScopeID, name string, kind Kind, pos token.Position) (SymbolID, error) {
	s := t.Scope(scope)
	if s == nil {
		return NoSymbol, diag.Errorf(diag.Internal, pos, "scope %d not found", scope)
	}
	if prev, ok := s.names[name]; ok {
		p := t.symbols[prev]
		return prev, diag.Errorf(diag.AlreadyDeclared, pos, "%q already declared in this scope", name).
			WithNote("previous declaration of %s %q at %s", p.Kind, p.Name, p.Pos)
	}
	sym := &Symbol{
		ID:      SymbolID(len(t.symbols)),
		Name:    name,
		Kind:    kind,
		Scope:   scope,
		Pos:     pos,
		Members: NoScope,
		AliasOf: NoSymbol,
	}
	t.symbols = append(t.symbols, sym)
	s.names[name] = sym.ID
	return sym.ID, nil
}

// DeclareAlias binds name in scope to a copy of target, as done by use
// declarations. The target is marked used.
func (t *Table) DeclareAlias(scope ScopeID, name string, target SymbolID, pos token.Position) (SymbolID, error) {
	tgt := t.Symbol(target)
	if tgt == nil {
		return NoSymbol, diag.Errorf(diag.Internal, pos, "symbol %d not found", target)
	}
	id, err := t.DeclareIn(scope, name, tgt.Kind, pos)
	if err != nil {
		return id, err
	}
	sym := t.symbols[id]
	sym.Type = tgt.Type
	sym.Members = tgt.Members
	sym.Generics = tgt.Generics
	sym.Mutable = tgt.Mutable
	sym.Initialized = tgt.Initialized
	sym.Decl = tgt.Decl
	sym.AliasOf = target
	tgt.Used = true
	return id, nil
}

// SetType attaches typ to a symbol. A symbol that already has a type keeps
// it unless typ unifies with it, in which case the unified type is stored.
func (t *Table) SetType(id SymbolID, typ types.Type, pos token.Position) error {
	sym := t.Symbol(id)
	if sym == nil {
		return diag.Errorf(diag.Internal, pos, "symbol %d not found", id)
	}
	if sym.Type == nil || types.IsInvalid(sym.Type) {
		sym.Type = typ
		return nil
	}
	unified, err := t.reg.Unify(sym.Type, typ)
	if err != nil {
		return diag.Errorf(diag.TypeMismatch, pos, "cannot change the type of %q from %s to %s",
			sym.Name, t.reg.Resolve(sym.Type), t.reg.Resolve(typ))
	}
	sym.Type = unified
	return nil
}

// ----- Lookup -----

// Lookup returns the innermost symbol called name visible from the current scope.
func (t *Table) Lookup(name string) (SymbolID, error) {
	return t.LookupFrom(t.current, name, token.Position{})
}

// LookupAt is Lookup with a position for the NotFound diagnostic.
func (t *Table) LookupAt(name string, pos token.Position) (SymbolID, error) {
	return t.LookupFrom(t.current, name, pos)
}

// LookupFrom walks parent links starting at scope.
func (t *Table) LookupFrom(scope ScopeID, name string, pos token.Position) (SymbolID, error) {
	for id := scope; id != NoScope; id = t.scopes[id].Parent {
		if sym, ok := t.scopes[id].names[name]; ok {
			return sym, nil
		}
	}
	err := diag.Errorf(diag.NotFound, pos, "cannot find %q in this scope", name)
	if s := t.suggest(scope, name); s != "" {
		err.WithNote("did you mean %q?", s)
	}
	return NoSymbol, err
}

// LookupInScope searches a single scope.
func (t *Table) LookupInScope(name string, scope ScopeID) (SymbolID, bool) {
	s := t.Scope(scope)
	if s == nil {
		return NoSymbol, false
	}
	id, ok := s.names[name]
	return id, ok
}

// Names returns the names declared directly in scope, sorted.
func (t *Table) Names(scope ScopeID) []string {
	s := t.Scope(scope)
	if s == nil {
		return nil
	}
	names := maps.Keys(s.names)
	slices.Sort(names)
	return names
}

// suggest returns the closest name visible from scope, if any is close enough.
func (t *Table) suggest(scope ScopeID, name string) string {
	var visible []string
	for id := scope; id != NoScope; id = t.scopes[id].Parent {
		visible = append(visible, t.Names(id)...)
	}
	return closest(visible, name)
}

// ResolveQualifiedName resolves a.b.c from the current scope.
func (t *Table) ResolveQualifiedName(path []string, pos token.Position) (SymbolID, error) {
	return t.ResolveQualifiedNameFrom(t.current, path, pos)
}

// ResolveQualifiedNameFrom resolves path as seen from scope. Every segment but
// the last must name a module, structure, class, trait or enumeration; the
// walk continues in that symbol's member scope. Private members are only
// reachable from inside their container.
func (t *Table) ResolveQualifiedNameFrom(scope ScopeID, path []string, pos token.Position) (SymbolID, error) {
	if len(path) == 0 {
		return NoSymbol, diag.Errorf(diag.NotFound, pos, "empty path")
	}
	cur, err := t.LookupFrom(scope, path[0], pos)
	if err != nil {
		return NoSymbol, err
	}
	for i, seg := range path[1:] {
		container := t.symbols[cur]
		if !container.Kind.IsContainer() {
			return NoSymbol, diag.Errorf(diag.InvalidScope, pos,
				"%s %q has no members; cannot resolve %q", container.Kind, strings.Join(path[:i+1], "."), seg)
		}
		member, ok := t.LookupInScope(seg, container.Members)
		if !ok {
			err := diag.Errorf(diag.NotFound, pos, "%s %q has no member %q",
				container.Kind, strings.Join(path[:i+1], "."), seg)
			if s := closest(t.Names(container.Members), seg); s != "" {
				err.WithNote("did you mean %q?", s)
			}
			return NoSymbol, err
		}
		m := t.symbols[member]
		if m.Visibility != ast.Public && m.Kind != Variant && !t.Within(scope, container.Members) {
			return NoSymbol, diag.Errorf(diag.InvalidVisibility, pos,
				"%s %q is private to %s %q", m.Kind, m.Name, container.Kind, container.Name).
				WithNote("declared at %s", m.Pos)
		}
		cur = member
	}
	return cur, nil
}

// closest picks the first candidate with the smallest edit distance to name.
// Short names only accept a single edit.
func closest(names []string, name string) string {
	limit := 2
	if len(name) <= 3 {
		limit = 1
	}
	best, bestDist := "", limit+1
	for _, cand := range names {
		if d := levenshtein.ComputeDistance(name, cand); d > 0 && d < bestDist {
			best, bestDist = cand, d
		}
	}
	return best
}

// ----- Imports -----

// AddImport records a use declaration on the current scope.
func (t *Table) AddImport(imp Import) {
	s := t.scopes[t.current]
	s.Imports = append(s.Imports, imp)
}

// PendingImport pairs an import with the scope that declared it.
type PendingImport struct {
	Scope  ScopeID
	Import Import
}

// PendingImports returns every unresolved import in scope order and clears
// them from their scopes.
func (t *Table) PendingImports() []PendingImport {
	var out []PendingImport
	for _, s := range t.scopes {
		for _, imp := range s.Imports {
			out = append(out, PendingImport{Scope: s.ID, Import: imp})
		}
		s.Imports = nil
	}
	return out
}
