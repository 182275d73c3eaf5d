package symbols

import (
	"fmt"

	"tern/internal/ast"
	"tern/internal/token"
	"tern/internal/types"
)

type SymbolID int

type ScopeID int

const (
	NoSymbol SymbolID = -1
	NoScope  ScopeID  = -1
)

// ----- Symbols -----

type Kind int

const (
	Variable Kind = iota
	Parameter
	Function
	Structure
	Class
	Enumeration
	Variant
	Field
	Trait
	Implementation
	Module
	Constant
	Generic
)

var kindNames = [...]string{
	Variable:       "variable",
	Parameter:      "parameter",
	Function:       "function",
	Structure:      "structure",
	Class:          "class",
	Enumeration:    "enumeration",
	Variant:        "variant",
	Field:          "field",
	Trait:          "trait",
	Implementation: "implementation",
	Module:         "module",
	Constant:       "constant",
	Generic:        "generic",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsContainer reports whether a qualified path may continue through a
// symbol of this kind.
func (k Kind) IsContainer() bool {
	switch k {
	case Module, Structure, Class, Trait, Enumeration:
		return true
	}
	return false
}

// IsValue reports whether a symbol of this kind denotes a runtime value.
func (k Kind) IsValue() bool {
	switch k {
	case Variable, Parameter, Function, Constant, Variant:
		return true
	}
	return false
}

// Symbol is a declared name. Its attribute set is updated in place as the
// analysis learns more; symbols are never removed from the table.
type Symbol struct {
	ID         SymbolID
	Name       string
	Kind       Kind
	Scope      ScopeID
	Visibility ast.Visibility
	Pos        token.Position

	Mutable     bool
	Initialized bool
	Used        bool
	Type        types.Type // nil until known

	// Members is the scope holding module items, fields, variants or trait
	// methods. NoScope for symbols without members.
	Members ScopeID
	// Generics lists the type parameters of a generic function or structure.
	Generics []*types.Var
	// AliasOf is the imported symbol when this one was declared by a use.
	AliasOf SymbolID
	Decl    ast.Node
}

func (s *Symbol) String() string {
	if s.Type == nil {
		return fmt.Sprintf("%s %s", s.Kind, s.Name)
	}
	return fmt.Sprintf("%s %s: %s", s.Kind, s.Name, s.Type)
}

// ----- Scopes -----

type ScopeKind int

const (
	GlobalScope ScopeKind = iota
	ModuleScope
	FunctionScope
	BlockScope
	LoopScope
	TraitScope
	StructureScope
	ImplementationScope
)

var scopeKindNames = [...]string{
	GlobalScope:         "global",
	ModuleScope:         "module",
	FunctionScope:       "function",
	BlockScope:          "block",
	LoopScope:           "loop",
	TraitScope:          "trait",
	StructureScope:      "structure",
	ImplementationScope: "implementation",
}

func (k ScopeKind) String() string {
	if k >= 0 && int(k) < len(scopeKindNames) {
		return scopeKindNames[k]
	}
	return fmt.Sprintf("ScopeKind(%d)", int(k))
}

// Import is a use declaration waiting to be resolved.
type Import struct {
	Path  []string
	Alias string
	Pos   token.Position
}

// Name is the name the import binds: the alias, or the last path segment.
func (i Import) Name() string {
	if i.Alias != "" {
		return i.Alias
	}
	if len(i.Path) == 0 {
		return ""
	}
	return i.Path[len(i.Path)-1]
}

type Scope struct {
	ID       ScopeID
	Kind     ScopeKind
	Parent   ScopeID
	Children []ScopeID
	Depth    int
	Imports  []Import
	// Owner is the symbol whose members live here, or NoSymbol.
	Owner SymbolID

	names map[string]SymbolID
}

// Len returns the number of names declared directly in s.
func (s *Scope) Len() int { return len(s.names) }
