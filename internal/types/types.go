package types

import (
	"fmt"
	"strconv"
	"strings"
)

// ID identifies a registered type. Structurally identical types share an ID.
type ID uint32

type Type interface {
	String() string
	ID() ID
	typ()
}

// Basic types

type BasicKind int

const (
	BasicInvalid BasicKind = iota
	BasicInt
	BasicFloat
	BasicBool
	BasicChar
	BasicString
	BasicUnit
	BasicNever
)

type Basic struct {
	Kind BasicKind
	Name string
}

func (b *Basic) String() string { return b.Name }
func (b *Basic) ID() ID         { return ID(b.Kind) }
func (b *Basic) typ()           {}

// The basic types are shared by every registry and always occupy the first IDs.
// Invalid is the poison type produced after an error has been reported.
var (
	Invalid = &Basic{Kind: BasicInvalid, Name: "error"}
	Int     = &Basic{Kind: BasicInt, Name: "int"}
	Float   = &Basic{Kind: BasicFloat, Name: "float"}
	Bool    = &Basic{Kind: BasicBool, Name: "bool"}
	Char    = &Basic{Kind: BasicChar, Name: "char"}
	String  = &Basic{Kind: BasicString, Name: "string"}
	Unit    = &Basic{Kind: BasicUnit, Name: "()"}
	Never   = &Basic{Kind: BasicNever, Name: "never"}
)

var basics = []*Basic{Invalid, Int, Float, Bool, Char, String, Unit, Never}

var builtinNames = map[string]*Basic{
	"int":    Int,
	"float":  Float,
	"bool":   Bool,
	"char":   Char,
	"string": String,
	"unit":   Unit,
	"never":  Never,
}

// LookupBuiltin maps a primitive type name to its Basic type.
func LookupBuiltin(name string) (*Basic, bool) {
	b, ok := builtinNames[name]
	return b, ok
}

func IsInvalid(t Type) bool { return t == Invalid }

// Arrays

// Unsized is the Len of an array whose length was not declared.
const Unsized = -1

type Array struct {
	id   ID
	Elem Type
	Len  int
}

func (a *Array) String() string {
	if a.Len == Unsized {
		return "[" + a.Elem.String() + "]"
	}
	return fmt.Sprintf("[%s; %d]", a.Elem, a.Len)
}
func (a *Array) ID() ID { return a.id }
func (a *Array) typ()   {}

// Tuples

type Tuple struct {
	id    ID
	Elems []Type
}

func (t *Tuple) String() string {
	return "(" + joinTypes(t.Elems) + ")"
}
func (t *Tuple) ID() ID { return t.id }
func (t *Tuple) typ()   {}

// Functions

// Func - function type: fn(T1, T2, ...) -> R
type Func struct {
	id     ID
	Params []Type
	Result Type
}

func (f *Func) String() string {
	return "fn(" + joinTypes(f.Params) + ") -> " + f.Result.String()
}
func (f *Func) ID() ID { return f.id }
func (f *Func) typ()   {}

// References

type Reference struct {
	id       ID
	Inner    Type
	Mutable  bool
	Lifetime string
}

func (r *Reference) String() string {
	var sb strings.Builder
	sb.WriteString("&")
	if r.Lifetime != "" {
		sb.WriteString("'" + r.Lifetime + " ")
	}
	if r.Mutable {
		sb.WriteString("mut ")
	}
	sb.WriteString(r.Inner.String())
	return sb.String()
}
func (r *Reference) ID() ID { return r.id }
func (r *Reference) typ()   {}

// Named types: structures, classes, enumerations and parametrized builtins
// such as Range<int>. Named types use nominal typing.
type Named struct {
	id   ID
	Name string
	Args []Type
}

func (n *Named) String() string {
	if len(n.Args) == 0 {
		return n.Name
	}
	return n.Name + "<" + joinTypes(n.Args) + ">"
}
func (n *Named) ID() ID { return n.id }
func (n *Named) typ()   {}

// Type variables

// Var is a placeholder resolved by unification. A rigid variable stands for
// a generic parameter inside its own declaration and only unifies with
// itself or with flexible variables.
type Var struct {
	id    ID
	Hint  string
	Rigid bool
}

func (v *Var) String() string {
	if v.Hint != "" {
		return v.Hint
	}
	return "?" + strconv.Itoa(int(v.id))
}
func (v *Var) ID() ID { return v.id }
func (v *Var) typ()   {}

func joinTypes(ts []Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

// IsNumeric reports whether t is int or float.
func IsNumeric(t Type) bool {
	return t == Int || t == Float
}

// Debug helper
func DebugType(t Type) string {
	if t == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%T#%d(%s)", t, t.ID(), t.String())
}
