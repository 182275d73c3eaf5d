package checker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"

	"tern/internal/ast"
	"tern/internal/borrow"
	"tern/internal/diag"
	"tern/internal/symbols"
	"tern/internal/token"
	"tern/internal/types"
)

// ----- Tree helpers -----

var line int

// at hands out increasing positions so that every node is distinct.
func at() token.Position {
	line++
	return token.Position{Line: line, Column: 1}
}

func ident(name string) *ast.Ident  { return &ast.Ident{Name: name, NamePos: at()} }
func num(v int64) *ast.IntLit      { return &ast.IntLit{Value: v, LitPos: at()} }
func flt(v float64) *ast.FloatLit  { return &ast.FloatLit{Value: v, LitPos: at()} }
func boolean(v bool) *ast.BoolLit  { return &ast.BoolLit{Value: v, LitPos: at()} }
func str(v string) *ast.StringLit  { return &ast.StringLit{Value: v, LitPos: at()} }
func typ(name string) ast.TypeNode { return &ast.NamedType{Path: []string{name}, NamePos: at()} }

func bin(op token.Kind, l, r ast.Expr) *ast.BinaryExpr {
	return &ast.BinaryExpr{Op: op, OpPos: at(), Left: l, Right: r}
}

func unary(op token.Kind, x ast.Expr) *ast.UnaryExpr {
	return &ast.UnaryExpr{Op: op, OpPos: at(), X: x}
}

func assign(name string, v ast.Expr) *ast.ExprStmt {
	return &ast.ExprStmt{X: bin(token.Assign, ident(name), v)}
}

func call(name string, args ...ast.Expr) *ast.CallExpr {
	return &ast.CallExpr{Callee: ident(name), LParen: at(), Args: args}
}

func let(name string, v ast.Expr) *ast.VarDecl {
	return &ast.VarDecl{LetPos: at(), Name: name, NamePos: at(), Value: v}
}

func letMut(name string, v ast.Expr) *ast.VarDecl {
	d := let(name, v)
	d.Mutable = true
	return d
}

func letTyped(name string, tn ast.TypeNode, v ast.Expr) *ast.VarDecl {
	d := let(name, v)
	d.Type = tn
	return d
}

// ----- Fixture -----

type fixture struct {
	reg     *types.Registry
	table   *symbols.Table
	borrows *borrow.Checker
	c       *Checker
}

// newFixture opens a function scope returning unit, as if checking the body
// of main.
func newFixture(t *testing.T) *fixture {
	reg := types.NewRegistry()
	table := symbols.NewTable(reg)
	borrows := borrow.NewChecker(zaptest.NewLogger(t))
	table.OnExit(func(id symbols.ScopeID) { borrows.ReleaseScope(id) })
	c := New(reg, table, borrows, zaptest.NewLogger(t))
	table.EnterScope(symbols.FunctionScope)
	c.results = append(c.results, types.Unit)
	return &fixture{reg: reg, table: table, borrows: borrows, c: c}
}

func (f *fixture) typeOf(t *testing.T, name string) types.Type {
	t.Helper()
	id, err := f.table.Lookup(name)
	require.NoError(t, err)
	return f.reg.Resolve(f.table.Symbol(id).Type)
}

func (f *fixture) declareFunc(t *testing.T, name string, sig *types.Func, generics ...*types.Var) {
	t.Helper()
	id, err := f.table.DeclareWithType(name, symbols.Function, at(), sig, false)
	require.NoError(t, err)
	f.table.Symbol(id).Generics = generics
}

// declareValue adds an initialized variable of type typ.
func (f *fixture) declareValue(t *testing.T, name string, typ types.Type, mutable bool) {
	t.Helper()
	_, err := f.c.declareLocal(name, symbols.Variable, at(), typ, mutable, true, nil)
	require.NoError(t, err)
}

func codes(err error) []diag.Code {
	var out []diag.Code
	for _, e := range multierr.Errors(err) {
		if d, ok := diag.As(e); ok {
			out = append(out, d.Code)
		} else {
			out = append(out, diag.Internal)
		}
	}
	return out
}

func requireOnly(t *testing.T, err error, code diag.Code) *diag.Error {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, []diag.Code{code}, codes(err), err.Error())
	d, _ := diag.As(err)
	return d
}

// ----- Inference -----

func TestInferLiterals(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.c.CheckBody([]ast.Node{
		let("a", num(1)),
		let("b", bin(token.Plus, num(1), flt(2.5))),
		let("c", bin(token.Plus, str("x"), str("y"))),
		let("d", bin(token.Lt, ident("a"), ident("b"))),
		let("e", bin(token.AndAnd, ident("d"), unary(token.Bang, boolean(false)))),
		let("r", bin(token.DotDot, num(0), num(10))),
		let("t", &ast.TupleLit{LParen: at(), Elems: []ast.Expr{num(1), boolean(true)}}),
		let("u", &ast.MemberExpr{X: ident("t"), Name: "1", NamePos: at()}),
		let("arr", &ast.ArrayLit{LBracket: at(), Elems: []ast.Expr{num(1), num(2), num(3)}}),
		let("el", &ast.IndexExpr{X: ident("arr"), LBracket: at(), Index: num(0)}),
		let("cast", &ast.CastExpr{X: ident("a"), AsPos: at(), Type: typ("float")}),
	}))

	assert.Equal(t, types.Int, f.typeOf(t, "a"))
	assert.Equal(t, types.Float, f.typeOf(t, "b"))
	assert.Equal(t, types.String, f.typeOf(t, "c"))
	assert.Equal(t, types.Bool, f.typeOf(t, "d"))
	assert.Equal(t, types.Bool, f.typeOf(t, "e"))
	assert.Equal(t, "Range<int>", f.typeOf(t, "r").String())
	assert.Equal(t, "(int, bool)", f.typeOf(t, "t").String())
	assert.Equal(t, types.Bool, f.typeOf(t, "u"))
	assert.Equal(t, "[int; 3]", f.typeOf(t, "arr").String())
	assert.Equal(t, types.Int, f.typeOf(t, "el"))
	assert.Equal(t, types.Float, f.typeOf(t, "cast"))
}

func TestDeclarationMismatch(t *testing.T) {
	f := newFixture(t)
	err := f.c.CheckStmt(letTyped("x", typ("int"), boolean(true)))
	d := requireOnly(t, err, diag.TypeMismatch)
	assert.Contains(t, d.Msg, `declaration of "x"`)
	assert.Contains(t, d.Msg, "expected int, found bool")

	// The binding exists afterwards with its declared type.
	assert.Equal(t, types.Int, f.typeOf(t, "x"))

	// An int initializer widens to a float annotation.
	require.NoError(t, f.c.CheckStmt(letTyped("y", typ("float"), num(1))))
}

func TestOperatorMismatch(t *testing.T) {
	f := newFixture(t)
	d := requireOnly(t, f.c.CheckStmt(let("x", bin(token.Plus, num(1), boolean(true)))), diag.TypeMismatch)
	assert.Equal(t, "operator + cannot be applied to int and bool", d.Msg)

	requireOnly(t, f.c.CheckStmt(let("y", bin(token.AndAnd, num(1), boolean(true)))), diag.TypeMismatch)
	requireOnly(t, f.c.CheckStmt(let("z", &ast.CastExpr{X: str("s"), AsPos: at(), Type: typ("int")})), diag.TypeMismatch)
	requireOnly(t, f.c.CheckStmt(let("w", unary(token.Deref, num(1)))), diag.TypeMismatch)
}

func TestUndefinedNameSuggestion(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.c.CheckStmt(let("count", num(1))))

	d := requireOnly(t, f.c.CheckStmt(let("x", ident("cuont"))), diag.NotFound)
	assert.Equal(t, []string{`did you mean "count"?`}, d.Notes)

	// Unknown annotations are reported as missing types.
	requireOnly(t, f.c.CheckStmt(letTyped("y", typ("Widget"), num(1))), diag.TypeNotFound)
}

func TestMissingTypeAndInitializer(t *testing.T) {
	f := newFixture(t)
	requireOnly(t, f.c.CheckStmt(&ast.VarDecl{LetPos: at(), Name: "x", NamePos: at()}), diag.UndefinedType)
}

// ----- Initialization and mutability -----

func TestDeferredInitialization(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.c.CheckBody([]ast.Node{
		letTyped("x", typ("int"), nil),
		assign("x", num(1)),
		let("y", ident("x")),
	}))

	requireOnly(t, f.c.CheckBody([]ast.Node{
		letTyped("z", typ("int"), nil),
		let("w", ident("z")),
	}), diag.UninitializedVariable)

	// A second assignment to an immutable binding is rejected.
	requireOnly(t, f.c.CheckStmt(assign("x", num(2))), diag.ImmutableWrite)
}

func TestAssignToImmutable(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.c.CheckStmt(let("x", num(1))))
	d := requireOnly(t, f.c.CheckStmt(assign("x", num(2))), diag.ImmutableWrite)
	assert.Contains(t, d.Msg, `"x"`)

	require.NoError(t, f.c.CheckStmt(letMut("y", num(1))))
	require.NoError(t, f.c.CheckStmt(assign("y", num(2))))
	requireOnly(t, f.c.CheckStmt(assign("y", boolean(true))), diag.TypeMismatch)
}

func TestBranchInitialization(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.c.CheckBody([]ast.Node{
		letTyped("y", typ("int"), nil),
		&ast.IfStmt{IfPos: at(), Cond: boolean(true),
			Then: []ast.Node{assign("y", num(1))},
			Else: []ast.Node{assign("y", num(2))},
		},
		let("z", ident("y")),
	}))

	requireOnly(t, f.c.CheckBody([]ast.Node{
		letTyped("v", typ("int"), nil),
		&ast.IfStmt{IfPos: at(), Cond: boolean(true), Then: []ast.Node{assign("v", num(1))}},
		let("w", ident("v")),
	}), diag.UninitializedVariable)
}

func TestConditionMustBeBool(t *testing.T) {
	f := newFixture(t)
	d := requireOnly(t, f.c.CheckStmt(&ast.IfStmt{IfPos: at(), Cond: num(1)}), diag.TypeMismatch)
	assert.Contains(t, d.Msg, "if condition")

	requireOnly(t, f.c.CheckStmt(&ast.WhileStmt{WhilePos: at(), Cond: str("s")}), diag.TypeMismatch)
}

// ----- Borrows and moves -----

func TestSharedBorrowBlocksWrite(t *testing.T) {
	f := newFixture(t)
	err := f.c.CheckBody([]ast.Node{
		letMut("x", num(1)),
		let("r", unary(token.Amp, ident("x"))),
		assign("x", num(2)),
	})
	requireOnly(t, err, diag.MutableBorrowWithImmutableBorrows)
	assert.Equal(t, "&int", f.typeOf(t, "r").String())
}

func TestMutableBorrowIsExclusive(t *testing.T) {
	f := newFixture(t)
	requireOnly(t, f.c.CheckBody([]ast.Node{
		letMut("x", num(1)),
		let("m", unary(token.AmpMut, ident("x"))),
		let("s", unary(token.Amp, ident("x"))),
	}), diag.MutableBorrowWithImmutableBorrows)

	requireOnly(t, f.c.CheckStmt(let("m2", unary(token.AmpMut, ident("x")))), diag.MultipleMutableBorrows)
}

func TestBorrowEndsWithScope(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.c.CheckBody([]ast.Node{
		letMut("x", num(1)),
		&ast.BlockStmt{LBrace: at(), Body: []ast.Node{
			let("r", unary(token.Amp, ident("x"))),
		}},
		assign("x", num(2)),
	}))
}

func TestArgumentBorrowsEndWithStatement(t *testing.T) {
	f := newFixture(t)
	f.declareFunc(t, "bump", f.reg.NewFunc([]types.Type{f.reg.NewReference(types.Int, true, "")}, nil))
	require.NoError(t, f.c.CheckBody([]ast.Node{
		letMut("x", num(1)),
		&ast.ExprStmt{X: call("bump", unary(token.AmpMut, ident("x")))},
		&ast.ExprStmt{X: call("bump", unary(token.AmpMut, ident("x")))},
		let("y", ident("x")),
	}))
	assert.Empty(t, f.borrows.Validate())
}

func TestMutableBorrowOfImmutable(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.c.CheckStmt(let("x", num(1))))
	requireOnly(t, f.c.CheckStmt(let("m", unary(token.AmpMut, ident("x")))), diag.ImmutableWrite)
}

func TestWriteThroughSharedReference(t *testing.T) {
	f := newFixture(t)
	err := f.c.CheckBody([]ast.Node{
		letMut("x", num(1)),
		let("r", unary(token.Amp, ident("x"))),
		&ast.ExprStmt{X: bin(token.Assign, unary(token.Deref, ident("r")), num(2))},
	})
	requireOnly(t, err, diag.ImmutableWrite)
}

func TestMoveOfNonCopyValue(t *testing.T) {
	f := newFixture(t)
	f.declareValue(t, "p", f.reg.NewNamed("Point", nil), false)
	err := f.c.CheckBody([]ast.Node{
		let("q", ident("p")),
		let("r", ident("p")),
	})
	d := requireOnly(t, err, diag.UseAfterMove)
	require.Len(t, d.Notes, 1)
	assert.Contains(t, d.Notes[0], "value moved at")

	// Copy types are never moved.
	require.NoError(t, f.c.CheckBody([]ast.Node{
		let("a", num(1)),
		let("b", ident("a")),
		let("c", ident("a")),
	}))
}

func TestMoveInOneBranch(t *testing.T) {
	f := newFixture(t)
	f.declareValue(t, "p", f.reg.NewNamed("Point", nil), false)
	requireOnly(t, f.c.CheckBody([]ast.Node{
		&ast.IfStmt{IfPos: at(), Cond: boolean(true), Then: []ast.Node{let("q", ident("p"))}},
		let("r", ident("p")),
	}), diag.UseAfterMove)
}

// ----- Calls and generics -----

func TestCallArity(t *testing.T) {
	f := newFixture(t)
	f.declareFunc(t, "inc", f.reg.NewFunc([]types.Type{types.Int}, types.Int))

	d := requireOnly(t, f.c.CheckStmt(let("x", call("inc", num(1), num(2)))), diag.TypeMismatch)
	assert.Equal(t, `"inc" expects 1 arguments, got 2`, d.Msg)

	d = requireOnly(t, f.c.CheckStmt(let("y", call("inc", str("s")))), diag.TypeMismatch)
	assert.Contains(t, d.Msg, `argument 1 of "inc"`)

	require.NoError(t, f.c.CheckStmt(let("z", call("inc", num(1)))))
	assert.Equal(t, types.Int, f.typeOf(t, "z"))

	requireOnly(t, f.c.CheckStmt(let("w", call("z"))), diag.TypeMismatch)
}

func TestGenericInstantiation(t *testing.T) {
	f := newFixture(t)
	tp := f.reg.NewRigidVar("T")
	f.declareFunc(t, "identity", f.reg.NewFunc([]types.Type{tp}, tp), tp)

	require.NoError(t, f.c.CheckBody([]ast.Node{
		let("a", call("identity", num(1))),
		let("b", call("identity", boolean(true))),
	}))
	assert.Equal(t, types.Int, f.typeOf(t, "a"))
	assert.Equal(t, types.Bool, f.typeOf(t, "b"))
}

func TestRigidParameterIsOpaque(t *testing.T) {
	f := newFixture(t)
	tp := f.reg.NewRigidVar("T")
	f.declareValue(t, "x", tp, false)
	requireOnly(t, f.c.CheckStmt(letTyped("y", typ("int"), ident("x"))), diag.TypeMismatch)
}

func TestRecursiveUnification(t *testing.T) {
	f := newFixture(t)
	v := f.reg.NewVar("")
	err := f.c.expect(v, f.reg.NewArray(v, types.Unsized), token.Position{Line: 9, Column: 3}, "test")
	d := requireOnly(t, err, diag.RecursiveType)
	assert.Equal(t, 9, d.Pos.Line)
}

func TestEmptyArrayLiteral(t *testing.T) {
	f := newFixture(t)
	empty := func() *ast.ArrayLit { return &ast.ArrayLit{LBracket: at()} }
	arrayOf := func(elem string) ast.TypeNode { return &ast.ArrayType{LBracket: at(), Elem: typ(elem)} }

	require.NoError(t, f.c.CheckStmt(letTyped("xs", arrayOf("int"), empty())))
	assert.Equal(t, "[int]", f.typeOf(t, "xs").String())

	f.declareFunc(t, "sum", f.reg.NewFunc([]types.Type{f.reg.NewArray(types.Int, types.Unsized)}, types.Int))
	require.NoError(t, f.c.CheckStmt(let("s", call("sum", empty()))))
	assert.Equal(t, types.Int, f.typeOf(t, "s"))

	// Without a context the element type stays open.
	require.NoError(t, f.c.CheckStmt(let("open", empty())))
	assert.True(t, f.reg.HasFreeVars(f.typeOf(t, "open")))

	requireOnly(t, f.c.CheckStmt(letTyped("bs", arrayOf("bool"),
		&ast.ArrayLit{LBracket: at(), Elems: []ast.Expr{num(1)}})), diag.TypeMismatch)
}

func TestGenericReferenceWidening(t *testing.T) {
	f := newFixture(t)
	tp := f.reg.NewRigidVar("T")
	f.declareFunc(t, "peek", f.reg.NewFunc([]types.Type{f.reg.NewReference(tp, false, "")}, tp), tp)

	require.NoError(t, f.c.CheckBody([]ast.Node{
		letMut("x", num(1)),
		let("v", call("peek", unary(token.AmpMut, ident("x")))),
	}))
	assert.Equal(t, types.Int, f.typeOf(t, "v"))

	// A shared reference never stands in for a mutable one.
	up := f.reg.NewRigidVar("U")
	f.declareFunc(t, "poke", f.reg.NewFunc([]types.Type{f.reg.NewReference(up, true, "")}, nil), up)
	d := requireOnly(t, f.c.CheckStmt(&ast.ExprStmt{X: call("poke", unary(token.Amp, ident("x")))}), diag.TypeMismatch)
	assert.Contains(t, d.Msg, `argument 1 of "poke"`)
}

func TestFailedLiteralStillChecksValues(t *testing.T) {
	f := newFixture(t)
	err := f.c.CheckStmt(let("p", &ast.StructLit{TypeName: "Nope", TypeNamePos: at(), Fields: []*ast.FieldInit{
		{Name: "a", NamePos: at(), Value: ident("missing")},
	}}))
	assert.Equal(t, []diag.Code{diag.TypeNotFound, diag.NotFound}, codes(err))
}

// ----- Control flow -----

func TestReturnType(t *testing.T) {
	f := newFixture(t)
	f.c.results[0] = types.Int
	require.NoError(t, f.c.CheckStmt(&ast.ReturnStmt{ReturnPos: at(), Value: num(1)}))
	d := requireOnly(t, f.c.CheckStmt(&ast.ReturnStmt{ReturnPos: at(), Value: boolean(true)}), diag.TypeMismatch)
	assert.Contains(t, d.Msg, "return value")
	requireOnly(t, f.c.CheckStmt(&ast.ReturnStmt{ReturnPos: at()}), diag.TypeMismatch)

	f.c.results = nil
	requireOnly(t, f.c.CheckStmt(&ast.ReturnStmt{ReturnPos: at()}), diag.InvalidScope)

	// The returned value is still checked.
	err := f.c.CheckStmt(&ast.ReturnStmt{ReturnPos: at(), Value: ident("undefined")})
	assert.Equal(t, []diag.Code{diag.InvalidScope, diag.NotFound}, codes(err))
}

func TestBreakOutsideLoop(t *testing.T) {
	f := newFixture(t)
	requireOnly(t, f.c.CheckStmt(&ast.BreakStmt{BreakPos: at()}), diag.InvalidScope)
	requireOnly(t, f.c.CheckStmt(&ast.ContinueStmt{ContinuePos: at()}), diag.InvalidScope)

	require.NoError(t, f.c.CheckStmt(&ast.WhileStmt{WhilePos: at(), Cond: boolean(true), Body: []ast.Node{
		&ast.IfStmt{IfPos: at(), Cond: boolean(true), Then: []ast.Node{&ast.BreakStmt{BreakPos: at()}}},
		&ast.ContinueStmt{ContinuePos: at()},
	}}))
	require.NoError(t, f.c.CheckStmt(&ast.LoopStmt{LoopPos: at(), Body: []ast.Node{&ast.BreakStmt{BreakPos: at()}}}))
}

func TestForLoops(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.c.CheckStmt(&ast.ForStmt{
		ForPos: at(), Var: "i", VarPos: at(),
		Iter: bin(token.DotDot, num(0), num(10)),
		Body: []ast.Node{letTyped("j", typ("int"), ident("i"))},
	}))

	require.NoError(t, f.c.CheckStmt(let("xs", &ast.ArrayLit{LBracket: at(), Elems: []ast.Expr{str("a")}})))
	require.NoError(t, f.c.CheckStmt(&ast.ForStmt{
		ForPos: at(), Var: "s", VarPos: at(), Iter: ident("xs"),
		Body: []ast.Node{letTyped("t", typ("string"), ident("s"))},
	}))

	requireOnly(t, f.c.CheckStmt(&ast.ForStmt{ForPos: at(), Var: "k", VarPos: at(), Iter: num(3)}), diag.TypeMismatch)

	// The loop variable does not leak.
	_, err := f.table.Lookup("i")
	assert.True(t, diag.Is(err, diag.NotFound))
}

// ----- Patterns -----

func TestMatchVariants(t *testing.T) {
	f := newFixture(t)
	shape := f.reg.NewNamed("Shape", nil)
	_, err := f.table.DeclareWithType("Circle", symbols.Variant, at(), f.reg.NewFunc([]types.Type{types.Float}, shape), false)
	require.NoError(t, err)
	_, err = f.table.DeclareWithType("Dot", symbols.Variant, at(), shape, false)
	require.NoError(t, err)
	f.declareValue(t, "s", shape, false)

	match := func(arms ...*ast.MatchArm) *ast.MatchStmt {
		return &ast.MatchStmt{MatchPos: at(), Scrutinee: ident("s"), Arms: arms}
	}
	variant := func(name string, elems ...ast.Pattern) ast.Pattern {
		return &ast.VariantPattern{Path: []string{name}, PathPos: at(), Elems: elems}
	}
	bind := func(name string) ast.Pattern { return &ast.BindingPattern{Name: name, NamePos: at()} }

	require.NoError(t, f.c.CheckStmt(match(
		&ast.MatchArm{Pattern: variant("Circle", bind("r")), Body: []ast.Node{letTyped("area", typ("float"), ident("r"))}},
		&ast.MatchArm{Pattern: variant("Dot")},
		&ast.MatchArm{Pattern: &ast.WildcardPattern{UnderscorePos: at()}},
	)))

	d := requireOnly(t, f.c.CheckStmt(match(&ast.MatchArm{Pattern: variant("Dot", bind("x"))})), diag.InvalidType)
	assert.Contains(t, d.Msg, "no payload")

	requireOnly(t, f.c.CheckStmt(match(&ast.MatchArm{Pattern: &ast.LiteralPattern{Value: num(1)}})), diag.TypeMismatch)

	requireOnly(t, f.c.CheckStmt(match(&ast.MatchArm{
		Pattern: variant("Dot"),
		Guard:   num(1),
	})), diag.TypeMismatch)
}

func TestTuplePattern(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.c.CheckStmt(let("pair", &ast.TupleLit{LParen: at(), Elems: []ast.Expr{num(1), str("one")}})))

	pat := &ast.TuplePattern{LParen: at(), Elems: []ast.Pattern{
		&ast.BindingPattern{Name: "n", NamePos: at()},
		&ast.BindingPattern{Name: "s", NamePos: at()},
	}}
	require.NoError(t, f.c.CheckStmt(&ast.MatchStmt{MatchPos: at(), Scrutinee: ident("pair"), Arms: []*ast.MatchArm{{
		Pattern: pat,
		Body: []ast.Node{
			letTyped("a", typ("int"), ident("n")),
			letTyped("b", typ("string"), ident("s")),
		},
	}}}))

	short := &ast.TuplePattern{LParen: at(), Elems: []ast.Pattern{&ast.WildcardPattern{UnderscorePos: at()}}}
	requireOnly(t, f.c.CheckStmt(&ast.MatchStmt{MatchPos: at(), Scrutinee: ident("pair"), Arms: []*ast.MatchArm{{Pattern: short}}}),
		diag.TypeMismatch)
}

// ----- Structures -----

func TestStructLiteral(t *testing.T) {
	f := newFixture(t)
	id, err := f.table.DeclareWithType("Point", symbols.Structure, at(), f.reg.NewNamed("Point", nil), false)
	require.NoError(t, err)
	point := f.table.Symbol(id)
	point.Members = f.table.EnterScope(symbols.StructureScope)
	for _, name := range []string{"x", "y"} {
		_, err := f.table.DeclareWithType(name, symbols.Field, at(), types.Int, false)
		require.NoError(t, err)
	}
	_, err = f.table.ExitScope()
	require.NoError(t, err)

	lit := func(fields ...*ast.FieldInit) *ast.StructLit {
		return &ast.StructLit{TypeName: "Point", TypeNamePos: at(), Fields: fields}
	}
	field := func(name string, v ast.Expr) *ast.FieldInit {
		return &ast.FieldInit{Name: name, NamePos: at(), Value: v}
	}

	require.NoError(t, f.c.CheckStmt(let("p", lit(field("x", num(1)), field("y", num(2))))))
	assert.Equal(t, "Point", f.typeOf(t, "p").String())

	d := requireOnly(t, f.c.CheckStmt(let("q", lit(field("x", num(1))))), diag.InvalidType)
	assert.Contains(t, d.Msg, `missing field "y"`)

	requireOnly(t, f.c.CheckStmt(let("r", lit(field("x", num(1)), field("y", boolean(true))))), diag.TypeMismatch)
	requireOnly(t, f.c.CheckStmt(let("s", lit(field("x", num(1)), field("y", num(2)), field("z", num(3))))), diag.NotFound)
	requireOnly(t, f.c.CheckStmt(let("u", lit(field("x", num(1)), field("x", num(1)), field("y", num(2))))), diag.AlreadyDeclared)

	// Values of nominal types move.
	require.NoError(t, f.c.CheckStmt(let("moved", ident("p"))))
	requireOnly(t, f.c.CheckStmt(let("again", ident("p"))), diag.UseAfterMove)
}

func TestNestedDeclarationWithoutVisitor(t *testing.T) {
	f := newFixture(t)
	requireOnly(t, f.c.CheckStmt(&ast.FuncDecl{FnPos: at(), Name: "inner", NamePos: at()}), diag.InvalidScope)
}
