package semantic

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"

	"tern/internal/ast"
	"tern/internal/diag"
	"tern/internal/symbols"
	"tern/internal/token"
	"tern/internal/types"
)

var line int

func at() token.Position {
	line++
	return token.Position{Line: line, Column: 1}
}

func ident(name string) *ast.Ident { return &ast.Ident{Name: name, NamePos: at()} }
func num(v int64) *ast.IntLit     { return &ast.IntLit{Value: v, LitPos: at()} }
func boolean(v bool) *ast.BoolLit { return &ast.BoolLit{Value: v, LitPos: at()} }
func typ(path ...string) ast.TypeNode {
	return &ast.NamedType{Path: path, NamePos: at()}
}

func bin(op token.Kind, l, r ast.Expr) *ast.BinaryExpr {
	return &ast.BinaryExpr{Op: op, OpPos: at(), Left: l, Right: r}
}

func call(callee ast.Expr, args ...ast.Expr) *ast.CallExpr {
	return &ast.CallExpr{Callee: callee, LParen: at(), Args: args}
}

func path(segs ...string) *ast.PathExpr { return &ast.PathExpr{Segments: segs, PathPos: at()} }

func let(name string, tn ast.TypeNode, v ast.Expr) *ast.VarDecl {
	return &ast.VarDecl{LetPos: at(), Name: name, NamePos: at(), Type: tn, Value: v}
}

func param(name string, tn ast.TypeNode) *ast.Param {
	return &ast.Param{Name: name, NamePos: at(), Type: tn}
}

func fn(name string, params []*ast.Param, result ast.TypeNode, body ...ast.Node) *ast.FuncDecl {
	return &ast.FuncDecl{FnPos: at(), Name: name, NamePos: at(), Params: params, Result: result, Body: body}
}

func ret(v ast.Expr) *ast.ReturnStmt { return &ast.ReturnStmt{ReturnPos: at(), Value: v} }

func block(body ...ast.Node) *ast.BlockStmt { return &ast.BlockStmt{LBrace: at(), Body: body} }

func analyze(t *testing.T, cfg Config, nodes ...ast.Node) (*Analyzer, error) {
	t.Helper()
	a := NewWithConfig(cfg, zaptest.NewLogger(t))
	return a, a.Analyze(nodes)
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

func symbolType(t *testing.T, a *Analyzer, name string) types.Type {
	t.Helper()
	id, err := a.Table().Lookup(name)
	require.NoError(t, err)
	return a.Registry().Resolve(a.Table().Symbol(id).Type)
}

// ----- End to end -----

func TestAnalyzeTypedLets(t *testing.T) {
	a, err := analyze(t, DefaultConfig(),
		let("x", typ("int"), num(5)),
		let("y", typ("int"), num(10)),
		let("z", typ("int"), bin(token.Plus, ident("x"), ident("y"))),
	)
	require.NoError(t, err)
	assert.Equal(t, types.Int, symbolType(t, a, "z"))
}

func TestAnalyzeFunctionAndCall(t *testing.T) {
	add := fn("add", []*ast.Param{param("a", typ("int")), param("b", typ("int"))}, typ("int"),
		ret(bin(token.Plus, ident("a"), ident("b"))))
	a, err := analyze(t, DefaultConfig(),
		add,
		let("r", typ("int"), call(ident("add"), num(5), num(10))),
	)
	require.NoError(t, err)

	want := a.Registry().NewFunc([]types.Type{types.Int, types.Int}, types.Int)
	assert.Equal(t, want, symbolType(t, a, "add"))
	assert.Equal(t, "fn(int, int) -> int", symbolType(t, a, "add").String())
}

func TestAnalyzeAnnotationMismatch(t *testing.T) {
	a, err := analyze(t, DefaultConfig(), let("x", typ("int"), boolean(true)))
	require.Error(t, err)
	assert.Equal(t, []diag.Code{diag.TypeMismatch}, codes(err))
	assert.Equal(t, 1, a.Stats().ErrorCount)
}

func TestAnalyzeRedeclaration(t *testing.T) {
	_, err := analyze(t, DefaultConfig(),
		let("x", nil, num(5)),
		let("x", nil, num(6)),
	)
	assert.Equal(t, []diag.Code{diag.AlreadyDeclared}, codes(err))

	// A nested block may shadow.
	_, err = analyze(t, DefaultConfig(),
		let("x", nil, num(5)),
		block(let("x", nil, num(6))),
	)
	require.NoError(t, err)
}

func TestAnalyzeForwardReference(t *testing.T) {
	a, err := analyze(t, DefaultConfig(),
		let("r", typ("int"), call(ident("twice"), num(2))),
		fn("twice", []*ast.Param{param("n", typ("int"))}, typ("int"),
			ret(bin(token.Star, ident("n"), num(2)))),
	)
	require.NoError(t, err)
	assert.Equal(t, types.Int, symbolType(t, a, "r"))
}

func TestAnalyzeGlobalReadFromFunction(t *testing.T) {
	_, err := analyze(t, DefaultConfig(),
		let("limit", nil, num(3)),
		fn("get", nil, typ("int"), ret(ident("limit"))),
	)
	require.NoError(t, err)
}

func TestAnalyzeReturnOutsideFunction(t *testing.T) {
	_, err := analyze(t, DefaultConfig(), ret(num(1)))
	assert.Equal(t, []diag.Code{diag.InvalidScope}, codes(err))
}

func TestAnalyzeBorrowConflictInFunction(t *testing.T) {
	mutX := let("x", nil, num(1))
	mutX.Mutable = true
	body := []ast.Node{
		mutX,
		let("r", nil, &ast.UnaryExpr{Op: token.Amp, OpPos: at(), X: ident("x")}),
		&ast.ExprStmt{X: bin(token.Assign, ident("x"), num(2))},
	}
	_, err := analyze(t, DefaultConfig(), fn("main", nil, nil, body...))
	assert.Equal(t, []diag.Code{diag.MutableBorrowWithImmutableBorrows}, codes(err))
}

func TestAnalyzeParametersAreImmutable(t *testing.T) {
	_, err := analyze(t, DefaultConfig(),
		fn("bump", []*ast.Param{param("n", typ("int"))}, nil,
			&ast.ExprStmt{X: bin(token.Assign, ident("n"), num(2))}),
	)
	assert.Equal(t, []diag.Code{diag.ImmutableWrite}, codes(err))
}

func TestAnalyzeNestedFunction(t *testing.T) {
	inner := fn("inner", nil, typ("int"), ret(num(1)))
	_, err := analyze(t, DefaultConfig(),
		fn("main", nil, nil,
			inner,
			let("v", typ("int"), call(ident("inner"))),
			let("w", typ("bool"), call(ident("inner"))),
		),
	)
	assert.Equal(t, []diag.Code{diag.TypeMismatch}, codes(err))
}

// ----- Modules and imports -----

func geometry() *ast.ModuleDecl {
	area := fn("area", []*ast.Param{param("w", typ("int")), param("h", typ("int"))}, typ("int"),
		ret(bin(token.Star, ident("w"), ident("h"))))
	area.Visibility = ast.Public
	secret := fn("secret", nil, typ("int"), ret(num(1)))
	return &ast.ModuleDecl{ModPos: at(), Name: "geometry", NamePos: at(), Body: []ast.Node{area, secret}}
}

func TestAnalyzeModulePaths(t *testing.T) {
	_, err := analyze(t, DefaultConfig(),
		geometry(),
		let("a", typ("int"), call(path("geometry", "area"), num(2), num(3))),
	)
	require.NoError(t, err)

	_, err = analyze(t, DefaultConfig(),
		geometry(),
		let("b", typ("int"), call(path("geometry", "secret"))),
	)
	assert.Equal(t, []diag.Code{diag.InvalidVisibility}, codes(err))
}

func TestAnalyzeImports(t *testing.T) {
	a, err := analyze(t, DefaultConfig(),
		&ast.UseDecl{UsePos: at(), Path: []string{"geometry", "area"}, Alias: "surface"},
		let("a", typ("int"), call(ident("surface"), num(2), num(3))),
		geometry(),
	)
	require.NoError(t, err)
	id, err := a.Table().Lookup("surface")
	require.NoError(t, err)
	assert.NotEqual(t, symbols.NoSymbol, a.Table().Symbol(id).AliasOf)

	_, err = analyze(t, DefaultConfig(),
		&ast.UseDecl{UsePos: at(), Path: []string{"geometry", "volume"}},
		geometry(),
	)
	require.Equal(t, []diag.Code{diag.ImportError}, codes(err))
	d, _ := diag.As(err)
	require.Len(t, d.Notes, 1)
	assert.Contains(t, d.Notes[0], "no member")
}

// ----- Types, traits and implementations -----

func TestAnalyzeStructsAndEnums(t *testing.T) {
	point := &ast.StructDecl{StructPos: at(), Name: "Point", NamePos: at(), Fields: []*ast.FieldDecl{
		{Name: "x", NamePos: at(), Type: typ("int")},
		{Name: "y", NamePos: at(), Type: typ("int")},
	}}
	shape := &ast.EnumDecl{EnumPos: at(), Name: "Shape", NamePos: at(), Variants: []*ast.VariantDecl{
		{Name: "Circle", NamePos: at(), Type: typ("float")},
		{Name: "Dot", NamePos: at()},
	}}
	lit := &ast.StructLit{TypeName: "Point", TypeNamePos: at(), Fields: []*ast.FieldInit{
		{Name: "x", NamePos: at(), Value: num(1)},
		{Name: "y", NamePos: at(), Value: num(2)},
	}}
	a, err := analyze(t, DefaultConfig(),
		// Used before declared.
		let("p", typ("Point"), lit),
		let("s", typ("Shape"), path("Shape", "Dot")),
		let("c", typ("Shape"), call(path("Shape", "Circle"), &ast.FloatLit{Value: 1.5, LitPos: at()})),
		point,
		shape,
	)
	require.NoError(t, err)
	assert.Equal(t, "Point", symbolType(t, a, "p").String())
	assert.Equal(t, "Shape", symbolType(t, a, "c").String())
}

func TestAnalyzeLocalTypeIsDistinct(t *testing.T) {
	outer := &ast.StructDecl{StructPos: at(), Name: "Point", NamePos: at(), Fields: []*ast.FieldDecl{
		{Name: "x", NamePos: at(), Type: typ("int")},
	}}
	inner := &ast.StructDecl{StructPos: at(), Name: "Point", NamePos: at(), Fields: []*ast.FieldDecl{
		{Name: "y", NamePos: at(), Type: typ("bool")},
	}}
	local := &ast.StructLit{TypeName: "Point", TypeNamePos: at(), Fields: []*ast.FieldInit{
		{Name: "y", NamePos: at(), Value: boolean(true)},
	}}
	a, err := analyze(t, DefaultConfig(),
		outer,
		fn("make", nil, typ("Point"), inner, ret(local)),
	)
	require.Equal(t, []diag.Code{diag.TypeMismatch}, codes(err))
	d, _ := diag.As(err)
	assert.Contains(t, d.Msg, "expected Point, found make#")

	id, lerr := a.Table().Lookup("Point")
	require.NoError(t, lerr)
	owner, ok := a.owner(a.Table().Symbol(id).Type)
	require.True(t, ok)
	assert.Same(t, ast.Node(outer), owner.Decl)
}

func TestAnalyzeUnknownFieldType(t *testing.T) {
	_, err := analyze(t, DefaultConfig(), &ast.StructDecl{StructPos: at(), Name: "Box", NamePos: at(),
		Fields: []*ast.FieldDecl{{Name: "v", NamePos: at(), Type: typ("Missing")}}})
	assert.Equal(t, []diag.Code{diag.TypeNotFound}, codes(err))
}

func TestAnalyzeQualifiedTypes(t *testing.T) {
	shapes := &ast.ModuleDecl{ModPos: at(), Name: "shapes", NamePos: at(), Body: []ast.Node{
		&ast.StructDecl{StructPos: at(), Name: "Square", NamePos: at(), Visibility: ast.Public,
			Fields: []*ast.FieldDecl{{Name: "side", NamePos: at(), Type: typ("int"), Visibility: ast.Public}}},
	}}
	a, err := analyze(t, DefaultConfig(),
		shapes,
		fn("side", []*ast.Param{param("s", typ("shapes", "Square"))}, nil),
	)
	require.NoError(t, err)
	assert.Equal(t, "fn(shapes.Square) -> ()", symbolType(t, a, "side").String())
}

func traitShape() *ast.TraitDecl {
	return &ast.TraitDecl{TraitPos: at(), Name: "Measured", NamePos: at(), Methods: []*ast.FuncDecl{
		{FnPos: at(), Name: "size", NamePos: at(), Result: typ("int")},
	}}
}

func square() *ast.StructDecl {
	return &ast.StructDecl{StructPos: at(), Name: "Square", NamePos: at(), Fields: []*ast.FieldDecl{
		{Name: "side", NamePos: at(), Type: typ("int")},
	}}
}

func TestAnalyzeTraitImplementation(t *testing.T) {
	impl := &ast.ImplDecl{ImplPos: at(), Trait: []string{"Measured"}, Target: typ("Square"),
		Methods: []*ast.FuncDecl{fn("size", nil, typ("int"), ret(num(4)))}}
	_, err := analyze(t, DefaultConfig(), traitShape(), square(), impl)
	require.NoError(t, err)
}

func TestAnalyzeIncompleteImplementation(t *testing.T) {
	impl := &ast.ImplDecl{ImplPos: at(), Trait: []string{"Measured"}, Target: typ("Square"),
		Methods: []*ast.FuncDecl{fn("perimeter", nil, typ("int"), ret(num(16)))}}
	_, err := analyze(t, DefaultConfig(), traitShape(), square(), impl)
	require.Equal(t, []diag.Code{diag.InvalidType, diag.InvalidType}, codes(err))
	errs := multierr.Errors(err)
	assert.Contains(t, errs[0].Error(), `missing method "size" required by trait "Measured"`)
	assert.Contains(t, errs[1].Error(), `method "perimeter" is not a member of trait "Measured"`)
}

func TestAnalyzeImplOfNonTrait(t *testing.T) {
	impl := &ast.ImplDecl{ImplPos: at(), Trait: []string{"Square"}, Target: typ("Square")}
	_, err := analyze(t, DefaultConfig(), square(), impl)
	assert.Equal(t, []diag.Code{diag.InvalidType}, codes(err))
}

func TestAnalyzeInherentMethods(t *testing.T) {
	unit := fn("unit", nil, typ("Square"), ret(&ast.StructLit{TypeName: "Square", TypeNamePos: at(),
		Fields: []*ast.FieldInit{{Name: "side", NamePos: at(), Value: num(1)}}}))
	unit.Visibility = ast.Public
	impl := &ast.ImplDecl{ImplPos: at(), Target: typ("Square"), Methods: []*ast.FuncDecl{
		unit,
		fn("me", nil, typ("Square"), ret(ident("self"))),
	}}
	a, err := analyze(t, DefaultConfig(),
		square(),
		impl,
		let("u", nil, call(path("Square", "unit"))),
	)
	require.NoError(t, err)
	assert.Equal(t, "Square", symbolType(t, a, "u").String())
}

func TestAnalyzeClassMethods(t *testing.T) {
	counter := &ast.ClassDecl{ClassPos: at(), Name: "Counter", NamePos: at(),
		Fields:  []*ast.FieldDecl{{Name: "n", NamePos: at(), Type: typ("int")}},
		Methods: []*ast.FuncDecl{fn("get", nil, typ("Counter"), ret(ident("self")))},
	}
	_, err := analyze(t, DefaultConfig(), counter)
	require.NoError(t, err)
}

// ----- Validation and configuration -----

func TestAnalyzeUnusedWarnings(t *testing.T) {
	a, err := analyze(t, DefaultConfig(),
		let("unused", nil, num(1)),
		let("_ignored", nil, num(2)),
		fn("main", nil, nil),
	)
	require.NoError(t, err)
	require.Len(t, a.Warnings(), 1)
	w := a.Warnings()[0]
	assert.Equal(t, diag.UnusedSymbol, w.Code)
	assert.True(t, w.IsWarning())
	assert.Contains(t, w.Msg, `"unused"`)

	a, err = analyze(t, Config{}, let("unused", nil, num(1)))
	require.NoError(t, err)
	assert.Empty(t, a.Warnings())
}

func TestAnalyzeWarningsAsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WarningsAsErrors = true
	a, err := analyze(t, cfg, let("unused", nil, num(1)))
	assert.Equal(t, []diag.Code{diag.UnusedSymbol}, codes(err))
	assert.Empty(t, a.Warnings())
}

func TestAnalyzeMaxErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxErrors = 2
	a, err := analyze(t, cfg,
		let("a", typ("int"), boolean(true)),
		let("b", typ("int"), boolean(true)),
		let("c", typ("int"), boolean(true)),
	)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Equal(t, 1, a.Truncated())
}

func TestAnalyzeBadNodesAreSkipped(t *testing.T) {
	_, err := analyze(t, Config{}, &ast.BadNode{From: at(), Msg: "garbage"}, let("x", nil, num(1)))
	require.NoError(t, err)
}

func TestAnalyzeResetsBetweenRuns(t *testing.T) {
	a := NewWithConfig(Config{}, zaptest.NewLogger(t))
	nodes := []ast.Node{let("x", nil, num(1))}
	require.NoError(t, a.Analyze(nodes))
	first := a.Stats()
	require.NoError(t, a.Analyze(nodes))
	assert.Equal(t, first, a.Stats())
	assert.Equal(t, 0, first.ErrorCount)
	assert.Greater(t, first.TotalTypes, 0)
	assert.GreaterOrEqual(t, first.TotalScopes, 1)
}

func TestAnalyzeErrorsCarryPositions(t *testing.T) {
	bad := let("x", typ("int"), boolean(true))
	_, err := analyze(t, Config{}, bad)
	d, ok := diag.As(err)
	require.True(t, ok)
	assert.Equal(t, bad.Value.Pos(), d.Pos)
	assert.True(t, strings.HasPrefix(d.Error(), bad.Value.Pos().String()))
}
