package ast

import "tern/internal/token"

// Basic interfaces

type Node interface {
	Pos() token.Position
}

type Decl interface {
	Node
	declNode()
}

type Stmt interface {
	Node
	stmtNode()
}

type Expr interface {
	Node
	exprNode()
}

type TypeNode interface {
	Node
	typeNode()
}

type Pattern interface {
	Node
	patternNode()
}

type Visibility int

const (
	Private Visibility = iota
	Public
)

func (v Visibility) String() string {
	if v == Public {
		return "pub"
	}
	return "private"
}

// BadNode stands in for a region the parser could not make sense of.
// The analyzer skips it without reporting anything.
type BadNode struct {
	From token.Position
	Msg  string
}

func (b *BadNode) Pos() token.Position { return b.From }

// ---------- Declarations ----------

type VarDecl struct {
	LetPos  token.Position
	Name    string
	NamePos token.Position
	Type    TypeNode // nil when the type is inferred
	Value   Expr     // nil when declared without initializer
	Mutable bool
}

func (d *VarDecl) Pos() token.Position { return d.LetPos }
func (d *VarDecl) declNode()           {}

type ConstDecl struct {
	ConstPos   token.Position
	Name       string
	NamePos    token.Position
	Type       TypeNode
	Value      Expr
	Visibility Visibility
}

func (d *ConstDecl) Pos() token.Position { return d.ConstPos }
func (d *ConstDecl) declNode()           {}

type TypeParam struct {
	Name    string
	NamePos token.Position
}

func (p *TypeParam) Pos() token.Position { return p.NamePos }

type Param struct {
	Name    string
	NamePos token.Position
	Type    TypeNode
	Mutable bool
}

func (p *Param) Pos() token.Position { return p.NamePos }

// FuncDecl is a function, a method inside an impl/class, or a method
// signature inside a trait (Body is ignored there).
type FuncDecl struct {
	FnPos      token.Position
	Name       string
	NamePos    token.Position
	TypeParams []*TypeParam
	Params     []*Param
	Result     TypeNode // nil means unit
	Body       []Node
	Visibility Visibility
}

func (d *FuncDecl) Pos() token.Position { return d.FnPos }
func (d *FuncDecl) declNode()           {}

type FieldDecl struct {
	Name       string
	NamePos    token.Position
	Type       TypeNode
	Visibility Visibility
}

func (f *FieldDecl) Pos() token.Position { return f.NamePos }

type StructDecl struct {
	StructPos  token.Position
	Name       string
	NamePos    token.Position
	TypeParams []*TypeParam
	Fields     []*FieldDecl
	Visibility Visibility
}

func (d *StructDecl) Pos() token.Position { return d.StructPos }
func (d *StructDecl) declNode()           {}

// ClassDecl is a structure that carries its methods inline.
type ClassDecl struct {
	ClassPos   token.Position
	Name       string
	NamePos    token.Position
	Fields     []*FieldDecl
	Methods    []*FuncDecl
	Visibility Visibility
}

func (d *ClassDecl) Pos() token.Position { return d.ClassPos }
func (d *ClassDecl) declNode()           {}

type VariantDecl struct {
	Name       string
	NamePos    token.Position
	Type       TypeNode // payload; nil for a bare variant
	Visibility Visibility
}

func (v *VariantDecl) Pos() token.Position { return v.NamePos }

type EnumDecl struct {
	EnumPos    token.Position
	Name       string
	NamePos    token.Position
	Variants   []*VariantDecl
	Visibility Visibility
}

func (d *EnumDecl) Pos() token.Position { return d.EnumPos }
func (d *EnumDecl) declNode()           {}

type TraitDecl struct {
	TraitPos   token.Position
	Name       string
	NamePos    token.Position
	Methods    []*FuncDecl
	Visibility Visibility
}

func (d *TraitDecl) Pos() token.Position { return d.TraitPos }
func (d *TraitDecl) declNode()           {}

// ImplDecl attaches methods to Target, optionally satisfying Trait.
type ImplDecl struct {
	ImplPos token.Position
	Trait   []string // nil for an inherent impl
	Target  TypeNode
	Methods []*FuncDecl
}

func (d *ImplDecl) Pos() token.Position { return d.ImplPos }
func (d *ImplDecl) declNode()           {}

type ModuleDecl struct {
	ModPos     token.Position
	Name       string
	NamePos    token.Position
	Body       []Node
	Visibility Visibility
}

func (d *ModuleDecl) Pos() token.Position { return d.ModPos }
func (d *ModuleDecl) declNode()           {}

// UseDecl imports Path into the enclosing scope as Alias (last segment if empty).
type UseDecl struct {
	UsePos token.Position
	Path   []string
	Alias  string
}

func (d *UseDecl) Pos() token.Position { return d.UsePos }
func (d *UseDecl) declNode()           {}

// ---------- Statements ----------

type ExprStmt struct {
	X Expr
}

func (s *ExprStmt) Pos() token.Position { return s.X.Pos() }
func (s *ExprStmt) stmtNode()           {}

type ReturnStmt struct {
	ReturnPos token.Position
	Value     Expr // may be nil
}

func (s *ReturnStmt) Pos() token.Position { return s.ReturnPos }
func (s *ReturnStmt) stmtNode()           {}

type IfStmt struct {
	IfPos token.Position
	Cond  Expr
	Then  []Node
	Else  []Node // nil when absent
}

func (s *IfStmt) Pos() token.Position { return s.IfPos }
func (s *IfStmt) stmtNode()           {}

type WhileStmt struct {
	WhilePos token.Position
	Cond     Expr
	Body     []Node
}

func (s *WhileStmt) Pos() token.Position { return s.WhilePos }
func (s *WhileStmt) stmtNode()           {}

type ForStmt struct {
	ForPos token.Position
	Var    string
	VarPos token.Position
	Iter   Expr
	Body   []Node
}

func (s *ForStmt) Pos() token.Position { return s.ForPos }
func (s *ForStmt) stmtNode()           {}

type LoopStmt struct {
	LoopPos token.Position
	Body    []Node
}

func (s *LoopStmt) Pos() token.Position { return s.LoopPos }
func (s *LoopStmt) stmtNode()           {}

type BreakStmt struct {
	BreakPos token.Position
}

func (s *BreakStmt) Pos() token.Position { return s.BreakPos }
func (s *BreakStmt) stmtNode()           {}

type ContinueStmt struct {
	ContinuePos token.Position
}

func (s *ContinueStmt) Pos() token.Position { return s.ContinuePos }
func (s *ContinueStmt) stmtNode()           {}

type MatchArm struct {
	Pattern Pattern
	Guard   Expr // may be nil
	Body    []Node
}

func (a *MatchArm) Pos() token.Position { return a.Pattern.Pos() }

type MatchStmt struct {
	MatchPos  token.Position
	Scrutinee Expr
	Arms      []*MatchArm
}

func (s *MatchStmt) Pos() token.Position { return s.MatchPos }
func (s *MatchStmt) stmtNode()           {}

type BlockStmt struct {
	LBrace token.Position
	Body   []Node
}

func (s *BlockStmt) Pos() token.Position { return s.LBrace }
func (s *BlockStmt) stmtNode()           {}

// ---------- Expressions ----------

type Ident struct {
	Name    string
	NamePos token.Position
}

func (e *Ident) Pos() token.Position { return e.NamePos }
func (e *Ident) exprNode()           {}

type IntLit struct {
	Value  int64
	LitPos token.Position
	Raw    string
}

func (e *IntLit) Pos() token.Position { return e.LitPos }
func (e *IntLit) exprNode()           {}

type FloatLit struct {
	Value  float64
	LitPos token.Position
	Raw    string
}

func (e *FloatLit) Pos() token.Position { return e.LitPos }
func (e *FloatLit) exprNode()           {}

type BoolLit struct {
	Value  bool
	LitPos token.Position
}

func (e *BoolLit) Pos() token.Position { return e.LitPos }
func (e *BoolLit) exprNode()           {}

type CharLit struct {
	Value  rune
	LitPos token.Position
}

func (e *CharLit) Pos() token.Position { return e.LitPos }
func (e *CharLit) exprNode()           {}

type StringLit struct {
	Value  string
	LitPos token.Position
}

func (e *StringLit) Pos() token.Position { return e.LitPos }
func (e *StringLit) exprNode()           {}

// UnitLit is the empty tuple ().
type UnitLit struct {
	LitPos token.Position
}

func (e *UnitLit) Pos() token.Position { return e.LitPos }
func (e *UnitLit) exprNode()           {}

type BinaryExpr struct {
	OpPos token.Position
	Op    token.Kind
	Left  Expr
	Right Expr
}

func (e *BinaryExpr) Pos() token.Position { return e.OpPos }
func (e *BinaryExpr) exprNode()           {}

type UnaryExpr struct {
	OpPos token.Position
	Op    token.Kind
	X     Expr
}

func (e *UnaryExpr) Pos() token.Position { return e.OpPos }
func (e *UnaryExpr) exprNode()           {}

type CallExpr struct {
	Callee Expr
	LParen token.Position
	Args   []Expr
}

func (e *CallExpr) Pos() token.Position { return e.Callee.Pos() }
func (e *CallExpr) exprNode()           {}

type MethodCallExpr struct {
	Receiver Expr
	Name     string
	NamePos  token.Position
	Args     []Expr
}

func (e *MethodCallExpr) Pos() token.Position { return e.NamePos }
func (e *MethodCallExpr) exprNode()           {}

type MemberExpr struct {
	X       Expr
	Name    string
	NamePos token.Position
}

func (e *MemberExpr) Pos() token.Position { return e.NamePos }
func (e *MemberExpr) exprNode()           {}

// PathExpr is a qualified name such as geometry.origin or Color.Red.
type PathExpr struct {
	Segments []string
	PathPos  token.Position
}

func (e *PathExpr) Pos() token.Position { return e.PathPos }
func (e *PathExpr) exprNode()           {}

type IndexExpr struct {
	X        Expr
	LBracket token.Position
	Index    Expr
}

func (e *IndexExpr) Pos() token.Position { return e.LBracket }
func (e *IndexExpr) exprNode()           {}

type ArrayLit struct {
	LBracket token.Position
	Elems    []Expr
}

func (e *ArrayLit) Pos() token.Position { return e.LBracket }
func (e *ArrayLit) exprNode()           {}

type TupleLit struct {
	LParen token.Position
	Elems  []Expr
}

func (e *TupleLit) Pos() token.Position { return e.LParen }
func (e *TupleLit) exprNode()           {}

type FieldInit struct {
	Name    string
	NamePos token.Position
	Value   Expr
}

func (f *FieldInit) Pos() token.Position { return f.NamePos }

type StructLit struct {
	TypeName    string
	TypeNamePos token.Position
	Fields      []*FieldInit
}

func (e *StructLit) Pos() token.Position { return e.TypeNamePos }
func (e *StructLit) exprNode()           {}

type CastExpr struct {
	X     Expr
	AsPos token.Position
	Type  TypeNode
}

func (e *CastExpr) Pos() token.Position { return e.AsPos }
func (e *CastExpr) exprNode()           {}

// ---------- Types ----------

// NamedType covers primitive names (int, float, ...), user types and
// qualified paths (geometry.Point), with optional type arguments.
type NamedType struct {
	Path    []string
	NamePos token.Position
	Args    []TypeNode
}

func (t *NamedType) Pos() token.Position { return t.NamePos }
func (t *NamedType) typeNode()           {}

type ArrayType struct {
	LBracket token.Position
	Elem     TypeNode
	Len      int
	Sized    bool
}

func (t *ArrayType) Pos() token.Position { return t.LBracket }
func (t *ArrayType) typeNode()           {}

type TupleType struct {
	LParen token.Position
	Elems  []TypeNode
}

func (t *TupleType) Pos() token.Position { return t.LParen }
func (t *TupleType) typeNode()           {}

type FuncType struct {
	FnPos  token.Position
	Params []TypeNode
	Result TypeNode
}

func (t *FuncType) Pos() token.Position { return t.FnPos }
func (t *FuncType) typeNode()           {}

type RefType struct {
	AmpPos   token.Position
	Inner    TypeNode
	Mutable  bool
	Lifetime string
}

func (t *RefType) Pos() token.Position { return t.AmpPos }
func (t *RefType) typeNode()           {}

// ---------- Patterns ----------

type WildcardPattern struct {
	UnderscorePos token.Position
}

func (p *WildcardPattern) Pos() token.Position { return p.UnderscorePos }
func (p *WildcardPattern) patternNode()        {}

type LiteralPattern struct {
	Value Expr
}

func (p *LiteralPattern) Pos() token.Position { return p.Value.Pos() }
func (p *LiteralPattern) patternNode()        {}

type BindingPattern struct {
	Name    string
	NamePos token.Position
	Mutable bool
}

func (p *BindingPattern) Pos() token.Position { return p.NamePos }
func (p *BindingPattern) patternNode()        {}

type TuplePattern struct {
	LParen token.Position
	Elems  []Pattern
}

func (p *TuplePattern) Pos() token.Position { return p.LParen }
func (p *TuplePattern) patternNode()        {}

// VariantPattern matches an enum variant, e.g. Shape.Circle(r).
type VariantPattern struct {
	Path    []string
	PathPos token.Position
	Elems   []Pattern
}

func (p *VariantPattern) Pos() token.Position { return p.PathPos }
func (p *VariantPattern) patternNode()        {}
