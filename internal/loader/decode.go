package loader

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"tern/internal/ast"
	"tern/internal/token"
)

var (
	// impl precedes trait: an implementation item carries a trait key.
	declHeads = []string{"let", "const", "fn", "struct", "class", "enum", "impl", "trait", "module", "use"}
	stmtHeads = []string{"return", "if", "while", "for", "loop", "match", "block", "expr"}
	exprHeads = []string{"op", "call", "method", "member", "index", "array", "tuple", "new", "cast", "str", "char"}
	itemHeads = concat(declHeads, stmtHeads, exprHeads)
)

func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

type decoder struct {
	file string
	errs error
}

func (d *decoder) pos(n *yaml.Node) token.Position {
	return token.Position{File: d.file, Line: n.Line, Column: n.Column}
}

func (d *decoder) errorf(n *yaml.Node, format string, args ...any) {
	d.errs = multierr.Append(d.errs, &Error{Pos: d.pos(n), Msg: fmt.Sprintf(format, args...)})
}

// ----- Mappings -----

// mapping gives keyed access to a YAML mapping and remembers which keys were
// consumed, so that misspelled keys are reported.
type mapping struct {
	node *yaml.Node
	keys []*yaml.Node
	vals map[string]*yaml.Node
	used map[string]bool
}

func (d *decoder) mapping(n *yaml.Node) *mapping {
	m := &mapping{node: n, vals: make(map[string]*yaml.Node), used: make(map[string]bool)}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if _, dup := m.vals[k.Value]; dup {
			d.errorf(k, "duplicate key %q", k.Value)
			continue
		}
		m.keys = append(m.keys, k)
		m.vals[k.Value] = v
	}
	return m
}

// head returns the first of heads that is a key of m.
func (m *mapping) head(heads []string) string {
	for _, h := range heads {
		if _, ok := m.vals[h]; ok {
			return h
		}
	}
	return ""
}

// get returns the value under key, or nil.
func (m *mapping) get(key string) *yaml.Node {
	m.used[key] = true
	return m.vals[key]
}

func (m *mapping) keyPos(d *decoder, key string) token.Position {
	for _, k := range m.keys {
		if k.Value == key {
			return d.pos(k)
		}
	}
	return d.pos(m.node)
}

// finish reports every key of m that was never asked for.
func (d *decoder) finish(m *mapping, what string) bool {
	ok := true
	for _, k := range m.keys {
		if !m.used[k.Value] {
			d.errorf(k, "unknown key %q in %s", k.Value, what)
			ok = false
		}
	}
	return ok
}

// ----- Scalars -----

func isNull(n *yaml.Node) bool {
	return n == nil || (n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null")
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}

func isIndex(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

// splitPath splits a.b.c or a::b::c into segments.
func splitPath(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "::", "."), ".")
}

func (d *decoder) name(parent *mapping, n *yaml.Node, what string) (string, bool) {
	if isNull(n) {
		d.errorf(parent.node, "missing %s", what)
		return "", false
	}
	if n.Kind != yaml.ScalarNode || !isIdent(n.Value) {
		d.errorf(n, "%s must be a name", what)
		return "", false
	}
	return n.Value, true
}

func (d *decoder) path(parent *mapping, n *yaml.Node, what string) ([]string, bool) {
	if isNull(n) {
		d.errorf(parent.node, "missing %s", what)
		return nil, false
	}
	if n.Kind != yaml.ScalarNode {
		d.errorf(n, "%s must be a path", what)
		return nil, false
	}
	segs := splitPath(n.Value)
	for _, s := range segs {
		if !isIdent(s) {
			d.errorf(n, "invalid %s %q", what, n.Value)
			return nil, false
		}
	}
	return segs, true
}

// flag decodes an optional boolean.
func (d *decoder) flag(n *yaml.Node) bool {
	if isNull(n) {
		return false
	}
	var b bool
	if err := n.Decode(&b); err != nil {
		d.errorf(n, "expected true or false")
		return false
	}
	return b
}

// modifier strips a leading keyword such as "pub" or "mut" from a key.
func modifier(key, word string) (string, bool) {
	if rest, ok := strings.CutPrefix(key, word+" "); ok {
		return strings.TrimSpace(rest), true
	}
	return key, false
}

func visibility(pub bool) ast.Visibility {
	if pub {
		return ast.Public
	}
	return ast.Private
}

func (d *decoder) typ(n *yaml.Node) ast.TypeNode {
	if n.Kind != yaml.ScalarNode || isNull(n) {
		d.errorf(n, "a type must be written as a string")
		return nil
	}
	t, err := parseType(n.Value, d.pos(n))
	if err != nil {
		d.errorf(n, "invalid type %q: %v", n.Value, err)
		return nil
	}
	return t
}

// ----- Items -----

func (d *decoder) body(n *yaml.Node) []ast.Node {
	if isNull(n) {
		return nil
	}
	if n.Kind != yaml.SequenceNode {
		d.errorf(n, "expected a list of items")
		return nil
	}
	out := make([]ast.Node, 0, len(n.Content))
	for _, item := range n.Content {
		out = append(out, d.item(item))
	}
	return out
}

func (d *decoder) item(n *yaml.Node) ast.Node {
	var out ast.Node
	switch n.Kind {
	case yaml.ScalarNode:
		out = d.scalarItem(n)
	case yaml.MappingNode:
		out = d.mappingItem(n)
	default:
		d.errorf(n, "expected a declaration, statement or expression")
	}
	if out == nil {
		return &ast.BadNode{From: d.pos(n), Msg: "malformed item"}
	}
	return out
}

func (d *decoder) scalarItem(n *yaml.Node) ast.Node {
	switch n.Value {
	case "break":
		return &ast.BreakStmt{BreakPos: d.pos(n)}
	case "continue":
		return &ast.ContinueStmt{ContinuePos: d.pos(n)}
	}
	if x := d.expr(n); x != nil {
		return &ast.ExprStmt{X: x}
	}
	return nil
}

func (d *decoder) mappingItem(n *yaml.Node) ast.Node {
	m := d.mapping(n)
	head := m.head(itemHeads)
	switch head {
	case "":
		d.errorf(n, "cannot tell what this item is")
		return nil
	case "return", "if", "while", "for", "loop", "match", "block", "expr":
		return d.stmt(m, head)
	}

	var (
		out ast.Node
		ok  bool
	)
	switch head {
	case "let":
		out, ok = d.letDecl(m)
	case "const":
		out, ok = d.constDecl(m)
	case "fn":
		out, ok = d.funcDecl(m)
	case "struct":
		out, ok = d.structDecl(m)
	case "class":
		out, ok = d.classDecl(m)
	case "enum":
		out, ok = d.enumDecl(m)
	case "impl":
		out, ok = d.implDecl(m)
	case "trait":
		out, ok = d.traitDecl(m)
	case "module":
		out, ok = d.moduleDecl(m)
	case "use":
		out, ok = d.useDecl(m)
	default:
		if x := d.exprMapping(m, head); x != nil {
			out, ok = &ast.ExprStmt{X: x}, true
		}
	}
	if !ok {
		return nil
	}
	return out
}

// ----- Declarations -----

func (d *decoder) letDecl(m *mapping) (*ast.VarDecl, bool) {
	nameNode := m.get("let")
	name, ok := d.name(m, nameNode, "variable name")
	decl := &ast.VarDecl{LetPos: m.keyPos(d, "let"), Name: name, Mutable: d.flag(m.get("mut"))}
	if ok {
		decl.NamePos = d.pos(nameNode)
	}
	if t := m.get("type"); t != nil {
		decl.Type = d.typ(t)
		ok = decl.Type != nil && ok
	}
	if v := m.get("value"); v != nil {
		decl.Value = d.expr(v)
		ok = decl.Value != nil && ok
	}
	return decl, d.finish(m, "let") && ok
}

func (d *decoder) constDecl(m *mapping) (*ast.ConstDecl, bool) {
	nameNode := m.get("const")
	name, ok := d.name(m, nameNode, "constant name")
	decl := &ast.ConstDecl{ConstPos: m.keyPos(d, "const"), Name: name, Visibility: visibility(d.flag(m.get("pub")))}
	if ok {
		decl.NamePos = d.pos(nameNode)
	}
	if t := m.get("type"); t != nil {
		decl.Type = d.typ(t)
		ok = decl.Type != nil && ok
	}
	if v := m.get("value"); v != nil {
		decl.Value = d.expr(v)
		ok = decl.Value != nil && ok
	}
	return decl, d.finish(m, "const") && ok
}

func (d *decoder) typeParams(n *yaml.Node) ([]*ast.TypeParam, bool) {
	if isNull(n) {
		return nil, true
	}
	if n.Kind != yaml.SequenceNode {
		d.errorf(n, "generics must be a list of names")
		return nil, false
	}
	ok := true
	out := make([]*ast.TypeParam, 0, len(n.Content))
	for _, g := range n.Content {
		if g.Kind != yaml.ScalarNode || !isIdent(g.Value) {
			d.errorf(g, "type parameter must be a name")
			ok = false
			continue
		}
		out = append(out, &ast.TypeParam{Name: g.Value, NamePos: d.pos(g)})
	}
	return out, ok
}

// params decodes {name: type, mut name: type, ...}.
func (d *decoder) params(n *yaml.Node) ([]*ast.Param, bool) {
	if isNull(n) {
		return nil, true
	}
	if n.Kind != yaml.MappingNode {
		d.errorf(n, "params must map names to types")
		return nil, false
	}
	ok := true
	var out []*ast.Param
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		name, mut := modifier(k.Value, "mut")
		if !isIdent(name) {
			d.errorf(k, "parameter name %q is not a name", name)
			ok = false
			continue
		}
		p := &ast.Param{Name: name, NamePos: d.pos(k), Mutable: mut}
		if !isNull(v) {
			if p.Type = d.typ(v); p.Type == nil {
				ok = false
			}
		}
		out = append(out, p)
	}
	return out, ok
}

func (d *decoder) funcDecl(m *mapping) (*ast.FuncDecl, bool) {
	nameNode := m.get("fn")
	name, ok := d.name(m, nameNode, "function name")
	decl := &ast.FuncDecl{FnPos: m.keyPos(d, "fn"), Name: name, Visibility: visibility(d.flag(m.get("pub")))}
	if ok {
		decl.NamePos = d.pos(nameNode)
	}
	var good bool
	decl.TypeParams, good = d.typeParams(m.get("generics"))
	ok = good && ok
	decl.Params, good = d.params(m.get("params"))
	ok = good && ok
	if r := m.get("returns"); !isNull(r) {
		decl.Result = d.typ(r)
		ok = decl.Result != nil && ok
	}
	// A missing body marks a trait requirement.
	if b, present := m.vals["body"]; present {
		m.used["body"] = true
		decl.Body = d.body(b)
		if decl.Body == nil {
			decl.Body = []ast.Node{}
		}
	}
	return decl, d.finish(m, "fn") && ok
}

func (d *decoder) methods(n *yaml.Node) ([]*ast.FuncDecl, bool) {
	if isNull(n) {
		return nil, true
	}
	if n.Kind != yaml.SequenceNode {
		d.errorf(n, "methods must be a list of functions")
		return nil, false
	}
	ok := true
	var out []*ast.FuncDecl
	for _, item := range n.Content {
		if item.Kind != yaml.MappingNode {
			d.errorf(item, "expected a function")
			ok = false
			continue
		}
		m := d.mapping(item)
		if m.head([]string{"fn"}) == "" {
			d.errorf(item, "expected a function")
			ok = false
			continue
		}
		f, good := d.funcDecl(m)
		if !good {
			ok = false
			continue
		}
		out = append(out, f)
	}
	return out, ok
}

// fields decodes {name: type, pub name: type, ...}.
func (d *decoder) fields(n *yaml.Node) ([]*ast.FieldDecl, bool) {
	if isNull(n) {
		return nil, true
	}
	if n.Kind != yaml.MappingNode {
		d.errorf(n, "fields must map names to types")
		return nil, false
	}
	ok := true
	var out []*ast.FieldDecl
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		name, pub := modifier(k.Value, "pub")
		if !isIdent(name) {
			d.errorf(k, "field name %q is not a name", name)
			ok = false
			continue
		}
		t := d.typ(v)
		if t == nil {
			ok = false
			continue
		}
		out = append(out, &ast.FieldDecl{Name: name, NamePos: d.pos(k), Type: t, Visibility: visibility(pub)})
	}
	return out, ok
}

func (d *decoder) structDecl(m *mapping) (*ast.StructDecl, bool) {
	nameNode := m.get("struct")
	name, ok := d.name(m, nameNode, "structure name")
	decl := &ast.StructDecl{StructPos: m.keyPos(d, "struct"), Name: name, Visibility: visibility(d.flag(m.get("pub")))}
	if ok {
		decl.NamePos = d.pos(nameNode)
	}
	var good bool
	decl.TypeParams, good = d.typeParams(m.get("generics"))
	ok = good && ok
	decl.Fields, good = d.fields(m.get("fields"))
	ok = good && ok
	return decl, d.finish(m, "struct") && ok
}

func (d *decoder) classDecl(m *mapping) (*ast.ClassDecl, bool) {
	nameNode := m.get("class")
	name, ok := d.name(m, nameNode, "class name")
	decl := &ast.ClassDecl{ClassPos: m.keyPos(d, "class"), Name: name, Visibility: visibility(d.flag(m.get("pub")))}
	if ok {
		decl.NamePos = d.pos(nameNode)
	}
	var good bool
	decl.Fields, good = d.fields(m.get("fields"))
	ok = good && ok
	decl.Methods, good = d.methods(m.get("methods"))
	ok = good && ok
	return decl, d.finish(m, "class") && ok
}

// enumDecl decodes variants written as {Name: payload-type} where a null
// payload marks a bare variant.
func (d *decoder) enumDecl(m *mapping) (*ast.EnumDecl, bool) {
	nameNode := m.get("enum")
	name, ok := d.name(m, nameNode, "enumeration name")
	decl := &ast.EnumDecl{EnumPos: m.keyPos(d, "enum"), Name: name, Visibility: visibility(d.flag(m.get("pub")))}
	if ok {
		decl.NamePos = d.pos(nameNode)
	}
	vs := m.get("variants")
	switch {
	case isNull(vs):
	case vs.Kind != yaml.MappingNode:
		d.errorf(vs, "variants must map names to payload types")
		ok = false
	default:
		for i := 0; i+1 < len(vs.Content); i += 2 {
			k, v := vs.Content[i], vs.Content[i+1]
			vname, pub := modifier(k.Value, "pub")
			if !isIdent(vname) {
				d.errorf(k, "variant name %q is not a name", vname)
				ok = false
				continue
			}
			variant := &ast.VariantDecl{Name: vname, NamePos: d.pos(k), Visibility: visibility(pub)}
			if !isNull(v) {
				if variant.Type = d.typ(v); variant.Type == nil {
					ok = false
					continue
				}
			}
			decl.Variants = append(decl.Variants, variant)
		}
	}
	return decl, d.finish(m, "enum") && ok
}

func (d *decoder) traitDecl(m *mapping) (*ast.TraitDecl, bool) {
	nameNode := m.get("trait")
	name, ok := d.name(m, nameNode, "trait name")
	decl := &ast.TraitDecl{TraitPos: m.keyPos(d, "trait"), Name: name, Visibility: visibility(d.flag(m.get("pub")))}
	if ok {
		decl.NamePos = d.pos(nameNode)
	}
	var good bool
	decl.Methods, good = d.methods(m.get("methods"))
	return decl, d.finish(m, "trait") && good && ok
}

// implDecl decodes {impl: Target, trait: Path, methods: [...]}.
func (d *decoder) implDecl(m *mapping) (*ast.ImplDecl, bool) {
	decl := &ast.ImplDecl{ImplPos: m.keyPos(d, "impl")}
	ok := true
	target := m.get("impl")
	if isNull(target) {
		d.errorf(m.node, "missing implementation target")
		ok = false
	} else if decl.Target = d.typ(target); decl.Target == nil {
		ok = false
	}
	if tr := m.get("trait"); tr != nil {
		var good bool
		decl.Trait, good = d.path(m, tr, "trait path")
		ok = good && ok
	}
	var good bool
	decl.Methods, good = d.methods(m.get("methods"))
	return decl, d.finish(m, "impl") && good && ok
}

func (d *decoder) moduleDecl(m *mapping) (*ast.ModuleDecl, bool) {
	nameNode := m.get("module")
	name, ok := d.name(m, nameNode, "module name")
	decl := &ast.ModuleDecl{ModPos: m.keyPos(d, "module"), Name: name, Visibility: visibility(d.flag(m.get("pub")))}
	if ok {
		decl.NamePos = d.pos(nameNode)
	}
	decl.Body = d.body(m.get("body"))
	return decl, d.finish(m, "module") && ok
}

func (d *decoder) useDecl(m *mapping) (*ast.UseDecl, bool) {
	path, ok := d.path(m, m.get("use"), "import path")
	decl := &ast.UseDecl{UsePos: m.keyPos(d, "use"), Path: path}
	if as := m.get("as"); as != nil {
		alias, good := d.name(m, as, "import alias")
		decl.Alias = alias
		ok = good && ok
	}
	return decl, d.finish(m, "use") && ok
}

// ----- Statements -----

func (d *decoder) stmt(m *mapping, head string) ast.Node {
	pos := m.keyPos(d, head)
	var out ast.Node
	ok := true
	switch head {
	case "return":
		s := &ast.ReturnStmt{ReturnPos: pos}
		if v := m.get("return"); !isNull(v) {
			s.Value = d.expr(v)
			ok = s.Value != nil
		}
		out = s
	case "if":
		s := &ast.IfStmt{IfPos: pos, Cond: d.required(m, "if", "condition")}
		s.Then = d.body(m.get("then"))
		if e := m.get("else"); e != nil {
			s.Else = d.body(e)
			if s.Else == nil {
				s.Else = []ast.Node{}
			}
		}
		ok = s.Cond != nil
		out = s
	case "while":
		s := &ast.WhileStmt{WhilePos: pos, Cond: d.required(m, "while", "condition")}
		s.Body = d.body(m.get("do"))
		ok = s.Cond != nil
		out = s
	case "for":
		nameNode := m.get("for")
		name, good := d.name(m, nameNode, "loop variable")
		s := &ast.ForStmt{ForPos: pos, Var: name, Iter: d.required(m, "in", "iterable")}
		if good {
			s.VarPos = d.pos(nameNode)
		}
		s.Body = d.body(m.get("do"))
		ok = good && s.Iter != nil
		out = s
	case "loop":
		out = &ast.LoopStmt{LoopPos: pos, Body: d.body(m.get("loop"))}
	case "match":
		s := &ast.MatchStmt{MatchPos: pos, Scrutinee: d.required(m, "match", "scrutinee")}
		s.Arms, ok = d.arms(m.get("arms"))
		ok = s.Scrutinee != nil && ok
		out = s
	case "block":
		out = &ast.BlockStmt{LBrace: pos, Body: d.body(m.get("block"))}
	case "expr":
		x := d.required(m, "expr", "expression")
		ok = x != nil
		if ok {
			out = &ast.ExprStmt{X: x}
		}
	}
	if !d.finish(m, head) || !ok {
		return nil
	}
	return out
}

// required decodes the expression under key, reporting its absence.
func (d *decoder) required(m *mapping, key, what string) ast.Expr {
	n := m.get(key)
	if isNull(n) {
		d.errorf(m.node, "missing %s", what)
		return nil
	}
	return d.expr(n)
}

func (d *decoder) arms(n *yaml.Node) ([]*ast.MatchArm, bool) {
	if isNull(n) {
		return nil, true
	}
	if n.Kind != yaml.SequenceNode {
		d.errorf(n, "arms must be a list")
		return nil, false
	}
	ok := true
	var out []*ast.MatchArm
	for _, item := range n.Content {
		if item.Kind != yaml.MappingNode {
			d.errorf(item, "a match arm needs a pattern")
			ok = false
			continue
		}
		m := d.mapping(item)
		p := m.get("pattern")
		if isNull(p) {
			d.errorf(item, "a match arm needs a pattern")
			ok = false
			continue
		}
		arm := &ast.MatchArm{Pattern: d.pattern(p), Body: d.body(m.get("body"))}
		good := arm.Pattern != nil
		if g := m.get("guard"); g != nil {
			arm.Guard = d.expr(g)
			good = arm.Guard != nil && good
		}
		if !d.finish(m, "match arm") || !good {
			ok = false
			continue
		}
		out = append(out, arm)
	}
	return out, ok
}

// ----- Expressions -----

func (d *decoder) expr(n *yaml.Node) ast.Expr {
	switch n.Kind {
	case yaml.ScalarNode:
		return d.scalar(n)
	case yaml.MappingNode:
		m := d.mapping(n)
		head := m.head(exprHeads)
		if head == "" {
			d.errorf(n, "cannot tell what this expression is")
			return nil
		}
		return d.exprMapping(m, head)
	case yaml.SequenceNode:
		d.errorf(n, "a list is not an expression; use array or tuple")
	case yaml.AliasNode:
		return d.expr(n.Alias)
	default:
		d.errorf(n, "expected an expression")
	}
	return nil
}

// scalar decodes literals and names. Quoted scalars are strings; a.b.c is a
// member chain and a::b::c a path.
func (d *decoder) scalar(n *yaml.Node) ast.Expr {
	pos := d.pos(n)
	if n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0 {
		return &ast.StringLit{Value: n.Value, LitPos: pos}
	}
	switch n.ShortTag() {
	case "!!int":
		v, err := strconv.ParseInt(strings.ReplaceAll(n.Value, "_", ""), 0, 64)
		if err != nil {
			d.errorf(n, "invalid integer %q", n.Value)
			return nil
		}
		return &ast.IntLit{Value: v, LitPos: pos, Raw: n.Value}
	case "!!float":
		var v float64
		if err := n.Decode(&v); err != nil {
			d.errorf(n, "invalid float %q", n.Value)
			return nil
		}
		return &ast.FloatLit{Value: v, LitPos: pos, Raw: n.Value}
	case "!!bool":
		var v bool
		if err := n.Decode(&v); err != nil {
			d.errorf(n, "invalid boolean %q", n.Value)
			return nil
		}
		return &ast.BoolLit{Value: v, LitPos: pos}
	case "!!null":
		d.errorf(n, "missing expression")
		return nil
	}

	v := n.Value
	switch {
	case v == "()":
		return &ast.UnitLit{LitPos: pos}
	case strings.Contains(v, "::"):
		segs := strings.Split(v, "::")
		for _, s := range segs {
			if !isIdent(s) {
				d.errorf(n, "invalid path %q", v)
				return nil
			}
		}
		return &ast.PathExpr{Segments: segs, PathPos: pos}
	case strings.Contains(v, "."):
		segs := strings.Split(v, ".")
		if !isIdent(segs[0]) {
			d.errorf(n, "invalid expression %q", v)
			return nil
		}
		var x ast.Expr = &ast.Ident{Name: segs[0], NamePos: pos}
		for _, s := range segs[1:] {
			if !isIdent(s) && !isIndex(s) {
				d.errorf(n, "invalid member %q in %q", s, v)
				return nil
			}
			x = &ast.MemberExpr{X: x, Name: s, NamePos: pos}
		}
		return x
	case isIdent(v):
		return &ast.Ident{Name: v, NamePos: pos}
	}
	d.errorf(n, "invalid expression %q", v)
	return nil
}

func (d *decoder) exprs(n *yaml.Node) ([]ast.Expr, bool) {
	if isNull(n) {
		return nil, true
	}
	if n.Kind != yaml.SequenceNode {
		d.errorf(n, "expected a list of expressions")
		return nil, false
	}
	ok := true
	out := make([]ast.Expr, 0, len(n.Content))
	for _, e := range n.Content {
		x := d.expr(e)
		if x == nil {
			ok = false
			continue
		}
		out = append(out, x)
	}
	return out, ok
}

func (d *decoder) exprMapping(m *mapping, head string) ast.Expr {
	pos := m.keyPos(d, head)
	var out ast.Expr
	ok := true
	switch head {
	case "op":
		out, ok = d.operator(m, pos)
	case "call":
		callee := d.required(m, "call", "callee")
		args, good := d.exprs(m.get("args"))
		ok = callee != nil && good
		out = &ast.CallExpr{Callee: callee, LParen: pos, Args: args}
	case "method":
		name, good := d.name(m, m.get("method"), "method name")
		recv := d.required(m, "recv", "receiver")
		args, argsOK := d.exprs(m.get("args"))
		ok = good && recv != nil && argsOK
		out = &ast.MethodCallExpr{Receiver: recv, Name: name, NamePos: pos, Args: args}
	case "member":
		nameNode := m.get("member")
		if isNull(nameNode) || nameNode.Kind != yaml.ScalarNode || !(isIdent(nameNode.Value) || isIndex(nameNode.Value)) {
			d.errorf(m.node, "member needs a field name or index")
			ok = false
		}
		x := d.required(m, "of", "value")
		ok = x != nil && ok
		if ok {
			out = &ast.MemberExpr{X: x, Name: nameNode.Value, NamePos: pos}
		}
	case "index":
		idx := d.required(m, "index", "index")
		x := d.required(m, "of", "value")
		ok = idx != nil && x != nil
		out = &ast.IndexExpr{X: x, LBracket: pos, Index: idx}
	case "array":
		var elems []ast.Expr
		elems, ok = d.exprs(m.get("array"))
		out = &ast.ArrayLit{LBracket: pos, Elems: elems}
	case "tuple":
		var elems []ast.Expr
		elems, ok = d.exprs(m.get("tuple"))
		out = &ast.TupleLit{LParen: pos, Elems: elems}
	case "new":
		out, ok = d.structLit(m, pos)
	case "cast":
		x := d.required(m, "cast", "value")
		ok = x != nil
		cast := &ast.CastExpr{X: x, AsPos: pos}
		if t := m.get("as"); isNull(t) {
			d.errorf(m.node, "missing cast target type")
			ok = false
		} else if cast.Type = d.typ(t); cast.Type == nil {
			ok = false
		}
		out = cast
	case "str":
		v := m.get("str")
		if isNull(v) || v.Kind != yaml.ScalarNode {
			d.errorf(m.node, "str needs a scalar value")
			ok = false
		} else {
			out = &ast.StringLit{Value: v.Value, LitPos: pos}
		}
	case "char":
		v := m.get("char")
		if isNull(v) || v.Kind != yaml.ScalarNode || utf8.RuneCountInString(v.Value) != 1 {
			d.errorf(m.node, "char needs exactly one character")
			ok = false
		} else {
			r, _ := utf8.DecodeRuneInString(v.Value)
			out = &ast.CharLit{Value: r, LitPos: pos}
		}
	}
	// Keys of a broken expression may not have been looked at.
	if !ok || !d.finish(m, head) {
		return nil
	}
	return out
}

// operator decodes {op, l, r} as a binary and {op, x} as a unary expression.
func (d *decoder) operator(m *mapping, pos token.Position) (ast.Expr, bool) {
	opNode := m.get("op")
	if isNull(opNode) || opNode.Kind != yaml.ScalarNode {
		d.errorf(m.node, "missing operator")
		return nil, false
	}
	if _, unary := m.vals["x"]; unary {
		op, ok := token.LookupUnary(opNode.Value)
		if !ok {
			d.errorf(opNode, "unknown prefix operator %q", opNode.Value)
			return nil, false
		}
		x := d.required(m, "x", "operand")
		return &ast.UnaryExpr{OpPos: pos, Op: op, X: x}, x != nil
	}
	op, ok := token.LookupBinary(opNode.Value)
	if !ok {
		d.errorf(opNode, "unknown operator %q", opNode.Value)
		return nil, false
	}
	l := d.required(m, "l", "left operand")
	r := d.required(m, "r", "right operand")
	return &ast.BinaryExpr{OpPos: pos, Op: op, Left: l, Right: r}, l != nil && r != nil
}

// structLit decodes {new: Type, fields: {name: value, ...}}.
func (d *decoder) structLit(m *mapping, pos token.Position) (ast.Expr, bool) {
	name, ok := d.name(m, m.get("new"), "structure name")
	lit := &ast.StructLit{TypeName: name, TypeNamePos: pos}
	fs := m.get("fields")
	switch {
	case isNull(fs):
	case fs.Kind != yaml.MappingNode:
		d.errorf(fs, "fields must map names to values")
		ok = false
	default:
		for i := 0; i+1 < len(fs.Content); i += 2 {
			k, v := fs.Content[i], fs.Content[i+1]
			if !isIdent(k.Value) {
				d.errorf(k, "field name %q is not a name", k.Value)
				ok = false
				continue
			}
			x := d.expr(v)
			if x == nil {
				ok = false
				continue
			}
			lit.Fields = append(lit.Fields, &ast.FieldInit{Name: k.Value, NamePos: d.pos(k), Value: x})
		}
	}
	return lit, ok
}

// ----- Patterns -----

// pattern decodes _, literals, name, mut name, Enum::Variant, a list (tuple
// pattern) and {variant: Path, of: pattern-or-list}.
func (d *decoder) pattern(n *yaml.Node) ast.Pattern {
	pos := d.pos(n)
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0 {
			return &ast.LiteralPattern{Value: &ast.StringLit{Value: n.Value, LitPos: pos}}
		}
		switch n.ShortTag() {
		case "!!int", "!!float", "!!bool":
			if x := d.scalar(n); x != nil {
				return &ast.LiteralPattern{Value: x}
			}
			return nil
		}
		v := n.Value
		if v == "_" {
			return &ast.WildcardPattern{UnderscorePos: pos}
		}
		if name, mut := modifier(v, "mut"); mut {
			if !isIdent(name) {
				d.errorf(n, "invalid binding %q", v)
				return nil
			}
			return &ast.BindingPattern{Name: name, NamePos: pos, Mutable: true}
		}
		if strings.Contains(v, ".") || strings.Contains(v, ":") {
			segs := splitPath(v)
			for _, s := range segs {
				if !isIdent(s) {
					d.errorf(n, "invalid variant path %q", v)
					return nil
				}
			}
			return &ast.VariantPattern{Path: segs, PathPos: pos}
		}
		if isIdent(v) {
			return &ast.BindingPattern{Name: v, NamePos: pos}
		}
		d.errorf(n, "invalid pattern %q", v)
	case yaml.SequenceNode:
		elems, ok := d.patterns(n)
		if !ok {
			return nil
		}
		return &ast.TuplePattern{LParen: pos, Elems: elems}
	case yaml.MappingNode:
		m := d.mapping(n)
		path, ok := d.path(m, m.get("variant"), "variant path")
		vp := &ast.VariantPattern{Path: path, PathPos: pos}
		if of := m.get("of"); !isNull(of) {
			if of.Kind == yaml.SequenceNode {
				var good bool
				vp.Elems, good = d.patterns(of)
				ok = good && ok
			} else if p := d.pattern(of); p != nil {
				vp.Elems = []ast.Pattern{p}
			} else {
				ok = false
			}
		}
		if !d.finish(m, "pattern") || !ok {
			return nil
		}
		return vp
	default:
		d.errorf(n, "expected a pattern")
	}
	return nil
}

func (d *decoder) patterns(n *yaml.Node) ([]ast.Pattern, bool) {
	ok := true
	out := make([]ast.Pattern, 0, len(n.Content))
	for _, e := range n.Content {
		p := d.pattern(e)
		if p == nil {
			ok = false
			continue
		}
		out = append(out, p)
	}
	return out, ok
}
