package loader

import (
	"fmt"
	"strconv"
	"strings"
	"text/scanner"

	"tern/internal/ast"
	"tern/internal/token"
)

// typeParser reads type annotations such as int, [int; 3], (int, bool),
// &'a mut T, fn(int) -> bool and geometry.Point<T>.
type typeParser struct {
	s   scanner.Scanner
	tok rune
	at  token.Position
	err error
}

func parseType(src string, at token.Position) (ast.TypeNode, error) {
	p := &typeParser{at: at}
	p.s.Init(strings.NewReader(src))
	p.s.Mode = scanner.ScanIdents | scanner.ScanInts
	p.s.Error = func(_ *scanner.Scanner, msg string) { p.fail("%s", msg) }
	p.next()
	t := p.parse()
	if p.err == nil && p.tok != scanner.EOF {
		p.fail("unexpected %s", p.describe())
	}
	if p.err != nil {
		return nil, p.err
	}
	return t, nil
}

func (p *typeParser) next() {
	if p.err != nil {
		p.tok = scanner.EOF
		return
	}
	p.tok = p.s.Scan()
}

func (p *typeParser) fail(format string, args ...any) {
	if p.err == nil {
		p.err = fmt.Errorf(format, args...)
	}
	p.tok = scanner.EOF
}

func (p *typeParser) describe() string {
	switch p.tok {
	case scanner.EOF:
		return "end of type"
	case scanner.Ident, scanner.Int:
		return strconv.Quote(p.s.TokenText())
	}
	return scanner.TokenString(p.tok)
}

// position maps the scanner offset onto the annotation's source position.
func (p *typeParser) position() token.Position {
	pos := p.at
	pos.Column += p.s.Position.Column - 1
	return pos
}

func (p *typeParser) expect(r rune) bool {
	if p.tok != r {
		p.fail("expected %s, found %s", scanner.TokenString(r), p.describe())
		return false
	}
	p.next()
	return true
}

func (p *typeParser) ident() string {
	if p.tok != scanner.Ident {
		p.fail("expected a name, found %s", p.describe())
		return ""
	}
	s := p.s.TokenText()
	p.next()
	return s
}

func (p *typeParser) parse() ast.TypeNode {
	pos := p.position()
	switch p.tok {
	case '&':
		p.next()
		ref := &ast.RefType{AmpPos: pos}
		if p.tok == '\'' {
			p.next()
			ref.Lifetime = p.ident()
		}
		if p.tok == scanner.Ident && p.s.TokenText() == "mut" {
			ref.Mutable = true
			p.next()
		}
		ref.Inner = p.parse()
		return ref

	case '[':
		p.next()
		arr := &ast.ArrayType{LBracket: pos, Elem: p.parse()}
		if p.tok == ';' {
			p.next()
			if p.tok != scanner.Int {
				p.fail("expected an array length, found %s", p.describe())
				return nil
			}
			n, err := strconv.Atoi(p.s.TokenText())
			if err != nil {
				p.fail("invalid array length %s", p.s.TokenText())
				return nil
			}
			arr.Len, arr.Sized = n, true
			p.next()
		}
		p.expect(']')
		return arr

	case '(':
		p.next()
		elems := p.list(')')
		if len(elems) == 1 {
			return elems[0]
		}
		return &ast.TupleType{LParen: pos, Elems: elems}

	case scanner.Ident:
		if p.s.TokenText() == "fn" {
			return p.fn(pos)
		}
		return p.named(pos)
	}
	p.fail("unexpected %s", p.describe())
	return nil
}

// list parses types separated by commas up to and including close.
func (p *typeParser) list(close rune) []ast.TypeNode {
	var out []ast.TypeNode
	if p.tok == close {
		p.next()
		return out
	}
	for p.err == nil {
		out = append(out, p.parse())
		if p.tok == ',' {
			p.next()
			continue
		}
		p.expect(close)
		break
	}
	return out
}

func (p *typeParser) fn(pos token.Position) ast.TypeNode {
	p.next()
	if !p.expect('(') {
		return nil
	}
	ft := &ast.FuncType{FnPos: pos, Params: p.list(')')}
	if p.tok == '-' {
		p.next()
		if !p.expect('>') {
			return nil
		}
		ft.Result = p.parse()
	}
	return ft
}

func (p *typeParser) named(pos token.Position) ast.TypeNode {
	nt := &ast.NamedType{Path: []string{p.ident()}, NamePos: pos}
	for p.tok == '.' || p.tok == ':' {
		if p.tok == ':' {
			p.next()
			if !p.expect(':') {
				return nil
			}
		} else {
			p.next()
		}
		nt.Path = append(nt.Path, p.ident())
	}
	if p.tok == '<' {
		p.next()
		nt.Args = p.list('>')
	}
	return nt
}
