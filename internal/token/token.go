package token

import "fmt"

// Kind identifies an operator carried by binary and unary tree nodes.
type Kind int

const (
	Illegal Kind = iota

	// Assignment
	Assign // =

	// Arithmetic
	Plus    // +
	Minus   // -
	Star    // *
	Slash   // /
	Percent // %

	// Logical
	Bang   // !
	AndAnd // &&
	OrOr   // ||

	// Equality and ordering
	Eq    // ==
	NotEq // !=
	Lt    // <
	LtEq  // <=
	Gt    // >
	GtEq  // >=

	// Ranges
	DotDot   // ..
	DotDotEq // ..=

	// References
	Amp    // &
	AmpMut // &mut
	Deref  // * (prefix)
)

var spellings = [...]string{
	Illegal:  "illegal",
	Assign:   "=",
	Plus:     "+",
	Minus:    "-",
	Star:     "*",
	Slash:    "/",
	Percent:  "%",
	Bang:     "!",
	AndAnd:   "&&",
	OrOr:     "||",
	Eq:       "==",
	NotEq:    "!=",
	Lt:       "<",
	LtEq:     "<=",
	Gt:       ">",
	GtEq:     ">=",
	DotDot:   "..",
	DotDotEq: "..=",
	Amp:      "&",
	AmpMut:   "&mut",
	Deref:    "*",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(spellings) {
		return spellings[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsArithmetic reports whether k is one of + - * / %.
func (k Kind) IsArithmetic() bool {
	return k >= Plus && k <= Percent
}

// IsOrdering reports whether k is one of < <= > >=.
func (k Kind) IsOrdering() bool {
	return k >= Lt && k <= GtEq
}

// IsEquality reports whether k is == or !=.
func (k Kind) IsEquality() bool {
	return k == Eq || k == NotEq
}

// IsLogical reports whether k is && or ||.
func (k Kind) IsLogical() bool {
	return k == AndAnd || k == OrOr
}

// IsRange reports whether k is .. or ..=.
func (k Kind) IsRange() bool {
	return k == DotDot || k == DotDotEq
}

var binaryOps = map[string]Kind{
	"=":   Assign,
	"+":   Plus,
	"-":   Minus,
	"*":   Star,
	"/":   Slash,
	"%":   Percent,
	"&&":  AndAnd,
	"||":  OrOr,
	"==":  Eq,
	"!=":  NotEq,
	"<":   Lt,
	"<=":  LtEq,
	">":   Gt,
	">=":  GtEq,
	"..":  DotDot,
	"..=": DotDotEq,
}

var unaryOps = map[string]Kind{
	"-":    Minus,
	"!":    Bang,
	"&":    Amp,
	"&mut": AmpMut,
	"*":    Deref,
}

// LookupBinary maps an operator spelling to its binary Kind.
func LookupBinary(op string) (Kind, bool) {
	k, ok := binaryOps[op]
	return k, ok
}

// LookupUnary maps an operator spelling to its prefix Kind.
// "*" resolves to Deref rather than Star.
func LookupUnary(op string) (Kind, bool) {
	k, ok := unaryOps[op]
	return k, ok
}

// Position is a 1-based line/column location in the source the tree came from.
// File is optional. The zero value means "unknown".
type Position struct {
	File   string
	Line   int
	Column int
}

func (p Position) IsValid() bool { return p.Line > 0 }

func (p Position) String() string {
	if !p.IsValid() {
		return "-"
	}
	if p.File != "" {
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Before reports whether p comes strictly before q in the source. Positions
// in different files are ordered by file name.
func (p Position) Before(q Position) bool {
	if p.File != q.File {
		return p.File < q.File
	}
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Column < q.Column
}
