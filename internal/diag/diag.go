package diag

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"tern/internal/token"
)

// ----- Categories and codes -----

type Category int

const (
	SymbolError Category = iota
	TypeError
	BorrowError
	Warning
	InternalError
)

func (c Category) String() string {
	switch c {
	case SymbolError:
		return "symbol error"
	case TypeError:
		return "type error"
	case BorrowError:
		return "borrow error"
	case Warning:
		return "warning"
	case InternalError:
		return "internal error"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

type Code int

const (
	// symbol errors
	NotFound Code = iota
	AlreadyDeclared
	InvalidVisibility
	InvalidScope
	ImportError

	// type errors
	TypeMismatch
	InvalidType
	UndefinedType
	TypeNotFound
	InvalidTypeParameter
	RecursiveType

	// borrow errors
	MultipleMutableBorrows
	MutableBorrowWithImmutableBorrows
	UseAfterMove
	UninitializedVariable
	ImmutableWrite

	// warnings
	UnusedSymbol
	DanglingBorrow

	Internal
)

var codeNames = [...]string{
	NotFound:                          "NotFound",
	AlreadyDeclared:                   "AlreadyDeclared",
	InvalidVisibility:                 "InvalidVisibility",
	InvalidScope:                      "InvalidScope",
	ImportError:                       "ImportError",
	TypeMismatch:                      "TypeMismatch",
	InvalidType:                       "InvalidType",
	UndefinedType:                     "UndefinedType",
	TypeNotFound:                      "TypeNotFound",
	InvalidTypeParameter:              "InvalidTypeParameter",
	RecursiveType:                     "RecursiveType",
	MultipleMutableBorrows:            "MultipleMutableBorrows",
	MutableBorrowWithImmutableBorrows: "MutableBorrowWithImmutableBorrows",
	UseAfterMove:                      "UseAfterMove",
	UninitializedVariable:             "UninitializedVariable",
	ImmutableWrite:                    "ImmutableWrite",
	UnusedSymbol:                      "UnusedSymbol",
	DanglingBorrow:                    "DanglingBorrow",
	Internal:                          "Internal",
}

func (c Code) String() string {
	if c >= 0 && int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Category groups a code into the taxonomy reported to callers.
func (c Code) Category() Category {
	switch {
	case c <= ImportError:
		return SymbolError
	case c <= RecursiveType:
		return TypeError
	case c <= ImmutableWrite:
		return BorrowError
	case c <= DanglingBorrow:
		return Warning
	default:
		return InternalError
	}
}

// ----- Diagnostics -----

type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Error is a single diagnostic. Notes carry secondary lines such as the
// location of a conflicting borrow or a spelling suggestion.
type Error struct {
	Code     Code
	Severity Severity
	Pos      token.Position
	Msg      string
	Notes    []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// Detail renders the diagnostic with its code and notes, one note per line.
func (e *Error) Detail() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s[%s]: %s", e.Pos, e.Severity, e.Code, e.Msg)
	for _, n := range e.Notes {
		sb.WriteString("\n")
		sb.WriteString("note: ")
		sb.WriteString(n)
	}
	return sb.String()
}

func (e *Error) IsWarning() bool { return e.Severity == SeverityWarning }

// Errorf builds an error-severity diagnostic.
func Errorf(code Code, pos token.Position, format string, args ...interface{}) *Error {
	sev := SeverityError
	if code.Category() == Warning {
		sev = SeverityWarning
	}
	return &Error{
		Code:     code,
		Severity: sev,
		Pos:      pos,
		Msg:      fmt.Sprintf(format, args...),
	}
}

// Warnf builds a warning regardless of the code's category.
func Warnf(code Code, pos token.Position, format string, args ...interface{}) *Error {
	e := Errorf(code, pos, format, args...)
	e.Severity = SeverityWarning
	return e
}

// WithNote appends a note and returns e for chaining.
func (e *Error) WithNote(format string, args ...interface{}) *Error {
	e.Notes = append(e.Notes, fmt.Sprintf(format, args...))
	return e
}

// As recovers the diagnostic wrapped in err, if any.
func As(err error) (*Error, bool) {
	var d *Error
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// Is reports whether err wraps a diagnostic with the given code.
func Is(err error, code Code) bool {
	d, ok := As(err)
	return ok && d.Code == code
}

// WithPos fills in the position of a diagnostic produced without one.
// Errors that are not diagnostics are wrapped as TypeMismatch.
func WithPos(err error, pos token.Position) *Error {
	if err == nil {
		return nil
	}
	d, ok := As(err)
	if !ok {
		return Errorf(TypeMismatch, pos, "%v", err)
	}
	if !d.Pos.IsValid() {
		d.Pos = pos
	}
	return d
}

// Sort orders diagnostics by position; ties keep their original order.
func Sort(list []*Error) {
	slices.SortStableFunc(list, func(a, b *Error) bool {
		return a.Pos.Before(b.Pos)
	})
}
