package symbols

import (
	"fmt"
	"io"
	"strings"

	"github.com/kr/text"
)

// Dump writes the scope tree with the symbols declared in each scope.
func (t *Table) Dump(w io.Writer) error {
	_, err := io.WriteString(w, t.dumpScope(0))
	return err
}

func (t *Table) dumpScope(id ScopeID) string {
	s := t.scopes[id]
	var sb strings.Builder
	fmt.Fprintf(&sb, "scope %d %s", s.ID, s.Kind)
	if owner := t.Symbol(s.Owner); owner != nil {
		fmt.Fprintf(&sb, " (%s)", owner.Name)
	}
	sb.WriteString("\n")

	var body strings.Builder
	for _, name := range t.Names(id) {
		sym := t.symbols[s.names[name]]
		fmt.Fprintf(&body, "%s", sym)
		var flags []string
		if sym.Mutable {
			flags = append(flags, "mut")
		}
		if !sym.Initialized && (sym.Kind == Variable || sym.Kind == Constant) {
			flags = append(flags, "uninit")
		}
		if !sym.Used {
			flags = append(flags, "unused")
		}
		if sym.AliasOf != NoSymbol {
			flags = append(flags, fmt.Sprintf("alias of #%d", sym.AliasOf))
		}
		if len(flags) > 0 {
			fmt.Fprintf(&body, " [%s]", strings.Join(flags, ", "))
		}
		fmt.Fprintf(&body, " @%s\n", sym.Pos)
	}
	for _, child := range s.Children {
		body.WriteString(t.dumpScope(child))
	}
	sb.WriteString(text.Indent(body.String(), "  "))
	return sb.String()
}
