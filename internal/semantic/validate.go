package semantic

import (
	"strings"

	"tern/internal/ast"
	"tern/internal/diag"
	"tern/internal/symbols"
)

// validate runs the whole-unit consistency checks after every body has been
// checked.
func (a *Analyzer) validate() {
	for _, sym := range a.table.Symbols() {
		if sym.Type != nil && !a.reg.Contains(sym.Type) {
			a.report(diag.Errorf(diag.Internal, sym.Pos,
				"type %s of %q is not registered", sym.Type, sym.Name))
			return
		}
	}

	if a.cfg.WarnUnused {
		for _, sym := range a.table.Symbols() {
			if !sym.Used && a.reportsUnused(sym) {
				a.report(diag.Warnf(diag.UnusedSymbol, sym.Pos, "unused %s %q", sym.Kind, sym.Name))
			}
		}
	}

	if a.cfg.AdvisoryBorrows {
		for _, d := range a.borrows.Validate() {
			d.Severity = diag.SeverityWarning
			a.warnings = append(a.warnings, d)
		}
	}
}

func (a *Analyzer) reportsUnused(sym *symbols.Symbol) bool {
	switch sym.Name {
	case "main", "self", "Self":
		return false
	}
	if strings.HasPrefix(sym.Name, "_") || sym.Visibility == ast.Public {
		return false
	}
	switch sym.Kind {
	case symbols.Field, symbols.Variant, symbols.Generic, symbols.Implementation, symbols.Module:
		return false
	case symbols.Function:
		// Methods are reached through their receiver.
		switch a.table.Scope(sym.Scope).Kind {
		case symbols.TraitScope, symbols.ImplementationScope, symbols.StructureScope:
			return false
		}
	}
	return true
}
