// Package semantic sequences name resolution, type checking and borrow
// checking over one compilation unit.
package semantic

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"tern/internal/ast"
	"tern/internal/borrow"
	"tern/internal/checker"
	"tern/internal/diag"
	"tern/internal/symbols"
	"tern/internal/token"
	"tern/internal/types"
)

type Stats struct {
	TotalSymbols int
	TotalScopes  int
	TotalTypes   int
	ErrorCount   int
	WarningCount int
}

// Analyzer owns the registry, symbol table and borrow checker for one
// compilation unit. Every call to Analyze starts from a fresh state; the
// accessors describe the most recent run.
type Analyzer struct {
	cfg Config
	log *zap.Logger

	reg     *types.Registry
	table   *symbols.Table
	borrows *borrow.Checker
	checker *checker.Checker

	declared map[ast.Node]symbols.SymbolID
	impls    map[*ast.ImplDecl]symbols.ScopeID
	targets  map[*ast.ImplDecl]types.Type
	sigs     map[*ast.FuncDecl]*types.Func
	nominal  map[string]symbols.SymbolID // Named type name -> declaring symbol
	prefix   []string                    // enclosing module names
	deferred []symbols.PendingImport

	errors    []*diag.Error
	warnings  []*diag.Error
	truncated int
	fatal     error
	sink      *error // set while a nested declaration is being analyzed
}

func New() *Analyzer {
	return NewWithConfig(DefaultConfig(), nil)
}

func NewWithConfig(cfg Config, log *zap.Logger) *Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Analyzer{cfg: cfg, log: log}
	a.reset()
	return a
}

func (a *Analyzer) reset() {
	a.reg = types.NewRegistry()
	a.table = symbols.NewTable(a.reg)
	a.borrows = borrow.NewChecker(a.log.Named("borrow"))
	a.checker = checker.New(a.reg, a.table, a.borrows, a.log.Named("checker"))
	a.checker.SetDeclVisitor(a)
	// Borrows live as long as the scope they were taken in.
	a.table.OnExit(func(id symbols.ScopeID) { a.borrows.ReleaseScope(id) })

	a.declared = make(map[ast.Node]symbols.SymbolID)
	a.impls = make(map[*ast.ImplDecl]symbols.ScopeID)
	a.targets = make(map[*ast.ImplDecl]types.Type)
	a.sigs = make(map[*ast.FuncDecl]*types.Func)
	a.nominal = make(map[string]symbols.SymbolID)
	a.prefix = nil
	a.deferred = nil

	a.errors = nil
	a.warnings = nil
	a.truncated = 0
	a.fatal = nil
	a.sink = nil
}

func (a *Analyzer) Table() *symbols.Table     { return a.table }
func (a *Analyzer) Registry() *types.Registry { return a.reg }
func (a *Analyzer) Borrows() *borrow.Checker  { return a.borrows }

// Errors returns the errors of the last run in the order they were found.
func (a *Analyzer) Errors() []*diag.Error { return a.errors }

func (a *Analyzer) Warnings() []*diag.Error { return a.warnings }

// Truncated is the number of errors dropped because of Config.MaxErrors.
func (a *Analyzer) Truncated() int { return a.truncated }

func (a *Analyzer) Stats() Stats {
	return Stats{
		TotalSymbols: len(a.table.Symbols()),
		TotalScopes:  len(a.table.Scopes()),
		TotalTypes:   a.reg.Len(),
		ErrorCount:   len(a.errors),
		WarningCount: len(a.warnings),
	}
}

// Analyze runs every pass over nodes. It returns nil when no errors were
// found; otherwise multierr.Errors of the result yields the *diag.Error
// values in discovery order. An internal error stops the analysis at once.
func (a *Analyzer) Analyze(nodes []ast.Node) error {
	a.reset()

	passes := []struct {
		name string
		run  func()
	}{
		{"collect", func() { a.collect(nodes) }},
		{"imports", func() { a.resolveImports(false) }},
		{"declare", func() { a.declare(nodes) }},
		{"imports", func() { a.resolveImports(true) }},
		{"check", func() { a.check(nodes) }},
		{"validate", a.validate},
	}
	for _, p := range passes {
		p.run()
		a.log.Debug("pass done",
			zap.String("pass", p.name),
			zap.Int("errors", len(a.errors)),
			zap.Int("warnings", len(a.warnings)))
		if a.fatal != nil {
			return a.fatal
		}
	}

	if a.cfg.WarningsAsErrors {
		a.errors = append(a.errors, a.warnings...)
		a.warnings = nil
	}
	a.log.Debug("analysis done", zap.Int("symbols", len(a.table.Symbols())),
		zap.Int("scopes", len(a.table.Scopes())), zap.Int("types", a.reg.Len()))

	if len(a.errors) == 0 {
		return nil
	}
	errs := make([]error, len(a.errors))
	for i, d := range a.errors {
		errs[i] = d
	}
	return multierr.Combine(errs...)
}

// report files every diagnostic in err. Internal errors abort the analysis.
func (a *Analyzer) report(err error) {
	if err == nil {
		return
	}
	if a.sink != nil {
		*a.sink = multierr.Append(*a.sink, err)
		return
	}
	for _, e := range multierr.Errors(err) {
		d, ok := diag.As(e)
		if !ok {
			d = diag.Errorf(diag.Internal, token.Position{}, "%v", e)
		}
		switch {
		case d.Code == diag.Internal:
			a.errors = append(a.errors, d)
			if a.fatal == nil {
				a.fatal = fmt.Errorf("semantic analysis aborted: %w", d)
			}
		case d.IsWarning():
			a.warnings = append(a.warnings, d)
		case a.cfg.MaxErrors > 0 && len(a.errors) >= a.cfg.MaxErrors:
			a.truncated++
		default:
			a.errors = append(a.errors, d)
		}
	}
}

// VisitDecl analyzes a declaration found inside a body. It runs every pass
// on the declaration alone, in the current scope, and returns what they
// found instead of reporting it.
func (a *Analyzer) VisitDecl(d ast.Decl) error {
	var found error
	saved := a.sink
	a.sink = &found
	// Types declared in a body are named after the enclosing function and
	// scope so they never share a nominal name with an outer type.
	prefix := a.prefix
	outer := "<body>"
	if fs, ok := a.table.Nearest(symbols.FunctionScope); ok && fs.Owner != symbols.NoSymbol {
		outer = a.table.Symbol(fs.Owner).Name
	}
	a.prefix = append(append([]string(nil), prefix...), fmt.Sprintf("%s#%d", outer, a.table.Current()))
	defer func() { a.sink, a.prefix = saved, prefix }()

	unit := []ast.Node{d}
	a.collect(unit)
	a.resolveImports(true)
	a.declare(unit)
	a.check(unit)
	return found
}

// ----- Scope helpers -----

// within re-enters a scope created by an earlier pass, runs fn and leaves
// the scope again.
func (a *Analyzer) within(scope symbols.ScopeID, pos token.Position, fn func()) {
	if err := a.table.Reenter(scope); err != nil {
		a.report(diag.Errorf(diag.Internal, pos, "%v", err))
		return
	}
	fn()
	a.exit(pos)
}

func (a *Analyzer) exit(pos token.Position) {
	if _, err := a.table.ExitScope(); err != nil {
		a.report(diag.Errorf(diag.Internal, pos, "%v", err))
	}
}

// symbolOf returns the symbol an earlier pass created for node.
func (a *Analyzer) symbolOf(node ast.Node) (*symbols.Symbol, bool) {
	id, ok := a.declared[node]
	if !ok {
		return nil, false
	}
	return a.table.Symbol(id), true
}
