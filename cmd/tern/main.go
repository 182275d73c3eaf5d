package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kr/text"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"tern/internal/ast"
	"tern/internal/diag"
	"tern/internal/loader"
	"tern/internal/semantic"
)

const version = "0.1.0"

// Exit codes.
const (
	exitOK          = 0
	exitDiagnostics = 1
	exitUsage       = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return exitUsage
	}

	switch cmd := args[0]; cmd {
	case "check":
		return cmdCheck(args[1:], stdout, stderr)
	case "dump":
		return cmdDump(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return exitOK
	case "version", "--version":
		fmt.Fprintln(stdout, "tern", version)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", cmd)
		usage(stderr)
		return exitUsage
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `tern semantic checker

Usage:
  tern check [flags] <unit.yaml|dir>
  tern dump [flags] <unit.yaml|dir>

Commands:
  check    Resolve names, check types and borrows, print diagnostics.
           Items that cannot be decoded are reported and skipped.
  dump     Print the decoded tree and the scope tree after analysis
  version  Print the tern version

Flags (check, dump):
  -config      YAML config file (warn_unused, advisory_borrows, max_errors, warnings_as_errors)
  -max-errors  Stop recording errors after this many (0 = no limit)
  -werror      Treat warnings as errors
  -v           Verbose logging to stderr

Exit status is 0 when the unit is clean, 1 when it has errors (decoding
errors included) and 2 on usage errors or an unreadable unit.`)
}

type options struct {
	cfg  semantic.Config
	log  *zap.Logger
	path string
}

// parseFlags handles the flags shared by every command. Flags given on the
// command line override the config file.
func parseFlags(name string, args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configPath string
		maxErrors  int
		werror     bool
		verbose    bool
	)
	fs.StringVar(&configPath, "config", "", "YAML config file")
	fs.IntVar(&maxErrors, "max-errors", 0, "maximum number of errors to record (0 = no limit)")
	fs.BoolVar(&werror, "werror", false, "treat warnings as errors")
	fs.BoolVar(&verbose, "v", false, "verbose logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		return nil, fmt.Errorf("%s: expected one unit file or directory", name)
	}

	cfg := semantic.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = semantic.LoadConfig(configPath); err != nil {
			return nil, err
		}
	}
	var bad error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "max-errors":
			if maxErrors < 0 {
				bad = fmt.Errorf("-max-errors must not be negative")
			}
			cfg.MaxErrors = maxErrors
		case "werror":
			cfg.WarningsAsErrors = werror
		}
	})
	if bad != nil {
		return nil, bad
	}

	log := zap.NewNop()
	if verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("cannot create logger: %w", err)
		}
		log = l
	}
	return &options{cfg: cfg, log: log, path: fs.Arg(0)}, nil
}

// load reads the unit and prints decoding problems. Items that could not be
// decoded stay in the unit as bad nodes, which the analyzer skips. The unit
// is nil when nothing could be read at all.
func load(path string, stderr io.Writer) (*loader.Unit, int) {
	unit, err := loader.Load(path)
	errs := multierr.Errors(err)
	for _, e := range errs {
		fmt.Fprintln(stderr, e)
	}
	return unit, len(errs)
}

// -------------- CHECK --------------

func cmdCheck(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags("check", args, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitUsage
	}
	defer opts.log.Sync() //nolint:errcheck

	unit, loadErrs := load(opts.path, stderr)
	if unit == nil {
		return exitUsage
	}

	a := semantic.NewWithConfig(opts.cfg, opts.log)
	err = a.Analyze(unit.Nodes)
	printDiagnostics(stdout, a)

	stats := a.Stats()
	opts.log.Info("check done",
		zap.String("unit", opts.path),
		zap.Int("symbols", stats.TotalSymbols),
		zap.Int("scopes", stats.TotalScopes),
		zap.Int("types", stats.TotalTypes))

	if err != nil || loadErrs > 0 {
		if n := a.Truncated(); n > 0 {
			fmt.Fprintf(stdout, "... and %d more errors\n", n)
		}
		fmt.Fprintf(stdout, "%d errors, %d warnings\n", stats.ErrorCount+loadErrs, stats.WarningCount)
		return exitDiagnostics
	}
	if stats.WarningCount > 0 {
		fmt.Fprintf(stdout, "ok, %d warnings\n", stats.WarningCount)
	} else {
		fmt.Fprintln(stdout, "ok")
	}
	return exitOK
}

func printDiagnostics(w io.Writer, a *semantic.Analyzer) {
	list := append(append([]*diag.Error(nil), a.Errors()...), a.Warnings()...)
	diag.Sort(list)
	for _, d := range list {
		fmt.Fprintf(w, "%s: %s[%s]: %s\n", d.Pos, d.Severity, d.Code, d.Msg)
		if len(d.Notes) > 0 {
			fmt.Fprint(w, text.Indent(strings.Join(d.Notes, "\n")+"\n", "    note: "))
		}
	}
}

// -------------- DUMP --------------

func cmdDump(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags("dump", args, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitUsage
	}
	defer opts.log.Sync() //nolint:errcheck

	unit, loadErrs := load(opts.path, stderr)
	if unit == nil {
		return exitUsage
	}

	fmt.Fprintln(stdout, "== tree")
	fmt.Fprint(stdout, ast.DumpUnit(unit.Nodes))

	a := semantic.NewWithConfig(opts.cfg, opts.log)
	err = a.Analyze(unit.Nodes)
	fmt.Fprintln(stdout, "== scopes")
	if derr := a.Table().Dump(stdout); derr != nil {
		fmt.Fprintln(stderr, "error:", derr)
		return exitUsage
	}
	if err != nil || loadErrs > 0 {
		fmt.Fprintln(stdout, "== diagnostics")
		printDiagnostics(stdout, a)
		return exitDiagnostics
	}
	return exitOK
}
