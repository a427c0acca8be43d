package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"sindex/internal/cliutil"
	"sindex/internal/config"
	"sindex/internal/frontend"
	"sindex/internal/indexer"
	"sindex/internal/logging"
	"sindex/internal/query"
	"sindex/internal/remover"
	"sindex/internal/render"
	"sindex/internal/store"
	"sindex/internal/walk"
	"sindex/internal/watch"
)

var logger *slog.Logger

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	globalFS := flag.NewFlagSet("sindex", flag.ContinueOnError)
	globalFS.SetOutput(os.Stderr)
	dbPath := globalFS.String("D", "", "path to the index database")
	globalFS.StringVar(dbPath, "database", "", "path to the index database")
	verbose := globalFS.Int("v", 0, "increase verbosity (repeatable)")

	if len(args) == 0 {
		printUsage()
		return 1
	}

	// the first non-flag token is the subcommand; everything after it is
	// forwarded verbatim (spec.md §6.1's "trailing-argument forwarding").
	// -D/--database takes a following value unless given as -D=value, so
	// it alone must be skipped specially while scanning for that token.
	cmdIndex := -1
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "-h" || a == "--help" {
			printUsage()
			return 0
		}
		if a == "-D" || a == "--database" {
			i++ // skip the value token
			continue
		}
		if len(a) > 0 && a[0] != '-' {
			cmdIndex = i
			break
		}
	}
	if cmdIndex == -1 {
		printUsage()
		return 1
	}

	if err := globalFS.Parse(args[:cmdIndex]); err != nil {
		return cliutil.Fatal(cliutil.NewUsageError("sindex", "", err))
	}

	cmd := args[cmdIndex]
	rest := args[cmdIndex+1:]

	cfg := config.Default()
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}
	cfg.Verbose = *verbose

	logger = logging.New("sindex", cfg.Verbose > 0)

	var err error
	switch cmd {
	case "add":
		err = runAdd(cfg, rest)
	case "rm":
		err = runRemove(cfg, rest)
	case "search":
		err = runSearch(cfg, rest)
	case "help", "-h", "--help":
		printUsage()
		return 0
	default:
		err = cliutil.NewUsageError("sindex", "", fmt.Errorf("unknown command %q", cmd))
	}

	return cliutil.Fatal(err)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: sindex [-D FILE] [-v] [-h] <command> [command-options] [args]

commands:
  add [--include-local-syms] [--watch] [--] <files or directories...>
  rm <pattern...>
  search [-f FMT] [-p PATHGLOB] [-m MODE] [-k KIND] [-e|-l] [PATTERN | LOC]`)
}

func runAdd(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	includeLocal := fs.Bool("include-local-syms", false, "include locally scoped symbols")
	watchMode := fs.Bool("watch", false, "re-index whenever a watched file's mtime changes")
	verbose := fs.Int("v", cfg.Verbose, "increase verbosity (repeatable)")
	if err := fs.Parse(args); err != nil {
		return cliutil.NewUsageError("sindex", "add", err)
	}
	cfg.Verbose = *verbose

	targets := fs.Args()
	if len(targets) == 0 {
		return cliutil.NewUsageError("sindex", "add", fmt.Errorf("no files or directories given"))
	}

	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine project root: %w", err)
	}
	root, err = filepath.EvalSymlinks(root)
	if err != nil {
		return fmt.Errorf("resolve project root: %w", err)
	}

	s, err := store.Open(store.Config{Path: cfg.DatabasePath})
	if err != nil {
		return err
	}
	defer s.Close()

	driver := frontend.NewC()
	opts := indexer.Options{ProjectRoot: root, IncludeLocal: *includeLocal}

	runOnce := func(files []string) error {
		expanded, err := walk.Expand(files)
		if err != nil {
			return fmt.Errorf("expand targets: %w", err)
		}
		return indexer.Run(context.Background(), s, driver, expanded, opts, logger)
	}

	if !*watchMode {
		return runOnce(targets)
	}

	return watch.Run(context.Background(), targets, runOnce, logger)
}

func runRemove(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("rm", flag.ContinueOnError)
	verbose := fs.Int("v", cfg.Verbose, "increase verbosity (repeatable)")
	if err := fs.Parse(args); err != nil {
		return cliutil.NewUsageError("sindex", "rm", err)
	}
	cfg.Verbose = *verbose

	patterns := fs.Args()
	if len(patterns) == 0 {
		return cliutil.NewUsageError("sindex", "rm", fmt.Errorf("no patterns given"))
	}

	s, err := store.Open(store.Config{Path: cfg.DatabasePath})
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := remover.Run(context.Background(), s, patterns)
	if err != nil {
		return err
	}
	logger.Info("removed files", "count", n)
	return nil
}

func runSearch(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	format := fs.String("f", render.DefaultFormat, "output format string")
	pathGlob := fs.String("p", "", "restrict to files matching this GLOB")
	mode := fs.String("m", "", "access-mode mask")
	kind := fs.String("k", "", "single-character kind filter")
	explain := fs.String("e", "", "explain(filename[:line[:column]]): show every record at that point")
	locUsage := fs.String("l", "", "usage(filename[:line[:column]]): show every occurrence of any symbol found at that point")
	if err := fs.Parse(args); err != nil {
		return cliutil.NewUsageError("sindex", "search", err)
	}

	opts := query.Options{Path: *pathGlob, ModeMask: *mode}
	if *kind != "" {
		if len(*kind) != 1 {
			return cliutil.NewUsageError("sindex", "search", fmt.Errorf("-k expects a single character, got %q", *kind))
		}
		opts.Kind = (*kind)[0]
	}

	switch {
	case *explain != "" && *locUsage != "":
		return cliutil.NewUsageError("sindex", "search", fmt.Errorf("-e and -l are mutually exclusive"))
	case *explain != "":
		loc, err := query.ParseLocation(*explain)
		if err != nil {
			return cliutil.NewUsageError("sindex", "search", err)
		}
		opts.LocationMode = query.Explain
		opts.Location = loc
	case *locUsage != "":
		loc, err := query.ParseLocation(*locUsage)
		if err != nil {
			return cliutil.NewUsageError("sindex", "search", err)
		}
		opts.LocationMode = query.Usage
		opts.Location = loc
	default:
		if fs.NArg() > 0 {
			opts.Symbol = fs.Arg(0)
		}
	}

	s, err := store.Open(store.Config{Path: cfg.DatabasePath, ReadOnly: true})
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()
	if cfg.Verbose > 1 {
		sqlText, sqlArgs, buildErr := query.Debug(opts)
		if buildErr == nil {
			logger.Debug("query", "sql", sqlText, "args", sqlArgs)
		}
	}

	rows, err := query.Run(ctx, s, opts)
	if err != nil {
		return err
	}

	renderer, err := render.New(*format)
	if err != nil {
		return cliutil.NewUsageError("sindex", "search", err)
	}
	defer renderer.Close()

	for _, row := range rows {
		if err := renderer.Render(os.Stdout, row); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout)
	}
	return nil
}
