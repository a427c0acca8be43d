// Package indexer orchestrates one `add` run: it drives the frontend
// over a resolved file list, normalizes callbacks through a sink into a
// staging table, and publishes the result with a single atomic merge
// (spec.md §2's data flow: frontend → sink → stage → store).
package indexer

import (
	"context"
	"fmt"
	"log/slog"

	"sindex/internal/frontend"
	"sindex/internal/registry"
	"sindex/internal/sink"
	"sindex/internal/stage"
	"sindex/internal/store"
)

// Options configures one add run.
type Options struct {
	ProjectRoot  string // absolute, symlink-resolved project root
	IncludeLocal bool   // --include-local-syms
}

// Run resolves args into streams via driver, walks them, and publishes
// every surviving record into s in one transaction.
func Run(ctx context.Context, s *store.Store, driver frontend.Driver, args []string, opts Options, logger *slog.Logger) error {
	streams, err := driver.Streams(args)
	if err != nil {
		return fmt.Errorf("resolve input streams: %w", err)
	}
	if len(streams) == 0 {
		return nil
	}

	stg, err := stage.Open(ctx, s)
	if err != nil {
		return err
	}
	defer stg.Close(ctx)

	reg := registry.New(opts.ProjectRoot, s)
	sk := sink.New(ctx, reg, stg, streams, opts.IncludeLocal, logger)

	if err := driver.Run(streams, opts.IncludeLocal, sk); err != nil {
		return fmt.Errorf("run frontend: %w", err)
	}
	if err := sk.Err(); err != nil {
		return err
	}

	if err := stg.Commit(ctx, s); err != nil {
		return err
	}

	logger.Info("add complete", "files", len(streams))
	return nil
}
