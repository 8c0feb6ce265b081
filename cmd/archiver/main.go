// Package main is the entrypoint for the history archiver.
//
// The archiver is a one-shot maintenance job, intended to run from cron or
// a systemd timer. It exports generation history older than the retention
// window to a compressed archive file and prunes the exported rows, in
// lockstep, so an interrupted run never loses records that were not yet
// written out.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"seopilot/internal/archive"
	"seopilot/internal/config"
	"seopilot/internal/db"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		outPath   = flag.String("out", "", "archive output path (default seopilot-history-<date>.json.zst)")
		retention = flag.Duration("retention", 180*24*time.Hour, "keep history newer than this")
		timeout   = flag.Duration("timeout", 10*time.Minute, "overall run deadline")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.URL.Unmask())
	if err != nil {
		return fmt.Errorf("opening database pool: %w", err)
	}
	defer pool.Close()

	path := *outPath
	if path == "" {
		path = fmt.Sprintf("seopilot-history-%s.json.zst", time.Now().UTC().Format("2006-01-02"))
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating archive file: %w", err)
	}

	archiver := archive.NewArchiver(db.NewGenerationRepository(pool), *retention, nil, logger)

	exported, runErr := archiver.Run(ctx, out)
	if closeErr := out.Close(); runErr == nil {
		runErr = closeErr
	}
	if runErr != nil {
		return fmt.Errorf("archiving history: %w", runErr)
	}

	logger.Info("archive run complete",
		"path", path,
		"exported", exported,
		"retention", retention.String(),
	)
	return nil
}
