// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/indexit"
	"github.com/poiesic/indexit/config"
	"github.com/poiesic/indexit/core"
	"github.com/poiesic/indexit/ingestion"
	"github.com/poiesic/indexit/source"
)

func main() {
	app := &cli.App{
		Name:  "indexit",
		Usage: "Trust-aware document indexing pipeline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML configuration file",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the ingestion pipeline until interrupted",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dir",
						Usage: "Directory of documents to serve as the fetch source",
					},
				},
			},
			{
				Name:   "ingest",
				Usage:  "Ingest files from a directory into a workspace",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "workspace",
						Aliases:  []string{"w"},
						Usage:    "Workspace id",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "dir",
						Aliases:  []string{"d"},
						Usage:    "Directory of documents to ingest",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:  "source-id",
						Usage: "Ingest only the named files (relative to --dir)",
					},
					&cli.BoolFlag{
						Name:  "skip-enrich",
						Usage: "Skip summarization for the ingested documents",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Give up waiting for the pipeline to drain",
						Value: 10 * time.Minute,
					},
				},
			},
			{
				Name:   "delete",
				Usage:  "Remove a document from a workspace's indexes",
				Action: deleteCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "workspace",
						Aliases:  []string{"w"},
						Usage:    "Workspace id",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "source-id",
						Aliases:  []string{"s"},
						Usage:    "Document source id",
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Give up waiting for the pipeline to drain",
						Value: 1 * time.Minute,
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Show pipeline health and per-document sync state",
				Action: statusCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "workspace",
						Aliases: []string{"w"},
						Usage:   "List documents of this workspace",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Run a hybrid query against a workspace",
				Action:    searchCommand,
				ArgsUsage: "QUERY...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "workspace",
						Aliases:  []string{"w"},
						Usage:    "Workspace id",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of hits",
						Value: 10,
					},
				},
			},
			{
				Name:   "migrate",
				Usage:  "Re-embed documents indexed under an outdated embedding spec",
				Action: migrateCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "workspace",
						Aliases:  []string{"w"},
						Usage:    "Workspace id",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "dir",
						Aliases:  []string{"d"},
						Usage:    "Directory the documents are fetched from",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Count migration candidates without re-indexing",
					},
				},
			},
			{
				Name:   "reconcile",
				Usage:  "Remove dense points no registry entry references",
				Action: reconcileCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "workspace",
						Aliases:  []string{"w"},
						Usage:    "Workspace id",
						Required: true,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

// openEngine loads the configuration and wires the engine. A non-empty dir
// replaces the default empty connector with a directory connector.
func openEngine(c *cli.Context, dir string) (*indexit.Engine, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	opts := []indexit.EngineOption{}
	if dir != "" {
		connector, err := source.NewDir(dir)
		if err != nil {
			return nil, fmt.Errorf("open source directory: %w", err)
		}
		opts = append(opts, indexit.WithConnector(connector))
	}

	return indexit.NewEngine(cfg, opts...)
}

func serveCommand(c *cli.Context) error {
	engine, err := openEngine(c, c.String("dir"))
	if err != nil {
		return err
	}
	defer engine.Close()

	pipeline, err := engine.NewPipeline()
	if err != nil {
		return err
	}
	if err := pipeline.Run(); err != nil {
		return err
	}
	defer pipeline.Close()

	slog.Info("pipeline running, waiting for work")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down")
	return nil
}

func ingestCommand(c *cli.Context) error {
	ctx := context.Background()
	workspaceID := c.String("workspace")

	dir, err := source.NewDir(c.String("dir"))
	if err != nil {
		return fmt.Errorf("open source directory: %w", err)
	}

	engine, err := openEngine(c, c.String("dir"))
	if err != nil {
		return err
	}
	defer engine.Close()

	pipeline, err := engine.NewPipeline()
	if err != nil {
		return err
	}
	if err := pipeline.Run(); err != nil {
		return err
	}
	defer pipeline.Close()

	sourceIDs := c.StringSlice("source-id")
	if len(sourceIDs) == 0 {
		sourceIDs, err = dir.List(ctx)
		if err != nil {
			return fmt.Errorf("list source directory: %w", err)
		}
	}
	if len(sourceIDs) == 0 {
		return fmt.Errorf("no documents found in %s", c.String("dir"))
	}

	var opts []ingestion.IngestOption
	if c.Bool("skip-enrich") {
		opts = append(opts, ingestion.WithSkipEnrich())
	}
	for _, sourceID := range sourceIDs {
		if _, err := pipeline.StartIngest(ctx, workspaceID, sourceID, opts...); err != nil {
			return fmt.Errorf("enqueue %s: %w", sourceID, err)
		}
	}
	fmt.Fprintf(os.Stderr, "Enqueued %d documents\n", len(sourceIDs))

	if err := waitForDrain(ctx, pipeline, c.Duration("timeout")); err != nil {
		return err
	}

	reportDocuments(ctx, engine, workspaceID)
	return nil
}

func deleteCommand(c *cli.Context) error {
	ctx := context.Background()

	engine, err := openEngine(c, "")
	if err != nil {
		return err
	}
	defer engine.Close()

	pipeline, err := engine.NewPipeline()
	if err != nil {
		return err
	}
	if err := pipeline.Run(); err != nil {
		return err
	}
	defer pipeline.Close()

	if _, err := pipeline.StartDelete(ctx, c.String("workspace"), c.String("source-id")); err != nil {
		return err
	}

	return waitForDrain(ctx, pipeline, c.Duration("timeout"))
}

func statusCommand(c *cli.Context) error {
	ctx := context.Background()

	engine, err := openEngine(c, "")
	if err != nil {
		return err
	}
	defer engine.Close()

	pipeline, err := engine.NewPipeline()
	if err != nil {
		return err
	}
	defer pipeline.Close()

	report, err := pipeline.Health(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Healthy: %v\n\n", report.Healthy)
	fmt.Printf("%-8s %8s %8s %10s %8s %10s %8s %8s\n",
		"STAGE", "WAITING", "ACTIVE", "PROCESSED", "FAILED", "DUPLICATES", "ITEMS", "AVG_MS")
	for _, stage := range ingestion.Stages() {
		health := report.Stages[stage]
		fmt.Printf("%-8s %8d %8d %10d %8d %10d %8d %8d\n",
			stage.String(),
			health.Queue.Waiting,
			health.Queue.Active,
			health.Counters.Processed,
			health.Counters.Failed,
			health.Counters.Duplicates,
			health.Counters.Items,
			health.Counters.AvgLatencyMS)
	}

	if workspaceID := c.String("workspace"); workspaceID != "" {
		fmt.Println()
		reportDocuments(ctx, engine, workspaceID)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	ctx := context.Background()

	query := strings.Join(c.Args().Slice(), " ")
	if query == "" {
		return fmt.Errorf("query is required")
	}

	engine, err := openEngine(c, "")
	if err != nil {
		return err
	}
	defer engine.Close()

	searcher, err := engine.NewSearcher()
	if err != nil {
		return err
	}

	results, err := searcher.Search(ctx, c.String("workspace"), query, c.Int("limit"))
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}
	for i, result := range results {
		fmt.Printf("%2d. [%.4f] %s", i+1, result.Score, result.SourceID)
		if result.Heading != "" {
			fmt.Printf(" (%s)", result.Heading)
		}
		fmt.Printf("\n    %s\n", snippet(result.Text, 160))
	}
	return nil
}

func migrateCommand(c *cli.Context) error {
	ctx := context.Background()

	engine, err := openEngine(c, c.String("dir"))
	if err != nil {
		return err
	}
	defer engine.Close()

	migrator, err := engine.NewMigrator()
	if err != nil {
		return err
	}

	status, err := migrator.Start(ctx, c.String("workspace"), c.Bool("dry-run"))
	if err != nil {
		return err
	}

	if c.Bool("dry-run") {
		fmt.Printf("%d documents need re-embedding\n", status.Total)
		return nil
	}
	fmt.Fprintf(os.Stderr, "Migrating %d documents\n", status.Total)

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	done := make(chan error, 1)
	go func() { done <- migrator.Wait(ctx) }()

	for {
		select {
		case err := <-done:
			if err != nil {
				return err
			}
			final := migrator.Status()
			fmt.Printf("Done: %d migrated, %d failed of %d\n", final.Done, final.Failed, final.Total)
			if final.Failed > 0 {
				fmt.Printf("Last error: %s\n", final.LastError)
			}
			return nil
		case <-ticker.C:
			progress := migrator.Status()
			fmt.Fprintf(os.Stderr, "  %d/%d done, %d failed",
				progress.Done+progress.Failed, progress.Total, progress.Failed)
			if !progress.EstimatedFinish.IsZero() {
				fmt.Fprintf(os.Stderr, ", estimated finish %s",
					progress.EstimatedFinish.Format(time.Kitchen))
			}
			fmt.Fprintln(os.Stderr)
		}
	}
}

func reconcileCommand(c *cli.Context) error {
	ctx := context.Background()

	engine, err := openEngine(c, "")
	if err != nil {
		return err
	}
	defer engine.Close()

	removed, err := engine.Indexer().ReconcileOrphans(ctx, c.String("workspace"))
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d orphaned points\n", removed)
	return nil
}

// waitForDrain polls pipeline health until every stage queue is empty.
func waitForDrain(ctx context.Context, pipeline *ingestion.Pipeline, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		report, err := pipeline.Health(ctx)
		if err != nil {
			return err
		}
		busy := false
		for _, health := range report.Stages {
			if health.Queue.Waiting > 0 || health.Queue.Active > 0 {
				busy = true
				break
			}
		}
		if !busy {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("pipeline did not drain within %s", timeout)
		}
		time.Sleep(250 * time.Millisecond)
	}
}

// reportDocuments prints the sync state of every document in the workspace.
func reportDocuments(ctx context.Context, engine *indexit.Engine, workspaceID string) {
	entries, err := engine.DocumentRepository().ListDocuments(ctx, workspaceID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list documents: %v\n", err)
		return
	}
	if len(entries) == 0 {
		fmt.Printf("No documents in workspace %s\n", workspaceID)
		return
	}

	fmt.Printf("%-30s %-8s %7s  %s\n", "SOURCE", "STATUS", "CHUNKS", "DETAIL")
	for _, entry := range entries {
		detail := snippet(entry.Summary, 60)
		if lastErr := entry.LastError(); lastErr != nil && entry.Status == core.SyncError {
			detail = fmt.Sprintf("%s: %s", lastErr.Stage, snippet(lastErr.Message, 60))
		}
		fmt.Printf("%-30s %-8s %7d  %s\n",
			snippet(entry.SourceID, 30), entry.Status.String(), entry.ChunkCount, detail)
	}
}

func snippet(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
