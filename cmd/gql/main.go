package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fnuworsu/gqldb/internal/config"
	"github.com/fnuworsu/gqldb/internal/logger"
	"github.com/fnuworsu/gqldb/internal/table"
	"github.com/fnuworsu/gqldb/pkg/batch"
	"github.com/fnuworsu/gqldb/pkg/fixture"
	"github.com/fnuworsu/gqldb/pkg/query"
	"github.com/fnuworsu/gqldb/pkg/storage"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "gql",
	Short:         "Query documents with SELECT / WHERE / GROUP BY / PIVOT",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is the configuration and open store shared by every command
type env struct {
	cfg   *config.Config
	log   *slog.Logger
	store storage.Store
}

func openEnv() (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log := logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	store, err := storage.Open(cfg.Data.Backend, cfg.Data.Dir, log)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Data.Backend, err)
	}
	return &env{cfg: cfg, log: log, store: store}, nil
}

func (e *env) Close() error {
	return e.store.Close()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (YAML or JSON)")

	var q query.Query
	var asJSON bool
	queryCmd := &cobra.Command{
		Use:   "query",
		Short: "Run one query against the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), q, asJSON)
		},
	}
	f := queryCmd.Flags()
	f.StringVarP(&q.Select, "select", "s", "", "select clause")
	f.StringVarP(&q.Where, "where", "w", "", "where clause")
	f.StringVarP(&q.GroupBy, "group-by", "g", "", "group by clause")
	f.StringVarP(&q.Pivot, "pivot", "p", "", "pivot clause")
	f.StringVarP(&q.Label, "label", "l", "", "label clause")
	f.BoolVar(&q.Descending, "descending", false, "sort groups in descending order")
	f.BoolVar(&q.Conflicts, "conflicts", false, "include _conflicts in documents")
	f.BoolVar(&asJSON, "json", false, "print the result as JSON")

	loadCmd := &cobra.Command{
		Use:   "load <file>...",
		Short: "Load documents from YAML or JSON lists",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(args)
		},
	}

	var workers int
	batchCmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Run a file of named queries concurrently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), args[0], workers)
		},
	}
	batchCmd.Flags().IntVar(&workers, "workers", 0, "worker pool size (default batch.workers)")

	var interval time.Duration
	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Snapshot the WAL store, once or periodically until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(interval)
		},
	}
	snapshotCmd.Flags().DurationVar(&interval, "every", 0, "snapshot interval; 0 snapshots once")

	rootCmd.AddCommand(queryCmd, loadCmd, batchCmd, snapshotCmd)
}

func runQuery(ctx context.Context, q query.Query, asJSON bool) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	engine := query.NewEngine(e.store, query.WithLogger(e.log))
	res, err := engine.Query(ctx, q)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	table.Write(os.Stdout, res)
	return nil
}

func runLoad(paths []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	total := 0
	for _, path := range paths {
		n, err := fixture.LoadInto(e.store, path)
		total += n
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Info("loaded fixture", "path", path, "documents", n)
	}
	fmt.Printf("✓ Loaded %d documents\n", total)
	return nil
}

func runBatch(ctx context.Context, path string, workers int) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	named, err := fixture.LoadQueries(path)
	if err != nil {
		return err
	}
	jobs := make([]batch.Job, len(named))
	for i, nq := range named {
		jobs[i] = batch.Job{Name: nq.Name, Query: nq.Query}
	}

	if workers == 0 {
		workers = e.cfg.Batch.Workers
	}
	engine := query.NewEngine(e.store, query.WithLogger(e.log))
	outcomes := batch.Run(ctx, engine, jobs, workers, e.log)

	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	for _, o := range outcomes {
		bold.Printf("== %s (%s)\n", o.Name, o.Duration.Round(time.Microsecond))
		if o.Err != nil {
			red.Println(o.Err)
			continue
		}
		table.Write(os.Stdout, o.Result)
		fmt.Println()
	}

	if n := batch.Failed(outcomes); n > 0 {
		return fmt.Errorf("%d of %d queries failed", n, len(outcomes))
	}
	return nil
}

func runSnapshot(interval time.Duration) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	snap, ok := e.store.(storage.Snapshotter)
	if !ok {
		return fmt.Errorf("the %s backend does not take snapshots", e.cfg.Data.Backend)
	}
	if interval <= 0 {
		return snap.Snapshot()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.log.Info("periodic snapshots started", "every", interval)
	for {
		select {
		case <-ticker.C:
			if err := snap.Snapshot(); err != nil {
				e.log.Error("snapshot failed", "error", err)
			}
		case <-sigCh:
			e.log.Info("shutdown signal received, creating final snapshot")
			return snap.Snapshot()
		}
	}
}
