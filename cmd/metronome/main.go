// Command metronome is the background job runner daemon.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/metronome/config"
	"github.com/teranos/metronome/db"
	"github.com/teranos/metronome/errors"
	"github.com/teranos/metronome/jobs"
	"github.com/teranos/metronome/logger"
	"github.com/teranos/metronome/runner"
)

var verbosity int

var rootCmd = &cobra.Command{
	Use:   "metronome",
	Short: "Background job runner",
	Long: `metronome runs registered background jobs on persisted schedules.

Commands:
  serve     Run the daemon: scheduler ticker plus job worker
  init      Seed job definitions for all registered kinds
  list      Show job definitions and their next scheduled run
  run       Enqueue one job immediately and wait for it to finish
  history   Show recent job runs`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := logger.Initialize(cfg.Log.JSON); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		if verbosity > 0 || cfg.Log.Verbose {
			if err := logger.SetVerbose(); err != nil {
				return errors.Wrap(err, "failed to enable verbose logging")
			}
		}
		return nil
	},
}

func main() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Enable verbose (debug) logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openEngine wires up the database, registry, and engine the way every
// subcommand needs them.
func openEngine(ctx context.Context, cfg *config.Config) (*runner.Engine, func(), error) {
	log := logger.Logger

	conn, err := db.OpenWithMigrations(cfg.Database.Path, log)
	if err != nil {
		return nil, nil, err
	}

	registry := runner.NewRegistry()
	runs := runner.NewRunStore(conn)
	retention := time.Duration(cfg.Scheduler.RunRetentionDays) * 24 * time.Hour
	registry.Register(jobs.NewRetentionJob(runs, retention))
	registry.Register(jobs.NewVacuumJob(conn))

	engine := runner.NewEngineWithContext(ctx, conn, registry, nil, log)
	cleanup := func() { conn.Close() }
	return engine, cleanup, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the metronome daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		log := logger.Logger

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		engine, cleanup, err := openEngine(ctx, cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := engine.Initialize(); err != nil {
			return errors.Wrap(err, "failed to initialize job definitions")
		}

		ticker := runner.NewTickerWithContext(ctx, engine, runner.TickerConfig{
			Interval: time.Duration(cfg.Scheduler.TickIntervalSeconds) * time.Second,
		}, log)
		ticker.Start()
		defer ticker.Stop()

		log.Infow("metronome daemon started",
			"db", cfg.Database.Path,
			"tick_interval_seconds", cfg.Scheduler.TickIntervalSeconds,
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		log.Infow("Shutting down", "signal", sig.String())

		cancel()
		waitForDrain(engine, 30*time.Second)
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Seed job definitions for all registered kinds",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		engine, cleanup, err := openEngine(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		return engine.Initialize()
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show job definitions and their next scheduled run",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		engine, cleanup, err := openEngine(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		defs, err := engine.ListAll()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KIND\tNAME\tENABLED\tINTERVAL\tLAST RUN\tNEXT RUN")
		for _, def := range defs {
			lastRun := "never"
			nextRun := "-"
			if !def.LastExecutedAt.Equal(runner.NeverRan) {
				lastRun = def.LastExecutedAt.Local().Format(time.RFC3339)
			}
			if def.Enabled {
				nextRun = def.NextRun().Local().Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\t%s\n",
				def.Kind, def.Name, def.Enabled, def.Interval, lastRun, nextRun)
		}
		return w.Flush()
	},
}

var runTarget int64

var runCmd = &cobra.Command{
	Use:   "run <kind>",
	Short: "Enqueue one job immediately and wait for it to finish",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := args[0]

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		engine, cleanup, err := openEngine(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := engine.Initialize(); err != nil {
			return errors.Wrap(err, "failed to initialize job definitions")
		}

		def, err := engine.Definitions().GetByKind(kind)
		if err != nil {
			if errors.IsNotFoundError(err) {
				return errors.Newf("unknown job kind %q", kind)
			}
			return err
		}

		fmt.Printf("Running %s (target %d)...\n", def.Name, runTarget)
		engine.Enqueue(kind, runTarget)
		waitForDrain(engine, 0)

		runs, err := engine.Runs().List(kind, 1)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			return errors.New("no run was recorded")
		}
		run := runs[0]
		if run.Status == runner.RunStatusFailed {
			return errors.Newf("%s failed: %s", def.Name, run.Error)
		}
		fmt.Printf("%s completed in %dms\n", def.Name, *run.DurationMs)
		return nil
	},
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [kind]",
	Short: "Show recent job runs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := ""
		if len(args) == 1 {
			kind = args[0]
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		engine, cleanup, err := openEngine(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		runs, err := engine.Runs().List(kind, historyLimit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STARTED\tKIND\tTARGET\tSTATUS\tDURATION\tERROR")
		for _, run := range runs {
			duration := "-"
			if run.DurationMs != nil {
				duration = fmt.Sprintf("%dms", *run.DurationMs)
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
				run.StartedAt.Local().Format(time.RFC3339),
				run.Kind, run.Target, run.Status, duration, run.Error)
		}
		return w.Flush()
	},
}

// waitForDrain polls until the worker goes idle with an empty queue. A zero
// timeout waits indefinitely.
func waitForDrain(engine *runner.Engine, timeout time.Duration) {
	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for engine.Running() || len(engine.Pending()) > 0 {
		if !deadline.IsZero() && time.Now().After(deadline) {
			logger.Logger.Warnw("Timed out waiting for worker to drain")
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func init() {
	runCmd.Flags().Int64Var(&runTarget, "target", 0, "Target entity ID (0 = none)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs to show")
}
