package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"veriflow/internal/config"
	"veriflow/internal/coordinator"
	"veriflow/internal/designctx"
	"veriflow/internal/registry"
	"veriflow/internal/state"
	"veriflow/internal/telemetry"
	"veriflow/internal/tui"
	"veriflow/internal/worker"
)

var (
	runWatch         bool
	runDryRun        bool
	runMaxIterations int
	runMaxRetries    int
	runOutputDir     string
	runRoster        string
	runNoPlanner     bool
)

var runCmd = &cobra.Command{
	Use:   "run [request]",
	Short: "Coordinate a design request to completion",
	Long: `Run a coordination session for a natural-language request.

The request is classified, decomposed into design and verification
phases when it asks for both, and dispatched to capability-compatible
workers. Each result must pass its quality gate before the pipeline
advances, and the session only completes when every required gate has
passed.

Examples:
  veriflow run "design an 8-bit counter with testbench"
  veriflow run --dry-run "implement a FIFO and verify it"
  veriflow run --watch "create an ALU module and simulate it"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "Show a live session view")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Use deterministic stub workers instead of model calls")
	runCmd.Flags().IntVar(&runMaxIterations, "max-iterations", 0, "Override the loop iteration budget")
	runCmd.Flags().IntVar(&runMaxRetries, "max-retries", 0, "Override the gate-failure retry budget")
	runCmd.Flags().StringVar(&runOutputDir, "output", "", "Artifact output directory")
	runCmd.Flags().StringVar(&runRoster, "roster", "", "Path to an agents.yaml roster file")
	runCmd.Flags().BoolVar(&runNoPlanner, "no-planner", false, "Advance stages directly without planner consultation")
}

func runRun(cmd *cobra.Command, args []string) error {
	request := strings.Join(args, " ")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	outDir := cfg.Workspace.OutputDir
	if runOutputDir != "" {
		outDir = runOutputDir
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	reg := registry.New()
	rosterPath := cfg.Workspace.Roster
	if runRoster != "" {
		rosterPath = runRoster
	}
	if rosterPath != "" {
		if err := reg.LoadRoster(rosterPath); err != nil {
			return fmt.Errorf("load roster: %w", err)
		}
	} else {
		reg.DefaultRoster()
	}

	store, err := designctx.NewFSStore(outDir)
	if err != nil {
		return fmt.Errorf("open artifact store: %w", err)
	}
	watcher, err := designctx.Watch(store)
	if err != nil {
		return fmt.Errorf("watch artifact store: %w", err)
	}
	defer watcher.Close()

	dbPath := cfg.Workspace.DBPath
	if dbPath == "" {
		dbPath = state.DefaultDBPath()
	}
	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open state db: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate state db: %w", err)
	}

	var sink telemetry.Sink = telemetry.MultiSink{telemetry.NewLogSink(), state.NewSink(db)}
	if runWatch {
		// The TUI owns the terminal; keep telemetry off stderr.
		sink = state.NewSink(db)
	}

	opts := coordinator.Options{
		Registry:         reg,
		Store:            store,
		Sink:             sink,
		DB:               db,
		MaxIterations:    firstPositive(runMaxIterations, cfg.Defaults.MaxIterations),
		MaxRetries:       firstPositive(runMaxRetries, cfg.Defaults.MaxRetries),
		WorkerWait:       cfg.Defaults.WorkerWait,
		QualityThreshold: cfg.Gates.QualityThreshold,
	}

	if runDryRun {
		opts.Workers = stubWorkers(reg, outDir, request)
	} else {
		client, err := buildClient(cfg)
		if err != nil {
			return err
		}
		workers := make(map[string]worker.Worker, len(reg.All()))
		for _, p := range reg.All() {
			workers[p.ID] = worker.NewLLM(client, outDir)
		}
		opts.Workers = workers
		opts.Opinion = plannerOpinion(client)
		if !runNoPlanner {
			opts.Planner = plannerBackend(client)
		}
	}

	coord, err := coordinator.New(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runWatch {
		type outcome struct {
			res *coordinator.Result
			err error
		}
		ch := make(chan outcome, 1)
		go func() {
			res, err := coord.Run(ctx, request)
			ch <- outcome{res, err}
		}()
		if err := tui.Run(request, coord.Events()); err != nil {
			return err
		}
		o := <-ch
		return reportResult(o.res, o.err)
	}

	res, err := coord.Run(ctx, request)
	return reportResult(res, err)
}

// reportResult prints the session outcome and maps failure to a non-nil
// error so the process exit code reflects it.
func reportResult(res *coordinator.Result, err error) error {
	if res == nil {
		return err
	}

	fmt.Printf("session %s finished after %d iteration(s)\n", res.SessionID, res.Iterations)
	fmt.Printf("  stage: %s\n", res.Stage)
	fmt.Printf("  completion: %.1f (%s)\n", res.Assessment.Score, res.Assessment.Quality)
	for _, st := range res.Plan.Subtasks {
		fmt.Printf("  %s: %s (worker %s)\n", st.Type, st.Status, orNone(st.AssignedTo))
	}
	if res.Summary != "" {
		fmt.Printf("  summary: %s\n", res.Summary)
	}

	if res.Success {
		color.Green("completed")
		return nil
	}

	for _, m := range res.Assessment.Missing {
		color.Yellow("  missing: %s", m)
	}
	color.Red("failed: %s", res.Failure)
	if err != nil {
		return err
	}
	return fmt.Errorf("session did not complete")
}

// stubWorkers binds every registered worker to a deterministic stub.
func stubWorkers(reg *registry.Registry, outDir, request string) map[string]worker.Worker {
	name := moduleNameFor(request)
	workers := make(map[string]worker.Worker)
	for _, p := range reg.All() {
		workers[p.ID] = worker.NewStub(outDir, name)
	}
	return workers
}

// moduleNameFor guesses a module name from the request vocabulary.
func moduleNameFor(request string) string {
	lower := strings.ToLower(request)
	for _, kw := range []string{"counter", "alu", "fifo", "uart", "adder", "fsm"} {
		if strings.Contains(lower, kw) {
			return kw
		}
	}
	return "top"
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
