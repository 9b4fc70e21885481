package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/automaple"
	"github.com/jward/automaple/internal/config"
	"github.com/jward/automaple/internal/logging"
	"github.com/jward/automaple/internal/sim"
	"github.com/jward/automaple/internal/store"
)

var (
	flagWorld     string
	flagTimeout   time.Duration
	flagNoJournal bool
)

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Run a script against the simulated backend",
	Long: "Runs a script file, or a script by name from the scripts directory, against an in-memory game backend. " +
		"Ctrl-C cancels the session cooperatively.",
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&flagWorld, "world", "", "YAML file describing the simulated world")
	runCmd.Flags().DurationVar(&flagTimeout, "timeout", 0, "cancel the session after this long (0 = no limit)")
	runCmd.Flags().BoolVar(&flagNoJournal, "no-journal", false, "do not record the session")
}

// errScriptFailed marks a run whose result has already been printed.
var errScriptFailed = errors.New("script did not complete")

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return outputError("run", err)
	}
	logger := logging.New(cfg.Logging, version)

	backend, err := newBackend()
	if err != nil {
		return outputError("run", err)
	}

	rt := newRuntime(cfg, logger)
	opts := controllerOptions(cfg, logger, rt)

	if cfg.Journal.Enabled && !flagNoJournal {
		j, closeJournal, err := openBatchedJournal(cfg)
		if err != nil {
			return outputError("run", err)
		}
		defer closeJournal()
		opts = append(opts, automaple.WithJournal(j))
	}

	script, err := loadScriptArg(rt, args[0])
	if err != nil {
		return outputError("run", err)
	}

	ctrl := automaple.New(backend, sim.NewConsole(os.Stderr, os.Stdin), opts...)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = sigCtx
	if flagTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flagTimeout)
		defer cancel()
	}

	res, err := runUntil(ctx, sigCtx, ctrl, script, logger)
	if err != nil {
		return outputError("run", err)
	}

	if err := outputResult(CLIResult{Command: "run", Results: runToCLI(res)}); err != nil {
		return err
	}
	if res.Outcome == automaple.OutcomeErrored || res.Diagnostic != nil {
		errorHandled = true
		return errScriptFailed
	}
	return nil
}

// runUntil runs script under ctx and turns the end of stopCtx into a
// cooperative cancel. A stop that lands before the session starts still
// reaches it through ctx.
func runUntil(ctx, stopCtx context.Context, ctrl *automaple.Controller, script automaple.Script, logger *logging.Logger) (*automaple.Result, error) {
	done := make(chan struct{})
	watched := make(chan struct{})
	go func() {
		defer close(watched)
		select {
		case <-stopCtx.Done():
			logger.Info("interrupted, cancelling session")
			if err := ctrl.RequestCancel(context.Background()); err != nil {
				logger.Warn("cancel failed", "error", err)
			}
		case <-done:
		}
	}()

	res, err := ctrl.Run(ctx, script)
	close(done)
	<-watched
	return res, err
}

func newBackend() (*sim.Backend, error) {
	if flagWorld == "" {
		return sim.New(), nil
	}
	w, err := sim.LoadWorld(flagWorld)
	if err != nil {
		return nil, err
	}
	return sim.New(sim.WithWorld(w)), nil
}

// openBatchedJournal opens the journal database and buffers call records.
func openBatchedJournal(cfg *config.Config) (store.Journal, func(), error) {
	if err := ensureDir(cfg.Journal.Path); err != nil {
		return nil, nil, err
	}
	s, err := automaple.OpenJournal(cfg.Journal.Path)
	if err != nil {
		return nil, nil, err
	}
	bj := store.NewBatchedJournal(s, store.DefaultBatchSize)
	closeFn := func() {
		if err := bj.Flush(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: flushing journal: %s\n", err)
		}
		s.Close()
	}
	return bj, closeFn, nil
}
