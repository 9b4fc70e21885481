package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jward/automaple"
	"github.com/jward/automaple/internal/control"
	"github.com/jward/automaple/internal/logging"
	"github.com/jward/automaple/internal/sim"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept start/cancel/status requests over WebSocket",
	Long:  "Serves the control protocol on control.host:control.port at control.path, driving the simulated backend.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagWorld, "world", "", "YAML file describing the simulated world")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return outputError("serve", err)
	}
	logger := logging.New(cfg.Logging, version)

	backend, err := newBackend()
	if err != nil {
		return outputError("serve", err)
	}

	rt := newRuntime(cfg, logger)
	hub := control.NewHub(logger.With("component", "hub"))
	opts := append(controllerOptions(cfg, logger, rt), automaple.WithEventHook(hub.Publish))

	if cfg.Journal.Enabled {
		j, closeJournal, err := openBatchedJournal(cfg)
		if err != nil {
			return outputError("serve", err)
		}
		defer closeJournal()
		opts = append(opts, automaple.WithJournal(j))
	}

	ctrl := automaple.New(backend, logNotifier{logger}, opts...)
	srv := control.NewServer(cfg.Control, ctrl, hub, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx)
}

// logNotifier reports script messages to the log; a served session has no
// terminal to prompt on.
type logNotifier struct {
	logger *logging.Logger
}

func (n logNotifier) Notify(msg string) {
	n.logger.Info(msg, "source", "notify")
}

func (n logNotifier) Prompt(context.Context) (string, error) {
	return "", sim.ErrNoInput
}
