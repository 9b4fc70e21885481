package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/automaple"
	"github.com/jward/automaple/internal/config"
	"github.com/jward/automaple/internal/logging"
	"github.com/jward/automaple/internal/runtime"
	"github.com/jward/automaple/scripts"
)

// version is stamped by the release build.
var version = "dev"

var (
	flagConfig     string
	flagDB         string
	flagFormat     string
	flagScriptsDir string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "automaple",
	Short:         "Run and inspect Lua automation scripts",
	Long:          "automaple runs Lua scripts against the maple automation API, checks them statically and keeps a journal of past sessions.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "journal database path (default: journal.path from config)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagScriptsDir, "scripts-dir", "", "load scripts from this directory instead of the built-in examples")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(pathCmd)
	rootCmd.AddCommand(opsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
}

// loadConfig reads --config and applies --db and --scripts-dir on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDB != "" {
		cfg.Journal.Path = flagDB
		cfg.Journal.Enabled = true
	}
	if flagScriptsDir != "" {
		cfg.Scripts.Dir = flagScriptsDir
	}
	return cfg, nil
}

// newRuntime resolves scripts from --scripts-dir when given, otherwise from
// the embedded examples.
func newRuntime(cfg *config.Config, logger *logging.Logger) *runtime.Runtime {
	opts := []runtime.RuntimeOption{
		runtime.WithNamespace(cfg.Session.Namespace),
		runtime.WithLogger(logger.With("component", "script")),
	}
	if flagScriptsDir == "" {
		opts = append(opts, runtime.WithRuntimeFS(scripts.FS))
	}
	return runtime.NewRuntime(cfg.Scripts.Dir, opts...)
}

// controllerOptions maps config onto Controller options. The journal is
// opened by the caller.
func controllerOptions(cfg *config.Config, logger *logging.Logger, rt *runtime.Runtime) []automaple.Option {
	return []automaple.Option{
		automaple.WithRuntime(rt),
		automaple.WithLogger(logger),
		automaple.WithPollInterval(cfg.PollInterval()),
		automaple.WithSleepPoll(cfg.SleepPoll()),
		automaple.WithPreempt(cfg.Session.Preempt),
	}
}

// loadScriptArg reads a script given on the command line. An existing file
// path is read from disk; anything else is looked up through the runtime.
func loadScriptArg(rt *runtime.Runtime, arg string) (automaple.Script, error) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		data, err := os.ReadFile(arg)
		if err != nil {
			return automaple.Script{}, fmt.Errorf("reading %s: %w", arg, err)
		}
		return automaple.Script{Name: filepath.Base(arg), Source: string(data)}, nil
	}
	name := runtime.ScriptPath(arg)
	src, err := rt.LoadScript(name)
	if err != nil {
		return automaple.Script{}, err
	}
	return automaple.Script{Name: name, Source: src}, nil
}

// scriptSource returns the filesystem `check` walks when given no paths.
func scriptSource(cfg *config.Config) fs.FS {
	if flagScriptsDir != "" {
		return os.DirFS(cfg.Scripts.Dir)
	}
	return scripts.FS
}

// ensureDir creates the parent directory of path.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}
