package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/automaple"
)

var (
	flagLimit int
	flagTrace bool
	flagPrune time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "Show journaled sessions",
	Long: "Lists recent sessions from the journal, or shows one session's call counts, diagnostics and, with --trace, " +
		"every API call it made. --prune removes finished sessions older than the given age.",
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&flagLimit, "limit", 20, "number of sessions to list")
	historyCmd.Flags().BoolVar(&flagTrace, "trace", false, "include the ordered call trace")
	historyCmd.Flags().DurationVar(&flagPrune, "prune", 0, "delete finished sessions older than this (e.g. 720h)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return outputError("history", err)
	}
	if _, err := os.Stat(cfg.Journal.Path); os.IsNotExist(err) {
		return outputError("history", fmt.Errorf("journal not found: %s (run a script first)", cfg.Journal.Path))
	}
	s, err := automaple.OpenJournal(cfg.Journal.Path)
	if err != nil {
		return outputError("history", err)
	}
	defer s.Close()
	hist := automaple.NewHistory(s)

	switch {
	case flagPrune > 0:
		n, err := hist.Prune(flagPrune, time.Now())
		if err != nil {
			return outputError("history", err)
		}
		return outputResult(CLIResult{Command: "history", Results: CLIPrune{Removed: n}})

	case len(args) == 1:
		d, err := hist.Detail(args[0], flagTrace)
		if err != nil {
			return outputError("history", err)
		}
		if d == nil {
			return outputError("history", fmt.Errorf("session not found: %s", args[0]))
		}
		return outputResult(CLIResult{Command: "history", Results: detailToCLI(d)})

	default:
		sessions, err := hist.Recent(flagLimit)
		if err != nil {
			return outputError("history", err)
		}
		out := make([]CLISession, 0, len(sessions))
		for _, sess := range sessions {
			out = append(out, sessionToCLI(sess))
		}
		count := len(out)
		return outputResult(CLIResult{Command: "history", Results: out, TotalCount: &count})
	}
}
