package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/automaple"
	"github.com/jward/automaple/internal/lint"
	"github.com/jward/automaple/internal/logging"
	"github.com/jward/automaple/internal/sim"
)

var checkCmd = &cobra.Command{
	Use:   "check [file...]",
	Short: "Statically check scripts for syntax errors and unknown operations",
	Long: "Parses scripts with tree-sitter and reports syntax errors and references to operations the API does not define. " +
		"With no arguments every script in the scripts directory is checked.",
	RunE: runCheck,
}

// errFindings marks a check that printed findings.
var errFindings = errors.New("check reported problems")

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return outputError("check", err)
	}
	rt := newRuntime(cfg, logging.Discard())

	// The table does not depend on the backend; build it from a throwaway one.
	reg, err := automaple.New(sim.New(), sim.NewMessages(), automaple.WithRuntime(rt)).Registry()
	if err != nil {
		return outputError("check", err)
	}
	checker := lint.NewChecker(rt.Namespace(), reg.Names())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	var findings []lint.Finding
	if len(args) == 0 {
		findings, err = checker.CheckFS(ctx, scriptSource(cfg), ".")
		if err != nil {
			return outputError("check", err)
		}
	} else {
		for _, path := range args {
			src, err := os.ReadFile(path)
			if err != nil {
				return outputError("check", fmt.Errorf("reading %s: %w", path, err))
			}
			found, err := checker.Check(ctx, src)
			if err != nil {
				return outputError("check", fmt.Errorf("checking %s: %w", path, err))
			}
			for i := range found {
				found[i].File = filepath.ToSlash(path)
			}
			findings = append(findings, found...)
		}
	}
	if findings == nil {
		findings = []lint.Finding{}
	}

	count := len(findings)
	if err := outputResult(CLIResult{Command: "check", Results: findings, TotalCount: &count}); err != nil {
		return err
	}
	if count > 0 {
		errorHandled = true
		return errFindings
	}
	return nil
}
