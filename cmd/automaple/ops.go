package main

import (
	"github.com/spf13/cobra"

	"github.com/jward/automaple"
	"github.com/jward/automaple/internal/logging"
	"github.com/jward/automaple/internal/sim"
)

var opsCmd = &cobra.Command{
	Use:   "ops",
	Short: "List the operations scripts can call",
	Args:  cobra.NoArgs,
	RunE:  runOps,
}

func runOps(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return outputError("ops", err)
	}
	rt := newRuntime(cfg, logging.Discard())
	reg, err := automaple.New(sim.New(), sim.NewMessages(), automaple.WithRuntime(rt)).Registry()
	if err != nil {
		return outputError("ops", err)
	}

	ops := make([]CLIOperation, 0, reg.Len())
	for _, d := range reg.Descriptors() {
		op := CLIOperation{
			Name:      d.Name,
			Args:      make([]string, len(d.Args)),
			Signature: rt.Namespace() + "." + d.Signature(),
		}
		for i, a := range d.Args {
			op.Args[i] = a.Shape()
		}
		if d.Returns != nil {
			op.Returns = d.Returns.Shape()
		}
		ops = append(ops, op)
	}

	count := len(ops)
	return outputResult(CLIResult{Command: "ops", Results: ops, TotalCount: &count})
}
