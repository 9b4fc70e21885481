package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jward/automaple/internal/api"
)

var pathCmd = &cobra.Command{
	Use:   "path <graph-file> <start> <end>",
	Short: "Find the fewest-hop route through an adjacency list",
	Long: "Reads a 1-based adjacency list from a YAML or JSON file, either a bare list of neighbour lists or an " +
		"object with an \"adjacency\" key, and prints the route GetPath would return to a script.",
	Args: cobra.ExactArgs(3),
	RunE: runPath,
}

type graphFile struct {
	Adjacency [][]int `yaml:"adjacency"`
}

// loadAdjacency accepts a bare list or a document with an adjacency key.
// JSON input parses as YAML.
func loadAdjacency(path string) ([][]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading graph: %w", err)
	}
	var bare [][]int
	if err := yaml.Unmarshal(data, &bare); err == nil && bare != nil {
		return bare, nil
	}
	var doc graphFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing graph %s: %w", path, err)
	}
	if doc.Adjacency == nil {
		return nil, fmt.Errorf("parsing graph %s: no adjacency list", path)
	}
	return doc.Adjacency, nil
}

func parseIntArg(s, name string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be an integer", name, s)
	}
	return v, nil
}

func runPath(cmd *cobra.Command, args []string) error {
	adj, err := loadAdjacency(args[0])
	if err != nil {
		return outputError("path", err)
	}
	start, err := parseIntArg(args[1], "start")
	if err != nil {
		return outputError("path", err)
	}
	end, err := parseIntArg(args[2], "end")
	if err != nil {
		return outputError("path", err)
	}

	route, err := api.GetPath(context.Background(), adj, start, end)
	if err != nil {
		return outputError("path", err)
	}

	return outputResult(CLIResult{
		Command: "path",
		Results: CLIPath{
			Start:     start,
			End:       end,
			Path:      route,
			Reachable: route[0] == start,
		},
	})
}
