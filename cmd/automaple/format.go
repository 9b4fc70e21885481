package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jward/automaple/internal/lint"
)

// output is where results are written. Tests swap it.
var output io.Writer = os.Stdout

// outputResult writes a CLIResult in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(output, result)
	}
	enc := json.NewEncoder(output)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(output)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

func formatRunText(w io.Writer, r CLIRun) {
	fmt.Fprintf(w, "%s %s in %s (%d calls)\n", r.Script, r.Outcome,
		(time.Duration(r.DurationMS) * time.Millisecond).String(), r.Calls)
	if r.Diagnostic != nil {
		fmt.Fprintln(w, r.Diagnostic.Message)
	} else if r.Error != "" {
		fmt.Fprintf(w, "error: %s\n", r.Error)
	}
}

func formatFindingsText(w io.Writer, findings []lint.Finding) {
	for _, f := range findings {
		fmt.Fprintln(w, f.String())
	}
}

func formatOperationsText(w io.Writer, ops []CLIOperation) {
	for _, op := range ops {
		fmt.Fprintln(w, op.Signature)
	}
}

func formatPathText(w io.Writer, p CLIPath) {
	hops := make([]string, len(p.Path))
	for i, v := range p.Path {
		hops[i] = fmt.Sprint(v)
	}
	fmt.Fprintln(w, strings.Join(hops, " -> "))
	if !p.Reachable {
		fmt.Fprintf(w, "(%d is unreachable from %d)\n", p.End, p.Start)
	}
}

func formatSessionsText(w io.Writer, sessions []CLISession) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSCRIPT\tOUTCOME\tCALLS\tSTARTED")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			s.ID, s.Script, s.Outcome, s.Calls, s.StartedAt.Local().Format(time.DateTime))
	}
	tw.Flush()
}

func formatSessionDetailText(w io.Writer, d CLISessionDetail) {
	fmt.Fprintf(w, "Session: %s\n", d.ID)
	fmt.Fprintf(w, "Script: %s (%s)\n", d.Script, shortHash(d.ScriptHash))
	fmt.Fprintf(w, "Outcome: %s\n", d.Outcome)
	if d.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", d.Error)
	}
	fmt.Fprintf(w, "Started: %s\n", d.StartedAt.Local().Format(time.DateTime))
	if d.EndedAt != nil {
		fmt.Fprintf(w, "Duration: %s\n", d.EndedAt.Sub(d.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintln(w)

	if len(d.CallCounts) > 0 {
		fmt.Fprintln(w, "Calls:")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, c := range d.CallCounts {
			fmt.Fprintf(tw, "  %s\t%d\n", c.Name, c.Count)
		}
		tw.Flush()
		fmt.Fprintln(w)
	}

	if len(d.Diagnostics) > 0 {
		fmt.Fprintln(w, "Diagnostics:")
		for _, diag := range d.Diagnostics {
			fmt.Fprintf(w, "  line %d: %s\n", diag.Line, diag.Key)
		}
		fmt.Fprintln(w)
	}

	if len(d.Trace) > 0 {
		fmt.Fprintln(w, "Trace:")
		for _, c := range d.Trace {
			fmt.Fprintf(w, "  %d: %s\n", c.Line, c.Name)
		}
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// outputResultText dispatches to the text formatter for the result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case CLIRun:
		formatRunText(w, v)
	case []lint.Finding:
		formatFindingsText(w, v)
	case []CLIOperation:
		formatOperationsText(w, v)
	case CLIPath:
		formatPathText(w, v)
	case []CLISession:
		formatSessionsText(w, v)
	case CLISessionDetail:
		formatSessionDetailText(w, v)
	case CLIPrune:
		fmt.Fprintf(w, "removed %d sessions\n", v.Removed)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
