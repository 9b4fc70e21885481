package main

import (
	"time"

	"github.com/jward/automaple"
)

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIRun is the outcome of `automaple run`.
type CLIRun struct {
	SessionID  string         `json:"session_id"`
	Script     string         `json:"script"`
	Outcome    string         `json:"outcome"`
	Error      string         `json:"error,omitempty"`
	Calls      int            `json:"calls"`
	DurationMS int64          `json:"duration_ms"`
	Diagnostic *CLIDiagnostic `json:"diagnostic,omitempty"`
}

// CLIDiagnostic is an undefined access.
type CLIDiagnostic struct {
	Key     string `json:"key"`
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// CLIOperation is one entry of the API table.
type CLIOperation struct {
	Name      string   `json:"name"`
	Args      []string `json:"args"`
	Returns   string   `json:"returns,omitempty"`
	Signature string   `json:"signature"`
}

// CLIPath is a route found by `automaple path`.
type CLIPath struct {
	Start     int   `json:"start"`
	End       int   `json:"end"`
	Path      []int `json:"path"`
	Reachable bool  `json:"reachable"`
}

// CLISession is one journaled session.
type CLISession struct {
	ID         string     `json:"id"`
	Script     string     `json:"script"`
	ScriptHash string     `json:"script_hash"`
	Outcome    string     `json:"outcome"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Calls      int        `json:"calls"`
}

// CLISessionDetail adds per-operation counts, diagnostics and optionally
// the full trace.
type CLISessionDetail struct {
	CLISession
	CallCounts  []CLICount      `json:"call_counts"`
	Diagnostics []CLIDiagnostic `json:"diagnostics"`
	Trace       []CLICall       `json:"trace,omitempty"`
}

// CLICount is how often one operation was called.
type CLICount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// CLICall is one traced API call.
type CLICall struct {
	Seq  int    `json:"seq"`
	Line int    `json:"line"`
	Name string `json:"name"`
}

// CLIPrune reports how many sessions a prune removed.
type CLIPrune struct {
	Removed int `json:"removed"`
}

func runToCLI(r *automaple.Result) CLIRun {
	out := CLIRun{
		SessionID:  r.SessionID,
		Script:     r.Script,
		Outcome:    string(r.Outcome),
		Calls:      r.Calls,
		DurationMS: r.Duration().Milliseconds(),
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	if d := r.Diagnostic; d != nil {
		out.Diagnostic = &CLIDiagnostic{Key: d.Key, Line: d.Line, Message: d.Message}
	}
	return out
}

func sessionToCLI(s *automaple.Session) CLISession {
	return CLISession{
		ID:         s.ID,
		Script:     s.Script,
		ScriptHash: s.ScriptHash,
		Outcome:    s.Outcome,
		Error:      s.Error,
		StartedAt:  s.StartedAt,
		EndedAt:    s.EndedAt,
		Calls:      s.CallCount,
	}
}

func detailToCLI(d *automaple.SessionDetail) CLISessionDetail {
	out := CLISessionDetail{
		CLISession:  sessionToCLI(d.Session),
		CallCounts:  []CLICount{},
		Diagnostics: []CLIDiagnostic{},
	}
	calls := 0
	for _, nc := range d.CallCounts {
		out.CallCounts = append(out.CallCounts, CLICount{Name: nc.Name, Count: nc.Count})
		calls += nc.Count
	}
	out.Calls = calls
	for _, diag := range d.Diagnostics {
		out.Diagnostics = append(out.Diagnostics, CLIDiagnostic{Key: diag.Key, Line: diag.Line, Message: diag.Message})
	}
	for _, c := range d.Trace {
		out.Trace = append(out.Trace, CLICall{Seq: c.Seq, Line: c.Line, Name: c.Name})
	}
	return out
}
