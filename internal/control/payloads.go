package control

import (
	"time"

	"github.com/jward/automaple"
)

// StartPayload asks for a script to run. Either Script names a file under
// the scripts directory, or Source carries the code inline and Script labels
// it.
type StartPayload struct {
	Script string `json:"script"`
	Source string `json:"source,omitempty"`
}

// StatusPayload reports the controller state.
type StatusPayload struct {
	State     string     `json:"state"`
	SessionID string     `json:"session_id,omitempty"`
	Script    string     `json:"script,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

// DiagnosticPayload is an undefined access trapped during a session.
type DiagnosticPayload struct {
	Key     string `json:"key"`
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// EventPayload carries one lifecycle event.
type EventPayload struct {
	SessionID  string             `json:"session_id"`
	Script     string             `json:"script"`
	Outcome    string             `json:"outcome,omitempty"`
	Error      string             `json:"error,omitempty"`
	Calls      int                `json:"calls,omitempty"`
	DurationMS int64              `json:"duration_ms,omitempty"`
	Diagnostic *DiagnosticPayload `json:"diagnostic,omitempty"`
}

func statusOf(state automaple.State, a *automaple.Active) StatusPayload {
	st := StatusPayload{State: state.String()}
	if a != nil {
		st.State = a.State.String()
		st.SessionID = a.SessionID
		st.Script = a.Script
		started := a.StartedAt
		st.StartedAt = &started
	}
	return st
}

func eventOf(e automaple.Event) EventPayload {
	p := EventPayload{SessionID: e.SessionID, Script: e.Script}
	if d := e.Diagnostic; d != nil {
		p.Diagnostic = &DiagnosticPayload{Key: d.Key, Line: d.Line, Message: d.Message}
	}
	if r := e.Result; r != nil {
		p.Outcome = string(r.Outcome)
		p.Calls = r.Calls
		p.DurationMS = r.Duration().Milliseconds()
		if r.Err != nil {
			p.Error = r.Err.Error()
		}
		if p.Diagnostic == nil && r.Diagnostic != nil {
			p.Diagnostic = &DiagnosticPayload{Key: r.Diagnostic.Key, Line: r.Diagnostic.Line, Message: r.Diagnostic.Message}
		}
	}
	return p
}
