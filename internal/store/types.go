package store

import "time"

// OutcomeRunning marks a session that has begun but not ended.
const OutcomeRunning = "running"

type Session struct {
	ID         string
	Script     string
	ScriptHash string
	Outcome    string
	Error      string
	StartedAt  time.Time
	EndedAt    *time.Time
	CallCount  int // populated by RecentSessions
}

// Duration is the session's run time, or zero while it is running.
func (s *Session) Duration() time.Duration {
	if s.EndedAt == nil {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// Call is one native operation invocation.
type Call struct {
	ID        int64
	SessionID string
	Seq       int
	Line      int
	Name      string
	At        time.Time
}

// Diagnostic is one undefined-access report.
type Diagnostic struct {
	ID        int64
	SessionID string
	Key       string
	Hint      string
	Line      int
	Message   string
	At        time.Time
}

// NameCount is an operation name with how often it was called.
type NameCount struct {
	Name  string
	Count int
}
