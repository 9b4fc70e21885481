package store

import "time"

// Journal is the write side used while sessions run. Both Store (direct
// SQLite) and BatchedJournal (buffered calls) implement it.
type Journal interface {
	BeginSession(sess *Session) error
	RecordCall(c *Call) error
	RecordDiagnostic(d *Diagnostic) error
	EndSession(id, outcome, errText string, endedAt time.Time) error
}

// Compile-time check: *Store satisfies Journal.
var _ Journal = (*Store)(nil)
