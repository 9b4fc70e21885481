package automaple

import (
	"time"

	"github.com/jward/automaple/internal/intercept"
	"github.com/jward/automaple/internal/logging"
	"github.com/jward/automaple/internal/store"
)

// journalWriter records one session. Journal failures are logged once and
// then journaling stops for the session; they never fail the script.
type journalWriter struct {
	j      store.Journal
	logger *logging.Logger
	id     string
	seq    int
	failed bool
}

func newJournalWriter(j store.Journal, logger *logging.Logger, sessionID string) *journalWriter {
	return &journalWriter{j: j, logger: logger, id: sessionID}
}

func (w *journalWriter) active() bool {
	return w.j != nil && !w.failed
}

func (w *journalWriter) check(op string, err error) {
	if err == nil {
		return
	}
	w.failed = true
	w.logger.Warn("journal disabled for session", "op", op, "error", err)
}

func (w *journalWriter) begin(s Script) {
	if !w.active() {
		return
	}
	w.check("begin", w.j.BeginSession(&store.Session{
		ID:         w.id,
		Script:     s.Name,
		ScriptHash: store.HashScript(s.Source),
		StartedAt:  time.Now().UTC(),
	}))
}

func (w *journalWriter) call(line int, name string) {
	if !w.active() {
		return
	}
	w.check("call", w.j.RecordCall(&store.Call{
		SessionID: w.id,
		Seq:       w.seq,
		Line:      line,
		Name:      name,
		At:        time.Now().UTC(),
	}))
	w.seq++
}

func (w *journalWriter) diagnostic(d intercept.Diagnostic) {
	if !w.active() {
		return
	}
	w.check("diagnostic", w.j.RecordDiagnostic(&store.Diagnostic{
		SessionID: w.id,
		Key:       d.Key,
		Hint:      d.Hint,
		Line:      d.Line,
		Message:   d.Message,
		At:        time.Now().UTC(),
	}))
}

func (w *journalWriter) end(outcome Outcome, errText string, at time.Time) {
	if !w.active() {
		return
	}
	w.check("end", w.j.EndSession(w.id, string(outcome), errText, at))
}
