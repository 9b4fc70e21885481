package store

import (
	"database/sql"
	"fmt"
	"time"
)

// --- Session operations ---

func (s *Store) BeginSession(sess *Session) error {
	if sess.Outcome == "" {
		sess.Outcome = OutcomeRunning
	}
	_, err := s.db.Exec(
		"INSERT INTO sessions (id, script, script_hash, outcome, started_at) VALUES (?, ?, ?, ?, ?)",
		sess.ID, sess.Script, sess.ScriptHash, sess.Outcome, sess.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("begin session: %w", err)
	}
	return nil
}

func (s *Store) EndSession(id, outcome, errText string, endedAt time.Time) error {
	res, err := s.db.Exec(
		"UPDATE sessions SET outcome = ?, error = ?, ended_at = ? WHERE id = ?",
		outcome, errText, endedAt, id,
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end session: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("end session: unknown session %s", id)
	}
	return nil
}

const sessionColumns = "id, script, COALESCE(script_hash, ''), outcome, COALESCE(error, ''), started_at, ended_at"

func scanSession(scan func(...any) error, extra ...any) (*Session, error) {
	sess := &Session{}
	var ended sql.NullTime
	dest := append([]any{&sess.ID, &sess.Script, &sess.ScriptHash, &sess.Outcome, &sess.Error, &sess.StartedAt, &ended}, extra...)
	if err := scan(dest...); err != nil {
		return nil, err
	}
	if ended.Valid {
		t := ended.Time
		sess.EndedAt = &t
	}
	return sess, nil
}

// SessionByID returns the session or nil when it does not exist.
func (s *Store) SessionByID(id string) (*Session, error) {
	sess, err := scanSession(s.db.QueryRow("SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session by id: %w", err)
	}
	return sess, nil
}

// RecentSessions returns up to limit sessions, newest first, with CallCount
// filled in.
func (s *Store) RecentSessions(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT s.id, s.script, COALESCE(s.script_hash, ''), s.outcome, COALESCE(s.error, ''), s.started_at, s.ended_at,
			(SELECT COUNT(*) FROM calls c WHERE c.session_id = s.id)
		 FROM sessions s ORDER BY s.started_at DESC, s.rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent sessions: %w", err)
	}
	defer rows.Close()
	var out []*Session
	for rows.Next() {
		var count int
		sess, err := scanSession(rows.Scan, &count)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.CallCount = count
		out = append(out, sess)
	}
	return out, rows.Err()
}

// --- Call operations ---

func (s *Store) RecordCall(c *Call) error {
	res, err := s.db.Exec(
		"INSERT INTO calls (session_id, seq, line, name, at) VALUES (?, ?, ?, ?, ?)",
		c.SessionID, c.Seq, c.Line, c.Name, c.At,
	)
	if err != nil {
		return fmt.Errorf("record call: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	c.ID = id
	return nil
}

func (s *Store) CallsBySession(sessionID string) ([]*Call, error) {
	rows, err := s.db.Query(
		"SELECT id, session_id, seq, line, name, at FROM calls WHERE session_id = ? ORDER BY seq", sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("calls by session: %w", err)
	}
	defer rows.Close()
	var calls []*Call
	for rows.Next() {
		c := &Call{}
		if err := rows.Scan(&c.ID, &c.SessionID, &c.Seq, &c.Line, &c.Name, &c.At); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

// CallCounts returns how often each operation was called in a session, most
// frequent first.
func (s *Store) CallCounts(sessionID string) ([]NameCount, error) {
	rows, err := s.db.Query(
		"SELECT name, COUNT(*) AS n FROM calls WHERE session_id = ? GROUP BY name ORDER BY n DESC, name", sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("call counts: %w", err)
	}
	defer rows.Close()
	var out []NameCount
	for rows.Next() {
		var nc NameCount
		if err := rows.Scan(&nc.Name, &nc.Count); err != nil {
			return nil, fmt.Errorf("scan call count: %w", err)
		}
		out = append(out, nc)
	}
	return out, rows.Err()
}

// --- Diagnostic operations ---

func (s *Store) RecordDiagnostic(d *Diagnostic) error {
	res, err := s.db.Exec(
		"INSERT INTO diagnostics (session_id, key, hint, line, message, at) VALUES (?, ?, ?, ?, ?, ?)",
		d.SessionID, d.Key, d.Hint, d.Line, d.Message, d.At,
	)
	if err != nil {
		return fmt.Errorf("record diagnostic: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	d.ID = id
	return nil
}

func (s *Store) DiagnosticsBySession(sessionID string) ([]*Diagnostic, error) {
	rows, err := s.db.Query(
		"SELECT id, session_id, key, COALESCE(hint, ''), line, message, at FROM diagnostics WHERE session_id = ? ORDER BY id", sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("diagnostics by session: %w", err)
	}
	defer rows.Close()
	var out []*Diagnostic
	for rows.Next() {
		d := &Diagnostic{}
		if err := rows.Scan(&d.ID, &d.SessionID, &d.Key, &d.Hint, &d.Line, &d.Message, &d.At); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
