package store

import (
	"fmt"
	"time"
)

// CommitCalls inserts a batch of call records within a single transaction.
// IDs are written back into calls.
func (s *Store) CommitCalls(calls []Call) error {
	if len(calls) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit calls: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO calls (session_id, seq, line, name, at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("commit calls: prepare: %w", err)
	}
	defer stmt.Close()

	for i := range calls {
		c := &calls[i]
		res, err := stmt.Exec(c.SessionID, c.Seq, c.Line, c.Name, c.At)
		if err != nil {
			return fmt.Errorf("commit calls: %s #%d: %w", c.Name, c.Seq, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("commit calls: last insert id: %w", err)
		}
		c.ID = id
	}
	return tx.Commit()
}

// Prune deletes sessions that ended before cutoff, with their calls and
// diagnostics. Running sessions are never pruned. Returns how many sessions
// were removed.
func (s *Store) Prune(cutoff time.Time) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("prune: begin: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query("SELECT id FROM sessions WHERE ended_at IS NOT NULL AND ended_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune: select: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("prune: scan: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("prune: rows: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := placeholderList(len(ids))
	args := stringsToArgs(ids)
	for _, q := range []string{
		"DELETE FROM calls WHERE session_id IN (" + placeholders + ")",
		"DELETE FROM diagnostics WHERE session_id IN (" + placeholders + ")",
		"DELETE FROM sessions WHERE id IN (" + placeholders + ")",
	} {
		if _, err := tx.Exec(q, args...); err != nil {
			return 0, fmt.Errorf("prune: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("prune: commit: %w", err)
	}
	return len(ids), nil
}
