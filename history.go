package automaple

import (
	"fmt"
	"time"

	"github.com/jward/automaple/internal/store"
)

// OpenJournal opens (creating if needed) the SQLite journal at dbPath.
func OpenJournal(dbPath string) (*store.Store, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("automaple: open journal: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("automaple: migrate journal: %w", err)
	}
	return s, nil
}

// History is the read side of the session journal.
type History struct {
	store *store.Store
}

// NewHistory wraps s.
func NewHistory(s *store.Store) *History {
	return &History{store: s}
}

// SessionDetail is one session with what happened inside it.
type SessionDetail struct {
	Session     *Session
	CallCounts  []store.NameCount
	Diagnostics []*store.Diagnostic
	Trace       []*Call // only filled when requested
}

// Recent returns up to limit sessions, newest first.
func (h *History) Recent(limit int) ([]*Session, error) {
	sessions, err := h.store.RecentSessions(limit)
	if err != nil {
		return nil, fmt.Errorf("automaple: history: %w", err)
	}
	return sessions, nil
}

// Detail returns a session's summary, or nil when id is unknown. withTrace
// adds the ordered call list.
func (h *History) Detail(id string, withTrace bool) (*SessionDetail, error) {
	sess, err := h.store.SessionByID(id)
	if err != nil {
		return nil, fmt.Errorf("automaple: history: %w", err)
	}
	if sess == nil {
		return nil, nil
	}
	d := &SessionDetail{Session: sess}
	if d.CallCounts, err = h.store.CallCounts(id); err != nil {
		return nil, fmt.Errorf("automaple: history: %w", err)
	}
	if d.Diagnostics, err = h.store.DiagnosticsBySession(id); err != nil {
		return nil, fmt.Errorf("automaple: history: %w", err)
	}
	if withTrace {
		if d.Trace, err = h.store.CallsBySession(id); err != nil {
			return nil, fmt.Errorf("automaple: history: %w", err)
		}
	}
	return d, nil
}

// Prune removes finished sessions older than maxAge as of now.
func (h *History) Prune(maxAge time.Duration, now time.Time) (int, error) {
	n, err := h.store.Prune(now.Add(-maxAge).UTC())
	if err != nil {
		return 0, fmt.Errorf("automaple: history: %w", err)
	}
	return n, nil
}
