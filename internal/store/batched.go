package store

import (
	"sync"
	"time"
)

// DefaultBatchSize is how many call records BatchedJournal buffers before
// writing them out.
const DefaultBatchSize = 256

// BatchedJournal buffers call records in memory and commits them in one
// transaction when the buffer fills, before a diagnostic is written, and when
// the session ends. Scripts in tight loops call natives thousands of times a
// second; one INSERT each would stall the session on disk I/O.
//
// Thread safety: the mutex protects the buffer. Session and diagnostic writes
// go straight to the underlying Store.
type BatchedJournal struct {
	store *Store
	size  int

	mu    sync.Mutex
	calls []Call
}

// Compile-time check: *BatchedJournal satisfies Journal.
var _ Journal = (*BatchedJournal)(nil)

// NewBatchedJournal creates a BatchedJournal writing to s. size <= 0 uses
// DefaultBatchSize.
func NewBatchedJournal(s *Store, size int) *BatchedJournal {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &BatchedJournal{store: s, size: size}
}

func (b *BatchedJournal) BeginSession(sess *Session) error {
	return b.store.BeginSession(sess)
}

func (b *BatchedJournal) RecordCall(c *Call) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, *c)
	if len(b.calls) >= b.size {
		return b.flushLocked()
	}
	return nil
}

func (b *BatchedJournal) RecordDiagnostic(d *Diagnostic) error {
	if err := b.Flush(); err != nil {
		return err
	}
	return b.store.RecordDiagnostic(d)
}

func (b *BatchedJournal) EndSession(id, outcome, errText string, endedAt time.Time) error {
	if err := b.Flush(); err != nil {
		return err
	}
	return b.store.EndSession(id, outcome, errText, endedAt)
}

// Pending returns how many call records are buffered.
func (b *BatchedJournal) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

// Flush commits all buffered call records.
func (b *BatchedJournal) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushLocked()
}

func (b *BatchedJournal) flushLocked() error {
	if len(b.calls) == 0 {
		return nil
	}
	if err := b.store.CommitCalls(b.calls); err != nil {
		return err
	}
	b.calls = b.calls[:0]
	return nil
}
