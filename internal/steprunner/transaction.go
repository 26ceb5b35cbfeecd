package steprunner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"rigproc/internal/services"
)

// Transactor brackets each step execution so a failed step can be rolled back
// as a unit.
type Transactor interface {
	Open(ctx context.Context, step string) error
	Close(ctx context.Context, step string, failed bool) error
}

// NopTransactor does nothing.
type NopTransactor struct{}

func (NopTransactor) Open(context.Context, string) error { return nil }

func (NopTransactor) Close(context.Context, string, bool) error { return nil }

// JournalEvent is one line of a transaction journal.
type JournalEvent struct {
	Type      string    `json:"type"`
	Step      string    `json:"step"`
	RunID     string    `json:"run_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	JournalOpen     = "transaction_open"
	JournalCommit   = "transaction_commit"
	JournalRollback = "transaction_rollback"
)

// Journal records transaction boundaries as JSON lines. OnRollback, when set,
// runs after a failed step's rollback point is recorded.
type Journal struct {
	mu         sync.Mutex
	w          io.Writer
	closer     io.Closer
	enc        *json.Encoder
	runID      string
	open       map[string]time.Time
	OnRollback func(step string)
}

// NewJournal writes events to w.
func NewJournal(w io.Writer, runID string) *Journal {
	return &Journal{w: w, enc: json.NewEncoder(w), runID: runID, open: make(map[string]time.Time)}
}

// OpenJournalFile appends events to the file at path.
func OpenJournalFile(path, runID string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	j := NewJournal(f, runID)
	j.closer = f
	return j, nil
}

func (j *Journal) Open(ctx context.Context, step string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, exists := j.open[step]; exists {
		return fmt.Errorf("transaction for %s already open", step)
	}
	now := time.Now().UTC()
	j.open[step] = now
	return j.emitLocked(ctx, JournalOpen, step, now)
}

func (j *Journal) Close(ctx context.Context, step string, failed bool) error {
	j.mu.Lock()
	if _, exists := j.open[step]; !exists {
		j.mu.Unlock()
		return fmt.Errorf("no open transaction for %s", step)
	}
	delete(j.open, step)
	event := JournalCommit
	if failed {
		event = JournalRollback
	}
	err := j.emitLocked(ctx, event, step, time.Now().UTC())
	hook := j.OnRollback
	j.mu.Unlock()

	if err == nil && failed && hook != nil {
		hook(step)
	}
	return err
}

// Release closes the underlying file when the journal owns one.
func (j *Journal) Release() error {
	if j.closer == nil {
		return nil
	}
	return j.closer.Close()
}

// emitLocked stamps the run id carried by ctx, falling back to the journal's own.
func (j *Journal) emitLocked(ctx context.Context, eventType, step string, ts time.Time) error {
	runID := j.runID
	if id, ok := services.RunIDFromContext(ctx); ok {
		runID = id
	}
	if err := j.enc.Encode(JournalEvent{Type: eventType, Step: step, RunID: runID, Timestamp: ts}); err != nil {
		return fmt.Errorf("write journal event: %w", err)
	}
	return nil
}
