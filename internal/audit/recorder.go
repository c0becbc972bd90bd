package audit

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tinytelemetry/fingervote/internal/model"
)

// Sink receives activity rows, normally the election store.
type Sink interface {
	AppendActivity(entry model.ActivityEntry) error
}

// Recorder journals events before applying them to the sink, so a crash
// between the two is repaired by Sync on the next start.
type Recorder struct {
	journal *Journal
	sink    Sink
	logger  zerolog.Logger
	mu      sync.Mutex
}

// NewRecorder returns a recorder over j. With a nil sink events are only
// journaled and stay uncommitted until a recorder with a sink syncs them.
func NewRecorder(j *Journal, sink Sink, logger zerolog.Logger) *Recorder {
	return &Recorder{journal: j, sink: sink, logger: logger}
}

// Record journals ev, applies it to the sink and commits it.
func (r *Recorder) Record(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seq, err := r.journal.Append(ev)
	if err != nil {
		return err
	}
	if r.sink == nil {
		return nil
	}
	if err := r.sink.AppendActivity(ev.Activity()); err != nil {
		// Left uncommitted; Sync retries it.
		return fmt.Errorf("audit: apply event %d: %w", seq, err)
	}
	return r.journal.Commit(seq)
}

// AppendActivity lets a Recorder stand in for the store as an activity sink.
func (r *Recorder) AppendActivity(entry model.ActivityEntry) error {
	return r.Record(ActivityEvent(entry))
}

// Sync replays uncommitted events into the sink and returns how many were
// applied.
func (r *Recorder) Sync() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sink == nil {
		return 0, nil
	}

	applied := 0
	err := r.journal.Replay(func(seq uint64, ev Event) error {
		if err := r.sink.AppendActivity(ev.Activity()); err != nil {
			return fmt.Errorf("audit: replay event %d: %w", seq, err)
		}
		if err := r.journal.Commit(seq); err != nil {
			return err
		}
		applied++
		return nil
	})
	if applied > 0 {
		r.logger.Info().Int("events", applied).Msg("replayed journal into activity log")
	}
	return applied, err
}
