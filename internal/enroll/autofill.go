package enroll

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tinytelemetry/fingervote/internal/model"
)

const msgAutofilled = "Fingerprint ID auto-filled: "

// Autofill polls the latest captured fingerprint id and copies it into the
// voter form whenever it changes.
type Autofill struct {
	backend   model.ScanBackend
	logger    zerolog.Logger
	interval  time.Duration
	highlight time.Duration

	mu             sync.Mutex
	last           string
	field          string
	message        string
	highlightUntil time.Time
	inFlight       bool
	stopped        bool
	stop           chan struct{}
}

type AutofillOption func(*Autofill)

func WithInterval(d time.Duration) AutofillOption {
	return func(a *Autofill) {
		if d > 0 {
			a.interval = d
		}
	}
}

func WithHighlight(d time.Duration) AutofillOption {
	return func(a *Autofill) {
		if d > 0 {
			a.highlight = d
		}
	}
}

func WithLogger(l zerolog.Logger) AutofillOption {
	return func(a *Autofill) { a.logger = l }
}

func NewAutofill(backend model.ScanBackend, opts ...AutofillOption) *Autofill {
	a := &Autofill{
		backend:   backend,
		logger:    zerolog.Nop(),
		interval:  model.DefaultPollInterval,
		highlight: model.DefaultHighlightDuration,
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Interval is the polling period.
func (a *Autofill) Interval() time.Duration { return a.interval }

// Field is the current fingerprint id field value.
func (a *Autofill) Field() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.field
}

// SetField records a manual edit of the field.
func (a *Autofill) SetField(v string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.field = v
}

func (a *Autofill) Message() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.message
}

// Highlighted reports whether the field is still flagged as auto-filled.
func (a *Autofill) Highlighted(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return now.Before(a.highlightUntil)
}

// Stop ends polling, on form submit or navigation. It is safe to call more
// than once.
func (a *Autofill) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	a.stopped = true
	close(a.stop)
	a.logger.Debug().Msg("stopped fingerprint polling")
}

func (a *Autofill) Stopped() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopped
}

// Poll performs one request. It returns true when the field changed. A poll
// while another is in flight, or after Stop, does nothing.
func (a *Autofill) Poll(ctx context.Context, now time.Time) bool {
	a.mu.Lock()
	if a.stopped || a.inFlight {
		a.mu.Unlock()
		return false
	}
	a.inFlight = true
	a.mu.Unlock()

	id, ok, err := a.backend.LatestFingerprint(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.inFlight = false
	if err != nil {
		a.logger.Warn().Err(err).Msg("error polling fingerprint")
		return false
	}
	if a.stopped {
		return false
	}
	return a.observe(id, ok, now)
}

// Observe applies a latest-fingerprint response received outside Poll.
func (a *Autofill) Observe(id string, ok bool, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return false
	}
	return a.observe(id, ok, now)
}

func (a *Autofill) observe(id string, ok bool, now time.Time) bool {
	if !ok || id == "" || id == a.last {
		return false
	}
	a.last = id
	a.field = id
	a.message = msgAutofilled + id
	a.highlightUntil = now.Add(a.highlight)
	a.logger.Info().Str("fingerprint_id", id).Msg("fingerprint id auto-filled")
	return true
}

// Run polls on the configured interval until ctx is done or Stop is
// called. onChange, when set, is invoked after each auto-fill.
func (a *Autofill) Run(ctx context.Context, onChange func(id string)) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	a.logger.Debug().Dur("interval", a.interval).Msg("started fingerprint polling")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.stop:
			return nil
		case now := <-ticker.C:
			if a.Poll(ctx, now) && onChange != nil {
				onChange(a.Field())
			}
		}
	}
}
