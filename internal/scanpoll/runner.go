package scanpoll

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tinytelemetry/fingervote/internal/model"
)

// Clock abstracts time so drivers can be tested without sleeping.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Navigator receives the page a flow hands control to.
type Navigator func(path string)

// Runner executes the scan flows without a UI. Network calls are awaited
// one at a time on the calling goroutine.
type Runner struct {
	backend     model.ScanBackend
	cfg         Config
	clock       Clock
	navigate    Navigator
	render      func(View)
	autoProceed bool
	logger      zerolog.Logger

	mu      sync.Mutex
	machine *Machine
	cancel  context.CancelFunc
}

type RunnerOption func(*Runner)

func WithClock(c Clock) RunnerOption { return func(r *Runner) { r.clock = c } }

func WithNavigator(n Navigator) RunnerOption { return func(r *Runner) { r.navigate = n } }

// WithRender is called with every distinct view a flow produces.
func WithRender(fn func(View)) RunnerOption { return func(r *Runner) { r.render = fn } }

// WithAutoProceed navigates to the voter home page as soon as a voter matches.
func WithAutoProceed(on bool) RunnerOption { return func(r *Runner) { r.autoProceed = on } }

func WithLogger(l zerolog.Logger) RunnerOption { return func(r *Runner) { r.logger = l } }

func NewRunner(backend model.ScanBackend, cfg Config, opts ...RunnerOption) *Runner {
	r := &Runner{
		backend:  backend,
		cfg:      cfg.withDefaults(),
		clock:    systemClock{},
		navigate: func(string) {},
		render:   func(View) {},
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.machine = NewMachine(r.cfg)
	return r
}

// Run performs one scan session to completion and returns it. A second Run
// while one is active fails with ErrSessionActive. Cancelling ctx, or
// calling Cancel, discards the session and returns the context error.
func (r *Runner) Run(ctx context.Context) (model.ScanSession, error) {
	r.mu.Lock()
	effects, err := r.machine.Start(r.clock.Now())
	if err != nil {
		r.mu.Unlock()
		return model.ScanSession{}, err
	}
	sessCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.mu.Unlock()
	defer cancel()

	err = r.drain(sessCtx, effects, r.stepScan, r.scanView)
	session, _ := r.snapshot()
	if err != nil {
		r.mu.Lock()
		r.machine.Cancel()
		r.mu.Unlock()
		return session, err
	}

	if r.autoProceed && session.Status == model.StatusMatched {
		r.mu.Lock()
		next, perr := r.machine.Proceed()
		r.mu.Unlock()
		if perr == nil {
			if err := r.drain(sessCtx, next, r.stepScan, r.scanView); err != nil {
				return session, err
			}
		}
	}
	return session, nil
}

// Cancel discards the active session, if any.
func (r *Runner) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}

// Verify posts fingerprintID and follows the outcome.
func (r *Runner) Verify(ctx context.Context, fingerprintID string) (View, error) {
	v := NewVerifier(r.cfg)
	effects, err := v.Begin(fingerprintID)
	if err != nil {
		return v.View(), err
	}
	step := func(ctx context.Context, eff Effect) ([]Effect, error) {
		if req, ok := eff.(VerifyRequest); ok {
			res, err := r.backend.VerifyFingerprint(ctx, req.FingerprintID)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if err != nil {
				r.logger.Warn().Err(err).Msg("fingerprint verification failed")
			}
			return v.Apply(req.Token, res, err), nil
		}
		return r.stepCommon(ctx, eff)
	}
	err = r.drain(ctx, effects, step, v.View)
	return v.View(), err
}

// Simulate runs the simulated scanner and verifies the test fingerprint.
func (r *Runner) Simulate(ctx context.Context) (View, error) {
	s := NewSimulation(r.cfg)
	effects, err := s.Start()
	if err != nil {
		return s.View(), err
	}
	step := func(ctx context.Context, eff Effect) ([]Effect, error) {
		switch e := eff.(type) {
		case SimulatedTick:
			if err := r.sleep(ctx, e.After); err != nil {
				return nil, err
			}
			return s.Tick(), nil
		case VerifyRequest:
			res, err := r.backend.VerifyFingerprint(ctx, e.FingerprintID)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return s.Apply(e.Token, res, err), nil
		}
		return r.stepCommon(ctx, eff)
	}
	err = r.drain(ctx, effects, step, s.View)
	if err != nil {
		s.Cancel()
	}
	return s.View(), err
}

func (r *Runner) snapshot() (model.ScanSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.machine.Session()
}

func (r *Runner) scanView() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.machine.View()
}

type stepFunc func(ctx context.Context, eff Effect) ([]Effect, error)

func (r *Runner) drain(ctx context.Context, effects []Effect, step stepFunc, view func() View) error {
	last := view()
	r.render(last)
	for len(effects) > 0 {
		eff := effects[0]
		effects = effects[1:]
		next, err := step(ctx, eff)
		if err != nil {
			return err
		}
		effects = append(effects, next...)
		if v := view(); v != last {
			last = v
			r.render(v)
		}
	}
	return nil
}

func (r *Runner) stepScan(ctx context.Context, eff Effect) ([]Effect, error) {
	switch e := eff.(type) {
	case ClearSession:
		if err := r.backend.ClearSession(ctx); err != nil {
			r.logger.Debug().Err(err).Msg("clear session failed")
		}
		return nil, nil

	case SendTrigger:
		id, err := r.backend.TriggerScan(ctx, e.Request)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if err != nil {
			r.logger.Warn().Err(err).Msg("trigger scan failed")
			return r.machine.TriggerFailed(e.Token, err, r.clock.Now()), nil
		}
		r.logger.Info().Str("trigger_id", id).Msg("scan trigger created")
		return r.machine.TriggerAcked(e.Token, id), nil

	case SchedulePoll:
		if err := r.sleep(ctx, e.After); err != nil {
			return nil, err
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.machine.PollTick(e.TriggerID, r.clock.Now()), nil

	case FetchResult:
		res, err := r.backend.ScanResult(ctx, e.TriggerID)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if err != nil {
			r.logger.Warn().Err(err).Str("trigger_id", e.TriggerID).Msg("scan result request failed")
			return r.machine.PollFailed(e.TriggerID, err, r.clock.Now()), nil
		}
		if u, ok := res.(model.ResultUnrecognized); ok {
			r.logger.Warn().Str("status", u.Status).Str("trigger_id", e.TriggerID).Msg("unrecognized scan status")
		}
		return r.machine.PollResult(e.TriggerID, res, r.clock.Now()), nil

	case StopPolling:
		r.logger.Debug().Str("trigger_id", e.TriggerID).Msg("polling stopped")
		return nil, nil

	case Navigate:
		if _, err := r.stepCommon(ctx, eff); err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.machine.Redirected()
		r.mu.Unlock()
		return nil, nil
	}
	return r.stepCommon(ctx, eff)
}

func (r *Runner) stepCommon(ctx context.Context, eff Effect) ([]Effect, error) {
	switch e := eff.(type) {
	case Navigate:
		if err := r.sleep(ctx, e.After); err != nil {
			return nil, err
		}
		r.logger.Info().Str("path", e.Path).Msg("navigate")
		r.navigate(e.Path)
		return nil, nil
	case StopPolling, ClearSession:
		return nil, nil
	}
	return nil, fmt.Errorf("scanpoll: unsupported effect %T", eff)
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-r.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
