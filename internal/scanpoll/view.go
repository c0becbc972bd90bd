package scanpoll

import (
	"time"

	"github.com/tinytelemetry/fingervote/internal/model"
)

// Tone selects how a status message is rendered.
type Tone int

const (
	ToneInfo Tone = iota
	ToneSuccess
	ToneWarning
	ToneDanger
)

func (t Tone) String() string {
	switch t {
	case ToneSuccess:
		return "success"
	case ToneWarning:
		return "warning"
	case ToneDanger:
		return "danger"
	default:
		return "info"
	}
}

// View is everything a page shows for the scan flow. Every transition
// replaces it wholesale.
type View struct {
	Message        string
	Tone           Tone
	Kind           model.ErrorKind
	TriggerEnabled bool
	ProceedVisible bool
	Waiting        bool
	Progress       int // simulated scanner only, 0-100
}

func idleView() View {
	return View{Message: "Press scan and place your finger on the device.", TriggerEnabled: true}
}

// Effect is a side effect requested by a transition. Drivers execute them
// in order and feed the outcome back into the machine.
type Effect interface {
	effect()
}

// ClearSession drops stale backend scan state. Failures are ignored.
type ClearSession struct{}

// SendTrigger creates the scan trigger for session Token.
type SendTrigger struct {
	Token   uint64
	Request model.TriggerRequest
}

// SchedulePoll arms the single poll timer for TriggerID.
type SchedulePoll struct {
	TriggerID string
	After     time.Duration
}

// FetchResult issues one scan-result request.
type FetchResult struct {
	TriggerID string
}

// StopPolling clears the poll timer. It is emitted at most once per session.
type StopPolling struct {
	TriggerID string
}

// Navigate leaves the current page, after a delay when After > 0.
type Navigate struct {
	Path  string
	After time.Duration
}

// VerifyRequest posts a fingerprint id for verification.
type VerifyRequest struct {
	Token         uint64
	FingerprintID string
}

// SimulatedTick advances the simulated scanner after a delay.
type SimulatedTick struct {
	After time.Duration
}

func (ClearSession) effect()  {}
func (SendTrigger) effect()   {}
func (SchedulePoll) effect()  {}
func (FetchResult) effect()   {}
func (StopPolling) effect()   {}
func (Navigate) effect()      {}
func (VerifyRequest) effect() {}
func (SimulatedTick) effect() {}
