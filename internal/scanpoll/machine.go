package scanpoll

import (
	"errors"
	"fmt"
	"time"

	"github.com/tinytelemetry/fingervote/internal/model"
	"github.com/tinytelemetry/fingervote/internal/scanapi"
)

var (
	// ErrSessionActive rejects a start while a session is TRIGGER_SENT or POLLING.
	ErrSessionActive = errors.New("scanpoll: a scan is already in progress")
	// ErrNotMatched rejects proceed before a voter was matched.
	ErrNotMatched = errors.New("scanpoll: no matched voter to proceed with")
	// ErrRedirectPending rejects a start while a forced redirect has not fired.
	ErrRedirectPending = errors.New("scanpoll: redirect pending")
)

const (
	msgCreating       = "Creating scan trigger..."
	msgTriggerCreated = "Trigger created. Please scan your finger on the device. (Trigger ID: %s)"
	msgWaiting        = "Waiting for fingerprint match..."
	msgMatched        = "Fingerprint matched: %s (Score: %.2f)"
	msgAlreadyVoted   = "Already Voted: %s"
	msgAlreadyVotedNo = "This voter has already cast their vote"
	msgNoMatch        = "No match: %s"
	msgNoMatchDefault = "Fingerprint not registered or unmatched"
	msgTriggerFailed  = "Failed to create trigger: %s"
	msgTriggerConn    = "Connection error: could not create a scan trigger. Please try again."
	msgPollConn       = "Connection error: could not check the scan result. Please try again."
	msgTimedOut       = "No fingerprint received in time. Please start a new scan."
)

// Machine is the scan-poll state machine. It performs no I/O: every method
// returns the effects the caller must run, and responses are fed back in
// through TriggerAcked/TriggerFailed/PollResult/PollFailed. A Machine is not
// safe for concurrent use; drivers call it from a single goroutine.
type Machine struct {
	cfg         Config
	seq         uint64
	session     *model.ScanSession
	polling     bool // poll timer live
	inFlight    bool // scan-result request outstanding
	redirecting bool // ALREADY_VOTED redirect not yet fired
	view        View
}

// NewMachine returns an idle machine.
func NewMachine(cfg Config) *Machine {
	return &Machine{cfg: cfg.withDefaults(), view: idleView()}
}

// View returns the current rendering state.
func (m *Machine) View() View { return m.view }

// Session returns a copy of the current or last session.
func (m *Machine) Session() (model.ScanSession, bool) {
	if m.session == nil {
		return model.ScanSession{}, false
	}
	s := *m.session
	if s.Match != nil {
		match := *s.Match
		s.Match = &match
	}
	return s, true
}

// Status returns the status of the current session, IDLE when none.
func (m *Machine) Status() model.Status {
	if m.session == nil {
		return model.StatusIdle
	}
	return m.session.Status
}

// Active reports whether a session blocks a new start.
func (m *Machine) Active() bool {
	return m.session != nil && m.session.Status.IsActive()
}

// Start opens a new session: IDLE -> TRIGGER_SENT.
func (m *Machine) Start(now time.Time) ([]Effect, error) {
	if m.Active() {
		return nil, ErrSessionActive
	}
	if m.redirecting {
		return nil, ErrRedirectPending
	}
	m.seq++
	m.session = &model.ScanSession{ID: m.seq, StartedAt: now, Status: model.StatusTriggerSent}
	m.polling = false
	m.inFlight = false
	m.view = View{Message: msgCreating, Tone: ToneInfo, Waiting: true}
	return []Effect{
		ClearSession{},
		SendTrigger{Token: m.seq, Request: model.TriggerRequest{Action: model.ActionMatch}},
	}, nil
}

func (m *Machine) owns(token uint64, status model.Status) bool {
	return m.session != nil && m.session.ID == token && m.session.Status == status
}

func (m *Machine) polls(triggerID string) bool {
	return m.session != nil && m.session.Status == model.StatusPolling && m.session.TriggerID == triggerID
}

// TriggerAcked moves TRIGGER_SENT -> POLLING and arms the first poll.
func (m *Machine) TriggerAcked(token uint64, triggerID string) []Effect {
	if !m.owns(token, model.StatusTriggerSent) {
		return nil
	}
	m.session.TriggerID = triggerID
	m.session.Status = model.StatusPolling
	m.polling = true
	m.view = View{Message: fmt.Sprintf(msgTriggerCreated, triggerID), Tone: ToneSuccess, Waiting: true}
	return []Effect{SchedulePoll{TriggerID: triggerID, After: m.cfg.PollInterval}}
}

// TriggerFailed ends the session without ever polling.
func (m *Machine) TriggerFailed(token uint64, err error, now time.Time) []Effect {
	if !m.owns(token, model.StatusTriggerSent) {
		return nil
	}
	msg, kind := msgTriggerConn, model.ErrorTransportFailure
	var rejected *scanapi.TriggerError
	if errors.As(err, &rejected) {
		msg, kind = fmt.Sprintf(msgTriggerFailed, rejected.Message), model.ErrorTriggerCreationFailed
	}
	m.finish(model.StatusError, now, msg)
	m.view = View{Message: msg, Tone: ToneDanger, Kind: kind, TriggerEnabled: true}
	return nil
}

// PollTick fires when the poll timer for triggerID elapses.
func (m *Machine) PollTick(triggerID string, now time.Time) []Effect {
	if !m.polls(triggerID) || m.inFlight {
		return nil
	}
	if m.cfg.MaxWait > 0 && now.Sub(m.session.StartedAt) >= m.cfg.MaxWait {
		m.finish(model.StatusTimedOut, now, msgTimedOut)
		m.view = View{Message: msgTimedOut, Tone: ToneWarning, Kind: model.ErrorTimedOut, TriggerEnabled: true}
		return m.stop()
	}
	m.inFlight = true
	return []Effect{FetchResult{TriggerID: triggerID}}
}

// PollResult applies a decoded scan-result response. Responses for any
// trigger other than the polling one, including duplicates of an already
// applied terminal status, are discarded.
func (m *Machine) PollResult(triggerID string, result model.ScanResult, now time.Time) []Effect {
	if !m.polls(triggerID) {
		return nil
	}
	m.inFlight = false

	switch r := result.(type) {
	case model.ResultPending:
		m.view = View{Message: msgWaiting, Tone: ToneInfo, Waiting: true}
		return []Effect{SchedulePoll{TriggerID: triggerID, After: m.cfg.PollInterval}}

	case model.ResultMatched:
		match := r.Match
		m.session.Match = &match
		msg := fmt.Sprintf(msgMatched, match.VoterName, match.Score)
		m.finish(model.StatusMatched, now, msg)
		m.view = View{Message: msg, Tone: ToneSuccess, ProceedVisible: true}
		return m.stop()

	case model.ResultAlreadyVoted:
		name := r.VoterName
		if name == "" {
			name = msgAlreadyVotedNo
		}
		msg := fmt.Sprintf(msgAlreadyVoted, name)
		m.finish(model.StatusAlreadyVoted, now, msg)
		m.redirecting = true
		m.view = View{Message: msg, Tone: ToneWarning, Kind: model.ErrorAlreadyVoted}
		return append(m.stop(), Navigate{Path: model.PathAlreadyVoted, After: m.cfg.RedirectDelay})

	case model.ResultFailed:
		detail := r.Message
		if detail == "" {
			detail = msgNoMatchDefault
		}
		msg := fmt.Sprintf(msgNoMatch, detail)
		m.finish(model.StatusNotFound, now, msg)
		m.view = View{Message: msg, Tone: ToneDanger, Kind: model.ErrorNotFound, TriggerEnabled: true}
		return m.stop()

	default:
		// Unknown statuses keep the loop alive without touching the view.
		return []Effect{SchedulePoll{TriggerID: triggerID, After: m.cfg.PollInterval}}
	}
}

// PollFailed ends the session on a transport failure. There is no
// automatic retry.
func (m *Machine) PollFailed(triggerID string, err error, now time.Time) []Effect {
	if !m.polls(triggerID) {
		return nil
	}
	m.inFlight = false
	m.finish(model.StatusError, now, msgPollConn)
	m.view = View{Message: msgPollConn, Tone: ToneDanger, Kind: model.ErrorTransportFailure, TriggerEnabled: true}
	return m.stop()
}

// Cancel discards the active session (navigation away, form submit). Any
// response that arrives afterwards is ignored. A pending redirect is
// dropped along with it.
func (m *Machine) Cancel() []Effect {
	if m.redirecting {
		m.redirecting = false
		m.session = nil
		m.view = idleView()
		return nil
	}
	if !m.Active() {
		return nil
	}
	var effects []Effect
	if m.polling {
		effects = m.stop()
	}
	m.session = nil
	m.inFlight = false
	m.view = idleView()
	return effects
}

// Redirected tells the machine its forced redirect has been carried out,
// which re-enables the trigger.
func (m *Machine) Redirected() {
	if !m.redirecting {
		return
	}
	m.redirecting = false
	m.view.TriggerEnabled = true
}

// Proceed hands a matched voter over to the voter home page.
func (m *Machine) Proceed() ([]Effect, error) {
	if m.session == nil || m.session.Status != model.StatusMatched || m.session.Match == nil {
		return nil, ErrNotMatched
	}
	return []Effect{Navigate{Path: model.VoterHomePath(m.session.Match.VoterID)}}, nil
}

func (m *Machine) finish(status model.Status, now time.Time, msg string) {
	m.session.Status = status
	m.session.EndedAt = now
	m.session.Message = msg
}

// stop clears the poll timer exactly once.
func (m *Machine) stop() []Effect {
	if !m.polling {
		return nil
	}
	m.polling = false
	return []Effect{StopPolling{TriggerID: m.session.TriggerID}}
}
