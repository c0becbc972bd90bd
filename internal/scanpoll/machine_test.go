package scanpoll

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/tinytelemetry/fingervote/internal/model"
	"github.com/tinytelemetry/fingervote/internal/scanapi"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func sessionEqual(m *Machine, want model.ScanSession) bool {
	got, _ := m.Session()
	return reflect.DeepEqual(got, want)
}

func countStops(effects []Effect) int {
	n := 0
	for _, e := range effects {
		if _, ok := e.(StopPolling); ok {
			n++
		}
	}
	return n
}

// startPolling drives a fresh machine to POLLING on trigger T1.
func startPolling(t *testing.T, cfg Config) *Machine {
	t.Helper()
	m := NewMachine(cfg)
	effects, err := m.Start(t0)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	send, ok := effects[1].(SendTrigger)
	if !ok {
		t.Fatalf("effects[1] = %T, want SendTrigger", effects[1])
	}
	m.TriggerAcked(send.Token, "T1")
	return m
}

func TestMachine_StartEmitsClearThenTrigger(t *testing.T) {
	t.Parallel()
	m := NewMachine(Config{})
	effects, err := m.Start(t0)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	want := []Effect{
		ClearSession{},
		SendTrigger{Token: 1, Request: model.TriggerRequest{Action: model.ActionMatch}},
	}
	if !reflect.DeepEqual(effects, want) {
		t.Fatalf("effects = %#v, want %#v", effects, want)
	}
	v := m.View()
	if v.Message != "Creating scan trigger..." || v.TriggerEnabled || v.ProceedVisible {
		t.Fatalf("view = %+v", v)
	}
	if m.Status() != model.StatusTriggerSent {
		t.Fatalf("status = %v", m.Status())
	}
}

func TestMachine_ScenarioMatchedAfterPending(t *testing.T) {
	t.Parallel()
	m := NewMachine(Config{})
	effects, _ := m.Start(t0)
	token := effects[1].(SendTrigger).Token

	effects = m.TriggerAcked(token, "T1")
	if want := []Effect{SchedulePoll{TriggerID: "T1", After: 2 * time.Second}}; !reflect.DeepEqual(effects, want) {
		t.Fatalf("ack effects = %#v", effects)
	}
	if got := m.View().Message; got != "Trigger created. Please scan your finger on the device. (Trigger ID: T1)" {
		t.Fatalf("ack message = %q", got)
	}

	effects = m.PollTick("T1", t0.Add(2*time.Second))
	if want := []Effect{FetchResult{TriggerID: "T1"}}; !reflect.DeepEqual(effects, want) {
		t.Fatalf("tick effects = %#v", effects)
	}
	effects = m.PollResult("T1", model.ResultPending{}, t0.Add(2*time.Second))
	if _, ok := effects[0].(SchedulePoll); !ok || len(effects) != 1 {
		t.Fatalf("pending effects = %#v", effects)
	}
	if got := m.View().Message; got != "Waiting for fingerprint match..." {
		t.Fatalf("pending message = %q", got)
	}

	m.PollTick("T1", t0.Add(4*time.Second))
	match := model.VoterMatch{VoterID: "7", VoterName: "Jane", Score: 0.93}
	effects = m.PollResult("T1", model.ResultMatched{Match: match}, t0.Add(4*time.Second))
	if want := []Effect{StopPolling{TriggerID: "T1"}}; !reflect.DeepEqual(effects, want) {
		t.Fatalf("matched effects = %#v", effects)
	}
	v := m.View()
	if v.Message != "Fingerprint matched: Jane (Score: 0.93)" || !v.ProceedVisible || v.Tone != ToneSuccess {
		t.Fatalf("matched view = %+v", v)
	}
	s, _ := m.Session()
	if s.Status != model.StatusMatched || s.Match == nil || s.Match.VoterID != "7" || !s.EndedAt.Equal(t0.Add(4*time.Second)) {
		t.Fatalf("session = %+v", s)
	}

	effects, err := m.Proceed()
	if err != nil {
		t.Fatalf("Proceed: %v", err)
	}
	if want := []Effect{Navigate{Path: "/voter-home/7/"}}; !reflect.DeepEqual(effects, want) {
		t.Fatalf("proceed effects = %#v", effects)
	}
}

func TestMachine_ScenarioAlreadyVotedRedirects(t *testing.T) {
	t.Parallel()
	m := startPolling(t, Config{})
	m.PollTick("T1", t0)
	effects := m.PollResult("T1", model.ResultAlreadyVoted{VoterName: "Bob"}, t0)
	want := []Effect{
		StopPolling{TriggerID: "T1"},
		Navigate{Path: "/already-voted/", After: 2000 * time.Millisecond},
	}
	if !reflect.DeepEqual(effects, want) {
		t.Fatalf("effects = %#v", effects)
	}
	v := m.View()
	if v.Tone != ToneWarning || v.Message != "Already Voted: Bob" || v.Kind != model.ErrorAlreadyVoted {
		t.Fatalf("view = %+v", v)
	}
	if v.TriggerEnabled {
		t.Fatal("trigger enabled while the redirect is pending")
	}
}

func TestMachine_AlreadyVotedBlocksStartUntilRedirected(t *testing.T) {
	t.Parallel()
	m := startPolling(t, Config{})
	m.PollTick("T1", t0)
	m.PollResult("T1", model.ResultAlreadyVoted{VoterName: "Bob"}, t0)

	if effects, err := m.Start(t0.Add(time.Second)); !errors.Is(err, ErrRedirectPending) || effects != nil {
		t.Fatalf("Start during redirect = %#v, %v", effects, err)
	}
	if m.Status() != model.StatusAlreadyVoted {
		t.Fatalf("status = %v", m.Status())
	}

	m.Redirected()
	if !m.View().TriggerEnabled || m.View().Message != "Already Voted: Bob" {
		t.Fatalf("view after redirect = %+v", m.View())
	}
	if _, err := m.Start(t0.Add(3 * time.Second)); err != nil {
		t.Fatalf("Start after redirect: %v", err)
	}
}

func TestMachine_CancelDropsPendingRedirect(t *testing.T) {
	t.Parallel()
	m := startPolling(t, Config{})
	m.PollTick("T1", t0)
	m.PollResult("T1", model.ResultAlreadyVoted{}, t0)

	m.Cancel()
	if m.Status() != model.StatusIdle || !m.View().TriggerEnabled {
		t.Fatalf("status = %v view = %+v", m.Status(), m.View())
	}
	if _, err := m.Start(t0); err != nil {
		t.Fatalf("Start after cancel: %v", err)
	}
}

func TestMachine_AlreadyVotedWithoutName(t *testing.T) {
	t.Parallel()
	m := startPolling(t, Config{})
	m.PollTick("T1", t0)
	m.PollResult("T1", model.ResultAlreadyVoted{}, t0)
	if got := m.View().Message; got != "Already Voted: This voter has already cast their vote" {
		t.Fatalf("message = %q", got)
	}
}

func TestMachine_ScenarioTriggerNetworkError(t *testing.T) {
	t.Parallel()
	m := NewMachine(Config{})
	effects, _ := m.Start(t0)
	token := effects[1].(SendTrigger).Token

	err := &scanapi.TransportError{Op: "trigger scan", Err: errors.New("connection refused")}
	if effects := m.TriggerFailed(token, err, t0); len(effects) != 0 {
		t.Fatalf("effects = %#v, want none (no poll timer)", effects)
	}
	v := m.View()
	if !v.TriggerEnabled || v.Tone != ToneDanger || v.Kind != model.ErrorTransportFailure {
		t.Fatalf("view = %+v", v)
	}
	if m.Status() != model.StatusError {
		t.Fatalf("status = %v", m.Status())
	}
}

func TestMachine_TriggerRejectedByServer(t *testing.T) {
	t.Parallel()
	m := NewMachine(Config{})
	m.Start(t0)
	m.TriggerFailed(1, &scanapi.TriggerError{Message: "device busy"}, t0)
	v := m.View()
	if v.Message != "Failed to create trigger: device busy" || v.Kind != model.ErrorTriggerCreationFailed {
		t.Fatalf("view = %+v", v)
	}
}

func TestMachine_NoMatch(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		msg, want string
	}{
		{"", "No match: Fingerprint not registered or unmatched"},
		{"Score below threshold", "No match: Score below threshold"},
	} {
		m := startPolling(t, Config{})
		m.PollTick("T1", t0)
		effects := m.PollResult("T1", model.ResultFailed{Message: tc.msg}, t0)
		if countStops(effects) != 1 {
			t.Fatalf("effects = %#v", effects)
		}
		if v := m.View(); v.Message != tc.want || !v.TriggerEnabled {
			t.Fatalf("view = %+v", v)
		}
		if m.Status() != model.StatusNotFound {
			t.Fatalf("status = %v", m.Status())
		}
	}
}

func TestMachine_PollTransportFailureStopsWithoutRetry(t *testing.T) {
	t.Parallel()
	m := startPolling(t, Config{})
	m.PollTick("T1", t0)
	effects := m.PollFailed("T1", errors.New("boom"), t0)
	if want := []Effect{StopPolling{TriggerID: "T1"}}; !reflect.DeepEqual(effects, want) {
		t.Fatalf("effects = %#v", effects)
	}
	if m.Status() != model.StatusError || !m.View().TriggerEnabled {
		t.Fatalf("status = %v view = %+v", m.Status(), m.View())
	}
	if effects := m.PollTick("T1", t0.Add(time.Second)); len(effects) != 0 {
		t.Fatalf("tick after failure = %#v", effects)
	}
}

func TestMachine_StartWhileActiveRejected(t *testing.T) {
	t.Parallel()
	m := NewMachine(Config{})
	m.Start(t0)
	before := m.View()
	if _, err := m.Start(t0); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("second Start err = %v", err)
	}
	if m.View() != before || m.View().TriggerEnabled {
		t.Fatalf("view changed: %+v", m.View())
	}

	m.TriggerAcked(1, "T1")
	if _, err := m.Start(t0); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("Start while polling err = %v", err)
	}
}

func TestMachine_StartAfterTerminalOpensNewSession(t *testing.T) {
	t.Parallel()
	m := startPolling(t, Config{})
	m.PollTick("T1", t0)
	m.PollResult("T1", model.ResultFailed{}, t0)
	effects, err := m.Start(t0)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := effects[1].(SendTrigger).Token; got != 2 {
		t.Fatalf("token = %d, want 2", got)
	}
}

func TestMachine_StaleTriggerIgnored(t *testing.T) {
	t.Parallel()
	m := startPolling(t, Config{})
	m.PollTick("T1", t0)
	before := m.View()

	if effects := m.PollResult("T0", model.ResultMatched{Match: model.VoterMatch{VoterID: "1"}}, t0); effects != nil {
		t.Fatalf("stale result effects = %#v", effects)
	}
	if effects := m.PollTick("T0", t0); effects != nil {
		t.Fatalf("stale tick effects = %#v", effects)
	}
	if m.View() != before || m.Status() != model.StatusPolling {
		t.Fatalf("stale response changed state: %+v", m.View())
	}
}

func TestMachine_StaleTriggerAckAfterCancel(t *testing.T) {
	t.Parallel()
	m := NewMachine(Config{})
	m.Start(t0)
	m.Cancel()
	if effects := m.TriggerAcked(1, "T1"); effects != nil {
		t.Fatalf("ack after cancel = %#v", effects)
	}
	if m.Status() != model.StatusIdle || !m.View().TriggerEnabled {
		t.Fatalf("status = %v view = %+v", m.Status(), m.View())
	}
}

func TestMachine_DuplicateTerminalIsIdempotent(t *testing.T) {
	t.Parallel()
	m := startPolling(t, Config{})
	m.PollTick("T1", t0)
	res := model.ResultMatched{Match: model.VoterMatch{VoterID: "7", VoterName: "Jane", Score: 0.93}}
	m.PollResult("T1", res, t0)
	view := m.View()
	session, _ := m.Session()

	if effects := m.PollResult("T1", res, t0.Add(time.Second)); effects != nil {
		t.Fatalf("duplicate effects = %#v", effects)
	}
	if effects := m.PollResult("T1", model.ResultAlreadyVoted{VoterName: "Jane"}, t0); effects != nil {
		t.Fatalf("late terminal effects = %#v", effects)
	}
	if m.View() != view || !sessionEqual(m, session) {
		t.Fatalf("state changed after duplicate")
	}
}

func TestMachine_StopPollingExactlyOnce(t *testing.T) {
	t.Parallel()
	terminals := []model.ScanResult{
		model.ResultMatched{Match: model.VoterMatch{VoterID: "1"}},
		model.ResultAlreadyVoted{},
		model.ResultFailed{},
	}
	for _, terminal := range terminals {
		m := startPolling(t, Config{})
		stops := 0
		m.PollTick("T1", t0)
		stops += countStops(m.PollResult("T1", model.ResultPending{}, t0))
		m.PollTick("T1", t0)
		stops += countStops(m.PollResult("T1", terminal, t0))
		stops += countStops(m.PollResult("T1", terminal, t0))
		stops += countStops(m.PollFailed("T1", errors.New("late"), t0))
		stops += countStops(m.Cancel())
		if stops != 1 {
			t.Fatalf("%T: stops = %d, want 1", terminal, stops)
		}
	}
}

func TestMachine_InFlightGuard(t *testing.T) {
	t.Parallel()
	m := startPolling(t, Config{})
	if effects := m.PollTick("T1", t0); len(effects) != 1 {
		t.Fatalf("first tick = %#v", effects)
	}
	if effects := m.PollTick("T1", t0); effects != nil {
		t.Fatalf("tick while in flight = %#v", effects)
	}
	m.PollResult("T1", model.ResultPending{}, t0)
	if effects := m.PollTick("T1", t0); len(effects) != 1 {
		t.Fatalf("tick after result = %#v", effects)
	}
}

func TestMachine_UnrecognizedStatusKeepsPolling(t *testing.T) {
	t.Parallel()
	m := startPolling(t, Config{})
	m.PollTick("T1", t0)
	before := m.View()
	effects := m.PollResult("T1", model.ResultUnrecognized{Status: "calibrating"}, t0)
	if want := []Effect{SchedulePoll{TriggerID: "T1", After: 2 * time.Second}}; !reflect.DeepEqual(effects, want) {
		t.Fatalf("effects = %#v", effects)
	}
	if m.View() != before || m.Status() != model.StatusPolling {
		t.Fatalf("view = %+v status = %v", m.View(), m.Status())
	}
}

func TestMachine_TimesOut(t *testing.T) {
	t.Parallel()
	m := startPolling(t, Config{MaxWait: time.Minute})
	m.PollTick("T1", t0.Add(30*time.Second))
	m.PollResult("T1", model.ResultPending{}, t0.Add(30*time.Second))

	effects := m.PollTick("T1", t0.Add(time.Minute))
	if want := []Effect{StopPolling{TriggerID: "T1"}}; !reflect.DeepEqual(effects, want) {
		t.Fatalf("effects = %#v", effects)
	}
	if m.Status() != model.StatusTimedOut || m.View().Kind != model.ErrorTimedOut || !m.View().TriggerEnabled {
		t.Fatalf("status = %v view = %+v", m.Status(), m.View())
	}
}

func TestMachine_NegativeMaxWaitNeverTimesOut(t *testing.T) {
	t.Parallel()
	m := startPolling(t, Config{MaxWait: -1})
	if effects := m.PollTick("T1", t0.Add(24*time.Hour)); len(effects) != 1 {
		t.Fatalf("effects = %#v", effects)
	}
}

func TestMachine_CancelWhilePolling(t *testing.T) {
	t.Parallel()
	m := startPolling(t, Config{})
	effects := m.Cancel()
	if want := []Effect{StopPolling{TriggerID: "T1"}}; !reflect.DeepEqual(effects, want) {
		t.Fatalf("effects = %#v", effects)
	}
	if effects := m.PollResult("T1", model.ResultMatched{}, t0); effects != nil {
		t.Fatalf("result after cancel = %#v", effects)
	}
	if _, ok := m.Session(); ok {
		t.Fatal("session kept after cancel")
	}
}

func TestMachine_ProceedRequiresMatch(t *testing.T) {
	t.Parallel()
	m := startPolling(t, Config{})
	if _, err := m.Proceed(); !errors.Is(err, ErrNotMatched) {
		t.Fatalf("err = %v", err)
	}
}
