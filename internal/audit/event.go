package audit

import (
	"time"

	"github.com/tinytelemetry/fingervote/internal/model"
)

// Kind groups journal events by the flow that produced them.
type Kind string

const (
	KindScan     Kind = "scan"
	KindVerify   Kind = "verify"
	KindEnroll   Kind = "enroll"
	KindActivity Kind = "activity"
)

// Event is one journaled outcome.
type Event struct {
	Time      time.Time `json:"time"`
	Kind      Kind      `json:"kind"`
	Voter     string    `json:"voter,omitempty"`
	Action    string    `json:"action"`
	Status    string    `json:"status"`
	TriggerID string    `json:"trigger_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Activity converts the event into an activity log row.
func (e Event) Activity() model.ActivityEntry {
	voter := e.Voter
	if voter == "" {
		voter = "Unknown"
	}
	return model.ActivityEntry{Time: e.Time, Voter: voter, Action: e.Action, Status: e.Status}
}

// ScanEvent summarizes a finished scan session.
func ScanEvent(s model.ScanSession) Event {
	ev := Event{
		Time:      s.EndedAt,
		Kind:      KindScan,
		Action:    "Fingerprint Scan",
		Status:    model.ActivityFailed,
		TriggerID: s.TriggerID,
		Detail:    s.Status.String(),
	}
	if ev.Time.IsZero() {
		ev.Time = s.StartedAt
	}
	if s.Match != nil {
		ev.Voter = s.Match.VoterName
	}
	if s.Status == model.StatusMatched {
		ev.Status = model.ActivitySuccess
	}
	return ev
}

// ActivityEvent wraps a kiosk activity row.
func ActivityEvent(a model.ActivityEntry) Event {
	return Event{Time: a.Time, Kind: KindActivity, Voter: a.Voter, Action: a.Action, Status: a.Status}
}

// VerifyEvent summarizes a fingerprint verification.
func VerifyEvent(fingerprintID string, res model.VerifyResult, err error, at time.Time) Event {
	ev := Event{
		Time:   at,
		Kind:   KindVerify,
		Action: "Fingerprint Verification",
		Status: model.ActivityFailed,
		Detail: fingerprintID,
	}
	if err != nil {
		ev.Detail += ": " + err.Error()
		return ev
	}
	switch r := res.(type) {
	case model.VerifyVerified:
		ev.Voter = r.VoterName
		ev.Status = model.ActivitySuccess
	case model.VerifyAlreadyVoted:
		ev.Voter = r.VoterName
		ev.Detail += ": already voted"
	case model.VerifyNotFound:
		ev.Detail += ": not found"
	case model.VerifyNoSession:
		ev.Detail += ": no session"
	}
	return ev
}

// EnrollEvent records a register trigger for voterID.
func EnrollEvent(voterID model.VoterID, triggerID string, err error, at time.Time) Event {
	ev := Event{
		Time:      at,
		Kind:      KindEnroll,
		Voter:     string(voterID),
		Action:    "Register Trigger",
		Status:    model.ActivitySuccess,
		TriggerID: triggerID,
	}
	if err != nil {
		ev.Status = model.ActivityFailed
		ev.Detail = err.Error()
	}
	return ev
}
