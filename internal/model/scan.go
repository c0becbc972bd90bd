package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Status is the lifecycle state of a scan session.
type Status int

const (
	StatusIdle Status = iota
	StatusTriggerSent
	StatusPolling
	StatusMatched
	StatusAlreadyVoted
	StatusNotFound
	StatusError
	StatusTimedOut
)

var statusNames = [...]string{
	StatusIdle:         "IDLE",
	StatusTriggerSent:  "TRIGGER_SENT",
	StatusPolling:      "POLLING",
	StatusMatched:      "MATCHED",
	StatusAlreadyVoted: "ALREADY_VOTED",
	StatusNotFound:     "NOT_FOUND",
	StatusError:        "ERROR",
	StatusTimedOut:     "TIMED_OUT",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// IsTerminal reports whether polling must stop once s is reached.
func (s Status) IsTerminal() bool {
	return s >= StatusMatched
}

// IsActive reports whether a session in state s blocks a new start.
func (s Status) IsActive() bool {
	return s == StatusTriggerSent || s == StatusPolling
}

// MarshalText lets statuses appear by name in JSON and logs.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (s *Status) UnmarshalText(b []byte) error {
	for i, name := range statusNames {
		if name == string(b) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("model: unknown status %q", b)
}

// VoterID identifies a voter. The backend sends it either as a JSON number
// (database key) or a string (registration number such as "V000001").
type VoterID string

// UnmarshalJSON accepts both string and number encodings.
func (v *VoterID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*v = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = VoterID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("model: voter id: %w", err)
	}
	*v = VoterID(n.String())
	return nil
}

// VoterMatch is present only on a MATCHED session.
type VoterMatch struct {
	VoterID   VoterID `json:"voter_id"`
	VoterName string  `json:"voter_name"`
	Score     float64 `json:"score"`
}

// ScanSession is one trigger-and-poll attempt. It is owned by the client
// instance that created it and discarded once terminal.
type ScanSession struct {
	ID        uint64      `json:"id"`
	TriggerID string      `json:"trigger_id,omitempty"`
	StartedAt time.Time   `json:"started_at"`
	EndedAt   time.Time   `json:"ended_at,omitempty"`
	Status    Status      `json:"status"`
	Match     *VoterMatch `json:"match,omitempty"`
	Message   string      `json:"message,omitempty"`
}

// Action selects what the scanning device does with the next capture.
type Action string

const (
	ActionMatch    Action = "match"
	ActionRegister Action = "register"
)

// Valid reports whether a is one of the actions the backend accepts.
func (a Action) Valid() bool {
	return a == ActionMatch || a == ActionRegister
}

// TriggerRequest is the body of a trigger-scan call.
type TriggerRequest struct {
	Action  Action  `json:"action"`
	VoterID VoterID `json:"voter_id,omitempty"`
}

// Template is a captured fingerprint template awaiting registration.
type Template struct {
	ID string `json:"id"`
}

// UnmarshalJSON accepts numeric or string template ids.
func (t *Template) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID VoterID `json:"id"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	t.ID = string(raw.ID)
	return nil
}
