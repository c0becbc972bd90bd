package scanapi

import (
	"fmt"

	"github.com/tinytelemetry/fingervote/internal/model"
)

// statusEnvelope is the union of every field the endpoints send. The status
// string selects which fields are meaningful.
type statusEnvelope struct {
	Status        string        `json:"status"`
	TriggerID     model.VoterID `json:"trigger_id"`
	VoterID       model.VoterID `json:"voter_id"`
	VoterName     string        `json:"voter_name"`
	Name          string        `json:"name"`
	Score         *float64      `json:"score"`
	Message       string        `json:"message"`
	Error         string        `json:"error"`
	FingerprintID model.VoterID `json:"fingerprint_id"`
}

func (e statusEnvelope) voterName() string {
	if e.VoterName != "" {
		return e.VoterName
	}
	return e.Name
}

func malformed(op, format string, args ...interface{}) error {
	return &TransportError{Op: op, Err: fmt.Errorf("%w: "+format, append([]interface{}{ErrMalformed}, args...)...)}
}

func decodeTrigger(e statusEnvelope) (string, error) {
	if e.Status != "success" {
		msg := e.Error
		if msg == "" {
			msg = e.Message
		}
		if msg == "" {
			msg = "Unknown error"
		}
		return "", &TriggerError{Message: msg}
	}
	if e.TriggerID == "" {
		return "", malformed("trigger scan", "success without trigger_id")
	}
	return string(e.TriggerID), nil
}

func decodeScanResult(e statusEnvelope) (model.ScanResult, error) {
	switch e.Status {
	case "pending":
		return model.ResultPending{}, nil
	case "success":
		if e.VoterID == "" {
			return nil, malformed("scan result", "success without voter_id")
		}
		if e.Score == nil {
			return nil, malformed("scan result", "success without score")
		}
		return model.ResultMatched{Match: model.VoterMatch{
			VoterID:   e.VoterID,
			VoterName: e.voterName(),
			Score:     *e.Score,
		}}, nil
	case "already_voted":
		return model.ResultAlreadyVoted{VoterName: e.voterName()}, nil
	case "error":
		msg := e.Message
		if msg == "" {
			msg = e.Error
		}
		return model.ResultFailed{Message: msg}, nil
	case "":
		return nil, malformed("scan result", "missing status")
	default:
		return model.ResultUnrecognized{Status: e.Status}, nil
	}
}

func decodeVerify(e statusEnvelope) (model.VerifyResult, error) {
	switch e.Status {
	case "verified", "authenticated", "ok":
		return model.VerifyVerified{VoterName: e.voterName()}, nil
	case "already_voted":
		return model.VerifyAlreadyVoted{VoterName: e.voterName()}, nil
	case "not_found":
		return model.VerifyNotFound{Message: e.Message}, nil
	case "no_session":
		return model.VerifyNoSession{}, nil
	default:
		detail := e.Error
		if detail == "" {
			detail = e.Message
		}
		return nil, malformed("verify fingerprint", "status %q: %s", e.Status, detail)
	}
}
