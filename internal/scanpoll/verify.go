package scanpoll

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tinytelemetry/fingervote/internal/model"
)

// ErrNoFingerprint rejects a verification without a fingerprint id.
var ErrNoFingerprint = errors.New("scanpoll: fingerprint id is required")

const (
	msgVerifying       = "Verifying fingerprint..."
	msgVerified        = "Fingerprint verified. Welcome, %s!"
	msgVerifiedNoName  = "Fingerprint verified. Welcome!"
	msgVerifyNotFound  = "Fingerprint not recognized. Please try again."
	msgVerifyNoSession = "Voting is not currently open."
	msgVerifyConn      = "Connection error: could not verify the fingerprint. Please try again."
)

// Verifier drives the one-shot fingerprint verification request. Like
// Machine it performs no I/O and allows one request in flight.
type Verifier struct {
	cfg         Config
	seq         uint64
	inFlight    bool
	redirecting bool // verified or already voted, redirect not yet fired
	view        View
}

// NewVerifier returns a verifier ready to accept a fingerprint id.
func NewVerifier(cfg Config) *Verifier {
	return &Verifier{cfg: cfg.withDefaults(), view: idleView()}
}

func (v *Verifier) View() View { return v.view }

// Busy reports whether a verification request is outstanding.
func (v *Verifier) Busy() bool { return v.inFlight }

// Begin starts verifying fingerprintID.
func (v *Verifier) Begin(fingerprintID string) ([]Effect, error) {
	if v.inFlight {
		return nil, ErrSessionActive
	}
	if v.redirecting {
		return nil, ErrRedirectPending
	}
	fingerprintID = strings.TrimSpace(fingerprintID)
	if fingerprintID == "" {
		return nil, ErrNoFingerprint
	}
	v.seq++
	v.inFlight = true
	v.view = View{Message: msgVerifying, Tone: ToneInfo, Waiting: true, Progress: v.view.Progress}
	return []Effect{VerifyRequest{Token: v.seq, FingerprintID: fingerprintID}}, nil
}

// Apply renders the verification outcome. err takes precedence over result.
func (v *Verifier) Apply(token uint64, result model.VerifyResult, err error) []Effect {
	if !v.inFlight || token != v.seq {
		return nil
	}
	v.inFlight = false
	if err != nil {
		v.view = View{Message: msgVerifyConn, Tone: ToneDanger, Kind: model.ErrorTransportFailure, TriggerEnabled: true}
		return nil
	}

	switch r := result.(type) {
	case model.VerifyVerified:
		msg := msgVerifiedNoName
		if r.VoterName != "" {
			msg = fmt.Sprintf(msgVerified, r.VoterName)
		}
		v.view = View{Message: msg, Tone: ToneSuccess}
		v.redirecting = true
		return []Effect{Navigate{Path: model.PathCastVote, After: v.cfg.VerifiedDelay}}
	case model.VerifyAlreadyVoted:
		name := r.VoterName
		if name == "" {
			name = msgAlreadyVotedNo
		}
		v.view = View{Message: fmt.Sprintf(msgAlreadyVoted, name), Tone: ToneWarning, Kind: model.ErrorAlreadyVoted}
		v.redirecting = true
		return []Effect{Navigate{Path: model.PathVotingAlreadyVoted, After: v.cfg.RedirectDelay}}
	case model.VerifyNotFound:
		v.view = View{Message: msgVerifyNotFound, Tone: ToneDanger, Kind: model.ErrorNotFound, TriggerEnabled: true}
	case model.VerifyNoSession:
		v.view = View{Message: msgVerifyNoSession, Tone: ToneWarning, Kind: model.ErrorNoActiveSession, TriggerEnabled: true}
	default:
		v.view = View{Message: msgVerifyConn, Tone: ToneDanger, Kind: model.ErrorTransportFailure, TriggerEnabled: true}
	}
	return nil
}

// Redirected re-enables verification once the redirect has fired.
func (v *Verifier) Redirected() {
	if v.redirecting {
		v.redirecting = false
		v.view.TriggerEnabled = true
	}
}

// Cancel drops an outstanding request or a pending redirect. A late
// response is ignored.
func (v *Verifier) Cancel() {
	if v.inFlight || v.redirecting {
		v.inFlight = false
		v.redirecting = false
		v.view = idleView()
	}
}
