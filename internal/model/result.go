package model

// ScanResult is the decoded scan-result response. Exactly one variant is
// produced per response; the concrete type carries the status.
type ScanResult interface {
	scanResult()
}

// ResultPending means the device has not produced a capture yet.
type ResultPending struct{}

// ResultMatched carries the matched voter.
type ResultMatched struct {
	Match VoterMatch
}

// ResultAlreadyVoted means the capture matched a voter who has voted.
type ResultAlreadyVoted struct {
	VoterName string
}

// ResultFailed is a server-reported failure (no match, bad template, ...).
type ResultFailed struct {
	Message string
}

// ResultUnrecognized is a well-formed response with an unknown status.
type ResultUnrecognized struct {
	Status string
}

func (ResultPending) scanResult()      {}
func (ResultMatched) scanResult()      {}
func (ResultAlreadyVoted) scanResult() {}
func (ResultFailed) scanResult()       {}
func (ResultUnrecognized) scanResult() {}

// VerifyResult is the decoded fingerprint-verification response.
type VerifyResult interface {
	verifyResult()
}

type VerifyVerified struct {
	VoterName string
}

type VerifyAlreadyVoted struct {
	VoterName string
}

type VerifyNotFound struct {
	Message string
}

// VerifyNoSession means no voting session is open on the backend.
type VerifyNoSession struct{}

func (VerifyVerified) verifyResult()     {}
func (VerifyAlreadyVoted) verifyResult() {}
func (VerifyNotFound) verifyResult()     {}
func (VerifyNoSession) verifyResult()    {}

// ErrorKind classifies a failed or non-success outcome for display.
type ErrorKind int

const (
	ErrorNone ErrorKind = iota
	ErrorTriggerCreationFailed
	ErrorTransportFailure
	ErrorNotFound
	ErrorAlreadyVoted
	ErrorNoActiveSession
	ErrorTimedOut
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorTriggerCreationFailed:
		return "TriggerCreationFailed"
	case ErrorTransportFailure:
		return "TransportFailure"
	case ErrorNotFound:
		return "NotFound"
	case ErrorAlreadyVoted:
		return "AlreadyVoted"
	case ErrorNoActiveSession:
		return "NoActiveSession"
	case ErrorTimedOut:
		return "TimedOut"
	default:
		return "None"
	}
}
