package model

import "time"

// Shared defaults used by the kiosk, the headless commands and the stub backend.
const (
	DefaultPollInterval      = 2 * time.Second
	DefaultRedirectDelay     = 2 * time.Second
	DefaultVerifiedDelay     = 1500 * time.Millisecond
	DefaultMaxWait           = 5 * time.Minute
	DefaultSimulatedTick     = 800 * time.Millisecond
	DefaultSimulatedStep     = 25
	DefaultHighlightDuration = 3 * time.Second
	DefaultSessionTimeout    = 60 * time.Second
	DefaultTestFingerprintID = "TEST_FP_001"
	MaxActivityEntries       = 50
)

// Navigation targets reached on terminal outcomes.
const (
	PathDashboard          = "/dashboard/"
	PathCastVote           = "/voting/cast-vote/"
	PathVotingAlreadyVoted = "/voting/already-voted/"
	PathAlreadyVoted       = "/already-voted/"
)

// VoterHomePath returns the page a matched voter proceeds to.
func VoterHomePath(id VoterID) string {
	return "/voter-home/" + string(id) + "/"
}
