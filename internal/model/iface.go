package model

import "context"

// ScanBackend is the REST contract the kiosk consumes. Paths and transport
// are the implementation's concern.
type ScanBackend interface {
	// ClearSession is best effort; callers ignore its error.
	ClearSession(ctx context.Context) error
	TriggerScan(ctx context.Context, req TriggerRequest) (triggerID string, err error)
	ScanResult(ctx context.Context, triggerID string) (ScanResult, error)
	VerifyFingerprint(ctx context.Context, fingerprintID string) (VerifyResult, error)
	// LatestFingerprint returns ok=false while nothing has been captured.
	LatestFingerprint(ctx context.Context) (fingerprintID string, ok bool, err error)
	PendingTemplates(ctx context.Context) ([]Template, error)
}

// ElectionStore is the persistence contract of the demo election.
type ElectionStore interface {
	Candidates() ([]Candidate, error)
	Voters() ([]Voter, error)
	Voter(id VoterID) (Voter, error)
	CastVote(voterID VoterID, candidateID int) error
	Tally() ([]VoteCount, error)
	AppendActivity(entry ActivityEntry) error
	RecentActivity(limit int) ([]ActivityEntry, error)
}
