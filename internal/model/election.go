package model

import (
	"errors"
	"time"
)

// Candidate is one entry on the demo ballot.
type Candidate struct {
	ID           int      `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Party        string   `json:"party" yaml:"party"`
	Photo        string   `json:"photo" yaml:"photo"`
	Manifesto    string   `json:"manifesto" yaml:"manifesto"`
	Achievements []string `json:"achievements" yaml:"achievements"`
}

// Voter is a registered demo voter.
type Voter struct {
	ID          VoterID `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Fingerprint string  `json:"fingerprint" yaml:"fingerprint"`
	HasVoted    bool    `json:"has_voted" yaml:"has_voted"`
}

// VoteCount is the running tally for one candidate.
type VoteCount struct {
	CandidateID int    `json:"candidate_id" yaml:"candidate_id"`
	Name        string `json:"name,omitempty" yaml:"-"`
	Count       int    `json:"count" yaml:"count"`
}

// ActivityEntry is one row of the admin activity log.
type ActivityEntry struct {
	Time   time.Time `json:"time" yaml:"time"`
	Voter  string    `json:"voter" yaml:"voter"`
	Action string    `json:"action" yaml:"action"`
	Status string    `json:"status" yaml:"status"`
}

// AdminStats summarizes turnout for the admin dashboard.
type AdminStats struct {
	TotalVoters       int
	TotalVotes        int
	TurnoutPercentage int
}

// Activity status values.
const (
	ActivitySuccess = "Success"
	ActivityFailed  = "Failed"
)

// Election errors shared by stores and the kiosk.
var (
	ErrVoterNotFound     = errors.New("voter not found")
	ErrCandidateNotFound = errors.New("candidate not found")
	ErrAlreadyVoted      = errors.New("voter has already voted")
)
