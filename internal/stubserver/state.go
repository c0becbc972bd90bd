package stubserver

import (
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tinytelemetry/fingervote/internal/model"
)

// failure is an error whose text is shown to the client as is.
type failure string

func (f failure) Error() string { return string(f) }

const (
	errUnknownTrigger failure = "Unknown trigger"
	errExpired        failure = "Scan trigger expired"
	errNoTrigger      failure = "No scan trigger active"
	errResolved       failure = "Scan trigger already resolved"
)

// Voter is a registered voter on the stub backend.
type Voter struct {
	ID            model.VoterID
	Name          string
	FingerprintID string
	HasVoted      bool
}

// DefaultVoters mirrors the demo election roll.
func DefaultVoters() []Voter {
	return []Voter{
		{ID: "1", Name: "John Doe", FingerprintID: "FP001"},
		{ID: "2", Name: "Jane Smith", FingerprintID: "FP002", HasVoted: true},
		{ID: "3", Name: "Bob Wilson", FingerprintID: "FP003"},
		{ID: "4", Name: "Test Voter", FingerprintID: model.DefaultTestFingerprintID},
	}
}

type outcome struct {
	status  string
	voter   Voter
	score   float64
	message string
}

type trigger struct {
	id        string
	action    model.Action
	voterID   model.VoterID
	createdAt time.Time
	result    *outcome
}

// state is the in-memory backend shared by all handlers.
type state struct {
	mu        sync.Mutex
	now       func() time.Time
	ttl       time.Duration
	threshold float64

	votersByFP map[string]*Voter
	votersByID map[model.VoterID]*Voter
	triggers   map[string]*trigger
	active     string

	latestFP   string
	templates  []model.Template
	votingOpen bool
}

func newState(cfg Config) *state {
	s := &state{
		now:        cfg.Now,
		ttl:        cfg.TriggerTTL,
		threshold:  cfg.MatchThreshold,
		votersByFP: make(map[string]*Voter),
		votersByID: make(map[model.VoterID]*Voter),
		triggers:   make(map[string]*trigger),
		votingOpen: cfg.VotingOpen,
	}
	for _, v := range cfg.Voters {
		v := v
		s.votersByFP[v.FingerprintID] = &v
		s.votersByID[v.ID] = &v
	}
	return s
}

func (s *state) createTrigger(action model.Action, voterID model.VoterID) *trigger {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &trigger{id: uuid.NewString(), action: action, voterID: voterID, createdAt: s.now()}
	s.triggers[t.id] = t
	s.active = t.id
	return t
}

func (s *state) expired(t *trigger) bool {
	return s.ttl > 0 && s.now().Sub(t.createdAt) > s.ttl
}

// result returns the outcome of a trigger, nil while pending.
func (s *state) result(id string) (*outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.triggers[id]
	if !ok {
		return nil, errUnknownTrigger
	}
	if t.result != nil {
		return t.result, nil
	}
	if s.expired(t) {
		return nil, errExpired
	}
	return nil, nil
}

// activeTrigger is what the device sees when it asks for work.
func (s *state) activeTrigger() (*trigger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.triggers[s.active]
	if !ok || t.result != nil {
		return nil, errNoTrigger
	}
	if s.expired(t) {
		s.active = ""
		return nil, errExpired
	}
	return t, nil
}

func (s *state) clearActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = ""
}

// deliver resolves a trigger with a captured fingerprint. An empty
// triggerID resolves the active one.
func (s *state) deliver(triggerID, fingerprintID string, score float64) (*trigger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if triggerID == "" {
		triggerID = s.active
	}
	t, ok := s.triggers[triggerID]
	if !ok {
		return nil, errUnknownTrigger
	}
	if t.result != nil {
		return nil, errResolved
	}
	if s.expired(t) {
		return nil, errExpired
	}

	s.latestFP = fingerprintID
	if t.action == model.ActionRegister {
		s.templates = append(s.templates, model.Template{ID: strconv.Itoa(len(s.templates) + 1)})
		t.result = &outcome{status: "success", voter: Voter{ID: t.voterID}, score: 1}
	} else {
		t.result = s.match(fingerprintID, score)
	}
	if s.active == t.id {
		s.active = ""
	}
	return t, nil
}

func (s *state) match(fingerprintID string, score float64) *outcome {
	v, ok := s.votersByFP[fingerprintID]
	if !ok || score < s.threshold {
		return &outcome{status: "error", message: "Fingerprint not registered or unmatched"}
	}
	if v.HasVoted {
		return &outcome{status: "already_voted", voter: *v, message: "You have already voted"}
	}
	return &outcome{status: "success", voter: *v, score: score}
}

// verify answers a verification request.
func (s *state) verify(fingerprintID string) (string, Voter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.votingOpen {
		return "no_session", Voter{}
	}
	v, ok := s.votersByFP[fingerprintID]
	if !ok {
		return "not_found", Voter{}
	}
	if v.HasVoted {
		return "already_voted", *v
	}
	return "verified", *v
}

func (s *state) latest() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latestFP
}

func (s *state) pendingTemplates() []model.Template {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Template{}, s.templates...)
}

func (s *state) setVotingOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votingOpen = open
}

func (s *state) markVoted(id model.VoterID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.votersByID[id]
	if ok {
		v.HasVoted = true
	}
	return ok
}
