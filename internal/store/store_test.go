package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/tinytelemetry/fingervote/internal/model"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open("", opts...)
	if err != nil {
		t.Fatalf("Open(\"\") failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSeed() SeedData {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	return SeedData{
		Candidates: []model.Candidate{
			{ID: 1, Name: "John Smith", Party: "Progressive", Achievements: []string{"Debate captain"}},
			{ID: 2, Name: "Sarah Johnson", Party: "Unity"},
		},
		Voters: []model.Voter{
			{ID: "1", Name: "John Doe", Fingerprint: "FP001"},
			{ID: "2", Name: "Jane Smith", Fingerprint: "FP002", HasVoted: true},
		},
		Votes: []model.VoteCount{{CandidateID: 1, Count: 45}, {CandidateID: 2, Count: 38}},
		Activity: []model.ActivityEntry{
			{Time: base, Voter: "John Doe", Action: "Login", Status: model.ActivitySuccess},
			{Time: base.Add(time.Minute), Voter: "Jane Smith", Action: "Vote Cast", Status: model.ActivitySuccess},
		},
	}
}

func seeded(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s := newTestStore(t, opts...)
	if ok, err := s.Seed(testSeed()); err != nil || !ok {
		t.Fatalf("Seed = %v, %v", ok, err)
	}
	return s
}

func TestSeedIsOneShot(t *testing.T) {
	s := seeded(t)
	ok, err := s.Seed(testSeed())
	if err != nil {
		t.Fatalf("second Seed: %v", err)
	}
	if ok {
		t.Fatal("second Seed reported loading data")
	}

	candidates, err := s.Candidates()
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if len(candidates) != 2 || candidates[0].Name != "John Smith" {
		t.Fatalf("candidates = %+v", candidates)
	}
	if len(candidates[0].Achievements) != 1 || candidates[0].Achievements[0] != "Debate captain" {
		t.Fatalf("achievements = %v", candidates[0].Achievements)
	}
}

func TestCastVoteUpdatesTallyAndVoter(t *testing.T) {
	s := seeded(t)

	if err := s.CastVote("1", 2); err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	tally, err := s.Tally()
	if err != nil {
		t.Fatalf("Tally: %v", err)
	}
	want := []model.VoteCount{
		{CandidateID: 1, Name: "John Smith", Count: 45},
		{CandidateID: 2, Name: "Sarah Johnson", Count: 39},
	}
	for i := range want {
		if tally[i] != want[i] {
			t.Fatalf("tally[%d] = %+v, want %+v", i, tally[i], want[i])
		}
	}

	v, err := s.Voter("1")
	if err != nil {
		t.Fatalf("Voter: %v", err)
	}
	if !v.HasVoted {
		t.Fatal("voter not marked as voted")
	}
}

func TestCastVoteRejections(t *testing.T) {
	s := seeded(t)

	if err := s.CastVote("2", 1); !errors.Is(err, model.ErrAlreadyVoted) {
		t.Errorf("seeded voter: err = %v", err)
	}
	if err := s.CastVote("9", 1); !errors.Is(err, model.ErrVoterNotFound) {
		t.Errorf("unknown voter: err = %v", err)
	}
	if err := s.CastVote("1", 99); !errors.Is(err, model.ErrCandidateNotFound) {
		t.Errorf("unknown candidate: err = %v", err)
	}
	if err := s.CastVote("1", 1); err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	if err := s.CastVote("1", 2); !errors.Is(err, model.ErrAlreadyVoted) {
		t.Errorf("double vote: err = %v", err)
	}
}

func TestVotersOrderAndFlags(t *testing.T) {
	s := seeded(t)
	voters, err := s.Voters()
	if err != nil {
		t.Fatalf("Voters: %v", err)
	}
	if len(voters) != 2 || voters[0].ID != "1" || voters[0].HasVoted || !voters[1].HasVoted {
		t.Fatalf("voters = %+v", voters)
	}
}

func TestRecentActivityNewestFirstAndCapped(t *testing.T) {
	s := seeded(t, WithActivityCap(3))
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := s.AppendActivity(model.ActivityEntry{
			Time:   base.Add(time.Duration(i) * time.Minute),
			Voter:  "Bob Wilson",
			Action: "Login",
			Status: model.ActivityFailed,
		})
		if err != nil {
			t.Fatalf("AppendActivity: %v", err)
		}
	}

	entries, err := s.RecentActivity(0)
	if err != nil {
		t.Fatalf("RecentActivity: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len = %d, want 3", len(entries))
	}
	if !entries[0].Time.Equal(base.Add(2*time.Minute)) || !entries[2].Time.Equal(base) {
		t.Fatalf("order = %v, %v", entries[0].Time, entries[2].Time)
	}

	n, err := s.PruneActivity(1)
	if err != nil || n != 2 {
		t.Fatalf("PruneActivity = %d, %v", n, err)
	}
}

func TestOpenPersistsToDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "election.duckdb")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Seed(testSeed()); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if err := s.CastVote("1", 1); err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	s.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if reopened.DBPath() != path {
		t.Fatalf("DBPath = %q", reopened.DBPath())
	}
	tally, err := reopened.Tally()
	if err != nil {
		t.Fatalf("Tally: %v", err)
	}
	if tally[0].Count != 46 {
		t.Fatalf("tally after reopen = %+v", tally)
	}
}
