package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tinytelemetry/fingervote/internal/model"
)

// SeedData is the initial state of a fresh election.
type SeedData struct {
	Candidates []model.Candidate
	Voters     []model.Voter
	Votes      []model.VoteCount
	Activity   []model.ActivityEntry
}

// Seed loads data into an empty database. It does nothing when candidates
// already exist, so a persisted election survives restarts.
func (s *Store) Seed(data SeedData) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM candidates").Scan(&n); err != nil {
		return false, fmt.Errorf("store: count candidates: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	base := make(map[int]int, len(data.Votes))
	for _, v := range data.Votes {
		base[v.CandidateID] = v.Count
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("store: begin seed: %w", err)
	}
	defer tx.Rollback()

	for _, c := range data.Candidates {
		achievements, err := json.Marshal(c.Achievements)
		if err != nil {
			return false, fmt.Errorf("store: encode achievements of %d: %w", c.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO candidates (id, name, party, photo, manifesto, achievements, base_votes)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.Name, c.Party, c.Photo, c.Manifesto, string(achievements), base[c.ID]); err != nil {
			return false, fmt.Errorf("store: seed candidate %d: %w", c.ID, err)
		}
	}
	for _, v := range data.Voters {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO voters (id, name, fingerprint, voted) VALUES (?, ?, ?, ?)",
			string(v.ID), v.Name, v.Fingerprint, v.HasVoted); err != nil {
			return false, fmt.Errorf("store: seed voter %s: %w", v.ID, err)
		}
	}
	for _, a := range data.Activity {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO activity_log (at, voter, action, status) VALUES (?, ?, ?, ?)",
			a.Time.UTC(), a.Voter, a.Action, a.Status); err != nil {
			return false, fmt.Errorf("store: seed activity: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("store: commit seed: %w", err)
	}
	s.logger.Info().Int("candidates", len(data.Candidates)).Int("voters", len(data.Voters)).Msg("seeded election")
	return true, nil
}

// Candidates returns the ballot in id order.
func (s *Store) Candidates() ([]model.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, party, photo, manifesto, achievements FROM candidates ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("store: query candidates: %w", err)
	}
	defer rows.Close()

	var out []model.Candidate
	for rows.Next() {
		var c model.Candidate
		var achievements string
		if err := rows.Scan(&c.ID, &c.Name, &c.Party, &c.Photo, &c.Manifesto, &achievements); err != nil {
			return nil, fmt.Errorf("store: scan candidate: %w", err)
		}
		if err := json.Unmarshal([]byte(achievements), &c.Achievements); err != nil {
			s.logger.Warn().Err(err).Int("candidate", c.ID).Msg("bad achievements column")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const voterColumns = `v.id, v.name, v.fingerprint,
	v.voted OR EXISTS (SELECT 1 FROM votes x WHERE x.voter_id = v.id)`

// Voters returns every registered voter in id order.
func (s *Store) Voters() ([]model.Voter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, "SELECT "+voterColumns+" FROM voters v ORDER BY v.id")
	if err != nil {
		return nil, fmt.Errorf("store: query voters: %w", err)
	}
	defer rows.Close()

	var out []model.Voter
	for rows.Next() {
		var v model.Voter
		var id string
		if err := rows.Scan(&id, &v.Name, &v.Fingerprint, &v.HasVoted); err != nil {
			return nil, fmt.Errorf("store: scan voter: %w", err)
		}
		v.ID = model.VoterID(id)
		out = append(out, v)
	}
	return out, rows.Err()
}

// Voter returns one voter or model.ErrVoterNotFound.
func (s *Store) Voter(id model.VoterID) (model.Voter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.voter(id)
}

func (s *Store) voter(id model.VoterID) (model.Voter, error) {
	ctx, cancel := s.queryCtx()
	defer cancel()

	var v model.Voter
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT "+voterColumns+" FROM voters v WHERE v.id = ?", string(id)).
		Scan(&raw, &v.Name, &v.Fingerprint, &v.HasVoted)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Voter{}, fmt.Errorf("store: voter %s: %w", id, model.ErrVoterNotFound)
	}
	if err != nil {
		return model.Voter{}, fmt.Errorf("store: query voter %s: %w", id, err)
	}
	v.ID = model.VoterID(raw)
	return v, nil
}

// CastVote records one vote. A voter votes at most once.
func (s *Store) CastVote(voterID model.VoterID, candidateID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.voter(voterID)
	if err != nil {
		return err
	}
	if v.HasVoted {
		return fmt.Errorf("store: cast vote for %s: %w", voterID, model.ErrAlreadyVoted)
	}

	ctx, cancel := s.queryCtx()
	defer cancel()

	var exists bool
	if err := s.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM candidates WHERE id = ?)", candidateID).Scan(&exists); err != nil {
		return fmt.Errorf("store: check candidate %d: %w", candidateID, err)
	}
	if !exists {
		return fmt.Errorf("store: cast vote for %d: %w", candidateID, model.ErrCandidateNotFound)
	}

	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO votes (voter_id, candidate_id, cast_at) VALUES (?, ?, ?)",
		string(voterID), candidateID, time.Now().UTC()); err != nil {
		return fmt.Errorf("store: insert vote: %w", err)
	}
	return nil
}

// Tally returns per-candidate totals in candidate order.
func (s *Store) Tally() ([]model.VoteCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.base_votes + COUNT(v.voter_id) AS total
		FROM candidates c
		LEFT JOIN votes v ON v.candidate_id = c.id
		GROUP BY c.id, c.name, c.base_votes
		ORDER BY c.id`)
	if err != nil {
		return nil, fmt.Errorf("store: query tally: %w", err)
	}
	defer rows.Close()

	var out []model.VoteCount
	for rows.Next() {
		var vc model.VoteCount
		if err := rows.Scan(&vc.CandidateID, &vc.Name, &vc.Count); err != nil {
			return nil, fmt.Errorf("store: scan tally: %w", err)
		}
		out = append(out, vc)
	}
	return out, rows.Err()
}
