package store

import (
	"fmt"
	"time"

	"github.com/tinytelemetry/fingervote/internal/model"
)

// AppendActivity records one activity row and trims the log to ActivityCap.
func (s *Store) AppendActivity(entry model.ActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	at := entry.Time
	if at.IsZero() {
		at = time.Now()
	}
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO activity_log (at, voter, action, status) VALUES (?, ?, ?, ?)",
		at.UTC(), entry.Voter, entry.Action, entry.Status); err != nil {
		return fmt.Errorf("store: insert activity: %w", err)
	}

	if s.ActivityCap > 0 {
		if _, err := s.pruneActivity(s.ActivityCap); err != nil {
			return err
		}
	}
	return nil
}

// PruneActivity deletes all but the newest keep rows and returns how many
// were removed.
func (s *Store) PruneActivity(keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneActivity(keep)
}

func (s *Store) pruneActivity(keep int) (int64, error) {
	ctx, cancel := s.queryCtx()
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM activity_log
		WHERE id NOT IN (SELECT id FROM activity_log ORDER BY at DESC, id DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("store: prune activity: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Debug().Int64("rows", n).Int("keep", keep).Msg("pruned activity log")
	}
	return n, nil
}

// RecentActivity returns up to limit rows, newest first. limit <= 0 uses
// model.MaxActivityEntries.
func (s *Store) RecentActivity(limit int) ([]model.ActivityEntry, error) {
	if limit <= 0 {
		limit = model.MaxActivityEntries
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		"SELECT at, voter, action, status FROM activity_log ORDER BY at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("store: query activity: %w", err)
	}
	defer rows.Close()

	var out []model.ActivityEntry
	for rows.Next() {
		var e model.ActivityEntry
		if err := rows.Scan(&e.Time, &e.Voter, &e.Action, &e.Status); err != nil {
			return nil, fmt.Errorf("store: scan activity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
