// Package migrate applies the embedded, numbered SQL files to the election
// database.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Runner applies versioned SQL migrations to a DuckDB database.
type Runner struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewRunner(db *sql.DB, logger zerolog.Logger) *Runner {
	return &Runner{db: db, logger: logger}
}

type step struct {
	version int
	file    string
	body    string
}

// Status describes how far the schema is behind the embedded files.
type Status struct {
	Current int
	Latest  int
	Pending int
}

func readSteps() ([]step, error) {
	entries, err := fs.ReadDir(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrate: read embedded files: %w", err)
	}

	steps := make([]step, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || path.Ext(name) != ".sql" {
			continue
		}
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			continue
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("migrate: version of %s: %w", name, err)
		}
		body, err := migrations.ReadFile(path.Join("migrations", name))
		if err != nil {
			return nil, fmt.Errorf("migrate: read %s: %w", name, err)
		}
		steps = append(steps, step{version: version, file: name, body: string(body)})
	}
	slices.SortFunc(steps, func(a, b step) int { return a.version - b.version })
	return steps, nil
}

func (r *Runner) ensureTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		name       VARCHAR NOT NULL,
		applied_at TIMESTAMP DEFAULT current_timestamp
	)`)
	if err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}
	return nil
}

func (r *Runner) current(ctx context.Context) (int, error) {
	var v sql.NullInt64
	if err := r.db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&v); err != nil {
		return 0, fmt.Errorf("migrate: read applied version: %w", err)
	}
	return int(v.Int64), nil
}

// Run applies every pending file in version order, one transaction each.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.ensureTable(ctx); err != nil {
		return err
	}
	steps, err := readSteps()
	if err != nil {
		return err
	}
	current, err := r.current(ctx)
	if err != nil {
		return err
	}

	for _, s := range steps {
		if s.version <= current {
			continue
		}
		if err := r.apply(ctx, s); err != nil {
			return err
		}
		r.logger.Debug().Int("version", s.version).Str("file", s.file).Msg("applied migration")
	}
	return nil
}

func (r *Runner) apply(ctx context.Context, s step) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: begin %s: %w", s.file, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.body); err != nil {
		return fmt.Errorf("migrate: execute %s: %w", s.file, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version, name) VALUES (?, ?)", s.version, s.file); err != nil {
		return fmt.Errorf("migrate: record %s: %w", s.file, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit %s: %w", s.file, err)
	}
	return nil
}

// Status reports the applied version against the embedded files.
func (r *Runner) Status(ctx context.Context) (Status, error) {
	if err := r.ensureTable(ctx); err != nil {
		return Status{}, err
	}
	current, err := r.current(ctx)
	if err != nil {
		return Status{}, err
	}
	steps, err := readSteps()
	if err != nil {
		return Status{}, err
	}

	st := Status{Current: current}
	for _, s := range steps {
		st.Latest = max(st.Latest, s.version)
		if s.version > current {
			st.Pending++
		}
	}
	return st, nil
}
