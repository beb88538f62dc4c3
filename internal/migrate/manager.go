package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	defaultMigrationsTable = "portal_schema_migrations"
	defaultSeedsTable      = "portal_schema_seeds"

	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"
)

// ErrNothingApplied is returned by Down when no migration has run yet.
var ErrNothingApplied = errors.New("migrate: no migrations applied")

// Manager applies the portal schema and sample-data seeds from SQL
// files on disk. Each file runs inside a single transaction and is
// recorded by base name, so re-running any command is idempotent.
type Manager struct {
	db         *sql.DB
	schemaDir  string
	seedDir    string
	applied    string
	seedLedger string
}

// Option configures Manager.
type Option func(*Manager)

// WithMigrationsTable overrides the migration bookkeeping table.
func WithMigrationsTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.applied = name
		}
	}
}

// WithSeedsTable overrides the seed bookkeeping table.
func WithSeedsTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.seedLedger = name
		}
	}
}

// NewManager constructs a Manager over db reading schema files from
// schemaDir and seed files from seedDir.
func NewManager(db *sql.DB, schemaDir, seedDir string, opts ...Option) *Manager {
	m := &Manager{
		db:         db,
		schemaDir:  schemaDir,
		seedDir:    seedDir,
		applied:    defaultMigrationsTable,
		seedLedger: defaultSeedsTable,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Up applies every schema migration not yet recorded, in name order.
func (m *Manager) Up(ctx context.Context) error {
	if err := m.ensureLedgers(ctx); err != nil {
		return err
	}
	return m.applyPending(ctx, m.applied, m.schemaDir, upSuffix)
}

// Down rolls back the most recently applied migration using its
// matching .down.sql file.
func (m *Manager) Down(ctx context.Context) error {
	if err := m.ensureLedgers(ctx); err != nil {
		return err
	}
	history, err := m.recordedInOrder(ctx, m.applied)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return ErrNothingApplied
	}
	last := history[len(history)-1]
	downPath := filepath.Join(m.schemaDir, strings.TrimSuffix(last, upSuffix)+downSuffix)
	if _, err := os.Stat(downPath); err != nil {
		return fmt.Errorf("migrate: no down file for %s", last)
	}
	if err := m.runFile(ctx, downPath); err != nil {
		return fmt.Errorf("migrate: roll back %s: %w", last, err)
	}
	_, err = m.db.ExecContext(ctx,
		fmt.Sprintf(`delete from %s where name = $1`, m.applied), last)
	return err
}

// Status returns applied migrations in order plus the names of
// migrations still pending.
func (m *Manager) Status(ctx context.Context) (applied, pending []string, err error) {
	if err := m.ensureLedgers(ctx); err != nil {
		return nil, nil, err
	}
	applied, err = m.recordedInOrder(ctx, m.applied)
	if err != nil {
		return nil, nil, err
	}
	done := make(map[string]bool, len(applied))
	for _, name := range applied {
		done[name] = true
	}
	files, err := sqlFiles(m.schemaDir, upSuffix)
	if err != nil {
		return nil, nil, err
	}
	for _, f := range files {
		if !done[f.base] {
			pending = append(pending, f.base)
		}
	}
	return applied, pending, nil
}

// Seed loads sample data files that have not run yet. Seeds are kept
// in their own ledger so reseeding after a schema rollback works.
func (m *Manager) Seed(ctx context.Context) error {
	if err := m.ensureLedgers(ctx); err != nil {
		return err
	}
	return m.applyPending(ctx, m.seedLedger, m.seedDir, ".sql")
}

func (m *Manager) applyPending(ctx context.Context, ledger, dir, suffix string) error {
	done, err := m.recorded(ctx, ledger)
	if err != nil {
		return err
	}
	files, err := sqlFiles(dir, suffix)
	if err != nil {
		return err
	}
	for _, f := range files {
		if done[f.base] {
			continue
		}
		if err := m.runFile(ctx, f.path); err != nil {
			return fmt.Errorf("migrate: apply %s: %w", f.base, err)
		}
		if _, err := m.db.ExecContext(ctx,
			fmt.Sprintf(`insert into %s(name, applied_at) values ($1, $2)`, ledger),
			f.base, time.Now().UTC()); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) ensureLedgers(ctx context.Context) error {
	for _, table := range []string{m.applied, m.seedLedger} {
		ddl := fmt.Sprintf(`
			create table if not exists %s (
				name text primary key,
				applied_at timestamptz not null default now()
			);`, table)
		if _, err := m.db.ExecContext(ctx, ddl); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) runFile(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range splitStatements(string(raw)) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (m *Manager) recorded(ctx context.Context, ledger string) (map[string]bool, error) {
	names, err := m.recordedInOrder(ctx, ledger)
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(names))
	for _, name := range names {
		done[name] = true
	}
	return done, nil
}

func (m *Manager) recordedInOrder(ctx context.Context, ledger string) ([]string, error) {
	rows, err := m.db.QueryContext(ctx,
		fmt.Sprintf(`select name from %s order by applied_at asc`, ledger))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

type sqlFile struct {
	base string
	path string
}

func sqlFiles(dir, suffix string) ([]sqlFile, error) {
	if dir == "" {
		return nil, nil
	}
	var files []sqlFile
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), suffix) {
			files = append(files, sqlFile{base: d.Name(), path: path})
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].base < files[j].base })
	return files, nil
}

// splitStatements splits on semicolons outside single-quoted strings.
// Seed files embed JSON literals in quotes, which must stay intact.
func splitStatements(script string) []string {
	var (
		stmts    []string
		current  strings.Builder
		inString bool
	)
	for _, r := range script {
		current.WriteRune(r)
		switch r {
		case '\'':
			inString = !inString
		case ';':
			if !inString {
				stmts = append(stmts, current.String())
				current.Reset()
			}
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		stmts = append(stmts, current.String())
	}
	return stmts
}
