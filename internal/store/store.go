// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/verte-zerg/smartchr/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for mapping settings and activation history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS mappings (
			id INTEGER PRIMARY KEY,
			position INTEGER NOT NULL,
			trigger_key TEXT NOT NULL,
			mode TEXT NOT NULL,
			enabled INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS mapping_candidates (
			mapping_id INTEGER NOT NULL,
			idx INTEGER NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (mapping_id, idx)
		);`,
		`CREATE TABLE IF NOT EXISTS mapping_contexts (
			mapping_id INTEGER NOT NULL,
			idx INTEGER NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (mapping_id, idx)
		);`,
		`CREATE TABLE IF NOT EXISTS activations (
			id INTEGER PRIMARY KEY,
			session_id TEXT NOT NULL,
			trigger_key TEXT NOT NULL,
			context TEXT NOT NULL,
			candidate_index INTEGER NOT NULL,
			inserted TEXT NOT NULL,
			replaced INTEGER NOT NULL,
			at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_mappings_position ON mappings(position);`,
		`CREATE INDEX IF NOT EXISTS idx_activations_trigger ON activations(trigger_key);`,
		`CREATE INDEX IF NOT EXISTS idx_activations_at ON activations(at_ms);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// ListMappings returns the stored mappings in order.
func (s *Store) ListMappings(ctx context.Context) ([]model.Mapping, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trigger_key, mode, enabled FROM mappings ORDER BY position ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	type row struct {
		id      int64
		key     string
		mode    string
		enabled bool
	}
	var heads []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.key, &r.mode, &r.enabled); err != nil {
			_ = rows.Close()
			return nil, err
		}
		heads = append(heads, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	candidates, err := s.listValues(ctx, "mapping_candidates")
	if err != nil {
		return nil, err
	}
	contexts, err := s.listValues(ctx, "mapping_contexts")
	if err != nil {
		return nil, err
	}

	result := make([]model.Mapping, 0, len(heads))
	for _, h := range heads {
		runes := []rune(h.key)
		if len(runes) == 0 {
			return nil, fmt.Errorf("mapping %d has an empty key", h.id)
		}
		m, err := model.NewMapping(runes[0], candidates[h.id], model.ParseCycleMode(h.mode), contexts[h.id], h.enabled)
		if err != nil {
			return nil, fmt.Errorf("mapping %d: %w", h.id, err)
		}
		result = append(result, m)
	}
	return result, nil
}

func (s *Store) listValues(ctx context.Context, table string) (map[int64][]string, error) {
	query := fmt.Sprintf(`SELECT mapping_id, value FROM %s ORDER BY mapping_id ASC, idx ASC`, table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()
	result := map[int64][]string{}
	for rows.Next() {
		var id int64
		var value string
		if err := rows.Scan(&id, &value); err != nil {
			return nil, err
		}
		result[id] = append(result[id], value)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// AddMapping appends a mapping after the existing ones.
func (s *Store) AddMapping(ctx context.Context, m model.Mapping) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	var next int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), -1) + 1 FROM mappings`).Scan(&next); err != nil {
		return err
	}
	if err := insertMapping(ctx, tx, next, m); err != nil {
		return err
	}
	return tx.Commit()
}

// SetMappings replaces every stored mapping.
func (s *Store) SetMappings(ctx context.Context, mappings []model.Mapping) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	if err := clearMappings(ctx, tx); err != nil {
		return err
	}
	for i, m := range mappings {
		if err := insertMapping(ctx, tx, i, m); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RemoveMapping deletes the mapping at index in list order. An index outside
// the list is ignored and reported as false.
func (s *Store) RemoveMapping(ctx context.Context, index int) (removed bool, err error) {
	if index < 0 {
		return false, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	var id int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM mappings ORDER BY position ASC, id ASC LIMIT 1 OFFSET ?`, index).Scan(&id)
	if err == sql.ErrNoRows {
		err = tx.Rollback()
		return false, err
	}
	if err != nil {
		return false, err
	}
	for _, stmt := range []string{
		`DELETE FROM mapping_candidates WHERE mapping_id = ?`,
		`DELETE FROM mapping_contexts WHERE mapping_id = ?`,
		`DELETE FROM mappings WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// ResetMappings removes every stored mapping.
func (s *Store) ResetMappings(ctx context.Context) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()
	if err := clearMappings(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

func clearMappings(ctx context.Context, tx *sql.Tx) error {
	for _, stmt := range []string{
		`DELETE FROM mapping_candidates`,
		`DELETE FROM mapping_contexts`,
		`DELETE FROM mappings`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func insertMapping(ctx context.Context, tx *sql.Tx, position int, m model.Mapping) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO mappings (position, trigger_key, mode, enabled) VALUES (?, ?, ?, ?)`,
		position, string(m.Trigger()), m.Mode().String(), m.Enabled())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for i, c := range m.Candidates() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO mapping_candidates (mapping_id, idx, value) VALUES (?, ?, ?)`, id, i, c); err != nil {
			return err
		}
	}
	for i, c := range m.Contexts() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO mapping_contexts (mapping_id, idx, value) VALUES (?, ?, ?)`, id, i, c); err != nil {
			return err
		}
	}
	return nil
}

// RecordActivation stores one engine activation.
func (s *Store) RecordActivation(ctx context.Context, a model.Activation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activations (session_id, trigger_key, context, candidate_index, inserted, replaced, at_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.SessionID,
		a.Trigger,
		a.Context,
		a.Index,
		a.Inserted,
		a.Replaced,
		a.At.UnixMilli(),
	)
	return err
}

// ListKeyUsage aggregates activations per trigger, most used first.
func (s *Store) ListKeyUsage(ctx context.Context, cfg model.UsageConfig) ([]model.KeyUsage, error) {
	var sinceMs int64
	if cfg.Since != nil {
		sinceMs = cfg.Since.UnixMilli()
	}
	limit := cfg.Top
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT trigger_key, COUNT(*), SUM(replaced), COUNT(DISTINCT session_id), MAX(at_ms)
		FROM activations
		WHERE (? = '' OR context = ?) AND at_ms >= ?
		GROUP BY trigger_key
		ORDER BY COUNT(*) DESC, trigger_key ASC
		LIMIT ?`,
		cfg.Context, cfg.Context, sinceMs, limit)
	if err != nil {
		return nil, err
	}
	var result []model.KeyUsage
	for rows.Next() {
		var u model.KeyUsage
		var lastMs int64
		if err := rows.Scan(&u.Trigger, &u.Activations, &u.Replaced, &u.Sessions, &lastMs); err != nil {
			_ = rows.Close()
			return nil, err
		}
		u.LastUsed = time.UnixMilli(lastMs)
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	for i := range result {
		err := s.db.QueryRowContext(ctx,
			`SELECT inserted FROM activations
			WHERE trigger_key = ? AND (? = '' OR context = ?) AND at_ms >= ?
			GROUP BY inserted
			ORDER BY COUNT(*) DESC, inserted ASC
			LIMIT 1`,
			result[i].Trigger, cfg.Context, cfg.Context, sinceMs).Scan(&result[i].TopInserted)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// ListDailyActivity counts activations per local day, oldest first.
func (s *Store) ListDailyActivity(ctx context.Context, cfg model.UsageConfig) ([]model.DayActivity, error) {
	var sinceMs int64
	if cfg.Since != nil {
		sinceMs = cfg.Since.UnixMilli()
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT date(at_ms / 1000, 'unixepoch', 'localtime') AS day, COUNT(*), SUM(replaced)
		FROM activations
		WHERE (? = '' OR context = ?) AND at_ms >= ?
		GROUP BY day
		ORDER BY day ASC`,
		cfg.Context, cfg.Context, sinceMs)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()
	var result []model.DayActivity
	for rows.Next() {
		var day string
		var d model.DayActivity
		if err := rows.Scan(&day, &d.Activations, &d.Replaced); err != nil {
			return nil, err
		}
		parsed, err := time.ParseInLocation("2006-01-02", day, time.Local)
		if err != nil {
			return nil, fmt.Errorf("failed to parse day %q: %w", day, err)
		}
		d.Day = parsed
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
