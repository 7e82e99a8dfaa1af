package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/verbatim/pkg/core"
)

// SaveCheck inserts or replaces a check.
func (r *Repository) SaveCheck(ctx context.Context, check core.Check) error {
	if check.ID == "" {
		return core.ErrEmptyID
	}
	if r.config.ReadOnly {
		return core.ErrReadOnly
	}

	matches := check.Matches
	if matches == nil {
		matches = []core.Match{}
	}
	encoded, err := json.Marshal(matches)
	if err != nil {
		return fmt.Errorf("encode matches: %w", err)
	}

	var similarity sql.NullFloat64
	if check.Similarity != nil {
		similarity = sql.NullFloat64{Float64: *check.Similarity, Valid: true}
	}
	var completed sql.NullString
	if check.CompletedAt != nil {
		completed = sql.NullString{String: check.CompletedAt.UTC().Format(timeLayout), Valid: true}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	db, err := r.conn()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO checks (id, report_id, status, similarity, matches, created_at, completed_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			similarity = excluded.similarity,
			matches = excluded.matches,
			completed_at = excluded.completed_at,
			error = excluded.error
	`, check.ID, check.DocumentID, string(check.Status), similarity, string(encoded),
		check.CreatedAt.UTC().Format(timeLayout), completed, check.Error)
	if err != nil {
		return fmt.Errorf("save check %s: %w", check.ID, err)
	}
	return nil
}

const checkColumns = "id, report_id, status, similarity, matches, created_at, completed_at, error"

func scanCheck(row scanner) (core.Check, error) {
	var (
		check      core.Check
		status     string
		similarity sql.NullFloat64
		matches    string
		created    string
		completed  sql.NullString
	)
	if err := row.Scan(&check.ID, &check.DocumentID, &status, &similarity, &matches, &created, &completed, &check.Error); err != nil {
		return core.Check{}, err
	}
	check.Status = core.CheckStatus(status)
	if similarity.Valid {
		v := similarity.Float64
		check.Similarity = &v
	}
	if err := json.Unmarshal([]byte(matches), &check.Matches); err != nil {
		return core.Check{}, fmt.Errorf("check %s: invalid matches: %w", check.ID, err)
	}
	if check.Matches == nil {
		check.Matches = []core.Match{}
	}

	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return core.Check{}, fmt.Errorf("check %s: invalid created_at: %w", check.ID, err)
	}
	check.CreatedAt = t
	if completed.Valid {
		t, err := time.Parse(timeLayout, completed.String)
		if err != nil {
			return core.Check{}, fmt.Errorf("check %s: invalid completed_at: %w", check.ID, err)
		}
		check.CompletedAt = &t
	}
	return check, nil
}

// GetCheck retrieves a check by ID.
func (r *Repository) GetCheck(ctx context.Context, id string) (core.Check, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	db, err := r.conn()
	if err != nil {
		return core.Check{}, err
	}

	row := db.QueryRowContext(ctx, "SELECT "+checkColumns+" FROM checks WHERE id = ?", id)
	check, err := scanCheck(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Check{}, fmt.Errorf("check %s: %w", id, core.ErrNotFound)
	}
	return check, err
}

// ListChecks returns the checks of a document, newest first.
func (r *Repository) ListChecks(ctx context.Context, documentID string) ([]core.Check, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	db, err := r.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		"SELECT "+checkColumns+" FROM checks WHERE report_id = ? ORDER BY created_at DESC", documentID)
	if err != nil {
		return nil, fmt.Errorf("list checks: %w", err)
	}
	defer rows.Close()

	var checks []core.Check
	for rows.Next() {
		check, err := scanCheck(rows)
		if err != nil {
			r.logger.Warn("skipping unreadable check", "error", err)
			continue
		}
		checks = append(checks, check)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	core.SortChecksNewestFirst(checks)
	return checks, nil
}

// DeleteChecks removes every check of a document.
func (r *Repository) DeleteChecks(ctx context.Context, documentID string) error {
	if r.config.ReadOnly {
		return core.ErrReadOnly
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	db, err := r.conn()
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, "DELETE FROM checks WHERE report_id = ?", documentID); err != nil {
		return fmt.Errorf("delete checks: %w", err)
	}
	return nil
}
