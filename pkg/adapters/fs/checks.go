package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/verbatim/internal/fsutil"
	"github.com/aretw0/verbatim/pkg/core"
)

func (r *Repository) checksDir() string {
	return filepath.Join(r.Path, r.config.SystemDir, "checks")
}

func (r *Repository) checkPath(id string) string {
	return filepath.Join(r.checksDir(), id+".json")
}

// SaveCheck stores a check as JSON under the system directory.
func (r *Repository) SaveCheck(ctx context.Context, check core.Check) error {
	if err := validateID(check.ID); err != nil {
		return err
	}
	data, err := json.MarshalIndent(check, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode check: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readOnly {
		return core.ErrReadOnly
	}
	return fsutil.WriteFileAtomicMkdir(r.checkPath(check.ID), data, 0o644)
}

// GetCheck loads a check by ID.
func (r *Repository) GetCheck(ctx context.Context, id string) (core.Check, error) {
	if err := validateID(id); err != nil {
		return core.Check{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.readCheck(r.checkPath(id), id)
}

func (r *Repository) readCheck(path, id string) (core.Check, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return core.Check{}, fmt.Errorf("check %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Check{}, err
	}
	var check core.Check
	if err := json.Unmarshal(data, &check); err != nil {
		return core.Check{}, fmt.Errorf("failed to parse check %s: %w", id, err)
	}
	if check.Matches == nil {
		check.Matches = []core.Match{}
	}
	return check, nil
}

func (r *Repository) allChecks(match func(core.Check) bool) ([]core.Check, error) {
	entries, err := os.ReadDir(r.checksDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []core.Check
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" || fsutil.IsTemp(name) {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		check, err := r.readCheck(filepath.Join(r.checksDir(), name), id)
		if err != nil {
			r.config.Logger.Warn("skipping unreadable check", "file", name, "error", err)
			continue
		}
		if match(check) {
			out = append(out, check)
		}
	}
	return out, nil
}

// ListChecks returns the checks of a document, newest first.
func (r *Repository) ListChecks(ctx context.Context, documentID string) ([]core.Check, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	checks, err := r.allChecks(func(c core.Check) bool { return c.DocumentID == documentID })
	if err != nil {
		return nil, err
	}
	core.SortChecksNewestFirst(checks)
	return checks, nil
}

// DeleteChecks removes every check of a document.
func (r *Repository) DeleteChecks(ctx context.Context, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readOnly {
		return core.ErrReadOnly
	}

	checks, err := r.allChecks(func(c core.Check) bool { return c.DocumentID == documentID })
	if err != nil {
		return err
	}
	for _, c := range checks {
		if err := os.Remove(r.checkPath(c.ID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove check %s: %w", c.ID, err)
		}
	}
	return nil
}
