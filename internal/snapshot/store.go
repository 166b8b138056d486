package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	appLog "resvwatch/internal/log"
	"resvwatch/internal/model"
)

// Snapshot is the persisted set of reservations from the last successful run.
type Snapshot struct {
	Reservations []model.Reservation `toml:"reservations" yaml:"reservations" json:"reservations"`
}

// ParseError reports a snapshot file that exists but could not be decoded.
// It is fatal; a missing file is not an error at all.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("snapshot: parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Store reads and writes the single snapshot file of a deployment. Runs must
// not overlap; Store does no locking.
type Store struct {
	Path string
}

// NewStore returns a Store for path.
func NewStore(path string) *Store {
	return &Store{Path: path}
}

// Load reads the snapshot.
//
// Behavior:
//   - file absent: returns (Snapshot{}, false, nil), the first-run signal
//   - file present but malformed: returns a *ParseError
//   - otherwise: returns the decoded snapshot and true
func (s *Store) Load() (Snapshot, bool, error) {
	if s.Path == "" {
		return Snapshot{}, false, errors.New("snapshot: path is empty")
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			appLog.Debug("snapshot absent", "path", s.Path)
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("snapshot: read %s: %w", s.Path, err)
	}

	var snap Snapshot
	if err := codecFor(s.Path).Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, &ParseError{Path: s.Path, Err: err}
	}

	appLog.Debug("snapshot loaded", "path", s.Path, "reservations", len(snap.Reservations))
	return snap, true, nil
}

// Save replaces the snapshot with snap, ordered by start.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Writes to a temp file in the same directory, syncs, then renames.
//   - Final file permissions are 0600.
//
// The rename gives a best-effort atomic overwrite on POSIX filesystems and
// nothing stronger.
func (s *Store) Save(snap Snapshot) error {
	if s.Path == "" {
		return errors.New("snapshot: path is empty")
	}

	sorted := make([]model.Reservation, len(snap.Reservations))
	copy(sorted, snap.Reservations)
	model.SortByStart(sorted)

	c := codecFor(s.Path)
	data, err := c.Marshal(Snapshot{Reservations: sorted})
	if err != nil {
		return fmt.Errorf("snapshot: encode %s: %w", c.Name(), err)
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("snapshot: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".resvwatch-state-*.tmp")
	if err != nil {
		return fmt.Errorf("snapshot: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up the temp file on every error path; after a successful
	// rename this is a no-op.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshot: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshot: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("snapshot: close temp: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("snapshot: chmod temp: %w", err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		return fmt.Errorf("snapshot: rename: %w", err)
	}

	appLog.Debug("snapshot saved", "path", s.Path, "reservations", len(sorted), "format", c.Name())
	return nil
}
