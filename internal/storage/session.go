// Package storage owns everything the session puts on disk: the report and
// snapshot files (written atomically each writer cycle) and the SQLite
// archive of closed spans.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Session is the on-disk home of one tracking session. Both artifact paths
// are probed for writability up front so a bad directory fails the startup,
// not the first flush.
type Session struct {
	dir          string
	reportPath   string
	snapshotPath string
}

// NewSession creates the session directory if needed and verifies both
// artifact paths can be created and written.
func NewSession(dir, reportFile, snapshotFile string) (*Session, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create session dir %s: %w", dir, err)
	}
	s := &Session{
		dir:          dir,
		reportPath:   filepath.Join(dir, reportFile),
		snapshotPath: filepath.Join(dir, snapshotFile),
	}
	for _, path := range []string{s.reportPath, s.snapshotPath} {
		if err := probeWritable(path); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Dir returns the session directory.
func (s *Session) Dir() string { return s.dir }

// ReportPath returns the report file path.
func (s *Session) ReportPath() string { return s.reportPath }

// SnapshotPath returns the snapshot file path.
func (s *Session) SnapshotPath() string { return s.snapshotPath }

// LoadSnapshot reads the persisted snapshot. A missing or empty file is
// not an error — it just means a fresh session. The writability probe in
// NewSession leaves an empty file behind, so empty must mean fresh.
func (s *Session) LoadSnapshot() ([]byte, error) {
	data, err := os.ReadFile(s.snapshotPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read snapshot %s: %w", s.snapshotPath, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

// WriteReport atomically replaces the report file.
func (s *Session) WriteReport(text string) error {
	return writeAtomic(s.reportPath, []byte(text))
}

// WriteSnapshot atomically replaces the snapshot file.
func (s *Session) WriteSnapshot(data []byte) error {
	return writeAtomic(s.snapshotPath, data)
}

// probeWritable opens the path for append-create and closes it again,
// surfacing permission and path problems before the session starts.
func probeWritable(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("storage: cannot open %s for writing: %w", path, err)
	}
	return f.Close()
}

// writeAtomic writes data to a temp file in the target's directory, syncs
// it, and renames it over the target. A reader (or a crash) never sees a
// half-written artifact.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("storage: sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("storage: close temp for %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("storage: rename into %s: %w", path, err)
	}
	return nil
}
