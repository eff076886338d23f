// Package sessionstate persists progress snapshots as JSON files so a new
// session can pick up where the previous one stopped.
//
// Snapshots live in a single directory, one file per save, named after the
// UTC creation time (YYYY-MM-DDTHH-MM-SS.json). The newest file is the one
// with the lexicographically greatest name. The store is stateless: every
// call lists the directory again. Files older than RetentionWindow are pruned
// after each successful save.
package sessionstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/agentguard/logging"
)

// StoreOptions configures a Store.
type StoreOptions struct {
	// Now returns the current time. Defaults to time.Now.
	Now    func() time.Time
	Logger logging.Logger
}

// Store reads and writes snapshots in one directory.
type Store struct {
	dir    string
	now    func() time.Time
	logger logging.Logger
}

// NewStore creates a store rooted at dir. An empty dir means DefaultDir.
// The directory is created lazily on the first save.
func NewStore(dir string, optFns ...func(o *StoreOptions)) *Store {
	opts := StoreOptions{Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}

	if dir == "" {
		dir = DefaultDir
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Store{
		dir:    dir,
		now:    opts.Now,
		logger: logging.OrNoOp(opts.Logger),
	}
}

// Dir returns the snapshot directory.
func (s *Store) Dir() string { return s.dir }

// SaveResult describes a completed save.
type SaveResult struct {
	Path     string
	Pruned   int
	Snapshot *Snapshot
}

// Save validates req, writes a new snapshot and prunes expired ones.
// A *ValidationError is returned before any disk access when required
// fields are empty. Two saves within the same second share a file name;
// the later one wins.
func (s *Store) Save(req SaveRequest) (*SaveResult, error) {
	if missing := req.Missing(); len(missing) > 0 {
		return nil, &ValidationError{Missing: missing}
	}

	now := s.now().UTC()

	snap := &Snapshot{
		Version:      SchemaVersion,
		Timestamp:    now.Format(time.RFC3339Nano),
		Summary:      req.Summary,
		Accomplished: req.Accomplished,
		Remaining:    req.Remaining,
		SessionID:    req.SessionID,
	}
	if len(req.Decisions) > 0 {
		snap.Decisions = req.Decisions
	}
	if len(req.Context) > 0 {
		snap.Context = req.Context
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	name := FileName(now)
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write snapshot: %w", err)
	}

	pruned := s.prune(now, name)

	s.logger.Info("session_state.saved", "path", path, "pruned", pruned)

	return &SaveResult{Path: path, Pruned: pruned, Snapshot: snap}, nil
}

// LoadStatus tells which of the three load outcomes occurred.
type LoadStatus int

const (
	// StatusNoDirectory means the snapshot directory does not exist.
	StatusNoDirectory LoadStatus = iota
	// StatusEmpty means the directory exists but holds no snapshots.
	StatusEmpty
	// StatusLoaded means the newest snapshot was read.
	StatusLoaded
)

// LoadResult is the outcome of LoadLatest.
type LoadResult struct {
	Status LoadStatus
	Path   string
	// Raw holds the file contents byte for byte.
	Raw      json.RawMessage
	Snapshot *Snapshot
}

// LoadLatest reads the newest snapshot. A malformed or unreadable newest
// file yields a *ReadError; older files are not consulted.
func (s *Store) LoadLatest() (*LoadResult, error) {
	names, exists, err := s.snapshotNames()
	if err != nil {
		return nil, err
	}
	if !exists {
		return &LoadResult{Status: StatusNoDirectory}, nil
	}
	if len(names) == 0 {
		return &LoadResult{Status: StatusEmpty}, nil
	}

	path := filepath.Join(s.dir, names[0])

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}

	s.logger.Info("session_state.loaded", "path", path)

	return &LoadResult{
		Status:   StatusLoaded,
		Path:     path,
		Raw:      json.RawMessage(data),
		Snapshot: &snap,
	}, nil
}

// Entry describes one snapshot file.
type Entry struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// ListResult is the outcome of List.
type ListResult struct {
	DirExists bool
	// Entries are ordered newest first.
	Entries []Entry
}

// List returns every snapshot file, newest first.
func (s *Store) List() (*ListResult, error) {
	names, exists, err := s.snapshotNames()
	if err != nil {
		return nil, err
	}

	res := &ListResult{DirExists: exists}
	for _, name := range names {
		info, err := os.Stat(filepath.Join(s.dir, name))
		if err != nil {
			// removed since the directory was listed
			continue
		}
		res.Entries = append(res.Entries, Entry{
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	return res, nil
}

// snapshotNames lists regular *.json files, newest (greatest name) first.
func (s *Store) snapshotNames() ([]string, bool, error) {
	info, err := os.Stat(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("stat state directory: %w", err)
	}
	if !info.IsDir() {
		return nil, false, nil
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, true, fmt.Errorf("read state directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if isSnapshotFile(e) {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	return names, true, nil
}

func isSnapshotFile(e fs.DirEntry) bool {
	return e.Type().IsRegular() && strings.HasSuffix(e.Name(), fileExt)
}

// prune removes snapshots whose modification time is older than
// now - RetentionWindow. keep is never removed. Failures are logged and
// skipped.
func (s *Store) prune(now time.Time, keep string) int {
	cutoff := now.Add(-RetentionWindow)

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Debug("session_state.prune.failed", "dir", s.dir, "error", err.Error())
		return 0
	}

	pruned := 0
	for _, e := range entries {
		if !isSnapshotFile(e) || e.Name() == keep {
			continue
		}

		info, err := e.Info()
		if err != nil {
			s.logger.Debug("session_state.prune.skipped", "file", e.Name(), "error", err.Error())
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			s.logger.Debug("session_state.prune.skipped", "file", e.Name(), "error", err.Error())
			continue
		}
		pruned++
	}

	if pruned > 0 {
		s.logger.Debug("session_state.pruned", "count", pruned, "cutoff", cutoff)
	}

	return pruned
}
