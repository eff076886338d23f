package sessionstate

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultDir is the snapshot directory relative to the working directory.
	DefaultDir = ".session-state"

	// SchemaVersion is written into every snapshot.
	SchemaVersion = 1

	// RetentionWindow is how long snapshots survive pruning.
	RetentionWindow = 7 * 24 * time.Hour

	// FileTimeLayout formats the UTC creation time into a file stem. It sorts
	// lexicographically in chronological order.
	FileTimeLayout = "2006-01-02T15-04-05"

	fileExt = ".json"
)

// Snapshot is one persisted progress record.
//
// Context is opaque to the store. Conventional keys are "branch",
// "files_changed" and "working_directory".
type Snapshot struct {
	Version      int            `json:"version"`
	Timestamp    string         `json:"timestamp"`
	Summary      string         `json:"summary"`
	Accomplished []string       `json:"accomplished"`
	Remaining    []string       `json:"remaining"`
	Decisions    []string       `json:"decisions,omitempty"`
	Context      map[string]any `json:"context,omitempty"`
	SessionID    string         `json:"session_id,omitempty"`
}

// CreatedAt parses Timestamp.
func (s *Snapshot) CreatedAt() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s.Timestamp)
}

// SaveRequest carries the caller-supplied fields of a new snapshot.
type SaveRequest struct {
	Summary      string
	Accomplished []string
	Remaining    []string
	Decisions    []string
	Context      map[string]any
	SessionID    string
}

// Missing returns the names of empty required fields in declaration order.
func (r SaveRequest) Missing() []string {
	var missing []string
	if r.Summary == "" {
		missing = append(missing, "summary")
	}
	if len(r.Accomplished) == 0 {
		missing = append(missing, "accomplished")
	}
	if len(r.Remaining) == 0 {
		missing = append(missing, "remaining")
	}
	return missing
}

// ValidationError reports required snapshot fields that were missing or empty.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("save_state requires: %s", strings.Join(e.Missing, ", "))
}

// ReadError reports a snapshot file that could not be read or decoded.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("Failed to read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// FileName returns the snapshot file name for a creation time.
func FileName(t time.Time) string {
	return t.UTC().Format(FileTimeLayout) + fileExt
}
