package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// snapshotLayout mirrors the snapshot file naming of package sessionstate.
const snapshotLayout = "2006-01-02T15-04-05"

// SnapshotFileBuilder writes snapshot files straight to disk, bypassing the
// store, so tests can seed directories with aged, odd or broken files.
// Example:
//
//	path := NewSnapshotFile(dir).Age(8 * 24 * time.Hour).Summary("old").Write(t)
type SnapshotFileBuilder struct {
	dir     string
	name    string
	created time.Time
	modTime *time.Time
	fields  map[string]any
	raw     []byte
}

// NewSnapshotFile creates a builder for a valid snapshot created now.
func NewSnapshotFile(dir string) *SnapshotFileBuilder {
	return &SnapshotFileBuilder{
		dir:     dir,
		created: time.Now().UTC(),
		fields: map[string]any{
			"version":      1,
			"summary":      "seeded snapshot",
			"accomplished": []string{"seeded"},
			"remaining":    []string{"nothing"},
		},
	}
}

// CreatedAt sets the creation time used for the file name and timestamp (chainable).
func (b *SnapshotFileBuilder) CreatedAt(t time.Time) *SnapshotFileBuilder {
	b.created = t.UTC()
	return b
}

// ModTime sets the file modification time after writing (chainable).
func (b *SnapshotFileBuilder) ModTime(t time.Time) *SnapshotFileBuilder {
	b.modTime = &t
	return b
}

// Age backdates both creation and modification time by d (chainable).
func (b *SnapshotFileBuilder) Age(d time.Duration) *SnapshotFileBuilder {
	t := time.Now().Add(-d)
	return b.CreatedAt(t).ModTime(t)
}

// Name overrides the generated file name (chainable).
func (b *SnapshotFileBuilder) Name(name string) *SnapshotFileBuilder {
	b.name = name
	return b
}

// Summary sets the summary field (chainable).
func (b *SnapshotFileBuilder) Summary(s string) *SnapshotFileBuilder {
	return b.Field("summary", s)
}

// Field sets or overwrites a top-level JSON field (chainable).
func (b *SnapshotFileBuilder) Field(key string, val any) *SnapshotFileBuilder {
	b.fields[key] = val
	return b
}

// Raw replaces the encoded document with data, e.g. to produce malformed files (chainable).
func (b *SnapshotFileBuilder) Raw(data []byte) *SnapshotFileBuilder {
	b.raw = data
	return b
}

// FileName returns the name Write will use.
func (b *SnapshotFileBuilder) FileName() string {
	if b.name != "" {
		return b.name
	}
	return b.created.Format(snapshotLayout) + ".json"
}

// Write creates the directory if needed, writes the file and returns its path.
func (b *SnapshotFileBuilder) Write(t testing.TB) string {
	t.Helper()

	data := b.raw
	if data == nil {
		if _, ok := b.fields["timestamp"]; !ok {
			b.fields["timestamp"] = b.created.Format(time.RFC3339Nano)
		}

		var err error
		data, err = json.MarshalIndent(b.fields, "", "  ")
		if err != nil {
			t.Fatalf("encode snapshot: %v", err)
		}
		data = append(data, '\n')
	}

	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		t.Fatalf("create dir: %v", err)
	}

	path := filepath.Join(b.dir, b.FileName())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}

	if b.modTime != nil {
		if err := os.Chtimes(path, *b.modTime, *b.modTime); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	return path
}
