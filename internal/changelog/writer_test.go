package changelog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shelfmark/shelfmark/internal/domain"
	"github.com/shelfmark/shelfmark/internal/logger"
	"github.com/shelfmark/shelfmark/internal/sink"
)

// memSettings is an in-memory SettingsStore.
type memSettings struct {
	values map[string]string
}

func newMemSettings() *memSettings {
	return &memSettings{values: map[string]string{}}
}

func (m *memSettings) Setting(_ context.Context, key string) (string, error) {
	return m.values[key], nil
}

func (m *memSettings) PutSetting(_ context.Context, key, value string) error {
	m.values[key] = value
	return nil
}

func staticSnapshot(text string) SnapshotFunc {
	return func(context.Context) (string, error) { return text, nil }
}

func TestWriterAppendsFrames(t *testing.T) {
	dir := t.TempDir()
	s := sink.New(dir, logger.New("error", false))
	w, err := NewWriter(s, newMemSettings(), staticSnapshot("{}"), 100, logger.New("error", false))
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		rec := domain.Record{ID: fmt.Sprintf("id%d", i), Name: "X", Kind: domain.KindURL}
		if err := w.Append(ctx, EntryOf(rec)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	s.Shutdown()

	if w.Changes() != 3 {
		t.Errorf("Changes() = %d, want 3", w.Changes())
	}

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("reading changes file: %v", err)
	}
	entries, err := DecodeEntries(data)
	if err != nil {
		t.Fatalf("DecodeEntries failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	for i, e := range entries {
		if e.ID != fmt.Sprintf("id%d", i) {
			t.Errorf("entry %d id = %q, out of order", i, e.ID)
		}
	}
}

func TestWriterRolloverAtThreshold(t *testing.T) {
	dir := t.TempDir()
	s := sink.New(dir, logger.New("error", false))
	settings := newMemSettings()
	w, err := NewWriter(s, settings, staticSnapshot(`{"roots":{}}`), 100, logger.New("error", false))
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 150; i++ {
		rec := domain.Record{ID: fmt.Sprintf("id%d", i), Name: "X", Kind: domain.KindURL}
		if err := w.Append(ctx, EntryOf(rec)); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}
	s.Shutdown()

	// 100 appends rolled over, 50 accumulated since.
	if w.Changes() != 50 {
		t.Errorf("Changes() = %d, want 50", w.Changes())
	}
	if settings.values[counterKey] != "50" {
		t.Errorf("persisted counter = %q, want 50", settings.values[counterKey])
	}

	names, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	snapshots := 0
	for _, entry := range names {
		if strings.HasPrefix(entry.Name(), SnapshotPrefix) {
			snapshots++
		}
	}
	if snapshots != 1 {
		t.Errorf("found %d snapshot files, want exactly 1", snapshots)
	}

	// The change log was restarted after the rollover and holds only the
	// appends that came after it.
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("reading changes file: %v", err)
	}
	entries, err := DecodeEntries(data)
	if err != nil {
		t.Fatalf("DecodeEntries failed: %v", err)
	}
	if len(entries) != 50 {
		t.Errorf("changes file holds %d entries, want 50", len(entries))
	}
	if entries[0].ID != "id100" {
		t.Errorf("first post-rollover entry = %q, want id100", entries[0].ID)
	}
}

func TestWriterForceSnapshot(t *testing.T) {
	dir := t.TempDir()
	s := sink.New(dir, logger.New("error", false))
	w, err := NewWriter(s, newMemSettings(), staticSnapshot(`{"roots":{}}`), 100, logger.New("error", false))
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	ctx := context.Background()
	if err := w.Append(ctx, EntryOf(domain.Record{ID: "id1", Kind: domain.KindURL})); err != nil {
		t.Fatal(err)
	}
	if err := w.ForceSnapshot(ctx); err != nil {
		t.Fatalf("ForceSnapshot failed: %v", err)
	}
	s.Shutdown()

	if w.Changes() != 0 {
		t.Errorf("Changes() = %d after forced snapshot, want 0", w.Changes())
	}
	if _, err := os.Stat(filepath.Join(dir, SnapshotFileName(time.Now()))); err != nil {
		t.Errorf("snapshot file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, FileName)); !os.IsNotExist(err) {
		t.Error("changes file should be removed by the snapshot")
	}
}

func TestNewWriterRestoresCounter(t *testing.T) {
	dir := t.TempDir()
	s := sink.New(dir, logger.New("error", false))
	defer s.Shutdown()

	settings := newMemSettings()
	settings.values[counterKey] = "42"

	w, err := NewWriter(s, settings, staticSnapshot("{}"), 100, logger.New("error", false))
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	if w.Changes() != 42 {
		t.Errorf("Changes() = %d, want restored 42", w.Changes())
	}
}
