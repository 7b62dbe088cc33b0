package scheduler

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shelfmark/shelfmark/internal/backup"
	"github.com/shelfmark/shelfmark/internal/changelog"
	"github.com/shelfmark/shelfmark/internal/domain"
	"github.com/shelfmark/shelfmark/internal/logger"
)

// memStore is a minimal in-memory backup.Store.
type memStore struct {
	records  map[string]domain.Record
	settings map[string]string
}

func newMemStore() *memStore {
	return &memStore{records: map[string]domain.Record{}, settings: map[string]string{}}
}

func (m *memStore) AddOrReplace(_ context.Context, rec domain.Record, override bool) error {
	if _, ok := m.records[rec.ID]; ok && !override {
		return fmt.Errorf("%w: %s", domain.ErrConflict, rec.ID)
	}
	m.records[rec.ID] = rec
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (*domain.Record, error) {
	if rec, ok := m.records[id]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (m *memStore) GetByURL(context.Context, string) (*domain.Record, error) { return nil, nil }

func (m *memStore) GetByImageID(context.Context, string) (*domain.Record, error) {
	return nil, nil
}

func (m *memStore) ChildrenOf(_ context.Context, parentID string) ([]domain.Record, error) {
	var out []domain.Record
	for _, rec := range m.records {
		if rec.ParentID == parentID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	delete(m.records, id)
	return nil
}

func (m *memStore) UpdateImage(context.Context, string, string) error { return nil }

func (m *memStore) Setting(_ context.Context, key string) (string, error) {
	return m.settings[key], nil
}

func (m *memStore) PutSetting(_ context.Context, key, value string) error {
	m.settings[key] = value
	return nil
}

func countSnapshots(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), changelog.SnapshotPrefix) {
			n++
		}
	}
	return n
}

func TestMaintainSkipsWithoutDirectory(t *testing.T) {
	log := logger.New("error", false)
	bm := backup.NewManager(newMemStore(), log, 100)

	m := NewBackupMaintainer(bm, log, time.Hour, time.Hour)
	// Must not panic or snapshot; nothing is attached.
	m.Maintain(context.Background())
}

func TestMaintainSnapshotsWhenStale(t *testing.T) {
	log := logger.New("error", false)
	store := newMemStore()
	bm := backup.NewManager(store, log, 100)
	ctx := context.Background()

	dir := t.TempDir()
	if err := bm.SetDirectory(ctx, dir); err != nil {
		t.Fatalf("SetDirectory failed: %v", err)
	}
	defer bm.Shutdown()

	// One pending change since the first backup.
	bm.Record(ctx, domain.Record{ID: "id1", Kind: domain.KindURL})
	if bm.Changes() != 1 {
		t.Fatalf("Changes() = %d, want 1", bm.Changes())
	}

	m := NewBackupMaintainer(bm, log, time.Hour, time.Nanosecond)
	m.lastSnapshot = time.Now().Add(-time.Hour) // stale
	m.Maintain(ctx)

	if bm.Changes() != 0 {
		t.Errorf("Changes() = %d after maintenance, want 0", bm.Changes())
	}
	if !bm.VerifyAccess() {
		t.Fatal("VerifyAccess failed")
	}
	if countSnapshots(t, dir) != 1 {
		t.Errorf("found %d snapshot files, want 1 (same-day name overwritten)", countSnapshots(t, dir))
	}
}

func TestMaintainSkipsWhenNothingChanged(t *testing.T) {
	log := logger.New("error", false)
	store := newMemStore()
	bm := backup.NewManager(store, log, 100)
	ctx := context.Background()

	dir := t.TempDir()
	if err := bm.SetDirectory(ctx, dir); err != nil {
		t.Fatalf("SetDirectory failed: %v", err)
	}
	defer bm.Shutdown()

	m := NewBackupMaintainer(bm, log, time.Hour, time.Nanosecond)
	before := m.lastSnapshot
	m.lastSnapshot = time.Now().Add(-time.Hour)

	// Zero pending changes: the stale age alone must not force a snapshot.
	m.Maintain(ctx)
	if m.lastSnapshot.After(before) {
		t.Error("snapshot was forced with no pending changes")
	}
}

func TestStartAndStop(t *testing.T) {
	log := logger.New("error", false)
	bm := backup.NewManager(newMemStore(), log, 100)

	m := NewBackupMaintainer(bm, log, 10*time.Millisecond, 0)
	if m.snapshotAge != DefaultSnapshotAge {
		t.Errorf("zero snapshotAge should default, got %v", m.snapshotAge)
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	m.Stop()
}
