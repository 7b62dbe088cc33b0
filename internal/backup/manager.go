// Package backup owns the mirrored copy of the store: the change log, the
// dated snapshots, the mirrored image files, and the restore path that
// reconstructs the dataset from a backup directory.
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/shelfmark/shelfmark/internal/changelog"
	"github.com/shelfmark/shelfmark/internal/domain"
	"github.com/shelfmark/shelfmark/internal/importer"
	"github.com/shelfmark/shelfmark/internal/logger"
	"github.com/shelfmark/shelfmark/internal/sink"
	"github.com/shelfmark/shelfmark/internal/snapshot"
)

// Store is everything the backup subsystem needs from the bookmark store.
type Store interface {
	importer.Store
	changelog.SettingsStore
}

// SettingBackupDir persists the selected directory path across restarts.
const SettingBackupDir = "backupFolder"

// Manager ties the sink, the change-log writer and the restore engine to
// one backup directory. Until a directory is selected every journaling
// call is a no-op.
type Manager struct {
	store     Store
	logger    logger.Logger
	threshold int

	mu     sync.Mutex
	dir    string
	sink   *sink.Sink
	writer *changelog.Writer
}

func NewManager(store Store, log logger.Logger, threshold int) *Manager {
	return &Manager{store: store, logger: log, threshold: threshold}
}

// Start attaches the persisted backup directory, if one was chosen in an
// earlier session. A vanished directory is reported but not fatal.
func (m *Manager) Start(ctx context.Context) error {
	dir, err := m.store.Setting(ctx, SettingBackupDir)
	if err != nil {
		return err
	}
	if dir == "" {
		m.logger.Info("no backup directory configured, mirroring disabled")
		return nil
	}
	if err := m.SetDirectory(ctx, dir); err != nil {
		m.logger.Warn("persisted backup directory unusable",
			logger.String("dir", dir), logger.Error(err))
	}
	return nil
}

// SetDirectory switches mirroring to dir. The directory is probed for
// write access first; on success the choice is persisted. A directory that
// holds no snapshot yet receives a first full backup; a directory with
// backups restores into an empty store automatically.
func (m *Manager) SetDirectory(ctx context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPermissionDenied, err)
	}

	newSink := sink.New(dir, m.logger)
	if !newSink.VerifyAccess() {
		newSink.Shutdown()
		return domain.ErrPermissionDenied
	}

	writer, err := changelog.NewWriter(newSink, m.store, m.snapshotText, m.threshold, m.logger)
	if err != nil {
		newSink.Shutdown()
		return err
	}

	m.mu.Lock()
	oldSink := m.sink
	m.dir = dir
	m.sink = newSink
	m.writer = writer
	m.mu.Unlock()

	if oldSink != nil {
		oldSink.Shutdown()
	}

	if err := m.store.PutSetting(ctx, SettingBackupDir, dir); err != nil {
		m.logger.Warn("failed to persist backup directory", logger.Error(err))
	}
	m.logger.Info("backup directory selected", logger.String("dir", dir))

	snapshots, err := listSnapshots(dir)
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		return m.FirstBackup(ctx)
	}

	rootChildren, err := m.store.ChildrenOf(ctx, "")
	if err != nil {
		return err
	}
	if len(rootChildren) == 0 {
		return m.Restore(ctx)
	}
	return nil
}

// Active reports whether a backup directory is attached.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writer != nil
}

// Dir returns the attached directory, or "".
func (m *Manager) Dir() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dir
}

// Record journals one committed mutation. Fire-and-forget: the caller does
// not wait for the disk write.
func (m *Manager) Record(ctx context.Context, rec domain.Record) {
	m.append(ctx, changelog.EntryOf(rec))
}

// RecordDeleted journals a tombstone for a removed record.
func (m *Manager) RecordDeleted(ctx context.Context, rec domain.Record) {
	m.append(ctx, changelog.Tombstone(rec))
}

func (m *Manager) append(ctx context.Context, e changelog.Entry) {
	m.mu.Lock()
	writer := m.writer
	m.mu.Unlock()
	if writer == nil {
		return
	}
	if err := writer.Append(ctx, e); err != nil {
		m.logger.Error("failed to journal change", logger.Error(err))
	}
}

// VerifyAccess probes the attached directory for write permission.
func (m *Manager) VerifyAccess() bool {
	m.mu.Lock()
	s := m.sink
	m.mu.Unlock()
	if s == nil {
		return false
	}
	return s.VerifyAccess()
}

// ForceSnapshot writes a full snapshot now.
func (m *Manager) ForceSnapshot(ctx context.Context) error {
	m.mu.Lock()
	writer := m.writer
	m.mu.Unlock()
	if writer == nil {
		return errors.New("no backup directory selected")
	}
	return writer.ForceSnapshot(ctx)
}

// Changes returns the changes-since-snapshot count, 0 when inactive.
func (m *Manager) Changes() int {
	m.mu.Lock()
	writer := m.writer
	m.mu.Unlock()
	if writer == nil {
		return 0
	}
	return writer.Changes()
}

// FirstBackup writes the initial snapshot plus the image mirror for a
// freshly selected, empty backup directory.
func (m *Manager) FirstBackup(ctx context.Context) error {
	if err := m.ForceSnapshot(ctx); err != nil {
		return err
	}
	if err := m.mirrorImages(ctx, ""); err != nil {
		return err
	}
	return m.mirrorImages(ctx, domain.ParentTrash)
}

// Shutdown drains every queued file operation before returning. Called on
// process exit so no submitted backup write is lost.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	s := m.sink
	m.sink = nil
	m.writer = nil
	m.mu.Unlock()
	if s != nil {
		s.Shutdown()
	}
}

// snapshotText renders the current store as snapshot-file text; plugged
// into the change-log writer as its rollover source.
func (m *Manager) snapshotText(ctx context.Context) (string, error) {
	return snapshot.NewEncoder(m.store).Encode(ctx)
}

// Restore reconstructs the store from the attached directory: newest
// snapshot (falling back once past an interrupted, semantically empty
// file), then the trailing change log, then the mirrored image files.
func (m *Manager) Restore(ctx context.Context) error {
	m.mu.Lock()
	dir := m.dir
	m.mu.Unlock()
	if dir == "" {
		return errors.New("no backup directory selected")
	}

	names, err := listSnapshots(dir)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return errors.New("no snapshot files in backup directory")
	}

	file := m.loadSnapshot(dir, names)
	engine := importer.New(m.store, m.logger, nil)

	if file != nil {
		if err := engine.ImportSnapshot(ctx, file); err != nil {
			return err
		}
	}

	if err := m.replayChanges(ctx, dir, engine); err != nil {
		return err
	}
	return m.applyImageFiles(ctx, dir, engine)
}

// loadSnapshot decodes the newest usable snapshot, trying at most the two
// most recent files.
func (m *Manager) loadSnapshot(dir string, names []string) *snapshot.File {
	for tried, i := 0, len(names)-1; i >= 0 && tried < 2; i, tried = i-1, tried+1 {
		data, err := os.ReadFile(filepath.Join(dir, names[i]))
		if err != nil {
			m.logger.Warn("failed to read snapshot",
				logger.String("file", names[i]), logger.Error(err))
			continue
		}
		f, err := snapshot.Decode(data)
		if err != nil {
			m.logger.Warn("snapshot decode failed, trying older file",
				logger.String("file", names[i]), logger.Error(err))
			continue
		}
		if f.Empty() {
			m.logger.Warn("snapshot is semantically empty, trying older file",
				logger.String("file", names[i]))
			continue
		}
		return f
	}
	return nil
}

// replayChanges applies the change-log frames written after the snapshot.
// A malformed frame stops the replay of that file; entries parsed before
// it stay applied.
func (m *Manager) replayChanges(ctx context.Context, dir string, engine *importer.Engine) error {
	data, err := os.ReadFile(filepath.Join(dir, changelog.FileName))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read change log: %w", err)
	}

	entries, decodeErr := changelog.DecodeEntries(data)
	if decodeErr != nil {
		m.logger.Error("change log replay stopped", logger.Error(decodeErr))
	}
	return engine.Replay(ctx, entries)
}

var imageExts = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".svg":  "image/svg+xml",
}

// applyImageFiles re-attaches mirrored icon files to the records whose
// imageId they were written under.
func (m *Manager) applyImageFiles(ctx context.Context, dir string, engine *importer.Engine) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		mime, ok := imageExts[ext]
		if !ok {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			m.logger.Warn("failed to read image file",
				logger.String("file", entry.Name()), logger.Error(err))
			continue
		}
		imageID := strings.TrimSuffix(entry.Name(), ext)
		if err := engine.ApplyImageFile(ctx, imageID, dataURI(mime, data)); err != nil {
			return err
		}
	}
	return nil
}

// listSnapshots returns the dated snapshot file names sorted ascending;
// zero-padded ISO dates make the last entry the newest.
func listSnapshots(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list backup directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), changelog.SnapshotPrefix) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
