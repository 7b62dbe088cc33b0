package changelog

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/shelfmark/shelfmark/internal/logger"
	"github.com/shelfmark/shelfmark/internal/sink"
)

// SnapshotPrefix names the dated full-snapshot files. Dates are zero-padded
// ISO so the lexicographically last file is the newest.
const SnapshotPrefix = "Bookmarks - "

// SnapshotFileName returns the dated snapshot file name for t.
func SnapshotFileName(t time.Time) string {
	return SnapshotPrefix + t.Format("2006-01-02")
}

// SettingsStore persists the changes-since-snapshot counter across restarts.
type SettingsStore interface {
	Setting(ctx context.Context, key string) (string, error)
	PutSetting(ctx context.Context, key, value string) error
}

const counterKey = "changes"

// SnapshotFunc renders the full store as snapshot-file text.
type SnapshotFunc func(ctx context.Context) (string, error)

// Writer mirrors every committed mutation to the backup directory and rolls
// the log into a fresh snapshot once the append threshold is reached.
type Writer struct {
	sink      *sink.Sink
	settings  SettingsStore
	snapshot  SnapshotFunc
	logger    logger.Logger
	threshold int

	mu      sync.Mutex
	changes int
	saving  bool
}

// NewWriter builds a writer over the given sink, restoring the persisted
// append counter.
func NewWriter(s *sink.Sink, settings SettingsStore, snapshot SnapshotFunc, threshold int, log logger.Logger) (*Writer, error) {
	w := &Writer{
		sink:      s,
		settings:  settings,
		snapshot:  snapshot,
		logger:    log,
		threshold: threshold,
	}

	stored, err := settings.Setting(context.Background(), counterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to restore change counter: %w", err)
	}
	if stored != "" {
		if n, err := strconv.Atoi(stored); err == nil {
			w.changes = n
		}
	}
	return w, nil
}

// Append journals one committed mutation. The disk write is fire-and-forget
// relative to the caller; only the framed append is ordered through the
// sink. Reaching the threshold triggers a snapshot rollover.
func (w *Writer) Append(ctx context.Context, e Entry) error {
	frame, err := MarshalEntry(e)
	if err != nil {
		return err
	}

	w.sink.Enqueue(sink.WriteText{Name: FileName, Content: string(frame), Append: true})

	w.mu.Lock()
	w.changes++
	count := w.changes
	w.mu.Unlock()

	if err := w.settings.PutSetting(ctx, counterKey, strconv.Itoa(count)); err != nil {
		w.logger.Warn("failed to persist change counter", logger.Error(err))
	}

	if count >= w.threshold {
		w.rollover(ctx)
	}
	return nil
}

// ForceSnapshot writes a snapshot now, regardless of the counter.
func (w *Writer) ForceSnapshot(ctx context.Context) error {
	return w.save(ctx)
}

// Changes returns the current changes-since-snapshot count.
func (w *Writer) Changes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.changes
}

// rollover compacts the change log into a dated snapshot. Rapid successive
// appends can all cross the threshold; the saving flag short-circuits the
// re-entrant attempts.
func (w *Writer) rollover(ctx context.Context) {
	if err := w.save(ctx); err != nil {
		w.logger.Error("snapshot rollover failed", logger.Error(err))
	}
}

func (w *Writer) save(ctx context.Context) error {
	w.mu.Lock()
	if w.saving {
		w.mu.Unlock()
		return nil
	}
	w.saving = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.saving = false
		w.mu.Unlock()
	}()

	text, err := w.snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to build snapshot: %w", err)
	}

	name := SnapshotFileName(time.Now())
	w.sink.Enqueue(sink.WriteText{Name: name, Content: text})

	w.mu.Lock()
	w.changes = 0
	w.mu.Unlock()
	if err := w.settings.PutSetting(ctx, counterKey, "0"); err != nil {
		w.logger.Warn("failed to persist change counter", logger.Error(err))
	}

	w.sink.Enqueue(sink.Remove{Name: FileName})

	w.logger.Info("change log rolled into snapshot", logger.String("file", name))
	return nil
}
