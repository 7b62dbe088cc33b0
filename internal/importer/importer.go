// Package importer merges external interchange files and change-log
// replays into the bookmark store without silently clobbering existing
// data.
package importer

import (
	"context"
	"fmt"
	"io"

	"github.com/shelfmark/shelfmark/internal/changelog"
	"github.com/shelfmark/shelfmark/internal/domain"
	"github.com/shelfmark/shelfmark/internal/logger"
	"github.com/shelfmark/shelfmark/internal/snapshot"
)

// Decision is the caller's verdict on one import conflict.
type Decision int

const (
	// DecisionDrop discards the incoming element. Also the implicit
	// outcome when the caller dismisses the conflict.
	DecisionDrop Decision = iota
	// DecisionOverride replaces the existing record's fields, keeping
	// its id. Only offered for id conflicts.
	DecisionOverride
	// DecisionKeepBoth inserts the incoming element under a freshly
	// generated id alongside the existing record.
	DecisionKeepBoth
)

// ConflictKind discriminates the two dedup strategies.
type ConflictKind int

const (
	// ConflictID means the incoming element's id already exists.
	ConflictID ConflictKind = iota
	// ConflictURL means a different record already has the same url.
	ConflictURL
)

// Conflict describes one collision presented to the resolver.
type Conflict struct {
	Kind     ConflictKind
	Existing domain.Record
	Incoming domain.Record
}

// Resolver decides a conflict. Returning applyAll remembers the decision
// for every later conflict of the same kind within this import run.
type Resolver func(Conflict) (d Decision, applyAll bool)

// Store is the slice of the bookmark store the engine mutates.
type Store interface {
	AddOrReplace(ctx context.Context, rec domain.Record, override bool) error
	Get(ctx context.Context, id string) (*domain.Record, error)
	GetByURL(ctx context.Context, url string) (*domain.Record, error)
	GetByImageID(ctx context.Context, imageID string) (*domain.Record, error)
	ChildrenOf(ctx context.Context, parentID string) ([]domain.Record, error)
	Delete(ctx context.Context, id string) error
	UpdateImage(ctx context.Context, id, image string) error
}

// Engine runs one import. Engines are single-use: remembered decisions do
// not outlive the run.
type Engine struct {
	store   Store
	logger  logger.Logger
	resolve Resolver

	idDecision  *Decision
	urlDecision *Decision
}

// New builds an import engine. A nil resolver drops every conflicting
// element.
func New(store Store, log logger.Logger, resolve Resolver) *Engine {
	if resolve == nil {
		resolve = func(Conflict) (Decision, bool) { return DecisionDrop, false }
	}
	return &Engine{store: store, logger: log, resolve: resolve}
}

// ImportSnapshot merges every contributing root of the file into the store.
func (e *Engine) ImportSnapshot(ctx context.Context, f *snapshot.File) error {
	for _, group := range f.RootGroups() {
		if err := e.importNodes(ctx, group.Nodes, group.ParentID); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) importNodes(ctx context.Context, nodes []snapshot.Node, parentID string) error {
	nextIndex, err := e.nextIndex(ctx, parentID)
	if err != nil {
		return err
	}

	for i := range nodes {
		node := &nodes[i]
		taken, err := e.importOne(ctx, node.Record(parentID, nextIndex))
		if err != nil {
			return err
		}
		if taken {
			nextIndex++
		}

		// Children always attach under the element's own id, whatever
		// was decided about the element itself.
		if len(node.Children) > 0 {
			if err := e.importNodes(ctx, node.Children, node.GUID); err != nil {
				return err
			}
		}
	}
	return nil
}

// importOne applies the per-element state machine: dedup by id, then by
// url, then insert fresh. Reports whether an order index was consumed.
func (e *Engine) importOne(ctx context.Context, rec domain.Record) (bool, error) {
	existing, err := e.store.Get(ctx, rec.ID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return e.resolveIDConflict(ctx, *existing, rec)
	}

	if rec.Kind == domain.KindURL && rec.URL != "" {
		byURL, err := e.store.GetByURL(ctx, rec.URL)
		if err != nil {
			return false, err
		}
		if byURL != nil {
			return e.resolveURLConflict(ctx, *byURL, rec)
		}
	}

	if err := e.store.AddOrReplace(ctx, rec, false); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) resolveIDConflict(ctx context.Context, existing, incoming domain.Record) (bool, error) {
	decision := e.decide(ConflictID, existing, incoming)
	switch decision {
	case DecisionOverride:
		// Same id, fields replaced in place.
		if err := e.store.AddOrReplace(ctx, incoming, true); err != nil {
			return false, err
		}
		return true, nil
	case DecisionKeepBoth:
		incoming.ID = domain.NewID()
		if err := e.store.AddOrReplace(ctx, incoming, false); err != nil {
			return false, err
		}
		return true, nil
	default:
		e.logger.Debug("dropped conflicting element",
			logger.String("record_id", incoming.ID))
		return false, nil
	}
}

func (e *Engine) resolveURLConflict(ctx context.Context, existing, incoming domain.Record) (bool, error) {
	decision := e.decide(ConflictURL, existing, incoming)
	// The ids legitimately differ, so override is never offered here.
	if decision != DecisionKeepBoth {
		e.logger.Debug("dropped element with duplicate url",
			logger.String("url", incoming.URL))
		return false, nil
	}
	if err := e.store.AddOrReplace(ctx, incoming, false); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) decide(kind ConflictKind, existing, incoming domain.Record) Decision {
	remembered := e.idDecision
	if kind == ConflictURL {
		remembered = e.urlDecision
	}
	if remembered != nil {
		return *remembered
	}

	decision, applyAll := e.resolve(Conflict{Kind: kind, Existing: existing, Incoming: incoming})
	if kind == ConflictURL && decision == DecisionOverride {
		decision = DecisionDrop
	}
	if applyAll {
		d := decision
		if kind == ConflictURL {
			e.urlDecision = &d
		} else {
			e.idDecision = &d
		}
	}
	return decision
}

// nextIndex is max(existing siblings' order index) + 1.
func (e *Engine) nextIndex(ctx context.Context, parentID string) (int, error) {
	children, err := e.store.ChildrenOf(ctx, parentID)
	if err != nil {
		return 0, err
	}
	max := 0
	for _, c := range children {
		if c.OrderIndex > max {
			max = c.OrderIndex
		}
	}
	return max + 1, nil
}

// Replay applies change-log entries in order. Tombstones delete by id;
// everything else upserts unconditionally. No conflict prompting happens
// during replay.
func (e *Engine) Replay(ctx context.Context, entries []changelog.Entry) error {
	for _, entry := range entries {
		if entry.IsTombstone() {
			if err := e.store.Delete(ctx, entry.ID); err != nil {
				return err
			}
			continue
		}
		if err := e.store.AddOrReplace(ctx, entry.Record(), true); err != nil {
			return err
		}
	}
	return nil
}

// ImportFile imports interchange data of a known size. Inputs above
// largeBytes never materialize the document: only the streamed image pairs
// are applied.
func (e *Engine) ImportFile(ctx context.Context, r io.Reader, size, largeBytes int64) error {
	if largeBytes > 0 && size > largeBytes {
		e.logger.Info("large input, taking streaming image path",
			logger.Int64("size", size))
		return e.ImportImagePairs(ctx, r)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read import data: %w", err)
	}
	f, err := snapshot.Decode(data)
	if err != nil {
		return err
	}
	return e.ImportSnapshot(ctx, f)
}

// ImportImagePairs streams {imageId: base64} pairs out of r and applies
// each as an image update on the matching record as soon as it parses.
func (e *Engine) ImportImagePairs(ctx context.Context, r io.Reader) error {
	return ScanImagePairs(r, func(imageID, image string) error {
		return e.applyImage(ctx, imageID, "data:image/jpeg;base64,"+image)
	})
}

// ApplyImageFile applies one already-encoded image (a data URI) to the
// record referencing imageID. Unknown image ids are silently skipped.
func (e *Engine) ApplyImageFile(ctx context.Context, imageID, dataURI string) error {
	return e.applyImage(ctx, imageID, dataURI)
}

func (e *Engine) applyImage(ctx context.Context, imageID, image string) error {
	rec, err := e.store.GetByImageID(ctx, imageID)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	return e.store.UpdateImage(ctx, rec.ID, image)
}
