// Package bookmarks implements the repository interface the extension UI
// calls: every mutation commits to the store first and is then journaled
// to the backup mirror.
package bookmarks

import (
	"context"
	"fmt"
	"sort"

	"github.com/shelfmark/shelfmark/internal/backup"
	"github.com/shelfmark/shelfmark/internal/domain"
	"github.com/shelfmark/shelfmark/internal/logger"
)

// Store is the full bookmark-store contract the service drives.
type Store interface {
	backup.Store
	FoldersUnder(ctx context.Context, parentID string) ([]domain.Record, error)
	Clear(ctx context.Context) error
}

type Service struct {
	store  Store
	backup *backup.Manager
	logger logger.Logger
}

func NewService(store Store, bm *backup.Manager, log logger.Logger) *Service {
	return &Service{store: store, backup: bm, logger: log}
}

// Get returns a record by id, or nil.
func (s *Service) Get(ctx context.Context, id string) (*domain.Record, error) {
	return s.store.Get(ctx, id)
}

// GetByURL returns one record with the given url, or nil. Duplicates are
// possible; callers needing all of them walk the tree.
func (s *Service) GetByURL(ctx context.Context, url string) (*domain.Record, error) {
	return s.store.GetByURL(ctx, url)
}

// GetByImageID returns one record referencing the image id, or nil.
func (s *Service) GetByImageID(ctx context.Context, imageID string) (*domain.Record, error) {
	return s.store.GetByImageID(ctx, imageID)
}

// Children returns the direct children of a folder sorted by order index.
func (s *Service) Children(ctx context.Context, parentID string) ([]domain.Record, error) {
	children, err := s.store.ChildrenOf(ctx, parentID)
	if err != nil {
		return nil, err
	}
	sortByOrder(children)
	return children, nil
}

// Folders returns the direct folder children sorted by order index.
func (s *Service) Folders(ctx context.Context, parentID string) ([]domain.Record, error) {
	folders, err := s.store.FoldersUnder(ctx, parentID)
	if err != nil {
		return nil, err
	}
	sortByOrder(folders)
	return folders, nil
}

// NextIndex is max(existing siblings' order index) + 1.
func (s *Service) NextIndex(ctx context.Context, parentID string) (int, error) {
	children, err := s.store.ChildrenOf(ctx, parentID)
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

// AddOrReplace commits a caller-built record and journals it. Without
// override a duplicate id fails with domain.ErrConflict.
func (s *Service) AddOrReplace(ctx context.Context, rec domain.Record, override bool) error {
	if err := s.store.AddOrReplace(ctx, rec, override); err != nil {
		return err
	}
	s.backup.Record(ctx, rec)
	return nil
}

// CreateFolder inserts a new folder at the end of parent's children.
func (s *Service) CreateFolder(ctx context.Context, parentID, name string) (*domain.Record, error) {
	index, err := s.NextIndex(ctx, parentID)
	if err != nil {
		return nil, err
	}
	rec := domain.NewFolder(parentID, name, index)
	if err := s.AddOrReplace(ctx, rec, false); err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateBookmark inserts a new url record at the end of parent's children.
// A non-empty inline image gets a fresh image id and is mirrored.
func (s *Service) CreateBookmark(ctx context.Context, parentID, name, url, image string) (*domain.Record, error) {
	index, err := s.NextIndex(ctx, parentID)
	if err != nil {
		return nil, err
	}
	rec := domain.NewBookmark(parentID, name, url, index)
	if image != "" {
		rec.ImageID = domain.NewID()
		rec.Image = image
	}
	if err := s.AddOrReplace(ctx, rec, false); err != nil {
		return nil, err
	}
	if image != "" {
		s.backup.BackupImage(image, rec.ImageID)
	}
	return &rec, nil
}

// Edit updates a record's name, url and icon. Empty name/url keep the old
// value; a changed icon gets a fresh image id and its old mirror file is
// replaced.
func (s *Service) Edit(ctx context.Context, id, name, url, image string) (*domain.Record, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}

	oldImage, oldImageID := rec.Image, rec.ImageID
	if name != "" {
		rec.Name = name
	}
	if url != "" && rec.Kind == domain.KindURL {
		rec.URL = url
	}
	imageChanged := image != "" && image != oldImage
	if imageChanged {
		rec.ImageID = domain.NewID()
		rec.Image = image
	}
	rec.Modified = domain.NowMillis()

	if err := s.AddOrReplace(ctx, *rec, true); err != nil {
		return nil, err
	}
	if imageChanged {
		s.backup.DeleteImage(oldImage, oldImageID)
		s.backup.BackupImage(image, rec.ImageID)
	}
	return rec, nil
}

// Move reparents a record. Moving into the trash remembers the prior
// parent in undoTrash; moving back to that remembered parent clears it.
func (s *Service) Move(ctx context.Context, id, targetID string) (*domain.Record, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}

	index, err := s.NextIndex(ctx, targetID)
	if err != nil {
		return nil, err
	}

	switch targetID {
	case domain.ParentTrash:
		rec.UndoTrash = rec.ParentID
		rec.ParentID = domain.ParentTrash
	case rec.UndoTrash:
		rec.ParentID = rec.UndoTrash
		rec.UndoTrash = ""
	default:
		rec.ParentID = targetID
	}
	rec.OrderIndex = index
	rec.Modified = domain.NowMillis()

	if err := s.AddOrReplace(ctx, *rec, true); err != nil {
		return nil, err
	}
	return rec, nil
}

// Trash moves a record into the trash pseudo-folder.
func (s *Service) Trash(ctx context.Context, id string) (*domain.Record, error) {
	return s.Move(ctx, id, domain.ParentTrash)
}

// RestoreFromTrash moves a trashed record back to its remembered parent.
func (s *Service) RestoreFromTrash(ctx context.Context, id string) (*domain.Record, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if rec.ParentID != domain.ParentTrash || rec.UndoTrash == "" {
		return nil, fmt.Errorf("record %s is not in the trash", id)
	}
	return s.Move(ctx, id, rec.UndoTrash)
}

// Reorder rewrites a folder's sibling order to the given id sequence,
// assigning contiguous indexes. Ids not in the sequence keep their rows
// untouched.
func (s *Service) Reorder(ctx context.Context, parentID string, orderedIDs []string) error {
	children, err := s.store.ChildrenOf(ctx, parentID)
	if err != nil {
		return err
	}
	byID := make(map[string]domain.Record, len(children))
	for _, c := range children {
		byID[c.ID] = c
	}

	for i, id := range orderedIDs {
		rec, ok := byID[id]
		if !ok {
			continue
		}
		rec.OrderIndex = i
		rec.Modified = domain.NowMillis()
		if err := s.AddOrReplace(ctx, rec, true); err != nil {
			return err
		}
	}
	return nil
}

// DeleteRecursive removes a record and everything under it, journaling a
// tombstone per node. The visited set guarantees termination and at most
// one visit per node even if parent links ever form a cycle.
func (s *Service) DeleteRecursive(ctx context.Context, id string) error {
	return s.deleteRecursive(ctx, id, make(map[string]bool))
}

func (s *Service) deleteRecursive(ctx context.Context, id string, visited map[string]bool) error {
	if visited[id] {
		return nil
	}
	visited[id] = true

	children, err := s.store.ChildrenOf(ctx, id)
	if err != nil {
		return err
	}
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if rec != nil {
		s.backup.RecordDeleted(ctx, *rec)
		s.backup.DeleteImage(rec.Image, rec.ImageID)
	}

	for _, child := range children {
		if err := s.deleteRecursive(ctx, child.ID, visited); err != nil {
			return err
		}
	}
	return nil
}

// ClearTrash permanently deletes everything in the trash pseudo-folder.
func (s *Service) ClearTrash(ctx context.Context) error {
	children, err := s.store.ChildrenOf(ctx, domain.ParentTrash)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := s.DeleteRecursive(ctx, child.ID); err != nil {
			return err
		}
	}
	return nil
}

// UpdateImage partially updates only the image field. Unknown ids are
// logged by the store and ignored; image updates race with deletes.
func (s *Service) UpdateImage(ctx context.Context, id, image string) error {
	return s.store.UpdateImage(ctx, id, image)
}

// ClearAll drops every record ("reset database").
func (s *Service) ClearAll(ctx context.Context) error {
	return s.store.Clear(ctx)
}

func sortByOrder(records []domain.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].OrderIndex < records[j].OrderIndex
	})
}
