package changelog

import "github.com/shelfmark/shelfmark/internal/domain"

// FileName is the append-only change-log file in the backup directory.
const FileName = "changes"

// Entry is the flattened projection of a record written to the change log.
// Wire names match the snapshot interchange vocabulary.
type Entry struct {
	ID         string `json:"uuid"`
	ParentID   string `json:"parentId"`
	Name       string `json:"name"`
	Modified   string `json:"modified"`
	Kind       string `json:"type"`
	URL        string `json:"url"`
	OrderIndex int    `json:"index"`
	ImageID    string `json:"imageId"`
	UndoTrash  string `json:"undoTrash"`
}

// EntryOf projects a record into its change-log form.
func EntryOf(rec domain.Record) Entry {
	return Entry{
		ID:         rec.ID,
		ParentID:   rec.ParentID,
		Name:       rec.Name,
		Modified:   rec.Modified,
		Kind:       rec.Kind,
		URL:        rec.URL,
		OrderIndex: rec.OrderIndex,
		ImageID:    rec.ImageID,
		UndoTrash:  rec.UndoTrash,
	}
}

// Tombstone projects a deleted record: same fields, parent set to the
// deleted sentinel so replay removes the row instead of upserting it.
func Tombstone(rec domain.Record) Entry {
	e := EntryOf(rec)
	e.ParentID = domain.ParentDeleted
	return e
}

// IsTombstone reports whether replay should delete rather than upsert.
func (e Entry) IsTombstone() bool {
	return e.ParentID == domain.ParentDeleted
}

// Record rebuilds the stored record form of the entry. The inline image is
// not journaled; folders get the builtin placeholder back.
func (e Entry) Record() domain.Record {
	image := ""
	if e.Kind == domain.KindFolder {
		image = domain.FolderImage
	}
	return domain.Record{
		ID:         e.ID,
		ParentID:   e.ParentID,
		Name:       e.Name,
		Modified:   e.Modified,
		Kind:       e.Kind,
		URL:        e.URL,
		OrderIndex: e.OrderIndex,
		ImageID:    e.ImageID,
		Image:      image,
		UndoTrash:  e.UndoTrash,
	}
}
