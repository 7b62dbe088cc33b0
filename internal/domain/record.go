package domain

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind discriminates folders from bookmarks.
const (
	KindFolder = "folder"
	KindURL    = "url"
)

// Reserved parent ids. The root of the main tree is the empty string.
const (
	// ParentTrash is the pseudo-folder holding trashed records.
	ParentTrash = "trash"

	// ParentDeleted is the tombstone sentinel used in change-log entries.
	// A record never carries it in the store; it only appears on the wire.
	ParentDeleted = "deleted"
)

// FolderImage is the builtin placeholder icon for folders without a
// custom image.
const FolderImage = "./folder.svg"

// RootGUID is the guid emitted for the synthetic root node of an export.
const RootGUID = "00000000000000000000000000000000"

// Record is a bookmark or folder row.
type Record struct {
	// ID is the canonical unique identifier. Immutable once assigned,
	// never reused.
	ID string `json:"uuid"`

	// ParentID references the containing folder, the empty root, or
	// ParentTrash.
	ParentID string `json:"parentId"`

	// Name is the display string.
	Name string `json:"name"`

	// Modified is epoch milliseconds as a decimal string. Set on every
	// mutation.
	Modified string `json:"modified"`

	// Kind is KindFolder or KindURL.
	Kind string `json:"type"`

	// URL is the bookmark target. Empty for folders.
	URL string `json:"url"`

	// OrderIndex orders siblings under the same ParentID. Values need
	// not be contiguous.
	OrderIndex int `json:"index"`

	// ImageID correlates the record to its mirrored icon file. Empty if
	// the record has no custom icon.
	ImageID string `json:"imageId"`

	// Image is the inline icon: a data URI, an external URL, or the
	// builtin folder placeholder.
	Image string `json:"image"`

	// UndoTrash remembers the ParentID a record had before it was moved
	// into the trash, so it can be restored. Empty otherwise.
	UndoTrash string `json:"undoTrash"`
}

// NewID returns a fresh 32-char hex record id.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NowMillis returns the current time in the Modified wire encoding.
func NowMillis() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// NewFolder builds a folder record under parent with the given order index.
func NewFolder(parentID, name string, orderIndex int) Record {
	return Record{
		ID:         NewID(),
		ParentID:   parentID,
		Name:       name,
		Modified:   NowMillis(),
		Kind:       KindFolder,
		OrderIndex: orderIndex,
		Image:      FolderImage,
	}
}

// NewBookmark builds a url record under parent with the given order index.
func NewBookmark(parentID, name, url string, orderIndex int) Record {
	if name == "" {
		name = hostOf(url)
	}
	return Record{
		ID:         NewID(),
		ParentID:   parentID,
		Name:       name,
		Modified:   NowMillis(),
		Kind:       KindURL,
		URL:        url,
		OrderIndex: orderIndex,
	}
}

// hostOf extracts the host part of a URL for use as a fallback name.
func hostOf(url string) string {
	s := url
	if i := strings.Index(s, "//"); i >= 0 {
		s = s[i+2:]
	}
	if i := strings.Index(s, "/"); i >= 0 {
		s = s[:i]
	}
	return s
}

// Tree is a record together with its ordered children.
type Tree struct {
	Record   Record
	Children []*Tree
}

// BuildTree arranges a flat record list into the forest rooted at rootID.
// Siblings are ordered by OrderIndex.
func BuildTree(records []Record, rootID string) []*Tree {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OrderIndex < sorted[j].OrderIndex
	})

	byParent := make(map[string][]Record)
	for _, r := range sorted {
		byParent[r.ParentID] = append(byParent[r.ParentID], r)
	}
	return buildSubtrees(byParent, rootID)
}

func buildSubtrees(byParent map[string][]Record, parentID string) []*Tree {
	children := byParent[parentID]
	if len(children) == 0 {
		return nil
	}
	out := make([]*Tree, 0, len(children))
	for _, c := range children {
		out = append(out, &Tree{
			Record:   c,
			Children: buildSubtrees(byParent, c.ID),
		})
	}
	return out
}
