// Package snapshot converts the flat record set to and from the portable
// nested-JSON "Bookmarks" interchange format used by Chromium-family
// browser exports.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/shelfmark/shelfmark/internal/domain"
)

// ErrDecode reports an interchange file that failed to parse.
var ErrDecode = errors.New("snapshot decode failed")

// File is the top-level snapshot document.
type File struct {
	Checksum string `json:"checksum"`
	Roots    Roots  `json:"roots"`
	Version  int    `json:"version"`
}

// Roots holds the named subtrees of an export. Trash and the custom root
// container are optional; some browsers omit them entirely.
type Roots struct {
	BookmarkBar Node        `json:"bookmark_bar"`
	CustomRoot  *CustomRoot `json:"custom_root,omitempty"`
	Other       Node        `json:"other"`
	Synced      Node        `json:"synced"`
	Trash       *Node       `json:"trash,omitempty"`
}

// CustomRoot wraps the extra named subtrees Opera-family exports carry.
type CustomRoot struct {
	Pinboard         *Node `json:"pinboard,omitempty"`
	SpeedDial        *Node `json:"speedDial,omitempty"`
	Trash            *Node `json:"trash,omitempty"`
	Unsorted         *Node `json:"unsorted,omitempty"`
	UnsyncedPinboard *Node `json:"unsyncedPinboard,omitempty"`
	UserRoot         *Node `json:"userRoot,omitempty"`
}

// Node is one folder or bookmark in the nested tree.
type Node struct {
	Children     []Node `json:"children"`
	DateAdded    string `json:"date_added,omitempty"`
	DateLastUsed string `json:"date_last_used,omitempty"`
	DateModified string `json:"date_modified,omitempty"`
	GUID         string `json:"guid"`
	ID           string `json:"id"`
	MetaInfo     *Meta  `json:"meta_info,omitempty"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	URL          string `json:"url,omitempty"`
}

// Meta carries the manager-specific sidecar fields. Field casing matches
// what Vivaldi writes.
type Meta struct {
	ImageID         string `json:"imageID,omitempty"`
	Thumbnail       string `json:"Thumbnail,omitempty"`
	UndoTrashParent string `json:"undoTrashParentId,omitempty"`
}

// Decode parses an interchange file, tolerating unknown fields.
func Decode(data []byte) (*File, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return &f, nil
}

// Empty reports a structurally valid but semantically empty snapshot: an
// interrupted write can leave a parseable file whose bookmark bar holds
// nothing. Restore must fall back to an older file in that case.
func (f *File) Empty() bool {
	return len(f.Roots.BookmarkBar.Children) == 0
}

// RootGroup maps one named subtree's children onto a store parent id.
type RootGroup struct {
	ParentID string
	Nodes    []Node
}

// RootGroups lists every known subtree that contributes elements, in import
// order. Main roots land under the empty root, trash roots under the trash
// sentinel. Child-less roots contribute nothing and are skipped.
func (f *File) RootGroups() []RootGroup {
	var groups []RootGroup

	appendRoot := func(parentID string, n *Node) {
		if n == nil || len(n.Children) == 0 {
			return
		}
		groups = append(groups, RootGroup{ParentID: parentID, Nodes: n.Children})
	}

	appendRoot("", &f.Roots.BookmarkBar)
	appendRoot("", &f.Roots.Other)
	appendRoot("", &f.Roots.Synced)
	if cr := f.Roots.CustomRoot; cr != nil {
		appendRoot("", cr.UserRoot)
		appendRoot("", cr.SpeedDial)
		appendRoot("", cr.Unsorted)
		appendRoot("", cr.UnsyncedPinboard)
	}

	appendRoot(domain.ParentTrash, f.Roots.Trash)
	if cr := f.Roots.CustomRoot; cr != nil {
		appendRoot(domain.ParentTrash, cr.Trash)
	}
	return groups
}

// Record flattens one node into a store record under parentID. The order
// index is the node's position within its parent's children array.
func (n *Node) Record(parentID string, orderIndex int) domain.Record {
	kind := domain.KindURL
	image := ""
	if n.Type == domain.KindFolder {
		kind = domain.KindFolder
		image = domain.FolderImage
	}

	modified := n.DateModified
	if modified == "" || modified == "0" {
		modified = n.DateAdded
	}
	millis := int64(0)
	if t, err := strconv.ParseInt(modified, 10, 64); err == nil {
		millis = FromChromeTime(t)
	}

	return domain.Record{
		ID:         n.GUID,
		ParentID:   parentID,
		Name:       n.Name,
		Modified:   strconv.FormatInt(millis, 10),
		Kind:       kind,
		URL:        n.URL,
		OrderIndex: orderIndex,
		ImageID:    n.imageID(),
		Image:      image,
		UndoTrash:  n.undoTrashParent(),
	}
}

// imageID prefers the explicit meta field and falls back to the last path
// segment of the thumbnail reference, stripped of its extension.
func (n *Node) imageID() string {
	if n.MetaInfo == nil {
		return ""
	}
	if n.MetaInfo.ImageID != "" {
		return n.MetaInfo.ImageID
	}
	thumb := n.MetaInfo.Thumbnail
	if thumb == "" {
		return ""
	}
	for i := len(thumb) - 1; i >= 0; i-- {
		if thumb[i] == '/' {
			thumb = thumb[i+1:]
			break
		}
	}
	for i := len(thumb) - 1; i >= 0; i-- {
		if thumb[i] == '.' {
			return thumb[:i]
		}
	}
	return thumb
}

func (n *Node) undoTrashParent() string {
	if n.MetaInfo == nil {
		return ""
	}
	return n.MetaInfo.UndoTrashParent
}
