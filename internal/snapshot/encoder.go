package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shelfmark/shelfmark/internal/domain"
)

// TreeSource is the slice of the bookmark store the encoder reads.
type TreeSource interface {
	Get(ctx context.Context, id string) (*domain.Record, error)
	ChildrenOf(ctx context.Context, parentID string) ([]domain.Record, error)
}

// Encoder renders the whole store as one interchange document. Exported ids
// are small sequential integers scoped to a single export; the internal ids
// travel in the guid field.
type Encoder struct {
	store TreeSource

	nextID int
	idsMap map[string]int
}

func NewEncoder(store TreeSource) *Encoder {
	return &Encoder{
		store:  store,
		idsMap: make(map[string]int),
	}
}

// Encode builds the snapshot text for the main tree plus the trash
// pseudo-folder.
func (e *Encoder) Encode(ctx context.Context) (string, error) {
	e.nextID = 0
	e.idsMap = make(map[string]int)

	bookmarkBar, err := e.buildRoot(ctx, "")
	if err != nil {
		return "", err
	}
	trash, err := e.buildRoot(ctx, domain.ParentTrash)
	if err != nil {
		return "", err
	}

	now := strconv.FormatInt(ToChromeTime(time.Now().UnixMilli()), 10)

	file := File{
		Roots: Roots{
			BookmarkBar: *bookmarkBar,
			Other: Node{
				DateAdded:    now,
				DateModified: now,
				GUID:         domain.NewID(),
				ID:           strconv.Itoa(e.nextID + 1),
				Name:         "Other",
				Type:         domain.KindFolder,
			},
			Synced: Node{
				DateAdded:    now,
				DateModified: now,
				GUID:         domain.NewID(),
				ID:           strconv.Itoa(e.nextID + 2),
				Name:         "Synced",
				Type:         domain.KindFolder,
			},
			Trash: trash,
		},
		Version: 1,
	}

	data, err := json.Marshal(file)
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return string(data), nil
}

// buildRoot emits the synthetic node for a tree root (the empty main root
// or the trash sentinel).
func (e *Encoder) buildRoot(ctx context.Context, rootID string) (*Node, error) {
	rootRecord, err := e.store.Get(ctx, rootID)
	if err != nil {
		return nil, err
	}

	childNodes, err := e.buildChildren(ctx, rootID)
	if err != nil {
		return nil, err
	}

	e.nextID++
	e.idsMap[rootID] = e.nextID

	node := &Node{
		Children: childNodes,
		GUID:     rootID,
		ID:       strconv.Itoa(e.nextID),
		Type:     domain.KindFolder,
	}
	if node.GUID == "" {
		node.GUID = domain.RootGUID
	}
	if rootRecord != nil {
		node.Name = rootRecord.Name
		modified := e.chromeModified(rootRecord)
		node.DateAdded = modified
		node.DateModified = modified
		node.MetaInfo = &Meta{ImageID: rootRecord.ImageID, Thumbnail: rootRecord.ImageID}
	}
	return node, nil
}

func (e *Encoder) buildChildren(ctx context.Context, parentID string) ([]Node, error) {
	children, err := e.store.ChildrenOf(ctx, parentID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(children, func(i, j int) bool {
		return children[i].OrderIndex < children[j].OrderIndex
	})

	nodes := make([]Node, 0, len(children))
	for _, child := range children {
		node, err := e.buildNode(ctx, child)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *node)
	}
	return nodes, nil
}

// buildNode emits one record. Ids are assigned post-order, so a record's
// undoTrash target resolves only if that folder was already visited.
func (e *Encoder) buildNode(ctx context.Context, rec domain.Record) (*Node, error) {
	var childNodes []Node
	if rec.Kind == domain.KindFolder {
		var err error
		childNodes, err = e.buildChildren(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
	}

	e.nextID++
	e.idsMap[rec.ID] = e.nextID

	undoTrashID := ""
	if seq, ok := e.idsMap[rec.UndoTrash]; ok && rec.UndoTrash != "" {
		undoTrashID = strconv.Itoa(seq)
	}

	modified := e.chromeModified(&rec)
	node := &Node{
		Children:     childNodes,
		DateAdded:    modified,
		DateModified: modified,
		GUID:         rec.ID,
		ID:           strconv.Itoa(e.nextID),
		MetaInfo: &Meta{
			ImageID:         rec.ImageID,
			Thumbnail:       rec.ImageID,
			UndoTrashParent: undoTrashID,
		},
		Name: rec.Name,
		Type: rec.Kind,
		URL:  rec.URL,
	}
	if rec.Kind == domain.KindFolder {
		node.URL = ""
	}
	return node, nil
}

func (e *Encoder) chromeModified(rec *domain.Record) string {
	millis, err := strconv.ParseInt(rec.Modified, 10, 64)
	if err != nil {
		return ""
	}
	return strconv.FormatInt(ToChromeTime(millis), 10)
}
