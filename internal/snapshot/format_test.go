package snapshot

import (
	"testing"

	"github.com/shelfmark/shelfmark/internal/domain"
)

const sampleSnapshot = `{
  "checksum": "abc123",
  "roots": {
    "bookmark_bar": {
      "children": [
        {
          "children": [
            {
              "date_added": "13310000000000000",
              "guid": "aaaa1111",
              "id": "2",
              "meta_info": {"imageID": "img1"},
              "name": "Example",
              "type": "url",
              "url": "https://example.com"
            }
          ],
          "date_added": "13310000000000000",
          "date_modified": "13310000100000000",
          "guid": "ffff0000",
          "id": "3",
          "name": "Work",
          "type": "folder"
        }
      ],
      "guid": "00000000000000000000000000000000",
      "id": "1",
      "type": "folder"
    },
    "other": {"children": [], "guid": "x", "id": "4", "type": "folder"},
    "synced": {"children": [], "guid": "y", "id": "5", "type": "folder"},
    "trash": {
      "children": [
        {
          "date_added": "13310000000000000",
          "guid": "bbbb2222",
          "id": "6",
          "meta_info": {"undoTrashParentId": "3"},
          "name": "Binned",
          "type": "url",
          "url": "https://old.example.com"
        }
      ],
      "guid": "trash",
      "id": "7",
      "type": "folder"
    }
  },
  "version": 1
}`

func TestDecode(t *testing.T) {
	f, err := Decode([]byte(sampleSnapshot))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if f.Version != 1 {
		t.Errorf("Version = %d, want 1", f.Version)
	}
	if len(f.Roots.BookmarkBar.Children) != 1 {
		t.Fatalf("bookmark_bar has %d children, want 1", len(f.Roots.BookmarkBar.Children))
	}
	if f.Roots.Trash == nil || len(f.Roots.Trash.Children) != 1 {
		t.Fatal("trash root missing")
	}
	if f.Empty() {
		t.Error("Empty() = true for a populated snapshot")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("not json at all")); err == nil {
		t.Error("Decode accepted garbage input")
	}
}

func TestEmpty(t *testing.T) {
	f, err := Decode([]byte(`{"roots":{"bookmark_bar":{"children":[]},"other":{},"synced":{}},"version":1}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !f.Empty() {
		t.Error("Empty() = false for a snapshot with no bookmark bar children")
	}
}

func TestRootGroups(t *testing.T) {
	f, err := Decode([]byte(sampleSnapshot))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	groups := f.RootGroups()
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2 (empty roots skipped)", len(groups))
	}
	if groups[0].ParentID != "" {
		t.Errorf("first group parent = %q, want main root", groups[0].ParentID)
	}
	if groups[1].ParentID != domain.ParentTrash {
		t.Errorf("second group parent = %q, want trash", groups[1].ParentID)
	}
}

func TestRootGroupsCustomRoot(t *testing.T) {
	f := &File{
		Roots: Roots{
			CustomRoot: &CustomRoot{
				SpeedDial: &Node{Children: []Node{{GUID: "sd1", Type: "url"}}},
				Trash:     &Node{Children: []Node{{GUID: "tr1", Type: "url"}}},
			},
		},
	}

	groups := f.RootGroups()
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if groups[0].Nodes[0].GUID != "sd1" || groups[0].ParentID != "" {
		t.Error("speed dial should import under the main root")
	}
	if groups[1].Nodes[0].GUID != "tr1" || groups[1].ParentID != domain.ParentTrash {
		t.Error("custom trash should import under the trash sentinel")
	}
}

func TestNodeRecord(t *testing.T) {
	f, err := Decode([]byte(sampleSnapshot))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	folder := f.Roots.BookmarkBar.Children[0]
	rec := folder.Record("", 0)
	if rec.Kind != domain.KindFolder {
		t.Errorf("Kind = %q, want folder", rec.Kind)
	}
	if rec.Image != domain.FolderImage {
		t.Errorf("folder Image = %q, want placeholder", rec.Image)
	}
	// date_modified wins over date_added when set
	if rec.Modified != "1665526500000" {
		t.Errorf("Modified = %q, want 1665526500000", rec.Modified)
	}

	leaf := folder.Children[0]
	rec = leaf.Record(folder.GUID, 4)
	if rec.ParentID != "ffff0000" || rec.OrderIndex != 4 {
		t.Errorf("unexpected leaf placement: %+v", rec)
	}
	if rec.ImageID != "img1" {
		t.Errorf("ImageID = %q, want img1", rec.ImageID)
	}
	// no date_modified: falls back to date_added
	if rec.Modified != "1665526400000" {
		t.Errorf("Modified = %q, want 1665526400000", rec.Modified)
	}

	binned := f.Roots.Trash.Children[0]
	rec = binned.Record(domain.ParentTrash, 0)
	if rec.UndoTrash != "3" {
		t.Errorf("UndoTrash = %q, want 3", rec.UndoTrash)
	}
}

func TestImageIDThumbnailFallback(t *testing.T) {
	tests := []struct {
		name string
		meta *Meta
		want string
	}{
		{"no meta", nil, ""},
		{"explicit id wins", &Meta{ImageID: "abc", Thumbnail: "/thumbs/def.png"}, "abc"},
		{"thumbnail path", &Meta{Thumbnail: "/chrome/thumb/xyz123.png"}, "xyz123"},
		{"thumbnail without extension", &Meta{Thumbnail: "/thumb/xyz123"}, "xyz123"},
		{"thumbnail without path", &Meta{Thumbnail: "xyz123.jpg"}, "xyz123"},
		{"empty meta", &Meta{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &Node{MetaInfo: tt.meta}
			if got := n.imageID(); got != tt.want {
				t.Errorf("imageID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChromeTimeRoundTrip(t *testing.T) {
	millis := int64(1_700_000_000_000)
	ticks := ToChromeTime(millis)
	if ticks != (millis+epochOffsetMillis)*1_000 {
		t.Errorf("ToChromeTime(%d) = %d", millis, ticks)
	}
	if got := FromChromeTime(ticks); got != millis {
		t.Errorf("FromChromeTime(ToChromeTime(%d)) = %d", millis, got)
	}
}
