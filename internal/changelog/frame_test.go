package changelog

import (
	"bytes"
	"errors"
	"testing"

	"github.com/shelfmark/shelfmark/internal/domain"
)

func TestEncodeFrame(t *testing.T) {
	got := EncodeFrame([]byte(`{"a":1}`))
	want := []byte(`[7]{"a":1}`)
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeFrame() = %q, want %q", got, want)
	}
}

func TestParseFramesRoundTrip(t *testing.T) {
	payloads := [][]byte{
		[]byte(`{"name":"plain"}`),
		[]byte(`{"name":"with [brackets] inside"}`),
		[]byte(``),
		[]byte(`]][[`),
	}

	var stream []byte
	for _, p := range payloads {
		stream = append(stream, EncodeFrame(p)...)
	}

	got, err := ParseFrames(stream)
	if err != nil {
		t.Fatalf("ParseFrames failed: %v", err)
	}
	if len(got) != len(payloads) {
		t.Fatalf("got %d payloads, want %d", len(got), len(payloads))
	}
	for i := range payloads {
		if !bytes.Equal(got[i], payloads[i]) {
			t.Errorf("payload %d = %q, want %q", i, got[i], payloads[i])
		}
	}
}

func TestParseFramesMalformed(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		parsed int
	}{
		{"garbage prefix", []byte(`x[3]abc`), 0},
		{"unterminated header", []byte(`[3]abc[12`), 1},
		{"truncated payload", []byte(`[3]abc[10]short`), 1},
		{"bad length", []byte(`[3]abc[xx]y`), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFrames(tt.data)
			if !errors.Is(err, ErrMalformedFrame) {
				t.Fatalf("err = %v, want ErrMalformedFrame", err)
			}
			// Entries before the damage must survive.
			if len(got) != tt.parsed {
				t.Errorf("got %d payloads before error, want %d", len(got), tt.parsed)
			}
		})
	}
}

func TestDecodeEntriesKeepsOrder(t *testing.T) {
	a := EntryOf(domain.Record{ID: "a", Name: "first", Kind: domain.KindURL})
	b := Tombstone(domain.Record{ID: "b", Name: "second", Kind: domain.KindURL})

	var stream []byte
	for _, e := range []Entry{a, b} {
		frame, err := MarshalEntry(e)
		if err != nil {
			t.Fatalf("MarshalEntry failed: %v", err)
		}
		stream = append(stream, frame...)
	}

	entries, err := DecodeEntries(stream)
	if err != nil {
		t.Fatalf("DecodeEntries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].ID != "a" || entries[1].ID != "b" {
		t.Errorf("entries out of order: %s, %s", entries[0].ID, entries[1].ID)
	}
	if entries[0].IsTombstone() {
		t.Error("live entry misread as tombstone")
	}
	if !entries[1].IsTombstone() {
		t.Error("tombstone not detected")
	}
}

func TestDecodeEntriesReturnsPrefixOnTruncation(t *testing.T) {
	frame, err := MarshalEntry(EntryOf(domain.Record{ID: "a", Name: "kept", Kind: domain.KindURL}))
	if err != nil {
		t.Fatalf("MarshalEntry failed: %v", err)
	}
	stream := append(frame, "[999]cut off"...)

	entries, err := DecodeEntries(stream)
	if !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("err = %v, want ErrMalformedFrame", err)
	}
	if len(entries) != 1 || entries[0].ID != "a" {
		t.Fatalf("entries before the damage must survive, got %+v", entries)
	}
}

func TestEntryRecordRestoresFolderImage(t *testing.T) {
	folder := domain.Record{ID: "f", Kind: domain.KindFolder, Image: domain.FolderImage}
	rec := EntryOf(folder).Record()
	if rec.Image != domain.FolderImage {
		t.Errorf("folder image = %q, want %q", rec.Image, domain.FolderImage)
	}

	url := domain.Record{ID: "u", Kind: domain.KindURL, Image: "data:image/png;base64,xyz"}
	rec = EntryOf(url).Record()
	if rec.Image != "" {
		t.Errorf("inline image should not survive the journal, got %q", rec.Image)
	}
}
