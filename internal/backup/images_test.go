package backup

import (
	"bytes"
	"testing"
)

func TestExtForMIME(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"image/png", "png"},
		{"image/jpeg", "jpg"},
		{"image/svg+xml", "svg"},
		{"application/octet-stream", "bin"},
		{"", "bin"},
	}
	for _, tt := range tests {
		if got := ExtForMIME(tt.mime); got != tt.want {
			t.Errorf("ExtForMIME(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}

func TestParseDataURI(t *testing.T) {
	mime, data, ok := parseDataURI("data:image/png;base64,aWNvbg==")
	if !ok {
		t.Fatal("parseDataURI rejected a valid uri")
	}
	if mime != "image/png" {
		t.Errorf("mime = %q", mime)
	}
	if !bytes.Equal(data, []byte("icon")) {
		t.Errorf("data = %q", data)
	}

	for _, bad := range []string{
		"https://example.com/icon.png",
		"data:no-comma",
		"data:image/png;base64,%%%not-base64%%%",
		"",
	} {
		if _, _, ok := parseDataURI(bad); ok {
			t.Errorf("parseDataURI(%q) = ok, want rejection", bad)
		}
	}
}

func TestDataURIRoundTrip(t *testing.T) {
	uri := dataURI("image/svg+xml", []byte("<svg/>"))
	mime, data, ok := parseDataURI(uri)
	if !ok || mime != "image/svg+xml" || string(data) != "<svg/>" {
		t.Errorf("round trip failed: %q", uri)
	}
}
