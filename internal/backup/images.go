package backup

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/shelfmark/shelfmark/internal/domain"
	"github.com/shelfmark/shelfmark/internal/logger"
	"github.com/shelfmark/shelfmark/internal/sink"
)

// ExtForMIME maps an icon's MIME type to the mirrored file extension.
// Unknown types fall back to "bin".
func ExtForMIME(mime string) string {
	switch mime {
	case "image/png", ".png":
		return "png"
	case "image/jpeg", ".jpg", ".jpeg":
		return "jpg"
	case "image/svg+xml", ".svg":
		return "svg"
	default:
		return "bin"
	}
}

// dataURI renders raw image bytes as an inline data URI.
func dataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// parseDataURI splits a data URI into its MIME type and raw bytes.
func parseDataURI(uri string) (mime string, data []byte, ok bool) {
	rest, found := strings.CutPrefix(uri, "data:")
	if !found {
		return "", nil, false
	}
	head, payload, found := strings.Cut(rest, ",")
	if !found {
		return "", nil, false
	}
	mime = strings.TrimSuffix(head, ";base64")
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, false
	}
	return mime, decoded, true
}

// BackupImage mirrors a record's icon into the backup directory under a
// name derived from its image id. Only inline data URIs can be mirrored;
// external references are skipped.
func (m *Manager) BackupImage(image, imageID string) {
	if imageID == "" || image == "" || image == domain.FolderImage {
		return
	}

	m.mu.Lock()
	s := m.sink
	m.mu.Unlock()
	if s == nil {
		return
	}

	mime, data, ok := parseDataURI(image)
	if !ok {
		m.logger.Debug("icon is not an inline image, skipping mirror",
			logger.String("image_id", imageID))
		return
	}
	s.Enqueue(sink.WriteBlob{Name: imageID + "." + ExtForMIME(mime), Data: data})
}

// DeleteImage removes the mirrored icon file for an image id. When the
// extension cannot be derived from the inline image all candidate names
// are removed.
func (m *Manager) DeleteImage(image, imageID string) {
	if imageID == "" {
		return
	}

	m.mu.Lock()
	s := m.sink
	m.mu.Unlock()
	if s == nil {
		return
	}

	if mime, _, ok := parseDataURI(image); ok {
		s.Enqueue(sink.Remove{Name: imageID + "." + ExtForMIME(mime)})
		return
	}
	for _, ext := range []string{"png", "jpg", "svg", "bin"} {
		s.Enqueue(sink.Remove{Name: imageID + "." + ext})
	}
}

// mirrorImages walks a subtree and mirrors every custom icon under it.
func (m *Manager) mirrorImages(ctx context.Context, parentID string) error {
	children, err := m.store.ChildrenOf(ctx, parentID)
	if err != nil {
		return err
	}
	for _, child := range children {
		if child.Kind == domain.KindFolder {
			if err := m.mirrorImages(ctx, child.ID); err != nil {
				return err
			}
		}
		if child.ImageID != "" && child.Image != "" {
			m.BackupImage(child.Image, child.ImageID)
		}
	}
	return nil
}
