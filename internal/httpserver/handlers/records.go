package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shelfmark/shelfmark/internal/domain"
	"github.com/shelfmark/shelfmark/internal/httpserver/deps"
	"github.com/shelfmark/shelfmark/internal/logger"
)

type createRecordRequest struct {
	ParentID string `json:"parentId"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	URL      string `json:"url"`
	Image    string `json:"image"`
}

type editRecordRequest struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Image string `json:"image"`
}

type moveRecordRequest struct {
	Target string `json:"target"`
}

type reorderRequest struct {
	Order []string `json:"order"`
}

type updateImageRequest struct {
	Image string `json:"image"`
}

// LookupRecord resolves a single record by url or image id. The UI uses
// it to decide whether a page is already bookmarked.
func LookupRecord(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if url := strings.TrimSpace(r.URL.Query().Get("url")); url != "" {
			rec, err := d.Service.GetByURL(ctx, url)
			writeRecord(w, rec, err)
			return
		}

		if imageID := strings.TrimSpace(r.URL.Query().Get("imageId")); imageID != "" {
			rec, err := d.Service.GetByImageID(ctx, imageID)
			writeRecord(w, rec, err)
			return
		}

		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "url or imageId query required"})
	}
}

func CreateRecord(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRecordRequest
		if !decodeBody(w, r, &req) {
			return
		}

		ctx := r.Context()
		parentID := parentParam(req.ParentID)

		var (
			rec *domain.Record
			err error
		)
		if req.Type == domain.KindFolder {
			rec, err = d.Service.CreateFolder(ctx, parentID, req.Name)
		} else {
			rec, err = d.Service.CreateBookmark(ctx, parentID, req.Name, req.URL, req.Image)
		}
		if err != nil {
			writeError(w, err)
			return
		}

		d.Logger.Info("record created",
			logger.String("id", rec.ID),
			logger.String("type", rec.Kind))
		writeJSON(w, http.StatusCreated, rec)
	}
}

func GetRecord(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := d.Service.Get(r.Context(), chi.URLParam(r, "id"))
		writeRecord(w, rec, err)
	}
}

func EditRecord(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req editRecordRequest
		if !decodeBody(w, r, &req) {
			return
		}

		rec, err := d.Service.Edit(r.Context(), chi.URLParam(r, "id"), req.Name, req.URL, req.Image)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// DeleteRecord removes a record and everything below it, journalling a
// tombstone per element so mirrored backups converge.
func DeleteRecord(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := d.Service.DeleteRecursive(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		d.Logger.Info("record deleted", logger.String("id", id))
		w.WriteHeader(http.StatusNoContent)
	}
}

// Children lists a folder's direct children in display order. With
// ?kind=folder only subfolders come back, which feeds the UI's
// destination pickers.
func Children(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		parentID := parentParam(chi.URLParam(r, "id"))

		var (
			records []domain.Record
			err     error
		)
		if r.URL.Query().Get("kind") == domain.KindFolder {
			records, err = d.Service.Folders(ctx, parentID)
		} else {
			records, err = d.Service.Children(ctx, parentID)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		if records == nil {
			records = []domain.Record{}
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func MoveRecord(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req moveRecordRequest
		if !decodeBody(w, r, &req) {
			return
		}

		rec, err := d.Service.Move(r.Context(), chi.URLParam(r, "id"), parentParam(req.Target))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func TrashRecord(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := d.Service.Trash(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func RestoreRecord(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := d.Service.RestoreFromTrash(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func UpdateImage(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateImageRequest
		if !decodeBody(w, r, &req) {
			return
		}

		if err := d.Service.UpdateImage(r.Context(), chi.URLParam(r, "id"), req.Image); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ReorderChildren(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reorderRequest
		if !decodeBody(w, r, &req) {
			return
		}

		if err := d.Service.Reorder(r.Context(), parentParam(chi.URLParam(r, "id")), req.Order); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ClearTrash(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Service.ClearTrash(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		d.Logger.Info("trash cleared")
		w.WriteHeader(http.StatusNoContent)
	}
}

// ClearAll drops the whole dataset. The UI asks twice before calling this.
func ClearAll(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Service.ClearAll(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		d.Logger.Warn("all records cleared")
		w.WriteHeader(http.StatusNoContent)
	}
}
