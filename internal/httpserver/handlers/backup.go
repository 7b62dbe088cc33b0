package handlers

import (
	"net/http"
	"strings"

	"github.com/shelfmark/shelfmark/internal/httpserver/deps"
	"github.com/shelfmark/shelfmark/internal/importer"
	"github.com/shelfmark/shelfmark/internal/logger"
	"github.com/shelfmark/shelfmark/internal/snapshot"
)

type selectDirRequest struct {
	Path string `json:"path"`
}

type backupStatusResponse struct {
	Active  bool   `json:"active"`
	Dir     string `json:"dir,omitempty"`
	Changes int    `json:"changes"`
}

type verifyResponse struct {
	OK bool `json:"ok"`
}

// SelectBackupDir points the mirror at a directory, probing it for write
// access before committing. A fresh directory receives a full first
// backup; a populated one restores into an empty store instead.
func SelectBackupDir(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req selectDirRequest
		if !decodeBody(w, r, &req) {
			return
		}

		dir := strings.TrimSpace(req.Path)
		if dir == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "path required"})
			return
		}

		if err := d.Backup.SetDirectory(r.Context(), dir); err != nil {
			writeError(w, err)
			return
		}

		d.Logger.Info("backup directory selected",
			logger.String("dir", dir),
			logger.Bool("active", d.Backup.Active()))
		writeJSON(w, http.StatusOK, backupStatusResponse{
			Active:  d.Backup.Active(),
			Dir:     d.Backup.Dir(),
			Changes: d.Backup.Changes(),
		})
	}
}

func VerifyBackup(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, verifyResponse{OK: d.Backup.VerifyAccess()})
	}
}

func RestoreBackup(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Backup.Restore(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		d.Logger.Info("restore from backup completed")
		w.WriteHeader(http.StatusNoContent)
	}
}

func ForceSnapshot(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Backup.ForceSnapshot(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, backupStatusResponse{
			Active:  d.Backup.Active(),
			Dir:     d.Backup.Dir(),
			Changes: d.Backup.Changes(),
		})
	}
}

// Export serializes the whole store into the browser interchange format.
func Export(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		text, err := snapshot.NewEncoder(d.Store).Encode(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="Bookmarks"`)
		_, _ = w.Write([]byte(text))
	}
}

// Import merges an uploaded interchange file into the store. Conflict
// policy comes from the X-Conflict-Id and X-Conflict-Url headers; without
// them every conflicting element is dropped.
func Import(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resolver := headerResolver(r)
		engine := importer.New(d.Store, d.Logger, resolver)

		if err := engine.ImportFile(r.Context(), r.Body, r.ContentLength, d.LargeImportBytes); err != nil {
			writeError(w, err)
			return
		}

		d.Logger.Info("import completed",
			logger.Int64("size", r.ContentLength))
		w.WriteHeader(http.StatusNoContent)
	}
}

// headerResolver turns the conflict headers into a resolver. Header
// decisions apply to every conflict of their kind, matching a user who
// ticked "apply to all" up front.
func headerResolver(r *http.Request) importer.Resolver {
	idDecision := parseDecision(r.Header.Get("X-Conflict-Id"))
	urlDecision := parseDecision(r.Header.Get("X-Conflict-Url"))

	return func(c importer.Conflict) (importer.Decision, bool) {
		if c.Kind == importer.ConflictID {
			return idDecision, true
		}
		return urlDecision, true
	}
}

func parseDecision(raw string) importer.Decision {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "override":
		return importer.DecisionOverride
	case "keep-both":
		return importer.DecisionKeepBoth
	default:
		return importer.DecisionDrop
	}
}
