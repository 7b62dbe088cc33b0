package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/shelfmark/shelfmark/internal/httpserver/deps"
	"github.com/shelfmark/shelfmark/internal/httpserver/handlers"
)

func init() { Register(registerBackup) }

func registerBackup(r chi.Router, d deps.Deps) {
	r.Post("/backup/dir", handlers.SelectBackupDir(d))
	r.Post("/backup/verify", handlers.VerifyBackup(d))
	r.Post("/backup/restore", handlers.RestoreBackup(d))
	r.Post("/backup/snapshot", handlers.ForceSnapshot(d))
	r.Get("/export", handlers.Export(d))
	r.Post("/export", handlers.Export(d))
	r.Post("/import", handlers.Import(d))
}
