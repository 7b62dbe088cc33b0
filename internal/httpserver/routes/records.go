package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/shelfmark/shelfmark/internal/httpserver/deps"
	"github.com/shelfmark/shelfmark/internal/httpserver/handlers"
)

func init() { Register(registerRecords) }

func registerRecords(r chi.Router, d deps.Deps) {
	r.Get("/records", handlers.LookupRecord(d))
	r.Post("/records", handlers.CreateRecord(d))
	r.Get("/records/{id}", handlers.GetRecord(d))
	r.Put("/records/{id}", handlers.EditRecord(d))
	r.Delete("/records/{id}", handlers.DeleteRecord(d))
	r.Get("/records/{id}/children", handlers.Children(d))
	r.Post("/records/{id}/move", handlers.MoveRecord(d))
	r.Post("/records/{id}/trash", handlers.TrashRecord(d))
	r.Post("/records/{id}/restore", handlers.RestoreRecord(d))
	r.Patch("/records/{id}/image", handlers.UpdateImage(d))
	r.Post("/records/{id}/reorder", handlers.ReorderChildren(d))
	r.Delete("/trash", handlers.ClearTrash(d))
	r.Delete("/records", handlers.ClearAll(d))
}
