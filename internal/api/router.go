package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rise-and-shine/filevault/pkg/httpserver"
)

// RegisterRoutes mounts all endpoints on the server.
func RegisterRoutes(srv *httpserver.Server, h *Handler) {
	srv.RegisterRouter(func(r fiber.Router) {
		r.Get("/status", h.getStatus)
		r.Get("/stats", h.getStats)

		r.Post("/users", h.postUsers)
		r.Get("/users/me", h.getMe)
		r.Get("/connect", h.getConnect)
		r.Get("/disconnect", h.getDisconnect)

		r.Post("/files", h.postFiles)
		r.Get("/files", h.listFiles)
		r.Get("/files/:id", h.getFile)
		r.Put("/files/:id/publish", h.publishFile)
		r.Put("/files/:id/unpublish", h.unpublishFile)
		r.Get("/files/:id/data", h.getFileData)
	})
}
