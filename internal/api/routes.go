package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the analysis endpoints on r. The protect middlewares
// wrap the endpoints that start, observe or control tasks and the image
// analysis call; image, status and health stay public.
func (h *AnalysisHandler) RegisterRoutes(r chi.Router, protect ...func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(protect...)
		r.Post("/analyze/stream", h.AnalyzeStream)
		r.Post("/analyze", h.Analyze)
		r.Post("/cancel/{taskID}", h.CancelTask)
		r.Get("/task/{taskID}", h.GetTask)
		r.Post("/analyze-image/{imageID}", h.AnalyzeImage)
	})

	r.Get("/image/{imageID}", h.GetImage)
	r.Get("/status", h.Status)
	r.Get("/health", h.Health)
}
