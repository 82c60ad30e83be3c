package web

import (
	"io/fs"
	"net/http"
)

// RegisterRoutes registers all web GUI routes on the provided mux.
// Static assets are served from the embedded filesystem at /static/*.
func RegisterRoutes(mux *http.ServeMux, h *Handler) {
	// Static assets (embedded via go:embed).
	staticFS, _ := fs.Sub(StaticFS, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticFS)))

	// Page routes.
	mux.HandleFunc("GET /{$}", h.Ledger)
	mux.HandleFunc("GET /verify", h.Verify)
	mux.HandleFunc("GET /reviews", h.FindReview)
	mux.HandleFunc("GET /reviews/{id}", h.Review)
	mux.HandleFunc("POST /reviews/{id}/status", h.UpdateStatus)
}
