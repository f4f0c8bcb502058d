package handlers

import (
	"embed"
	"net/http"

	"github.com/ternarybob/arbor"
)

//go:embed pages/index.html
var pageFiles embed.FS

// PageHandler serves the dashboard UI
type PageHandler struct {
	logger arbor.ILogger
}

func NewPageHandler(logger arbor.ILogger) *PageHandler {
	return &PageHandler{logger: logger}
}

// IndexHandler serves the embedded dashboard page
func (h *PageHandler) IndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data, err := pageFiles.ReadFile("pages/index.html")
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to read dashboard page")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}
