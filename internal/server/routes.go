package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Dashboard
	mux.HandleFunc("/", s.app.PageHandler.IndexHandler)

	// WebSocket route (live run progress)
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// Test lifecycle
	mux.HandleFunc("/test/start", s.app.TestHandler.StartHandler) // POST - start a new test
	mux.HandleFunc("/test/list", s.app.TestHandler.ListHandler)   // GET - recent tests
	mux.HandleFunc("/test/", s.handleTestRoutes)                  // /{id}/status, /{id}/report, /{id}/recording, /{id}/stop, DELETE /{id}

	// System
	mux.HandleFunc("/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleTestRoutes routes /test/{id}[/action] requests to the test handler
func (s *Server) handleTestRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/test/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	testID := parts[0]

	// DELETE /test/{id}
	if len(parts) == 1 {
		if r.Method == http.MethodDelete {
			s.app.TestHandler.DeleteHandler(w, r, testID)
			return
		}
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	switch parts[1] {
	case "status":
		s.app.TestHandler.StatusHandler(w, r, testID)
	case "report":
		s.app.TestHandler.ReportHandler(w, r, testID)
	case "recording":
		s.app.TestHandler.RecordingHandler(w, r, testID)
	case "stop":
		s.app.TestHandler.StopHandler(w, r, testID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}
