package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitetest/internal/models"
	"github.com/ternarybob/sitetest/internal/runner"
)

// StartTestRequest is the POST /test/start payload
type StartTestRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// TestHandler exposes the run lifecycle over HTTP
type TestHandler struct {
	runner   *runner.Service
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewTestHandler creates a new test handler
func NewTestHandler(runnerService *runner.Service, logger arbor.ILogger) *TestHandler {
	return &TestHandler{
		runner:   runnerService,
		validate: validator.New(),
		logger:   logger,
	}
}

// StartHandler handles POST /test/start
func (h *TestHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req StartTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "A valid url is required")
		return
	}

	result, err := h.runner.Start(r.Context(), req.URL)
	if err != nil {
		h.logger.Error().Err(err).Str("url", req.URL).Msg("Failed to start test")
		WriteError(w, http.StatusInternalServerError, "Failed to start test")
		return
	}

	h.logger.Info().
		Str("test_id", result.TestID).
		Str("url", req.URL).
		Str("status", result.Status).
		Msg("Test start accepted")

	WriteJSON(w, http.StatusOK, result)
}

// ListHandler handles GET /test/list
func (h *TestHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	limit := QueryInt(r, "limit", 20)
	runs, err := h.runner.List(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list tests")
		WriteError(w, http.StatusInternalServerError, "Failed to list tests")
		return
	}
	if runs == nil {
		runs = []*models.TestRun{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"tests": runs,
		"count": len(runs),
	})
}

// StatusHandler handles GET /test/{id}/status
func (h *TestHandler) StatusHandler(w http.ResponseWriter, r *http.Request, testID string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	status, err := h.runner.Status(r.Context(), testID)
	if err != nil {
		h.writeLookupError(w, testID, err)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

// ReportHandler handles GET /test/{id}/report. Reports exist only for
// completed runs.
func (h *TestHandler) ReportHandler(w http.ResponseWriter, r *http.Request, testID string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	status, err := h.runner.Status(r.Context(), testID)
	if err != nil {
		h.writeLookupError(w, testID, err)
		return
	}
	if status.Status != models.TestStatusCompleted {
		WriteError(w, http.StatusBadRequest, "Test is not completed yet")
		return
	}

	report, err := h.runner.Report(r.Context(), testID)
	if err != nil {
		h.writeLookupError(w, testID, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// RecordingHandler handles GET /test/{id}/recording. The recording is
// produced asynchronously by the session provider, so a run without one
// yet reports not-ready.
func (h *TestHandler) RecordingHandler(w http.ResponseWriter, r *http.Request, testID string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	status, err := h.runner.Status(r.Context(), testID)
	if err != nil {
		h.writeLookupError(w, testID, err)
		return
	}

	recordingURL, err := h.runner.Recording(r.Context(), testID)
	if err != nil || recordingURL == "" {
		WriteError(w, http.StatusNotFound, "Recording is not ready yet")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"testId":       testID,
		"status":       status.Status,
		"recordingUrl": recordingURL,
	})
}

// StopHandler handles POST /test/{id}/stop. Stop is advisory: the run
// observes the request at its next step boundary.
func (h *TestHandler) StopHandler(w http.ResponseWriter, r *http.Request, testID string) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	if err := h.runner.Stop(r.Context(), testID); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"testId": testID,
		"status": string(models.TestStatusStopped),
	})
}

// DeleteHandler handles DELETE /test/{id}
func (h *TestHandler) DeleteHandler(w http.ResponseWriter, r *http.Request, testID string) {
	if !RequireMethod(w, r, "DELETE") {
		return
	}

	if h.runner.Active(testID) {
		WriteError(w, http.StatusConflict, "Test is still active, stop it first")
		return
	}

	if err := h.runner.Delete(r.Context(), testID); err != nil {
		h.writeLookupError(w, testID, err)
		return
	}

	h.logger.Info().Str("test_id", testID).Msg("Test deleted")
	WriteSuccess(w, "Test deleted")
}

// writeLookupError maps storage lookup failures onto 404 or 500
func (h *TestHandler) writeLookupError(w http.ResponseWriter, testID string, err error) {
	if strings.Contains(err.Error(), "not found") {
		WriteError(w, http.StatusNotFound, "Test not found: "+testID)
		return
	}
	h.logger.Error().Err(err).Str("test_id", testID).Msg("Test lookup failed")
	WriteError(w, http.StatusInternalServerError, "Internal error")
}
