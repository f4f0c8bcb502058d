package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ternarybob/sitetest/internal/common"
)

// Validation and method checks reject before the runner is touched, so a
// handler with no runner wired is enough for these paths.
func newValidationHandler() *TestHandler {
	return NewTestHandler(nil, common.GetLogger())
}

func TestStartHandler_RejectsWrongMethod(t *testing.T) {
	h := newValidationHandler()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test/start", nil)

	h.StartHandler(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestStartHandler_RejectsInvalidJSON(t *testing.T) {
	h := newValidationHandler()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/test/start", strings.NewReader("{not json"))

	h.StartHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestStartHandler_RejectsMissingOrBadURL(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"empty url", `{"url": ""}`},
		{"not a url", `{"url": "example dot com"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newValidationHandler()
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/test/start", strings.NewReader(tt.body))

			h.StartHandler(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("response is not JSON: %v", err)
			}
			if body["status"] != "error" || body["error"] == "" {
				t.Errorf("error body = %v", body)
			}
		})
	}
}

func TestWriteError_Shape(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusNotFound, "Test not found: test_x")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %s", ct)
	}
	var body map[string]string
	json.NewDecoder(rec.Body).Decode(&body)
	if body["status"] != "error" || body["error"] != "Test not found: test_x" {
		t.Errorf("body = %v", body)
	}
}

func TestWriteSuccess_Shape(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, "Test deleted")

	var body map[string]string
	json.NewDecoder(rec.Body).Decode(&body)
	if body["status"] != "success" || body["message"] != "Test deleted" {
		t.Errorf("body = %v", body)
	}
}

func TestQueryInt(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"limit=5", 5},
		{"limit=0", 20},
		{"limit=-3", 20},
		{"limit=abc", 20},
		{"", 20},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/test/list?"+tt.query, nil)
		if got := QueryInt(req, "limit", 20); got != tt.want {
			t.Errorf("QueryInt(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}
