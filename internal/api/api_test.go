package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lzjever/mbos-irp/internal/api/middleware"
	"github.com/lzjever/mbos-irp/internal/auth"
	"github.com/lzjever/mbos-irp/internal/core"
)

// Mock tests for API handlers without DB dependency

func TestHealthHandler(t *testing.T) {
	api := &API{}
	r := chi.NewRouter()
	r.Get("/healthz", api.HealthHandler)

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "OK" {
		t.Errorf("expected body OK, got %s", w.Body.String())
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, core.NewAppError(core.ErrBadRequest, "test error"))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %s", err)
	}
	if resp.Code != "IRP_BAD_REQUEST" {
		t.Errorf("expected code IRP_BAD_REQUEST, got %s", resp.Code)
	}
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"key": "value"}
	WriteJSON(w, http.StatusOK, data)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %s", err)
	}
	if resp["key"] != "value" {
		t.Errorf("expected key=value, got %v", resp)
	}
}

func TestWriteAccepted(t *testing.T) {
	w := httptest.NewRecorder()
	WriteAccepted(w, "job-123", "/v1/admin/jobs/")

	if w.Code != http.StatusAccepted {
		t.Errorf("expected status 202, got %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %s", err)
	}
	if resp["job_id"] != "job-123" {
		t.Errorf("expected job_id job-123, got %v", resp["job_id"])
	}
	if resp["status"] != "PENDING" {
		t.Errorf("expected status PENDING, got %v", resp["status"])
	}
	if resp["status_href"] != "/v1/admin/jobs/job-123" {
		t.Errorf("unexpected status_href %v", resp["status_href"])
	}
}

func TestRequireAuth(t *testing.T) {
	authn := auth.New("test-secret", time.Hour)
	var seen auth.Claims
	handler := middleware.RequireAuth(authn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("MissingToken", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/v1/requests", nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", w.Code)
		}
	})

	t.Run("GarbageToken", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/requests", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", w.Code)
		}
	})

	t.Run("ValidToken", func(t *testing.T) {
		token, err := authn.MintToken(core.User{ID: 9, Email: "dev@example.com"})
		if err != nil {
			t.Fatalf("failed to mint token: %s", err)
		}
		req := httptest.NewRequest("GET", "/v1/requests", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", w.Code)
		}
		if seen.UserID != 9 {
			t.Errorf("expected claims in handler context, got %+v", seen)
		}
	})
}

func TestRequireAdmin(t *testing.T) {
	handler := middleware.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("NonAdmin", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/admin/requests", nil)
		req = req.WithContext(auth.ContextWithClaims(req.Context(), auth.Claims{UserID: 1}))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", w.Code)
		}
	})

	t.Run("Admin", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/admin/requests", nil)
		req = req.WithContext(auth.ContextWithClaims(req.Context(), auth.Claims{UserID: 1, Admin: true}))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", w.Code)
		}
	})

	t.Run("NoClaims", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/v1/admin/requests", nil))
		if w.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", w.Code)
		}
	})
}
