package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	cerrors "github.com/r3d91ll/consensus/pkg/errors"
	"github.com/r3d91ll/consensus/pkg/logging"
)

// parseAPIResponse decodes the standard response envelope.
func parseAPIResponse(t *testing.T, body io.Reader) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp
}

// -----------------------------------------------------------------------------
// Router Tests
// -----------------------------------------------------------------------------

func TestMatchPath(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		match   bool
		params  map[string]string
	}{
		{"/api/runs", "/api/runs", true, nil},
		{"/api/runs", "/api/runs/", true, nil},
		{"/api/runs/:id", "/api/runs/abc", true, map[string]string{"id": "abc"}},
		{"/api/runs/:id/control", "/api/runs/abc/control", true, map[string]string{"id": "abc"}},
		{"/api/runs/:id", "/api/runs", false, nil},
		{"/api/runs/:id", "/api/archive/abc", false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.path, func(t *testing.T) {
			params, ok := matchPath(tt.pattern, tt.path)
			if ok != tt.match {
				t.Fatalf("matchPath(%q, %q) = %v, want %v", tt.pattern, tt.path, ok, tt.match)
			}
			for k, v := range tt.params {
				if params[k] != v {
					t.Errorf("param %s = %q, want %q", k, params[k], v)
				}
			}
		})
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router := NewRouter()
	router.GET("/api/runs", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, nil)
	})

	t.Run("wrong method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/runs", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("Expected status 405, got %d", rec.Code)
		}
		if allow := rec.Header().Get("Allow"); allow != http.MethodGet {
			t.Errorf("Expected Allow GET, got %q", allow)
		}
	})

	t.Run("unknown path", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/nothing", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", rec.Code)
		}
		resp := parseAPIResponse(t, rec.Body)
		if resp.Error == nil || resp.Error.Code != "not_found" {
			t.Errorf("Expected not_found error, got %+v", resp.Error)
		}
	})
}

func TestWriteErr(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"run not found", cerrors.Simulation(cerrors.ErrRunNotFound, "no run"), http.StatusNotFound, cerrors.ErrRunNotFound},
		{"run finished", cerrors.Simulation(cerrors.ErrRunFinished, "done"), http.StatusConflict, cerrors.ErrRunFinished},
		{"invalid field", cerrors.InvalidField("sample_size", "bad"), http.StatusBadRequest, cerrors.ErrConfigInvalid},
		{"store failure", cerrors.IO(cerrors.ErrStoreFailed, "disk"), http.StatusInternalServerError, cerrors.ErrStoreFailed},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteErr(rec, tt.err)

			if rec.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, rec.Code)
			}
			resp := parseAPIResponse(t, rec.Body)
			if resp.Success {
				t.Error("Expected failure response")
			}
			if resp.Error == nil || resp.Error.Code != tt.code {
				t.Errorf("Expected code %s, got %+v", tt.code, resp.Error)
			}
		})
	}
}

func TestWriteErr_IncludesContext(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErr(rec, cerrors.InvalidField("sample_size", "sample_size must be positive"))

	resp := parseAPIResponse(t, rec.Body)
	if resp.Error.Context[cerrors.ContextField] != "sample_size" {
		t.Errorf("Expected field context, got %v", resp.Error.Context)
	}
}

func TestReadJSON(t *testing.T) {
	type body struct {
		Action string `json:"action"`
	}

	t.Run("decodes body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"action":"pause"}`))
		var b body
		if err := ReadJSON(req, &b); err != nil {
			t.Fatalf("ReadJSON failed: %v", err)
		}
		if b.Action != "pause" {
			t.Errorf("Expected pause, got %q", b.Action)
		}
	})

	t.Run("empty body keeps target", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
		b := body{Action: "keep"}
		if err := ReadJSON(req, &b); err != nil {
			t.Fatalf("ReadJSON failed: %v", err)
		}
		if b.Action != "keep" {
			t.Errorf("Expected target untouched, got %q", b.Action)
		}
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"actoin":"pause"}`))
		var b body
		if err := ReadJSON(req, &b); err == nil {
			t.Error("Expected error for unknown field")
		}
	})
}

// -----------------------------------------------------------------------------
// Middleware Tests
// -----------------------------------------------------------------------------

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORSMiddleware(t *testing.T) {
	handler := CORSMiddleware([]string{"http://localhost:5173"})(okHandler())

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
			t.Errorf("Expected origin echoed, got %q", got)
		}
	})

	t.Run("disallowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
		req.Header.Set("Origin", "http://evil.example")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Expected no CORS header, got %q", got)
		}
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/runs", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("Expected status 204, got %d", rec.Code)
		}
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	handler := RequestIDMiddleware(okHandler())

	t.Run("generates id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if id := rec.Header().Get("X-Request-ID"); len(id) != 36 {
			t.Errorf("Expected uuid request id, got %q", id)
		}
	})

	t.Run("keeps upstream id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "upstream-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if id := rec.Header().Get("X-Request-ID"); id != "upstream-1" {
			t.Errorf("Expected upstream id, got %q", id)
		}
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	var logs bytes.Buffer
	logger := logging.NewLogger("info", &logs)
	handler := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", rec.Code)
	}
	if !strings.Contains(logs.String(), "boom") {
		t.Errorf("Expected panic to be logged, got %q", logs.String())
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))

	out := logs.String()
	for _, want := range []string{"path=/api/health", "status=418", "bytes=5"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in log line %q", want, out)
		}
	}
}

func TestContentTypeMiddleware(t *testing.T) {
	handler := ContentTypeMiddleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader("a=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("Expected status 415, got %d", rec.Code)
	}
}

func TestChain(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	Chain(okHandler(), mark("outer"), mark("inner")).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if strings.Join(order, ",") != "outer,inner" {
		t.Errorf("Expected outer,inner, got %v", order)
	}
}

// -----------------------------------------------------------------------------
// Server Tests
// -----------------------------------------------------------------------------

func TestNewServer_Defaults(t *testing.T) {
	s := NewServer(&ServerConfig{}, logging.Discard())
	if s.Address() != "localhost:8081" {
		t.Errorf("Expected localhost:8081, got %s", s.Address())
	}
	if s.Config().ReadTimeout == 0 {
		t.Error("Expected read timeout default")
	}
	if s.IsRunning() {
		t.Error("Expected server not running")
	}
}

func TestMakeOriginChecker(t *testing.T) {
	check := makeOriginChecker([]string{"http://localhost:3000"})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"http://other:3000", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := check(req); got != tt.want {
			t.Errorf("origin %q: got %v, want %v", tt.origin, got, tt.want)
		}
	}

	wildcard := makeOriginChecker([]string{"*"})
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "http://anything")
	if !wildcard(req) {
		t.Error("Expected wildcard to allow any origin")
	}
}
