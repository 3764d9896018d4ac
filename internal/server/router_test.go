package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tu "github.com/desertthunder/vinyl/internal/testing"
)

func TestBasicRouter(t *testing.T) {
	t.Run("Method Filtering", func(t *testing.T) {
		r := NewBasicRouter()
		r.HandleFunc(http.MethodPost, "/api/next", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/next", nil))
		if rec.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/next", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
		if rec.Header().Get("Allow") != http.MethodPost {
			t.Errorf("expected Allow header, got %q", rec.Header().Get("Allow"))
		}
	})

	t.Run("Path Wildcards", func(t *testing.T) {
		r := NewBasicRouter()
		var got string
		r.HandleFunc(http.MethodPost, "/api/play/{id}", func(_ http.ResponseWriter, req *http.Request) {
			got = req.PathValue("id")
		})
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/play/liked-songs", nil))
		if got != "liked-songs" {
			t.Errorf("expected liked-songs, got %q", got)
		}
	})

	t.Run("Middleware Order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(mark("first"), mark("second"))
		r.HandleFunc(http.MethodGet, "/", func(http.ResponseWriter, *http.Request) { order = append(order, "handler") })
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("Request ID Generated", func(t *testing.T) {
		logger, buf := tu.NewLogger(t)
		var seen string
		h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = RequestID(r.Context())
			w.WriteHeader(http.StatusTeapot)
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
			t.Errorf("expected request id in context and header, got %q and %q", seen, rec.Header().Get(RequestIDHeader))
		}
		if !strings.Contains(buf.String(), "status=418") {
			t.Errorf("expected status logged, got %q", buf.String())
		}
	})

	t.Run("Request ID Echoed", func(t *testing.T) {
		logger, _ := tu.NewLogger(t)
		h := Logging(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Header().Get(RequestIDHeader) != "abc-123" {
			t.Errorf("expected client id echoed, got %q", rec.Header().Get(RequestIDHeader))
		}
	})

	t.Run("Recover", func(t *testing.T) {
		logger, buf := tu.NewLogger(t)
		h := Recover(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if !strings.Contains(buf.String(), "handler panic") {
			t.Error("expected panic logged")
		}
	})
}
