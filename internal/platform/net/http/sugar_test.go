package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestGetJSON_Success(t *testing.T) {
	t.Parallel()

	m := chi.NewRouter()
	r := AdaptChi(m)

	GetJSON(r, "/g", func(_ *http.Request) (any, error) {
		return map[string]string{"ok": "get"}, nil
	})

	req := httptest.NewRequest(http.MethodGet, "/g", nil)
	rr := httptest.NewRecorder()
	m.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"ok":"get"`) {
		t.Fatalf("GET /g => code=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestGetJSON_HandlerError(t *testing.T) {
	t.Parallel()

	m := chi.NewRouter()
	r := AdaptChi(m)

	GetJSON(r, "/g", func(_ *http.Request) (any, error) {
		return nil, errors.New("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/g", nil)
	rr := httptest.NewRecorder()
	m.ServeHTTP(rr, req)

	if rr.Code == http.StatusOK {
		t.Fatalf("expected non-200 on handler error, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "boom") {
		t.Fatalf("expected error message in body, got %q", rr.Body.String())
	}
}
