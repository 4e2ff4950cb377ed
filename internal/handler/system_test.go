package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kindfund/kindfund/internal/policy"
)

type downStore struct{}

func (downStore) Ping(context.Context) error {
	return errors.New("dial tcp 10.0.0.5:5432: connection refused")
}
func (downStore) Driver() string { return "postgres" }
func (downStore) CountDocuments(context.Context, string) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestHealthz(t *testing.T) {
	h := NewSystemHandler(downStore{}, "test", nil)
	rr := httptest.NewRecorder()
	h.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assertStatus(t, rr, http.StatusOK)
}

func TestReadyz(t *testing.T) {
	env := newTestEnv(t)

	rr := httptest.NewRecorder()
	NewSystemHandler(env.store, "test", nil).Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assertStatus(t, rr, http.StatusOK)

	rr = httptest.NewRecorder()
	NewSystemHandler(downStore{}, "test", nil).Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assertStatus(t, rr, http.StatusServiceUnavailable)
	if strings.Contains(rr.Body.String(), "10.0.0.5") {
		t.Errorf("readiness body leaks connection details: %s", rr.Body.String())
	}
}

func TestInfo(t *testing.T) {
	env := newTestEnv(t)
	env.seedCause(t, "Wells")
	env.seedCause(t, "Books")

	rr := httptest.NewRecorder()
	NewSystemHandler(env.store, "1.0.0", nil).Info(rr, httptest.NewRequest(http.MethodGet, "/api/v1/system/info", nil))
	assertStatus(t, rr, http.StatusOK)

	var body struct {
		Version     string           `json:"version"`
		Driver      string           `json:"driver"`
		Collections map[string]int64 `json:"collections"`
	}
	decodeJSON(t, rr, &body)
	if body.Version != "1.0.0" || body.Driver != "sqlite" {
		t.Errorf("body = %+v", body)
	}
	if body.Collections["causes"] != 2 || body.Collections["donations"] != 0 {
		t.Errorf("collections = %v", body.Collections)
	}
}

func TestInfoStoreFailure(t *testing.T) {
	rr := httptest.NewRecorder()
	NewSystemHandler(downStore{}, "1.0.0", nil).Info(rr, httptest.NewRequest(http.MethodGet, "/api/v1/system/info", nil))
	assertStatus(t, rr, http.StatusInternalServerError)
}

func TestOpenAPIHandler(t *testing.T) {
	h, err := NewOpenAPIHandler(policy.Default(), "http://localhost:8080", "1.0.0")
	if err != nil {
		t.Fatalf("NewOpenAPIHandler: %v", err)
	}

	rr := httptest.NewRecorder()
	h.ServeSpec(rr, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	assertStatus(t, rr, http.StatusOK)

	var doc struct {
		OpenAPI string                     `json:"openapi"`
		Paths   map[string]json.RawMessage `json:"paths"`
	}
	decodeJSON(t, rr, &doc)
	if doc.OpenAPI != "3.1.0" {
		t.Errorf("openapi = %q", doc.OpenAPI)
	}
	if _, ok := doc.Paths["/api/v1/admin/login"]; !ok {
		t.Error("login path missing from served document")
	}
}
