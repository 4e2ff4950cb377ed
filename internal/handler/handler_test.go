package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kindfund/kindfund/internal/config"
	"github.com/kindfund/kindfund/internal/metrics"
	"github.com/kindfund/kindfund/internal/model"
	"github.com/kindfund/kindfund/internal/server/middleware"
	"github.com/kindfund/kindfund/internal/service"
)

const (
	testJWTSecret = "test-secret-for-handler-tests"
	testPassword  = "supersecretpassword"
)

// testEnv holds shared state for handler integration tests.
type testEnv struct {
	store   *config.Store
	authSvc *service.AuthService
	metrics *metrics.Manager
	router  chi.Router
}

// newTestEnv creates a fresh test environment with an in-memory store and a
// Chi router with the handlers mounted. Gating is not applied here; the
// server tests cover the policy wiring.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := config.NewStore("sqlite", "") // in-memory SQLite
	if err != nil {
		t.Fatalf("config.NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	authSvc, err := service.NewAuthService(store, testJWTSecret, service.WithHasher(service.NewBcryptHasher(4)))
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	m := metrics.NewTestManager()
	authHandler := NewAuthHandler(authSvc, m, nil)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/admin/login", authHandler.Login)
		r.Post("/admin/logout", authHandler.Logout)
		r.Post("/admin/register", authHandler.Register)
		r.Get("/admin/me", authHandler.Me)

		for _, res := range Resources(store, nil, m) {
			r.Get("/"+res.Name(), res.Handler("list"))
			r.Post("/"+res.Name(), res.Handler("create"))
			r.Get("/"+res.Name()+"/{id}", res.Handler("get"))
			r.Put("/"+res.Name()+"/{id}", res.Handler("update"))
			r.Delete("/"+res.Name()+"/{id}", res.Handler("delete"))
		}
	})

	return &testEnv{
		store:   store,
		authSvc: authSvc,
		metrics: m,
		router:  r,
	}
}

// seedAdmin creates a default admin account and returns it.
func (e *testEnv) seedAdmin(t *testing.T) *model.Admin {
	t.Helper()
	admin, err := e.authSvc.Register(context.Background(), "admin@example.com", testPassword, "Test Admin")
	if err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
	return admin
}

// seedCause stores a cause directly and returns it.
func (e *testEnv) seedCause(t *testing.T, title string) *model.Cause {
	t.Helper()
	c := &model.Cause{Title: title, Description: "d", GoalAmount: 1000, Currency: "INR", Active: true}
	if err := e.store.InsertDocument(context.Background(), model.CollectionCauses, c); err != nil {
		t.Fatalf("seedCause: %v", err)
	}
	return c
}

func (e *testEnv) cause(t *testing.T, id string) model.Cause {
	t.Helper()
	var c model.Cause
	if err := e.store.GetDocument(context.Background(), model.CollectionCauses, id, &c); err != nil {
		t.Fatalf("get cause: %v", err)
	}
	return c
}

// do executes an HTTP request against the test router and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// doAs is do with a principal attached, as the gate would.
func (e *testEnv) doAs(t *testing.T, p *service.Principal, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req = req.WithContext(middleware.WithPrincipal(req.Context(), p))
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func toJSON(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("toJSON: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}
