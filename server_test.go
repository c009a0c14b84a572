package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gutsdata/explorer_backend/catalog"
	"github.com/gutsdata/explorer_backend/datarequest"
	"github.com/gutsdata/explorer_backend/ingest"
	"github.com/gutsdata/explorer_backend/models"
	"github.com/gutsdata/explorer_backend/registry"
	"github.com/gutsdata/explorer_backend/store"
	"github.com/gutsdata/explorer_backend/utils"
	"github.com/sirupsen/logrus"
)

type emptySource struct{}

type stubDirectory struct{ calls []string }

func (d *stubDirectory) record(op, email string) (json.RawMessage, error) {
	d.calls = append(d.calls, op+" "+email)
	return json.RawMessage(`{"user":"` + email + `"}`), nil
}

func (d *stubDirectory) CheckUser(_ context.Context, email string) (json.RawMessage, error) {
	return d.record("check", email)
}

func (d *stubDirectory) InviteUser(_ context.Context, email string) (json.RawMessage, error) {
	return d.record("invite", email)
}

func (d *stubDirectory) DeleteUser(_ context.Context, email string) (json.RawMessage, error) {
	return d.record("delete", email)
}

func (emptySource) GetProviders(context.Context) ([]models.Provider, error) { return nil, nil }
func (emptySource) GetProjects(context.Context) ([]models.Project, error)   { return nil, nil }
func (emptySource) GetDataUsers(context.Context) ([]models.DataUser, error) { return nil, nil }
func (emptySource) GetSessions(context.Context) ([]models.Session, error)   { return nil, nil }

func testApp() *app {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	mem := store.NewMemoryStore()
	mem.Put(store.DatasetSubjectLevel, []byte(`[{"subject":"s1"}]`))
	repo := store.NewRepository(mem)
	return &app{
		logger: logger,
		submit: datarequest.NewService(datarequest.NewBuilder(repo, registry.NewAliasTable(nil)), nil, nil, logger),
		reader: catalog.NewReader(repo),
		users:  &stubDirectory{},
		runner: ingest.NewRunner(ingest.New(emptySource{}, repo, ingest.Options{Logger: logger}), nil),
	}
}

func TestRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Setenv("API_SECRET", "router-secret")
	r := newRouter(testApp())

	token, err := utils.JwtGenerate("sub-9", "Ada", "ada@example.org")
	if err != nil {
		t.Fatalf("JwtGenerate error: %v", err)
	}

	cases := []struct {
		method, path, token string
		status              int
		body                string
	}{
		{http.MethodGet, "/healthz", "", http.StatusNoContent, ""},
		{http.MethodGet, "/api/profile", "", http.StatusUnauthorized, "not authenticated"},
		{http.MethodGet, "/api/profile", token, http.StatusOK, `"sub":"sub-9"`},
		{http.MethodGet, "/api/subjects", "", http.StatusOK, `"s1"`},
		{http.MethodGet, "/api/files", "", http.StatusOK, "[]"},
		{http.MethodGet, "/api/unknown", "", http.StatusNotFound, "unknown catalog"},
		{http.MethodPost, "/api/submit", "", http.StatusUnauthorized, "not authenticated"},
		{http.MethodGet, "/api/user/ada@example.org", "", http.StatusUnauthorized, "not authenticated"},
		{http.MethodGet, "/api/user/ada@example.org", token, http.StatusOK, `"user":"ada@example.org"`},
		{http.MethodPost, "/api/user/ada@example.org", token, http.StatusOK, `"user":"ada@example.org"`},
		{http.MethodDelete, "/api/user/ada@example.org", token, http.StatusOK, `"user":"ada@example.org"`},
		{http.MethodGet, "/nowhere", "", http.StatusNotFound, "route not found"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		if tc.token != "" {
			req.Header.Set("Authorization", "Bearer "+tc.token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.status || !strings.Contains(w.Body.String(), tc.body) {
			t.Fatalf("%s %s: got %d %s", tc.method, tc.path, w.Code, w.Body.String())
		}
	}
}

func TestRouter_ExportAndPushTrigger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := newRouter(testApp())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/export.xlsx", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Header().Get("Content-Type"), "spreadsheetml") {
		t.Fatalf("unexpected export response %d %v", w.Code, w.Header())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/pubsub/update-metadata", strings.NewReader(`{}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from push trigger, got %d", w.Code)
	}
	var summary map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil || summary["nothing_new"] != true {
		t.Fatalf("unexpected summary %s", w.Body.String())
	}
}
