package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/unicef-drp/geosight/pkg/auth"
	"github.com/unicef-drp/geosight/pkg/contextkeys"
	"github.com/unicef-drp/geosight/pkg/permission"
)

func newTestRouter(env *testEnv) *mux.Router {
	router := mux.NewRouter()
	NewHandlers(env.store, env.cache).RegisterRoutes(router.PathPrefix("/api/v1").Subrouter())
	return router
}

func doRequest(router *mux.Router, user *auth.User, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != nil {
		req = req.WithContext(contextkeys.WithAuth(req.Context(), &auth.Context{User: user}))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestDashboardEndpoints(t *testing.T) {
	env := newTestEnv(t)
	router := newTestRouter(env)
	owner := creator(3)

	rec := doRequest(router, nil, "POST", "/api/v1/dashboards", Dashboard{Name: "Health"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for anonymous create, got %d", rec.Code)
	}

	rec = doRequest(router, owner, "POST", "/api/v1/dashboards", Dashboard{Name: "Health"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(router, owner, "GET", "/api/v1/dashboards/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for GetBySlug, got %d", rec.Code)
	}

	rec = doRequest(router, owner, "GET", "/api/v1/dashboards/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for missing slug, got %d", rec.Code)
	}

	// Dashboards default to public NONE, so anonymous reads are refused.
	rec = doRequest(router, nil, "GET", "/api/v1/dashboards/health", nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for anonymous read, got %d", rec.Code)
	}
}

func TestDashboardEmbedEndpoints(t *testing.T) {
	env := newTestEnv(t)
	router := newTestRouter(env)
	owner := creator(3)

	env.mustCreate(t, owner, "Board")

	rec := doRequest(router, owner, "PUT", "/api/v1/dashboards/missing/embeds/indicator", []Embed{
		{ObjectID: 11, Order: 1},
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for bad slug, got %d", rec.Code)
	}

	rec = doRequest(router, owner, "PUT", "/api/v1/dashboards/board/embeds/indicator", []Embed{
		{ObjectID: 11, Order: 1},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(router, owner, "PUT", "/api/v1/dashboards/board/embeds/basemap", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for non-embeddable type, got %d", rec.Code)
	}

	rec = doRequest(router, owner, "GET", "/api/v1/dashboards/board/embeds/indicator", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var embeds []Embed
	if err := json.Unmarshal(rec.Body.Bytes(), &embeds); err != nil {
		t.Fatalf("Failed to decode embeds: %v", err)
	}
	if len(embeds) != 1 || embeds[0].ObjectID != 11 {
		t.Errorf("Unexpected embeds %+v", embeds)
	}
}

func TestDashboardPermissionsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	router := newTestRouter(env)
	owner := creator(3)
	viewer := &auth.User{ID: 5, Role: auth.RoleViewer}

	ctx := context.Background()
	env.insertIndicator(t, 11, owner.ID)
	dash := env.mustCreate(t, owner, "Bundle")
	if err := env.store.SetEmbeds(ctx, owner, dash.ID, permission.TypeIndicator, []Embed{{ObjectID: 11}}); err != nil {
		t.Fatalf("SetEmbeds failed: %v", err)
	}

	// Open the dashboard itself to organization READ so the viewer can
	// reach the bundle endpoint.
	if err := env.permStore.SetGeneral(ctx, dash.PermissionRef(), permission.LevelRead, permission.LevelNone); err != nil {
		t.Fatalf("SetGeneral failed: %v", err)
	}

	rec := doRequest(router, viewer, "GET", "/api/v1/dashboards/bundle/permissions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var bundle Bundle
	if err := json.Unmarshal(rec.Body.Bytes(), &bundle); err != nil {
		t.Fatalf("Failed to decode bundle: %v", err)
	}
	leaf, ok := bundle.Indicators["11"]
	if !ok {
		t.Fatalf("Expected indicator 11 in bundle, got %s", rec.Body.String())
	}
	if !leaf.Permission["list"] || leaf.Permission["edit"] {
		t.Errorf("Unexpected capabilities %+v", leaf.Permission)
	}
}
