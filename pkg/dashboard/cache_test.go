package dashboard

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/unicef-drp/geosight/pkg/auth"
	"github.com/unicef-drp/geosight/pkg/observability"
	"github.com/unicef-drp/geosight/pkg/permission"
)

func (e *testEnv) insertIndicator(t *testing.T, id, creatorID int64) permission.Ref {
	t.Helper()
	_, err := e.db.Exec(
		`INSERT INTO indicators (id, name, creator_id) VALUES (?, ?, ?)`,
		id, "Indicator", creatorID,
	)
	if err != nil {
		t.Fatalf("Failed to insert indicator: %v", err)
	}
	ref := permission.Ref{Type: permission.TypeIndicator, ID: id, CreatorID: creatorID}
	if _, err := e.permStore.GetOrCreate(context.Background(), ref); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	return ref
}

func countingObservers(cache *CacheStore) (builds, hits *int) {
	var b, h int
	cache.SetObservers(func() { b++ }, func() { h++ })
	return &b, &h
}

func TestGetCacheBuildsThenServesFromCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := creator(3)
	viewer := &auth.User{ID: 5, Role: auth.RoleViewer}

	env.insertIndicator(t, 11, owner.ID)
	dash := env.mustCreate(t, owner, "Health")
	if err := env.store.SetEmbeds(ctx, owner, dash.ID, permission.TypeIndicator, []Embed{{ObjectID: 11}}); err != nil {
		t.Fatalf("SetEmbeds failed: %v", err)
	}

	builds, hits := countingObservers(env.cache)

	bundle, err := env.cache.GetCache(ctx, dash, viewer)
	if err != nil {
		t.Fatalf("GetCache failed: %v", err)
	}
	if *builds != 1 || *hits != 0 {
		t.Errorf("Expected 1 build and 0 hits, got %d/%d", *builds, *hits)
	}

	leaf, ok := bundle.Indicators["11"]
	if !ok {
		t.Fatalf("Expected indicator 11 in bundle, got %+v", bundle.Indicators)
	}
	// Indicator defaults are organization LIST: an authenticated viewer
	// may list but not read the data.
	if !leaf.Permission["list"] || leaf.Permission["read"] || leaf.Permission["read_data"] {
		t.Errorf("Unexpected capabilities %+v", leaf.Permission)
	}

	again, err := env.cache.GetCache(ctx, dash, viewer)
	if err != nil {
		t.Fatalf("GetCache failed: %v", err)
	}
	if *builds != 1 || *hits != 1 {
		t.Errorf("Expected second call to hit the cache, got %d builds %d hits", *builds, *hits)
	}
	if _, ok := again.Indicators["11"]; !ok {
		t.Errorf("Expected cached bundle to keep indicator 11, got %+v", again.Indicators)
	}
}

func TestGetCacheAnonymousNeverPersists(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := creator(3)

	dash := env.mustCreate(t, owner, "Public")
	builds, hits := countingObservers(env.cache)

	for i := 0; i < 2; i++ {
		if _, err := env.cache.GetCache(ctx, dash, nil); err != nil {
			t.Fatalf("GetCache failed: %v", err)
		}
	}
	if *builds != 2 || *hits != 0 {
		t.Errorf("Expected anonymous calls to always build, got %d builds %d hits", *builds, *hits)
	}

	var count int
	if err := env.db.QueryRow(`SELECT COUNT(*) FROM dashboard_caches`).Scan(&count); err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected no persisted rows for anonymous callers, got %d", count)
	}
}

func TestPermissionChangeInvalidatesEmbeddingDashboards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := creator(3)
	viewer := &auth.User{ID: 5, Role: auth.RoleViewer}

	ref := env.insertIndicator(t, 11, owner.ID)
	embedding := env.mustCreate(t, owner, "Embedding")
	unrelated := env.mustCreate(t, owner, "Unrelated")
	if err := env.store.SetEmbeds(ctx, owner, embedding.ID, permission.TypeIndicator, []Embed{{ObjectID: 11}}); err != nil {
		t.Fatalf("SetEmbeds failed: %v", err)
	}

	for _, dash := range []*Dashboard{embedding, unrelated} {
		if _, err := env.cache.GetCache(ctx, dash, viewer); err != nil {
			t.Fatalf("GetCache failed: %v", err)
		}
	}

	// Granting the viewer OWNER on the indicator goes through the
	// registry and nulls only the embedding dashboard's cache.
	if err := env.permStore.UpdateUserPermission(ctx, ref, viewer.ID, permission.LevelOwner); err != nil {
		t.Fatalf("UpdateUserPermission failed: %v", err)
	}

	if _, valid := env.cacheColumn(t, embedding.ID, viewer.ID); valid {
		t.Error("Expected embedding dashboard's cache to be nulled")
	}
	if _, valid := env.cacheColumn(t, unrelated.ID, viewer.ID); !valid {
		t.Error("Expected unrelated dashboard's cache to survive")
	}

	bundle, err := env.cache.GetCache(ctx, embedding, viewer)
	if err != nil {
		t.Fatalf("GetCache failed: %v", err)
	}
	leaf := bundle.Indicators["11"]
	if !leaf.Permission["delete"] || !leaf.Permission["edit_data"] {
		t.Errorf("Expected rebuilt bundle to reflect OWNER, got %+v", leaf.Permission)
	}
}

func TestGetCacheRebuildsCorruptPayload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := creator(3)
	viewer := &auth.User{ID: 5, Role: auth.RoleViewer}

	dash := env.mustCreate(t, owner, "Corrupt")
	if _, err := env.cache.GetCache(ctx, dash, viewer); err != nil {
		t.Fatalf("GetCache failed: %v", err)
	}
	if _, err := env.db.Exec(
		`UPDATE dashboard_caches SET cache = 'not json' WHERE dashboard_id = ?`, dash.ID,
	); err != nil {
		t.Fatalf("Failed to corrupt cache: %v", err)
	}

	builds, _ := countingObservers(env.cache)
	if _, err := env.cache.GetCache(ctx, dash, viewer); err != nil {
		t.Fatalf("GetCache failed: %v", err)
	}
	if *builds != 1 {
		t.Errorf("Expected corrupt payload to trigger a rebuild, got %d builds", *builds)
	}
	if payload, valid := env.cacheColumn(t, dash.ID, viewer.ID); !valid || payload == "not json" {
		t.Errorf("Expected repaired cache payload, got valid=%v payload=%q", valid, payload)
	}
}

func TestBuildBundleSkipsStaleEmbeds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := creator(3)

	dash := env.mustCreate(t, owner, "Stale")
	if err := env.store.SetEmbeds(ctx, owner, dash.ID, permission.TypeIndicator, []Embed{{ObjectID: 999}}); err != nil {
		t.Fatalf("SetEmbeds failed: %v", err)
	}

	bundle, err := env.cache.GetCache(ctx, dash, owner)
	if err != nil {
		t.Fatalf("GetCache failed: %v", err)
	}
	if len(bundle.Indicators) != 0 {
		t.Errorf("Expected stale embed to be skipped, got %+v", bundle.Indicators)
	}
}

func TestJanitorRunOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := creator(3)

	if _, err := env.db.Exec(
		`INSERT INTO users (id, username, role) VALUES (?, ?, 'Creator')`, owner.ID, "owner",
	); err != nil {
		t.Fatalf("Failed to insert user: %v", err)
	}

	dash := env.mustCreate(t, owner, "Kept")
	if _, err := env.cache.GetCache(ctx, dash, owner); err != nil {
		t.Fatalf("GetCache failed: %v", err)
	}

	// Orphans: a cache row for a deleted dashboard and one for a
	// deleted user.
	if _, err := env.db.Exec(
		`INSERT INTO dashboard_caches (dashboard_id, user_id) VALUES (999, ?), (?, 888)`,
		owner.ID, dash.ID,
	); err != nil {
		t.Fatalf("Failed to insert orphan rows: %v", err)
	}
	if _, err := env.db.Exec(
		`INSERT INTO api_tokens (user_id, token_hash, expires_at) VALUES (?, 'deadbeef', ?)`,
		owner.ID, time.Now().Add(-time.Hour),
	); err != nil {
		t.Fatalf("Failed to insert expired token: %v", err)
	}

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	janitor := NewJanitor(env.db, auth.NewStore(env.db), logger)
	if err := janitor.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	var caches int
	if err := env.db.QueryRow(`SELECT COUNT(*) FROM dashboard_caches`).Scan(&caches); err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if caches != 1 {
		t.Errorf("Expected only the live cache row to survive, got %d", caches)
	}
	if _, valid := env.cacheColumn(t, dash.ID, owner.ID); !valid {
		t.Error("Expected the live cache row to keep its payload")
	}

	var tokens int
	if err := env.db.QueryRow(`SELECT COUNT(*) FROM api_tokens`).Scan(&tokens); err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if tokens != 0 {
		t.Errorf("Expected expired token to be purged, got %d rows", tokens)
	}
}
