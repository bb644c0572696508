package permission

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/unicef-drp/geosight/pkg/auth"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE permissions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			resource_type TEXT NOT NULL,
			resource_id INTEGER NOT NULL,
			organization_permission TEXT NOT NULL DEFAULT 'NONE',
			public_permission TEXT NOT NULL DEFAULT 'NONE',
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(resource_type, resource_id)
		);

		CREATE TABLE user_permissions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			permission_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			level TEXT NOT NULL,
			UNIQUE(permission_id, user_id)
		);

		CREATE TABLE group_permissions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			permission_id INTEGER NOT NULL,
			group_id INTEGER NOT NULL,
			level TEXT NOT NULL,
			UNIQUE(permission_id, group_id)
		);
	`)
	if err != nil {
		t.Fatalf("Failed to create test tables: %v", err)
	}

	return db
}

// staticGroups is a GroupLister backed by a fixed membership map
type staticGroups map[int64][]int64

func (g staticGroups) GroupIDs(_ context.Context, userID int64) ([]int64, error) {
	return g[userID], nil
}

func newTestResolver(t *testing.T, groups GroupLister) (*Store, *Resolver) {
	t.Helper()
	store := NewStore(setupTestDB(t), NewPolicy(), NewRegistry())
	return store, NewResolver(store, groups, nil)
}

func contributor(id int64) *auth.User {
	return &auth.User{ID: id, Username: "contrib", Role: auth.RoleContributor, IsActive: true}
}

func TestResolverLevelLadder(t *testing.T) {
	store, resolver := newTestResolver(t, staticGroups{})
	ctx := context.Background()

	ref := Ref{Type: TypeIndicator, ID: 1, CreatorID: 99}
	user := contributor(7)

	// Indicator defaults: public NONE, organization LIST.
	level, err := resolver.Level(ctx, user, ref)
	if err != nil {
		t.Fatalf("Level failed: %v", err)
	}
	if level != LevelList {
		t.Errorf("Expected default level LIST, got %s", level)
	}

	// Step the user's override up the ladder. Every step must be
	// reflected exactly in the named checks.
	steps := []struct {
		level    Level
		read     bool
		readData bool
		edit     bool
		share    bool
		delete   bool
	}{
		{LevelList, false, false, false, false, false},
		{LevelRead, true, false, false, false, false},
		{LevelReadData, true, true, false, false, false},
		{LevelWrite, true, true, true, false, false},
		{LevelWriteData, true, true, true, false, false},
		{LevelShare, true, true, true, true, false},
		{LevelOwner, true, true, true, true, true},
	}

	for _, step := range steps {
		if err := store.UpdateUserPermission(ctx, ref, user.ID, step.level); err != nil {
			t.Fatalf("UpdateUserPermission(%s) failed: %v", step.level, err)
		}

		checks := []struct {
			name string
			fn   func(context.Context, *auth.User, Ref) (bool, error)
			want bool
		}{
			{"read", resolver.HasRead, step.read},
			{"read_data", resolver.HasReadData, step.readData},
			{"edit", resolver.HasEdit, step.edit},
			{"share", resolver.HasShare, step.share},
			{"delete", resolver.HasDelete, step.delete},
		}
		for _, check := range checks {
			got, err := check.fn(ctx, user, ref)
			if err != nil {
				t.Fatalf("%s at %s failed: %v", check.name, step.level, err)
			}
			if got != check.want {
				t.Errorf("At level %s, %s = %v, want %v", step.level, check.name, got, check.want)
			}
		}
	}
}

func TestResolverMonotonicity(t *testing.T) {
	store, resolver := newTestResolver(t, staticGroups{})
	ctx := context.Background()

	ref := Ref{Type: TypeDashboard, ID: 1, CreatorID: 99}
	user := contributor(7)

	// A higher level must never lose a capability a lower level grants.
	ladder := []Level{LevelList, LevelRead, LevelWrite, LevelShare, LevelOwner}
	var prev Capabilities
	for _, level := range ladder {
		if err := store.UpdateUserPermission(ctx, ref, user.ID, level); err != nil {
			t.Fatalf("UpdateUserPermission(%s) failed: %v", level, err)
		}
		caps, err := resolver.AllPermissions(ctx, user, ref)
		if err != nil {
			t.Fatalf("AllPermissions failed: %v", err)
		}
		for name, had := range prev {
			if had && !caps[name] {
				t.Errorf("Capability %s lost when stepping up to %s", name, level)
			}
		}
		prev = caps
	}
}

func TestResolverCreatorBypass(t *testing.T) {
	store, resolver := newTestResolver(t, staticGroups{})
	ctx := context.Background()

	creator := contributor(42)
	ref := Ref{Type: TypeIndicator, ID: 5, CreatorID: creator.ID}

	// Even with everything locked down, the creator holds OWNER.
	if err := store.SetGeneral(ctx, ref, LevelNone, LevelNone); err != nil {
		t.Fatalf("SetGeneral failed: %v", err)
	}

	level, err := resolver.Level(ctx, creator, ref)
	if err != nil {
		t.Fatalf("Level failed: %v", err)
	}
	if level != LevelOwner {
		t.Errorf("Expected creator to hold OWNER, got %s", level)
	}

	allowed, err := resolver.HasDelete(ctx, creator, ref)
	if err != nil {
		t.Fatalf("HasDelete failed: %v", err)
	}
	if !allowed {
		t.Error("Expected creator to be allowed to delete")
	}
}

func TestResolverAdminBypass(t *testing.T) {
	store, resolver := newTestResolver(t, staticGroups{})
	ctx := context.Background()

	ref := Ref{Type: TypeHarvester, ID: 3, CreatorID: 99}
	if err := store.SetGeneral(ctx, ref, LevelNone, LevelNone); err != nil {
		t.Fatalf("SetGeneral failed: %v", err)
	}

	admins := []*auth.User{
		{ID: 1, Username: "super", Role: auth.RoleViewer, IsSuperuser: true},
		{ID: 2, Username: "staff", Role: auth.RoleViewer, IsStaff: true},
		{ID: 3, Username: "superadmin", Role: auth.RoleSuperAdmin},
	}
	for _, admin := range admins {
		level, err := resolver.Level(ctx, admin, ref)
		if err != nil {
			t.Fatalf("Level for %s failed: %v", admin.Username, err)
		}
		if level != LevelOwner {
			t.Errorf("Expected %s to hold OWNER, got %s", admin.Username, level)
		}
	}
}

func TestResolverAnonymousPublicOnly(t *testing.T) {
	store, resolver := newTestResolver(t, staticGroups{})
	ctx := context.Background()

	ref := Ref{Type: TypeBasemap, ID: 1, CreatorID: 99}

	// Organization READ, public LIST: anonymous callers only get the
	// public level.
	if err := store.SetGeneral(ctx, ref, LevelRead, LevelList); err != nil {
		t.Fatalf("SetGeneral failed: %v", err)
	}

	level, err := resolver.Level(ctx, nil, ref)
	if err != nil {
		t.Fatalf("Level failed: %v", err)
	}
	if level != LevelList {
		t.Errorf("Expected anonymous level LIST, got %s", level)
	}

	allowed, err := resolver.HasRead(ctx, nil, ref)
	if err != nil {
		t.Fatalf("HasRead failed: %v", err)
	}
	if allowed {
		t.Error("Expected anonymous read to be denied")
	}

	// Raise public to READ, anonymous read opens up.
	if err := store.SetGeneral(ctx, ref, LevelRead, LevelRead); err != nil {
		t.Fatalf("SetGeneral failed: %v", err)
	}
	allowed, err = resolver.HasRead(ctx, nil, ref)
	if err != nil {
		t.Fatalf("HasRead failed: %v", err)
	}
	if !allowed {
		t.Error("Expected anonymous read to be allowed at public READ")
	}
}

func TestResolverGroupMax(t *testing.T) {
	groups := staticGroups{7: {10, 20}}
	store, resolver := newTestResolver(t, groups)
	ctx := context.Background()

	ref := Ref{Type: TypeContextLayer, ID: 1, CreatorID: 99}
	user := contributor(7)

	if err := store.SetGeneral(ctx, ref, LevelNone, LevelNone); err != nil {
		t.Fatalf("SetGeneral failed: %v", err)
	}
	if err := store.UpdateGroupPermission(ctx, ref, 10, LevelList); err != nil {
		t.Fatalf("UpdateGroupPermission failed: %v", err)
	}
	if err := store.UpdateGroupPermission(ctx, ref, 20, LevelWriteData); err != nil {
		t.Fatalf("UpdateGroupPermission failed: %v", err)
	}

	// The highest group grant wins.
	level, err := resolver.Level(ctx, user, ref)
	if err != nil {
		t.Fatalf("Level failed: %v", err)
	}
	if level != LevelWriteData {
		t.Errorf("Expected WRITE_DATA from group membership, got %s", level)
	}

	// A user override below the group grant must not lower it.
	if err := store.UpdateUserPermission(ctx, ref, user.ID, LevelRead); err != nil {
		t.Fatalf("UpdateUserPermission failed: %v", err)
	}
	level, err = resolver.Level(ctx, user, ref)
	if err != nil {
		t.Fatalf("Level failed: %v", err)
	}
	if level != LevelWriteData {
		t.Errorf("Expected group WRITE_DATA to dominate user READ, got %s", level)
	}
}

func TestResolverMissingRowUsesDefaults(t *testing.T) {
	_, resolver := newTestResolver(t, staticGroups{})
	ctx := context.Background()

	// ReferenceLayerView defaults: public READ, organization READ.
	ref := Ref{Type: TypeReferenceLayerView, ID: 1}

	allowed, err := resolver.HasRead(ctx, nil, ref)
	if err != nil {
		t.Fatalf("HasRead failed: %v", err)
	}
	if !allowed {
		t.Error("Expected anonymous read of reference layer view by default")
	}

	allowed, err = resolver.HasEdit(ctx, contributor(7), ref)
	if err != nil {
		t.Fatalf("HasEdit failed: %v", err)
	}
	if allowed {
		t.Error("Expected edit to be denied by default")
	}
}

func TestResolverAllPermissionsDataKeys(t *testing.T) {
	_, resolver := newTestResolver(t, staticGroups{})
	ctx := context.Background()
	user := contributor(7)

	caps, err := resolver.AllPermissions(ctx, user, Ref{Type: TypeDashboard, ID: 1})
	if err != nil {
		t.Fatalf("AllPermissions failed: %v", err)
	}
	if _, ok := caps["read_data"]; ok {
		t.Error("Dashboards must not expose the read_data capability")
	}

	caps, err = resolver.AllPermissions(ctx, user, Ref{Type: TypeIndicator, ID: 1})
	if err != nil {
		t.Fatalf("AllPermissions failed: %v", err)
	}
	if _, ok := caps["read_data"]; !ok {
		t.Error("Indicators must expose the read_data capability")
	}
	if _, ok := caps["edit_data"]; !ok {
		t.Error("Indicators must expose the edit_data capability")
	}
}

func TestResolverUnknownLevelGrantsNothing(t *testing.T) {
	store, resolver := newTestResolver(t, staticGroups{})
	ctx := context.Background()

	ref := Ref{Type: TypeIndicator, ID: 1, CreatorID: 99}
	row, err := store.GetOrCreate(ctx, ref)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	// Corrupt the stored level directly; the resolver must treat it as
	// below NONE rather than granting anything.
	if _, err := store.db.ExecContext(ctx,
		`UPDATE permissions SET public_permission = 'BOGUS', organization_permission = 'BOGUS' WHERE id = $1`,
		row.ID,
	); err != nil {
		t.Fatalf("Failed to corrupt row: %v", err)
	}

	allowed, err := resolver.HasList(ctx, contributor(7), ref)
	if err != nil {
		t.Fatalf("HasList failed: %v", err)
	}
	if allowed {
		t.Error("Expected corrupt level to deny list")
	}
}

func TestGuardsReturnResourceDenied(t *testing.T) {
	store, resolver := newTestResolver(t, staticGroups{})
	ctx := context.Background()

	ref := Ref{Type: TypeIndicator, ID: 1, CreatorID: 99}
	if err := store.SetGeneral(ctx, ref, LevelNone, LevelNone); err != nil {
		t.Fatalf("SetGeneral failed: %v", err)
	}

	if err := resolver.RequireRead(ctx, contributor(7), ref); err != ErrResourceDenied {
		t.Errorf("Expected ErrResourceDenied, got %v", err)
	}
	if err := resolver.RequireRead(ctx, &auth.User{ID: 1, IsSuperuser: true}, ref); err != nil {
		t.Errorf("Expected admin to pass guard, got %v", err)
	}
}
