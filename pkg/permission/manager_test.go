package permission

import (
	"context"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/unicef-drp/geosight/pkg/auth"
)

func newTestManager(t *testing.T, groups GroupLister) (*Store, *Manager) {
	t.Helper()
	store := NewStore(setupTestDB(t), NewPolicy(), NewRegistry())
	resolver := NewResolver(store, groups, nil)
	return store, NewManager(store, resolver, groups)
}

func TestManagerPrepareCreate(t *testing.T) {
	_, manager := newTestManager(t, staticGroups{})
	ctx := context.Background()

	cases := []struct {
		user    *auth.User
		allowed bool
	}{
		{nil, false},
		{&auth.User{ID: 1, Role: auth.RoleViewer}, false},
		{&auth.User{ID: 2, Role: auth.RoleContributor}, false},
		{&auth.User{ID: 3, Role: auth.RoleCreator}, true},
		{&auth.User{ID: 4, Role: auth.RoleSuperAdmin}, true},
		{&auth.User{ID: 5, Role: auth.RoleViewer, IsStaff: true}, true},
		{&auth.User{ID: 6, Role: auth.Role("")}, false},
	}

	for _, tc := range cases {
		err := manager.PrepareCreate(ctx, tc.user)
		if tc.allowed && err != nil {
			t.Errorf("Expected user %+v to be allowed to create, got %v", tc.user, err)
		}
		if !tc.allowed && !errors.Is(err, ErrPermissionDenied) {
			t.Errorf("Expected ErrPermissionDenied for user %+v, got %v", tc.user, err)
		}
	}
}

func TestManagerCreatedMaterializesRow(t *testing.T) {
	store, manager := newTestManager(t, staticGroups{})
	ctx := context.Background()

	row, err := manager.Created(ctx, Ref{Type: TypeIndicator, ID: 11, CreatorID: 3})
	if err != nil {
		t.Fatalf("Created failed: %v", err)
	}
	if row.OrganizationPermission != LevelList {
		t.Errorf("Expected indicator default organization LIST, got %s", row.OrganizationPermission)
	}

	if _, err := store.Get(ctx, TypeIndicator, 11); err != nil {
		t.Errorf("Expected permission row to exist, got %v", err)
	}
}

func TestManagerFilterIDs(t *testing.T) {
	store, manager := newTestManager(t, staticGroups{7: {20}})
	ctx := context.Background()
	user := &auth.User{ID: 7, Role: auth.RoleContributor}

	refs := []Ref{
		{Type: TypeIndicator, ID: 1, CreatorID: 7},  // creator bypass
		{Type: TypeIndicator, ID: 2, CreatorID: 99}, // user override WRITE
		{Type: TypeIndicator, ID: 3, CreatorID: 99}, // group override READ
		{Type: TypeIndicator, ID: 4, CreatorID: 99}, // locked down
		{Type: TypeIndicator, ID: 5, CreatorID: 99}, // no row, defaults
	}

	if err := store.UpdateUserPermission(ctx, refs[1], user.ID, LevelWrite); err != nil {
		t.Fatalf("UpdateUserPermission failed: %v", err)
	}
	if err := store.UpdateGroupPermission(ctx, refs[2], 20, LevelRead); err != nil {
		t.Fatalf("UpdateGroupPermission failed: %v", err)
	}
	if err := store.SetGeneral(ctx, refs[3], LevelNone, LevelNone); err != nil {
		t.Fatalf("SetGeneral failed: %v", err)
	}

	// Indicator defaults are organization LIST, so 1, 2, 3 and 5 are
	// listable; 4 was locked down but 2 and 3 hold overrides above LIST.
	listable, err := manager.ListIDs(ctx, user, TypeIndicator, refs)
	if err != nil {
		t.Fatalf("ListIDs failed: %v", err)
	}
	assertIDs(t, "list", listable, []int64{1, 2, 3, 5})

	readable, err := manager.ReadIDs(ctx, user, TypeIndicator, refs)
	if err != nil {
		t.Fatalf("ReadIDs failed: %v", err)
	}
	assertIDs(t, "read", readable, []int64{1, 2, 3})

	editable, err := manager.EditIDs(ctx, user, TypeIndicator, refs)
	if err != nil {
		t.Fatalf("EditIDs failed: %v", err)
	}
	assertIDs(t, "edit", editable, []int64{1, 2})

	deletable, err := manager.DeleteIDs(ctx, user, TypeIndicator, refs)
	if err != nil {
		t.Fatalf("DeleteIDs failed: %v", err)
	}
	assertIDs(t, "delete", deletable, []int64{1})
}

func TestManagerFilterIDsAdminSeesAll(t *testing.T) {
	store, manager := newTestManager(t, staticGroups{})
	ctx := context.Background()

	refs := []Ref{
		{Type: TypeHarvester, ID: 1, CreatorID: 99},
		{Type: TypeHarvester, ID: 2, CreatorID: 99},
	}
	if err := store.SetGeneral(ctx, refs[0], LevelNone, LevelNone); err != nil {
		t.Fatalf("SetGeneral failed: %v", err)
	}

	admin := &auth.User{ID: 1, IsSuperuser: true}
	ids, err := manager.DeleteIDs(ctx, admin, TypeHarvester, refs)
	if err != nil {
		t.Fatalf("DeleteIDs failed: %v", err)
	}
	assertIDs(t, "admin delete", ids, []int64{1, 2})
}

func TestManagerFilterIDsAnonymous(t *testing.T) {
	store, manager := newTestManager(t, staticGroups{})
	ctx := context.Background()

	refs := []Ref{
		{Type: TypeBasemap, ID: 1, CreatorID: 99},
		{Type: TypeBasemap, ID: 2, CreatorID: 99},
	}
	// Basemap defaults: public LIST. Lock the second one down.
	if err := store.SetGeneral(ctx, refs[1], LevelNone, LevelNone); err != nil {
		t.Fatalf("SetGeneral failed: %v", err)
	}

	ids, err := manager.ListIDs(ctx, nil, TypeBasemap, refs)
	if err != nil {
		t.Fatalf("ListIDs failed: %v", err)
	}
	assertIDs(t, "anonymous list", ids, []int64{1})
}

func assertIDs(t *testing.T, name string, got, want []int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("%s: got %v, want %v", name, got, want)
		return
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%s: got %v, want %v", name, got, want)
			return
		}
	}
}
