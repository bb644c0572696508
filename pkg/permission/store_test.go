package permission

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
)

func TestStoreGetOrCreateUsesDefaults(t *testing.T) {
	store := NewStore(setupTestDB(t), NewPolicy(), NewRegistry())
	ctx := context.Background()

	row, err := store.GetOrCreate(ctx, Ref{Type: TypeBasemap, ID: 1})
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	// Basemap defaults: public LIST, organization READ.
	if row.PublicPermission != LevelList {
		t.Errorf("Expected public LIST, got %s", row.PublicPermission)
	}
	if row.OrganizationPermission != LevelRead {
		t.Errorf("Expected organization READ, got %s", row.OrganizationPermission)
	}

	// Second call returns the same row, no duplicate.
	again, err := store.GetOrCreate(ctx, Ref{Type: TypeBasemap, ID: 1})
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if again.ID != row.ID {
		t.Errorf("Expected the same permission row, got %d and %d", row.ID, again.ID)
	}
}

func TestStoreRejectsUnofferedLevels(t *testing.T) {
	store := NewStore(setupTestDB(t), NewPolicy(), NewRegistry())
	ctx := context.Background()
	ref := Ref{Type: TypeDashboard, ID: 1}

	// Dashboards are metadata-only; READ_DATA is not offered anywhere.
	if err := store.UpdateUserPermission(ctx, ref, 7, LevelReadData); !errors.Is(err, ErrInvalidLevel) {
		t.Errorf("Expected ErrInvalidLevel for READ_DATA on dashboard, got %v", err)
	}

	// OWNER is never a public choice.
	if err := store.SetGeneral(ctx, ref, LevelList, LevelOwner); !errors.Is(err, ErrInvalidLevel) {
		t.Errorf("Expected ErrInvalidLevel for public OWNER, got %v", err)
	}

	// Unknown level names are rejected outright.
	if err := store.UpdateGroupPermission(ctx, ref, 3, Level("ROOT")); !errors.Is(err, ErrInvalidLevel) {
		t.Errorf("Expected ErrInvalidLevel for unknown level, got %v", err)
	}
}

func TestStoreNotifiesRegistryOnWrites(t *testing.T) {
	registry := NewRegistry()
	store := NewStore(setupTestDB(t), NewPolicy(), registry)
	ctx := context.Background()
	ref := Ref{Type: TypeIndicator, ID: 9}

	var events int
	registry.Subscribe(SubscriberFunc(func(_ context.Context, rt ResourceType, id int64) {
		if rt != TypeIndicator || id != 9 {
			t.Errorf("Unexpected event for %s/%d", rt, id)
		}
		events++
	}))

	if err := store.SetGeneral(ctx, ref, LevelList, LevelNone); err != nil {
		t.Fatalf("SetGeneral failed: %v", err)
	}
	if err := store.UpdateUserPermission(ctx, ref, 7, LevelRead); err != nil {
		t.Fatalf("UpdateUserPermission failed: %v", err)
	}
	if err := store.UpdateGroupPermission(ctx, ref, 3, LevelRead); err != nil {
		t.Fatalf("UpdateGroupPermission failed: %v", err)
	}
	if err := store.DeleteUserPermission(ctx, ref, 7); err != nil {
		t.Fatalf("DeleteUserPermission failed: %v", err)
	}
	if err := store.DeleteGroupPermission(ctx, ref, 3); err != nil {
		t.Fatalf("DeleteGroupPermission failed: %v", err)
	}
	if err := store.DeleteForResource(ctx, ref); err != nil {
		t.Fatalf("DeleteForResource failed: %v", err)
	}

	if events != 6 {
		t.Errorf("Expected 6 change events, got %d", events)
	}

	// Reads must not notify.
	before := events
	if _, err := store.Get(ctx, TypeIndicator, 9); err != ErrNotFound {
		t.Fatalf("Expected ErrNotFound after delete, got %v", err)
	}
	if events != before {
		t.Errorf("Read produced %d unexpected events", events-before)
	}
}

func TestStoreDeleteOverrideIsIdempotent(t *testing.T) {
	store := NewStore(setupTestDB(t), NewPolicy(), NewRegistry())
	ctx := context.Background()

	// Deleting overrides of a resource without a permission row is a no-op.
	if err := store.DeleteUserPermission(ctx, Ref{Type: TypeStyle, ID: 404}, 7); err != nil {
		t.Errorf("Expected nil for missing row, got %v", err)
	}
	if err := store.DeleteForResource(ctx, Ref{Type: TypeStyle, ID: 404}); err != nil {
		t.Errorf("Expected nil for missing row, got %v", err)
	}
}

func TestStoreGroupMax(t *testing.T) {
	store := NewStore(setupTestDB(t), NewPolicy(), NewRegistry())
	ctx := context.Background()
	ref := Ref{Type: TypeRelatedTable, ID: 1}

	row, err := store.GetOrCreate(ctx, ref)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	if _, found, err := store.GroupMax(ctx, row.ID, nil); err != nil || found {
		t.Errorf("Expected no grant for empty group list, got found=%v err=%v", found, err)
	}

	if err := store.UpdateGroupPermission(ctx, ref, 1, LevelList); err != nil {
		t.Fatalf("UpdateGroupPermission failed: %v", err)
	}
	if err := store.UpdateGroupPermission(ctx, ref, 2, LevelShare); err != nil {
		t.Fatalf("UpdateGroupPermission failed: %v", err)
	}

	level, found, err := store.GroupMax(ctx, row.ID, []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("GroupMax failed: %v", err)
	}
	if !found || level != LevelShare {
		t.Errorf("Expected SHARE, got found=%v level=%s", found, level)
	}
}

func TestStoreQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	store := NewStore(db, NewPolicy(), NewRegistry())

	mock.ExpectQuery("SELECT id, resource_type").WillReturnError(errors.New("connection refused"))

	if _, err := store.Get(context.Background(), TypeDashboard, 1); err == nil {
		t.Error("Expected error from failing query")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet sqlmock expectations: %v", err)
	}
}
