package permission

import (
	"context"

	"github.com/unicef-drp/geosight/pkg/auth"
)

// GroupLister resolves the groups a user belongs to. Satisfied by
// auth.Store.
type GroupLister interface {
	GroupIDs(ctx context.Context, userID int64) ([]int64, error)
}

// CheckObserver receives the outcome of every per-object check, for
// metrics. May be nil.
type CheckObserver func(rt ResourceType, check string, allowed bool)

// Resolver computes effective permission levels and answers the named
// per-object checks. Evaluation order: admin bypass, creator bypass,
// then the maximum of public, organization, user override and group
// overrides.
type Resolver struct {
	store   *Store
	groups  GroupLister
	observe CheckObserver
}

// NewResolver creates a resolver over the given store
func NewResolver(store *Store, groups GroupLister, observe CheckObserver) *Resolver {
	return &Resolver{store: store, groups: groups, observe: observe}
}

// Level returns the effective permission level of a user on a resource.
// Anonymous callers (nil user) are evaluated against the public level
// only. A missing permission row counts as the catalog defaults for the
// resource type; reads never create rows.
func (r *Resolver) Level(ctx context.Context, user *auth.User, ref Ref) (Level, error) {
	if auth.IsAdmin(user) {
		return LevelOwner, nil
	}
	if user != nil && ref.CreatorID != 0 && ref.CreatorID == user.ID {
		return LevelOwner, nil
	}

	row, err := r.store.Get(ctx, ref.Type, ref.ID)
	if err == ErrNotFound {
		def := r.store.Policy().For(ref.Type)
		if user == nil {
			return def.DefaultPublic, nil
		}
		return maxLevel(def.DefaultPublic, def.DefaultOrganization), nil
	}
	if err != nil {
		return LevelNone, err
	}

	if user == nil {
		return row.PublicPermission, nil
	}

	effective := maxLevel(row.PublicPermission, row.OrganizationPermission)

	if override, ok, err := r.store.UserOverride(ctx, row.ID, user.ID); err != nil {
		return LevelNone, err
	} else if ok {
		effective = maxLevel(effective, override)
	}

	if r.groups != nil {
		groupIDs, err := r.groups.GroupIDs(ctx, user.ID)
		if err != nil {
			return LevelNone, err
		}
		if groupMax, ok, err := r.store.GroupMax(ctx, row.ID, groupIDs); err != nil {
			return LevelNone, err
		} else if ok {
			effective = maxLevel(effective, groupMax)
		}
	}

	return effective, nil
}

func (r *Resolver) has(ctx context.Context, user *auth.User, ref Ref, check string, min Level) (bool, error) {
	level, err := r.Level(ctx, user, ref)
	if err != nil {
		return false, err
	}
	allowed := level.AtLeast(min)
	if r.observe != nil {
		r.observe(ref.Type, check, allowed)
	}
	return allowed, nil
}

// HasList reports whether the user may see the resource in listings
func (r *Resolver) HasList(ctx context.Context, user *auth.User, ref Ref) (bool, error) {
	return r.has(ctx, user, ref, "list", minList)
}

// HasRead reports whether the user may read the resource's metadata
func (r *Resolver) HasRead(ctx context.Context, user *auth.User, ref Ref) (bool, error) {
	return r.has(ctx, user, ref, "read", minRead)
}

// HasReadData reports whether the user may read the resource's data
func (r *Resolver) HasReadData(ctx context.Context, user *auth.User, ref Ref) (bool, error) {
	return r.has(ctx, user, ref, "read_data", minReadData)
}

// HasEdit reports whether the user may edit the resource's metadata
func (r *Resolver) HasEdit(ctx context.Context, user *auth.User, ref Ref) (bool, error) {
	return r.has(ctx, user, ref, "edit", minEdit)
}

// HasEditData reports whether the user may edit the resource's data
func (r *Resolver) HasEditData(ctx context.Context, user *auth.User, ref Ref) (bool, error) {
	return r.has(ctx, user, ref, "edit_data", minEditData)
}

// HasShare reports whether the user may change the resource's ACL
func (r *Resolver) HasShare(ctx context.Context, user *auth.User, ref Ref) (bool, error) {
	return r.has(ctx, user, ref, "share", minShare)
}

// HasDelete reports whether the user may delete the resource
func (r *Resolver) HasDelete(ctx context.Context, user *auth.User, ref Ref) (bool, error) {
	return r.has(ctx, user, ref, "delete", minDelete)
}

// AllPermissions returns the full capability set of a user on a
// resource with a single level computation. The read_data/edit_data
// keys are included only for data-capable resource types.
func (r *Resolver) AllPermissions(ctx context.Context, user *auth.User, ref Ref) (Capabilities, error) {
	level, err := r.Level(ctx, user, ref)
	if err != nil {
		return nil, err
	}

	caps := Capabilities{
		"list":   level.AtLeast(minList),
		"read":   level.AtLeast(minRead),
		"edit":   level.AtLeast(minEdit),
		"share":  level.AtLeast(minShare),
		"delete": level.AtLeast(minDelete),
	}
	if DataCapable(ref.Type) {
		caps["read_data"] = level.AtLeast(minReadData)
		caps["edit_data"] = level.AtLeast(minEditData)
	}
	return caps, nil
}
