package permission

import (
	"context"

	"github.com/unicef-drp/geosight/pkg/auth"
)

// Guards wrap the resolver checks into call-site friendly helpers that
// return ErrResourceDenied instead of a boolean. Service code fails a
// request with a single line:
//
//	if err := resolver.RequireEdit(ctx, user, dash.PermissionRef()); err != nil {
//		return err
//	}

func (r *Resolver) require(ctx context.Context, user *auth.User, ref Ref, check string, min Level) error {
	allowed, err := r.has(ctx, user, ref, check, min)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrResourceDenied
	}
	return nil
}

// RequireList fails with ErrResourceDenied unless the user holds LIST
func (r *Resolver) RequireList(ctx context.Context, user *auth.User, ref Ref) error {
	return r.require(ctx, user, ref, "list", minList)
}

// RequireRead fails with ErrResourceDenied unless the user holds READ
func (r *Resolver) RequireRead(ctx context.Context, user *auth.User, ref Ref) error {
	return r.require(ctx, user, ref, "read", minRead)
}

// RequireReadData fails with ErrResourceDenied unless the user holds READ_DATA
func (r *Resolver) RequireReadData(ctx context.Context, user *auth.User, ref Ref) error {
	return r.require(ctx, user, ref, "read_data", minReadData)
}

// RequireEdit fails with ErrResourceDenied unless the user holds WRITE
func (r *Resolver) RequireEdit(ctx context.Context, user *auth.User, ref Ref) error {
	return r.require(ctx, user, ref, "edit", minEdit)
}

// RequireEditData fails with ErrResourceDenied unless the user holds WRITE_DATA
func (r *Resolver) RequireEditData(ctx context.Context, user *auth.User, ref Ref) error {
	return r.require(ctx, user, ref, "edit_data", minEditData)
}

// RequireShare fails with ErrResourceDenied unless the user holds SHARE
func (r *Resolver) RequireShare(ctx context.Context, user *auth.User, ref Ref) error {
	return r.require(ctx, user, ref, "share", minShare)
}

// RequireDelete fails with ErrResourceDenied unless the user holds OWNER
func (r *Resolver) RequireDelete(ctx context.Context, user *auth.User, ref Ref) error {
	return r.require(ctx, user, ref, "delete", minDelete)
}
