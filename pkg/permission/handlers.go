package permission

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/unicef-drp/geosight/pkg/auth"
	"github.com/unicef-drp/geosight/pkg/httputil"
)

// Handlers exposes the sharing API: read and replace a resource's ACL,
// query the caller's capabilities, and batch-apply levels across many
// resources at once.
type Handlers struct {
	store    *Store
	resolver *Resolver
	lookup   RefLookup
}

// NewHandlers creates the permission handlers
func NewHandlers(store *Store, resolver *Resolver, lookup RefLookup) *Handlers {
	return &Handlers{store: store, resolver: resolver, lookup: lookup}
}

// RegisterRoutes registers the sharing API on the given router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/{type}/{id:[0-9]+}/access", h.GetAccess).Methods("GET")
	router.HandleFunc("/{type}/{id:[0-9]+}/access", h.UpdateAccess).Methods("PUT")
	router.HandleFunc("/{type}/{id:[0-9]+}/access/me", h.MyAccess).Methods("GET")
	router.HandleFunc("/permission/dataset", h.UpdateDataset).Methods("POST")
}

func (h *Handlers) resolveRef(r *http.Request) (Ref, error) {
	typeName, err := httputil.PathString(r, "type")
	if err != nil {
		return Ref{}, err
	}
	rt, err := ParseResourceType(typeName)
	if err != nil {
		return Ref{}, err
	}
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		return Ref{}, err
	}
	return h.lookup.Lookup(r.Context(), rt, id)
}

func writePermissionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidLevel), errors.Is(err, ErrUnknownResourceType):
		httputil.WriteBadRequest(w, err.Error())
	case errors.Is(err, ErrResourceDenied), errors.Is(err, ErrPermissionDenied):
		httputil.WriteForbidden(w, err.Error())
	case errors.Is(err, ErrNotFound):
		httputil.WriteNotFound(w, err.Error())
	default:
		httputil.WriteInternalError(w, err)
	}
}

// AccessResponse is the full ACL of one resource plus the level choices
// its type offers, so clients can render the sharing form without a
// second round-trip.
type AccessResponse struct {
	ResourceType           ResourceType      `json:"resource_type"`
	ResourceID             int64             `json:"resource_id"`
	OrganizationPermission Level             `json:"organization_permission"`
	PublicPermission       Level             `json:"public_permission"`
	UserPermissions        []UserPermission  `json:"user_permissions"`
	GroupPermissions       []GroupPermission `json:"group_permissions"`
	Choices                Default           `json:"choices"`
}

// GetAccess returns the ACL of a resource. Requires SHARE.
func (h *Handlers) GetAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := auth.UserFromRequest(r)

	ref, err := h.resolveRef(r)
	if err != nil {
		writePermissionError(w, err)
		return
	}

	if err := h.resolver.RequireShare(ctx, user, ref); err != nil {
		writePermissionError(w, err)
		return
	}

	row, err := h.store.GetOrCreate(ctx, ref)
	if err != nil {
		writePermissionError(w, err)
		return
	}

	users, err := h.store.ListUserPermissions(ctx, row.ID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	groups, err := h.store.ListGroupPermissions(ctx, row.ID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, AccessResponse{
		ResourceType:           ref.Type,
		ResourceID:             ref.ID,
		OrganizationPermission: row.OrganizationPermission,
		PublicPermission:       row.PublicPermission,
		UserPermissions:        users,
		GroupPermissions:       groups,
		Choices:                h.store.Policy().For(ref.Type),
	})
}

// UpdateAccessRequest replaces a resource's ACL. Overrides absent from
// the lists are removed.
type UpdateAccessRequest struct {
	OrganizationPermission Level `json:"organization_permission"`
	PublicPermission       Level `json:"public_permission"`
	UserPermissions        []struct {
		UserID int64 `json:"user_id"`
		Level  Level `json:"level"`
	} `json:"user_permissions"`
	GroupPermissions []struct {
		GroupID int64 `json:"group_id"`
		Level   Level `json:"level"`
	} `json:"group_permissions"`
}

// UpdateAccess replaces the ACL of a resource. Requires SHARE.
func (h *Handlers) UpdateAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := auth.UserFromRequest(r)

	ref, err := h.resolveRef(r)
	if err != nil {
		writePermissionError(w, err)
		return
	}

	if err := h.resolver.RequireShare(ctx, user, ref); err != nil {
		writePermissionError(w, err)
		return
	}

	var req UpdateAccessRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	// Validate the whole request before the first write so a bad entry
	// cannot leave the ACL half-applied.
	if err := h.store.Policy().Validate(ref.Type, ScopeOrganization, req.OrganizationPermission); err != nil {
		writePermissionError(w, err)
		return
	}
	if err := h.store.Policy().Validate(ref.Type, ScopePublic, req.PublicPermission); err != nil {
		writePermissionError(w, err)
		return
	}
	for _, up := range req.UserPermissions {
		if err := h.store.Policy().Validate(ref.Type, ScopeUser, up.Level); err != nil {
			writePermissionError(w, fmt.Errorf("user %d: %w", up.UserID, err))
			return
		}
	}
	for _, gp := range req.GroupPermissions {
		if err := h.store.Policy().Validate(ref.Type, ScopeGroup, gp.Level); err != nil {
			writePermissionError(w, fmt.Errorf("group %d: %w", gp.GroupID, err))
			return
		}
	}

	row, err := h.store.GetOrCreate(ctx, ref)
	if err != nil {
		writePermissionError(w, err)
		return
	}

	if err := h.store.SetGeneral(ctx, ref, req.OrganizationPermission, req.PublicPermission); err != nil {
		writePermissionError(w, err)
		return
	}

	keepUsers := make(map[int64]bool, len(req.UserPermissions))
	for _, up := range req.UserPermissions {
		keepUsers[up.UserID] = true
		if err := h.store.UpdateUserPermission(ctx, ref, up.UserID, up.Level); err != nil {
			writePermissionError(w, err)
			return
		}
	}
	existingUsers, err := h.store.ListUserPermissions(ctx, row.ID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	for _, up := range existingUsers {
		if !keepUsers[up.UserID] {
			if err := h.store.DeleteUserPermission(ctx, ref, up.UserID); err != nil {
				writePermissionError(w, err)
				return
			}
		}
	}

	keepGroups := make(map[int64]bool, len(req.GroupPermissions))
	for _, gp := range req.GroupPermissions {
		keepGroups[gp.GroupID] = true
		if err := h.store.UpdateGroupPermission(ctx, ref, gp.GroupID, gp.Level); err != nil {
			writePermissionError(w, err)
			return
		}
	}
	existingGroups, err := h.store.ListGroupPermissions(ctx, row.ID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	for _, gp := range existingGroups {
		if !keepGroups[gp.GroupID] {
			if err := h.store.DeleteGroupPermission(ctx, ref, gp.GroupID); err != nil {
				writePermissionError(w, err)
				return
			}
		}
	}

	h.GetAccess(w, r)
}

// MyAccess returns the caller's capability set on a resource. Open to
// any caller, including anonymous.
func (h *Handlers) MyAccess(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromRequest(r)

	ref, err := h.resolveRef(r)
	if err != nil {
		writePermissionError(w, err)
		return
	}

	caps, err := h.resolver.AllPermissions(r.Context(), user, ref)
	if err != nil {
		writePermissionError(w, err)
		return
	}
	httputil.WriteSuccess(w, caps)
}

// DatasetGeneral is one batch entry setting a resource's general levels
type DatasetGeneral struct {
	ResourceType           ResourceType `json:"resource_type"`
	ResourceID             int64        `json:"resource_id"`
	OrganizationPermission Level        `json:"organization_permission"`
	PublicPermission       Level        `json:"public_permission"`
}

// DatasetUser is one batch entry setting a per-user override
type DatasetUser struct {
	ResourceType ResourceType `json:"resource_type"`
	ResourceID   int64        `json:"resource_id"`
	UserID       int64        `json:"user_id"`
	Level        Level        `json:"level"`
}

// DatasetGroup is one batch entry setting a per-group override
type DatasetGroup struct {
	ResourceType ResourceType `json:"resource_type"`
	ResourceID   int64        `json:"resource_id"`
	GroupID      int64        `json:"group_id"`
	Level        Level        `json:"level"`
}

// UpdateDatasetRequest applies levels across many resources in one call
type UpdateDatasetRequest struct {
	Generals []DatasetGeneral `json:"generals"`
	Users    []DatasetUser    `json:"users"`
	Groups   []DatasetGroup   `json:"groups"`
}

// UpdateDatasetResponse reports how many entries were applied and which
// resources the caller could not share.
type UpdateDatasetResponse struct {
	Applied int      `json:"applied"`
	Denied  []string `json:"denied,omitempty"`
}

// UpdateDataset batch-applies permission levels. Entries on resources
// the caller cannot SHARE are skipped and reported, not failed, so a
// partial grant over a large dataset still lands.
func (h *Handlers) UpdateDataset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := auth.UserFromRequest(r)
	if user == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req UpdateDatasetRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	var resp UpdateDatasetResponse
	shareable := make(map[Ref]bool)

	canShare := func(rt ResourceType, id int64) (Ref, bool, error) {
		ref, err := h.lookup.Lookup(ctx, rt, id)
		if err != nil {
			return Ref{}, false, err
		}
		if allowed, ok := shareable[ref]; ok {
			return ref, allowed, nil
		}
		allowed, err := h.resolver.HasShare(ctx, user, ref)
		if err != nil {
			return Ref{}, false, err
		}
		shareable[ref] = allowed
		return ref, allowed, nil
	}

	deny := func(rt ResourceType, id int64) {
		resp.Denied = append(resp.Denied, fmt.Sprintf("%s/%d", rt, id))
	}

	for _, entry := range req.Generals {
		ref, allowed, err := canShare(entry.ResourceType, entry.ResourceID)
		if err != nil {
			writePermissionError(w, err)
			return
		}
		if !allowed {
			deny(entry.ResourceType, entry.ResourceID)
			continue
		}
		if err := h.store.SetGeneral(ctx, ref, entry.OrganizationPermission, entry.PublicPermission); err != nil {
			writePermissionError(w, err)
			return
		}
		resp.Applied++
	}

	for _, entry := range req.Users {
		ref, allowed, err := canShare(entry.ResourceType, entry.ResourceID)
		if err != nil {
			writePermissionError(w, err)
			return
		}
		if !allowed {
			deny(entry.ResourceType, entry.ResourceID)
			continue
		}
		if err := h.store.UpdateUserPermission(ctx, ref, entry.UserID, entry.Level); err != nil {
			writePermissionError(w, err)
			return
		}
		resp.Applied++
	}

	for _, entry := range req.Groups {
		ref, allowed, err := canShare(entry.ResourceType, entry.ResourceID)
		if err != nil {
			writePermissionError(w, err)
			return
		}
		if !allowed {
			deny(entry.ResourceType, entry.ResourceID)
			continue
		}
		if err := h.store.UpdateGroupPermission(ctx, ref, entry.GroupID, entry.Level); err != nil {
			writePermissionError(w, err)
			return
		}
		resp.Applied++
	}

	httputil.WriteSuccess(w, resp)
}
