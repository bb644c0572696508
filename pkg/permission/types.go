package permission

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ResourceType identifies a protected resource kind
type ResourceType string

const (
	TypeDashboard          ResourceType = "dashboard"
	TypeIndicator          ResourceType = "indicator"
	TypeContextLayer       ResourceType = "context_layer"
	TypeRelatedTable       ResourceType = "related_table"
	TypeReferenceLayerView ResourceType = "reference_layer_view"
	TypeHarvester          ResourceType = "harvester"
	TypeGroup              ResourceType = "group"
	TypeBasemap            ResourceType = "basemap"
	TypeStyle              ResourceType = "style"
	TypeCloudNativeGIS     ResourceType = "cloud_native_gis_layer"
)

// ResourceTypes lists every protected resource kind
func ResourceTypes() []ResourceType {
	return []ResourceType{
		TypeDashboard,
		TypeIndicator,
		TypeContextLayer,
		TypeRelatedTable,
		TypeReferenceLayerView,
		TypeHarvester,
		TypeGroup,
		TypeBasemap,
		TypeStyle,
		TypeCloudNativeGIS,
	}
}

var dataCapable = map[ResourceType]bool{
	TypeIndicator:          true,
	TypeContextLayer:       true,
	TypeRelatedTable:       true,
	TypeReferenceLayerView: true,
	TypeCloudNativeGIS:     true,
}

// DataCapable reports whether the read_data/edit_data checks apply to
// the resource type. Dashboards and other metadata-only resources never
// expose the data levels.
func DataCapable(rt ResourceType) bool {
	return dataCapable[rt]
}

// ParseResourceType validates a resource type name
func ParseResourceType(name string) (ResourceType, error) {
	rt := ResourceType(name)
	for _, known := range ResourceTypes() {
		if rt == known {
			return rt, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownResourceType, name)
}

// Ref identifies one protected resource instance. CreatorID is zero
// when the resource has no recorded creator.
type Ref struct {
	Type      ResourceType
	ID        int64
	CreatorID int64
}

// Protected is implemented by every resource model subject to access
// control.
type Protected interface {
	PermissionRef() Ref
}

// RefLookup resolves a (type, id) pair to a full Ref. Implemented by
// the resource catalog so the permission handlers can find creators
// without importing every resource store.
type RefLookup interface {
	Lookup(ctx context.Context, rt ResourceType, id int64) (Ref, error)
}

// Row is the single ACL row owned by a protected resource. Exactly one
// exists per resource instance, created lazily on first access.
type Row struct {
	ID                     int64        `json:"id"`
	ResourceType           ResourceType `json:"resource_type"`
	ResourceID             int64        `json:"resource_id"`
	OrganizationPermission Level        `json:"organization_permission"`
	PublicPermission       Level        `json:"public_permission"`
	UpdatedAt              time.Time    `json:"updated_at"`
}

// UserPermission is a per-user override on a permission row
type UserPermission struct {
	ID           int64 `json:"id"`
	PermissionID int64 `json:"permission_id"`
	UserID       int64 `json:"user_id"`
	Level        Level `json:"level"`
}

// GroupPermission is a per-group override on a permission row
type GroupPermission struct {
	ID           int64 `json:"id"`
	PermissionID int64 `json:"permission_id"`
	GroupID      int64 `json:"group_id"`
	Level        Level `json:"level"`
}

// Capabilities is the capability set for one user on one resource, the
// JSON shape consumed by API clients and the dashboard cache. The
// read_data/edit_data keys are present only for data-capable types.
type Capabilities map[string]bool

// Errors surfaced by the permission core. Handlers map
// ErrPermissionDenied and ErrResourceDenied to HTTP 403.
var (
	// ErrPermissionDenied is returned when a user below Creator tries
	// to create a protected resource
	ErrPermissionDenied = errors.New("creator role required")

	// ErrResourceDenied is returned by the per-object guards
	ErrResourceDenied = errors.New("you are not allowed to access this resource")

	// ErrInvalidLevel is returned for unknown level names or levels not
	// offered for the resource type and scope
	ErrInvalidLevel = errors.New("invalid permission level")

	// ErrNotFound is returned when a permission row or override is missing
	ErrNotFound = errors.New("permission not found")

	// ErrUnknownResourceType is returned for resource type names outside
	// the catalog
	ErrUnknownResourceType = errors.New("unknown resource type")
)
