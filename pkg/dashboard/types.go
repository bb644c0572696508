// Package dashboard implements dashboards, their embedded resource
// links, and the per-(dashboard, user) permission cache that lets the
// frontend render a dashboard without re-evaluating the ACL of every
// embedded resource on each request.
package dashboard

import (
	"time"

	"github.com/unicef-drp/geosight/pkg/permission"
)

// Dashboard is a configured collection of indicators, context layers
// and related tables.
type Dashboard struct {
	ID          int64     `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatorID   int64     `json:"creator_id"`
	ModifiedBy  int64     `json:"modified_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ModifiedAt  time.Time `json:"modified_at"`
}

// PermissionRef implements permission.Protected
func (d *Dashboard) PermissionRef() permission.Ref {
	return permission.Ref{Type: permission.TypeDashboard, ID: d.ID, CreatorID: d.CreatorID}
}

// Embed is one embedded resource link with its display order
type Embed struct {
	ObjectID int64 `json:"object_id"`
	Order    int   `json:"order"`
}

// Bundle is the cached permission payload for one (dashboard, user)
// pair. Keys are embedded resource IDs in decimal; each leaf carries
// the capability set the user holds on that resource.
type Bundle struct {
	Indicators    map[string]BundleLeaf `json:"indicators"`
	ContextLayers map[string]BundleLeaf `json:"context_layers"`
	RelatedTables map[string]BundleLeaf `json:"related_tables"`
}

// BundleLeaf is the per-resource entry inside a Bundle
type BundleLeaf struct {
	Permission permission.Capabilities `json:"permission"`
}
