// Package resource holds the protected catalog models: indicators,
// context layers, related tables, basemaps, styles, harvesters,
// reference layer views and cloud-native GIS layers. Every model
// carries a creator and resolves to a permission.Ref; stores scope all
// reads and writes through the permission manager.
package resource

import (
	"time"

	"github.com/unicef-drp/geosight/pkg/permission"
)

// Indicator is a measurable value series shown on dashboards
type Indicator struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Shortcode   string    `json:"shortcode,omitempty"`
	Description string    `json:"description,omitempty"`
	Source      string    `json:"source,omitempty"`
	CreatorID   int64     `json:"creator_id"`
	ModifiedBy  int64     `json:"modified_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ModifiedAt  time.Time `json:"modified_at"`
}

// PermissionRef implements permission.Protected
func (i *Indicator) PermissionRef() permission.Ref {
	return permission.Ref{Type: permission.TypeIndicator, ID: i.ID, CreatorID: i.CreatorID}
}

// ContextLayer is an external map layer overlaid on dashboards
type ContextLayer struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url,omitempty"`
	LayerType   string    `json:"layer_type,omitempty"`
	CreatorID   int64     `json:"creator_id"`
	ModifiedBy  int64     `json:"modified_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ModifiedAt  time.Time `json:"modified_at"`
}

// PermissionRef implements permission.Protected
func (c *ContextLayer) PermissionRef() permission.Ref {
	return permission.Ref{Type: permission.TypeContextLayer, ID: c.ID, CreatorID: c.CreatorID}
}

// RelatedTable is tabular data joined to geography at display time
type RelatedTable struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	SheetName   string    `json:"sheet_name,omitempty"`
	Version     string    `json:"version,omitempty"`
	CreatorID   int64     `json:"creator_id"`
	ModifiedBy  int64     `json:"modified_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ModifiedAt  time.Time `json:"modified_at"`
}

// PermissionRef implements permission.Protected
func (r *RelatedTable) PermissionRef() permission.Ref {
	return permission.Ref{Type: permission.TypeRelatedTable, ID: r.ID, CreatorID: r.CreatorID}
}

// ReferenceLayerView is a catalog row naming a boundary dataset view
type ReferenceLayerView struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Identifier  string    `json:"identifier"`
	Description string    `json:"description,omitempty"`
	InGeorepo   bool      `json:"in_georepo"`
	CreatorID   int64     `json:"creator_id"`
	ModifiedBy  int64     `json:"modified_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ModifiedAt  time.Time `json:"modified_at"`
}

// PermissionRef implements permission.Protected
func (v *ReferenceLayerView) PermissionRef() permission.Ref {
	return permission.Ref{Type: permission.TypeReferenceLayerView, ID: v.ID, CreatorID: v.CreatorID}
}

// Basemap is a background tile layer
type Basemap struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url,omitempty"`
	CreatorID   int64     `json:"creator_id"`
	ModifiedBy  int64     `json:"modified_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ModifiedAt  time.Time `json:"modified_at"`
}

// PermissionRef implements permission.Protected
func (b *Basemap) PermissionRef() permission.Ref {
	return permission.Ref{Type: permission.TypeBasemap, ID: b.ID, CreatorID: b.CreatorID}
}

// Style is a reusable visual style definition
type Style struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	StyleType   string    `json:"style_type,omitempty"`
	CreatorID   int64     `json:"creator_id"`
	ModifiedBy  int64     `json:"modified_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ModifiedAt  time.Time `json:"modified_at"`
}

// PermissionRef implements permission.Protected
func (s *Style) PermissionRef() permission.Ref {
	return permission.Ref{Type: permission.TypeStyle, ID: s.ID, CreatorID: s.CreatorID}
}

// Harvester is a configured external data ingestion job
type Harvester struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	HarvesterClass string    `json:"harvester_class"`
	Active         bool      `json:"active"`
	CreatorID      int64     `json:"creator_id"`
	ModifiedBy     int64     `json:"modified_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	ModifiedAt     time.Time `json:"modified_at"`
}

// PermissionRef implements permission.Protected
func (h *Harvester) PermissionRef() permission.Ref {
	return permission.Ref{Type: permission.TypeHarvester, ID: h.ID, CreatorID: h.CreatorID}
}

// CloudNativeGISLayer is a layer served from cloud-native GIS storage
type CloudNativeGISLayer struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	LayerType  string    `json:"layer_type,omitempty"`
	NativeName string    `json:"native_name,omitempty"`
	CreatorID  int64     `json:"creator_id"`
	ModifiedBy int64     `json:"modified_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// PermissionRef implements permission.Protected
func (l *CloudNativeGISLayer) PermissionRef() permission.Ref {
	return permission.Ref{Type: permission.TypeCloudNativeGIS, ID: l.ID, CreatorID: l.CreatorID}
}
