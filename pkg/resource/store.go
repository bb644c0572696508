package resource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/unicef-drp/geosight/pkg/permission"
)

// ErrNotFound is returned when a catalog row does not exist
var ErrNotFound = errors.New("resource not found")

// Stores bundles every catalog store over one database and one
// permission manager.
type Stores struct {
	Indicators          *IndicatorStore
	ContextLayers       *ContextLayerStore
	RelatedTables       *RelatedTableStore
	ReferenceLayerViews *ReferenceLayerViewStore
	Basemaps            *BasemapStore
	Styles              *StyleStore
	Harvesters          *HarvesterStore
	CloudNativeLayers   *CloudNativeGISLayerStore
}

// NewStores creates all catalog stores
func NewStores(db *sql.DB, manager *permission.Manager) *Stores {
	return &Stores{
		Indicators:          &IndicatorStore{db: db, manager: manager},
		ContextLayers:       &ContextLayerStore{db: db, manager: manager},
		RelatedTables:       &RelatedTableStore{db: db, manager: manager},
		ReferenceLayerViews: &ReferenceLayerViewStore{db: db, manager: manager},
		Basemaps:            &BasemapStore{db: db, manager: manager},
		Styles:              &StyleStore{db: db, manager: manager},
		Harvesters:          &HarvesterStore{db: db, manager: manager},
		CloudNativeLayers:   &CloudNativeGISLayerStore{db: db, manager: manager},
	}
}

// refTables maps resource types to the catalog table holding them.
// Dashboards and groups live in their own packages but resolve here so
// the sharing API has a single lookup.
var refTables = map[permission.ResourceType]string{
	permission.TypeIndicator:          "indicators",
	permission.TypeContextLayer:       "context_layers",
	permission.TypeRelatedTable:       "related_tables",
	permission.TypeReferenceLayerView: "reference_layer_views",
	permission.TypeBasemap:            "basemaps",
	permission.TypeStyle:              "styles",
	permission.TypeHarvester:          "harvesters",
	permission.TypeCloudNativeGIS:     "cloud_native_gis_layers",
	permission.TypeDashboard:          "dashboards",
	permission.TypeGroup:              "groups",
}

// Catalog resolves (type, id) pairs to permission refs across every
// protected table. Implements permission.RefLookup.
type Catalog struct {
	db *sql.DB
}

// NewCatalog creates a catalog lookup
func NewCatalog(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

// Lookup implements permission.RefLookup
func (c *Catalog) Lookup(ctx context.Context, rt permission.ResourceType, id int64) (permission.Ref, error) {
	table, ok := refTables[rt]
	if !ok {
		return permission.Ref{}, fmt.Errorf("%w: %q", permission.ErrUnknownResourceType, rt)
	}

	query := fmt.Sprintf(`SELECT id, COALESCE(creator_id, 0) FROM %s WHERE id = $1`, table)

	var ref permission.Ref
	ref.Type = rt
	err := c.db.QueryRowContext(ctx, query, id).Scan(&ref.ID, &ref.CreatorID)
	if err == sql.ErrNoRows {
		return permission.Ref{}, permission.ErrNotFound
	}
	if err != nil {
		return permission.Ref{}, fmt.Errorf("failed to look up %s %d: %w", rt, id, err)
	}
	return ref, nil
}

// refsForTable loads the (id, creator_id) pairs the manager needs to
// scope a listing, ordered by id for stable output.
func refsForTable(ctx context.Context, db *sql.DB, table string, rt permission.ResourceType) ([]permission.Ref, error) {
	query := fmt.Sprintf(`SELECT id, COALESCE(creator_id, 0) FROM %s ORDER BY id`, table)

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}
	defer rows.Close()

	var refs []permission.Ref
	for rows.Next() {
		ref := permission.Ref{Type: rt}
		if err := rows.Scan(&ref.ID, &ref.CreatorID); err != nil {
			return nil, fmt.Errorf("failed to scan %s ref: %w", table, err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// idPlaceholders renders $start..$start+n-1 for an IN clause
func idPlaceholders(start, n int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

func int64Args(ids []int64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
