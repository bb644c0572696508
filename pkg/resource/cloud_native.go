package resource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/unicef-drp/geosight/pkg/auth"
	"github.com/unicef-drp/geosight/pkg/permission"
)

// CloudNativeGISLayerStore persists cloud-native GIS layers with
// permission-scoped access
type CloudNativeGISLayerStore struct {
	db      *sql.DB
	manager *permission.Manager
}

// Create inserts a new cloud-native GIS layer. Requires the Creator role.
func (s *CloudNativeGISLayerStore) Create(ctx context.Context, user *auth.User, layer *CloudNativeGISLayer) error {
	if err := s.manager.PrepareCreate(ctx, user); err != nil {
		return err
	}

	now := time.Now()
	layer.CreatorID = user.ID
	layer.ModifiedBy = user.ID
	layer.CreatedAt = now
	layer.ModifiedAt = now

	query := `
		INSERT INTO cloud_native_gis_layers (name, layer_type, native_name, creator_id, modified_by, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		layer.Name, layer.LayerType, layer.NativeName,
		layer.CreatorID, layer.ModifiedBy, layer.CreatedAt, layer.ModifiedAt,
	).Scan(&layer.ID)
	if err != nil {
		return fmt.Errorf("failed to create cloud-native GIS layer: %w", err)
	}

	_, err = s.manager.Created(ctx, layer.PermissionRef())
	return err
}

// Get fetches a cloud-native GIS layer. Requires READ.
func (s *CloudNativeGISLayerStore) Get(ctx context.Context, user *auth.User, id int64) (*CloudNativeGISLayer, error) {
	layer, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.manager.Resolver().RequireRead(ctx, user, layer.PermissionRef()); err != nil {
		return nil, err
	}
	return layer, nil
}

func (s *CloudNativeGISLayerStore) get(ctx context.Context, id int64) (*CloudNativeGISLayer, error) {
	query := `
		SELECT id, name, layer_type, native_name, creator_id, COALESCE(modified_by, 0), created_at, modified_at
		FROM cloud_native_gis_layers
		WHERE id = $1
	`
	var layer CloudNativeGISLayer
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&layer.ID, &layer.Name, &layer.LayerType, &layer.NativeName,
		&layer.CreatorID, &layer.ModifiedBy, &layer.CreatedAt, &layer.ModifiedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cloud-native GIS layer: %w", err)
	}
	return &layer, nil
}

// List returns the cloud-native GIS layers the user may list
func (s *CloudNativeGISLayerStore) List(ctx context.Context, user *auth.User) ([]CloudNativeGISLayer, error) {
	refs, err := refsForTable(ctx, s.db, "cloud_native_gis_layers", permission.TypeCloudNativeGIS)
	if err != nil {
		return nil, err
	}
	ids, err := s.manager.ListIDs(ctx, user, permission.TypeCloudNativeGIS, refs)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT id, name, layer_type, native_name, creator_id, COALESCE(modified_by, 0), created_at, modified_at
		FROM cloud_native_gis_layers
		WHERE id IN (%s)
		ORDER BY id
	`, idPlaceholders(1, len(ids)))

	rows, err := s.db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cloud-native GIS layers: %w", err)
	}
	defer rows.Close()

	var result []CloudNativeGISLayer
	for rows.Next() {
		var layer CloudNativeGISLayer
		if err := rows.Scan(
			&layer.ID, &layer.Name, &layer.LayerType, &layer.NativeName,
			&layer.CreatorID, &layer.ModifiedBy, &layer.CreatedAt, &layer.ModifiedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cloud-native GIS layer: %w", err)
		}
		result = append(result, layer)
	}
	return result, rows.Err()
}

// Update saves metadata changes. Requires WRITE.
func (s *CloudNativeGISLayerStore) Update(ctx context.Context, user *auth.User, layer *CloudNativeGISLayer) error {
	existing, err := s.get(ctx, layer.ID)
	if err != nil {
		return err
	}
	if err := s.manager.Resolver().RequireEdit(ctx, user, existing.PermissionRef()); err != nil {
		return err
	}

	layer.CreatorID = existing.CreatorID
	layer.ModifiedBy = user.ID
	layer.ModifiedAt = time.Now()

	query := `
		UPDATE cloud_native_gis_layers
		SET name = $1, layer_type = $2, native_name = $3, modified_by = $4, modified_at = $5
		WHERE id = $6
	`
	if _, err := s.db.ExecContext(ctx, query,
		layer.Name, layer.LayerType, layer.NativeName,
		layer.ModifiedBy, layer.ModifiedAt, layer.ID,
	); err != nil {
		return fmt.Errorf("failed to update cloud-native GIS layer: %w", err)
	}
	return nil
}

// Delete removes a cloud-native GIS layer and its ACL. Requires OWNER.
func (s *CloudNativeGISLayerStore) Delete(ctx context.Context, user *auth.User, id int64) error {
	existing, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.manager.Resolver().RequireDelete(ctx, user, existing.PermissionRef()); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM cloud_native_gis_layers WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete cloud-native GIS layer: %w", err)
	}
	return s.manager.Store().DeleteForResource(ctx, existing.PermissionRef())
}
