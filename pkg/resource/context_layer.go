package resource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/unicef-drp/geosight/pkg/auth"
	"github.com/unicef-drp/geosight/pkg/permission"
)

// ContextLayerStore persists context layers with permission-scoped access
type ContextLayerStore struct {
	db      *sql.DB
	manager *permission.Manager
}

// Create inserts a new context layer. Requires the Creator role.
func (s *ContextLayerStore) Create(ctx context.Context, user *auth.User, layer *ContextLayer) error {
	if err := s.manager.PrepareCreate(ctx, user); err != nil {
		return err
	}

	now := time.Now()
	layer.CreatorID = user.ID
	layer.ModifiedBy = user.ID
	layer.CreatedAt = now
	layer.ModifiedAt = now

	query := `
		INSERT INTO context_layers (name, description, url, layer_type, creator_id, modified_by, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		layer.Name, layer.Description, layer.URL, layer.LayerType,
		layer.CreatorID, layer.ModifiedBy, layer.CreatedAt, layer.ModifiedAt,
	).Scan(&layer.ID)
	if err != nil {
		return fmt.Errorf("failed to create context layer: %w", err)
	}

	_, err = s.manager.Created(ctx, layer.PermissionRef())
	return err
}

// Get fetches a context layer. Requires READ.
func (s *ContextLayerStore) Get(ctx context.Context, user *auth.User, id int64) (*ContextLayer, error) {
	layer, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.manager.Resolver().RequireRead(ctx, user, layer.PermissionRef()); err != nil {
		return nil, err
	}
	return layer, nil
}

func (s *ContextLayerStore) get(ctx context.Context, id int64) (*ContextLayer, error) {
	query := `
		SELECT id, name, description, url, layer_type, creator_id, COALESCE(modified_by, 0), created_at, modified_at
		FROM context_layers
		WHERE id = $1
	`
	var layer ContextLayer
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&layer.ID, &layer.Name, &layer.Description, &layer.URL, &layer.LayerType,
		&layer.CreatorID, &layer.ModifiedBy, &layer.CreatedAt, &layer.ModifiedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get context layer: %w", err)
	}
	return &layer, nil
}

// List returns the context layers the user may list
func (s *ContextLayerStore) List(ctx context.Context, user *auth.User) ([]ContextLayer, error) {
	refs, err := refsForTable(ctx, s.db, "context_layers", permission.TypeContextLayer)
	if err != nil {
		return nil, err
	}
	ids, err := s.manager.ListIDs(ctx, user, permission.TypeContextLayer, refs)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT id, name, description, url, layer_type, creator_id, COALESCE(modified_by, 0), created_at, modified_at
		FROM context_layers
		WHERE id IN (%s)
		ORDER BY id
	`, idPlaceholders(1, len(ids)))

	rows, err := s.db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list context layers: %w", err)
	}
	defer rows.Close()

	var result []ContextLayer
	for rows.Next() {
		var layer ContextLayer
		if err := rows.Scan(
			&layer.ID, &layer.Name, &layer.Description, &layer.URL, &layer.LayerType,
			&layer.CreatorID, &layer.ModifiedBy, &layer.CreatedAt, &layer.ModifiedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan context layer: %w", err)
		}
		result = append(result, layer)
	}
	return result, rows.Err()
}

// Update saves metadata changes. Requires WRITE.
func (s *ContextLayerStore) Update(ctx context.Context, user *auth.User, layer *ContextLayer) error {
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
		UPDATE context_layers
		SET name = $1, description = $2, url = $3, layer_type = $4, modified_by = $5, modified_at = $6
		WHERE id = $7
	`
	if _, err := s.db.ExecContext(ctx, query,
		layer.Name, layer.Description, layer.URL, layer.LayerType,
		layer.ModifiedBy, layer.ModifiedAt, layer.ID,
	); err != nil {
		return fmt.Errorf("failed to update context layer: %w", err)
	}
	return nil
}

// Delete removes a context layer and its ACL. Requires OWNER.
func (s *ContextLayerStore) Delete(ctx context.Context, user *auth.User, id int64) error {
	existing, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.manager.Resolver().RequireDelete(ctx, user, existing.PermissionRef()); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM context_layers WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete context layer: %w", err)
	}
	return s.manager.Store().DeleteForResource(ctx, existing.PermissionRef())
}
