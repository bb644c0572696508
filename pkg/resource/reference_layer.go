package resource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/unicef-drp/geosight/pkg/auth"
	"github.com/unicef-drp/geosight/pkg/permission"
)

// ReferenceLayerViewStore persists reference layer views. These default
// to public READ, so most operations are open; edits still require
// WRITE.
type ReferenceLayerViewStore struct {
	db      *sql.DB
	manager *permission.Manager
}

// Create inserts a new reference layer view. Requires the Creator role.
func (s *ReferenceLayerViewStore) Create(ctx context.Context, user *auth.User, view *ReferenceLayerView) error {
	if err := s.manager.PrepareCreate(ctx, user); err != nil {
		return err
	}

	now := time.Now()
	view.CreatorID = user.ID
	view.ModifiedBy = user.ID
	view.CreatedAt = now
	view.ModifiedAt = now

	query := `
		INSERT INTO reference_layer_views (name, identifier, description, in_georepo, creator_id, modified_by, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		view.Name, view.Identifier, view.Description, view.InGeorepo,
		view.CreatorID, view.ModifiedBy, view.CreatedAt, view.ModifiedAt,
	).Scan(&view.ID)
	if err != nil {
		return fmt.Errorf("failed to create reference layer view: %w", err)
	}

	_, err = s.manager.Created(ctx, view.PermissionRef())
	return err
}

// Get fetches a reference layer view. Requires READ.
func (s *ReferenceLayerViewStore) Get(ctx context.Context, user *auth.User, id int64) (*ReferenceLayerView, error) {
	view, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.manager.Resolver().RequireRead(ctx, user, view.PermissionRef()); err != nil {
		return nil, err
	}
	return view, nil
}

func (s *ReferenceLayerViewStore) get(ctx context.Context, id int64) (*ReferenceLayerView, error) {
	query := `
		SELECT id, name, identifier, description, in_georepo, creator_id, COALESCE(modified_by, 0), created_at, modified_at
		FROM reference_layer_views
		WHERE id = $1
	`
	var view ReferenceLayerView
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&view.ID, &view.Name, &view.Identifier, &view.Description, &view.InGeorepo,
		&view.CreatorID, &view.ModifiedBy, &view.CreatedAt, &view.ModifiedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reference layer view: %w", err)
	}
	return &view, nil
}

// List returns the reference layer views the user may list
func (s *ReferenceLayerViewStore) List(ctx context.Context, user *auth.User) ([]ReferenceLayerView, error) {
	refs, err := refsForTable(ctx, s.db, "reference_layer_views", permission.TypeReferenceLayerView)
	if err != nil {
		return nil, err
	}
	ids, err := s.manager.ListIDs(ctx, user, permission.TypeReferenceLayerView, refs)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT id, name, identifier, description, in_georepo, creator_id, COALESCE(modified_by, 0), created_at, modified_at
		FROM reference_layer_views
		WHERE id IN (%s)
		ORDER BY id
	`, idPlaceholders(1, len(ids)))

	rows, err := s.db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reference layer views: %w", err)
	}
	defer rows.Close()

	var result []ReferenceLayerView
	for rows.Next() {
		var view ReferenceLayerView
		if err := rows.Scan(
			&view.ID, &view.Name, &view.Identifier, &view.Description, &view.InGeorepo,
			&view.CreatorID, &view.ModifiedBy, &view.CreatedAt, &view.ModifiedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reference layer view: %w", err)
		}
		result = append(result, view)
	}
	return result, rows.Err()
}

// Update saves metadata changes. Requires WRITE.
func (s *ReferenceLayerViewStore) Update(ctx context.Context, user *auth.User, view *ReferenceLayerView) error {
	existing, err := s.get(ctx, view.ID)
	if err != nil {
		return err
	}
	if err := s.manager.Resolver().RequireEdit(ctx, user, existing.PermissionRef()); err != nil {
		return err
	}

	view.CreatorID = existing.CreatorID
	view.ModifiedBy = user.ID
	view.ModifiedAt = time.Now()

	query := `
		UPDATE reference_layer_views
		SET name = $1, identifier = $2, description = $3, in_georepo = $4, modified_by = $5, modified_at = $6
		WHERE id = $7
	`
	if _, err := s.db.ExecContext(ctx, query,
		view.Name, view.Identifier, view.Description, view.InGeorepo,
		view.ModifiedBy, view.ModifiedAt, view.ID,
	); err != nil {
		return fmt.Errorf("failed to update reference layer view: %w", err)
	}
	return nil
}

// Delete removes a reference layer view and its ACL. Requires OWNER.
func (s *ReferenceLayerViewStore) Delete(ctx context.Context, user *auth.User, id int64) error {
	existing, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.manager.Resolver().RequireDelete(ctx, user, existing.PermissionRef()); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM reference_layer_views WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete reference layer view: %w", err)
	}
	return s.manager.Store().DeleteForResource(ctx, existing.PermissionRef())
}
