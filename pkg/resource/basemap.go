package resource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/unicef-drp/geosight/pkg/auth"
	"github.com/unicef-drp/geosight/pkg/permission"
)

// BasemapStore persists basemaps with permission-scoped access
type BasemapStore struct {
	db      *sql.DB
	manager *permission.Manager
}

// Create inserts a new basemap. Requires the Creator role.
func (s *BasemapStore) Create(ctx context.Context, user *auth.User, basemap *Basemap) error {
	if err := s.manager.PrepareCreate(ctx, user); err != nil {
		return err
	}

	now := time.Now()
	basemap.CreatorID = user.ID
	basemap.ModifiedBy = user.ID
	basemap.CreatedAt = now
	basemap.ModifiedAt = now

	query := `
		INSERT INTO basemaps (name, description, url, creator_id, modified_by, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		basemap.Name, basemap.Description, basemap.URL,
		basemap.CreatorID, basemap.ModifiedBy, basemap.CreatedAt, basemap.ModifiedAt,
	).Scan(&basemap.ID)
	if err != nil {
		return fmt.Errorf("failed to create basemap: %w", err)
	}

	_, err = s.manager.Created(ctx, basemap.PermissionRef())
	return err
}

// Get fetches a basemap. Requires READ.
func (s *BasemapStore) Get(ctx context.Context, user *auth.User, id int64) (*Basemap, error) {
	basemap, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.manager.Resolver().RequireRead(ctx, user, basemap.PermissionRef()); err != nil {
		return nil, err
	}
	return basemap, nil
}

func (s *BasemapStore) get(ctx context.Context, id int64) (*Basemap, error) {
	query := `
		SELECT id, name, description, url, creator_id, COALESCE(modified_by, 0), created_at, modified_at
		FROM basemaps
		WHERE id = $1
	`
	var basemap Basemap
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&basemap.ID, &basemap.Name, &basemap.Description, &basemap.URL,
		&basemap.CreatorID, &basemap.ModifiedBy, &basemap.CreatedAt, &basemap.ModifiedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get basemap: %w", err)
	}
	return &basemap, nil
}

// List returns the basemaps the user may list
func (s *BasemapStore) List(ctx context.Context, user *auth.User) ([]Basemap, error) {
	refs, err := refsForTable(ctx, s.db, "basemaps", permission.TypeBasemap)
	if err != nil {
		return nil, err
	}
	ids, err := s.manager.ListIDs(ctx, user, permission.TypeBasemap, refs)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT id, name, description, url, creator_id, COALESCE(modified_by, 0), created_at, modified_at
		FROM basemaps
		WHERE id IN (%s)
		ORDER BY id
	`, idPlaceholders(1, len(ids)))

	rows, err := s.db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list basemaps: %w", err)
	}
	defer rows.Close()

	var result []Basemap
	for rows.Next() {
		var basemap Basemap
		if err := rows.Scan(
			&basemap.ID, &basemap.Name, &basemap.Description, &basemap.URL,
			&basemap.CreatorID, &basemap.ModifiedBy, &basemap.CreatedAt, &basemap.ModifiedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan basemap: %w", err)
		}
		result = append(result, basemap)
	}
	return result, rows.Err()
}

// Update saves metadata changes. Requires WRITE.
func (s *BasemapStore) Update(ctx context.Context, user *auth.User, basemap *Basemap) error {
	existing, err := s.get(ctx, basemap.ID)
	if err != nil {
		return err
	}
	if err := s.manager.Resolver().RequireEdit(ctx, user, existing.PermissionRef()); err != nil {
		return err
	}

	basemap.CreatorID = existing.CreatorID
	basemap.ModifiedBy = user.ID
	basemap.ModifiedAt = time.Now()

	query := `
		UPDATE basemaps
		SET name = $1, description = $2, url = $3, modified_by = $4, modified_at = $5
		WHERE id = $6
	`
	if _, err := s.db.ExecContext(ctx, query,
		basemap.Name, basemap.Description, basemap.URL,
		basemap.ModifiedBy, basemap.ModifiedAt, basemap.ID,
	); err != nil {
		return fmt.Errorf("failed to update basemap: %w", err)
	}
	return nil
}

// Delete removes a basemap and its ACL. Requires OWNER.
func (s *BasemapStore) Delete(ctx context.Context, user *auth.User, id int64) error {
	existing, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.manager.Resolver().RequireDelete(ctx, user, existing.PermissionRef()); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM basemaps WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete basemap: %w", err)
	}
	return s.manager.Store().DeleteForResource(ctx, existing.PermissionRef())
}
