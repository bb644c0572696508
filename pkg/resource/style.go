package resource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/unicef-drp/geosight/pkg/auth"
	"github.com/unicef-drp/geosight/pkg/permission"
)

// StyleStore persists styles with permission-scoped access
type StyleStore struct {
	db      *sql.DB
	manager *permission.Manager
}

// Create inserts a new style. Requires the Creator role.
func (s *StyleStore) Create(ctx context.Context, user *auth.User, style *Style) error {
	if err := s.manager.PrepareCreate(ctx, user); err != nil {
		return err
	}

	now := time.Now()
	style.CreatorID = user.ID
	style.ModifiedBy = user.ID
	style.CreatedAt = now
	style.ModifiedAt = now

	query := `
		INSERT INTO styles (name, description, style_type, creator_id, modified_by, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		style.Name, style.Description, style.StyleType,
		style.CreatorID, style.ModifiedBy, style.CreatedAt, style.ModifiedAt,
	).Scan(&style.ID)
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	_, err = s.manager.Created(ctx, style.PermissionRef())
	return err
}

// Get fetches a style. Requires READ.
func (s *StyleStore) Get(ctx context.Context, user *auth.User, id int64) (*Style, error) {
	style, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.manager.Resolver().RequireRead(ctx, user, style.PermissionRef()); err != nil {
		return nil, err
	}
	return style, nil
}

func (s *StyleStore) get(ctx context.Context, id int64) (*Style, error) {
	query := `
		SELECT id, name, description, style_type, creator_id, COALESCE(modified_by, 0), created_at, modified_at
		FROM styles
		WHERE id = $1
	`
	var style Style
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&style.ID, &style.Name, &style.Description, &style.StyleType,
		&style.CreatorID, &style.ModifiedBy, &style.CreatedAt, &style.ModifiedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get style: %w", err)
	}
	return &style, nil
}

// List returns the styles the user may list
func (s *StyleStore) List(ctx context.Context, user *auth.User) ([]Style, error) {
	refs, err := refsForTable(ctx, s.db, "styles", permission.TypeStyle)
	if err != nil {
		return nil, err
	}
	ids, err := s.manager.ListIDs(ctx, user, permission.TypeStyle, refs)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT id, name, description, style_type, creator_id, COALESCE(modified_by, 0), created_at, modified_at
		FROM styles
		WHERE id IN (%s)
		ORDER BY id
	`, idPlaceholders(1, len(ids)))

	rows, err := s.db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list styles: %w", err)
	}
	defer rows.Close()

	var result []Style
	for rows.Next() {
		var style Style
		if err := rows.Scan(
			&style.ID, &style.Name, &style.Description, &style.StyleType,
			&style.CreatorID, &style.ModifiedBy, &style.CreatedAt, &style.ModifiedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan style: %w", err)
		}
		result = append(result, style)
	}
	return result, rows.Err()
}

// Update saves metadata changes. Requires WRITE.
func (s *StyleStore) Update(ctx context.Context, user *auth.User, style *Style) error {
	existing, err := s.get(ctx, style.ID)
	if err != nil {
		return err
	}
	if err := s.manager.Resolver().RequireEdit(ctx, user, existing.PermissionRef()); err != nil {
		return err
	}

	style.CreatorID = existing.CreatorID
	style.ModifiedBy = user.ID
	style.ModifiedAt = time.Now()

	query := `
		UPDATE styles
		SET name = $1, description = $2, style_type = $3, modified_by = $4, modified_at = $5
		WHERE id = $6
	`
	if _, err := s.db.ExecContext(ctx, query,
		style.Name, style.Description, style.StyleType,
		style.ModifiedBy, style.ModifiedAt, style.ID,
	); err != nil {
		return fmt.Errorf("failed to update style: %w", err)
	}
	return nil
}

// Delete removes a style and its ACL. Requires OWNER.
func (s *StyleStore) Delete(ctx context.Context, user *auth.User, id int64) error {
	existing, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.manager.Resolver().RequireDelete(ctx, user, existing.PermissionRef()); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM styles WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete style: %w", err)
	}
	return s.manager.Store().DeleteForResource(ctx, existing.PermissionRef())
}
