package resource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/unicef-drp/geosight/pkg/auth"
	"github.com/unicef-drp/geosight/pkg/permission"
)

// IndicatorStore persists indicators with permission-scoped access
type IndicatorStore struct {
	db      *sql.DB
	manager *permission.Manager
}

// Create inserts a new indicator. Requires the Creator role; the caller
// becomes the indicator's creator and its permission row is
// materialized with the type defaults.
func (s *IndicatorStore) Create(ctx context.Context, user *auth.User, ind *Indicator) error {
	if err := s.manager.PrepareCreate(ctx, user); err != nil {
		return err
	}

	now := time.Now()
	ind.CreatorID = user.ID
	ind.ModifiedBy = user.ID
	ind.CreatedAt = now
	ind.ModifiedAt = now

	query := `
		INSERT INTO indicators (name, shortcode, description, source, creator_id, modified_by, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		ind.Name, ind.Shortcode, ind.Description, ind.Source,
		ind.CreatorID, ind.ModifiedBy, ind.CreatedAt, ind.ModifiedAt,
	).Scan(&ind.ID)
	if err != nil {
		return fmt.Errorf("failed to create indicator: %w", err)
	}

	_, err = s.manager.Created(ctx, ind.PermissionRef())
	return err
}

// Get fetches an indicator. Requires READ.
func (s *IndicatorStore) Get(ctx context.Context, user *auth.User, id int64) (*Indicator, error) {
	ind, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.manager.Resolver().RequireRead(ctx, user, ind.PermissionRef()); err != nil {
		return nil, err
	}
	return ind, nil
}

func (s *IndicatorStore) get(ctx context.Context, id int64) (*Indicator, error) {
	query := `
		SELECT id, name, shortcode, description, source, creator_id, COALESCE(modified_by, 0), created_at, modified_at
		FROM indicators
		WHERE id = $1
	`
	var ind Indicator
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&ind.ID, &ind.Name, &ind.Shortcode, &ind.Description, &ind.Source,
		&ind.CreatorID, &ind.ModifiedBy, &ind.CreatedAt, &ind.ModifiedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get indicator: %w", err)
	}
	return &ind, nil
}

// List returns the indicators the user may list, ordered by id
func (s *IndicatorStore) List(ctx context.Context, user *auth.User) ([]Indicator, error) {
	refs, err := refsForTable(ctx, s.db, "indicators", permission.TypeIndicator)
	if err != nil {
		return nil, err
	}
	ids, err := s.manager.ListIDs(ctx, user, permission.TypeIndicator, refs)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT id, name, shortcode, description, source, creator_id, COALESCE(modified_by, 0), created_at, modified_at
		FROM indicators
		WHERE id IN (%s)
		ORDER BY id
	`, idPlaceholders(1, len(ids)))

	rows, err := s.db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list indicators: %w", err)
	}
	defer rows.Close()

	var result []Indicator
	for rows.Next() {
		var ind Indicator
		if err := rows.Scan(
			&ind.ID, &ind.Name, &ind.Shortcode, &ind.Description, &ind.Source,
			&ind.CreatorID, &ind.ModifiedBy, &ind.CreatedAt, &ind.ModifiedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan indicator: %w", err)
		}
		result = append(result, ind)
	}
	return result, rows.Err()
}

// Update saves metadata changes. Requires WRITE.
func (s *IndicatorStore) Update(ctx context.Context, user *auth.User, ind *Indicator) error {
	existing, err := s.get(ctx, ind.ID)
	if err != nil {
		return err
	}
	if err := s.manager.Resolver().RequireEdit(ctx, user, existing.PermissionRef()); err != nil {
		return err
	}

	ind.CreatorID = existing.CreatorID
	ind.ModifiedBy = user.ID
	ind.ModifiedAt = time.Now()

	query := `
		UPDATE indicators
		SET name = $1, shortcode = $2, description = $3, source = $4, modified_by = $5, modified_at = $6
		WHERE id = $7
	`
	if _, err := s.db.ExecContext(ctx, query,
		ind.Name, ind.Shortcode, ind.Description, ind.Source,
		ind.ModifiedBy, ind.ModifiedAt, ind.ID,
	); err != nil {
		return fmt.Errorf("failed to update indicator: %w", err)
	}
	return nil
}

// Delete removes an indicator and its ACL. Requires OWNER.
func (s *IndicatorStore) Delete(ctx context.Context, user *auth.User, id int64) error {
	existing, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.manager.Resolver().RequireDelete(ctx, user, existing.PermissionRef()); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM indicators WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete indicator: %w", err)
	}
	return s.manager.Store().DeleteForResource(ctx, existing.PermissionRef())
}
