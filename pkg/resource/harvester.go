package resource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/unicef-drp/geosight/pkg/auth"
	"github.com/unicef-drp/geosight/pkg/permission"
)

// HarvesterStore persists harvester configurations. Harvesters default
// to NONE everywhere, so only creators, admins and explicit grantees
// see them.
type HarvesterStore struct {
	db      *sql.DB
	manager *permission.Manager
}

// Create inserts a new harvester. Requires the Creator role.
func (s *HarvesterStore) Create(ctx context.Context, user *auth.User, harvester *Harvester) error {
	if err := s.manager.PrepareCreate(ctx, user); err != nil {
		return err
	}

	now := time.Now()
	harvester.CreatorID = user.ID
	harvester.ModifiedBy = user.ID
	harvester.CreatedAt = now
	harvester.ModifiedAt = now

	query := `
		INSERT INTO harvesters (name, harvester_class, active, creator_id, modified_by, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		harvester.Name, harvester.HarvesterClass, harvester.Active,
		harvester.CreatorID, harvester.ModifiedBy, harvester.CreatedAt, harvester.ModifiedAt,
	).Scan(&harvester.ID)
	if err != nil {
		return fmt.Errorf("failed to create harvester: %w", err)
	}

	_, err = s.manager.Created(ctx, harvester.PermissionRef())
	return err
}

// Get fetches a harvester. Requires READ.
func (s *HarvesterStore) Get(ctx context.Context, user *auth.User, id int64) (*Harvester, error) {
	harvester, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.manager.Resolver().RequireRead(ctx, user, harvester.PermissionRef()); err != nil {
		return nil, err
	}
	return harvester, nil
}

func (s *HarvesterStore) get(ctx context.Context, id int64) (*Harvester, error) {
	query := `
		SELECT id, name, harvester_class, active, creator_id, COALESCE(modified_by, 0), created_at, modified_at
		FROM harvesters
		WHERE id = $1
	`
	var harvester Harvester
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&harvester.ID, &harvester.Name, &harvester.HarvesterClass, &harvester.Active,
		&harvester.CreatorID, &harvester.ModifiedBy, &harvester.CreatedAt, &harvester.ModifiedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get harvester: %w", err)
	}
	return &harvester, nil
}

// List returns the harvesters the user may list
func (s *HarvesterStore) List(ctx context.Context, user *auth.User) ([]Harvester, error) {
	refs, err := refsForTable(ctx, s.db, "harvesters", permission.TypeHarvester)
	if err != nil {
		return nil, err
	}
	ids, err := s.manager.ListIDs(ctx, user, permission.TypeHarvester, refs)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT id, name, harvester_class, active, creator_id, COALESCE(modified_by, 0), created_at, modified_at
		FROM harvesters
		WHERE id IN (%s)
		ORDER BY id
	`, idPlaceholders(1, len(ids)))

	rows, err := s.db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list harvesters: %w", err)
	}
	defer rows.Close()

	var result []Harvester
	for rows.Next() {
		var harvester Harvester
		if err := rows.Scan(
			&harvester.ID, &harvester.Name, &harvester.HarvesterClass, &harvester.Active,
			&harvester.CreatorID, &harvester.ModifiedBy, &harvester.CreatedAt, &harvester.ModifiedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan harvester: %w", err)
		}
		result = append(result, harvester)
	}
	return result, rows.Err()
}

// Update saves metadata changes. Requires WRITE.
func (s *HarvesterStore) Update(ctx context.Context, user *auth.User, harvester *Harvester) error {
	existing, err := s.get(ctx, harvester.ID)
	if err != nil {
		return err
	}
	if err := s.manager.Resolver().RequireEdit(ctx, user, existing.PermissionRef()); err != nil {
		return err
	}

	harvester.CreatorID = existing.CreatorID
	harvester.ModifiedBy = user.ID
	harvester.ModifiedAt = time.Now()

	query := `
		UPDATE harvesters
		SET name = $1, harvester_class = $2, active = $3, modified_by = $4, modified_at = $5
		WHERE id = $6
	`
	if _, err := s.db.ExecContext(ctx, query,
		harvester.Name, harvester.HarvesterClass, harvester.Active,
		harvester.ModifiedBy, harvester.ModifiedAt, harvester.ID,
	); err != nil {
		return fmt.Errorf("failed to update harvester: %w", err)
	}
	return nil
}

// Delete removes a harvester and its ACL. Requires OWNER.
func (s *HarvesterStore) Delete(ctx context.Context, user *auth.User, id int64) error {
	existing, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.manager.Resolver().RequireDelete(ctx, user, existing.PermissionRef()); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM harvesters WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete harvester: %w", err)
	}
	return s.manager.Store().DeleteForResource(ctx, existing.PermissionRef())
}
