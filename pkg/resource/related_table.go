package resource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/unicef-drp/geosight/pkg/auth"
	"github.com/unicef-drp/geosight/pkg/permission"
)

// RelatedTableStore persists related tables with permission-scoped access
type RelatedTableStore struct {
	db      *sql.DB
	manager *permission.Manager
}

// Create inserts a new related table. Requires the Creator role.
func (s *RelatedTableStore) Create(ctx context.Context, user *auth.User, table *RelatedTable) error {
	if err := s.manager.PrepareCreate(ctx, user); err != nil {
		return err
	}

	now := time.Now()
	table.CreatorID = user.ID
	table.ModifiedBy = user.ID
	table.CreatedAt = now
	table.ModifiedAt = now

	query := `
		INSERT INTO related_tables (name, description, sheet_name, version, creator_id, modified_by, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		table.Name, table.Description, table.SheetName, table.Version,
		table.CreatorID, table.ModifiedBy, table.CreatedAt, table.ModifiedAt,
	).Scan(&table.ID)
	if err != nil {
		return fmt.Errorf("failed to create related table: %w", err)
	}

	_, err = s.manager.Created(ctx, table.PermissionRef())
	return err
}

// Get fetches a related table. Requires READ.
func (s *RelatedTableStore) Get(ctx context.Context, user *auth.User, id int64) (*RelatedTable, error) {
	table, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.manager.Resolver().RequireRead(ctx, user, table.PermissionRef()); err != nil {
		return nil, err
	}
	return table, nil
}

func (s *RelatedTableStore) get(ctx context.Context, id int64) (*RelatedTable, error) {
	query := `
		SELECT id, name, description, sheet_name, version, creator_id, COALESCE(modified_by, 0), created_at, modified_at
		FROM related_tables
		WHERE id = $1
	`
	var table RelatedTable
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&table.ID, &table.Name, &table.Description, &table.SheetName, &table.Version,
		&table.CreatorID, &table.ModifiedBy, &table.CreatedAt, &table.ModifiedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get related table: %w", err)
	}
	return &table, nil
}

// List returns the related tables the user may list
func (s *RelatedTableStore) List(ctx context.Context, user *auth.User) ([]RelatedTable, error) {
	refs, err := refsForTable(ctx, s.db, "related_tables", permission.TypeRelatedTable)
	if err != nil {
		return nil, err
	}
	ids, err := s.manager.ListIDs(ctx, user, permission.TypeRelatedTable, refs)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT id, name, description, sheet_name, version, creator_id, COALESCE(modified_by, 0), created_at, modified_at
		FROM related_tables
		WHERE id IN (%s)
		ORDER BY id
	`, idPlaceholders(1, len(ids)))

	rows, err := s.db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list related tables: %w", err)
	}
	defer rows.Close()

	var result []RelatedTable
	for rows.Next() {
		var table RelatedTable
		if err := rows.Scan(
			&table.ID, &table.Name, &table.Description, &table.SheetName, &table.Version,
			&table.CreatorID, &table.ModifiedBy, &table.CreatedAt, &table.ModifiedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan related table: %w", err)
		}
		result = append(result, table)
	}
	return result, rows.Err()
}

// Update saves metadata changes. Requires WRITE.
func (s *RelatedTableStore) Update(ctx context.Context, user *auth.User, table *RelatedTable) error {
	existing, err := s.get(ctx, table.ID)
	if err != nil {
		return err
	}
	if err := s.manager.Resolver().RequireEdit(ctx, user, existing.PermissionRef()); err != nil {
		return err
	}

	table.CreatorID = existing.CreatorID
	table.ModifiedBy = user.ID
	table.ModifiedAt = time.Now()

	query := `
		UPDATE related_tables
		SET name = $1, description = $2, sheet_name = $3, version = $4, modified_by = $5, modified_at = $6
		WHERE id = $7
	`
	if _, err := s.db.ExecContext(ctx, query,
		table.Name, table.Description, table.SheetName, table.Version,
		table.ModifiedBy, table.ModifiedAt, table.ID,
	); err != nil {
		return fmt.Errorf("failed to update related table: %w", err)
	}
	return nil
}

// Delete removes a related table and its ACL. Requires OWNER.
func (s *RelatedTableStore) Delete(ctx context.Context, user *auth.User, id int64) error {
	existing, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.manager.Resolver().RequireDelete(ctx, user, existing.PermissionRef()); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM related_tables WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete related table: %w", err)
	}
	return s.manager.Store().DeleteForResource(ctx, existing.PermissionRef())
}
