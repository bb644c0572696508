package permission

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Store persists permission rows and their per-user/per-group
// overrides. Every committed ACL write is reported to the registry so
// downstream caches can invalidate.
type Store struct {
	db       *sql.DB
	policy   *Policy
	registry *Registry
}

// NewStore creates a new permission store
func NewStore(db *sql.DB, policy *Policy, registry *Registry) *Store {
	if policy == nil {
		policy = NewPolicy()
	}
	return &Store{db: db, policy: policy, registry: registry}
}

// Policy returns the active defaults catalog
func (s *Store) Policy() *Policy {
	return s.policy
}

func (s *Store) notify(ctx context.Context, ref Ref) {
	if s.registry != nil {
		s.registry.Notify(ctx, ref.Type, ref.ID)
	}
}

// Get retrieves the permission row for a resource, or ErrNotFound
func (s *Store) Get(ctx context.Context, rt ResourceType, resourceID int64) (*Row, error) {
	query := `
		SELECT id, resource_type, resource_id, organization_permission, public_permission, updated_at
		FROM permissions
		WHERE resource_type = $1 AND resource_id = $2
	`

	var row Row
	var rtRaw, orgLevel, publicLevel string
	err := s.db.QueryRowContext(ctx, query, string(rt), resourceID).Scan(
		&row.ID,
		&rtRaw,
		&row.ResourceID,
		&orgLevel,
		&publicLevel,
		&row.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get permission: %w", err)
	}

	row.ResourceType = ResourceType(rtRaw)
	row.OrganizationPermission = Level(orgLevel)
	row.PublicPermission = Level(publicLevel)
	return &row, nil
}

// GetOrCreate returns the resource's permission row, lazily creating it
// with the catalog defaults for the resource type. Exactly one row per
// resource is guaranteed by the unique (resource_type, resource_id)
// constraint; concurrent creators converge on the same row.
func (s *Store) GetOrCreate(ctx context.Context, ref Ref) (*Row, error) {
	row, err := s.Get(ctx, ref.Type, ref.ID)
	if err == nil {
		return row, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	def := s.policy.For(ref.Type)
	query := `
		INSERT INTO permissions (resource_type, resource_id, organization_permission, public_permission, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (resource_type, resource_id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query,
		string(ref.Type),
		ref.ID,
		string(def.DefaultOrganization),
		string(def.DefaultPublic),
		time.Now(),
	); err != nil {
		return nil, fmt.Errorf("failed to create permission: %w", err)
	}

	return s.Get(ctx, ref.Type, ref.ID)
}

// SetGeneral updates the organization and public levels of a
// resource's permission row. Levels are validated against the catalog.
func (s *Store) SetGeneral(ctx context.Context, ref Ref, organization, public Level) error {
	if err := s.policy.Validate(ref.Type, ScopeOrganization, organization); err != nil {
		return err
	}
	if err := s.policy.Validate(ref.Type, ScopePublic, public); err != nil {
		return err
	}

	row, err := s.GetOrCreate(ctx, ref)
	if err != nil {
		return err
	}

	query := `
		UPDATE permissions
		SET organization_permission = $1, public_permission = $2, updated_at = $3
		WHERE id = $4
	`
	if _, err := s.db.ExecContext(ctx, query,
		string(organization),
		string(public),
		time.Now(),
		row.ID,
	); err != nil {
		return fmt.Errorf("failed to update permission: %w", err)
	}

	s.notify(ctx, ref)
	return nil
}

// UpdateUserPermission upserts the per-user override for a resource.
// The level must be among the user-scope choices for the resource type.
func (s *Store) UpdateUserPermission(ctx context.Context, ref Ref, userID int64, level Level) error {
	if err := s.policy.Validate(ref.Type, ScopeUser, level); err != nil {
		return err
	}

	row, err := s.GetOrCreate(ctx, ref)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO user_permissions (permission_id, user_id, level)
		VALUES ($1, $2, $3)
		ON CONFLICT (permission_id, user_id) DO UPDATE SET level = EXCLUDED.level
	`
	if _, err := s.db.ExecContext(ctx, query, row.ID, userID, string(level)); err != nil {
		return fmt.Errorf("failed to update user permission: %w", err)
	}

	s.notify(ctx, ref)
	return nil
}

// UpdateGroupPermission upserts the per-group override for a resource
func (s *Store) UpdateGroupPermission(ctx context.Context, ref Ref, groupID int64, level Level) error {
	if err := s.policy.Validate(ref.Type, ScopeGroup, level); err != nil {
		return err
	}

	row, err := s.GetOrCreate(ctx, ref)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO group_permissions (permission_id, group_id, level)
		VALUES ($1, $2, $3)
		ON CONFLICT (permission_id, group_id) DO UPDATE SET level = EXCLUDED.level
	`
	if _, err := s.db.ExecContext(ctx, query, row.ID, groupID, string(level)); err != nil {
		return fmt.Errorf("failed to update group permission: %w", err)
	}

	s.notify(ctx, ref)
	return nil
}

// DeleteUserPermission removes a per-user override; the user falls back
// to group/organization/public levels.
func (s *Store) DeleteUserPermission(ctx context.Context, ref Ref, userID int64) error {
	row, err := s.Get(ctx, ref.Type, ref.ID)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	query := `DELETE FROM user_permissions WHERE permission_id = $1 AND user_id = $2`
	if _, err := s.db.ExecContext(ctx, query, row.ID, userID); err != nil {
		return fmt.Errorf("failed to delete user permission: %w", err)
	}

	s.notify(ctx, ref)
	return nil
}

// DeleteGroupPermission removes a per-group override
func (s *Store) DeleteGroupPermission(ctx context.Context, ref Ref, groupID int64) error {
	row, err := s.Get(ctx, ref.Type, ref.ID)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	query := `DELETE FROM group_permissions WHERE permission_id = $1 AND group_id = $2`
	if _, err := s.db.ExecContext(ctx, query, row.ID, groupID); err != nil {
		return fmt.Errorf("failed to delete group permission: %w", err)
	}

	s.notify(ctx, ref)
	return nil
}

// DeleteForResource removes the permission row and its overrides when
// the resource itself is deleted.
func (s *Store) DeleteForResource(ctx context.Context, ref Ref) error {
	row, err := s.Get(ctx, ref.Type, ref.ID)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	for _, query := range []string{
		`DELETE FROM user_permissions WHERE permission_id = $1`,
		`DELETE FROM group_permissions WHERE permission_id = $1`,
		`DELETE FROM permissions WHERE id = $1`,
	} {
		if _, err := s.db.ExecContext(ctx, query, row.ID); err != nil {
			return fmt.Errorf("failed to delete permission: %w", err)
		}
	}

	s.notify(ctx, ref)
	return nil
}

// UserOverride returns the per-user override level, if any
func (s *Store) UserOverride(ctx context.Context, permissionID, userID int64) (Level, bool, error) {
	query := `SELECT level FROM user_permissions WHERE permission_id = $1 AND user_id = $2`

	var level string
	err := s.db.QueryRowContext(ctx, query, permissionID, userID).Scan(&level)
	if err == sql.ErrNoRows {
		return LevelNone, false, nil
	}
	if err != nil {
		return LevelNone, false, fmt.Errorf("failed to get user override: %w", err)
	}
	return Level(level), true, nil
}

// GroupMax returns the highest override level across the given groups.
// A user in several groups always gets the most permissive grant.
func (s *Store) GroupMax(ctx context.Context, permissionID int64, groupIDs []int64) (Level, bool, error) {
	if len(groupIDs) == 0 {
		return LevelNone, false, nil
	}

	placeholders := make([]string, len(groupIDs))
	args := make([]interface{}, 0, len(groupIDs)+1)
	args = append(args, permissionID)
	for i, id := range groupIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}

	query := fmt.Sprintf(
		`SELECT level FROM group_permissions WHERE permission_id = $1 AND group_id IN (%s)`,
		strings.Join(placeholders, ", "),
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return LevelNone, false, fmt.Errorf("failed to get group overrides: %w", err)
	}
	defer rows.Close()

	best := LevelNone
	found := false
	for rows.Next() {
		var level string
		if err := rows.Scan(&level); err != nil {
			return LevelNone, false, fmt.Errorf("failed to scan group override: %w", err)
		}
		best = maxLevel(best, Level(level))
		found = true
	}
	return best, found, rows.Err()
}

// ListUserPermissions returns every per-user override on a resource
func (s *Store) ListUserPermissions(ctx context.Context, permissionID int64) ([]UserPermission, error) {
	query := `
		SELECT id, permission_id, user_id, level
		FROM user_permissions
		WHERE permission_id = $1
		ORDER BY user_id
	`

	rows, err := s.db.QueryContext(ctx, query, permissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user permissions: %w", err)
	}
	defer rows.Close()

	var result []UserPermission
	for rows.Next() {
		var up UserPermission
		var level string
		if err := rows.Scan(&up.ID, &up.PermissionID, &up.UserID, &level); err != nil {
			return nil, fmt.Errorf("failed to scan user permission: %w", err)
		}
		up.Level = Level(level)
		result = append(result, up)
	}
	return result, rows.Err()
}

// ListGroupPermissions returns every per-group override on a resource
func (s *Store) ListGroupPermissions(ctx context.Context, permissionID int64) ([]GroupPermission, error) {
	query := `
		SELECT id, permission_id, group_id, level
		FROM group_permissions
		WHERE permission_id = $1
		ORDER BY group_id
	`

	rows, err := s.db.QueryContext(ctx, query, permissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group permissions: %w", err)
	}
	defer rows.Close()

	var result []GroupPermission
	for rows.Next() {
		var gp GroupPermission
		var level string
		if err := rows.Scan(&gp.ID, &gp.PermissionID, &gp.GroupID, &level); err != nil {
			return nil, fmt.Errorf("failed to scan group permission: %w", err)
		}
		gp.Level = Level(level)
		result = append(result, gp)
	}
	return result, rows.Err()
}
