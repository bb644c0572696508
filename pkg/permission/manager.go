package permission

import (
	"context"
	"fmt"
	"strings"

	"github.com/unicef-drp/geosight/pkg/auth"
)

// Manager gates resource creation on the caller's role and answers the
// bulk "which of these may this user X" queries that back list
// endpoints. Per-type resource stores embed a Manager.
type Manager struct {
	store    *Store
	resolver *Resolver
	groups   GroupLister
}

// NewManager creates a manager over the given store and resolver
func NewManager(store *Store, resolver *Resolver, groups GroupLister) *Manager {
	return &Manager{store: store, resolver: resolver, groups: groups}
}

// Resolver exposes the underlying per-object checks
func (m *Manager) Resolver() *Resolver {
	return m.resolver
}

// Store exposes the underlying ACL store
func (m *Manager) Store() *Store {
	return m.store
}

// PrepareCreate authorizes a resource creation. Only Creator and
// Super Admin roles may create protected resources.
func (m *Manager) PrepareCreate(ctx context.Context, user *auth.User) error {
	if !auth.IsCreator(user) {
		return ErrPermissionDenied
	}
	return nil
}

// Created registers a freshly created resource: its permission row is
// materialized with the catalog defaults so the ACL is editable
// immediately.
func (m *Manager) Created(ctx context.Context, ref Ref) (*Row, error) {
	return m.store.GetOrCreate(ctx, ref)
}

// ListIDs returns the subset of candidate resources the user may list
func (m *Manager) ListIDs(ctx context.Context, user *auth.User, rt ResourceType, refs []Ref) ([]int64, error) {
	return m.filterIDs(ctx, user, rt, refs, minList)
}

// ReadIDs returns the subset of candidate resources the user may read
func (m *Manager) ReadIDs(ctx context.Context, user *auth.User, rt ResourceType, refs []Ref) ([]int64, error) {
	return m.filterIDs(ctx, user, rt, refs, minRead)
}

// ReadDataIDs returns the subset whose data the user may read
func (m *Manager) ReadDataIDs(ctx context.Context, user *auth.User, rt ResourceType, refs []Ref) ([]int64, error) {
	return m.filterIDs(ctx, user, rt, refs, minReadData)
}

// EditIDs returns the subset the user may edit
func (m *Manager) EditIDs(ctx context.Context, user *auth.User, rt ResourceType, refs []Ref) ([]int64, error) {
	return m.filterIDs(ctx, user, rt, refs, minEdit)
}

// EditDataIDs returns the subset whose data the user may edit
func (m *Manager) EditDataIDs(ctx context.Context, user *auth.User, rt ResourceType, refs []Ref) ([]int64, error) {
	return m.filterIDs(ctx, user, rt, refs, minEditData)
}

// ShareIDs returns the subset whose ACL the user may change
func (m *Manager) ShareIDs(ctx context.Context, user *auth.User, rt ResourceType, refs []Ref) ([]int64, error) {
	return m.filterIDs(ctx, user, rt, refs, minShare)
}

// DeleteIDs returns the subset the user may delete
func (m *Manager) DeleteIDs(ctx context.Context, user *auth.User, rt ResourceType, refs []Ref) ([]int64, error) {
	return m.filterIDs(ctx, user, rt, refs, minDelete)
}

// filterIDs evaluates the ladder for a whole candidate set with three
// queries instead of one round-trip per resource: the permission rows
// for the type, the user's overrides, and the overrides of the user's
// groups. Candidates without a permission row are evaluated against
// the catalog defaults.
func (m *Manager) filterIDs(ctx context.Context, user *auth.User, rt ResourceType, refs []Ref, min Level) ([]int64, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	if auth.IsAdmin(user) {
		ids := make([]int64, 0, len(refs))
		for _, ref := range refs {
			ids = append(ids, ref.ID)
		}
		return ids, nil
	}

	rows, err := m.rowsForType(ctx, rt)
	if err != nil {
		return nil, err
	}

	var userOverrides, groupOverrides map[int64]Level
	if user != nil {
		userOverrides, err = m.userOverridesForType(ctx, rt, user.ID)
		if err != nil {
			return nil, err
		}

		if m.groups != nil {
			groupIDs, err := m.groups.GroupIDs(ctx, user.ID)
			if err != nil {
				return nil, err
			}
			groupOverrides, err = m.groupOverridesForType(ctx, rt, groupIDs)
			if err != nil {
				return nil, err
			}
		}
	}

	def := m.store.Policy().For(rt)

	var ids []int64
	for _, ref := range refs {
		if user != nil && ref.CreatorID != 0 && ref.CreatorID == user.ID {
			ids = append(ids, ref.ID)
			continue
		}

		var effective Level
		if row, ok := rows[ref.ID]; ok {
			effective = row.PublicPermission
			if user != nil {
				effective = maxLevel(effective, row.OrganizationPermission)
			}
		} else {
			effective = def.DefaultPublic
			if user != nil {
				effective = maxLevel(effective, def.DefaultOrganization)
			}
		}
		if override, ok := userOverrides[ref.ID]; ok {
			effective = maxLevel(effective, override)
		}
		if override, ok := groupOverrides[ref.ID]; ok {
			effective = maxLevel(effective, override)
		}

		if effective.AtLeast(min) {
			ids = append(ids, ref.ID)
		}
	}
	return ids, nil
}

func (m *Manager) rowsForType(ctx context.Context, rt ResourceType) (map[int64]Row, error) {
	query := `
		SELECT id, resource_id, organization_permission, public_permission
		FROM permissions
		WHERE resource_type = $1
	`

	rows, err := m.store.db.QueryContext(ctx, query, string(rt))
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()

	result := make(map[int64]Row)
	for rows.Next() {
		var row Row
		var orgLevel, publicLevel string
		if err := rows.Scan(&row.ID, &row.ResourceID, &orgLevel, &publicLevel); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		row.ResourceType = rt
		row.OrganizationPermission = Level(orgLevel)
		row.PublicPermission = Level(publicLevel)
		result[row.ResourceID] = row
	}
	return result, rows.Err()
}

func (m *Manager) userOverridesForType(ctx context.Context, rt ResourceType, userID int64) (map[int64]Level, error) {
	query := `
		SELECT p.resource_id, up.level
		FROM user_permissions up
		JOIN permissions p ON p.id = up.permission_id
		WHERE p.resource_type = $1 AND up.user_id = $2
	`

	rows, err := m.store.db.QueryContext(ctx, query, string(rt), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user overrides: %w", err)
	}
	defer rows.Close()

	result := make(map[int64]Level)
	for rows.Next() {
		var resourceID int64
		var level string
		if err := rows.Scan(&resourceID, &level); err != nil {
			return nil, fmt.Errorf("failed to scan user override: %w", err)
		}
		result[resourceID] = Level(level)
	}
	return result, rows.Err()
}

func (m *Manager) groupOverridesForType(ctx context.Context, rt ResourceType, groupIDs []int64) (map[int64]Level, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(groupIDs))
	args := make([]interface{}, 0, len(groupIDs)+1)
	args = append(args, string(rt))
	for i, id := range groupIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		SELECT p.resource_id, gp.level
		FROM group_permissions gp
		JOIN permissions p ON p.id = gp.permission_id
		WHERE p.resource_type = $1 AND gp.group_id IN (%s)
	`, strings.Join(placeholders, ", "))

	rows, err := m.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list group overrides: %w", err)
	}
	defer rows.Close()

	// A user in several groups keeps the highest level per resource.
	result := make(map[int64]Level)
	for rows.Next() {
		var resourceID int64
		var level string
		if err := rows.Scan(&resourceID, &level); err != nil {
			return nil, fmt.Errorf("failed to scan group override: %w", err)
		}
		result[resourceID] = maxLevel(result[resourceID], Level(level))
	}
	return result, rows.Err()
}
