package dashboard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/unicef-drp/geosight/pkg/auth"
	"github.com/unicef-drp/geosight/pkg/permission"
)

// ErrNotFound is returned when a dashboard does not exist
var ErrNotFound = errors.New("dashboard not found")

// embedTables maps embedded resource types to their join tables
var embedTables = map[permission.ResourceType]string{
	permission.TypeIndicator:    "dashboard_indicators",
	permission.TypeContextLayer: "dashboard_context_layers",
	permission.TypeRelatedTable: "dashboard_related_tables",
}

// Store persists dashboards and their embedded resource links
type Store struct {
	db      *sql.DB
	manager *permission.Manager
	cache   *CacheStore
}

// NewStore creates a dashboard store
func NewStore(db *sql.DB, manager *permission.Manager, cache *CacheStore) *Store {
	return &Store{db: db, manager: manager, cache: cache}
}

// Slugify derives a URL slug from a dashboard name
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Create inserts a new dashboard. Requires the Creator role.
func (s *Store) Create(ctx context.Context, user *auth.User, dash *Dashboard) error {
	if err := s.manager.PrepareCreate(ctx, user); err != nil {
		return err
	}

	if dash.Slug == "" {
		dash.Slug = Slugify(dash.Name)
	}

	now := time.Now()
	dash.CreatorID = user.ID
	dash.ModifiedBy = user.ID
	dash.CreatedAt = now
	dash.ModifiedAt = now

	query := `
		INSERT INTO dashboards (slug, name, description, creator_id, modified_by, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		dash.Slug, dash.Name, dash.Description,
		dash.CreatorID, dash.ModifiedBy, dash.CreatedAt, dash.ModifiedAt,
	).Scan(&dash.ID)
	if err != nil {
		return fmt.Errorf("failed to create dashboard: %w", err)
	}

	_, err = s.manager.Created(ctx, dash.PermissionRef())
	return err
}

// Get fetches a dashboard by id. Requires READ.
func (s *Store) Get(ctx context.Context, user *auth.User, id int64) (*Dashboard, error) {
	dash, err := s.scanOne(ctx, `WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if err := s.manager.Resolver().RequireRead(ctx, user, dash.PermissionRef()); err != nil {
		return nil, err
	}
	return dash, nil
}

// GetBySlug fetches a dashboard by slug. Requires READ.
func (s *Store) GetBySlug(ctx context.Context, user *auth.User, slug string) (*Dashboard, error) {
	dash, err := s.scanOne(ctx, `WHERE slug = $1`, slug)
	if err != nil {
		return nil, err
	}
	if err := s.manager.Resolver().RequireRead(ctx, user, dash.PermissionRef()); err != nil {
		return nil, err
	}
	return dash, nil
}

func (s *Store) scanOne(ctx context.Context, where string, arg interface{}) (*Dashboard, error) {
	query := `
		SELECT id, slug, name, description, creator_id, COALESCE(modified_by, 0), created_at, modified_at
		FROM dashboards
	` + where

	var dash Dashboard
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&dash.ID, &dash.Slug, &dash.Name, &dash.Description,
		&dash.CreatorID, &dash.ModifiedBy, &dash.CreatedAt, &dash.ModifiedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dashboard: %w", err)
	}
	return &dash, nil
}

// List returns the dashboards the user may list
func (s *Store) List(ctx context.Context, user *auth.User) ([]Dashboard, error) {
	query := `
		SELECT id, slug, name, description, creator_id, COALESCE(modified_by, 0), created_at, modified_at
		FROM dashboards
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list dashboards: %w", err)
	}
	defer rows.Close()

	var all []Dashboard
	var refs []permission.Ref
	for rows.Next() {
		var dash Dashboard
		if err := rows.Scan(
			&dash.ID, &dash.Slug, &dash.Name, &dash.Description,
			&dash.CreatorID, &dash.ModifiedBy, &dash.CreatedAt, &dash.ModifiedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan dashboard: %w", err)
		}
		all = append(all, dash)
		refs = append(refs, dash.PermissionRef())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids, err := s.manager.ListIDs(ctx, user, permission.TypeDashboard, refs)
	if err != nil {
		return nil, err
	}
	allowed := make(map[int64]bool, len(ids))
	for _, id := range ids {
		allowed[id] = true
	}

	var result []Dashboard
	for _, dash := range all {
		if allowed[dash.ID] {
			result = append(result, dash)
		}
	}
	return result, nil
}

// Update saves metadata changes and invalidates the dashboard's cached
// permission bundles. Requires WRITE.
func (s *Store) Update(ctx context.Context, user *auth.User, dash *Dashboard) error {
	existing, err := s.scanOne(ctx, `WHERE id = $1`, dash.ID)
	if err != nil {
		return err
	}
	if err := s.manager.Resolver().RequireEdit(ctx, user, existing.PermissionRef()); err != nil {
		return err
	}

	dash.CreatorID = existing.CreatorID
	dash.ModifiedBy = user.ID
	dash.ModifiedAt = time.Now()
	if dash.Slug == "" {
		dash.Slug = existing.Slug
	}

	query := `
		UPDATE dashboards
		SET slug = $1, name = $2, description = $3, modified_by = $4, modified_at = $5
		WHERE id = $6
	`
	if _, err := s.db.ExecContext(ctx, query,
		dash.Slug, dash.Name, dash.Description,
		dash.ModifiedBy, dash.ModifiedAt, dash.ID,
	); err != nil {
		return fmt.Errorf("failed to update dashboard: %w", err)
	}

	return s.cache.InvalidateDashboard(ctx, dash.ID)
}

// Delete removes a dashboard, its embed links, its caches and its ACL.
// Requires OWNER.
func (s *Store) Delete(ctx context.Context, user *auth.User, id int64) error {
	existing, err := s.scanOne(ctx, `WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if err := s.manager.Resolver().RequireDelete(ctx, user, existing.PermissionRef()); err != nil {
		return err
	}

	for _, table := range embedTables {
		query := fmt.Sprintf(`DELETE FROM %s WHERE dashboard_id = $1`, table)
		if _, err := s.db.ExecContext(ctx, query, id); err != nil {
			return fmt.Errorf("failed to delete dashboard embeds: %w", err)
		}
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM dashboard_caches WHERE dashboard_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete dashboard caches: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM dashboards WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete dashboard: %w", err)
	}

	return s.manager.Store().DeleteForResource(ctx, existing.PermissionRef())
}

// SetEmbeds replaces the embedded resources of one type on a dashboard
// and invalidates its cached bundles. Requires WRITE.
func (s *Store) SetEmbeds(ctx context.Context, user *auth.User, dashboardID int64, rt permission.ResourceType, embeds []Embed) error {
	table, ok := embedTables[rt]
	if !ok {
		return fmt.Errorf("%w: %q cannot be embedded", permission.ErrUnknownResourceType, rt)
	}

	existing, err := s.scanOne(ctx, `WHERE id = $1`, dashboardID)
	if err != nil {
		return err
	}
	if err := s.manager.Resolver().RequireEdit(ctx, user, existing.PermissionRef()); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE dashboard_id = $1`, table), dashboardID,
	); err != nil {
		return fmt.Errorf("failed to clear dashboard embeds: %w", err)
	}

	for _, embed := range embeds {
		query := fmt.Sprintf(`
			INSERT INTO %s (dashboard_id, object_id, sort_order)
			VALUES ($1, $2, $3)
		`, table)
		if _, err := s.db.ExecContext(ctx, query, dashboardID, embed.ObjectID, embed.Order); err != nil {
			return fmt.Errorf("failed to add dashboard embed: %w", err)
		}
	}

	return s.cache.InvalidateDashboard(ctx, dashboardID)
}

// Embeds returns the embedded resources of one type, in display order
func (s *Store) Embeds(ctx context.Context, dashboardID int64, rt permission.ResourceType) ([]Embed, error) {
	table, ok := embedTables[rt]
	if !ok {
		return nil, fmt.Errorf("%w: %q cannot be embedded", permission.ErrUnknownResourceType, rt)
	}

	query := fmt.Sprintf(`
		SELECT object_id, sort_order
		FROM %s
		WHERE dashboard_id = $1
		ORDER BY sort_order, object_id
	`, table)

	rows, err := s.db.QueryContext(ctx, query, dashboardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dashboard embeds: %w", err)
	}
	defer rows.Close()

	var embeds []Embed
	for rows.Next() {
		var embed Embed
		if err := rows.Scan(&embed.ObjectID, &embed.Order); err != nil {
			return nil, fmt.Errorf("failed to scan dashboard embed: %w", err)
		}
		embeds = append(embeds, embed)
	}
	return embeds, rows.Err()
}
