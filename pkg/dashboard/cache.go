package dashboard

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/unicef-drp/geosight/pkg/auth"
	"github.com/unicef-drp/geosight/pkg/permission"
)

// CacheStore holds one cached permission Bundle per (dashboard, user)
// pair. Rows are never deleted on invalidation, only their cache column
// is nulled; the janitor removes rows whose dashboard or user vanished.
//
// Invalidation arrives through the permission registry: a change to a
// dashboard's own ACL nulls that dashboard's rows, and a change to an
// embedded indicator, context layer or related table nulls the rows of
// every dashboard embedding it.
type CacheStore struct {
	db       *sql.DB
	resolver *permission.Resolver
	lookup   permission.RefLookup

	// onBuild and onHit observe cache traffic for metrics. May be nil.
	onBuild func()
	onHit   func()
}

// NewCacheStore creates a cache store
func NewCacheStore(db *sql.DB, resolver *permission.Resolver, lookup permission.RefLookup) *CacheStore {
	return &CacheStore{db: db, resolver: resolver, lookup: lookup}
}

// SetObservers installs cache metrics callbacks
func (c *CacheStore) SetObservers(onBuild, onHit func()) {
	c.onBuild = onBuild
	c.onHit = onHit
}

// GetCache returns the permission bundle for a user on a dashboard,
// serving the stored copy when it is fresh and rebuilding it otherwise.
// Anonymous users always get a fresh bundle and are never cached.
func (c *CacheStore) GetCache(ctx context.Context, dash *Dashboard, user *auth.User) (*Bundle, error) {
	if user == nil {
		if c.onBuild != nil {
			c.onBuild()
		}
		return c.buildBundle(ctx, dash, nil)
	}

	var raw sql.NullString
	err := c.db.QueryRowContext(ctx,
		`SELECT cache FROM dashboard_caches WHERE dashboard_id = $1 AND user_id = $2`,
		dash.ID, user.ID,
	).Scan(&raw)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to read dashboard cache: %w", err)
	}

	if raw.Valid {
		var bundle Bundle
		if jsonErr := json.Unmarshal([]byte(raw.String), &bundle); jsonErr == nil {
			if c.onHit != nil {
				c.onHit()
			}
			return &bundle, nil
		}
		// Unreadable cache payloads are rebuilt like nulled ones.
	}

	bundle, err := c.buildBundle(ctx, dash, user)
	if err != nil {
		return nil, err
	}
	if c.onBuild != nil {
		c.onBuild()
	}

	payload, err := json.Marshal(bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to encode dashboard cache: %w", err)
	}

	now := time.Now()
	query := `
		INSERT INTO dashboard_caches (dashboard_id, user_id, cache, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (dashboard_id, user_id) DO UPDATE SET cache = EXCLUDED.cache, updated_at = EXCLUDED.updated_at
	`
	if _, err := c.db.ExecContext(ctx, query, dash.ID, user.ID, string(payload), now, now); err != nil {
		return nil, fmt.Errorf("failed to store dashboard cache: %w", err)
	}
	return bundle, nil
}

func (c *CacheStore) buildBundle(ctx context.Context, dash *Dashboard, user *auth.User) (*Bundle, error) {
	bundle := &Bundle{
		Indicators:    map[string]BundleLeaf{},
		ContextLayers: map[string]BundleLeaf{},
		RelatedTables: map[string]BundleLeaf{},
	}

	sections := []struct {
		rt   permission.ResourceType
		dest map[string]BundleLeaf
	}{
		{permission.TypeIndicator, bundle.Indicators},
		{permission.TypeContextLayer, bundle.ContextLayers},
		{permission.TypeRelatedTable, bundle.RelatedTables},
	}

	for _, section := range sections {
		table := embedTables[section.rt]
		query := fmt.Sprintf(`SELECT object_id FROM %s WHERE dashboard_id = $1 ORDER BY sort_order, object_id`, table)

		rows, err := c.db.QueryContext(ctx, query, dash.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list dashboard embeds: %w", err)
		}

		var objectIDs []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan dashboard embed: %w", err)
			}
			objectIDs = append(objectIDs, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}

		for _, objectID := range objectIDs {
			ref, err := c.lookup.Lookup(ctx, section.rt, objectID)
			if errors.Is(err, permission.ErrNotFound) {
				// Stale embed link; the janitor will catch the row.
				continue
			}
			if err != nil {
				return nil, err
			}
			caps, err := c.resolver.AllPermissions(ctx, user, ref)
			if err != nil {
				return nil, err
			}
			section.dest[strconv.FormatInt(objectID, 10)] = BundleLeaf{Permission: caps}
		}
	}

	return bundle, nil
}

// InvalidateDashboard nulls every cached bundle of one dashboard
func (c *CacheStore) InvalidateDashboard(ctx context.Context, dashboardID int64) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE dashboard_caches SET cache = NULL, updated_at = $1 WHERE dashboard_id = $2`,
		time.Now(), dashboardID,
	)
	if err != nil {
		return fmt.Errorf("failed to invalidate dashboard caches: %w", err)
	}
	return nil
}

// InvalidateForResource nulls the cached bundles of every dashboard
// embedding the given resource.
func (c *CacheStore) InvalidateForResource(ctx context.Context, rt permission.ResourceType, objectID int64) error {
	table, ok := embedTables[rt]
	if !ok {
		return nil
	}

	query := fmt.Sprintf(`
		UPDATE dashboard_caches
		SET cache = NULL, updated_at = $1
		WHERE dashboard_id IN (SELECT dashboard_id FROM %s WHERE object_id = $2)
	`, table)

	if _, err := c.db.ExecContext(ctx, query, time.Now(), objectID); err != nil {
		return fmt.Errorf("failed to invalidate dashboard caches: %w", err)
	}
	return nil
}

// InvalidateUser nulls every cached bundle of one user, for group
// membership changes.
func (c *CacheStore) InvalidateUser(ctx context.Context, userID int64) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE dashboard_caches SET cache = NULL, updated_at = $1 WHERE user_id = $2`,
		time.Now(), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to invalidate user caches: %w", err)
	}
	return nil
}

// InvalidateAll nulls every cached bundle
func (c *CacheStore) InvalidateAll(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE dashboard_caches SET cache = NULL, updated_at = $1`, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to invalidate caches: %w", err)
	}
	return nil
}

// PermissionChanged implements permission.Subscriber. Dashboard ACL
// changes null that dashboard's rows; embedded resource ACL changes
// null the rows of dashboards embedding the resource. Invalidation
// errors never fail the originating ACL write.
func (c *CacheStore) PermissionChanged(ctx context.Context, rt permission.ResourceType, resourceID int64) {
	switch rt {
	case permission.TypeDashboard:
		_ = c.InvalidateDashboard(ctx, resourceID)
	case permission.TypeIndicator, permission.TypeContextLayer, permission.TypeRelatedTable:
		_ = c.InvalidateForResource(ctx, rt, resourceID)
	}
}
