package resource

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/unicef-drp/geosight/pkg/permission"
)

// SeedPermissions materializes an ACL row with catalog defaults for
// every resource that lacks one. Run after migrations so rows created
// before the permission tables existed become visible to listings.
func SeedPermissions(ctx context.Context, db *sql.DB, store *permission.Store) (int, error) {
	seeded := 0
	for rt, table := range refTables {
		refs, err := refsForTable(ctx, db, table, rt)
		if err != nil {
			return seeded, fmt.Errorf("failed to seed %s permissions: %w", rt, err)
		}
		for _, ref := range refs {
			if _, err := store.Get(ctx, ref.Type, ref.ID); err == nil {
				continue
			} else if err != permission.ErrNotFound {
				return seeded, err
			}
			if _, err := store.GetOrCreate(ctx, ref); err != nil {
				return seeded, err
			}
			seeded++
		}
	}
	return seeded, nil
}
