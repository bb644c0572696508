package dashboard

import "github.com/unicef-drp/geosight/pkg/migrate"

// Migrations returns the dashboard schema, versions 30-34
func Migrations() []migrate.Migration {
	return []migrate.Migration{
		{
			Version:     30,
			Description: "Create dashboards table",
			SQL: `
				CREATE TABLE IF NOT EXISTS dashboards (
					id BIGSERIAL PRIMARY KEY,
					slug VARCHAR(255) NOT NULL UNIQUE,
					name VARCHAR(255) NOT NULL,
					description TEXT,
					creator_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
					modified_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					modified_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_dashboards_creator_id ON dashboards(creator_id);
			`,
		},
		{
			Version:     31,
			Description: "Create dashboard_indicators table",
			SQL: `
				CREATE TABLE IF NOT EXISTS dashboard_indicators (
					id BIGSERIAL PRIMARY KEY,
					dashboard_id BIGINT NOT NULL REFERENCES dashboards(id) ON DELETE CASCADE,
					object_id BIGINT NOT NULL REFERENCES indicators(id) ON DELETE CASCADE,
					sort_order INT NOT NULL DEFAULT 0,
					UNIQUE(dashboard_id, object_id)
				);

				CREATE INDEX idx_dashboard_indicators_object_id ON dashboard_indicators(object_id);
			`,
		},
		{
			Version:     32,
			Description: "Create dashboard_context_layers table",
			SQL: `
				CREATE TABLE IF NOT EXISTS dashboard_context_layers (
					id BIGSERIAL PRIMARY KEY,
					dashboard_id BIGINT NOT NULL REFERENCES dashboards(id) ON DELETE CASCADE,
					object_id BIGINT NOT NULL REFERENCES context_layers(id) ON DELETE CASCADE,
					sort_order INT NOT NULL DEFAULT 0,
					UNIQUE(dashboard_id, object_id)
				);

				CREATE INDEX idx_dashboard_context_layers_object_id ON dashboard_context_layers(object_id);
			`,
		},
		{
			Version:     33,
			Description: "Create dashboard_related_tables table",
			SQL: `
				CREATE TABLE IF NOT EXISTS dashboard_related_tables (
					id BIGSERIAL PRIMARY KEY,
					dashboard_id BIGINT NOT NULL REFERENCES dashboards(id) ON DELETE CASCADE,
					object_id BIGINT NOT NULL REFERENCES related_tables(id) ON DELETE CASCADE,
					sort_order INT NOT NULL DEFAULT 0,
					UNIQUE(dashboard_id, object_id)
				);

				CREATE INDEX idx_dashboard_related_tables_object_id ON dashboard_related_tables(object_id);
			`,
		},
		{
			Version:     34,
			Description: "Create dashboard_caches table",
			SQL: `
				CREATE TABLE IF NOT EXISTS dashboard_caches (
					id BIGSERIAL PRIMARY KEY,
					dashboard_id BIGINT NOT NULL REFERENCES dashboards(id) ON DELETE CASCADE,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					cache TEXT,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(dashboard_id, user_id)
				);

				CREATE INDEX idx_dashboard_caches_user_id ON dashboard_caches(user_id);
			`,
		},
	}
}
