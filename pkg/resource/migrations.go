package resource

import "github.com/unicef-drp/geosight/pkg/migrate"

// Migrations returns the catalog schema, versions 20-27
func Migrations() []migrate.Migration {
	return []migrate.Migration{
		{
			Version:     20,
			Description: "Create indicators table",
			SQL: `
				CREATE TABLE IF NOT EXISTS indicators (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					shortcode VARCHAR(255),
					description TEXT,
					source VARCHAR(255),
					creator_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
					modified_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					modified_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_indicators_creator_id ON indicators(creator_id);
			`,
		},
		{
			Version:     21,
			Description: "Create context_layers table",
			SQL: `
				CREATE TABLE IF NOT EXISTS context_layers (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					description TEXT,
					url TEXT,
					layer_type VARCHAR(50),
					creator_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
					modified_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					modified_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_context_layers_creator_id ON context_layers(creator_id);
			`,
		},
		{
			Version:     22,
			Description: "Create related_tables table",
			SQL: `
				CREATE TABLE IF NOT EXISTS related_tables (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					description TEXT,
					sheet_name VARCHAR(255),
					version VARCHAR(64),
					creator_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
					modified_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					modified_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_related_tables_creator_id ON related_tables(creator_id);
			`,
		},
		{
			Version:     23,
			Description: "Create reference_layer_views table",
			SQL: `
				CREATE TABLE IF NOT EXISTS reference_layer_views (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					identifier VARCHAR(255) NOT NULL UNIQUE,
					description TEXT,
					in_georepo BOOLEAN NOT NULL DEFAULT FALSE,
					creator_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
					modified_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					modified_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     24,
			Description: "Create basemaps table",
			SQL: `
				CREATE TABLE IF NOT EXISTS basemaps (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					description TEXT,
					url TEXT,
					creator_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
					modified_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					modified_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     25,
			Description: "Create styles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS styles (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					description TEXT,
					style_type VARCHAR(50),
					creator_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
					modified_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					modified_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     26,
			Description: "Create harvesters table",
			SQL: `
				CREATE TABLE IF NOT EXISTS harvesters (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					harvester_class VARCHAR(255) NOT NULL,
					active BOOLEAN NOT NULL DEFAULT TRUE,
					creator_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
					modified_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					modified_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     27,
			Description: "Create cloud_native_gis_layers table",
			SQL: `
				CREATE TABLE IF NOT EXISTS cloud_native_gis_layers (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					layer_type VARCHAR(50),
					native_name VARCHAR(255),
					creator_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
					modified_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					modified_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
			`,
		},
	}
}
