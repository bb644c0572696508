package permission

import "github.com/unicef-drp/geosight/pkg/migrate"

// Migrations returns the ACL schema, versions 10-12
func Migrations() []migrate.Migration {
	return []migrate.Migration{
		{
			Version:     10,
			Description: "Create permissions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS permissions (
					id BIGSERIAL PRIMARY KEY,
					resource_type VARCHAR(50) NOT NULL,
					resource_id BIGINT NOT NULL,
					organization_permission VARCHAR(20) NOT NULL DEFAULT 'NONE',
					public_permission VARCHAR(20) NOT NULL DEFAULT 'NONE',
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(resource_type, resource_id)
				);

				CREATE INDEX idx_permissions_resource ON permissions(resource_type, resource_id);
			`,
		},
		{
			Version:     11,
			Description: "Create user_permissions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_permissions (
					id BIGSERIAL PRIMARY KEY,
					permission_id BIGINT NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					level VARCHAR(20) NOT NULL,
					UNIQUE(permission_id, user_id)
				);

				CREATE INDEX idx_user_permissions_user_id ON user_permissions(user_id);
				CREATE INDEX idx_user_permissions_permission_id ON user_permissions(permission_id);
			`,
		},
		{
			Version:     12,
			Description: "Create group_permissions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS group_permissions (
					id BIGSERIAL PRIMARY KEY,
					permission_id BIGINT NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
					group_id BIGINT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
					level VARCHAR(20) NOT NULL,
					UNIQUE(permission_id, group_id)
				);

				CREATE INDEX idx_group_permissions_group_id ON group_permissions(group_id);
				CREATE INDEX idx_group_permissions_permission_id ON group_permissions(permission_id);
			`,
		},
	}
}
