package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store handles user, group and token persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new auth store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateUser creates a new user
func (s *Store) CreateUser(ctx context.Context, user *User) error {
	if user.Role == "" {
		user.Role = RoleViewer
	}
	if _, err := ParseRole(string(user.Role)); err != nil {
		return err
	}

	query := `
		INSERT INTO users (username, email, role, is_staff, is_superuser, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	now := time.Now()
	err := s.db.QueryRowContext(ctx, query,
		user.Username,
		user.Email,
		string(user.Role),
		user.IsStaff,
		user.IsSuperuser,
		true,
		now,
		now,
	).Scan(&user.ID)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.IsActive = true
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(ctx context.Context, userID int64) (*User, error) {
	query := `
		SELECT id, username, email, role, is_staff, is_superuser, is_active, created_at, updated_at, last_login_at
		FROM users
		WHERE id = $1
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, userID))
}

// GetUserByUsername retrieves a user by username
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	query := `
		SELECT id, username, email, role, is_staff, is_superuser, is_active, created_at, updated_at, last_login_at
		FROM users
		WHERE username = $1
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

// UpdateRole changes a user's role. Unknown role names are rejected
// with ErrRoleNotFound.
func (s *Store) UpdateRole(ctx context.Context, userID int64, roleName string) error {
	role, err := ParseRole(roleName)
	if err != nil {
		return err
	}

	query := `UPDATE users SET role = $1, updated_at = $2 WHERE id = $3`
	result, err := s.db.ExecContext(ctx, query, string(role), time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("user not found: %d", userID)
	}
	return nil
}

// CreateGroup creates a new group
func (s *Store) CreateGroup(ctx context.Context, group *Group) error {
	query := `
		INSERT INTO groups (name, description, creator_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	now := time.Now()
	var creatorID interface{}
	if group.CreatorID != 0 {
		creatorID = group.CreatorID
	}
	err := s.db.QueryRowContext(ctx, query,
		group.Name,
		group.Description,
		creatorID,
		now,
		now,
	).Scan(&group.ID)

	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	group.CreatedAt = now
	group.UpdatedAt = now
	return nil
}

// GetGroup retrieves a group by ID
func (s *Store) GetGroup(ctx context.Context, groupID int64) (*Group, error) {
	query := `
		SELECT id, name, description, creator_id, created_at, updated_at
		FROM groups
		WHERE id = $1
	`

	var group Group
	var creatorID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, groupID).Scan(
		&group.ID,
		&group.Name,
		&group.Description,
		&creatorID,
		&group.CreatedAt,
		&group.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("group not found: %d", groupID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	if creatorID.Valid {
		group.CreatorID = creatorID.Int64
	}
	return &group, nil
}

// AddGroupMember adds a user to a group, idempotently
func (s *Store) AddGroupMember(ctx context.Context, groupID, userID int64) error {
	query := `
		INSERT INTO user_groups (group_id, user_id, added_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (group_id, user_id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, groupID, userID, time.Now()); err != nil {
		return fmt.Errorf("failed to add group member: %w", err)
	}
	return nil
}

// RemoveGroupMember removes a user from a group
func (s *Store) RemoveGroupMember(ctx context.Context, groupID, userID int64) error {
	query := `DELETE FROM user_groups WHERE group_id = $1 AND user_id = $2`
	if _, err := s.db.ExecContext(ctx, query, groupID, userID); err != nil {
		return fmt.Errorf("failed to remove group member: %w", err)
	}
	return nil
}

// GroupIDs returns the ids of every group the user belongs to
func (s *Store) GroupIDs(ctx context.Context, userID int64) ([]int64, error) {
	query := `SELECT group_id FROM user_groups WHERE user_id = $1 ORDER BY group_id`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group memberships: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan group id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GroupMemberIDs returns the ids of every user in a group
func (s *Store) GroupMemberIDs(ctx context.Context, groupID int64) ([]int64, error) {
	query := `SELECT user_id FROM user_groups WHERE group_id = $1 ORDER BY user_id`

	rows, err := s.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group members: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertToken stores a new API token row
func (s *Store) InsertToken(ctx context.Context, token *APIToken) error {
	query := `
		INSERT INTO api_tokens (user_id, token_hash, name, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	now := time.Now()
	err := s.db.QueryRowContext(ctx, query,
		token.UserID,
		token.TokenHash,
		token.Name,
		token.ExpiresAt,
		now,
	).Scan(&token.ID)

	if err != nil {
		return fmt.Errorf("failed to insert token: %w", err)
	}

	token.CreatedAt = now
	return nil
}

// GetTokenByHash looks up an unrevoked, unexpired token by its hash
func (s *Store) GetTokenByHash(ctx context.Context, hash string) (*APIToken, error) {
	query := `
		SELECT id, user_id, token_hash, name, expires_at, last_used_at, created_at, revoked_at
		FROM api_tokens
		WHERE token_hash = $1
		  AND revoked_at IS NULL
		  AND (expires_at IS NULL OR expires_at > CURRENT_TIMESTAMP)
	`

	var token APIToken
	var expiresAt, lastUsedAt, revokedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, hash).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.Name,
		&expiresAt,
		&lastUsedAt,
		&token.CreatedAt,
		&revokedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	if expiresAt.Valid {
		t := expiresAt.Time
		token.ExpiresAt = &t
	}
	if lastUsedAt.Valid {
		t := lastUsedAt.Time
		token.LastUsedAt = &t
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		token.RevokedAt = &t
	}
	return &token, nil
}

// RevokeToken marks a token as revoked
func (s *Store) RevokeToken(ctx context.Context, tokenID int64) error {
	query := `UPDATE api_tokens SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL`
	if _, err := s.db.ExecContext(ctx, query, time.Now(), tokenID); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// PurgeExpiredTokens deletes tokens past their expiry, returning the count
func (s *Store) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	query := `DELETE FROM api_tokens WHERE expires_at IS NOT NULL AND expires_at <= CURRENT_TIMESTAMP`
	result, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to purge tokens: %w", err)
	}
	return result.RowsAffected()
}

func (s *Store) scanUser(row *sql.Row) (*User, error) {
	var user User
	var role string
	var lastLoginAt sql.NullTime

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&role,
		&user.IsStaff,
		&user.IsSuperuser,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
		&lastLoginAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.Role = Role(role)
	if lastLoginAt.Valid {
		t := lastLoginAt.Time
		user.LastLoginAt = &t
	}
	return &user, nil
}
