package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/adamavenir/parley/internal/core"
	"github.com/adamavenir/parley/internal/types"
)

// ErrDuplicate is returned when a directory row already exists.
var ErrDuplicate = errors.New("already exists")

const userColumns = `id, name, email, phone, chat_language, created_at`

// CreateUser adds a user. An empty ID is generated.
func CreateUser(ctx context.Context, db DBTX, user types.User) (types.User, error) {
	if user.ID == "" {
		id, err := generateUniqueID(ctx, db, "parley_users", "usr")
		if err != nil {
			return types.User{}, err
		}
		user.ID = id
	}
	user.ChatLanguage = core.NormalizeLanguage(user.ChatLanguage)

	_, err := db.ExecContext(ctx, `
		INSERT INTO parley_users (id, name, email, phone, chat_language, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, user.ID, user.Name, nullIfEmpty(user.Email), nullIfEmpty(user.Phone), user.ChatLanguage, user.CreatedAt)
	if err != nil {
		if isConstraintError(err) {
			return types.User{}, fmt.Errorf("user %s: %w", user.ID, ErrDuplicate)
		}
		return types.User{}, err
	}
	return user, nil
}

// GetUser returns an active user, or (nil, nil) if missing or deleted.
func GetUser(ctx context.Context, db DBTX, userID string) (*types.User, error) {
	row := db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT %s FROM parley_users WHERE id = ? AND deleted_at IS NULL", userColumns,
	), userID)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUsers lists active users ordered by name.
func GetUsers(ctx context.Context, db DBTX) ([]types.User, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(
		"SELECT %s FROM parley_users WHERE deleted_at IS NULL ORDER BY name, id", userColumns,
	))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

// SetChatLanguage updates the language captured on the user's future messages.
func SetChatLanguage(ctx context.Context, db DBTX, userID, tag string) error {
	result, err := db.ExecContext(ctx,
		"UPDATE parley_users SET chat_language = ? WHERE id = ? AND deleted_at IS NULL",
		core.NormalizeLanguage(tag), userID,
	)
	if err != nil {
		return err
	}
	ok, err := expectOneRow(result)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// DeleteUser soft-deletes a user; their conversations become orphaned.
func DeleteUser(ctx context.Context, db DBTX, userID string, deletedAt int64) error {
	result, err := db.ExecContext(ctx,
		"UPDATE parley_users SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL",
		deletedAt, userID,
	)
	if err != nil {
		return err
	}
	ok, err := expectOneRow(result)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// CreateGroup adds a group. An empty ID is generated.
func CreateGroup(ctx context.Context, db DBTX, group types.Group) (types.Group, error) {
	if group.ID == "" {
		id, err := generateUniqueID(ctx, db, "parley_groups", "grp")
		if err != nil {
			return types.Group{}, err
		}
		group.ID = id
	}
	_, err := db.ExecContext(ctx,
		"INSERT INTO parley_groups (id, name, created_at) VALUES (?, ?, ?)",
		group.ID, group.Name, group.CreatedAt,
	)
	if err != nil {
		if isConstraintError(err) {
			return types.Group{}, fmt.Errorf("group %s: %w", group.ID, ErrDuplicate)
		}
		return types.Group{}, err
	}
	return group, nil
}

// GetGroup returns an active group, or (nil, nil).
func GetGroup(ctx context.Context, db DBTX, groupID string) (*types.Group, error) {
	row := db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM parley_groups WHERE id = ? AND deleted_at IS NULL", groupID,
	)
	var group types.Group
	err := row.Scan(&group.ID, &group.Name, &group.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// DeleteGroup soft-deletes a group.
func DeleteGroup(ctx context.Context, db DBTX, groupID string, deletedAt int64) error {
	result, err := db.ExecContext(ctx,
		"UPDATE parley_groups SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL",
		deletedAt, groupID,
	)
	if err != nil {
		return err
	}
	ok, err := expectOneRow(result)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// AddGroupMember adds userID to groupID. Re-adding is a no-op.
func AddGroupMember(ctx context.Context, db DBTX, groupID, userID string, joinedAt int64) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO parley_group_members (group_id, user_id, joined_at) VALUES (?, ?, ?)
		ON CONFLICT(group_id, user_id) DO NOTHING
	`, groupID, userID, joinedAt)
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("add %s to %s: %w", userID, groupID, ErrNotFound)
		}
		return err
	}
	return nil
}

// IsGroupMember reports whether userID belongs to groupID.
func IsGroupMember(ctx context.Context, db DBTX, groupID, userID string) (bool, error) {
	row := db.QueryRowContext(ctx,
		"SELECT 1 FROM parley_group_members WHERE group_id = ? AND user_id = ?", groupID, userID,
	)
	var exists int
	err := row.Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetGroupMembers lists the active users in a group.
func GetGroupMembers(ctx context.Context, db DBTX, groupID string) ([]types.User, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT u.id, u.name, u.email, u.phone, u.chat_language, u.created_at
		FROM parley_group_members m
		JOIN parley_users u ON u.id = m.user_id
		WHERE m.group_id = ? AND u.deleted_at IS NULL
		ORDER BY m.joined_at, u.id
	`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

// GetUserGroupIDs lists the groups a user belongs to.
func GetUserGroupIDs(ctx context.Context, db DBTX, userID string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT m.group_id FROM parley_group_members m
		JOIN parley_groups g ON g.id = m.group_id
		WHERE m.user_id = ? AND g.deleted_at IS NULL
		ORDER BY m.group_id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanUsers(rows *sql.Rows) ([]types.User, error) {
	var users []types.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func scanUser(scanner interface{ Scan(dest ...any) error }) (types.User, error) {
	var user types.User
	var email, phone sql.NullString
	if err := scanner.Scan(&user.ID, &user.Name, &email, &phone, &user.ChatLanguage, &user.CreatedAt); err != nil {
		return types.User{}, err
	}
	user.Email = email.String
	user.Phone = phone.String
	return user, nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// Directory serves identity and settings lookups from the database.
type Directory struct {
	DB DBTX
}

func (d Directory) User(ctx context.Context, userID string) (*types.User, error) {
	return GetUser(ctx, d.DB, userID)
}

func (d Directory) Group(ctx context.Context, groupID string) (*types.Group, error) {
	return GetGroup(ctx, d.DB, groupID)
}

func (d Directory) IsGroupMember(ctx context.Context, groupID, userID string) (bool, error) {
	return IsGroupMember(ctx, d.DB, groupID, userID)
}

func (d Directory) GroupMembers(ctx context.Context, groupID string) ([]types.User, error) {
	return GetGroupMembers(ctx, d.DB, groupID)
}

func (d Directory) UserGroups(ctx context.Context, userID string) ([]string, error) {
	return GetUserGroupIDs(ctx, d.DB, userID)
}
