package db

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaSQL = `
-- Chat participants
CREATE TABLE IF NOT EXISTS parley_users (
  id TEXT PRIMARY KEY,                 -- e.g., "usr-x9y8z7w6"
  name TEXT NOT NULL,
  email TEXT,
  phone TEXT,
  chat_language TEXT NOT NULL DEFAULT 'en', -- BCP 47 tag, captured on each message
  created_at INTEGER NOT NULL,         -- unix ms
  deleted_at INTEGER                   -- soft delete
);

-- Groups and membership
CREATE TABLE IF NOT EXISTS parley_groups (
  id TEXT PRIMARY KEY,                 -- e.g., "grp-a1b2c3d4"; also the conversation key
  name TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  deleted_at INTEGER
);

CREATE TABLE IF NOT EXISTS parley_group_members (
  group_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  joined_at INTEGER NOT NULL,
  PRIMARY KEY (group_id, user_id),
  FOREIGN KEY (group_id) REFERENCES parley_groups(id),
  FOREIGN KEY (user_id) REFERENCES parley_users(id)
);

CREATE INDEX IF NOT EXISTS idx_parley_group_members_user ON parley_group_members(user_id);

-- Messages (append-only except read state, flags, deleted_at)
CREATE TABLE IF NOT EXISTS parley_messages (
  seq INTEGER PRIMARY KEY AUTOINCREMENT, -- monotonic tie-break for ordering
  id TEXT NOT NULL UNIQUE,             -- e.g., "msg-a1b2c3d4"
  sender_id TEXT NOT NULL,
  recipient_id TEXT,                   -- null for group messages
  conversation_key TEXT NOT NULL,      -- group id or derived direct key
  conversation_kind TEXT NOT NULL,     -- 'direct' or 'group'
  kind TEXT NOT NULL,                  -- 'text', 'file', 'call'
  file_kind TEXT,
  body TEXT NOT NULL,                  -- ciphertext, never plaintext
  read_state TEXT NOT NULL DEFAULT 'unread',
  important INTEGER NOT NULL DEFAULT 0,
  forwarded INTEGER NOT NULL DEFAULT 0,
  starred INTEGER NOT NULL DEFAULT 0,
  view_once INTEGER NOT NULL DEFAULT 0,
  expire_at INTEGER,                   -- unix ms; view-once and ephemeral
  thread_parent_id TEXT,               -- immediate parent only
  tag_user_id TEXT,
  source_language TEXT NOT NULL,       -- sender language at write time
  created_at INTEGER NOT NULL,         -- unix ms
  deleted_at INTEGER,
  FOREIGN KEY (thread_parent_id) REFERENCES parley_messages(id)
);

CREATE INDEX IF NOT EXISTS idx_parley_messages_conversation ON parley_messages(conversation_key, created_at, seq);
CREATE INDEX IF NOT EXISTS idx_parley_messages_unread ON parley_messages(recipient_id, sender_id, read_state);
CREATE INDEX IF NOT EXISTS idx_parley_messages_parent ON parley_messages(thread_parent_id);

-- Inbox index: latest message per (owner, counterpart, conversation)
CREATE TABLE IF NOT EXISTS parley_conversation_index (
  owner_id TEXT NOT NULL,
  counterpart_id TEXT NOT NULL,        -- user id (direct) or group id (group)
  conversation_key TEXT NOT NULL,
  conversation_kind TEXT NOT NULL,
  message_id TEXT NOT NULL,
  message_seq INTEGER NOT NULL,
  message_created_at INTEGER NOT NULL,
  has_attachment INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (owner_id, counterpart_id, conversation_key),
  FOREIGN KEY (message_id) REFERENCES parley_messages(id)
);

CREATE INDEX IF NOT EXISTS idx_parley_index_owner ON parley_conversation_index(owner_id, message_created_at, message_seq);
CREATE INDEX IF NOT EXISTS idx_parley_index_counterpart ON parley_conversation_index(counterpart_id, conversation_kind);

-- Call metadata, 1:1 with call messages
CREATE TABLE IF NOT EXISTS parley_call_records (
  message_id TEXT PRIMARY KEY,
  caller_id TEXT NOT NULL,
  callee_id TEXT NOT NULL,             -- user id, or group id for group calls
  conversation_kind TEXT NOT NULL,
  duration INTEGER NOT NULL DEFAULT 0, -- seconds
  call_state TEXT NOT NULL DEFAULT 'initiated',
  FOREIGN KEY (message_id) REFERENCES parley_messages(id)
);

-- Meetings and their invite log, one row per (meeting, user)
CREATE TABLE IF NOT EXISTS parley_meetings (
  id TEXT PRIMARY KEY,                 -- e.g., "mtg-a1b2c3d4"
  title TEXT NOT NULL,
  creator_id TEXT NOT NULL,
  starts_at INTEGER NOT NULL,          -- unix ms
  created_at INTEGER NOT NULL,
  FOREIGN KEY (creator_id) REFERENCES parley_users(id)
);

CREATE TABLE IF NOT EXISTS parley_meeting_invites (
  meeting_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  join_status TEXT NOT NULL DEFAULT 'invite',
  role TEXT NOT NULL DEFAULT 'participant',
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (meeting_id, user_id),
  FOREIGN KEY (meeting_id) REFERENCES parley_meetings(id),
  FOREIGN KEY (user_id) REFERENCES parley_users(id)
);

CREATE INDEX IF NOT EXISTS idx_parley_meeting_invites_user ON parley_meeting_invites(user_id);
`

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// InitSchema creates tables and runs additive migrations.
func InitSchema(db *sql.DB) error {
	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := initSchemaWith(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func initSchemaWith(ctx context.Context, db DBTX) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return migrateSchema(ctx, db)
}

// SchemaExists reports whether the message table has been created.
func SchemaExists(db *sql.DB) (bool, error) {
	row := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'parley_messages'")
	var name string
	if err := row.Scan(&name); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

type tableColumn struct {
	Name    string
	ColType string
	NotNull int
	PK      int
}

func getTableInfo(ctx context.Context, db DBTX, table string) ([]tableColumn, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []tableColumn
	for rows.Next() {
		var col tableColumn
		var cid int
		var defaultValue sql.NullString
		if err := rows.Scan(&cid, &col.Name, &col.ColType, &col.NotNull, &defaultValue, &col.PK); err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return columns, nil
}

func hasColumn(columns []tableColumn, name string) bool {
	for _, col := range columns {
		if col.Name == name {
			return true
		}
	}
	return false
}

// columnMigrations lists columns added after the first release. Older
// databases get them through ALTER TABLE.
var columnMigrations = []struct {
	table  string
	column string
	ddl    string
}{
	{"parley_messages", "tag_user_id", "ALTER TABLE parley_messages ADD COLUMN tag_user_id TEXT"},
	{"parley_messages", "expire_at", "ALTER TABLE parley_messages ADD COLUMN expire_at INTEGER"},
	{"parley_users", "phone", "ALTER TABLE parley_users ADD COLUMN phone TEXT"},
}

// postMigrationSQL indexes columns that may only exist after migration.
const postMigrationSQL = `
CREATE INDEX IF NOT EXISTS idx_parley_messages_expire ON parley_messages(expire_at);
`

func migrateSchema(ctx context.Context, db DBTX) error {
	cache := map[string][]tableColumn{}
	for _, migration := range columnMigrations {
		columns, ok := cache[migration.table]
		if !ok {
			var err error
			columns, err = getTableInfo(ctx, db, migration.table)
			if err != nil {
				return err
			}
			cache[migration.table] = columns
		}
		if hasColumn(columns, migration.column) {
			continue
		}
		if _, err := db.ExecContext(ctx, migration.ddl); err != nil {
			return fmt.Errorf("migrate %s.%s: %w", migration.table, migration.column, err)
		}
	}
	if _, err := db.ExecContext(ctx, postMigrationSQL); err != nil {
		return fmt.Errorf("post-migration indexes: %w", err)
	}
	return nil
}
