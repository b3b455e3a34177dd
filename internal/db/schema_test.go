package db

import "testing"

func TestInitSchemaIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	exists, err := SchemaExists(db)
	if err != nil {
		t.Fatalf("schema exists: %v", err)
	}
	if exists {
		t.Fatal("expected empty database")
	}

	requireSchema(t, db)
	requireSchema(t, db)

	exists, err = SchemaExists(db)
	if err != nil {
		t.Fatalf("schema exists: %v", err)
	}
	if !exists {
		t.Fatal("expected schema after init")
	}
}

func TestMigrateAddsMissingColumns(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.Exec(`CREATE TABLE parley_messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		sender_id TEXT NOT NULL,
		recipient_id TEXT,
		conversation_key TEXT NOT NULL,
		conversation_kind TEXT NOT NULL,
		kind TEXT NOT NULL,
		file_kind TEXT,
		body TEXT NOT NULL,
		read_state TEXT NOT NULL DEFAULT 'unread',
		important INTEGER NOT NULL DEFAULT 0,
		forwarded INTEGER NOT NULL DEFAULT 0,
		starred INTEGER NOT NULL DEFAULT 0,
		view_once INTEGER NOT NULL DEFAULT 0,
		thread_parent_id TEXT,
		source_language TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		deleted_at INTEGER
	)`); err != nil {
		t.Fatalf("create legacy table: %v", err)
	}

	requireSchema(t, db)

	columns, err := getTableInfo(t.Context(), db, "parley_messages")
	if err != nil {
		t.Fatalf("table info: %v", err)
	}
	for _, name := range []string{"tag_user_id", "expire_at"} {
		if !hasColumn(columns, name) {
			t.Fatalf("expected migrated column %s", name)
		}
	}
}
