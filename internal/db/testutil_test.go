package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/adamavenir/parley/internal/types"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := OpenDatabase(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func requireSchema(t *testing.T, db *sql.DB) {
	t.Helper()
	if err := InitSchema(db); err != nil {
		t.Fatalf("init schema: %v", err)
	}
}

func requireUser(t *testing.T, db *sql.DB, id, name string) types.User {
	t.Helper()
	user, err := CreateUser(context.Background(), db, types.User{ID: id, Name: name, CreatedAt: 1})
	if err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
	return user
}

func requireDirect(t *testing.T, db *sql.DB, from, to, key string, createdAt int64) types.Message {
	t.Helper()
	ctx := context.Background()
	var created types.Message
	err := WithTx(ctx, db, func(tx *sql.Tx) error {
		var err error
		created, err = CreateMessage(ctx, tx, types.Message{
			SenderID:         from,
			RecipientID:      strPtr(to),
			ConversationKey:  key,
			ConversationKind: types.ConversationDirect,
			Kind:             types.MessageKindText,
			Body:             "cipher",
			SourceLanguage:   "en",
			CreatedAt:        createdAt,
		})
		if err != nil {
			return err
		}
		return TouchIndex(ctx, tx, created)
	})
	if err != nil {
		t.Fatalf("create direct message: %v", err)
	}
	return created
}

func strPtr(value string) *string {
	return &value
}

func intPtr(value int64) *int64 {
	return &value
}
