package db

import (
	"context"
	"testing"

	"github.com/adamavenir/parley/internal/types"
)

func TestCountUnreadIsExactAndScoped(t *testing.T) {
	db := openTestDB(t)
	requireSchema(t, db)
	ctx := context.Background()

	var fromBob []types.Message
	for i := 0; i < 15; i++ {
		fromBob = append(fromBob, requireDirect(t, db, "usr-bob", "usr-alice", "dm-1", int64(100+i)))
	}
	requireDirect(t, db, "usr-alice", "usr-bob", "dm-1", 200)
	requireDirect(t, db, "usr-carol", "usr-alice", "dm-2", 300)
	// Messages under a stray key between the same pair still count.
	requireDirect(t, db, "usr-bob", "usr-alice", "dm-stray", 400)

	count, err := CountUnread(ctx, db, "usr-alice", "usr-bob", types.ConversationDirect)
	if err != nil {
		t.Fatalf("count unread: %v", err)
	}
	if count != 16 {
		t.Fatalf("expected 16 unread beyond any page window, got %d", count)
	}

	if _, err := SetReadState(ctx, db, fromBob[3].ID, types.ReadStateRead); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	after, err := CountUnread(ctx, db, "usr-alice", "usr-bob", types.ConversationDirect)
	if err != nil {
		t.Fatalf("count unread: %v", err)
	}
	if after != count-1 {
		t.Fatalf("expected %d after marking one read, got %d", count-1, after)
	}

	bobSide, err := CountUnread(ctx, db, "usr-bob", "usr-alice", types.ConversationDirect)
	if err != nil {
		t.Fatalf("count unread: %v", err)
	}
	if bobSide != 1 {
		t.Fatalf("expected bob to have 1 unread, got %d", bobSide)
	}

	if err := SoftDeleteMessage(ctx, db, fromBob[4].ID, 999); err != nil {
		t.Fatalf("delete: %v", err)
	}
	afterDelete, _ := CountUnread(ctx, db, "usr-alice", "usr-bob", types.ConversationDirect)
	if afterDelete != after-1 {
		t.Fatalf("expected deleted message to drop from count, got %d", afterDelete)
	}

	marked, err := MarkConversationRead(ctx, db, "usr-alice", "usr-bob", types.ConversationDirect)
	if err != nil {
		t.Fatalf("mark conversation read: %v", err)
	}
	if marked != int64(afterDelete) {
		t.Fatalf("expected %d marked, got %d", afterDelete, marked)
	}
	zero, _ := CountUnread(ctx, db, "usr-alice", "usr-bob", types.ConversationDirect)
	if zero != 0 {
		t.Fatalf("expected 0 unread, got %d", zero)
	}
}

func TestCountUnreadGroupExcludesOwnMessages(t *testing.T) {
	db := openTestDB(t)
	requireSchema(t, db)
	ctx := context.Background()

	for i, sender := range []string{"usr-alice", "usr-bob", "usr-bob", "usr-carol"} {
		_, err := CreateMessage(ctx, db, types.Message{
			SenderID:         sender,
			ConversationKey:  "grp-1",
			ConversationKind: types.ConversationGroup,
			Kind:             types.MessageKindText,
			Body:             "cipher",
			SourceLanguage:   "en",
			CreatedAt:        int64(i + 1),
		})
		if err != nil {
			t.Fatalf("create group message: %v", err)
		}
	}

	count, err := CountUnread(ctx, db, "usr-alice", "grp-1", types.ConversationGroup)
	if err != nil {
		t.Fatalf("count unread: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 unread for alice, got %d", count)
	}
}
