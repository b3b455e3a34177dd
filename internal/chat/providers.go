package chat

import (
	"context"

	"github.com/adamavenir/parley/internal/types"
)

// Encrypter seals and opens message bodies. Key material is its own concern.
type Encrypter interface {
	Encrypt(ctx context.Context, plaintext []byte) (string, error)
	Decrypt(ctx context.Context, ciphertext string) ([]byte, error)
}

// Translator converts text between BCP 47 languages.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// Directory resolves users, groups and their settings. Missing or deleted
// entries are returned as nil without error.
type Directory interface {
	User(ctx context.Context, userID string) (*types.User, error)
	Group(ctx context.Context, groupID string) (*types.Group, error)
	IsGroupMember(ctx context.Context, groupID, userID string) (bool, error)
	GroupMembers(ctx context.Context, groupID string) ([]types.User, error)
}

// Notifier sends out-of-band call and meeting notifications.
type Notifier interface {
	SendCallNotification(ctx context.Context, recipient types.Party, callerName string) error
	SendMeetingInvitation(ctx context.Context, recipient types.Party, meeting types.Meeting, inviterName string) error
}
