package core

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

const directKeyPrefix = "dm-"

// directKeyNamespace scopes direct conversation keys so they never collide
// with other UUIDv5 values derived from user ids.
var directKeyNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("parley.conversation.direct"))

// DirectConversationKey derives the canonical key for the unordered pair {a, b}.
// The result does not depend on argument order.
func DirectConversationKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	id := uuid.NewSHA1(directKeyNamespace, []byte(strings.Join(pair, "\x00")))
	return directKeyPrefix + id.String()
}

// IsDirectConversationKey reports whether key has the shape of a derived direct key.
func IsDirectConversationKey(key string) bool {
	if !strings.HasPrefix(key, directKeyPrefix) {
		return false
	}
	_, err := uuid.Parse(strings.TrimPrefix(key, directKeyPrefix))
	return err == nil
}

// NewConnectionID returns a random identifier for a realtime connection.
func NewConnectionID() string {
	return "conn-" + uuid.NewString()
}
