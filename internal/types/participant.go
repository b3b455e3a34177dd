package types

import "fmt"

// Participant is the addressee of a submission: a single user or a group.
// The set of implementations is closed to this package.
type Participant interface {
	participant()
	ID() string
	Kind() ConversationKind
}

// UserTarget addresses a direct conversation with one user.
type UserTarget struct {
	UserID string
}

func (UserTarget) participant() {}
func (t UserTarget) ID() string { return t.UserID }
func (UserTarget) Kind() ConversationKind { return ConversationDirect }
func (t UserTarget) String() string { return "user:" + t.UserID }

// GroupTarget addresses a group conversation.
type GroupTarget struct {
	GroupID string
}

func (GroupTarget) participant() {}
func (t GroupTarget) ID() string { return t.GroupID }
func (GroupTarget) Kind() ConversationKind { return ConversationGroup }
func (t GroupTarget) String() string { return "group:" + t.GroupID }

// ParseParticipant builds a Participant from its wire kind ("user" or "group").
func ParseParticipant(kind, id string) (Participant, error) {
	switch kind {
	case "user", string(ConversationDirect):
		return UserTarget{UserID: id}, nil
	case string(ConversationGroup):
		return GroupTarget{GroupID: id}, nil
	default:
		return nil, fmt.Errorf("unknown participant kind %q", kind)
	}
}

// ConversationKey identifies the conversation a message belongs to.
type ConversationKey interface {
	conversationKey()
	String() string
}

// GroupKey is the key of a group conversation: the group id itself.
type GroupKey struct {
	GroupID string
}

func (GroupKey) conversationKey() {}
func (k GroupKey) String() string { return k.GroupID }

// DirectKey is the canonical key shared by both sides of a direct chat.
type DirectKey struct {
	Key string
}

func (DirectKey) conversationKey() {}
func (k DirectKey) String() string { return k.Key }
