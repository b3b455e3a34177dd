package types

// MessageKind is the content kind of a chat message.
type MessageKind string

const (
	MessageKindText MessageKind = "text"
	MessageKindFile MessageKind = "file"
	MessageKindCall MessageKind = "call"
)

// Valid reports whether the kind is one of the known message kinds.
func (k MessageKind) Valid() bool {
	switch k {
	case MessageKindText, MessageKindFile, MessageKindCall:
		return true
	}
	return false
}

// ReadState is the single unread flag carried by a message.
type ReadState string

const (
	ReadStateUnread ReadState = "unread"
	ReadStateRead   ReadState = "read"
)

// ConversationKind distinguishes direct chats from group chats.
type ConversationKind string

const (
	ConversationDirect ConversationKind = "direct"
	ConversationGroup  ConversationKind = "group"
)

// CallState tracks the lifecycle of a call message.
type CallState string

const (
	CallStateInitiated CallState = "initiated"
	CallStateAnswered  CallState = "answered"
	CallStateMissed    CallState = "missed"
	CallStateDeclined  CallState = "declined"
	CallStateEnded     CallState = "ended"
)

// Valid reports whether the state is a known call state.
func (s CallState) Valid() bool {
	switch s {
	case CallStateInitiated, CallStateAnswered, CallStateMissed, CallStateDeclined, CallStateEnded:
		return true
	}
	return false
}

// MessageFlags are the mutable boolean markers on a message.
type MessageFlags struct {
	Important bool `json:"important"`
	Forwarded bool `json:"forwarded"`
	Starred   bool `json:"starred"`
	ViewOnce  bool `json:"view_once"`
}

// Message is a persisted chat message. Body holds ciphertext only.
type Message struct {
	ID               string           `json:"id"`
	Seq              int64            `json:"seq"`
	SenderID         string           `json:"sender_id"`
	RecipientID      *string          `json:"recipient_id,omitempty"`
	ConversationKey  string           `json:"conversation_key"`
	ConversationKind ConversationKind `json:"conversation_kind"`
	Kind             MessageKind      `json:"kind"`
	FileKind         *string          `json:"file_kind,omitempty"`
	Body             string           `json:"-"`
	ReadState        ReadState        `json:"read_state"`
	Flags            MessageFlags     `json:"flags"`
	ExpireAt         *int64           `json:"expire_at,omitempty"`
	ThreadParentID   *string          `json:"thread_parent_id,omitempty"`
	TagUserID        *string          `json:"tag_user_id,omitempty"`
	SourceLanguage   string           `json:"source_language"`
	CreatedAt        int64            `json:"created_at"`
	DeletedAt        *int64           `json:"deleted_at,omitempty"`
}

// ConversationIndexEntry points an owner's inbox row at the latest message.
type ConversationIndexEntry struct {
	OwnerID          string           `json:"owner_id"`
	CounterpartID    string           `json:"counterpart_id"`
	ConversationKey  string           `json:"conversation_key"`
	MessageID        string           `json:"message_id"`
	MessageSeq       int64            `json:"message_seq"`
	MessageCreatedAt int64            `json:"message_created_at"`
	Kind             ConversationKind `json:"conversation_kind"`
	HasAttachment    bool             `json:"has_attachment"`
}

// CallRecord is the call metadata attached 1:1 to a call message.
type CallRecord struct {
	MessageID string           `json:"message_id"`
	CallerID  string           `json:"caller_id"`
	CalleeID  string           `json:"callee_id"`
	Kind      ConversationKind `json:"conversation_kind"`
	Duration  int64            `json:"duration"`
	State     CallState        `json:"call_state"`
}

// User is a directory entry for a chat participant.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	ChatLanguage string `json:"chat_language"`
	CreatedAt    int64  `json:"created_at"`
}

// Group is a directory entry for a group conversation.
type Group struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

// MessageQueryOptions pages through a conversation's history.
type MessageQueryOptions struct {
	Limit  int
	Before *MessageCursor
}

// MessageCursor is a position in (created_at, seq) order.
type MessageCursor struct {
	CreatedAt int64
	Seq       int64
}

// JoinStatus is an invitee's answer to a meeting invitation.
type JoinStatus string

const (
	JoinStatusInvited  JoinStatus = "invite"
	JoinStatusJoined   JoinStatus = "joined"
	JoinStatusDeclined JoinStatus = "declined"
)

func (s JoinStatus) Valid() bool {
	switch s {
	case JoinStatusInvited, JoinStatusJoined, JoinStatusDeclined:
		return true
	}
	return false
}

// MeetingRole marks who scheduled a meeting.
type MeetingRole string

const (
	MeetingRoleCreator     MeetingRole = "creator"
	MeetingRoleParticipant MeetingRole = "participant"
)

// Meeting is a scheduled call that users are invited to.
type Meeting struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatorID string `json:"creator_id"`
	StartsAt  int64  `json:"starts_at"`
	CreatedAt int64  `json:"created_at"`
}

// MeetingInvite is one user's entry in a meeting's invite log.
type MeetingInvite struct {
	MeetingID  string      `json:"meeting_id"`
	UserID     string      `json:"user_id"`
	JoinStatus JoinStatus  `json:"join_status"`
	Role       MeetingRole `json:"role"`
	UpdatedAt  int64       `json:"updated_at"`
}
