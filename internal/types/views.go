package types

// ThreadPreview is the rendered quote of a reply's parent message.
type ThreadPreview struct {
	ParentMessageID string `json:"parent_message_id"`
	ParentSenderID  string `json:"parent_sender_id"`
	IsOwnMessage    bool   `json:"is_own_message"`
	TranslatedText  string `json:"translated_text"`
}

// MessageView is the rendered form of a message, used both for the
// synchronous submit response and the realtime message event.
type MessageView struct {
	ID               string           `json:"id"`
	ConversationKey  string           `json:"conversation_key"`
	ConversationKind ConversationKind `json:"conversation_kind"`
	SenderID         string           `json:"sender_id"`
	SenderName       string           `json:"sender_name"`
	TargetID         string           `json:"target_id"`
	TargetName       string           `json:"target_name"`
	IsMine           bool             `json:"is_mine"`
	Kind             MessageKind      `json:"kind"`
	FileKind         *string          `json:"file_kind,omitempty"`
	Text             string           `json:"text"`
	ReadState        ReadState        `json:"read_state"`
	Flags            MessageFlags     `json:"flags"`
	ExpireAt         *int64           `json:"expire_at,omitempty"`
	TagUserID        *string          `json:"tag_user_id,omitempty"`
	CallDuration     *int64           `json:"call_duration,omitempty"`
	CallState        *CallState       `json:"call_state,omitempty"`
	Thread           *ThreadPreview   `json:"thread,omitempty"`
	SourceLanguage   string           `json:"source_language"`
	CreatedAt        int64            `json:"created_at"`
}

// ConversationMeta tells the client which conversation a message landed in.
type ConversationMeta struct {
	CounterpartID   string           `json:"counterpart_id"`
	ConversationKey string           `json:"conversation_key"`
	Kind            ConversationKind `json:"conversation_kind"`
}

// ConversationSummary is one row of a user's inbox list.
type ConversationSummary struct {
	MessageID       string           `json:"message_id"`
	ConversationKey string           `json:"conversation_key"`
	CounterpartID   string           `json:"counterpart_id"`
	CounterpartName string           `json:"counterpart_name"`
	Kind            ConversationKind `json:"conversation_kind"`
	HasAttachment   bool             `json:"has_attachment"`
	Unread          int              `json:"unread"`
	LastMessage     string           `json:"last_message"`
	LastMessageAt   int64            `json:"last_message_at"`
}

// Party is the public contact block of a sender or receiver in an event.
type Party struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// SubmitResult is returned to the caller once a message is committed.
type SubmitResult struct {
	Meta ConversationMeta `json:"conversation"`
	View MessageView      `json:"message"`
}
