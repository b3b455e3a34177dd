package realtime

import (
	"context"
	"encoding/json"

	"github.com/adamavenir/parley/internal/types"
)

// Event types.
const (
	EventMessage             = "message"
	EventConversationSummary = "conversation_summary"
	EventConnected           = "connected"
)

// Event states, carried for clients that switch on state rather than type.
const (
	StateNewMessage  = "new_message"
	StateLastMessage = "last_message"
)

// Event is the payload delivered to subscribers of a channel.
type Event struct {
	Type            string                     `json:"type"`
	State           string                     `json:"state,omitempty"`
	ConversationKey string                     `json:"conversation_key,omitempty"`
	Kind            types.ConversationKind     `json:"conversation_kind,omitempty"`
	Sender          *types.Party               `json:"sender,omitempty"`
	Receiver        *types.Party               `json:"receiver,omitempty"`
	Message         *types.MessageView         `json:"message,omitempty"`
	Summary         *types.ConversationSummary `json:"summary,omitempty"`
	ConnectionID    string                     `json:"connection_id,omitempty"`
}

// Publisher delivers an event to every subscriber of channel except the
// connection named by excludeConnID.
type Publisher interface {
	Publish(ctx context.Context, channel string, event Event, excludeConnID string) error
}

// Envelope carries an encoded event between instances.
type Envelope struct {
	Exclude string          `json:"exclude,omitempty"`
	Event   json.RawMessage `json:"event"`
}

// UserChannel is the private channel of one user.
func UserChannel(userID string) string {
	return "user." + userID
}

// GroupChannel is the shared channel of a group.
func GroupChannel(groupID string) string {
	return "group." + groupID
}
