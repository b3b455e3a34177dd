package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/adamavenir/parley/internal/core"
	"github.com/adamavenir/parley/internal/metrics"
	"go.uber.org/zap"
)

const clientBuffer = 64

// Client is one live connection. Frames queued on Send are written by the
// connection's own writer loop.
type Client struct {
	ID       string
	UserID   string
	Send     chan []byte
	channels []string
	closed   bool
}

// Hub tracks live connections by channel on this instance.
type Hub struct {
	mu        sync.RWMutex
	byChannel map[string]map[*Client]struct{}
	logger    *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		byChannel: make(map[string]map[*Client]struct{}),
		logger:    logger,
	}
}

// Register subscribes a new connection for userID to channels.
func (h *Hub) Register(userID string, channels []string) *Client {
	c := &Client{
		ID:       core.NewConnectionID(),
		UserID:   userID,
		Send:     make(chan []byte, clientBuffer),
		channels: channels,
	}

	h.mu.Lock()
	for _, ch := range channels {
		set, ok := h.byChannel[ch]
		if !ok {
			set = make(map[*Client]struct{})
			h.byChannel[ch] = set
		}
		set[c] = struct{}{}
	}
	h.mu.Unlock()

	metrics.Connections.Inc()
	return c
}

// Unregister removes the connection and closes its Send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	removed := false
	for _, ch := range c.channels {
		set, ok := h.byChannel[ch]
		if !ok {
			continue
		}
		if _, present := set[c]; present {
			removed = true
			delete(set, c)
		}
		if len(set) == 0 {
			delete(h.byChannel, ch)
		}
	}
	if removed {
		close(c.Send)
	}
	c.closed = true
	h.mu.Unlock()

	if removed {
		metrics.Connections.Dec()
	}
}

// Resubscribe replaces the channel set of a live connection in place, so
// membership changes apply without a reconnect. It is a no-op once c is
// unregistered.
func (h *Hub) Resubscribe(c *Client, channels []string) (added, dropped int) {
	want := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		want[ch] = struct{}{}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return 0, 0
	}
	have := make(map[string]struct{}, len(c.channels))
	for _, ch := range c.channels {
		have[ch] = struct{}{}
		if _, keep := want[ch]; keep {
			continue
		}
		if set, ok := h.byChannel[ch]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(h.byChannel, ch)
			}
		}
		dropped++
	}
	next := make([]string, 0, len(want))
	for ch := range want {
		next = append(next, ch)
		if _, ok := have[ch]; ok {
			continue
		}
		set, ok := h.byChannel[ch]
		if !ok {
			set = make(map[*Client]struct{})
			h.byChannel[ch] = set
		}
		set[c] = struct{}{}
		added++
	}
	c.channels = next
	return added, dropped
}

// Deliver queues payload for every local subscriber of channel, skipping
// exclude. Slow clients drop frames rather than block the publisher.
func (h *Hub) Deliver(channel, exclude string, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.byChannel[channel] {
		if exclude != "" && c.ID == exclude {
			continue
		}
		select {
		case c.Send <- payload:
			delivered++
		default:
			h.logger.Warn("dropping frame for slow client",
				zap.String("connection", c.ID),
				zap.String("channel", channel))
		}
	}
	return delivered
}

// Publish delivers directly on this instance. Used when no broker is configured.
func (h *Hub) Publish(_ context.Context, channel string, event Event, excludeConnID string) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	h.Deliver(channel, excludeConnID, payload)
	return nil
}

// subscribers returns the number of local connections on channel.
func (h *Hub) subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byChannel[channel])
}
