package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/adamavenir/parley/internal/realtime"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	writeWait    = 10 * time.Second
	maxFrameSize = 4096
)

func (s *Server) upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// serveSocket subscribes the connection to the user's own channel and every
// group channel, then streams events until either side closes. Group
// channels are refreshed on every ping. Inbound frames are drained and
// ignored; clients submit over HTTP.
func (s *Server) serveSocket(conn *websocket.Conn) {
	userID, _ := conn.Locals(localActor).(string)
	log := s.logger.With(zap.String("user", userID))

	channels, err := s.channelsFor(userID)
	if err != nil {
		log.Warn("group subscriptions unavailable", zap.Error(err))
	}
	client := s.hub.Register(userID, channels)
	hello, _ := json.Marshal(realtime.Event{Type: realtime.EventConnected, ConnectionID: client.ID})
	client.Send <- hello

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(conn, client, log)
	}()

	conn.SetReadLimit(maxFrameSize)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.hub.Unregister(client)
	<-writerDone
	log.Debug("socket closed", zap.String("connection", client.ID))
}

func (s *Server) writeLoop(conn *websocket.Conn, client *realtime.Client, log *zap.Logger) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case frame, ok := <-client.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug("socket write failed", zap.Error(err))
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
			s.refreshSubscriptions(client, log)
		}
	}
}

// channelsFor lists the user's own channel and one per group. On a lookup
// error the user channel is still returned.
func (s *Server) channelsFor(userID string) ([]string, error) {
	channels := []string{realtime.UserChannel(userID)}
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	groups, err := s.groups.UserGroups(ctx, userID)
	if err != nil {
		return channels, err
	}
	for _, groupID := range groups {
		channels = append(channels, realtime.GroupChannel(groupID))
	}
	return channels, nil
}

// refreshSubscriptions picks up groups joined or left since connect. A failed
// lookup keeps the current subscriptions.
func (s *Server) refreshSubscriptions(client *realtime.Client, log *zap.Logger) {
	channels, err := s.channelsFor(client.UserID)
	if err != nil {
		log.Debug("group refresh failed", zap.Error(err))
		return
	}
	if added, dropped := s.hub.Resubscribe(client, channels); added+dropped > 0 {
		log.Debug("group subscriptions changed", zap.Int("added", added), zap.Int("dropped", dropped))
	}
}
