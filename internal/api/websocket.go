package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fleetsim/fleetsim-core/internal/device"
	"github.com/fleetsim/fleetsim-core/internal/infrastructure/config"
	"github.com/fleetsim/fleetsim-core/internal/infrastructure/logging"
	"github.com/fleetsim/fleetsim-core/internal/telemetry"
)

// WebSocket message types.
const (
	WSTypeReading = "reading"
)

// WSMessage is the envelope for messages sent to WebSocket clients.
type WSMessage struct {
	Type      string         `json:"type"`
	Timestamp string         `json:"timestamp"`
	Payload   device.Reading `json:"payload"`
}

// writeWait is the deadline for a single WebSocket write.
const writeWait = 10 * time.Second

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// wsClient bridges one WebSocket connection onto a telemetry subscription.
// Backpressure is handled by the subscription's bounded buffer: a slow
// client loses its oldest readings, never the simulation's time.
type wsClient struct {
	conn   *websocket.Conn
	sub    *telemetry.Subscription
	cfg    config.WebSocketConfig
	logger *logging.Logger
}

// handleWebSocket upgrades the HTTP connection and streams readings until
// the client disconnects.
//
// GET /api/v1/ws
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		conn:   conn,
		sub:    s.hub.Subscribe("ws"),
		cfg:    s.wsCfg,
		logger: s.logger,
	}

	s.logger.Debug("websocket client connected", "subscriber", client.sub.ID())

	go client.writePump()
	go client.readPump()
}

// writePump streams readings from the subscription to the connection,
// interleaved with protocol pings. It exits when the subscription closes
// (hub shutdown) or a write fails (client gone).
func (c *wsClient) writePump() {
	pingInterval := time.Duration(c.cfg.PingInterval) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case reading, ok := <-c.sub.C():
			if !ok {
				//nolint:errcheck // Best-effort close message
				c.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(writeWait))
				return
			}
			//nolint:errcheck // Deadline set best-effort before write
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			msg := WSMessage{
				Type:      WSTypeReading,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
				Payload:   reading,
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Debug("websocket write failed", "subscriber", c.sub.ID(), "error", err)
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Deadline set best-effort before write
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes client frames to service pings and detect disconnects.
// Inbound payloads are ignored; the stream is one-way. On exit the
// subscription is cancelled so the hub stops buffering for this client.
func (c *wsClient) readPump() {
	defer func() {
		c.sub.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(c.cfg.MaxMessageSize))
	pingInterval := time.Duration(c.cfg.PingInterval) * time.Second
	pongWait := time.Duration(c.cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "subscriber", c.sub.ID(), "error", err)
			} else {
				c.logger.Debug("websocket closed", "subscriber", c.sub.ID())
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	}
}
