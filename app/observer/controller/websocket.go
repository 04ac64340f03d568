package controller

import (
	"context"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/canopy-network/stacksx/pkg/notify"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ClientMessage represents messages sent by WebSocket clients.
type ClientMessage struct {
	Action  string `json:"action"`  // "subscribe" or "unsubscribe"
	Lineage string `json:"lineage"` // lineage to subscribe to, or "*" for all
}

// ServerMessage represents messages sent to WebSocket clients.
type ServerMessage struct {
	Type    string      `json:"type"` // a notification topic, "subscribed", "unsubscribed" or "error"
	Payload interface{} `json:"payload"`
}

// clientSubscriptions tracks which lineages a client follows.
type clientSubscriptions struct {
	mu       sync.RWMutex
	lineages map[string]bool
}

func newClientSubscriptions() *clientSubscriptions {
	return &clientSubscriptions{lineages: make(map[string]bool)}
}

func (cs *clientSubscriptions) Subscribe(lineage string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.lineages[lineage] = true
}

func (cs *clientSubscriptions) Unsubscribe(lineage string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.lineages, lineage)
}

// IsSubscribed reports whether lineage is followed. "*" matches all.
func (cs *clientSubscriptions) IsSubscribed(lineage string) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.lineages["*"] || cs.lineages[lineage]
}

// HandleWebSocket streams notifications to a client.
//
// Protocol:
// Client sends: {"action": "subscribe", "lineage": "mainnet"}
// Client sends: {"action": "subscribe", "lineage": "*"}
// Client sends: {"action": "unsubscribe", "lineage": "mainnet"}
//
// Server sends:
// - {"type": "block.canonical", "payload": {...}} and the other topics
// - {"type": "subscribed", "payload": {"lineage": "mainnet"}}
// - {"type": "unsubscribed", "payload": {"lineage": "mainnet"}}
// - {"type": "error", "payload": {"message": "..."}}
func (c *Controller) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if c.App.Hub == nil {
		http.Error(w, "Real-time events not available", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.App.Logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}
	defer func(conn *websocket.Conn) {
		if err := conn.Close(); err != nil {
			c.App.Logger.Debug("Failed to close WebSocket connection", zap.Error(err))
		}
	}(conn)

	c.App.Logger.Info("WebSocket client connected", zap.String("remote_addr", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := c.App.Hub.Subscribe(256)
	defer sub.Close()

	subs := newClientSubscriptions()
	send := make(chan ServerMessage, 256)

	// producers write to send; the writer drains it until it is closed.
	var producers, writer sync.WaitGroup
	guard := func(name string, fn func()) func() {
		return func() {
			defer func() {
				if rec := recover(); rec != nil {
					c.App.Logger.Error("Panic in websocket goroutine",
						zap.String("goroutine", name),
						zap.Any("panic", rec),
						zap.String("stack", string(debug.Stack())),
						zap.String("remote_addr", r.RemoteAddr))
					cancel()
				}
			}()
			fn()
		}
	}

	producers.Add(2)
	go func() {
		defer producers.Done()
		guard("forwarder", func() { c.forwardEvents(ctx, sub, send, subs) })()
	}()
	go func() {
		defer producers.Done()
		guard("pinger", func() { c.sendPings(ctx, conn) })()
	}()

	writer.Add(1)
	go func() {
		defer writer.Done()
		guard("writer", func() { c.writeMessages(conn, send, cancel) })()
	}()

	// Blocks until the connection closes.
	c.readClientMessages(ctx, conn, cancel, subs, send)

	cancel()
	producers.Wait()
	close(send)
	writer.Wait()

	c.App.Logger.Info("WebSocket client disconnected",
		zap.String("remote_addr", r.RemoteAddr),
		zap.Uint64("dropped", sub.Dropped()))
}

// forwardEvents relays hub messages for subscribed lineages.
func (c *Controller) forwardEvents(ctx context.Context, sub *notify.Subscription, send chan<- ServerMessage, subs *clientSubscriptions) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-sub.C:
			if !subs.IsSubscribed(msg.Lineage) {
				continue
			}
			select {
			case send <- ServerMessage{Type: string(msg.Topic), Payload: msg}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// sendPings sends periodic WebSocket ping frames to keep the connection alive.
// The client will automatically respond with pong frames, which resets the read deadline.
func (c *Controller) sendPings(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				c.App.Logger.Debug("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

// writeMessages writes messages from the send channel to the WebSocket connection.
// It keeps draining after a write failure so producers never block.
func (c *Controller) writeMessages(conn *websocket.Conn, send <-chan ServerMessage, cancel context.CancelFunc) {
	failed := false
	for msg := range send {
		if failed {
			continue
		}
		if err := conn.WriteJSON(msg); err != nil {
			c.App.Logger.Debug("Failed to write WebSocket message", zap.Error(err))
			failed = true
			cancel()
		}
	}
}

// readClientMessages handles subscription requests and detects connection closure.
func (c *Controller) readClientMessages(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc, subs *clientSubscriptions, send chan<- ServerMessage) {
	if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		c.App.Logger.Error("Failed to set read deadline", zap.Error(err))
		return
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	reply := func(msg ServerMessage) {
		select {
		case send <- msg:
		case <-ctx.Done():
		}
	}

	for {
		if ctx.Err() != nil {
			return
		}

		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.App.Logger.Warn("WebSocket read error", zap.Error(err))
			}
			cancel()
			return
		}

		if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			c.App.Logger.Error("Failed to reset read deadline", zap.Error(err))
			return
		}

		if msg.Lineage == "" && (msg.Action == "subscribe" || msg.Action == "unsubscribe") {
			reply(ServerMessage{Type: "error", Payload: map[string]string{"message": "lineage is required"}})
			continue
		}

		switch msg.Action {
		case "subscribe":
			subs.Subscribe(msg.Lineage)
			c.App.Logger.Debug("Client subscribed", zap.String("lineage", msg.Lineage))
			reply(ServerMessage{Type: "subscribed", Payload: map[string]string{"lineage": msg.Lineage}})
		case "unsubscribe":
			subs.Unsubscribe(msg.Lineage)
			c.App.Logger.Debug("Client unsubscribed", zap.String("lineage", msg.Lineage))
			reply(ServerMessage{Type: "unsubscribed", Payload: map[string]string{"lineage": msg.Lineage}})
		default:
			reply(ServerMessage{Type: "error", Payload: map[string]string{"message": "unknown action: " + msg.Action}})
		}
	}
}
