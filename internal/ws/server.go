// Package ws implements the realtime gateway: it upgrades HTTP connections
// to WebSocket, authenticates them with a bearer token, and bridges room
// channel events to subscribed clients.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"

	"github.com/parley/chat-app/internal/auth"
	"github.com/parley/chat-app/internal/chat"
	"github.com/parley/chat-app/internal/metrics"
	"github.com/parley/chat-app/internal/presence"
	"github.com/parley/chat-app/internal/protocol"
)

// Subscriber is the room channel surface the gateway consumes. The handler
// receives every event published to the room by other senders.
type Subscriber interface {
	SubscribeRoom(roomID, sessionID string, handler func(event string, payload []byte)) error
	UnsubscribeRoom(roomID, sessionID string) error
}

// TokenVerifier authenticates the token presented on connection upgrade.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Membership answers whether a user has joined a room. The gateway
// consults it before opening a relay so tokens alone cannot subscribe
// to rooms their owner never joined.
type Membership interface {
	IsParticipant(ctx context.Context, roomID, userID string) (bool, error)
}

// ServerConfig holds tunable parameters for the gateway server.
type ServerConfig struct {
	ListenAddr     string        // address to listen on, e.g. ":8081"
	MaxConnections int           // hard cap on total connections
	WriteTimeout   time.Duration // timeout for WebSocket write operations
}

// DefaultServerConfig returns a ServerConfig with sensible production defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:     ":8081",
		MaxConnections: 100000,
		WriteTimeout:   10 * time.Second,
	}
}

// Server is the WebSocket gateway built on gobwas/ws. Each connection runs
// its own read goroutine; room events arrive via the channel subscription's
// callback and are written through the per-connection write mutex.
type Server struct {
	config     ServerConfig
	conns      *ConnectionManager
	verifier   TokenVerifier
	channel    Subscriber
	membership Membership      // optional, nil skips the join check
	presence   *presence.Store // optional, nil disables presence tracking
	httpServer *http.Server
	done       chan struct{}
	startedAt  time.Time
}

// NewServer creates a gateway Server. The membership checker and the
// presence store may be nil.
func NewServer(config ServerConfig, verifier TokenVerifier, channel Subscriber, membership Membership, pres *presence.Store) *Server {
	return &Server{
		config:     config,
		conns:      NewConnectionManager(),
		verifier:   verifier,
		channel:    channel,
		membership: membership,
		presence:   pres,
		done:       make(chan struct{}),
	}
}

// Start configures the HTTP server and begins accepting WebSocket
// connections. It blocks on http.Server.ListenAndServe.
func (s *Server) Start() error {
	s.startedAt = time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler())

	s.httpServer = &http.Server{
		Addr:    s.config.ListenAddr,
		Handler: mux,
	}

	StartHeartbeat(s, DefaultHeartbeatConfig())

	log.Printf("[ws] gateway listening on %s (max_conns=%d)",
		s.config.ListenAddr, s.config.MaxConnections)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ws: http server error: %w", err)
	}
	return nil
}

// handleUpgrade authenticates the request's token, upgrades it to a
// WebSocket connection, and starts the connection's read loop.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if s.conns.Count() >= s.config.MaxConnections {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	claims, err := s.verifier.Verify(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}

	c := &Connection{
		ID:        uuid.New().String(),
		UserID:    claims.Subject,
		Conn:      conn,
		CreatedAt: time.Now(),
		LastPing:  time.Now(),
		rooms:     make(map[string]struct{}),
	}

	s.conns.Add(c)
	metrics.WSConnections.Inc()
	log.Printf("[ws] new connection conn=%s user=%s (total=%d)", c.ID, c.UserID, s.conns.Count())

	go s.readLoop(c)
}

// handleHealth responds with the gateway's health status as JSON, including
// the current connection count and uptime.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	resp := struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
		Uptime      string `json:"uptime"`
	}{
		Status:      "ok",
		Connections: s.conns.Count(),
		Uptime:      time.Since(s.startedAt).Round(time.Second).String(),
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// readLoop reads frames from one connection until it fails or closes.
// Control frames only refresh liveness; data frames are parsed as client
// protocol frames.
func (s *Server) readLoop(c *Connection) {
	defer s.RemoveConnection(c)

	for {
		select {
		case <-s.done:
			return
		default:
		}

		header, reader, err := wsutil.NextReader(c.Conn, ws.StateServerSide)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			return
		}

		c.LastPing = time.Now()

		if header.OpCode.IsControl() {
			if header.OpCode == ws.OpClose {
				return
			}
			if header.OpCode == ws.OpPing {
				_ = s.writePong(c, header, reader)
				continue
			}
			// Pong: liveness already refreshed.
			if _, err := io.Copy(io.Discard, reader); err != nil {
				return
			}
			continue
		}

		data := make([]byte, header.Length)
		if header.Length > 0 {
			if _, err := io.ReadFull(reader, data); err != nil {
				return
			}
		}
		if len(data) == 0 {
			continue
		}

		s.handleFrame(c, data)
	}
}

// writePong answers a protocol-level ping with its payload echoed back.
func (s *Server) writePong(c *Connection, header ws.Header, reader io.Reader) error {
	payload := make([]byte, header.Length)
	if header.Length > 0 {
		if _, err := io.ReadFull(reader, payload); err != nil {
			return err
		}
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteFrame(c.Conn, ws.NewPongFrame(payload))
}

// handleFrame dispatches one parsed client frame.
func (s *Server) handleFrame(c *Connection, data []byte) {
	msgType, msg, err := protocol.ParseClientMessage(data)
	if err != nil {
		log.Printf("[ws] bad frame conn=%s: %v", c.ID, err)
		s.sendError(c, chat.CodeInvalidRequest, "malformed frame")
		return
	}

	switch msgType {
	case protocol.TypeSubscribe:
		s.handleSubscribe(c, msg.(protocol.SubscribeMsg))
	case protocol.TypeUnsubscribe:
		s.handleUnsubscribe(c, msg.(protocol.UnsubscribeMsg))
	case protocol.TypePing:
		if out, err := protocol.NewServerMessage(protocol.TypePong, protocol.PongMsg{}); err == nil {
			_ = s.send(c, out)
		}
		s.refreshPresence(c)
	}
}

// handleSubscribe opens a room channel subscription for the connection and
// relays every inbound event as an event frame.
func (s *Server) handleSubscribe(c *Connection, msg protocol.SubscribeMsg) {
	roomID := msg.RoomID
	if roomID == "" {
		s.sendError(c, chat.CodeInvalidRequest, "roomId is required")
		return
	}
	if !s.checkMembership(c, roomID) {
		s.sendError(c, chat.CodeUnauthorized, "not a room participant")
		return
	}
	if !c.addRoom(roomID) {
		// Already subscribed; re-acknowledge.
		s.sendSubscribed(c, roomID)
		return
	}

	err := s.channel.SubscribeRoom(roomID, c.ID, func(event string, payload []byte) {
		out, err := protocol.NewServerMessage(protocol.TypeEvent, protocol.EventMsg{
			RoomID:  roomID,
			Event:   event,
			Payload: payload,
		})
		if err != nil {
			log.Printf("[ws] build event frame room=%s: %v", roomID, err)
			return
		}
		if err := s.send(c, out); err != nil {
			log.Printf("[ws] relay %s room=%s conn=%s: %v", event, roomID, c.ID, err)
		}
	})
	if err != nil {
		c.removeRoom(roomID)
		log.Printf("[ws] subscribe room=%s conn=%s: %v", roomID, c.ID, err)
		s.sendError(c, chat.CodeJoinFailed, "subscription failed")
		return
	}

	metrics.RoomsSubscribed.Inc()
	if s.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.presence.Join(ctx, roomID, c.UserID); err != nil {
			log.Printf("[ws] presence join room=%s user=%s: %v", roomID, c.UserID, err)
		}
	}

	s.sendSubscribed(c, roomID)
	log.Printf("[ws] subscribed room=%s conn=%s user=%s", roomID, c.ID, c.UserID)
}

// checkMembership verifies the connection's user has joined the room.
// Fails open when the backend errors, like the rate limiter.
func (s *Server) checkMembership(c *Connection, roomID string) bool {
	if s.membership == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	ok, err := s.membership.IsParticipant(ctx, roomID, c.UserID)
	if err != nil {
		log.Printf("[ws] membership check room=%s user=%s: %v", roomID, c.UserID, err)
		return true
	}
	return ok
}

// handleUnsubscribe drops the connection's room subscription.
func (s *Server) handleUnsubscribe(c *Connection, msg protocol.UnsubscribeMsg) {
	roomID := msg.RoomID
	if roomID == "" || !c.removeRoom(roomID) {
		s.sendError(c, chat.CodeInvalidRequest, "not subscribed")
		return
	}

	s.teardownRoom(c, roomID)

	if out, err := protocol.NewServerMessage(protocol.TypeUnsubscribed, protocol.UnsubscribedMsg{RoomID: roomID}); err == nil {
		_ = s.send(c, out)
	}
}

// teardownRoom releases the channel subscription and presence for one room.
func (s *Server) teardownRoom(c *Connection, roomID string) {
	if err := s.channel.UnsubscribeRoom(roomID, c.ID); err != nil {
		log.Printf("[ws] unsubscribe room=%s conn=%s: %v", roomID, c.ID, err)
	}
	metrics.RoomsSubscribed.Dec()

	if s.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.presence.Leave(ctx, roomID, c.UserID); err != nil {
			log.Printf("[ws] presence leave room=%s user=%s: %v", roomID, c.UserID, err)
		}
	}
}

// refreshPresence extends the connection's presence TTL in every room it is
// subscribed to.
func (s *Server) refreshPresence(c *Connection) {
	if s.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for _, roomID := range c.roomList() {
		if err := s.presence.Heartbeat(ctx, roomID, c.UserID); err != nil {
			log.Printf("[ws] presence heartbeat room=%s user=%s: %v", roomID, c.UserID, err)
		}
	}
}

// sendSubscribed acknowledges a room subscription.
func (s *Server) sendSubscribed(c *Connection, roomID string) {
	if out, err := protocol.NewServerMessage(protocol.TypeSubscribed, protocol.SubscribedMsg{RoomID: roomID}); err == nil {
		_ = s.send(c, out)
	}
}

// sendError writes an error frame to the connection.
func (s *Server) sendError(c *Connection, code, message string) {
	out, err := protocol.NewServerMessage(protocol.TypeError, protocol.ErrorMsg{Code: code, Message: message})
	if err != nil {
		return
	}
	_ = s.send(c, out)
}

// send writes a text frame with the configured write timeout.
func (s *Server) send(c *Connection, data []byte) error {
	if s.config.WriteTimeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	}
	err := c.WriteMessage(data)
	_ = c.Conn.SetWriteDeadline(time.Time{})
	return err
}

// RemoveConnection tears down all of a connection's room subscriptions and
// removes it from the manager. It is exported so that the heartbeat monitor
// can evict dead connections. Safe to call more than once per connection.
func (s *Server) RemoveConnection(c *Connection) {
	// Guard against double cleanup when the read loop and the heartbeat
	// race to remove the same connection.
	if !s.conns.Remove(c.ID) {
		return
	}

	for _, roomID := range c.roomList() {
		c.removeRoom(roomID)
		s.teardownRoom(c, roomID)
	}

	metrics.WSConnections.Dec()
	log.Printf("[ws] connection closed conn=%s user=%s (total=%d)", c.ID, c.UserID, s.conns.Count())
}

// Connections returns the ConnectionManager for external access to
// connection state.
func (s *Server) Connections() *ConnectionManager {
	return s.conns
}

// Shutdown performs a graceful shutdown: it stops the HTTP listener, signals
// the heartbeat to exit, and closes all active connections.
func (s *Server) Shutdown() error {
	log.Println("[ws] shutting down gateway...")

	close(s.done)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("[ws] http shutdown error: %v", err)
	}

	for _, c := range s.conns.All() {
		s.RemoveConnection(c)
	}

	log.Printf("[ws] gateway stopped, all connections closed")
	return nil
}
