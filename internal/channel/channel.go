// Package channel provides per-room broadcast channels over NATS. Each
// room maps to one subject; every published event is wrapped in an
// Envelope carrying the sender's session id so subscribers can drop
// their own echoes (NATS delivers to all subscribers, including the
// publisher, so self-echo suppression happens on the receiving side).
package channel

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/parley/chat-app/internal/chat"
)

// SubjectPrefix is prepended to room ids to form NATS subjects.
const SubjectPrefix = "room."

// Subject returns the NATS subject for a room's broadcast channel.
func Subject(roomID string) string {
	return SubjectPrefix + roomID
}

// Envelope wraps every event published on a room subject.
type Envelope struct {
	Event    string          `json:"event"`
	SenderID string          `json:"senderId"`
	Payload  json.RawMessage `json:"payload"`
}

// Config holds NATS connection settings.
type Config struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
	AckTimeout    time.Duration // flush window confirming a subscribe reached the server
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           "nats://localhost:4222",
		Name:          "parley",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
		AckTimeout:    5 * time.Second,
	}
}

// Client wraps the NATS connection with room-channel helpers.
type Client struct {
	conn       *nats.Conn
	ackTimeout time.Duration
	mu         sync.Mutex
	subs       map[string]*nats.Subscription
}

// NewClient connects to NATS with the given config and returns a ready
// client. It returns an error if the initial connection fails.
func NewClient(config Config) (*Client, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[channel] disconnected: %v", err)
			} else {
				log.Printf("[channel] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[channel] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[channel] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("channel: connect: %w", err)
	}

	log.Printf("[channel] connected to %s", nc.ConnectedUrl())

	ackTimeout := config.AckTimeout
	if ackTimeout <= 0 {
		ackTimeout = DefaultConfig().AckTimeout
	}

	return &Client{
		conn:       nc,
		ackTimeout: ackTimeout,
		subs:       make(map[string]*nats.Subscription),
	}, nil
}

// SubscribeRoom subscribes a session to a room's channel. Envelopes
// published by the same session id are dropped before the handler runs.
// The subscription is keyed by (session, room) so multiple sessions in
// one process can watch the same room without clobbering each other.
//
// SubscribeRoom returns only after the subscription has been confirmed
// by the server; a confirmation that does not arrive within the ack
// timeout is an error so the caller can mark itself disconnected and
// retry.
func (c *Client) SubscribeRoom(roomID, sessionID string, handler func(event string, payload []byte)) error {
	subject := Subject(roomID)
	key := subKey(roomID, sessionID)

	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		var env Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			log.Printf("[channel] bad envelope on %s: %v", subject, err)
			return
		}
		if env.SenderID == sessionID {
			return // self-echo suppression
		}
		handler(env.Event, env.Payload)
	})
	if err != nil {
		return fmt.Errorf("channel: subscribe %s: %w", subject, err)
	}

	// Round-trip to the server so the subscription is known to be live.
	if err := c.conn.FlushTimeout(c.ackTimeout); err != nil {
		sub.Unsubscribe()
		if errors.Is(err, nats.ErrTimeout) {
			return fmt.Errorf("channel: subscribe ack %s: %w", subject, chat.ErrSubscribeTimeout)
		}
		return fmt.Errorf("channel: subscribe ack %s: %w", subject, err)
	}

	c.mu.Lock()
	if prev, ok := c.subs[key]; ok {
		prev.Unsubscribe()
	}
	c.subs[key] = sub
	c.mu.Unlock()
	return nil
}

// UnsubscribeRoom removes a session's subscription to a room.
func (c *Client) UnsubscribeRoom(roomID, sessionID string) error {
	key := subKey(roomID, sessionID)

	c.mu.Lock()
	sub, ok := c.subs[key]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("channel: no subscription for room %s session %s", roomID, sessionID)
	}
	delete(c.subs, key)
	c.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("channel: unsubscribe room %s: %w", roomID, err)
	}
	return nil
}

// PublishRoom publishes an event on a room's channel. The sender id is
// recorded in the envelope so the sender's own subscription drops it.
func (c *Client) PublishRoom(roomID, senderID, event string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("channel: marshal %s payload: %w", event, err)
	}

	env := Envelope{Event: event, SenderID: senderID, Payload: body}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("channel: marshal envelope: %w", err)
	}

	if err := c.conn.Publish(Subject(roomID), data); err != nil {
		return fmt.Errorf("channel: publish %s to room %s: %w", event, roomID, err)
	}
	return nil
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[channel] drain %s: %v", key, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Printf("[channel] connection drain: %v", err)
	}

	log.Printf("[channel] client closed")
}

func subKey(roomID, sessionID string) string {
	return sessionID + ":" + roomID
}
