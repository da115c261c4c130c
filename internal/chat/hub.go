package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"nex/internal/bus"
)

const (
	// HubSenderPrefix marks senders that reached us through the hub.
	HubSenderPrefix = "hub:"

	HubName = "nex"

	KindChat  = "chat"
	KindReply = "reply"
)

func IsHubSender(sender string) bool {
	return strings.HasPrefix(sender, HubSenderPrefix)
}

// Message is the hub wire format.
type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

var ErrNotConnected = errors.New("hub not connected")

// Hub bridges a websocket message hub to the chat channel. It keeps
// reconnecting until its context ends.
type Hub struct {
	url     string
	reconn  time.Duration
	bus     *bus.Bus
	log     *slog.Logger
	dialer  *websocket.Dialer
	connMu  sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func NewHub(b *bus.Bus, url string, reconn time.Duration, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if reconn <= 0 {
		reconn = 3 * time.Second
	}

	return &Hub{
		url:    url,
		reconn: reconn,
		bus:    b,
		log:    logger,
		dialer: websocket.DefaultDialer,
	}
}

func (h *Hub) Run(ctx context.Context) error {
	sub := h.bus.Subscribe(bus.ChatResponse, h.onResponse)
	defer sub.Unsubscribe()

	for {
		conn, _, err := h.dialer.DialContext(ctx, h.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			h.log.Warn("Failed to dial hub", "url", h.url, "err", err)
			if !wait(ctx, h.reconn) {
				return nil
			}
			continue
		}

		h.log.Info("Connected to hub", "url", h.url)
		h.setConn(conn)
		stop := context.AfterFunc(ctx, func() { conn.Close() })

		err = h.readLoop(ctx, conn)

		stop()
		h.setConn(nil)
		conn.Close()

		if ctx.Err() != nil {
			return nil
		}
		if isClosed(err) {
			h.log.Info("Hub closed the connection")
		} else {
			h.log.Warn("Hub read failed", "err", err)
		}
		if !wait(ctx, h.reconn) {
			return nil
		}
	}
}

func (h *Hub) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		h.log.Debug("Read hub", "msg", string(data))

		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			h.log.Warn("Dropping malformed hub message", "err", err)
			continue
		}
		if m.Kind != KindChat || m.To != HubName || strings.TrimSpace(m.Content) == "" {
			continue
		}

		h.bus.Publish(ctx, bus.NewEvent(bus.ChatInput, bus.Chat, map[string]any{
			bus.KeyText:   m.Content,
			bus.KeySender: HubSenderPrefix + m.From,
		}))
	}
}

func (h *Hub) onResponse(_ context.Context, e bus.Event) error {
	if e.Exit() || !IsHubSender(e.Sender()) {
		return nil
	}

	return h.Write(Message{
		From:    HubName,
		To:      strings.TrimPrefix(e.Sender(), HubSenderPrefix),
		Kind:    KindReply,
		Content: e.Text(),
	})
}

func (h *Hub) Write(m Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal hub message: %w", err)
	}

	h.connMu.Lock()
	conn := h.conn
	h.connMu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	h.log.Debug("Write hub", "msg", string(data))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (h *Hub) Connected() bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.conn != nil
}

func (h *Hub) setConn(c *websocket.Conn) {
	h.connMu.Lock()
	h.conn = c
	h.connMu.Unlock()
}

func isClosed(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure)
}

func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
