package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

/*
====================================================
ADMIN EVENT FEED (one-way websocket)
====================================================
*/

const (
	feedWriteWait  = 10 * time.Second
	feedPongWait   = 60 * time.Second
	feedPingPeriod = (feedPongWait * 9) / 10

	feedClientSendBuf = 32
	feedBroadcastBuf  = 256
	feedRegisterBuf   = 64
)

const (
	feedEventPurchase = "purchase_completed"
)

var feedUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Dashboard is served from anywhere; auth happens via admin token.
		return true
	},
}

// FeedEvent is one line on the admin dashboard's live feed.
type FeedEvent struct {
	Type          string    `json:"type"`
	TelegramID    int64     `json:"telegram_id"`
	ServiceKey    string    `json:"service_key,omitempty"`
	PackageKey    string    `json:"package_key,omitempty"`
	FinalLamports int64     `json:"final_lamports,omitempty"`
	Signature     string    `json:"signature,omitempty"`
	At            time.Time `json:"at"`
}

type feedClient struct {
	conn *websocket.Conn
	send chan []byte
}

// FeedHub broadcasts purchase events to connected dashboard clients. Slow
// clients are dropped rather than allowed to stall the fanout.
type FeedHub struct {
	logger *zap.Logger

	register   chan *feedClient
	unregister chan *feedClient
	broadcast  chan []byte
	clients    map[*feedClient]struct{}
}

func NewFeedHub(logger *zap.Logger) *FeedHub {
	return &FeedHub{
		logger:     logger,
		register:   make(chan *feedClient, feedRegisterBuf),
		unregister: make(chan *feedClient, feedRegisterBuf),
		broadcast:  make(chan []byte, feedBroadcastBuf),
		clients:    make(map[*feedClient]struct{}),
	}
}

// Run owns the client set; call it once from main.
func (f *FeedHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range f.clients {
				close(c.send)
				delete(f.clients, c)
			}
			return

		case c := <-f.register:
			f.clients[c] = struct{}{}

		case c := <-f.unregister:
			if _, ok := f.clients[c]; ok {
				delete(f.clients, c)
				close(c.send)
			}

		case msg := <-f.broadcast:
			for c := range f.clients {
				select {
				case c.send <- msg:
				default:
					// slow/dead client -> drop it
					close(c.send)
					delete(f.clients, c)
				}
			}
		}
	}
}

// Publish queues an event for broadcast. Never blocks the caller; if the
// hub is overloaded the event is dropped.
func (f *FeedHub) Publish(ev FeedEvent) {
	ev.At = time.Now().UTC()
	data, err := json.Marshal(ev)
	if err != nil {
		f.logger.Error("failed to marshal feed event", zap.Error(err))
		return
	}
	select {
	case f.broadcast <- data:
	default:
		f.logger.Warn("feed overloaded, dropping event", zap.String("type", ev.Type))
	}
}

// ServeWS upgrades the connection and attaches it to the feed.
func (f *FeedHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := feedUpgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Error("ws upgrade failed", zap.Error(err))
		return
	}

	client := &feedClient{
		conn: conn,
		send: make(chan []byte, feedClientSendBuf),
	}
	f.register <- client

	go f.writePump(client)
	go f.readPump(client)
}

// readPump discards inbound frames; the feed is one-way, but reading keeps
// pong handling and close detection working.
func (f *FeedHub) readPump(c *feedClient) {
	defer func() {
		f.unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(feedPongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (f *FeedHub) writePump(c *feedClient) {
	ticker := time.NewTicker(feedPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
