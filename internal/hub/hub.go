// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package hub serves radar snapshots to local clients over HTTP and
// websocket, and accepts configuration deltas from websocket clients.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Thermoquad/radarstat/pkg/r60afd1"
)

// Message types streamed on /ws
const (
	TypeLive     = "live"
	TypeSettings = "settings"
	TypeInfo     = "info"
)

const (
	sendQueueSize = 16
	writeTimeout  = 5 * time.Second
	maxDeltaSize  = 4096
)

// Source provides the snapshots the hub serves. *r60afd1.State satisfies it.
type Source interface {
	LiveSnapshot() r60afd1.LiveSnapshot
	SettingsSnapshot() r60afd1.SettingsSnapshot
	ProductSnapshot() r60afd1.ProductSnapshot
}

// Message is one websocket message
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// Hub is the local snapshot server
type Hub struct {
	source   Source
	intake   func([]byte)
	logger   *zap.Logger
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	mu      sync.Mutex
	clients map[*client]struct{}
}

// New creates a hub serving source. Text messages received from websocket
// clients are passed to intake, which must not block.
func New(source Source, intake func([]byte), logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		source:  source,
		intake:  intake,
		logger:  logger,
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	h.mux = http.NewServeMux()
	h.mux.HandleFunc("GET /live", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, h.source.LiveSnapshot())
	})
	h.mux.HandleFunc("GET /settings", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, h.source.SettingsSnapshot())
	})
	h.mux.HandleFunc("GET /info", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, h.source.ProductSnapshot())
	})
	h.mux.HandleFunc("GET /ws", h.serveWS)
	return h
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Handler returns the hub's HTTP handler
func (h *Hub) Handler() http.Handler {
	return h.mux
}

// Clients returns the number of connected websocket clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func encodeMessage(kind string, data any) ([]byte, error) {
	return json.Marshal(Message{Type: kind, Data: data})
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendQueueSize)}

	// A new client starts with the current snapshots, queued before any
	// broadcast can reach it.
	initial := []struct {
		kind string
		data any
	}{
		{TypeLive, h.source.LiveSnapshot()},
		{TypeSettings, h.source.SettingsSnapshot()},
		{TypeInfo, h.source.ProductSnapshot()},
	}
	h.mu.Lock()
	for _, m := range initial {
		if msg, err := encodeMessage(m.kind, m.data); err == nil {
			c.send <- msg
		}
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.Info("hub client connected", zap.String("remote", r.RemoteAddr))
	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

func (h *Hub) readLoop(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxDeltaSize)
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("hub client read ended", zap.Error(err))
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		if h.intake != nil {
			h.intake(data)
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Debug("hub client write failed", zap.Error(err))
			c.conn.Close()
			h.remove(c)
			for range c.send {
			}
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
	c.conn.Close()
}

// Broadcast sends a message to every connected client. A client whose queue
// is full is disconnected.
func (h *Hub) Broadcast(kind string, data any) {
	msg, err := encodeMessage(kind, data)
	if err != nil {
		h.logger.Error("failed to encode hub message", zap.String("type", kind), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("hub client too slow, disconnecting")
			delete(h.clients, c)
			c.close()
		}
	}
}

// PublishLive broadcasts a live snapshot
func (h *Hub) PublishLive(s r60afd1.LiveSnapshot) error {
	h.Broadcast(TypeLive, s)
	return nil
}

// PublishSettings broadcasts a settings snapshot
func (h *Hub) PublishSettings(s r60afd1.SettingsSnapshot) error {
	h.Broadcast(TypeSettings, s)
	return nil
}

// PublishInfo broadcasts a product snapshot
func (h *Hub) PublishInfo(s r60afd1.ProductSnapshot) error {
	h.Broadcast(TypeInfo, s)
	return nil
}

// Serve serves the hub on l until ctx is done, then disconnects every client
func (h *Hub) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           h.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(l)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)

	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
