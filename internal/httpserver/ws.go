// internal/httpserver/ws.go
//
// Websocket state feed for a session.
//
// Every connected client gets the current view on connect and again after
// each change, including the timer-driven retry clear that no HTTP request
// would otherwise surface. Clients may also play over the socket:
//
//	{"type":"select","index":3}  {"type":"target","index":1}
//	{"type":"next"}              {"type":"restart"}
//
// Notes:
//   - The controller calls broadcast outside its lock, in apply order;
//     broadcast only enqueues. A client whose buffer is full is dropped.
//   - One writePump goroutine per client owns all writes to its conn and
//     never writes a view older than one it already wrote.
//   - Browser origins must match the configured client origin.

package httpserver

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

// newUpgrader accepts the client origin, and requests without an Origin
// header (non-browser clients).
func newUpgrader(clientOrigin string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || strings.EqualFold(origin, clientOrigin)
		},
	}
}

// clientMessage is an input sent over the socket.
type clientMessage struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

type client struct {
	conn *websocket.Conn
	send chan View
}

// hub fans views out to a session's clients.
type hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

func newHub() *hub { return &hub{clients: make(map[*client]struct{})} }

func (h *hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// sendTo queues v for one registered client.
func (h *hub) sendTo(c *client, v View) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- v:
	default:
	}
}

func (h *hub) broadcast(v View) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- v:
		default:
			log.Warn().Msg("websocket client too slow, dropping")
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *hub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.session(w, r)
	if !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade")
		return
	}

	c := &client{conn: conn, send: make(chan View, sendBuffer)}
	if !ls.hub.add(c) {
		_ = conn.Close()
		return
	}
	// Registered first so no change is missed; writePump discards this
	// snapshot if a newer broadcast got queued ahead of it.
	ls.hub.sendTo(c, viewOf(ls.ctrl.State()))

	go c.writePump()
	s.readPump(ls, c)
}

// readPump applies client inputs until the connection fails.
func (s *Server) readPump(ls *liveSession, c *client) {
	defer func() {
		ls.hub.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		// Keep the session alive in the store while it is being played.
		_, _ = s.sessions.Get(context.Background(), ls.id)

		switch msg.Type {
		case "select":
			ls.ctrl.SelectChar(msg.Index)
		case "target":
			ls.ctrl.SetTarget(msg.Index)
		case "next":
			if _, err := ls.ctrl.NextRound(context.Background()); err != nil {
				log.Warn().Err(err).Str("session", ls.id).Msg("next round over websocket")
			}
		case "restart":
			if err := ls.ctrl.Restart(context.Background()); err != nil {
				log.Warn().Err(err).Str("session", ls.id).Msg("restart over websocket")
			}
		default:
			// ignore unknown types
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	var (
		last uint64
		sent bool
	)
	for {
		select {
		case v, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if sent && v.Version <= last {
				continue
			}
			if err := c.conn.WriteJSON(v); err != nil {
				return
			}
			last, sent = v.Version, true
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
