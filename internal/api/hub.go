package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"smartclass/internal/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 32 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin == "" {
			return true
		}
		return strings.Contains(origin, "://"+strings.TrimSpace(r.Host))
	},
}

// Message is one frame of the event stream.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type client struct {
	conn    *websocket.Conn
	send    chan []byte
	project string // "" receives every project
}

// Hub broadcasts emitted events to WebSocket clients. It implements
// service.EventEmitter.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	log     *log.Logger
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{}), log: logging.New("hub")}
}

// Emit queues the event for every client. Clients that fall behind are
// dropped rather than blocking the emitter.
func (h *Hub) Emit(_ context.Context, event string, data any) {
	frame, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		h.log.Errorf("encode %s: %v", event, err)
		return
	}
	project := projectOf(frame)

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.project != "" && project != "" && c.project != project {
			continue
		}
		select {
		case c.send <- frame:
		default:
			h.log.Warnf("client too slow, dropping")
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// projectOf reads data.projectId out of an encoded frame. Payloads that are
// not project scoped yield "".
func projectOf(frame []byte) string {
	var probe struct {
		Data struct {
			ProjectID string `json:"projectId"`
		} `json:"data"`
	}
	if json.Unmarshal(frame, &probe) != nil {
		return ""
	}
	return probe.Data.ProjectID
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// handleEvents upgrades the request and streams events until the client
// goes away. ?project=<id> limits the stream to one project.
func (h *Hub) handleEvents(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	cl := &client{conn: conn, send: make(chan []byte, sendBuffer), project: c.QueryParam("project")}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()

	go h.writePump(cl)
	h.readPump(cl)
	return nil
}

// readPump only consumes control frames; the stream is one-way.
func (h *Hub) readPump(cl *client) {
	defer func() {
		h.remove(cl)
		cl.conn.Close()
	}()
	cl.conn.SetReadLimit(4 * 1024)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
