package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/aescanero/scriptbook/pkg/ports"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
	sendBuffer   = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler fans cell events out to WebSocket clients. It holds a single
// subscription to the event bus regardless of the number of clients.
type Handler struct {
	eventBus ports.EventBus
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

// client is one connected WebSocket
type client struct {
	send chan []byte
	once sync.Once
	done chan struct{}
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// NewHandler creates a new WebSocket handler
func NewHandler(eventBus ports.EventBus, logger *zap.Logger) *Handler {
	return &Handler{
		eventBus: eventBus,
		logger:   logger,
		clients:  make(map[*client]struct{}),
	}
}

// Start subscribes to cell events until ctx is done
func (h *Handler) Start(ctx context.Context) error {
	return h.eventBus.Subscribe(ctx, ports.TopicCellEvents, h.broadcast)
}

// Clients returns the number of connected clients
func (h *Handler) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// broadcast queues an event for every client. Clients that fall behind are
// disconnected.
func (h *Handler) broadcast(ctx context.Context, event ports.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("client too slow, dropping connection",
				zap.String("event_id", event.ID))
			delete(h.clients, c)
			c.close()
		}
	}
	return nil
}

func (h *Handler) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Handler) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// HandleNotebookStream streams cell events to a WebSocket client
func (h *Handler) HandleNotebookStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	h.logger.Info("WebSocket connection established",
		zap.String("client", c.ClientIP()))

	cl := &client{
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	h.register(cl)
	defer h.unregister(cl)

	go h.readPump(conn, cl)
	h.writePump(conn, cl)

	h.logger.Info("WebSocket connection closed",
		zap.String("client", c.ClientIP()))
}

// readPump discards client messages and detects disconnects
func (h *Handler) readPump(conn *websocket.Conn, cl *client) {
	defer cl.close()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, cl *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cl.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case data := <-cl.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("failed to write message", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
