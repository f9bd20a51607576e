package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aescanero/rover/pkg/ports"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	clientBuffer = 32
	writeWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type client struct {
	pipelineID string
	events     chan ports.LifecycleEvent
}

// Handler fans lifecycle events from the bus out to WebSocket clients. It
// holds a single bus subscription shared by every connection.
type Handler struct {
	eventBus ports.EventBus
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	cancel  context.CancelFunc
}

// NewHandler creates a new WebSocket handler
func NewHandler(eventBus ports.EventBus, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		eventBus: eventBus,
		logger:   logger,
		clients:  make(map[*client]struct{}),
	}
}

// Start subscribes to the pipeline events topic
func (h *Handler) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.cancel != nil {
		h.mu.Unlock()
		return fmt.Errorf("websocket handler already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.mu.Unlock()

	if err := h.eventBus.Subscribe(ctx, ports.TopicPipelineEvents, h.broadcast); err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to %s: %w", ports.TopicPipelineEvents, err)
	}
	return nil
}

// Stop drops the bus subscription and disconnects every client
func (h *Handler) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
	}
	for c := range h.clients {
		close(c.events)
		delete(h.clients, c)
	}
}

// Clients returns the number of connected clients
func (h *Handler) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Handler) broadcast(ctx context.Context, event ports.LifecycleEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.pipelineID != "" && c.pipelineID != event.PipelineID {
			continue
		}
		select {
		case c.events <- event:
		default:
			h.logger.Warn("client buffer full, dropping event",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)))
		}
	}
	return nil
}

func (h *Handler) register(pipelineID string) *client {
	c := &client{pipelineID: pipelineID, events: make(chan ports.LifecycleEvent, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Handler) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.events)
	}
}

// HandlePipelineStream streams lifecycle events, optionally filtered by the
// pipeline_id query parameter
func (h *Handler) HandlePipelineStream(c *gin.Context) {
	pipelineID := c.Query("pipeline_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	h.logger.Info("WebSocket connection established",
		zap.String("pipeline_id", pipelineID),
		zap.String("client", c.ClientIP()))

	cl := h.register(pipelineID)
	defer h.unregister(cl)

	// the read loop notices the peer closing the connection
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case event, ok := <-cl.events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}

			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("failed to marshal event", zap.Error(err))
				continue
			}

			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Error("failed to write message", zap.Error(err))
				return
			}
		}
	}
}
