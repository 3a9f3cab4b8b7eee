// Package chat implements a WebSocket transport over
// github.com/gorilla/websocket, adapted in place from
// cmd/fanout's hub/client pair: same map[string][]*Client connection
// registry and register/unregister/broadcast channel trio (hub.go), but
// generalized from a server-push-only fan-out (cmd/fanout's readPump
// discards everything clients send) into a bidirectional transport —
// inbound messages trigger a board's "chat_event" start node, and the
// run's terminal status is published on the "run_completed" topic. The
// run's result is not written back to the sending client's connections.
package chat

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/lyzr/flowengine/flow/board"
	execctx "github.com/lyzr/flowengine/flow/context"
	"github.com/lyzr/flowengine/flow/scheduler"
	"github.com/lyzr/flowengine/flow/value"
)

// Publisher is the event-fan-out surface chat runs publish their
// terminal status to, satisfied by internal/queue.Queue.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, message []byte) error
}

// Logger is the minimal surface this package needs.
type Logger interface {
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// Inbound is one message read off a client connection, carrying enough
// to route it to the right board.
type Inbound struct {
	Username string
	BoardID  string
	Data     []byte
}

// Outbound is a message to deliver back to every connection registered
// for a username.
type Outbound struct {
	Username string
	Data     []byte
}

// Hub owns the connection registry and the trigger loop that turns
// inbound client messages into board runs, the direct generalization of
// cmd/fanout's broadcast-only Hub.Run.
type Hub struct {
	boards    *board.Service
	scheduler *scheduler.Scheduler
	services  execctx.Services
	publisher Publisher
	log       Logger

	mu          sync.RWMutex
	connections map[string][]*Client

	register   chan *Client
	unregister chan *Client
	inbound    chan *Inbound
	outbound   chan *Outbound
}

// NewHub constructs a Hub bound to the board service and scheduler used
// to run "chat_event" boards. publisher may be nil to disable the
// run-completed fan-out.
func NewHub(boards *board.Service, sched *scheduler.Scheduler, services execctx.Services, publisher Publisher, log Logger) *Hub {
	return &Hub{
		boards:      boards,
		scheduler:   sched,
		services:    services,
		publisher:   publisher,
		log:         log,
		connections: make(map[string][]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		inbound:     make(chan *Inbound, 256),
		outbound:    make(chan *Outbound, 256),
	}
}

// Run drives the hub's event loop until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.registerClient(c)
		case c := <-h.unregister:
			h.unregisterClient(c)
		case msg := <-h.inbound:
			h.handleInbound(ctx, msg)
		case msg := <-h.outbound:
			h.deliver(msg)
		}
	}
}

func (h *Hub) registerClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c.username] = append(h.connections[c.username], c)
	h.log.Info("chat client registered", "username", c.username, "total_for_user", len(h.connections[c.username]))
}

func (h *Hub) unregisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients := h.connections[c.username]
	for i, existing := range clients {
		if existing == c {
			h.connections[c.username] = append(clients[:i], clients[i+1:]...)
			close(c.send)
			if len(h.connections[c.username]) == 0 {
				delete(h.connections, c.username)
			}
			break
		}
	}
}

func (h *Hub) deliver(msg *Outbound) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.connections[msg.Username] {
		select {
		case c.send <- msg.Data:
		default:
			h.log.Error("chat client send buffer full, dropping connection", "username", msg.Username)
			close(c.send)
		}
	}
}

// handleInbound finds the board's chat_event start node and drives a
// run from it, publishing the run's terminal status on the
// "run_completed" topic once it completes. Nothing is queued on the
// outbound channel for the originating username.
func (h *Hub) handleInbound(ctx context.Context, msg *Inbound) {
	b, err := h.boards.OpenBoard(ctx, msg.BoardID, true)
	if err != nil {
		h.log.Error("chat: open board failed", "board_id", msg.BoardID, "error", err)
		return
	}

	startNodeID := ""
	b.RLock()
	for id, n := range b.Nodes {
		if n.Start && n.Name == "chat_event" {
			startNodeID = id
			break
		}
	}
	b.RUnlock()
	if startNodeID == "" {
		h.log.Error("chat: board has no chat_event start node", "board_id", msg.BoardID)
		return
	}

	payload := value.Map(map[string]value.Value{
		"username": value.String(msg.Username),
		"message":  value.String(string(msg.Data)),
	})

	result := h.scheduler.Run(ctx, b, startNodeID, payload, false, h.services)
	if result.Status == scheduler.StatusFailed {
		h.log.Error("chat: run failed", "board_id", msg.BoardID, "username", msg.Username, "error", result.Err)
	}
	h.publishCompletion(ctx, msg.BoardID, result)
}

func (h *Hub) publishCompletion(ctx context.Context, boardID string, result *scheduler.Result) {
	if h.publisher == nil {
		return
	}
	data, err := json.Marshal(map[string]interface{}{
		"board_id": boardID,
		"status":   result.Status,
	})
	if err != nil {
		return
	}
	if err := h.publisher.Publish(ctx, "run_completed", boardID, data); err != nil {
		h.log.Error("publish run_completed failed", "board_id", boardID, "error", err)
	}
}

// GetConnectionCount returns the total number of active connections.
func (h *Hub) GetConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, clients := range h.connections {
		n += len(clients)
	}
	return n
}
