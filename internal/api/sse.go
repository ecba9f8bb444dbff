package api

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/empirial-designs/sitesmith/internal/task"
)

// SSEClient represents an SSE client connection
type SSEClient struct {
	TaskID  string
	Channel chan *task.Task
}

// SSEManager manages SSE connections
type SSEManager struct {
	clients    map[string][]*SSEClient
	register   chan *SSEClient
	unregister chan *SSEClient
	broadcast  chan *task.Task
}

// NewSSEManager creates a new SSE manager
func NewSSEManager() *SSEManager {
	manager := &SSEManager{
		clients:    make(map[string][]*SSEClient),
		register:   make(chan *SSEClient),
		unregister: make(chan *SSEClient),
		broadcast:  make(chan *task.Task),
	}

	go manager.run()
	return manager
}

// run starts the SSE manager event loop
func (m *SSEManager) run() {
	for {
		select {
		case client := <-m.register:
			m.clients[client.TaskID] = append(m.clients[client.TaskID], client)

		case client := <-m.unregister:
			if clients, ok := m.clients[client.TaskID]; ok {
				for i, c := range clients {
					if c == client {
						m.clients[client.TaskID] = append(clients[:i], clients[i+1:]...)
						close(c.Channel)
						break
					}
				}

				if len(m.clients[client.TaskID]) == 0 {
					delete(m.clients, client.TaskID)
				}
			}

		case t := <-m.broadcast:
			if clients, ok := m.clients[t.ID]; ok {
				for _, client := range clients {
					select {
					case client.Channel <- t:
					default:
						// Client channel is full, skip
					}
				}
			}
		}
	}
}

// Register registers a new SSE client
func (m *SSEManager) Register(taskID string) *SSEClient {
	client := &SSEClient{
		TaskID:  taskID,
		Channel: make(chan *task.Task, 10),
	}
	m.register <- client
	return client
}

// Unregister unregisters an SSE client
func (m *SSEManager) Unregister(client *SSEClient) {
	m.unregister <- client
}

// Broadcast broadcasts a task update to all connected clients
func (m *SSEManager) Broadcast(t *task.Task) {
	m.broadcast <- t
}

// HandleSSE streams task status updates to one client until the task
// reaches a terminal state.
func HandleSSE(c *gin.Context, sseManager *SSEManager, t *task.Task) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	client := sseManager.Register(t.ID)
	defer sseManager.Unregister(client)

	sendSSEEvent(c.Writer, "status", t)
	c.Writer.Flush()

	if t.IsTerminal() {
		return
	}

	clientGone := c.Request.Context().Done()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-clientGone:
			return

		case update, ok := <-client.Channel:
			if !ok {
				return
			}
			sendSSEEvent(c.Writer, "status", update)
			c.Writer.Flush()

			if update.IsTerminal() {
				return
			}

		case <-ticker.C:
			fmt.Fprintf(c.Writer, ": heartbeat\n\n")
			c.Writer.Flush()
		}
	}
}

// sendSSEEvent writes one SSE frame with a JSON payload.
func sendSSEEvent(w io.Writer, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
