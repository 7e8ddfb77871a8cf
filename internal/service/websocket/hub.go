package websocket

import (
	"sync"
	"time"

	"cvscanner/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is how long one write to a viewer may take.
	writeWait = 10 * time.Second
	// viewerQueue is how many messages may wait for one viewer.
	viewerQueue = 16
)

// viewer is one connection with its own outgoing queue.
type viewer struct {
	conn *websocket.Conn
	send chan []byte
}

// HubService fans messages out to every connected viewer. Run never writes to
// a connection itself: each viewer has a writer goroutine, and a viewer whose
// queue is full is disconnected.
type HubService struct {
	clients    map[*websocket.Conn]*viewer
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	writeWait  time.Duration
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]*viewer),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		writeWait:  writeWait,
		logger:     logger,
	}
}

// Run serves register, unregister and broadcast requests until Stop is called.
func (h *HubService) Run() {
	for {
		select {
		case conn := <-h.register:
			v := &viewer{conn: conn, send: make(chan []byte, viewerQueue)}
			h.mutex.Lock()
			h.clients[conn] = v
			count := len(h.clients)
			h.mutex.Unlock()
			go h.writer(v)
			h.logger.Info("Viewer connected. Total: %d", count)

		case conn := <-h.unregister:
			if h.drop(conn) {
				h.logger.Info("Viewer disconnected. Total: %d", h.GetClientCount())
			}

		case message := <-h.broadcast:
			h.mutex.RLock()
			var lagging []*websocket.Conn
			for conn, v := range h.clients {
				select {
				case v.send <- message:
				default:
					lagging = append(lagging, conn)
				}
			}
			h.mutex.RUnlock()

			for _, conn := range lagging {
				if h.drop(conn) {
					// Odblokowuje writer zawieszony na WriteMessage
					conn.Close()
					h.logger.Warning("Viewer is not reading, disconnected. Total: %d", h.GetClientCount())
				}
			}

		case <-h.done:
			h.mutex.Lock()
			for conn, v := range h.clients {
				close(v.send)
				delete(h.clients, conn)
			}
			h.mutex.Unlock()
			return
		}
	}
}

// drop removes a viewer and closes its queue; the writer then closes the connection.
func (h *HubService) drop(conn *websocket.Conn) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	v, ok := h.clients[conn]
	if !ok {
		return false
	}
	delete(h.clients, conn)
	close(v.send)
	return true
}

// writer sends queued messages to one viewer until its queue is closed or a write fails.
func (h *HubService) writer(v *viewer) {
	defer v.conn.Close()

	for message := range v.send {
		v.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
		if err := v.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Error("Error sending message: %v", err)
			h.Unregister(v.conn)
			return
		}
	}

	v.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
	v.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (h *HubService) Register(client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues message for every viewer. Preview frames are dropped
// rather than blocking the caller when the queue is full.
func (h *HubService) Broadcast(message []byte) bool {
	select {
	case h.broadcast <- message:
		return true
	case <-h.done:
		return false
	default:
		return false
	}
}

// Publish queues message for every viewer and waits for room in the queue.
// Run drains the queue without touching the network, so the wait is short.
func (h *HubService) Publish(message []byte) {
	select {
	case h.broadcast <- message:
	case <-h.done:
	}
}

// Stop disconnects every viewer and ends Run.
func (h *HubService) Stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
