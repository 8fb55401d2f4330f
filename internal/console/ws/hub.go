package ws

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"naimuAdmin/internal/console/listview"
)

const (
	writeWait  = 20 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Logger defines minimal logging interface required by hubs.
type Logger interface {
	Infof(string, ...interface{})
	Errorf(string, ...interface{})
}

// IdentifyFunc resolves the signed-in admin of a request.
type IdentifyFunc func(r *http.Request) (int64, bool)

// Notification is the payload pushed to an admin.
type Notification struct {
	Type     string            `json:"type"`
	Message  string            `json:"message"`
	Severity listview.Severity `json:"severity"`
}

// NotificationHub keeps one websocket per signed-in admin and delivers
// notifications to it.
type NotificationHub struct {
	logger   Logger
	identify IdentifyFunc
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[int64]*websocket.Conn
	locks map[int64]*sync.Mutex
}

// NewNotificationHub constructs a NotificationHub.
func NewNotificationHub(logger Logger, identify IdentifyFunc) *NotificationHub {
	return &NotificationHub{
		logger:   logger,
		identify: identify,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[int64]*websocket.Conn),
		locks: make(map[int64]*sync.Mutex),
	}
}

// ServeWS handles notification websocket requests.
func (h *NotificationHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identify(r)
	if !ok || id == 0 {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.errorf("notifications ws upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	if old, ok := h.conns[id]; ok {
		_ = old.Close()
	}
	h.conns[id] = conn
	if _, ok := h.locks[id]; !ok {
		h.locks[id] = &sync.Mutex{}
	}
	h.mu.Unlock()

	h.infof("notifications: admin %d connected", id)

	go h.pingLoop(id, conn)
	go h.readLoop(id, conn)
}

// Connected reports whether admin id has a live connection.
func (h *NotificationHub) Connected(id int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[id]
	return ok
}

// Push sends payload to admin id. It is a no-op when the admin is offline.
func (h *NotificationHub) Push(id int64, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.errorf("notifications: marshal failed: %v", err)
		return
	}
	h.safeWrite(id, func(conn *websocket.Conn) error {
		return conn.WriteMessage(websocket.TextMessage, data)
	})
}

// Broadcast sends payload to every connected admin.
func (h *NotificationHub) Broadcast(payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.errorf("notifications: marshal failed: %v", err)
		return
	}
	h.mu.RLock()
	ids := make([]int64, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	for _, id := range ids {
		h.safeWrite(id, func(conn *websocket.Conn) error {
			return conn.WriteMessage(websocket.TextMessage, data)
		})
	}
}

// Notifier returns a listview.Notifier delivering to admin id.
func (h *NotificationHub) Notifier(id int64) listview.Notifier {
	return adminNotifier{hub: h, id: id}
}

type adminNotifier struct {
	hub *NotificationHub
	id  int64
}

func (n adminNotifier) Notify(message string, severity listview.Severity) {
	n.hub.Push(n.id, Notification{Type: "notify", Message: message, Severity: severity})
}

func (h *NotificationHub) pingLoop(id int64, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for range ticker.C {
		h.mu.RLock()
		alive := h.conns[id] == conn
		h.mu.RUnlock()
		if !alive {
			return
		}
		h.safeWrite(id, func(c *websocket.Conn) error {
			return c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		})
	}
}

func (h *NotificationHub) readLoop(id int64, conn *websocket.Conn) {
	defer h.closeConn(id, conn)

	conn.SetReadLimit(4 << 10)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		if mt == websocket.TextMessage && strings.EqualFold(strings.TrimSpace(string(message)), "ping") {
			h.safeWrite(id, func(c *websocket.Conn) error {
				return c.WriteMessage(websocket.TextMessage, []byte("pong"))
			})
		}
	}
}

func (h *NotificationHub) closeConn(id int64, conn *websocket.Conn) {
	_ = conn.Close()
	h.mu.Lock()
	if current, ok := h.conns[id]; ok && current == conn {
		delete(h.conns, id)
		delete(h.locks, id)
	}
	h.mu.Unlock()
}

func (h *NotificationHub) safeWrite(id int64, fn func(*websocket.Conn) error) {
	h.mu.RLock()
	conn := h.conns[id]
	mu := h.locks[id]
	h.mu.RUnlock()
	if conn == nil || mu == nil {
		return
	}

	mu.Lock()
	defer mu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := fn(conn); err != nil {
		h.errorf("notifications: admin %d write failed: %v", id, err)
		h.closeConn(id, conn)
	}
}

func (h *NotificationHub) infof(format string, args ...interface{}) {
	if h.logger != nil {
		h.logger.Infof(format, args...)
	}
}

func (h *NotificationHub) errorf(format string, args ...interface{}) {
	if h.logger != nil {
		h.logger.Errorf(format, args...)
	}
}
