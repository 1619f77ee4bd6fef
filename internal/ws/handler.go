package ws

import (
	"net/http"
	"sync"
	"time"

	"metaltrade/internal/auth"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const writeWait = 10 * time.Second

// socket сериализует запись: gorilla/websocket не допускает конкурентных писателей
type socket struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *socket) WriteJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

func (s *socket) Close() error {
	return s.conn.Close()
}

type Handler struct {
	registry *Registry
	upgrader websocket.Upgrader
	logger   logrus.FieldLogger
}

func NewHandler(registry *Registry, allowedOrigin string, logger logrus.FieldLogger) *Handler {
	return &Handler{
		registry: registry,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" || allowedOrigin == "*" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
	}
}

// ServeHTTP поднимает websocket для аутентифицированного пользователя и держит его
// в реестре до разрыва соединения
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade to WebSocket")
		return
	}

	key := Key{Role: string(p.Role), UserID: p.UserID}
	s := &socket{conn: conn}
	h.registry.Connect(key, s)
	defer func() {
		h.registry.Disconnect(key, s)
		conn.Close()
	}()

	// клиент ничего не шлёт по делу; читаем только чтобы заметить разрыв
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.WithError(err).Debug("WebSocket closed unexpectedly")
			}
			return
		}
	}
}
