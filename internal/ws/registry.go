package ws

import (
	"sync"

	"metaltrade/internal/metrics"

	"github.com/sirupsen/logrus"
)

// Key - идентичность владельца соединений
type Key struct {
	Role   string
	UserID int64
}

// Conn - живое соединение, в которое можно писать JSON
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Registry хранит активные соединения пользователей.
// Один пользователь может держать несколько вкладок.
type Registry struct {
	mu     sync.RWMutex
	conns  map[Key]map[Conn]struct{}
	logger logrus.FieldLogger
}

func NewRegistry(logger logrus.FieldLogger) *Registry {
	return &Registry{
		conns:  make(map[Key]map[Conn]struct{}),
		logger: logger,
	}
}

func (r *Registry) Connect(key Key, c Conn) {
	r.mu.Lock()
	set, ok := r.conns[key]
	if !ok {
		set = make(map[Conn]struct{})
		r.conns[key] = set
	}
	set[c] = struct{}{}
	r.mu.Unlock()

	metrics.LiveConnections.Inc()
	r.logger.WithFields(logrus.Fields{"role": key.Role, "user_id": key.UserID}).Debug("Client connected")
}

// Disconnect идемпотентен: повторный вызов для уже удалённого соединения ничего не делает
func (r *Registry) Disconnect(key Key, c Conn) {
	r.mu.Lock()
	set, ok := r.conns[key]
	if !ok {
		r.mu.Unlock()
		return
	}
	if _, ok := set[c]; !ok {
		r.mu.Unlock()
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.conns, key)
	}
	r.mu.Unlock()

	metrics.LiveConnections.Dec()
	r.logger.WithFields(logrus.Fields{"role": key.Role, "user_id": key.UserID}).Debug("Client disconnected")
}

// Send отправляет payload во все соединения пользователя и возвращает число доставок.
// Соединение, в которое не удалось записать, закрывается и удаляется.
func (r *Registry) Send(role string, userID int64, payload any) int {
	key := Key{Role: role, UserID: userID}

	r.mu.RLock()
	targets := make([]Conn, 0, len(r.conns[key]))
	for c := range r.conns[key] {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if err := c.WriteJSON(payload); err != nil {
			r.logger.WithError(err).WithField("user_id", userID).Debug("Dropping broken connection")
			c.Close()
			r.Disconnect(key, c)
			continue
		}
		delivered++
	}
	return delivered
}

func (r *Registry) Count(key Key) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[key])
}
