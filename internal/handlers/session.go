package handlers

import (
	"net/http"

	"metaltrade/internal/auth"
)

// SessionHandlers - текущая сессия. Вход выполняет внешний сервис идентификации,
// здесь только чтение и выход.
type SessionHandlers struct {
	Sessions *auth.Sessions
	Handler  *Handler
}

// CurrentSessionHandler - GET /api/v1/auth/session
func (s *SessionHandlers) CurrentSessionHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// LogoutHandler - POST /api/v1/auth/logout
func (s *SessionHandlers) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.Sessions.Clear(w, r); err != nil {
		s.Handler.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// DevSessionHandler - POST /api/v1/auth/dev-session, только при AUTH_ENABLED=false.
// Превращает заголовки X-User-ID/X-User-Role в cookie: браузер не может
// передать свои заголовки при открытии websocket.
func (s *SessionHandlers) DevSessionHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := s.Sessions.Save(w, r, p); err != nil {
		s.Handler.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
