package auth

import (
	"net/http"

	"github.com/gorilla/sessions"
)

const (
	sessionName = "metaltrade-session"
	keyUserID   = "user_id"
	keyRole     = "role"
)

// Sessions хранит principal в подписанной cookie
type Sessions struct {
	store *sessions.CookieStore
}

func NewSessions(key []byte, secure bool) *Sessions {
	store := sessions.NewCookieStore(key)
	store.Options.HttpOnly = true
	store.Options.Secure = secure
	store.Options.SameSite = http.SameSiteLaxMode
	store.Options.Path = "/"
	return &Sessions{store: store}
}

func (s *Sessions) Save(w http.ResponseWriter, r *http.Request, p Principal) error {
	session, err := s.store.Get(r, sessionName)
	if err != nil && session == nil {
		return err
	}
	session.Values[keyUserID] = p.UserID
	session.Values[keyRole] = string(p.Role)
	return session.Save(r, w)
}

// Load возвращает principal из cookie; повреждённая или чужая подпись - это просто отсутствие сессии
func (s *Sessions) Load(r *http.Request) (Principal, bool) {
	session, err := s.store.Get(r, sessionName)
	if err != nil || session.IsNew {
		return Principal{}, false
	}
	userID, ok := session.Values[keyUserID].(int64)
	if !ok || userID <= 0 {
		return Principal{}, false
	}
	roleStr, _ := session.Values[keyRole].(string)
	role, err := ParseRole(roleStr)
	if err != nil {
		return Principal{}, false
	}
	return Principal{UserID: userID, Role: role}, true
}

func (s *Sessions) Clear(w http.ResponseWriter, r *http.Request) error {
	session, err := s.store.Get(r, sessionName)
	if err != nil && session == nil {
		return err
	}
	session.Options.MaxAge = -1
	return session.Save(r, w)
}
