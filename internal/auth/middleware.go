package auth

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// Authenticate кладёт principal в контекст запроса.
// При headerAuth=true (AUTH_ENABLED=false) принимаются заголовки X-User-ID/X-User-Role,
// это режим для локальной разработки и тестов.
func Authenticate(s *Sessions, headerAuth bool, logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s != nil {
				if p, ok := s.Load(r); ok {
					next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
					return
				}
			}
			if headerAuth {
				if p, ok := principalFromHeaders(r); ok {
					next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
					return
				}
				if r.Header.Get(HeaderUserID) != "" {
					logger.WithField("path", r.URL.Path).Warn("malformed identity headers")
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func principalFromHeaders(r *http.Request) (Principal, bool) {
	userID, err := strconv.ParseInt(r.Header.Get(HeaderUserID), 10, 64)
	if err != nil || userID <= 0 {
		return Principal{}, false
	}
	role, err := ParseRole(r.Header.Get(HeaderUserRole))
	if err != nil {
		return Principal{}, false
	}
	return Principal{UserID: userID, Role: role}, true
}

// RequirePrincipal отвечает 401, если пользователь не аутентифицирован
func RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", "Bearer")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"detail": "Not authenticated"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
