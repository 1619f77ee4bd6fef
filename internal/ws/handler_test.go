package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"metaltrade/internal/auth"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestHandlerPushesToConnectedUser(t *testing.T) {
	registry := newTestRegistry()
	h := NewHandler(registry, "", registry.logger)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := auth.Principal{UserID: 1, Role: auth.RoleBuyer}
		h.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	key := Key{Role: "buyer", UserID: 1}
	require.Eventually(t, func() bool { return registry.Count(key) == 1 }, time.Second, 10*time.Millisecond)

	require.Equal(t, 1, registry.Send("buyer", 1, map[string]string{"type": "request.awarded"}))

	var got map[string]string
	conn.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, conn.ReadJSON(&got))
	require.Equal(t, "request.awarded", got["type"])

	conn.Close()
	require.Eventually(t, func() bool { return registry.Count(key) == 0 }, time.Second, 10*time.Millisecond)
}

func TestHandlerRejectsAnonymous(t *testing.T) {
	registry := newTestRegistry()
	h := NewHandler(registry, "", registry.logger)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/ws", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandlerChecksOrigin(t *testing.T) {
	registry := newTestRegistry()
	h := NewHandler(registry, "https://metaltrade.test", registry.logger)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := auth.Principal{UserID: 1, Role: auth.RoleBuyer}
		h.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.test"}})
	require.Error(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}
