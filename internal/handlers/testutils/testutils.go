package testutils

import (
	"context"
	"net/http"

	"metaltrade/internal/auth"

	"github.com/go-chi/chi/v5"
)

// WithChiURLParams подставляет параметры пути в контекст chi запроса для тестов.
func WithChiURLParams(req *http.Request, params map[string]string) *http.Request {
	chiCtx := chi.NewRouteContext()
	for k, v := range params {
		chiCtx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, chiCtx))
}

// WithPrincipal кладёт аутентифицированного пользователя в контекст запроса.
func WithPrincipal(req *http.Request, userID int64, role auth.Role) *http.Request {
	return req.WithContext(auth.WithPrincipal(req.Context(), auth.Principal{UserID: userID, Role: role}))
}

// AsUser проставляет заголовки идентификации для роутера в режиме AUTH_ENABLED=false.
func AsUser(req *http.Request, userID string, role auth.Role) *http.Request {
	req.Header.Set(auth.HeaderUserID, userID)
	req.Header.Set(auth.HeaderUserRole, string(role))
	return req
}
