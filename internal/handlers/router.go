package handlers

import (
	"net/http"

	"metaltrade/internal/auth"
	"metaltrade/internal/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type RouterConfig struct {
	Handler    *Handler
	Sessions   *auth.Sessions
	HeaderAuth bool
	WS         http.Handler
	Logger     logrus.FieldLogger
}

// NewRouter собирает все маршруты API
func NewRouter(cfg RouterConfig) http.Handler {
	h := cfg.Handler
	sh := &SessionHandlers{Sessions: cfg.Sessions, Handler: h}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(auth.Authenticate(cfg.Sessions, cfg.HeaderAuth, cfg.Logger))

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)

		// публичные маршруты поставщика: доступ по токену из письма
		r.Get("/requests/{requestId}/public", h.GetPublicRequestHandler)
		r.Post("/requests/{requestId}/offers", h.SubmitOfferHandler)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequirePrincipal)

			r.Get("/auth/session", sh.CurrentSessionHandler)
			r.Post("/auth/logout", sh.LogoutHandler)
			if cfg.HeaderAuth && cfg.Sessions != nil {
				r.Post("/auth/dev-session", sh.DevSessionHandler)
			}

			// заявки
			r.Post("/requests", h.CreateRequestHandler)
			r.Get("/requests/me", h.GetMyRequestsHandler)
			r.Get("/requests/stats", h.GetStatsHandler)
			r.Get("/requests/{requestId}", h.GetRequestHandler)
			r.Post("/requests/{requestId}/send-to-suppliers", h.SendToSuppliersHandler)
			r.Post("/requests/{requestId}/offers/{offerId}/award", h.AwardHandler)
			r.Post("/requests/{requestId}/documents/{kind}", h.GenerateDocumentHandler)

			// поставщики
			r.Get("/suppliers", h.ListSuppliersHandler)
			r.Post("/suppliers", h.CreateSupplierHandler)
			r.Put("/suppliers/{supplierId}", h.UpdateSupplierHandler)
			r.Delete("/suppliers/{supplierId}", h.DeleteSupplierHandler)

			// контрагенты
			r.Get("/counterparties", h.ListCounterpartiesHandler)
			r.Post("/counterparties", h.CreateCounterpartyHandler)
			r.Get("/counterparties/{counterpartyId}", h.GetCounterpartyHandler)
			r.Put("/counterparties/{counterpartyId}", h.UpdateCounterpartyHandler)
			r.Delete("/counterparties/{counterpartyId}", h.DeleteCounterpartyHandler)
			r.Get("/counterparties/{counterpartyId}/has-bank-details", h.HasBankDetailsHandler)

			if cfg.WS != nil {
				r.Get("/ws", cfg.WS.ServeHTTP)
			}
		})
	})
	return r
}
