package handlers

import (
	"net/http"
	"strings"
	"time"

	"metaltrade/internal/documents"
	"metaltrade/internal/rfq"
	"metaltrade/models"

	"github.com/go-chi/chi/v5"
)

// CreateRequestHandler обрабатывает POST /api/v1/requests
func (h *Handler) CreateRequestHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in rfq.CreateRequestInput
	if !decodeJSON(w, r, &in) {
		return
	}

	req, err := h.Service.CreateRequest(r.Context(), p, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// GetMyRequestsHandler возвращает заявки текущего покупателя, с фильтром по статусу
func (h *Handler) GetMyRequestsHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var filter rfq.ListFilter
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := models.ParseRequestStatus(raw)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "Invalid status")
			return
		}
		filter.Status = status
	}

	reqs, err := h.Service.ListMyRequests(r.Context(), p, filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

// GetStatsHandler - GET /api/v1/requests/stats?from=&to=&period=
func (h *Handler) GetStatsHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q := rfq.StatsQuery{Period: r.URL.Query().Get("period")}
	var err error
	if q.From, err = parseTimeParam(r.URL.Query().Get("from"), false); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid from")
		return
	}
	if q.To, err = parseTimeParam(r.URL.Query().Get("to"), true); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid to")
		return
	}

	stats, err := h.Service.Stats(r.Context(), p, q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// parseTimeParam принимает дату или RFC3339; дата в параметре to означает конец дня
func parseTimeParam(s string, endOfDay bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		return d.Time.Add(24*time.Hour - time.Nanosecond), nil
	}
	return d.Time, nil
}

// GetRequestHandler - чтение заявки владельцем
func (h *Handler) GetRequestHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := requestIDParam(w, r)
	if !ok {
		return
	}

	req, err := h.Service.GetRequest(r.Context(), p, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// GetPublicRequestHandler - просмотр заявки поставщиком по ссылке из письма
func (h *Handler) GetPublicRequestHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := requestIDParam(w, r)
	if !ok {
		return
	}

	req, err := h.Service.GetRequestByToken(r.Context(), id, r.URL.Query().Get("token"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// SendToSuppliersHandler - POST /api/v1/requests/{requestId}/send-to-suppliers
func (h *Handler) SendToSuppliersHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := requestIDParam(w, r)
	if !ok {
		return
	}
	var in rfq.SendInput
	if !decodeJSON(w, r, &in) {
		return
	}

	res, err := h.Service.SendToSuppliers(r.Context(), p, id, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

// AwardHandler - POST /api/v1/requests/{requestId}/offers/{offerId}/award
func (h *Handler) AwardHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := requestIDParam(w, r)
	if !ok {
		return
	}
	offerID, ok := int64Param(w, r, "offerId")
	if !ok {
		return
	}

	req, err := h.Service.Award(r.Context(), p, id, offerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// GenerateDocumentHandler - POST /api/v1/requests/{requestId}/documents/{kind}
func (h *Handler) GenerateDocumentHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := requestIDParam(w, r)
	if !ok {
		return
	}
	kind, err := documents.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.Service.GenerateDocument(r.Context(), p, id, kind)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
