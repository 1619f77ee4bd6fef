package handlers

import (
	"net/http"

	"metaltrade/internal/rfq"
)

// Справочник поставщиков

func (h *Handler) CreateSupplierHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in rfq.SupplierInput
	if !decodeJSON(w, r, &in) {
		return
	}
	s, err := h.Service.CreateSupplier(r.Context(), p, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// ListSuppliersHandler - GET /api/v1/suppliers?category=
func (h *Handler) ListSuppliersHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	list, err := h.Service.ListSuppliers(r.Context(), p, r.URL.Query().Get("category"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) UpdateSupplierHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := int64Param(w, r, "supplierId")
	if !ok {
		return
	}
	var in rfq.SupplierInput
	if !decodeJSON(w, r, &in) {
		return
	}
	s, err := h.Service.UpdateSupplier(r.Context(), p, id, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) DeleteSupplierHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := int64Param(w, r, "supplierId")
	if !ok {
		return
	}
	if err := h.Service.DeleteSupplier(r.Context(), p, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Контрагенты

func (h *Handler) CreateCounterpartyHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in rfq.CounterpartyInput
	if !decodeJSON(w, r, &in) {
		return
	}
	c, err := h.Service.CreateCounterparty(r.Context(), p, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) ListCounterpartiesHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	list, err := h.Service.ListCounterparties(r.Context(), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) GetCounterpartyHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := int64Param(w, r, "counterpartyId")
	if !ok {
		return
	}
	c, err := h.Service.GetCounterparty(r.Context(), p, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) UpdateCounterpartyHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := int64Param(w, r, "counterpartyId")
	if !ok {
		return
	}
	var in rfq.CounterpartyInput
	if !decodeJSON(w, r, &in) {
		return
	}
	c, err := h.Service.UpdateCounterparty(r.Context(), p, id, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) DeleteCounterpartyHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := int64Param(w, r, "counterpartyId")
	if !ok {
		return
	}
	if err := h.Service.DeleteCounterparty(r.Context(), p, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HasBankDetailsHandler - GET /api/v1/counterparties/{counterpartyId}/has-bank-details
func (h *Handler) HasBankDetailsHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := int64Param(w, r, "counterpartyId")
	if !ok {
		return
	}
	has, err := h.Service.CounterpartyHasBankDetails(r.Context(), p, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"has_bank_details": has})
}
