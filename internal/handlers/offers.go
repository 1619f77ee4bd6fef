package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"metaltrade/internal/rfq"
)

// память под multipart; остальное уходит во временные файлы
const multipartMemory = 8 << 20

// SubmitOfferHandler - POST /api/v1/requests/{requestId}/offers?token=
// multipart: offer_data (JSON), invoice_file, contract_file (необязательно)
func (h *Handler) SubmitOfferHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := requestIDParam(w, r)
	if !ok {
		return
	}
	token := r.URL.Query().Get("token")

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "Request body is too large")
			return
		}
		writeDetail(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	var in rfq.SubmitOfferInput
	if err := json.Unmarshal([]byte(r.FormValue("offer_data")), &in); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid offer_data JSON")
		return
	}

	// файлы не сохраняем, пока токен не проверен
	if _, err := h.Service.ValidateToken(r.Context(), token, id); err != nil {
		h.writeError(w, r, err)
		return
	}

	invoice, invoiceHeader, err := r.FormFile("invoice_file")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invoice_file is required")
		return
	}
	defer invoice.Close()

	var saved []string
	cleanup := func() {
		for _, path := range saved {
			if err := h.Files.Remove(path); err != nil {
				h.Logger.WithError(err).WithField("path", path).Warn("Failed to remove uploaded file")
			}
		}
	}

	invoicePath, err := h.Files.Save("invoice", invoiceHeader.Filename, invoice)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	saved = append(saved, invoicePath)
	in.InvoicePath = invoicePath

	contractPath, err := h.saveOptional(r, "contract_file", "contract")
	if err != nil {
		cleanup()
		h.writeError(w, r, err)
		return
	}
	if contractPath != "" {
		saved = append(saved, contractPath)
		in.ContractPath = &contractPath
	}

	offer, err := h.Service.SubmitOffer(r.Context(), id, token, in)
	if err != nil {
		cleanup()
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, offer)
}

func (h *Handler) saveOptional(r *http.Request, field, kind string) (string, error) {
	f, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer f.Close()
	return h.Files.Save(kind, header.Filename, f)
}
