package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"metaltrade/internal/auth"
	"metaltrade/internal/files"
	"metaltrade/internal/rfq"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ограничение размера JSON-тела, чтобы избежать DoS
const maxJSONBody = 1 << 20

// Handler оборачивает движок заявок для HTTP
type Handler struct {
	Service        Service
	Files          FileStore
	Logger         logrus.FieldLogger
	MaxUploadBytes int64
}

// NewHandler создает новый Handler
func NewHandler(svc Service, fs FileStore, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{Service: svc, Files: fs, Logger: logger, MaxUploadBytes: 32 << 20}
}

// PingHandler отвечает "ok" для проверки сервера
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// writeError переводит ошибку движка в HTTP-статус; внутренние ошибки клиенту не раскрываются
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *rfq.Error
	if errors.As(err, &appErr) {
		writeDetail(w, statusFor(appErr.Kind), appErr.Message)
		return
	}
	switch {
	case errors.Is(err, files.ErrTooLarge):
		writeDetail(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	case errors.Is(err, files.ErrUnsupportedType), errors.Is(err, files.ErrEmpty):
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.Logger.WithError(err).WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	}).Error("Request failed")
	writeDetail(w, http.StatusInternalServerError, "internal server error")
}

func statusFor(kind rfq.Kind) int {
	switch kind {
	case rfq.KindNotFound:
		return http.StatusNotFound
	case rfq.KindForbidden:
		return http.StatusForbidden
	case rfq.KindUnauthorized:
		return http.StatusUnauthorized
	case rfq.KindConflict:
		// повторный выбор победителя тоже сюда: 409, а не 400
		return http.StatusConflict
	case rfq.KindValidation:
		return http.StatusUnprocessableEntity
	case rfq.KindBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON читает тело запроса с ограничением размера
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON format")
		return false
	}
	return true
}

// principal достаёт пользователя из контекста; без него отвечает 401
func principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, rfq.ErrUnauthorized.Message)
		return auth.Principal{}, false
	}
	return p, true
}

func requestIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "requestId"))
	if err != nil {
		// некорректный идентификатор неотличим от отсутствующей заявки
		writeDetail(w, http.StatusNotFound, rfq.ErrRequestNotFound.Message)
		return uuid.Nil, false
	}
	return id, true
}

func int64Param(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeDetail(w, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return id, true
}
