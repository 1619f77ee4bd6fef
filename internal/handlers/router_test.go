package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"

	"metaltrade/db/memory"
	"metaltrade/internal/auth"
	"metaltrade/internal/files"
	"metaltrade/internal/handlers"
	"metaltrade/internal/handlers/testutils"
	"metaltrade/internal/notify"
	"metaltrade/internal/rfq"
	"metaltrade/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// recordingMailer запоминает письма вместо отправки
type recordingMailer struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (m *recordingMailer) Enqueue(ctx context.Context, msg notify.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
}

func (m *recordingMailer) messages() []notify.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notify.Message(nil), m.msgs...)
}

var tokenRe = regexp.MustCompile(`token=([0-9a-f-]{36})`)

// tokenFor достаёт токен из ссылки в письме получателю
func (m *recordingMailer) tokenFor(t *testing.T, to string) string {
	t.Helper()
	for _, msg := range m.messages() {
		if msg.To != to {
			continue
		}
		match := tokenRe.FindStringSubmatch(msg.HTML)
		require.NotNil(t, match, "no token link in email to %s", to)
		return match[1]
	}
	t.Fatalf("no email to %s", to)
	return ""
}

type testServer struct {
	router http.Handler
	mailer *recordingMailer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	mailer := &recordingMailer{}
	engine, err := rfq.NewEngine(memory.New(), rfq.Deps{
		Mailer:      mailer,
		Logger:      logger,
		FrontendURL: "http://front.test",
	})
	require.NoError(t, err)

	fs, err := files.NewStore(t.TempDir(), 1<<20)
	require.NoError(t, err)

	h := handlers.NewHandler(engine, fs, logger)
	router := handlers.NewRouter(handlers.RouterConfig{
		Handler:    h,
		Sessions:   auth.NewSessions([]byte("0123456789abcdef0123456789abcdef"), false),
		HeaderAuth: true,
		Logger:     logger,
	})
	return &testServer{router: router, mailer: mailer}
}

func (s *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) doJSON(t *testing.T, method, path, userID string, role auth.Role, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req = testutils.AsUser(req, userID, role)
	}
	return s.do(t, req)
}

func (s *testServer) createSupplier(t *testing.T, buyer, name, email string) models.Supplier {
	t.Helper()
	w := s.doJSON(t, "POST", "/api/v1/suppliers", buyer, auth.RoleBuyer, map[string]any{
		"short_name": name,
		"inn":        "7701234567",
		"email":      email,
		"category":   "Лист",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sup models.Supplier
	require.NoError(t, json.NewDecoder(w.Body).Decode(&sup))
	return sup
}

func (s *testServer) createRequest(t *testing.T, buyer string) models.Request {
	t.Helper()
	w := s.doJSON(t, "POST", "/api/v1/requests", buyer, auth.RoleBuyer, map[string]any{
		"items": []map[string]any{
			{"category": "Лист", "stamp": "09Г2С", "size": "10x1500x6000", "quantity": 2, "unit": "т"},
			{"name": "Электроды УОНИ-13/55", "quantity": 50, "unit": "кг"},
		},
		"delivery_address": "Екатеринбург",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var req models.Request
	require.NoError(t, json.NewDecoder(w.Body).Decode(&req))
	return req
}

func offerForm(t *testing.T, offerData any) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	payload, err := json.Marshal(offerData)
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("offer_data", string(payload)))

	fw, err := mw.CreateFormFile("invoice_file", "invoice.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.4 test invoice"))
	require.NoError(t, err)

	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (s *testServer) submitOffer(t *testing.T, requestID, token string, offerData any) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := offerForm(t, offerData)
	req := httptest.NewRequest("POST", fmt.Sprintf("/api/v1/requests/%s/offers?token=%s", requestID, token), body)
	req.Header.Set("Content-Type", contentType)
	return s.do(t, req)
}

func offerData(items ...map[string]any) map[string]any {
	return map[string]any{
		"comment":            "Отгрузка со склада",
		"delivery_option":    "delivery",
		"vat_option":         "with_vat",
		"invoice_expires_at": "2030-01-01",
		"items":              items,
	}
}

func TestRouterPing(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, httptest.NewRequest("GET", "/api/v1/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", w.Body.String())
}

func TestRouterRequiresPrincipal(t *testing.T) {
	s := newTestServer(t)

	w := s.doJSON(t, "GET", "/api/v1/requests/me", "", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// битые заголовки равносильны их отсутствию
	w = s.doJSON(t, "GET", "/api/v1/requests/me", "abc", auth.RoleBuyer, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouterSellerAccess(t *testing.T) {
	s := newTestServer(t)

	w := s.doJSON(t, "POST", "/api/v1/requests", "5", auth.RoleSeller, map[string]any{
		"items": []map[string]any{{"name": "Болт М12", "quantity": 100, "unit": "шт"}},
	})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = s.doJSON(t, "GET", "/api/v1/requests/me", "5", auth.RoleSeller, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `[]`, w.Body.String())
}

func TestRouterCreateRequestValidation(t *testing.T) {
	s := newTestServer(t)

	w := s.doJSON(t, "POST", "/api/v1/requests", "1", auth.RoleBuyer, map[string]any{
		"items": []map[string]any{{"quantity": 1, "unit": "шт"}},
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Contains(t, decodeDetail(t, w), "generic item requires name")

	w = s.doJSON(t, "POST", "/api/v1/requests", "1", auth.RoleBuyer, map[string]any{"items": []any{}})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRouterCreateRequestInfersKind(t *testing.T) {
	s := newTestServer(t)
	req := s.createRequest(t, "1")

	require.Equal(t, models.StatusCreated, req.Status)
	require.Equal(t, int64(1), req.DisplayNumber)
	require.Len(t, req.Items, 2)
	require.Equal(t, models.KindMetal, req.Items[0].Kind)
	require.Equal(t, models.KindGeneric, req.Items[1].Kind)
}

func TestRouterOfferLifecycle(t *testing.T) {
	s := newTestServer(t)

	first := s.createSupplier(t, "1", "ООО Сталь", "sales@stal.test")
	second := s.createSupplier(t, "1", "АО Металлобаза", "office@baza.test")
	req := s.createRequest(t, "1")
	reqID := req.ID.String()

	w := s.doJSON(t, "POST", "/api/v1/requests/"+reqID+"/send-to-suppliers", "1", auth.RoleBuyer, map[string]any{
		"groups": []map[string]any{{"group_key": "Лист", "supplier_ids": []int64{first.ID, second.ID}}},
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var sent rfq.SendResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&sent))
	require.Len(t, sent.Sent, 2)
	require.Equal(t, 2, sent.Emails)

	// токен в ответ покупателю не попадает
	require.NotContains(t, w.Body.String(), "token")

	firstToken := s.mailer.tokenFor(t, "sales@stal.test")
	secondToken := s.mailer.tokenFor(t, "office@baza.test")
	require.NotEqual(t, firstToken, secondToken)

	// отправка не меняет статус
	w = s.doJSON(t, "GET", "/api/v1/requests/"+reqID, "1", auth.RoleBuyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.Request
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	require.Equal(t, models.StatusCreated, got.Status)

	w = s.do(t, httptest.NewRequest("GET", "/api/v1/requests/"+reqID+"/public?token="+firstToken, nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, httptest.NewRequest("GET", "/api/v1/requests/"+reqID+"/public?token=not-a-token", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	metalItem, genericItem := req.Items[0].ID, req.Items[1].ID

	w = s.submitOffer(t, reqID, firstToken, offerData(
		map[string]any{"request_item_id": metalItem, "price": "85000.00", "total_price": "170000.00"},
		map[string]any{"request_item_id": genericItem, "price": "12.50", "is_analogue": true, "analog_name": "Электроды ОК 46.00"},
	))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var firstOffer models.Offer
	require.NoError(t, json.NewDecoder(w.Body).Decode(&firstOffer))
	require.Equal(t, first.ID, firstOffer.SupplierID)
	require.Len(t, firstOffer.Items, 2)

	// повторная подача тем же токеном
	w = s.submitOffer(t, reqID, firstToken, offerData(
		map[string]any{"request_item_id": metalItem, "price": "80000.00"},
	))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, rfq.ErrTokenUsed.Message, decodeDetail(t, w))

	// позиция чужой заявки
	w = s.submitOffer(t, reqID, secondToken, offerData(
		map[string]any{"request_item_id": metalItem + 1000, "price": "80000.00"},
	))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// отказ не гасит токен
	w = s.submitOffer(t, reqID, secondToken, offerData(
		map[string]any{"request_item_id": metalItem, "price": "82000.00"},
	))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var secondOffer models.Offer
	require.NoError(t, json.NewDecoder(w.Body).Decode(&secondOffer))

	w = s.doJSON(t, "GET", "/api/v1/requests/"+reqID, "1", auth.RoleBuyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got = models.Request{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	require.Equal(t, models.StatusPending, got.Status)
	require.Len(t, got.Offers, 2)

	// использованный токен всё ещё даёт чтение заявки
	w = s.do(t, httptest.NewRequest("GET", "/api/v1/requests/"+reqID+"/public?token="+firstToken, nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NotContains(t, w.Body.String(), `"offers"`)

	w = s.doJSON(t, "GET", "/api/v1/requests/"+reqID, "2", auth.RoleBuyer, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	awardPath := fmt.Sprintf("/api/v1/requests/%s/offers/%d/award", reqID, firstOffer.ID)
	w = s.doJSON(t, "POST", awardPath, "2", auth.RoleBuyer, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	before := len(s.mailer.messages())
	w = s.doJSON(t, "POST", awardPath, "1", auth.RoleBuyer, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got = models.Request{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	require.Equal(t, models.StatusAwarded, got.Status)
	require.NotNil(t, got.WinnerOfferID)
	require.Equal(t, firstOffer.ID, *got.WinnerOfferID)

	// письмо победителю и проигравшему
	after := s.mailer.messages()[before:]
	require.Len(t, after, 2)

	w = s.doJSON(t, "POST", fmt.Sprintf("/api/v1/requests/%s/offers/%d/award", reqID, secondOffer.ID), "1", auth.RoleBuyer, nil)
	require.Equal(t, http.StatusConflict, w.Code)

	w = s.doJSON(t, "GET", "/api/v1/requests/"+reqID, "1", auth.RoleBuyer, nil)
	got = models.Request{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	require.Equal(t, firstOffer.ID, *got.WinnerOfferID)
}

func TestRouterSubmitOfferRequiresInvoice(t *testing.T) {
	s := newTestServer(t)
	sup := s.createSupplier(t, "1", "ООО Сталь", "sales@stal.test")
	req := s.createRequest(t, "1")

	w := s.doJSON(t, "POST", "/api/v1/requests/"+req.ID.String()+"/send-to-suppliers", "1", auth.RoleBuyer, map[string]any{
		"groups": []map[string]any{{"supplier_ids": []int64{sup.ID}}},
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	token := s.mailer.tokenFor(t, "sales@stal.test")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	payload, _ := json.Marshal(offerData(map[string]any{"request_item_id": req.Items[0].ID, "price": "1"}))
	require.NoError(t, mw.WriteField("offer_data", string(payload)))
	require.NoError(t, mw.Close())

	httpReq := httptest.NewRequest("POST", "/api/v1/requests/"+req.ID.String()+"/offers?token="+token, &buf)
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	w = s.do(t, httpReq)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// токен остался действительным
	w = s.do(t, httptest.NewRequest("GET", "/api/v1/requests/"+req.ID.String()+"/public?token="+token, nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRouterSubmitOfferWrongRequest(t *testing.T) {
	s := newTestServer(t)
	sup := s.createSupplier(t, "1", "ООО Сталь", "sales@stal.test")
	req := s.createRequest(t, "1")
	other := s.createRequest(t, "1")

	w := s.doJSON(t, "POST", "/api/v1/requests/"+req.ID.String()+"/send-to-suppliers", "1", auth.RoleBuyer, map[string]any{
		"groups": []map[string]any{{"supplier_ids": []int64{sup.ID}}},
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	token := s.mailer.tokenFor(t, "sales@stal.test")

	w = s.submitOffer(t, other.ID.String(), token, offerData(
		map[string]any{"request_item_id": other.Items[0].ID, "price": "100"},
	))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, rfq.ErrTokenMismatch.Message, decodeDetail(t, w))
}

func TestRouterSuppliersCRUD(t *testing.T) {
	s := newTestServer(t)
	sup := s.createSupplier(t, "1", "ООО Сталь", "Sales@Stal.test")
	require.Equal(t, "sales@stal.test", sup.Email)

	w := s.doJSON(t, "GET", "/api/v1/suppliers?category=Лист", "1", auth.RoleBuyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Supplier
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	require.Len(t, list, 1)

	// справочник другого покупателя пуст
	w = s.doJSON(t, "GET", "/api/v1/suppliers", "2", auth.RoleBuyer, nil)
	require.JSONEq(t, `[]`, w.Body.String())

	path := fmt.Sprintf("/api/v1/suppliers/%d", sup.ID)
	update := map[string]any{
		"short_name": "ООО Сталь-Урал",
		"inn":        "7701234567",
		"email":      "sales@stal.test",
		"category":   "Труба",
	}
	w = s.doJSON(t, "PUT", path, "2", auth.RoleBuyer, update)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = s.doJSON(t, "PUT", path, "1", auth.RoleBuyer, update)
	require.Equal(t, http.StatusOK, w.Code)

	update["inn"] = "123"
	w = s.doJSON(t, "PUT", path, "1", auth.RoleBuyer, update)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.doJSON(t, "DELETE", path, "2", auth.RoleBuyer, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = s.doJSON(t, "DELETE", path, "1", auth.RoleBuyer, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestRouterCounterpartyBankDetails(t *testing.T) {
	s := newTestServer(t)
	w := s.doJSON(t, "POST", "/api/v1/counterparties", "1", auth.RoleBuyer, map[string]any{
		"short_name":    "ООО Заказчик",
		"legal_address": "г. Москва, ул. Ленина, 1",
		"inn":           "7712345678",
		"director":      "Иванов И.И.",
		"phone":         "+7 495 000-00-00",
		"email":         "info@zakazchik.test",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var cp models.Counterparty
	require.NoError(t, json.NewDecoder(w.Body).Decode(&cp))

	w = s.doJSON(t, "GET", fmt.Sprintf("/api/v1/counterparties/%d/has-bank-details", cp.ID), "1", auth.RoleBuyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"has_bank_details":false}`, w.Body.String())

	w = s.doJSON(t, "GET", fmt.Sprintf("/api/v1/counterparties/%d", cp.ID), "2", auth.RoleBuyer, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouterDevSession(t *testing.T) {
	s := newTestServer(t)

	w := s.doJSON(t, "POST", "/api/v1/auth/dev-session", "9", auth.RoleBuyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest("GET", "/api/v1/auth/session", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w = s.do(t, req)
	require.Equal(t, http.StatusOK, w.Code)

	var p auth.Principal
	require.NoError(t, json.NewDecoder(w.Body).Decode(&p))
	require.Equal(t, int64(9), p.UserID)
	require.Equal(t, auth.RoleBuyer, p.Role)
}

func TestRouterMetrics(t *testing.T) {
	s := newTestServer(t)
	s.createRequest(t, "1")

	w := s.do(t, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, strings.Contains(w.Body.String(), "metaltrade_"), "metrics should expose service counters")
}
