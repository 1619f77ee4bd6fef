package rfq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"metaltrade/internal/auth"
	"metaltrade/internal/events"
	"metaltrade/internal/metrics"
	"metaltrade/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func (e *Engine) CreateRequest(ctx context.Context, p auth.Principal, in CreateRequestInput) (*models.Request, error) {
	if !auth.CanCreateRequest(p) {
		return nil, ErrBuyersOnly
	}
	if err := e.validateStruct(in); err != nil {
		return nil, err
	}

	req := &models.Request{
		BuyerID:         p.UserID,
		Comment:         in.Comment,
		DeliveryAt:      in.DeliveryAt,
		DeliveryAddress: in.DeliveryAddress,
		Status:          models.StatusCreated,
		Items:           make([]models.RequestItem, 0, len(in.Items)),
	}
	if req.DeliveryAt != nil && req.DeliveryAt.IsZero() {
		req.DeliveryAt = nil
	}

	for i, itIn := range in.Items {
		it := itIn.toModel()
		if it.Kind == models.KindGeneric && it.Name == "" {
			return nil, ValidationError(fmt.Sprintf("items[%d]: generic item requires name", i))
		}
		req.Items = append(req.Items, it)
	}

	if in.CounterpartyID != nil {
		cp, err := e.store.GetCounterparty(ctx, *in.CounterpartyID)
		if err != nil {
			if errors.Is(err, ErrCounterpartyNotFound) {
				return nil, ValidationError("counterparty not found")
			}
			return nil, err
		}
		if cp.BuyerID != p.UserID {
			return nil, ValidationError("counterparty not found")
		}
		req.CounterpartyID = in.CounterpartyID
	}

	if err := e.store.CreateRequest(ctx, req); err != nil {
		return nil, err
	}

	metrics.RequestsCreated.Inc()
	e.logger.WithFields(logrus.Fields{
		"request_id": req.ID,
		"buyer_id":   p.UserID,
		"items":      len(req.Items),
	}).Info("Request created")
	e.publish(ctx, events.Event{Type: events.RequestCreated, RequestID: req.ID.String(), BuyerID: p.UserID})

	return req, nil
}

// GetRequest - чтение заявки владельцем вместе с предложениями
func (e *Engine) GetRequest(ctx context.Context, p auth.Principal, id uuid.UUID) (*models.Request, error) {
	req, err := e.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanViewRequest(p, req) {
		return nil, ErrForbidden
	}
	offers, err := e.store.ListRequestOffers(ctx, id)
	if err != nil {
		return nil, err
	}
	req.Offers = offers
	return req, nil
}

// GetRequestByToken - публичное чтение заявки поставщиком по ссылке из письма.
// Использованный токен тоже даёт право чтения, но только своей заявки.
func (e *Engine) GetRequestByToken(ctx context.Context, id uuid.UUID, token string) (*models.Request, error) {
	tok, err := e.lookupToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if tok.RequestID != id {
		return nil, ErrTokenMismatch
	}
	req, err := e.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	// чужие предложения и победитель поставщику не показываются
	req.Offers = nil
	req.WinnerOfferID = nil
	return req, nil
}

// ListMyRequests - заявки покупателя; продавцу возвращается пустой список
func (e *Engine) ListMyRequests(ctx context.Context, p auth.Principal, filter ListFilter) ([]models.Request, error) {
	if !p.IsBuyer() {
		return []models.Request{}, nil
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, ValidationError(fmt.Sprintf("unknown status %q", filter.Status))
	}
	reqs, err := e.store.ListBuyerRequests(ctx, p.UserID, filter.Status)
	if err != nil {
		return nil, err
	}
	if reqs == nil {
		reqs = []models.Request{}
	}
	return reqs, nil
}

type StatsPoint struct {
	Label   string                       `json:"label"`
	Start   time.Time                    `json:"start"`
	Total   int                          `json:"total"`
	Details map[models.RequestStatus]int `json:"by_status"`
}

type Stats struct {
	From     time.Time                    `json:"from"`
	To       time.Time                    `json:"to"`
	Period   string                       `json:"period"`
	Total    int                          `json:"total"`
	ByStatus map[models.RequestStatus]int `json:"by_status"`
	Series   []StatsPoint                 `json:"series"`
}

// Stats - количество заявок покупателя по статусам и периодам
func (e *Engine) Stats(ctx context.Context, p auth.Principal, q StatsQuery) (*Stats, error) {
	if !p.IsBuyer() {
		return nil, ErrBuyersOnly
	}
	if q.Period == "" {
		q.Period = "day"
	}
	if q.Period != "day" && q.Period != "week" && q.Period != "month" {
		return nil, ValidationError("period must be one of day, week, month")
	}
	if q.To.IsZero() {
		q.To = e.now().UTC()
	}
	if q.From.IsZero() {
		q.From = q.To.AddDate(0, 0, -30)
	}
	if q.From.After(q.To) {
		return nil, ValidationError("from must not be after to")
	}
	if !q.To.Before(rangeLimit(q.From, q.Period)) {
		return nil, ValidationError(fmt.Sprintf("range is too long for period %s", q.Period))
	}

	stamps, err := e.store.ListRequestStamps(ctx, p.UserID, q.From, q.To)
	if err != nil {
		return nil, err
	}

	st := &Stats{
		From:     q.From,
		To:       q.To,
		Period:   q.Period,
		ByStatus: emptyStatusMap(),
	}
	index := make(map[time.Time]int)
	for start := bucketStart(q.From, q.Period); !start.After(q.To); start = nextBucket(start, q.Period) {
		index[start] = len(st.Series)
		st.Series = append(st.Series, StatsPoint{
			Label:   bucketLabel(start, q.Period),
			Start:   start,
			Details: emptyStatusMap(),
		})
	}
	for _, s := range stamps {
		st.Total++
		st.ByStatus[s.Status]++
		if i, ok := index[bucketStart(s.CreatedAt, q.Period)]; ok {
			st.Series[i].Total++
			st.Series[i].Details[s.Status]++
		}
	}
	return st, nil
}

// rangeLimit - граница, за которую не может выходить to: не больше 366 дней,
// 260 недель или 120 месяцев от начала первого интервала
func rangeLimit(from time.Time, period string) time.Time {
	start := bucketStart(from, period)
	switch period {
	case "week":
		return start.AddDate(0, 0, 7*260)
	case "month":
		return start.AddDate(0, 120, 0)
	default:
		return start.AddDate(0, 0, 366)
	}
}

func emptyStatusMap() map[models.RequestStatus]int {
	m := make(map[models.RequestStatus]int, 3)
	for _, s := range models.AllStatuses() {
		m[s] = 0
	}
	return m
}

func bucketStart(t time.Time, period string) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch period {
	case "week":
		// неделя начинается с понедельника
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case "month":
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}

func nextBucket(t time.Time, period string) time.Time {
	switch period {
	case "week":
		return t.AddDate(0, 0, 7)
	case "month":
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

func bucketLabel(t time.Time, period string) string {
	switch period {
	case "month":
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}
