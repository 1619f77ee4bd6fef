package db

import (
	"context"
	"time"

	"metaltrade/internal/rfq"
	"metaltrade/models"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

const requestColumns = `id, display_number, buyer_id, counterparty_id, comment, delivery_at,
	delivery_address, status, winner_offer_id, created_at`

// CreateRequest сохраняет заявку и её позиции в одной транзакции
func (s *Storage) CreateRequest(ctx context.Context, req *models.Request) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.Status == "" {
		req.Status = models.StatusCreated
	}

	return s.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
        INSERT INTO requests (id, buyer_id, counterparty_id, comment, delivery_at, delivery_address, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING display_number, created_at`
		err := tx.QueryRowContext(ctx, query,
			req.ID, req.BuyerID, req.CounterpartyID, req.Comment, req.DeliveryAt, req.DeliveryAddress, req.Status,
		).Scan(&req.DisplayNumber, &req.CreatedAt)
		if err != nil {
			if code, _ := pqCode(err); code == codeForeignKeyViolation {
				return rfq.ErrCounterpartyNotFound
			}
			return errors.Wrap(err, "insert request")
		}

		itemQuery := `
        INSERT INTO request_items (request_id, kind, category, quantity, unit, comment,
            stamp, state_standard, size, thickness, length, width, diameter, allow_analogs,
            name, note, dims)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
        RETURNING id`
		for i := range req.Items {
			it := &req.Items[i]
			it.RequestID = req.ID
			err := tx.QueryRowContext(ctx, itemQuery,
				it.RequestID, it.Kind, it.Category, it.Quantity, it.Unit, it.Comment,
				it.Stamp, it.StateStandard, it.Size, it.Thickness, it.Length, it.Width, it.Diameter, it.AllowAnalogs,
				it.Name, it.Note, it.Dims,
			).Scan(&it.ID)
			if err != nil {
				return errors.Wrapf(err, "insert request item %d", i)
			}
		}
		return nil
	})
}

func (s *Storage) GetRequest(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	req := &models.Request{}
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`
	if err := s.db.GetContext(ctx, req, query, id); err != nil {
		if isNoRows(err) {
			return nil, rfq.ErrRequestNotFound
		}
		return nil, errors.Wrap(err, "select request")
	}

	items, err := s.requestItems(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	req.Items = items[id]
	if req.Items == nil {
		req.Items = []models.RequestItem{}
	}
	return req, nil
}

// requestItems загружает позиции нескольких заявок одним запросом
func (s *Storage) requestItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]models.RequestItem, error) {
	out := make(map[uuid.UUID][]models.RequestItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var items []models.RequestItem
	query := `SELECT * FROM request_items WHERE request_id = ANY($1::uuid[]) ORDER BY id`
	if err := s.db.SelectContext(ctx, &items, query, pq.Array(uuidStrings(ids))); err != nil {
		return nil, errors.Wrap(err, "select request items")
	}
	for _, it := range items {
		out[it.RequestID] = append(out[it.RequestID], it)
	}
	return out, nil
}

func (s *Storage) ListBuyerRequests(ctx context.Context, buyerID int64, status models.RequestStatus) ([]models.Request, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "display_number", "buyer_id", "counterparty_id", "comment", "delivery_at",
		"delivery_address", "status", "winner_offer_id", "created_at")
	sb.From("requests")
	where := []string{sb.Equal("buyer_id", buyerID)}
	if status != "" {
		where = append(where, sb.Equal("status", string(status)))
	}
	sb.Where(where...)
	sb.OrderBy("display_number").Desc()

	query, args := sb.Build()
	reqs := []models.Request{}
	if err := s.db.SelectContext(ctx, &reqs, query, args...); err != nil {
		return nil, errors.Wrap(err, "select buyer requests")
	}
	if len(reqs) == 0 {
		return reqs, nil
	}

	ids := make([]uuid.UUID, len(reqs))
	for i := range reqs {
		ids[i] = reqs[i].ID
	}
	items, err := s.requestItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	offers, err := s.offersByRequests(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range reqs {
		reqs[i].Items = items[reqs[i].ID]
		if reqs[i].Items == nil {
			reqs[i].Items = []models.RequestItem{}
		}
		reqs[i].Offers = offers[reqs[i].ID]
		if reqs[i].Offers == nil {
			reqs[i].Offers = []models.Offer{}
		}
	}
	return reqs, nil
}

func (s *Storage) ListRequestStamps(ctx context.Context, buyerID int64, from, to time.Time) ([]models.RequestStamp, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("status", "created_at")
	sb.From("requests")
	sb.Where(
		sb.Equal("buyer_id", buyerID),
		sb.Between("created_at", from, to),
	)
	sb.OrderBy("created_at")

	query, args := sb.Build()
	stamps := []models.RequestStamp{}
	if err := s.db.SelectContext(ctx, &stamps, query, args...); err != nil {
		return nil, errors.Wrap(err, "select request stamps")
	}
	return stamps, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
