package db

import (
	"context"

	"metaltrade/internal/rfq"
	"metaltrade/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// IssueToken вставляет токен, если у пары (заявка, поставщик) его ещё нет;
// иначе возвращает уже выданный.
func (s *Storage) IssueToken(ctx context.Context, token *models.OfferToken) (bool, error) {
	query := `
        INSERT INTO offer_tokens (token, request_id, supplier_id)
        VALUES ($1, $2, $3)
        ON CONFLICT (request_id, supplier_id) DO NOTHING
        RETURNING id, token, request_id, supplier_id, is_used, created_at`
	err := s.db.GetContext(ctx, token, query, token.Token, token.RequestID, token.SupplierID)
	if err == nil {
		return true, nil
	}
	if code, constraint := pqCode(err); code == codeForeignKeyViolation {
		if constraint == "offer_tokens_request_id_fkey" {
			return false, rfq.ErrRequestNotFound
		}
		return false, rfq.ErrSupplierNotFound
	}
	if !isNoRows(err) {
		return false, errors.Wrap(err, "insert offer token")
	}

	existing := `SELECT * FROM offer_tokens WHERE request_id = $1 AND supplier_id = $2`
	if err := s.db.GetContext(ctx, token, existing, token.RequestID, token.SupplierID); err != nil {
		return false, errors.Wrap(err, "select existing offer token")
	}
	return false, nil
}

func (s *Storage) GetToken(ctx context.Context, value uuid.UUID) (*models.OfferToken, error) {
	tok := &models.OfferToken{}
	if err := s.db.GetContext(ctx, tok, `SELECT * FROM offer_tokens WHERE token = $1`, value); err != nil {
		if isNoRows(err) {
			return nil, rfq.ErrTokenNotFound
		}
		return nil, errors.Wrap(err, "select offer token")
	}
	return tok, nil
}

func (s *Storage) SupplierHasOffer(ctx context.Context, requestID uuid.UUID, supplierID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM offers WHERE request_id = $1 AND supplier_id = $2)`
	if err := s.db.GetContext(ctx, &exists, query, requestID, supplierID); err != nil {
		return false, errors.Wrap(err, "check supplier offer")
	}
	return exists, nil
}

// CreateOffer: строка заявки блокируется, токен гасится условным UPDATE,
// затем вставляются предложение и позиции и заявка переводится в pending.
// Два параллельных вызова с одним токеном не могут оба пройти условный UPDATE.
func (s *Storage) CreateOffer(ctx context.Context, value uuid.UUID, offer *models.Offer) error {
	return s.WithTx(ctx, func(tx *sqlx.Tx) error {
		var status models.RequestStatus
		err := tx.GetContext(ctx, &status, `SELECT status FROM requests WHERE id = $1 FOR UPDATE`, offer.RequestID)
		if err != nil {
			if isNoRows(err) {
				return rfq.ErrRequestNotFound
			}
			return errors.Wrap(err, "lock request")
		}

		consume := `
        UPDATE offer_tokens SET is_used = TRUE
        WHERE token = $1 AND request_id = $2 AND is_used = FALSE
        RETURNING supplier_id`
		err = tx.GetContext(ctx, &offer.SupplierID, consume, value, offer.RequestID)
		if isNoRows(err) {
			return s.tokenFailure(ctx, tx, value, offer.RequestID)
		}
		if err != nil {
			return errors.Wrap(err, "consume offer token")
		}

		if status == models.StatusAwarded {
			return rfq.ErrRequestClosed
		}

		insertOffer := `
        INSERT INTO offers (request_id, supplier_id, comment, delivery_option, vat_option,
            invoice_path, invoice_expires_at, contract_path)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id, created_at`
		err = tx.QueryRowContext(ctx, insertOffer,
			offer.RequestID, offer.SupplierID, offer.Comment, offer.DeliveryOption, offer.VATOption,
			offer.InvoicePath, offer.InvoiceExpiresAt, offer.ContractPath,
		).Scan(&offer.ID, &offer.CreatedAt)
		if err != nil {
			if code, _ := pqCode(err); code == codeUniqueViolation {
				return rfq.ErrOfferExists
			}
			return errors.Wrap(err, "insert offer")
		}

		insertItem := `
        INSERT INTO offer_items (offer_id, request_id, request_item_id, price, total_price,
            is_analogue, analog_name, analog_note, analog_quantity)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id`
		for i := range offer.Items {
			it := &offer.Items[i]
			it.OfferID = offer.ID
			it.RequestID = offer.RequestID
			err := tx.QueryRowContext(ctx, insertItem,
				it.OfferID, it.RequestID, it.RequestItemID, it.Price, it.TotalPrice,
				it.IsAnalogue, it.AnalogName, it.AnalogNote, it.AnalogQuantity,
			).Scan(&it.ID)
			if err != nil {
				switch code, _ := pqCode(err); code {
				case codeForeignKeyViolation:
					return rfq.ErrForeignItem
				case codeCheckViolation:
					return rfq.ValidationError("offer item price must be positive")
				case codeUniqueViolation:
					return rfq.ValidationError("duplicate request item in offer")
				}
				return errors.Wrapf(err, "insert offer item %d", i)
			}
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE requests SET status = $2 WHERE id = $1 AND status <> $3`,
			offer.RequestID, models.StatusPending, models.StatusAwarded)
		if err != nil {
			return errors.Wrap(err, "update request status")
		}
		return nil
	})
}

// tokenFailure различает причины, по которым токен не удалось погасить
func (s *Storage) tokenFailure(ctx context.Context, tx *sqlx.Tx, value, requestID uuid.UUID) error {
	tok := &models.OfferToken{}
	if err := tx.GetContext(ctx, tok, `SELECT * FROM offer_tokens WHERE token = $1`, value); err != nil {
		if isNoRows(err) {
			return rfq.ErrTokenNotFound
		}
		return errors.Wrap(err, "select offer token")
	}
	if tok.RequestID != requestID {
		return rfq.ErrTokenMismatch
	}
	return rfq.ErrTokenUsed
}

func (s *Storage) GetOffer(ctx context.Context, requestID uuid.UUID, offerID int64) (*models.Offer, error) {
	offer := &models.Offer{}
	query := `SELECT * FROM offers WHERE id = $1 AND request_id = $2`
	if err := s.db.GetContext(ctx, offer, query, offerID, requestID); err != nil {
		if isNoRows(err) {
			return nil, rfq.ErrOfferNotFound
		}
		return nil, errors.Wrap(err, "select offer")
	}

	offer.Items = []models.OfferItem{}
	if err := s.db.SelectContext(ctx, &offer.Items, `SELECT * FROM offer_items WHERE offer_id = $1 ORDER BY id`, offerID); err != nil {
		return nil, errors.Wrap(err, "select offer items")
	}
	return offer, nil
}

func (s *Storage) ListRequestOffers(ctx context.Context, requestID uuid.UUID) ([]models.Offer, error) {
	offers, err := s.offersByRequests(ctx, []uuid.UUID{requestID})
	if err != nil {
		return nil, err
	}
	if offers[requestID] == nil {
		return []models.Offer{}, nil
	}
	return offers[requestID], nil
}

// offersByRequests загружает предложения с позициями и поставщиками для набора заявок
func (s *Storage) offersByRequests(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]models.Offer, error) {
	out := make(map[uuid.UUID][]models.Offer, len(ids))
	reqIDs := pq.Array(uuidStrings(ids))

	var offers []models.Offer
	if err := s.db.SelectContext(ctx, &offers, `SELECT * FROM offers WHERE request_id = ANY($1::uuid[]) ORDER BY id`, reqIDs); err != nil {
		return nil, errors.Wrap(err, "select offers")
	}
	if len(offers) == 0 {
		return out, nil
	}

	var items []models.OfferItem
	if err := s.db.SelectContext(ctx, &items, `SELECT * FROM offer_items WHERE request_id = ANY($1::uuid[]) ORDER BY id`, reqIDs); err != nil {
		return nil, errors.Wrap(err, "select offer items")
	}
	byOffer := make(map[int64][]models.OfferItem, len(offers))
	for _, it := range items {
		byOffer[it.OfferID] = append(byOffer[it.OfferID], it)
	}

	supplierIDs := make([]int64, 0, len(offers))
	for _, o := range offers {
		supplierIDs = append(supplierIDs, o.SupplierID)
	}
	var suppliers []models.Supplier
	if err := s.db.SelectContext(ctx, &suppliers, `SELECT * FROM suppliers WHERE id = ANY($1)`, pq.Array(supplierIDs)); err != nil {
		return nil, errors.Wrap(err, "select offer suppliers")
	}
	byID := make(map[int64]*models.Supplier, len(suppliers))
	for i := range suppliers {
		byID[suppliers[i].ID] = &suppliers[i]
	}

	for _, o := range offers {
		o.Items = byOffer[o.ID]
		if o.Items == nil {
			o.Items = []models.OfferItem{}
		}
		o.Supplier = byID[o.SupplierID]
		out[o.RequestID] = append(out[o.RequestID], o)
	}
	return out, nil
}

// AwardOffer фиксирует победителя только если заявка ещё не закрыта
// и предложение принадлежит ей.
func (s *Storage) AwardOffer(ctx context.Context, requestID uuid.UUID, offerID int64) error {
	query := `
        UPDATE requests SET status = $3, winner_offer_id = $2
        WHERE id = $1 AND status <> $3
          AND EXISTS (SELECT 1 FROM offers WHERE id = $2 AND request_id = $1)`
	res, err := s.db.ExecContext(ctx, query, requestID, offerID, models.StatusAwarded)
	if err != nil {
		return errors.Wrap(err, "award offer")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "award offer rows")
	}
	if n == 1 {
		return nil
	}

	// ничего не обновлено: выясняем почему
	req, err := s.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Status == models.StatusAwarded {
		return rfq.ErrAlreadyAwarded
	}
	return rfq.ErrOfferNotFound
}
