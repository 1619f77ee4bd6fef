package rfq

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"metaltrade/internal/auth"
	"metaltrade/internal/events"
	"metaltrade/internal/metrics"
	"metaltrade/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// OfferSubmittedMessage - payload websocket-уведомления покупателя
type OfferSubmittedMessage struct {
	Type          string    `json:"type"`
	RequestID     uuid.UUID `json:"request_id"`
	DisplayNumber int64     `json:"display_id"`
	OfferID       int64     `json:"offer_id"`
	SupplierID    int64     `json:"supplier_id"`
}

// SubmitOffer принимает предложение поставщика по токену из письма.
// Токен гасится, предложение сохраняется и заявка переходит в pending одной операцией хранилища.
func (e *Engine) SubmitOffer(ctx context.Context, requestID uuid.UUID, token string, in SubmitOfferInput) (*models.Offer, error) {
	offer, req, err := e.submitOffer(ctx, requestID, token, in)
	if err != nil {
		code := "internal"
		var appErr *Error
		if errors.As(err, &appErr) {
			code = appErr.Code
		}
		metrics.OffersRejected.WithLabelValues(code).Inc()
		return nil, err
	}

	metrics.OffersSubmitted.Inc()
	e.logger.WithFields(logrus.Fields{
		"request_id":  req.ID,
		"offer_id":    offer.ID,
		"supplier_id": offer.SupplierID,
	}).Info("Offer submitted")

	e.push(string(auth.RoleBuyer), req.BuyerID, OfferSubmittedMessage{
		Type:          events.OfferSubmitted,
		RequestID:     req.ID,
		DisplayNumber: req.DisplayNumber,
		OfferID:       offer.ID,
		SupplierID:    offer.SupplierID,
	})
	offerID, supplierID := offer.ID, offer.SupplierID
	e.publish(ctx, events.Event{
		Type:       events.OfferSubmitted,
		RequestID:  req.ID.String(),
		BuyerID:    req.BuyerID,
		OfferID:    &offerID,
		SupplierID: &supplierID,
	})
	return offer, nil
}

func (e *Engine) submitOffer(ctx context.Context, requestID uuid.UUID, token string, in SubmitOfferInput) (*models.Offer, *models.Request, error) {
	supplierID, err := e.ValidateToken(ctx, token, requestID)
	if err != nil {
		return nil, nil, err
	}

	req, err := e.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	if !models.CanTransition(req.Status, models.StatusPending) {
		return nil, nil, ErrRequestClosed
	}

	exists, err := e.store.SupplierHasOffer(ctx, requestID, supplierID)
	if err != nil {
		return nil, nil, err
	}
	if exists {
		return nil, nil, ErrOfferExists
	}

	offer, err := e.buildOffer(req, supplierID, in)
	if err != nil {
		return nil, nil, err
	}

	tokenValue, _ := uuid.Parse(strings.TrimSpace(token))
	if err := e.store.CreateOffer(ctx, tokenValue, offer); err != nil {
		return nil, nil, err
	}
	return offer, req, nil
}

// buildOffer проверяет ввод и собирает модель предложения
func (e *Engine) buildOffer(req *models.Request, supplierID int64, in SubmitOfferInput) (*models.Offer, error) {
	if err := e.validateStruct(in); err != nil {
		return nil, err
	}
	if in.InvoiceExpiresAt.IsZero() {
		return nil, ValidationError("invoice_expires_at is required")
	}
	if strings.TrimSpace(in.InvoicePath) == "" {
		return nil, ValidationError("invoice file is required")
	}

	itemIDs := req.ItemIDs()
	seen := make(map[int64]bool, len(in.Items))
	offer := &models.Offer{
		RequestID:        req.ID,
		SupplierID:       supplierID,
		Comment:          strings.TrimSpace(in.Comment),
		DeliveryOption:   strings.TrimSpace(in.DeliveryOption),
		VATOption:        strings.TrimSpace(in.VATOption),
		InvoicePath:      in.InvoicePath,
		InvoiceExpiresAt: in.InvoiceExpiresAt,
		ContractPath:     in.ContractPath,
		Items:            make([]models.OfferItem, 0, len(in.Items)),
	}
	for i, it := range in.Items {
		if _, ok := itemIDs[it.RequestItemID]; !ok {
			return nil, ErrForeignItem
		}
		if seen[it.RequestItemID] {
			return nil, ValidationError(fmt.Sprintf("items[%d]: duplicate request_item_id %d", i, it.RequestItemID))
		}
		seen[it.RequestItemID] = true

		if !it.Price.IsPositive() {
			return nil, ValidationError(fmt.Sprintf("items[%d]: price must be positive", i))
		}
		total := it.TotalPrice
		if total.Valid && total.Decimal.IsZero() {
			// нулевая сумма в форме означает "не указана"
			total.Valid = false
		}
		if total.Valid && total.Decimal.IsNegative() {
			return nil, ValidationError(fmt.Sprintf("items[%d]: total_price must not be negative", i))
		}

		oi := models.OfferItem{
			RequestID:     req.ID,
			RequestItemID: it.RequestItemID,
			Price:         it.Price,
			TotalPrice:    total,
			IsAnalogue:    it.IsAnalogue,
		}
		if it.IsAnalogue {
			oi.AnalogName = strings.TrimSpace(it.AnalogName)
			oi.AnalogNote = strings.TrimSpace(it.AnalogNote)
			oi.AnalogQuantity = it.Quantity
		}
		offer.Items = append(offer.Items, oi)
	}
	return offer, nil
}
