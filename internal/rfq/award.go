package rfq

import (
	"context"

	"metaltrade/internal/auth"
	"metaltrade/internal/events"
	"metaltrade/internal/metrics"
	"metaltrade/internal/notify"
	"metaltrade/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AwardedMessage - payload websocket-уведомления о выборе победителя
type AwardedMessage struct {
	Type          string    `json:"type"`
	RequestID     uuid.UUID `json:"request_id"`
	DisplayNumber int64     `json:"display_id"`
	OfferID       int64     `json:"offer_id"`
}

// Award выбирает победителя. Выигрывает только первый вызов, остальные получают ErrAlreadyAwarded.
// Письма победителю и остальным участникам отправляются независимо и не влияют на результат.
func (e *Engine) Award(ctx context.Context, p auth.Principal, requestID uuid.UUID, offerID int64) (*models.Request, error) {
	if !p.IsBuyer() {
		return nil, ErrBuyersOnly
	}

	req, err := e.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !auth.CanManageRequest(p, req) {
		return nil, ErrForbidden
	}
	if !auth.CanAward(p, req) {
		metrics.Awards.WithLabelValues("conflict").Inc()
		return nil, ErrAlreadyAwarded
	}

	winner, err := e.store.GetOffer(ctx, requestID, offerID)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(req.Status, models.StatusAwarded) {
		metrics.Awards.WithLabelValues("conflict").Inc()
		return nil, ErrAlreadyAwarded
	}

	if err := e.store.AwardOffer(ctx, requestID, offerID); err != nil {
		if KindOf(err) == KindConflict {
			metrics.Awards.WithLabelValues("conflict").Inc()
		}
		return nil, err
	}
	metrics.Awards.WithLabelValues("awarded").Inc()

	req.Status = models.StatusAwarded
	req.WinnerOfferID = &offerID

	offers, err := e.store.ListRequestOffers(ctx, requestID)
	if err != nil {
		// победитель уже зафиксирован; без списка предложений просто не будет писем
		e.logger.WithError(err).WithField("request_id", requestID).Error("Failed to load offers for award notifications")
	} else {
		req.Offers = offers
		e.notifyAward(ctx, req, winner.ID)
	}

	e.logger.WithFields(logrus.Fields{
		"request_id": req.ID,
		"offer_id":   offerID,
		"buyer_id":   p.UserID,
	}).Info("Request awarded")

	e.push(string(auth.RoleBuyer), req.BuyerID, AwardedMessage{
		Type:          events.RequestAwarded,
		RequestID:     req.ID,
		DisplayNumber: req.DisplayNumber,
		OfferID:       offerID,
	})
	supplierID := winner.SupplierID
	e.publish(ctx, events.Event{
		Type:       events.RequestAwarded,
		RequestID:  req.ID.String(),
		BuyerID:    req.BuyerID,
		OfferID:    &offerID,
		SupplierID: &supplierID,
	})
	return req, nil
}

// notifyAward ставит в очередь письмо победителю и письма остальным участникам.
// Ошибка по одному получателю не мешает остальным.
func (e *Engine) notifyAward(ctx context.Context, req *models.Request, winnerID int64) {
	log := e.logger.WithField("request_id", req.ID)
	for i := range req.Offers {
		offer := &req.Offers[i]
		if offer.Supplier == nil || offer.Supplier.Email == "" {
			log.WithField("offer_id", offer.ID).Warn("Offer supplier has no email, skipping award notification")
			continue
		}

		var (
			msg notify.Message
			err error
		)
		if offer.ID == winnerID {
			msg, err = e.renderer.Winner(offer.Supplier.Email, notify.WinnerData{
				Request:  req,
				Supplier: offer.Supplier,
				Total:    offer.Total().StringFixed(2),
				Link:     e.dealLink(req.ID),
			})
		} else {
			msg, err = e.renderer.Loser(offer.Supplier.Email, notify.LoserData{
				Request:  req,
				Supplier: offer.Supplier,
			})
		}
		if err != nil {
			log.WithError(err).WithField("offer_id", offer.ID).Error("Failed to render award email")
			continue
		}
		e.mailer.Enqueue(ctx, msg)
	}
}
