package rfq

import (
	"context"
	"errors"

	"metaltrade/internal/auth"
	"metaltrade/internal/documents"
	"metaltrade/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Document struct {
	Kind    documents.Kind `json:"kind"`
	DocPath string         `json:"doc_path"`
	PDFPath *string        `json:"pdf_path"`
}

// GenerateDocument формирует договор, счёт или лист заявки.
// Договор и счёт строятся по выигравшему предложению и требуют контрагента.
func (e *Engine) GenerateDocument(ctx context.Context, p auth.Principal, requestID uuid.UUID, kind documents.Kind) (*Document, error) {
	if e.docs == nil {
		return nil, errors.New("document generator is not configured")
	}
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

	var (
		offer    *models.Offer
		supplier *models.Supplier
		cp       *models.Counterparty
	)
	if kind.NeedsWinner() {
		if req.Status != models.StatusAwarded || req.WinnerOfferID == nil {
			return nil, ErrNotAwarded
		}
		if req.CounterpartyID == nil {
			return nil, ValidationError("request has no counterparty")
		}
		cp, err = e.store.GetCounterparty(ctx, *req.CounterpartyID)
		if err != nil {
			return nil, err
		}
		offer, err = e.store.GetOffer(ctx, req.ID, *req.WinnerOfferID)
		if err != nil {
			return nil, err
		}
		supplier, err = e.store.GetSupplier(ctx, offer.SupplierID)
		if err != nil {
			return nil, err
		}
	}

	data := documents.NewData(req, offer, supplier, cp, e.now())
	docPath, pdfPath, err := e.docs.Generate(kind, data)
	if err != nil {
		if errors.Is(err, documents.ErrIncompleteData) {
			return nil, ValidationError(err.Error())
		}
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"request_id": req.ID,
		"kind":       kind,
		"path":       docPath,
	}).Info("Document generated")
	return &Document{Kind: kind, DocPath: docPath, PDFPath: pdfPath}, nil
}
