package handlers

import (
	"context"
	"io"

	"metaltrade/internal/auth"
	"metaltrade/internal/documents"
	"metaltrade/internal/rfq"
	"metaltrade/models"

	"github.com/google/uuid"
)

// Service - операции движка заявок, которые нужны HTTP-слою
type Service interface {
	CreateRequest(ctx context.Context, p auth.Principal, in rfq.CreateRequestInput) (*models.Request, error)
	GetRequest(ctx context.Context, p auth.Principal, id uuid.UUID) (*models.Request, error)
	GetRequestByToken(ctx context.Context, id uuid.UUID, token string) (*models.Request, error)
	ListMyRequests(ctx context.Context, p auth.Principal, filter rfq.ListFilter) ([]models.Request, error)
	Stats(ctx context.Context, p auth.Principal, q rfq.StatsQuery) (*rfq.Stats, error)

	SendToSuppliers(ctx context.Context, p auth.Principal, requestID uuid.UUID, in rfq.SendInput) (*rfq.SendResult, error)
	ValidateToken(ctx context.Context, token string, requestID uuid.UUID) (int64, error)
	SubmitOffer(ctx context.Context, requestID uuid.UUID, token string, in rfq.SubmitOfferInput) (*models.Offer, error)
	Award(ctx context.Context, p auth.Principal, requestID uuid.UUID, offerID int64) (*models.Request, error)
	GenerateDocument(ctx context.Context, p auth.Principal, requestID uuid.UUID, kind documents.Kind) (*rfq.Document, error)

	CreateSupplier(ctx context.Context, p auth.Principal, in rfq.SupplierInput) (*models.Supplier, error)
	ListSuppliers(ctx context.Context, p auth.Principal, category string) ([]models.Supplier, error)
	UpdateSupplier(ctx context.Context, p auth.Principal, id int64, in rfq.SupplierInput) (*models.Supplier, error)
	DeleteSupplier(ctx context.Context, p auth.Principal, id int64) error

	CreateCounterparty(ctx context.Context, p auth.Principal, in rfq.CounterpartyInput) (*models.Counterparty, error)
	ListCounterparties(ctx context.Context, p auth.Principal) ([]models.Counterparty, error)
	GetCounterparty(ctx context.Context, p auth.Principal, id int64) (*models.Counterparty, error)
	UpdateCounterparty(ctx context.Context, p auth.Principal, id int64, in rfq.CounterpartyInput) (*models.Counterparty, error)
	DeleteCounterparty(ctx context.Context, p auth.Principal, id int64) error
	CounterpartyHasBankDetails(ctx context.Context, p auth.Principal, id int64) (bool, error)
}

// FileStore - хранилище вложений поставщика
type FileStore interface {
	Save(kind, filename string, r io.Reader) (string, error)
	Remove(path string) error
}

var _ Service = (*rfq.Engine)(nil)
