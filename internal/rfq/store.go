package rfq

import (
	"context"
	"time"

	"metaltrade/models"

	"github.com/google/uuid"
)

// Store - хранилище движка заявок.
// Методы, меняющие несколько таблиц, обязаны быть атомарными.
type Store interface {
	// CreateRequest сохраняет заявку вместе с позициями, заполняет ID, DisplayNumber, CreatedAt
	CreateRequest(ctx context.Context, req *models.Request) error
	// GetRequest возвращает заявку с позициями или ErrRequestNotFound
	GetRequest(ctx context.Context, id uuid.UUID) (*models.Request, error)
	// ListRequestOffers возвращает предложения заявки с позициями и поставщиками
	ListRequestOffers(ctx context.Context, requestID uuid.UUID) ([]models.Offer, error)
	ListBuyerRequests(ctx context.Context, buyerID int64, status models.RequestStatus) ([]models.Request, error)
	ListRequestStamps(ctx context.Context, buyerID int64, from, to time.Time) ([]models.RequestStamp, error)

	// IssueToken вставляет токен, если для пары (заявка, поставщик) его ещё нет.
	// В token возвращается сохранённая строка; created=false если токен уже был.
	IssueToken(ctx context.Context, token *models.OfferToken) (created bool, err error)
	// GetToken возвращает токен или ErrTokenNotFound
	GetToken(ctx context.Context, value uuid.UUID) (*models.OfferToken, error)
	SupplierHasOffer(ctx context.Context, requestID uuid.UUID, supplierID int64) (bool, error)
	// CreateOffer в одной транзакции гасит токен, сохраняет предложение с позициями
	// и переводит заявку в pending. Ошибка любого шага откатывает всё.
	CreateOffer(ctx context.Context, token uuid.UUID, offer *models.Offer) error
	// GetOffer возвращает предложение только если оно принадлежит заявке
	GetOffer(ctx context.Context, requestID uuid.UUID, offerID int64) (*models.Offer, error)
	// AwardOffer - условное обновление: выигрывает только первый вызов
	AwardOffer(ctx context.Context, requestID uuid.UUID, offerID int64) error

	CreateSupplier(ctx context.Context, s *models.Supplier) error
	GetSupplier(ctx context.Context, id int64) (*models.Supplier, error)
	ListSuppliers(ctx context.Context, buyerID int64, category string) ([]models.Supplier, error)
	UpdateSupplier(ctx context.Context, s *models.Supplier) error
	DeleteSupplier(ctx context.Context, buyerID, id int64) error

	CreateCounterparty(ctx context.Context, c *models.Counterparty) error
	GetCounterparty(ctx context.Context, id int64) (*models.Counterparty, error)
	ListCounterparties(ctx context.Context, buyerID int64) ([]models.Counterparty, error)
	UpdateCounterparty(ctx context.Context, c *models.Counterparty) error
	DeleteCounterparty(ctx context.Context, buyerID, id int64) error
}
