// Package memory - хранилище заявок в памяти процесса.
// Используется в тестах и в режиме STORAGE_DRIVER=memory; атомарность та же, что у Postgres.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"metaltrade/internal/rfq"
	"metaltrade/models"

	"github.com/google/uuid"
)

type pairKey struct {
	requestID  uuid.UUID
	supplierID int64
}

type Storage struct {
	mu sync.Mutex

	requests       map[uuid.UUID]*models.Request
	offers         map[int64]*models.Offer
	tokens         map[uuid.UUID]*models.OfferToken
	tokensByPair   map[pairKey]uuid.UUID
	suppliers      map[int64]*models.Supplier
	counterparties map[int64]*models.Counterparty

	displaySeq, itemSeq, offerSeq, offerItemSeq, tokenSeq, supplierSeq, counterpartySeq int64

	now func() time.Time
}

var _ rfq.Store = (*Storage)(nil)

func New() *Storage {
	return &Storage{
		requests:       make(map[uuid.UUID]*models.Request),
		offers:         make(map[int64]*models.Offer),
		tokens:         make(map[uuid.UUID]*models.OfferToken),
		tokensByPair:   make(map[pairKey]uuid.UUID),
		suppliers:      make(map[int64]*models.Supplier),
		counterparties: make(map[int64]*models.Counterparty),
		now:            time.Now,
	}
}

func (s *Storage) CreateRequest(ctx context.Context, req *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.CounterpartyID != nil {
		if _, ok := s.counterparties[*req.CounterpartyID]; !ok {
			return rfq.ErrCounterpartyNotFound
		}
	}
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.Status == "" {
		req.Status = models.StatusCreated
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = s.now().UTC()
	}
	s.displaySeq++
	req.DisplayNumber = s.displaySeq
	for i := range req.Items {
		s.itemSeq++
		req.Items[i].ID = s.itemSeq
		req.Items[i].RequestID = req.ID
	}

	stored := copyRequest(req)
	stored.Offers = nil
	s.requests[req.ID] = stored
	return nil
}

func (s *Storage) GetRequest(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, rfq.ErrRequestNotFound
	}
	return copyRequest(req), nil
}

func (s *Storage) ListRequestOffers(ctx context.Context, requestID uuid.UUID) ([]models.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestOffers(requestID), nil
}

// requestOffers вызывается под s.mu
func (s *Storage) requestOffers(requestID uuid.UUID) []models.Offer {
	out := []models.Offer{}
	for _, o := range s.offers {
		if o.RequestID != requestID {
			continue
		}
		c := copyOffer(o)
		if sup, ok := s.suppliers[o.SupplierID]; ok {
			cs := *sup
			c.Supplier = &cs
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Storage) ListBuyerRequests(ctx context.Context, buyerID int64, status models.RequestStatus) ([]models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Request{}
	for _, r := range s.requests {
		if r.BuyerID != buyerID || (status != "" && r.Status != status) {
			continue
		}
		c := copyRequest(r)
		c.Offers = s.requestOffers(r.ID)
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayNumber > out[j].DisplayNumber })
	return out, nil
}

func (s *Storage) ListRequestStamps(ctx context.Context, buyerID int64, from, to time.Time) ([]models.RequestStamp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.RequestStamp{}
	for _, r := range s.requests {
		if r.BuyerID != buyerID || r.CreatedAt.Before(from) || r.CreatedAt.After(to) {
			continue
		}
		out = append(out, models.RequestStamp{Status: r.Status, CreatedAt: r.CreatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Storage) IssueToken(ctx context.Context, token *models.OfferToken) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[token.RequestID]; !ok {
		return false, rfq.ErrRequestNotFound
	}
	if _, ok := s.suppliers[token.SupplierID]; !ok {
		return false, rfq.ErrSupplierNotFound
	}
	if value, ok := s.tokensByPair[pairKey{token.RequestID, token.SupplierID}]; ok {
		*token = *s.tokens[value]
		return false, nil
	}

	s.tokenSeq++
	token.ID = s.tokenSeq
	token.IsUsed = false
	token.CreatedAt = s.now().UTC()
	stored := *token
	s.tokens[token.Token] = &stored
	s.tokensByPair[pairKey{token.RequestID, token.SupplierID}] = token.Token
	return true, nil
}

func (s *Storage) GetToken(ctx context.Context, value uuid.UUID) (*models.OfferToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.tokens[value]
	if !ok {
		return nil, rfq.ErrTokenNotFound
	}
	c := *tok
	return &c, nil
}

func (s *Storage) SupplierHasOffer(ctx context.Context, requestID uuid.UUID, supplierID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasOffer(requestID, supplierID), nil
}

func (s *Storage) hasOffer(requestID uuid.UUID, supplierID int64) bool {
	for _, o := range s.offers {
		if o.RequestID == requestID && o.SupplierID == supplierID {
			return true
		}
	}
	return false
}

// CreateOffer повторяет все проверки под блокировкой: состояние могло измениться
// после предварительной проверки в движке.
func (s *Storage) CreateOffer(ctx context.Context, value uuid.UUID, offer *models.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.tokens[value]
	if !ok {
		return rfq.ErrTokenNotFound
	}
	if tok.RequestID != offer.RequestID {
		return rfq.ErrTokenMismatch
	}
	if tok.IsUsed {
		return rfq.ErrTokenUsed
	}
	req, ok := s.requests[offer.RequestID]
	if !ok {
		return rfq.ErrRequestNotFound
	}
	if req.Status == models.StatusAwarded {
		return rfq.ErrRequestClosed
	}
	if s.hasOffer(req.ID, tok.SupplierID) {
		return rfq.ErrOfferExists
	}
	itemIDs := req.ItemIDs()
	for _, it := range offer.Items {
		if _, ok := itemIDs[it.RequestItemID]; !ok {
			return rfq.ErrForeignItem
		}
	}

	// дальше ошибок нет: все изменения применяются вместе
	tok.IsUsed = true
	s.offerSeq++
	offer.ID = s.offerSeq
	offer.SupplierID = tok.SupplierID
	offer.CreatedAt = s.now().UTC()
	for i := range offer.Items {
		s.offerItemSeq++
		offer.Items[i].ID = s.offerItemSeq
		offer.Items[i].OfferID = offer.ID
		offer.Items[i].RequestID = req.ID
	}
	stored := copyOffer(offer)
	stored.Supplier = nil
	s.offers[offer.ID] = stored
	req.Status = models.StatusPending
	return nil
}

func (s *Storage) GetOffer(ctx context.Context, requestID uuid.UUID, offerID int64) (*models.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.offers[offerID]
	if !ok || o.RequestID != requestID {
		return nil, rfq.ErrOfferNotFound
	}
	return copyOffer(o), nil
}

func (s *Storage) AwardOffer(ctx context.Context, requestID uuid.UUID, offerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return rfq.ErrRequestNotFound
	}
	if req.Status == models.StatusAwarded {
		return rfq.ErrAlreadyAwarded
	}
	o, ok := s.offers[offerID]
	if !ok || o.RequestID != requestID {
		return rfq.ErrOfferNotFound
	}
	req.Status = models.StatusAwarded
	id := offerID
	req.WinnerOfferID = &id
	return nil
}

func (s *Storage) CreateSupplier(ctx context.Context, sup *models.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.supplierSeq++
	sup.ID = s.supplierSeq
	sup.CreatedAt = s.now().UTC()
	c := *sup
	s.suppliers[sup.ID] = &c
	return nil
}

func (s *Storage) GetSupplier(ctx context.Context, id int64) (*models.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sup, ok := s.suppliers[id]
	if !ok {
		return nil, rfq.ErrSupplierNotFound
	}
	c := *sup
	return &c, nil
}

func (s *Storage) ListSuppliers(ctx context.Context, buyerID int64, category string) ([]models.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Supplier{}
	for _, sup := range s.suppliers {
		if sup.BuyerID != buyerID || (category != "" && sup.Category != category) {
			continue
		}
		out = append(out, *sup)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Storage) UpdateSupplier(ctx context.Context, sup *models.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.suppliers[sup.ID]
	if !ok || current.BuyerID != sup.BuyerID {
		return rfq.ErrSupplierNotFound
	}
	c := *sup
	c.CreatedAt = current.CreatedAt
	s.suppliers[sup.ID] = &c
	return nil
}

func (s *Storage) DeleteSupplier(ctx context.Context, buyerID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sup, ok := s.suppliers[id]
	if !ok || sup.BuyerID != buyerID {
		return rfq.ErrSupplierNotFound
	}
	for key := range s.tokensByPair {
		if key.supplierID == id {
			return rfq.ErrSupplierInUse
		}
	}
	delete(s.suppliers, id)
	return nil
}

func (s *Storage) CreateCounterparty(ctx context.Context, c *models.Counterparty) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counterpartySeq++
	c.ID = s.counterpartySeq
	c.CreatedAt = s.now().UTC()
	stored := *c
	s.counterparties[c.ID] = &stored
	return nil
}

func (s *Storage) GetCounterparty(ctx context.Context, id int64) (*models.Counterparty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counterparties[id]
	if !ok {
		return nil, rfq.ErrCounterpartyNotFound
	}
	out := *c
	return &out, nil
}

func (s *Storage) ListCounterparties(ctx context.Context, buyerID int64) ([]models.Counterparty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Counterparty{}
	for _, c := range s.counterparties {
		if c.BuyerID == buyerID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Storage) UpdateCounterparty(ctx context.Context, c *models.Counterparty) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.counterparties[c.ID]
	if !ok || current.BuyerID != c.BuyerID {
		return rfq.ErrCounterpartyNotFound
	}
	stored := *c
	stored.CreatedAt = current.CreatedAt
	s.counterparties[c.ID] = &stored
	return nil
}

func (s *Storage) DeleteCounterparty(ctx context.Context, buyerID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counterparties[id]
	if !ok || c.BuyerID != buyerID {
		return rfq.ErrCounterpartyNotFound
	}
	for _, r := range s.requests {
		if r.CounterpartyID != nil && *r.CounterpartyID == id {
			return rfq.ErrCounterpartyInUse
		}
	}
	delete(s.counterparties, id)
	return nil
}

func copyRequest(r *models.Request) *models.Request {
	c := *r
	c.Items = append([]models.RequestItem(nil), r.Items...)
	if c.Items == nil {
		c.Items = []models.RequestItem{}
	}
	if r.WinnerOfferID != nil {
		id := *r.WinnerOfferID
		c.WinnerOfferID = &id
	}
	if r.CounterpartyID != nil {
		id := *r.CounterpartyID
		c.CounterpartyID = &id
	}
	c.Offers = nil
	return &c
}

func copyOffer(o *models.Offer) *models.Offer {
	c := *o
	c.Items = append([]models.OfferItem(nil), o.Items...)
	if c.Items == nil {
		c.Items = []models.OfferItem{}
	}
	return &c
}
