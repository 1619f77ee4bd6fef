// Package storetest - общий набор проверок для реализаций rfq.Store.
// Одни и те же сценарии гоняются на хранилище в памяти и на Postgres.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"metaltrade/internal/rfq"
	"metaltrade/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// Run запускает все сценарии; newStore должен возвращать пустое хранилище
func Run(t *testing.T, newStore func(t *testing.T) rfq.Store) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s rfq.Store)
	}{
		{"RequestRoundTrip", testRequestRoundTrip},
		{"ListBuyerRequests", testListBuyerRequests},
		{"IssueToken", testIssueToken},
		{"CreateOffer", testCreateOffer},
		{"CreateOfferRejections", testCreateOfferRejections},
		{"CreateOfferConcurrent", testCreateOfferConcurrent},
		{"AwardOffer", testAwardOffer},
		{"Suppliers", testSuppliers},
		{"Counterparties", testCounterparties},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func newRequest(buyerID int64) *models.Request {
	thickness := 8.0
	return &models.Request{
		BuyerID:         buyerID,
		Comment:         "Срочно",
		DeliveryAddress: "Магнитогорск",
		Status:          models.StatusCreated,
		Items: []models.RequestItem{
			{Kind: models.KindMetal, Category: "Лист", Stamp: "09Г2С", Thickness: &thickness, Quantity: 4, Unit: "т", AllowAnalogs: true},
			{Kind: models.KindGeneric, Name: "Сетка сварная", Quantity: 20, Unit: "м2"},
		},
	}
}

func createRequest(t *testing.T, s rfq.Store, buyerID int64) *models.Request {
	t.Helper()
	req := newRequest(buyerID)
	require.NoError(t, s.CreateRequest(context.Background(), req))
	return req
}

func createSupplier(t *testing.T, s rfq.Store, buyerID int64, email string) *models.Supplier {
	t.Helper()
	sup := &models.Supplier{BuyerID: buyerID, ShortName: "Поставщик", INN: "6600000000", Email: email, Category: "Лист"}
	require.NoError(t, s.CreateSupplier(context.Background(), sup))
	return sup
}

func issueToken(t *testing.T, s rfq.Store, req *models.Request, sup *models.Supplier) *models.OfferToken {
	t.Helper()
	tok := &models.OfferToken{Token: uuid.New(), RequestID: req.ID, SupplierID: sup.ID}
	created, err := s.IssueToken(context.Background(), tok)
	require.NoError(t, err)
	require.True(t, created)
	return tok
}

func newOffer(req *models.Request, itemIDs ...int64) *models.Offer {
	o := &models.Offer{
		RequestID:        req.ID,
		DeliveryOption:   "delivery",
		VATOption:        "with_vat",
		InvoicePath:      "uploads/invoice/a.pdf",
		InvoiceExpiresAt: models.NewDate(2030, time.June, 1),
	}
	for _, id := range itemIDs {
		o.Items = append(o.Items, models.OfferItem{
			RequestID:     req.ID,
			RequestItemID: id,
			Price:         decimal.RequireFromString("1250.50"),
		})
	}
	return o
}

func testRequestRoundTrip(t *testing.T, s rfq.Store) {
	ctx := context.Background()
	req := createRequest(t, s, 1)
	require.NotEqual(t, uuid.Nil, req.ID)
	require.NotZero(t, req.DisplayNumber)
	require.False(t, req.CreatedAt.IsZero())
	require.NotZero(t, req.Items[0].ID)

	next := createRequest(t, s, 1)
	require.Greater(t, next.DisplayNumber, req.DisplayNumber)

	got, err := s.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, req.BuyerID, got.BuyerID)
	require.Equal(t, models.StatusCreated, got.Status)
	require.Nil(t, got.WinnerOfferID)
	require.Len(t, got.Items, 2)
	require.Equal(t, "09Г2С", got.Items[0].Stamp)
	require.Equal(t, 8.0, *got.Items[0].Thickness)
	require.True(t, got.Items[0].AllowAnalogs)
	require.Equal(t, "Сетка сварная", got.Items[1].Name)

	_, err = s.GetRequest(ctx, uuid.New())
	require.ErrorIs(t, err, rfq.ErrRequestNotFound)

	missing := int64(987654)
	bad := newRequest(1)
	bad.CounterpartyID = &missing
	require.ErrorIs(t, s.CreateRequest(ctx, bad), rfq.ErrCounterpartyNotFound)
}

func testListBuyerRequests(t *testing.T, s rfq.Store) {
	ctx := context.Background()
	first := createRequest(t, s, 1)
	second := createRequest(t, s, 1)
	createRequest(t, s, 2)

	sup := createSupplier(t, s, 1, "a@stal.test")
	tok := issueToken(t, s, first, sup)
	require.NoError(t, s.CreateOffer(ctx, tok.Token, newOffer(first, first.Items[0].ID)))

	list, err := s.ListBuyerRequests(ctx, 1, "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, second.ID, list[0].ID)
	require.Len(t, list[1].Items, 2)
	require.Len(t, list[1].Offers, 1)

	pending, err := s.ListBuyerRequests(ctx, 1, models.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, first.ID, pending[0].ID)

	stamps, err := s.ListRequestStamps(ctx, 1, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, stamps, 2)

	stamps, err = s.ListRequestStamps(ctx, 1, time.Now().Add(time.Hour), time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	require.Empty(t, stamps)
}

func testIssueToken(t *testing.T, s rfq.Store) {
	ctx := context.Background()
	req := createRequest(t, s, 1)
	sup := createSupplier(t, s, 1, "a@stal.test")
	first := issueToken(t, s, req, sup)

	again := &models.OfferToken{Token: uuid.New(), RequestID: req.ID, SupplierID: sup.ID}
	created, err := s.IssueToken(ctx, again)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.Token, again.Token)

	got, err := s.GetToken(ctx, first.Token)
	require.NoError(t, err)
	require.Equal(t, sup.ID, got.SupplierID)
	require.False(t, got.IsUsed)

	_, err = s.GetToken(ctx, uuid.New())
	require.ErrorIs(t, err, rfq.ErrTokenNotFound)

	_, err = s.IssueToken(ctx, &models.OfferToken{Token: uuid.New(), RequestID: uuid.New(), SupplierID: sup.ID})
	require.ErrorIs(t, err, rfq.ErrRequestNotFound)
	_, err = s.IssueToken(ctx, &models.OfferToken{Token: uuid.New(), RequestID: req.ID, SupplierID: 987654})
	require.ErrorIs(t, err, rfq.ErrSupplierNotFound)
}

func testCreateOffer(t *testing.T, s rfq.Store) {
	ctx := context.Background()
	req := createRequest(t, s, 1)
	sup := createSupplier(t, s, 1, "a@stal.test")
	tok := issueToken(t, s, req, sup)

	offer := newOffer(req, req.Items[0].ID, req.Items[1].ID)
	offer.Items[1].IsAnalogue = true
	offer.Items[1].AnalogName = "Сетка кладочная"
	offer.Items[1].TotalPrice = decimal.NewNullDecimal(decimal.RequireFromString("25010.00"))
	require.NoError(t, s.CreateOffer(ctx, tok.Token, offer))
	require.NotZero(t, offer.ID)
	require.Equal(t, sup.ID, offer.SupplierID)

	used, err := s.GetToken(ctx, tok.Token)
	require.NoError(t, err)
	require.True(t, used.IsUsed)

	got, err := s.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, got.Status)

	has, err := s.SupplierHasOffer(ctx, req.ID, sup.ID)
	require.NoError(t, err)
	require.True(t, has)

	stored, err := s.GetOffer(ctx, req.ID, offer.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	require.True(t, stored.Items[0].Price.Equal(decimal.RequireFromString("1250.50")))
	require.False(t, stored.Items[0].TotalPrice.Valid)
	require.Equal(t, "Сетка кладочная", stored.Items[1].AnalogName)
	require.True(t, stored.Items[1].TotalPrice.Decimal.Equal(decimal.RequireFromString("25010")))
	require.Equal(t, "2030-06-01", stored.InvoiceExpiresAt.String())

	offers, err := s.ListRequestOffers(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	require.NotNil(t, offers[0].Supplier)
	require.Equal(t, "a@stal.test", offers[0].Supplier.Email)

	other := createRequest(t, s, 1)
	_, err = s.GetOffer(ctx, other.ID, offer.ID)
	require.ErrorIs(t, err, rfq.ErrOfferNotFound)
}

func testCreateOfferRejections(t *testing.T, s rfq.Store) {
	ctx := context.Background()
	req := createRequest(t, s, 1)
	other := createRequest(t, s, 1)
	sup := createSupplier(t, s, 1, "a@stal.test")
	tok := issueToken(t, s, req, sup)

	require.ErrorIs(t, s.CreateOffer(ctx, uuid.New(), newOffer(req, req.Items[0].ID)), rfq.ErrTokenNotFound)
	require.ErrorIs(t, s.CreateOffer(ctx, tok.Token, newOffer(other, other.Items[0].ID)), rfq.ErrTokenMismatch)

	// позиция чужой заявки: ничего не меняется, токен остаётся действительным
	err := s.CreateOffer(ctx, tok.Token, newOffer(req, req.Items[0].ID, other.Items[0].ID))
	require.ErrorIs(t, err, rfq.ErrForeignItem)

	got, err := s.GetToken(ctx, tok.Token)
	require.NoError(t, err)
	require.False(t, got.IsUsed)
	state, err := s.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCreated, state.Status)
	offers, err := s.ListRequestOffers(ctx, req.ID)
	require.NoError(t, err)
	require.Empty(t, offers)

	require.NoError(t, s.CreateOffer(ctx, tok.Token, newOffer(req, req.Items[0].ID)))
	require.ErrorIs(t, s.CreateOffer(ctx, tok.Token, newOffer(req, req.Items[0].ID)), rfq.ErrTokenUsed)
}

func testCreateOfferConcurrent(t *testing.T, s rfq.Store) {
	ctx := context.Background()
	req := createRequest(t, s, 1)
	sup := createSupplier(t, s, 1, "a@stal.test")
	tok := issueToken(t, s, req, sup)

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.CreateOffer(ctx, tok.Token, newOffer(req, req.Items[0].ID))
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, rfq.ErrTokenUsed)
	}
	require.Equal(t, 1, succeeded)

	offers, err := s.ListRequestOffers(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, offers, 1)
}

func testAwardOffer(t *testing.T, s rfq.Store) {
	ctx := context.Background()
	req := createRequest(t, s, 1)
	other := createRequest(t, s, 1)
	a := createSupplier(t, s, 1, "a@stal.test")
	b := createSupplier(t, s, 1, "b@stal.test")
	c := createSupplier(t, s, 1, "c@stal.test")

	offerA := newOffer(req, req.Items[0].ID)
	require.NoError(t, s.CreateOffer(ctx, issueToken(t, s, req, a).Token, offerA))
	offerB := newOffer(req, req.Items[0].ID)
	require.NoError(t, s.CreateOffer(ctx, issueToken(t, s, req, b).Token, offerB))
	foreign := newOffer(other, other.Items[0].ID)
	require.NoError(t, s.CreateOffer(ctx, issueToken(t, s, other, a).Token, foreign))

	require.ErrorIs(t, s.AwardOffer(ctx, req.ID, foreign.ID), rfq.ErrOfferNotFound)
	require.ErrorIs(t, s.AwardOffer(ctx, uuid.New(), offerA.ID), rfq.ErrRequestNotFound)

	require.NoError(t, s.AwardOffer(ctx, req.ID, offerA.ID))
	require.ErrorIs(t, s.AwardOffer(ctx, req.ID, offerB.ID), rfq.ErrAlreadyAwarded)

	got, err := s.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusAwarded, got.Status)
	require.Equal(t, offerA.ID, *got.WinnerOfferID)

	// после выбора победителя заявка закрыта для новых предложений
	late := issueToken(t, s, req, c)
	require.ErrorIs(t, s.CreateOffer(ctx, late.Token, newOffer(req, req.Items[0].ID)), rfq.ErrRequestClosed)
	got, err = s.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusAwarded, got.Status)
}

func testSuppliers(t *testing.T, s rfq.Store) {
	ctx := context.Background()
	sup := createSupplier(t, s, 1, "a@stal.test")
	require.NotZero(t, sup.ID)
	pipe := &models.Supplier{BuyerID: 1, ShortName: "Трубник", INN: "6600000001", Email: "t@truba.test", Category: "Труба"}
	require.NoError(t, s.CreateSupplier(ctx, pipe))
	createSupplier(t, s, 2, "x@stal.test")

	list, err := s.ListSuppliers(ctx, 1, "")
	require.NoError(t, err)
	require.Len(t, list, 2)

	list, err = s.ListSuppliers(ctx, 1, "Труба")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, pipe.ID, list[0].ID)

	sup.ShortName = "Поставщик 2"
	require.NoError(t, s.UpdateSupplier(ctx, sup))
	got, err := s.GetSupplier(ctx, sup.ID)
	require.NoError(t, err)
	require.Equal(t, "Поставщик 2", got.ShortName)
	require.Equal(t, int64(1), got.BuyerID)

	foreign := *sup
	foreign.BuyerID = 2
	require.ErrorIs(t, s.UpdateSupplier(ctx, &foreign), rfq.ErrSupplierNotFound)
	require.ErrorIs(t, s.DeleteSupplier(ctx, 2, sup.ID), rfq.ErrSupplierNotFound)

	req := createRequest(t, s, 1)
	issueToken(t, s, req, sup)
	require.ErrorIs(t, s.DeleteSupplier(ctx, 1, sup.ID), rfq.ErrSupplierInUse)

	require.NoError(t, s.DeleteSupplier(ctx, 1, pipe.ID))
	_, err = s.GetSupplier(ctx, pipe.ID)
	require.ErrorIs(t, err, rfq.ErrSupplierNotFound)
}

func testCounterparties(t *testing.T, s rfq.Store) {
	ctx := context.Background()
	cp := &models.Counterparty{
		BuyerID:      1,
		ShortName:    "ООО Покупатель",
		LegalAddress: "Екатеринбург",
		INN:          "6671000000",
		Director:     "Петров П.П.",
		Phone:        "+7 343 000-00-00",
		Email:        "buh@pokupatel.test",
	}
	require.NoError(t, s.CreateCounterparty(ctx, cp))
	require.NotZero(t, cp.ID)

	list, err := s.ListCounterparties(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	list, err = s.ListCounterparties(ctx, 2)
	require.NoError(t, err)
	require.Empty(t, list)

	cp.BankName = "Уральский банк"
	require.NoError(t, s.UpdateCounterparty(ctx, cp))
	got, err := s.GetCounterparty(ctx, cp.ID)
	require.NoError(t, err)
	require.Equal(t, "Уральский банк", got.BankName)

	req := newRequest(1)
	req.CounterpartyID = &cp.ID
	require.NoError(t, s.CreateRequest(ctx, req))
	require.ErrorIs(t, s.DeleteCounterparty(ctx, 1, cp.ID), rfq.ErrCounterpartyInUse)

	free := &models.Counterparty{BuyerID: 1, ShortName: "ИП Сидоров", LegalAddress: "Тюмень", INN: "720000000000", Director: "Сидоров", Phone: "1", Email: "s@s.test"}
	require.NoError(t, s.CreateCounterparty(ctx, free))
	require.ErrorIs(t, s.DeleteCounterparty(ctx, 2, free.ID), rfq.ErrCounterpartyNotFound)
	require.NoError(t, s.DeleteCounterparty(ctx, 1, free.ID))
	_, err = s.GetCounterparty(ctx, free.ID)
	require.ErrorIs(t, err, rfq.ErrCounterpartyNotFound)
}
