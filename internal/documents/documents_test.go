package documents

import (
	"os"
	"testing"
	"time"

	"metaltrade/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testData() (*models.Request, *models.Offer) {
	qty := 2.5
	req := &models.Request{
		ID:            uuid.New(),
		DisplayNumber: 12,
		CreatedAt:     time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC),
		Items: []models.RequestItem{
			{ID: 1, Kind: models.KindMetal, Category: "Лист", Stamp: "Ст3", Quantity: 2, Unit: "т"},
			{ID: 2, Kind: models.KindGeneric, Name: "Грунт ГФ-021", Quantity: 10, Unit: "кг"},
		},
	}
	offer := &models.Offer{
		ID: 5,
		Items: []models.OfferItem{
			{RequestItemID: 1, Price: decimal.RequireFromString("70000")},
			{RequestItemID: 2, Price: decimal.RequireFromString("300"), IsAnalogue: true, AnalogName: "Грунт ХС-010", AnalogQuantity: &qty,
				TotalPrice: decimal.NewNullDecimal(decimal.RequireFromString("750"))},
		},
	}
	return req, offer
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("invoice")
	require.NoError(t, err)
	require.True(t, k.NeedsWinner())

	k, err = ParseKind("rfq")
	require.NoError(t, err)
	require.False(t, k.NeedsWinner())

	_, err = ParseKind("act")
	require.Error(t, err)
}

func TestNewData(t *testing.T) {
	req, offer := testData()
	d := NewData(req, offer, &models.Supplier{}, &models.Counterparty{}, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	require.Equal(t, "01.06.2025", d.Date)
	require.Len(t, d.Lines, 2)
	require.Equal(t, "Лист Ст3", d.Lines[0].Title)
	require.Equal(t, "140000.00", d.Lines[0].Total)
	require.Equal(t, "Грунт ХС-010", d.Lines[1].Title)
	require.Equal(t, 2.5, d.Lines[1].Quantity)
	require.Equal(t, "750.00", d.Lines[1].Total)
	// итог считается по правилу предложения: сумма позиции или цена за единицу
	require.Equal(t, "70750.00", d.Total)
}

func TestGenerate(t *testing.T) {
	g, err := NewGenerator(t.TempDir())
	require.NoError(t, err)
	req, offer := testData()
	supplier := &models.Supplier{ShortName: "ООО Сталь", INN: "6600000000"}
	cp := &models.Counterparty{ShortName: "ООО Покупатель", INN: "6671000000", BankName: "Уральский банк"}

	for _, kind := range []Kind{KindRFQ, KindContract, KindInvoice} {
		t.Run(string(kind), func(t *testing.T) {
			path, pdf, err := g.Generate(kind, NewData(req, offer, supplier, cp, time.Now()))
			require.NoError(t, err)
			require.Nil(t, pdf)

			content, err := os.ReadFile(path)
			require.NoError(t, err)
			require.Contains(t, string(content), "12")
		})
	}

	_, _, err = g.Generate(KindContract, NewData(req, nil, nil, nil, time.Now()))
	require.ErrorIs(t, err, ErrIncompleteData)
	_, _, err = g.Generate(KindRFQ, Data{})
	require.ErrorIs(t, err, ErrIncompleteData)
}

func TestGenerateSameSecondKeepsBoth(t *testing.T) {
	g, err := NewGenerator(t.TempDir())
	require.NoError(t, err)
	fixed := time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return fixed }

	req, offer := testData()
	supplier := &models.Supplier{ShortName: "ООО Сталь", INN: "6600000000"}
	cp := &models.Counterparty{ShortName: "ООО Покупатель", INN: "6671000000"}

	first, _, err := g.Generate(KindInvoice, NewData(req, offer, supplier, cp, fixed))
	require.NoError(t, err)
	second, _, err := g.Generate(KindInvoice, NewData(req, offer, supplier, cp, fixed))
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	for _, path := range []string{first, second} {
		_, err := os.Stat(path)
		require.NoError(t, err)
	}
}
