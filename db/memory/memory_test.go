package memory

import (
	"context"
	"testing"

	"metaltrade/internal/rfq"
	"metaltrade/internal/rfq/storetest"
	"metaltrade/models"

	"github.com/stretchr/testify/require"
)

func TestStorage(t *testing.T) {
	storetest.Run(t, func(t *testing.T) rfq.Store { return New() })
}

func TestGetRequestReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	req := &models.Request{BuyerID: 1, Items: []models.RequestItem{{Kind: models.KindGeneric, Name: "Краска"}}}
	require.NoError(t, s.CreateRequest(ctx, req))

	got, err := s.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	got.Status = models.StatusAwarded
	got.Items[0].Name = "Лак"

	again, err := s.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCreated, again.Status)
	require.Equal(t, "Краска", again.Items[0].Name)
}
