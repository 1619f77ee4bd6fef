package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	require.NoError(t, p.Publish(context.Background(), Event{Type: RequestCreated}))
}

func TestEventJSON(t *testing.T) {
	offerID := int64(3)
	ev := Event{
		Type:      OfferSubmitted,
		RequestID: "0b9f3c1e-4c1a-4d8a-9b61-1c2f7d0e5a11",
		BuyerID:   1,
		OfferID:   &offerID,
		Timestamp: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	out, err := json.Marshal(ev)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"event_type": "offer.submitted",
		"request_id": "0b9f3c1e-4c1a-4d8a-9b61-1c2f7d0e5a11",
		"buyer_id": 1,
		"offer_id": 3,
		"timestamp": "2025-01-02T03:04:05Z"
	}`, string(out))
}

func TestKafkaPublisherConfig(t *testing.T) {
	p := NewKafkaPublisher([]string{"localhost:9092"}, "rfq-events")
	defer p.Close()
	require.Equal(t, "rfq-events", p.writer.Topic)
}
