package pubsub

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mandi/internal/domain/entity"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLocalPublisherPostsPushMessage(t *testing.T) {
	var received PubSubPushMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	event := entity.NotificationEvent{
		ID:                uuid.New(),
		CounterpartyID:    "vendor-7",
		DisplayName:       "Sharma Fresh Vegetables",
		DistanceAtTrigger: 850,
		Timestamp:         time.Now(),
	}

	publisher := NewLocalHTTPPublisher(server.URL, discardLogger())
	require.NoError(t, publisher.PublishProximityEvent(context.Background(), event))

	assert.Equal(t, event.ID.String(), received.Message.MessageID)
	assert.Equal(t, "vendor-7", received.Message.Attributes["counterparty_id"])

	raw, err := base64.StdEncoding.DecodeString(received.Message.Data)
	require.NoError(t, err)

	var decoded entity.NotificationEvent
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, event.ID, decoded.ID)
	assert.InDelta(t, 850, decoded.DistanceAtTrigger, 0.01)
}

func TestLocalPublisherRejectsWorkerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	publisher := NewLocalHTTPPublisher(server.URL, discardLogger())
	err := publisher.PublishProximityEvent(context.Background(), entity.NotificationEvent{ID: uuid.New()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-success status")
}
