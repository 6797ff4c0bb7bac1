package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionCompletedEvent(t *testing.T) {
	end := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	event := NewSessionCompletedEvent("user-1", SessionCompletedEvent{SessionID: 12, ModuleID: 3, Score: 67, EndTime: end})

	_, err := uuid.Parse(event.ID)
	assert.NoError(t, err)
	assert.Equal(t, EventSessionCompleted, event.Type)
	assert.Equal(t, "study-service", event.Source)
	assert.Equal(t, "user-1", event.UserID)
}

func TestNewMessageCarriesMetadata(t *testing.T) {
	event := NewSessionDeletedEvent("user-2", SessionDeletedEvent{SessionID: 5})

	msg, err := newMessage(context.Background(), event)
	require.NoError(t, err)

	assert.Equal(t, event.ID, msg.UUID)
	assert.Equal(t, "session.deleted", msg.Metadata.Get("event_type"))
	assert.Equal(t, "user-2", msg.Metadata.Get("user_id"))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
	assert.Equal(t, "session.deleted", decoded["type"])
	assert.Equal(t, float64(5), decoded["data"].(map[string]interface{})["session_id"])
}

func TestMockEventPublisher(t *testing.T) {
	publisher := NewMockEventPublisher(slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, publisher.Publish(context.Background(), NewSessionDeletedEvent("u", SessionDeletedEvent{SessionID: 1})))
	require.NoError(t, publisher.Publish(context.Background(), NewSessionReconciledEvent("u", SessionReconciledEvent{SessionID: 2})))

	assert.Len(t, publisher.GetPublishedEvents(), 2)
	assert.Len(t, publisher.EventsOfType(EventSessionReconciled), 1)

	publisher.ClearEvents()
	assert.Empty(t, publisher.GetPublishedEvents())
}

func TestMockEventPublisherKeepsRecentEvents(t *testing.T) {
	publisher := NewMockEventPublisher(slog.New(slog.NewTextHandler(io.Discard, nil)))

	for i := 1; i <= mockEventLimit+5; i++ {
		require.NoError(t, publisher.Publish(context.Background(), NewSessionDeletedEvent("u", SessionDeletedEvent{SessionID: uint(i)})))
	}

	published := publisher.GetPublishedEvents()
	require.Len(t, published, mockEventLimit)
	assert.Equal(t, uint(6), published[0].Data.(SessionDeletedEvent).SessionID)
	assert.Equal(t, uint(mockEventLimit+5), published[len(published)-1].Data.(SessionDeletedEvent).SessionID)
}
