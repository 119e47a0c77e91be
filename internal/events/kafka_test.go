package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	skafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingWriter struct {
	messages []skafka.Message
	writeErr error
	closed   bool
}

func (w *capturingWriter) WriteMessages(_ context.Context, msgs ...skafka.Message) error {
	if w.writeErr != nil {
		return w.writeErr
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *capturingWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublish_KeyedByEventType(t *testing.T) {
	writer := &capturingWriter{}
	publisher := NewKafkaPublisherWithWriter(writer)

	event := Event{
		Type:       TypeInvitationIssued,
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		UserID:     "u-1",
		Email:      "friend@example.com",
	}
	require.NoError(t, publisher.Publish(context.Background(), event))

	require.Len(t, writer.messages, 1)
	assert.Equal(t, []byte(TypeInvitationIssued), writer.messages[0].Key)

	var decoded Event
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &decoded))
	assert.Equal(t, event.UserID, decoded.UserID)
	assert.Equal(t, event.Email, decoded.Email)
	assert.True(t, event.OccurredAt.Equal(decoded.OccurredAt))
}

func TestKafkaPublish_WriteFailure(t *testing.T) {
	writer := &capturingWriter{writeErr: errors.New("broker down")}
	publisher := NewKafkaPublisherWithWriter(writer)

	err := publisher.Publish(context.Background(), Event{Type: TypeQuotaGranted})
	require.Error(t, err)
}

func TestKafkaClose(t *testing.T) {
	writer := &capturingWriter{}
	publisher := NewKafkaPublisherWithWriter(writer)

	require.NoError(t, publisher.Close())
	assert.True(t, writer.closed)
}
