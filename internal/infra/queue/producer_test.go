package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/leadpool/internal/usecase"
)

// MockChannel
type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(ctx, exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

func TestPublishLeadAssigned(t *testing.T) {
	prev := int64(11)
	event := usecase.LeadAssignedEvent{
		LeadID:          7,
		OwnerID:         12,
		PreviousOwnerID: &prev,
		AssignedBy:      1,
		RecordID:        100,
		AssignedAt:      time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC),
	}

	var published amqp.Publishing
	ch := new(MockChannel)
	ch.On("PublishWithContext", mock.Anything, ExchangeName, RoutingKey, false, false, mock.AnythingOfType("amqp091.Publishing")).
		Run(func(args mock.Arguments) { published = args.Get(5).(amqp.Publishing) }).
		Return(nil).Once()

	err := NewProducer(ch).PublishLeadAssigned(context.Background(), event)

	require.NoError(t, err)
	ch.AssertExpectations(t)
	assert.Equal(t, "application/json", published.ContentType)
	assert.Equal(t, amqp.Persistent, published.DeliveryMode)
	assert.Equal(t, RoutingKey, published.Type)
	assert.NotEmpty(t, published.MessageId)

	var body map[string]any
	require.NoError(t, json.Unmarshal(published.Body, &body))
	for _, field := range []string{"lead_id", "owner_id", "previous_owner_id", "assigned_by", "record_id", "assigned_at"} {
		assert.Contains(t, body, field)
	}
	assert.EqualValues(t, 12, body["owner_id"])
}

func TestPublishLeadAssigned_UniqueMessageIDs(t *testing.T) {
	var ids []string
	ch := new(MockChannel)
	ch.On("PublishWithContext", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { ids = append(ids, args.Get(5).(amqp.Publishing).MessageId) }).
		Return(nil)

	p := NewProducer(ch)
	require.NoError(t, p.PublishLeadAssigned(context.Background(), usecase.LeadAssignedEvent{LeadID: 1, OwnerID: 2}))
	require.NoError(t, p.PublishLeadAssigned(context.Background(), usecase.LeadAssignedEvent{LeadID: 1, OwnerID: 2}))

	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])
}

func TestPublishLeadAssigned_BrokerError(t *testing.T) {
	ch := new(MockChannel)
	ch.On("PublishWithContext", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(amqp.ErrClosed)

	err := NewProducer(ch).PublishLeadAssigned(context.Background(), usecase.LeadAssignedEvent{LeadID: 7})

	assert.True(t, errors.Is(err, amqp.ErrClosed))
	assert.Contains(t, err.Error(), "publish lead 7 assigned")
}
