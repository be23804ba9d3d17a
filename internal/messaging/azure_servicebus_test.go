package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/djeeyo/nmreggae/config"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendMessage(ctx context.Context, message *azservicebus.Message, options *azservicebus.SendMessageOptions) error {
	args := m.Called(ctx, message, options)
	return args.Error(0)
}

func (m *mockSender) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestNewServiceBusClientRequiresConnectionString(t *testing.T) {
	_, err := NewServiceBusClient(config.AzureConfig{QueueName: "calendar-events"}, "nmreggae")
	require.Error(t, err)
}

func TestPublish(t *testing.T) {
	sender := new(mockSender)
	fixed := time.Date(2025, time.July, 15, 18, 0, 0, 0, time.UTC)
	client := &serviceBusClient{sender: sender, source: "nmreggae", now: func() time.Time { return fixed }}

	var sent *azservicebus.Message
	sender.On("SendMessage", mock.Anything, mock.AnythingOfType("*azservicebus.Message"), (*azservicebus.SendMessageOptions)(nil)).
		Run(func(args mock.Arguments) { sent = args.Get(1).(*azservicebus.Message) }).
		Return(nil)

	count, previous := 3, 2
	err := client.Publish(context.Background(), Notification{Type: TypeEventsReplaced, Count: &count, Previous: &previous})
	require.NoError(t, err)
	sender.AssertExpectations(t)

	require.NotNil(t, sent)
	assert.Equal(t, TypeEventsReplaced, *sent.Subject)
	assert.Equal(t, "nmreggae", sent.ApplicationProperties["source"])

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(sent.Body, &body))
	assert.Equal(t, "events.replaced", body["type"])
	assert.Equal(t, float64(3), body["count"])
	assert.Equal(t, float64(2), body["previous"])
	assert.Equal(t, "2025-07-15T18:00:00Z", body["time"])
	assert.NotContains(t, body, "event_id")
}

func TestPublishError(t *testing.T) {
	sender := new(mockSender)
	client := &serviceBusClient{sender: sender, source: "nmreggae", now: time.Now}
	sender.On("SendMessage", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("link detached"))

	err := client.Publish(context.Background(), Notification{Type: TypeEventDeleted, EventID: "e1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "link detached")
}

func TestClose(t *testing.T) {
	sender := new(mockSender)
	sender.On("Close", mock.Anything).Return(nil)
	client := &serviceBusClient{sender: sender}

	require.NoError(t, client.Close())
	sender.AssertExpectations(t)
}
