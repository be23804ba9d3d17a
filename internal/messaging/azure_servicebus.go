package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/djeeyo/nmreggae/config"
	"github.com/pkg/errors"
)

// Notification types
const (
	TypeEventCreated   = "event.created"
	TypeEventUpdated   = "event.updated"
	TypeEventDeleted   = "event.deleted"
	TypeEventsReplaced = "events.replaced"
)

// Notification describes a change to the event table
type Notification struct {
	Type     string    `json:"type"`
	EventID  string    `json:"event_id,omitempty"`
	Count    *int      `json:"count,omitempty"`
	Previous *int      `json:"previous,omitempty"`
	Time     time.Time `json:"time"`
}

// ServiceBusClient is an interface for Azure Service Bus operations
type ServiceBusClient interface {
	Publish(ctx context.Context, n Notification) error
	Close() error
}

// sender is the subset of *azservicebus.Sender in use
type sender interface {
	SendMessage(ctx context.Context, message *azservicebus.Message, options *azservicebus.SendMessageOptions) error
	Close(ctx context.Context) error
}

// serviceBusClient implements the ServiceBusClient interface
type serviceBusClient struct {
	client *azservicebus.Client
	sender sender
	source string
	now    func() time.Time
}

// NewServiceBusClient creates a new Azure Service Bus client
func NewServiceBusClient(cfg config.AzureConfig, source string) (ServiceBusClient, error) {
	if cfg.QueueConnStr == "" {
		return nil, errors.New("Azure Service Bus connection string is empty")
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	s, err := client.NewSender(cfg.QueueName, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus sender")
	}

	return &serviceBusClient{
		client: client,
		sender: s,
		source: source,
		now:    time.Now,
	}, nil
}

// Publish sends a notification to the queue
func (s *serviceBusClient) Publish(ctx context.Context, n Notification) error {
	if n.Time.IsZero() {
		n.Time = s.now().UTC()
	}

	data, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "failed to marshal message body")
	}

	contentType := "application/json"
	subject := n.Type
	msg := &azservicebus.Message{
		Body:        data,
		ContentType: &contentType,
		Subject:     &subject,
		ApplicationProperties: map[string]interface{}{
			"source": s.source,
			"time":   n.Time.Format(time.RFC3339),
		},
	}

	return errors.Wrap(s.sender.SendMessage(ctx, msg, nil), "failed to send Service Bus message")
}

// Close closes the Service Bus client
func (s *serviceBusClient) Close() error {
	if s.sender != nil {
		if err := s.sender.Close(context.Background()); err != nil {
			return err
		}
	}

	if s.client != nil {
		return s.client.Close(context.Background())
	}

	return nil
}
