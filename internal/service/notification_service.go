package service

import (
	"context"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/events"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Publisher is the part of the Redis client used to broadcast changes.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// BroadcastRecorder counts broadcast outcomes.
type BroadcastRecorder interface {
	RecordBroadcast(ok bool)
}

// NotificationService fans ticket change signals out to subscribers, who
// re-fetch the ticket on receipt.
type NotificationService struct {
	dispatcher events.Dispatcher
	publisher  Publisher
	channel    string
	logger     *zap.Logger
	metrics    BroadcastRecorder
}

// NewNotificationService creates the service. A nil publisher only logs.
func NewNotificationService(dispatcher events.Dispatcher, publisher Publisher, channel string, logger *zap.Logger, metrics BroadcastRecorder) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		publisher:  publisher,
		channel:    channel,
		logger:     logger,
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketChanged, n.broadcast)
	n.dispatcher.Subscribe(events.EventSLABreached, n.broadcast)
}

func (n *NotificationService) broadcast(ctx context.Context, event events.Event) error {
	n.logger.Debug("ticket changed",
		zap.String("type", string(event.Type)),
		zap.Int64("ticket_id", event.TicketID),
		zap.String("operation", event.Operation),
		zap.Int64("version", event.Version))

	if n.publisher == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		n.recordBroadcast(false)
		return err
	}
	if err := n.publisher.Publish(ctx, n.channel, payload).Err(); err != nil {
		n.recordBroadcast(false)
		return err
	}
	n.recordBroadcast(true)
	return nil
}

func (n *NotificationService) recordBroadcast(ok bool) {
	if n.metrics != nil {
		n.metrics.RecordBroadcast(ok)
	}
}
