package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sla-engine/internal/events"
	"github.com/spec-kit/ticket-sla-engine/internal/observability"
	"github.com/spec-kit/ticket-sla-engine/internal/persistence"
)

// RelatedEntity points a notification at the record it concerns.
type RelatedEntity struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Notification is the payload handed to delivery sinks. Delivery guarantees
// are the sink's responsibility; callers treat Notify as fire-and-forget.
type Notification struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Message       string        `json:"message"`
	Severity      string        `json:"severity"`
	RelatedEntity RelatedEntity `json:"related_entity"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Notifier accepts notifications from the engine.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Sink delivers a notification over one transport.
type Sink interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// NotificationService fans notifications out to the configured sinks and
// turns sync health events into operator notifications.
type NotificationService struct {
	dispatcher events.Dispatcher
	sinks      []Sink
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics, sinks ...Sink) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		sinks:      sinks,
		logger:     logger,
		metrics:    metrics,
	}
}

// Notify assigns identity to the notification and delivers it to every sink.
// A failing sink is logged and does not block the others.
func (n *NotificationService) Notify(ctx context.Context, notification Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}

	n.metrics.RecordNotification(notification.Severity)
	for _, sink := range n.sinks {
		if err := sink.Send(ctx, notification); err != nil {
			n.logger.Warn("notification sink failed",
				zap.String("sink", sink.Name()),
				zap.String("notification_id", notification.ID),
				zap.Error(err))
		}
	}
	return nil
}

// RegisterHandlers subscribes to domain events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketIngested, n.handleTicketIngested)
	n.dispatcher.Subscribe(events.EventTicketUpdated, n.handleTicketUpdated)
	n.dispatcher.Subscribe(events.EventSyncHealthChanged, n.handleSyncHealthChanged)
}

func (n *NotificationService) handleTicketIngested(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketPayload)
	if !ok || payload.Ticket == nil {
		return nil
	}
	n.logger.Info("new ticket ingested",
		zap.String("external_id", payload.Ticket.ExternalID),
		zap.String("source", payload.Ticket.Source),
		zap.String("priority", payload.Ticket.Priority))
	return nil
}

func (n *NotificationService) handleTicketUpdated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketPayload)
	if !ok || payload.Ticket == nil {
		return nil
	}
	n.logger.Info("ticket updated",
		zap.String("external_id", payload.Ticket.ExternalID),
		zap.String("source", payload.Ticket.Source),
		zap.String("status", payload.Ticket.Status))
	return nil
}

func (n *NotificationService) handleSyncHealthChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SyncHealthPayload)
	if !ok {
		return nil
	}

	notification := Notification{
		Severity:      "critical",
		Title:         "Ticket sync unavailable",
		Message:       payload.LastError,
		RelatedEntity: RelatedEntity{ID: event.Source, Type: "sync_source"},
	}
	if payload.Healthy {
		notification.Severity = "info"
		notification.Title = "Ticket sync recovered"
		notification.Message = "remote source reachable again"
	}
	return n.Notify(ctx, notification)
}

// LogSink writes notifications to the structured log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates the sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(_ context.Context, n Notification) error {
	s.logger.Info("notification",
		zap.String("id", n.ID),
		zap.String("title", n.Title),
		zap.String("severity", n.Severity),
		zap.String("entity_id", n.RelatedEntity.ID),
		zap.String("entity_type", n.RelatedEntity.Type),
		zap.String("message", n.Message))
	return nil
}

// RedisSink broadcasts notifications as JSON on a pub/sub channel for the
// delivery layer to pick up.
type RedisSink struct {
	redis   *persistence.Redis
	channel string
}

// NewRedisSink creates the sink.
func NewRedisSink(redis *persistence.Redis, channel string) *RedisSink {
	return &RedisSink{redis: redis, channel: channel}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Send(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return s.redis.Publish(ctx, s.channel, payload)
}
