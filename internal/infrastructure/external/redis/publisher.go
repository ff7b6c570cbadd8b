package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/smbgAlokk/bharatforce/internal/application/port"
	"github.com/smbgAlokk/bharatforce/internal/domain/event"
)

// Config holds Redis connection settings
type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	Channel  string
}

// publishClient is the part of the Redis client the publisher needs
type publishClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// NewClient connects to Redis and checks the connection
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return rdb, nil
}

// Message is the wire form of a published event
type Message struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	TenantID      string    `json:"tenant_id"`
	RecordID      string    `json:"record_id"`
	Workflow      string    `json:"workflow"`
	Action        string    `json:"action,omitempty"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	TrailSeq      int       `json:"trail_seq"`
	ActorID       string    `json:"actor_id"`
	ActorRole     string    `json:"actor_role"`
	SubjectID     string    `json:"subject_id,omitempty"`
	Version       int64     `json:"version,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id"`
}

// EventPublisher publishes domain events on Redis pub/sub, one channel per tenant
type EventPublisher struct {
	client  publishClient
	channel string
	logger  *zap.Logger
}

// NewEventPublisher creates a publisher. Events go to "<channel>:<tenantID>".
func NewEventPublisher(client publishClient, channel string, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

// Publish sends the event to its tenant channel
func (p *EventPublisher) Publish(ctx context.Context, evt *event.Event) error {
	payload, err := json.Marshal(ToMessage(evt))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	channel := p.ChannelFor(evt.TenantID)
	receivers, err := p.client.Publish(ctx, channel, payload).Result()
	if err != nil {
		p.logger.Error("Failed to publish event",
			zap.String("channel", channel),
			zap.String("event_id", evt.ID),
			zap.Error(err))
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("Event published",
		zap.String("channel", channel),
		zap.String("type", evt.Type.String()),
		zap.Int64("receivers", receivers))

	return nil
}

// ChannelFor returns the channel of a tenant
func (p *EventPublisher) ChannelFor(tenantID string) string {
	return p.channel + ":" + tenantID
}

// ToMessage flattens an event for the wire
func ToMessage(evt *event.Event) Message {
	msg := Message{
		ID:            evt.ID,
		Type:          evt.Type.String(),
		TenantID:      evt.TenantID,
		RecordID:      evt.RecordID,
		Workflow:      string(evt.Workflow),
		Action:        string(evt.Action),
		From:          evt.From.String(),
		To:            evt.To.String(),
		TrailSeq:      evt.TrailSeq,
		ActorID:       evt.Actor.UserID,
		ActorRole:     string(evt.Actor.Role),
		Timestamp:     evt.Timestamp,
		CorrelationID: evt.CorrelationID,
	}
	if evt.Record != nil {
		msg.SubjectID = evt.Record.SubjectID
		msg.Version = evt.Record.Version
	}
	return msg
}

// Verify interface compliance
var _ port.EventPublisher = (*EventPublisher)(nil)
