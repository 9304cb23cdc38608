package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Event types
const (
	EventUserCreated        = "user.created"
	EventUserDeleted        = "user.deleted"
	EventInvestmentCreated  = "investment.created"
	EventInvestmentSold     = "investment.sold"
	EventInvestmentAccrued  = "investment.accrued"
	EventTransactionCreated = "transaction.created"
)

// Stream names
const (
	UserEventsStream        = "user.events"
	InvestmentEventsStream  = "investment.events"
	TransactionEventsStream = "transaction.events"
)

// Event is the envelope written to a stream.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

type EventPublisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// RedisPublisher appends events to Redis streams.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, stream, eventType string, data any) error {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			"event": eventJSON,
		},
	}

	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// NopPublisher drops every event. Used when Redis is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, any) error { return nil }

// NewRedisClient connects and pings.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// publish is best effort: failures are logged and never fail the caller.
func publish(ctx context.Context, p EventPublisher, stream, eventType string, data any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, stream, eventType, data); err != nil {
		zap.L().Warn("Failed to publish event",
			zap.String("stream", stream),
			zap.String("type", eventType),
			zap.Error(err))
	}
}

type InvestmentEvent struct {
	InvestmentID string `json:"investmentId"`
	UserID       string `json:"userId"`
	PropertyID   string `json:"propertyId"`
	Tokens       int64  `json:"tokens"`
	Amount       string `json:"amount"`
}

type AccrualEvent struct {
	InvestmentID string  `json:"investmentId"`
	Earnings     string  `json:"earnings"`
	ROI          float64 `json:"roi"`
}

type TransactionEvent struct {
	TransactionID string `json:"transactionId"`
	UserID        string `json:"userId"`
	Type          string `json:"type"`
	Amount        string `json:"amount"`
	Status        string `json:"status"`
}

type UserEvent struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}
