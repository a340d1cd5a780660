package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/earlyreg-backend/internal/config"
	"github.com/stemsi/earlyreg-backend/internal/model"
)

// Subscription is a live feed of enrollment event payloads.
// *redis.PubSub satisfies it.
type Subscription interface {
	Channel(opts ...redis.ChannelOption) <-chan *redis.Message
	Close() error
}

// EventRepository fans enrollment events out over Redis Pub/Sub.
type EventRepository struct {
	rdb *redis.Client
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(rdb *redis.Client) *EventRepository {
	return &EventRepository{rdb: rdb}
}

// Publish sends an enrollment event to every subscriber.
func (r *EventRepository) Publish(ctx context.Context, evt model.EnrollmentEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return r.rdb.Publish(ctx, config.CacheKey.EnrollmentChannel(), payload).Err()
}

// Subscribe attaches to the enrollment channel. Callers must Close the subscription.
func (r *EventRepository) Subscribe(ctx context.Context) Subscription {
	return r.rdb.Subscribe(ctx, config.CacheKey.EnrollmentChannel())
}
