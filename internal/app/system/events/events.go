// Package events publishes best-effort notifications about catalog changes
// on Redis pub/sub. Consumers (notification delivery, search indexers) live
// in other services; a failed publish never fails the request.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Event names. The Redis channel is "<prefix>.<name>".
const (
	OpportunityCreated = "opportunity.created"
	OpportunityUpdated = "opportunity.updated"
	OpportunityStatus  = "opportunity.status"
	OpportunityDeleted = "opportunity.deleted"
	OpportunitySaved   = "opportunity.saved"
	OpportunityUnsaved = "opportunity.unsaved"
)

// Event is the JSON payload published on a channel.
type Event struct {
	Type          string    `json:"type"`
	OpportunityID string    `json:"opportunityId"`
	UserID        string    `json:"userId,omitempty"`
	IsActive      *bool     `json:"isActive,omitempty"`
	At            time.Time `json:"at"`
}

// Publisher sends events. Implementations log failures instead of
// returning them.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

// Redis publishes events with PUBLISH.
type Redis struct {
	rdb    *redis.Client
	prefix string
	log    *zap.Logger
}

// Connect parses addr as a redis:// URL, or as host:port when it has no
// scheme, and pings the server.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		opts = &redis.Options{Addr: addr}
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// NewRedis returns a publisher on rdb using channels under prefix.
func NewRedis(rdb *redis.Client, prefix string, logger *zap.Logger) *Redis {
	return &Redis{rdb: rdb, prefix: prefix, log: logger}
}

// Channel is the Redis channel for event type t.
func (p *Redis) Channel(t string) string {
	if p.prefix == "" {
		return t
	}
	return p.prefix + "." + t
}

func (p *Redis) Publish(ctx context.Context, e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		p.log.Warn("event encode failed", zap.String("type", e.Type), zap.Error(err))
		return
	}
	if err := p.rdb.Publish(ctx, p.Channel(e.Type), payload).Err(); err != nil {
		p.log.Warn("event publish failed",
			zap.String("type", e.Type),
			zap.String("opportunity_id", e.OpportunityID),
			zap.Error(err))
	}
}
