package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Emperor1p/nclexkeysinternational/internal/domain"
	apperrors "github.com/Emperor1p/nclexkeysinternational/pkg/errors"
)

const keyPrefix = "enrollment:flow:"

// DefaultFlowTTL is how long an untouched enrollment flow survives. Each
// Save refreshes the TTL, so active prospects never expire mid-flow.
const DefaultFlowTTL = 24 * time.Hour

// FlowRepository implements repository.FlowRepository using Redis. Flow
// state is ephemeral: losing it never loses a payment, because intents
// live in postgres.
type FlowRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewFlowRepository creates a new Redis-backed enrollment flow repository.
func NewFlowRepository(client *redis.Client, ttl time.Duration) *FlowRepository {
	if ttl <= 0 {
		ttl = DefaultFlowTTL
	}
	return &FlowRepository{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves a flow by ID from Redis.
func (r *FlowRepository) Get(ctx context.Context, id string) (*domain.EnrollmentFlow, error) {
	key := keyPrefix + id

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, apperrors.NotFound("enrollment flow", id)
		}
		return nil, fmt.Errorf("redis get flow: %w", err)
	}

	var flow domain.EnrollmentFlow
	if err := json.Unmarshal(data, &flow); err != nil {
		return nil, fmt.Errorf("unmarshal flow: %w", err)
	}

	return &flow, nil
}

// Save persists a flow to Redis with the configured TTL.
func (r *FlowRepository) Save(ctx context.Context, flow *domain.EnrollmentFlow) error {
	key := keyPrefix + flow.ID

	data, err := json.Marshal(flow)
	if err != nil {
		return fmt.Errorf("marshal flow: %w", err)
	}

	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set flow: %w", err)
	}

	return nil
}

// Delete removes a flow from Redis by ID.
func (r *FlowRepository) Delete(ctx context.Context, id string) error {
	key := keyPrefix + id

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del flow: %w", err)
	}

	return nil
}
