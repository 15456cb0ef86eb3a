package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/deepaktammali/litellm/internal/store"
)

// CustomerCache is a read-through cache for customer records, keyed by
// user id. A nil client disables every operation, so callers never need to
// branch on whether Redis is configured.
type CustomerCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCustomerCache(client *redis.Client, ttl time.Duration) *CustomerCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CustomerCache{client: client, ttl: ttl}
}

// Enabled reports whether a Redis client backs the cache.
func (c *CustomerCache) Enabled() bool {
	return c != nil && c.client != nil
}

type cachedCustomer struct {
	UserID    string     `json:"user_id"`
	Alias     *string    `json:"alias"`
	Blocked   bool       `json:"blocked"`
	BudgetID  *uuid.UUID `json:"budget_id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (c *CustomerCache) Get(ctx context.Context, userID string) (store.Customer, bool) {
	if c == nil || c.client == nil || userID == "" {
		return store.Customer{}, false
	}
	data, err := c.client.Get(ctx, c.prefixed(userID)).Bytes()
	if err != nil {
		return store.Customer{}, false
	}
	var cached cachedCustomer
	if err := json.Unmarshal(data, &cached); err != nil {
		return store.Customer{}, false
	}
	return store.Customer(cached), true
}

func (c *CustomerCache) Set(ctx context.Context, customer store.Customer) {
	if c == nil || c.client == nil || customer.UserID == "" {
		return
	}
	data, err := json.Marshal(cachedCustomer(customer))
	if err != nil {
		return
	}
	c.client.Set(ctx, c.prefixed(customer.UserID), data, c.ttl)
}

// Invalidate drops cached entries after a mutation.
func (c *CustomerCache) Invalidate(ctx context.Context, userIDs ...string) {
	if c == nil || c.client == nil || len(userIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if id != "" {
			keys = append(keys, c.prefixed(id))
		}
	}
	if len(keys) > 0 {
		c.client.Del(ctx, keys...)
	}
}

func (c *CustomerCache) prefixed(userID string) string {
	return "customer:" + userID
}
