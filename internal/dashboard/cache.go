package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// BumpChannel carries "<business>:<version>" after every invalidation.
const BumpChannel = "dashboard.bump"

// Cache is a per-business versioned Redis cache. Bumping the version orphans
// every key built from the old one; they expire through the TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func versionKey(businessID uuid.UUID) string {
	return "dashboard:version:" + businessID.String()
}

// Version returns the business's cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context, businessID uuid.UUID) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	key := versionKey(businessID)
	ver, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		// SETNX keeps a concurrent Bump from being overwritten.
		if err := c.client.SetNX(ctx, key, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, key).Int64()
	}
	if err != nil {
		return 0, err
	}
	if ver <= 0 {
		ver = 1
		if err := c.client.Set(ctx, key, ver, 0).Err(); err != nil {
			return 0, err
		}
	}
	return ver, nil
}

// SummaryKey composes dashboard:summary:<business>:<version>.
func (c *Cache) SummaryKey(ctx context.Context, businessID uuid.UUID) (string, error) {
	ver, err := c.Version(ctx, businessID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("dashboard:summary:%s:%d", businessID, ver), nil
}

// FetchJSON loads a cached value or populates it using the loader.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	if loader == nil {
		return errors.New("dashboard: loader required")
	}
	if c != nil && c.client != nil {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return json.Unmarshal(payload, dest)
		}
		if !errors.Is(err, redis.Nil) {
			return err
		}
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if c != nil && c.client != nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return err
		}
	}
	return json.Unmarshal(raw, dest)
}

// Bump invalidates the business's cached summary.
func (c *Cache) Bump(ctx context.Context, businessID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, versionKey(businessID)).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, BumpChannel, businessID.String()+":"+strconv.FormatInt(ver, 10)).Err()
}

// ListenForInvalidation follows bumps published by other instances until ctx
// is cancelled.
func (c *Cache) ListenForInvalidation(ctx context.Context, channel string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if channel == "" {
		channel = BumpChannel
	}
	pubsub := c.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				c.apply(ctx, msg.Payload)
			}
		}
	}()
	return nil
}

func (c *Cache) apply(ctx context.Context, payload string) {
	raw, verText, _ := strings.Cut(payload, ":")
	businessID, err := uuid.Parse(raw)
	if err != nil {
		return
	}
	key := versionKey(businessID)
	if ver, err := strconv.ParseInt(verText, 10, 64); err == nil {
		current, _ := c.client.Get(ctx, key).Int64()
		if ver > current {
			_ = c.client.Set(ctx, key, ver, 0).Err()
		}
		return
	}
	_ = c.client.Incr(ctx, key).Err()
}
