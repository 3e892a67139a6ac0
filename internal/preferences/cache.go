package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"herald/internal/constants"
	"herald/internal/decision"
	"herald/internal/logger"
	"herald/pkg/metrics"
)

// redisClient is the subset of *redis.Client the cache uses.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedRepository is a read-through Redis cache in front of the preference
// store. Absent preferences are cached as JSON null. Redis failures degrade
// to a direct store read.
type CachedRepository struct {
	Repository
	client redisClient
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedRepository(repo Repository, client redisClient, ttl time.Duration, log logger.Logger) *CachedRepository {
	return &CachedRepository{
		Repository: repo,
		client:     client,
		ttl:        ttl,
		logger:     log,
	}
}

func cacheKey(recipient, sender string) string {
	return constants.CacheKeyPrefixPreference + ResourceID(recipient, sender)
}

func (c *CachedRepository) GetPreferences(ctx context.Context, recipient, sender string) (*decision.RecipientPreferences, error) {
	key := cacheKey(recipient, sender)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var prefs *decision.RecipientPreferences
		if jsonErr := json.Unmarshal(raw, &prefs); jsonErr == nil {
			metrics.IncPreferenceCache("hit")
			return prefs, nil
		}
		c.logger.WarnwCtx(ctx, "Discarding undecodable cached preferences", "key", key)
	case errors.Is(err, redis.Nil):
	default:
		metrics.IncPreferenceCache("error")
		c.logger.WarnwCtx(ctx, "Preference cache read failed, falling back to store",
			"error", err,
			"key", key,
		)
	}

	metrics.IncPreferenceCache("miss")
	prefs, err := c.Repository.GetPreferences(ctx, recipient, sender)
	if err != nil {
		return nil, err
	}

	c.store(ctx, key, prefs)
	return prefs, nil
}

func (c *CachedRepository) store(ctx context.Context, key string, prefs *decision.RecipientPreferences) {
	if c.ttl <= 0 {
		return
	}
	body, err := json.Marshal(prefs)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, body, c.ttl).Err(); err != nil {
		c.logger.WarnwCtx(ctx, "Preference cache write failed", "error", err, "key", key)
	}
}

func (c *CachedRepository) UpsertPreferences(ctx context.Context, prefs *decision.RecipientPreferences) error {
	if err := c.Repository.UpsertPreferences(ctx, prefs); err != nil {
		return err
	}
	return c.Invalidate(ctx, ResourceID(prefs.Recipient, prefs.Sender))
}

func (c *CachedRepository) DeletePreferences(ctx context.Context, recipient, sender string) error {
	if err := c.Repository.DeletePreferences(ctx, recipient, sender); err != nil {
		return err
	}
	return c.Invalidate(ctx, ResourceID(recipient, sender))
}

// Invalidate drops the cached entry for a ResourceID.
func (c *CachedRepository) Invalidate(ctx context.Context, resourceID string) error {
	recipient, sender, ok := ParseResourceID(resourceID)
	if !ok {
		c.logger.WarnwCtx(ctx, "Ignoring malformed preference resource id", "resource_id", resourceID)
		return nil
	}
	if err := c.client.Del(ctx, cacheKey(recipient, sender)).Err(); err != nil {
		return err
	}
	c.logger.DebugwCtx(ctx, "Invalidated cached preferences", "recipient", recipient, "sender", sender)
	return nil
}
