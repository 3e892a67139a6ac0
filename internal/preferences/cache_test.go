package preferences

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herald/internal/decision"
	"herald/internal/logger"
)

type memoryRedis struct {
	data   map[string]string
	getErr error
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{data: make(map[string]string)}
}

func (m *memoryRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if m.getErr != nil {
		return redis.NewStringResult("", m.getErr)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memoryRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

type countingStore struct {
	Repository
	prefs map[string]*decision.RecipientPreferences
	gets  int
}

func (s *countingStore) GetPreferences(_ context.Context, recipient, sender string) (*decision.RecipientPreferences, error) {
	s.gets++
	return s.prefs[ResourceID(recipient, sender)], nil
}

func (s *countingStore) UpsertPreferences(_ context.Context, p *decision.RecipientPreferences) error {
	s.prefs[ResourceID(p.Recipient, p.Sender)] = p
	return nil
}

func newCountingStore() *countingStore {
	return &countingStore{prefs: map[string]*decision.RecipientPreferences{
		ResourceID("alice@example.com", "email"): {
			Recipient:      "alice@example.com",
			Sender:         "email",
			AllowedClasses: []string{"marketing"},
		},
	}}
}

func TestCachedRepository_ReadThrough(t *testing.T) {
	store := newCountingStore()
	cache := NewCachedRepository(store, newMemoryRedis(), time.Minute, logger.NopLogger())
	ctx := context.Background()

	first, err := cache.GetPreferences(ctx, "alice@example.com", "email")
	require.NoError(t, err)
	second, err := cache.GetPreferences(ctx, "alice@example.com", "email")
	require.NoError(t, err)

	assert.Equal(t, 1, store.gets)
	assert.Equal(t, first.AllowedClasses, second.AllowedClasses)
}

func TestCachedRepository_CachesAbsence(t *testing.T) {
	store := newCountingStore()
	cache := NewCachedRepository(store, newMemoryRedis(), time.Minute, logger.NopLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		prefs, err := cache.GetPreferences(ctx, "bob@example.com", "email")
		require.NoError(t, err)
		assert.Nil(t, prefs)
	}
	assert.Equal(t, 1, store.gets)
}

func TestCachedRepository_RedisErrorFallsBack(t *testing.T) {
	store := newCountingStore()
	rdb := newMemoryRedis()
	rdb.getErr = errors.New("i/o timeout")
	cache := NewCachedRepository(store, rdb, time.Minute, logger.NopLogger())

	prefs, err := cache.GetPreferences(context.Background(), "alice@example.com", "email")

	require.NoError(t, err)
	require.NotNil(t, prefs)
	assert.Equal(t, 1, store.gets)
}

func TestCachedRepository_UpsertInvalidates(t *testing.T) {
	store := newCountingStore()
	cache := NewCachedRepository(store, newMemoryRedis(), time.Minute, logger.NopLogger())
	ctx := context.Background()

	_, err := cache.GetPreferences(ctx, "alice@example.com", "email")
	require.NoError(t, err)

	require.NoError(t, cache.UpsertPreferences(ctx, &decision.RecipientPreferences{
		Recipient:      "alice@example.com",
		Sender:         "email",
		AllowedClasses: []string{"transactional"},
	}))

	prefs, err := cache.GetPreferences(ctx, "alice@example.com", "email")
	require.NoError(t, err)
	assert.Equal(t, []string{"transactional"}, prefs.AllowedClasses)
	assert.Equal(t, 2, store.gets)
}

func TestParseResourceID(t *testing.T) {
	recipient, sender, ok := ParseResourceID(ResourceID("a|b@example.com", "sms"))
	require.True(t, ok)
	assert.Equal(t, "a|b@example.com", recipient)
	assert.Equal(t, "sms", sender)

	for _, bad := range []string{"", "nosep", "|sms", "alice|"} {
		_, _, ok := ParseResourceID(bad)
		assert.False(t, ok, bad)
	}
}
