package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/evandrarf/halpi-mastery/internal/mastery"
	"github.com/redis/go-redis/v9"
)

const defaultProgressTTL = 30 * time.Minute

// ProgressCache keeps the latest identification snapshot of a session.
type ProgressCache interface {
	Set(ctx context.Context, key mastery.SessionKey, state mastery.IdentificationState) error
	Get(ctx context.Context, key mastery.SessionKey) (mastery.IdentificationState, error)
	Delete(ctx context.Context, key mastery.SessionKey) error
}

type progressCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewProgressCache(client *redis.Client, ttl time.Duration) ProgressCache {
	if ttl <= 0 {
		ttl = defaultProgressTTL
	}
	return &progressCache{
		client: client,
		ttl:    ttl,
	}
}

func progressKey(key mastery.SessionKey) string {
	return "mastery:progress:" + key.ActivityID + ":" + key.LearnerID
}

func (c *progressCache) Set(ctx context.Context, key mastery.SessionKey, state mastery.IdentificationState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, progressKey(key), data, c.ttl).Err()
}

// Get returns mastery.ErrNotFound on a cache miss.
func (c *progressCache) Get(ctx context.Context, key mastery.SessionKey) (mastery.IdentificationState, error) {
	data, err := c.client.Get(ctx, progressKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return mastery.IdentificationState{}, mastery.ErrNotFound
	}
	if err != nil {
		return mastery.IdentificationState{}, err
	}
	var state mastery.IdentificationState
	err = json.Unmarshal(data, &state)
	return state, err
}

func (c *progressCache) Delete(ctx context.Context, key mastery.SessionKey) error {
	return c.client.Del(ctx, progressKey(key)).Err()
}
