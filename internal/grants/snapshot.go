package grants

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotStore caches aggregated capability structures per role in Redis.
// Entries expire on their own; grant mutations invalidate eagerly.
type SnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotStore constructs a SnapshotStore.
func NewSnapshotStore(client *redis.Client, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{client: client, ttl: ttl}
}

// Get returns the cached capabilities for a role. Any Redis or decode
// failure counts as a miss; the aggregator falls through to the store.
func (s *SnapshotStore) Get(ctx context.Context, roleSlug string) ([]ModuleCapability, bool) {
	if s == nil || s.client == nil {
		return nil, false
	}
	payload, err := s.client.Get(ctx, s.key(roleSlug)).Bytes()
	if err != nil {
		return nil, false
	}
	var caps []ModuleCapability
	if err := json.Unmarshal(payload, &caps); err != nil {
		return nil, false
	}
	return caps, true
}

// Set stores the capabilities for a role.
func (s *SnapshotStore) Set(ctx context.Context, roleSlug string, caps []ModuleCapability) error {
	if s == nil || s.client == nil {
		return nil
	}
	payload, err := json.Marshal(caps)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(roleSlug), payload, s.ttl).Err()
}

// Invalidate drops the cached capabilities for a role.
func (s *SnapshotStore) Invalidate(ctx context.Context, roleSlug string) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Del(ctx, s.key(roleSlug)).Err()
}

func (s *SnapshotStore) key(roleSlug string) string {
	return "capabilities:" + roleSlug
}
