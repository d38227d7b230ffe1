package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"quant-trading-engine/internal/exitengine"
)

const (
	// positionKeyPrefix namespaces snapshot keys: engine:position:{id}
	positionKeyPrefix = "engine:position"

	// positionStateTTL keeps snapshots well past any realistic holding
	// period so a restart after downtime can still restore.
	positionStateTTL = 7 * 24 * time.Hour
)

// RedisStateStore persists exit-engine position snapshots in Redis. When
// Redis is unreachable it falls back to an in-memory map so monitoring
// continues uninterrupted; the fallback does not survive a restart.
type RedisStateStore struct {
	client         *redis.Client
	fallback       map[string][]byte
	fallbackMu     sync.RWMutex
	redisAvailable atomic.Bool
	logger         zerolog.Logger
}

// NewRedisStateStore creates a state store. A nil client means memory-only
// operation.
func NewRedisStateStore(client *redis.Client, logger zerolog.Logger) *RedisStateStore {
	s := &RedisStateStore{
		client:   client,
		fallback: make(map[string][]byte),
		logger:   logger.With().Str("component", "redis_state_store").Logger(),
	}
	if client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err == nil {
			s.redisAvailable.Store(true)
		} else {
			s.logger.Warn().Err(err).Msg("redis unavailable at startup, using in-memory fallback")
		}
	}
	return s
}

func positionKey(id string) string {
	return fmt.Sprintf("%s:%s", positionKeyPrefix, id)
}

// Save writes a position snapshot.
func (s *RedisStateStore) Save(ctx context.Context, pos *exitengine.MonitoredPosition) error {
	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("marshaling position %s: %w", pos.ID, err)
	}

	if s.client != nil {
		err := s.client.Set(ctx, positionKey(pos.ID), data, positionStateTTL).Err()
		if err == nil {
			s.redisAvailable.Store(true)
			return nil
		}
		if s.redisAvailable.Swap(false) {
			s.logger.Warn().Err(err).Msg("redis write failed, falling back to memory")
		}
	}

	s.fallbackMu.Lock()
	s.fallback[pos.ID] = data
	s.fallbackMu.Unlock()
	return nil
}

// Delete removes a snapshot once the position is closed.
func (s *RedisStateStore) Delete(ctx context.Context, positionID string) error {
	if s.client != nil {
		if err := s.client.Del(ctx, positionKey(positionID)).Err(); err != nil {
			if s.redisAvailable.Swap(false) {
				s.logger.Warn().Err(err).Msg("redis delete failed, falling back to memory")
			}
		} else {
			s.redisAvailable.Store(true)
		}
	}

	s.fallbackMu.Lock()
	delete(s.fallback, positionID)
	s.fallbackMu.Unlock()
	return nil
}

// LoadAll returns every persisted snapshot, Redis first, then any fallback
// entries not already seen. Used to restore monitoring on startup.
func (s *RedisStateStore) LoadAll(ctx context.Context) ([]*exitengine.MonitoredPosition, error) {
	seen := make(map[string]bool)
	var positions []*exitengine.MonitoredPosition

	if s.client != nil {
		iter := s.client.Scan(ctx, 0, positionKeyPrefix+":*", 100).Iterator()
		for iter.Next(ctx) {
			data, err := s.client.Get(ctx, iter.Val()).Bytes()
			if err != nil {
				continue
			}
			var pos exitengine.MonitoredPosition
			if err := json.Unmarshal(data, &pos); err != nil {
				s.logger.Warn().Str("key", iter.Val()).Err(err).Msg("skipping corrupt position snapshot")
				continue
			}
			seen[pos.ID] = true
			positions = append(positions, &pos)
		}
		if err := iter.Err(); err != nil {
			s.logger.Warn().Err(err).Msg("redis scan failed, restoring from memory fallback only")
		}
	}

	s.fallbackMu.RLock()
	defer s.fallbackMu.RUnlock()
	for id, data := range s.fallback {
		if seen[id] {
			continue
		}
		var pos exitengine.MonitoredPosition
		if err := json.Unmarshal(data, &pos); err != nil {
			continue
		}
		positions = append(positions, &pos)
	}
	return positions, nil
}

// Available reports whether the last Redis operation succeeded.
func (s *RedisStateStore) Available() bool {
	return s.redisAvailable.Load()
}
