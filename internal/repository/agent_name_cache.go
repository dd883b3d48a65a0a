package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

const agentNameKeyPrefix = "helpdesk:agent-name:"

// CachedAgentDirectory serves display names from Redis and falls back to the
// wrapped directory for misses. Redis failures degrade to the directory.
type CachedAgentDirectory struct {
	next   AgentRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedAgentDirectory wraps next. A nil client disables caching.
func NewCachedAgentDirectory(next AgentRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedAgentDirectory {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedAgentDirectory{next: next, client: client, ttl: ttl, logger: logger}
}

func (c *CachedAgentDirectory) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	return c.next.GetByID(ctx, id)
}

func (c *CachedAgentDirectory) NamesByIDs(ctx context.Context, ids []string) (map[string]string, error) {
	if c.client == nil || len(ids) == 0 {
		return c.next.NamesByIDs(ctx, ids)
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = agentNameKeyPrefix + id
	}

	names := make(map[string]string, len(ids))
	var missing []string
	cached, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Debug("agent name cache unavailable", zap.Error(err))
		return c.next.NamesByIDs(ctx, ids)
	}
	for i, v := range cached {
		if s, ok := v.(string); ok && s != "" {
			names[ids[i]] = s
			continue
		}
		missing = append(missing, ids[i])
	}
	if len(missing) == 0 {
		return names, nil
	}

	loaded, err := c.next.NamesByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	pipe := c.client.Pipeline()
	for id, name := range loaded {
		names[id] = name
		pipe.Set(ctx, agentNameKeyPrefix+id, name, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Debug("agent name cache write failed", zap.Error(err))
	}
	return names, nil
}
