package genai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"deal-assistant/internal/common/database"
	"deal-assistant/internal/common/logger"
	"deal-assistant/internal/common/metrics"
)

const cacheKeyPrefix = "dealchat:reply:"

// Generator is the reply generation contract CachedGenerator wraps.
type Generator interface {
	GenerateReply(ctx context.Context, instruction, draftContext string) (string, error)
}

// CachedGenerator serves repeated (instruction, context) pairs from Redis.
// Cache failures never fail a reply; the inner generator is called instead.
type CachedGenerator struct {
	next   Generator
	redis  *database.RedisClient
	model  string
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedGenerator(next Generator, redis *database.RedisClient, model string, ttl time.Duration, log logger.Logger) *CachedGenerator {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &CachedGenerator{next: next, redis: redis, model: model, ttl: ttl, logger: log}
}

func (g *CachedGenerator) GenerateReply(ctx context.Context, instruction, draftContext string) (string, error) {
	key := cacheKey(g.model, instruction, draftContext)

	cached, ok, err := g.redis.Get(ctx, key)
	switch {
	case err != nil:
		metrics.ReplyCacheLookups.WithLabelValues("error").Inc()
		g.logger.Warn("Reply cache read failed", map[string]interface{}{"error": err.Error()})
	case ok:
		metrics.ReplyCacheLookups.WithLabelValues("hit").Inc()
		return cached, nil
	default:
		metrics.ReplyCacheLookups.WithLabelValues("miss").Inc()
	}

	reply, err := g.next.GenerateReply(ctx, instruction, draftContext)
	if err != nil {
		return "", err
	}

	if err := g.redis.Set(ctx, key, reply, g.ttl); err != nil {
		g.logger.Warn("Reply cache write failed", map[string]interface{}{"error": err.Error()})
	}
	return reply, nil
}

func cacheKey(model, instruction, draftContext string) string {
	h := sha256.New()
	for _, part := range []string{model, instruction, draftContext} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}
