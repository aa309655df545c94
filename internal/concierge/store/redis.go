package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	"github.com/everafter-app/server/internal/concierge/model"
	errx "github.com/everafter-app/server/internal/core/error"
	logx "github.com/everafter-app/server/pkg/logger"
)

// RedisConversationRepository keeps conversation history in a Redis list with
// a TTL. Used for ephemeral onboarding sessions; the kernel remains the
// durable state either way. The tenant id is part of the key, so a foreign
// conversation id resolves to an empty list and a foreign clear is a no-op
// rather than a 404 (the durable store is stricter).
type RedisConversationRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisConversationRepository(rdb redis.Cmdable, ttl time.Duration) *RedisConversationRepository {
	return &RedisConversationRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisConversationRepository) conversationKey(tenantID, conversationID string) string {
	return fmt.Sprintf("tenant:%s:conversation:%s:messages", tenantID, conversationID)
}

func (r *RedisConversationRepository) LoadHistory(ctx context.Context, tenantID, conversationID string) (*model.ConversationHistory, error) {
	key := r.conversationKey(tenantID, conversationID)

	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return &model.ConversationHistory{ConversationID: conversationID, Messages: []*schema.Message{}}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load conversation history from redis")
		return nil, errx.WrapRedis(err)
	}

	msgs := make([]*schema.Message, 0, len(rows))
	for i, s := range rows {
		var m schema.Message
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			logx.Error().Err(err).Str("conversationID", conversationID).Int("index", i).Msg("failed to unmarshal message")
			return nil, fmt.Errorf("unmarshal message at index %d: %w", i, err)
		}
		msgs = append(msgs, &m)
	}
	return &model.ConversationHistory{ConversationID: conversationID, Messages: msgs}, nil
}

// ReplaceHistory rewrites the whole list in one pipeline: delete, push all,
// refresh TTL.
func (r *RedisConversationRepository) ReplaceHistory(ctx context.Context, tenantID, conversationID string, messages []*schema.Message) error {
	key := r.conversationKey(tenantID, conversationID)

	encoded := make([]interface{}, 0, len(messages))
	for _, m := range messages {
		b, err := json.Marshal(m)
		if err != nil {
			logx.Error().Err(err).Str("conversationID", conversationID).Msg("failed to marshal message")
			return fmt.Errorf("marshal message: %w", err)
		}
		encoded = append(encoded, b)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, key)
	if len(encoded) > 0 {
		pipe.RPush(ctx, key, encoded...)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to replace conversation history in redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisConversationRepository) ClearHistory(ctx context.Context, tenantID, conversationID string) error {
	key := r.conversationKey(tenantID, conversationID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete conversation history from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.ConversationRepository = (*RedisConversationRepository)(nil)
