package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"chatroom/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisHistoryCache keeps one hash per room, one field per requested limit,
// so invalidating a room is a single DEL.
type RedisHistoryCache struct {
	client *redis.Client
	prefix string
}

// NewRedisHistoryCache connects and pings Redis.
func NewRedisHistoryCache(opts RedisOptions) (*RedisHistoryCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "chat:history"
	}
	return &RedisHistoryCache{client: client, prefix: prefix}, nil
}

func (c *RedisHistoryCache) key(room string) string {
	return c.prefix + ":" + room
}

// Get implements HistoryCache. A missing room or limit is ErrCacheMiss.
func (c *RedisHistoryCache) Get(ctx context.Context, room string, limit int) ([]models.Message, error) {
	data, err := c.client.HGet(ctx, c.key(room), strconv.Itoa(limit)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var msgs []models.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}
	return msgs, nil
}

// Set implements HistoryCache. The TTL applies to every limit of the room.
func (c *RedisHistoryCache) Set(ctx context.Context, room string, limit int, msgs []models.Message, ttl time.Duration) error {
	data, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	key := c.key(room)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, strconv.Itoa(limit), data)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

// Invalidate implements HistoryCache.
func (c *RedisHistoryCache) Invalidate(ctx context.Context, room string) error {
	if err := c.client.Del(ctx, c.key(room)).Err(); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (c *RedisHistoryCache) Close() error {
	return c.client.Close()
}
