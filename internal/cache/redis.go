package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/newsboard/internal/model"
)

// homeKeyPrefix はトップページ一覧のキー接頭辞。
const homeKeyPrefix = "newsboard:home:"

const pingTimeout = 5 * time.Second

// NewRedisClient はREDIS_URL形式の接続文字列からクライアントを生成し、疎通を確認する。
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// RedisHomeCache はRedisを使用したトップページ一覧キャッシュ。
type RedisHomeCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisHomeCache はRedisHomeCacheを生成する。
func NewRedisHomeCache(client redis.UniversalClient, ttl time.Duration) *RedisHomeCache {
	return &RedisHomeCache{client: client, ttl: ttl}
}

// homeKey はlimitごとのキャッシュキーを返す。
func homeKey(limit int) string {
	return homeKeyPrefix + strconv.Itoa(limit)
}

// Get はlimit件の一覧を取得する。キャッシュに無い場合はfalseを返す。
func (c *RedisHomeCache) Get(ctx context.Context, limit int) ([]model.News, bool, error) {
	val, err := c.client.Get(ctx, homeKey(limit)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get home cache: %w", err)
	}

	var payload []cachedNews
	if err := json.Unmarshal(val, &payload); err != nil {
		return nil, false, fmt.Errorf("failed to decode home cache: %w", err)
	}
	list, err := fromCached(payload)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode home cache: %w", err)
	}

	return list, true, nil
}

// Set はlimit件の一覧をTTL付きで保存する。
func (c *RedisHomeCache) Set(ctx context.Context, limit int, list []model.News) error {
	data, err := json.Marshal(toCached(list))
	if err != nil {
		return fmt.Errorf("failed to encode home cache: %w", err)
	}
	if err := c.client.Set(ctx, homeKey(limit), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set home cache: %w", err)
	}
	slog.Debug("home cache stored", slog.Int("limit", limit), slog.Duration("ttl", c.ttl))
	return nil
}

// Invalidate は接頭辞に一致するキーをすべて削除する。
func (c *RedisHomeCache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, homeKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan home cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate home cache: %w", err)
	}
	return nil
}

var _ HomeCache = (*RedisHomeCache)(nil)
