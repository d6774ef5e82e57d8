// Package cache は読み取り負荷の高いクエリのためのキャッシュ層を提供する。
// ポリシーはread-through-on-miss / write-through-invalidate。
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// キャッシュキー。候補者・得票集計はグローバル、ユーザープロフィールはIDごと。
const (
	KeyCandidates = "candidates"
	KeyVoteCount  = "voteCount"
)

// UserKey はユーザープロフィールのキャッシュキーを返す。
func UserKey(userID string) string {
	return "user:" + userID
}

// Store はキャッシュストアのインターフェース。
// キャッシュは正確性に関与しないため、バックエンド障害はミスとして
// 扱い、呼び出し側にエラーを返さない。
type Store interface {
	// Get は値を取得する。ミスまたはバックエンド障害時はfalseを返す。
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set は固定TTL付きで値を保存する。失敗はログのみ。
	Set(ctx context.Context, key string, value []byte)
	// Del は指定キーを無効化する。失敗はログのみ。
	Del(ctx context.Context, keys ...string)
}

// RedisStore はRedisを使用したStore実装。
// エントリは無効化と独立に固定TTLを持ち、無効化漏れがあっても
// 古さはTTLで上限が抑えられる。
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore はRedisStoreを生成する。
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Get は値を取得する。ミスまたはRedis障害時はfalseを返す。
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		// キャッシュ障害は直接読み取りに縮退させる
		slog.Warn("cache get failed, falling back to direct read",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	return value, true
}

// Set は固定TTL付きで値を保存する。
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) {
	if err := s.client.Set(ctx, key, value, s.ttl).Err(); err != nil {
		slog.Warn("cache set failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

// Del は指定キーを無効化する。
func (s *RedisStore) Del(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		slog.Warn("cache invalidation failed",
			slog.Any("keys", keys),
			slog.String("error", err.Error()),
		)
	}
}

// compile-time interface check
var _ Store = (*RedisStore)(nil)
