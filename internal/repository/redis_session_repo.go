package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/ghlogin/internal/model"
	"github.com/redis/go-redis/v9"
)

const defaultRedisSessionPrefix = "ghlogin:session:"

// redisSessionRecord はRedisに保存するセッションの形式。
// dataはPostgreSQLのsession.dataと同じ文字列表現を使う。
type redisSessionRecord struct {
	SID       string    `json:"sid"`
	UserID    string    `json:"userId,omitempty"`
	Expires   time.Time `json:"expires"`
	Data      string    `json:"data"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RedisSessionRepo はRedisを使用したセッションリポジトリ。
// キーのTTLをセッションの有効期限に合わせるため、期限切れの掃除は不要。
type RedisSessionRepo struct {
	client redis.Cmdable
	prefix string
	now    func() time.Time
}

// NewRedisSessionRepo はRedisSessionRepoを生成する。
// prefixが空の場合はデフォルトのキープレフィックスを使う。
func NewRedisSessionRepo(client redis.Cmdable, prefix string) *RedisSessionRepo {
	if prefix == "" {
		prefix = defaultRedisSessionPrefix
	}
	return &RedisSessionRepo{client: client, prefix: prefix, now: time.Now}
}

func (r *RedisSessionRepo) key(id string) string {
	return r.prefix + id
}

// Save はセッションを作成または上書きする。TTLはExpiresAtまでの残り時間。
func (r *RedisSessionRepo) Save(ctx context.Context, session *model.Session) error {
	ttl := session.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		// 既に期限切れのセッションは保存せず、残っていれば消す
		return r.DeleteByID(ctx, session.ID)
	}

	data, err := model.EncodeSessionData(session.Data)
	if err != nil {
		return err
	}

	b, err := json.Marshal(redisSessionRecord{
		SID:       session.ID,
		UserID:    session.UserID,
		Expires:   session.ExpiresAt,
		Data:      data,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := r.client.Set(ctx, r.key(session.ID), b, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。存在しない、または期限切れの場合はnilを返す。
func (r *RedisSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	val, err := r.client.Get(ctx, r.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	var rec redisSessionRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if !r.now().Before(rec.Expires) {
		return nil, nil
	}

	data, err := model.DecodeSessionData(rec.Data)
	if err != nil {
		return nil, err
	}

	return &model.Session{
		ID:        rec.SID,
		UserID:    rec.UserID,
		ExpiresAt: rec.Expires,
		Data:      data,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *RedisSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SessionRepository = (*RedisSessionRepo)(nil)
