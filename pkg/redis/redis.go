package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/thtun0709/beswd/config"
)

// Client Redis 客户端封装
// 用于 Token 黑名单、限流、密码重置验证码以及实时通知的 Pub/Sub
type Client struct {
	rdb    goredis.UniversalClient
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// ── Token 黑名单 ──

const blacklistPrefix = "token:blacklist:"

// BlacklistToken 将 JWT ID 加入黑名单，TTL 与 Token 剩余有效期一致
func (c *Client) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // Token 已过期，无需加入黑名单
	}
	return c.rdb.Set(ctx, blacklistPrefix+jti, "1", ttl).Err()
}

// IsBlacklisted 检查 JWT ID 是否在黑名单中
func (c *Client) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := c.rdb.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ── 滑动窗口限流 ──

// CheckRateLimit 以有序集合记录窗口内请求，超过 limit 返回 false
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	member := strconv.FormatInt(now.UnixNano(), 10) + ":" + uuid.NewString()[:8]

	pipe := c.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(now.Add(-window).UnixNano(), 10))
	pipe.ZAdd(ctx, key, goredis.Z{Score: float64(now.UnixNano()), Member: member})
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return card.Val() <= int64(limit), nil
}

// ── 密码重置验证码 ──

const resetCodePrefix = "password:reset:"

// ErrCodeNotFound 验证码不存在或已过期
var ErrCodeNotFound = errors.New("验证码不存在或已过期")

// SaveResetCode 保存邮箱对应的验证码，覆盖旧值
func (c *Client) SaveResetCode(ctx context.Context, email, code string, ttl time.Duration) error {
	return c.rdb.Set(ctx, resetCodePrefix+email, code, ttl).Err()
}

// GetResetCode 读取验证码
func (c *Client) GetResetCode(ctx context.Context, email string) (string, error) {
	code, err := c.rdb.Get(ctx, resetCodePrefix+email).Result()
	if errors.Is(err, goredis.Nil) {
		return "", ErrCodeNotFound
	}
	return code, err
}

// DeleteResetCode 验证码使用后立即作废
func (c *Client) DeleteResetCode(ctx context.Context, email string) error {
	return c.rdb.Del(ctx, resetCodePrefix+email).Err()
}

// ── Pub/Sub ──

// Publish 向频道发布消息，返回收到消息的订阅者数量
func (c *Client) Publish(ctx context.Context, channel string, payload []byte) (int64, error) {
	return c.rdb.Publish(ctx, channel, payload).Result()
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
