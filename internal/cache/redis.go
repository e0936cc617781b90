// Package cache 提供 Redis 缓存操作的封装
// 维护设备最近心跳的有序集合，并广播设备状态变更
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"signage-server/internal/config"
	"signage-server/internal/presence"
)

const (
	lastSeenKey   = "devices:last_seen" // ZSET member=device_id score=unix 秒
	statusChannel = "device:status"     // 状态变更频道
)

// ErrIndexDisabled 未启用 Redis 时由 NopIndex 返回
var ErrIndexDisabled = errors.New("presence index disabled")

// TierCounts 各连通性分级的设备数量
type TierCounts struct {
	Online int64 `json:"online"`
	Idle   int64 `json:"idle"`
}

// StatusEvent 设备状态变更消息
type StatusEvent struct {
	DeviceID  string `json:"device_id"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// PresenceIndex 设备在线索引
// 所有方法失败都不应影响主流程，调用方只记录日志
type PresenceIndex interface {
	Touch(ctx context.Context, deviceID string, at time.Time) error
	Counts(ctx context.Context, now time.Time, th presence.Thresholds) (TierCounts, error)
	PublishStatus(ctx context.Context, deviceID, status string, at time.Time) error
	Close() error
}

// RedisCache 封装 Redis 客户端，提供业务相关的缓存操作
type RedisCache struct {
	client *redis.Client // Redis 客户端实例
}

// NewRedisCache 创建 RedisCache 实例
// 参数:
//   - cfg: 应用配置（包含 Redis 连接信息）
//
// 返回:
//   - *RedisCache: 缓存实例
//   - error: 连接错误
func NewRedisCache(cfg *config.Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisCacheFromClient(client), nil
}

// NewRedisCacheFromClient 使用已有客户端创建实例
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Close 关闭 Redis 连接
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Touch 记录设备最近一次心跳时间
// 只会把分数往前推，迟到的旧时间戳不会覆盖新值
func (c *RedisCache) Touch(ctx context.Context, deviceID string, at time.Time) error {
	return c.client.ZAddGT(ctx, lastSeenKey, redis.Z{
		Score:  float64(at.Unix()),
		Member: deviceID,
	}).Err()
}

// Counts 统计 online / idle 设备数量
// online: last_seen > now-Online；idle: now-Idle < last_seen <= now-Online
func (c *RedisCache) Counts(ctx context.Context, now time.Time, th presence.Thresholds) (TierCounts, error) {
	onlineFrom := now.Add(-th.Online).Unix()
	idleFrom := now.Add(-th.Idle).Unix()

	pipe := c.client.Pipeline()
	online := pipe.ZCount(ctx, lastSeenKey, "("+strconv.FormatInt(onlineFrom, 10), "+inf")
	idle := pipe.ZCount(ctx, lastSeenKey, "("+strconv.FormatInt(idleFrom, 10), strconv.FormatInt(onlineFrom, 10))
	if _, err := pipe.Exec(ctx); err != nil {
		return TierCounts{}, err
	}
	return TierCounts{Online: online.Val(), Idle: idle.Val()}, nil
}

// PublishStatus 发布设备状态变更
// 用于通知其他服务实例或看板
func (c *RedisCache) PublishStatus(ctx context.Context, deviceID, status string, at time.Time) error {
	data, err := json.Marshal(StatusEvent{
		DeviceID:  deviceID,
		Status:    status,
		Timestamp: at.Unix(),
	})
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, statusChannel, data).Err()
}

// SubscribeStatus 订阅设备状态变更
// 返回 PubSub 对象，调用方负责关闭
func (c *RedisCache) SubscribeStatus(ctx context.Context) *redis.PubSub {
	return c.client.Subscribe(ctx, statusChannel)
}

// Ping 检查 Redis 连接
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// NopIndex 未启用 Redis 时使用的空实现
type NopIndex struct{}

func (NopIndex) Touch(context.Context, string, time.Time) error { return nil }

func (NopIndex) Counts(context.Context, time.Time, presence.Thresholds) (TierCounts, error) {
	return TierCounts{}, ErrIndexDisabled
}

func (NopIndex) PublishStatus(context.Context, string, string, time.Time) error { return nil }

func (NopIndex) Close() error { return nil }

// NewPresenceIndex 按配置创建在线索引
func NewPresenceIndex(cfg *config.Config) (PresenceIndex, error) {
	if !cfg.Redis.Enabled {
		return NopIndex{}, nil
	}
	return NewRedisCache(cfg)
}
