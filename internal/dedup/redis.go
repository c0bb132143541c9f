package dedup

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/RecoveryAshes/SerpHarvest/internal/metrics"
	"github.com/RecoveryAshes/SerpHarvest/internal/models"
	"github.com/RecoveryAshes/SerpHarvest/internal/utils"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultChannel  = "serpharvest:results"
	DefaultClaimKey = "serpharvest:claimed"
)

// envelope 广播消息格式
type envelope struct {
	Sender string            `json:"sender"`
	Result models.SerpResult `json:"result"`
}

func encodeEnvelope(sender string, result models.SerpResult) ([]byte, error) {
	return json.Marshal(envelope{Sender: sender, Result: result})
}

func decodeEnvelope(payload string) (envelope, error) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return env, fmt.Errorf("解析广播消息失败: %w", err)
	}
	return env, nil
}

// NewRedisClient 创建并检查redis连接
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("连接redis失败 [%s]: %w", addr, err)
	}
	return client, nil
}

// RedisBus 基于redis pub/sub的广播,用于多个进程共享去重
// 收到的消息在本进程内按 LocalBus 规则分发
type RedisBus struct {
	client  *redis.Client
	channel string
	pubsub  *redis.PubSub
	local   *LocalBus

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRedisBus 订阅频道并开始接收
func NewRedisBus(ctx context.Context, client *redis.Client, channel string) (*RedisBus, error) {
	if channel == "" {
		channel = DefaultChannel
	}

	pubsub := client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("订阅频道失败 [%s]: %w", channel, err)
	}

	local := NewLocalBus()
	local.label = "redis"

	dispatchCtx, cancel := context.WithCancel(context.Background())
	b := &RedisBus{
		client:  client,
		channel: channel,
		pubsub:  pubsub,
		local:   local,
		cancel:  cancel,
	}

	b.wg.Add(1)
	go b.dispatch(dispatchCtx)

	utils.Infof("已订阅redis广播频道: %s", channel)
	return b, nil
}

func (b *RedisBus) dispatch(ctx context.Context) {
	defer b.wg.Done()

	messages := b.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			env, err := decodeEnvelope(msg.Payload)
			if err != nil {
				utils.Warnf("%v", err)
				continue
			}
			b.local.deliver(env.Sender, env.Result)
		}
	}
}

// Publish 实现 Bus
func (b *RedisBus) Publish(ctx context.Context, sender string, result models.SerpResult) error {
	payload, err := encodeEnvelope(sender, result)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("发布广播失败: %w", err)
	}
	metrics.BroadcastMessages.WithLabelValues("redis", "sent").Inc()
	return nil
}

// Subscribe 实现 Bus
func (b *RedisBus) Subscribe(id string, fn Handler) (func(), error) {
	return b.local.Subscribe(id, fn)
}

// Close 实现 Bus,不关闭redis客户端
func (b *RedisBus) Close() error {
	b.cancel()
	err := b.pubsub.Close()
	b.wg.Wait()
	b.local.Close()
	return err
}

// RedisArbiter 使用redis集合记录认领的关键词
type RedisArbiter struct {
	client *redis.Client
	key    string
}

var _ Arbiter = (*RedisArbiter)(nil)

// NewRedisArbiter 创建认领记录
func NewRedisArbiter(client *redis.Client, key string) *RedisArbiter {
	if key == "" {
		key = DefaultClaimKey
	}
	return &RedisArbiter{client: client, key: key}
}

// Claim 实现 Arbiter
func (a *RedisArbiter) Claim(ctx context.Context, keyword string) (bool, error) {
	added, err := a.client.SAdd(ctx, a.key, keyword).Result()
	if err != nil {
		return false, err
	}
	return added == 1, nil
}

// Reset 清空认领记录
func (a *RedisArbiter) Reset(ctx context.Context) error {
	return a.client.Del(ctx, a.key).Err()
}
