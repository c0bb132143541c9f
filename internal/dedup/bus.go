package dedup

import (
	"context"
	"errors"
	"sync"

	"github.com/RecoveryAshes/SerpHarvest/internal/metrics"
	"github.com/RecoveryAshes/SerpHarvest/internal/models"
)

// ErrBusClosed 广播通道已关闭
var ErrBusClosed = errors.New("广播通道已关闭")

// Handler 接收广播的回调
type Handler func(sender string, result models.SerpResult)

// Bus worker之间的结果广播
type Bus interface {
	// Publish 广播结果,发送者自身不会收到
	Publish(ctx context.Context, sender string, result models.SerpResult) error
	// Subscribe 注册接收者,返回取消函数
	Subscribe(id string, fn Handler) (func(), error)
	Close() error
}

var (
	_ Bus = (*LocalBus)(nil)
	_ Bus = (*RedisBus)(nil)
)

// LocalBus 进程内广播
type LocalBus struct {
	mu     sync.RWMutex
	subs   map[string]Handler
	closed bool
	label  string
}

// NewLocalBus 创建进程内广播
func NewLocalBus() *LocalBus {
	return &LocalBus{
		subs:  make(map[string]Handler),
		label: "local",
	}
}

// Subscribe 实现 Bus
func (b *LocalBus) Subscribe(id string, fn Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}
	b.subs[id] = fn

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}, nil
}

// Publish 实现 Bus
func (b *LocalBus) Publish(_ context.Context, sender string, result models.SerpResult) error {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrBusClosed
	}

	metrics.BroadcastMessages.WithLabelValues(b.label, "sent").Inc()
	b.deliver(sender, result)
	return nil
}

// deliver 分发给除发送者外的所有接收者
func (b *LocalBus) deliver(sender string, result models.SerpResult) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs))
	for id, fn := range b.subs {
		if id == sender {
			continue
		}
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(sender, result)
		metrics.BroadcastMessages.WithLabelValues(b.label, "received").Inc()
	}
}

// Subscribers 当前接收者数量
func (b *LocalBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close 实现 Bus
func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.subs = make(map[string]Handler)
	return nil
}
