package dedup

import (
	"context"
	"sync"

	"github.com/RecoveryAshes/SerpHarvest/internal/models"
	"github.com/RecoveryAshes/SerpHarvest/internal/utils"
)

// Arbiter 共享的关键词认领记录,启用后去重变为严格模式
type Arbiter interface {
	// Claim 认领关键词,已被认领时返回false
	Claim(ctx context.Context, keyword string) (bool, error)
}

// Replica 单个worker持有的已采集关键词集合
// local 为本worker认领的关键词,external 为其他worker广播的关键词
type Replica struct {
	id      string
	arbiter Arbiter

	mu       sync.RWMutex
	local    map[string]struct{}
	external map[string]struct{}
}

// NewReplica 创建副本, arbiter 可以为nil
func NewReplica(id string, arbiter Arbiter) *Replica {
	return &Replica{
		id:       id,
		arbiter:  arbiter,
		local:    make(map[string]struct{}),
		external: make(map[string]struct{}),
	}
}

// ID worker标识
func (r *Replica) ID() string {
	return r.id
}

// MarkOrClaim 关键词已存在时返回true,否则记录为本worker认领并返回false
// 共享认领失败时退化为仅本地去重
func (r *Replica) MarkOrClaim(ctx context.Context, keyword string) bool {
	keyword = models.NormalizeKeyword(keyword)
	if keyword == "" {
		return true
	}

	r.mu.Lock()
	_, mine := r.local[keyword]
	_, theirs := r.external[keyword]
	if mine || theirs {
		r.mu.Unlock()
		return true
	}
	r.local[keyword] = struct{}{}
	r.mu.Unlock()

	if r.arbiter == nil {
		return false
	}

	claimed, err := r.arbiter.Claim(ctx, keyword)
	if err != nil {
		utils.Warnf("[%s] 共享认领失败,按本地结果处理: %v", keyword, err)
		return false
	}
	return !claimed
}

// Contains 关键词是否已记录
func (r *Replica) Contains(keyword string) bool {
	keyword = models.NormalizeKeyword(keyword)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.local[keyword]; ok {
		return true
	}
	_, ok := r.external[keyword]
	return ok
}

// Receive 处理其他worker广播的结果
func (r *Replica) Receive(sender string, result models.SerpResult) {
	if sender == r.id {
		return
	}
	keyword := models.NormalizeKeyword(result.Keyword)
	if keyword == "" {
		return
	}

	r.mu.Lock()
	r.external[keyword] = struct{}{}
	r.mu.Unlock()
}

// Len 已记录的关键词数量
func (r *Replica) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.local)
	for k := range r.external {
		if _, ok := r.local[k]; !ok {
			n++
		}
	}
	return n
}
