package crawlers

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

const (
	defaultTabMemory = 100 * 1024 * 1024 // 单个标签页约100MB
	maxTabsCacheTTL  = time.Second
)

// ResourceMonitorConfig 资源监控配置,内存单位为字节
type ResourceMonitorConfig struct {
	SafetyReserveMemory int64 // 系统预留
	SafetyThreshold     int64 // 可用内存低于该值时不再创建标签页
	CPULoadThreshold    int   // CPU负载阈值(%), >=200 表示不检查
	MaxTabsLimit        int   // 绝对上限
	TabMemoryUsage      int64
}

// MemoryStatus 内存状态
type MemoryStatus struct {
	TotalMemory     uint64  `json:"total_memory"`
	AllocatedMemory uint64  `json:"allocated_memory"`
	AvailableMemory int64   `json:"available_memory"`
	MemoryPressure  string  `json:"memory_pressure"`
	CPUUsage        float64 `json:"cpu_usage"`
	MaxTabs         int     `json:"max_tabs"`
}

// ResourceMonitor 采样系统内存和CPU,计算可同时打开的标签页数
type ResourceMonitor struct {
	config      ResourceMonitorConfig
	totalMemory uint64

	mu        sync.RWMutex
	allocated uint64
	cpuUsage  float64

	cacheMu       sync.Mutex
	cachedMaxTabs int
	cachedAt      time.Time

	cancel context.CancelFunc
}

// NewResourceMonitor 创建监控器
func NewResourceMonitor(config ResourceMonitorConfig) *ResourceMonitor {
	if config.TabMemoryUsage <= 0 {
		config.TabMemoryUsage = defaultTabMemory
	}
	if config.MaxTabsLimit <= 0 {
		config.MaxTabsLimit = runtime.NumCPU()
	}

	total := uint64(4 * 1024 * 1024 * 1024)
	if vm, err := mem.VirtualMemory(); err != nil {
		log.Warn().Err(err).Msg("获取系统内存失败,按4GB计算")
	} else {
		total = vm.Total
	}
	log.Debug().Msgf("系统总内存: %.2f GB", float64(total)/(1024*1024*1024))

	rm := &ResourceMonitor{config: config, totalMemory: total}
	rm.sample(false)
	return rm
}

// Start 后台周期采样,重复调用无效
func (rm *ResourceMonitor) Start(interval time.Duration) {
	rm.mu.Lock()
	if rm.cancel != nil {
		rm.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	rm.cancel = cancel
	rm.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rm.sample(true)
			}
		}
	}()
}

// Stop 停止采样
func (rm *ResourceMonitor) Stop() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.cancel != nil {
		rm.cancel()
		rm.cancel = nil
	}
}

func (rm *ResourceMonitor) sample(withCPU bool) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	usage := 0.0
	if withCPU {
		if percentages, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(percentages) > 0 {
			usage = percentages[0]
		}
	}

	rm.mu.Lock()
	rm.allocated = stats.Alloc
	if withCPU {
		rm.cpuUsage = usage
	}
	rm.mu.Unlock()
}

func (rm *ResourceMonitor) available() int64 {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return int64(rm.totalMemory) - int64(rm.allocated) - rm.config.SafetyReserveMemory
}

// CalculateMaxTabs 按可用内存、CPU核数和配置上限计算,结果缓存1秒
func (rm *ResourceMonitor) CalculateMaxTabs() int {
	rm.cacheMu.Lock()
	defer rm.cacheMu.Unlock()

	if rm.cachedMaxTabs > 0 && time.Since(rm.cachedAt) < maxTabsCacheTTL {
		return rm.cachedMaxTabs
	}

	byMemory := 1
	if avail := rm.available(); avail > rm.config.SafetyThreshold {
		byMemory = max(1, int((avail-rm.config.SafetyThreshold)/rm.config.TabMemoryUsage))
	}

	result := max(1, min(byMemory, runtime.NumCPU(), rm.config.MaxTabsLimit))

	rm.cachedMaxTabs = result
	rm.cachedAt = time.Now()
	return result
}

// CheckResourceAvailability 是否允许再创建标签页
func (rm *ResourceMonitor) CheckResourceAvailability() (bool, string) {
	if avail := rm.available(); avail < rm.config.SafetyThreshold {
		return false, fmt.Sprintf("内存不足(当前%dMB)", avail/(1024*1024))
	}

	if rm.config.CPULoadThreshold > 0 && rm.config.CPULoadThreshold < 200 {
		rm.mu.RLock()
		usage := rm.cpuUsage
		rm.mu.RUnlock()
		if usage > float64(rm.config.CPULoadThreshold) {
			return false, fmt.Sprintf("CPU负载过高(当前%.1f%%)", usage)
		}
	}
	return true, ""
}

// Status 当前资源状态
func (rm *ResourceMonitor) Status() MemoryStatus {
	avail := rm.available()

	pressure := "normal"
	switch mb := avail / (1024 * 1024); {
	case mb < 200:
		pressure = "emergency"
	case mb < 300:
		pressure = "critical"
	case mb < 500:
		pressure = "warning"
	}

	rm.mu.RLock()
	allocated, usage := rm.allocated, rm.cpuUsage
	rm.mu.RUnlock()

	return MemoryStatus{
		TotalMemory:     rm.totalMemory,
		AllocatedMemory: allocated,
		AvailableMemory: avail,
		MemoryPressure:  pressure,
		CPUUsage:        usage,
		MaxTabs:         rm.CalculateMaxTabs(),
	}
}
