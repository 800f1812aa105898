package errors

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrorMonitor 错误监控器，按错误码计数
type ErrorMonitor struct {
	errorCounter *prometheus.CounterVec

	stats      map[ErrorCode]*ErrorStats
	statsMutex sync.RWMutex
}

// ErrorStats 错误统计信息
type ErrorStats struct {
	Code      ErrorCode `json:"code"`
	Type      string    `json:"type"`
	Count     int64     `json:"count"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// NewErrorMonitor 创建错误监控器，reg 为 nil 时只做内存统计
func NewErrorMonitor(reg prometheus.Registerer) *ErrorMonitor {
	em := &ErrorMonitor{
		errorCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "app_errors_total",
				Help: "Total number of errors returned to clients by code and type",
			},
			[]string{"code", "type"},
		),
		stats: make(map[ErrorCode]*ErrorStats),
	}
	if reg != nil {
		reg.MustRegister(em.errorCounter)
	}
	return em
}

// RecordError 记录错误
func (em *ErrorMonitor) RecordError(appErr *AppError) {
	if appErr == nil {
		return
	}

	errType := errorTypeString(appErr.Type)
	em.errorCounter.WithLabelValues(string(appErr.Code), errType).Inc()

	now := time.Now()
	em.statsMutex.Lock()
	defer em.statsMutex.Unlock()

	stats, ok := em.stats[appErr.Code]
	if !ok {
		stats = &ErrorStats{Code: appErr.Code, Type: errType, FirstSeen: now}
		em.stats[appErr.Code] = stats
	}
	stats.Count++
	stats.LastSeen = now
}

// GetStats 获取统计快照
func (em *ErrorMonitor) GetStats() map[ErrorCode]ErrorStats {
	em.statsMutex.RLock()
	defer em.statsMutex.RUnlock()

	result := make(map[ErrorCode]ErrorStats, len(em.stats))
	for code, stats := range em.stats {
		result[code] = *stats
	}
	return result
}

// GetTopErrors 按次数降序返回前 limit 个错误码
func (em *ErrorMonitor) GetTopErrors(limit int) []ErrorStats {
	all := em.GetStats()
	list := make([]ErrorStats, 0, len(all))
	for _, stats := range all {
		list = append(list, stats)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Count != list[j].Count {
			return list[i].Count > list[j].Count
		}
		return list[i].Code < list[j].Code
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list
}

func errorTypeString(errorType ErrorType) string {
	switch errorType {
	case ErrorTypeSystem:
		return "system"
	case ErrorTypeBusiness:
		return "business"
	case ErrorTypeValidation:
		return "validation"
	case ErrorTypeExternal:
		return "external"
	default:
		return "unknown"
	}
}
