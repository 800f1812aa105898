package plugins

import (
	"github.com/aihub/plugin-hello-world/internal/extension"
	"github.com/prometheus/client_golang/prometheus"
)

var allStates = []PluginState{StateCreated, StateStarted, StateStopped, StateFailed, StateDeleted}

// Metrics 插件生命周期指标
type Metrics struct {
	lifecycleTotal    *prometheus.CounterVec
	pluginState       *prometheus.GaugeVec
	schemesRegistered prometheus.Gauge
}

// NewMetrics 创建并注册指标，reg 为 nil 时不注册（测试用）
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		lifecycleTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugin_lifecycle_total",
				Help: "Total number of plugin lifecycle calls",
			},
			[]string{"plugin", "action", "status"}, // action: start, stop, delete; status: success, error
		),
		pluginState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "plugin_state",
				Help: "Current plugin state (1 for the active state)",
			},
			[]string{"plugin", "state"},
		),
		schemesRegistered: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "extension_schemes_registered",
				Help: "Number of extension schemes currently registered",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(m.lifecycleTotal, m.pluginState, m.schemesRegistered)
	}
	return m
}

// observeCall 记录一次生命周期调用
func (m *Metrics) observeCall(pluginID, action string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.lifecycleTotal.WithLabelValues(pluginID, action, status).Inc()
}

// setState 将当前状态置1，其余置0
func (m *Metrics) setState(pluginID string, state PluginState) {
	for _, s := range allStates {
		value := 0.0
		if s == state {
			value = 1
		}
		m.pluginState.WithLabelValues(pluginID, string(s)).Set(value)
	}
}

// WatchSchemes 订阅SchemeManager事件，维护已注册Scheme数量
func (m *Metrics) WatchSchemes(schemes extension.SchemeManager) {
	m.schemesRegistered.Set(float64(len(schemes.List())))
	schemes.AddWatcher(extension.WatcherFunc(func(event extension.Event) {
		switch event.Type {
		case extension.SchemeRegistered:
			m.schemesRegistered.Inc()
		case extension.SchemeUnregistered:
			m.schemesRegistered.Dec()
		}
	}))
}
