// Package prometheus provides a built-in plugin that lets scripts create
// prometheus counters and gauges.
//
//	local requests = prometheus_counter{name = "requests_total", help = "handled requests"}
//	requests:inc()
//
//	local temp = prometheus_metric{type = "gauge", name = "temperature", help = "in celsius"}
//	temp:set(21.5)
//
// All metrics created by scripts are unregistered when the plugin is
// unloaded.
package prometheus

import (
	"errors"
	"sync"

	"github.com/ppacher/luaplug/pkg/plugin"
	"github.com/prometheus/client_golang/prometheus"
	lua "github.com/yuin/gopher-lua"
)

// Name is the name of the plugin
const Name = "prometheus"

func init() {
	plugin.Register(New)
}

type metric struct {
	kind      string
	collector prometheus.Collector
}

type metricsPlugin struct {
	registerer prometheus.Registerer

	lock    sync.Mutex
	metrics map[string]metric
}

// New returns the plugin using the default prometheus registerer
func New() plugin.Plugin {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer returns the plugin registering all metrics at reg
func NewWithRegisterer(reg prometheus.Registerer) plugin.Plugin {
	return &metricsPlugin{
		registerer: reg,
		metrics:    make(map[string]metric),
	}
}

func (p *metricsPlugin) Name() string { return Name }

func (p *metricsPlugin) OnLoad() error { return nil }

// OnUnload unregisters every metric created by a script
func (p *metricsPlugin) OnUnload() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	var errs []error
	for name, m := range p.metrics {
		if !p.registerer.Unregister(m.collector) {
			errs = append(errs, errors.New("metric "+name+" was not registered"))
		}
		delete(p.metrics, name)
	}

	return errors.Join(errs...)
}

func (p *metricsPlugin) ExportedFunctions(L *lua.LState) map[string]*lua.LFunction {
	registerCounterType(L)
	registerGaugeType(L)

	return map[string]*lua.LFunction{
		"prometheus_counter": L.NewFunction(p.createCounter),
		"prometheus_gauge":   L.NewFunction(p.createGauge),
		"prometheus_metric":  L.NewFunction(p.createMetric),
	}
}

// createMetric dispatches on the type field of the options table
func (p *metricsPlugin) createMetric(L *lua.LState) int {
	options := L.CheckTable(1)

	metricType, ok := options.RawGetString("type").(lua.LString)
	if !ok {
		L.ArgError(1, "metric type must be set to one of 'gauge', 'counter'")
		return 0
	}

	switch string(metricType) {
	case counterKind:
		return p.createCounter(L)
	case gaugeKind:
		return p.createGauge(L)
	}

	L.ArgError(1, "metric type must be set to one of 'gauge', 'counter'")
	return 0
}

// register registers c under name. If a script already created a metric
// of the same kind and name, that one is returned instead. Every Lua
// state sees the same metric that way
func (p *metricsPlugin) register(L *lua.LState, kind, name string, c prometheus.Collector) prometheus.Collector {
	p.lock.Lock()
	defer p.lock.Unlock()

	if existing, ok := p.metrics[name]; ok {
		if existing.kind != kind {
			L.RaiseError("metric %s already exists as a %s", name, existing.kind)
			return nil
		}
		return existing.collector
	}

	if err := p.registerer.Register(c); err != nil {
		L.RaiseError("failed to register metric %s: %s", name, err)
		return nil
	}

	p.metrics[name] = metric{kind: kind, collector: c}
	return c
}

func newMetricUserData(L *lua.LState, typeName string, value interface{}) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = value
	L.SetMetatable(ud, L.GetTypeMetatable(typeName))

	return ud
}

// compile time checks
var _ plugin.Plugin = &metricsPlugin{}
