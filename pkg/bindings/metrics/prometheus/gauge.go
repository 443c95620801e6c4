package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	lua "github.com/yuin/gopher-lua"
)

const gaugeKind = "gauge"

// promGaugeName is the name for prometheus gauge types
const promGaugeName = "prometheus_gauge"

// promGaugeAPI holds the API definition of lua objects of
// type prometheus_gauge
var promGaugeAPI = map[string]lua.LGFunction{
	"inc": gaugeInc,
	"dec": gaugeDec,
	"set": gaugeSet,
	"add": gaugeAdd,
}

func registerGaugeType(L *lua.LState) {
	typeTable := L.NewTypeMetatable(promGaugeName)
	L.SetField(typeTable, "__index", L.SetFuncs(L.NewTable(), promGaugeAPI))
}

// createGauge creates a new prometheus gauge object
func (p *metricsPlugin) createGauge(L *lua.LState) int {
	opts := prometheus.Opts{}
	name := getCommonMetricOpts(L, L.CheckTable(1), &opts)

	gauge := p.register(L, gaugeKind, name, prometheus.NewGauge(prometheus.GaugeOpts(opts)))

	L.Push(newMetricUserData(L, promGaugeName, gauge))
	return 1
}

func checkGauge(L *lua.LState, arg int) prometheus.Gauge {
	ud := L.CheckUserData(arg)
	if c, ok := ud.Value.(prometheus.Gauge); ok {
		return c
	}

	L.ArgError(arg, "Expected a "+promGaugeName)
	return nil
}

func gaugeAdd(L *lua.LState) int {
	g := checkGauge(L, 1)
	n := L.CheckNumber(2)

	g.Add(float64(n))

	return 0
}

func gaugeInc(L *lua.LState) int {
	g := checkGauge(L, 1)
	g.Inc()

	return 0
}

func gaugeDec(L *lua.LState) int {
	g := checkGauge(L, 1)
	g.Dec()

	return 0
}

func gaugeSet(L *lua.LState) int {
	g := checkGauge(L, 1)
	n := L.CheckNumber(2)

	g.Set(float64(n))

	return 0
}
