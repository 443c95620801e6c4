package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	lua "github.com/yuin/gopher-lua"
)

const counterKind = "counter"

// promCounterTypeName is the name for prometheus counter types
const promCounterTypeName = "prometheus_counter"

// promCounterTypeAPI holds the API definition of lua objects of
// type prometheus_counter
var promCounterTypeAPI = map[string]lua.LGFunction{
	"inc": counterInc,
	"add": counterAdd,
}

func registerCounterType(L *lua.LState) {
	typeTable := L.NewTypeMetatable(promCounterTypeName)
	L.SetField(typeTable, "__index", L.SetFuncs(L.NewTable(), promCounterTypeAPI))
}

// createCounter creates a new prometheus counter object
func (p *metricsPlugin) createCounter(L *lua.LState) int {
	opts := prometheus.Opts{}
	name := getCommonMetricOpts(L, L.CheckTable(1), &opts)

	counter := p.register(L, counterKind, name, prometheus.NewCounter(prometheus.CounterOpts(opts)))

	L.Push(newMetricUserData(L, promCounterTypeName, counter))
	return 1
}

func checkCounter(L *lua.LState, arg int) prometheus.Counter {
	ud := L.CheckUserData(arg)
	if c, ok := ud.Value.(prometheus.Counter); ok {
		return c
	}

	L.ArgError(arg, "Expected a "+promCounterTypeName)
	return nil
}

func counterInc(L *lua.LState) int {
	c := checkCounter(L, 1)
	c.Inc()
	return 0
}

func counterAdd(L *lua.LState) int {
	c := checkCounter(L, 1)
	n := L.CheckNumber(2)

	if n < 0 {
		L.ArgError(2, "counters can only increase")
		return 0
	}

	c.Add(float64(n))
	return 0
}
