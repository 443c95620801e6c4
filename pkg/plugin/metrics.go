package plugin

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	loadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "plugin_loads_total",
		Help: "total number of plugin load attempts by result",
	}, []string{"result"})

	unloadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "plugin_unloads_total",
		Help: "total number of plugin unload attempts by result",
	}, []string{"result"})

	pluginsLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "plugins_loaded",
		Help: "Current number of loaded plugins",
	})

	functionsRegistered = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "plugin_functions_registered",
		Help: "Current number of plugin functions installed across all environments",
	})
)

func init() {
	prometheus.MustRegister(loadsTotal, unloadsTotal, pluginsLoaded, functionsRegistered)
}

// resultLabel returns the metric label for the outcome of an operation
func resultLabel(err error) string {
	if err == nil {
		return "success"
	}

	if code := ErrorCode(err); code != "" {
		return strings.ToLower(code)
	}

	return "error"
}
