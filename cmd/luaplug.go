package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin"
	"github.com/joho/godotenv"
	"github.com/ppacher/luaplug/pkg/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	// built-in plugins
	_ "github.com/ppacher/luaplug/pkg/bindings/json"
	_ "github.com/ppacher/luaplug/pkg/bindings/metrics/prometheus"
	_ "github.com/ppacher/luaplug/pkg/bindings/shell"
)

var configPath = kingpin.Flag("config", "Path to the configuration file").Short('c').Envar("LUAPLUG_CONFIG").String()
var pluginPaths = kingpin.Flag("plugins", "Path to a plugin file or directory to load on startup").Short('P').Strings()
var loadPaths = kingpin.Flag("lua-path", "Lua include paths").Short('p').Strings()
var namespace = kingpin.Flag("namespace", "Global table plugin functions are installed in").Envar("LUAPLUG_NAMESPACE").String()
var logLevel = kingpin.Flag("log-level", "Log level").Envar("LUAPLUG_LOG_LEVEL").String()
var metricsAddress = kingpin.Flag("metrics-address", "Address to serve prometheus metrics on").Envar("LUAPLUG_METRICS_ADDRESS").String()
var interactive = kingpin.Flag("interactive", "Read commands and lua from stdin").Short('i').Bool()
var filePath = kingpin.Arg("file", "Path to the file to execute").String()

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warn("failed to load .env file")
	}

	kingpin.Parse()

	cfg, err := loadConfig()
	if err != nil {
		logrus.Fatal(err)
	}

	level, _ := cfg.Level()
	logrus.SetLevel(level)

	log := logrus.StandardLogger()

	if cfg.MetricsAddress != "" {
		serveMetrics(cfg.MetricsAddress)
	}

	h, err := newHost(cfg, log)
	if err != nil {
		logrus.Fatal(err)
	}

	if err := h.start(context.Background()); err != nil {
		logrus.Fatal(err)
	}

	if *filePath != "" {
		if err := h.runFile(*filePath); err != nil {
			logrus.WithError(err).Errorf("failed to execute %s", *filePath)
		}
	}

	done := make(chan struct{})
	if *interactive {
		go func() {
			defer close(done)
			if err := h.console(os.Stdin, os.Stdout); err != nil {
				logrus.WithError(err).Error("console failed")
			}
		}()
	}

	exitSig := make(chan os.Signal, 1)
	signal.Notify(exitSig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

wait:
	for {
		select {
		case sig := <-exitSig:
			if sig == syscall.SIGHUP {
				logrus.Info("reloading plugins")
				if err := h.reload(); err != nil {
					logrus.WithError(err).Error("failed to reload plugins")
				}
				continue
			}
			break wait

		case <-done:
			break wait
		}
	}

	logrus.Info("shutting down")

	h.shutdown()

	logrus.Info("shutdown completed")
}

// loadConfig reads the configuration file, if any, and applies the
// command line flags on top
func loadConfig() (*config.Config, error) {
	cfg := config.Default()

	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return nil, err
		}
	}

	cfg.Merge(config.Config{
		PluginPaths:    *pluginPaths,
		LuaPaths:       *loadPaths,
		Namespace:      *namespace,
		LogLevel:       *logLevel,
		MetricsAddress: *metricsAddress,
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func serveMetrics(address string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		logrus.Infof("serving metrics on %s", address)
		if err := http.ListenAndServe(address, mux); err != nil {
			logrus.WithError(err).Error("metrics endpoint failed")
		}
	}()
}
