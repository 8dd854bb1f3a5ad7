package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/hostwatch/collector/internal/config"
	"github.com/hostwatch/collector/internal/metrics"
	"github.com/hostwatch/collector/internal/monitor"
	"github.com/hostwatch/collector/internal/pipeline"
	"github.com/hostwatch/collector/internal/ws"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	flags := pflag.NewFlagSet("collector", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "Path to an optional YAML config file")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Errorf("Collector failed: %v", err)
		logger.Sync()
		os.Exit(1)
	}
}

// newLogger builds a console logger on stderr. Stdout carries the event
// stream and nothing else.
func newLogger(level string) (*zap.SugaredLogger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	zcfg.Encoding = "console"
	zcfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	zcfg.Sampling = nil
	l, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

func run(cfg *config.Config, logger *zap.SugaredLogger) error {
	logger.Info("Collector starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	queue := pipeline.NewQueue(cfg.Queue.Capacity, logger)
	queue.SetDropLogInterval(cfg.Queue.DropLogInterval)
	queue.SetRecorder(m)

	agg := pipeline.NewAggregator(os.Stdout, logger)
	agg.SetRecorder(m)

	mon := monitor.NewMonitor(monitor.DefaultWatchers(logger), logger, cfg.Health.FailureThreshold)
	mon.SetRecorder(m)

	// Listeners outlive the watchers so the final drain stays observable;
	// they stop once the aggregator has returned.
	serveCtx, stopServing := context.WithCancel(context.Background())
	var servers sync.WaitGroup
	serve := func(name, addr string, handler http.Handler) {
		servers.Add(1)
		go func() {
			defer servers.Done()
			if err := ws.ListenAndServe(serveCtx, addr, handler, logger); err != nil {
				logger.Errorf("%s server error: %v", name, err)
			}
		}()
	}

	if cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		mux.Handle("/healthz", healthHandler(mon))
		serve("Metrics", cfg.Metrics.Listen, mux)
	}

	var broadcaster *ws.Broadcaster
	if cfg.Stream.Enabled() {
		broadcaster = ws.NewBroadcaster(cfg.Stream.MaxConnections, logger)
		agg.SetPublisher(broadcaster)

		mux := http.NewServeMux()
		ws.NewServer(broadcaster, cfg.Stream.AllowedOrigins, cfg.Stream.Token, logger).SetupRoutes(mux)
		serve("Live tail", cfg.Stream.Addr(), mux)
	}

	go func() {
		mon.Run(ctx, queue)
		queue.Close()
	}()

	stats, err := agg.Run(queue.Events())

	stop()
	if broadcaster != nil {
		broadcaster.Close()
	}
	stopServing()
	servers.Wait()

	var dropped uint64
	for _, n := range queue.Dropped() {
		dropped += n
	}
	logger.Infof("Collector stopped: %d events written, %d dropped, %d failed", stats.Written, dropped, stats.Failures())
	return err
}

type healthResponse struct {
	Healthy  bool                    `json:"healthy"`
	Watchers []monitor.WatcherHealth `json:"watchers"`
}

// healthHandler reports per-watcher health. It answers 503 while any
// watcher is degraded or has failed.
func healthHandler(mon *monitor.Monitor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Healthy:  mon.Healthy(),
			Watchers: mon.Health(),
		}
		w.Header().Set("Content-Type", "application/json")
		if !resp.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(resp)
	})
}
