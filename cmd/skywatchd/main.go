// Command skywatchd runs the pass prediction daemon: it keeps a target
// catalog, scans for upcoming passes in the background, and serves the
// JSON API plus the live streaming feeds.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/signalsfoundry/skywatch/internal/api"
	"github.com/signalsfoundry/skywatch/internal/config"
	"github.com/signalsfoundry/skywatch/internal/engine"
	"github.com/signalsfoundry/skywatch/internal/logging"
	"github.com/signalsfoundry/skywatch/internal/observability"
	"github.com/signalsfoundry/skywatch/internal/weather"
	"github.com/signalsfoundry/skywatch/kb"
	"github.com/signalsfoundry/skywatch/timectrl"
	"golang.org/x/time/rate"
)

func main() {
	configPath := flag.String("config", "", "Path to the TOML configuration file")
	listenAddr := flag.String("listen", "", "HTTP API listen address, overrides the config file")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus /metrics listen address, overrides the config file")
	catalogPath := flag.String("catalog", "", "Path to a JSON target catalog, overrides the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.NewFromEnv().Error(context.Background(), "invalid configuration", logging.String("error", err.Error()))
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.Server.Listen = *listenAddr
	}
	if *metricsAddr != "" {
		cfg.Server.MetricsListen = *metricsAddr
	}
	if *catalogPath != "" {
		cfg.Catalog.File = *catalogPath
	}

	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Warn(ctx, "tracing disabled", logging.String("error", err.Error()))
	}

	registry := prometheus.NewRegistry()
	apiCollector, err := observability.NewAPICollector(registry)
	if err != nil {
		log.Error(ctx, "failed to initialise API metrics", logging.String("error", err.Error()))
		os.Exit(1)
	}
	scanCollector, err := observability.NewScanCollector(registry)
	if err != nil {
		log.Error(ctx, "failed to initialise scan metrics", logging.String("error", err.Error()))
		os.Exit(1)
	}

	metricsSrv := serveMetrics(cfg.Server.MetricsListen, apiCollector, log)

	catalog := kb.NewTargetCatalog()
	loadCatalog(log, catalog, cfg.Catalog.File)

	state, err := engine.NewEngineState(cfg.Site(), catalog, log,
		engine.WithMetricsRecorder(apiCollector),
		engine.WithPassConfig(cfg.PassConfig()),
	)
	if err != nil {
		log.Error(ctx, "failed to initialise engine", logging.String("error", err.Error()))
		os.Exit(1)
	}

	provider := buildWeather(cfg.Weather)

	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()

	scanner := engine.NewScanner(state, log, engine.WithScanMetrics(scanCollector))
	unbind := scanner.Bind(runCtx)
	defer unbind()
	scanner.Rescan(runCtx)

	scheduler := timectrl.NewScheduler(timectrl.SystemClock{},
		timectrl.WithTaskObserver(scanCollector.ObserveTask))
	mustSchedule(log, scheduler, "live_refresh", cfg.Scan.LiveEvery.Duration, func(taskCtx context.Context, now time.Time) {
		state.RefreshLive(taskCtx, now)
	})
	mustSchedule(log, scheduler, "rescan", cfg.Scan.Every.Duration, func(taskCtx context.Context, now time.Time) {
		scanner.Rescan(taskCtx)
	})
	if cache, ok := provider.(*weather.Cache); ok && cfg.Weather.Refresh.Duration > 0 {
		mustSchedule(log, scheduler, "weather_refresh", cfg.Weather.Refresh.Duration, func(taskCtx context.Context, now time.Time) {
			if _, err := cache.CloudCover(taskCtx, state.Observer(), now); err != nil {
				log.Debug(taskCtx, "weather refresh failed", logging.String("error", err.Error()))
			}
			scanCollector.SetWeatherHitRatio(cache.HitRatio())
		})
	}
	go scheduler.Run(runCtx)

	serverOpts := []api.ServerOption{
		api.WithAPIMetrics(apiCollector),
		api.WithStreamInterval(cfg.Stream.Interval.Duration),
		api.WithStreamKeepalive(cfg.Stream.Keepalive.Duration),
		api.WithStreamLimiter(api.NewIPRateLimiter(rate.Limit(cfg.Stream.Rate), cfg.Stream.Burst)),
	}
	if provider != nil {
		serverOpts = append(serverOpts, api.WithWeather(provider))
	}
	apiSrv := api.NewServer(state, log, serverOpts...)

	// No WriteTimeout: the event streams hold their connections open
	// and manage deadlines per write.
	httpSrv := &http.Server{
		Addr:        cfg.Server.Listen,
		Handler:     apiSrv.Handler(),
		ReadTimeout: cfg.Server.ReadTimeout.Duration,
	}

	log.Info(ctx, "starting API server",
		logging.String("addr", cfg.Server.Listen),
		logging.Int("targets", catalog.Len()),
	)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "API server exited", logging.String("error", err.Error()))
		}
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	<-stopCtx.Done()

	log.Info(ctx, "shutting down")
	stopRun()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace.Duration)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	scanner.Wait()
	observability.ShutdownWithTimeout(shutdownCtx, shutdownTracing, log)
}

func serveMetrics(addr string, collector *observability.APICollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

func loadCatalog(log logging.Logger, catalog *kb.TargetCatalog, path string) {
	if path == "" {
		return
	}
	summary, err := kb.LoadCatalogFile(catalog, path)
	if err != nil {
		log.Warn(context.Background(), "skipping catalog load",
			logging.String("path", path),
			logging.String("error", err.Error()),
		)
		return
	}
	log.Info(context.Background(), "catalog loaded",
		logging.String("path", path),
		logging.Int("targets", len(summary.TargetIDs)),
	)
}

func buildWeather(cfg config.Weather) weather.Provider {
	switch cfg.Provider {
	case "http":
		return weather.NewCache(weather.NewHTTPProvider(cfg.URL), cfg.CacheTTL.Duration)
	case "static":
		return weather.StaticProvider{Pct: cfg.StaticPct}
	default:
		return nil
	}
}

func mustSchedule(log logging.Logger, s *timectrl.Scheduler, name string, interval time.Duration, fn func(context.Context, time.Time)) {
	if interval <= 0 {
		return
	}
	if err := s.Every(name, interval, fn); err != nil {
		log.Error(context.Background(), "failed to schedule task",
			logging.String("task", name),
			logging.String("error", err.Error()),
		)
		os.Exit(1)
	}
}
