// Command dispatchd is a minimal long-running host process demonstrating
// config loading, a PoolExecutor, the Prometheus exporter, the debug HTTP
// surface, and the process-wide "main executor" handle described in
// SPEC_FULL.md §3.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dispatchkit/dispatch/core"
	"github.com/dispatchkit/dispatch/internal/httpapi"
	dispatchprom "github.com/dispatchkit/dispatch/observability/prometheus"
	"github.com/joho/godotenv"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const heartbeatInterval = 30 * time.Second

func main() {
	envFile := flag.String("env-file", ".env", "optional .env file to load before parsing environment overrides")
	configFile := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("dispatchd: not loading %s: %v", *envFile, err)
	}

	cfg, err := core.Load(*configFile)
	if err != nil {
		log.Fatalf("dispatchd: config load failed: %v", err)
	}

	registry := prom.NewRegistry()
	exporter, err := dispatchprom.NewMetricsExporter("dispatch", registry, dispatchprom.ExporterOptions{})
	if err != nil {
		log.Fatalf("dispatchd: metrics exporter init failed: %v", err)
	}

	var breaker *core.CircuitBreaker
	rejected := core.DefaultRejectedTaskHandler{}
	if cfg.BreakerMaxConsecutiveFailures > 0 {
		breaker = core.NewCircuitBreaker("dispatchd-pool", core.BreakerConfig{
			MaxConsecutiveFailures: cfg.BreakerMaxConsecutiveFailures,
			CooldownWindow:         cfg.BreakerCooldown,
		}, rejected)
	}

	pool := core.NewPoolExecutor("dispatchd-pool", cfg.PoolSize,
		core.WithMetrics(exporter),
		core.WithHistoryCapacity(cfg.HistoryCapacity),
	)
	core.SetMain(pool)

	mux := httpapi.NewServer(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.AddPool("dispatchd-pool", pool)

	var srv *http.Server
	if cfg.DebugListenAddr != "" {
		srv = &http.Server{Addr: cfg.DebugListenAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("dispatchd: debug http server exited: %v", err)
			}
		}()
		log.Printf("dispatchd: debug http listening on %s", cfg.DebugListenAddr)
	}

	submit := func(fn core.Task) core.TaskID {
		if breaker != nil {
			wrapped, ok := breaker.Guard(core.DefaultTaskTraits(), fn)
			if !ok {
				return core.NullTaskID
			}
			fn = wrapped
		}
		return pool.Async(fn, core.DefaultTaskTraits())
	}
	heartbeat := core.PostRepeatingTask(pool, heartbeatInterval, core.TraitsBestEffort(), func(ctx context.Context) {
		submit(func(context.Context) {
			log.Printf("dispatchd: heartbeat — %+v", pool.Stats())
		})
	})
	defer heartbeat.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Println("dispatchd: shutting down")
	if srv != nil {
		_ = srv.Close()
	}
	if err := pool.FlushAndTeardown(context.Background()); err != nil {
		log.Printf("dispatchd: flush during teardown failed: %v", err)
	}
}

