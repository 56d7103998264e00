// Command planner is the process that runs the weekly planning pipeline
// on demand and drives the two background loops (C9's notification
// escalator, C11's suggestion janitor) that keep work sessions and
// reschedule suggestions current. It exposes only /health and /metrics
// as product-facing endpoints: per SPEC_FULL §6, no HTTP router or API
// surface is built out here, the way the teacher's control_plane/main.go
// builds out a full REST API — that layer is explicitly out of scope.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/humancompiler/planner/internal/config"
	"github.com/humancompiler/planner/internal/delivery"
	"github.com/humancompiler/planner/internal/domain"
	"github.com/humancompiler/planner/internal/escalator"
	"github.com/humancompiler/planner/internal/pipeline"
	"github.com/humancompiler/planner/internal/priority"
	"github.com/humancompiler/planner/internal/reschedule"
	"github.com/humancompiler/planner/internal/session"
	"github.com/humancompiler/planner/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := mustStore(ctx)
	cache := maybeRedisCache()
	oracle := buildOracle()
	tunables := mustTunables()

	coordinator := &pipeline.Coordinator{
		Store: s, Oracle: oracle, Cache: cache,
		MaxDayConcurrency: tunables.MaxDayConcurrency,
		WeeklyTimeout:     tunables.WeeklyTimeout,
		DailyTimeout:      tunables.DailyTimeout,
	}
	sessions := &session.Engine{Store: s}

	liveHub := delivery.NewLiveHub()
	pushSender := &delivery.PushSender{Store: s, Transport: &delivery.HTTPPushTransport{}}
	fabric := &delivery.Fabric{LiveHub: liveHub, PushSender: pushSender}

	esc := &escalator.Escalator{
		Store:    s,
		Sessions: sessions,
		Delivery: fabric,
		Interval: envDuration("ESCALATOR_INTERVAL", 60*time.Second),
	}
	esc.Start(ctx)

	// reschedEngine and coordinator have no transport calling them yet
	// (no HTTP API surface is in scope); both are live, tested units
	// that a future handler layer calls directly.
	reschedEngine := &reschedule.Engine{Store: s}
	_ = reschedEngine
	_ = coordinator
	janitor := &reschedule.Janitor{Store: s, Interval: envDuration("RESCHEDULE_JANITOR_INTERVAL", 5*time.Minute)}
	janitor.Start(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	fmt.Println("==================================================")
	fmt.Println("Weekly Planner")
	fmt.Println("==================================================")
	fmt.Printf("Escalator interval:  %s\n", esc.Interval)
	fmt.Printf("Janitor interval:    %s\n", janitor.Interval)
	fmt.Printf("Cache backend:       %s\n", cacheDescription(cache))
	fmt.Printf("Oracle backend:      %s\n", oracleDescription())
	fmt.Printf("Weekly/daily timeout: %s / %s\n", tunables.WeeklyTimeout, tunables.DailyTimeout)
	fmt.Printf("Max day concurrency: %d\n", tunables.MaxDayConcurrency)
	fmt.Println("==================================================")

	server := &http.Server{Addr: ":" + port, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("planner listening on :%s", port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("planner: serve: %v", err)
	}
}

// mustStore connects to Postgres when DATABASE_URL is set, otherwise
// falls back to the in-memory store for local development — the same
// memory/postgres split the teacher's control_plane/store package
// offers between MemoryStore and RedisStore.
func mustStore(ctx context.Context) domain.Store {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Println("DATABASE_URL not set, using in-memory store (data does not survive restart)")
		return store.NewMemoryStore()
	}
	pg, err := store.NewPostgresStore(ctx, dsn)
	if err != nil {
		log.Fatalf("planner: connect to postgres: %v", err)
	}
	log.Println("connected to postgres store")
	return pg
}

// maybeRedisCache wires the pipeline cache only when REDIS_ADDR is
// configured; a nil Cache is a valid Coordinator field (caching is
// opt-in per request via Request.EnableCaching).
func maybeRedisCache() pipeline.Cache {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	log.Printf("using redis cache at %s", addr)
	return pipeline.NewRedisCache(client)
}

// buildOracle assembles C4's full port stack: a bulkhead over a
// deadline-bound AI oracle, falling back to the deterministic scorer on
// any rate-limit, timeout, or transport failure. Without an API key the
// AI leg is skipped entirely and the deterministic scorer runs alone.
func buildOracle() priority.Oracle {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Println("OPENAI_API_KEY not set, priority oracle running in deterministic-only mode")
		return priority.FallbackOracle{}
	}
	ai := priority.NewAIOracle(apiKey, os.Getenv("OPENAI_MODEL"))
	timeout := priority.TimeoutOracle{Inner: ai, Timeout: envDuration("ORACLE_TIMEOUT", 10*time.Second)}
	rps := envFloat("ORACLE_RATE_LIMIT_RPS", 2)
	burst := int(envFloat("ORACLE_RATE_LIMIT_BURST", 4))
	return priority.NewBulkheadOracle(timeout, rps, burst)
}

// mustTunables loads the optional PLANNER_CONFIG_FILE YAML file (solver
// timeouts, daily concurrency cap), then lets PLANNER_* env vars
// override whatever it set, same precedence every other setting here
// follows.
func mustTunables() config.Tunables {
	t, err := config.Load(os.Getenv("PLANNER_CONFIG_FILE"))
	if err != nil {
		log.Fatalf("planner: load config file: %v", err)
	}
	return t.WithEnvOverrides(envDuration, envInt)
}

func cacheDescription(c pipeline.Cache) string {
	if c == nil {
		return "disabled"
	}
	return "redis"
}

func oracleDescription() string {
	if os.Getenv("OPENAI_API_KEY") == "" {
		return "deterministic"
	}
	return "openai (bulkhead + deterministic fallback)"
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		var f float64
		if _, err := fmt.Sscanf(v, "%f", &f); err == nil {
			return f
		}
	}
	return fallback
}
