package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	jwttoken "onboard/internal/jwt_token"
	"onboard/internal/platform/config"
	"onboard/internal/platform/httpserver"
	"onboard/internal/platform/kafka"
	"onboard/internal/platform/logger"
	"onboard/internal/platform/metrics"
	"onboard/internal/platform/middleware"
	"onboard/internal/platform/objectstore"
	"onboard/internal/platform/postgres"
	"onboard/internal/platform/redis"
	"onboard/internal/profile/events"
	"onboard/internal/profile/handler"
	"onboard/internal/profile/service"
	"onboard/internal/profile/store"
	"onboard/internal/profile/validation"
	"onboard/internal/ratelimit"
	"onboard/pkg/platform/httputil"
)

// main wires infrastructure, exposes the HTTP router, and keeps the server
// lifecycle small. Business logic lives in internal service packages.
func main() {
	configPath := flag.String("config", os.Getenv("ONBOARD_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	infra, err := buildInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.close(log)

	engine := validation.Default()
	if cfg.Validation.RulesFile != "" {
		rules, err := validation.LoadRules(cfg.Validation.RulesFile)
		if err != nil {
			return err
		}
		if engine, err = validation.New(validation.WithRules(rules...)); err != nil {
			return err
		}
		log.Info("validation rules loaded", "count", len(rules))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	svc := service.New(infra.drafts, infra.profiles, infra.blobs, infra.publisher,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithEngine(engine),
	)
	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(log))
	r.Get("/health", healthHandler(infra.checks))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	var opts []handler.Option
	if cfg.RateLimit.UploadsPerWindow > 0 {
		limiter := ratelimit.New(infra.limits, cfg.RateLimit.UploadsPerWindow, cfg.RateLimit.Window,
			ratelimit.WithFallback(ratelimit.NewMemory()),
			ratelimit.WithMetrics(m),
			ratelimit.WithLogger(log),
		)
		opts = append(opts, handler.WithUploadLimit(limiter.PerOrganization("upload")))
	}
	handler.New(svc, log, m, jwttoken.NewJWTServiceAdapter(jwtService), opts...).Register(r)

	srv := httpserver.New(cfg.Server, r)
	return httpserver.Run(ctx, srv, cfg.Server.ShutdownTimeout, log)
}

type checker func(ctx context.Context) error

type infra struct {
	drafts    service.DraftStore
	profiles  service.ProfileStore
	blobs     service.BlobStore
	publisher service.Publisher
	limits    ratelimit.Store
	checks    map[string]checker
	closers   []func()
}

func (i *infra) close(log *slog.Logger) {
	for j := len(i.closers) - 1; j >= 0; j-- {
		i.closers[j]()
	}
	log.Info("infrastructure closed")
}

// buildInfra connects every configured backend and falls back to in-memory
// implementations for the rest.
func buildInfra(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	mem := store.NewMemory()
	out := &infra{drafts: mem, profiles: mem, limits: ratelimit.NewMemory(), checks: map[string]checker{}}
	fail := func(err error) (*infra, error) {
		out.close(log)
		return nil, err
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fail(err)
	}
	if rdb != nil {
		out.drafts = store.NewRedisDrafts(rdb.Client, cfg.Redis.DraftTTL)
		out.limits = ratelimit.NewRedis(rdb.Client)
		out.checks["redis"] = rdb.Health
		out.closers = append(out.closers, func() { _ = rdb.Close() })
		log.Info("drafts stored in redis", "ttl", cfg.Redis.DraftTTL)
	} else {
		log.Warn("redis not configured, drafts kept in memory")
	}

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return fail(err)
	}
	if db != nil {
		pg := store.NewPostgres(db.DB)
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return fail(err)
		}
		out.profiles = pg
		out.checks["postgres"] = db.Health
		out.closers = append(out.closers, func() { _ = db.Close() })
		log.Info("completed profiles stored in postgres")
	} else {
		log.Warn("postgres not configured, completed profiles kept in memory")
	}

	blobs, err := objectstore.New(cfg.ObjectStore)
	if err != nil {
		return fail(err)
	}
	if blobs != nil {
		if err := blobs.EnsureBucket(ctx); err != nil {
			return fail(err)
		}
		out.blobs = blobs
		out.checks["object_store"] = blobs.Health
		log.Info("documents stored in object store", "bucket", cfg.ObjectStore.Bucket)
	} else {
		out.blobs = objectstore.NewMemory()
		log.Warn("object store not configured, documents kept in memory")
	}

	producer, err := kafka.NewProducer(ctx, cfg.Kafka, log)
	if err != nil {
		return fail(err)
	}
	if producer != nil {
		if err := producer.EnsureTopic(ctx, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
			producer.Close(ctx)
			return fail(err)
		}
		publisher := events.NewKafka(producer, log)
		out.publisher = publisher
		out.checks["kafka"] = producer.Health
		out.checks["events"] = publisher.Health
		out.closers = append(out.closers, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			producer.Close(closeCtx)
		})
		log.Info("completion events published to kafka", "topic", producer.Topic())
	} else {
		out.publisher = events.NewMemory()
		log.Warn("kafka not configured, completion events kept in memory")
	}

	return out, nil
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
