package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	limiterstdlib "github.com/ulule/limiter/v3/drivers/middleware/stdlib"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lotwise/backend-lotwise/internal/analytics"
	"github.com/lotwise/backend-lotwise/internal/app"
	"github.com/lotwise/backend-lotwise/internal/auth"
	"github.com/lotwise/backend-lotwise/internal/common"
	"github.com/lotwise/backend-lotwise/internal/config"
	"github.com/lotwise/backend-lotwise/internal/db"
	"github.com/lotwise/backend-lotwise/internal/events"
	"github.com/lotwise/backend-lotwise/internal/health"
	httpmw "github.com/lotwise/backend-lotwise/internal/http/middleware"
	"github.com/lotwise/backend-lotwise/internal/lock"
	"github.com/lotwise/backend-lotwise/internal/notify"
	"github.com/lotwise/backend-lotwise/internal/obs"
	"github.com/lotwise/backend-lotwise/internal/parker"
	"github.com/lotwise/backend-lotwise/internal/security"
	"github.com/lotwise/backend-lotwise/internal/session"
	"github.com/lotwise/backend-lotwise/internal/settings"
	"github.com/lotwise/backend-lotwise/internal/tenant"
	"github.com/lotwise/backend-lotwise/internal/validation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "lotwise")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "lotwise-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	if envBool("DB_AUTO_MIGRATE", true) {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := app.NewPool(ctx, cfg, "lotwise-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	redisClient, err := app.NewRedis(ctx, cfg, metricsEnabled)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	taskClient, err := app.NewTaskClient(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise task client")
	}
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	validate := app.NewValidator()

	settingsSvc := &settings.Service{
		Store: settings.Store{Pool: pool},
		Cache: settings.NewCache(redisClient, cfg.SettingsCacheTTL),
	}
	settingsHandler := settings.NewHandler(settings.HandlerConfig{Service: settingsSvc, Validate: validate})

	parkerSvc := &parker.Service{Store: parker.Store{Pool: pool}}
	parkerHandler := &parker.Handler{Service: parkerSvc}

	dispatcher := &notify.Dispatcher{
		Store:       notify.PgStore{Pool: pool},
		Tasks:       taskClient,
		HTTP:        notify.HTTPClient(cfg.WebhookRequestTimeout),
		MaxAttempts: cfg.WebhookMaxAttempts,
		Enabled:     cfg.WebhookDeliveryEnabled,
		Replay:      notify.RedisReplayProtector{Client: redisClient},
		ReplayTTL:   cfg.WebhookReplayTTL,
	}
	bus := &events.Bus{
		Store:     events.Store{Pool: pool},
		Scheduler: dispatcher,
	}

	validationSvc := &validation.Service{Store: validation.Store{Pool: pool}}
	sessionSvc := &session.Service{
		Store:       session.Store{Pool: pool},
		Settings:    settingsSvc,
		Parkers:     parkerSvc,
		Validations: validationSvc,
		Lock:        lock.Locker{R: redisClient, RetryBackoff: cfg.LockRetryBackoff},
		Bus:         bus,
		LockTTL:     cfg.LockTTL,
	}
	validationSvc.Sessions = sessionSvc

	sessionHandler := &session.Handler{Service: sessionSvc}
	validationHandler := &validation.Handler{Service: validationSvc}

	authSvc, err := auth.NewService(auth.Config{
		Store:     auth.Store{Pool: pool},
		Secret:    []byte(cfg.JWTSecret),
		AccessTTL: cfg.AccessTokenTTL,
		Issuer:    "lotwise-api",
		Audience:  "lotwise",
		ClockSkew: 30 * time.Second,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authHandler := &auth.Handler{Service: authSvc}
	authMiddleware := auth.Middleware{Service: authSvc}

	analyticsSvc := &analytics.Service{
		Q:            analytics.PgQuerier{Pool: pool},
		R:            redisClient,
		TTL:          cfg.AnalyticsCacheTTL,
		DefaultRange: cfg.AnalyticsDefaultRange,
	}
	analyticsHandler := &analytics.Handler{Svc: analyticsSvc}

	notifyAdmin := &notify.AdminHandler{Store: notify.PgStore{Pool: pool}, Dispatcher: dispatcher}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	kioskLimiter, err := app.NewKioskLimiter(redisClient, cfg.KioskRateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise kiosk rate limiter")
	}
	kioskLimit := limiterstdlib.NewMiddleware(kioskLimiter)

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	resolver := tenant.NewResolver(cfg.TenantHeader, cfg.TenantRootDomain, cfg.DefaultTenant)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: true}.Middleware)
	r.Use(security.BodyLimit{Max: int64(envInt("SECURE_MAX_BODY_BYTES", 1<<20))}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", cfg.TenantHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", true) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: pool, redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(resolver.Middleware)
		v.Use(httpmw.RequireTenant)

		v.Route("/auth", func(a chi.Router) {
			a.Post("/login", authHandler.Login)
			a.With(authMiddleware.RequireAuth).Get("/me", authHandler.Me)
		})

		// Gate endpoints: kiosks scan plates without an operator session, so
		// these carry the per-IP rate limit instead of auth.
		v.Route("/sessions", func(s chi.Router) {
			s.Use(kioskLimit.Handler)
			s.With(idem.Middleware).Post("/", sessionHandler.Open)
			s.Get("/{id}", sessionHandler.Get)
			s.Get("/{id}/fee", sessionHandler.Fee)
			s.With(idem.Middleware).Post("/{id}/close", sessionHandler.Close)

			s.Group(func(op chi.Router) {
				op.Use(authMiddleware.RequireAuth)
				op.Get("/", sessionHandler.List)
				op.Post("/{id}/validations", validationHandler.Grant)
				op.Get("/{id}/validations", validationHandler.List)
				op.Delete("/{id}/validations/{validationId}", validationHandler.Revoke)
			})
		})

		v.Route("/parkers", func(p chi.Router) {
			p.Use(authMiddleware.RequireAuth)
			p.Get("/", parkerHandler.List)
			p.Post("/", parkerHandler.Create)
			p.Get("/lookup", parkerHandler.Lookup)
			p.Get("/{id}", parkerHandler.Get)
			p.Patch("/{id}", parkerHandler.Update)
			p.Delete("/{id}", parkerHandler.Delete)
		})

		v.Route("/settings", func(s chi.Router) {
			s.Use(authMiddleware.RequireAuth)
			s.Get("/rates", settingsHandler.GetRates)
			s.With(auth.RequireRole("admin")).Put("/rates", settingsHandler.PutRates)
			s.Get("/business", settingsHandler.GetBusiness)
			s.With(auth.RequireRole("admin")).Put("/business", settingsHandler.PutBusiness)
		})

		v.Route("/analytics", func(an chi.Router) {
			an.Use(authMiddleware.RequireAuth)
			an.Get("/revenue", analyticsHandler.Revenue)
			an.Get("/occupancy", analyticsHandler.Occupancy)
		})

		v.Route("/webhooks", func(wh chi.Router) {
			wh.Use(authMiddleware.RequireAuth)
			wh.Use(auth.RequireRole("admin"))
			wh.Get("/endpoints", notifyAdmin.ListEndpoints)
			wh.Post("/endpoints", notifyAdmin.CreateEndpoint)
			wh.Put("/endpoints/{id}", notifyAdmin.UpdateEndpoint)
			wh.Delete("/endpoints/{id}", notifyAdmin.DeleteEndpoint)
			wh.Get("/deliveries", notifyAdmin.ListDeliveries)
			wh.Post("/deliveries/{id}/replay", notifyAdmin.ReplayDelivery)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
