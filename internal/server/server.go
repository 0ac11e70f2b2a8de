// Package server wires the analysis engine, its stores and the HTTP edge
// into one gin server.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/rcollins22/rugchekr/internal/analysis"
	"github.com/rcollins22/rugchekr/internal/circuitbreaker"
	"github.com/rcollins22/rugchekr/internal/config"
	"github.com/rcollins22/rugchekr/internal/explain"
	"github.com/rcollins22/rugchekr/internal/health"
	"github.com/rcollins22/rugchekr/internal/logging"
	"github.com/rcollins22/rugchekr/internal/metrics"
	"github.com/rcollins22/rugchekr/internal/preferences"
	"github.com/rcollins22/rugchekr/internal/providers"
	"github.com/rcollins22/rugchekr/internal/ratelimit"
	"github.com/rcollins22/rugchekr/internal/realtime"
	"github.com/rcollins22/rugchekr/internal/risk"
	"github.com/rcollins22/rugchekr/internal/security"
	"github.com/rcollins22/rugchekr/internal/validation"
)

// recentCapacity bounds the in-memory report store.
const recentCapacity = 1000

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg         *config.Config
	version     string
	logger      *slog.Logger
	db          *sql.DB
	cache       *analysis.RedisCache
	registry    *providers.Registry
	breaker     *circuitbreaker.Breaker
	service     *analysis.Service
	prefs       preferences.Store
	explainer   explain.Explainer
	realtimeHub *realtime.Hub
	rateLimiter *ratelimit.Limiter
	health      *health.Registry

	router       *gin.Engine
	httpSrv      *http.Server
	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run
	drainDelay   time.Duration

	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithProviders replaces the configured providers (for testing).
func WithProviders(ps ...providers.Provider) Option {
	return func(s *Server) {
		s.registry = providers.NewRegistry(ps...)
	}
}

// WithExplainer replaces the explanation client (for testing).
func WithExplainer(e explain.Explainer) Option {
	return func(s *Server) {
		s.explainer = e
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:        cfg,
		version:    "dev",
		breaker:    circuitbreaker.New(5, 30*time.Second),
		health:     health.NewRegistry(),
		drainDelay: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.New(cfg.LogLevel, cfg.LogFormat)
	}

	ctx := context.Background()

	if s.registry == nil {
		reg, err := providers.FromConfig(ctx, cfg, providers.Deps{Breaker: s.breaker}, s.logger)
		if err != nil {
			return nil, err
		}
		s.registry = reg
	}
	if cfg.IsProduction() {
		s.auditUpstreams(ctx)
	}

	var store analysis.Store
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		store = analysis.NewPostgresStore(db)
		s.prefs = preferences.NewPostgresStore(db)
		s.health.Register("database", health.Ping("database", db.PingContext))
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))
	} else {
		store = analysis.NewMemoryStore(recentCapacity)
		s.prefs = preferences.NewMemoryStore()
		s.logger.Info("using in-memory storage (data will not persist)")
	}

	if cfg.RedisURL != "" {
		cache, err := analysis.NewRedisCache(ctx, cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			s.logger.Warn("analysis cache disabled", "error", err)
		} else {
			s.cache = cache
			s.health.Register("cache", health.Ping("cache", cache.Ping))
			s.logger.Info("analysis cache enabled", "ttl", cfg.CacheTTL.String())
		}
	}

	s.realtimeHub = realtime.NewHub(logging.WithComponent(s.logger, "realtime"), cfg.AllowedOrigins...)

	s.service = analysis.NewService(s.registry.Providers(), cfg.HasExplorerKey(), cfg.AnalysisTimeout).
		WithScorer(risk.NewScorer().WithHighThreshold(cfg.RiskHighThreshold).WithMediumThreshold(cfg.RiskMediumThreshold)).
		WithStore(store).
		WithPublisher(s.realtimeHub)
	if s.cache != nil {
		s.service = s.service.WithCache(s.cache)
	}

	if s.explainer == nil {
		s.explainer = explain.NewClient(explain.Config{
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		}, nil)
	}

	s.health.Register("explorer", health.Required("explorer", cfg.HasExplorerKey(), "ETHERSCAN_API_KEY not set"))
	s.health.Register("providers", health.Breakers("providers", s.breaker))

	if !cfg.HasExplorerKey() {
		s.logger.Warn("ETHERSCAN_API_KEY not set; every analysis will fail with a configuration error")
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)
	return s, nil
}

// auditUpstreams warns about configured endpoints that resolve to private
// or loopback addresses. A self-hosted RPC node is legitimate, so nothing
// is refused.
func (s *Server) auditUpstreams(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	failed := security.CheckUpstreams(ctx, map[string]string{
		"ETHERSCAN_BASE_URL":   s.cfg.EtherscanBaseURL,
		"DEXSCREENER_BASE_URL": s.cfg.DexScreenerBaseURL,
		"GOPLUS_BASE_URL":      s.cfg.GoPlusBaseURL,
		"COINGECKO_BASE_URL":   s.cfg.CoinGeckoBaseURL,
		"BITQUERY_URL":         s.cfg.BitqueryURL,
		"OPENAI_BASE_URL":      s.cfg.OpenAIBaseURL,
		"RPC_URL":              s.cfg.RPCURL,
	})
	for name, err := range failed {
		s.logger.Warn("upstream endpoint is not public", "setting", name, "error", err)
	}
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	s.router.Use(security.HeadersMiddleware())
	s.router.Use(security.CORSMiddleware(s.cfg.AllowedOrigins))
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))
	s.router.Use(metrics.Middleware())
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger.With("request_id", requestID))
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
		}
		logger := logging.L(c.Request.Context())
		switch {
		case status >= 500:
			logger.Error("request completed", append(attrs, "client_ip", c.ClientIP())...)
		case status >= 400:
			logger.Warn("request completed", attrs...)
		default:
			logger.Info("request completed", attrs...)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())
	s.router.GET("/", s.infoHandler)

	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})

	s.rateLimiter = ratelimit.New(ratelimit.Config{
		RequestsPerMinute: s.cfg.RateLimitRPM,
		BurstSize:         max(1, s.cfg.RateLimitRPM/6),
		CleanupInterval:   time.Minute,
	})

	v1 := s.router.Group("/v1")
	v1.Use(validation.AddressParamMiddleware())
	v1.Use(s.rateLimiter.Middleware())

	analysis.NewHandler(s.service).RegisterRoutes(v1)
	explain.NewHandler(s.service, s.explainer, preferences.KeySource{Store: s.prefs}, s.cfg.OpenAIAPIKey).RegisterRoutes(v1)
	preferences.NewHandler(s.prefs).RegisterRoutes(v1)
	v1.GET("/feed/stats", s.feedStatsHandler)
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks"`
	Providers []string        `json:"providers"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	healthy, checks := s.health.CheckAll(c.Request.Context())

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   s.version,
		Checks:    checks,
		Providers: s.registry.Names(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "rugchekr",
		"version": s.version,
		"endpoints": []string{
			"GET /v1/analyze/:address",
			"POST /v1/analyze",
			"GET /v1/analyses",
			"GET /v1/analyses/:id",
			"POST /v1/explain/:address",
			"GET /v1/preferences",
			"PUT /v1/preferences",
			"GET /ws",
		},
	})
}

func (s *Server) feedStatsHandler(c *gin.Context) {
	resp := gin.H{"feed": s.realtimeHub.Stats()}
	if pg, ok := s.service.Store().(*analysis.PostgresStore); ok {
		counts, err := pg.CountByLevel(c.Request.Context())
		if err != nil {
			logging.L(c.Request.Context()).Warn("count analyses by level", "error", err)
		} else {
			resp["byLevel"] = counts
		}
	}
	c.JSON(http.StatusOK, resp)
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server and blocks until a signal, ctx cancellation
// or a listener error, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		// An analysis may take the whole deadline plus storage writes.
		WriteTimeout: s.cfg.AnalysisTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"providers", len(s.registry.Providers()),
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	go s.realtimeHub.Run(runCtx)

	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	// Give load balancers time to stop sending traffic
	time.Sleep(s.drainDelay)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	s.registry.Close()

	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Error("cache close error", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}
