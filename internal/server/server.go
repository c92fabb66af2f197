// Package server sets up the HTTP server with all routes.
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
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
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/minitoshi/scream/internal/cascade"
	"github.com/minitoshi/scream/internal/config"
	"github.com/minitoshi/scream/internal/guardian"
	"github.com/minitoshi/scream/internal/health"
	"github.com/minitoshi/scream/internal/ledger"
	"github.com/minitoshi/scream/internal/logging"
	"github.com/minitoshi/scream/internal/metrics"
	"github.com/minitoshi/scream/internal/notify"
	"github.com/minitoshi/scream/internal/protection"
	"github.com/minitoshi/scream/internal/realtime"
	"github.com/minitoshi/scream/internal/registry"
	"github.com/minitoshi/scream/internal/syncutil"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies.
type Server struct {
	cfg          *config.Config
	ledger       *ledger.Ledger
	protStore    protection.Store
	protService  *protection.Service
	regStore     registry.Store
	notifyStore  notify.Store
	dispatcher   *notify.Dispatcher
	executor     *cascade.Executor
	guardianMgr  *guardian.Manager
	realtimeHub  *realtime.Hub
	healthReg    *health.Registry
	db           *sql.DB // nil if using in-memory
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new server instance.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		logger:    logging.New(cfg.LogLevel, "json"),
		healthReg: health.NewRegistry(),
	}

	for _, opt := range opts {
		opt(s)
	}

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.ledger = ledger.New(ledger.NewPostgresStore(db))
		s.protStore = protection.NewPostgresStore(db)
		s.regStore = registry.NewPostgresStore(db)
		s.notifyStore = notify.NewPostgresStore(db)
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))

		s.healthReg.Register("database", func(ctx context.Context) health.Status {
			if err := db.PingContext(ctx); err != nil {
				return health.Status{Name: "database", Healthy: false, Detail: err.Error()}
			}
			return health.Status{Name: "database", Healthy: true}
		})
	} else {
		s.ledger = ledger.New(ledger.NewMemoryStore())
		s.protStore = protection.NewMemoryStore()
		s.regStore = registry.NewMemoryStore()
		s.notifyStore = notify.NewMemoryStore()
		s.logger.Info("using in-memory storage (data will not persist)")
	}

	s.dispatcher = notify.NewDispatcher(s.notifyStore, s.logger)
	s.realtimeHub = realtime.NewHub(s.logger)

	// Same-owner operations across the protection service and the cascade
	// executor serialize on one shared lock pool.
	locks := &syncutil.ShardedMutex{}
	publisher := &fanoutPublisher{targets: []cascade.Publisher{s.dispatcher, s.realtimeHub}}

	s.protService = protection.NewService(s.protStore, s.ledger, locks,
		protection.WithLogger(s.logger),
		protection.WithVaultReserve(cfg.VaultReserve),
		protection.WithPublisher(publisher),
	)
	s.executor = cascade.NewExecutor(s.ledger, s.protStore, s.regStore, locks,
		cascade.WithLogger(s.logger),
		cascade.WithKeepBack(cfg.SweepKeepBack),
		cascade.WithPublisher(publisher),
	)

	// Embedded guardian watching internal ledger balances.
	if len(cfg.GuardianWatch) > 0 {
		s.guardianMgr = guardian.NewManager(
			&guardian.LedgerSource{Ledger: s.ledger},
			&guardianAlerter{publisher: publisher},
			&executorTriggerer{executor: s.executor},
			s.logger,
		)
		s.logger.Info("embedded guardian configured", "wallets", len(cfg.GuardianWatch))
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// maskDSN hides password in connection string for logging.
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

// fanoutPublisher forwards each event to webhooks and realtime clients.
type fanoutPublisher struct {
	targets []cascade.Publisher
}

func (f *fanoutPublisher) Publish(ctx context.Context, eventType string, payload any) {
	for _, t := range f.targets {
		t.Publish(ctx, eventType, payload)
	}
}

// guardianAlerter forwards guardian alerts as threat_alert events.
type guardianAlerter struct {
	publisher cascade.Publisher
}

func (a *guardianAlerter) ThreatAlert(ctx context.Context, alert guardian.Alert) {
	a.publisher.Publish(ctx, string(notify.EventThreatAlert), map[string]any{
		"address":     alert.Address,
		"severity":    string(alert.Severity),
		"score":       float64(alert.Score),
		"delta":       alert.Delta,
		"newBalance":  alert.NewBalance,
		"dropPercent": alert.DropPercent,
		"outflows":    alert.Outflows,
		"at":          alert.At,
	})
}

// executorTriggerer lets the embedded guardian invoke the cascade in-process.
type executorTriggerer struct {
	executor *cascade.Executor
}

func (t *executorTriggerer) Trigger(ctx context.Context, owner string, secret []byte, aggressor string) error {
	_, err := t.executor.Execute(ctx, cascade.Request{
		Owner:     owner,
		Secret:    secret,
		Aggressor: aggressor,
	})
	return err
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	s.router.Use(metrics.GinMiddleware())
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
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

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
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

	// WebSocket for real-time streaming
	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})

	s.router.GET("/api", s.infoHandler)

	v1 := s.router.Group("/v1")

	protection.NewHandler(s.protService, s.logger).RegisterRoutes(v1)
	cascade.NewHandler(s.executor, s.logger).RegisterRoutes(v1)
	ledger.NewHandler(s.ledger, s.logger).RegisterRoutes(v1)
	registry.NewHandler(s.regStore, s.logger).RegisterRoutes(v1)
	notify.NewHandler(s.notifyStore, s.logger).RegisterRoutes(v1)

	v1.GET("/realtime/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.realtimeHub.Stats())
	})
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints.
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, checks := s.healthReg.CheckAll(ctx)

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    checks,
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
		"name":        "Scream",
		"description": "Duress-trigger wallet protection",
		"version":     "0.1.0",
		"guardian":    s.guardianMgr != nil,
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	// Cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	go s.realtimeHub.Run(runCtx)

	if s.guardianMgr != nil {
		for _, addr := range s.cfg.GuardianWatch {
			s.guardianMgr.Watch(runCtx, guardian.Config{
				Address:       addr,
				DropThreshold: s.cfg.GuardianDropThreshold,
				RapidWindow:   s.cfg.GuardianRapidWindow,
				RapidLimit:    s.cfg.GuardianRapidLimit,
				PollInterval:  s.cfg.GuardianPollInterval,
				AutoTrigger:   s.cfg.GuardianAutoTrigger,
				Aggressor:     s.cfg.GuardianAggressor,
				Secret:        s.cfg.GuardianSecret,
			})
		}
	}

	// Mark as ready after brief delay for startup.
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

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

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for all background goroutines (hub, guardian).
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	if s.guardianMgr != nil {
		s.guardianMgr.Wait()
		s.logger.Info("guardian stopped")
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

// Router returns the gin router for testing.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
