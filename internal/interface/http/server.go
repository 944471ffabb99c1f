// Package http implements the LearnHub REST API on top of gin.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alem-hub/learnhub/internal/application/command"
	"github.com/alem-hub/learnhub/internal/application/query"
	"github.com/alem-hub/learnhub/internal/domain/shared"
	"github.com/alem-hub/learnhub/internal/interface/http/health"
	"github.com/alem-hub/learnhub/pkg/logger"
)

// Config is the listener and middleware configuration of the API server.
type Config struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	// AllowedOrigins feeds CORS; "*" allows any origin.
	AllowedOrigins []string
	// RateLimitPerMinute is per client IP; 0 turns limiting off.
	RateLimitPerMinute int
	// TrustedProxies are allowed to set X-Forwarded-For.
	TrustedProxies []string

	Version string
	Debug   bool
}

// DefaultConfig mirrors the HTTP_* defaults of the config package.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		IdleTimeout:        time.Minute,
		MaxHeaderBytes:     1 << 20,
		AllowedOrigins:     []string{"*"},
		RateLimitPerMinute: 120,
	}
}

// Address is host:port.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// TokenValidator resolves a bearer token to the user it was issued for.
type TokenValidator interface {
	Validate(token string) (shared.UserID, error)
}

// RateLimiter counts requests per client key.
// Allow reports whether the request fits and, if not, when to retry.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// Dependencies are the application handlers the routes delegate to.
type Dependencies struct {
	// Write side
	UpdateProgress *command.UpdateProgressHandler
	SubmitLesson   *command.SubmitLessonHandler
	PurchaseCourse *command.PurchaseCourseHandler
	Auth           *command.AuthHandler
	UpdateProfile  *command.UpdateProfileHandler

	// Read side
	Access        *query.AccessResolver
	Catalog       *query.CatalogViews
	ListPurchases *query.ListPurchasesHandler
	CheckPurchase *query.CheckPurchaseHandler
	GetProfile    *query.GetProfileHandler

	Tokens TokenValidator

	// RateLimiter replaces the in-memory limiter, e.g. with the Redis one.
	RateLimiter RateLimiter

	Logger        *logger.Logger
	HealthChecker health.Checker
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server is the gin engine plus the net/http server that runs it.
type Server struct {
	config     Config
	deps       Dependencies
	httpServer *http.Server
	router     *gin.Engine
	logger     *logger.Logger

	rateLimiter RateLimiter
	running     atomic.Bool
}

// NewServer builds the router. Missing logger and health checker fall back
// to defaults; the in-memory limiter is used unless deps carry a shared one.
func NewServer(config Config, deps Dependencies) *Server {
	if config.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config: config,
		deps:   deps,
		router: gin.New(),
		logger: deps.Logger,
	}

	if s.logger == nil {
		s.logger = logger.Default()
	}
	if s.deps.HealthChecker == nil {
		s.deps.HealthChecker = health.NewStatic(s.config.Version)
	}

	if config.RateLimitPerMinute > 0 {
		s.rateLimiter = deps.RateLimiter
		if s.rateLimiter == nil {
			s.rateLimiter = newMemoryRateLimiter(config.RateLimitPerMinute, time.Minute)
		}
	}

	_ = s.router.SetTrustedProxies(config.TrustedProxies)
	s.router.HandleMethodNotAllowed = true

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           config.Address(),
		Handler:        s.router,
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start blocks serving HTTP until Shutdown. It fails if called twice.
func (s *Server) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("http: server already running")
	}

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Address()))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http: listen: %w", err)
	}
	return nil
}

// StartAsync runs Start in a goroutine. The channel yields at most one
// error and is closed when the server stops.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.Start(); err != nil {
			errCh <- err
		}
	}()
	return errCh
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
