package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lcoppola/dropforward/internal/logging"
	"github.com/lcoppola/dropforward/internal/pipeline"
	"github.com/lcoppola/dropforward/internal/token"
)

// Authorizer drives the interactive OAuth handoff.
type Authorizer interface {
	AuthURL() string
	Exchange(ctx context.Context, code string) (*token.Record, error)
}

// PollTrigger starts one poll run on behalf of a webhook notification.
type PollTrigger func(ctx context.Context) ([]pipeline.Result, error)

// Options configures the HTTP front door.
type Options struct {
	// Addr is the listen address.
	Addr string

	// APIKey guards the ping endpoint. Empty disables the endpoint.
	APIKey string

	// AppSecret signs webhook notifications.
	AppSecret string

	// Version is reported by the ping endpoint.
	Version string

	// RunTimeout bounds a webhook-triggered poll run.
	RunTimeout time.Duration
}

// Server is the HTTP front door: OAuth redirect handoff, provider webhook,
// health, and metrics.
type Server struct {
	opts       Options
	authorizer Authorizer
	trigger    PollTrigger
	metrics    http.Handler
	logger     *slog.Logger
	httpServer *http.Server
}

// New assembles the router. metricsHandler may be nil when no metrics
// endpoint is exposed; trigger may be nil when webhook-triggered polling is
// not wanted.
func New(opts Options, authorizer Authorizer, trigger PollTrigger, metricsHandler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		opts:       opts,
		authorizer: authorizer,
		trigger:    trigger,
		metrics:    metricsHandler,
		logger:     logging.WithComponent(logger, "server"),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/healthz", s.handleHealth)
	if opts.APIKey != "" {
		router.GET("/ping", s.requireAPIKey(), s.handlePing)
	}
	router.GET("/api/dropbox-sso-callback", s.handleSSOCallback)
	router.GET("/api/dropbox-webhook", s.handleWebhookChallenge)
	router.POST("/api/dropbox-webhook", s.handleWebhookNotify)
	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks serving requests until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", slog.String("addr", s.opts.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// requestLogger logs one line per request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request handled",
			slog.String("method", c.Request.Method),
			logging.Path(c.Request.URL.Path),
			slog.Int("code", c.Writer.Status()),
			slog.Duration(logging.KeyDuration, time.Since(start)),
		)
	}
}

// requireAPIKey rejects requests whose X-Api-Key header does not match the
// configured key.
func (s *Server) requireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Api-Key") != s.opts.APIKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}
		c.Next()
	}
}
