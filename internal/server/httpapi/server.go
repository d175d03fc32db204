// Package httpapi exposes the services over HTTP using gin.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/securingai/internal/logging"
	"github.com/dmitrijs2005/securingai/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

// SessionResolver maps a session token to the alternative id it was issued
// for.
type SessionResolver interface {
	Resolve(token string) (string, error)
}

// Options carries the settings the HTTP layer needs beyond the services.
type Options struct {
	Address      string
	UploadBucket string
	// Environment "production" puts gin in release mode.
	Environment string
	// SecureCookie marks the session cookie Secure. Enable behind TLS.
	SecureCookie bool
	Registry     *prometheus.Registry
}

type HTTPServer struct {
	opts     Options
	services *services.Services
	sessions SessionResolver
	logger   logging.Logger
	metrics  *HTTPMetrics
	engine   *gin.Engine
}

func NewHTTPServer(opts Options, l logging.Logger, svc *services.Services, sessions SessionResolver) (*HTTPServer, error) {
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	metrics, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: opts.Registry})
	if err != nil {
		return nil, err
	}

	s := &HTTPServer{
		opts:     opts,
		services: svc,
		sessions: sessions,
		logger:   l.With("module", "http_server"),
		metrics:  metrics,
	}
	s.engine = s.routes()
	return s, nil
}

// Handler returns the fully wired gin engine.
func (s *HTTPServer) Handler() http.Handler {
	return s.engine
}

func (s *HTTPServer) routes() *gin.Engine {
	if s.opts.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), TraceID(), s.metrics.Handler(), RequestLogger(s.logger))

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Registry, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	api.GET("/hello", s.hello)
	api.GET("/foo", s.bar)
	api.POST("/foo", s.echo)
	api.POST("/user", s.register)
	api.POST("/auth/login", s.login)

	authed := api.Group("", s.requireSession())
	authed.POST("/auth/logout", s.logout)
	authed.GET("/world", s.world)
	authed.POST("/user/password", s.changePassword)
	authed.DELETE("/user", s.deleteUser)
	authed.POST("/upload", s.upload)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Address,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.opts.Address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
