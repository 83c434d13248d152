package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// DefaultMaxUpload bounds the request body of POST /swap.
const DefaultMaxUpload = 32 << 20

// Config holds HTTP server configuration
type Config struct {
	Addr            string
	MaxUpload       int64
	ShutdownTimeout time.Duration
	AllowOrigin     string
}

// Server serves the face swap API.
type Server struct {
	config Config
	engine *gin.Engine
}

// New builds the router around svc.
func New(config Config, svc SwapService) *Server {
	if config.MaxUpload == 0 {
		config.MaxUpload = DefaultMaxUpload
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	e := gin.New()
	e.Use(gin.Recovery(), requestID(), accessLog(), cors(config.AllowOrigin))
	e.MaxMultipartMemory = config.MaxUpload

	h := NewSwapHandler(svc, config.MaxUpload)
	e.GET("/", h.Home)
	e.GET("/healthz", h.Health)
	e.POST("/swap", h.Swap)

	return &Server{config: config, engine: e}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens on the configured address until ctx is done, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.config.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
