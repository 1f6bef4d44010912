package api

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dealmungchi/dealextractor/internal/telemetry"
	"github.com/dealmungchi/dealextractor/logger"
)

// NewRouter builds the gin engine with middleware and routes
func NewRouter(h *Handler, metrics *telemetry.Metrics, debug bool) *gin.Engine {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	log := logger.ForServer()
	router := gin.New()

	// Recovery first to catch panics, then request id so later logs carry it
	router.Use(RecoveryMiddleware(log))
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(log, metrics))
	router.Use(CORSMiddleware())
	router.Use(BodyLimitMiddleware(MaxBodyBytes))

	router.GET("/health", h.Health)
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	api := router.Group("/api")
	{
		api.GET("/fetch-stores", h.FetchStores)
		api.POST("/extract-fb-data", h.ExtractFBData)
		api.POST("/upload-image", h.UploadImage)
		api.POST("/upload-deal", h.UploadDeal)
	}

	return router
}

// Server owns the HTTP listener
type Server struct {
	server *http.Server
	log    *logger.Logger
}

// NewServer wraps router in an http.Server listening on addr. Write timeout
// leaves room for a full capture plus OCR.
func NewServer(addr string, router http.Handler) *Server {
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      3 * time.Minute,
			IdleTimeout:       2 * time.Minute,
		},
		log: logger.ForServer(),
	}
}

// Start serves until Shutdown; it returns nil after a clean shutdown
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("HTTP server shutting down")
	return s.server.Shutdown(ctx)
}
