package health

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server exposes the health endpoint under /api.
type Server struct {
	http   *http.Server
	logger *zap.Logger
}

func NewServer(addr string, db Database, gateway Gateway, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.SetTrustedProxies(nil)

	baseGroup := engine.Group("/api")
	RegisterRoutes(baseGroup, db, gateway)

	return &Server{
		http:   &http.Server{Addr: addr, Handler: engine},
		logger: logger,
	}
}

func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves in the background; a listen failure is logged.
func (s *Server) Start() {
	go func() {
		s.logger.Info("health server listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("health server stopped", zap.Error(err))
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
