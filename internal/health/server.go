package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"squash-booking-bot/internal/config"
	"squash-booking-bot/pkg/logg"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Server answers the hosting platform's liveness probe. It has no
// interaction with booking state.
type Server struct {
	logger *zap.Logger
	server *http.Server
}

type Params struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
}

func NewServer(params Params) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Server{
		logger: params.Logger.With(zap.String(logg.Layer, "HealthServer")),
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", params.Config.HealthConfig.Port),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func (s *Server) Start() {
	go func() {
		s.logger.Info("Health server listening", zap.String("addr", s.server.Addr))

		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Health server stopped", zap.Error(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
