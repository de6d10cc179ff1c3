package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Domenick1991/ownbang/api"
	"github.com/Domenick1991/ownbang/api/middleware"
	"github.com/Domenick1991/ownbang/config"
	"github.com/Domenick1991/ownbang/internal/service/reservation"
	"github.com/Domenick1991/ownbang/internal/service/webrtc"
	"github.com/gin-gonic/gin"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

const swaggerJSONPath = "/swagger/reservations.swagger.json"

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

type Services struct {
	Reservations reservation.ReservationUseCase
	Webrtc       webrtc.WebrtcUseCase
	Health       map[string]HealthCheck
}

// Run serves the HTTP API and blocks until ctx is canceled or the server fails.
func Run(ctx context.Context, cfg *config.Config, svc Services, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           NewRouter(cfg, svc, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("address", cfg.HTTP.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		timeout := time.Duration(cfg.HTTP.ShutdownSeconds) * time.Second
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		logger.Info("http server stopped")
		return nil
	}
}

func NewRouter(cfg *config.Config, svc Services, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.Logger(logger))

	router.GET("/health", healthHandler(svc.Health))

	if cfg.HTTP.SwaggerDir != "" {
		router.Static("/swagger", cfg.HTTP.SwaggerDir)
	} else {
		router.GET(swaggerJSONPath, func(c *gin.Context) {
			c.Data(http.StatusOK, "application/json", api.SwaggerJSON)
		})
	}
	router.GET("/docs/*any", gin.WrapH(httpSwagger.Handler(httpSwagger.URL(swaggerJSONPath))))

	authed := router.Group("/", middleware.JWT(cfg.Auth.JWTSecret))
	api.NewReservationHandler(svc.Reservations, logger).Register(authed)
	api.NewWebrtcHandler(svc.Webrtc, logger).Register(authed)

	return router
}

func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		result := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				result[name] = err.Error()
				continue
			}
			result[name] = "ok"
		}
		c.JSON(status, gin.H{"success": status == http.StatusOK, "checks": result})
	}
}
