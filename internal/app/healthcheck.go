package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/inworld-ai/living-memories-unity-sub003/internal/executor"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// healthServer builds the echo instance serving /health.
func (a *App) healthServer(exec *executor.Executor) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.GET("/health", func(c echo.Context) error {
		a.logger.Debug("Health check endpoint hit.", "remote_addr", c.RealIP(), "path", c.Path())
		return c.JSON(http.StatusOK, map[string]string{"status": exec.Status().String()})
	})
	return e
}

// startHealthcheckServer serves /health until the returned stop is called.
func (a *App) startHealthcheckServer(ctx context.Context, port int, exec *executor.Executor) (stop func()) {
	a.logger.Debug("Configuring health check server.")
	e := a.healthServer(exec)
	addr := fmt.Sprintf(":%d", port)

	go func() {
		a.logger.Info("Health check server starting.", "address", fmt.Sprintf("http://localhost%s/health", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Health check server failed unexpectedly.", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("Health check server shutdown failed.", "error", err)
			return
		}
		a.logger.Debug("Health check server shut down gracefully.")
	}
}
