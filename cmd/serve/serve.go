// Package serve implements the long-running service mode: an HTTP status and
// metrics endpoint plus scheduled sync and import passes.
package serve

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/caselink/contactsync/internal/app"
	"github.com/caselink/contactsync/internal/conf"
	apperrors "github.com/caselink/contactsync/internal/errors"
	"github.com/caselink/contactsync/internal/logging"
	syncengine "github.com/caselink/contactsync/internal/sync"
)

var logger = logging.ForService("serve")

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		syncInterval   time.Duration
		importInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync service with an HTTP status endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(settings)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			e := newServer(a)

			if syncInterval > 0 {
				go runPeriodicSync(ctx, a, syncInterval)
			}
			if importInterval > 0 {
				go runPeriodicImport(ctx, a, importInterval)
			}

			addr := settings.HTTP.Host + ":" + settings.HTTP.Port
			go func() {
				logger.Info("status server listening", "addr", addr)
				if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("status server failed", "error", err)
					stop()
				}
			}()

			<-ctx.Done()
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return e.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().DurationVar(&syncInterval, "sync-interval", 0, "Run a sync pass at this interval (0 disables)")
	cmd.Flags().DurationVar(&importInterval, "import-interval", 0, "Run a communications import at this interval (0 disables)")

	return cmd
}

func newServer(a *app.App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		if err := a.Store.Ping(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"error":  err.Error(),
			})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	e.GET("/metrics", echo.WrapHandler(a.Metrics.Handler()))

	e.POST("/api/v1/sync", func(c echo.Context) error {
		opts := syncengine.Options{Mode: syncengine.ModeFull}
		if c.QueryParam("mode") == string(syncengine.ModeIncremental) {
			opts.Mode = syncengine.ModeIncremental
		}
		opts.DryRun = c.QueryParam("dry_run") == "true"

		// Runs detach from the request; poll the status endpoint for the
		// outcome. StartSync claims the running state before returning, so
		// concurrent requests get a conflict instead of a silent no-op.
		if err := a.Orchestrator.StartSync(context.Background(), opts); err != nil {
			if apperrors.IsCategory(err, apperrors.CategoryState) {
				return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
			}
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusAccepted, map[string]string{"status": "started"})
	})

	e.GET("/api/v1/sync/status", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"state":      a.Orchestrator.State(),
			"lastResult": a.Orchestrator.LastResult(),
		})
	})

	e.POST("/api/v1/import", func(c echo.Context) error {
		result, err := a.Importer.Import(c.Request().Context(), time.Time{})
		if err != nil {
			return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, result)
	})

	return e
}

func runPeriodicSync(ctx context.Context, a *app.App, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.Orchestrator.SyncContacts(ctx, syncengine.Options{Mode: syncengine.ModeIncremental}); err != nil {
				logger.Error("scheduled sync failed", "error", err)
			}
		}
	}
}

func runPeriodicImport(ctx context.Context, a *app.App, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.Importer.Import(ctx, time.Time{}); err != nil {
				logger.Error("scheduled import failed", "error", err)
			}
		}
	}
}
