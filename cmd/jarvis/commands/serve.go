package commands

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
	"go.uber.org/zap"

	"github.com/jarvis-assistant/host/internal/api"
	"github.com/jarvis-assistant/host/internal/websocket"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the WebSocket server for networked devices",
	Long: `Run the WebSocket server for networked devices.

Devices connect to /ws, send JSON commands as text messages and audio as
binary messages (JAUD frames or raw s16le PCM). The server also exposes
/health and /api/v1/devices.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("host") {
			cfg.Server.Host = serveHost
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, err := cfg.Log.NewLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pipeline, cleanup, err := buildPipeline(ctx, cfg, logger)
		defer cleanup()
		if err != nil {
			return err
		}

		// Create Echo instance
		e := echo.New()
		e.HideBanner = true

		// Middleware
		e.Use(middleware.Logger())
		e.Use(middleware.Recover())
		e.Use(middleware.CORS())

		hub := websocket.NewHub(pipeline, logger)
		go hub.Run(ctx)

		api.InitRoutes(e, hub, logger)

		errCh := make(chan error, 1)
		go func() {
			if err := e.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		logger.Info("Server started",
			zap.String("addr", cfg.Server.Addr()),
			zap.Int("sampleRate", cfg.Audio.SampleRate))

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info("Server is shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := e.Shutdown(shutdownCtx); err != nil {
			return err
		}

		logger.Info("Server exited")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen address (default from config, 0.0.0.0)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default from config, 8765)")
}
