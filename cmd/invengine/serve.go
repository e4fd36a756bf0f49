package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/invengine/internal/api"
	"github.com/andresuchdata/invengine/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func serveCommand(rt *appState) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the analysis API over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "port",
				Usage:   "Port to listen on",
				EnvVars: []string{"SERVER_PORT"},
			},
			newDBFlag(),
		},
		Action: func(c *cli.Context) error {
			cfg := rt.cfg
			if cfg.Server.Mode == "debug" {
				gin.SetMode(gin.DebugMode)
			} else {
				gin.SetMode(gin.ReleaseMode)
			}

			if err := rt.Open(c.Context, c.Bool("with-db"), ""); err != nil {
				return err
			}

			router := api.NewRouter(&api.Services{
				AnalysisService: rt.service,
				ResolveSource:   rt.resolveSource,
			}, cfg.Server.AllowedOrigins)

			port := cfg.Server.Port
			if c.IsSet("port") {
				port = c.String("port")
			}
			srv := &http.Server{
				Addr:         ":" + port,
				Handler:      router,
				ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
				WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Log.Info().Str("port", port).Msg("Starting server")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)

			select {
			case err, ok := <-errCh:
				if ok {
					return err
				}
				return nil
			case <-quit:
			}
			logger.Log.Info().Msg("Shutting down server...")

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return err
			}
			logger.Log.Info().Msg("Server exiting")
			return nil
		},
	}
}
