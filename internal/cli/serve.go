package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"logsift/internal/config"
	"logsift/internal/controller"
	"logsift/internal/handler"
	"logsift/internal/model"
	"logsift/pkg/mcp"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func settingsFrom(cfg *config.Config) controller.Settings {
	return controller.Settings{
		Threshold:     cfg.Score.Threshold,
		TopK:          cfg.Score.TopK,
		Workers:       cfg.App.Workers,
		Tiers:         model.Tiers{Moderate: cfg.Report.Moderate, Severe: cfg.Report.Severe},
		PollInterval:  cfg.Watch.PollInterval,
		Dedup:         cfg.Watch.Dedup,
		DedupCapacity: cfg.Watch.DedupCapacity,
		DedupFPRate:   cfg.Watch.DedupFPRate,
		WatchRoot:     cfg.Watch.Root,
	}
}

func newServeCmd(a *app) *cobra.Command {
	var (
		port    int
		mcpPort int
		noMCP   bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API, anomaly stream and MCP tools",
		Long:  "Load the model once and serve scoring over HTTP: a REST API with a websocket anomaly stream and Prometheus metrics on --port, and MCP tools on --mcp-port. Threshold and tier changes in the config file are applied without a restart.",
		Example: `  logsift serve --config logsift.yaml
  logsift serve --port 9000 --no-mcp`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			if cmd.Flags().Changed("mcp-port") {
				a.cfg.Server.MCPPort = mcpPort
			}

			engine, err := a.loadEngine()
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			var j controller.Journal
			jr, err := a.openJournal(ctx)
			if err != nil {
				return err
			}
			if jr != nil {
				defer jr.Close()
				j = jr
			}

			anomalyController := controller.NewAnomalyController(engine, j, settingsFrom(a.cfg), a.logger)
			a.loader.Watch(func(cfg *config.Config) {
				a.applyGlobalFlags(cfg)
				anomalyController.UpdateSettings(settingsFrom(cfg))
			}, func(err error) {
				a.logger.Warn("Ignoring invalid config change", zap.Error(err))
			})

			router := handler.SetupRouter(anomalyController, a.logger)
			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gCtx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.logger.Info("HTTP server listening", zap.String("address", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("HTTP server failed: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gCtx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			if !noMCP {
				mcpServer := mcp.NewAnomalyServer(engine, func() model.Tiers {
					return anomalyController.Settings().Tiers
				}, a.logger)
				g.Go(func() error {
					return mcpServer.ListenAndServe(gCtx, fmt.Sprintf(":%d", a.cfg.Server.MCPPort))
				})
			}

			err = g.Wait()
			a.logger.Info("Server stopped")
			return err
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "REST API port")
	cmd.Flags().IntVar(&mcpPort, "mcp-port", 8081, "MCP port")
	cmd.Flags().BoolVar(&noMCP, "no-mcp", false, "do not start the MCP server")
	return cmd
}
