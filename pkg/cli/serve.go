package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagrelease/pkg/cli/config"
	controller "github.com/m-mizutani/tagrelease/pkg/controller/http"
	"github.com/m-mizutani/tagrelease/pkg/domain/types"
	"github.com/m-mizutani/tagrelease/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var (
		serverCfg config.Server
		cfg       pipelineConfig
	)

	flags := append(serverCfg.Flags(), cfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server receiving tag push webhooks",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			if cfg.github.WebhookSecret == "" {
				return goerr.New("webhook secret is required (--github-webhook-secret)", goerr.T(types.ErrInvalidConfig))
			}
			allowed, err := usecase.ParseRepositories(serverCfg.AllowedRepositories)
			if err != nil {
				return err
			}

			comp, err := cfg.wire(ctx, markerFromGitHub)
			if err != nil {
				return err
			}
			defer comp.Close()

			logger.Info("Starting tagrelease server",
				slog.String("addr", serverCfg.Addr),
				slog.Int("platforms", len(comp.def.Platforms)),
				slog.Int("allowed_repositories", len(allowed)),
			)

			// Every delivery is built from its own checkout of the pushed tag
			pipeline, err := cfg.workspacePipeline(comp)
			if err != nil {
				return err
			}
			webhookUC := usecase.NewWebhook(pipeline, usecase.WithAllowedRepositories(allowed...))

			// Create HTTP server with options
			server, err := controller.NewServer(
				ctx,
				webhookUC,
				controller.WithAddr(serverCfg.Addr),
				controller.WithWebhookSecret(cfg.github.WebhookSecret),
				controller.WithDeliveryTTL(serverCfg.DeliveryTTL),
				controller.WithRunRepository(comp.runs),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create HTTP server")
			}

			// Start server in goroutine
			go func() {
				logger.Info("HTTP server starting", slog.String("addr", serverCfg.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("HTTP server error", slog.Any("error", err))
				}
			}()

			// Wait for interrupt signal
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			select {
			case <-ctx.Done():
				logger.Info("Context cancelled, shutting down...")
			case sig := <-sigChan:
				logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
			}

			// Graceful shutdown
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			logger.Info("Server shutdown complete")
			return nil
		},
	}
}
