package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitediscovery/internal/api"
	"github.com/JakeFAU/sitediscovery/internal/app"
	"github.com/JakeFAU/sitediscovery/internal/ratelimit"
)

const shutdownTimeout = 10 * time.Second

// newServeCmd creates the 'serve' subcommand.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves the discovery manifest over HTTP",
		Long: `Starts an HTTP server that runs discovery on every GET /v1/discovery
request. /healthz, /readyz and /metrics are always available.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), appInstance)
		},
	}
	cmd.Flags().Int("port", 8080, "HTTP listen port")
	cmd.Flags().String("api-key", "", "require this key on /v1 routes (X-API-Key header or api_key query)")
	return cmd
}

func runServe(ctx context.Context, a *app.App) error {
	cfg := a.GetConfig()
	logger := a.GetLogger()

	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.Server.RateLimitRPS,
		DefaultBurst: cfg.Server.RateLimitBurst,
	})
	apiServer := api.NewServer(a.GetDiscovery(), limiter, api.Config{
		APIKey:          cfg.Server.APIKey,
		UseDataProperty: cfg.Output.UseDataProperty,
	}, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("http server stopped")
	return nil
}
