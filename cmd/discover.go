package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitediscovery/internal/app"
	"github.com/JakeFAU/sitediscovery/internal/lld"
	"github.com/JakeFAU/sitediscovery/internal/metrics"
)

// newDiscoverCmd creates the 'discover' subcommand, which is also what the
// root command runs when no subcommand is given.
func newDiscoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Scans web server configuration once and emits the manifest",
		Args:  cobra.NoArgs,
		RunE:  runDiscoverCommand,
	}
}

func runDiscoverCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	return runDiscover(cmd.Context(), appInstance, cmd.OutOrStdout())
}

func runDiscover(ctx context.Context, a *app.App, stdout io.Writer) error {
	cfg := a.GetConfig()
	logger := a.GetLogger()

	res, err := a.GetDiscovery().Run(ctx)
	if err != nil {
		writeMetricsTextfile(cfg.Metrics.Textfile, logger)
		return fmt.Errorf("run discovery: %w", err)
	}

	body, err := lld.Encode(res.Sites, cfg.Output.UseDataProperty)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	body = append(body, '\n')

	if store := a.GetStore(); store != nil {
		if _, err := store.Put(ctx, filepath.Base(cfg.Output.File), body); err != nil {
			return fmt.Errorf("write manifest: %w", err)
		}
	} else if _, err := stdout.Write(body); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	writeMetricsTextfile(cfg.Metrics.Textfile, logger)
	return nil
}

// writeMetricsTextfile is best effort: a failed export must not hide the
// manifest or the discovery error.
func writeMetricsTextfile(path string, logger *zap.Logger) {
	if path == "" {
		return
	}
	if err := metrics.WriteTextfile(path); err != nil {
		logger.Warn("failed to write metrics textfile", zap.String("path", path), zap.Error(err))
	}
}
