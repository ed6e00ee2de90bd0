package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitediscovery/internal/app"
	"github.com/JakeFAU/sitediscovery/internal/config"
	"github.com/JakeFAU/sitediscovery/internal/logging"
	"github.com/JakeFAU/sitediscovery/internal/scanner"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "sitediscovery",
		Short: "Discovers websites served by nginx and Apache for monitoring.",
		Long: `sitediscovery reads the virtual host configuration of nginx and Apache,
filters it (ignore patterns, custom ports, HTTPS preference) and emits the
resulting sites as low-level discovery JSON with {#NAME} and {#URL} macros.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Runs after flag parsing and before the subcommand's RunE: load the
		// configuration, move into the work dir and build the application.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			if err := os.Chdir(cfg.Discovery.WorkDir); err != nil {
				return fmt.Errorf("change to work dir %s: %w", cfg.Discovery.WorkDir, err)
			}
			appInstance, err := app.NewApp(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			logger.Debug("configuration loaded",
				zap.String("work_dir", cfg.Discovery.WorkDir),
				zap.String("nginx_vhosts_path", cfg.Discovery.NginxVhostsPath),
				zap.String("apache_vhosts_path", cfg.Discovery.ApacheVhostsPath),
				zap.Strings("ignore_list", cfg.Discovery.IgnoreList),
			)

			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(*app.App); ok && appInstance != nil {
				appInstance.Close()
			}
		},

		RunE: runDiscoverCommand,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (YAML)")
	flags.String("log-level", "info", "log level: trace, debug, info, warn, error")
	flags.Bool("log-development", false, "human readable development logging")
	addDiscoveryFlags(flags)

	cmd.AddCommand(newDiscoverCmd(), newServeCmd(), newVersionCmd())
	return cmd
}

func addDiscoveryFlags(flags *pflag.FlagSet) {
	flags.StringP("work-dir", "d", config.DefaultWorkDir, "working directory relative paths are resolved against")
	flags.StringP("nginx-vhosts-path", "n", scanner.DefaultNginxRoot, "nginx virtual host configuration directory")
	flags.StringP("apache-vhosts-path", "a", scanner.DefaultApacheRoot, "Apache virtual host configuration directory")
	flags.Bool("include-www", false, "report domains starting with www.")
	flags.Bool("include-custom-ports", false, "keep virtual hosts on ports other than 80 and 443")
	flags.StringSliceP("ignore-list", "i", nil, "comma-separated domain glob patterns to ignore")
	flags.Bool("redirect-302", false, "treat temporary redirects (302, 307) as redirect-only servers")
	flags.Bool("exclude-http", false, "drop plain HTTP sites from the output")
	flags.Bool("include-aliases", false, "report Apache ServerAlias names")
	flags.Bool("punycode-urls", false, "render internationalized domains in URLs as punycode")
	flags.Bool("use-data-property", false, `wrap the manifest in {"data": [...]}`)
	flags.StringP("output", "o", "", "write the manifest to this file instead of stdout")
	flags.String("metrics-textfile", "", "write Prometheus metrics to this file after the run")
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	logger, lerr := logging.New(false, "info")
	if lerr != nil {
		fmt.Fprintf(os.Stderr, "command execution failed: %v\n", err)
		os.Exit(1)
	}
	logger.Fatal("command execution failed", zap.Error(err))
}
