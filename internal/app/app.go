// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitediscovery/internal/config"
	"github.com/JakeFAU/sitediscovery/internal/discovery"
	"github.com/JakeFAU/sitediscovery/internal/filter"
	"github.com/JakeFAU/sitediscovery/internal/scanner"
	"github.com/JakeFAU/sitediscovery/internal/storage/local"
)

// App holds the shared services built from one configuration: the logger,
// the discovery service and, when an output file is configured, the manifest
// store. It is built once per command invocation.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	discovery *discovery.Service
	store     *local.Store
}

// GetConfig returns the configuration the App was built from.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// GetLogger returns the shared zap logger instance.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetDiscovery exposes the discovery service.
func (a *App) GetDiscovery() *discovery.Service {
	return a.discovery
}

// GetStore returns the manifest store, or nil when the manifest goes to stdout.
func (a *App) GetStore() *local.Store {
	return a.store
}

// NewApp wires scanners, the discovery service and the optional manifest
// store. It fails fast on an invalid ignore pattern or an unusable output
// directory.
func NewApp(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := cfg.Discovery

	scanners := []scanner.Scanner{
		scanner.NewNginx(d.NginxVhostsPath,
			scanner.WithLogger(logger.Named("scanner.nginx")),
			scanner.WithRedirect302(d.Redirect302),
		),
		scanner.NewApache(d.ApacheVhostsPath,
			scanner.WithLogger(logger.Named("scanner.apache")),
			scanner.WithAliases(d.IncludeAliases),
		),
	}

	svc, err := discovery.New(discovery.Config{
		Filter: filter.Config{
			AllowCustomPorts: d.IncludeCustomPorts,
			IgnorePatterns:   d.IgnoreList,
		},
		IncludeWWW:   d.IncludeWWW,
		ExcludeHTTP:  d.ExcludeHTTP,
		PunycodeURLs: d.PunycodeURLs,
	}, scanners, discovery.WithLogger(logger.Named("discovery")))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize discovery: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, discovery: svc}
	if cfg.Output.File != "" {
		// Relative output paths are resolved against the current (work) dir.
		output, err := filepath.Abs(cfg.Output.File)
		if err != nil {
			return nil, fmt.Errorf("resolve output file: %w", err)
		}
		a.cfg.Output.File = output
		store, err := local.New(local.Config{BaseDir: filepath.Dir(output)}, logger.Named("storage"))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize manifest store: %w", err)
		}
		a.store = store
	}
	return a, nil
}

// Close flushes the logger. Sync errors on terminals are expected and ignored.
func (a *App) Close() {
	_ = a.logger.Sync()
}
